//go:build gocv

package imgproc

import (
	"bytes"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

func init() {
	RegisterDecoder("gocv", func(maxPixels int) Decoder {
		return DecoderFunc(func(data []byte) (Tensor, error) { return decodeMat(data, maxPixels) })
	})
}

// decodeMat decodes through OpenCV, which handles a few formats (and EXIF-less JPEG
// variants) faster than image.Decode. Mat data is interleaved BGR.
func decodeMat(data []byte, maxPixels int) (Tensor, error) {
	if len(data) == 0 {
		return Tensor{}, ErrDecode
	}
	// Formats the Go decoders know are sized from the header; the rest are checked
	// once OpenCV has decoded them.
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
			return Tensor{}, err
		}
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return Tensor{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer mat.Close()
	if mat.Empty() || mat.Channels() != 3 {
		return Tensor{}, ErrDecode
	}

	h, w := mat.Rows(), mat.Cols()
	if err := checkPixels(w, h, maxPixels); err != nil {
		return Tensor{}, err
	}
	raw := mat.ToBytes()
	t := NewTensor(3, h, w)
	stride := h * w
	for i := 0; i < stride; i++ {
		b, g, r := raw[i*3], raw[i*3+1], raw[i*3+2]
		t.Data[i] = float32(r) / 255.0
		t.Data[i+stride] = float32(g) / 255.0
		t.Data[i+2*stride] = float32(b) / 255.0
	}
	return t, nil
}
