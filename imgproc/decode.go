package imgproc

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sort"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrDecode = errors.New("decoded image is empty or unsupported format")

// DefaultMaxPixels caps width*height of a decoded image when no limit is configured.
// A (3, H, W) float32 tensor costs 12 bytes per pixel on top of the decoded image.
const DefaultMaxPixels = 25_000_000

// Decoder turns encoded image bytes into an RGB tensor.
type Decoder interface {
	Decode(data []byte) (Tensor, error)
}

type DecoderFunc func(data []byte) (Tensor, error)

func (f DecoderFunc) Decode(data []byte) (Tensor, error) {
	return f(data)
}

// DecoderBuilder returns a decoder that rejects images larger than maxPixels.
type DecoderBuilder func(maxPixels int) Decoder

var (
	decMu    sync.RWMutex
	decoders = map[string]DecoderBuilder{
		"std": func(maxPixels int) Decoder {
			return DecoderFunc(func(data []byte) (Tensor, error) { return decodeStd(data, maxPixels) })
		},
	}
)

// RegisterDecoder makes a decoder selectable by name from config.
func RegisterDecoder(name string, b DecoderBuilder) {
	decMu.Lock()
	defer decMu.Unlock()
	decoders[name] = b
}

// NewDecoder builds the named decoder. maxPixels <= 0 means DefaultMaxPixels.
func NewDecoder(name string, maxPixels int) (Decoder, error) {
	if name == "" {
		name = "std"
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	decMu.RLock()
	defer decMu.RUnlock()
	b, ok := decoders[name]
	if !ok {
		return nil, fmt.Errorf("unknown image decoder %q (available: %s)", name, strings.Join(decoderNames(), ", "))
	}
	return b(maxPixels), nil
}

// checkPixels rejects images with no area or more than maxPixels pixels.
func checkPixels(w, h, maxPixels int) error {
	if w <= 0 || h <= 0 {
		return ErrDecode
	}
	if int64(w)*int64(h) > int64(maxPixels) {
		return fmt.Errorf("%w: %dx%d exceeds the %d pixel limit", ErrDecode, w, h, maxPixels)
	}
	return nil
}

func decoderNames() []string {
	names := make([]string, 0, len(decoders))
	for n := range decoders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// decodeStd reads the header first so oversized canvases are refused before any
// pixel buffer is allocated.
func decodeStd(data []byte, maxPixels int) (Tensor, error) {
	if len(data) == 0 {
		return Tensor{}, ErrDecode
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Tensor{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return Tensor{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Tensor{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	t := FromImage(img)
	if t.Empty() {
		return Tensor{}, ErrDecode
	}
	return t, nil
}

// DecodeBase64 strips an optional data URL prefix ("data:image/png;base64,") and decodes.
func DecodeBase64(b64 string) ([]byte, error) {
	if i := strings.Index(b64, ","); i != -1 && strings.HasPrefix(b64, "data:") {
		b64 = b64[i+1:]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
}
