package imgproc

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
)

// Tensor is a channel-major (C, H, W) float32 pixel array with values in [0, 1].
type Tensor struct {
	C, H, W int
	Data    []float32
}

func NewTensor(c, h, w int) Tensor {
	return Tensor{C: c, H: h, W: w, Data: make([]float32, c*h*w)}
}

func (t Tensor) Empty() bool {
	return t.C <= 0 || t.H <= 0 || t.W <= 0
}

func (t Tensor) Bounds() image.Rectangle {
	return image.Rect(0, 0, t.W, t.H)
}

func (t Tensor) At(c, y, x int) float32 {
	return t.Data[(c*t.H+y)*t.W+x]
}

func (t Tensor) Set(c, y, x int, v float32) {
	t.Data[(c*t.H+y)*t.W+x] = v
}

// Crop copies the [:, r.Min.Y:r.Max.Y, r.Min.X:r.Max.X] sub-array. The rectangle is
// intersected with the tensor bounds first; an empty intersection yields an empty Tensor.
func (t Tensor) Crop(r image.Rectangle) Tensor {
	r = r.Intersect(t.Bounds())
	if r.Empty() {
		return Tensor{}
	}
	h, w := r.Dy(), r.Dx()
	out := NewTensor(t.C, h, w)
	for c := 0; c < t.C; c++ {
		for y := 0; y < h; y++ {
			src := (c*t.H+r.Min.Y+y)*t.W + r.Min.X
			dst := (c*h + y) * w
			copy(out.Data[dst:dst+w], t.Data[src:src+w])
		}
	}
	return out
}

// FromImage packs an image into a 3-channel RGB tensor scaled by 1/255.
func FromImage(img image.Image) Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t := NewTensor(3, h, w)
	stride := w * h
	idx := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			t.Data[idx] = float32(r>>8) / 255.0
			t.Data[idx+stride] = float32(g>>8) / 255.0
			t.Data[idx+2*stride] = float32(bl>>8) / 255.0
			idx++
		}
	}
	return t
}

// ToImage converts the tensor back to 8-bit RGB. Single-channel tensors are rendered as gray.
func (t Tensor) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, t.W, t.H))
	for y := 0; y < t.H; y++ {
		for x := 0; x < t.W; x++ {
			r := toByte(t.At(0, y, x))
			g, b := r, r
			if t.C >= 3 {
				g = toByte(t.At(1, y, x))
				b = toByte(t.At(2, y, x))
			}
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

// Resize scales the tensor to h x w with bilinear filtering. Channels are resized one
// at a time as 16-bit gray planes, so values keep 1/65535 precision.
func Resize(t Tensor, h, w int) Tensor {
	if t.H == h && t.W == w {
		return t
	}
	out := NewTensor(t.C, h, w)
	plane := image.NewGray16(t.Bounds())
	srcSize, dstSize := t.H*t.W, h*w
	for c := 0; c < t.C; c++ {
		for i, v := range t.Data[c*srcSize : (c+1)*srcSize] {
			binary.BigEndian.PutUint16(plane.Pix[2*i:], toUint16(v))
		}
		dst := out.Data[c*dstSize : (c+1)*dstSize]
		scaled := resize.Resize(uint(w), uint(h), plane, resize.Bilinear)
		if g, ok := scaled.(*image.Gray16); ok {
			for y := 0; y < h; y++ {
				row := g.Pix[y*g.Stride:]
				for x := 0; x < w; x++ {
					dst[y*w+x] = float32(binary.BigEndian.Uint16(row[2*x:])) / 65535.0
				}
			}
			continue
		}
		b := scaled.Bounds()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst[y*w+x] = float32(color.Gray16Model.Convert(scaled.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y) / 65535.0
			}
		}
	}
	return out
}

func toUint16(v float32) uint16 {
	f := math.Round(float64(v) * 65535)
	if f < 0 {
		return 0
	}
	if f > 65535 {
		return 65535
	}
	return uint16(f)
}

func toByte(v float32) uint8 {
	f := math.Round(float64(v) * 255)
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f)
}
