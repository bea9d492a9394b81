package engine

import (
	"RegionOcrServer/geometry"
	iface "RegionOcrServer/interface"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// padGray is the fill the YOLO training pipeline letterboxes with.
var padGray = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// letterbox maps a source image onto the square model input: one scale factor for both
// axes, then the scaled image centred on a gray canvas.
type letterbox struct {
	size       int
	scale      float32
	w, h       int
	padX, padY int
}

func newLetterbox(imgW, imgH, size int) letterbox {
	scale := min(float32(size)/float32(imgW), float32(size)/float32(imgH))
	w := max(1, int(math.Round(float64(float32(imgW)*scale))))
	h := max(1, int(math.Round(float64(float32(imgH)*scale))))
	return letterbox{size: size, scale: scale, w: w, h: h, padX: (size - w) / 2, padY: (size - h) / 2}
}

func (lb letterbox) apply(img image.Image) *image.NRGBA {
	scaled := resize.Resize(uint(lb.w), uint(lb.h), img, resize.Bilinear)
	canvas := imaging.New(lb.size, lb.size, padGray)
	return imaging.Paste(canvas, scaled, image.Pt(lb.padX, lb.padY))
}

// toSource undoes the padding and scaling of a model-space coordinate.
func (lb letterbox) toSource(v float32, pad int) float32 {
	return (v - float32(pad)) / lb.scale
}

// anchorCount is the number of candidate boxes a YOLOv8/11 head emits for a square input
// of the given size (strides 8, 16 and 32).
func anchorCount(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		side := size / stride
		n += side * side
	}
	return n
}

// parseYOLO decodes a [4+numClasses][numBoxes] output (cx, cy, w, h, class scores...)
// into detections in source-image pixels. Candidates below conf are skipped; the
// survivors go through class-aware NMS.
func parseYOLO(output []float32, numClasses int, lb letterbox, imgW, imgH int, conf, iou float32) ([]iface.Detection, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("detector has no class names")
	}
	rows := 4 + numClasses
	if len(output)%rows != 0 {
		return nil, fmt.Errorf("invalid output size: %d is not a multiple of %d", len(output), rows)
	}
	numBoxes := len(output) / rows

	var candidates []iface.Detection
	for i := 0; i < numBoxes; i++ {
		classID, prob := 0, float32(0)
		for j := 0; j < numClasses; j++ {
			if curr := output[numBoxes*(j+4)+i]; curr > prob {
				prob = curr
				classID = j
			}
		}
		if prob < conf {
			continue
		}
		xc := output[i]
		yc := output[numBoxes+i]
		w := output[2*numBoxes+i]
		h := output[3*numBoxes+i]
		box := iface.Box{
			X1: max(0, lb.toSource(xc-w/2, lb.padX)),
			Y1: max(0, lb.toSource(yc-h/2, lb.padY)),
			X2: min(float32(imgW), lb.toSource(xc+w/2, lb.padX)),
			Y2: min(float32(imgH), lb.toSource(yc+h/2, lb.padY)),
		}
		if box.Area() == 0 {
			continue
		}
		candidates = append(candidates, iface.Detection{ClassID: classID, Confidence: prob, BBox: box})
	}
	return geometry.NonMaxSuppression(candidates, iou), nil
}
