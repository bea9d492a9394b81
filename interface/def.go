package iface

import (
	"RegionOcrServer/imgproc"
	"context"
)

// Box is an axis-aligned box in pixel coordinates, (X1,Y1) top-left, (X2,Y2) bottom-right.
type Box struct {
	X1, Y1, X2, Y2 float32
}

func (b Box) Width() float32  { return b.X2 - b.X1 }
func (b Box) Height() float32 { return b.Y2 - b.Y1 }

// Area is zero for degenerate boxes.
func (b Box) Area() float32 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func (b Box) Union(o Box) Box {
	return Box{
		X1: min(b.X1, o.X1),
		Y1: min(b.Y1, o.Y1),
		X2: max(b.X2, o.X2),
		Y2: max(b.Y2, o.Y2),
	}
}

func (b Box) Contains(o Box) bool {
	return b.X1 <= o.X1 && b.Y1 <= o.Y1 && b.X2 >= o.X2 && b.Y2 >= o.Y2
}

func (b Box) Array() [4]float32 {
	return [4]float32{b.X1, b.Y1, b.X2, b.Y2}
}

// Detection is one raw detector output.
type Detection struct {
	ClassID    int     `json:"class_id"`
	Confidence float32 `json:"confidence"`
	BBox       Box     `json:"-"`
}

// MergedRegion is one or more same-class detections combined into a bounding union.
// Seed is the detection the region grew from; Members counts the merged detections.
type MergedRegion struct {
	ClassID    int
	Confidence float32
	BBox       Box
	Seed       Detection
	Members    int
}

// Single wraps a detection that merged with nothing.
func Single(d Detection) MergedRegion {
	return MergedRegion{
		ClassID:    d.ClassID,
		Confidence: d.Confidence,
		BBox:       d.BBox,
		Seed:       d,
		Members:    1,
	}
}

type EngineConfig struct {
	Backend   string
	ModelPath string
	Names     []string
	Conf      float32
	Iou       float32
	InputSize int
}

// Detector finds regions of interest. size is the square inference resolution;
// zero means the detector's configured default.
type Detector interface {
	Detect(ctx context.Context, img imgproc.Tensor, size int) ([]Detection, error)
	Labels() []string
	CheckConfig() EngineConfig
	Destroy()
}

// Recognizer turns a fixed-size crop into a sequence of symbol indices.
type Recognizer interface {
	Recognize(ctx context.Context, img imgproc.Tensor) ([]int, error)
	InputSize() (height, width int)
	Destroy()
}
