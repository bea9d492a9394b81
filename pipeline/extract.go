package pipeline

import (
	"RegionOcrServer/imgproc"
	iface "RegionOcrServer/interface"
	"RegionOcrServer/logger"
	"image"
	"strconv"

	"go.uber.org/zap"
)

// Crop is the pixel data of one merged region, ready for recognition.
type Crop struct {
	ClassLabel string
	Confidence float32
	Pixels     imgproc.Tensor
	Region     iface.MergedRegion
}

// Label resolves a class id, falling back to the decimal id for ids the detector
// did not name. A nil log means the process logger.
func Label(labels []string, classID int, log *zap.Logger) string {
	if classID >= 0 && classID < len(labels) {
		return labels[classID]
	}
	if log == nil {
		log = logger.Log()
	}
	log.Warn("class id has no label", zap.Int("class_id", classID), zap.Int("labels", len(labels)))
	return strconv.Itoa(classID)
}

// Extract cuts one crop per region. Coordinates are truncated toward zero, then clamped
// to the image; regions left with no width or height are dropped. Order follows regions.
func Extract(img imgproc.Tensor, regions []iface.MergedRegion, labels []string, log *zap.Logger) []Crop {
	crops := make([]Crop, 0, len(regions))
	for _, r := range regions {
		x1 := max(int(r.BBox.X1), 0)
		y1 := max(int(r.BBox.Y1), 0)
		x2 := min(int(r.BBox.X2), img.W)
		y2 := min(int(r.BBox.Y2), img.H)
		if x2 <= x1 || y2 <= y1 {
			continue
		}
		crops = append(crops, Crop{
			ClassLabel: Label(labels, r.ClassID, log),
			Confidence: r.Confidence,
			Pixels:     img.Crop(image.Rect(x1, y1, x2, y2)),
			Region:     r,
		})
	}
	return crops
}
