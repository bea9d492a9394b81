package geometry

import (
	iface "RegionOcrServer/interface"
	"sort"
)

// NonMaxSuppression keeps the highest-confidence detection of every same-class group of
// boxes overlapping above iouThreshold. The result is ordered by descending confidence.
func NonMaxSuppression(dets []iface.Detection, iouThreshold float32) []iface.Detection {
	boxes := make([]iface.Detection, len(dets))
	copy(boxes, dets)
	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Confidence > boxes[j].Confidence
	})

	kept := make([]iface.Detection, 0, len(boxes))
	suppressed := make([]bool, len(boxes))
	for i := range boxes {
		if suppressed[i] {
			continue
		}
		kept = append(kept, boxes[i])
		for j := i + 1; j < len(boxes); j++ {
			if suppressed[j] || boxes[j].ClassID != boxes[i].ClassID {
				continue
			}
			if IoU(boxes[i].BBox, boxes[j].BBox) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}
