package geometry

import (
	iface "RegionOcrServer/interface"
)

// IoU returns intersection area over union area of two boxes, in [0,1].
// Degenerate boxes have zero area and yield 0.
func IoU(a, b iface.Box) float32 {
	iw := min(a.X2, b.X2) - max(a.X1, b.X1)
	ih := min(a.Y2, b.Y2) - max(a.Y1, b.Y1)
	if iw <= 0 || ih <= 0 {
		return 0
	}
	areaA, areaB := a.Area(), b.Area()
	if areaA == 0 || areaB == 0 {
		return 0
	}
	inter := iw * ih
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
