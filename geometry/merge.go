package geometry

import (
	iface "RegionOcrServer/interface"
)

const DefaultIoUThreshold float32 = 0.1

// MergeOverlapping clusters one class group of detections.
//
// Each unassigned detection, in input order, seeds a cluster and absorbs every later
// unassigned detection whose IoU with the seed exceeds threshold. Membership is decided
// against the seed only: a box that overlaps a non-seed member but not the seed starts
// (or joins) another cluster. There is no second pass.
//
// Clusters of two or more become one region with the union box and the highest
// confidence; single-detection clusters pass through unchanged. The function does not
// look at ClassID; callers hand it one class at a time (see MergeByClass).
func MergeOverlapping(dets []iface.Detection, threshold float32) []iface.MergedRegion {
	regions := make([]iface.MergedRegion, 0, len(dets))
	if len(dets) <= 1 {
		for _, d := range dets {
			regions = append(regions, iface.Single(d))
		}
		return regions
	}

	used := make([]bool, len(dets))
	for i, seed := range dets {
		if used[i] {
			continue
		}
		used[i] = true
		region := iface.Single(seed)
		for j := i + 1; j < len(dets); j++ {
			if used[j] {
				continue
			}
			if IoU(seed.BBox, dets[j].BBox) > threshold {
				used[j] = true
				region.BBox = region.BBox.Union(dets[j].BBox)
				region.Confidence = max(region.Confidence, dets[j].Confidence)
				region.Members++
			}
		}
		regions = append(regions, region)
	}
	return regions
}

// MergeByClass partitions detections by ClassID and merges each group independently.
// Groups are emitted in order of each class's first appearance in dets.
func MergeByClass(dets []iface.Detection, threshold float32) []iface.MergedRegion {
	order := make([]int, 0)
	groups := make(map[int][]iface.Detection)
	for _, d := range dets {
		if _, ok := groups[d.ClassID]; !ok {
			order = append(order, d.ClassID)
		}
		groups[d.ClassID] = append(groups[d.ClassID], d)
	}

	regions := make([]iface.MergedRegion, 0, len(dets))
	for _, classID := range order {
		regions = append(regions, MergeOverlapping(groups[classID], threshold)...)
	}
	return regions
}
