package geometry

import (
	iface "RegionOcrServer/interface"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(x1, y1, x2, y2 float32) iface.Box {
	return iface.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func det(class int, conf float32, b iface.Box) iface.Detection {
	return iface.Detection{ClassID: class, Confidence: conf, BBox: b}
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b iface.Box
		want float32
	}{
		{"identical", box(0, 0, 10, 10), box(0, 0, 10, 10), 1},
		{"disjoint", box(0, 0, 10, 10), box(20, 20, 30, 30), 0},
		{"touching edge", box(0, 0, 10, 10), box(10, 0, 20, 10), 0},
		{"half overlap", box(0, 0, 10, 10), box(5, 0, 15, 10), 50.0 / 150.0},
		{"contained", box(0, 0, 10, 10), box(0, 0, 3, 10), 0.3},
		{"zero area a", box(5, 5, 5, 5), box(0, 0, 10, 10), 0},
		{"inverted b", box(0, 0, 10, 10), box(8, 8, 2, 2), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IoU(tt.a, tt.b), 1e-6)
		})
	}
}

func TestIoU_ExactValues(t *testing.T) {
	a := box(1.5, 2.25, 17.75, 40)
	assert.Equal(t, float32(1), IoU(a, a))
	assert.Equal(t, float32(0), IoU(a, box(100, 100, 120, 130)))
}

func TestIoU_Symmetric(t *testing.T) {
	boxes := []iface.Box{
		box(0, 0, 10, 10),
		box(3, 4, 17, 9),
		box(-5, -5, 2, 2),
		box(1.1, 2.2, 3.3, 4.4),
		box(0, 0, 0, 10),
	}
	for _, a := range boxes {
		for _, b := range boxes {
			assert.Equal(t, IoU(a, b), IoU(b, a), "IoU(%v,%v)", a, b)
		}
	}
}

func TestMergeOverlapping_EmptyAndSingle(t *testing.T) {
	assert.Empty(t, MergeOverlapping(nil, DefaultIoUThreshold))

	d := det(2, 0.42, box(1, 2, 3, 4))
	got := MergeOverlapping([]iface.Detection{d}, DefaultIoUThreshold)
	require.Len(t, got, 1)
	assert.Equal(t, d.ClassID, got[0].ClassID)
	assert.Equal(t, d.Confidence, got[0].Confidence)
	assert.Equal(t, d.BBox, got[0].BBox)
	assert.Equal(t, d, got[0].Seed)
	assert.Equal(t, 1, got[0].Members)
}

func TestMergeOverlapping_TwoAboveThreshold(t *testing.T) {
	// IoU = 30 / 100 = 0.3
	a := det(0, 0.8, box(0, 0, 13, 5))
	b := det(0, 0.6, box(7, 0, 20, 5))
	require.InDelta(t, 0.3, IoU(a.BBox, b.BBox), 1e-6)

	got := MergeOverlapping([]iface.Detection{b, a}, DefaultIoUThreshold)
	require.Len(t, got, 1)
	assert.Equal(t, box(0, 0, 20, 5), got[0].BBox)
	assert.Equal(t, float32(0.8), got[0].Confidence)
	assert.Equal(t, 2, got[0].Members)
	assert.Equal(t, b, got[0].Seed)
	assert.True(t, got[0].BBox.Contains(a.BBox))
	assert.True(t, got[0].BBox.Contains(b.BBox))
}

func TestMergeOverlapping_AtThresholdDoesNotMerge(t *testing.T) {
	a := det(0, 0.9, box(0, 0, 10, 10))
	b := det(0, 0.5, box(0, 0, 3, 10))
	got := MergeOverlapping([]iface.Detection{a, b}, 0.3)
	assert.Len(t, got, 2)
}

func TestMergeOverlapping_SeedOnlyNotTransitive(t *testing.T) {
	a := det(0, 0.5, box(0, 0, 10, 10))
	b := det(0, 0.7, box(5, 0, 15, 10))  // overlaps a
	c := det(0, 0.9, box(12, 0, 22, 10)) // overlaps b only
	require.Zero(t, IoU(a.BBox, c.BBox))
	require.Greater(t, IoU(b.BBox, c.BBox), DefaultIoUThreshold)

	got := MergeOverlapping([]iface.Detection{a, b, c}, DefaultIoUThreshold)
	require.Len(t, got, 2)
	assert.Equal(t, box(0, 0, 15, 10), got[0].BBox)
	assert.Equal(t, float32(0.7), got[0].Confidence)
	assert.Equal(t, c.BBox, got[1].BBox)
	assert.Equal(t, 1, got[1].Members)
}

func TestMergeOverlapping_SeedBridgesDisjointBoxes(t *testing.T) {
	seed := det(1, 0.4, box(0, 0, 20, 10))
	left := det(1, 0.6, box(0, 0, 8, 10))
	right := det(1, 0.3, box(12, 0, 20, 10))
	require.Zero(t, IoU(left.BBox, right.BBox))

	got := MergeOverlapping([]iface.Detection{seed, left, right}, DefaultIoUThreshold)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Members)
	assert.Equal(t, float32(0.6), got[0].Confidence)
	assert.Equal(t, 1, got[0].ClassID)
}

func TestMergeByClass_CrossClassNeverMerges(t *testing.T) {
	a := det(0, 0.9, box(0, 0, 10, 10))
	b := det(1, 0.8, box(0, 0, 10, 10))

	got := MergeByClass([]iface.Detection{a, b}, DefaultIoUThreshold)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ClassID)
	assert.Equal(t, 1, got[1].ClassID)
	assert.Equal(t, a.BBox, got[0].BBox)
	assert.Equal(t, b.BBox, got[1].BBox)
}

func TestMergeByClass_GroupOrder(t *testing.T) {
	dets := []iface.Detection{
		det(3, 0.5, box(0, 0, 10, 10)),
		det(1, 0.5, box(50, 50, 60, 60)),
		det(3, 0.6, box(2, 0, 12, 10)),
		det(1, 0.7, box(100, 100, 110, 110)),
		det(2, 0.5, box(0, 0, 5, 5)),
	}

	got := MergeByClass(dets, DefaultIoUThreshold)
	require.Len(t, got, 4)
	classes := []int{got[0].ClassID, got[1].ClassID, got[2].ClassID, got[3].ClassID}
	assert.Equal(t, []int{3, 1, 1, 2}, classes)
	assert.Equal(t, box(0, 0, 12, 10), got[0].BBox)
	assert.Equal(t, dets[1].BBox, got[1].BBox)
	assert.Equal(t, dets[3].BBox, got[2].BBox)

	again := MergeByClass(dets, DefaultIoUThreshold)
	assert.Equal(t, got, again)
}

func TestMergeByClass_Empty(t *testing.T) {
	got := MergeByClass(nil, DefaultIoUThreshold)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNonMaxSuppression(t *testing.T) {
	dets := []iface.Detection{
		det(0, 0.6, box(0, 0, 10, 10)),
		det(0, 0.9, box(1, 1, 11, 11)),
		det(1, 0.5, box(1, 1, 11, 11)),
		det(0, 0.4, box(50, 50, 60, 60)),
	}

	got := NonMaxSuppression(dets, 0.5)
	require.Len(t, got, 3)
	assert.Equal(t, float32(0.9), got[0].Confidence)
	assert.Equal(t, 1, got[1].ClassID)
	assert.Equal(t, float32(0.4), got[2].Confidence)
	// input untouched
	assert.Equal(t, float32(0.6), dets[0].Confidence)
}
