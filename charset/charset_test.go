package charset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTable(t *testing.T) {
	assert.Len(t, Default, 83)
	assert.Equal(t, "<B>", Default[Blank])
	assert.Equal(t, "<S>", Default[Start])
	assert.Equal(t, "<E>", Default[End])
	assert.Equal(t, "<P>", Default[Pad])
	assert.Equal(t, "0", Default[4])
	assert.Equal(t, "A", Default[14])
	assert.Equal(t, "a", Default[40])
	assert.Equal(t, " ", Default[66])
	assert.Equal(t, "?", Default[82])
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		indices []int
		want    string
	}{
		{"empty", nil, ""},
		{"controls only", []int{Start, Pad, End, Blank}, ""},
		{"digits", []int{Start, 5, 6, 7, End, Pad, Pad}, "123"},
		{"mixed", []int{Start, 14, 15, 66, 40, 82, End}, "AB a?"},
		{"after end", []int{Start, 4, End, 5}, "01"},
		{"out of range", []int{Start, -1, 4, 83, 1000, End}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Default.Decode(tt.indices))
		})
	}
}

func TestDecode_NeverEmitsControlSymbols(t *testing.T) {
	indices := make([]int, 0, MaxOutputLength)
	for i := 0; i < MaxOutputLength; i++ {
		indices = append(indices, i%len(Default))
	}
	text := Default.Decode(indices)
	for _, ctrl := range Default[:4] {
		assert.False(t, strings.Contains(text, ctrl), "decoded text contains %q", ctrl)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	in := "ATM-42 Branch: Almaty"
	enc := Default.Encode(in)
	assert.Equal(t, End, enc[len(enc)-1])
	assert.Equal(t, in, Default.Decode(enc))
}

func TestEncode_DropsUnknown(t *testing.T) {
	assert.Equal(t, "ab", Default.Decode(Default.Encode("a€b\n")))
}

func TestIsControl(t *testing.T) {
	for i := 0; i < 4; i++ {
		assert.True(t, IsControl(i))
	}
	assert.False(t, IsControl(4))
	assert.False(t, IsControl(-1))
}
