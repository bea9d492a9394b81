package charset

import (
	"strings"
)

// Reserved control indices.
const (
	Blank = 0
	Start = 1
	End   = 2
	Pad   = 3

	numControls = 4
)

// MaxOutputLength is the longest index sequence the recognizer emits.
const MaxOutputLength = 256

// Table maps recognizer output indices to symbols. Indices 0-3 are control tokens.
type Table []string

var Default = Table{
	"<B>", "<S>", "<E>", "<P>",
	"0", "1", "2", "3", "4", "5", "6", "7", "8", "9",
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
	"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m",
	"n", "o", "p", "q", "r", "s", "t", "u", "v", "w", "x", "y", "z",
	" ", "!", "\"", "#", "&", "'", "(", ")", "*", "+", ",", "-", ".", "/", ":", ";", "?",
}

func IsControl(idx int) bool {
	return idx >= 0 && idx < numControls
}

// Decode concatenates the symbols for indices, skipping control tokens. Indices outside
// the table are skipped as well. Every index is visited, including those after an End token.
func (t Table) Decode(indices []int) string {
	var sb strings.Builder
	for _, idx := range indices {
		if IsControl(idx) || idx < 0 || idx >= len(t) {
			continue
		}
		sb.WriteString(t[idx])
	}
	return sb.String()
}

// Encode maps text back onto table indices, terminated by End. Runes that have no
// symbol are dropped.
func (t Table) Encode(text string) []int {
	lookup := make(map[string]int, len(t))
	for i := numControls; i < len(t); i++ {
		lookup[t[i]] = i
	}
	out := make([]int, 0, len(text)+1)
	for _, r := range text {
		if idx, ok := lookup[string(r)]; ok {
			out = append(out, idx)
		}
	}
	return append(out, End)
}
