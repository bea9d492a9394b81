package pipeline

import (
	"RegionOcrServer/config"
	iface "RegionOcrServer/interface"
	"fmt"
)

type AnalysisResult struct {
	ClassID    string     `json:"class_id"`
	BBox       [4]float32 `json:"bbox"`
	Confidence float32    `json:"confidence"`
	Text       string     `json:"text"`
}

// Response is the body every transport returns. Results is never nil so it encodes as [].
type Response struct {
	Results []AnalysisResult `json:"results"`
}

// Assemble pairs recognized texts with their crops. In seed mode bbox and confidence
// come from the detection each region grew from; in positional mode result i takes
// them from detections[i], the raw detector output.
func Assemble(crops []Crop, texts []string, detections []iface.Detection, pairing string) ([]AnalysisResult, error) {
	if len(texts) != len(crops) {
		return nil, fmt.Errorf("got %d texts for %d crops", len(texts), len(crops))
	}
	results := make([]AnalysisResult, 0, len(crops))
	for i, c := range crops {
		src := c.Region.Seed
		if pairing == config.PairingPositional {
			if i >= len(detections) {
				return nil, fmt.Errorf("positional pairing: no detection for result %d of %d", i, len(crops))
			}
			src = detections[i]
		}
		results = append(results, AnalysisResult{
			ClassID:    c.ClassLabel,
			BBox:       src.BBox.Array(),
			Confidence: src.Confidence,
			Text:       texts[i],
		})
	}
	return results, nil
}
