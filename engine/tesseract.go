//go:build tesseract

package engine

import (
	"RegionOcrServer/charset"
	"RegionOcrServer/config"
	"RegionOcrServer/imgproc"
	iface "RegionOcrServer/interface"
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

func init() {
	RegisterRecognizer("tesseract", func(cfg config.Config) (iface.Recognizer, error) {
		rc := cfg.Recognizer
		return NewTesseractRecognizer(rc.Language, rc.Height, rc.Width, rc.MaxLength)
	})
}

// TesseractRecognizer runs Tesseract over the crop and re-encodes the text through the
// symbol table, so it is interchangeable with the ONNX recognizer.
type TesseractRecognizer struct {
	mu        sync.Mutex
	client    *gosseract.Client
	table     charset.Table
	height    int
	width     int
	maxLength int
}

func NewTesseractRecognizer(lang string, height, width, maxLength int) (*TesseractRecognizer, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract language %q: %w", lang, err)
	}
	return &TesseractRecognizer{
		client:    client,
		table:     charset.Default,
		height:    height,
		width:     width,
		maxLength: maxLength,
	}, nil
}

func (r *TesseractRecognizer) InputSize() (int, int) {
	return r.height, r.width
}

func (r *TesseractRecognizer) Recognize(ctx context.Context, img imgproc.Tensor) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.ToImage()); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("tesseract image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w", err)
	}
	indices := r.table.Encode(strings.TrimSpace(text))
	if len(indices) > r.maxLength {
		indices = indices[:r.maxLength]
	}
	return indices, nil
}

func (r *TesseractRecognizer) Destroy() {
	r.client.Close()
}
