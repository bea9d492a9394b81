package engine

import (
	"RegionOcrServer/imgproc"
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

type recSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[int64]
}

func (s *recSession) destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// Recognizer holds a pool of ONNX sessions for a sequence-output text model taking a
// (1, 3, height, width) crop and returning (1, maxLength) symbol indices.
type Recognizer struct {
	ModelPath string
	Height    int
	Width     int
	MaxLength int

	pool     chan *recSession
	sessions []*recSession
}

func NewRecognizer(modelPath string, height, width, maxLength, poolSize int) (*Recognizer, error) {
	if height <= 0 || width <= 0 || maxLength <= 0 {
		return nil, fmt.Errorf("invalid recognizer shape %dx%d, max length %d", height, width, maxLength)
	}
	if poolSize <= 0 {
		poolSize = 1
	}
	if err := checkModelFile(modelPath); err != nil {
		return nil, err
	}
	r := &Recognizer{
		ModelPath: modelPath,
		Height:    height,
		Width:     width,
		MaxLength: maxLength,
		pool:      make(chan *recSession, poolSize),
	}
	for i := 0; i < poolSize; i++ {
		s, err := r.newSession()
		if err != nil {
			r.Destroy()
			return nil, fmt.Errorf("recognizer session %d: %w", i, err)
		}
		r.sessions = append(r.sessions, s)
		r.pool <- s
	}
	return r, nil
}

func (r *Recognizer) newSession() (*recSession, error) {
	s := &recSession{}
	var err error
	s.input, err = ort.NewTensor(ort.NewShape(1, 3, int64(r.Height), int64(r.Width)), make([]float32, 3*r.Height*r.Width))
	if err != nil {
		return nil, err
	}
	s.output, err = ort.NewEmptyTensor[int64](ort.NewShape(1, int64(r.MaxLength)))
	if err != nil {
		s.destroy()
		return nil, err
	}
	options, err := ort.NewSessionOptions()
	if err != nil {
		s.destroy()
		return nil, err
	}
	defer options.Destroy()
	// one intra-op thread per session, parallelism comes from the pool
	if err := options.SetIntraOpNumThreads(1); err != nil {
		s.destroy()
		return nil, err
	}
	s.session, err = ort.NewAdvancedSession(r.ModelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{s.input}, []ort.ArbitraryTensor{s.output}, options)
	if err != nil {
		s.destroy()
		return nil, err
	}
	return s, nil
}

func (r *Recognizer) InputSize() (int, int) {
	return r.Height, r.Width
}

// Recognize blocks until a pooled session is free or ctx is done.
func (r *Recognizer) Recognize(ctx context.Context, img imgproc.Tensor) ([]int, error) {
	if img.C != 3 || img.H != r.Height || img.W != r.Width {
		return nil, fmt.Errorf("recognizer expects 3x%dx%d, got %dx%dx%d", r.Height, r.Width, img.C, img.H, img.W)
	}
	var s *recSession
	select {
	case s = <-r.pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { r.pool <- s }()

	copy(s.input.GetData(), img.Data)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("run recognizer: %w", err)
	}
	raw := s.output.GetData()
	indices := make([]int, len(raw))
	for i, v := range raw {
		indices[i] = int(v)
	}
	return indices, nil
}

func (r *Recognizer) Destroy() {
	for _, s := range r.sessions {
		s.destroy()
	}
	r.sessions = nil
}
