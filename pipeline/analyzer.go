package pipeline

import (
	"RegionOcrServer/charset"
	"RegionOcrServer/config"
	"RegionOcrServer/geometry"
	"RegionOcrServer/imgproc"
	iface "RegionOcrServer/interface"
	"RegionOcrServer/logger"
	"RegionOcrServer/monitor"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrEmptyImage = errors.New("empty image")

type Options struct {
	IouThreshold float32
	// InputSize is the detector inference size; 0 keeps the detector's own default.
	InputSize int
	Workers   int
	MaxLength int
	Pairing   string
	Table     charset.Table
}

func DefaultOptions() Options {
	return Options{
		IouThreshold: geometry.DefaultIoUThreshold,
		Workers:      1,
		MaxLength:    charset.MaxOutputLength,
		Pairing:      config.PairingSeed,
		Table:        charset.Default,
	}
}

// OptionsFromConfig maps the service configuration onto pipeline options.
func OptionsFromConfig(cfg config.Config) Options {
	o := DefaultOptions()
	o.IouThreshold = cfg.Merge.IouThreshold
	o.InputSize = cfg.Detector.InputSize
	o.Workers = cfg.Recognizer.Workers
	o.MaxLength = cfg.Recognizer.MaxLength
	o.Pairing = cfg.Pairing
	return o
}

// Analyzer runs detect, merge, crop, recognize and assemble for one image at a time.
// It holds no per-request state and is safe for concurrent use as long as its
// collaborators are.
type Analyzer struct {
	det     iface.Detector
	rec     iface.Recognizer
	decoder imgproc.Decoder
	opts    Options
}

func New(det iface.Detector, rec iface.Recognizer, decoder imgproc.Decoder, opts Options) (*Analyzer, error) {
	if det == nil || rec == nil || decoder == nil {
		return nil, errors.New("analyzer needs a detector, a recognizer and a decoder")
	}
	if opts.Pairing != config.PairingSeed && opts.Pairing != config.PairingPositional {
		return nil, fmt.Errorf("unknown pairing mode %q", opts.Pairing)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = charset.MaxOutputLength
	}
	if len(opts.Table) == 0 {
		opts.Table = charset.Default
	}
	return &Analyzer{det: det, rec: rec, decoder: decoder, opts: opts}, nil
}

func (a *Analyzer) Labels() []string {
	return a.det.Labels()
}

// Analyze decodes an encoded image and runs the full pipeline on it.
func (a *Analyzer) Analyze(ctx context.Context, data []byte) (*Response, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	start := time.Now()
	img, err := a.decoder.Decode(data)
	monitor.ObserveStage("decode", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return a.AnalyzeTensor(ctx, img)
}

// AnalyzeTensor runs the pipeline on an already decoded (3, H, W) image. Either the
// complete ordered result list is returned or an error; never a partial list.
func (a *Analyzer) AnalyzeTensor(ctx context.Context, img imgproc.Tensor) (*Response, error) {
	if img.Empty() {
		return nil, ErrEmptyImage
	}
	if RequestID(ctx) == "" {
		ctx = WithRequestID(ctx, "")
	}
	log := logger.Request(RequestID(ctx))

	start := time.Now()
	dets, err := a.det.Detect(ctx, img, a.opts.InputSize)
	monitor.ObserveStage("detect", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	monitor.DetectionsTotal.Add(float64(len(dets)))

	start = time.Now()
	regions := geometry.MergeByClass(dets, a.opts.IouThreshold)
	crops := Extract(img, regions, a.det.Labels(), log)
	monitor.ObserveStage("merge", time.Since(start))
	monitor.RegionsMerged.Add(float64(len(dets) - len(regions)))
	monitor.CropsDropped.Add(float64(len(regions) - len(crops)))

	start = time.Now()
	texts, err := a.recognizeAll(ctx, crops)
	monitor.ObserveStage("recognize", time.Since(start))
	if err != nil {
		return nil, err
	}

	results, err := Assemble(crops, texts, dets, a.opts.Pairing)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	log.Debug("analyzed image",
		zap.Int("width", img.W), zap.Int("height", img.H),
		zap.Int("detections", len(dets)),
		zap.Int("regions", len(regions)),
		zap.Int("results", len(results)))
	return &Response{Results: results}, nil
}

type requestIDKey struct{}

// WithRequestID tags ctx with an id for log correlation. An empty id gets a new UUID.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
