package engine

import (
	"RegionOcrServer/config"
	iface "RegionOcrServer/interface"
	"RegionOcrServer/logger"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

type RecognizerBuilder func(cfg config.Config) (iface.Recognizer, error)

var (
	buildersMu  sync.RWMutex
	recognizers = map[string]RecognizerBuilder{
		"onnx": newOnnxRecognizer,
	}
)

// RegisterRecognizer makes a recognizer backend selectable by recognizer.backend.
func RegisterRecognizer(name string, b RecognizerBuilder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	recognizers[name] = b
}

func newOnnxRecognizer(cfg config.Config) (iface.Recognizer, error) {
	if err := InitRuntime(cfg.OnnxLibPath); err != nil {
		return nil, err
	}
	rc := cfg.Recognizer
	return NewRecognizer(rc.ModelPath, rc.Height, rc.Width, rc.MaxLength, rc.Workers)
}

func NewRecognizerFromConfig(cfg config.Config) (iface.Recognizer, error) {
	buildersMu.RLock()
	b, ok := recognizers[cfg.Recognizer.Backend]
	names := make([]string, 0, len(recognizers))
	for n := range recognizers {
		names = append(names, n)
	}
	buildersMu.RUnlock()
	if !ok {
		slices.Sort(names)
		return nil, fmt.Errorf("unsupported recognizer backend %q (available: %v)", cfg.Recognizer.Backend, names)
	}
	rec, err := b(cfg)
	if err != nil {
		return nil, fmt.Errorf("init %s recognizer: %w", cfg.Recognizer.Backend, err)
	}
	logger.Log().Info("recognizer ready",
		zap.String("backend", cfg.Recognizer.Backend),
		zap.Int("workers", cfg.Recognizer.Workers))
	return rec, nil
}

// NewDetectorFromConfig resolves class labels (inline list first, then labelsPath) and
// builds the configured detector backend.
func NewDetectorFromConfig(cfg config.Config) (iface.Detector, error) {
	dc := cfg.Detector
	names := dc.Labels
	if len(names) == 0 && dc.LabelsPath != "" {
		var err error
		if names, err = LoadNames(dc.LabelsPath); err != nil {
			return nil, fmt.Errorf("load detector labels: %w", err)
		}
	}

	switch dc.Backend {
	case "onnx":
		if err := InitRuntime(cfg.OnnxLibPath); err != nil {
			return nil, err
		}
		d := &Detector{}
		d.New()
		if err := d.LoadModel(dc.ModelPath, names, dc.Conf, dc.Iou, dc.InputSize); err != nil {
			return nil, fmt.Errorf("init onnx detector: %w", err)
		}
		logger.Log().Info("detector ready", zap.String("backend", "onnx"),
			zap.String("model", dc.ModelPath), zap.Int("classes", len(names)))
		return d, nil
	case "remote":
		logger.Log().Info("detector ready", zap.String("backend", "remote"), zap.String("url", dc.RemoteURL))
		return NewRemoteDetector(dc.RemoteURL, names, dc.InputSize, dc.Conf, dc.Iou, cfg.RequestTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported detector backend: %q", dc.Backend)
	}
}
