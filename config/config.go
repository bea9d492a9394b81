package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	PairingSeed       = "seed"
	PairingPositional = "positional"
)

type DetectorConfig struct {
	Backend    string   `yaml:"backend"`
	ModelPath  string   `yaml:"modelPath"`
	LabelsPath string   `yaml:"labelsPath"`
	Labels     []string `yaml:"labels"`
	InputSize  int      `yaml:"inputSize"`
	Conf       float32  `yaml:"conf"`
	Iou        float32  `yaml:"iou"`
	RemoteURL  string   `yaml:"remoteURL"`
}

type MergeConfig struct {
	IouThreshold float32 `yaml:"iouThreshold"`
}

type RecognizerConfig struct {
	Backend   string `yaml:"backend"`
	ModelPath string `yaml:"modelPath"`
	Height    int    `yaml:"height"`
	Width     int    `yaml:"width"`
	MaxLength int    `yaml:"maxLength"`
	Workers   int    `yaml:"workers"`
	Language  string `yaml:"language"`
}

type MonitorConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type RegistryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Interval time.Duration `yaml:"interval"`
}

type Config struct {
	HTTPPort       int              `yaml:"HTTPPort"`
	RPCPort        int              `yaml:"RPCPort"`
	LogLevel       string           `yaml:"logLevel"`
	Development    bool             `yaml:"development"`
	RequestTimeout time.Duration    `yaml:"requestTimeout"`
	Pairing        string           `yaml:"pairing"`
	ImageDecoder   string           `yaml:"imageDecoder"`
	MaxPixels      int              `yaml:"maxPixels"`
	OnnxLibPath    string           `yaml:"onnxLibPath"`
	Detector       DetectorConfig   `yaml:"detector"`
	Merge          MergeConfig      `yaml:"merge"`
	Recognizer     RecognizerConfig `yaml:"recognizer"`
	Monitor        MonitorConfig    `yaml:"monitor"`
	Registry       RegistryConfig   `yaml:"registry"`
}

// Default returns the configuration used when config.yaml leaves a field unset.
func Default() Config {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	return Config{
		HTTPPort:       8000,
		RPCPort:        50051,
		LogLevel:       "info",
		RequestTimeout: 60 * time.Second,
		Pairing:        PairingSeed,
		ImageDecoder:   "std",
		MaxPixels:      25_000_000,
		Detector: DetectorConfig{
			Backend:   "onnx",
			ModelPath: "models/detector.onnx",
			InputSize: 2016,
			Conf:      0.25,
			Iou:       0.7,
		},
		Merge: MergeConfig{IouThreshold: 0.1},
		Recognizer: RecognizerConfig{
			Backend:   "onnx",
			ModelPath: "models/recognizer.onnx",
			Height:    256,
			Width:     512,
			MaxLength: 256,
			Workers:   workers,
			Language:  "eng",
		},
		Monitor: MonitorConfig{Enabled: true, Port: 9100},
		Registry: RegistryConfig{
			Host:     "127.0.0.1",
			Port:     8500,
			Interval: 5 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults, applies REGIONOCR_* environment overrides
// and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("REGIONOCR_LOG_LEVEL", &c.LogLevel)
	str("REGIONOCR_PAIRING", &c.Pairing)
	str("REGIONOCR_ONNX_LIB", &c.OnnxLibPath)
	str("REGIONOCR_DETECTOR_MODEL", &c.Detector.ModelPath)
	str("REGIONOCR_DETECTOR_URL", &c.Detector.RemoteURL)
	str("REGIONOCR_RECOGNIZER_MODEL", &c.Recognizer.ModelPath)
	for key, dst := range map[string]*int{
		"REGIONOCR_HTTP_PORT":          &c.HTTPPort,
		"REGIONOCR_RPC_PORT":           &c.RPCPort,
		"REGIONOCR_RECOGNIZER_WORKERS": &c.Recognizer.Workers,
		"REGIONOCR_MAX_PIXELS":         &c.MaxPixels,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Merge.IouThreshold < 0 || c.Merge.IouThreshold > 1 {
		errs = append(errs, fmt.Errorf("merge.iouThreshold must be between 0.0 and 1.0, got %f", c.Merge.IouThreshold))
	}
	if c.Detector.Conf < 0 || c.Detector.Conf > 1 {
		errs = append(errs, fmt.Errorf("detector.conf must be between 0.0 and 1.0, got %f", c.Detector.Conf))
	}
	if c.Detector.Iou < 0 || c.Detector.Iou > 1 {
		errs = append(errs, fmt.Errorf("detector.iou must be between 0.0 and 1.0, got %f", c.Detector.Iou))
	}
	if c.Detector.InputSize <= 0 || c.Detector.InputSize%32 != 0 {
		errs = append(errs, fmt.Errorf("detector.inputSize must be a positive multiple of 32, got %d", c.Detector.InputSize))
	}
	switch c.Detector.Backend {
	case "onnx":
		if c.Detector.ModelPath == "" {
			errs = append(errs, errors.New("detector.modelPath cannot be empty"))
		}
	case "remote":
		if c.Detector.RemoteURL == "" {
			errs = append(errs, errors.New("detector.remoteURL cannot be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported detector backend: %q", c.Detector.Backend))
	}
	if c.Recognizer.Height <= 0 || c.Recognizer.Width <= 0 {
		errs = append(errs, fmt.Errorf("recognizer input must be positive, got %dx%d", c.Recognizer.Height, c.Recognizer.Width))
	}
	if c.Recognizer.MaxLength <= 0 {
		errs = append(errs, fmt.Errorf("recognizer.maxLength must be positive, got %d", c.Recognizer.MaxLength))
	}
	if c.Recognizer.Workers <= 0 {
		errs = append(errs, fmt.Errorf("recognizer.workers must be positive, got %d", c.Recognizer.Workers))
	}
	if c.Pairing != PairingSeed && c.Pairing != PairingPositional {
		errs = append(errs, fmt.Errorf("pairing must be %q or %q, got %q", PairingSeed, PairingPositional, c.Pairing))
	}
	if c.MaxPixels <= 0 {
		errs = append(errs, fmt.Errorf("maxPixels must be positive, got %d", c.MaxPixels))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("requestTimeout must be positive, got %s", c.RequestTimeout))
	}
	return errors.Join(errs...)
}
