package engine

import (
	"RegionOcrServer/imgproc"
	iface "RegionOcrServer/interface"
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const UNREGISTERED = 0x0001
const REGISTERED = 0x0002
const IDLE = 0x0003
const BUSY = 0x0004

var ErrNotLoaded = errors.New("model not loaded")

// Detector runs a YOLO-style ONNX model at a fixed square input size.
type Detector struct {
	ModelPath string
	Names     []string
	Conf      float32
	Iou       float32
	InputSize int
	State     int

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (d *Detector) New() bool {
	d.State = REGISTERED
	return true
}

// LoadModel creates the ONNX session. The output tensor is sized for a YOLOv8/11 head:
// (1, 4+len(names), anchors).
func (d *Detector) LoadModel(modelPath string, names []string, conf, iou float32, inputSize int) error {
	if d.State == UNREGISTERED || d.State == 0 {
		return fmt.Errorf("detector not registered")
	}
	if len(names) == 0 {
		return fmt.Errorf("detector needs at least one class name")
	}
	if inputSize <= 0 || inputSize%32 != 0 {
		return fmt.Errorf("input size must be a positive multiple of 32, got %d", inputSize)
	}
	if err := checkModelFile(modelPath); err != nil {
		return err
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(inputSize), int64(inputSize)), make([]float32, 3*inputSize*inputSize))
	if err != nil {
		return fmt.Errorf("create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+len(names)), int64(anchorCount(inputSize))))
	if err != nil {
		input.Destroy()
		return fmt.Errorf("create output tensor: %w", err)
	}
	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"images"}, []string{"output0"},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}, options)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return fmt.Errorf("create session for %s: %w", modelPath, err)
	}

	d.ModelPath = modelPath
	d.Names = names
	d.Conf = conf
	d.Iou = iou
	d.InputSize = inputSize
	d.session = session
	d.input = input
	d.output = output
	d.State = IDLE
	return nil
}

func (d *Detector) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		Backend:   "onnx",
		ModelPath: d.ModelPath,
		Names:     d.Names,
		Conf:      d.Conf,
		Iou:       d.Iou,
		InputSize: d.InputSize,
	}
}

func (d *Detector) Labels() []string {
	return d.Names
}

// Detect letterboxes img to the session's input size and returns NMS-filtered detections
// in source pixels. Inference is serialized on the single session.
func (d *Detector) Detect(ctx context.Context, img imgproc.Tensor, size int) ([]iface.Detection, error) {
	if size != 0 && size != d.InputSize {
		return nil, fmt.Errorf("session was built for imgsz %d, got %d", d.InputSize, size)
	}
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.State {
	case UNREGISTERED, REGISTERED, 0:
		return nil, ErrNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.State = BUSY
	defer func() { d.State = IDLE }()

	lb := newLetterbox(img.W, img.H, d.InputSize)
	copy(d.input.GetData(), imgproc.FromImage(lb.apply(img.ToImage())).Data)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detector: %w", err)
	}
	return parseYOLO(d.output.GetData(), len(d.Names), lb, img.W, img.H, d.Conf, d.Iou)
}

func (d *Detector) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil {
		d.session.Destroy()
		d.input.Destroy()
		d.output.Destroy()
	}
	d.session = nil
	d.input = nil
	d.output = nil
	d.ModelPath = ""
	d.Conf = 0
	d.Iou = 0
	d.State = UNREGISTERED
}
