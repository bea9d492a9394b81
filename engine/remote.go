package engine

import (
	"RegionOcrServer/imgproc"
	iface "RegionOcrServer/interface"
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

type remotePrediction struct {
	ClassID    int        `json:"class_id"`
	Confidence float32    `json:"confidence"`
	BBox       [4]float32 `json:"bbox"`
}

type remoteResponse struct {
	Predictions []remotePrediction `json:"predictions"`
	Names       []string           `json:"names"`
}

// RemoteDetector delegates detection to an HTTP inference server that accepts a
// multipart "file" upload plus "imgsz" and answers with predictions in source pixels.
type RemoteDetector struct {
	URL       string
	InputSize int
	Conf      float32
	Iou       float32

	client *resty.Client
	mu     sync.RWMutex
	names  []string
}

func NewRemoteDetector(url string, names []string, inputSize int, conf, iou float32, timeout time.Duration) *RemoteDetector {
	return &RemoteDetector{
		URL:       url,
		InputSize: inputSize,
		Conf:      conf,
		Iou:       iou,
		client:    resty.New().SetTimeout(timeout),
		names:     names,
	}
}

func (d *RemoteDetector) Detect(ctx context.Context, img imgproc.Tensor, size int) ([]iface.Detection, error) {
	if size == 0 {
		size = d.InputSize
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.ToImage()); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	var out remoteResponse
	resp, err := d.client.R().
		SetContext(ctx).
		SetFileReader("file", "image.png", bytes.NewReader(buf.Bytes())).
		SetFormData(map[string]string{
			"imgsz": strconv.Itoa(size),
			"conf":  strconv.FormatFloat(float64(d.Conf), 'f', -1, 32),
			"iou":   strconv.FormatFloat(float64(d.Iou), 'f', -1, 32),
		}).
		SetResult(&out).
		Post(d.URL)
	if err != nil {
		return nil, fmt.Errorf("remote detector request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("remote detector returned %s: %s", resp.Status(), resp.String())
	}

	if len(out.Names) > 0 {
		d.mu.Lock()
		d.names = out.Names
		d.mu.Unlock()
	}
	dets := make([]iface.Detection, 0, len(out.Predictions))
	for _, p := range out.Predictions {
		dets = append(dets, iface.Detection{
			ClassID:    p.ClassID,
			Confidence: p.Confidence,
			BBox:       iface.Box{X1: p.BBox[0], Y1: p.BBox[1], X2: p.BBox[2], Y2: p.BBox[3]},
		})
	}
	return dets, nil
}

// Labels returns the configured names, replaced by the server's once it reports them.
func (d *RemoteDetector) Labels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.names
}

func (d *RemoteDetector) CheckConfig() iface.EngineConfig {
	return iface.EngineConfig{
		Backend:   "remote",
		ModelPath: d.URL,
		Names:     d.Labels(),
		Conf:      d.Conf,
		Iou:       d.Iou,
		InputSize: d.InputSize,
	}
}

func (d *RemoteDetector) Destroy() {}
