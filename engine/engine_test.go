package engine

import (
	"RegionOcrServer/config"
	"RegionOcrServer/imgproc"
	iface "RegionOcrServer/interface"
	"context"
	"encoding/json"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// yoloOutput lays out boxes as the model does: row-major [4+nc][n].
func yoloOutput(numClasses int, boxes [][]float32) []float32 {
	n := len(boxes)
	out := make([]float32, (4+numClasses)*n)
	for i, b := range boxes {
		for row, v := range b {
			out[row*n+i] = v
		}
	}
	return out
}

func TestAnchorCount(t *testing.T) {
	assert.Equal(t, 8400, anchorCount(640))
	assert.Equal(t, 83349, anchorCount(2016))
}

func TestParseYOLO(t *testing.T) {
	square := newLetterbox(32, 32, 32)

	t.Run("unpads and suppresses same class", func(t *testing.T) {
		// 64x32 fits 32x32 at half scale with 8 rows of padding above and below.
		out := yoloOutput(2, [][]float32{
			{8, 16, 8, 8, 0.9, 0.1},
			{9, 16, 8, 8, 0.8, 0.05},
			{24, 24, 8, 8, 0.1, 0.2},
		})
		dets, err := parseYOLO(out, 2, newLetterbox(64, 32, 32), 64, 32, 0.25, 0.5)
		require.NoError(t, err)
		require.Len(t, dets, 1)
		assert.Equal(t, 0, dets[0].ClassID)
		assert.Equal(t, float32(0.9), dets[0].Confidence)
		assert.Equal(t, iface.Box{X1: 8, Y1: 8, X2: 24, Y2: 24}, dets[0].BBox)
	})

	t.Run("keeps overlapping boxes of different classes", func(t *testing.T) {
		out := yoloOutput(2, [][]float32{
			{8, 8, 8, 8, 0.9, 0.1},
			{9, 8, 8, 8, 0.05, 0.8},
		})
		dets, err := parseYOLO(out, 2, square, 32, 32, 0.25, 0.5)
		require.NoError(t, err)
		require.Len(t, dets, 2)
		assert.Equal(t, 0, dets[0].ClassID)
		assert.Equal(t, 1, dets[1].ClassID)
	})

	t.Run("clamps to image", func(t *testing.T) {
		out := yoloOutput(1, [][]float32{{2, 2, 8, 8, 0.7}})
		dets, err := parseYOLO(out, 1, square, 32, 32, 0.25, 0.5)
		require.NoError(t, err)
		require.Len(t, dets, 1)
		assert.Equal(t, iface.Box{X1: 0, Y1: 0, X2: 6, Y2: 6}, dets[0].BBox)
	})

	t.Run("bad output size", func(t *testing.T) {
		_, err := parseYOLO(make([]float32, 7), 2, square, 32, 32, 0.25, 0.5)
		assert.ErrorContains(t, err, "invalid output size")
	})

	t.Run("no classes", func(t *testing.T) {
		_, err := parseYOLO(nil, 0, square, 32, 32, 0.25, 0.5)
		assert.Error(t, err)
	})
}

func TestLetterbox(t *testing.T) {
	lb := newLetterbox(64, 32, 32)
	assert.Equal(t, float32(0.5), lb.scale)
	assert.Equal(t, 32, lb.w)
	assert.Equal(t, 16, lb.h)
	assert.Equal(t, 0, lb.padX)
	assert.Equal(t, 8, lb.padY)

	src := imgproc.NewTensor(3, 32, 64)
	for i := range src.Data {
		src.Data[i] = 1
	}
	canvas := lb.apply(src.ToImage())
	assert.Equal(t, 32, canvas.Bounds().Dx())
	assert.Equal(t, 32, canvas.Bounds().Dy())
	assert.Equal(t, padGray, canvas.NRGBAAt(5, 2))
	assert.Equal(t, padGray, canvas.NRGBAAt(5, 29))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, canvas.NRGBAAt(5, 16))

	tall := newLetterbox(30, 90, 96)
	assert.Equal(t, 32, tall.w)
	assert.Equal(t, 96, tall.h)
	assert.Equal(t, 32, tall.padX)
	assert.Equal(t, 0, tall.padY)
}

func TestLoadNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.txt")
	require.NoError(t, os.WriteFile(path, []byte("model\r\nbranch_code\r\n\r\nbank\n\n"), 0644))

	names, err := LoadNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"model", "branch_code", "bank"}, names)

	_, err = LoadNames(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestDetector_Lifecycle(t *testing.T) {
	d := &Detector{}
	img := imgproc.NewTensor(3, 4, 4)

	t.Run("Test LoadModel unregistered", func(t *testing.T) {
		assert.Error(t, d.LoadModel("model.onnx", []string{"a"}, 0.25, 0.7, 640))
	})

	t.Run("Test New", func(t *testing.T) {
		assert.True(t, d.New())
		assert.Equal(t, REGISTERED, d.State)
	})

	t.Run("Test LoadModel missing file", func(t *testing.T) {
		err := d.LoadModel(filepath.Join(t.TempDir(), "absent.onnx"), []string{"a"}, 0.25, 0.7, 640)
		assert.ErrorContains(t, err, "model file")
		assert.Equal(t, REGISTERED, d.State)
	})

	t.Run("Test LoadModel bad size", func(t *testing.T) {
		assert.ErrorContains(t, d.LoadModel("model.onnx", []string{"a"}, 0.25, 0.7, 100), "multiple of 32")
	})

	t.Run("Test Detect before load", func(t *testing.T) {
		_, err := d.Detect(context.Background(), img, 0)
		assert.ErrorIs(t, err, ErrNotLoaded)
	})

	t.Run("Test Destroy", func(t *testing.T) {
		d.Destroy()
		assert.Equal(t, UNREGISTERED, d.State)
		assert.Equal(t, "", d.ModelPath)
		assert.Equal(t, float32(0), d.Conf)
	})
}

func TestNewRecognizer_Validation(t *testing.T) {
	_, err := NewRecognizer("rec.onnx", 0, 512, 256, 1)
	assert.ErrorContains(t, err, "invalid recognizer shape")

	_, err = NewRecognizer(filepath.Join(t.TempDir(), "absent.onnx"), 256, 512, 256, 1)
	assert.ErrorContains(t, err, "model file")
}

func TestRemoteDetector(t *testing.T) {
	var gotSize string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotSize = r.FormValue("imgsz")
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		img, err := png.Decode(f)
		require.NoError(t, err)
		assert.Equal(t, 20, img.Bounds().Dx())
		assert.Equal(t, 10, img.Bounds().Dy())

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"predictions": []map[string]any{
				{"class_id": 1, "confidence": 0.8, "bbox": []float32{1, 2, 10, 8}},
				{"class_id": 0, "confidence": 0.6, "bbox": []float32{0, 0, 5, 5}},
			},
			"names": []string{"model", "branch_code"},
		})
	}))
	defer srv.Close()

	d := NewRemoteDetector(srv.URL, nil, 2016, 0.25, 0.7, 5*time.Second)
	dets, err := d.Detect(context.Background(), imgproc.NewTensor(3, 10, 20), 0)
	require.NoError(t, err)

	assert.Equal(t, "2016", gotSize)
	require.Len(t, dets, 2)
	assert.Equal(t, iface.Detection{ClassID: 1, Confidence: 0.8, BBox: iface.Box{X1: 1, Y1: 2, X2: 10, Y2: 8}}, dets[0])
	assert.Equal(t, 0, dets[1].ClassID)
	assert.Equal(t, []string{"model", "branch_code"}, d.Labels())
	assert.Equal(t, "remote", d.CheckConfig().Backend)
}

func TestRemoteDetector_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewRemoteDetector(srv.URL, []string{"a"}, 640, 0.25, 0.7, 5*time.Second)
	_, err := d.Detect(context.Background(), imgproc.NewTensor(3, 4, 4), 640)
	assert.ErrorContains(t, err, "500")
	assert.Equal(t, []string{"a"}, d.Labels())
}

func TestNewDetectorFromConfig(t *testing.T) {
	labels := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(labels, []byte("model\nbank\n"), 0644))

	cfg := config.Default()
	cfg.Detector.Backend = "remote"
	cfg.Detector.RemoteURL = "http://127.0.0.1:1/predict"
	cfg.Detector.LabelsPath = labels

	det, err := NewDetectorFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"model", "bank"}, det.Labels())

	cfg.Detector.Labels = []string{"inline"}
	det, err = NewDetectorFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"inline"}, det.Labels())

	cfg.Detector.Backend = "tflite"
	_, err = NewDetectorFromConfig(cfg)
	assert.ErrorContains(t, err, "unsupported detector backend")
}

func TestNewRecognizerFromConfig_Unknown(t *testing.T) {
	cfg := config.Default()
	cfg.Recognizer.Backend = "paddle"
	_, err := NewRecognizerFromConfig(cfg)
	assert.ErrorContains(t, err, "onnx")
}
