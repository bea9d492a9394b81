package engine

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// InitRuntime loads the ONNX Runtime shared library once per process. An empty libPath
// picks the bundled library under ./third_party for the current platform.
func InitRuntime(libPath string) error {
	ortOnce.Do(func() {
		if libPath == "" {
			libPath, ortErr = getSharedLibPath()
			if ortErr != nil {
				return
			}
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			ortErr = fmt.Errorf("initialize onnxruntime from %s: %w", libPath, err)
		}
	})
	return ortErr
}

// DestroyRuntime releases the ONNX Runtime environment. Sessions must be destroyed first.
func DestroyRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

func getSharedLibPath() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if runtime.GOARCH == "amd64" {
			return "./third_party/onnxruntime.dll", nil
		}
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.dylib", nil
		}
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}
	return "", fmt.Errorf("no onnxruntime library for %s/%s", runtime.GOOS, runtime.GOARCH)
}

// LoadNames reads one class label per line. CRLF endings and blank lines are ignored.
func LoadNames(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, l := range strings.Split(string(b), "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) != "" {
			names = append(names, l)
		}
	}
	return names, nil
}

func checkModelFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("model file: %w", err)
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("model file %s is empty or a directory", path)
	}
	return nil
}
