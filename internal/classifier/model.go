package classifier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aigc_sentinel/internal/aidetect"
)

type ModelDir struct {
	Path     string
	Weights  string
	HasVocab bool
}

// CheckModelDir verifies that dir holds a loadable sequence classification
// model: config.json plus pytorch_model.bin or model.safetensors. vocab.txt is
// optional and only reported.
func CheckModelDir(dir string) (ModelDir, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return ModelDir{}, fmt.Errorf("%w: empty path", aidetect.ErrModelPathInvalid)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return ModelDir{}, fmt.Errorf("%w: %w", aidetect.ErrModelPathInvalid, err)
	}
	if !info.IsDir() {
		return ModelDir{}, fmt.Errorf("%w: %s is not a directory", aidetect.ErrModelPathInvalid, dir)
	}

	out := ModelDir{Path: dir}
	var missing []string
	if !fileExists(filepath.Join(dir, "config.json")) {
		missing = append(missing, "config.json")
	}
	for _, name := range []string{"pytorch_model.bin", "model.safetensors"} {
		if fileExists(filepath.Join(dir, name)) {
			out.Weights = name
			break
		}
	}
	if out.Weights == "" {
		missing = append(missing, "weights (pytorch_model.bin or model.safetensors)")
	}
	if len(missing) > 0 {
		return ModelDir{}, fmt.Errorf("%w: missing %s", aidetect.ErrModelPathInvalid, strings.Join(missing, ", "))
	}
	out.HasVocab = fileExists(filepath.Join(dir, "vocab.txt"))
	return out, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
