package detection

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"sentinel-worker-go/internal/models"
)

// ModelExtensions are the file types offered as selectable models
var ModelExtensions = []string{".onnx", ".pt"}

// Catalog lists the models found directly under dir, plus the active path
// when it lives elsewhere. A missing directory yields only the active model.
func Catalog(dir, current string) []models.ModelInfo {
	var paths []string

	entries, err := os.ReadDir(dir)
	if err == nil {
		files := lo.Filter(entries, func(e os.DirEntry, _ int) bool {
			return !e.IsDir() && lo.Contains(ModelExtensions, strings.ToLower(filepath.Ext(e.Name())))
		})
		paths = lo.Map(files, func(e os.DirEntry, _ int) string {
			return filepath.Join(dir, e.Name())
		})
		sort.Strings(paths)
	}

	if current != "" && !lo.ContainsBy(paths, func(p string) bool { return samePath(p, current) }) {
		paths = append([]string{current}, paths...)
	}

	return lo.Map(paths, func(p string, _ int) models.ModelInfo {
		return models.ModelInfo{Name: ModelName(p), Path: p}
	})
}

// ModelName is the display name of a model path: its base name without extension.
// Remote paths use their final path segment.
func ModelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
