package visioncore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CachedModel describes one .onnx file found in a ModelCache directory,
// matching original_source/src/app/services/yolo.py's
// list_cached_models entry shape.
type CachedModel struct {
	ModelName     string
	FilePath      string
	FileSizeBytes int64
	CreationTime  time.Time
	IsActive      bool
}

// ModelCache lists and deletes .onnx files in a cache directory, matching
// yolo.py's list_cached_models/delete_cached_model.
type ModelCache struct {
	dir string
}

// NewModelCache returns a ModelCache rooted at dir.
func NewModelCache(dir string) *ModelCache {
	return &ModelCache{dir: dir}
}

// List returns metadata for every .onnx file in the cache directory, or
// an empty slice if the directory does not exist.
func (c *ModelCache) List(activeModelPath string) ([]CachedModel, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("modelcache: read dir: %w", err)
	}

	var models []CachedModel
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".onnx") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		models = append(models, CachedModel{
			ModelName:     strings.TrimSuffix(entry.Name(), ".onnx"),
			FilePath:      path,
			FileSizeBytes: info.Size(),
			CreationTime:  info.ModTime(),
			IsActive:      path == activeModelPath,
		})
	}
	return models, nil
}

// Delete removes the named model's .onnx file and returns the number of
// bytes freed. It refuses to delete the active model (ErrModelActive) and
// reports ErrModelNotFound if no such file exists.
func (c *ModelCache) Delete(modelName, activeModelPath string) (int64, error) {
	path := filepath.Join(c.dir, modelName+".onnx")
	if path == activeModelPath {
		return 0, ErrModelActive
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, ErrModelNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("modelcache: stat: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return 0, fmt.Errorf("modelcache: remove: %w", err)
	}
	return info.Size(), nil
}
