package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joeblew999/greenery-map/internal/dataset"
)

// FileService lists the GeoJSON files in the data directory.
type FileService struct {
	dataDir string
	files   dataset.Files
}

// NewFileService creates a file service for dataDir.
func NewFileService(dataDir string, files dataset.Files) *FileService {
	return &FileService{dataDir: dataDir, files: files}
}

// List returns the GeoJSON files, sorted by name.
func (s *FileService) List() ([]DataFile, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []DataFile{}, nil
		}
		return nil, err
	}

	files := []DataFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".geojson", ".json":
		default:
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, DataFile{
			Name: entry.Name(),
			Size: formatSize(info.Size()),
			Role: s.role(entry.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// DataDir returns the watched data directory.
func (s *FileService) DataDir() string {
	return s.dataDir
}

func (s *FileService) role(name string) string {
	switch name {
	case s.files.Trees:
		return "trees"
	case s.files.Grid:
		return "grid"
	}
	return ""
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
