package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/mcqgen/internal/extract"
	"github.com/hyperjump/mcqgen/internal/models"
)

// CollectFiles walks dir and returns regular files whose extension is in allowedExts,
// or every supported file when allowedExts is empty. Subdirectories are visited only
// when recursive is set.
func CollectFiles(dir string, allowedExts []string, recursive bool) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	var files []string
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !Allowed(path, allowedExts) {
			return nil
		}
		// Resolve symlinks so only regular files are ingested.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// Allowed reports whether path has an extension in allowed (case-insensitive, with or
// without the leading dot) and a loader for it. An empty allowed list accepts every
// supported extension.
func Allowed(path string, allowed []string) bool {
	if !extract.Supported(path) {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}

// IngestDirectory ingests every matching file under dir in place.
func (s *Service) IngestDirectory(ctx context.Context, sessionID, dir string, allowedExts []string, recursive bool) (*models.IngestReport, error) {
	files, err := CollectFiles(dir, allowedExts, recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no matching files in %s", ErrNoDocuments, dir)
	}
	return s.IngestFiles(ctx, sessionID, files)
}
