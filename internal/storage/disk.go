package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsageBytes returns the total size in bytes of the given paths, used by the
// status command for the catalog, index and upload directories. Directories are
// summed recursively. Missing paths and empty strings count as 0.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if errors.Is(err, fs.ErrNotExist) {
			if _, statErr := os.Lstat(p); errors.Is(statErr, fs.ErrNotExist) {
				continue
			}
		}
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
