package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Resolve lists the files a fetch produced for pattern, in lexical name order.
// It returns ErrNoFileFound when there are none.
func Resolve(pattern NamingPattern) ([]DiscoveredFile, error) {
	entries, err := os.ReadDir(pattern.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoFileFound
		}
		return nil, fmt.Errorf("failed to read download dir: %w", err)
	}

	var files []DiscoveredFile
	for _, entry := range entries {
		if entry.IsDir() || !pattern.Matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		files = append(files, DiscoveredFile{
			Path: filepath.Join(pattern.Dir, entry.Name()),
			Ext:  extension(entry.Name()),
			Size: info.Size(),
		})
	}

	if len(files) == 0 {
		return nil, ErrNoFileFound
	}
	return files, nil
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
