package wal

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func removeAllFilesBefore(dir string, names []string, keep string) {
	for _, name := range names {
		if name == keep {
			return
		}
		if !strings.HasSuffix(name, ".wal") {
			continue
		}
		/* ignore return value */
		os.Remove(filepath.Join(dir, name))
	}
}

// readDir returns the filenames in the given directory in sorted order.
func readDir(dirPath string) ([]string, error) {
	dir, err := os.Open(dirPath)
	if err != nil {
		return nil, err
	}
	defer dir.Close()
	names, err := dir.Readdirnames(-1)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func closeAll(files ...*os.File) {
	for i := 0; i < len(files); i++ {
		files[i].Close()
	}
}
