package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// audioExtensions are picked up when a directory is expanded.
var audioExtensions = map[string]bool{
	".dts":   true,
	".dtshd": true,
	".cpt":   true,
	".ogg":   true,
	".opus":  true,
}

// FileInfo describes one input file.
type FileInfo struct {
	Path string
	Size int64
}

func (f FileInfo) Name() string {
	return filepath.Base(f.Path)
}

func (f FileInfo) Extension() string {
	return strings.ToLower(filepath.Ext(f.Path))
}

// IsAudioFile reports whether name carries an extension the scanner handles.
func IsAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// Collect expands paths into the files to scan. A file named directly is
// always kept whatever its extension. Directories are walked recursively and
// contribute only audio files, in lexical order. Duplicates are dropped.
func Collect(paths []string) ([]FileInfo, error) {
	var files []FileInfo
	seen := make(map[string]bool)
	add := func(path string, size int64) {
		clean := filepath.Clean(path)
		if seen[clean] {
			return
		}
		seen[clean] = true
		files = append(files, FileInfo{Path: clean, Size: size})
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(path, info.Size())
			continue
		}

		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !IsAudioFile(d.Name()) {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			if !fi.Mode().IsRegular() {
				return nil
			}
			add(p, fi.Size())
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", path, err)
		}
	}
	return files, nil
}
