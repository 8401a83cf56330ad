// Package gateway connects delta jobs to the outside world: script files,
// live clusters, token issuers and blob storage.
package gateway

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ScriptFile is one script read from disk.
type ScriptFile struct {
	Path    string
	Content string
}

// FileGateway reads scripts and writes deltas on an afero file system.
type FileGateway struct {
	fs afero.Fs
}

// NewFileGateway wraps fs; a nil fs means the OS file system.
func NewFileGateway(fsys afero.Fs) *FileGateway {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileGateway{fs: fsys}
}

// ReadFile returns one script file.
func (g *FileGateway) ReadFile(filePath string) (ScriptFile, error) {
	data, err := afero.ReadFile(g.fs, filePath)
	if err != nil {
		return ScriptFile{}, fmt.Errorf("read script %s: %w", filePath, err)
	}
	return ScriptFile{Path: filePath, Content: string(data)}, nil
}

// ListFolder reads every file under folder whose extension matches one of
// extensions, recursively and sorted by path. Extensions match with or
// without the leading dot and ignore case; an empty list matches all files.
func (g *FileGateway) ListFolder(folder string, extensions []string) ([]ScriptFile, error) {
	info, err := g.fs.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("list script folder %s: %w", folder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("list script folder %s: not a directory", folder)
	}
	wanted := normalizeExtensions(extensions)
	var paths []string
	err = afero.Walk(g.fs, folder, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !matchesExtension(p, wanted) {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list script folder %s: %w", folder, err)
	}
	sort.Strings(paths)
	files := make([]ScriptFile, 0, len(paths))
	for _, p := range paths {
		file, err := g.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

// WriteFile writes content, creating parent directories as needed.
func (g *FileGateway) WriteFile(filePath, content string) error {
	if dir := filepath.Dir(filePath); dir != "" && dir != "." {
		if err := g.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create folder %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(g.fs, filePath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filePath, err)
	}
	return nil
}

func normalizeExtensions(extensions []string) map[string]struct{} {
	if len(extensions) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		out[strings.TrimPrefix(ext, ".")] = struct{}{}
	}
	return out
}

func matchesExtension(p string, wanted map[string]struct{}) bool {
	if len(wanted) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filepath.ToSlash(p)), "."))
	_, ok := wanted[ext]
	return ok
}
