// verdict/pkg/compiler/loader.go

package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader provides source documents to the resolver. Paths are
// slash-separated and relative to the loader's root.
type Loader interface {
	// Read returns the raw bytes of one source document.
	Read(path string) ([]byte, error)

	// List returns the paths of every YAML document under dir,
	// recursively, in sorted order.
	List(dir string) ([]string, error)
}

// FileLoader reads source documents from a directory tree on disk.
type FileLoader struct {
	Root string
}

// NewFileLoader returns a loader rooted at dir.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{Root: dir}
}

func (l *FileLoader) Read(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(l.Root, filepath.FromSlash(path)))
}

func (l *FileLoader) List(dir string) ([]string, error) {
	root := filepath.Join(l.Root, filepath.FromSlash(dir))
	var out []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		rel, err := filepath.Rel(l.Root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// MemoryLoader serves documents from an in-memory map, keyed by path.
type MemoryLoader struct {
	Files map[string]string
}

func (l *MemoryLoader) Read(path string) ([]byte, error) {
	data, ok := l.Files[path]
	if !ok {
		return nil, fmt.Errorf("no such document: %s", path)
	}
	return []byte(data), nil
}

func (l *MemoryLoader) List(dir string) ([]string, error) {
	prefix := ""
	if dir != "" && dir != "." {
		prefix = strings.TrimSuffix(dir, "/") + "/"
	}
	var out []string
	for p := range l.Files {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}
