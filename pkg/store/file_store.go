// verdict/pkg/store/file_store.go

package store

import (
	"context"
	"os"

	"gopkg.in/yaml.v3"

	"calder/verdict/pkg/logging"
)

// FileBackend serves lists from one YAML file mapping list IDs to value
// sequences. The file is read once at construction; Reload picks up
// edits. Writes through Add and Remove change only the in-memory view.
type FileBackend struct {
	path string
	mem  *MemoryBackend
}

// NewFileBackend loads the list file at path.
func NewFileBackend(path string) (*FileBackend, error) {
	b := &FileBackend{path: path}
	if err := b.Reload(); err != nil {
		return nil, err
	}
	return b, nil
}

// Reload re-reads the backing file, replacing the in-memory view
// wholesale.
func (b *FileBackend) Reload() error {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return logging.NewError(logging.ErrorTypeStore, "failed to read list file", err,
			map[string]interface{}{"path": b.path})
	}
	var lists map[string][]string
	if err := yaml.Unmarshal(data, &lists); err != nil {
		return logging.NewError(logging.ErrorTypeStore, "failed to parse list file", err,
			map[string]interface{}{"path": b.path})
	}
	b.mem = NewMemoryBackend(lists)
	logging.Logger.Info().Str("path", b.path).Int("lists", len(lists)).Msg("Loaded list file")
	return nil
}

func (b *FileBackend) Contains(ctx context.Context, listID, value string) (bool, error) {
	return b.mem.Contains(ctx, listID, value)
}

func (b *FileBackend) Add(ctx context.Context, listID string, values ...string) error {
	return b.mem.Add(ctx, listID, values...)
}

func (b *FileBackend) Remove(ctx context.Context, listID string, values ...string) error {
	return b.mem.Remove(ctx, listID, values...)
}

func (b *FileBackend) Members(ctx context.Context, listID string) ([]string, error) {
	return b.mem.Members(ctx, listID)
}

func (b *FileBackend) Close() error { return nil }
