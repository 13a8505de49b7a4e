// verdict/pkg/store/store_test.go

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(map[string][]string{
		"blocked": {"KP", "IR"},
	})

	found, err := b.Contains(ctx, "blocked", "KP")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = b.Contains(ctx, "blocked", "NO")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Add(ctx, "blocked", "SY"))
	found, _ = b.Contains(ctx, "blocked", "SY")
	assert.True(t, found)

	require.NoError(t, b.Remove(ctx, "blocked", "KP"))
	found, _ = b.Contains(ctx, "blocked", "KP")
	assert.False(t, found)

	members, err := b.Members(ctx, "blocked")
	require.NoError(t, err)
	assert.Equal(t, []string{"IR", "SY"}, members)
}

func TestServiceRoutesByList(t *testing.T) {
	ctx := context.Background()
	svc := NewService()
	require.NoError(t, svc.Register(ListInfo{ID: "blocked", Backend: "memory"},
		NewMemoryBackend(map[string][]string{"blocked": {"KP"}})))
	require.NoError(t, svc.Register(ListInfo{ID: "trusted", Backend: "memory"},
		NewMemoryBackend(map[string][]string{"trusted": {"dev-1"}})))

	res, err := svc.Contains(ctx, "blocked", "KP")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "KP", res.MatchedValue)

	res, err = svc.Contains(ctx, "trusted", "KP")
	require.NoError(t, err)
	assert.False(t, res.Found)

	assert.Equal(t, []string{"blocked", "trusted"}, svc.KnownLists())
}

func TestServiceUnknownList(t *testing.T) {
	svc := NewService()
	_, err := svc.Contains(context.Background(), "ghost", "x")
	assert.Error(t, err)
}

func TestServiceDuplicateRegistration(t *testing.T) {
	svc := NewService()
	b := NewMemoryBackend(nil)
	require.NoError(t, svc.Register(ListInfo{ID: "a"}, b))
	assert.Error(t, svc.Register(ListInfo{ID: "a"}, b))
}

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lists.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
blocked:
  - KP
  - IR
trusted:
  - dev-1
`), 0o644))

	b, err := NewFileBackend(path)
	require.NoError(t, err)

	found, err := b.Contains(ctx, "blocked", "IR")
	require.NoError(t, err)
	assert.True(t, found)

	// Reload replaces the in-memory view wholesale.
	require.NoError(t, os.WriteFile(path, []byte("blocked: [SY]\n"), 0o644))
	require.NoError(t, b.Reload())

	found, _ = b.Contains(ctx, "blocked", "IR")
	assert.False(t, found)
	found, _ = b.Contains(ctx, "blocked", "SY")
	assert.True(t, found)
}

func TestFileBackendMissingFile(t *testing.T) {
	_, err := NewFileBackend(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
