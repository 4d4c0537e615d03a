package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLocalSourceFSAdapter_Walk(t *testing.T) {
	t.Run("visits nested files in lexical order", func(t *testing.T) {
		adapter := NewLocalSourceFSAdapter()

		root := t.TempDir()
		writeTestFile(t, filepath.Join(root, "b.py"), "")
		writeTestFile(t, filepath.Join(root, "a", "child.py"), "")

		var visited []string
		err := adapter.Walk(context.Background(), m.Path(root), func(path string, _ os.FileInfo, err error) error {
			require.NoError(t, err)
			rel, _ := filepath.Rel(root, path)
			visited = append(visited, filepath.ToSlash(rel))

			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{".", "a", "a/child.py", "b.py"}, visited)
	})

	t.Run("SkipDir prunes a directory", func(t *testing.T) {
		adapter := NewLocalSourceFSAdapter()

		root := t.TempDir()
		writeTestFile(t, filepath.Join(root, "skip", "hidden.py"), "")
		writeTestFile(t, filepath.Join(root, "keep.py"), "")

		var visited []string
		err := adapter.Walk(context.Background(), m.Path(root), func(path string, info os.FileInfo, _ error) error {
			if info.IsDir() && info.Name() == "skip" {
				return SkipDir
			}

			visited = append(visited, filepath.Base(path))

			return nil
		})
		require.NoError(t, err)
		assert.NotContains(t, visited, "hidden.py")
		assert.Contains(t, visited, "keep.py")
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		adapter := NewLocalSourceFSAdapter()

		root := t.TempDir()
		writeTestFile(t, filepath.Join(root, "a.py"), "")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := adapter.Walk(ctx, m.Path(root), func(string, os.FileInfo, error) error { return nil })
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestLocalSourceFSAdapter_ReadFile(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	root := t.TempDir()
	path := filepath.Join(root, "main.py")
	writeTestFile(t, path, "print('hi')\n")

	t.Run("reads content", func(t *testing.T) {
		content, err := adapter.ReadFile(context.Background(), m.Path(path))
		require.NoError(t, err)
		assert.Equal(t, "print('hi')\n", string(content))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := adapter.ReadFile(context.Background(), m.Path(filepath.Join(root, "missing.py")))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("expired context", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()

		<-ctx.Done()

		_, err := adapter.ReadFile(ctx, m.Path(path))
		require.Error(t, err)
	})
}

func TestLocalSourceFSAdapter_PathHelpers(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()
	ctx := context.Background()

	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "pkg", "mod.py"), "")

	info, err := adapter.FileInfo(ctx, m.Path(root))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	rel, err := adapter.RelPath(ctx, m.Path(root), m.Path(filepath.Join(root, "pkg", "mod.py")))
	require.NoError(t, err)
	assert.Equal(t, m.Path(filepath.Join("pkg", "mod.py")), rel)

	assert.Equal(t, m.Path(filepath.Join(root, "pkg")), adapter.JoinPath(ctx, root, "pkg"))
}
