package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasklist/internal/platform/logger"
	"github.com/phrazzld/tasklist/internal/store"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := New(root, logger.DiscardLogger())
	require.NoError(t, err)
	return s, root
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", logger.DiscardLogger())
	assert.Error(t, err)
	_, err = New(t.TempDir(), nil)
	assert.Error(t, err)
}

func TestStore_SaveAndLoad(t *testing.T) {
	s, root := newTestStore(t)
	ctx := context.Background()

	version, err := s.SaveContents(ctx, "todo.txt", []string{"(A) one", "two"}, store.EOLWindows)
	require.NoError(t, err)
	assert.NotEmpty(t, version)

	raw, err := os.ReadFile(filepath.Join(root, "todo.txt"))
	require.NoError(t, err)
	assert.Equal(t, "(A) one\r\ntwo\r\n", string(raw))

	contents, err := s.LoadContents(ctx, "todo.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"(A) one", "two"}, contents.Lines)
	assert.Equal(t, version, contents.RemoteID)

	remote, err := s.RemoteVersion(ctx, "todo.txt")
	require.NoError(t, err)
	assert.Equal(t, version, remote)

	_, err = os.Stat(filepath.Join(root, "todo.txt.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_MissingFile(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadContents(ctx, "missing.txt")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.True(t, store.IsNotFoundError(err))

	version, err := s.RemoteVersion(ctx, "missing.txt")
	require.NoError(t, err)
	assert.Empty(t, version)
}

func TestStore_VersionChangesOnExternalEdit(t *testing.T) {
	s, root := newTestStore(t)
	ctx := context.Background()

	before, err := s.SaveContents(ctx, "todo.txt", []string{"a"}, "")
	require.NoError(t, err)

	path := filepath.Join(root, "todo.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0o644))
	later := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	after, err := s.RemoteVersion(ctx, "todo.txt")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestStore_AppendContents(t *testing.T) {
	s, root := newTestStore(t)
	ctx := context.Background()
	path := filepath.Join(root, "done.txt")

	require.NoError(t, s.AppendContents(ctx, "done.txt", []string{"x first"}, ""))
	require.NoError(t, os.WriteFile(path, []byte("x first\nx unterminated"), 0o644))
	require.NoError(t, s.AppendContents(ctx, "done.txt", []string{"x second"}, ""))
	require.NoError(t, s.AppendContents(ctx, "done.txt", nil, ""))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x first\nx unterminated\nx second\n", string(raw))
}

func TestStore_ListFiles(t *testing.T) {
	s, root := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, os.Mkdir(filepath.Join(root, "archive"), 0o755))
	for _, name := range []string{"todo.txt", "notes.md", "done.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), nil, 0o644))
	}
	_, err := s.SaveContents(ctx, "todo.txt", []string{"a"}, "")
	require.NoError(t, err)

	all, err := s.ListFiles(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, []store.FileEntry{
		{Name: "archive", IsFolder: true},
		{Name: "done.txt"},
		{Name: "notes.md"},
		{Name: "todo.txt"},
	}, all)

	txt, err := s.ListFiles(ctx, "", true)
	require.NoError(t, err)
	assert.Len(t, txt, 3)

	_, err = s.ListFiles(ctx, "nope", true)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_LockHonorsContext(t *testing.T) {
	s, root := newTestStore(t)
	path := filepath.Join(root, "todo.txt")

	unlock, err := s.lock(context.Background(), path, true)
	require.NoError(t, err)
	defer unlock()

	// A second handle on the same lock file blocks until the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = s.SaveContents(ctx, "todo.txt", []string{"a"}, "")
	assert.ErrorIs(t, err, store.ErrIOFailure)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStore_Resolve(t *testing.T) {
	s, root := newTestStore(t)

	assert.Equal(t, filepath.Join(root, DefaultFileName), s.Resolve(""))
	assert.Equal(t, filepath.Join(root, "sub", "list.txt"), s.Resolve("sub/list.txt"))
	abs := filepath.Join(t.TempDir(), "elsewhere.txt")
	assert.Equal(t, abs, s.Resolve(abs))
	assert.True(t, s.IsOnline())
	assert.True(t, s.IsAuthenticated())
}
