//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasklist/internal/platform/logger"
	"github.com/phrazzld/tasklist/internal/platform/postgres"
	"github.com/phrazzld/tasklist/internal/store"
	"github.com/phrazzld/tasklist/internal/testdb"
)

func TestStoreIntegration(t *testing.T) {
	db := testdb.GetTestDB(t)
	s, err := postgres.NewStore(db, logger.DiscardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), testdb.TestTimeout)
	defer cancel()

	t.Run("missing file", func(t *testing.T) {
		_, err := s.LoadContents(ctx, "missing.txt")
		assert.ErrorIs(t, err, store.ErrNotFound)

		version, err := s.RemoteVersion(ctx, "missing.txt")
		require.NoError(t, err)
		assert.Empty(t, version)
	})

	t.Run("save bumps the version", func(t *testing.T) {
		v1, err := s.SaveContents(ctx, "todo.txt", []string{"one"}, "\n")
		require.NoError(t, err)
		v2, err := s.SaveContents(ctx, "todo.txt", []string{"one", "two"}, "\n")
		require.NoError(t, err)
		assert.NotEqual(t, v1, v2)

		contents, err := s.LoadContents(ctx, "todo.txt")
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two"}, contents.Lines)
		assert.Equal(t, v2, contents.RemoteID)

		remote, err := s.RemoteVersion(ctx, "todo.txt")
		require.NoError(t, err)
		assert.Equal(t, v2, remote)
	})

	t.Run("append creates and extends", func(t *testing.T) {
		require.NoError(t, s.AppendContents(ctx, "done.txt", []string{"x a"}, "\n"))
		require.NoError(t, s.AppendContents(ctx, "done.txt", []string{"x b"}, "\n"))

		contents, err := s.LoadContents(ctx, "done.txt")
		require.NoError(t, err)
		assert.Equal(t, []string{"x a", "x b"}, contents.Lines)
	})

	t.Run("list files", func(t *testing.T) {
		entries, err := s.ListFiles(ctx, "", true)
		require.NoError(t, err)
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name)
		}
		assert.ElementsMatch(t, []string{"todo.txt", "done.txt"}, names)
	})
}
