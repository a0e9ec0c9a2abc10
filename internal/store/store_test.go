package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "flags.db"))
	require.NoError(t, err)
	file, err := OpenFileStore(t.TempDir())
	require.NoError(t, err)
	stores := map[string]Store{"memory": NewMemory(), "sqlite": sqlite, "msgpack": file}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			flags, err := s.Load(ctx, "/ws/a")
			require.NoError(t, err)
			assert.Empty(t, flags)

			require.NoError(t, s.Save(ctx, "/ws/a", "wrapping.wrapWithPadding", false))
			require.NoError(t, s.Save(ctx, "/ws/a", "wrapping.wrapWithCenter", false))
			require.NoError(t, s.Save(ctx, "/ws/a", "wrapping.wrapWithCenter", true))
			require.NoError(t, s.Save(ctx, "/ws/b", "wrapping.wrapWithRow", false))

			flags, err = s.Load(ctx, "/ws/a")
			require.NoError(t, err)
			assert.Equal(t, map[string]bool{
				"wrapping.wrapWithPadding": false,
				"wrapping.wrapWithCenter":  true,
			}, flags)

			flags, err = s.Load(ctx, "/ws/b")
			require.NoError(t, err)
			assert.Equal(t, map[string]bool{"wrapping.wrapWithRow": false}, flags)
		})
	}
}

func TestSQLiteReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "flags.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "/ws", "wrapping.wrapWithCard", false))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	flags, err := s.Load(ctx, "/ws")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"wrapping.wrapWithCard": false}, flags)
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), "/ws", "wrapping.wrapWithCard", true))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, workspaceKey("/ws")+".mp", entries[0].Name())
}

func TestFileStoreCorrupt(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, workspaceKey("/ws")+".mp"), []byte{0xc1}, 0o644))
	_, err = s.Load(context.Background(), "/ws")
	assert.Error(t, err)
}

func TestMemoryLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Save(ctx, "ws", "a", true))
	flags, _ := m.Load(ctx, "ws")
	flags["a"] = false
	again, _ := m.Load(ctx, "ws")
	assert.True(t, again["a"])
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, b)
	b, err = ParseBackend(" MsgPack ")
	require.NoError(t, err)
	assert.Equal(t, BackendMsgpack, b)
	_, err = ParseBackend("redis")
	assert.Error(t, err)
}

func TestOpenDefaultLocation(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	s, err := Open(BackendMsgpack, "")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Save(context.Background(), "/ws", "x", true))
	_, err = os.Stat(filepath.Join(os.Getenv("XDG_CACHE_HOME"), appName, "flags"))
	assert.NoError(t, err)
}
