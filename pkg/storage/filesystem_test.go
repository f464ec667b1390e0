package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.SaveStream("start/2024/05/01/a.jpg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "start/2024/05/01/a.jpg", rel)

	file, err := store.Open(rel)
	require.NoError(t, err)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	assert.Equal(t, "jpeg-bytes", string(data))

	require.NoError(t, store.Delete(rel))
	require.NoError(t, store.Delete(rel))
	_, err = os.Stat(store.Path(rel))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("../outside.jpg", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = store.Open("/etc/passwd")
	assert.Error(t, err)
}

func TestLocalStorageCleanupKeepsReferenced(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.SaveStream("keep.jpg", strings.NewReader("k"))
	require.NoError(t, err)
	_, err = store.SaveStream("orphan.jpg", strings.NewReader("o"))
	require.NoError(t, err)
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "keep.jpg"), old, old))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "orphan.jpg"), old, old))

	deleted, err := store.CleanupOlderThan(24*time.Hour, func(rel string) bool { return rel == "keep.jpg" })
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan.jpg"}, deleted)
	_, err = os.Stat(filepath.Join(dir, "keep.jpg"))
	assert.NoError(t, err)
}
