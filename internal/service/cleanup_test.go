package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touchUpload(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("doc"), 0644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestUploadSweeper_RemovesOnlyAgedFiles(t *testing.T) {
	dir := t.TempDir()
	stale := touchUpload(t, dir, "stale.pdf", 48*time.Hour)
	fresh := touchUpload(t, dir, "fresh.pdf", time.Hour)

	sweeper := NewUploadSweeper(dir, 24*time.Hour)
	removed, err := sweeper.Sweep(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestUploadSweeper_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0755))
	mtime := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(sub, mtime, mtime))

	sweeper := NewUploadSweeper(dir, 24*time.Hour)
	removed, err := sweeper.Sweep(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	_, err = os.Stat(sub)
	assert.NoError(t, err)
}

func TestUploadSweeper_MissingDirIsNotAnError(t *testing.T) {
	sweeper := NewUploadSweeper(filepath.Join(t.TempDir(), "does-not-exist"), time.Hour)

	removed, err := sweeper.Sweep(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
