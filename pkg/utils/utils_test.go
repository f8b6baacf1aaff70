package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileMD5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	err := os.WriteFile(path, []byte("hello"), 0644)
	assert.NoError(t, err)

	md5, err := FileMD5(path)
	assert.NoError(t, err)
	// md5("hello")
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", md5)

	_, err = FileMD5(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	assert.False(t, FileExists(path))
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	assert.True(t, FileExists(path))
}
