package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	assert.Equal(t, 0.8, GetMaxClipSeconds())
	assert.Equal(t, 1<<20, GetBufferSize())
	assert.Equal(t, "auto", GetBackend())
	assert.Equal(t, 29889, GetServerPort())
	assert.Equal(t, "smashspeed", filepath.Base(GetCacheDir()))
}

func TestSetOverrides(t *testing.T) {
	old := GetCacheDir()
	defer Set("trim.cache_dir", old)

	dir := t.TempDir()
	Set("trim.cache_dir", dir)
	assert.Equal(t, dir, GetCacheDir())

	Set("trim.buffer_size", 0)
	assert.Equal(t, 1<<20, GetBufferSize())
	Set("trim.buffer_size", 1<<20)
}
