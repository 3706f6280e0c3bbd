package util

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dchest/uniuri"
)

// ClipPrefix starts the file name of every trimmed clip.
const ClipPrefix = "trimmed-"

// UniqueName returns a file name of the form prefix<unix millis>-<random>ext.
func UniqueName(prefix, ext string) string {
	return fmt.Sprintf("%s%d-%s%s", prefix, time.Now().UnixMilli(), strings.ToLower(uniuri.NewLen(8)), ext)
}

// UniqueClipPath returns a fresh clip path inside dir.
func UniqueClipPath(dir string) string {
	return filepath.Join(dir, UniqueName(ClipPrefix, ".mp4"))
}

// IsClipName reports whether name looks like a file produced by UniqueClipPath.
func IsClipName(name string) bool {
	return strings.HasPrefix(name, ClipPrefix) && strings.HasSuffix(name, ".mp4") &&
		filepath.Base(name) == name
}
