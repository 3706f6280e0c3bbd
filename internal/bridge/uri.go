package bridge

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/diwenne/smashspeed-rn/internal/media"
)

// ResolveURI turns a source locator into a local path. Plain paths and
// file:// URIs are accepted; any other scheme wraps media.ErrSourceOpen.
func ResolveURI(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", errors.Wrap(media.ErrSourceOpen, "empty source locator")
	}
	if !strings.Contains(locator, "://") && !strings.HasPrefix(locator, "file:") {
		return filepath.Clean(locator), nil
	}

	u, err := url.Parse(locator)
	if err != nil {
		return "", errors.Wrapf(media.ErrSourceOpen, "%s: %v", locator, err)
	}
	if u.Scheme != "file" {
		return "", errors.Wrapf(media.ErrSourceOpen, "%s: unsupported scheme %q", locator, u.Scheme)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", errors.Wrapf(media.ErrSourceOpen, "%s: remote host %q", locator, u.Host)
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	if path == "" {
		return "", errors.Wrapf(media.ErrSourceOpen, "%s: no path", locator)
	}
	return filepath.Clean(path), nil
}

// FileURI returns the file:// URI of path.
func FileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
