package mlly

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// PathToURL converts a filesystem path into an absolute file URL with
// forward slashes.
func PathToURL(path string) string {
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// URLToPath converts a file URL back into a filesystem path. Values that
// carry no file scheme are returned unchanged, so plain paths pass through.
func URLToPath(location string) string {
	if !strings.HasPrefix(location, "file://") {
		return location
	}
	if u, err := url.Parse(location); err == nil {
		return filepath.FromSlash(u.Path)
	}
	return strings.TrimPrefix(location, "file://")
}

// hasResolvedScheme reports whether the specifier already carries a scheme
// that needs no resolution.
func hasResolvedScheme(specifier string) bool {
	return strings.HasPrefix(specifier, "http://") ||
		strings.HasPrefix(specifier, "https://") ||
		strings.HasPrefix(specifier, "data:") ||
		strings.HasPrefix(specifier, "file://") ||
		strings.HasPrefix(specifier, BuiltinScheme)
}

func isRelativeSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, "./") ||
		strings.HasPrefix(specifier, "../") ||
		strings.HasPrefix(specifier, "/")
}

func fileExists(filesystem afero.Fs, filename string) bool {
	info, err := filesystem.Stat(filename)
	return err == nil && !info.IsDir()
}
