package mlly

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/go-errors/errors"
	"github.com/grafana/sobek"
)

// errDirImport marks a specifier that resolved to a directory without a
// usable package entry point. It is a soft miss and drives the index
// fallback instead of failing the resolution.
var errDirImport = errors.New("unsupported directory import")

// NotFoundError reports a specifier that could not be resolved under any
// fallback candidate.
type NotFoundError struct {
	Specifier string
	Base      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cannot resolve module %q from %q", e.Specifier, e.Base)
}

// PackagePathError reports a package whose exports field does not expose the
// requested subpath under the active conditions. It is not a soft miss.
type PackagePathError struct {
	Subpath    string
	PackageDir string
}

func (e *PackagePathError) Error() string {
	return fmt.Sprintf("subpath %q is not exported by %s", e.Subpath, e.PackageDir)
}

// LoadError reports a module whose top-level evaluation threw. The thrown
// value passes through unchanged.
type LoadError struct {
	URL   string
	Value sobek.Value
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("evaluation of %s failed: %s", e.URL, e.Value)
}

// isSoftMiss classifies resolution failures that mean "try the next fallback
// candidate". Everything else propagates immediately.
func isSoftMiss(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, errDirImport) || stderrors.Is(err, os.ErrNotExist) {
		return true
	}
	var notFound *NotFoundError
	return stderrors.As(err, &notFound)
}
