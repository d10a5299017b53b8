package mlly

import (
	"io"
	"os"
	"strings"

	"github.com/go-errors/errors"
	"github.com/spf13/afero"
)

// readSource reads one module source file through the configured filesystem.
func readSource(filesystem afero.Fs, filename string) ([]byte, error) {
	file, err := filesystem.OpenFile(filename, os.O_RDONLY, os.ModePerm)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// ReadModule resolves a specifier and reads its source text, so on-disk
// modules can be pushed through the same rewrite pipeline as inline text.
func ReadModule(specifier string, opts Options) (*ModuleSource, error) {
	resolved, err := Resolve(specifier, opts)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(resolved, BuiltinScheme) {
		return nil, errors.Errorf("builtin module %q has no source text", specifier)
	}

	filesystem := opts.Fs
	if filesystem == nil {
		filesystem = afero.NewOsFs()
	}
	code, err := readSource(filesystem, URLToPath(resolved))
	if err != nil {
		return nil, errors.New(err)
	}
	return &ModuleSource{URL: resolved, Code: string(code)}, nil
}
