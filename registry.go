package mlly

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/go-errors/errors"
	"github.com/grafana/sobek"
	"github.com/spf13/afero"
)

// moduleRegistry backs the runtime's host-resolve hook for exactly one load
// call. It exists so import cycles within a single evaluation terminate;
// nothing survives the call, keeping resolution cache-free across calls.
type moduleRegistry struct {
	loader  *Loader
	opts    Options
	records map[string]sobek.ModuleRecord
	urls    map[sobek.ModuleRecord]string
}

func newModuleRegistry(l *Loader, opts Options) *moduleRegistry {
	return &moduleRegistry{
		loader:  l,
		opts:    opts,
		records: make(map[string]sobek.ModuleRecord),
		urls:    make(map[sobek.ModuleRecord]string),
	}
}

// resolve is the host-resolve hook handed to every parsed module record.
// Relative specifiers resolve against the requesting module's own URL.
func (reg *moduleRegistry) resolve(referencing interface{}, specifier string) (sobek.ModuleRecord, error) {
	from := reg.opts.URL
	if record, ok := referencing.(sobek.ModuleRecord); ok {
		if u := reg.urls[record]; u != "" {
			from = u
		}
	}
	return reg.load(from, specifier)
}

func (reg *moduleRegistry) load(from, specifier string) (sobek.ModuleRecord, error) {
	if record, ok := reg.records[specifier]; ok {
		return record, nil
	}

	if strings.HasPrefix(specifier, "data:") {
		return reg.loadDataURL(specifier)
	}
	if name, ok := builtinName(specifier); ok || strings.HasPrefix(specifier, BuiltinScheme) {
		if !ok {
			name = strings.TrimPrefix(specifier, BuiltinScheme)
		}
		return nil, errors.Errorf("builtin module %q is not provided by the embedded runtime", name)
	}

	opts := reg.opts
	opts.From = from
	opts.URL = ""
	resolved, err := Resolve(specifier, opts)
	if err != nil {
		return nil, err
	}
	if record, ok := reg.records[resolved]; ok {
		return record, nil
	}

	filesystem := reg.opts.Fs
	if filesystem == nil {
		filesystem = afero.NewOsFs()
	}
	code, err := readSource(filesystem, URLToPath(resolved))
	if err != nil {
		return nil, errors.New(err)
	}

	// Every source entering the runtime goes through the same rewrite
	// pipeline, so dependencies get absolute specifiers and a correct
	// self-referential URL too.
	opts = reg.opts
	opts.From = resolved
	opts.URL = resolved
	transformed, err := TransformModule(string(code), opts)
	if err != nil {
		return nil, err
	}

	record, err := sobek.ParseModule(resolved, transformed, reg.resolve)
	if err != nil {
		return nil, errors.New(err)
	}
	reg.records[resolved] = record
	reg.urls[record] = resolved
	return record, nil
}

// loadDataURL decodes a self-contained module blob and parses it in place.
func (reg *moduleRegistry) loadDataURL(specifier string) (sobek.ModuleRecord, error) {
	body := specifier[strings.IndexByte(specifier, ',')+1:]
	meta := specifier[:strings.IndexByte(specifier, ',')+1]

	var code string
	if strings.Contains(meta, ";base64,") {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, errors.New(err)
		}
		code = string(decoded)
	} else if unescaped, err := url.PathUnescape(body); err == nil {
		code = unescaped
	} else {
		code = body
	}

	record, err := sobek.ParseModule(specifier, code, reg.resolve)
	if err != nil {
		return nil, errors.New(err)
	}
	reg.records[specifier] = record
	if reg.opts.URL != "" {
		reg.urls[record] = reg.opts.URL
	}
	return record, nil
}

// loadDynamic resolves and links the target of one import() expression.
func (reg *moduleRegistry) loadDynamic(referencing interface{}, specifier string) (sobek.ModuleRecord, error) {
	record, err := reg.resolve(referencing, specifier)
	if err != nil {
		return nil, err
	}
	if err := record.Link(); err != nil {
		return nil, errors.New(err)
	}
	return record, nil
}

// importDynamically serves import() expressions evaluated at runtime.
func (reg *moduleRegistry) importDynamically(referencing interface{}, specifier sobek.Value, promiseCapability interface{}) {
	record, err := reg.loadDynamic(referencing, specifier.String())
	reg.loader.runtime.FinishLoadingImportModule(referencing, specifier, promiseCapability, record, err)
}
