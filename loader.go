package mlly

import (
	"encoding/base64"
	"strings"

	"github.com/apex/log"
	"github.com/go-errors/errors"
	"github.com/grafana/sobek"
	uuid "github.com/satori/go.uuid"
)

const dataURLPrefix = "data:text/javascript;base64,"

// Loader executes rewritten module source through an embedded JavaScript
// runtime. Transformed text is encoded as a self-contained data URL and
// loaded through the runtime's module machinery, so no source ever touches
// persistent storage. A Loader owns a single runtime and must not be used
// from multiple goroutines at once.
type Loader struct {
	id       string
	runtime  *sobek.Runtime
	defaults Options
}

// NewLoader creates a loader with a fresh runtime bound to default options.
func NewLoader(defaults Options) *Loader {
	return &Loader{
		id:       uuid.NewV4().String(),
		runtime:  sobek.New(),
		defaults: defaults,
	}
}

// Runtime exposes the underlying runtime, e.g. for exporting returned
// values into Go structs.
func (l *Loader) Runtime() *sobek.Runtime {
	return l.runtime
}

// EvalModule transforms and executes inline module source, suspending until
// top-level evaluation has finished, and returns the module namespace.
func (l *Loader) EvalModule(code string, opts Options) (*sobek.Object, error) {
	opts = l.merged(opts)
	transformed, err := TransformModule(code, opts)
	if err != nil {
		return nil, err
	}

	encoded := dataURLPrefix + base64.StdEncoding.EncodeToString([]byte(transformed))
	log.WithField("loader", l.id).WithField("bytes", len(transformed)).
		Debug("evaluating encoded module")
	return l.importModule(encoded, opts)
}

// LoadModule resolves a specifier, reads its source and executes it through
// the same rewrite pipeline as inline text.
func (l *Loader) LoadModule(specifier string, opts Options) (*sobek.Object, error) {
	opts = l.merged(opts)
	source, err := ReadModule(specifier, opts)
	if err != nil {
		return nil, err
	}
	opts.URL = source.URL
	opts.From = source.URL
	return l.EvalModule(source.Code, opts)
}

// EvalModule executes inline module source in a one-shot loader.
func EvalModule(code string, opts Options) (*sobek.Object, error) {
	return NewLoader(Options{}).EvalModule(code, opts)
}

// LoadModule loads a module by specifier in a one-shot loader.
func LoadModule(specifier string, opts Options) (*sobek.Object, error) {
	return NewLoader(Options{}).LoadModule(specifier, opts)
}

func (l *Loader) importModule(specifier string, opts Options) (*sobek.Object, error) {
	registry := newModuleRegistry(l, opts)

	record, err := registry.load(opts.URL, specifier)
	if err != nil {
		return nil, err
	}
	if err := record.Link(); err != nil {
		return nil, errors.New(err)
	}

	// Dynamic import() inside the evaluated code is served by the same
	// per-call registry.
	l.runtime.SetImportModuleDynamically(registry.importDynamically)

	promise := record.Evaluate(l.runtime)
	switch promise.State() {
	case sobek.PromiseStateRejected:
		return nil, errors.New(&LoadError{URL: moduleDisplayURL(specifier, opts), Value: promise.Result()})
	case sobek.PromiseStatePending:
		return nil, errors.Errorf("evaluation of %s did not settle", moduleDisplayURL(specifier, opts))
	}

	return l.runtime.NamespaceObjectFor(record), nil
}

func (l *Loader) merged(opts Options) Options {
	if opts.From == "" {
		opts.From = l.defaults.From
	}
	if opts.URL == "" {
		opts.URL = l.defaults.URL
	}
	if opts.Conditions == nil {
		opts.Conditions = l.defaults.Conditions
	}
	if opts.Extensions == nil {
		opts.Extensions = l.defaults.Extensions
	}
	if opts.Fs == nil {
		opts.Fs = l.defaults.Fs
	}
	return opts
}

// moduleDisplayURL keeps encoded blobs out of error messages.
func moduleDisplayURL(specifier string, opts Options) string {
	if strings.HasPrefix(specifier, "data:") {
		if opts.URL != "" {
			return opts.URL
		}
		return "inline module"
	}
	return specifier
}
