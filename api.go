package mlly

import "github.com/spf13/afero"

// BuiltinScheme prefixes the identifiers returned for host builtin modules.
// Builtins never touch the filesystem.
const BuiltinScheme = "builtin:"

var (
	// DefaultConditions is the condition set applied when none is configured.
	DefaultConditions = []string{"node", "import"}

	// DefaultExtensions is the ordered suffix list tried for extensionless
	// specifiers.
	DefaultExtensions = []string{".mjs", ".cjs", ".js", ".json"}
)

// Options configures a single resolution, rewrite or load. The zero value is
// usable: resolution starts at the current working directory against the
// operating system filesystem.
type Options struct {
	// From is the resolution origin, either a file URL or a plain path.
	// Defaults to URL when only URL is given, otherwise to the current
	// working directory.
	From string

	// URL is the nominal location of the module itself. It replaces the
	// import.meta.url expression during rewrites and defaults to From.
	URL string

	// Conditions select among conditional export targets of packages.
	Conditions []string

	// Extensions is the ordered candidate suffix list for extensionless
	// specifiers.
	Extensions []string

	// Fs is the filesystem resolution and reads run against.
	Fs afero.Fs
}

// ModuleSource is the outcome of reading a module by specifier.
type ModuleSource struct {
	URL  string
	Code string
}

// Resolver is a convenience resolver bound to a set of default options.
type Resolver struct {
	defaults Options
}

// CreateResolver binds default options into a reusable resolver.
func CreateResolver(defaults Options) *Resolver {
	return &Resolver{defaults: defaults}
}

// Resolve resolves the specifier against the bound defaults. An optional
// origin overrides the bound From for this call only.
func (r *Resolver) Resolve(specifier string, from ...string) (string, error) {
	opts := r.defaults
	if len(from) > 0 && from[0] != "" {
		opts.From = from[0]
	}
	return Resolve(specifier, opts)
}

// ResolvePath is Resolve yielding a filesystem path instead of a URL.
func (r *Resolver) ResolvePath(specifier string, from ...string) (string, error) {
	resolved, err := r.Resolve(specifier, from...)
	if err != nil {
		return "", err
	}
	return URLToPath(resolved), nil
}
