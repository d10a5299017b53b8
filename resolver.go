package mlly

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/go-errors/errors"
	"github.com/spf13/afero"
)

// Resolve maps one specifier and one context to the canonical absolute URL
// of the target module. Resolution is pure: nothing is cached between calls
// and every call re-reads the filesystem.
func Resolve(specifier string, opts Options) (string, error) {
	return newResolveContext(opts).resolve(specifier)
}

// ResolvePath is Resolve yielding a filesystem path instead of a URL.
func ResolvePath(specifier string, opts Options) (string, error) {
	resolved, err := Resolve(specifier, opts)
	if err != nil {
		return "", err
	}
	return URLToPath(resolved), nil
}

type resolveContext struct {
	from       string
	url        string
	conditions map[string]bool
	extensions []string
	fs         afero.Fs
}

func newResolveContext(opts Options) *resolveContext {
	ctx := &resolveContext{
		from:       opts.From,
		url:        opts.URL,
		extensions: opts.Extensions,
		fs:         opts.Fs,
	}

	// Plain paths are accepted for both the origin and the nominal URL;
	// they are normalized to file URLs before the two default to each
	// other, so relative imports resolve relative to the module's own
	// location and the self-referential URL is always a URL literal.
	if ctx.from != "" && !hasResolvedScheme(ctx.from) {
		ctx.from = PathToURL(ctx.from)
	}
	if ctx.url != "" && !hasResolvedScheme(ctx.url) {
		ctx.url = PathToURL(ctx.url)
	}
	if ctx.from == "" {
		ctx.from = ctx.url
	}
	if ctx.url == "" {
		ctx.url = ctx.from
	}
	if ctx.from == "" {
		if wd, err := os.Getwd(); err == nil {
			ctx.from = PathToURL(wd)
		}
	}

	conditions := opts.Conditions
	if conditions == nil {
		conditions = DefaultConditions
	}
	ctx.conditions = make(map[string]bool, len(conditions)+1)
	for _, condition := range conditions {
		ctx.conditions[condition] = true
	}
	ctx.conditions["default"] = true

	if ctx.extensions == nil {
		ctx.extensions = DefaultExtensions
	}
	if ctx.fs == nil {
		ctx.fs = afero.NewOsFs()
	}
	return ctx
}

func (ctx *resolveContext) resolve(specifier string) (string, error) {
	// Already carrying a scheme means already resolved.
	if hasResolvedScheme(specifier) {
		return specifier, nil
	}

	// Builtins short-circuit before anything touches the filesystem.
	if name, ok := builtinName(specifier); ok {
		return BuiltinScheme + name, nil
	}

	resolved, err := ctx.resolveLiteral(specifier)
	if err == nil {
		return ctx.canonicalize(resolved)
	}
	if !isSoftMiss(err) {
		return "", err
	}

	// Retry with {no suffix, /index} x {each extension}, no-suffix
	// candidates first, stopping at the first hit.
	for _, suffix := range []string{"", "/index"} {
		for _, extension := range ctx.extensions {
			candidate := specifier + suffix + extension
			resolved, err = ctx.resolveLiteral(candidate)
			if err == nil {
				log.WithField("specifier", specifier).
					WithField("candidate", candidate).
					Debug("resolved by suffix fallback")
				return ctx.canonicalize(resolved)
			}
			if !isSoftMiss(err) {
				return "", err
			}
		}
	}

	return "", errors.New(&NotFoundError{Specifier: specifier, Base: ctx.from})
}

// resolveLiteral attempts host-semantics resolution of one literal specifier
// without any suffix fallback.
func (ctx *resolveContext) resolveLiteral(specifier string) (string, error) {
	if isRelativeSpecifier(specifier) || strings.HasPrefix(specifier, "file://") {
		path := URLToPath(specifier)
		if !filepath.IsAbs(path) {
			path = filepath.Join(ctx.baseDir(), path)
		}
		return ctx.resolveFile(path)
	}
	return ctx.resolvePackage(specifier)
}

// resolveFile resolves a filesystem path to a module file. Directories are
// entered through their package.json main field when present, otherwise the
// directory import is a soft miss.
func (ctx *resolveContext) resolveFile(path string) (string, error) {
	info, err := ctx.fs.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return PathToURL(path), nil
	}

	pkg, err := ctx.readPackageJSON(path)
	if err != nil {
		return "", err
	}
	if pkg != nil && pkg.Main != "" {
		return ctx.resolveMain(path, pkg.Main)
	}
	return "", errDirImport
}

// resolveMain resolves the legacy main field of a package, with its own
// small suffix ladder since main targets routinely omit the extension.
func (ctx *resolveContext) resolveMain(packageDir, main string) (string, error) {
	target := filepath.Join(packageDir, main)
	if fileExists(ctx.fs, target) {
		return PathToURL(target), nil
	}
	for _, suffix := range []string{"", "/index"} {
		for _, extension := range ctx.extensions {
			candidate := target + suffix + extension
			if fileExists(ctx.fs, candidate) {
				return PathToURL(candidate), nil
			}
		}
	}
	return "", errDirImport
}

// resolvePackage resolves a bare specifier by walking node_modules
// directories upwards from the resolution origin.
func (ctx *resolveContext) resolvePackage(specifier string) (string, error) {
	name, subpath := splitPackageSpecifier(specifier)

	dir := ctx.baseDir()
	for {
		packageDir := filepath.Join(dir, "node_modules", name)
		if info, err := ctx.fs.Stat(packageDir); err == nil && info.IsDir() {
			return ctx.resolveInPackage(packageDir, subpath)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

func (ctx *resolveContext) resolveInPackage(packageDir, subpath string) (string, error) {
	pkg, err := ctx.readPackageJSON(packageDir)
	if err != nil {
		return "", err
	}

	if pkg != nil && len(pkg.Exports) > 0 {
		target, err := resolvePackageExports(packageDir, pkg.Exports, subpath, ctx.conditions)
		if err != nil {
			// An exports field owns the whole package surface; a
			// non-exported subpath is a hard failure.
			return "", err
		}
		if !strings.HasPrefix(target, "./") {
			return "", errors.Errorf("invalid exports target %q in %s", target, packageDir)
		}
		return ctx.resolveFile(filepath.Join(packageDir, target))
	}

	if subpath != "." {
		return ctx.resolveFile(filepath.Join(packageDir, subpath))
	}
	if pkg != nil && pkg.Main != "" {
		return ctx.resolveMain(packageDir, pkg.Main)
	}
	return "", errDirImport
}

// splitPackageSpecifier splits a bare specifier into package name and "."
// rooted subpath, keeping scoped names intact.
func splitPackageSpecifier(specifier string) (string, string) {
	segments := strings.SplitN(specifier, "/", 3)
	if strings.HasPrefix(specifier, "@") {
		if len(segments) < 3 {
			return specifier, "."
		}
		return segments[0] + "/" + segments[1], "./" + segments[2]
	}
	if len(segments) == 1 {
		return specifier, "."
	}
	return segments[0], "./" + strings.Join(segments[1:], "/")
}

// baseDir is the directory resolution starts from. A file origin resolves
// relative to its parent directory.
func (ctx *resolveContext) baseDir() string {
	path := URLToPath(ctx.from)
	if info, err := ctx.fs.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}

// canonicalize dereferences symbolic links and normalizes separators. Only
// the operating system filesystem can carry symlinks; virtual filesystems
// are cleaned without dereferencing.
func (ctx *resolveContext) canonicalize(location string) (string, error) {
	path := URLToPath(location)
	if _, ok := ctx.fs.(*afero.OsFs); ok {
		if real, err := filepath.EvalSymlinks(path); err == nil {
			path = real
		}
	} else {
		path = filepath.Clean(path)
	}
	return PathToURL(path), nil
}
