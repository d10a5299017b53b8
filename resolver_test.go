package mlly

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	filesystem := afero.NewMemMapFs()
	for name, code := range files {
		require.NoError(t, afero.WriteFile(filesystem, name, []byte(code), 0o644))
	}
	return filesystem
}

// countingFs records filesystem touches so tests can assert on access
// behavior, not just outcomes.
type countingFs struct {
	afero.Fs
	calls int
}

func (c *countingFs) Stat(name string) (os.FileInfo, error) {
	c.calls++
	return c.Fs.Stat(name)
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.calls++
	return c.Fs.Open(name)
}

func (c *countingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	c.calls++
	return c.Fs.OpenFile(name, flag, perm)
}

func TestResolveBuiltin(t *testing.T) {
	filesystem := &countingFs{Fs: afero.NewMemMapFs()}

	cases := map[string]string{
		"fs":          "builtin:fs",
		"path":        "builtin:path",
		"node:fs":     "builtin:fs",
		"fs/promises": "builtin:fs/promises",
		"node:test":   "builtin:test",
	}
	for specifier, expected := range cases {
		resolved, err := Resolve(specifier, Options{Fs: filesystem})
		require.NoError(t, err)
		assert.Equal(t, expected, resolved)
	}
	assert.Equal(t, 0, filesystem.calls, "builtin resolution must not touch the filesystem")
}

func TestResolveSchemePassthrough(t *testing.T) {
	filesystem := &countingFs{Fs: afero.NewMemMapFs()}

	for _, specifier := range []string{
		"https://example.com/mod.js",
		"http://example.com/mod.js",
		"data:text/javascript,export const x = 1",
		"file:///somewhere/mod.js",
		"builtin:fs",
	} {
		resolved, err := Resolve(specifier, Options{Fs: filesystem})
		require.NoError(t, err)
		assert.Equal(t, specifier, resolved)

		again, err := Resolve(resolved, Options{Fs: filesystem})
		require.NoError(t, err)
		assert.Equal(t, resolved, again, "resolution must be idempotent")
	}
	assert.Equal(t, 0, filesystem.calls)
}

func TestResolveExtensionFallback(t *testing.T) {
	filesystem := newTestFs(t, map[string]string{
		"/src/a/b.js": "export const x = 1",
	})

	resolved, err := Resolve("./a/b", Options{From: "/src", Fs: filesystem})
	require.NoError(t, err)
	assert.Equal(t, "file:///src/a/b.js", resolved)
}

func TestResolveExtensionOrder(t *testing.T) {
	filesystem := newTestFs(t, map[string]string{
		"/src/a.mjs": "",
		"/src/a.js":  "",
	})

	resolved, err := Resolve("./a", Options{From: "/src", Fs: filesystem})
	require.NoError(t, err)
	assert.Equal(t, "file:///src/a.mjs", resolved, ".mjs is tried before .js")
}

func TestResolveIndexFallback(t *testing.T) {
	filesystem := newTestFs(t, map[string]string{
		"/src/a/index.js": "export const x = 1",
	})

	resolved, err := Resolve("./a", Options{From: "/src", Fs: filesystem})
	require.NoError(t, err)
	assert.Equal(t, "file:///src/a/index.js", resolved)
}

func TestResolveFromFileOrigin(t *testing.T) {
	filesystem := newTestFs(t, map[string]string{
		"/src/sibling.js": "export const x = 1",
	})

	resolved, err := Resolve("./sibling.js", Options{From: "file:///src/app.js", Fs: filesystem})
	require.NoError(t, err)
	assert.Equal(t, "file:///src/sibling.js", resolved)
}

func TestResolveNotFound(t *testing.T) {
	filesystem := newTestFs(t, map[string]string{})

	_, err := Resolve("./missing", Options{From: "/src", Fs: filesystem})
	require.Error(t, err)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "./missing", notFound.Specifier)
	assert.Contains(t, err.Error(), "./missing")
}

func TestResolvePath(t *testing.T) {
	filesystem := newTestFs(t, map[string]string{
		"/src/a/b.js": "export const x = 1",
	})

	path, err := ResolvePath("./a/b", Options{From: "/src", Fs: filesystem})
	require.NoError(t, err)
	assert.Equal(t, "/src/a/b.js", path)
}

func TestResolveSymlinkCanonicalization(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.js")
	require.NoError(t, os.WriteFile(target, []byte("export const x = 1"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "link.js")))

	resolved, err := Resolve("./link.js", Options{From: dir})
	require.NoError(t, err)

	real, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, PathToURL(real), resolved)
}

func TestResolvePackageExports(t *testing.T) {
	filesystem := newTestFs(t, map[string]string{
		"/app/node_modules/dep/package.json": `{
			"name": "dep",
			"exports": {
				".": {
					"import": "./dist/index.mjs",
					"require": "./dist/index.cjs"
				},
				"./utils/*": "./src/utils/*.js"
			}
		}`,
		"/app/node_modules/dep/dist/index.mjs":  "export default 1",
		"/app/node_modules/dep/dist/index.cjs":  "module.exports = 1",
		"/app/node_modules/dep/src/utils/fn.js": "export const fn = 1",
	})

	resolved, err := Resolve("dep", Options{From: "/app", Fs: filesystem})
	require.NoError(t, err)
	assert.Equal(t, "file:///app/node_modules/dep/dist/index.mjs", resolved)

	resolved, err = Resolve("dep", Options{From: "/app", Fs: filesystem, Conditions: []string{"node", "require"}})
	require.NoError(t, err)
	assert.Equal(t, "file:///app/node_modules/dep/dist/index.cjs", resolved)

	resolved, err = Resolve("dep/utils/fn", Options{From: "/app", Fs: filesystem})
	require.NoError(t, err)
	assert.Equal(t, "file:///app/node_modules/dep/src/utils/fn.js", resolved)
}

func TestResolvePackagePathNotExported(t *testing.T) {
	filesystem := newTestFs(t, map[string]string{
		"/app/node_modules/dep/package.json": `{
			"name": "dep",
			"exports": { ".": { "browser": "./browser.js" } }
		}`,
		"/app/node_modules/dep/browser.js": "",
	})

	_, err := Resolve("dep", Options{From: "/app", Fs: filesystem})
	require.Error(t, err)

	var pathErr *PackagePathError
	require.ErrorAs(t, err, &pathErr, "a non-exported subpath is a hard failure, not a soft miss")
}

func TestResolvePackageMainField(t *testing.T) {
	filesystem := newTestFs(t, map[string]string{
		"/app/node_modules/legacy/package.json": `{"name": "legacy", "main": "lib/entry"}`,
		"/app/node_modules/legacy/lib/entry.js": "module.exports = 1",
	})

	resolved, err := Resolve("legacy", Options{From: "/app", Fs: filesystem})
	require.NoError(t, err)
	assert.Equal(t, "file:///app/node_modules/legacy/lib/entry.js", resolved)
}

func TestResolveNodeModulesWalk(t *testing.T) {
	filesystem := newTestFs(t, map[string]string{
		"/app/node_modules/dep/package.json": `{"name": "dep", "main": "index.js"}`,
		"/app/node_modules/dep/index.js":     "module.exports = 1",
		"/app/src/deep/placeholder.js":       "",
	})

	resolved, err := Resolve("dep", Options{From: "/app/src/deep", Fs: filesystem})
	require.NoError(t, err)
	assert.Equal(t, "file:///app/node_modules/dep/index.js", resolved)
}

func TestCreateResolver(t *testing.T) {
	filesystem := newTestFs(t, map[string]string{
		"/one/mod.js": "",
		"/two/mod.js": "",
	})
	resolver := CreateResolver(Options{From: "/one", Fs: filesystem})

	resolved, err := resolver.Resolve("./mod")
	require.NoError(t, err)
	assert.Equal(t, "file:///one/mod.js", resolved)

	resolved, err = resolver.Resolve("./mod", "/two")
	require.NoError(t, err)
	assert.Equal(t, "file:///two/mod.js", resolved)

	path, err := resolver.ResolvePath("./mod")
	require.NoError(t, err)
	assert.Equal(t, "/one/mod.js", path)
}
