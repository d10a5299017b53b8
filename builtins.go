package mlly

import "strings"

// nodeBuiltins lists the top-level builtin modules of the host runtime.
// Subpath specifiers like "fs/promises" are matched on their first segment.
var nodeBuiltins = map[string]bool{
	"assert":              true,
	"async_hooks":         true,
	"buffer":              true,
	"child_process":       true,
	"cluster":             true,
	"console":             true,
	"constants":           true,
	"crypto":              true,
	"dgram":               true,
	"diagnostics_channel": true,
	"dns":                 true,
	"domain":              true,
	"events":              true,
	"fs":                  true,
	"http":                true,
	"http2":               true,
	"https":               true,
	"inspector":           true,
	"module":              true,
	"net":                 true,
	"os":                  true,
	"path":                true,
	"perf_hooks":          true,
	"process":             true,
	"punycode":            true,
	"querystring":         true,
	"readline":            true,
	"repl":                true,
	"stream":              true,
	"string_decoder":      true,
	"sys":                 true,
	"timers":              true,
	"tls":                 true,
	"trace_events":        true,
	"tty":                 true,
	"url":                 true,
	"util":                true,
	"v8":                  true,
	"vm":                  true,
	"wasi":                true,
	"worker_threads":      true,
	"zlib":                true,
}

// builtinName reports whether the specifier names a host builtin and returns
// its bare name. Specifiers carrying the explicit "node:" prefix are always
// builtins since the prefix is reserved for them.
func builtinName(specifier string) (string, bool) {
	name := strings.TrimPrefix(specifier, "node:")
	if name != specifier {
		return name, true
	}
	base := name
	if i := strings.IndexByte(name, '/'); i >= 0 {
		base = name[:i]
	}
	return name, nodeBuiltins[base]
}
