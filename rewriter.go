package mlly

import (
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// selfURLExpression is the in-source expression a module uses to learn its
// own location at runtime.
const selfURLExpression = "import.meta.url"

// TransformModule rewrites every embedded import specifier to its resolved
// absolute URL and replaces the self-referential URL expression with a
// quoted literal. Any failing resolution aborts the whole rewrite; a partial
// rewrite is never returned.
func TransformModule(code string, opts Options) (string, error) {
	ctx := newResolveContext(opts)

	matches := matchSpecifiers(code)
	resolved := make(map[string]string, len(matches))

	// All distinct specifiers are resolved concurrently; the rewrite only
	// proceeds once every lookup has completed.
	var mu sync.Mutex
	var group errgroup.Group
	for _, specifier := range distinctSpecifiers(matches) {
		specifier := specifier
		group.Go(func() error {
			target, err := ctx.resolve(specifier)
			if err != nil {
				return err
			}
			mu.Lock()
			resolved[specifier] = target
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return "", err
	}

	// Substitution is anchored to the offsets recorded during extraction,
	// so one specifier can never match inside another's replacement.
	var out strings.Builder
	out.Grow(len(code))
	last := 0
	for _, match := range matches {
		out.WriteString(code[last:match.Start])
		out.WriteString(resolved[match.Specifier])
		last = match.End
	}
	out.WriteString(code[last:])

	transformed := out.String()
	if ctx.url != "" {
		transformed = strings.ReplaceAll(transformed, selfURLExpression, `"`+ctx.url+`"`)
	}
	return transformed, nil
}
