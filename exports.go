package mlly

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/francoispqt/gojay"
	"github.com/go-errors/errors"
)

// packageJSON carries the package.json fields resolution cares about. The
// exports field stays embedded because its condition objects are matched in
// document order, which a regular map decode would destroy.
type packageJSON struct {
	Name    string
	Main    string
	Type    string
	Exports gojay.EmbeddedJSON
}

func (p *packageJSON) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	switch key {
	case "name":
		return dec.String(&p.Name)
	case "main":
		return dec.String(&p.Main)
	case "type":
		return dec.String(&p.Type)
	case "exports":
		return dec.AddEmbeddedJSON(&p.Exports)
	}
	return nil
}

func (p *packageJSON) NKeys() int { return 0 }

// readPackageJSON reads and decodes dir/package.json, returning nil without
// error when the file does not exist. Malformed manifests are hard errors.
func (ctx *resolveContext) readPackageJSON(dir string) (*packageJSON, error) {
	filename := filepath.Join(dir, "package.json")
	if !fileExists(ctx.fs, filename) {
		return nil, nil
	}
	data, err := readSource(ctx.fs, filename)
	if err != nil {
		return nil, errors.New(err)
	}
	pkg := &packageJSON{}
	if err := gojay.UnmarshalJSONObject(data, pkg); err != nil {
		return nil, errors.Errorf("malformed package.json in %s: %s", dir, err)
	}
	return pkg, nil
}

// rawObject captures a JSON object as ordered raw members.
type rawObject struct {
	keys   []string
	values map[string]gojay.EmbeddedJSON
}

func (o *rawObject) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	var raw gojay.EmbeddedJSON
	if err := dec.AddEmbeddedJSON(&raw); err != nil {
		return err
	}
	if o.values == nil {
		o.values = make(map[string]gojay.EmbeddedJSON)
	}
	o.keys = append(o.keys, key)
	o.values[key] = raw
	return nil
}

func (o *rawObject) NKeys() int { return 0 }

// rawArray captures a JSON array as raw elements.
type rawArray struct {
	items []gojay.EmbeddedJSON
}

func (a *rawArray) UnmarshalJSONArray(dec *gojay.Decoder) error {
	var raw gojay.EmbeddedJSON
	if err := dec.AddEmbeddedJSON(&raw); err != nil {
		return err
	}
	a.items = append(a.items, raw)
	return nil
}

// errNoConditionMatch signals that no branch of a condition object applies
// under the active condition set.
var errNoConditionMatch = errors.New("no export condition matched")

// resolvePackageExports maps a "." rooted subpath through the exports field
// under the active conditions, returning the package-relative target.
func resolvePackageExports(packageDir string, exports []byte, subpath string, conditions map[string]bool) (string, error) {
	notExported := func() error {
		return errors.New(&PackagePathError{Subpath: subpath, PackageDir: packageDir})
	}

	trimmed := bytes.TrimSpace(exports)
	if len(trimmed) == 0 {
		return "", notExported()
	}

	if trimmed[0] != '{' {
		// Shorthand: the whole field is the target of ".".
		if subpath != "." {
			return "", notExported()
		}
		target, err := resolveExportsTarget(trimmed, conditions, "")
		if err != nil {
			return "", notExported()
		}
		return target, nil
	}

	object := &rawObject{}
	if err := gojay.UnmarshalJSONObject(trimmed, object); err != nil {
		return "", errors.Errorf("malformed exports in %s: %s", packageDir, err)
	}

	if !isSubpathMap(object.keys) {
		// A bare condition object only ever describes the package root.
		if subpath != "." {
			return "", notExported()
		}
		target, err := resolveExportsTarget(trimmed, conditions, "")
		if err != nil {
			return "", notExported()
		}
		return target, nil
	}

	if raw, ok := object.values[subpath]; ok {
		target, err := resolveExportsTarget(raw, conditions, "")
		if err != nil {
			return "", notExported()
		}
		return target, nil
	}

	// Pattern entries: the longest matching "./prefix*suffix" key wins.
	var bestRaw gojay.EmbeddedJSON
	bestPrefix, bestCapture := -1, ""
	for _, key := range object.keys {
		star := strings.IndexByte(key, '*')
		if star < 0 {
			continue
		}
		prefix, suffix := key[:star], key[star+1:]
		if len(subpath) < len(prefix)+len(suffix) ||
			!strings.HasPrefix(subpath, prefix) || !strings.HasSuffix(subpath, suffix) {
			continue
		}
		if len(prefix) > bestPrefix {
			bestPrefix = len(prefix)
			bestCapture = subpath[len(prefix) : len(subpath)-len(suffix)]
			bestRaw = object.values[key]
		}
	}
	if bestPrefix >= 0 {
		target, err := resolveExportsTarget(bestRaw, conditions, bestCapture)
		if err != nil {
			return "", notExported()
		}
		return target, nil
	}

	return "", notExported()
}

// resolveExportsTarget descends one exports value: a string target, an array
// of alternatives (first usable wins) or a condition object matched in
// document order.
func resolveExportsTarget(raw []byte, conditions map[string]bool, capture string) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", errNoConditionMatch
	}

	switch trimmed[0] {
	case '"':
		var target string
		if err := gojay.Unmarshal(trimmed, &target); err != nil {
			return "", errors.New(err)
		}
		if capture != "" {
			target = strings.ReplaceAll(target, "*", capture)
		}
		return target, nil

	case '[':
		array := &rawArray{}
		if err := gojay.UnmarshalJSONArray(trimmed, array); err != nil {
			return "", errors.New(err)
		}
		for _, item := range array.items {
			if target, err := resolveExportsTarget(item, conditions, capture); err == nil {
				return target, nil
			}
		}
		return "", errNoConditionMatch

	case '{':
		object := &rawObject{}
		if err := gojay.UnmarshalJSONObject(trimmed, object); err != nil {
			return "", errors.New(err)
		}
		for _, key := range object.keys {
			if !conditions[key] {
				continue
			}
			if target, err := resolveExportsTarget(object.values[key], conditions, capture); err == nil {
				return target, nil
			}
		}
		return "", errNoConditionMatch
	}

	// null and other scalars mean "not exported".
	return "", errNoConditionMatch
}

// isSubpathMap reports whether the exports object maps subpaths rather than
// conditions. The two shapes never mix.
func isSubpathMap(keys []string) bool {
	for _, key := range keys {
		if strings.HasPrefix(key, ".") {
			return true
		}
	}
	return false
}
