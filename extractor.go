package mlly

import "regexp"

// specifierPattern recognizes the four import shapes in one alternation:
// dynamic import(), static import/export ... from, and bare side-effect
// imports. This is pattern matching, not parsing: text inside comments or
// string literals that merely resembles import syntax can misfire, which is
// an accepted limitation of the approach.
var specifierPattern = regexp.MustCompile(
	`\bimport\s*\(\s*["']([^"'\n]+)["']` +
		`|\b(?:import|export)\b[^"'();]*?\bfrom\s*["']([^"'\n]+)["']` +
		`|\bimport\s*["']([^"'\n]+)["']`)

// specifierMatch is one quoted specifier occurrence. Start and End delimit
// the quoted content only; the quotes themselves are never touched.
type specifierMatch struct {
	Specifier string
	Start     int
	End       int
}

// matchSpecifiers scans the source once and returns every specifier
// occurrence in order, with its byte offsets recorded for later splicing.
func matchSpecifiers(code string) []specifierMatch {
	var matches []specifierMatch
	for _, loc := range specifierPattern.FindAllStringSubmatchIndex(code, -1) {
		for group := 1; group <= 3; group++ {
			start, end := loc[2*group], loc[2*group+1]
			if start < 0 {
				continue
			}
			matches = append(matches, specifierMatch{
				Specifier: code[start:end],
				Start:     start,
				End:       end,
			})
			break
		}
	}
	return matches
}

// ExtractSpecifiers returns the distinct import specifiers embedded in the
// source text, in first-occurrence order.
func ExtractSpecifiers(code string) []string {
	return distinctSpecifiers(matchSpecifiers(code))
}

func distinctSpecifiers(matches []specifierMatch) []string {
	seen := make(map[string]bool, len(matches))
	var distinct []string
	for _, match := range matches {
		if seen[match.Specifier] {
			continue
		}
		seen[match.Specifier] = true
		distinct = append(distinct, match.Specifier)
	}
	return distinct
}
