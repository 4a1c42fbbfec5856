package store

import (
	"regexp"
	"sync"
)

// templateRegexpCache caches compiled template patterns by template string,
// the same strategy mux/regexp_cache.go uses for registered routes — except
// here the cache key is a path template pulled from the endpoint store at
// dispatch time rather than a route registered at startup.
var templateRegexpCache sync.Map

// MatchesTemplate reports whether path matches template. Each "{name}"
// segment in template matches any non-empty, slash-free run in path;
// templates containing no "{" must match only their exact literal.
// Matching is case-sensitive. Malformed brace nesting (unbalanced braces)
// makes the template match nothing — it never produces an error.
func MatchesTemplate(template, path string) bool {
	re, ok := compileTemplate(template)
	if !ok {
		return false
	}
	return re.MatchString(path)
}

// compileTemplate translates template into a compiled, cached regular
// expression. It reports false if the template's braces are malformed.
func compileTemplate(template string) (*regexp.Regexp, bool) {
	if v, ok := templateRegexpCache.Load(template); ok {
		re, ok := v.(*regexp.Regexp)
		return re, ok && re != nil
	}

	pattern, ok := templateToPattern(template)
	if !ok {
		templateRegexpCache.Store(template, (*regexp.Regexp)(nil))
		return nil, false
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		templateRegexpCache.Store(template, (*regexp.Regexp)(nil))
		return nil, false
	}

	actual, _ := templateRegexpCache.LoadOrStore(template, re)
	compiled, ok := actual.(*regexp.Regexp)
	return compiled, ok
}

// templateToPattern converts a "{name}" path template into an anchored
// regular expression pattern, escaping literal segments so they are matched
// verbatim. It reports false on unbalanced braces.
func templateToPattern(template string) (string, bool) {
	idxs, ok := braceIndices(template)
	if !ok {
		return "", false
	}

	var pattern []byte
	pattern = append(pattern, '^')

	end := 0
	for i := 0; i < len(idxs); i += 2 {
		start, stop := idxs[i], idxs[i+1]
		pattern = append(pattern, regexp.QuoteMeta(template[end:start])...)
		pattern = append(pattern, "[^/]+"...)
		end = stop
	}
	pattern = append(pattern, regexp.QuoteMeta(template[end:])...)
	pattern = append(pattern, '$')

	return string(pattern), true
}

// braceIndices returns the start/end index pairs of each top-level
// "{...}" segment in s. It reports false when braces are unbalanced.
func braceIndices(s string) ([]int, bool) {
	var idxs []int
	level := 0

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if level++; level == 1 {
				idxs = append(idxs, i)
			}
		case '}':
			if level--; level == 0 {
				idxs = append(idxs, i+1)
			} else if level < 0 {
				return nil, false
			}
		}
	}

	if level != 0 {
		return nil, false
	}

	return idxs, true
}
