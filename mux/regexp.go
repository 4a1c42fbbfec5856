package mux

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// regexpType distinguishes a path template from a path-prefix template.
// mux only ever compiles path templates; the distinction controls whether
// the compiled pattern is anchored with a trailing $.
type regexpType int

const (
	regexpTypePath regexpType = iota
	regexpTypePrefix
)

// routeRegexp stores a compiled regexp and metadata about the template.
type routeRegexp struct {
	// template is the original template string.
	template string
	// strictSlash indicates optional trailing slash matching.
	strictSlash bool
	// useEncodedPath indicates using encoded path for matching.
	useEncodedPath bool
	// regexp is the compiled regular expression.
	regexp *regexp.Regexp
	// reverse is the template with %s placeholders for Sprintf.
	reverse string
	// varsN are the variable names in order.
	varsN []string
	// varsR are the compiled regexps for validating each variable value.
	varsR []*regexp.Regexp
	// wildcard indicates a prefix match (no $ anchor).
	wildcard bool
}

// routeRegexpOptions holds options for regexp compilation.
type routeRegexpOptions struct {
	strictSlash    bool
	useEncodedPath bool
}

// newRouteRegexp parses a path template and returns a compiled routeRegexp.
// Variables are written as {name} or {name:pattern}; pattern defaults to
// [^/]+ (one path segment).
func newRouteRegexp(tpl string, typ regexpType, options routeRegexpOptions) (*routeRegexp, error) {
	idxs, err := braceIndices(tpl)
	if err != nil {
		return nil, err
	}

	const defaultPattern = "[^/]+"

	var (
		pattern  bytes.Buffer
		reverse  bytes.Buffer
		varsN    []string
		varsR    []*regexp.Regexp
		end      int
		wildcard bool
	)

	pattern.WriteByte('^')

	for i := 0; i < len(idxs); i += 2 {
		// Write the raw text between variables.
		raw := tpl[end:idxs[i]]
		end = idxs[i+1]

		// Extract variable name and optional pattern.
		parts := strings.SplitN(tpl[idxs[i]+1:end-1], ":", 2)
		name := parts[0]
		patt := defaultPattern
		if len(parts) == 2 {
			patt = parts[1]
		}

		if name == "" {
			return nil, fmt.Errorf("mux: missing name in %q from %q", tpl[idxs[i]:end], tpl)
		}

		// Build pattern and reverse template.
		fmt.Fprintf(&pattern, "%s(%s)", regexp.QuoteMeta(raw), patt)
		reverse.WriteString(strings.ReplaceAll(raw, "%", "%%"))
		reverse.WriteString("%s")

		varsN = append(varsN, name)
		compiledVarR, err := compileRegexp(fmt.Sprintf("^%s$", patt))
		if err != nil {
			return nil, fmt.Errorf("mux: invalid pattern %q in variable %q: %w", patt, name, err)
		}
		varsR = append(varsR, compiledVarR)
	}

	// Write the remaining literal text after the last variable.
	raw := tpl[end:]

	// For strictSlash, strip the trailing slash from the pattern so it can
	// be replaced with an optional [/]? group. The reverse template keeps
	// the original template for URL building.
	rawForPattern := raw
	if options.strictSlash && typ == regexpTypePath && strings.HasSuffix(rawForPattern, "/") {
		rawForPattern = strings.TrimSuffix(rawForPattern, "/")
	}

	pattern.WriteString(regexp.QuoteMeta(rawForPattern))
	reverse.WriteString(strings.ReplaceAll(raw, "%", "%%"))

	if typ == regexpTypePrefix {
		wildcard = true
	} else if options.strictSlash {
		pattern.WriteString("[/]?")
	}

	if !wildcard {
		pattern.WriteByte('$')
	}

	reg, err := compileRegexp(pattern.String())
	if err != nil {
		return nil, err
	}

	if err := checkDuplicateVars(varsN); err != nil {
		return nil, err
	}

	return &routeRegexp{
		template:       tpl,
		strictSlash:    options.strictSlash,
		useEncodedPath: options.useEncodedPath,
		regexp:         reg,
		reverse:        reverse.String(),
		varsN:          varsN,
		varsR:          varsR,
		wildcard:       wildcard,
	}, nil
}

// Match checks whether the compiled regexp matches the request path
// per RFC 3986 Section 3.3.
func (r *routeRegexp) Match(req *http.Request, _ *RouteMatch) bool {
	p := req.URL.Path
	// Use percent-encoded path per RFC 3986 Section 2.1 when configured.
	if r.useEncodedPath {
		p = requestURIPath(req.URL)
	}
	return r.regexp.MatchString(p)
}

// url builds a path from the template and the given variable values.
func (r *routeRegexp) url(values map[string]string) (string, error) {
	urlValues := make([]interface{}, len(r.varsN))
	for i, name := range r.varsN {
		v, ok := values[name]
		if !ok {
			return "", fmt.Errorf("mux: missing route variable %q", name)
		}
		if !r.varsR[i].MatchString(v) {
			return "", fmt.Errorf("mux: variable %q doesn't match, expected %q", name, r.varsR[i].String())
		}
		urlValues[i] = v
	}
	return fmt.Sprintf(r.reverse, urlValues...), nil
}

// braceIndices returns the start and end+1 indices of each top-level
// {...} pair in s. Returns an error if braces are unbalanced.
func braceIndices(s string) ([]int, error) {
	var (
		idxs  []int
		level int
	)
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
				return nil, fmt.Errorf("mux: unbalanced braces in %q", s)
			}
		}
	}
	if level != 0 {
		return nil, fmt.Errorf("mux: unbalanced braces in %q", s)
	}
	return idxs, nil
}

// checkDuplicateVars returns an error if any variable name is repeated.
func checkDuplicateVars(vars []string) error {
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if seen[v] {
			return fmt.Errorf("mux: duplicated route variable %q", v)
		}
		seen[v] = true
	}
	return nil
}

// routeRegexpGroup wraps the single path regexp compiled for a route.
// Named group (rather than a bare field) to keep Route.regexp symmetrical
// with its gorilla/mux ancestor, which also tracked host and query regexps.
type routeRegexpGroup struct {
	path *routeRegexp
}

// varCount returns the number of named variables in the path regexp.
func (v *routeRegexpGroup) varCount() int {
	if v.path == nil {
		return 0
	}
	return len(v.path.varsN)
}

// setMatch extracts path variables from the request and stores them in the match.
func (v *routeRegexpGroup) setMatch(req *http.Request, m *RouteMatch, _ *Route) {
	if v.path == nil || len(v.path.varsN) == 0 {
		return
	}
	if m.Vars == nil {
		m.Vars = make(map[string]string, v.varCount())
	}

	p := req.URL.Path
	if v.path.useEncodedPath {
		p = requestURIPath(req.URL)
	}
	v.path.setVars(p, m.Vars)
	if v.path.useEncodedPath {
		for _, name := range v.path.varsN {
			if val, ok := m.Vars[name]; ok {
				if unescaped, err := url.PathUnescape(val); err == nil {
					m.Vars[name] = unescaped
				}
			}
		}
	}
}

// setVars extracts variables from input and writes them directly into dst.
// Returns true if the input matched the regexp.
func (r *routeRegexp) setVars(input string, dst map[string]string) bool {
	matches := r.regexp.FindStringSubmatch(input)
	if matches == nil {
		return false
	}
	for i, name := range r.varsN {
		if i+1 < len(matches) {
			dst[name] = matches[i+1]
		}
	}
	return true
}
