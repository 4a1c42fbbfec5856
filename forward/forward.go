// Package forward implements the upstream forwarder: a single outbound HTTP
// call that replicates an inbound request's method, path, query, filtered
// headers, and raw body against a configured proxy base URL.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Timeout bounds an outbound call from connect through full body receive.
const Timeout = 30 * time.Second

// hopByHop is the set of headers never forwarded upstream. accept-encoding
// is included because the forwarder does not perform content-coding
// negotiation and the response body must remain parseable as JSON
// downstream.
var hopByHop = map[string]bool{
	"host":             true,
	"connection":       true,
	"transfer-encoding": true,
	"accept-encoding":  true,
}

// forwardableMethods is the set of methods forwarded as-is. Any other
// inbound method is forwarded as GET — this preserves the source system's
// behavior and is flagged as an open design question in SPEC_FULL.md.
var forwardableMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// Request is the subset of an inbound HTTP request the forwarder needs.
type Request struct {
	Method  string
	Path    string
	Query   string
	Headers http.Header
	Body    []byte
}

// Result is the upstream response translated back into the shape the
// dispatcher replays to the client.
type Result struct {
	Status  int
	Body    json.RawMessage // nil when the upstream response had no JSON body
	Headers http.Header
}

// UnreachableError wraps the underlying transport failure (timeout, DNS
// failure, TLS failure, connection refusal) that made the upstream
// unreachable.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("Proxy request failed: %s", e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// Forwarder performs outbound calls against proxy base URLs.
type Forwarder struct {
	Client *http.Client
}

// New returns a Forwarder whose client enforces Timeout.
func New() *Forwarder {
	return &Forwarder{Client: &http.Client{Timeout: Timeout}}
}

// TargetURL builds the outbound URL: strip a single trailing "/" from base,
// append path verbatim, and append "?query" iff query is non-empty.
func TargetURL(base, path, query string) string {
	base = strings.TrimSuffix(base, "/")
	url := base + path
	if query != "" {
		url += "?" + query
	}
	return url
}

// Forward issues a single outbound call to base for req and returns the
// translated result. It never returns a partially-read body: on any
// transport failure it returns an *UnreachableError.
func (f *Forwarder) Forward(ctx context.Context, base string, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	method := req.Method
	if !forwardableMethods[method] {
		method = http.MethodGet
	}

	target := TargetURL(base, req.Path, req.Query)

	outbound, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(req.Body))
	if err != nil {
		return Result{}, &UnreachableError{Err: err}
	}

	for name, values := range req.Headers {
		if hopByHop[strings.ToLower(name)] {
			continue
		}
		for _, v := range values {
			outbound.Header.Add(name, v)
		}
	}

	resp, err := f.Client.Do(outbound)
	if err != nil {
		return Result{}, &UnreachableError{Err: err}
	}
	defer resp.Body.Close()

	result := Result{
		Status:  resp.StatusCode,
		Headers: resp.Header.Clone(),
	}

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotModified {
		return result, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &UnreachableError{Err: err}
	}
	if len(body) == 0 {
		return result, nil
	}

	if !json.Valid(body) {
		return result, nil
	}

	result.Body = json.RawMessage(body)
	return result, nil
}
