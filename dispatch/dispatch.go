// Package dispatch implements the non-management request cascade: exact
// dynamic match, template dynamic match, per-endpoint or default proxy
// forwarding, OpenAPI example fallback, and finally 404. Every branch is a
// plain sequence of checks returning on first hit, not an interface
// hierarchy — the cascade has exactly five outcomes plus not-found and
// none of them benefit from dynamic dispatch.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/arthurkowalsky/mokku/forward"
	"github.com/arthurkowalsky/mokku/muxhandlers"
	"github.com/arthurkowalsky/mokku/openapi"
	"github.com/arthurkowalsky/mokku/store"
	"github.com/arthurkowalsky/mokku/trace"
)

// Dispatcher serves every request not claimed by the management routes.
type Dispatcher struct {
	Store        *store.Store
	Trace        *trace.Trace
	Forwarder    *forward.Forwarder
	DefaultProxy *ProxyCell
	Spec         *SpecCell
}

// outcome is the result one cascade arm produces: the response to write
// plus the trace bookkeeping fields that arm is responsible for.
type outcome struct {
	status          int
	body            json.RawMessage
	headers         map[string]string
	matchedEndpoint *string
	proxiedTo       *string
}

func strPtr(s string) *string { return &s }

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := strings.ToUpper(r.Method)
	path := r.URL.Path
	query := r.URL.RawQuery

	body, _ := io.ReadAll(r.Body)

	var reqBody json.RawMessage
	if json.Valid(body) {
		reqBody = body
	}

	entry := trace.Entry{
		Method:         method,
		Path:           path,
		Query:          query,
		RequestHeaders: flattenHeaders(r.Header),
		RequestBody:    reqBody,
		Timestamp:      trace.Now(),
		RequestID:      muxhandlers.RequestIDFromContext(r.Context()),
	}

	out := d.resolve(r.Context(), method, path, query, r.Header, body)

	entry.Status = out.status
	entry.ResponseBody = out.body
	entry.ResponseHeaders = out.headers
	entry.MatchedEndpoint = out.matchedEndpoint
	entry.ProxiedTo = out.proxiedTo
	d.Trace.Append(entry)

	log.Printf("dispatch %s %s -> %d", method, path, out.status)

	for k, v := range out.headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(out.status)
	if out.body != nil {
		_, _ = w.Write(out.body)
	}
}

// resolve runs the six-step cascade and is the dispatcher's only decision
// point; ServeHTTP does nothing but wire its result to the wire and trace.
func (d *Dispatcher) resolve(ctx context.Context, method, path, query string, headers http.Header, body []byte) outcome {
	key := store.Key{Method: method, Path: path}

	if ep, ok := d.Store.LookupExact(key); ok {
		return d.respondFromEndpoint(ctx, key, ep, path, query, headers, body, strPtr(path))
	}

	if tplKey, ep, ok := d.Store.LookupTemplate(method, path); ok {
		return d.respondFromEndpoint(ctx, tplKey, ep, path, query, headers, body, strPtr(tplKey.Path+" (template)"))
	}

	if proxyURL, ok := d.DefaultProxy.Get(); ok {
		return d.forwardOutcome(ctx, method, proxyURL, path, query, headers, body,
			"Default proxy request failed", "default proxy to "+proxyURL)
	}

	if ctx2 := d.Spec.Get(); ctx2 != nil && ctx2.Parsed != nil {
		if match, ok := openapi.FindOperation(ctx2.Parsed, method, path); ok {
			status := openapi.PreferredStatus(match.Operation, openapi.DispatchStatusOrder)
			if example, ok := openapi.ExtractExample(match.Operation, status); ok {
				return outcome{
					status:          http.StatusOK,
					body:            example,
					headers:         map[string]string{"Content-Type": "application/json"},
					matchedEndpoint: strPtr("OpenAPI spec"),
				}
			}
			return outcome{status: http.StatusOK, matchedEndpoint: strPtr("OpenAPI spec")}
		}
	}

	return outcome{status: http.StatusNotFound}
}

// respondFromEndpoint handles a matched dynamic endpoint: either forward to
// its configured proxy URL or serve its canned response.
func (d *Dispatcher) respondFromEndpoint(ctx context.Context, key store.Key, ep store.Endpoint, path, query string, headers http.Header, body []byte, matched *string) outcome {
	if ep.IsProxy() {
		out := d.forwardOutcome(ctx, key.Method, ep.ProxyURL, path, query, headers, body,
			"Proxy request failed", "proxy to "+ep.ProxyURL)
		if out.matchedEndpoint == nil {
			out.matchedEndpoint = matched
		}
		return out
	}

	respHeaders := make(map[string]string, len(ep.Headers)+1)
	for k, v := range ep.Headers {
		respHeaders[k] = v
	}
	respHeaders["Content-Type"] = "application/json"

	return outcome{
		status:          ep.Status,
		body:            ep.Response,
		headers:         respHeaders,
		matchedEndpoint: matched,
	}
}

// forwardOutcome performs one outbound call and translates it (success or
// failure) into an outcome, tagging matchedEndpoint/proxiedTo per label.
func (d *Dispatcher) forwardOutcome(ctx context.Context, method, base, path, query string, headers http.Header, body []byte, failureLabel, matchedLabel string) outcome {
	result, err := d.Forwarder.Forward(ctx, base, forward.Request{
		Method:  method,
		Path:    path,
		Query:   query,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		var unreachable *forward.UnreachableError
		details := err.Error()
		if errors.As(err, &unreachable) {
			details = unreachable.Err.Error()
		}
		errBody, _ := json.Marshal(map[string]string{"error": failureLabel, "details": details})
		return outcome{
			status:          http.StatusBadGateway,
			body:            errBody,
			headers:         map[string]string{"Content-Type": "application/json"},
			matchedEndpoint: strPtr(matchedLabel),
		}
	}

	return outcome{
		status:          result.Status,
		body:            result.Body,
		headers:         flattenHeaders(result.Headers),
		matchedEndpoint: strPtr(matchedLabel),
		proxiedTo:       strPtr(forward.TargetURL(base, path, "")),
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
