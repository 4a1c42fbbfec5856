// Package store holds the dynamic endpoint registry: the in-memory map of
// user-configured mock endpoints, the shadow set that suppresses
// OpenAPI-provided endpoints, and the path-template matcher both rely on.
package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Methods is the closed set of HTTP methods a dynamic endpoint may be
// registered under.
var Methods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
}

// NormalizeMethod upper-cases method and reports whether it belongs to the
// closed set of supported methods.
func NormalizeMethod(method string) (string, bool) {
	m := strings.ToUpper(strings.TrimSpace(method))
	return m, Methods[m]
}

// Key identifies a dynamic endpoint by method and path template.
type Key struct {
	Method string
	Path   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s", k.Method, k.Path)
}

// Endpoint is a dynamic endpoint's configuration. When ProxyURL is set the
// endpoint is a forwarder: Response, Status and Headers are kept only for
// round-trip export and are ignored at dispatch time.
type Endpoint struct {
	Response json.RawMessage
	Status   int
	Headers  map[string]string
	ProxyURL string
}

// IsProxy reports whether the endpoint forwards to an upstream instead of
// returning a canned response.
func (e Endpoint) IsProxy() bool {
	return e.ProxyURL != ""
}

// clone returns a deep-enough copy of e so the caller may use it after the
// store's lock has been released.
func (e Endpoint) clone() Endpoint {
	c := e
	if e.Headers != nil {
		c.Headers = make(map[string]string, len(e.Headers))
		for k, v := range e.Headers {
			c.Headers[k] = v
		}
	}
	if e.Response != nil {
		c.Response = append(json.RawMessage(nil), e.Response...)
	}
	return c
}

// Store is the concurrency-safe registry of dynamic endpoints. All mutations
// and reads are serialized by a single mutex; no I/O occurs while it is held.
type Store struct {
	mu      sync.Mutex
	dynamic map[Key]Endpoint
	removed map[Key]struct{}
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		dynamic: make(map[Key]Endpoint),
		removed: make(map[Key]struct{}),
	}
}

// Put inserts or overwrites the endpoint at key, returning the prior value
// and whether one existed (last-write-wins).
func (s *Store) Put(key Key, ep Endpoint) (Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.dynamic[key]
	s.dynamic[key] = ep.clone()
	return prev, existed
}

// Delete removes key from the dynamic store if present; otherwise it
// records key in the removed-spec set (suppressing an OpenAPI-provided
// endpoint without mutating the parsed spec). It reports
// (removedFromDynamic, recordedInRemovedSet).
func (s *Store) Delete(key Key) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dynamic[key]; ok {
		delete(s.dynamic, key)
		return true, false
	}

	s.removed[key] = struct{}{}
	return false, true
}

// IsRemoved reports whether key has been suppressed via the removed-spec set.
func (s *Store) IsRemoved(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.removed[key]
	return ok
}

// LookupExact returns the endpoint registered under key, if any.
func (s *Store) LookupExact(key Key) (Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.dynamic[key]
	if !ok {
		return Endpoint{}, false
	}
	return ep.clone(), true
}

// LookupTemplate scans the dynamic entries for the given method and returns
// the first one whose path, treated as a template, matches path. Iteration
// order over the map is not part of the contract: when more than one
// template could match, any one of them may be returned.
func (s *Store) LookupTemplate(method, path string) (Key, Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, ep := range s.dynamic {
		if key.Method != method {
			continue
		}
		if MatchesTemplate(key.Path, path) {
			return key, ep.clone(), true
		}
	}
	return Key{}, Endpoint{}, false
}

// Snapshot returns a read-consistent view of every dynamic endpoint and
// every key suppressed in the removed-spec set.
func (s *Store) Snapshot() (dynamic map[Key]Endpoint, removed []Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dynamic = make(map[Key]Endpoint, len(s.dynamic))
	for k, v := range s.dynamic {
		dynamic[k] = v.clone()
	}

	removed = make([]Key, 0, len(s.removed))
	for k := range s.removed {
		removed = append(removed, k)
	}

	return dynamic, removed
}
