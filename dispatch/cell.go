package dispatch

import (
	"strings"
	"sync"

	"github.com/arthurkowalsky/mokku/openapi"
)

// ProxyCell is a mutex-guarded single value holding the default proxy URL,
// read and written independently of the endpoint store.
type ProxyCell struct {
	mu  sync.Mutex
	url string
}

// Get returns the current default proxy URL and whether one is set.
func (c *ProxyCell) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url, c.url != ""
}

// Set stores url as the default proxy URL. A blank or whitespace-only url
// clears it, matching Delete.
func (c *ProxyCell) Set(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.url = strings.TrimSpace(url)
}

// Clear empties the default proxy URL.
func (c *ProxyCell) Clear() {
	c.Set("")
}

// SpecCell holds the currently loaded OpenAPI context, replaced atomically
// on a successful import or startup load.
type SpecCell struct {
	mu  sync.Mutex
	ctx *openapi.Context
}

// Get returns the current context, or nil if none has been loaded.
func (c *SpecCell) Get() *openapi.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// Store replaces the current context.
func (c *SpecCell) Store(ctx *openapi.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = ctx
}
