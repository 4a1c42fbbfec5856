// Command mokku runs the mock HTTP server: a management API under
// /__mock for configuring canned and proxied endpoints, and a dispatcher
// that serves every other request through the exact/template/proxy/OpenAPI
// cascade.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/arthurkowalsky/mokku/dispatch"
	"github.com/arthurkowalsky/mokku/forward"
	"github.com/arthurkowalsky/mokku/mgmt"
	"github.com/arthurkowalsky/mokku/mux"
	"github.com/arthurkowalsky/mokku/muxhandlers"
	"github.com/arthurkowalsky/mokku/openapi"
	"github.com/arthurkowalsky/mokku/store"
	"github.com/arthurkowalsky/mokku/trace"
)

func main() {
	host := flag.String("host", "0.0.0.0", "bind host")
	port := flag.Int("port", 8090, "bind port")
	defaultProxyURL := flag.String("default-proxy-url", "", "initial default proxy URL")
	flag.Parse()

	if *defaultProxyURL == "" {
		*defaultProxyURL = os.Getenv("DEFAULT_PROXY_URL")
	}

	proxyCell := &dispatch.ProxyCell{}
	proxyCell.Set(*defaultProxyURL)

	specCell := &dispatch.SpecCell{}
	if path := os.Getenv("OPENAPI_FILE"); path != "" {
		loadOpenAPIFile(specCell, path)
	}

	endpointStore := store.New()
	requestTrace := trace.New(trace.DefaultCapacity)

	router := mux.NewRouter()

	recovery := muxhandlers.RecoveryMiddleware(muxhandlers.RecoveryConfig{
		LogFunc: func(r *http.Request, err any) {
			log.Printf("panic handling %s %s: %v", r.Method, r.URL.Path, err)
		},
	})
	router.Use(recovery)

	requestID := muxhandlers.RequestIDMiddleware(muxhandlers.RequestIDConfig{})
	router.Use(requestID)

	timeout, err := muxhandlers.TimeoutMiddleware(muxhandlers.TimeoutConfig{Duration: 60 * time.Second})
	if err != nil {
		log.Fatalf("configuring timeout middleware: %v", err)
	}
	router.Use(timeout)

	sizeLimit, err := muxhandlers.RequestSizeLimitMiddleware(muxhandlers.RequestSizeLimitConfig{MaxBytes: 10 << 20})
	if err != nil {
		log.Fatalf("configuring request size limit middleware: %v", err)
	}
	router.Use(sizeLimit)

	server, err := muxhandlers.ServerMiddleware(muxhandlers.ServerConfig{HostnameEnv: []string{"HOSTNAME"}})
	if err != nil {
		log.Fatalf("configuring server middleware: %v", err)
	}
	router.Use(server)

	mgmtAPI := &mgmt.API{
		Store:        endpointStore,
		Trace:        requestTrace,
		DefaultProxy: proxyCell,
		Spec:         specCell,
	}
	mountManagementAPI(router, mgmtAPI)

	d := &dispatch.Dispatcher{
		Store:        endpointStore,
		Trace:        requestTrace,
		Forwarder:    forward.New(),
		DefaultProxy: proxyCell,
		Spec:         specCell,
	}
	router.PathPrefix("/").Handler(d)

	addr := fmt.Sprintf("%s:%d", *host, *port)
	log.Printf("mokku listening on %s", addr)
	if url, ok := proxyCell.Get(); ok {
		log.Printf("default proxy: %s", url)
	}

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

// mountManagementAPI mounts the management routes on router and wraps them
// with stricter content-type and security-header checks than the dispatch
// surface needs.
func mountManagementAPI(router *mux.Router, api *mgmt.API) {
	mgmtRouter := mgmt.Mount(router, api)

	contentType, err := muxhandlers.ContentTypeCheckMiddleware(muxhandlers.ContentTypeCheckConfig{
		AllowedTypes: []string{"application/json"},
	})
	if err != nil {
		log.Fatalf("configuring content type check middleware: %v", err)
	}
	mgmtRouter.Use(contentType)

	securityHeaders, err := muxhandlers.SecurityHeadersMiddleware(muxhandlers.SecurityHeadersConfig{})
	if err != nil {
		log.Fatalf("configuring security headers middleware: %v", err)
	}
	mgmtRouter.Use(securityHeaders)
}

// loadOpenAPIFile reads and parses the OpenAPI document at path, installing
// it into specCell and logging the operations it registers. A missing or
// invalid file is fatal: OPENAPI_FILE is an explicit operator request to
// serve that spec, and silently ignoring a bad one would hide a
// misconfiguration.
func loadOpenAPIFile(specCell *dispatch.SpecCell, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("reading OPENAPI_FILE %s: %v", path, err)
	}

	doc, err := openapi.ParseDocument(raw)
	if err != nil {
		log.Fatalf("parsing OPENAPI_FILE %s: %v", path, err)
	}

	specCell.Store(&openapi.Context{Parsed: doc, Raw: json.RawMessage(raw)})

	count := 0
	for path, item := range doc.Paths {
		if item == nil {
			continue
		}
		for _, method := range openapi.MethodOrder {
			if openapi.OperationFor(item, method) != nil {
				count++
				log.Printf("registered from spec: %s %s", method, path)
			}
		}
	}
	log.Printf("loaded OpenAPI spec with %d operations", count)
}
