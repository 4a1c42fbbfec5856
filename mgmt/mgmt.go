// Package mgmt mounts the /__mock management API: endpoint CRUD, trace
// inspection, OpenAPI import/export, and the default-proxy cell. Every
// handler is a single store mutation plus a JSON confirmation payload; none
// perform I/O beyond the store and trace.
package mgmt

import (
	"encoding/json"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arthurkowalsky/mokku/dispatch"
	"github.com/arthurkowalsky/mokku/mux"
	"github.com/arthurkowalsky/mokku/openapi"
	"github.com/arthurkowalsky/mokku/store"
	"github.com/arthurkowalsky/mokku/trace"
)

// API holds the shared state every management handler operates on.
type API struct {
	Store        *store.Store
	Trace        *trace.Trace
	DefaultProxy *dispatch.ProxyCell
	Spec         *dispatch.SpecCell
}

// Mount registers every /__mock route as a subrouter of r, scoped to the
// "/__mock" prefix, and returns that subrouter so the caller can attach
// management-only middleware (e.g. stricter content-type checks) to it.
func Mount(r *mux.Router, api *API) *mux.Router {
	sub := r.PathPrefix("/__mock").Subrouter()
	sub.HandleFunc("/endpoints", api.addEndpoint).Methods(http.MethodPost)
	sub.HandleFunc("/endpoints", api.deleteEndpoint).Methods(http.MethodDelete)
	sub.HandleFunc("/config", api.getConfig).Methods(http.MethodGet)
	sub.HandleFunc("/logs", api.getLogs).Methods(http.MethodGet)
	sub.HandleFunc("/logs", api.clearLogs).Methods(http.MethodDelete)
	sub.HandleFunc("/import", api.importSpec).Methods(http.MethodPost)
	sub.HandleFunc("/export", api.exportSpec).Methods(http.MethodGet)
	sub.HandleFunc("/export.yaml", api.exportSpecYAML).Methods(http.MethodGet)
	sub.HandleFunc("/proxy", api.getProxy).Methods(http.MethodGet)
	sub.HandleFunc("/proxy", api.setProxy).Methods(http.MethodPost)
	sub.HandleFunc("/proxy", api.deleteProxy).Methods(http.MethodDelete)
	return sub
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": detail})
}

type endpointRequest struct {
	Method   string            `json:"method"`
	Path     string            `json:"path"`
	Response json.RawMessage   `json:"response"`
	Status   int               `json:"status,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	ProxyURL string            `json:"proxy_url,omitempty"`
}

// addEndpoint implements POST /__mock/endpoints.
func (a *API) addEndpoint(w http.ResponseWriter, r *http.Request) {
	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	method, ok := store.NormalizeMethod(req.Method)
	if !ok {
		badRequest(w, "unsupported method: "+req.Method)
		return
	}

	status := req.Status
	if status == 0 {
		status = http.StatusOK
	}

	a.Store.Put(store.Key{Method: method, Path: req.Path}, store.Endpoint{
		Response: req.Response,
		Status:   status,
		Headers:  req.Headers,
		ProxyURL: req.ProxyURL,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"added": true})
}

type removeRequest struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// deleteEndpoint implements DELETE /__mock/endpoints.
func (a *API) deleteEndpoint(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	method, _ := store.NormalizeMethod(req.Method)
	removedFromDynamic, removedFromSpec := a.Store.Delete(store.Key{Method: method, Path: req.Path})

	writeJSON(w, http.StatusOK, map[string]bool{"removed": removedFromDynamic || removedFromSpec})
}

// endpointDescriptor is one entry in the /__mock/config response, covering
// both OpenAPI-derived and dynamic endpoints.
type endpointDescriptor struct {
	Method   string            `json:"method"`
	Path     string            `json:"path"`
	Response json.RawMessage   `json:"response,omitempty"`
	Status   int               `json:"status,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Schema   json.RawMessage   `json:"request_schema,omitempty"`
	Source   string            `json:"source"`
}

// getConfig implements GET /__mock/config: the union of non-removed
// OpenAPI-derived endpoints and dynamic endpoints.
func (a *API) getConfig(w http.ResponseWriter, r *http.Request) {
	var descriptors []endpointDescriptor

	if ctx := a.Spec.Get(); ctx != nil && ctx.Parsed != nil {
		for _, method := range openapi.MethodOrder {
			for path, item := range ctx.Parsed.Paths {
				if item == nil {
					continue
				}
				key := store.Key{Method: method, Path: path}
				if a.Store.IsRemoved(key) {
					continue
				}

				op := openapi.OperationFor(item, method)
				if op == nil {
					continue
				}

				status := openapi.PreferredStatus(op, openapi.ImportStatusOrder)
				example, _ := openapi.ExtractExample(op, status)

				descriptors = append(descriptors, endpointDescriptor{
					Method:   method,
					Path:     path,
					Response: example,
					Status:   status,
					Schema:   openapi.RequestSchema(ctx.Raw, method, path),
					Source:   "openapi",
				})
			}
		}
	}

	dynamic, _ := a.Store.Snapshot()
	for key, ep := range dynamic {
		descriptors = append(descriptors, endpointDescriptor{
			Method:   key.Method,
			Path:     key.Path,
			Response: ep.Response,
			Status:   ep.Status,
			Headers:  ep.Headers,
			Source:   "dynamic",
		})
	}

	writeJSON(w, http.StatusOK, descriptors)
}

// getLogs implements GET /__mock/logs.
func (a *API) getLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Trace.Snapshot())
}

// clearLogs implements DELETE /__mock/logs.
func (a *API) clearLogs(w http.ResponseWriter, r *http.Request) {
	a.Trace.Clear()
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

type importRequest struct {
	OpenAPISpec json.RawMessage `json:"openapi_spec"`
}

// importSpec implements POST /__mock/import.
func (a *API) importSpec(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	doc, err := openapi.ParseDocument(req.OpenAPISpec)
	if err != nil {
		badRequest(w, "Invalid OpenAPI specification: "+strings.TrimPrefix(err.Error(), "invalid OpenAPI specification: "))
		return
	}

	imported := openapi.Import(a.Store, doc)

	writeJSON(w, http.StatusOK, map[string]any{
		"imported":  true,
		"count":     len(imported),
		"endpoints": imported,
	})
}

// exportSpec implements GET /__mock/export.
func (a *API) exportSpec(w http.ResponseWriter, r *http.Request) {
	dynamic, _ := a.Store.Snapshot()
	writeJSON(w, http.StatusOK, openapi.Export(dynamic))
}

// exportSpecYAML implements GET /__mock/export.yaml, an additive convenience
// surface not present in the source but a natural companion to its
// dual JSON/YAML-capable OpenAPI types.
func (a *API) exportSpecYAML(w http.ResponseWriter, r *http.Request) {
	dynamic, _ := a.Store.Snapshot()
	doc := openapi.Export(dynamic)

	// Render from the JSON form so the YAML keys and omitted fields match
	// GET /__mock/export (the Document fields carry JSON tags only).
	data, err := json.Marshal(doc)
	var generic any
	if err == nil {
		err = json.Unmarshal(data, &generic)
	}
	var raw []byte
	if err == nil {
		raw, err = yaml.Marshal(generic)
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to render YAML"})
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// getProxy implements GET /__mock/proxy.
func (a *API) getProxy(w http.ResponseWriter, r *http.Request) {
	url, ok := a.DefaultProxy.Get()
	writeJSON(w, http.StatusOK, proxyResponse(url, ok))
}

type setProxyRequest struct {
	URL string `json:"url"`
}

// setProxy implements POST /__mock/proxy.
func (a *API) setProxy(w http.ResponseWriter, r *http.Request) {
	var req setProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	a.DefaultProxy.Set(req.URL)

	url, ok := a.DefaultProxy.Get()
	writeJSON(w, http.StatusOK, proxyResponse(url, ok))
}

// deleteProxy implements DELETE /__mock/proxy.
func (a *API) deleteProxy(w http.ResponseWriter, r *http.Request) {
	a.DefaultProxy.Clear()
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func proxyResponse(url string, enabled bool) map[string]any {
	var u any
	if enabled {
		u = url
	}
	return map[string]any{"proxy_url": u, "enabled": enabled}
}
