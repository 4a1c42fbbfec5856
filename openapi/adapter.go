// Adapter logic for synthesizing endpoints from (and back into) an OpenAPI 3
// document, built on the Document/PathItem/Operation wire types above.
package openapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arthurkowalsky/mokku/store"
)

// MethodOrder is the fixed iteration order import/dispatch walk a
// PathItem's operations in.
var MethodOrder = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

// ImportStatusOrder is the preferred-status order used when importing:
// the first of these present in an operation's responses map wins.
var ImportStatusOrder = []int{201, 204, 202, 200}

// DispatchStatusOrder is the preferred-status order used by the dispatch
// cascade's OpenAPI-example fallback. It deliberately differs from
// ImportStatusOrder — both orders are reproduced verbatim per SPEC_FULL.md.
var DispatchStatusOrder = []int{200, 201, 204, 202}

// Context is the immutable, atomically-replaced snapshot of the currently
// loaded OpenAPI document: the parsed form used for matching/extraction and
// the original raw JSON used to echo request schemas verbatim.
type Context struct {
	Parsed *Document
	Raw    json.RawMessage
}

// ParseDocument validates and parses raw as an OpenAPI 3 document. On any
// parse failure it returns a client-level error and the caller must leave
// the store unchanged.
func ParseDocument(raw json.RawMessage) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI specification: %w", err)
	}
	if !strings.HasPrefix(doc.OpenAPI, "3") {
		return nil, fmt.Errorf("invalid OpenAPI specification: unsupported openapi version %q", doc.OpenAPI)
	}
	return &doc, nil
}

// OperationFor returns the Operation defined for method on item, or nil.
func OperationFor(item *PathItem, method string) *Operation {
	switch method {
	case "GET":
		return item.Get
	case "POST":
		return item.Post
	case "PUT":
		return item.Put
	case "PATCH":
		return item.Patch
	case "DELETE":
		return item.Delete
	default:
		return nil
	}
}

// PreferredStatus returns the first status code in order that op defines a
// response for, or 200 if none of them are present.
func PreferredStatus(op *Operation, order []int) int {
	for _, status := range order {
		if _, ok := op.Responses[fmt.Sprint(status)]; ok {
			return status
		}
	}
	return 200
}

// ExtractExample returns the JSON example body for op's response at status,
// reading responses[status].content["application/json"].example. It reports
// false when no such example is present.
func ExtractExample(op *Operation, status int) (json.RawMessage, bool) {
	resp, ok := op.Responses[fmt.Sprint(status)]
	if !ok || resp == nil {
		return nil, false
	}
	media, ok := resp.Content["application/json"]
	if !ok || media == nil || media.Example == nil {
		return nil, false
	}
	raw, err := json.Marshal(media.Example)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// OperationMatch describes one (method, template, operation) tuple found by
// walking a document's paths for a concrete request path.
type OperationMatch struct {
	Template string
	Operation *Operation
}

// FindOperation scans doc's paths, looking for a template that matches path
// and defines an operation for method. This is used by the dispatcher's
// OpenAPI-example fallback (§4.5 step 5). Paths are visited in Go map
// iteration order, so when several templates match, which one is returned
// is not defined.
func FindOperation(doc *Document, method, path string) (OperationMatch, bool) {
	for tpl, item := range doc.Paths {
		if item == nil {
			continue
		}
		if !store.MatchesTemplate(tpl, path) {
			continue
		}
		if op := OperationFor(item, method); op != nil {
			return OperationMatch{Template: tpl, Operation: op}, true
		}
	}
	return OperationMatch{}, false
}

// ImportedEndpoint describes one endpoint created by Import, for the
// management API's acknowledgement payload.
type ImportedEndpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Status int    `json:"status"`
}

// Import walks every (path, method) pair with a defined operation in doc,
// inserting a DynamicEndpoint for each into s with Content-Type:
// application/json as its sole header and no per-endpoint proxy URL.
func Import(s *store.Store, doc *Document) []ImportedEndpoint {
	var imported []ImportedEndpoint

	for path, item := range doc.Paths {
		if item == nil {
			continue
		}
		for _, method := range MethodOrder {
			op := OperationFor(item, method)
			if op == nil {
				continue
			}

			status := PreferredStatus(op, ImportStatusOrder)
			response, ok := ExtractExample(op, status)
			if !ok {
				response = json.RawMessage(`{"message": "OK"}`)
			}

			s.Put(store.Key{Method: method, Path: path}, store.Endpoint{
				Response: response,
				Status:   status,
				Headers:  map[string]string{"Content-Type": "application/json"},
			})

			imported = append(imported, ImportedEndpoint{Method: method, Path: path, Status: status})
		}
	}

	return imported
}

// operationID derives an OpenAPI operationId from a method and path
// template: "<method>_<path with '/' replaced by '_', leading/trailing '_'
// trimmed>".
func operationID(method, path string) string {
	slug := strings.Trim(strings.ReplaceAll(path, "/", "_"), "_")
	return strings.ToLower(method) + "_" + slug
}

// Export builds a fresh OpenAPI 3.0.0 document from every dynamic endpoint
// in dynamic. RemovedSpecSet and the loaded OpenApiContext do not
// participate in export.
func Export(dynamic map[store.Key]store.Endpoint) *Document {
	doc := &Document{
		OpenAPI: "3.0.0",
		Info: Info{
			Title:       "Mock API",
			Description: "Exported from Rust-Mock server",
			Version:     "1.0.0",
		},
		Paths: make(map[string]*PathItem),
	}

	for key, ep := range dynamic {
		item, ok := doc.Paths[key.Path]
		if !ok {
			item = &PathItem{}
			doc.Paths[key.Path] = item
		}

		op := &Operation{
			Summary:     fmt.Sprintf("%s %s", key.Method, key.Path),
			OperationID: operationID(key.Method, key.Path),
			Responses:   map[string]*Response{},
		}

		if key.Method == "POST" || key.Method == "PUT" || key.Method == "PATCH" {
			op.RequestBody = &RequestBody{
				Content: map[string]*MediaType{
					"application/json": {Schema: &Schema{Type: TypeString("object")}},
				},
			}
		}

		var example any
		_ = json.Unmarshal(ep.Response, &example)

		op.Responses[fmt.Sprint(ep.Status)] = &Response{
			Description: fmt.Sprintf("Successful response with status %d", ep.Status),
			Content: map[string]*MediaType{
				"application/json": {
					Example: example,
					Schema:  &Schema{Type: TypeString("object")},
				},
			},
		}

		assignOperation(item, key.Method, op)
	}

	return doc
}

// assignOperation stores op on item under method.
func assignOperation(item *PathItem, method string, op *Operation) {
	switch method {
	case "GET":
		item.Get = op
	case "POST":
		item.Post = op
	case "PUT":
		item.Put = op
	case "PATCH":
		item.Patch = op
	case "DELETE":
		item.Delete = op
	}
}

// RequestSchema pulls raw["paths"][path][method]["requestBody"]["content"]
// ["application/json"]["schema"] out of the original raw JSON document, so
// the config enumeration can echo the request schema verbatim even though
// the Document type doesn't model every OpenAPI field.
func RequestSchema(raw json.RawMessage, method, path string) json.RawMessage {
	if raw == nil {
		return nil
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}

	paths, err := dig(generic, "paths")
	if err != nil {
		return nil
	}

	var pathsMap map[string]json.RawMessage
	if err := json.Unmarshal(paths, &pathsMap); err != nil {
		return nil
	}

	pathRaw, ok := pathsMap[path]
	if !ok {
		return nil
	}

	var pathMap map[string]json.RawMessage
	if err := json.Unmarshal(pathRaw, &pathMap); err != nil {
		return nil
	}

	opRaw, ok := pathMap[strings.ToLower(method)]
	if !ok {
		return nil
	}

	schema, err := dig(mustMap(opRaw), "requestBody", "content", "application/json", "schema")
	if err != nil {
		return nil
	}

	return schema
}

// dig walks a chain of nested JSON object keys, unmarshaling one level at a
// time, and returns the raw value at the end of the chain.
func dig(m map[string]json.RawMessage, keys ...string) (json.RawMessage, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("no keys")
	}

	v, ok := m[keys[0]]
	if !ok {
		return nil, fmt.Errorf("missing key %q", keys[0])
	}

	if len(keys) == 1 {
		return v, nil
	}

	var next map[string]json.RawMessage
	if err := json.Unmarshal(v, &next); err != nil {
		return nil, err
	}

	return dig(next, keys[1:]...)
}

// mustMap unmarshals raw into a map, returning an empty map on failure so
// dig's caller can keep chaining without an extra error check.
func mustMap(raw json.RawMessage) map[string]json.RawMessage {
	var m map[string]json.RawMessage
	_ = json.Unmarshal(raw, &m)
	return m
}
