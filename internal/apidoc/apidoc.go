// Package apidoc holds the OpenAPI description of the portal API. It serves
// the document and checks request bodies against its schemas.
package apidoc

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/pitabwire/reportal/model"
)

//go:embed openapi.yaml
var source []byte

// Operation is one documented route.
type Operation struct {
	ID     string
	Method string
	Path   string
	body   *openapi3.Schema
}

// Document is the loaded and validated API description.
type Document struct {
	doc  *openapi3.T
	json []byte
	byID map[string]Operation
}

// Load parses and validates the embedded document.
func Load(ctx context.Context) (*Document, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(source)
	if err != nil {
		return nil, fmt.Errorf("apidoc: parsing: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("apidoc: validating: %w", err)
	}
	raw, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("apidoc: encoding: %w", err)
	}

	d := &Document{doc: doc, json: raw, byID: make(map[string]Operation)}
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			if op.OperationID == "" {
				return nil, fmt.Errorf("apidoc: %s %s has no operationId", method, path)
			}
			entry := Operation{ID: op.OperationID, Method: method, Path: path}
			if op.RequestBody != nil && op.RequestBody.Value != nil {
				if mt := op.RequestBody.Value.Content.Get("application/json"); mt != nil && mt.Schema != nil {
					entry.body = mt.Schema.Value
				}
			}
			d.byID[op.OperationID] = entry
		}
	}
	return d, nil
}

// Operations returns every documented route sorted by path then method.
func (d *Document) Operations() []Operation {
	out := make([]Operation, 0, len(d.byID))
	for _, op := range d.byID {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Operation looks up a route by operationId.
func (d *Document) Operation(id string) (Operation, bool) {
	op, ok := d.byID[id]
	return op, ok
}

// ValidateBody checks a decoded JSON body against the operation's request
// schema. Operations without a JSON body schema accept anything.
func (d *Document) ValidateBody(operationID string, body any) error {
	op, ok := d.byID[operationID]
	if !ok {
		return fmt.Errorf("apidoc: unknown operation %q", operationID)
	}
	if op.body == nil {
		return nil
	}

	err := op.body.VisitJSON(body)
	if err == nil {
		return nil
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		field := strings.Join(se.JSONPointer(), ".")
		if field == "" {
			field = "body"
		}
		return model.NewValidationError([]model.FieldError{
			{Field: field, Code: "SCHEMA", Message: se.Reason},
		})
	}
	return model.NewValidationError([]model.FieldError{
		{Field: "body", Code: "SCHEMA", Message: err.Error()},
	})
}

// Handler serves the document as JSON.
func (d *Document) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=300")
		_, _ = w.Write(d.json)
	}
}
