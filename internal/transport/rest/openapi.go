package rest

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
)

// OpenAPISpec is the API description, checked once at startup and then
// served as-is.
type OpenAPISpec struct {
	Doc *openapi3.T
	raw []byte
}

func LoadOpenAPI(ctx context.Context, path string) (*OpenAPISpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read openapi document: %w", err)
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return &OpenAPISpec{Doc: doc, raw: raw}, nil
}

// Documents reports whether the spec has an operation for method on path,
// where path is relative to the server base.
func (s *OpenAPISpec) Documents(method, path string) bool {
	if s == nil || s.Doc == nil || s.Doc.Paths == nil {
		return false
	}
	item := s.Doc.Paths.Find(path)
	return item != nil && item.GetOperation(method) != nil
}

func (s *OpenAPISpec) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(s.raw)
}
