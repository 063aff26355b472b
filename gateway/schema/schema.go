// Package schema validates function results against the proxy integration
// response format.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed proxy-response.json
var proxyResponse json.RawMessage
var proxyResponseLoader = gojsonschema.NewBytesLoader(proxyResponse)

// Schema is a compiled JSON schema.
type Schema struct {
	schema *gojsonschema.Schema
}

// NewProxyResponseSchema compiles the proxy integration response schema.
func NewProxyResponseSchema() (*Schema, error) {
	schema, err := gojsonschema.NewSchema(proxyResponseLoader)
	if err != nil {
		return nil, err
	}

	return &Schema{schema: schema}, nil
}

// ValidationError lists the violations of a document.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("malformed proxy response: %s", strings.Join(e.Errors, "; "))
}

// Validate checks data against the schema. Data that is not JSON is
// reported as an error as well.
func (s *Schema) Validate(data []byte) error {
	res, err := s.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("malformed proxy response: %w", err)
	}

	if res.Valid() {
		return nil
	}

	errs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		errs = append(errs, e.String())
	}

	return &ValidationError{Errors: errs}
}
