package llmjson

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

// Schema is a compiled JSON schema for a capability response shape.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

func CompileSchema(name, document string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	url := name + ".json"
	if err := compiler.AddResource(url, strings.NewReader(document)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: compiled}, nil
}

func MustCompileSchema(name, document string) *Schema {
	s, err := CompileSchema(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a decoded value. The value is round-tripped through JSON so
// typed structs validate the same way as generic maps.
func (s *Schema) Validate(value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return domain.WrapError(domain.ErrMalformedResponse, "validate "+s.name, err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return domain.WrapError(domain.ErrMalformedResponse, "validate "+s.name, err)
	}
	if err := s.schema.Validate(generic); err != nil {
		return domain.WrapError(domain.ErrMalformedResponse, "validate "+s.name, err)
	}
	return nil
}

// ClassificationSchema describes the classifier's answer.
var ClassificationSchema = MustCompileSchema("classification", `{
	"type": "object",
	"required": ["document_category", "document_type"],
	"properties": {
		"document_category": {"type": ["string", "null"]},
		"document_type": {"type": ["string", "null"]}
	}
}`)

// PolicyVerdictSchema describes one entry of the batched policy answer.
var PolicyVerdictSchema = MustCompileSchema("policy_verdict", `{
	"type": "object",
	"required": ["result"],
	"properties": {
		"result": {"type": "string"},
		"comment": {"type": ["string", "null"]}
	}
}`)
