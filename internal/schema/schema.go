// Package schema validates export documents against the embedded JSON
// schema of tobackend.json.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// URL identifies the embedded schema.
const URL = "https://github.com/Alia5/syncbackend/export.schema.json"

//go:embed export.schema.json
var exportSchema []byte

// Source returns the raw schema document.
func Source() []byte {
	return bytes.Clone(exportSchema)
}

type Validator struct {
	schema *jsonschema.Schema
}

func New() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(URL, bytes.NewReader(exportSchema)); err != nil {
		return nil, fmt.Errorf("load export schema: %w", err)
	}
	s, err := c.Compile(URL)
	if err != nil {
		return nil, fmt.Errorf("compile export schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// ValidateJSON validates an encoded document.
func (v *Validator) ValidateJSON(data []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("validate document: %w", err)
	}
	return nil
}
