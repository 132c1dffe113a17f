package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFS embed.FS

type schemas struct {
	create *jsonschema.Schema
	update *jsonschema.Schema
}

func loadSchemas() (schemas, error) {
	compiler := jsonschema.NewCompiler()
	names := []string{"create_todo.json", "update_todo.json"}
	for _, name := range names {
		data, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			return schemas{}, err
		}
		if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
			return schemas{}, fmt.Errorf("add schema %s: %w", name, err)
		}
	}
	var s schemas
	var err error
	if s.create, err = compiler.Compile("create_todo.json"); err != nil {
		return schemas{}, fmt.Errorf("compile create schema: %w", err)
	}
	if s.update, err = compiler.Compile("update_todo.json"); err != nil {
		return schemas{}, fmt.Errorf("compile update schema: %w", err)
	}
	return s, nil
}

// validateBody checks raw JSON against schema and returns a one-line
// message naming the first offending field.
func validateBody(schema *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %v", err)
	}
	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}
	leaf := firstLeaf(ve)
	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	if field == "" {
		return fmt.Errorf("invalid request: %s", leaf.Message)
	}
	return fmt.Errorf("invalid %s: %s", strings.ReplaceAll(field, "/", "."), leaf.Message)
}

func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
