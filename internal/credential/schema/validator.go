// Package schema validates credential subjects against registered schemas.
// A schema's property specs are translated into a JSON Schema document and
// compiled once per schema id and version.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"attesto/internal/credential/models"
)

// FieldError is one failed constraint.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ValidationError lists every failed constraint for a subject.
type ValidationError struct {
	SchemaID string
	Fields   []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("subject does not satisfy schema %s: %s", e.SchemaID, strings.Join(parts, "; "))
}

// Validator compiles and caches schemas.
type Validator struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{compiled: make(map[string]*jsonschema.Schema)}
}

// Validate checks required fields, per-field type, enum membership and
// date-time format. Returns a *ValidationError on constraint failures.
func (v *Validator) Validate(s *models.Schema, subject map[string]any) error {
	compiled, err := v.compile(s)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(subject)
	if err != nil {
		return fmt.Errorf("marshal subject: %w", err)
	}
	var instance any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("decode subject: %w", err)
	}

	err = compiled.Validate(instance)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("validate subject: %w", err)
	}
	out := &ValidationError{SchemaID: s.ID}
	collect(ve, &out.Fields)
	if len(out.Fields) == 0 {
		out.Fields = append(out.Fields, FieldError{Message: ve.Message})
	}
	return out
}

func collect(ve *jsonschema.ValidationError, into *[]FieldError) {
	if len(ve.Causes) == 0 {
		*into = append(*into, FieldError{
			Field:   strings.TrimPrefix(ve.InstanceLocation, "/"),
			Message: ve.Message,
		})
		return
	}
	for _, c := range ve.Causes {
		collect(c, into)
	}
}

// Compile reports whether s translates into a usable JSON Schema.
func (v *Validator) Compile(s *models.Schema) error {
	_, err := v.compile(s)
	return err
}

func (v *Validator) compile(s *models.Schema) (*jsonschema.Schema, error) {
	key := s.ID + "@" + s.Version
	v.mu.Lock()
	defer v.mu.Unlock()
	if c, ok := v.compiled[key]; ok {
		return c, nil
	}

	doc, err := json.Marshal(Document(s))
	if err != nil {
		return nil, fmt.Errorf("marshal schema document: %w", err)
	}
	url := "mem://schemas/" + key
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	c, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", s.ID, err)
	}
	v.compiled[key] = c
	return c, nil
}

// Document renders the schema as a JSON Schema object. Unknown subject
// fields are allowed.
func Document(s *models.Schema) map[string]any {
	props := make(map[string]any, len(s.Properties))
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		prop := s.Properties[name]
		p := map[string]any{}
		if prop.Type != "" {
			p["type"] = prop.Type
		}
		if len(prop.Enum) > 0 {
			p["enum"] = prop.Enum
		}
		if prop.Format != "" {
			p["format"] = prop.Format
		}
		props[name] = p
	}
	doc := map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		doc["required"] = s.Required
	}
	return doc
}
