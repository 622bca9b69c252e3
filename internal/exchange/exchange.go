// Package exchange matches a holder's credentials against a verifier's input
// descriptors. Only the field-constraint subset of Presentation Exchange is
// supported: JSON-path-like field paths with const, enum, pattern, type and
// inclusive minimum/maximum filters.
package exchange

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"

	"attesto/internal/credential/models"
)

// Filter constrains the value found at a field path. All set members must hold.
type Filter struct {
	Type    string   `json:"type,omitempty"`
	Const   any      `json:"const,omitempty"`
	Enum    []any    `json:"enum,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`
}

// Field is one constraint: the first path that resolves is checked against
// the filter. Optional fields are satisfied when no path resolves.
type Field struct {
	ID       string   `json:"id,omitempty"`
	Path     []string `json:"path"`
	Purpose  string   `json:"purpose,omitempty"`
	Filter   *Filter  `json:"filter,omitempty"`
	Optional bool     `json:"optional,omitempty"`
}

type Constraints struct {
	Fields []Field `json:"fields,omitempty"`
}

// InputDescriptor is one credential the verifier asks for.
type InputDescriptor struct {
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
	Purpose     string      `json:"purpose,omitempty"`
	Constraints Constraints `json:"constraints"`
}

// DescriptorMatch lists the credentials that satisfy one descriptor, in
// input order.
type DescriptorMatch struct {
	DescriptorID string                        `json:"descriptorId"`
	Credentials  []models.VerifiableCredential `json:"credentials"`
}

// Result is the outcome of Match.
type Result struct {
	Matches            []DescriptorMatch `json:"matches"`
	CanSatisfy         bool              `json:"canSatisfy"`
	MissingDescriptors []string          `json:"missingDescriptors"`
}

// Selection returns the first matching credential per descriptor without
// repeating a credential.
func (r Result) Selection() []models.VerifiableCredential {
	seen := make(map[string]bool)
	var out []models.VerifiableCredential
	for _, m := range r.Matches {
		if len(m.Credentials) == 0 {
			continue
		}
		first := m.Credentials[0]
		if seen[first.ID] {
			continue
		}
		seen[first.ID] = true
		out = append(out, first)
	}
	return out
}

// Validate rejects descriptors that can never be evaluated.
func Validate(descriptors []InputDescriptor) error {
	ids := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		if d.ID == "" {
			return fmt.Errorf("input descriptor id is required")
		}
		if ids[d.ID] {
			return fmt.Errorf("duplicate input descriptor id %q", d.ID)
		}
		ids[d.ID] = true
		for _, f := range d.Constraints.Fields {
			if len(f.Path) == 0 {
				return fmt.Errorf("descriptor %s: field path is required", d.ID)
			}
			for _, p := range f.Path {
				if _, err := parsePath(p); err != nil {
					return fmt.Errorf("descriptor %s: %w", d.ID, err)
				}
			}
			if f.Filter != nil && f.Filter.Pattern != "" {
				if _, err := regexp.Compile(f.Filter.Pattern); err != nil {
					return fmt.Errorf("descriptor %s: invalid pattern: %w", d.ID, err)
				}
			}
		}
	}
	return nil
}

// Match evaluates every descriptor against every credential. The request is
// satisfiable iff each descriptor matches at least one credential.
func Match(credentials []models.VerifiableCredential, descriptors []InputDescriptor) Result {
	docs := make([]any, len(credentials))
	for i := range credentials {
		docs[i] = toGeneric(&credentials[i])
	}

	m := newMatcher()
	res := Result{
		Matches:            make([]DescriptorMatch, 0, len(descriptors)),
		MissingDescriptors: []string{},
	}
	for _, d := range descriptors {
		dm := DescriptorMatch{DescriptorID: d.ID, Credentials: []models.VerifiableCredential{}}
		for i := range credentials {
			if m.satisfiesAll(docs[i], d.Constraints.Fields) {
				dm.Credentials = append(dm.Credentials, credentials[i])
			}
		}
		if len(dm.Credentials) == 0 {
			res.MissingDescriptors = append(res.MissingDescriptors, d.ID)
		}
		res.Matches = append(res.Matches, dm)
	}
	res.CanSatisfy = len(res.MissingDescriptors) == 0
	return res
}

type matcher struct {
	patterns map[string]*regexp.Regexp
}

func newMatcher() *matcher {
	return &matcher{patterns: make(map[string]*regexp.Regexp)}
}

func (m *matcher) satisfiesAll(doc any, fields []Field) bool {
	for _, f := range fields {
		if !m.satisfies(doc, f) {
			return false
		}
	}
	return true
}

func (m *matcher) satisfies(doc any, f Field) bool {
	for _, p := range f.Path {
		v, ok := resolve(doc, p)
		if !ok {
			continue
		}
		if f.Filter == nil {
			return true
		}
		return m.accepts(f.Filter, v)
	}
	return f.Optional
}

// accepts applies the filter to v. An array value is accepted when any of
// its elements is, unless the filter asks for the array type itself.
func (m *matcher) accepts(f *Filter, v any) bool {
	if arr, ok := v.([]any); ok && f.Type != "array" {
		for _, el := range arr {
			if m.accepts(f, el) {
				return true
			}
		}
		return false
	}
	if f.Type != "" && !hasType(v, f.Type) {
		return false
	}
	if f.Const != nil && !equal(v, f.Const) {
		return false
	}
	if len(f.Enum) > 0 && !inEnum(v, f.Enum) {
		return false
	}
	if f.Pattern != "" {
		s, ok := v.(string)
		if !ok {
			return false
		}
		re := m.pattern(f.Pattern)
		if re == nil || !re.MatchString(s) {
			return false
		}
	}
	if f.Minimum != nil || f.Maximum != nil {
		n, ok := number(v)
		if !ok {
			return false
		}
		if f.Minimum != nil && n < *f.Minimum {
			return false
		}
		if f.Maximum != nil && n > *f.Maximum {
			return false
		}
	}
	return true
}

func (m *matcher) pattern(expr string) *regexp.Regexp {
	if re, ok := m.patterns[expr]; ok {
		return re
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		re = nil
	}
	m.patterns[expr] = re
	return re
}

func hasType(v any, t string) bool {
	switch t {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		_, ok := v.(float64)
		return ok
	case "integer":
		n, ok := v.(float64)
		return ok && n == math.Trunc(n)
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	default:
		return false
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// equal compares a decoded JSON value with a filter literal; numbers compare
// by value regardless of Go type.
func equal(v, want any) bool {
	if a, ok := number(v); ok {
		b, ok := number(want)
		return ok && a == b
	}
	return reflect.DeepEqual(v, normalize(want))
}

func inEnum(v any, enum []any) bool {
	for _, e := range enum {
		if equal(v, e) {
			return true
		}
	}
	return false
}

// normalize round-trips a literal through JSON so slices and maps compare
// against decoded documents.
func normalize(v any) any {
	switch v.(type) {
	case string, bool, nil:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func toGeneric(vc *models.VerifiableCredential) any {
	raw, err := json.Marshal(vc)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
