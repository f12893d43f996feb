// Package schemas holds the JSON Schemas that model payloads are validated
// against before they are decoded into profiles, reviews and guides.
package schemas

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const (
	JobProfile        = "job_profile"
	CandidateProfile  = "candidate_profile"
	QualitativeReview = "qualitative_review"
	InterviewGuide    = "interview_guide"
)

//go:embed definitions/*.json
var definitions embed.FS

var (
	mu    sync.Mutex
	cache = map[string]*Schema{}
)

// Schema is a compiled, immutable JSON Schema.
type Schema struct {
	name     string
	raw      []byte
	compiled *gojsonschema.Schema
}

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "payload does not match %s schema:", ve.Schema)
	for i, err := range ve.Errors {
		fmt.Fprintf(&sb, " %d. %s: %s;", i+1, err.Field, err.Message)
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Name  string
	Cause error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("load schema %s: %v", e.Name, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Names lists the embedded schemas.
func Names() []string {
	entries, err := definitions.ReadDir("definitions")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}

// Get returns the compiled schema with the given name. Compiled schemas are cached.
func Get(name string) (*Schema, error) {
	mu.Lock()
	defer mu.Unlock()

	if s, ok := cache[name]; ok {
		return s, nil
	}

	raw, err := definitions.ReadFile(path.Join("definitions", name+".json"))
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Cause: err}
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Cause: err}
	}

	s := &Schema{name: name, raw: raw, compiled: compiled}
	cache[name] = s
	return s, nil
}

// MustGet is Get for embedded schemas known at compile time.
func MustGet(name string) *Schema {
	s, err := Get(name)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string {
	return s.name
}

// Document returns a fresh decoded copy of the schema document.
func (s *Schema) Document() map[string]any {
	var doc map[string]any
	if err := json.Unmarshal(s.raw, &doc); err != nil {
		return nil
	}
	return doc
}

// Validate checks a decoded JSON value against the schema and returns a
// *ValidationError listing every violation.
func (s *Schema) Validate(payload any) error {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return &ValidationError{
			Schema: s.name,
			Errors: []FieldError{{Field: "(root)", Message: err.Error()}},
		}
	}

	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Schema: s.name,
		Errors: make([]FieldError, 0, len(result.Errors())),
	}

	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}

	return validationErr
}
