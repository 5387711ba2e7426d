// Package cases loads and generates case packs. A case is an image and the
// secret prompt that produced it, players try to guess the prompt.
package cases

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

// MinCases is the smallest playable pack
const MinCases = 10

// ErrCaseNotFound is returned by Pack.Find
var ErrCaseNotFound = errors.New("case not found")

//go:embed schema.json
var schema string

// Case is one round of the game
type Case struct {
	ID           string `json:"id" validate:"notblank"`
	ImageURL     string `json:"imageUrl" validate:"imageurl"`
	SecretPrompt string `json:"secretPrompt" validate:"notblank"`
}

// Pack is a validated list of cases
type Pack struct {
	cases []Case
	index map[string]int
}

// ValidationError lists every problem found in a case pack
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a single problem at a field path such as "3.imageUrl"
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid case pack:\n")
	for i, err := range ve.Errors {
		fmt.Fprintf(&sb, "  %d. %s: %s\n", i+1, err.Field, err.Message)
	}
	return sb.String()
}

func (ve *ValidationError) add(field, message string) {
	ve.Errors = append(ve.Errors, FieldError{Field: field, Message: message})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}, true)
	v.RegisterValidation("imageurl", func(fl validator.FieldLevel) bool {
		return isImageURL(fl.Field().String())
	}, true)
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// isImageURL accepts http(s) links and paths served by the game itself
func isImageURL(u string) bool {
	if strings.TrimSpace(u) == "" {
		return false
	}
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "/")
}

// Load reads and validates the case pack at path
func Load(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case pack: %w", err)
	}
	return Parse(data)
}

// Parse validates data against the case pack schema and the pack rules
func Parse(data []byte) (*Pack, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to validate case pack: %w", err)
	}
	if !result.Valid() {
		verr := &ValidationError{}
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			verr.add(field, desc.Description())
		}
		return nil, verr
	}

	var list []Case
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode case pack: %w", err)
	}
	return NewPack(list)
}

// NewPack checks list and indexes it by id
func NewPack(list []Case) (*Pack, error) {
	verr := &ValidationError{}
	if len(list) < MinCases {
		verr.add("(root)", fmt.Sprintf("expected at least %d cases, got %d", MinCases, len(list)))
	}

	index := make(map[string]int, len(list))
	for i, c := range list {
		if err := validate.Struct(c); err != nil {
			var fieldErrs validator.ValidationErrors
			if !errors.As(err, &fieldErrs) {
				return nil, err
			}
			for _, fe := range fieldErrs {
				verr.add(fmt.Sprintf("%d.%s", i, fe.Field()), fmt.Sprintf("failed %q check", fe.Tag()))
			}
		}
		if _, dup := index[c.ID]; dup {
			verr.add(fmt.Sprintf("%d.id", i), fmt.Sprintf("duplicate case id %q", c.ID))
			continue
		}
		index[c.ID] = i
	}

	if len(verr.Errors) > 0 {
		return nil, verr
	}
	return &Pack{cases: list, index: index}, nil
}

// Len returns the number of cases
func (p *Pack) Len() int {
	return len(p.cases)
}

// Cases returns a copy of the cases in pack order
func (p *Pack) Cases() []Case {
	return append([]Case(nil), p.cases...)
}

// Find returns the case with the given id
func (p *Pack) Find(id string) (Case, error) {
	i, ok := p.index[id]
	if !ok {
		return Case{}, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
	}
	return p.cases[i], nil
}

// Save writes list as indented JSON
func Save(path string, list []Case) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode case pack: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write case pack: %w", err)
	}
	return nil
}
