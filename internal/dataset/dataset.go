// Package dataset loads evaluation datasets from YAML or JSON files.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"rescore/internal/domain"
)

// Dataset is a named collection of evaluation cases. The document shape is
// {name, version, description, test_cases: [...]}.
type Dataset struct {
	Name        string        `json:"name" yaml:"name" validate:"required"`
	Version     string        `json:"version,omitempty" yaml:"version,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Cases       []domain.Case `json:"test_cases" yaml:"test_cases" validate:"required,min=1,dive"`
}

var validate = validator.New()

// Load reads a dataset file, choosing the decoder by extension (.yaml, .yml,
// or .json), and validates its structure. Case IDs must be unique within the
// file.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("reading dataset file: %w", err)
	}

	var ds Dataset
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &ds); err != nil {
			return nil, fmt.Errorf("parsing dataset YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &ds); err != nil {
			return nil, fmt.Errorf("parsing dataset JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", ext)
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Validate checks structure and case-ID uniqueness.
func (d *Dataset) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid dataset: %w", err)
	}
	seen := make(map[string]struct{}, len(d.Cases))
	for i := range d.Cases {
		id := d.Cases[i].ID
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate case ID %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Case returns the case with the given ID.
func (d *Dataset) Case(id string) (domain.Case, bool) {
	for i := range d.Cases {
		if d.Cases[i].ID == id {
			return d.Cases[i], true
		}
	}
	return domain.Case{}, false
}
