// Package model defines the record models a sync run can target.
//
// A model names the table holding export file URLs and the positional CSV
// schema of the files it points at. Models are registered by name and picked
// once at startup from configuration.
package model

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// ErrUnknownModel is returned by Lookup for an unregistered name.
var ErrUnknownModel = errors.New("model: unknown model")

// Model describes where to find the newest export and how to read it.
type Model struct {
	// Name is the configuration name of the model.
	Name string

	// Table holds one row per published export file.
	Table string

	// URLColumn holds the export file URL.
	URLColumn string

	// OrderColumn orders exports; the greatest value is the newest.
	OrderColumn string

	// Columns are the CSV column names, mapped positionally.
	Columns []string

	// HeaderRows is the number of leading CSV rows to skip.
	HeaderRows int
}

// Record is one data row of a CEPR export. All fields are kept as text.
type Record struct {
	CEPR string `json:"cepr"`
	DOB  string `json:"dob"`
	DTR  string `json:"dtr"`
}

// Field names of Record as they appear in Model.Columns.
const (
	FieldCEPR = "cepr"
	FieldDOB  = "dob"
	FieldDTR  = "dtr"
)

// CEPR is the model for CEPR date-of-birth exports.
var CEPR = Model{
	Name:        "cepr",
	Table:       "cepr_files",
	URLColumn:   "url",
	OrderColumn: "created_at",
	Columns:     []string{FieldCEPR, FieldDOB, FieldDTR},
	HeaderRows:  1,
}

var (
	registry   = map[string]Model{}
	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

func init() {
	if err := Register(CEPR); err != nil {
		panic(err)
	}
}

// Register adds m to the registry, replacing any model with the same name.
func Register(m Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	registry[m.Name] = m
	return nil
}

// Lookup returns the model registered under name.
func Lookup(name string) (Model, error) {
	m, ok := registry[name]
	if !ok {
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return m, nil
}

// Names returns the registered model names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that m can be used to build queries and decode rows.
// Table and column names must be plain SQL identifiers.
func (m Model) Validate() error {
	if m.Name == "" {
		return errors.New("model: name is required")
	}
	for _, id := range []string{m.Table, m.URLColumn, m.OrderColumn} {
		if !identifier.MatchString(id) {
			return fmt.Errorf("model %s: invalid identifier %q", m.Name, id)
		}
	}
	if len(m.Columns) == 0 {
		return fmt.Errorf("model %s: at least one column is required", m.Name)
	}
	seen := make(map[string]bool, len(m.Columns))
	for _, c := range m.Columns {
		if c == "" || seen[c] {
			return fmt.Errorf("model %s: empty or duplicate column %q", m.Name, c)
		}
		seen[c] = true
	}
	if m.HeaderRows < 0 {
		return fmt.Errorf("model %s: header rows must not be negative", m.Name)
	}
	return nil
}

// Fields gives access to a parsed row by column name.
type Fields interface {
	Get(name string) string
}

// Decode builds a Record from a parsed row. Columns the row lacks decode
// as empty strings.
func Decode(f Fields) Record {
	return Record{
		CEPR: f.Get(FieldCEPR),
		DOB:  f.Get(FieldDOB),
		DTR:  f.Get(FieldDTR),
	}
}
