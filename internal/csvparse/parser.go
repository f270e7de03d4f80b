package csvparse

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrFieldCount is the cause of a ParseError for rows whose column count
// does not match Options.Columns.
var ErrFieldCount = errors.New("wrong number of fields")

// ParseError reports malformed CSV content.
type ParseError struct {
	Line   int   // 1-based line where the record starts
	Column int   // 1-based column, 0 when unknown
	Err    error // ErrFieldCount or the csv package's syntax error
}

func (e *ParseError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("csv: record on line %d, column %d: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("csv: record on line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options configures the parser.
type Options struct {
	// SkipRows is the number of leading records to discard (the header).
	SkipRows int

	// Trim removes leading and trailing whitespace from every field.
	Trim bool

	// Columns names the fields positionally. Every data row must have
	// exactly len(Columns) fields.
	Columns []string
}

// Row is one decoded data row.
type Row struct {
	Line    int
	columns []string
	values  []string
}

// Get returns the value of the named column, or "" if the column is unknown.
func (r Row) Get(name string) string {
	for i, c := range r.columns {
		if c == name {
			return r.values[i]
		}
	}
	return ""
}

// Values returns the row's fields in column order.
func (r Row) Values() []string {
	return r.values
}

// Map returns the row as a column name to value map.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.values[i]
	}
	return m
}

// Parser reads rows from a CSV stream one at a time.
type Parser struct {
	r       *csv.Reader
	opts    Options
	skipped int
	rows    int
	err     error
}

// New returns a Parser reading from r.
func New(r io.Reader, opts Options) (*Parser, error) {
	if len(opts.Columns) == 0 {
		return nil, errors.New("csvparse: at least one column is required")
	}
	if opts.SkipRows < 0 {
		return nil, errors.New("csvparse: skip rows must not be negative")
	}

	cr := csv.NewReader(r)
	// Column count is checked after skipping so a wider header is accepted.
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = opts.Trim

	return &Parser{r: cr, opts: opts}, nil
}

// Next returns the next data row. It returns io.EOF once the stream is
// exhausted. Malformed content yields a *ParseError; errors reading the
// underlying stream are returned unchanged. After an error every further
// call returns the same error.
func (p *Parser) Next() (Row, error) {
	if p.err != nil {
		return Row{}, p.err
	}
	row, err := p.next()
	if err != nil {
		p.err = err
	}
	return row, err
}

func (p *Parser) next() (Row, error) {
	for {
		record, err := p.r.Read()
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return Row{}, &ParseError{Line: pe.StartLine, Column: pe.Column, Err: pe.Err}
			}
			return Row{}, err
		}

		line, _ := p.r.FieldPos(0)

		if p.skipped < p.opts.SkipRows {
			p.skipped++
			continue
		}

		if len(record) != len(p.opts.Columns) {
			return Row{}, &ParseError{
				Line: line,
				Err:  fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(record), len(p.opts.Columns)),
			}
		}

		if p.opts.Trim {
			for i := range record {
				record[i] = strings.TrimSpace(record[i])
			}
		}

		p.rows++
		return Row{Line: line, columns: p.opts.Columns, values: record}, nil
	}
}

// Rows returns the number of data rows returned so far.
func (p *Parser) Rows() int {
	return p.rows
}
