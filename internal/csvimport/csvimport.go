// Package csvimport validates lead CSV uploads and serves the import template.
// Only the header row is checked; rows are counted, not parsed into records.
package csvimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Columns accepted in a lead import file.
var (
	RequiredColumns = []string{"name", "company", "email"}
	OptionalColumns = []string{"phone", "status", "source", "score", "owner"}
)

// ErrEmpty is returned for a body with no header row.
var ErrEmpty = errors.New("csv file is empty")

// HeaderError lists header problems. At least one list is non-empty.
type HeaderError struct {
	Missing []string `json:"missing"`
	Unknown []string `json:"unknown"`
}

func (e *HeaderError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown columns: "+strings.Join(e.Unknown, ", "))
	}
	return strings.Join(parts, "; ")
}

// Summary describes a file whose header passed validation.
type Summary struct {
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// Template returns the downloadable template: the header row and one example.
func Template() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(slices.Concat(RequiredColumns, OptionalColumns))
	_ = w.Write([]string{"Aisha Rahman", "Contoso", "aisha.rahman@contoso.com", "+1-206-555-0142", "new", "web", "80", "E-201"})
	w.Flush()
	return buf.Bytes()
}

// Validate reads the header row of r and counts the non-blank data rows.
// Header names are matched case-insensitively after trimming a UTF-8 BOM.
func Validate(r io.Reader) (*Summary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make([]string, 0, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		columns = append(columns, strings.ToLower(strings.TrimSpace(h)))
	}
	if len(columns) == 1 && columns[0] == "" {
		return nil, ErrEmpty
	}

	if herr := checkHeader(columns); herr != nil {
		return nil, herr
	}

	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rows+1, err)
		}
		if !blank(record) {
			rows++
		}
	}
	return &Summary{Columns: columns, Rows: rows}, nil
}

func checkHeader(columns []string) *HeaderError {
	var herr HeaderError
	for _, col := range RequiredColumns {
		if !slices.Contains(columns, col) {
			herr.Missing = append(herr.Missing, col)
		}
	}
	for _, col := range columns {
		if !slices.Contains(RequiredColumns, col) && !slices.Contains(OptionalColumns, col) && !slices.Contains(herr.Unknown, col) {
			herr.Unknown = append(herr.Unknown, col)
		}
	}
	if herr.Missing == nil && herr.Unknown == nil {
		return nil
	}
	if herr.Missing == nil {
		herr.Missing = []string{}
	}
	if herr.Unknown == nil {
		herr.Unknown = []string{}
	}
	return &herr
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
