// Package endmember loads the spectral library used by the unmixing
// kernel: a table of L spectral bands (rows) by M endmembers (columns),
// scaled to reflectance in [0,1].
package endmember

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Table is an endmember matrix. Values is indexed [band][endmember].
// Names carries the column headers, typically material names like
// "vegetation", "soil", "shade".
type Table struct {
	Names  []string
	Values [][]float64
}

// NBands returns L, the number of spectral bands.
func (t *Table) NBands() int { return len(t.Values) }

// NEndmembers returns M, the number of endmember columns.
func (t *Table) NEndmembers() int { return len(t.Names) }

// LoadCSV reads an endmember table from a CSV file. The header row names
// the endmembers; each following row holds one band's reflectances. The
// column count is caller-defined, which is why this reader works on the
// raw csv layer rather than struct binding.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open endmember table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse endmember table %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("endmember table %s needs a header and at least one band row", path)
	}

	names := make([]string, len(records[0]))
	for j, n := range records[0] {
		names[j] = strings.TrimSpace(n)
		if names[j] == "" {
			return nil, fmt.Errorf("endmember table %s: empty name in column %d", path, j+1)
		}
	}

	values := make([][]float64, 0, len(records)-1)
	for i, row := range records[1:] {
		if len(row) != len(names) {
			return nil, fmt.Errorf("endmember table %s: row %d has %d columns, expected %d", path, i+2, len(row), len(names))
		}
		band := make([]float64, len(row))
		for j, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("endmember table %s: row %d column %d: %w", path, i+2, j+1, err)
			}
			band[j] = v
		}
		values = append(values, band)
	}

	t := &Table{Names: names, Values: values}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("endmember table %s: %w", path, err)
	}
	return t, nil
}

// Validate checks that the table is non-empty and that all reflectances
// sit in [0,1].
func (t *Table) Validate() error {
	if t.NEndmembers() == 0 {
		return fmt.Errorf("no endmembers")
	}
	if t.NBands() == 0 {
		return fmt.Errorf("no bands")
	}
	for i, band := range t.Values {
		for j, v := range band {
			if v < 0 || v > 1 {
				return fmt.Errorf("band %d endmember %q: reflectance %g outside [0,1]", i+1, t.Names[j], v)
			}
		}
	}
	return nil
}
