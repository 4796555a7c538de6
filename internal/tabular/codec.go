package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/abelbrown/yarnstash/internal/model"
)

// ErrSourceEmpty is returned when the input text has no content at all.
var ErrSourceEmpty = errors.New("source text is empty")

// Warning is a recoverable problem found while parsing. The row is either
// skipped or parsed with defaults; parsing continues.
type Warning struct {
	Line int
	Msg  string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Msg)
}

// Codec parses and serializes records for one column layout.
type Codec struct {
	Columns ColumnMapping

	// OnWarning, if set, receives each recoverable problem.
	OnWarning func(Warning)
}

// NewCodec returns a codec for the given layout.
func NewCodec(cols ColumnMapping) *Codec {
	return &Codec{Columns: cols}
}

// Parse reads text with the default column layout.
func Parse(text string) ([]model.Record, error) {
	return NewCodec(DefaultColumns()).Parse(text)
}

// Serialize writes records with the default column layout.
func Serialize(records []model.Record) (string, error) {
	return NewCodec(DefaultColumns()).Serialize(records)
}

func (c *Codec) warn(line int, format string, args ...any) {
	if c.OnWarning != nil {
		c.OnWarning(Warning{Line: line, Msg: fmt.Sprintf(format, args...)})
	}
}

// Parse converts delimited text with a header row into records. Rows whose
// cells are all blank are skipped. Malformed rows are skipped with a
// warning rather than failing the whole parse. Identity is the value of the
// ID column when mapped and present, otherwise record-<n> where n is the
// data row's position among kept rows.
func (c *Codec) Parse(text string) ([]model.Record, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrSourceEmpty
	}

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(text, "\ufeff")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}

	records := make([]model.Record, 0)
	seen := make(map[string]struct{})
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				c.warn(pe.Line, "skipped malformed row: %v", pe.Err)
				continue
			}
			return nil, fmt.Errorf("read rows: %w", err)
		}
		line, _ := r.FieldPos(0)
		if blankRow(row) {
			continue
		}
		if len(row) < len(header) {
			c.warn(line, "row has %d of %d fields; missing fields use defaults", len(row), len(header))
		}

		cell := func(name string) string {
			if name == "" {
				return ""
			}
			i, ok := idx[strings.ToLower(name)]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		rec := c.recordFrom(cell)
		rec.ID = cell(c.Columns.ID)
		if rec.ID != "" {
			if _, dup := seen[rec.ID]; dup {
				c.warn(line, "duplicate id %q; using positional id", rec.ID)
				rec.ID = ""
			}
		}
		if rec.ID == "" {
			rec.ID = "record-" + strconv.Itoa(len(records))
		}
		seen[rec.ID] = struct{}{}
		records = append(records, rec)
	}
	return records, nil
}

func (c *Codec) recordFrom(cell func(string) string) model.Record {
	cols := c.Columns
	colors := make([]string, 0, model.MaxColors)
	for _, name := range cols.Colors {
		colors = append(colors, cell(name))
	}
	return model.Record{
		Brand:       cell(cols.Brand),
		SubBrand:    cell(cols.SubBrand),
		Vintage:     parseBool(cell(cols.Vintage)),
		Qty:         parseCount(cell(cols.Qty)),
		Length:      parseCount(cell(cols.Length)),
		Multicolor:  parseBool(cell(cols.Multicolor)),
		Softness:    parseCount(cell(cols.Softness)),
		Weight:      model.ParseWeight(cell(cols.Weight)),
		HookSize:    cell(cols.HookSize),
		Rows:        parseCount(cell(cols.Rows)),
		MachineWash: parseBool(cell(cols.MachineWash)),
		MachineDry:  parseBool(cell(cols.MachineDry)),
		Material:    cell(cols.Material),
		BrandColor:  cell(cols.BrandColor),
		Colors:      model.CleanColors(colors),
	}
}

// Serialize writes a header row and one row per record. Booleans are
// written as Yes/No and counts as decimal integers.
func (c *Codec) Serialize(records []model.Record) (string, error) {
	cols := c.Columns
	type column struct {
		name  string
		value func(model.Record) string
	}
	all := []column{
		{cols.ID, func(r model.Record) string { return r.ID }},
		{cols.Brand, func(r model.Record) string { return r.Brand }},
		{cols.SubBrand, func(r model.Record) string { return r.SubBrand }},
		{cols.Vintage, func(r model.Record) string { return formatBool(r.Vintage) }},
		{cols.Qty, func(r model.Record) string { return strconv.Itoa(r.Qty) }},
		{cols.Length, func(r model.Record) string { return strconv.Itoa(r.Length) }},
		{cols.Multicolor, func(r model.Record) string { return formatBool(r.Multicolor) }},
		{cols.Softness, func(r model.Record) string { return strconv.Itoa(r.Softness) }},
		{cols.Weight, func(r model.Record) string { return string(r.Weight) }},
		{cols.HookSize, func(r model.Record) string { return r.HookSize }},
		{cols.Rows, func(r model.Record) string { return strconv.Itoa(r.Rows) }},
		{cols.MachineWash, func(r model.Record) string { return formatBool(r.MachineWash) }},
		{cols.MachineDry, func(r model.Record) string { return formatBool(r.MachineDry) }},
		{cols.Material, func(r model.Record) string { return r.Material }},
		{cols.BrandColor, func(r model.Record) string { return r.BrandColor }},
	}
	for i, name := range cols.Colors {
		all = append(all, column{name, func(r model.Record) string {
			if i < len(r.Colors) {
				return r.Colors[i]
			}
			return ""
		}})
	}

	mapped := make([]column, 0, len(all))
	for _, col := range all {
		if col.name != "" {
			mapped = append(mapped, col)
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	row := make([]string, len(mapped))
	for i, col := range mapped {
		row[i] = col.name
	}
	if err := w.Write(row); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		for i, col := range mapped {
			row[i] = col.value(rec)
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write record %s: %w", rec.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush: %w", err)
	}
	return buf.String(), nil
}

func blankRow(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// parseBool accepts yes/true/1 in any case; everything else is false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1":
		return true
	}
	return false
}

func formatBool(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// parseCount reads the leading integer of s. Fractions are truncated;
// unparseable or negative input yields 0.
func parseCount(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
