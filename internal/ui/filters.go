package ui

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/abelbrown/yarnstash/internal/filter"
	"github.com/abelbrown/yarnstash/internal/model"
)

// field identifies one filterable attribute in the filter panel.
type field int

const (
	fieldBrand field = iota
	fieldSubBrand
	fieldWeight
	fieldMaterial
	fieldHookSize
	fieldColorGroup
	fieldVintage
	fieldMulticolor
	fieldMachineWash
	fieldMachineDry
	fieldLength
	fieldRows
	fieldQty
	fieldSoftness
)

var sectionNames = map[field]string{
	fieldBrand:       "Brand",
	fieldSubBrand:    "Sub-brand",
	fieldWeight:      "Weight",
	fieldMaterial:    "Material",
	fieldHookSize:    "Hook size",
	fieldColorGroup:  "Color",
	fieldVintage:     "Flags",
	fieldMulticolor:  "Flags",
	fieldMachineWash: "Flags",
	fieldMachineDry:  "Flags",
	fieldLength:      "Ranges",
	fieldRows:        "Ranges",
	fieldQty:         "Ranges",
	fieldSoftness:    "Ranges",
}

func (f field) isSet() bool   { return f <= fieldColorGroup }
func (f field) isTri() bool   { return f >= fieldVintage && f <= fieldMachineDry }
func (f field) isRange() bool { return f >= fieldLength }

// filterRow is one selectable line of the filter panel.
type filterRow struct {
	field field
	value string // set value; empty for flags and ranges
	label string
	count int
	hint  string // observed extent, for ranges
}

// filterRows lists every option the current record set offers.
func filterRows(f filter.Facets, tax *model.ColorTaxonomy) []filterRow {
	var rows []filterRow
	addValues := func(fd field, values []filter.Value) {
		for _, v := range values {
			rows = append(rows, filterRow{field: fd, value: v.Value, label: v.Value, count: v.Count})
		}
	}
	addValues(fieldBrand, f.Brands)
	addValues(fieldSubBrand, f.SubBrands)
	for _, v := range f.Weights {
		rows = append(rows, filterRow{field: fieldWeight, value: v.Value, label: model.Weight(v.Value).Label(), count: v.Count})
	}
	addValues(fieldMaterial, f.Materials)
	addValues(fieldHookSize, f.HookSizes)
	for _, name := range tax.Names() {
		rows = append(rows, filterRow{field: fieldColorGroup, value: name, label: name})
	}
	rows = append(rows,
		filterRow{field: fieldVintage, label: "Vintage"},
		filterRow{field: fieldMulticolor, label: "Multicolor"},
		filterRow{field: fieldMachineWash, label: "Machine wash"},
		filterRow{field: fieldMachineDry, label: "Machine dry"},
		filterRow{field: fieldLength, label: "Yards", hint: extentHint(f.Length)},
		filterRow{field: fieldRows, label: "Rows", hint: extentHint(f.Rows)},
		filterRow{field: fieldQty, label: "Qty", hint: extentHint(f.Qty)},
		filterRow{field: fieldSoftness, label: "Softness", hint: extentHint(f.Softness)},
	)
	return rows
}

func extentHint(e filter.Extent) string {
	return fmt.Sprintf("%d–%d", e.Min, e.Max)
}

func triOf(spec model.FilterSpec, f field) *model.TriState {
	switch f {
	case fieldVintage:
		return &spec.Vintage
	case fieldMulticolor:
		return &spec.Multicolor
	case fieldMachineWash:
		return &spec.MachineWash
	case fieldMachineDry:
		return &spec.MachineDry
	}
	return nil
}

func rangeOf(spec *model.FilterSpec, f field) *model.Range {
	switch f {
	case fieldLength:
		return &spec.Length
	case fieldRows:
		return &spec.Rows
	case fieldQty:
		return &spec.Qty
	case fieldSoftness:
		return &spec.Softness
	}
	return nil
}

// marker shows the row's current state in spec.
func (r filterRow) marker(spec model.FilterSpec) string {
	switch {
	case r.field.isSet():
		if r.selected(spec) {
			return Checked.Render("[x]")
		}
		return "[ ]"
	case r.field.isTri():
		t := *triOf(spec, r.field)
		if t == model.Any {
			return "any"
		}
		return Checked.Render(t.String())
	default:
		rg := *rangeOf(&spec, r.field)
		if rg.IsZero() {
			return "any"
		}
		return Checked.Render(formatRange(rg))
	}
}

func (r filterRow) selected(spec model.FilterSpec) bool {
	switch r.field {
	case fieldBrand:
		return slices.Contains(spec.Brands, r.value)
	case fieldSubBrand:
		return slices.Contains(spec.SubBrands, r.value)
	case fieldWeight:
		return slices.Contains(spec.Weights, model.Weight(r.value))
	case fieldMaterial:
		return slices.Contains(spec.Materials, r.value)
	case fieldHookSize:
		return slices.Contains(spec.HookSizes, r.value)
	case fieldColorGroup:
		return slices.Contains(spec.ColorGroups, r.value)
	}
	return false
}

// toggleIn adds v to set, or removes it when present. set is not modified.
func toggleIn[T comparable](set []T, v T) []T {
	if i := slices.Index(set, v); i >= 0 {
		return slices.Delete(slices.Clone(set), i, i+1)
	}
	return append(slices.Clone(set), v)
}

// toggle flips a set membership or cycles a tri-state. Range rows are
// edited through setRange instead.
func toggle(spec model.FilterSpec, r filterRow) model.FilterSpec {
	spec = spec.Clone()
	switch r.field {
	case fieldBrand:
		spec.Brands = toggleIn(spec.Brands, r.value)
	case fieldSubBrand:
		spec.SubBrands = toggleIn(spec.SubBrands, r.value)
	case fieldWeight:
		spec.Weights = toggleIn(spec.Weights, model.Weight(r.value))
	case fieldMaterial:
		spec.Materials = toggleIn(spec.Materials, r.value)
	case fieldHookSize:
		spec.HookSizes = toggleIn(spec.HookSizes, r.value)
	case fieldColorGroup:
		spec.ColorGroups = toggleIn(spec.ColorGroups, r.value)
	case fieldVintage:
		spec.Vintage = spec.Vintage.Next()
	case fieldMulticolor:
		spec.Multicolor = spec.Multicolor.Next()
	case fieldMachineWash:
		spec.MachineWash = spec.MachineWash.Next()
	case fieldMachineDry:
		spec.MachineDry = spec.MachineDry.Next()
	}
	return spec
}

func setRange(spec model.FilterSpec, f field, rg model.Range) model.FilterSpec {
	spec = spec.Clone()
	if p := rangeOf(&spec, f); p != nil {
		*p = rg
	}
	return spec
}

var errBadRange = errors.New(`range must look like "5-10", "5-" or "-10"`)

// parseRange reads "lo-hi" with either side optional. A blank string
// clears the range.
func parseRange(s string) (model.Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.Range{}, nil
	}
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return model.Range{}, errBadRange
		}
		return model.Between(n, n), nil
	}
	var rg model.Range
	if lo = strings.TrimSpace(lo); lo != "" {
		n, err := strconv.Atoi(lo)
		if err != nil || n < 0 {
			return model.Range{}, errBadRange
		}
		rg.Min, rg.HasMin = n, true
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		n, err := strconv.Atoi(hi)
		if err != nil || n < 0 {
			return model.Range{}, errBadRange
		}
		rg.Max, rg.HasMax = n, true
	}
	if rg.HasMin && rg.HasMax && rg.Min > rg.Max {
		return model.Range{}, errBadRange
	}
	return rg, nil
}

func formatRange(rg model.Range) string {
	var lo, hi string
	if rg.HasMin {
		lo = strconv.Itoa(rg.Min)
	}
	if rg.HasMax {
		hi = strconv.Itoa(rg.Max)
	}
	return lo + "-" + hi
}

// renderFilterPanel draws the option list with the cursor row highlighted,
// scrolled to keep the cursor visible.
func renderFilterPanel(rows []filterRow, cursor int, spec model.FilterSpec, tax *model.ColorTaxonomy, width, height int) string {
	var lines []string
	cursorLine := 0
	section := ""
	for i, r := range rows {
		if name := sectionNames[r.field]; name != section {
			section = name
			lines = append(lines, SectionHeader.Render(name))
		}
		label := r.label
		if r.field == fieldColorGroup {
			label = Swatch(tax, r.label)
		}
		line := fmt.Sprintf("%s %s", r.marker(spec), label)
		switch {
		case r.count > 0:
			line += StatusBarText.Render(fmt.Sprintf(" (%d)", r.count))
		case r.hint != "":
			line += StatusBarText.Render(" " + r.hint)
		}
		if i == cursor {
			cursorLine = len(lines)
			line = SelectedRow.Render(line)
		} else {
			line = NormalRow.Render(line)
		}
		lines = append(lines, line)
	}

	visible := max(height-4, 3)
	start := 0
	if cursorLine >= visible {
		start = cursorLine - visible + 1
	}
	end := min(start+visible, len(lines))

	title := PanelTitle.Render(fmt.Sprintf("Filters (%d active)", spec.Active()))
	help := StatusBarText.Render("space toggle · enter edit range · c clear · esc close")
	body := strings.Join(lines[start:end], "\n")
	return Panel.Width(max(width-2, 20)).Render(title + "\n" + body + "\n\n" + help)
}
