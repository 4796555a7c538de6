package ui

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/dustin/go-humanize"

	"github.com/abelbrown/yarnstash/internal/model"
)

// sortKey is the table ordering. sortNone keeps source order.
type sortKey int

const (
	sortNone sortKey = iota
	sortBrand
	sortQty
	sortLength
	sortWeight
	sortSoftness
	sortKeyCount
)

func (k sortKey) String() string {
	switch k {
	case sortBrand:
		return "brand"
	case sortQty:
		return "qty"
	case sortLength:
		return "yards"
	case sortWeight:
		return "weight"
	case sortSoftness:
		return "softness"
	default:
		return "source"
	}
}

func (k sortKey) next() sortKey {
	return (k + 1) % sortKeyCount
}

// sortRecords returns a sorted copy. Ties keep their filtered order.
func sortRecords(records []model.Record, by sortKey) []model.Record {
	out := slices.Clone(records)
	var less func(a, b model.Record) int
	switch by {
	case sortBrand:
		less = func(a, b model.Record) int {
			if c := cmp.Compare(strings.ToLower(a.Brand), strings.ToLower(b.Brand)); c != 0 {
				return c
			}
			return cmp.Compare(strings.ToLower(a.SubBrand), strings.ToLower(b.SubBrand))
		}
	case sortQty:
		less = func(a, b model.Record) int { return cmp.Compare(b.Qty, a.Qty) }
	case sortLength:
		less = func(a, b model.Record) int { return cmp.Compare(b.TotalLength(), a.TotalLength()) }
	case sortWeight:
		less = func(a, b model.Record) int {
			return cmp.Compare(slices.Index(model.Weights, a.Weight), slices.Index(model.Weights, b.Weight))
		}
	case sortSoftness:
		less = func(a, b model.Record) int { return cmp.Compare(b.Softness, a.Softness) }
	default:
		return out
	}
	slices.SortStableFunc(out, less)
	return out
}

// columnsFor sizes the table to width. Brand and colors absorb the slack.
func columnsFor(width int) []table.Column {
	fixed := []table.Column{
		{Title: "Qty", Width: 4},
		{Title: "Weight", Width: 11},
		{Title: "Yards", Width: 7},
		{Title: "Material", Width: 12},
		{Title: "Hook", Width: 6},
		{Title: "Soft", Width: 4},
		{Title: "Flags", Width: 5},
	}
	used := 0
	for _, c := range fixed {
		used += c.Width + 2 // cell padding
	}
	flex := max(width-used-6, 30)
	brandW := flex * 3 / 5
	colorW := flex - brandW
	cols := []table.Column{{Title: "Brand", Width: brandW}}
	cols = append(cols, fixed...)
	return append(cols, table.Column{Title: "Colors", Width: colorW})
}

// rowFor renders one record as table cells in columnsFor order.
func rowFor(r model.Record) table.Row {
	name := r.Brand
	if r.SubBrand != "" {
		name += " " + r.SubBrand
	}
	soft := ""
	if r.Softness > 0 {
		soft = strconv.Itoa(r.Softness)
	}
	return table.Row{
		name,
		strconv.Itoa(r.Qty),
		r.Weight.Label(),
		humanize.Comma(int64(r.Length)),
		r.Material,
		r.HookSize,
		soft,
		flags(r),
		strings.Join(r.Colors, ", "),
	}
}

// flags packs the boolean attributes: V vintage, M multicolor, W machine
// wash, D machine dry.
func flags(r model.Record) string {
	var b strings.Builder
	for _, f := range []struct {
		on bool
		c  byte
	}{{r.Vintage, 'V'}, {r.Multicolor, 'M'}, {r.MachineWash, 'W'}, {r.MachineDry, 'D'}} {
		if f.on {
			b.WriteByte(f.c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

func rowsFor(records []model.Record) []table.Row {
	rows := make([]table.Row, len(records))
	for i, r := range records {
		rows[i] = rowFor(r)
	}
	return rows
}
