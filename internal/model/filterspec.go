package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// TriState is a boolean filter that can also be left unconstrained.
type TriState uint8

const (
	Any TriState = iota
	Yes
	No
)

// Matches reports whether v satisfies the constraint.
func (t TriState) Matches(v bool) bool {
	switch t {
	case Yes:
		return v
	case No:
		return !v
	default:
		return true
	}
}

// Next cycles Any -> Yes -> No -> Any.
func (t TriState) Next() TriState {
	return (t + 1) % 3
}

func (t TriState) String() string {
	switch t {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "any"
	}
}

// MarshalJSON encodes Any as null.
func (t TriState) MarshalJSON() ([]byte, error) {
	switch t {
	case Yes:
		return []byte("true"), nil
	case No:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (t *TriState) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*t = Yes
	case "false":
		*t = No
	case "null", "":
		*t = Any
	default:
		return fmt.Errorf("tri-state: unexpected value %s", data)
	}
	return nil
}

// Range is an inclusive integer bound. A missing side is unbounded.
type Range struct {
	Min    int
	Max    int
	HasMin bool
	HasMax bool
}

// AtLeast returns a range with only a lower bound.
func AtLeast(n int) Range { return Range{Min: n, HasMin: true} }

// AtMost returns a range with only an upper bound.
func AtMost(n int) Range { return Range{Max: n, HasMax: true} }

// Between returns a range bounded on both sides.
func Between(lo, hi int) Range { return Range{Min: lo, Max: hi, HasMin: true, HasMax: true} }

// Contains applies both bounds inclusively.
func (r Range) Contains(v int) bool {
	if r.HasMin && v < r.Min {
		return false
	}
	if r.HasMax && v > r.Max {
		return false
	}
	return true
}

// IsZero reports whether the range is unbounded.
func (r Range) IsZero() bool { return !r.HasMin && !r.HasMax }

type rangeJSON struct {
	Min *int `json:"min"`
	Max *int `json:"max"`
}

func (r Range) MarshalJSON() ([]byte, error) {
	var rj rangeJSON
	if r.HasMin {
		rj.Min = &r.Min
	}
	if r.HasMax {
		rj.Max = &r.Max
	}
	return json.Marshal(rj)
}

func (r *Range) UnmarshalJSON(data []byte) error {
	var rj rangeJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return err
	}
	*r = rangeFromPtrs(rj.Min, rj.Max)
	return nil
}

func rangeFromPtrs(lo, hi *int) Range {
	var r Range
	if lo != nil {
		r.Min, r.HasMin = *lo, true
	}
	if hi != nil {
		r.Max, r.HasMax = *hi, true
	}
	return r
}

// FilterSpec is the full set of user-selected constraints. The zero value
// constrains nothing.
type FilterSpec struct {
	Brands      []string `json:"brands"`
	SubBrands   []string `json:"subBrands"`
	Weights     []Weight `json:"weights"`
	Materials   []string `json:"materials"`
	HookSizes   []string `json:"hookSizes"`
	Vintage     TriState `json:"vintage"`
	Multicolor  TriState `json:"multicolor"`
	MachineWash TriState `json:"machineWash"`
	MachineDry  TriState `json:"machineDry"`
	Length      Range    `json:"length"`
	Rows        Range    `json:"rows"`
	Qty         Range    `json:"qty"`
	Softness    Range    `json:"softness"`
	ColorGroups []string `json:"colorGroups"`
	Search      string   `json:"search"`
}

// DefaultFilterSpec returns the spec that admits every record.
func DefaultFilterSpec() FilterSpec {
	return FilterSpec{}
}

// IsDefault reports whether f admits every record.
func (f FilterSpec) IsDefault() bool {
	f.Search = strings.TrimSpace(f.Search)
	return f.Equal(FilterSpec{})
}

// Active counts the constraints in effect, for status display.
func (f FilterSpec) Active() int {
	n := 0
	for _, set := range [][]string{f.Brands, f.SubBrands, f.Materials, f.HookSizes, f.ColorGroups} {
		if len(set) > 0 {
			n++
		}
	}
	if len(f.Weights) > 0 {
		n++
	}
	for _, t := range []TriState{f.Vintage, f.Multicolor, f.MachineWash, f.MachineDry} {
		if t != Any {
			n++
		}
	}
	for _, r := range []Range{f.Length, f.Rows, f.Qty, f.Softness} {
		if !r.IsZero() {
			n++
		}
	}
	if strings.TrimSpace(f.Search) != "" {
		n++
	}
	return n
}

// Clone returns a copy that shares no slices with f.
func (f FilterSpec) Clone() FilterSpec {
	f.Brands = slices.Clone(f.Brands)
	f.SubBrands = slices.Clone(f.SubBrands)
	f.Weights = slices.Clone(f.Weights)
	f.Materials = slices.Clone(f.Materials)
	f.HookSizes = slices.Clone(f.HookSizes)
	f.ColorGroups = slices.Clone(f.ColorGroups)
	return f
}

// Equal treats nil and empty sets as the same.
func (f FilterSpec) Equal(g FilterSpec) bool {
	return slices.Equal(f.Brands, g.Brands) &&
		slices.Equal(f.SubBrands, g.SubBrands) &&
		slices.Equal(f.Weights, g.Weights) &&
		slices.Equal(f.Materials, g.Materials) &&
		slices.Equal(f.HookSizes, g.HookSizes) &&
		slices.Equal(f.ColorGroups, g.ColorGroups) &&
		f.Vintage == g.Vintage &&
		f.Multicolor == g.Multicolor &&
		f.MachineWash == g.MachineWash &&
		f.MachineDry == g.MachineDry &&
		f.Length == g.Length &&
		f.Rows == g.Rows &&
		f.Qty == g.Qty &&
		f.Softness == g.Softness &&
		f.Search == g.Search
}

// FilterSpecVersion is the current persisted layout of FilterSpec.
const FilterSpecVersion = 2

// legacyFilterSpec is the version 1 layout: flat min/max fields, a plain
// boolean-or-null multicolor flag, and no material or hook constraints.
type legacyFilterSpec struct {
	Brands      []string `json:"brands"`
	SubBrands   []string `json:"subBrands"`
	Weights     []string `json:"weights"`
	Multicolor  TriState `json:"multicolor"`
	ColorGroups []string `json:"colorGroups"`
	MinLength   *int     `json:"minLength"`
	MaxLength   *int     `json:"maxLength"`
	MinRows     *int     `json:"minRows"`
	MaxRows     *int     `json:"maxRows"`
	Search      string   `json:"search"`
}

// DecodeFilterSpec reads a persisted spec of the given layout version.
func DecodeFilterSpec(version int, data []byte) (FilterSpec, error) {
	switch version {
	case 1:
		var l legacyFilterSpec
		if err := json.Unmarshal(data, &l); err != nil {
			return FilterSpec{}, fmt.Errorf("decode v1 filter spec: %w", err)
		}
		f := FilterSpec{
			Brands:      l.Brands,
			SubBrands:   l.SubBrands,
			Multicolor:  l.Multicolor,
			ColorGroups: l.ColorGroups,
			Length:      rangeFromPtrs(l.MinLength, l.MaxLength),
			Rows:        rangeFromPtrs(l.MinRows, l.MaxRows),
			Search:      l.Search,
		}
		for _, w := range l.Weights {
			f.Weights = append(f.Weights, ParseWeight(w))
		}
		return f, nil
	case FilterSpecVersion:
		var f FilterSpec
		if err := json.Unmarshal(data, &f); err != nil {
			return FilterSpec{}, fmt.Errorf("decode filter spec: %w", err)
		}
		return f, nil
	default:
		return FilterSpec{}, fmt.Errorf("unsupported filter spec version %d", version)
	}
}
