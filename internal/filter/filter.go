// Package filter evaluates a FilterSpec against records.
// Everything here is pure: records in, records out, inputs never mutated.
package filter

import (
	"slices"
	"strings"
	"sync"

	"github.com/abelbrown/yarnstash/internal/model"
)

// Reason names the first constraint that rejected a record.
type Reason string

const (
	Pass        Reason = ""
	Brand       Reason = "brand"
	SubBrand    Reason = "sub-brand"
	Weight      Reason = "weight"
	Material    Reason = "material"
	HookSize    Reason = "hook size"
	Vintage     Reason = "vintage"
	Multicolor  Reason = "multicolor"
	MachineWash Reason = "machine wash"
	MachineDry  Reason = "machine dry"
	Length      Reason = "length"
	Rows        Reason = "rows"
	Qty         Reason = "qty"
	Softness    Reason = "softness"
	Search      Reason = "search"
	ColorGroup  Reason = "color group"
)

var defaultTaxonomy = sync.OnceValue(model.DefaultColorTaxonomy)

// Predicate reports whether a record passes a compiled spec.
type Predicate func(model.Record) bool

// Matcher is a compiled FilterSpec. It memoizes color-group lookups, so a
// Matcher must not be shared between goroutines.
type Matcher struct {
	spec   model.FilterSpec
	tax    *model.ColorTaxonomy
	search string

	brands    map[string]struct{}
	subBrands map[string]struct{}
	weights   map[model.Weight]struct{}
	materials map[string]struct{}
	hooks     map[string]struct{}

	colorMemo map[string]bool
}

// Compile prepares spec for repeated evaluation. A nil taxonomy means the
// default one.
func Compile(spec model.FilterSpec, tax *model.ColorTaxonomy) *Matcher {
	if tax == nil {
		tax = defaultTaxonomy()
	}
	spec = spec.Clone()
	return &Matcher{
		spec:      spec,
		tax:       tax,
		search:    strings.ToLower(strings.TrimSpace(spec.Search)),
		brands:    set(spec.Brands),
		subBrands: set(spec.SubBrands),
		weights:   set(spec.Weights),
		materials: set(spec.Materials),
		hooks:     set(spec.HookSizes),
		colorMemo: make(map[string]bool),
	}
}

func set[T comparable](values []T) map[T]struct{} {
	if len(values) == 0 {
		return nil
	}
	m := make(map[T]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func excludedBy[T comparable](allowed map[T]struct{}, v T) bool {
	if allowed == nil {
		return false
	}
	_, ok := allowed[v]
	return !ok
}

// Match reports whether r passes every constraint.
func (m *Matcher) Match(r model.Record) bool {
	return m.Excluded(r) == Pass
}

// Predicate returns m.Match as a function value.
func (m *Matcher) Predicate() Predicate {
	return m.Match
}

// Excluded returns the first constraint r fails, checking in a fixed order:
// inclusion sets, flags, ranges, search, then color groups.
func (m *Matcher) Excluded(r model.Record) Reason {
	s := &m.spec

	switch {
	case excludedBy(m.brands, r.Brand):
		return Brand
	case excludedBy(m.subBrands, r.SubBrand):
		return SubBrand
	case excludedBy(m.weights, r.Weight):
		return Weight
	case excludedBy(m.materials, r.Material):
		return Material
	case excludedBy(m.hooks, r.HookSize):
		return HookSize
	}

	switch {
	case !s.Vintage.Matches(r.Vintage):
		return Vintage
	case !s.Multicolor.Matches(r.Multicolor):
		return Multicolor
	case !s.MachineWash.Matches(r.MachineWash):
		return MachineWash
	case !s.MachineDry.Matches(r.MachineDry):
		return MachineDry
	}

	switch {
	case !s.Length.Contains(r.Length):
		return Length
	case !s.Rows.Contains(r.Rows):
		return Rows
	case !s.Qty.Contains(r.Qty):
		return Qty
	case !s.Softness.Contains(r.Softness):
		return Softness
	}

	if m.search != "" && !m.matchSearch(r) {
		return Search
	}
	if len(s.ColorGroups) > 0 && !m.matchColorGroups(r) {
		return ColorGroup
	}
	return Pass
}

// searchFields are the text fields free-text search looks at, besides the
// color labels.
func searchFields(r model.Record) [5]string {
	return [5]string{r.Brand, r.SubBrand, string(r.Weight), r.Material, r.BrandColor}
}

func (m *Matcher) matchSearch(r model.Record) bool {
	for _, f := range searchFields(r) {
		if strings.Contains(strings.ToLower(f), m.search) {
			return true
		}
	}
	for _, c := range r.Colors {
		if strings.Contains(strings.ToLower(c), m.search) {
			return true
		}
	}
	return false
}

func (m *Matcher) matchColorGroups(r model.Record) bool {
	for _, c := range r.Colors {
		hit, seen := m.colorMemo[c]
		if !seen {
			hit = slices.ContainsFunc(m.spec.ColorGroups, func(g string) bool {
				return m.tax.Matches(c, g)
			})
			m.colorMemo[c] = hit
		}
		if hit {
			return true
		}
	}
	return false
}

// Apply returns the records that pass spec, in input order. The result is
// never nil and never aliases records' backing array.
func Apply(records []model.Record, spec model.FilterSpec) []model.Record {
	return ApplyWith(records, spec, nil)
}

// ApplyWith is Apply with an explicit color taxonomy.
func ApplyWith(records []model.Record, spec model.FilterSpec, tax *model.ColorTaxonomy) []model.Record {
	if len(records) == 0 {
		return []model.Record{}
	}
	m := Compile(spec, tax)
	result := make([]model.Record, 0, len(records))
	for _, r := range records {
		if m.Match(r) {
			result = append(result, r)
		}
	}
	return result
}

// Count is len(Apply(records, spec)) without building the slice.
func Count(records []model.Record, spec model.FilterSpec) int {
	m := Compile(spec, nil)
	n := 0
	for _, r := range records {
		if m.Match(r) {
			n++
		}
	}
	return n
}

// Breakdown tallies, for the records spec rejects, which constraint
// rejected each one.
func Breakdown(records []model.Record, spec model.FilterSpec) map[Reason]int {
	m := Compile(spec, nil)
	out := make(map[Reason]int)
	for _, r := range records {
		if why := m.Excluded(r); why != Pass {
			out[why]++
		}
	}
	return out
}
