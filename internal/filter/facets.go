package filter

import (
	"cmp"
	"slices"

	"github.com/abelbrown/yarnstash/internal/model"
)

// Value is one selectable option with the number of records carrying it.
type Value struct {
	Value string
	Count int
}

// Extent is the observed span of a numeric field.
type Extent struct {
	Min, Max int
}

// Facets lists the options a filter panel can offer for a record set.
type Facets struct {
	Brands    []Value
	SubBrands []Value
	Weights   []Value
	Materials []Value
	HookSizes []Value

	Length   Extent
	Rows     Extent
	Qty      Extent
	Softness Extent
}

// Collect builds facets from records. Blank values are left out; options
// are sorted by value, weights in vocabulary order.
func Collect(records []model.Record) Facets {
	var (
		brands    = map[string]int{}
		subBrands = map[string]int{}
		weights   = map[string]int{}
		materials = map[string]int{}
		hooks     = map[string]int{}
	)
	var f Facets
	for i, r := range records {
		tally(brands, r.Brand)
		tally(subBrands, r.SubBrand)
		tally(weights, string(r.Weight))
		tally(materials, r.Material)
		tally(hooks, r.HookSize)

		if i == 0 {
			f.Length = Extent{r.Length, r.Length}
			f.Rows = Extent{r.Rows, r.Rows}
			f.Qty = Extent{r.Qty, r.Qty}
			f.Softness = Extent{r.Softness, r.Softness}
			continue
		}
		f.Length = f.Length.widen(r.Length)
		f.Rows = f.Rows.widen(r.Rows)
		f.Qty = f.Qty.widen(r.Qty)
		f.Softness = f.Softness.widen(r.Softness)
	}

	f.Brands = sorted(brands)
	f.SubBrands = sorted(subBrands)
	f.Materials = sorted(materials)
	f.HookSizes = sorted(hooks)
	for _, w := range model.Weights {
		if n := weights[string(w)]; n > 0 {
			f.Weights = append(f.Weights, Value{Value: string(w), Count: n})
		}
	}
	return f
}

func (e Extent) widen(v int) Extent {
	return Extent{Min: min(e.Min, v), Max: max(e.Max, v)}
}

func tally(m map[string]int, v string) {
	if v != "" {
		m[v]++
	}
}

func sorted(m map[string]int) []Value {
	out := make([]Value, 0, len(m))
	for v, n := range m {
		out = append(out, Value{Value: v, Count: n})
	}
	slices.SortFunc(out, func(a, b Value) int { return cmp.Compare(a.Value, b.Value) })
	return out
}
