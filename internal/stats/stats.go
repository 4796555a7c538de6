// Package stats computes the dashboard summary over a record set.
package stats

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/abelbrown/yarnstash/internal/model"
)

// YardsPerMile converts yardage to miles.
const YardsPerMile = 1760

// Count is a named tally.
type Count struct {
	Name  string
	Count int
}

// Summary is the headline numbers for a record set.
type Summary struct {
	Records       int
	Skeins        int // sum of qty
	TotalYards    int // length × qty across every record
	AvgYards      int // TotalYards / Records, rounded
	Brands        int
	SubBrands     int
	MulticolorPct int // share of records, rounded
}

// Miles is TotalYards in miles.
func (s Summary) Miles() float64 {
	return float64(s.TotalYards) / YardsPerMile
}

// Summarize tallies records. An empty set gives the zero Summary.
func Summarize(records []model.Record) Summary {
	var s Summary
	if len(records) == 0 {
		return s
	}
	brands := make(map[string]struct{})
	subBrands := make(map[string]struct{})
	multicolor := 0
	for _, r := range records {
		s.Skeins += r.Qty
		s.TotalYards += r.TotalLength()
		if r.Brand != "" {
			brands[r.Brand] = struct{}{}
		}
		if r.SubBrand != "" {
			subBrands[r.SubBrand] = struct{}{}
		}
		if r.Multicolor {
			multicolor++
		}
	}
	s.Records = len(records)
	s.AvgYards = int(math.Round(float64(s.TotalYards) / float64(s.Records)))
	s.Brands = len(brands)
	s.SubBrands = len(subBrands)
	s.MulticolorPct = int(math.Round(float64(multicolor) * 100 / float64(s.Records)))
	return s
}

// TopBrands returns the limit most common brands, most common first.
// limit <= 0 means all.
func TopBrands(records []model.Record, limit int) []Count {
	counts := make(map[string]int)
	for _, r := range records {
		if r.Brand != "" {
			counts[r.Brand]++
		}
	}
	return top(counts, limit)
}

// TopColors counts color labels case-insensitively.
func TopColors(records []model.Record, limit int) []Count {
	counts := make(map[string]int)
	for _, r := range records {
		for _, c := range r.Colors {
			if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
				counts[c]++
			}
		}
	}
	return top(counts, limit)
}

// ColorGroups counts records per color group of tax. A record counts once
// per group however many of its colors fall in it.
func ColorGroups(records []model.Record, tax *model.ColorTaxonomy) []Count {
	counts := make(map[string]int)
	for _, r := range records {
		seen := make(map[string]bool, len(r.Colors))
		for _, c := range r.Colors {
			for _, g := range tax.GroupsOf(c) {
				if !seen[g] {
					seen[g] = true
					counts[g]++
				}
			}
		}
	}
	return top(counts, 0)
}

// WeightDistribution counts records per weight class, most common first.
func WeightDistribution(records []model.Record) []Count {
	counts := make(map[string]int)
	for _, r := range records {
		w := string(r.Weight)
		if w == "" {
			w = "unknown"
		}
		counts[w]++
	}
	return top(counts, 0)
}

func top(counts map[string]int, limit int) []Count {
	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		out = append(out, Count{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
