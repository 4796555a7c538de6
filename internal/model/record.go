// Package model holds the inventory domain types shared by every layer:
// records, the filter spec, saved views, and the color taxonomy.
package model

import (
	"slices"
	"strings"
)

// MaxColors is the number of color slots a record carries.
const MaxColors = 4

// Weight is the yarn weight class. The set is closed; anything unrecognized
// parses to WeightOther.
type Weight string

const (
	WeightLace       Weight = "lace"
	WeightSuperFine  Weight = "super fine"
	WeightFine       Weight = "fine"
	WeightLight      Weight = "light"
	WeightMedium     Weight = "medium"
	WeightBulky      Weight = "bulky"
	WeightSuperBulky Weight = "super bulky"
	WeightJumbo      Weight = "jumbo"
	WeightOther      Weight = "other"
)

// Weights lists every weight class from finest to heaviest.
var Weights = []Weight{
	WeightLace, WeightSuperFine, WeightFine, WeightLight, WeightMedium,
	WeightBulky, WeightSuperBulky, WeightJumbo, WeightOther,
}

// ParseWeight normalizes s (trimmed, case-insensitive) to a weight class.
func ParseWeight(s string) Weight {
	w := Weight(strings.ToLower(strings.TrimSpace(s)))
	if w.Valid() {
		return w
	}
	return WeightOther
}

// Valid reports whether w is one of the known weight classes.
func (w Weight) Valid() bool {
	return slices.Contains(Weights, w)
}

// Label is the display form, e.g. "Super Bulky".
func (w Weight) Label() string {
	parts := strings.Fields(string(w))
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// Record is one inventory row.
type Record struct {
	ID          string   `json:"id"`
	Brand       string   `json:"brand"`
	SubBrand    string   `json:"subBrand"`
	Vintage     bool     `json:"vintage"`
	Qty         int      `json:"qty"`
	Length      int      `json:"length"`
	Multicolor  bool     `json:"multicolor"`
	Softness    int      `json:"softnessRanking"`
	Weight      Weight   `json:"weight"`
	HookSize    string   `json:"hookSize"`
	Rows        int      `json:"rows"`
	MachineWash bool     `json:"machineWash"`
	MachineDry  bool     `json:"machineDry"`
	Material    string   `json:"material"`
	BrandColor  string   `json:"brandColor"`
	Colors      []string `json:"colors"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.Colors = slices.Clone(r.Colors)
	return r
}

// Equal reports field-by-field equality, including identity.
func (r Record) Equal(o Record) bool {
	return r.ID == o.ID && r.SameContent(o)
}

// SameContent compares every field except the identity.
func (r Record) SameContent(o Record) bool {
	return r.Brand == o.Brand &&
		r.SubBrand == o.SubBrand &&
		r.Vintage == o.Vintage &&
		r.Qty == o.Qty &&
		r.Length == o.Length &&
		r.Multicolor == o.Multicolor &&
		r.Softness == o.Softness &&
		r.Weight == o.Weight &&
		r.HookSize == o.HookSize &&
		r.Rows == o.Rows &&
		r.MachineWash == o.MachineWash &&
		r.MachineDry == o.MachineDry &&
		r.Material == o.Material &&
		r.BrandColor == o.BrandColor &&
		slices.Equal(r.Colors, o.Colors)
}

// PrimaryColor returns the first color, or "" when the record has none.
func (r Record) PrimaryColor() string {
	if len(r.Colors) == 0 {
		return ""
	}
	return r.Colors[0]
}

// TotalLength is the yardage across every skein on hand.
func (r Record) TotalLength() int {
	return r.Length * max(r.Qty, 1)
}

// CleanColors trims each label, drops empty ones, and caps the list at
// MaxColors.
func CleanColors(colors []string) []string {
	out := make([]string, 0, min(len(colors), MaxColors))
	for _, c := range colors {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		out = append(out, c)
		if len(out) == MaxColors {
			break
		}
	}
	return out
}

// EqualRecords compares two ordered record sets.
func EqualRecords(a, b []Record) bool {
	return slices.EqualFunc(a, b, Record.Equal)
}

// CloneRecords deep-copies a record set. A nil input yields an empty,
// non-nil slice.
func CloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
