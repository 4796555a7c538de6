package model

// Opt is a value that may be absent. Presence is explicit, so a set zero
// value (false, 0, "") still wins over a fallback.
type Opt[T any] struct {
	Value T
	Set   bool
}

// Some wraps a present value.
func Some[T any](v T) Opt[T] { return Opt[T]{Value: v, Set: true} }

// Or returns the value when set, otherwise fallback.
func (o Opt[T]) Or(fallback T) T {
	if o.Set {
		return o.Value
	}
	return fallback
}

// orOpt returns o when set, otherwise next.
func orOpt[T any](o, next Opt[T]) Opt[T] {
	if o.Set {
		return o
	}
	return next
}

// PartialRecord is a record with every field optional. It carries user
// edits, lookup results, and upsert patches.
type PartialRecord struct {
	Brand       Opt[string]
	SubBrand    Opt[string]
	Vintage     Opt[bool]
	Qty         Opt[int]
	Length      Opt[int]
	Multicolor  Opt[bool]
	Softness    Opt[int]
	Weight      Opt[Weight]
	HookSize    Opt[string]
	Rows        Opt[int]
	MachineWash Opt[bool]
	MachineDry  Opt[bool]
	Material    Opt[string]
	BrandColor  Opt[string]
	Colors      Opt[[]string]
}

// Or fills every unset field of p from fallback. p wins field by field.
func (p PartialRecord) Or(fallback PartialRecord) PartialRecord {
	return PartialRecord{
		Brand:       orOpt(p.Brand, fallback.Brand),
		SubBrand:    orOpt(p.SubBrand, fallback.SubBrand),
		Vintage:     orOpt(p.Vintage, fallback.Vintage),
		Qty:         orOpt(p.Qty, fallback.Qty),
		Length:      orOpt(p.Length, fallback.Length),
		Multicolor:  orOpt(p.Multicolor, fallback.Multicolor),
		Softness:    orOpt(p.Softness, fallback.Softness),
		Weight:      orOpt(p.Weight, fallback.Weight),
		HookSize:    orOpt(p.HookSize, fallback.HookSize),
		Rows:        orOpt(p.Rows, fallback.Rows),
		MachineWash: orOpt(p.MachineWash, fallback.MachineWash),
		MachineDry:  orOpt(p.MachineDry, fallback.MachineDry),
		Material:    orOpt(p.Material, fallback.Material),
		BrandColor:  orOpt(p.BrandColor, fallback.BrandColor),
		Colors:      orOpt(p.Colors, fallback.Colors),
	}
}

// ApplyTo overlays the set fields of p onto r. The result is normalized:
// negative counts clamp to zero and colors are cleaned.
func (p PartialRecord) ApplyTo(r Record) Record {
	out := Record{
		ID:          r.ID,
		Brand:       p.Brand.Or(r.Brand),
		SubBrand:    p.SubBrand.Or(r.SubBrand),
		Vintage:     p.Vintage.Or(r.Vintage),
		Qty:         max(p.Qty.Or(r.Qty), 0),
		Length:      max(p.Length.Or(r.Length), 0),
		Multicolor:  p.Multicolor.Or(r.Multicolor),
		Softness:    max(p.Softness.Or(r.Softness), 0),
		Weight:      p.Weight.Or(r.Weight),
		HookSize:    p.HookSize.Or(r.HookSize),
		Rows:        max(p.Rows.Or(r.Rows), 0),
		MachineWash: p.MachineWash.Or(r.MachineWash),
		MachineDry:  p.MachineDry.Or(r.MachineDry),
		Material:    p.Material.Or(r.Material),
		BrandColor:  p.BrandColor.Or(r.BrandColor),
		Colors:      CleanColors(p.Colors.Or(r.Colors)),
	}
	if !out.Weight.Valid() {
		out.Weight = WeightOther
	}
	return out
}

// Complete builds a full record with the given id, taking unset fields
// from defaults.
func (p PartialRecord) Complete(id string, defaults Record) Record {
	defaults.ID = id
	return p.ApplyTo(defaults)
}

// IsEmpty reports whether no field is set.
func (p PartialRecord) IsEmpty() bool {
	return !p.Brand.Set && !p.SubBrand.Set && !p.Vintage.Set && !p.Qty.Set &&
		!p.Length.Set && !p.Multicolor.Set && !p.Softness.Set && !p.Weight.Set &&
		!p.HookSize.Set && !p.Rows.Set && !p.MachineWash.Set && !p.MachineDry.Set &&
		!p.Material.Set && !p.BrandColor.Set && !p.Colors.Set
}
