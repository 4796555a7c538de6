package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abelbrown/yarnstash/internal/model"
)

// parsePatch reads an edit line such as
//
//	brand=Lion Brand; qty=3; weight=bulky; colors=Navy,Cream
//
// into a partial record. Keys are case-insensitive; unknown keys and bad
// numbers are errors so a typo never silently drops an edit.
func parsePatch(s string) (model.PartialRecord, error) {
	var p model.PartialRecord
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return model.PartialRecord{}, fmt.Errorf("%q: want key=value", part)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)

		num := func() (int, error) {
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("%s: %q is not a count", key, val)
			}
			return n, nil
		}
		var err error
		switch key {
		case "brand":
			p.Brand = model.Some(val)
		case "subbrand", "sub-brand":
			p.SubBrand = model.Some(val)
		case "material":
			p.Material = model.Some(val)
		case "hook", "hooksize":
			p.HookSize = model.Some(val)
		case "brandcolor", "brand color":
			p.BrandColor = model.Some(val)
		case "weight":
			p.Weight = model.Some(model.ParseWeight(val))
		case "colors", "color":
			p.Colors = model.Some(model.CleanColors(strings.Split(val, ",")))
		case "vintage":
			p.Vintage = model.Some(parseYes(val))
		case "multicolor":
			p.Multicolor = model.Some(parseYes(val))
		case "wash", "machinewash":
			p.MachineWash = model.Some(parseYes(val))
		case "dry", "machinedry":
			p.MachineDry = model.Some(parseYes(val))
		case "qty":
			var n int
			n, err = num()
			p.Qty = model.Some(n)
		case "length", "yards":
			var n int
			n, err = num()
			p.Length = model.Some(n)
		case "rows":
			var n int
			n, err = num()
			p.Rows = model.Some(n)
		case "softness", "soft":
			var n int
			n, err = num()
			p.Softness = model.Some(n)
		default:
			return model.PartialRecord{}, fmt.Errorf("unknown field %q", key)
		}
		if err != nil {
			return model.PartialRecord{}, err
		}
	}
	return p, nil
}

func parseYes(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "y", "true", "1":
		return true
	}
	return false
}

// patchLine is the edit line that reproduces r's editable fields.
func patchLine(r model.Record) string {
	return fmt.Sprintf("brand=%s; qty=%d; weight=%s; length=%d; material=%s; colors=%s",
		r.Brand, r.Qty, r.Weight, r.Length, r.Material, strings.Join(r.Colors, ","))
}
