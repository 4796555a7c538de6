// Package tabular converts between delimited text with a header row and
// inventory records.
package tabular

// ColumnMapping names the header used for each record field. An empty name
// means the field is not present in the source.
type ColumnMapping struct {
	ID          string
	Brand       string
	SubBrand    string
	Vintage     string
	Qty         string
	Length      string
	Multicolor  string
	Softness    string
	Weight      string
	HookSize    string
	Rows        string
	MachineWash string
	MachineDry  string
	Material    string
	BrandColor  string
	Colors      [4]string
}

// DefaultColumns is the header layout of the collection spreadsheet.
func DefaultColumns() ColumnMapping {
	return ColumnMapping{
		Brand:       "Brand",
		SubBrand:    "Sub-brand",
		Vintage:     "Vintage",
		Qty:         "Qty",
		Length:      "Length (yards)",
		Multicolor:  "Multicolor",
		Softness:    "Softness Ranking",
		Weight:      "Weight",
		HookSize:    "Hook Size",
		Rows:        "Rows",
		MachineWash: "Machine Wash",
		MachineDry:  "Machine Dry",
		Material:    "Material",
		BrandColor:  "Brand Color",
		Colors:      [4]string{"Color 1", "Color 2", "Color 3", "Color 4"},
	}
}

// Headers returns the header row written by Serialize, skipping unmapped
// fields.
func (m ColumnMapping) Headers() []string {
	all := []string{
		m.ID, m.Brand, m.SubBrand, m.Vintage, m.Qty, m.Length, m.Multicolor,
		m.Softness, m.Weight, m.HookSize, m.Rows, m.MachineWash, m.MachineDry,
		m.Material, m.BrandColor, m.Colors[0], m.Colors[1], m.Colors[2], m.Colors[3],
	}
	out := make([]string, 0, len(all))
	for _, h := range all {
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}
