package ui

import (
	"testing"

	"github.com/abelbrown/yarnstash/internal/model"
)

func TestSortRecords(t *testing.T) {
	records := testRecords()

	tests := []struct {
		by    sortKey
		first string
	}{
		{sortNone, "1"},
		{sortBrand, "2"},    // Caron
		{sortQty, "2"},      // 5 skeins
		{sortLength, "2"},   // 5 x 315
		{sortWeight, "1"},   // medium before bulky, stable
		{sortSoftness, "2"}, // 4
	}
	for _, tt := range tests {
		got := sortRecords(records, tt.by)
		if got[0].ID != tt.first {
			t.Errorf("sort by %s first = %s, want %s", tt.by, got[0].ID, tt.first)
		}
	}
	if records[0].ID != "1" {
		t.Error("sortRecords must not reorder its input")
	}
}

func TestSortKeyCycles(t *testing.T) {
	k := sortNone
	for i := 0; i < int(sortKeyCount); i++ {
		k = k.next()
	}
	if k != sortNone {
		t.Errorf("cycle ended at %s", k)
	}
}

func TestColumnsForWidth(t *testing.T) {
	for _, w := range []int{40, 120, 200} {
		cols := columnsFor(w)
		if len(cols) != len(rowFor(model.Record{})) {
			t.Fatalf("width %d: %d columns but rows have %d cells", w, len(cols), len(rowFor(model.Record{})))
		}
		if cols[0].Title != "Brand" || cols[len(cols)-1].Title != "Colors" {
			t.Errorf("width %d: columns = %v", w, cols)
		}
	}
	if columnsFor(200)[0].Width <= columnsFor(120)[0].Width {
		t.Error("brand column should grow with the terminal")
	}
}

func TestRowFor(t *testing.T) {
	r := model.Record{Brand: "Red Heart", SubBrand: "Super Saver", Qty: 2, Weight: model.WeightMedium,
		Length: 1200, Vintage: true, MachineDry: true, Colors: []string{"Navy", "Cream"}}
	row := rowFor(r)
	if row[0] != "Red Heart Super Saver" {
		t.Errorf("name = %q", row[0])
	}
	if row[3] != "1,200" {
		t.Errorf("yards = %q", row[3])
	}
	if row[6] != "" {
		t.Errorf("unset softness = %q", row[6])
	}
	if row[7] != "V..D" {
		t.Errorf("flags = %q", row[7])
	}
	if row[8] != "Navy, Cream" {
		t.Errorf("colors = %q", row[8])
	}
}
