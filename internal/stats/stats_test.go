package stats

import (
	"math"
	"reflect"
	"testing"

	"github.com/abelbrown/yarnstash/internal/model"
)

var stash = []model.Record{
	{ID: "1", Brand: "Red Heart", SubBrand: "Super Saver", Qty: 2, Length: 364, Weight: model.WeightMedium, Colors: []string{"Red", "cherry red"}},
	{ID: "2", Brand: "Bernat", SubBrand: "Blanket", Qty: 1, Length: 220, Weight: model.WeightSuperBulky, Multicolor: true, Colors: []string{"navy", " Red "}},
	{ID: "3", Brand: "Red Heart", Qty: 0, Length: 100, Weight: model.WeightMedium, Colors: []string{"white"}},
	{ID: "4", Brand: "", Qty: 3, Length: 0, Weight: "", Colors: nil},
}

func TestSummarize(t *testing.T) {
	got := Summarize(stash)
	want := Summary{
		Records:       4,
		Skeins:        6,
		TotalYards:    364*2 + 220 + 100,
		AvgYards:      262, // 1048 / 4
		Brands:        2,
		SubBrands:     2,
		MulticolorPct: 25,
	}
	if got != want {
		t.Errorf("Summarize = %+v, want %+v", got, want)
	}
	if m := got.Miles(); math.Abs(m-1048.0/1760) > 1e-9 {
		t.Errorf("Miles = %v", m)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil); got != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v, want zero", got)
	}
}

func TestTopBrands(t *testing.T) {
	got := TopBrands(stash, 5)
	want := []Count{{"Red Heart", 2}, {"Bernat", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopBrands = %v, want %v", got, want)
	}
	if got := TopBrands(stash, 1); len(got) != 1 || got[0].Name != "Red Heart" {
		t.Errorf("TopBrands(1) = %v", got)
	}
}

func TestTopColorsFoldsCase(t *testing.T) {
	got := TopColors(stash, 0)
	want := []Count{{"red", 2}, {"cherry red", 1}, {"navy", 1}, {"white", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopColors = %v, want %v", got, want)
	}
}

func TestWeightDistribution(t *testing.T) {
	got := WeightDistribution(stash)
	want := []Count{{"medium", 2}, {"super bulky", 1}, {"unknown", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WeightDistribution = %v, want %v", got, want)
	}
}

func TestColorGroupsCountRecordsOnce(t *testing.T) {
	got := ColorGroups(stash, model.DefaultColorTaxonomy())
	want := []Count{{"Reds", 2}, {"Blues", 1}, {"Neutrals", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ColorGroups = %v, want %v", got, want)
	}
}
