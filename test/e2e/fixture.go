package e2e

import (
	"os"
	"path/filepath"
	"time"

	"github.com/abelbrown/yarnstash/internal/model"
	"github.com/abelbrown/yarnstash/internal/tabular"
)

// writeFixtureCSV writes a small collection in the spreadsheet layout and
// returns its path.
func writeFixtureCSV(dir string) (string, error) {
	records := []model.Record{
		{Brand: "Fixturewool", SubBrand: "Everyday", Qty: 3, Length: 220, Weight: model.WeightMedium,
			Material: "Wool", Colors: []string{"Cherry Red"}, MachineWash: true, Softness: 3},
		{Brand: "Alpaca Co", SubBrand: "Cloud", Qty: 1, Length: 137, Weight: model.WeightLight,
			Material: "Alpaca", Colors: []string{"Cream"}, Softness: 5},
		{Brand: "Acme Acrylic", SubBrand: "Basics", Qty: 6, Length: 364, Weight: model.WeightMedium,
			Material: "Acrylic", Colors: []string{"Navy", "White"}, Multicolor: true, Softness: 2},
	}
	body, err := tabular.Serialize(records)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "collection.csv")
	return path, os.WriteFile(path, []byte(body), 0o644)
}

func readSnapshot(f *os.File) string {
	if err := f.SetReadDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
		return ""
	}
	out := make([]byte, 0, 8192)
	buf := make([]byte, 4096)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			break
		}
	}
	return string(out)
}
