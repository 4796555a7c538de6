package lookup

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/abelbrown/yarnstash/internal/model"
)

var knownBrands = map[string]string{
	"red heart":  "Red Heart",
	"bernat":     "Bernat",
	"lion brand": "Lion Brand",
	"caron":      "Caron",
	"patons":     "Patons",
}

// NormalizeBrand fixes the capitalization of well-known brands and
// returns anything else unchanged.
func NormalizeBrand(brand string) string {
	if b, ok := knownBrands[strings.ToLower(strings.TrimSpace(brand))]; ok {
		return b
	}
	return strings.TrimSpace(brand)
}

// Checked in order; "super chunky" must come before "chunky".
var weightWords = []struct {
	word   string
	weight model.Weight
}{
	{"super chunky", model.WeightSuperBulky},
	{"chunky", model.WeightBulky},
	{"lace", model.WeightLace},
	{"sport", model.WeightFine},
	{"dk", model.WeightLight},
	{"worsted", model.WeightMedium},
	{"aran", model.WeightMedium},
}

var materials = []string{"cotton", "wool", "acrylic", "polyester", "nylon", "silk", "alpaca", "mohair"}

var colorWords = []string{
	"red", "blue", "green", "yellow", "purple", "pink", "orange", "black", "white", "brown",
	"gray", "grey", "navy", "teal", "maroon", "olive", "lime", "aqua", "fuchsia", "silver",
}

var yardageRe = regexp.MustCompile(`(?i)(\d+)\s*(yards?|yds?|meters?|m)\b`)

// ToPartial maps product text onto record fields. Fields it cannot infer
// get the defaults for a freshly bought skein.
func ToPartial(p Product) model.PartialRecord {
	text := strings.ToLower(p.Name + " " + p.Description)

	out := model.PartialRecord{
		Vintage:     model.Some(false),
		Qty:         model.Some(1),
		Multicolor:  model.Some(false),
		MachineWash: model.Some(true),
		MachineDry:  model.Some(false),
		Rows:        model.Some(0),
		HookSize:    model.Some(""),
		SubBrand:    model.Some(""),
		Weight:      model.Some(extractWeight(text)),
		Material:    model.Some(extractMaterial(text)),
	}
	if p.Brand != "" {
		out.Brand = model.Some(NormalizeBrand(p.Brand))
	}
	if m := yardageRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			out.Length = model.Some(n)
		}
	}
	if c := extractColor(p.Name); c != "" {
		out.BrandColor = model.Some(c)
		out.Colors = model.Some([]string{c})
	}
	return out
}

func extractWeight(text string) model.Weight {
	for _, w := range weightWords {
		if containsWord(text, w.word) {
			return w.weight
		}
	}
	return model.WeightMedium
}

func extractMaterial(text string) string {
	for _, m := range materials {
		if strings.Contains(text, m) {
			return titleWord(m)
		}
	}
	return "Mixed"
}

func extractColor(name string) string {
	name = strings.ToLower(name)
	for _, c := range colorWords {
		if strings.Contains(name, c) {
			return titleWord(c)
		}
	}
	return ""
}

// containsWord matches w only at word boundaries, so "dk" does not hit
// inside another word.
func containsWord(text, w string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], w)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(w)
		if (start == 0 || !isLetter(text[start-1])) && (end == len(text) || !isLetter(text[end])) {
			return true
		}
		i = start + 1
	}
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Confidence scores how much a product says about being yarn, in [0, 1].
func Confidence(p Product) float64 {
	const maxScore = 7
	score := 0
	if p.Brand != "" {
		score++
	}
	if p.Name != "" {
		score += 2
	}
	if p.Description != "" {
		score++
	}
	if strings.Contains(strings.ToLower(p.Category), "yarn") {
		score += 3
	}
	return min(float64(score)/maxScore, 1)
}
