package model

import (
	"slices"
	"strings"
)

// ColorGroup is a named family of color labels.
type ColorGroup struct {
	Name   string
	Hue    int // degrees on the color wheel, used for swatches
	Tokens []string
}

// ColorTaxonomy maps free-text color labels onto groups. It is immutable
// after construction and safe for concurrent use.
type ColorTaxonomy struct {
	groups []ColorGroup
	byName map[string]int
	exact  map[string][]int // token -> group indices
}

// NewColorTaxonomy builds a taxonomy. Tokens are lowercased and trimmed;
// blank tokens are dropped.
func NewColorTaxonomy(groups []ColorGroup) *ColorTaxonomy {
	t := &ColorTaxonomy{
		groups: make([]ColorGroup, 0, len(groups)),
		byName: make(map[string]int, len(groups)),
		exact:  make(map[string][]int),
	}
	for _, g := range groups {
		tokens := make([]string, 0, len(g.Tokens))
		for _, tok := range g.Tokens {
			tok = strings.ToLower(strings.TrimSpace(tok))
			if tok == "" {
				continue
			}
			tokens = append(tokens, tok)
		}
		idx := len(t.groups)
		t.groups = append(t.groups, ColorGroup{Name: g.Name, Hue: g.Hue, Tokens: tokens})
		t.byName[g.Name] = idx
		for _, tok := range tokens {
			t.exact[tok] = append(t.exact[tok], idx)
		}
	}
	return t
}

// DefaultColorTaxonomy is the built-in grouping used by the dashboard.
func DefaultColorTaxonomy() *ColorTaxonomy {
	return NewColorTaxonomy([]ColorGroup{
		{Name: "Reds", Hue: 0, Tokens: []string{"red", "crimson", "maroon", "burgundy", "ruby", "terracotta"}},
		{Name: "Pinks", Hue: 330, Tokens: []string{"pink", "hotpink", "magenta", "fuchsia", "rose", "light pink"}},
		{Name: "Yellows", Hue: 60, Tokens: []string{"yellow", "light yellow", "dark yellow", "mustard yellow"}},
		{Name: "Oranges", Hue: 30, Tokens: []string{"orange", "peach", "coral"}},
		{Name: "Purples", Hue: 270, Tokens: []string{"purple", "violet", "lavender", "lilac", "indigo"}},
		{Name: "Blues", Hue: 210, Tokens: []string{"blue", "navy", "royalblue", "skyblue", "slate blue", "baby blue"}},
		{Name: "Teals", Hue: 180, Tokens: []string{"teal", "cyan", "turquoise", "aquamarine"}},
		{Name: "Greens", Hue: 120, Tokens: []string{"green", "lime", "emerald", "mint", "olive", "forest", "sage"}},
		{Name: "Browns", Hue: 30, Tokens: []string{"brown", "chocolate", "tan", "beige", "coffee", "dark brown", "taupe", "dark taupe"}},
		{Name: "Neutrals", Hue: 0, Tokens: []string{"white", "gray", "grey", "silver", "black", "cream", "ivory", "offwhite", "charcoal", "light gray"}},
		{Name: "Metallics", Hue: 45, Tokens: []string{"tinsel", "gold", "silver"}},
	})
}

// Groups returns the groups in declaration order.
func (t *ColorTaxonomy) Groups() []ColorGroup {
	out := make([]ColorGroup, len(t.groups))
	for i, g := range t.groups {
		g.Tokens = slices.Clone(g.Tokens)
		out[i] = g
	}
	return out
}

// Names returns the group names in declaration order.
func (t *ColorTaxonomy) Names() []string {
	names := make([]string, len(t.groups))
	for i, g := range t.groups {
		names[i] = g.Name
	}
	return names
}

// Group looks a group up by name.
func (t *ColorTaxonomy) Group(name string) (ColorGroup, bool) {
	idx, ok := t.byName[name]
	if !ok {
		return ColorGroup{}, false
	}
	return t.groups[idx], true
}

// Matches reports whether label belongs to the named group. A label matches
// when it contains one of the group's tokens or is contained in one, both
// compared lowercase. Blank labels and unknown groups never match.
func (t *ColorTaxonomy) Matches(label, group string) bool {
	idx, ok := t.byName[group]
	if !ok {
		return false
	}
	return t.matchIdx(normalizeLabel(label), idx)
}

func (t *ColorTaxonomy) matchIdx(label string, idx int) bool {
	if label == "" {
		return false
	}
	if slices.Contains(t.exact[label], idx) {
		return true
	}
	for _, tok := range t.groups[idx].Tokens {
		if strings.Contains(label, tok) || strings.Contains(tok, label) {
			return true
		}
	}
	return false
}

// GroupsOf returns every group label belongs to, in declaration order.
func (t *ColorTaxonomy) GroupsOf(label string) []string {
	label = normalizeLabel(label)
	var out []string
	for i, g := range t.groups {
		if t.matchIdx(label, i) {
			out = append(out, g.Name)
		}
	}
	return out
}

// Classify picks the single best group for a label: an exact token hit
// first, then the first substring match. ok is false when nothing matches.
func (t *ColorTaxonomy) Classify(label string) (ColorGroup, bool) {
	label = normalizeLabel(label)
	if label == "" {
		return ColorGroup{}, false
	}
	if hits := t.exact[label]; len(hits) > 0 {
		return t.groups[hits[0]], true
	}
	for i := range t.groups {
		if t.matchIdx(label, i) {
			return t.groups[i], true
		}
	}
	return ColorGroup{}, false
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
