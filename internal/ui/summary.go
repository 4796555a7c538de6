package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/abelbrown/yarnstash/internal/model"
	"github.com/abelbrown/yarnstash/internal/scan"
	"github.com/abelbrown/yarnstash/internal/stats"
	"github.com/abelbrown/yarnstash/internal/syncer"
)

// renderSummary is the header line: totals over the filtered set.
func renderSummary(filtered []model.Record, total, width int) string {
	s := stats.Summarize(filtered)
	parts := []string{
		HeaderStat.Render(humanize.Comma(int64(s.Records))) + " of " + humanize.Comma(int64(total)) + " records",
		HeaderStat.Render(humanize.Comma(int64(s.Skeins))) + " skeins",
		HeaderStat.Render(humanize.Comma(int64(s.TotalYards))) + fmt.Sprintf(" yd (%.1f mi)", s.Miles()),
		fmt.Sprintf("avg %s yd", humanize.Comma(int64(s.AvgYards))),
		fmt.Sprintf("%d brands", s.Brands),
		fmt.Sprintf("%d%% multicolor", s.MulticolorPct),
	}
	return Header.Width(width).Render(strings.Join(parts, " · "))
}

// renderTopLine lists the top brands and colors of the filtered set.
func renderTopLine(filtered []model.Record, width int) string {
	var parts []string
	for _, c := range stats.TopBrands(filtered, 3) {
		parts = append(parts, fmt.Sprintf("%s %d", c.Name, c.Count))
	}
	line := "Top brands: " + orDash(parts)
	parts = parts[:0]
	for _, c := range stats.TopColors(filtered, 3) {
		parts = append(parts, fmt.Sprintf("%s %d", c.Name, c.Count))
	}
	line += "   Top colors: " + orDash(parts)
	return StatusBarText.Width(width).Padding(0, 1).Render(line)
}

func orDash(parts []string) string {
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

// syncLabel describes the engine state, e.g. "watching · synced 2 minutes ago".
func syncLabel(st syncer.Status, now time.Time) string {
	label := stateStyle(st.State.String()).Render(st.State.String())
	if st.UsingFallback {
		label += " (sample data)"
	}
	switch {
	case st.State == syncer.StateRetrying && st.RetryIn > 0:
		label += fmt.Sprintf(" · attempt %d, next in %s", st.Attempt, st.RetryIn.Round(time.Second))
	case !st.LastSync.IsZero():
		label += " · synced " + humanize.RelTime(st.LastSync, now, "ago", "from now")
	}
	return label
}

// renderStatusBar draws the bottom line with sync state and key hints.
func renderStatusBar(st syncer.Status, activeFilters int, sortBy sortKey, now time.Time, width int) string {
	left := syncLabel(st, now)
	if activeFilters > 0 {
		left += StatusBarText.Render(fmt.Sprintf(" · %d filters", activeFilters))
	}
	if sortBy != sortNone {
		left += StatusBarText.Render(" · by " + sortBy.String())
	}
	keys := []string{"/ search", "f filters", "v views", "b scan", "e edit", "s sort", "R refresh", "q quit"}
	var hints []string
	for _, k := range keys {
		key, desc, _ := strings.Cut(k, " ")
		hints = append(hints, StatusBarKey.Render(key)+StatusBarText.Render(":"+desc))
	}
	return StatusBar.Width(width).Render(left + "  " + strings.Join(hints, " "))
}

// renderDetail shows the selected record's colors as swatches.
func renderDetail(r model.Record, tax *model.ColorTaxonomy, width int) string {
	var sw []string
	for _, c := range r.Colors {
		sw = append(sw, Swatch(tax, c))
	}
	line := fmt.Sprintf("%s  %s", r.ID, strings.Join(sw, "  "))
	if r.BrandColor != "" {
		line += StatusBarText.Render("  brand color: " + r.BrandColor)
	}
	if total := r.TotalLength(); total > 0 {
		line += StatusBarText.Render(fmt.Sprintf("  on hand: %s yd", humanize.Comma(int64(total))))
	}
	return DetailLine.Width(width).Render(line)
}

// renderScanPanel lists the review queue under the code prompt.
func renderScanPanel(input string, pending []scan.Item, cursor int, sum scan.Summary, last string, tax *model.ColorTaxonomy, width int) string {
	var b strings.Builder
	b.WriteString(PanelTitle.Render("Quick scan"))
	b.WriteString("\n")
	b.WriteString(input)
	b.WriteString("\n")
	if last != "" {
		b.WriteString(StatusBarText.Render(last))
		b.WriteString("\n")
	}
	b.WriteString(SectionHeader.Render(fmt.Sprintf("Review (%d pending)", sum.Pending)))
	b.WriteString("\n")
	if len(pending) == 0 {
		b.WriteString(StatusBarText.Render("Scan a code that is not in the stash to queue it here."))
		b.WriteString("\n")
	}
	for i, it := range pending {
		rec := it.Preview()
		source := "manual"
		if it.Lookup != nil {
			source = fmt.Sprintf("%s %.0f%%", it.Lookup.Source, it.Lookup.Confidence*100)
		}
		colors := ""
		if len(rec.Colors) > 0 {
			colors = "  " + Swatch(tax, rec.Colors[0])
		}
		line := fmt.Sprintf("%-14s %-24s ×%d  %s  %s%s", it.Code, rec.Brand, rec.Qty, rec.Weight.Label(), source, colors)
		switch {
		case i == cursor:
			line = SelectedRow.Render(line)
		case it.Discarded:
			line = DimRow.Render(line)
		default:
			line = NormalRow.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(StatusBarText.Render(fmt.Sprintf("%d scans · %d updated · %d committed",
		sum.TotalScans, sum.Updated, sum.Committed)))
	b.WriteString("\n")
	b.WriteString(StatusBarText.Render("enter scan · ↑/↓ select · ctrl+e edit · ctrl+x discard/restore · ctrl+s save · esc close"))
	return Panel.Width(max(width-2, 20)).Render(b.String())
}

// renderViewsPanel lists saved views, newest last.
func renderViewsPanel(views []model.SavedView, cursor int, now time.Time, width int) string {
	var b strings.Builder
	b.WriteString(PanelTitle.Render("Saved views"))
	b.WriteString("\n")
	if len(views) == 0 {
		b.WriteString(StatusBarText.Render("No saved views yet. Press n to save the current filters."))
		b.WriteString("\n")
	}
	for i, v := range views {
		line := fmt.Sprintf("%-30s %2d filters  %s", v.Name, v.Filters.Active(), humanize.RelTime(v.CreatedAt, now, "ago", "from now"))
		if i == cursor {
			line = SelectedRow.Render(line)
		} else {
			line = NormalRow.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(StatusBarText.Render("enter load · n save current · d delete · esc close"))
	return Panel.Width(max(width-2, 20)).Render(b.String())
}
