// Package ui provides the Bubble Tea dashboard for yarnstash.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/yarnstash/internal/filter"
	"github.com/abelbrown/yarnstash/internal/model"
	"github.com/abelbrown/yarnstash/internal/otel"
	"github.com/abelbrown/yarnstash/internal/scan"
	"github.com/abelbrown/yarnstash/internal/state"
	"github.com/abelbrown/yarnstash/internal/syncer"
)

// Actions are the commands the App issues. Results come back as messages.
// Nil entries are no-ops.
type Actions struct {
	SetFilters   func(spec model.FilterSpec) tea.Cmd
	ResetFilters func() tea.Cmd
	SaveView     func(name string) tea.Cmd
	LoadView     func(id string) tea.Cmd
	DeleteView   func(id string) tea.Cmd
	Refresh      func() tea.Cmd
	SaveRecord   func(id string, patch model.PartialRecord) tea.Cmd
	Scan         func(code string) tea.Cmd
	EditScan     func(code string, patch model.PartialRecord) tea.Cmd
	DiscardScan  func(code string) tea.Cmd
	RestoreScan  func(code string) tea.Cmd
	CommitScan   func() tea.Cmd
}

func (x Actions) withDefaults() Actions {
	none := func() tea.Cmd { return nil }
	byID := func(string) tea.Cmd { return nil }
	patch := func(string, model.PartialRecord) tea.Cmd { return nil }
	if x.SetFilters == nil {
		x.SetFilters = func(model.FilterSpec) tea.Cmd { return nil }
	}
	if x.ResetFilters == nil {
		x.ResetFilters = none
	}
	if x.SaveView == nil {
		x.SaveView = byID
	}
	if x.LoadView == nil {
		x.LoadView = byID
	}
	if x.DeleteView == nil {
		x.DeleteView = byID
	}
	if x.Refresh == nil {
		x.Refresh = none
	}
	if x.SaveRecord == nil {
		x.SaveRecord = patch
	}
	if x.Scan == nil {
		x.Scan = byID
	}
	if x.EditScan == nil {
		x.EditScan = patch
	}
	if x.DiscardScan == nil {
		x.DiscardScan = byID
	}
	if x.RestoreScan == nil {
		x.RestoreScan = byID
	}
	if x.CommitScan == nil {
		x.CommitScan = none
	}
	return x
}

type mode int

const (
	modeTable mode = iota
	modeFilters
	modeViews
	modeScan
	modeDebug
)

// prompt is the single-line input currently open, if any.
type prompt int

const (
	promptNone prompt = iota
	promptSearch
	promptEditRecord
	promptRange
	promptViewName
	promptEditScan
)

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the state store. It receives snapshots via
// messages and changes state only through Actions.
type App struct {
	actions Actions
	ring    *otel.RingBuffer
	tax     *model.ColorTaxonomy
	now     func() time.Time

	snap   state.Snapshot
	rows   []model.Record // snap.Filtered in display order
	status syncer.Status
	notice *Notice

	mode   mode
	back   mode // where modeDebug returns to
	prompt prompt
	target string // record id, pending code, or range field for the open prompt
	field  field
	width  int
	height int
	ready  bool

	table  table.Model
	sortBy sortKey
	input  textinput.Model

	facets       []filterRow
	filterCursor int
	viewCursor   int

	scanInput  textinput.Model
	pending    []scan.Item
	scanSum    scan.Summary
	scanCursor int
	lastScan   string
}

// NewApp creates the dashboard. ring may be nil; tax nil means the default
// taxonomy.
func NewApp(actions Actions, ring *otel.RingBuffer, tax *model.ColorTaxonomy) App {
	if tax == nil {
		tax = model.DefaultColorTaxonomy()
	}
	t := table.New(
		table.WithColumns(columnsFor(100)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())

	in := textinput.New()
	in.CharLimit = 200

	si := textinput.New()
	si.Prompt = "code › "
	si.Placeholder = "scan or type a barcode"
	si.CharLimit = 64

	return App{
		actions:   actions.withDefaults(),
		ring:      ring,
		tax:       tax,
		now:       time.Now,
		table:     t,
		input:     in,
		scanInput: si,
		facets:    filterRows(filter.Facets{}, tax),
	}
}

// Init has nothing to load; the coordinator pushes state as it arrives.
func (a App) Init() tea.Cmd {
	return nil
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.table.SetColumns(columnsFor(msg.Width))
		a.table.SetWidth(msg.Width)
		a.input.Width = max(msg.Width-20, 10)
		return a, nil

	case StateChanged:
		a.snap = msg.Snapshot
		a.facets = filterRows(filter.Collect(a.snap.Records), a.tax)
		a.filterCursor = clamp(a.filterCursor, len(a.facets))
		a.viewCursor = clamp(a.viewCursor, len(a.snap.Views))
		a.refreshRows()
		return a, nil

	case SyncStatus:
		a.status = msg.Status
		return a, nil

	case Notice:
		a.notice = &msg
		return a, nil

	case ActionDone:
		switch {
		case msg.Err != nil:
			a.notice = &Notice{Level: otel.LevelError, Text: fmt.Sprintf("%s: %v", msg.Op, msg.Err)}
		case msg.Op == "save view":
			a.notice = &Notice{Level: otel.LevelInfo, Text: "View saved."}
		case msg.Op == "load view":
			a.mode = modeTable
		case msg.Op == "refresh":
			a.notice = &Notice{Level: otel.LevelInfo, Text: "Refreshing…"}
		}
		return a, nil

	case WriteBackDone:
		switch {
		case msg.Err != nil:
			a.notice = &Notice{Level: otel.LevelError, Text: "Save failed: " + msg.Err.Error()}
		case !msg.Result.Success:
			a.notice = &Notice{Level: otel.LevelWarn, Text: "Saved locally; " + msg.Result.Message}
		default:
			a.notice = &Notice{Level: otel.LevelInfo, Text: msg.Result.Message}
		}
		return a, nil

	case Scanned:
		if msg.Err != nil {
			a.lastScan = "error: " + msg.Err.Error()
			return a, nil
		}
		a.setPending(msg.Pending, msg.Summary)
		a.lastScan = describeScan(msg.Result)
		return a, nil

	case ScanReviewed:
		if msg.Err != nil {
			a.lastScan = "error: " + msg.Err.Error()
		}
		a.setPending(msg.Pending, msg.Summary)
		return a, nil

	case ScanCommitted:
		a.setPending(msg.Pending, msg.Summary)
		switch {
		case msg.Err != nil:
			a.notice = &Notice{Level: otel.LevelError, Text: "Some items were not saved: " + msg.Err.Error()}
		case len(msg.Added) > 0 && !msg.WriteBack.Success && msg.WriteBack.Message != "":
			a.notice = &Notice{Level: otel.LevelWarn, Text: fmt.Sprintf("Added %d records; %s", len(msg.Added), msg.WriteBack.Message)}
		default:
			a.notice = &Notice{Level: otel.LevelInfo, Text: fmt.Sprintf("Added %d records.", len(msg.Added))}
		}
		return a, nil
	}

	return a, nil
}

func describeScan(r scan.Result) string {
	switch r.Outcome {
	case scan.Incremented:
		return fmt.Sprintf("%s: %s %s now ×%d", r.Code, r.Record.Brand, r.Record.SubBrand, r.Record.Qty)
	case scan.Queued:
		if r.Item.Lookup == nil {
			return r.Code + ": not found, queued for manual entry"
		}
		return fmt.Sprintf("%s: found on %s, queued for review", r.Code, r.Item.Lookup.Source)
	default:
		return r.Code + ": " + r.Outcome.String()
	}
}

func (a *App) setPending(items []scan.Item, sum scan.Summary) {
	a.pending = items
	a.scanSum = sum
	a.scanCursor = clamp(a.scanCursor, len(items))
}

func (a *App) refreshRows() {
	a.rows = sortRecords(a.snap.Filtered, a.sortBy)
	a.table.SetRows(rowsFor(a.rows))
	if c := clamp(a.table.Cursor(), len(a.rows)); c != a.table.Cursor() {
		a.table.SetCursor(c)
	}
}

func clamp(cursor, n int) int {
	if cursor >= n {
		cursor = n - 1
	}
	return max(cursor, 0)
}

// selected returns the record under the table cursor.
func (a App) selected() (model.Record, bool) {
	c := a.table.Cursor()
	if c < 0 || c >= len(a.rows) {
		return model.Record{}, false
	}
	return a.rows[c], true
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}
	if a.prompt != promptNone {
		return a.handlePromptKey(msg)
	}

	// Clear any notice on key press
	a.notice = nil

	switch a.mode {
	case modeFilters:
		return a.handleFilterKey(msg)
	case modeViews:
		return a.handleViewsKey(msg)
	case modeScan:
		return a.handleScanKey(msg)
	case modeDebug:
		if msg.String() == "D" || msg.String() == "esc" {
			a.mode = a.back
		}
		return a, nil
	}

	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "/":
		a.input.SetValue(a.snap.Filters.Search)
		cmd := a.openPrompt(promptSearch, "search › ")
		return a, cmd
	case "f":
		a.mode = modeFilters
	case "v":
		a.mode = modeViews
	case "b":
		a.mode = modeScan
		cmd := a.scanInput.Focus()
		return a, cmd
	case "e":
		if r, ok := a.selected(); ok {
			a.target = r.ID
			a.input.SetValue(patchLine(r))
			cmd := a.openPrompt(promptEditRecord, "edit › ")
			return a, cmd
		}
	case "s":
		a.sortBy = a.sortBy.next()
		a.refreshRows()
	case "x":
		return a, a.actions.ResetFilters()
	case "R", "ctrl+r":
		return a, a.actions.Refresh()
	case "D":
		a.back, a.mode = a.mode, modeDebug
	default:
		var cmd tea.Cmd
		a.table, cmd = a.table.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) openPrompt(p prompt, label string) tea.Cmd {
	a.prompt = p
	a.input.Prompt = label
	a.input.CursorEnd()
	return a.input.Focus()
}

func (a *App) closePrompt() {
	a.prompt = promptNone
	a.input.Blur()
	a.input.SetValue("")
}

func (a App) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		p := a.prompt
		a.closePrompt()
		if p == promptSearch {
			spec := a.snap.Filters.Clone()
			spec.Search = ""
			return a, a.actions.SetFilters(spec)
		}
		return a, nil
	case "enter":
		return a.submitPrompt()
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	if a.prompt == promptSearch {
		// Search filters live as the user types.
		spec := a.snap.Filters.Clone()
		spec.Search = a.input.Value()
		return a, tea.Batch(cmd, a.actions.SetFilters(spec))
	}
	return a, cmd
}

func (a App) submitPrompt() (tea.Model, tea.Cmd) {
	value := a.input.Value()
	p, target, fd := a.prompt, a.target, a.field
	a.closePrompt()

	fail := func(err error) (tea.Model, tea.Cmd) {
		a.notice = &Notice{Level: otel.LevelError, Text: err.Error()}
		return a, nil
	}

	switch p {
	case promptSearch:
		spec := a.snap.Filters.Clone()
		spec.Search = value
		return a, a.actions.SetFilters(spec)
	case promptEditRecord:
		patch, err := parsePatch(value)
		if err != nil {
			return fail(err)
		}
		return a, a.actions.SaveRecord(target, patch)
	case promptRange:
		rg, err := parseRange(value)
		if err != nil {
			return fail(err)
		}
		return a, a.actions.SetFilters(setRange(a.snap.Filters, fd, rg))
	case promptViewName:
		if strings.TrimSpace(value) == "" {
			return a, nil
		}
		return a, a.actions.SaveView(value)
	case promptEditScan:
		patch, err := parsePatch(value)
		if err != nil {
			return fail(err)
		}
		return a, a.actions.EditScan(target, patch)
	}
	return a, nil
}

func (a App) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "f", "q":
		a.mode = modeTable
	case "up", "k":
		a.filterCursor = clamp(a.filterCursor-1, len(a.facets))
	case "down", "j":
		a.filterCursor = clamp(a.filterCursor+1, len(a.facets))
	case " ", "space":
		if len(a.facets) == 0 {
			return a, nil
		}
		row := a.facets[a.filterCursor]
		if row.field.isRange() {
			return a.editRange(row)
		}
		return a, a.actions.SetFilters(toggle(a.snap.Filters, row))
	case "enter":
		if len(a.facets) > 0 && a.facets[a.filterCursor].field.isRange() {
			return a.editRange(a.facets[a.filterCursor])
		}
	case "c":
		return a, a.actions.ResetFilters()
	case "D":
		a.back, a.mode = a.mode, modeDebug
	}
	return a, nil
}

func (a App) editRange(row filterRow) (tea.Model, tea.Cmd) {
	a.field = row.field
	rg := *rangeOf(&a.snap.Filters, row.field)
	if rg.IsZero() {
		a.input.SetValue("")
	} else {
		a.input.SetValue(formatRange(rg))
	}
	cmd := a.openPrompt(promptRange, strings.ToLower(row.label)+" range › ")
	return a, cmd
}

func (a App) handleViewsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	views := a.snap.Views
	switch msg.String() {
	case "esc", "v", "q":
		a.mode = modeTable
	case "up", "k":
		a.viewCursor = clamp(a.viewCursor-1, len(views))
	case "down", "j":
		a.viewCursor = clamp(a.viewCursor+1, len(views))
	case "enter":
		if len(views) > 0 {
			return a, a.actions.LoadView(views[a.viewCursor].ID)
		}
	case "n":
		cmd := a.openPrompt(promptViewName, "view name › ")
		return a, cmd
	case "d":
		if len(views) > 0 {
			return a, a.actions.DeleteView(views[a.viewCursor].ID)
		}
	}
	return a, nil
}

func (a App) handleScanKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = modeTable
		a.scanInput.Blur()
		return a, nil
	case "enter":
		code := strings.TrimSpace(a.scanInput.Value())
		a.scanInput.SetValue("")
		if code == "" {
			return a, nil
		}
		return a, a.actions.Scan(code)
	case "up":
		a.scanCursor = clamp(a.scanCursor-1, len(a.pending))
		return a, nil
	case "down":
		a.scanCursor = clamp(a.scanCursor+1, len(a.pending))
		return a, nil
	case "ctrl+e":
		if len(a.pending) > 0 {
			it := a.pending[a.scanCursor]
			a.target = it.Code
			a.input.SetValue(patchLine(it.Preview()))
			cmd := a.openPrompt(promptEditScan, it.Code+" › ")
			return a, cmd
		}
		return a, nil
	case "ctrl+x":
		if len(a.pending) > 0 {
			it := a.pending[a.scanCursor]
			if it.Discarded {
				return a, a.actions.RestoreScan(it.Code)
			}
			return a, a.actions.DiscardScan(it.Code)
		}
		return a, nil
	case "ctrl+s":
		return a, a.actions.CommitScan()
	}
	var cmd tea.Cmd
	a.scanInput, cmd = a.scanInput.Update(msg)
	return a, cmd
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}
	now := a.now()

	if a.mode == modeDebug {
		return lipgloss.JoinVertical(lipgloss.Left,
			debugOverlay(a.ring, now, a.width, a.height-1),
			debugStatusBar(a.width),
		)
	}

	top := []string{
		renderSummary(a.snap.Filtered, len(a.snap.Records), a.width),
		renderTopLine(a.snap.Filtered, a.width),
	}
	var bottom []string
	if r, ok := a.selected(); ok && a.mode == modeTable {
		bottom = append(bottom, renderDetail(r, a.tax, a.width))
	}
	if a.notice != nil {
		bottom = append(bottom, noticeStyle(a.notice.Level).Width(a.width).Render(a.notice.Text))
	}
	if a.prompt != promptNone {
		bottom = append(bottom, InputBar.Width(a.width).Render(a.input.View()))
	}
	bottom = append(bottom, renderStatusBar(a.status, a.snap.Filters.Active(), a.sortBy, now, a.width))

	avail := max(a.height-len(top)-len(bottom), 3)
	var body string
	switch a.mode {
	case modeFilters:
		body = renderFilterPanel(a.facets, a.filterCursor, a.snap.Filters, a.tax, a.width, avail)
	case modeViews:
		body = renderViewsPanel(a.snap.Views, a.viewCursor, now, a.width)
	case modeScan:
		body = renderScanPanel(a.scanInput.View(), a.pending, a.scanCursor, a.scanSum, a.lastScan, a.tax, a.width)
	default:
		body = a.renderTable(avail)
	}
	body = lipgloss.NewStyle().Height(avail).MaxHeight(avail).Render(body)

	parts := append(top, body)
	return lipgloss.JoinVertical(lipgloss.Left, append(parts, bottom...)...)
}

func (a App) renderTable(height int) string {
	if len(a.rows) == 0 {
		msg := "No records match the current filters. Press x to clear them."
		switch {
		case len(a.snap.Records) > 0:
		case a.status.State == syncer.StateLoading || a.status.State == syncer.StateIdle:
			msg = "Loading the collection…"
		case a.status.State == syncer.StateUnconfigured:
			msg = "No source configured."
		default:
			msg = "The collection is empty."
		}
		return HelpStyle.Render(msg)
	}
	t := a.table
	t.SetHeight(max(height-2, 1)) // header row and its border
	return t.View()
}

// Rows returns the displayed records (for testing).
func (a App) Rows() []model.Record {
	return a.rows
}

// Mode reports whether a panel is open (for testing).
func (a App) Mode() string {
	switch a.mode {
	case modeFilters:
		return "filters"
	case modeViews:
		return "views"
	case modeScan:
		return "scan"
	case modeDebug:
		return "debug"
	default:
		return "table"
	}
}
