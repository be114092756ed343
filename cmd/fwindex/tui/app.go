package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jamesainslie/fwindex/pkg/fwindex/archive"
	"github.com/jamesainslie/fwindex/pkg/fwindex/config"
	"github.com/jamesainslie/fwindex/pkg/fwindex/logging"
	"github.com/jamesainslie/fwindex/pkg/fwindex/query"
)

// AppState represents the current state of the application.
type AppState int

const (
	StateBrowse AppState = iota
	StateSearch
	StateFilter
	StateArchiving
	StateArchiveDone
)

// DownloadFunc writes an archive called name holding items and returns
// where it was saved.
type DownloadFunc func(ctx context.Context, name string, items []archive.Item, opts archive.Options) (string, *archive.Result, error)

// Options configures the TUI application.
type Options struct {
	// Engine queries the loaded catalog.
	Engine *query.Engine

	// Session is the starting state. Nil starts at the root.
	Session *query.Session

	// Search bounds the search passes.
	Search query.SearchOptions

	// Debounce delays searching after the last keystroke.
	Debounce time.Duration

	// Download saves archives. Nil disables downloading.
	Download DownloadFunc
}

// Model is the main Bubble Tea model for the catalog browser.
type Model struct {
	state   AppState
	options Options
	session *query.Session
	log     *logging.Logger

	list    ListModel
	filters FilterModel
	input   textinput.Model

	// searchSeq identifies the newest keystroke; older results are dropped.
	searchSeq int

	status string

	ctx    context.Context
	cancel context.CancelFunc

	archiveSpinner  spinner.Model
	archiveName     string
	archiveSelected bool
	archivePhase    string
	archiveDone     int
	archiveTotal    int
	archiveFailed   int
	archiveDest     string
	archiveResult   *archive.Result
	archiveErr      error
	archiveProgress chan tea.Msg

	width  int
	height int
}

// searchTickMsg fires after the debounce delay.
type searchTickMsg struct {
	seq   int
	query string
}

// searchDoneMsg carries the hits for one query.
type searchDoneMsg struct {
	seq     int
	query   string
	entries []query.Entry
}

// archiveProgressMsg reports one archive phase step.
type archiveProgressMsg struct {
	phase  string
	done   int
	total  int
	failed int
}

// archiveDoneMsg ends an archive download.
type archiveDoneMsg struct {
	dest string
	res  *archive.Result
	err  error
}

// NewModel creates a new TUI model with the given options.
func NewModel(opts Options) Model {
	if opts.Session == nil {
		opts.Session = query.NewSession()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = config.DefaultSearchDebounce
	}
	if opts.Search.Limit <= 0 {
		opts.Search = query.DefaultSearchOptions()
	}

	ctx, cancel := context.WithCancel(context.Background())

	input := textinput.New()
	input.Placeholder = "name, path, device or isp"
	input.Prompt = "/ "
	input.SetValue(opts.Session.Query)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(brandColor)

	// The device facet offers alias names next to the canonical devices.
	choices := opts.Engine.Choices()
	choices.Devices = query.DeviceChoices(opts.Engine.Catalog())

	m := Model{
		state:          StateBrowse,
		options:        opts,
		session:        opts.Session,
		log:            logging.Get("tui"),
		list:           NewListModel(nil),
		filters:        NewFilterModel(choices, opts.Session.Filters),
		input:          input,
		ctx:            ctx,
		cancel:         cancel,
		archiveSpinner: s,
		width:          80,
		height:         24,
	}
	m.refresh()
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// hitEntries converts hits to file rows.
func hitEntries(hits []query.Hit) []query.Entry {
	entries := make([]query.Entry, len(hits))
	for i := range hits {
		r := hits[i].Record
		entries[i] = query.Entry{
			Kind:       query.KindFile,
			Name:       r.Name,
			Path:       r.Path,
			Size:       r.Size,
			ModifiedAt: r.ModifiedAt,
			Record:     &r,
		}
	}
	return entries
}

// refresh recomputes the rows for the session synchronously.
func (m *Model) refresh() {
	if q := strings.TrimSpace(m.session.Query); q != "" {
		hits := m.options.Engine.Search(q, m.session.Filters, m.options.Search)
		m.list.SetEntries(hitEntries(hits), true)
		return
	}
	m.list.SetEntries(m.options.Engine.List(m.session.Path, m.session.Filters, m.session.Sort), false)
}

// scheduleSearch debounces a query change.
func (m *Model) scheduleSearch(q string) tea.Cmd {
	m.searchSeq++
	seq := m.searchSeq
	return tea.Tick(m.options.Debounce, func(time.Time) tea.Msg {
		return searchTickMsg{seq: seq, query: q}
	})
}

// runSearch searches off the update loop.
func (m Model) runSearch(seq int, q string) tea.Cmd {
	engine, filters, opts := m.options.Engine, m.session.Filters, m.options.Search
	return func() tea.Msg {
		var entries []query.Entry
		if strings.TrimSpace(q) != "" {
			entries = hitEntries(engine.Search(q, filters, opts))
		}
		return searchDoneMsg{seq: seq, query: q, entries: entries}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetDimensions(msg.Width, msg.Height)
		m.input.Width = max(msg.Width-12, 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case searchTickMsg:
		if msg.seq != m.searchSeq {
			return m, nil
		}
		return m, m.runSearch(msg.seq, msg.query)

	case searchDoneMsg:
		if msg.seq != m.searchSeq {
			return m, nil
		}
		m.session.Query = msg.query
		if strings.TrimSpace(msg.query) == "" {
			m.refresh()
			return m, nil
		}
		m.list.SetEntries(msg.entries, true)
		return m, nil

	case spinner.TickMsg:
		if m.state != StateArchiving {
			return m, nil
		}
		var cmd tea.Cmd
		m.archiveSpinner, cmd = m.archiveSpinner.Update(msg)
		return m, cmd

	case archiveProgressMsg:
		m.archivePhase = msg.phase
		m.archiveDone = msg.done
		m.archiveTotal = msg.total
		m.archiveFailed = msg.failed
		return m, m.listenForArchive()

	case archiveDoneMsg:
		m.state = StateArchiveDone
		m.archiveDest = msg.dest
		m.archiveResult = msg.res
		m.archiveErr = msg.err
		if msg.err == nil && m.archiveSelected {
			m.session.ClearSelection()
		}
		return m, nil
	}

	if m.state == StateSearch {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKey handles keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.cancel()
		return m, tea.Quit
	}

	switch m.state {
	case StateBrowse:
		return m.handleBrowseKey(key)

	case StateSearch:
		switch key {
		case "esc":
			m.input.SetValue("")
			m.input.Blur()
			m.session.Query = ""
			m.searchSeq++
			m.state = StateBrowse
			m.refresh()
			return m, nil
		case "enter", "down", "up":
			m.input.Blur()
			m.state = StateBrowse
			return m, nil
		}
		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if after := m.input.Value(); after != before {
			search := m.scheduleSearch(after)
			return m, tea.Batch(cmd, search)
		}
		return m, cmd

	case StateFilter:
		switch key {
		case "esc", "enter", "f", "q":
			m.state = StateBrowse
			return m, nil
		}
		if m.filters.HandleKey(key) {
			m.session.Filters = m.filters.Filters()
			m.refresh()
		}
		return m, nil

	case StateArchiving:
		if key == "esc" {
			m.cancel()
		}
		return m, nil

	case StateArchiveDone:
		if key == "q" || key == "enter" || key == "esc" {
			m.state = StateBrowse
			m.ctx, m.cancel = context.WithCancel(context.Background())
			m.refresh()
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleBrowseKey(key string) (tea.Model, tea.Cmd) {
	m.status = ""
	switch key {
	case "q":
		m.cancel()
		return m, tea.Quit

	case "esc":
		if m.session.Query != "" {
			m.input.SetValue("")
			m.session.Query = ""
			m.searchSeq++
			m.refresh()
			return m, nil
		}
		m.cancel()
		return m, tea.Quit

	case "/":
		m.state = StateSearch
		cmd := m.input.Focus()
		return m, cmd

	case "f":
		m.state = StateFilter
		return m, nil

	case "enter", "right", "l":
		e, ok := m.list.Current()
		if !ok {
			return m, nil
		}
		switch e.Kind {
		case query.KindParent:
			m.session.Up()
			m.refresh()
		case query.KindDir:
			m.session.Navigate(e.Path)
			m.refresh()
		case query.KindFile:
			m.session.Toggle(e.Path)
		}
		return m, nil

	case "backspace", "left", "h":
		if m.session.Query == "" && !m.session.AtRoot() {
			m.session.Up()
			m.refresh()
		}
		return m, nil

	case " ":
		if e, ok := m.list.Current(); ok && e.Kind == query.KindFile {
			m.session.Toggle(e.Path)
			m.list.HandleKey("down")
		}
		return m, nil

	case "a":
		m.session.Select(m.list.FilePaths()...)
		return m, nil

	case "n":
		m.session.ClearSelection()
		return m, nil

	case "s":
		m.session.Sort.Key = nextSortKey(m.session.Sort.Key)
		m.refresh()
		return m, nil

	case "r":
		m.session.Sort.Desc = !m.session.Sort.Desc
		m.refresh()
		return m, nil

	case "y":
		link, err := m.session.Encode()
		switch {
		case err != nil:
			m.status = errorTextStyle.Render("  " + err.Error())
		case link == "":
			m.status = mutedTextStyle.Render("  Link: (root, no filters)")
		default:
			m.status = mutedTextStyle.Render("  Link: ?" + link)
		}
		return m, nil

	case "d":
		return m.startArchive()
	}

	m.list.HandleKey(key)
	return m, nil
}

// nextSortKey cycles through the sort keys.
func nextSortKey(k query.SortKey) query.SortKey {
	keys := query.SortKeys()
	for i := range keys {
		if keys[i] == k {
			return keys[(i+1)%len(keys)]
		}
	}
	return query.SortByName
}

// selectionSize sums the sizes of the selected files.
func (m Model) selectionSize() int64 {
	c := m.options.Engine.Catalog()
	var total int64
	for _, p := range m.session.Selection() {
		if r, ok := c.Record(p); ok {
			total += r.Size
		}
	}
	return total
}

// archivePlan picks the selection when one exists, else the current
// directory with filters applied.
func (m Model) archivePlan(now time.Time) (string, []archive.Item) {
	if sel := m.session.Selection(); len(sel) > 0 {
		records, missing := archive.ResolveSelection(m.options.Engine.Catalog(), sel)
		for _, p := range missing {
			m.log.Warn("selected path not in catalog", "path", p)
		}
		return archive.SelectionArchiveName(now), archive.SelectionItems(records)
	}
	records := m.options.Engine.Records(m.session.Filters)
	return archive.DirectoryArchiveName(m.session.Path), archive.DirectoryItems(records, m.session.Path)
}

// startArchive begins downloading in the background.
func (m Model) startArchive() (tea.Model, tea.Cmd) {
	if m.options.Download == nil {
		m.status = warningTextStyle.Render("  Downloads are not available")
		return m, nil
	}
	name, items := m.archivePlan(time.Now())
	if len(items) == 0 {
		m.status = warningTextStyle.Render("  Nothing to download here")
		return m, nil
	}

	m.state = StateArchiving
	m.archiveName = name
	m.archiveSelected = len(m.session.Selection()) > 0
	m.archivePhase = "Fetching"
	m.archiveDone, m.archiveTotal, m.archiveFailed = 0, len(items), 0
	m.archiveProgress = make(chan tea.Msg, 100)

	progress := m.archiveProgress
	send := func(msg tea.Msg) {
		select {
		case progress <- msg:
		default:
			// Channel full, skip this update
		}
	}
	opts := archive.DefaultOptions()
	opts.OnFetch = func(p archive.FetchProgress) {
		send(archiveProgressMsg{phase: "Fetching", done: p.Done, total: p.Total, failed: p.Failed})
	}
	opts.OnCompress = func(p archive.CompressProgress) {
		send(archiveProgressMsg{phase: "Compressing", done: p.Done, total: p.Total})
	}

	ctx, download := m.ctx, m.options.Download
	go func() {
		dest, res, err := download(ctx, name, items, opts)
		progress <- archiveDoneMsg{dest: dest, res: res, err: err}
		close(progress)
	}()

	return m, tea.Batch(m.archiveSpinner.Tick, m.listenForArchive())
}

// listenForArchive waits for the next archive message.
func (m Model) listenForArchive() tea.Cmd {
	progress := m.archiveProgress
	return func() tea.Msg {
		if progress == nil {
			return nil
		}
		msg, ok := <-progress
		if !ok {
			return nil
		}
		return msg
	}
}

// View renders the current state.
func (m Model) View() string {
	switch m.state {
	case StateArchiving:
		return m.renderArchiving()
	case StateArchiveDone:
		return m.renderArchiveDone()
	}
	return m.renderBrowser()
}

func (m Model) contentWidth() int {
	return max(m.width-4, 60)
}

func (m Model) renderBrowser() string {
	width := m.contentWidth()
	var b strings.Builder

	b.WriteString(renderAppHeader(m.options.Engine.Catalog(), len(m.session.Selection()), m.selectionSize()))
	b.WriteString("\n")
	b.WriteString(renderLocation(m.session.Path, m.session.Query, len(m.list.Entries()), renderFilterSummary(m.session.Filters)))
	b.WriteString("\n")
	b.WriteString(m.filters.View(m.state == StateFilter))
	b.WriteString("\n")
	b.WriteString(renderDivider(width))
	b.WriteString("\n")

	if len(m.list.Entries()) == 0 {
		b.WriteString("\n")
		b.WriteString(center(mutedTextStyle.Render("No files found matching your criteria."), width))
		b.WriteString("\n\n")
	} else {
		b.WriteString(m.list.View(width, m.session.IsSelected))
	}

	b.WriteString(renderDivider(width))
	b.WriteString("\n")
	if m.state == StateSearch {
		b.WriteString("  " + m.input.View())
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(m.renderHelpBar(width))

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

func (m Model) renderHelpBar(width int) string {
	var hints [][2]string
	switch m.state {
	case StateSearch:
		hints = [][2]string{{"Enter", "Done"}, {"Esc", "Clear"}}
	case StateFilter:
		hints = [][2]string{{"Tab", "Next"}, {"←→", "Change"}, {"x", "Clear"}, {"X", "Clear all"}, {"Enter", "Done"}}
	default:
		hints = [][2]string{
			{"Enter", "Open"}, {"⌫", "Up"}, {"Space", "Select"}, {"/", "Search"},
			{"f", "Filter"}, {"s", "Sort: " + string(m.session.Sort.Key) + sortArrow(m.session.Sort.Desc)},
			{"d", "Download"}, {"y", "Link"}, {"q", "Quit"},
		}
	}
	return truncateHints(renderHints(hints), width)
}

func sortArrow(desc bool) string {
	if desc {
		return "↓"
	}
	return "↑"
}

// truncateHints drops hints that would overflow the box.
func truncateHints(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}

// renderArchiving renders the download progress view.
func (m Model) renderArchiving() string {
	width := m.contentWidth()

	var b strings.Builder
	b.WriteString(titleStyle.Render("  Downloading " + m.archiveName))
	b.WriteString("\n")
	b.WriteString(renderDivider(width))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("  %s %s: %d / %d files", m.archiveSpinner.View(), m.archivePhase, m.archiveDone, m.archiveTotal))
	if m.archiveFailed > 0 {
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("  (%d failed)", m.archiveFailed)))
	}
	b.WriteString("\n\n")
	b.WriteString(renderProgressBar(m.archiveDone, m.archiveTotal, width-4))
	b.WriteString("\n\n")
	b.WriteString(center(keyStyle.Render("[Esc]")+" "+keyDescStyle.Render("Cancel"), width))
	b.WriteString("\n")

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

// renderProgressBar renders done/total as a bar with a percentage.
func renderProgressBar(done, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	pct := float64(done) / float64(total)
	filled := int(pct * float64(width))
	return "  " + progressFillStyle.Render(repeatChar('█', filled)) +
		progressEmptyStyle.Render(repeatChar('░', width-filled)) +
		fmt.Sprintf(" %d%%", int(pct*100))
}

// renderArchiveDone renders the download summary.
func (m Model) renderArchiveDone() string {
	width := m.contentWidth()

	var b strings.Builder
	switch {
	case m.archiveErr != nil:
		b.WriteString(errorTextStyle.Render("  Download failed"))
		b.WriteString("\n")
		b.WriteString(renderDivider(width))
		b.WriteString("\n\n")
		b.WriteString(errorTextStyle.Render("  " + m.archiveErr.Error()))
		b.WriteString("\n")
	default:
		b.WriteString(successTextStyle.Render("  Download complete"))
		b.WriteString("\n")
		b.WriteString(renderDivider(width))
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("  Saved: %s\n", m.archiveDest))
		if res := m.archiveResult; res != nil {
			b.WriteString(renderArchiveMetrics(res.Entries, res.Bytes, res.Elapsed))
			b.WriteString("\n")
			b.WriteString(renderOmissions(res.Omissions, width))
		}
	}

	b.WriteString("\n")
	b.WriteString(center(keyStyle.Render("[Enter]")+" "+keyDescStyle.Render("Back"), width))
	b.WriteString("\n")

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

// renderOmissions lists files left out of an archive, at most five.
func renderOmissions(omissions []archive.Omission, width int) string {
	if len(omissions) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(warningTextStyle.Render(fmt.Sprintf("  %d files could not be fetched:", len(omissions))))
	b.WriteString("\n")
	const maxShown = 5
	for i, o := range omissions {
		if i >= maxShown {
			b.WriteString(warningTextStyle.Render(fmt.Sprintf("    ... and %d more", len(omissions)-maxShown)))
			b.WriteString("\n")
			break
		}
		b.WriteString(warningTextStyle.Render("    - " + truncatePath(o.Path+": "+o.Error, width-6)))
		b.WriteString("\n")
	}
	return b.String()
}

// Run starts the TUI application.
func Run(opts Options) error {
	p := tea.NewProgram(NewModel(opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := p.Run()
	return err
}

var _ tea.Model = Model{}
