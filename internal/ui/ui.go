package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/aether/internal/duration"
	"github.com/desertthunder/aether/internal/harvest"
	"github.com/desertthunder/aether/internal/matching"
	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/report"
	"github.com/desertthunder/aether/internal/shared"
	"github.com/desertthunder/aether/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LaunchView ViewState = iota
	ArchivistView
	ResolveView
	StatsView
)

// Launch form field order.
const (
	fieldSource = iota
	fieldLibrary
	fieldThreads
	fieldEngine
)

// LaunchParams are the fields of the launch form.
type LaunchParams struct {
	Source  string
	Library string
	Threads int
	Engine  string
}

// Launcher builds a pipeline and the harvester for its source.
type Launcher func(ctx context.Context, params LaunchParams) (*tasks.Pipeline, harvest.Harvester, error)

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	launch     Launcher
	params     LaunchParams
	autoLaunch bool
	inputs     []textinput.Model
	focus      int
	pipeline   *tasks.Pipeline
	harvester  harvest.Harvester
	harvesting bool
	mission    *tasks.Mission
	tracks     []models.Track
	progress   map[int]float64
	table      table.Model
	pending    []int
	resolving  int
	choices    []models.Candidate
	candidates list.Model
	report     *report.Report
	status     string
	err        error
	spinner    spinner.Model
	help       help.Model
	keys       keyMap
	width      int
	height     int
}

// NewModel creates a new TUI model. When autoLaunch is set and params carries a source, the launch form is
// submitted on start.
func NewModel(ctx context.Context, launch Launcher, params LaunchParams, autoLaunch bool) *Model {
	if params.Library == "" {
		params.Library = shared.DefaultLibraryName
	}
	if params.Threads <= 0 {
		params.Threads = shared.DefaultConcurrency
	}
	if params.Engine == "" {
		params.Engine = "cpu"
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.ok

	m := &Model{
		ctx:        ctx,
		view:       LaunchView,
		launch:     launch,
		params:     params,
		autoLaunch: autoLaunch && params.Source != "",
		progress:   make(map[int]float64),
		resolving:  -1,
		spinner:    sp,
		help:       help.New(),
		keys:       newKeyMap(),
	}
	m.inputs = newLaunchInputs(params)
	m.table = table.New(
		table.WithColumns(trackColumns(80)),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	return m
}

func newLaunchInputs(params LaunchParams) []textinput.Model {
	fields := []struct {
		placeholder string
		value       string
	}{
		{"https://open.spotify.com/playlist/… or playlist.csv", params.Source},
		{shared.DefaultLibraryName, params.Library},
		{strconv.Itoa(shared.DefaultConcurrency), strconv.Itoa(params.Threads)},
		{"cpu or gpu", params.Engine},
	}

	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Placeholder = f.placeholder
		ti.SetValue(f.value)
		ti.Prompt = "› "
		inputs[i] = ti
	}
	inputs[fieldSource].Focus()
	return inputs
}

func trackColumns(width int) []table.Column {
	name := (width - 40) / 2
	if name < 12 {
		name = 12
	}
	return []table.Column{
		{Title: "", Width: 3},
		{Title: "#", Width: 4},
		{Title: "Artist", Width: name},
		{Title: "Title", Width: name},
		{Title: "Time", Width: 7},
		{Title: "Status", Width: 22},
	}
}

// Pipeline returns the launched pipeline, or nil before launch.
func (m *Model) Pipeline() *tasks.Pipeline { return m.pipeline }

// Init focuses the launch form, submitting it right away when auto launch is enabled.
func (m *Model) Init() tea.Cmd {
	if m.autoLaunch {
		return m.submitLaunch()
	}
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(trackColumns(msg.Width))
		m.table.SetHeight(max(msg.Height-10, 5))
		if m.resolving >= 0 {
			m.candidates.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)

	case tea.KeyMsg:
		switch m.view {
		case LaunchView:
			return m.handleLaunchKeys(msg)
		case ArchivistView:
			return m.handleArchivistKeys(msg)
		case ResolveView:
			return m.handleResolveKeys(msg)
		case StatsView:
			return m.handleStatsKeys(msg)
		}
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgLaunched:
		res := msg.data.(launchResult)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		m.err = nil
		m.pipeline = res.pipeline
		m.harvester = res.harvester
		m.harvesting = true
		m.view = ArchivistView
		m.status = fmt.Sprintf("Harvesting %s", m.params.Source)
		return m, tea.Batch(m.waitForEvent(), m.runHarvest(), m.spinner.Tick)

	case MsgPipelineEvent:
		m.applyEvent(msg.data.(tasks.Event))
		return m, m.waitForEvent()

	case MsgHarvestDone:
		m.harvesting = false
		if err, _ := msg.data.(error); err != nil && !errors.Is(err, context.Canceled) {
			m.status = fmt.Sprintf("Harvest failed: %v", err)
		}
		m.refreshAll()
		return m, nil

	case MsgMissionStarted:
		data := msg.data.(struct {
			mission *tasks.Mission
			err     error
		})
		if data.err != nil {
			m.status = data.err.Error()
			return m, nil
		}
		m.mission = data.mission
		return m, m.spinner.Tick

	case MsgDecided:
		data := msg.data.(struct {
			index int
			err   error
		})
		m.dequeue(data.index)
		if data.err != nil {
			m.status = data.err.Error()
		}
		m.refreshTrack(data.index)
		m.nextDecision()
		return m, nil
	}
	return m, nil
}

// applyEvent folds one pipeline event into the model.
func (m *Model) applyEvent(ev tasks.Event) {
	switch ev.Kind {
	case tasks.TrackDiscovered, tasks.TrackUpdated:
		if ev.Status.Terminal() {
			delete(m.progress, ev.Index)
		}
		m.refreshTrack(ev.Index)

	case tasks.DecisionRequested:
		m.enqueue(ev.Index)
		m.refreshTrack(ev.Index)
		if m.view == ArchivistView {
			m.openResolve(ev.Index, ev.Candidates)
		}

	case tasks.DownloadProgress:
		if ev.Size > 0 {
			m.progress[ev.Index] = float64(ev.Downloaded) / float64(ev.Size)
			m.syncRows()
		}

	case tasks.HarvestComplete, tasks.MissionStarted:
		m.status = ev.Message

	case tasks.Warning:
		m.status = styles.warn.Render(ev.Message)

	case tasks.MissionComplete:
		m.report = ev.Report
		m.mission = nil
		m.pending = nil
		m.refreshAll()
		m.view = StatsView
	}
}

func (m *Model) enqueue(index int) {
	for _, i := range m.pending {
		if i == index {
			return
		}
	}
	m.pending = append(m.pending, index)
}

func (m *Model) dequeue(index int) {
	out := m.pending[:0]
	for _, i := range m.pending {
		if i != index {
			out = append(out, i)
		}
	}
	m.pending = out
}

// nextDecision opens the next queued decision or returns to the track table.
func (m *Model) nextDecision() {
	for len(m.pending) > 0 {
		i := m.pending[0]
		if cands := m.pipeline.Candidates(i); len(cands) > 0 {
			m.openResolve(i, cands)
			return
		}
		m.pending = m.pending[1:]
	}
	m.resolving = -1
	if m.view == ResolveView {
		m.view = ArchivistView
	}
}

func (m *Model) openResolve(index int, candidates []models.Candidate) {
	if len(candidates) > matching.MaxSurfaced {
		candidates = candidates[:matching.MaxSurfaced]
	}
	m.resolving = index
	m.choices = candidates

	w, h := m.width-4, m.height-8
	if w <= 0 {
		w, h = 76, 16
	}
	l := list.New(candidateItems(candidates), list.NewDefaultDelegate(), w, h)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	if index < len(m.tracks) {
		t := m.tracks[index]
		l.Title = fmt.Sprintf("Resolve: %s - %s", t.Artist, t.Title)
	}
	m.candidates = l
	m.view = ResolveView
}

func (m *Model) refreshTrack(index int) {
	if m.pipeline == nil {
		return
	}
	t, ok := m.pipeline.Track(index)
	if !ok {
		return
	}
	for len(m.tracks) <= index {
		m.tracks = append(m.tracks, models.Track{Index: len(m.tracks)})
	}
	m.tracks[index] = t
	m.syncRows()
}

func (m *Model) refreshAll() {
	if m.pipeline == nil {
		return
	}
	m.tracks = m.pipeline.Snapshot()
	m.syncRows()
}

func (m *Model) syncRows() {
	rows := make([]table.Row, len(m.tracks))
	for i, t := range m.tracks {
		check := "[ ]"
		if t.Selected {
			check = "[x]"
		}

		length := t.DurationText
		if t.DurationKnown {
			length = duration.Format(t.Duration)
		}

		rows[i] = table.Row{check, strconv.Itoa(t.Index + 1), t.Artist, t.Title, length, m.statusLabel(t)}
	}
	m.table.SetRows(rows)
}

func (m *Model) statusLabel(t models.Track) string {
	label := t.Status.String()
	if t.Status == models.Archiving {
		if pct, ok := m.progress[t.Index]; ok {
			label = fmt.Sprintf("%s %3.0f%%", label, pct*100)
		}
	}
	return label
}

func (m *Model) handleLaunchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c", msg.String() == "esc":
		return m, tea.Quit
	case key.Matches(msg, m.keys.next), msg.String() == "down":
		return m, m.focusField(m.focus + 1)
	case key.Matches(msg, m.keys.prev), msg.String() == "up":
		return m, m.focusField(m.focus - 1)
	case key.Matches(msg, m.keys.enter):
		if m.focus < len(m.inputs)-1 {
			return m, m.focusField(m.focus + 1)
		}
		return m, m.submitLaunch()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) focusField(i int) tea.Cmd {
	n := len(m.inputs)
	m.inputs[m.focus].Blur()
	m.focus = (i%n + n) % n
	return m.inputs[m.focus].Focus()
}

// submitLaunch validates the form and launches the pipeline in a command.
func (m *Model) submitLaunch() tea.Cmd {
	params, err := m.readLaunchForm()
	if err != nil {
		m.err = err
		return nil
	}
	m.params = params
	m.err = nil

	launch, ctx := m.launch, m.ctx
	return func() tea.Msg {
		if launch == nil {
			return launchedMsg(nil, nil, fmt.Errorf("no launcher configured"))
		}
		p, h, err := launch(ctx, params)
		return launchedMsg(p, h, err)
	}
}

func (m *Model) readLaunchForm() (LaunchParams, error) {
	params := LaunchParams{
		Source:  strings.TrimSpace(m.inputs[fieldSource].Value()),
		Library: strings.TrimSpace(m.inputs[fieldLibrary].Value()),
		Engine:  strings.ToLower(strings.TrimSpace(m.inputs[fieldEngine].Value())),
	}

	if params.Source == "" {
		return params, fmt.Errorf("%w: a playlist source is required", shared.ErrInvalidInput)
	}
	if params.Library == "" {
		params.Library = shared.DefaultLibraryName
	}

	threads := strings.TrimSpace(m.inputs[fieldThreads].Value())
	if threads == "" {
		params.Threads = shared.DefaultConcurrency
	} else {
		n, err := strconv.Atoi(threads)
		if err != nil || n <= 0 {
			return params, fmt.Errorf("%w: threads must be a positive number, got %q", shared.ErrInvalidInput, threads)
		}
		params.Threads = min(n, shared.MaxConcurrency)
	}

	switch params.Engine {
	case "":
		params.Engine = "cpu"
	case "cpu", "gpu":
	default:
		return params, fmt.Errorf("%w: engine must be cpu or gpu, got %q", shared.ErrInvalidInput, params.Engine)
	}
	return params, nil
}

func (m *Model) handleArchivistKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.toggle):
		i := m.table.Cursor()
		if i >= 0 && i < len(m.tracks) {
			if err := m.pipeline.Select(i, !m.tracks[i].Selected); err != nil {
				m.status = err.Error()
			}
			m.refreshTrack(i)
		}
		return m, nil

	case key.Matches(msg, m.keys.all):
		m.pipeline.SelectAll()
		m.refreshAll()
		return m, nil

	case key.Matches(msg, m.keys.none):
		m.pipeline.SelectNone()
		m.refreshAll()
		return m, nil

	case key.Matches(msg, m.keys.start):
		return m, m.startMission()

	case key.Matches(msg, m.keys.resolve), key.Matches(msg, m.keys.enter):
		i := m.table.Cursor()
		if i >= 0 && i < len(m.tracks) && m.tracks[i].Status == models.AwaitingDecision {
			if cands := m.pipeline.Candidates(i); len(cands) > 0 {
				m.openResolve(i, cands)
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) startMission() tea.Cmd {
	p, ctx := m.pipeline, m.ctx
	return func() tea.Msg {
		mission, err := p.Start(ctx)
		return missionStartedMsg(mission, err)
	}
}

func (m *Model) handleResolveKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit

	case key.Matches(msg, m.keys.back):
		m.view = ArchivistView
		return m, nil

	case key.Matches(msg, m.keys.skip):
		return m, m.decide(matching.Decision{Skip: true})

	case msg.String() >= "1" && msg.String() <= "9" && len(msg.String()) == 1:
		n := int(msg.String()[0] - '0')
		if n <= len(m.choices) {
			c := m.choices[n-1]
			return m, m.decide(matching.Decision{Candidate: &c})
		}
		return m, nil

	case key.Matches(msg, m.keys.enter):
		switch item := m.candidates.SelectedItem().(type) {
		case candidateItem:
			c := item.candidate
			return m, m.decide(matching.Decision{Candidate: &c})
		case skipItem:
			return m, m.decide(matching.Decision{Skip: true})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.candidates, cmd = m.candidates.Update(msg)
	return m, cmd
}

func (m *Model) decide(d matching.Decision) tea.Cmd {
	p, index := m.pipeline, m.resolving
	if p == nil || index < 0 {
		return nil
	}
	return func() tea.Msg {
		return decidedMsg(index, p.Decide(index, d))
	}
}

func (m *Model) handleStatsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart), key.Matches(msg, m.keys.back):
		m.view = ArchivistView
		return m, nil
	}
	return m, nil
}

func (m *Model) waitForEvent() tea.Cmd {
	p, ctx := m.pipeline, m.ctx
	return func() tea.Msg {
		select {
		case ev := <-p.Events():
			return eventMsg(ev)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Model) runHarvest() tea.Cmd {
	p, h, ctx, source := m.pipeline, m.harvester, m.ctx, m.params.Source
	return func() tea.Msg {
		return harvestDoneMsg(p.Harvest(ctx, h, source))
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LaunchView:
		return m.renderLaunch()
	case ArchivistView:
		return m.renderArchivist()
	case ResolveView:
		return m.renderResolve()
	case StatsView:
		return m.renderStats()
	default:
		return ""
	}
}

func (m *Model) renderLaunch() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Aether"))
	b.WriteString("\n")

	labels := []string{"Playlist", "Library", "Threads", "Engine"}
	for i, in := range m.inputs {
		b.WriteString(fmt.Sprintf("%-9s %s\n", labels[i], in.View()))
	}

	if m.err != nil {
		b.WriteString("\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n")
	}

	launchKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "launch"))
	b.WriteString("\n" + m.help.ShortHelpView([]key.Binding{m.keys.next, launchKey, m.keys.back}))
	return b.String()
}

func (m *Model) renderArchivist() string {
	title := styles.title.Render(fmt.Sprintf("Archivist • %s", m.params.Library))

	activity := ""
	switch {
	case m.harvesting:
		activity = m.spinner.View() + " harvesting"
	case m.mission != nil:
		s := m.mission.Stats()
		activity = fmt.Sprintf("%s archiving %d/%d", m.spinner.View(), s.Done(), s.Total)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.toggle, m.keys.all, m.keys.none, m.keys.start, m.keys.resolve, m.keys.quit})
	return fmt.Sprintf("%s\n%s  %s\n\n%s\n\n%s\n%s", title, m.counts(), activity, m.table.View(), m.status, helpView)
}

// counts renders one badge per status present in the table.
func (m *Model) counts() string {
	n := make(map[models.Status]int)
	selected := 0
	for _, t := range m.tracks {
		n[t.Status]++
		if t.Selected {
			selected++
		}
	}

	parts := []string{fmt.Sprintf("%d tracks, %d selected", len(m.tracks), selected)}
	for _, s := range models.Statuses {
		if n[s] > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", Badge(s), n[s]))
		}
	}
	return strings.Join(parts, "  ")
}

func (m *Model) renderResolve() string {
	waiting := ""
	if len(m.pending) > 1 {
		waiting = styles.warn.Render(fmt.Sprintf("%d more tracks waiting for a decision", len(m.pending)-1))
	}

	pick := key.NewBinding(key.WithKeys("1", "2", "3"), key.WithHelp("1-3", "pick"))
	helpView := m.help.ShortHelpView([]key.Binding{pick, m.keys.enter, m.keys.skip, m.keys.back})
	return fmt.Sprintf("%s\n%s\n\n%s", m.candidates.View(), waiting, helpView)
}

func (m *Model) renderStats() string {
	r := m.report
	if r == nil {
		return styles.err.Render("No report available\n\nPress r to return, q to quit")
	}

	title := styles.ok.Render("✓ Mission Complete")
	if r.Interrupted {
		title = styles.warn.Render("Mission Interrupted")
	}

	lines := []string{
		fmt.Sprintf("Mission:        %s", r.MissionID),
		fmt.Sprintf("Playlist:       %s (%s)", r.PlaylistURL, r.PlaylistID),
		fmt.Sprintf("Archived:       %d/%d", r.Stats.Complete, r.Stats.Total),
		fmt.Sprintf("No match:       %d", r.Stats.NoMatch),
		fmt.Sprintf("Failed:         %d", r.Stats.Failed),
		fmt.Sprintf("Already there:  %d", r.Stats.AlreadyArchived),
		fmt.Sprintf("Total time:     %s", humanSeconds(r.TotalTime)),
		fmt.Sprintf("Avg per song:   %s", humanSeconds(r.AvgTimePerSong)),
	}
	if r.Stats.Complete > 0 {
		lines = append(lines,
			fmt.Sprintf("Median track:   %s", humanSeconds(r.MedianTrackTime)),
			fmt.Sprintf("Largest song:   %s (%s)", r.LargestSong, megabytes(r.LargestSizeBytes)),
			fmt.Sprintf("Smallest song:  %s (%s)", r.SmallestSong, megabytes(r.SmallestSizeBytes)),
			fmt.Sprintf("Median size:    %s", megabytes(r.MedianSizeBytes)),
		)
	}
	if r.AvgBitrateKbps != nil {
		lines = append(lines, fmt.Sprintf("Avg bitrate:    %.0f kbps", *r.AvgBitrateKbps))
	}
	if r.TotalPlaybackSeconds != nil {
		lines = append(lines, fmt.Sprintf("Playback:       %s", duration.Human(time.Duration(*r.TotalPlaybackSeconds)*time.Second)))
	}

	var failed []string
	for _, t := range r.Tracks {
		if t.Status == models.Failed.String() || t.Status == models.NoMatch.String() {
			failed = append(failed, fmt.Sprintf("  • %s - %s (%s)", t.Artist, t.Title, t.Status))
		}
	}
	body := styles.panel.Render(strings.Join(lines, "\n"))
	if len(failed) > 0 {
		body += "\n\n" + styles.warn.Render("Not archived:") + "\n" + strings.Join(failed, "\n")
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, helpView)
}

func humanSeconds(s float64) string {
	return duration.Human(time.Duration(s * float64(time.Second)))
}

func megabytes(b int64) string {
	return fmt.Sprintf("%.2f MB", float64(b)/(1024*1024))
}
