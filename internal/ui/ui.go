package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/progress"
	"github.com/desertthunder/scout/internal/shared"
)

// ViewState represents the current view in the dashboard.
type ViewState int

const (
	QueryView ViewState = iota
	RunView
	ResultView
	ArtistListView
)

// feedSize caps the number of recent event lines kept on screen.
const feedSize = 8

// Engine is the slice of the orchestrator the dashboard drives.
type Engine interface {
	StartStream(ctx context.Context, req models.SessionRequest) (string, *progress.Subscription, error)
	Cancel(ctx context.Context, id string) error
	Unsubscribe(id string, subscriber int)
}

// Model represents the dashboard state.
type Model struct {
	ctx        context.Context
	view       ViewState
	engine     Engine
	request    models.SessionRequest
	sessionID  string
	sub        *progress.Subscription
	width      int
	height     int
	queryInput textinput.Model
	phase      string
	counters   models.SessionCounters
	feed       []string
	artists    []models.ArtistProfile
	artistList list.Model
	summary    *models.SessionSummary
	cancelling bool
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates a dashboard model. A request with a non-empty query starts
// discovering immediately; otherwise the query view prompts for one.
func NewModel(ctx context.Context, engine Engine, req models.SessionRequest) *Model {
	input := textinput.New()
	input.Placeholder = "search query, e.g. nyc drill type beat 2025"
	input.CharLimit = 200
	input.SetValue(req.Query)
	input.Focus()

	return &Model{
		ctx:        ctx,
		view:       QueryView,
		engine:     engine,
		request:    req,
		queryInput: input,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init launches the session when the query was provided up front.
func (m *Model) Init() tea.Cmd {
	if strings.TrimSpace(m.request.Query) != "" {
		return m.startSession()
	}
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.view == ArtistListView {
			m.artistList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case QueryView:
			return m.handleQueryKeys(msg)
		case RunView:
			return m.handleRunKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		case ArtistListView:
			return m.handleArtistListKeys(msg)
		}

	case sessionStartedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = QueryView
			return m, nil
		}
		m.err = nil
		m.sessionID = msg.id
		m.sub = msg.sub
		m.view = RunView
		return m, m.waitForEvent()

	case eventMsg:
		return m.applyEvent(models.ProgressEvent(msg))

	case streamClosedMsg:
		m.dropSubscription()
		if m.summary == nil && m.view == RunView {
			m.err = fmt.Errorf("event stream dropped, session %s may still be running", shared.ShortID(m.sessionID))
			m.view = ResultView
		}
		return m, nil

	case cancelIssuedMsg:
		if msg.err != nil {
			m.pushLine(styles.err.Render(fmt.Sprintf("cancel failed: %v", msg.err)))
		}
		return m, nil
	}

	return m.updateComponents(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case QueryView:
		return m.renderQuery()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	case ArtistListView:
		return m.renderArtistList()
	default:
		return ""
	}
}

func (m *Model) handleQueryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "enter":
		query := strings.TrimSpace(m.queryInput.Value())
		if query == "" {
			return m, nil
		}
		m.request.Query = query
		m.err = nil
		return m, m.startSession()
	}

	var cmd tea.Cmd
	m.queryInput, cmd = m.queryInput.Update(msg)
	return m, cmd
}

func (m *Model) handleRunKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Sequence(m.cancelSession(), tea.Quit)
	case "c":
		if m.cancelling {
			return m, nil
		}
		m.cancelling = true
		return m, m.cancelSession()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		if len(m.artists) == 0 {
			return m, nil
		}
		m.buildArtistList()
		m.view = ArtistListView
		return m, nil
	case "r":
		return m.reset()
	}
	return m, nil
}

func (m *Model) handleArtistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = ResultView
		return m, nil
	}

	var cmd tea.Cmd
	m.artistList, cmd = m.artistList.Update(msg)
	return m, cmd
}

// updateComponents routes non-key messages (blink ticks, list animations) to
// the component owned by the current view.
func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case QueryView:
		m.queryInput, cmd = m.queryInput.Update(msg)
	case ArtistListView:
		m.artistList, cmd = m.artistList.Update(msg)
	}
	return m, cmd
}

// applyEvent folds one progress event into the live counters and feed, then
// re-arms the wait command unless the event ended the session.
func (m *Model) applyEvent(event models.ProgressEvent) (tea.Model, tea.Cmd) {
	switch event.Kind {
	case models.EventPhaseProgress:
		m.phase = event.Phase
	case models.EventCandidateFound:
		m.counters.VideosSeen++
	case models.EventArtistAccepted:
		m.counters.VideosAccepted++
	case models.EventArtistEnriched:
		m.counters.ArtistsEnriched++
	case models.EventArtistStored:
		m.counters.ArtistsStored++
		if event.Artist != nil {
			if event.Artist.BelowThreshold {
				m.counters.BelowThreshold++
			}
			m.artists = append(m.artists, *event.Artist)
		}
	}
	m.pushLine(feedLine(event))

	if event.Kind.Terminal() {
		m.summary = event.Summary
		if m.summary != nil {
			m.counters = m.summary.SessionCounters
		}
		m.dropSubscription()
		m.view = ResultView
		return m, nil
	}
	return m, m.waitForEvent()
}

func (m *Model) pushLine(line string) {
	if line == "" {
		return
	}
	m.feed = append(m.feed, line)
	if len(m.feed) > feedSize {
		m.feed = m.feed[len(m.feed)-feedSize:]
	}
}

func (m *Model) dropSubscription() {
	if m.sub == nil {
		return
	}
	m.engine.Unsubscribe(m.sessionID, m.sub.ID)
	m.sub = nil
}

func (m *Model) reset() (tea.Model, tea.Cmd) {
	m.view = QueryView
	m.sessionID = ""
	m.sub = nil
	m.phase = ""
	m.counters = models.SessionCounters{}
	m.feed = nil
	m.artists = nil
	m.summary = nil
	m.cancelling = false
	m.err = nil
	m.queryInput.Focus()
	return m, textinput.Blink
}

func (m *Model) startSession() tea.Cmd {
	req := m.request
	return func() tea.Msg {
		id, sub, err := m.engine.StartStream(m.ctx, req)
		return sessionStartedMsg{id: id, sub: sub, err: err}
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	sub := m.sub
	return func() tea.Msg {
		if sub == nil {
			return streamClosedMsg{}
		}
		event, ok := <-sub.Events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(event)
	}
}

func (m *Model) cancelSession() tea.Cmd {
	id := m.sessionID
	return func() tea.Msg {
		return cancelIssuedMsg{err: m.engine.Cancel(m.ctx, id)}
	}
}

func (m *Model) buildArtistList() {
	items := make([]list.Item, len(m.artists))
	for i, artist := range m.artists {
		items[i] = artistItem{artist: artist}
	}
	m.artistList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.artistList.Title = fmt.Sprintf("Artists stored for '%s'", m.request.Query)
	width, height := m.width, m.height
	if width == 0 {
		width, height = 80, 24
	}
	m.artistList.SetSize(width-4, height-8)
}

func (m *Model) renderQuery() string {
	title := styles.title.Render("Scout Artist Discovery")

	var errLine string
	if m.err != nil {
		errLine = fmt.Sprintf("\n%s\n", styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	startKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start"))
	quitKey := key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "quit"))
	helpView := m.help.ShortHelpView([]key.Binding{startKey, quitKey})

	return fmt.Sprintf("%s\nWhat sound are you looking for?\n\n%s\n%s\n%s", title, m.queryInput.View(), errLine, helpView)
}

func (m *Model) renderRun() string {
	title := styles.title.Render(fmt.Sprintf("Discovering: %s", m.request.Query))

	status := fmt.Sprintf("Session %s", shared.ShortID(m.sessionID))
	if m.phase != "" {
		status = fmt.Sprintf("%s • %s", status, m.phase)
	}
	if m.cancelling {
		status = fmt.Sprintf("%s • %s", status, styles.warn.Render("cancelling"))
	}

	counters := fmt.Sprintf(
		"Videos seen: %d\nAccepted: %d\nEnriched: %d\nStored: %d",
		m.counters.VideosSeen, m.counters.VideosAccepted,
		m.counters.ArtistsEnriched, m.counters.ArtistsStored,
	)

	feed := strings.Join(m.feed, "\n")
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel, m.keys.quit})

	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s\n\n%s", title, status, counters, feed, helpView)
}

func (m *Model) renderResult() string {
	if m.err != nil && m.summary == nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to start over, q to quit", m.err))
	}

	var title string
	switch {
	case m.summary == nil:
		title = styles.warn.Render("Session ended")
	case m.summary.ErrorKind != "":
		title = styles.err.Render("✗ Discovery failed")
	default:
		title = styles.ok.Render("✓ Discovery complete")
	}

	info := fmt.Sprintf(
		"\nQuery: %s\nVideos seen: %d\nAccepted: %d\nEnriched: %d\nStored: %d\nBelow threshold: %d\nCost spent: %d units",
		m.request.Query,
		m.counters.VideosSeen, m.counters.VideosAccepted, m.counters.ArtistsEnriched,
		m.counters.ArtistsStored, m.counters.BelowThreshold, m.counters.CostSpent,
	)

	if m.summary != nil {
		info = fmt.Sprintf("%s\nDuration: %s", info, shared.FormatDuration(m.summary.DurationMS))
		if m.summary.BudgetExhausted {
			info = fmt.Sprintf("%s\n%s", info, styles.warn.Render("Budget exhausted before target count"))
		}
		if m.summary.ErrorMessage != "" {
			info = fmt.Sprintf("%s\n%s", info, styles.err.Render(fmt.Sprintf("%s: %s", m.summary.ErrorKind, m.summary.ErrorMessage)))
		}
	}

	var browse string
	if len(m.artists) > 0 {
		browse = fmt.Sprintf("\n\n%d artists stored this session. Press enter to browse.", len(m.artists))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.reset, m.keys.quit})
	return fmt.Sprintf("%s%s%s\n\n%s", title, info, browse, helpView)
}

func (m *Model) renderArtistList() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.artistList.View(), helpView)
}

// feedLine renders one event as a feed entry. Terminal events return an
// empty string; their payload is shown by the result view instead.
func feedLine(event models.ProgressEvent) string {
	switch event.Kind {
	case models.EventSessionStarted:
		return styles.help.Render(fmt.Sprintf("session %s started", shared.ShortID(event.SessionID)))
	case models.EventPhaseProgress:
		return styles.help.Render(event.Message)
	case models.EventCandidateFound:
		return fmt.Sprintf("found %q", videoTitle(event))
	case models.EventArtistAccepted:
		return styles.ok.Render(fmt.Sprintf("accepted %s", artistName(event)))
	case models.EventArtistRejected:
		return styles.warn.Render(fmt.Sprintf("rejected %q (%s)", videoTitle(event), event.Reason))
	case models.EventArtistEnriched:
		return fmt.Sprintf("enriched %s: %s", artistName(event), event.Message)
	case models.EventArtistStored:
		return styles.ok.Render(fmt.Sprintf("stored %s (%.2f)", artistName(event), artistScore(event)))
	case models.EventLagged:
		return styles.warn.Render(fmt.Sprintf("display fell behind, skipped %d events", event.Dropped))
	}
	return ""
}

func videoTitle(event models.ProgressEvent) string {
	if event.Video == nil {
		return ""
	}
	return event.Video.Title
}

func artistName(event models.ProgressEvent) string {
	if event.Artist == nil {
		return ""
	}
	return event.Artist.Name
}

func artistScore(event models.ProgressEvent) float64 {
	if event.Artist == nil {
		return 0
	}
	return event.Artist.EnrichmentScore
}
