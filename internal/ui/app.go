package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/five82/courier/internal/instance"
	"github.com/five82/courier/internal/prefs"
	"github.com/five82/courier/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewDashboard View = iota
	ViewLogs
)

// Controller submits commands to the reconciler.
type Controller interface {
	Instance() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Delete(ctx context.Context) error
	Refresh(ctx context.Context) error
	RegenerateArtifact(ctx context.Context) error
}

// ActivitySource lists recent notices, newest first.
type ActivitySource interface {
	Recent(ctx context.Context, name string, limit int) ([]instance.Notice, error)
}

// Options configures the UI.
type Options struct {
	Context     context.Context
	Controller  Controller
	Store       *state.Store
	Activity    ActivitySource // optional
	LogPath     string         // engine log shown by the log view
	LogLevel    *zap.AtomicLevel
	ArtifactDir string // where pairing images are written
	Gateway     string // shown in the header
	PollTick    time.Duration
	Prefs       prefs.Prefs
	PrefsPath   string
}

const (
	activityLimit   = 8
	activityRefresh = 5 * time.Second
)

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx         context.Context
	controller  Controller
	store       *state.Store
	activity    ActivitySource
	logPath     string
	logLevel    *zap.AtomicLevel
	artifactDir string
	gateway     string
	prefs       prefs.Prefs
	prefsPath   string
	pollTick    time.Duration
	keys        keyMap

	// UI state
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	spinner     spinner.Model
	modal       Modal
	showHelp    bool
	helpContent string // rendered once per open

	// Data state
	snapshot    state.Snapshot
	lastUpdated time.Time
	flash       string // last command submission result
	flashErr    bool

	// Activity
	recent      []instance.Notice
	activityErr error
	activityAt  time.Time
	noticeSeen  time.Time // newest notice the list was reloaded for

	// Pairing artifact on disk
	artifactFile string
	artifactKey  string
	artifactErr  error

	// Logs
	logViewport viewport.Model
	logState    logState
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = 500 * time.Millisecond
	}

	themeName := opts.Prefs.Theme
	if themeName == "" {
		themeName = "Dracula"
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:         ctx,
		controller:  opts.Controller,
		store:       opts.Store,
		activity:    opts.Activity,
		logPath:     opts.LogPath,
		logLevel:    opts.LogLevel,
		artifactDir: opts.ArtifactDir,
		gateway:     opts.Gateway,
		prefs:       opts.Prefs,
		prefsPath:   prefsPath,
		pollTick:    pollTick,
		keys:        DefaultKeyMap(),
		theme:       GetTheme(themeName),
		currentView: ViewDashboard,
		spinner:     sp,
		logState:    logState{follow: true},
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.pollTick),
		m.spinner.Tick,
		watchLogCmd(m.ctx, m.logPath),
	}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if cmd := m.refreshActivity(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.updateLogViewport()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		return m.handleSnapshot(state.Snapshot(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case actionResultMsg:
		m.flash, m.flashErr = describeActionResult(msg.action, msg.err)
		// Accepted commands show up in the next snapshot; fetch it now.
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}
		return m, nil

	case activityMsg:
		m.activityAt = time.Now()
		m.activityErr = msg.err
		if msg.err == nil {
			m.recent = msg.notices
		}
		return m, nil

	case artifactSavedMsg:
		if msg.key != m.artifactKey {
			return m, nil
		}
		m.artifactFile = msg.path
		m.artifactErr = msg.err
		return m, nil

	case logWatchMsg:
		m.logState.events = msg.events
		m.logState.watchErr = msg.err
		return m, tea.Batch(readLogCmd(m.logPath), waitLogCmd(msg.events))

	case logChangedMsg:
		if m.currentView != ViewLogs {
			return m, waitLogCmd(m.logState.events)
		}
		return m, tea.Batch(readLogCmd(m.logPath), waitLogCmd(m.logState.events))

	case logLinesMsg:
		m.handleLogLines(msg)
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if m.modal != nil {
		modal, cmd, closed := m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		} else {
			m.modal = modal
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		m.helpContent = renderHelpContent(m.keys, helpWidth)
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		if m.prefsPath != "" {
			_ = prefs.Save(m.prefsPath, m.prefs)
		}
		m.logState.rendered = false
		m.updateLogViewport()
		return m, nil

	case key.Matches(msg, m.keys.Verbose):
		m.toggleVerbose()
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.currentView = ViewDashboard
		return m, nil

	case key.Matches(msg, m.keys.ViewLogs):
		if m.currentView == ViewLogs {
			m.currentView = ViewDashboard
			return m, nil
		}
		m.currentView = ViewLogs
		m.updateLogViewport()
		return m, readLogCmd(m.logPath)
	}

	if m.currentView == ViewLogs {
		return m.handleLogsKey(msg)
	}
	return m.handleDashboardKey(msg)
}

// handleDashboardKey maps action keys onto reconciler commands.
func (m Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Connect):
		return m.requestAction(instance.ActionConnect)
	case key.Matches(msg, m.keys.Disconnect):
		return m.requestAction(instance.ActionDisconnect)
	case key.Matches(msg, m.keys.Regenerate):
		return m.requestAction(instance.ActionRegenerate)
	case key.Matches(msg, m.keys.Delete):
		return m.requestAction(instance.ActionDelete)
	case key.Matches(msg, m.keys.Refresh):
		if m.controller == nil {
			return m, nil
		}
		m.flash, m.flashErr = "Refreshing...", false
		return m, refreshCmd(m.ctx, m.controller)
	case key.Matches(msg, m.keys.Dismiss):
		if m.store != nil && m.snapshot.HasNotice {
			m.store.Dismiss()
			m.snapshot.HasNotice = false
		}
		m.flash = ""
		return m, nil
	}
	return m, nil
}

// requestAction runs a, asking for confirmation first when it is destructive.
// Actions the current state does not offer are refused locally.
func (m Model) requestAction(a instance.Action) (tea.Model, tea.Cmd) {
	if m.controller == nil {
		return m, nil
	}
	st := m.snapshot.Instance
	if m.snapshot.HasState && !st.Allows(a) {
		m.flash, m.flashErr = unavailableMessage(a, st), true
		return m, nil
	}
	cmd := actionCmd(m.ctx, m.controller, a)
	if a == instance.ActionDelete {
		m.modal = newDeleteConfirm(m.controller.Instance(), cmd)
		return m, nil
	}
	m.flash, m.flashErr = "", false
	return m, cmd
}

func (m *Model) toggleVerbose() {
	if m.logLevel == nil {
		return
	}
	if m.logLevel.Level() == zapcore.DebugLevel {
		m.logLevel.SetLevel(zapcore.InfoLevel)
		m.flash = "Engine log level: info"
	} else {
		m.logLevel.SetLevel(zapcore.DebugLevel)
		m.flash = "Engine log level: debug"
	}
	m.flashErr = false
}

// handleTick processes the polling tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if time.Since(m.activityAt) >= activityRefresh {
		if cmd := m.refreshActivity(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	cmds = append(cmds, tickCmd(m.pollTick))
	return m, tea.Batch(cmds...)
}

// handleSnapshot stores a new snapshot and reacts to what changed.
func (m Model) handleSnapshot(snap state.Snapshot) (tea.Model, tea.Cmd) {
	m.snapshot = snap
	m.lastUpdated = time.Now()

	var cmds []tea.Cmd
	if art := snap.Instance.Artifact; art != nil {
		// Every fetch gets written once, regenerated ones included. Mark it now
		// so the next snapshot does not write the file again.
		if key := artifactKey(*art); key != m.artifactKey {
			m.artifactKey, m.artifactFile, m.artifactErr = key, "", nil
			cmds = append(cmds, saveArtifactCmd(m.artifactDir, snap.Instance.Instance, key, *art))
		}
	} else {
		m.artifactKey, m.artifactFile, m.artifactErr = "", "", nil
	}
	// New notices land in the journal too, so reload the activity list.
	if snap.HasNotice && snap.Notice.At.After(m.noticeSeen) {
		m.noticeSeen = snap.Notice.At
		if cmd := m.refreshActivity(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) refreshActivity() tea.Cmd {
	if m.activity == nil || m.controller == nil {
		return nil
	}
	return fetchActivityCmd(m.ctx, m.activity, m.controller.Instance())
}

// renderMain renders the dashboard or the log view under the header.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	switch m.currentView {
	case ViewLogs:
		b.WriteString(m.renderLogs())
	default:
		b.WriteString(m.renderDashboard())
	}
	return b.String()
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type actionResultMsg struct {
	action string
	err    error
}

type activityMsg struct {
	notices []instance.Notice
	err     error
}

type artifactSavedMsg struct {
	key  string
	path string
	err  error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func actionCmd(ctx context.Context, c Controller, a instance.Action) tea.Cmd {
	return func() tea.Msg {
		var err error
		switch a {
		case instance.ActionConnect:
			err = c.Connect(ctx)
		case instance.ActionDisconnect:
			err = c.Disconnect(ctx)
		case instance.ActionDelete:
			err = c.Delete(ctx)
		case instance.ActionRegenerate:
			err = c.RegenerateArtifact(ctx)
		}
		return actionResultMsg{action: a.String(), err: err}
	}
}

func refreshCmd(ctx context.Context, c Controller) tea.Cmd {
	return func() tea.Msg {
		return actionResultMsg{action: "refresh", err: c.Refresh(ctx)}
	}
}

func fetchActivityCmd(ctx context.Context, src ActivitySource, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		notices, err := src.Recent(ctx, name, activityLimit)
		return activityMsg{notices: notices, err: err}
	}
}

// describeActionResult turns a submission result into the flash line.
func describeActionResult(action string, err error) (string, bool) {
	switch {
	case err == nil:
		if action == "refresh" {
			return "Refresh requested", false
		}
		return strings.ToUpper(action[:1]) + action[1:] + " requested", false
	case errors.Is(err, instance.ErrBusy):
		return "Another command is still running", true
	case errors.Is(err, instance.ErrNotPairing):
		return "A new QR code is only available while pairing", true
	case errors.Is(err, instance.ErrStopped), errors.Is(err, context.Canceled):
		return "Shutting down", true
	default:
		return action + " failed: " + err.Error(), true
	}
}

func unavailableMessage(a instance.Action, st instance.State) string {
	if st.Busy() {
		return "Wait for " + st.Pending.String() + " to finish"
	}
	return a.String() + " is not available while " + stateLabel(st.Current.ConnectionState())
}

// Run starts the Bubble Tea program and returns when the user quits or the
// context is cancelled.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
