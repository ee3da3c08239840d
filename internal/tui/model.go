// Package tui provides the Bubble Tea operator console.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/verte-zerg/presim/internal/console"
)

const (
	tabOverview = iota
	tabPreview
	tabSettings
	tabEntities
)

const flashDuration = 2500 * time.Millisecond

const savedFlash = "saved ✔"

type tickMsg time.Time

type statusMsg struct {
	applied bool
	err     error
}

type loadedMsg struct {
	err error
}

type actionMsg struct {
	op   string
	save bool
	err  error
}

type flashExpiredMsg struct {
	seq int
}

// Options configures the console model.
type Options struct {
	Controller *console.Controller
	Interval   time.Duration
	Location   *time.Location
	Server     string
	Logger     *zap.Logger
	Now        func() time.Time
}

// Model implements the Bubble Tea console UI.
type Model struct {
	ctx      context.Context
	ctrl     *console.Controller
	interval time.Duration
	loc      *time.Location
	server   string
	logger   *zap.Logger
	now      func() time.Time

	state console.State

	tabs      []string
	activeTab int
	viewports []viewport.Model

	width  int
	height int

	editing    bool
	inputs     []textinput.Model
	fieldIndex int

	entityForm   console.Form
	entityDirty  bool
	entityCursor int

	busy      string
	modalErr  string
	flash     string
	flashSeq  int
	pollError string
}

// NewModel constructs a console model. The context bounds every backend call
// the model issues.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Interval <= 0 {
		opts.Interval = console.DefaultPollInterval
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Model{
		ctx:      ctx,
		ctrl:     opts.Controller,
		interval: opts.Interval,
		loc:      opts.Location,
		server:   opts.Server,
		logger:   opts.Logger,
		now:      opts.Now,
		tabs:     []string{"1 Overview", "2 Preview", "3 Settings", "4 Entities"},
	}
	m.initViewports()
	m.initInputs()
	m.syncState()
	return m
}

// Init implements tea.Model. It loads the configuration, fetches status once
// and starts the poll ticker.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.refreshCmd(), tickCmd(m.interval))
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tickMsg:
		// Every tick issues a fetch, even when an earlier one is still in flight.
		return m, tea.Batch(m.refreshCmd(), tickCmd(m.interval))
	case statusMsg:
		if msg.err != nil && m.ctx.Err() == nil {
			m.logger.Warn("status poll failed", zap.Error(msg.err))
		}
		if !msg.applied && msg.err == nil {
			m.logger.Debug("discarded stale status response")
		}
		m.syncState()
		return m, nil
	case loadedMsg:
		if msg.err != nil {
			m.modalErr = msg.err.Error()
		} else {
			m.entityDirty = false
		}
		m.busy = ""
		m.syncState()
		return m, nil
	case actionMsg:
		return m.handleActionResult(msg)
	case flashExpiredMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.modalErr != "" {
		return fitLines(m.renderErrorModal(), m.width, m.height)
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.modalErr != "" {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEsc:
			m.modalErr = ""
		}
		return m, nil
	}
	if m.editing {
		return m.updateEditing(msg)
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "1", "2", "3", "4":
		m.activeTab = int(msg.String()[0] - '1')
		return m, nil
	case "left":
		m.moveTab(-1)
		return m, nil
	case "right":
		m.moveTab(1)
		return m, nil
	case "t":
		return m, m.startAction(console.ActionTrain)
	case "s":
		return m, m.startAction(console.ActionStart)
	case "x":
		return m, m.startAction(console.ActionStop)
	case "n":
		return m, m.startAction(console.ActionStep)
	case "r":
		return m, m.refreshCmd()
	case "L":
		if m.busy != "" {
			return m, nil
		}
		m.busy = "loading"
		return m, m.loadCmd()
	}

	switch m.activeTab {
	case tabSettings:
		if msg.String() == "e" {
			return m, m.startEditing()
		}
		return m, nil
	case tabEntities:
		return m.updateEntities(msg)
	default:
		vp := m.viewports[m.activeTab]
		var cmd tea.Cmd
		vp, cmd = vp.Update(msg)
		m.viewports[m.activeTab] = vp
		return m, cmd
	}
}

func (m *Model) handleActionResult(msg actionMsg) (tea.Model, tea.Cmd) {
	m.busy = ""
	var refreshErr *console.RefreshError
	if msg.err != nil && !errors.As(msg.err, &refreshErr) {
		m.modalErr = msg.err.Error()
		m.syncState()
		return m, nil
	}
	if refreshErr != nil {
		m.logger.Warn("status refresh after action failed", zap.String("op", msg.op), zap.Error(refreshErr.Err))
	}
	if !msg.save {
		m.syncState()
		return m, nil
	}
	m.editing = false
	m.entityDirty = false
	m.syncState()
	m.flashSeq++
	m.flash = savedFlash
	seq := m.flashSeq
	return m, tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashExpiredMsg{seq: seq}
	})
}

func (m *Model) startAction(action console.Action) tea.Cmd {
	if m.busy != "" {
		return nil
	}
	m.busy = string(action)
	return m.dispatchCmd(action)
}

func (m *Model) startSave(form console.Form) tea.Cmd {
	if m.busy != "" {
		return nil
	}
	m.busy = "save"
	return m.saveCmd(form)
}

// syncState copies the controller state and re-derives everything the views
// show from it. Controls the operator is editing keep their text.
func (m *Model) syncState() {
	m.state = m.ctrl.Snapshot()
	m.pollError = ""
	if m.state.StatusErr != nil {
		m.pollError = m.state.StatusErr.Error()
	}
	if !m.editing {
		m.setInputsFromConfig()
	}
	if !m.entityDirty {
		m.entityForm = console.FormFromConfig(m.state.Config)
	}
	if m.entityCursor >= len(m.state.Entities) {
		m.entityCursor = maxInt(0, len(m.state.Entities)-1)
	}
	m.renderTabContents()
}

func (m *Model) refreshCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		applied, err := ctrl.Refresh(ctx)
		return statusMsg{applied: applied, err: err}
	}
}

func (m *Model) loadCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return loadedMsg{err: ctrl.Load(ctx)}
	}
}

func (m *Model) dispatchCmd(action console.Action) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		_, err := ctrl.Dispatch(ctx, action)
		return actionMsg{op: string(action), err: err}
	}
}

func (m *Model) saveCmd(form console.Form) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		_, err := ctrl.Save(ctx, form)
		return actionMsg{op: "save", save: true, err: err}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.footerNotice() != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	for i := range m.inputs {
		m.inputs[i].Width = maxInt(10, m.width-labelWidth-6)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	return tabs + "\n" + padLines(m.renderSummary(), m.width)
}

func (m *Model) renderSummary() string {
	running := "?"
	if m.state.Status != nil {
		running = "no"
		if m.state.Status.Running {
			running = "yes"
		}
	}
	segments := []string{"Server: " + m.server, "Running: " + running}
	if !m.state.StatusAt.IsZero() {
		segments = append(segments, "Updated: "+m.state.StatusAt.In(m.loc).Format("15:04:05"))
	}
	if m.busy != "" {
		segments = append(segments, m.busy+"…")
	}
	return headerStyle.Render(truncateLine(strings.Join(segments, "  "), m.width))
}

func (m *Model) renderHelp() string {
	help := "Tabs: 1-4/left/right  Train: t  Start: s  Stop: x  Step: n  Refresh: r  Reload: L  Quit: q"
	switch {
	case m.editing:
		help = "tab/shift+tab: next field  space: cycle darkness mode  enter: save  esc: cancel"
	case m.activeTab == tabSettings:
		help = "Edit: e  " + help
	case m.activeTab == tabEntities:
		help = "Move: up/down  Toggle: space  Save: enter  " + help
	}
	return headerStyle.Render(truncateLine(help, m.width))
}

// footerNotice is the second footer line: a poll failure, or the save confirmation.
func (m *Model) footerNotice() string {
	if m.pollError != "" {
		return errorStyle.Render(truncateLine("Status: "+m.pollError, m.width))
	}
	if m.flash != "" {
		return flashStyle.Render(m.flash)
	}
	return ""
}

func (m *Model) renderFooter() string {
	if notice := m.footerNotice(); notice != "" {
		return m.renderHelp() + "\n" + notice
	}
	return m.renderHelp()
}

func (m *Model) renderBody(height int) string {
	switch m.activeTab {
	case tabSettings:
		return fitLines(m.renderSettings(), m.width, height)
	case tabEntities:
		return fitLines(m.renderEntities(height), m.width, height)
	default:
		return fitLines(m.viewports[m.activeTab].View(), m.width, height)
	}
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.state, m.loc, m.now()))
	m.viewports[tabPreview].SetContent(renderPreview(m.state, m.loc, width))
}

func (m *Model) renderErrorModal() string {
	lines := []string{modalTitleStyle.Render("Error")}
	for _, line := range strings.Split(m.modalErr, "\n") {
		lines = append(lines, wrapPlain(line, modalInnerWidth(m.width))...)
	}
	lines = append(lines, "", headerStyle.Render("Enter / Esc to dismiss"))
	box := modalStyle.Width(modalWidth(m.width)).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func wrapPlain(s string, width int) []string {
	return wrapCells(buildCells([]segment{{text: s, style: valueStyle}}), width)
}
