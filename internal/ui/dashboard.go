package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BioHazard786/Roomdrop/internal/peer"
	"github.com/BioHazard786/Roomdrop/internal/transfer"
	"github.com/BioHazard786/Roomdrop/internal/utils"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const actionTimeout = 10 * time.Second

// Actions are the room intents the dashboard can trigger from key presses.
type Actions interface {
	Download(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
	Pause(ctx context.Context, id string) error
	ResumeSend(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
}

type DashboardConfig struct {
	RoomID string
	Role   peer.Role
	// AutoAccept downloads every announced file without a key press.
	AutoAccept bool
	Clipboard  bool
	Actions    Actions
}

// Dashboard is a bubbletea program fed by room events. It implements the
// room observer, queueing events without ever blocking the caller.
type Dashboard struct {
	queue   *eventQueue
	model   *dashboardModel
	program *tea.Program
}

func NewDashboard(cfg DashboardConfig, opts ...tea.ProgramOption) *Dashboard {
	q := newEventQueue()
	m := newDashboardModel(cfg, q)
	return &Dashboard{queue: q, model: m, program: tea.NewProgram(m, opts...)}
}

// Bind sets the intents key presses trigger. Call it before Run.
func (d *Dashboard) Bind(a Actions) { d.model.cfg.Actions = a }

// Run blocks until the user quits or Quit is called.
func (d *Dashboard) Run() error {
	final, err := d.program.Run()
	d.queue.close()
	if m, ok := final.(*dashboardModel); ok {
		d.model = m
	}
	return err
}

func (d *Dashboard) Quit() { d.program.Quit() }

// Summary returns the final state of every job. Call it after Run returns.
func (d *Dashboard) Summary() []SummaryRow {
	return d.model.summary(time.Now())
}

func (d *Dashboard) RoomStatus(roomID string, s peer.Status) {
	d.queue.push(roomID, statusEvent{s})
}

func (d *Dashboard) JobChanged(roomID string, s transfer.Snapshot) {
	d.queue.push(roomID, jobEvent{s})
}

func (d *Dashboard) JobProgress(roomID string, p transfer.Progress) {
	d.queue.push(roomID, progressEvent{p})
}

func (d *Dashboard) ClipboardReceived(roomID, content string) {
	d.queue.push(roomID, clipboardEvent{content})
}

type (
	statusEvent    struct{ status peer.Status }
	jobEvent       struct{ job transfer.Snapshot }
	progressEvent  struct{ progress transfer.Progress }
	clipboardEvent struct{ content string }
)

type roomEvent struct {
	roomID string
	event  any
}

type eventsMsg []roomEvent

type actionDoneMsg struct {
	verb string
	id   string
	err  error
}

// eventQueue is an unbounded hand-off from room executors to the program.
type eventQueue struct {
	mu     sync.Mutex
	events []roomEvent
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

func (q *eventQueue) push(roomID string, ev any) {
	q.mu.Lock()
	q.events = append(q.events, roomEvent{roomID, ev})
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) close() { q.once.Do(func() { close(q.done) }) }

func (q *eventQueue) drain() []roomEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	evs := q.events
	q.events = nil
	return evs
}

// next waits for at least one event and delivers everything queued.
func (q *eventQueue) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-q.wake:
			return eventsMsg(q.drain())
		case <-q.done:
			return nil
		}
	}
}

type jobView struct {
	snap      transfer.Snapshot
	progress  transfer.Progress
	bar       progress.Model
	started   time.Time
	elapsed   time.Duration
	requested bool
}

type dashboardModel struct {
	cfg   DashboardConfig
	queue *eventQueue
	now   func() time.Time

	status  peer.Status
	jobs    []*jobView
	byID    map[string]*jobView
	cursor  int
	spinner spinner.Model
	width   int

	lastClip string
	notice   string
	quitting bool
}

func newDashboardModel(cfg DashboardConfig, q *eventQueue) *dashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return &dashboardModel{
		cfg:     cfg,
		queue:   q,
		now:     time.Now,
		byID:    make(map[string]*jobView),
		spinner: s,
		width:   80,
	}
}

func (m *dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.queue.next())
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.onKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		for _, j := range m.jobs {
			j.bar.Width = barWidth(msg.Width)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventsMsg:
		cmds := []tea.Cmd{m.queue.next()}
		for _, ev := range msg {
			if cmd := m.apply(ev); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)

	case actionDoneMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("%s %s: %v", msg.verb, msg.id, msg.err)
		} else {
			m.notice = ""
		}
		return m, nil
	}
	return m, nil
}

func barWidth(termWidth int) int {
	return max(10, min(30, termWidth-70))
}

// apply folds one room event into the model. It returns the auto-accept
// download when a new incoming file shows up.
func (m *dashboardModel) apply(ev roomEvent) tea.Cmd {
	if ev.roomID != m.cfg.RoomID {
		return nil
	}
	switch e := ev.event.(type) {
	case statusEvent:
		m.status = e.status
	case clipboardEvent:
		m.lastClip = e.content
	case progressEvent:
		if j, ok := m.byID[e.progress.ID]; ok {
			j.progress = e.progress
		}
	case jobEvent:
		return m.onJob(e.job)
	}
	return nil
}

func (m *dashboardModel) onJob(s transfer.Snapshot) tea.Cmd {
	j, ok := m.byID[s.ID]
	if !ok {
		j = &jobView{bar: progress.New(
			progress.WithGradient(ProgressStart, ProgressEnd),
			progress.WithWidth(barWidth(m.width)),
			progress.WithoutPercentage(),
		)}
		m.byID[s.ID] = j
		m.jobs = append(m.jobs, j)
	}

	now := m.now()
	wasMoving := j.snap.Status == transfer.StatusTransferring && !j.started.IsZero()
	isMoving := s.Status == transfer.StatusTransferring
	switch {
	case isMoving && !wasMoving:
		j.started = now
	case !isMoving && wasMoving:
		j.elapsed += now.Sub(j.started)
		j.started = time.Time{}
	}
	j.snap = s
	if s.Status != transfer.StatusTransferring {
		j.progress = transfer.Progress{ID: s.ID, Done: s.Cursor, Total: s.Size}
	}

	if m.cfg.AutoAccept && m.cfg.Actions != nil && !j.requested && s.Direction == transfer.Receive && s.Status == transfer.StatusWaiting {
		j.requested = true
		return m.act("download", m.cfg.Actions.Download, s.ID)
	}
	return nil
}

func (m *dashboardModel) act(verb string, fn func(context.Context, string) error, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{verb: verb, id: id, err: fn(ctx, id)}
	}
}

func (m *dashboardModel) selected() (*jobView, bool) {
	if m.cursor < 0 || m.cursor >= len(m.jobs) {
		return nil, false
	}
	return m.jobs[m.cursor], true
}

func (m *dashboardModel) onKey(k tea.KeyMsg) tea.Cmd {
	switch k.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return nil
	case "down", "j":
		if m.cursor < len(m.jobs)-1 {
			m.cursor++
		}
		return nil
	}

	j, ok := m.selected()
	if !ok || m.cfg.Actions == nil {
		return nil
	}
	a, s := m.cfg.Actions, j.snap

	switch k.String() {
	case "enter", "d":
		if s.Direction != transfer.Receive {
			return nil
		}
		switch s.Status {
		case transfer.StatusWaiting:
			j.requested = true
			return m.act("download", a.Download, s.ID)
		case transfer.StatusInterrupted:
			return m.act("resume", a.Resume, s.ID)
		}
	case "p":
		if s.Direction != transfer.Send {
			return nil
		}
		switch s.Status {
		case transfer.StatusTransferring:
			return m.act("pause", a.Pause, s.ID)
		case transfer.StatusPaused:
			return m.act("resume", a.ResumeSend, s.ID)
		}
	case "x":
		if s.Status != transfer.StatusCompleted && s.Status != transfer.StatusCancelled {
			return m.act("cancel", a.Cancel, s.ID)
		}
	}
	return nil
}

func (m *dashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s  %s  %s\n", IconRoom, TitleStyle.Render("Room "+m.cfg.RoomID), StatusBadge(m.status), MutedStyle.Render(m.cfg.Role.String()))
	if m.cfg.Clipboard {
		clip := MutedStyle.Render("nothing received yet")
		if m.lastClip != "" {
			clip = utils.TruncateString(strings.ReplaceAll(m.lastClip, "\n", " "), 50)
		}
		fmt.Fprintf(&b, "%s clipboard sync on: %s\n", IconClip, clip)
	}
	b.WriteString("\n")

	if len(m.jobs) == 0 {
		fmt.Fprintf(&b, "  %s %s\n", m.spinner.View(), MutedStyle.Render("Waiting for files..."))
	}
	for i, j := range m.jobs {
		b.WriteString(m.jobLine(i == m.cursor, j))
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString("\n" + ErrorStyle.Render(m.notice) + "\n")
	}
	b.WriteString("\n" + MutedStyle.Render("↑/↓ select • enter download/resume • p pause • x cancel • q quit"))
	return b.String()
}

func (m *dashboardModel) jobLine(selected bool, j *jobView) string {
	pointer := "  "
	name := fmt.Sprintf("%-24s", utils.TruncateString(j.snap.Name, 24))
	if selected {
		pointer = SelectedStyle.Render("> ")
		name = SelectedStyle.Render(name)
	}

	var percent float64
	if j.snap.Size > 0 {
		percent = float64(j.progress.Done) / float64(j.snap.Size)
	}
	line := fmt.Sprintf("%s%s %s %s %5.1f%%", pointer, JobIcon(j.snap), name, j.bar.ViewAs(percent), percent*100)

	switch j.snap.Status {
	case transfer.StatusTransferring:
		line += MutedStyle.Render(fmt.Sprintf(" %s ETA %s", utils.FormatSpeed(j.progress.Speed), utils.FormatETA(j.progress.ETA, j.progress.ETAKnown)))
	case transfer.StatusInterrupted:
		line += WarningStyle.Render(" interrupted")
	default:
		line += MutedStyle.Render(" " + j.snap.Status.String())
	}
	if j.snap.Err != "" {
		line += ErrorStyle.Render(" " + j.snap.Err)
	}
	return line
}

func (m *dashboardModel) summary(now time.Time) []SummaryRow {
	rows := make([]SummaryRow, 0, len(m.jobs))
	for _, j := range m.jobs {
		d := j.elapsed
		if !j.started.IsZero() {
			d += now.Sub(j.started)
		}
		rows = append(rows, SummaryRow{Job: j.snap, Duration: d})
	}
	return rows
}
