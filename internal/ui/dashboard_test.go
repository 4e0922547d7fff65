package ui

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/Roomdrop/internal/peer"
	"github.com/BioHazard786/Roomdrop/internal/transfer"
	tea "github.com/charmbracelet/bubbletea"
)

type call struct{ verb, id string }

type fakeActions struct {
	mu    sync.Mutex
	calls []call
}

func (a *fakeActions) record(verb, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call{verb, id})
	return nil
}

func (a *fakeActions) Download(_ context.Context, id string) error   { return a.record("download", id) }
func (a *fakeActions) Resume(_ context.Context, id string) error     { return a.record("resume", id) }
func (a *fakeActions) Pause(_ context.Context, id string) error      { return a.record("pause", id) }
func (a *fakeActions) ResumeSend(_ context.Context, id string) error { return a.record("resume-send", id) }
func (a *fakeActions) Cancel(_ context.Context, id string) error     { return a.record("cancel", id) }

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func runCmd(t *testing.T, m *dashboardModel, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg, ok := cmd().(actionDoneMsg)
	if !ok {
		t.Fatal("command did not run an action")
	}
	m.Update(msg)
}

func snap(id string, dir transfer.Direction, status transfer.Status, cursor int64) transfer.Snapshot {
	return transfer.Snapshot{ID: id, Name: id + ".bin", Direction: dir, Size: 100, Cursor: cursor, Status: status}
}

func TestDashboardAutoAcceptsOnce(t *testing.T) {
	actions := &fakeActions{}
	m := newDashboardModel(DashboardConfig{RoomID: "AB12C3", Role: peer.Answerer, AutoAccept: true, Actions: actions}, newEventQueue())

	runCmd(t, m, m.apply(roomEvent{"AB12C3", jobEvent{snap("f1", transfer.Receive, transfer.StatusWaiting, 0)}}))
	if cmd := m.apply(roomEvent{"AB12C3", jobEvent{snap("f1", transfer.Receive, transfer.StatusWaiting, 0)}}); cmd != nil {
		t.Fatal("re-announced file requested twice")
	}
	if cmd := m.apply(roomEvent{"OTHER1", jobEvent{snap("f2", transfer.Receive, transfer.StatusWaiting, 0)}}); cmd != nil {
		t.Fatal("event from another room was applied")
	}
	if want := []call{{"download", "f1"}}; !slices.Equal(actions.calls, want) {
		t.Fatalf("calls %v, want %v", actions.calls, want)
	}
}

func TestDashboardKeys(t *testing.T) {
	actions := &fakeActions{}
	m := newDashboardModel(DashboardConfig{RoomID: "AB12C3", Actions: actions}, newEventQueue())
	m.Update(eventsMsg{
		{"AB12C3", statusEvent{peer.StatusConnected}},
		{"AB12C3", jobEvent{snap("in", transfer.Receive, transfer.StatusWaiting, 0)}},
		{"AB12C3", jobEvent{snap("out", transfer.Send, transfer.StatusTransferring, 10)}},
	})

	_, cmd := m.Update(key("enter"))
	runCmd(t, m, cmd)
	_, cmd = m.Update(key("down"))
	if cmd != nil {
		t.Fatal("moving the cursor produced a command")
	}
	_, cmd = m.Update(key("p"))
	runCmd(t, m, cmd)
	if _, cmd = m.Update(key("enter")); cmd != nil {
		t.Fatal("enter on a send job did something")
	}

	m.apply(roomEvent{"AB12C3", jobEvent{snap("out", transfer.Send, transfer.StatusPaused, 40)}})
	_, cmd = m.Update(key("p"))
	runCmd(t, m, cmd)
	_, cmd = m.Update(key("x"))
	runCmd(t, m, cmd)

	want := []call{{"download", "in"}, {"pause", "out"}, {"resume-send", "out"}, {"cancel", "out"}}
	if !slices.Equal(actions.calls, want) {
		t.Fatalf("calls %v, want %v", actions.calls, want)
	}

	view := m.View()
	for _, s := range []string{"Room AB12C3", "connected", "in.bin", "out.bin", "paused"} {
		if !strings.Contains(view, s) {
			t.Errorf("view missing %q", s)
		}
	}
}

func TestDashboardSummaryCountsMovingTime(t *testing.T) {
	m := newDashboardModel(DashboardConfig{RoomID: "AB12C3"}, newEventQueue())
	base := time.Unix(1_700_000_000, 0)
	at := func(d time.Duration) { m.now = func() time.Time { return base.Add(d) } }

	at(0)
	m.apply(roomEvent{"AB12C3", jobEvent{snap("f", transfer.Receive, transfer.StatusWaiting, 0)}})
	at(time.Second)
	m.apply(roomEvent{"AB12C3", jobEvent{snap("f", transfer.Receive, transfer.StatusTransferring, 0)}})
	at(3 * time.Second)
	m.apply(roomEvent{"AB12C3", jobEvent{snap("f", transfer.Receive, transfer.StatusInterrupted, 40)}})
	at(10 * time.Second)
	m.apply(roomEvent{"AB12C3", jobEvent{snap("f", transfer.Receive, transfer.StatusTransferring, 40)}})
	at(12 * time.Second)
	m.apply(roomEvent{"AB12C3", jobEvent{snap("f", transfer.Receive, transfer.StatusCompleted, 100)}})

	rows := m.summary(base.Add(time.Minute))
	if len(rows) != 1 || rows[0].Duration != 4*time.Second || rows[0].Job.Cursor != 100 {
		t.Fatalf("summary %+v", rows)
	}

	var buf bytes.Buffer
	RenderSummary(&buf, "AB12C3", rows)
	out := buf.String()
	for _, s := range []string{"AB12C3", "f.bin", "completed", "1/1 completed"} {
		if !strings.Contains(out, s) {
			t.Errorf("summary missing %q:\n%s", s, out)
		}
	}
}

func TestEventQueueDeliversInOrder(t *testing.T) {
	q := newEventQueue()
	next := q.next()
	q.push("R", statusEvent{peer.StatusConnecting})
	q.push("R", statusEvent{peer.StatusConnected})

	msg, ok := next().(eventsMsg)
	if !ok || len(msg) != 2 || msg[1].event != (statusEvent{peer.StatusConnected}) {
		t.Fatalf("got %#v", msg)
	}

	q.close()
	if got := q.next()(); got != nil {
		t.Fatalf("closed queue delivered %#v", got)
	}
}
