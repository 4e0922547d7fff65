package room

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/BioHazard786/Roomdrop/internal/clock"
	"github.com/BioHazard786/Roomdrop/internal/peer"
	"github.com/BioHazard786/Roomdrop/internal/signaling"
	"github.com/BioHazard786/Roomdrop/internal/testutil"
	"github.com/BioHazard786/Roomdrop/internal/transfer"
)

func randomBytes(n int, seed uint64) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.Uint32())
	}
	return b
}

// linkedRooms opens an offerer and an answerer on one memory relay joined
// by a fake link, and connects them. tweak sees each room's config after
// its role is set.
func linkedRooms(t *testing.T, id string, tweak func(*Config)) (sender, receiver testRoom, link *fakeLink) {
	t.Helper()
	link = newFakeLink()
	relay := signaling.NewMemoryRelay()

	config := func(role peer.Role) Config {
		cfg := Config{ID: id, Role: role, Relay: relay, NewSession: link.factory}
		if tweak != nil {
			tweak(&cfg)
		}
		return cfg
	}
	sender = openRoom(t, config(peer.Offerer))
	receiver = openRoom(t, config(peer.Answerer))

	link.connect()
	sender.obs.waitStatus(t, peer.StatusConnected)
	receiver.obs.waitStatus(t, peer.StatusConnected)
	return sender, receiver, link
}

func TestDisconnectInterruptsAndResumeContinuesFromCursor(t *testing.T) {
	const chunk = 16 * 1024
	saver := newMemorySaver()
	sender, receiver, link := linkedRooms(t, "RESUME", func(c *Config) {
		c.Transfer = transfer.Options{ChunkSize: chunk}
		c.Saver = saver
	})
	ctx := context.Background()

	data := randomBytes(64*chunk, 1)
	snaps, err := sender.AddFiles(ctx, transfer.BytesSource("data.bin", data))
	if err != nil {
		t.Fatal(err)
	}
	id := snaps[0].ID

	testutil.Eventually(t, timeout, func() bool {
		_, ok := receiver.obs.job(id)
		return ok
	}, "file never announced")

	link.cutAfter(20)
	if err := receiver.Download(ctx, id); err != nil {
		t.Fatalf("Download: %v", err)
	}

	const cut = 20 * chunk
	testutil.Eventually(t, timeout, func() bool {
		return snapshotJob(t, receiver.Controller, id).Cursor == cut
	}, "receiver never reached the cut")

	link.disconnect()
	testutil.Eventually(t, timeout, func() bool {
		j := snapshotJob(t, receiver.Controller, id)
		return j.Status == transfer.StatusInterrupted
	}, "receiver job not interrupted")
	if j := snapshotJob(t, receiver.Controller, id); j.Cursor != cut {
		t.Fatalf("interrupted cursor %d, want %d", j.Cursor, cut)
	}
	if err := receiver.Resume(ctx, id); !errors.Is(err, transfer.ErrChannelNotOpen) {
		t.Fatalf("resume while disconnected: %v", err)
	}

	link.cutAfter(-1)
	link.connect()
	sender.obs.waitStatus(t, peer.StatusConnected)
	receiver.obs.waitStatus(t, peer.StatusConnected)

	if err := receiver.Resume(ctx, id); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	testutil.Eventually(t, timeout, func() bool {
		_, ok := saver.get("data.bin")
		return ok
	}, "file never saved")

	got, _ := saver.get("data.bin")
	if !bytes.Equal(got, data) {
		t.Fatalf("saved %d bytes, content mismatch", len(got))
	}
	if n := receiver.obs.count(id, transfer.StatusCompleted); n != 1 {
		t.Fatalf("receiver completed %d times", n)
	}

	resumed := false
	sender.obs.mu.Lock()
	for _, s := range sender.obs.changes {
		if s.ID == id && s.Status == transfer.StatusTransferring && s.Cursor == cut {
			resumed = true
		}
	}
	sender.obs.mu.Unlock()
	if !resumed {
		t.Fatal("sender never restarted at the receiver's cursor")
	}
}

func TestCancelReachesPeer(t *testing.T) {
	sender, receiver, _ := linkedRooms(t, "CANCEL", nil)
	ctx := context.Background()

	snaps, err := sender.AddFiles(ctx, transfer.BytesSource("a.txt", []byte("hello")))
	if err != nil {
		t.Fatal(err)
	}
	id := snaps[0].ID
	testutil.Eventually(t, timeout, func() bool {
		_, ok := receiver.obs.job(id)
		return ok
	}, "file never announced")

	if err := sender.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	testutil.Eventually(t, timeout, func() bool {
		s, _ := receiver.obs.job(id)
		return s.Status == transfer.StatusCancelled
	}, "receiver never saw the cancel")

	if err := receiver.Download(ctx, id); !errors.Is(err, transfer.ErrUnknownTransfer) {
		t.Fatalf("download after cancel: %v", err)
	}
}

func TestPauseAndResumeSend(t *testing.T) {
	sender, _, _ := linkedRooms(t, "PAUSE1", nil)
	ctx := context.Background()

	snaps, _ := sender.AddFiles(ctx, transfer.BytesSource("a.txt", []byte("hello")))
	if err := sender.Pause(ctx, snaps[0].ID); !errors.Is(err, transfer.ErrInvalidState) {
		t.Fatalf("pause of a waiting offer: %v", err)
	}
	if err := sender.ResumeSend(ctx, "nope"); !errors.Is(err, transfer.ErrUnknownTransfer) {
		t.Fatalf("resume of unknown id: %v", err)
	}
}

func TestClipboardSyncDoesNotEcho(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	clipA := &memoryClipboard{content: "before"}
	clipB := &memoryClipboard{content: "other"}

	a, b, _ := linkedRooms(t, "CLIP01", func(c *Config) {
		c.Clock = clk
		c.Clipboard = clipB
		if c.Role == peer.Offerer {
			c.Clipboard = clipA
		}
	})
	ctx := context.Background()

	if err := a.SetClipboardSync(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := b.SetClipboardSync(ctx, true); err != nil {
		t.Fatal(err)
	}
	clk.WaitForTimers(2)

	// Enabling records what is already there, so nothing is sent yet.
	clk.Advance(time.Second)
	waitReads(t, clipA, 2)
	waitReads(t, clipB, 2)
	barrier(t, a, b)
	if _, _, w := clipB.stats(); w != 0 {
		t.Fatalf("pre-existing clipboard was sent")
	}

	clipA.set("hello from A")
	clk.Advance(time.Second)
	testutil.Eventually(t, timeout, func() bool {
		c, _, _ := clipB.stats()
		return c == "hello from A"
	}, "B never received A's clipboard")

	_, readsA, _ := clipA.stats()
	_, readsB, _ := clipB.stats()
	clk.Advance(time.Second)
	waitReads(t, clipA, readsA+1)
	waitReads(t, clipB, readsB+1)
	barrier(t, a, b)

	if _, _, w := clipA.stats(); w != 0 {
		t.Fatalf("B echoed the clipboard back to A (%d writes)", w)
	}
	if _, _, w := clipB.stats(); w != 1 {
		t.Fatalf("B clipboard written %d times", w)
	}
	b.obs.mu.Lock()
	clips := b.obs.clips
	b.obs.mu.Unlock()
	if len(clips) != 1 || clips[0] != "hello from A" {
		t.Fatalf("observer saw %q", clips)
	}
}

func TestRoomFullAfterJoinKeepsOpenChannel(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	clipA := &memoryClipboard{content: "before"}
	clipB := &memoryClipboard{content: "other"}

	a, b, _ := linkedRooms(t, "BLIP01", func(c *Config) {
		c.Clock = clk
		c.Clipboard = clipB
		if c.Role == peer.Offerer {
			c.Clipboard = clipA
		}
	})
	ctx := context.Background()

	testutil.Eventually(t, timeout, func() bool {
		var joined bool
		a.exec.call(ctx, func() error { joined = a.joined; return nil })
		return joined
	}, "room never joined the relay")

	if err := a.SetClipboardSync(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := b.SetClipboardSync(ctx, true); err != nil {
		t.Fatal(err)
	}
	clk.WaitForTimers(2)

	// A reconnect finds the old socket still holding our place.
	a.exec.post(func() {
		a.onRelay(signaling.Message{Type: signaling.TypeError, RoomID: "BLIP01", Error: signaling.ErrRoomFull.Error()})
	})
	snap, err := a.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Status != peer.StatusConnected || a.obs.status() != peer.StatusConnected {
		t.Fatalf("status after relay rejection %v", snap.Status)
	}
	clk.WaitForTimers(3)

	clipA.set("after the blip")
	clk.Advance(time.Second)
	testutil.Eventually(t, timeout, func() bool {
		c, _, _ := clipB.stats()
		return c == "after the blip"
	}, "clipboard sync stopped after the relay rejection")

	testutil.Eventually(t, timeout, func() bool {
		var pending bool
		a.exec.call(ctx, func() error { pending = a.rejoinPending; return nil })
		return !pending
	}, "rejoin never ran")
}

func TestClipboardNeedsCollaborator(t *testing.T) {
	a, _, _ := linkedRooms(t, "CLIP02", nil)
	if err := a.SetClipboardSync(context.Background(), true); err == nil {
		t.Fatal("sync enabled without a clipboard")
	}
}

func waitReads(t *testing.T, c *memoryClipboard, n int) {
	t.Helper()
	testutil.Eventually(t, timeout, func() bool {
		_, reads, _ := c.stats()
		return reads >= n
	}, "clipboard not polled")
}

// barrier waits until every task already queued on a, then b, then a again
// has run, so a poll and the delivery it caused have both landed.
func barrier(t *testing.T, a, b testRoom) {
	t.Helper()
	for _, r := range []testRoom{a, b, a, b} {
		if _, err := r.Snapshot(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPeerLeavingInterruptsAndResets(t *testing.T) {
	const chunk = 16 * 1024
	saver := newMemorySaver()
	sender, receiver, link := linkedRooms(t, "LEAVE1", func(c *Config) {
		c.Transfer = transfer.Options{ChunkSize: chunk}
		c.Saver = saver
	})
	ctx := context.Background()

	snaps, _ := sender.AddFiles(ctx, transfer.BytesSource("big.bin", randomBytes(8*chunk, 2)))
	id := snaps[0].ID
	testutil.Eventually(t, timeout, func() bool {
		_, ok := receiver.obs.job(id)
		return ok
	}, "file never announced")

	link.cutAfter(3)
	if err := receiver.Download(ctx, id); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, timeout, func() bool {
		return snapshotJob(t, receiver.Controller, id).Cursor == 3*chunk
	}, "receiver never reached the cut")

	if err := sender.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	receiver.obs.waitStatus(t, peer.StatusDisconnected)
	if j := snapshotJob(t, receiver.Controller, id); j.Status != transfer.StatusInterrupted || j.Cursor != 3*chunk {
		t.Fatalf("after peer left: %+v", j)
	}

	if _, err := sender.AddFiles(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("intent on closed room: %v", err)
	}
}

func TestRequestForUnknownFileIsCancelled(t *testing.T) {
	_, receiver, link := linkedRooms(t, "UNKNWN", func(c *Config) { c.Saver = newMemorySaver() })
	_, b := link.pair()

	// An announcement the sender never made.
	b.post(func() {
		b.hooks.OnMessage(peer.Frame{Text: true, Data: []byte(`{"type":"meta","id":"ghost123","name":"x","size":4}`)})
	})
	testutil.Eventually(t, timeout, func() bool {
		_, ok := receiver.obs.job("ghost123")
		return ok
	}, "forged meta not announced")

	if err := receiver.Download(context.Background(), "ghost123"); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, timeout, func() bool {
		s, _ := receiver.obs.job("ghost123")
		return s.Status == transfer.StatusCancelled
	}, "sender did not refuse the unknown request")
}
