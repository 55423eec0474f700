package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finledger/internal/core"
)

// blockingPublisher holds every publish until release is closed.
type blockingPublisher struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (p *blockingPublisher) PublishEvent(_ context.Context, e Event) error {
	<-p.release
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, e)
	return nil
}

func testGoal() core.Goal {
	return core.Goal{
		ID:            core.NewID(),
		UserID:        core.NewID(),
		Title:         "Bike",
		TargetAmount:  core.Money{Cents: 50000},
		CurrentAmount: core.Money{Cents: 25000},
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(rec, 16, nil)
	d.Start(context.Background())

	g := testGoal()
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), GoalMilestoneReached(g, 50, time.Now()))
	}
	d.Close()

	if n := len(rec.Events()); n != 5 {
		t.Fatalf("published %d events, want 5", n)
	}
	// Emitting after close must not panic.
	d.Emit(context.Background(), GoalCompleted(g, time.Now()))
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{})}
	d := NewDispatcher(pub, 1, nil)
	d.Start(context.Background())

	g := testGoal()
	start := time.Now()
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), GoalMilestoneReached(g, 25, time.Now()))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Emit blocked for %v", elapsed)
	}
	close(pub.release)
	d.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.got) == 0 || len(pub.got) > 2 {
		t.Errorf("published %d events, want the one in flight plus at most one buffered", len(pub.got))
	}
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) PublishEvent(context.Context, Event) error {
	p.calls++
	return errors.New("broker down")
}

func TestDispatcherKeepsGoingAfterPublishError(t *testing.T) {
	pub := &failingPublisher{}
	d := NewDispatcher(pub, 4, nil)
	d.Start(context.Background())
	d.Emit(context.Background(), GoalCompleted(testGoal(), time.Now()))
	d.Emit(context.Background(), GoalCompleted(testGoal(), time.Now()))
	d.Close()
	if pub.calls != 2 {
		t.Errorf("calls = %d, want 2", pub.calls)
	}
}

func TestEventNotification(t *testing.T) {
	g := testGoal()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e := GoalMilestoneReached(g, 50, at)

	n, err := e.Notification()
	if err != nil {
		t.Fatalf("Notification: %v", err)
	}
	if n.ID != e.ID || n.UserID != g.UserID || n.Kind != core.NotifyGoalMilestone {
		t.Errorf("notification = %+v", n)
	}
	if n.Source != core.GoalRef(g.ID) || !n.CreatedAt.Equal(at) {
		t.Errorf("source = %v created = %v", n.Source, n.CreatedAt)
	}
	if n.Metadata["milestone"] != "50" {
		t.Errorf("metadata = %v", n.Metadata)
	}

	bad := e
	bad.UserID = "not-a-ulid"
	if _, err := bad.Notification(); err == nil {
		t.Error("invalid user id should fail")
	}
	bad = e
	bad.Source = core.SourceRef{Kind: "invoice", ID: "1"}
	if _, err := bad.Notification(); err == nil {
		t.Error("unknown source kind should fail")
	}
}

func TestEventIDsAreUnique(t *testing.T) {
	g := testGoal()
	a := GoalCompleted(g, time.Now())
	b := GoalCompleted(g, time.Now())
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("ids %q and %q should be distinct", a.ID, b.ID)
	}
}
