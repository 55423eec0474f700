package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"finledger/internal/amqp"
	"finledger/internal/cache"
	"finledger/internal/core"
	"finledger/internal/notify"
)

type fakeNotificationStore struct {
	mu      sync.Mutex
	saved   map[string]core.Notification
	saves   int
	failing error
}

func newFakeStore() *fakeNotificationStore {
	return &fakeNotificationStore{saved: map[string]core.Notification{}}
}

func (s *fakeNotificationStore) SaveNotification(_ context.Context, n core.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.failing != nil {
		return false, s.failing
	}
	if _, ok := s.saved[n.ID]; ok {
		return false, nil
	}
	s.saved[n.ID] = n
	return true, nil
}

func (s *fakeNotificationStore) NotificationsForUser(_ context.Context, userID ulid.ULID, _ int) ([]core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Notification
	for _, n := range s.saved {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeConsumer struct {
	events []notify.Event
	errs   []error
}

func (c *fakeConsumer) ConsumeEvents(ctx context.Context, handler amqp.Handler) error {
	for _, e := range c.events {
		c.errs = append(c.errs, handler(ctx, e))
	}
	<-ctx.Done()
	return ctx.Err()
}

var testUser = ulid.MustParse("01HZ0000000000000000000AAA")

func testEvent() notify.Event {
	g := core.Goal{
		ID:            ulid.MustParse("01HZ0000000000000000000G01"),
		UserID:        testUser,
		Title:         "Emergency fund",
		TargetAmount:  core.Money{Cents: 100000},
		CurrentAmount: core.Money{Cents: 50000},
	}
	return notify.GoalMilestoneReached(g, 50, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))
}

func newTestWorker(store *fakeNotificationStore) *NotificationWorker {
	return NewNotificationWorker(store, cache.NewLRUCache[struct{}](100, time.Hour), nil)
}

func TestHandleEvent_StoresNotification(t *testing.T) {
	store := newFakeStore()
	w := newTestWorker(store)
	e := testEvent()

	if err := w.HandleEvent(context.Background(), e); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	n, ok := store.saved[e.ID]
	if !ok {
		t.Fatal("notification not saved")
	}
	if n.Kind != core.NotifyGoalMilestone || n.UserID != testUser {
		t.Errorf("unexpected notification %+v", n)
	}
	if n.Metadata["milestone"] != "50" {
		t.Errorf("milestone metadata = %q", n.Metadata["milestone"])
	}
}

func TestHandleEvent_DedupesRedelivery(t *testing.T) {
	store := newFakeStore()
	w := newTestWorker(store)
	e := testEvent()

	for i := 0; i < 3; i++ {
		if err := w.HandleEvent(context.Background(), e); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if store.saves != 1 {
		t.Errorf("store saw %d writes, want 1", store.saves)
	}
}

func TestHandleEvent_StoreDedupesAfterCacheForgets(t *testing.T) {
	store := newFakeStore()
	e := testEvent()

	for i := 0; i < 2; i++ {
		// fresh worker each time: the in-memory window is gone
		if err := newTestWorker(store).HandleEvent(context.Background(), e); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if len(store.saved) != 1 {
		t.Errorf("saved %d notifications, want 1", len(store.saved))
	}
}

func TestHandleEvent_MalformedEventIsDropped(t *testing.T) {
	store := newFakeStore()
	w := newTestWorker(store)
	e := testEvent()
	e.UserID = "not-a-ulid"

	if err := w.HandleEvent(context.Background(), e); err != nil {
		t.Fatalf("malformed event should be acked, got %v", err)
	}
	if store.saves != 0 {
		t.Error("malformed event reached the store")
	}
}

func TestHandleEvent_StoreFailureAllowsRetry(t *testing.T) {
	store := newFakeStore()
	store.failing = errors.New("disk full")
	w := newTestWorker(store)
	e := testEvent()

	if err := w.HandleEvent(context.Background(), e); err == nil {
		t.Fatal("expected error from failing store")
	}

	store.failing = nil
	if err := w.HandleEvent(context.Background(), e); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if _, ok := store.saved[e.ID]; !ok {
		t.Error("retry did not store the notification")
	}
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	store := newFakeStore()
	w := newTestWorker(store)
	e := testEvent()
	consumer := &fakeConsumer{events: []notify.Event{e, e}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	deadline := time.After(2 * time.Second)
	for {
		store.mu.Lock()
		n := len(store.saved)
		store.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("event was not stored")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v after cancel", err)
	}
}
