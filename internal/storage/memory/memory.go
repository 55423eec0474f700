// Package memory is an in-process ports.Store. It keeps the same locking and
// commit semantics as the SQL backends and is used by tests and by the
// memory DATA_BACKEND.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"finledger/internal/core"
	"finledger/internal/keylock"
	"finledger/internal/ports"
)

// Hooks let tests inject failures at commit-critical points. A non-nil error
// aborts the surrounding unit of work.
type Hooks struct {
	BeforeInsertTransaction func(core.Transaction) error
	BeforeSaveProgress      func(core.Goal) error
}

type Store struct {
	mu            sync.Mutex
	goals         map[ulid.ULID]core.Goal
	contributions map[ulid.ULID]core.Contribution
	schedules     map[ulid.ULID]core.Schedule
	transactions  map[ulid.ULID]core.Transaction
	notifications map[string]core.Notification
	notifyOrder   []string
	preferences   map[prefKey]core.NotificationPreference

	goalLocks     *keylock.Map[ulid.ULID]
	scheduleLocks *keylock.Map[ulid.ULID]
	hooks         Hooks
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		goals:         make(map[ulid.ULID]core.Goal),
		contributions: make(map[ulid.ULID]core.Contribution),
		schedules:     make(map[ulid.ULID]core.Schedule),
		transactions:  make(map[ulid.ULID]core.Transaction),
		notifications: make(map[string]core.Notification),
		preferences:   make(map[prefKey]core.NotificationPreference),
		goalLocks:     keylock.New[ulid.ULID](),
		scheduleLocks: keylock.New[ulid.ULID](),
	}
}

// SetHooks replaces the failure hooks.
func (s *Store) SetHooks(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

func (s *Store) Close() error { return nil }

// Goals

func (s *Store) CreateGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[g.ID]; ok {
		return fmt.Errorf("goal %s: %w", g.ID, core.ErrDuplicate)
	}
	s.goals[g.ID] = cloneGoal(g)
	return nil
}

func (s *Store) GetGoal(_ context.Context, id ulid.ULID) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return core.Goal{}, core.NewNotFoundError("goal", id.String())
	}
	return cloneGoal(g), nil
}

// SetGoal overwrites a stored goal row as is, including its cached amount.
// Tests use it to simulate drift.
func (s *Store) SetGoal(g core.Goal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.ID] = cloneGoal(g)
}

func (s *Store) ListGoalIDs(_ context.Context) ([]ulid.ULID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]ulid.ULID, 0, len(s.goals))
	for id := range s.goals {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, ulid.ULID.Compare)
	return ids, nil
}

func (s *Store) ActiveAutoTrackedGoals(_ context.Context, userID ulid.ULID) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Goal
	for _, g := range s.goals {
		if g.UserID == userID && g.Status == core.GoalActive && g.AutoTrack {
			out = append(out, cloneGoal(g))
		}
	}
	slices.SortFunc(out, func(a, b core.Goal) int { return a.ID.Compare(b.ID) })
	return out, nil
}

func (s *Store) GetContribution(_ context.Context, id ulid.ULID) (core.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contributions[id]
	if !ok {
		return core.Contribution{}, core.NewNotFoundError("contribution", id.String())
	}
	return c, nil
}

func (s *Store) ContributionsForTransaction(_ context.Context, transactionID ulid.ULID) ([]core.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterContributions(func(c core.Contribution) bool {
		return c.TransactionID != nil && *c.TransactionID == transactionID
	}), nil
}

func (s *Store) ContributionsSince(_ context.Context, goalID ulid.ULID, since time.Time) ([]core.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterContributions(func(c core.Contribution) bool {
		return c.GoalID == goalID && !c.CreatedAt.Before(since)
	}), nil
}

// filterContributions returns matches oldest first. Callers hold s.mu.
func (s *Store) filterContributions(keep func(core.Contribution) bool) []core.Contribution {
	var out []core.Contribution
	for _, c := range s.contributions {
		if keep(c) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b core.Contribution) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return out
}

func (s *Store) DeleteGoal(_ context.Context, id ulid.ULID) error {
	unlock := s.goalLocks.Lock(id)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[id]; !ok {
		return core.NewNotFoundError("goal", id.String())
	}
	delete(s.goals, id)
	for cid, c := range s.contributions {
		if c.GoalID == id {
			delete(s.contributions, cid)
		}
	}
	return nil
}

func (s *Store) WithGoal(ctx context.Context, id ulid.ULID, fn func(ports.GoalTx) error) error {
	unlock := s.goalLocks.Lock(id)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	g, ok := s.goals[id]
	if !ok {
		s.mu.Unlock()
		return core.NewNotFoundError("goal", id.String())
	}
	tx := &goalTx{
		store:   s,
		goal:    cloneGoal(g),
		staged:  make(map[ulid.ULID]core.Contribution),
		deleted: make(map[ulid.ULID]bool),
		hooks:   s.hooks,
	}
	for cid, c := range s.contributions {
		if c.GoalID == id {
			tx.staged[cid] = c
		}
	}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// goalTx stages every write and applies them together on commit.
type goalTx struct {
	store   *Store
	goal    core.Goal
	saved   *core.Goal
	staged  map[ulid.ULID]core.Contribution
	deleted map[ulid.ULID]bool
	hooks   Hooks
}

func (tx *goalTx) Goal() core.Goal { return cloneGoal(tx.goal) }

func (tx *goalTx) Contributions(_ context.Context) ([]core.Contribution, error) {
	out := make([]core.Contribution, 0, len(tx.staged))
	for _, c := range tx.staged {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b core.Contribution) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return out, nil
}

func (tx *goalTx) InsertContribution(_ context.Context, c core.Contribution) error {
	if c.GoalID != tx.goal.ID {
		return fmt.Errorf("contribution for goal %s inserted under goal %s", c.GoalID, tx.goal.ID)
	}
	if _, ok := tx.staged[c.ID]; ok {
		return fmt.Errorf("contribution %s: %w", c.ID, core.ErrDuplicate)
	}
	if c.TransactionID != nil {
		for _, other := range tx.staged {
			if other.TransactionID != nil && *other.TransactionID == *c.TransactionID {
				return fmt.Errorf("contribution for transaction %s: %w", *c.TransactionID, core.ErrDuplicate)
			}
		}
	}
	tx.staged[c.ID] = c
	delete(tx.deleted, c.ID)
	return nil
}

func (tx *goalTx) DeleteContribution(_ context.Context, id ulid.ULID) error {
	if _, ok := tx.staged[id]; !ok {
		return core.NewNotFoundError("contribution", id.String())
	}
	delete(tx.staged, id)
	tx.deleted[id] = true
	return nil
}

func (tx *goalTx) UpdateContributionAmount(_ context.Context, id ulid.ULID, amount core.Money) error {
	c, ok := tx.staged[id]
	if !ok {
		return core.NewNotFoundError("contribution", id.String())
	}
	c.Amount = amount
	tx.staged[id] = c
	return nil
}

func (tx *goalTx) SaveProgress(_ context.Context, g core.Goal) error {
	if tx.hooks.BeforeSaveProgress != nil {
		if err := tx.hooks.BeforeSaveProgress(g); err != nil {
			return err
		}
	}
	current := tx.goal
	if tx.saved != nil {
		current = *tx.saved
	}
	if g.Version != current.Version {
		return fmt.Errorf("goal %s version %d, have %d: %w", g.ID, g.Version, current.Version, core.ErrConflict)
	}
	next := cloneGoal(current)
	next.CurrentAmount = g.CurrentAmount
	next.Status = g.Status
	next.CompletionDate = g.CompletionDate
	next.UpdatedAt = g.UpdatedAt
	next.Version++
	tx.saved = &next
	return nil
}

func (tx *goalTx) commit() {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range tx.deleted {
		delete(s.contributions, id)
	}
	for id, c := range tx.staged {
		s.contributions[id] = c
	}
	if tx.saved != nil {
		s.goals[tx.goal.ID] = *tx.saved
	}
}

// Schedules

func (s *Store) CreateSchedule(_ context.Context, sc core.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[sc.ID]; ok {
		return fmt.Errorf("schedule %s: %w", sc.ID, core.ErrDuplicate)
	}
	s.schedules[sc.ID] = sc
	return nil
}

func (s *Store) GetSchedule(_ context.Context, id ulid.ULID) (core.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[id]
	if !ok {
		return core.Schedule{}, core.NewNotFoundError("schedule", id.String())
	}
	return sc, nil
}

func (s *Store) ActiveSchedules(_ context.Context) ([]core.Schedule, error) {
	return s.activeSchedules(func(core.Schedule) bool { return true }), nil
}

func (s *Store) ActiveSchedulesForUser(_ context.Context, userID ulid.ULID) ([]core.Schedule, error) {
	return s.activeSchedules(func(sc core.Schedule) bool { return sc.UserID == userID }), nil
}

func (s *Store) activeSchedules(keep func(core.Schedule) bool) []core.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Schedule
	for _, sc := range s.schedules {
		if sc.Active && keep(sc) {
			out = append(out, sc)
		}
	}
	slices.SortFunc(out, func(a, b core.Schedule) int { return a.ID.Compare(b.ID) })
	return out
}

func (s *Store) SetScheduleActive(_ context.Context, id ulid.ULID, active bool) error {
	unlock := s.scheduleLocks.Lock(id)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[id]
	if !ok {
		return core.NewNotFoundError("schedule", id.String())
	}
	sc.Active = active
	sc.UpdatedAt = time.Now()
	s.schedules[id] = sc
	return nil
}

func (s *Store) DeleteSchedule(_ context.Context, id ulid.ULID) error {
	unlock := s.scheduleLocks.Lock(id)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return core.NewNotFoundError("schedule", id.String())
	}
	delete(s.schedules, id)
	for tid, t := range s.transactions {
		if t.ScheduleID != nil && *t.ScheduleID == id {
			t.ScheduleID = nil
			s.transactions[tid] = t
		}
	}
	return nil
}

func (s *Store) WithSchedule(ctx context.Context, id ulid.ULID, fn func(ports.ScheduleTx) error) error {
	unlock := s.scheduleLocks.Lock(id)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	sc, ok := s.schedules[id]
	hooks := s.hooks
	s.mu.Unlock()
	if !ok {
		return core.NewNotFoundError("schedule", id.String())
	}

	tx := &scheduleTx{store: s, schedule: sc, anchor: sc.LastGeneratedDate, hooks: hooks}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

type scheduleTx struct {
	store    *Store
	schedule core.Schedule
	anchor   core.Date
	inserted []core.Transaction
	hooks    Hooks
}

func (tx *scheduleTx) Schedule() core.Schedule { return tx.schedule }

func (tx *scheduleTx) InsertTransaction(_ context.Context, t core.Transaction) error {
	if tx.hooks.BeforeInsertTransaction != nil {
		if err := tx.hooks.BeforeInsertTransaction(t); err != nil {
			return err
		}
	}
	for _, other := range tx.inserted {
		if other.Date.Equal(t.Date) {
			return fmt.Errorf("occurrence %s: %w", t.Date, core.ErrDuplicate)
		}
	}
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.transactions {
		if other.ScheduleID != nil && *other.ScheduleID == tx.schedule.ID && other.Date.Equal(t.Date) {
			return fmt.Errorf("occurrence %s: %w", t.Date, core.ErrDuplicate)
		}
	}
	tx.inserted = append(tx.inserted, t)
	return nil
}

func (tx *scheduleTx) AdvanceAnchor(_ context.Context, from, to core.Date) error {
	if !tx.anchor.Equal(from) {
		return fmt.Errorf("schedule %s anchor is %s, not %s: %w", tx.schedule.ID, tx.anchor, from, core.ErrConflict)
	}
	tx.anchor = to
	return nil
}

func (tx *scheduleTx) commit() error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.schedules[tx.schedule.ID]
	if !ok {
		return core.NewNotFoundError("schedule", tx.schedule.ID.String())
	}
	if !stored.LastGeneratedDate.Equal(tx.schedule.LastGeneratedDate) {
		return fmt.Errorf("schedule %s anchor moved: %w", tx.schedule.ID, core.ErrConflict)
	}
	for _, t := range tx.inserted {
		s.transactions[t.ID] = cloneTransaction(t)
	}
	if !tx.anchor.Equal(stored.LastGeneratedDate) {
		stored.LastGeneratedDate = tx.anchor
		stored.UpdatedAt = time.Now()
		s.schedules[stored.ID] = stored
	}
	return nil
}

// Transactions

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[t.ID]; ok {
		return fmt.Errorf("transaction %s: %w", t.ID, core.ErrDuplicate)
	}
	s.transactions[t.ID] = cloneTransaction(t)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id ulid.ULID) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, core.NewNotFoundError("transaction", id.String())
	}
	return cloneTransaction(t), nil
}

func (s *Store) UpdateTransactionAmount(_ context.Context, id ulid.ULID, amount core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.NewNotFoundError("transaction", id.String())
	}
	t.Amount = amount
	s.transactions[id] = t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return core.NewNotFoundError("transaction", id.String())
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) TransactionsForSchedule(_ context.Context, scheduleID ulid.ULID) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.ScheduleID != nil && *t.ScheduleID == scheduleID {
			out = append(out, cloneTransaction(t))
		}
	}
	slices.SortFunc(out, func(a, b core.Transaction) int { return a.Date.Compare(b.Date.Time) })
	return out, nil
}

// Notifications

func (s *Store) SaveNotification(_ context.Context, n core.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; ok {
		return false, nil
	}
	s.notifications[n.ID] = n
	s.notifyOrder = append(s.notifyOrder, n.ID)
	return true, nil
}

// NotificationsForUser returns the newest notifications first.
func (s *Store) NotificationsForUser(_ context.Context, userID ulid.ULID, limit int) ([]core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Notification
	for i := len(s.notifyOrder) - 1; i >= 0; i-- {
		n := s.notifications[s.notifyOrder[i]]
		if n.UserID != userID {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Notification preferences

type prefKey struct {
	user ulid.ULID
	kind core.NotificationKind
}

func (s *Store) NotificationPreference(_ context.Context, userID ulid.ULID, kind core.NotificationKind) (core.NotificationPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.preferences[prefKey{userID, kind}]
	if !ok {
		return core.NotificationPreference{}, core.NewNotFoundError("notification preference", userID.String()+"/"+string(kind))
	}
	return p, nil
}

func (s *Store) SaveNotificationPreference(_ context.Context, p core.NotificationPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[prefKey{p.UserID, p.Kind}] = p
	return nil
}

func (s *Store) NotificationPreferences(_ context.Context, userID ulid.ULID) ([]core.NotificationPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.NotificationPreference
	for k, p := range s.preferences {
		if k.user == userID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b core.NotificationPreference) int { return strings.Compare(string(a.Kind), string(b.Kind)) })
	return out, nil
}

func cloneGoal(g core.Goal) core.Goal {
	g.TrackingCriteria = slices.Clone(g.TrackingCriteria)
	g.CategoryIDs = slices.Clone(g.CategoryIDs)
	g.TagIDs = slices.Clone(g.TagIDs)
	return g
}

func cloneTransaction(t core.Transaction) core.Transaction {
	t.TagIDs = slices.Clone(t.TagIDs)
	return t
}
