package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/ports"
)

// SQLiteRepository is the embedded ports.Store. Write transactions start
// with BEGIN IMMEDIATE, so a WithGoal or WithSchedule callback holds the
// database write lock until it returns.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

var _ ports.Store = (*SQLiteRepository)(nil)

func dsn(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_time_format=sqlite" +
		"&_txlock=immediate"
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations. A nil logger discards.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	logger = logger.WithComponent(log.ComponentStorage)
	if _, err := RunMigrations(dbPath, logger); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// inTx runs fn against a transaction-bound Queries and commits on nil.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "transaction", "begin")
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			r.logger.WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(err, "transaction", "commit")
	}
	return nil
}

// Goals

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) error {
	row, err := goalRow(g)
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(q *Queries) error {
		if err := q.CreateGoal(ctx, row); err != nil {
			return mapError(err, "goal", row.ID)
		}
		for _, c := range g.CategoryIDs {
			if err := q.InsertGoalCategory(ctx, row.ID, c.String()); err != nil {
				return mapError(err, "goal category", c.String())
			}
		}
		for _, t := range g.TagIDs {
			if err := q.InsertGoalTag(ctx, row.ID, t.String()); err != nil {
				return mapError(err, "goal tag", t.String())
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, id ulid.ULID) (core.Goal, error) {
	return loadGoal(ctx, r.queries, id.String())
}

func loadGoal(ctx context.Context, q *Queries, id string) (core.Goal, error) {
	row, err := q.GetGoal(ctx, id)
	if err != nil {
		return core.Goal{}, mapError(err, "goal", id)
	}
	return hydrateGoal(ctx, q, row)
}

func hydrateGoal(ctx context.Context, q *Queries, row FinancialGoal) (core.Goal, error) {
	categories, err := q.ListGoalCategories(ctx, row.ID)
	if err != nil {
		return core.Goal{}, mapError(err, "goal categories", row.ID)
	}
	tags, err := q.ListGoalTags(ctx, row.ID)
	if err != nil {
		return core.Goal{}, mapError(err, "goal tags", row.ID)
	}
	return toGoal(row, categories, tags)
}

func (r *SQLiteRepository) ListGoalIDs(ctx context.Context) ([]ulid.ULID, error) {
	ids, err := r.queries.ListGoalIDs(ctx)
	if err != nil {
		return nil, mapError(err, "goals", "list")
	}
	return parseIDs(ids)
}

func (r *SQLiteRepository) ActiveAutoTrackedGoals(ctx context.Context, userID ulid.ULID) ([]core.Goal, error) {
	rows, err := r.queries.ListActiveAutoTrackedGoals(ctx, userID.String())
	if err != nil {
		return nil, mapError(err, "goals for user", userID.String())
	}
	goals := make([]core.Goal, 0, len(rows))
	for _, row := range rows {
		g, err := hydrateGoal(ctx, r.queries, row)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, nil
}

func (r *SQLiteRepository) GetContribution(ctx context.Context, id ulid.ULID) (core.Contribution, error) {
	row, err := r.queries.GetContribution(ctx, id.String())
	if err != nil {
		return core.Contribution{}, mapError(err, "contribution", id.String())
	}
	return toContribution(row)
}

func (r *SQLiteRepository) ContributionsForTransaction(ctx context.Context, transactionID ulid.ULID) ([]core.Contribution, error) {
	rows, err := r.queries.ListContributionsByTransaction(ctx, transactionID.String())
	if err != nil {
		return nil, mapError(err, "contributions for transaction", transactionID.String())
	}
	return toContributions(rows)
}

func (r *SQLiteRepository) ContributionsSince(ctx context.Context, goalID ulid.ULID, since time.Time) ([]core.Contribution, error) {
	rows, err := r.queries.ListContributionsSince(ctx, goalID.String(), since.UTC())
	if err != nil {
		return nil, mapError(err, "contributions for goal", goalID.String())
	}
	return toContributions(rows)
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, id ulid.ULID) error {
	n, err := r.queries.DeleteGoal(ctx, id.String())
	if err != nil {
		return mapError(err, "goal", id.String())
	}
	if n == 0 {
		return core.NewNotFoundError("goal", id.String())
	}
	return nil
}

func (r *SQLiteRepository) WithGoal(ctx context.Context, id ulid.ULID, fn func(ports.GoalTx) error) error {
	return r.inTx(ctx, func(q *Queries) error {
		g, err := loadGoal(ctx, q, id.String())
		if err != nil {
			return err
		}
		return fn(&sqliteGoalTx{q: q, goal: g})
	})
}

type sqliteGoalTx struct {
	q    *Queries
	goal core.Goal
}

func (tx *sqliteGoalTx) Goal() core.Goal { return tx.goal }

func (tx *sqliteGoalTx) Contributions(ctx context.Context) ([]core.Contribution, error) {
	rows, err := tx.q.ListContributionsByGoal(ctx, tx.goal.ID.String())
	if err != nil {
		return nil, mapError(err, "contributions for goal", tx.goal.ID.String())
	}
	return toContributions(rows)
}

func (tx *sqliteGoalTx) InsertContribution(ctx context.Context, c core.Contribution) error {
	if c.GoalID != tx.goal.ID {
		return fmt.Errorf("contribution for goal %s inserted under goal %s", c.GoalID, tx.goal.ID)
	}
	if err := tx.q.CreateContribution(ctx, contributionRow(c)); err != nil {
		return mapError(err, "contribution", c.ID.String())
	}
	return nil
}

func (tx *sqliteGoalTx) DeleteContribution(ctx context.Context, id ulid.ULID) error {
	n, err := tx.q.DeleteContribution(ctx, id.String(), tx.goal.ID.String())
	if err != nil {
		return mapError(err, "contribution", id.String())
	}
	if n == 0 {
		return core.NewNotFoundError("contribution", id.String())
	}
	return nil
}

func (tx *sqliteGoalTx) UpdateContributionAmount(ctx context.Context, id ulid.ULID, amount core.Money) error {
	n, err := tx.q.UpdateContributionAmount(ctx, amount.Cents, id.String(), tx.goal.ID.String())
	if err != nil {
		return mapError(err, "contribution", id.String())
	}
	if n == 0 {
		return core.NewNotFoundError("contribution", id.String())
	}
	return nil
}

func (tx *sqliteGoalTx) SaveProgress(ctx context.Context, g core.Goal) error {
	n, err := tx.q.UpdateGoalProgress(ctx, UpdateGoalProgressParams{
		CurrentAmountCents: g.CurrentAmount.Cents,
		Status:             string(g.Status),
		CompletionDate:     nullDate(g.CompletionDate),
		UpdatedAt:          g.UpdatedAt.UTC(),
		ID:                 g.ID.String(),
		Version:            g.Version,
	})
	if err != nil {
		return mapError(err, "goal", g.ID.String())
	}
	if n == 0 {
		return fmt.Errorf("goal %s version %d: %w", g.ID, g.Version, core.ErrConflict)
	}
	return nil
}

// Schedules

func (r *SQLiteRepository) CreateSchedule(ctx context.Context, s core.Schedule) error {
	if err := r.queries.CreateSchedule(ctx, scheduleRow(s)); err != nil {
		return mapError(err, "schedule", s.ID.String())
	}
	return nil
}

func (r *SQLiteRepository) GetSchedule(ctx context.Context, id ulid.ULID) (core.Schedule, error) {
	row, err := r.queries.GetSchedule(ctx, id.String())
	if err != nil {
		return core.Schedule{}, mapError(err, "schedule", id.String())
	}
	return toSchedule(row)
}

func (r *SQLiteRepository) ActiveSchedules(ctx context.Context) ([]core.Schedule, error) {
	rows, err := r.queries.ListActiveSchedules(ctx)
	if err != nil {
		return nil, mapError(err, "schedules", "active")
	}
	return toSchedules(rows)
}

func (r *SQLiteRepository) ActiveSchedulesForUser(ctx context.Context, userID ulid.ULID) ([]core.Schedule, error) {
	rows, err := r.queries.ListActiveSchedulesByUser(ctx, userID.String())
	if err != nil {
		return nil, mapError(err, "schedules for user", userID.String())
	}
	return toSchedules(rows)
}

func toSchedules(rows []RecurringSchedule) ([]core.Schedule, error) {
	out := make([]core.Schedule, 0, len(rows))
	for _, row := range rows {
		s, err := toSchedule(row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *SQLiteRepository) SetScheduleActive(ctx context.Context, id ulid.ULID, active bool) error {
	n, err := r.queries.SetScheduleActive(ctx, active, time.Now().UTC(), id.String())
	if err != nil {
		return mapError(err, "schedule", id.String())
	}
	if n == 0 {
		return core.NewNotFoundError("schedule", id.String())
	}
	return nil
}

func (r *SQLiteRepository) DeleteSchedule(ctx context.Context, id ulid.ULID) error {
	n, err := r.queries.DeleteSchedule(ctx, id.String())
	if err != nil {
		return mapError(err, "schedule", id.String())
	}
	if n == 0 {
		return core.NewNotFoundError("schedule", id.String())
	}
	return nil
}

func (r *SQLiteRepository) WithSchedule(ctx context.Context, id ulid.ULID, fn func(ports.ScheduleTx) error) error {
	return r.inTx(ctx, func(q *Queries) error {
		row, err := q.GetSchedule(ctx, id.String())
		if err != nil {
			return mapError(err, "schedule", id.String())
		}
		s, err := toSchedule(row)
		if err != nil {
			return err
		}
		return fn(&sqliteScheduleTx{q: q, schedule: s})
	})
}

type sqliteScheduleTx struct {
	q        *Queries
	schedule core.Schedule
}

func (tx *sqliteScheduleTx) Schedule() core.Schedule { return tx.schedule }

func (tx *sqliteScheduleTx) InsertTransaction(ctx context.Context, t core.Transaction) error {
	return insertTransaction(ctx, tx.q, t)
}

func (tx *sqliteScheduleTx) AdvanceAnchor(ctx context.Context, from, to core.Date) error {
	n, err := tx.q.AdvanceScheduleAnchor(ctx, AdvanceScheduleAnchorParams{
		To:        nullDate(to),
		UpdatedAt: time.Now().UTC(),
		ID:        tx.schedule.ID.String(),
		From:      nullDate(from),
	})
	if err != nil {
		return mapError(err, "schedule", tx.schedule.ID.String())
	}
	if n == 0 {
		return fmt.Errorf("schedule %s anchor is not %s: %w", tx.schedule.ID, from, core.ErrConflict)
	}
	return nil
}

// Transactions

func insertTransaction(ctx context.Context, q *Queries, t core.Transaction) error {
	if err := q.CreateTransaction(ctx, transactionRow(t)); err != nil {
		return mapError(err, "transaction", t.ID.String())
	}
	for _, tag := range t.TagIDs {
		if err := q.InsertTransactionTag(ctx, t.ID.String(), tag.String()); err != nil {
			return mapError(err, "transaction tag", tag.String())
		}
	}
	return nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	return r.inTx(ctx, func(q *Queries) error {
		return insertTransaction(ctx, q, t)
	})
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id ulid.ULID) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id.String())
	if err != nil {
		return core.Transaction{}, mapError(err, "transaction", id.String())
	}
	tags, err := r.queries.ListTransactionTags(ctx, row.ID)
	if err != nil {
		return core.Transaction{}, mapError(err, "transaction tags", row.ID)
	}
	return toTransaction(row, tags)
}

func (r *SQLiteRepository) UpdateTransactionAmount(ctx context.Context, id ulid.ULID, amount core.Money) error {
	n, err := r.queries.UpdateTransactionAmount(ctx, amount.Cents, id.String())
	if err != nil {
		return mapError(err, "transaction", id.String())
	}
	if n == 0 {
		return core.NewNotFoundError("transaction", id.String())
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id ulid.ULID) error {
	n, err := r.queries.DeleteTransaction(ctx, id.String())
	if err != nil {
		return mapError(err, "transaction", id.String())
	}
	if n == 0 {
		return core.NewNotFoundError("transaction", id.String())
	}
	return nil
}

func (r *SQLiteRepository) TransactionsForSchedule(ctx context.Context, scheduleID ulid.ULID) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsBySchedule(ctx, scheduleID.String())
	if err != nil {
		return nil, mapError(err, "transactions for schedule", scheduleID.String())
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tags, err := r.queries.ListTransactionTags(ctx, row.ID)
		if err != nil {
			return nil, mapError(err, "transaction tags", row.ID)
		}
		t, err := toTransaction(row, tags)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Notifications

func (r *SQLiteRepository) SaveNotification(ctx context.Context, n core.Notification) (bool, error) {
	row, err := notificationRow(n)
	if err != nil {
		return false, err
	}
	affected, err := r.queries.InsertNotification(ctx, row)
	if err != nil {
		return false, mapError(err, "notification", n.ID)
	}
	return affected > 0, nil
}

// NotificationsForUser returns the newest notifications first. A limit of
// zero or less returns all of them.
func (r *SQLiteRepository) NotificationsForUser(ctx context.Context, userID ulid.ULID, limit int) ([]core.Notification, error) {
	l := int64(limit)
	if l <= 0 {
		l = -1
	}
	rows, err := r.queries.ListNotificationsByUser(ctx, userID.String(), l)
	if err != nil {
		return nil, mapError(err, "notifications for user", userID.String())
	}
	out := make([]core.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := toNotification(row)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Notification preferences

func (r *SQLiteRepository) NotificationPreference(ctx context.Context, userID ulid.ULID, kind core.NotificationKind) (core.NotificationPreference, error) {
	row, err := r.queries.GetNotificationPreference(ctx, userID.String(), string(kind))
	if err != nil {
		return core.NotificationPreference{}, mapError(err, "notification preference", userID.String()+"/"+string(kind))
	}
	return toPreference(row)
}

func (r *SQLiteRepository) SaveNotificationPreference(ctx context.Context, p core.NotificationPreference) error {
	if err := r.queries.UpsertNotificationPreference(ctx, preferenceRow(p)); err != nil {
		return mapError(err, "notification preference", p.UserID.String()+"/"+string(p.Kind))
	}
	return nil
}

func (r *SQLiteRepository) NotificationPreferences(ctx context.Context, userID ulid.ULID) ([]core.NotificationPreference, error) {
	rows, err := r.queries.ListNotificationPreferences(ctx, userID.String())
	if err != nil {
		return nil, mapError(err, "notification preferences for user", userID.String())
	}
	out := make([]core.NotificationPreference, 0, len(rows))
	for _, row := range rows {
		p, err := toPreference(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
