// Package postgres is the ports.Store backed by PostgreSQL through gorm.
// Units of work lock the goal or schedule row with SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/ports"
)

// Config holds the connection pool settings.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Store struct {
	db     *gorm.DB
	logger *log.Logger
}

var _ ports.Store = (*Store)(nil)

// Open connects, sizes the pool and migrates the schema. A nil logger
// discards.
func Open(cfg Config, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(models()...); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate postgres schema: %w", err)
	}
	logger.Info("Postgres store ready")

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// mapError translates gorm and pgx errors into the core taxonomy.
func mapError(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.NewNotFoundError(resource, id)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s %s: %w: %v", resource, id, core.ErrDuplicate, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s %s: %w: %v", resource, id, core.ErrDuplicate, err)
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%s %s: %w: %v", resource, id, core.ErrConflict, err)
		}
	}
	return fmt.Errorf("%s %s: %w", resource, id, err)
}

// Goals

func (s *Store) CreateGoal(ctx context.Context, g core.Goal) error {
	m, err := toGoalModel(g)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		for _, c := range g.CategoryIDs {
			row := goalCategoryModel{GoalID: m.ID, CategoryID: c.String()}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return err
			}
		}
		for _, t := range g.TagIDs {
			row := goalTagModel{GoalID: m.ID, TagID: t.String()}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return mapError(err, "goal", m.ID)
}

func (s *Store) GetGoal(ctx context.Context, id ulid.ULID) (core.Goal, error) {
	var m goalModel
	if err := s.db.WithContext(ctx).Where("id = ?", id.String()).First(&m).Error; err != nil {
		return core.Goal{}, mapError(err, "goal", id.String())
	}
	return hydrateGoal(ctx, s.db, m)
}

func hydrateGoal(ctx context.Context, db *gorm.DB, m goalModel) (core.Goal, error) {
	var categories, tags []string
	if err := db.WithContext(ctx).Model(&goalCategoryModel{}).
		Where("goal_id = ?", m.ID).Order("category_id").
		Pluck("category_id", &categories).Error; err != nil {
		return core.Goal{}, mapError(err, "goal categories", m.ID)
	}
	if err := db.WithContext(ctx).Model(&goalTagModel{}).
		Where("goal_id = ?", m.ID).Order("tag_id").
		Pluck("tag_id", &tags).Error; err != nil {
		return core.Goal{}, mapError(err, "goal tags", m.ID)
	}
	return toGoal(m, categories, tags)
}

func (s *Store) ListGoalIDs(ctx context.Context) ([]ulid.ULID, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&goalModel{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, mapError(err, "goals", "list")
	}
	return parseIDs(ids)
}

func (s *Store) ActiveAutoTrackedGoals(ctx context.Context, userID ulid.ULID) ([]core.Goal, error) {
	var ms []goalModel
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND auto_track", userID.String(), string(core.GoalActive)).
		Order("id").Find(&ms).Error
	if err != nil {
		return nil, mapError(err, "goals for user", userID.String())
	}
	goals := make([]core.Goal, 0, len(ms))
	for _, m := range ms {
		g, err := hydrateGoal(ctx, s.db, m)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, nil
}

func (s *Store) GetContribution(ctx context.Context, id ulid.ULID) (core.Contribution, error) {
	var m contributionModel
	if err := s.db.WithContext(ctx).Where("id = ?", id.String()).First(&m).Error; err != nil {
		return core.Contribution{}, mapError(err, "contribution", id.String())
	}
	return toContribution(m)
}

func (s *Store) ContributionsForTransaction(ctx context.Context, transactionID ulid.ULID) ([]core.Contribution, error) {
	var ms []contributionModel
	err := s.db.WithContext(ctx).Where("transaction_id = ?", transactionID.String()).
		Order("created_at, id").Find(&ms).Error
	if err != nil {
		return nil, mapError(err, "contributions for transaction", transactionID.String())
	}
	return toContributions(ms)
}

func (s *Store) ContributionsSince(ctx context.Context, goalID ulid.ULID, since time.Time) ([]core.Contribution, error) {
	var ms []contributionModel
	err := s.db.WithContext(ctx).Where("goal_id = ? AND created_at >= ?", goalID.String(), since.UTC()).
		Order("created_at, id").Find(&ms).Error
	if err != nil {
		return nil, mapError(err, "contributions for goal", goalID.String())
	}
	return toContributions(ms)
}

func (s *Store) DeleteGoal(ctx context.Context, id ulid.ULID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id.String()).Delete(&goalModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		for _, m := range []any{&contributionModel{}, &goalCategoryModel{}, &goalTagModel{}} {
			if err := tx.Where("goal_id = ?", id.String()).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return mapError(err, "goal", id.String())
}

func (s *Store) WithGoal(ctx context.Context, id ulid.ULID, fn func(ports.GoalTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m goalModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id.String()).First(&m).Error
		if err != nil {
			return mapError(err, "goal", id.String())
		}
		g, err := hydrateGoal(ctx, tx, m)
		if err != nil {
			return err
		}
		return fn(&goalTx{db: tx, goal: g})
	})
}

type goalTx struct {
	db   *gorm.DB
	goal core.Goal
}

func (tx *goalTx) Goal() core.Goal { return tx.goal }

func (tx *goalTx) Contributions(ctx context.Context) ([]core.Contribution, error) {
	var ms []contributionModel
	err := tx.db.WithContext(ctx).Where("goal_id = ?", tx.goal.ID.String()).
		Order("created_at, id").Find(&ms).Error
	if err != nil {
		return nil, mapError(err, "contributions for goal", tx.goal.ID.String())
	}
	return toContributions(ms)
}

func (tx *goalTx) InsertContribution(ctx context.Context, c core.Contribution) error {
	if c.GoalID != tx.goal.ID {
		return fmt.Errorf("contribution for goal %s inserted under goal %s", c.GoalID, tx.goal.ID)
	}
	m := toContributionModel(c)
	return mapError(tx.db.WithContext(ctx).Create(&m).Error, "contribution", m.ID)
}

func (tx *goalTx) DeleteContribution(ctx context.Context, id ulid.ULID) error {
	res := tx.db.WithContext(ctx).
		Where("id = ? AND goal_id = ?", id.String(), tx.goal.ID.String()).
		Delete(&contributionModel{})
	if res.Error != nil {
		return mapError(res.Error, "contribution", id.String())
	}
	if res.RowsAffected == 0 {
		return core.NewNotFoundError("contribution", id.String())
	}
	return nil
}

func (tx *goalTx) UpdateContributionAmount(ctx context.Context, id ulid.ULID, amount core.Money) error {
	res := tx.db.WithContext(ctx).Model(&contributionModel{}).
		Where("id = ? AND goal_id = ?", id.String(), tx.goal.ID.String()).
		Update("amount_cents", amount.Cents)
	if res.Error != nil {
		return mapError(res.Error, "contribution", id.String())
	}
	if res.RowsAffected == 0 {
		return core.NewNotFoundError("contribution", id.String())
	}
	return nil
}

func (tx *goalTx) SaveProgress(ctx context.Context, g core.Goal) error {
	res := tx.db.WithContext(ctx).Model(&goalModel{}).
		Where("id = ? AND version = ?", g.ID.String(), g.Version).
		Updates(map[string]any{
			"current_amount_cents": g.CurrentAmount.Cents,
			"status":               string(g.Status),
			"completion_date":      datePtr(g.CompletionDate),
			"updated_at":           g.UpdatedAt.UTC(),
			"version":              gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return mapError(res.Error, "goal", g.ID.String())
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("goal %s version %d: %w", g.ID, g.Version, core.ErrConflict)
	}
	return nil
}

// Schedules

func (s *Store) CreateSchedule(ctx context.Context, sc core.Schedule) error {
	m := toScheduleModel(sc)
	return mapError(s.db.WithContext(ctx).Create(&m).Error, "schedule", m.ID)
}

func (s *Store) GetSchedule(ctx context.Context, id ulid.ULID) (core.Schedule, error) {
	var m scheduleModel
	if err := s.db.WithContext(ctx).Where("id = ?", id.String()).First(&m).Error; err != nil {
		return core.Schedule{}, mapError(err, "schedule", id.String())
	}
	return toSchedule(m)
}

func (s *Store) ActiveSchedules(ctx context.Context) ([]core.Schedule, error) {
	return activeSchedules(s.db.WithContext(ctx).Where("is_active"), "active")
}

func (s *Store) ActiveSchedulesForUser(ctx context.Context, userID ulid.ULID) ([]core.Schedule, error) {
	q := s.db.WithContext(ctx).Where("is_active AND user_id = ?", userID.String())
	return activeSchedules(q, userID.String())
}

func activeSchedules(q *gorm.DB, label string) ([]core.Schedule, error) {
	var ms []scheduleModel
	if err := q.Order("id").Find(&ms).Error; err != nil {
		return nil, mapError(err, "schedules", label)
	}
	out := make([]core.Schedule, 0, len(ms))
	for _, m := range ms {
		sc, err := toSchedule(m)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *Store) SetScheduleActive(ctx context.Context, id ulid.ULID, active bool) error {
	res := s.db.WithContext(ctx).Model(&scheduleModel{}).Where("id = ?", id.String()).
		Updates(map[string]any{"is_active": active, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return mapError(res.Error, "schedule", id.String())
	}
	if res.RowsAffected == 0 {
		return core.NewNotFoundError("schedule", id.String())
	}
	return nil
}

func (s *Store) DeleteSchedule(ctx context.Context, id ulid.ULID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&transactionModel{}).Where("recurring_schedule_id = ?", id.String()).
			Update("recurring_schedule_id", nil).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id.String()).Delete(&scheduleModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return mapError(err, "schedule", id.String())
}

func (s *Store) WithSchedule(ctx context.Context, id ulid.ULID, fn func(ports.ScheduleTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m scheduleModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id.String()).First(&m).Error
		if err != nil {
			return mapError(err, "schedule", id.String())
		}
		sc, err := toSchedule(m)
		if err != nil {
			return err
		}
		return fn(&scheduleTx{db: tx, schedule: sc})
	})
}

type scheduleTx struct {
	db       *gorm.DB
	schedule core.Schedule
}

func (tx *scheduleTx) Schedule() core.Schedule { return tx.schedule }

func (tx *scheduleTx) InsertTransaction(ctx context.Context, t core.Transaction) error {
	// A failed statement aborts a Postgres transaction, so the insert runs
	// under a savepoint and the caller may still roll back cleanly.
	return tx.db.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		return insertTransaction(sp, t)
	})
}

func (tx *scheduleTx) AdvanceAnchor(ctx context.Context, from, to core.Date) error {
	q := tx.db.WithContext(ctx).Model(&scheduleModel{}).Where("id = ?", tx.schedule.ID.String())
	if from.IsEmpty() {
		q = q.Where("last_generated_date IS NULL")
	} else {
		q = q.Where("last_generated_date = ?", from.Time)
	}
	res := q.Updates(map[string]any{
		"last_generated_date": datePtr(to),
		"updated_at":          time.Now().UTC(),
	})
	if res.Error != nil {
		return mapError(res.Error, "schedule", tx.schedule.ID.String())
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("schedule %s anchor is not %s: %w", tx.schedule.ID, from, core.ErrConflict)
	}
	return nil
}

// Transactions

func insertTransaction(db *gorm.DB, t core.Transaction) error {
	m := toTransactionModel(t)
	if err := db.Create(&m).Error; err != nil {
		return mapError(err, "transaction", m.ID)
	}
	for _, tag := range t.TagIDs {
		row := transactionTagModel{TransactionID: m.ID, TagID: tag.String()}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return mapError(err, "transaction tag", row.TagID)
		}
	}
	return nil
}

func (s *Store) CreateTransaction(ctx context.Context, t core.Transaction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertTransaction(tx, t)
	})
}

func (s *Store) transactionTags(ctx context.Context, id string) ([]string, error) {
	var tags []string
	err := s.db.WithContext(ctx).Model(&transactionTagModel{}).
		Where("transaction_id = ?", id).Order("tag_id").Pluck("tag_id", &tags).Error
	if err != nil {
		return nil, mapError(err, "transaction tags", id)
	}
	return tags, nil
}

func (s *Store) GetTransaction(ctx context.Context, id ulid.ULID) (core.Transaction, error) {
	var m transactionModel
	if err := s.db.WithContext(ctx).Where("id = ?", id.String()).First(&m).Error; err != nil {
		return core.Transaction{}, mapError(err, "transaction", id.String())
	}
	tags, err := s.transactionTags(ctx, m.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	return toTransaction(m, tags)
}

func (s *Store) UpdateTransactionAmount(ctx context.Context, id ulid.ULID, amount core.Money) error {
	res := s.db.WithContext(ctx).Model(&transactionModel{}).Where("id = ?", id.String()).
		Update("amount_cents", amount.Cents)
	if res.Error != nil {
		return mapError(res.Error, "transaction", id.String())
	}
	if res.RowsAffected == 0 {
		return core.NewNotFoundError("transaction", id.String())
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id ulid.ULID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id.String()).Delete(&transactionModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("transaction_id = ?", id.String()).Delete(&transactionTagModel{}).Error
	})
	return mapError(err, "transaction", id.String())
}

func (s *Store) TransactionsForSchedule(ctx context.Context, scheduleID ulid.ULID) ([]core.Transaction, error) {
	var ms []transactionModel
	err := s.db.WithContext(ctx).Where("recurring_schedule_id = ?", scheduleID.String()).
		Order("transaction_date, id").Find(&ms).Error
	if err != nil {
		return nil, mapError(err, "transactions for schedule", scheduleID.String())
	}
	out := make([]core.Transaction, 0, len(ms))
	for _, m := range ms {
		tags, err := s.transactionTags(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		t, err := toTransaction(m, tags)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Notifications

func (s *Store) SaveNotification(ctx context.Context, n core.Notification) (bool, error) {
	m, err := toNotificationModel(n)
	if err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return false, mapError(res.Error, "notification", n.ID)
	}
	return res.RowsAffected > 0, nil
}

// NotificationsForUser returns the newest notifications first. A limit of
// zero or less returns all of them.
func (s *Store) NotificationsForUser(ctx context.Context, userID ulid.ULID, limit int) ([]core.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID.String()).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ms []notificationModel
	if err := q.Find(&ms).Error; err != nil {
		return nil, mapError(err, "notifications for user", userID.String())
	}
	out := make([]core.Notification, 0, len(ms))
	for _, m := range ms {
		n, err := toNotification(m)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Notification preferences

func (s *Store) NotificationPreference(ctx context.Context, userID ulid.ULID, kind core.NotificationKind) (core.NotificationPreference, error) {
	var m preferenceModel
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID.String(), string(kind)).
		First(&m).Error
	if err != nil {
		return core.NotificationPreference{}, mapError(err, "notification preference", userID.String()+"/"+string(kind))
	}
	return toPreference(m)
}

func (s *Store) SaveNotificationPreference(ctx context.Context, p core.NotificationPreference) error {
	m := toPreferenceModel(p)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "threshold", "updated_at"}),
	}).Create(&m).Error
	return mapError(err, "notification preference", m.UserID+"/"+m.Kind)
}

func (s *Store) NotificationPreferences(ctx context.Context, userID ulid.ULID) ([]core.NotificationPreference, error) {
	var ms []preferenceModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID.String()).Order("kind").Find(&ms).Error; err != nil {
		return nil, mapError(err, "notification preferences for user", userID.String())
	}
	out := make([]core.NotificationPreference, 0, len(ms))
	for _, m := range ms {
		p, err := toPreference(m)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
