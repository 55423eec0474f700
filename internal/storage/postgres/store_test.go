package postgres

import (
	"os"
	"testing"

	"finledger/internal/ports"
	"finledger/internal/storage/storetest"
)

// Runs only when POSTGRES_TEST_DSN points at a disposable database; every
// subtest truncates the schema.
func TestStore(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) ports.Store {
		s, err := Open(Config{DSN: dsn, MaxOpenConns: 4}, nil)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		err = s.db.Exec(`TRUNCATE financial_goals, goal_categories, goal_tags, goal_contributions,
			recurring_schedules, transactions, transaction_tags, notifications`).Error
		if err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}
