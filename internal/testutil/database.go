// Package testutil provides shared test databases and fixtures.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/forecast-flow/internal/service"
	"github.com/Veraticus/forecast-flow/internal/storage"
)

// TestDB is a migrated in-memory database scoped to one test.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a migrated in-memory database and seeds it with the
// given fixtures. The database is closed when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t,
//		testutil.NewFixture().
//			WithBusinessUnit("BB1").
//			WithCategory("5000-A001", "static").
//			WithManager("E1", "BB1"),
//	)
func SetupTestDB(t *testing.T, fixtures ...*Fixture) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	for _, f := range fixtures {
		if err := f.Apply(ctx, store); err != nil {
			t.Fatalf("failed to apply fixture: %v", err)
		}
	}

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// WithTransaction executes fn within a transaction that is always rolled back.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
