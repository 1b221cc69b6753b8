package rbac

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// setupTestDB opens an in-memory SQLite database with the membership schema applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err, "failed to open test database")
	// every connection to :memory: is a fresh database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(context.Background(), db, nil))
	return db
}

// setupTestStore returns a migrated store seeded with the default catalog
func setupTestStore(t *testing.T) *SQLStore {
	t.Helper()

	store := NewSQLStore(setupTestDB(t))
	require.NoError(t, SeedRoleDefinitions(context.Background(), store, DefaultRoleDefinitions()))
	return store
}

func grant(t *testing.T, store *SQLStore, userID string, refType ReferenceType, refID string, scope RoleScope, name string) {
	t.Helper()
	require.NoError(t, store.AddMembership(context.Background(), userID, refType, refID, Role{Scope: scope, Name: name}))
}

func strPtr(s string) *string {
	return &s
}
