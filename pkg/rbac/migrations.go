package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/apim-console/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the membership store migrations. The SQL is kept to
// the subset PostgreSQL and SQLite share.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create role definition table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_definitions (
					scope VARCHAR(32) NOT NULL,
					name VARCHAR(128) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					is_default BOOLEAN NOT NULL DEFAULT FALSE,
					permissions TEXT NOT NULL DEFAULT '{}',
					PRIMARY KEY (scope, name)
				);
			`,
		},
		{
			Version:     2,
			Description: "Create membership table",
			SQL: `
				CREATE TABLE IF NOT EXISTS memberships (
					user_id VARCHAR(255) NOT NULL,
					reference_type VARCHAR(32) NOT NULL,
					reference_id VARCHAR(255) NOT NULL,
					role_scope VARCHAR(32) NOT NULL,
					role_name VARCHAR(128) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (user_id, reference_type, reference_id, role_scope, role_name)
				);

				CREATE INDEX IF NOT EXISTS idx_memberships_lookup
					ON memberships(user_id, reference_type, role_scope);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rbac_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM rbac_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		log := logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		})
		log.Info("Running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rbac_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		log.Info("Migration completed")
	}

	return nil
}
