package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrRoleNotFound is returned when a role definition does not exist
var ErrRoleNotFound = errors.New("role not found")

// MembershipStore is the read side of the membership and role catalog
type MembershipStore interface {
	// FindRoles returns the roles of userID within scope on any of the given
	// references of refType.
	FindRoles(ctx context.Context, refType ReferenceType, refIDs []string, userID string, scope RoleScope) ([]Role, error)
	// GetRoleDefinition loads what a role grants
	GetRoleDefinition(ctx context.Context, scope RoleScope, name string) (*RoleDefinition, error)
}

// SQLStore implements MembershipStore on database/sql
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a new membership store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Ping checks that the underlying database is reachable
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindRoles retrieves memberships of a user on a set of references
func (s *SQLStore) FindRoles(ctx context.Context, refType ReferenceType, refIDs []string, userID string, scope RoleScope) ([]Role, error) {
	if len(refIDs) == 0 {
		return nil, nil
	}

	args := []interface{}{userID, string(refType), string(scope)}
	placeholders := make([]string, len(refIDs))
	for i, id := range refIDs {
		args = append(args, id)
		placeholders[i] = "$" + strconv.Itoa(len(args))
	}

	query := `
		SELECT role_scope, role_name, reference_id
		FROM memberships
		WHERE user_id = $1 AND reference_type = $2 AND role_scope = $3
		  AND reference_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY role_scope, role_name, reference_id
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		var roleScope string
		if err := rows.Scan(&roleScope, &role.Name, &role.ReferenceID); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		role.Scope = RoleScope(roleScope)
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read memberships: %w", err)
	}

	return roles, nil
}

// GetRoleDefinition retrieves a role definition by scope and name
func (s *SQLStore) GetRoleDefinition(ctx context.Context, scope RoleScope, name string) (*RoleDefinition, error) {
	query := `
		SELECT scope, name, description, is_system, is_default, permissions
		FROM role_definitions
		WHERE scope = $1 AND name = $2
	`

	var def RoleDefinition
	var defScope, permissionsJSON string
	err := s.db.QueryRowContext(ctx, query, string(scope), name).Scan(
		&defScope,
		&def.Name,
		&def.Description,
		&def.System,
		&def.Default,
		&permissionsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s:%s", ErrRoleNotFound, scope, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role definition: %w", err)
	}

	def.Scope = RoleScope(defScope)
	if err := json.Unmarshal([]byte(permissionsJSON), &def.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}

	return &def, nil
}

// UpsertRoleDefinition creates or replaces a role definition
func (s *SQLStore) UpsertRoleDefinition(ctx context.Context, def RoleDefinition) error {
	if def.Scope == "" || def.Name == "" {
		return errors.New("role definition needs a scope and a name")
	}

	permissions := def.Permissions
	if permissions == nil {
		permissions = map[Permission]string{}
	}
	permissionsJSON, err := json.Marshal(permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO role_definitions (scope, name, description, is_system, is_default, permissions)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (scope, name) DO UPDATE SET
			description = excluded.description,
			is_system = excluded.is_system,
			is_default = excluded.is_default,
			permissions = excluded.permissions
	`

	_, err = s.db.ExecContext(ctx, query,
		string(def.Scope),
		def.Name,
		def.Description,
		def.System,
		def.Default,
		string(permissionsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert role definition: %w", err)
	}
	return nil
}

// AddMembership grants a role to a user on a reference. Granting the same
// role twice is a no-op.
func (s *SQLStore) AddMembership(ctx context.Context, userID string, refType ReferenceType, refID string, role Role) error {
	query := `
		INSERT INTO memberships (user_id, reference_type, reference_id, role_scope, role_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query, userID, string(refType), refID, string(role.Scope), role.Name)
	if err != nil {
		return fmt.Errorf("failed to add membership: %w", err)
	}
	return nil
}

// RemoveMembership revokes a role from a user on a reference
func (s *SQLStore) RemoveMembership(ctx context.Context, userID string, refType ReferenceType, refID string, role Role) error {
	query := `
		DELETE FROM memberships
		WHERE user_id = $1 AND reference_type = $2 AND reference_id = $3 AND role_scope = $4 AND role_name = $5
	`

	_, err := s.db.ExecContext(ctx, query, userID, string(refType), refID, string(role.Scope), role.Name)
	if err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}
	return nil
}
