package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mallkit/passport/internal/core/domain"
	"github.com/mallkit/passport/internal/core/port"
	"github.com/mallkit/passport/internal/repository"
)

// SystemUserRepository resolves back-office operator principals. It is
// the UserLookupService back end for domain.UserTypeSystem.
type SystemUserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSystemUserRepository wires a PostgreSQL-backed system user lookup.
func NewSystemUserRepository(pool *pgxpool.Pool) *SystemUserRepository {
	return &SystemUserRepository{
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Supports reports whether this back end serves the user type.
func (r *SystemUserRepository) Supports(userType domain.UserType) bool {
	return userType == domain.UserTypeSystem
}

// LoadByIdentifier resolves an operator by username, email, or phone and
// assembles the authority set from assigned roles and permissions.
func (r *SystemUserRepository) LoadByIdentifier(ctx context.Context, identifier string) (*domain.Principal, error) {
	query := r.builder.Select("id", "password_hash", "enabled").
		From("sys_users").
		Where(squirrel.Or{
			squirrel.Eq{"username": identifier},
			squirrel.Eq{"email": identifier},
			squirrel.Eq{"phone": identifier},
		}).
		Limit(1)

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select system user sql: %w", err)
	}

	var (
		id           string
		passwordHash string
		enabled      bool
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&id, &passwordHash, &enabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select system user: %w", err)
	}

	authorities, err := r.loadAuthorities(ctx, id)
	if err != nil {
		return nil, err
	}

	return &domain.Principal{
		SubjectID:       id,
		UserType:        domain.UserTypeSystem,
		CredentialsHash: passwordHash,
		Enabled:         enabled,
		Authorities:     authorities,
	}, nil
}

// loadAuthorities collects permission codes plus ROLE_-prefixed role names.
func (r *SystemUserRepository) loadAuthorities(ctx context.Context, userID string) ([]string, error) {
	roleQuery := r.builder.Select("r.name").
		From("sys_roles r").
		Join("sys_user_roles ur ON ur.role_id = r.id").
		Where(squirrel.Eq{"ur.user_id": userID})

	stmt, args, err := roleQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select roles sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select roles: %w", err)
	}
	defer rows.Close()

	authorities := make([]string, 0, 8)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		if name != "" {
			authorities = append(authorities, domain.RolePrefix+name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}

	permQuery := r.builder.Select("DISTINCT p.code").
		From("sys_permissions p").
		Join("sys_role_permissions rp ON rp.permission_id = p.id").
		Join("sys_user_roles ur ON ur.role_id = rp.role_id").
		Where(squirrel.Eq{"ur.user_id": userID})

	stmt, args, err = permQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select permissions sql: %w", err)
	}

	permRows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select permissions: %w", err)
	}
	defer permRows.Close()

	for permRows.Next() {
		var code string
		if err := permRows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		if code != "" {
			authorities = append(authorities, code)
		}
	}
	if err := permRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}

	return authorities, nil
}

var _ port.UserLookupService = (*SystemUserRepository)(nil)
