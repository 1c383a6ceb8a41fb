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

// MemberRepository resolves consumer principals. It is the
// UserLookupService back end for domain.UserTypeMember.
type MemberRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewMemberRepository wires a PostgreSQL-backed member lookup.
func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Supports reports whether this back end serves the user type.
func (r *MemberRepository) Supports(userType domain.UserType) bool {
	return userType == domain.UserTypeMember
}

// LoadByIdentifier resolves a member by username, email, or phone.
// Members carry a single population-wide role authority.
func (r *MemberRepository) LoadByIdentifier(ctx context.Context, identifier string) (*domain.Principal, error) {
	query := r.builder.Select("id", "password_hash", "enabled").
		From("members").
		Where(squirrel.Or{
			squirrel.Eq{"username": identifier},
			squirrel.Eq{"email": identifier},
			squirrel.Eq{"phone": identifier},
		}).
		Limit(1)

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select member sql: %w", err)
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
		return nil, fmt.Errorf("select member: %w", err)
	}

	return &domain.Principal{
		SubjectID:       id,
		UserType:        domain.UserTypeMember,
		CredentialsHash: passwordHash,
		Enabled:         enabled,
		Authorities:     []string{domain.RolePrefix + "MEMBER"},
	}, nil
}

var _ port.UserLookupService = (*MemberRepository)(nil)
