package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tutorlab/session-guard/internal/core/domain"
)

const selectProfile = `
	SELECT id::text, role, COALESCE(status, 'active'), COALESCE(full_name, '')
	FROM public.profiles
	WHERE id = $1`

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProfileRepository reads the hosted backend's public.profiles table.
type ProfileRepository struct {
	db Querier
}

func NewProfileRepository(db Querier) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) FetchProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var (
		p    domain.Profile
		role *string
	)
	err := r.db.QueryRow(ctx, selectProfile, userID).Scan(&p.ID, &role, &p.Status, &p.FullName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("select profile: %w", err)
	}
	if role != nil {
		p.Role = domain.Role(*role)
	}
	return &p, nil
}
