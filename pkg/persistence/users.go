package persistence

import (
	"context"
	"database/sql"

	"github.com/octopus-bim/octopus/pkg/domain"
	"github.com/octopus-bim/octopus/pkg/errtypes"
)

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.querier(ctx).ExecContext(ctx,
		`INSERT INTO users (id, subject, email, display_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Subject, u.Email, u.DisplayName, u.CreatedAt)
	return err
}

// GetUserBySubject loads a user by its external principal subject, the
// lookup path used by auto-provisioning on first authenticated request.
func (s *Store) GetUserBySubject(ctx context.Context, subject string) (*domain.User, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT id, subject, email, display_name, created_at FROM users WHERE subject = ?`, subject)
	return scanUser(row)
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT id, subject, email, display_name, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.ID, &u.Subject, &u.Email, &u.DisplayName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errtypes.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
