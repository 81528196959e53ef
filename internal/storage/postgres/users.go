package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gametablehq/gametable/internal/auth"
)

// UserStore resolves authenticated user ids to account records. It is the
// production auth.UserGetter behind the connection gatekeeper.
type UserStore struct {
	db *pgxpool.Pool
}

// NewUserStore creates a UserStore backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

// GetUser returns the account record for id.
//
// Postcondition: Returns the User or an error wrapping auth.ErrUserNotFound.
func (s *UserStore) GetUser(ctx context.Context, id string) (auth.User, error) {
	var u auth.User
	err := s.db.QueryRow(ctx,
		`SELECT id, name, role, active FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Name, &u.Role, &u.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, fmt.Errorf("%w: %s", auth.ErrUserNotFound, id)
		}
		return auth.User{}, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}
