package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"smarthome/internal/models"
)

type UserSQLite struct {
	db *sql.DB
}

func NewUserSQLite(db *sql.DB) *UserSQLite {
	return &UserSQLite{db: db}
}

var _ Users = (*UserSQLite)(nil)

const (
	selectUserByTokenSQL = `
		SELECT id, fake_access_token, fake_refresh_token, homegraph
		FROM users WHERE fake_access_token = ?
	`
	updateHomegraphSQL = `UPDATE users SET homegraph = ? WHERE id = ?`
	upsertUserSQL      = `
		INSERT INTO users (id, fake_access_token, fake_refresh_token, homegraph)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			fake_access_token=excluded.fake_access_token,
			fake_refresh_token=excluded.fake_refresh_token,
			homegraph=excluded.homegraph
	`
)

// GetByAccessToken finds the user owning a bearer token. A well-formed store
// never holds the same token twice, so the first row is the only row.
func (r *UserSQLite) GetByAccessToken(ctx context.Context, token string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, selectUserByTokenSQL, token).
		Scan(&u.ID, &u.FakeAccessToken, &u.FakeRefreshToken, &u.HomegraphEnabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("select user by token: %w", err)
	}
	return &u, nil
}

func (r *UserSQLite) SetHomegraph(ctx context.Context, userID string, enabled bool) error {
	if _, err := r.db.ExecContext(ctx, updateHomegraphSQL, enabled, userID); err != nil {
		return fmt.Errorf("set homegraph=%v for user %q: %w", enabled, userID, err)
	}
	return nil
}

// Upsert writes a user record; used by the startup fixture and tests.
func (r *UserSQLite) Upsert(ctx context.Context, u models.User) error {
	_, err := r.db.ExecContext(ctx, upsertUserSQL,
		u.ID, u.FakeAccessToken, u.FakeRefreshToken, u.HomegraphEnabled)
	if err != nil {
		return fmt.Errorf("upsert user %q: %w", u.ID, err)
	}
	return nil
}
