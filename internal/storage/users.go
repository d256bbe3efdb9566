package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyLogin is returned when an identity carries no login name.
var ErrEmptyLogin = errors.New("empty login")

// GetOrCreateUser maps a tailnet login (or the configured dev login) to
// the owner id that sessions, catalog exercises and logged sets are keyed
// by. Repeat calls refresh last_seen and, when non-empty, the display name.
func (db *DB) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return 0, ErrEmptyLogin
	}
	var ownerID int
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (login, display_name)
		VALUES ($1, $2)
		ON CONFLICT (login) DO UPDATE
			SET last_seen = NOW(), display_name = COALESCE(NULLIF($2, ''), users.display_name)
		RETURNING id
	`, login, displayName).Scan(&ownerID)
	if err != nil {
		return 0, fmt.Errorf("upserting user %s: %w", login, err)
	}
	return ownerID, nil
}
