package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/taskboard/internal/model"
)

// TokenRepo persists refresh token hashes.  Raw tokens never reach the
// database.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp.UTC())
	return err
}

// FindByHash loads the row for a token hash whatever its state.
func (r *TokenRepo) FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var (
		t         model.RefreshToken
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, revoked_at, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &revokedAt, &t.CreatedAt)
	if err != nil {
		return model.RefreshToken{}, err
	}
	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	return t, nil
}

// ValidateRefresh returns the owning user id of a live token.  Revoked,
// expired and unknown hashes all yield sql.ErrNoRows.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (string, error) {
	t, err := r.FindByHash(ctx, tokenHash)
	if err != nil {
		return "", err
	}
	if t.RevokedAt != nil || time.Now().UTC().After(t.ExpiresAt) {
		return "", sql.ErrNoRows
	}
	return t.UserID, nil
}

// RevokeByHash marks a token as revoked and reports whether a live row
// was affected.  Two concurrent refreshes with the same token race here;
// only one sees true.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
