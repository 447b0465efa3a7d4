package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/taskboard/internal/access"
	"github.com/iliyamo/taskboard/internal/model"
)

// MemberRepo reads and writes board_members.  It satisfies
// access.MembershipFinder and access.AccessToucher.
type MemberRepo struct{ db *sql.DB }

func NewMemberRepo(db *sql.DB) *MemberRepo { return &MemberRepo{db: db} }

// FindMembership returns the caller's role on a board, or nil when no row
// exists.
func (r *MemberRepo) FindMembership(ctx context.Context, boardID, userID string) (*access.Role, error) {
	var role string
	err := r.db.QueryRowContext(ctx,
		"SELECT role FROM board_members WHERE board_id = ? AND user_id = ? LIMIT 1",
		boardID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := access.Role(role)
	return &out, nil
}

// TouchLastAccessed stamps the membership row if there is one.  It is an
// update-by-filter, so a missing row or concurrent touches are harmless.
func (r *MemberRepo) TouchLastAccessed(ctx context.Context, boardID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE board_members SET last_accessed_at = NOW() WHERE board_id = ? AND user_id = ?",
		boardID, userID)
	return err
}

// Add grants userID a role on the board.  A second grant for the same
// user yields ErrAlreadyMember.
func (r *MemberRepo) Add(ctx context.Context, boardID, userID string, role access.Role) (model.BoardMember, error) {
	m := model.BoardMember{
		ID:        uuid.NewString(),
		BoardID:   boardID,
		UserID:    userID,
		Role:      string(role),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO board_members (id, board_id, user_id, role, created_at) VALUES (?,?,?,?,?)",
		m.ID, m.BoardID, m.UserID, m.Role, m.CreatedAt)
	if isDuplicate(err) {
		return model.BoardMember{}, ErrAlreadyMember
	}
	if err != nil {
		return model.BoardMember{}, err
	}
	return m, nil
}
