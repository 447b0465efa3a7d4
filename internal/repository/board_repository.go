package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/taskboard/internal/model"
)

// BoardRepo covers the boards table plus the read models built on top of
// it.  Permission checks live in the access package; nothing here filters
// by caller except ListForUser.
type BoardRepo struct{ db *sql.DB }

func NewBoardRepo(db *sql.DB) *BoardRepo { return &BoardRepo{db: db} }

// MemberInfo is a user shown on a board card or detail page.  Role is
// empty in listings.
type MemberInfo struct {
	ID     string
	Name   string
	Avatar *string
	Role   string
}

type ListInfo struct {
	model.List
	CardsCount int
}

// BoardListItem is one row of "my boards".  LastAccessedAt belongs to the
// caller and is nil for boards the caller owns without a membership row.
type BoardListItem struct {
	model.Board
	LastAccessedAt *time.Time
	ListsCount     int
	CardsCount     int
	Members        []MemberInfo
}

type BoardDetail struct {
	model.Board
	Members []MemberInfo
	Lists   []ListInfo
}

const boardColumns = "b.id, b.title, b.background_color, b.owner_id, b.created_at, b.updated_at"

// FindBoardOwner returns the owner of a board.  found is false with a nil
// error when the board does not exist.
func (r *BoardRepo) FindBoardOwner(ctx context.Context, boardID string) (string, bool, error) {
	var ownerID string
	err := r.db.QueryRowContext(ctx, "SELECT owner_id FROM boards WHERE id = ?", boardID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ownerID, true, nil
}

// Create inserts the board and an owner membership row for its creator in
// one transaction.
func (r *BoardRepo) Create(ctx context.Context, ownerID, title, color string) (model.Board, error) {
	if color == "" {
		color = model.DefaultBackgroundColor
	}
	now := time.Now().UTC().Truncate(time.Second)
	b := model.Board{
		ID:              uuid.NewString(),
		Title:           title,
		BackgroundColor: color,
		OwnerID:         ownerID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Board{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO boards (id, title, background_color, owner_id, created_at, updated_at) VALUES (?,?,?,?,?,?)",
		b.ID, b.Title, b.BackgroundColor, b.OwnerID, b.CreatedAt, b.UpdatedAt); err != nil {
		return model.Board{}, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO board_members (id, board_id, user_id, role) VALUES (?,?,?,?)",
		uuid.NewString(), b.ID, ownerID, model.RoleOwner); err != nil {
		return model.Board{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Board{}, err
	}
	return b, nil
}

// Get returns the bare board row.
func (r *BoardRepo) Get(ctx context.Context, boardID string) (model.Board, error) {
	var b model.Board
	err := r.db.QueryRowContext(ctx, "SELECT "+boardColumns+" FROM boards b WHERE b.id = ?", boardID).
		Scan(&b.ID, &b.Title, &b.BackgroundColor, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Board{}, ErrBoardNotFound
	}
	return b, err
}

// GetDetail loads a board with its members and its lists ordered by
// position.
func (r *BoardRepo) GetDetail(ctx context.Context, boardID string) (*BoardDetail, error) {
	b, err := r.Get(ctx, boardID)
	if err != nil {
		return nil, err
	}
	d := &BoardDetail{Board: b, Members: []MemberInfo{}, Lists: []ListInfo{}}

	rows, err := r.db.QueryContext(ctx, `
SELECT u.id, u.name, u.avatar, m.role
FROM board_members m
JOIN users u ON u.id = m.user_id
WHERE m.board_id = ?
ORDER BY m.created_at, u.id`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			m      MemberInfo
			avatar sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Name, &avatar, &m.Role); err != nil {
			return nil, err
		}
		if avatar.Valid {
			m.Avatar = &avatar.String
		}
		d.Members = append(d.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lrows, err := r.db.QueryContext(ctx, `
SELECT l.id, l.board_id, l.title, l.position, l.created_at, COUNT(c.id)
FROM lists l
LEFT JOIN cards c ON c.list_id = l.id
WHERE l.board_id = ?
GROUP BY l.id, l.board_id, l.title, l.position, l.created_at
ORDER BY l.position ASC`, boardID)
	if err != nil {
		return nil, err
	}
	defer lrows.Close()
	for lrows.Next() {
		var l ListInfo
		if err := lrows.Scan(&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt, &l.CardsCount); err != nil {
			return nil, err
		}
		d.Lists = append(d.Lists, l)
	}
	return d, lrows.Err()
}

// ListForUser pages through the union of boards the user owns and boards
// they are a member of, most recently updated first.  total counts the
// whole union.
func (r *BoardRepo) ListForUser(ctx context.Context, userID string, page, limit int) ([]BoardListItem, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM boards b
WHERE b.owner_id = ?
   OR EXISTS (SELECT 1 FROM board_members m WHERE m.board_id = b.id AND m.user_id = ?)`,
		userID, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+boardColumns+`, me.last_accessed_at,
  (SELECT COUNT(*) FROM lists l WHERE l.board_id = b.id),
  (SELECT COUNT(*) FROM cards c JOIN lists l ON l.id = c.list_id WHERE l.board_id = b.id)
FROM boards b
LEFT JOIN board_members me ON me.board_id = b.id AND me.user_id = ?
WHERE b.owner_id = ? OR me.user_id IS NOT NULL
ORDER BY b.updated_at DESC, b.id
LIMIT ? OFFSET ?`, userID, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []BoardListItem{}
	index := map[string]int{}
	for rows.Next() {
		var (
			it       BoardListItem
			accessed sql.NullTime
		)
		if err := rows.Scan(&it.ID, &it.Title, &it.BackgroundColor, &it.OwnerID, &it.CreatedAt, &it.UpdatedAt,
			&accessed, &it.ListsCount, &it.CardsCount); err != nil {
			return nil, 0, err
		}
		if accessed.Valid {
			t := accessed.Time
			it.LastAccessedAt = &t
		}
		it.Members = []MemberInfo{}
		index[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(items) == 0 {
		return items, total, nil
	}

	args := make([]any, 0, len(items))
	for _, it := range items {
		args = append(args, it.ID)
	}
	mrows, err := r.db.QueryContext(ctx, `
SELECT m.board_id, u.id, u.name, u.avatar
FROM board_members m
JOIN users u ON u.id = m.user_id
WHERE m.board_id IN (?`+strings.Repeat(",?", len(args)-1)+`)
ORDER BY m.created_at, u.id`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer mrows.Close()
	for mrows.Next() {
		var (
			boardID string
			m       MemberInfo
			avatar  sql.NullString
		)
		if err := mrows.Scan(&boardID, &m.ID, &m.Name, &avatar); err != nil {
			return nil, 0, err
		}
		if avatar.Valid {
			m.Avatar = &avatar.String
		}
		if i, ok := index[boardID]; ok {
			items[i].Members = append(items[i].Members, m)
		}
	}
	return items, total, mrows.Err()
}

// Update applies the non-nil fields and returns the stored row.
func (r *BoardRepo) Update(ctx context.Context, boardID string, title, color *string) (model.Board, error) {
	sets := []string{}
	args := []any{}
	if title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *title)
	}
	if color != nil {
		sets = append(sets, "background_color = ?")
		args = append(args, *color)
	}
	if len(sets) > 0 {
		args = append(args, boardID)
		if _, err := r.db.ExecContext(ctx,
			"UPDATE boards SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
			return model.Board{}, err
		}
	}
	return r.Get(ctx, boardID)
}

// Delete removes the board.  Lists, cards and memberships go with it via
// ON DELETE CASCADE.
func (r *BoardRepo) Delete(ctx context.Context, boardID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM boards WHERE id = ?", boardID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBoardNotFound
	}
	return nil
}
