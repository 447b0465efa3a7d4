package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/taskboard/internal/auth"
	"github.com/iliyamo/taskboard/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,name,avatar,password_hash,created_at,updated_at"

// Create hashes password and inserts the user.  Email is stored
// lower-cased; a duplicate yields ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, email, name, password string, cost int) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return model.User{}, err
	}
	now := time.Now().UTC().Truncate(time.Second)
	u := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, name, password_hash, created_at, updated_at) VALUES (?,?,?,?,?,?)",
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email.  sql.ErrNoRows is
// returned unchanged.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u      model.User
		avatar sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &avatar, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if avatar.Valid {
		u.Avatar = &avatar.String
	}
	return u, nil
}
