// Package repository holds the MySQL data access for users, boards,
// memberships and refresh tokens.  Sentinel errors below let handlers
// branch without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrEmailExists   = errors.New("email already exists")
	ErrBoardNotFound = errors.New("board not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrAlreadyMember = errors.New("user is already a board member")
)

// isDuplicate reports a MySQL unique-key violation (error 1062).
func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
