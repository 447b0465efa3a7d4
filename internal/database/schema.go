package database

import (
	"context"
	"database/sql"
	"fmt"
)

// tables lists the CREATE statements in dependency order.  Board children
// cascade on delete so removing a board removes its lists, cards and
// memberships in one statement.
var tables = []struct {
	name string
	ddl  string
}{
	{"users", `
CREATE TABLE IF NOT EXISTS users (
  id            CHAR(36)     NOT NULL PRIMARY KEY,
  email         VARCHAR(255) NOT NULL UNIQUE,
  name          VARCHAR(50)  NOT NULL,
  avatar        VARCHAR(512) NULL,
  password_hash VARCHAR(255) NOT NULL,
  created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`},
	{"boards", `
CREATE TABLE IF NOT EXISTS boards (
  id               CHAR(36)     NOT NULL PRIMARY KEY,
  title            VARCHAR(100) NOT NULL,
  background_color CHAR(7)      NOT NULL DEFAULT '#0079BF',
  owner_id         CHAR(36)     NOT NULL,
  created_at       DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at       DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
  INDEX idx_boards_owner (owner_id),
  CONSTRAINT fk_boards_owner FOREIGN KEY (owner_id) REFERENCES users (id) ON DELETE CASCADE
)`},
	{"board_members", `
CREATE TABLE IF NOT EXISTS board_members (
  id               CHAR(36)    NOT NULL PRIMARY KEY,
  board_id         CHAR(36)    NOT NULL,
  user_id          CHAR(36)    NOT NULL,
  role             VARCHAR(16) NOT NULL,
  last_accessed_at DATETIME    NULL,
  created_at       DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE KEY uq_board_members (board_id, user_id),
  INDEX idx_board_members_user (user_id),
  CONSTRAINT fk_board_members_board FOREIGN KEY (board_id) REFERENCES boards (id) ON DELETE CASCADE,
  CONSTRAINT fk_board_members_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
  CONSTRAINT chk_board_members_role CHECK (role IN ('owner', 'admin', 'member'))
)`},
	{"lists", `
CREATE TABLE IF NOT EXISTS lists (
  id         CHAR(36)     NOT NULL PRIMARY KEY,
  board_id   CHAR(36)     NOT NULL,
  title      VARCHAR(100) NOT NULL,
  position   INT          NOT NULL DEFAULT 0,
  created_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
  INDEX idx_lists_board (board_id, position),
  CONSTRAINT fk_lists_board FOREIGN KEY (board_id) REFERENCES boards (id) ON DELETE CASCADE
)`},
	{"cards", `
CREATE TABLE IF NOT EXISTS cards (
  id          CHAR(36)     NOT NULL PRIMARY KEY,
  list_id     CHAR(36)     NOT NULL,
  title       VARCHAR(255) NOT NULL,
  description TEXT         NULL,
  position    INT          NOT NULL DEFAULT 0,
  created_at  DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
  INDEX idx_cards_list (list_id, position),
  CONSTRAINT fk_cards_list FOREIGN KEY (list_id) REFERENCES lists (id) ON DELETE CASCADE
)`},
	{"refresh_tokens", `
CREATE TABLE IF NOT EXISTS refresh_tokens (
  id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
  user_id    CHAR(36)        NOT NULL,
  token_hash CHAR(64)        NOT NULL UNIQUE,
  expires_at DATETIME        NOT NULL,
  revoked_at DATETIME        NULL,
  created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
  INDEX idx_refresh_tokens_user (user_id),
  CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
)`},
}

// Setup creates any missing table.  Existing tables are left untouched.
func Setup(ctx context.Context, db *sql.DB) error {
	for _, t := range tables {
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("failed to create missing '%s' table: %w", t.name, err)
		}
	}
	return nil
}
