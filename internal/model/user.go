package model

import "time"

// User represents an account row in the `users` table.  The json tags
// are omitted because these structs are used by the repository layer;
// handlers define their own response shapes.
//
// Fields:
//  ID           – primary key identifier (UUID).
//  Email        – unique email address, stored lower-cased.
//  Name         – display name, 1..50 characters.
//  Avatar       – optional avatar URL.
//  PasswordHash – bcrypt hashed password.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           string    // users.id
    Email        string    // users.email
    Name         string    // users.name
    Avatar       *string   // users.avatar (nullable)
    PasswordHash string    // users.password_hash
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the issued token is stored.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null while still live).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    string     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
