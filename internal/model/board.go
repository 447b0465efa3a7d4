package model

import "time"

// Board is a shared workspace holding ordered lists of cards.  A board
// always has exactly one owner recorded in owner_id; that column is the
// authority on ownership even when no membership row exists for the
// owner.
//
// Fields:
//  ID              – primary key identifier (UUID).
//  Title           – display title, 1..100 characters.
//  BackgroundColor – hex colour in #RRGGBB form.
//  OwnerID         – user ID of the board owner.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp, used for listing order.
type Board struct {
    ID              string    // boards.id
    Title           string    // boards.title
    BackgroundColor string    // boards.background_color
    OwnerID         string    // boards.owner_id
    CreatedAt       time.Time // boards.created_at
    UpdatedAt       time.Time // boards.updated_at
}

// DefaultBackgroundColor is applied when a board is created without one.
const DefaultBackgroundColor = "#0079BF"
