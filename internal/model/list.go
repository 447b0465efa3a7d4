package model

import "time"

// List is an ordered column on a board.
type List struct {
    ID        string    // lists.id
    BoardID   string    // lists.board_id
    Title     string    // lists.title
    Position  int       // lists.position
    CreatedAt time.Time // lists.created_at
}
