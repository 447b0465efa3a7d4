package model

import "time"

// Membership roles stored in board_members.role.  Ownership is decided by
// boards.owner_id; an "owner" row is written for the creator so listings
// can join on memberships alone, but it grants nothing on its own.
const (
    RoleOwner  = "owner"
    RoleAdmin  = "admin"
    RoleMember = "member"
)

// BoardMember grants a user a role on a board.
//
// Fields:
//  ID             – primary key identifier (UUID).
//  BoardID        – board the membership applies to.
//  UserID         – member user.
//  Role           – owner, admin or member.
//  LastAccessedAt – last time the member opened the board (nullable).
//  CreatedAt      – creation timestamp.
type BoardMember struct {
    ID             string     // board_members.id
    BoardID        string     // board_members.board_id
    UserID         string     // board_members.user_id
    Role           string     // board_members.role
    LastAccessedAt *time.Time // board_members.last_accessed_at (nullable)
    CreatedAt      time.Time  // board_members.created_at
}
