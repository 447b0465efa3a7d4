// Package queue defines the board activity messages exchanged over
// RabbitMQ and the consumer that records them.
package queue

// ActivityQueue is the durable queue board events are routed to.
const ActivityQueue = "board.activity"

const (
	BoardCreated = "board.created"
	BoardDeleted = "board.deleted"
	MemberAdded  = "board.member_added"
)

// BoardEvent is published after a board mutation commits.  It carries
// enough to write an activity line without querying the database.
type BoardEvent struct {
	Type       string `json:"type"`
	BoardID    string `json:"board_id"`
	BoardTitle string `json:"board_title"`
	ActorID    string `json:"actor_id"`
	SubjectID  string `json:"subject_id,omitempty"` // user affected, for membership events
	OccurredAt string `json:"occurred_at"`
}
