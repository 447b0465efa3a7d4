// Package access decides what a user may do on a board.  Ownership comes
// from boards.owner_id and dominates any membership role; membership comes
// from board_members.  Nothing is cached: every call re-reads both rows.
package access

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/taskboard/internal/obs"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Decision is the per-request view of a caller's rights on one board.
type Decision struct {
	BoardID  string
	OwnerID  string
	Role     *Role // nil when the caller has no membership row
	IsOwner  bool
	IsAdmin  bool
	IsMember bool
}

type BoardFinder interface {
	// FindBoardOwner returns found=false with a nil error for an unknown board.
	FindBoardOwner(ctx context.Context, boardID string) (ownerID string, found bool, err error)
}

type MembershipFinder interface {
	// FindMembership returns a nil role with a nil error when no row exists.
	FindMembership(ctx context.Context, boardID, userID string) (*Role, error)
}

type AccessToucher interface {
	TouchLastAccessed(ctx context.Context, boardID, userID string) error
}

// Logger is the subset of echo.Logger used for the best-effort touch.
type Logger interface {
	Warnf(format string, args ...interface{})
}

// Level selects one of the three guards.
type Level int

const (
	LevelView Level = iota
	LevelAdminister
	LevelOwner
)

func (l Level) String() string {
	switch l {
	case LevelView:
		return "view"
	case LevelAdminister:
		return "administer"
	case LevelOwner:
		return "owner"
	}
	return "unknown"
}

type Resolver struct {
	boards       BoardFinder
	members      MembershipFinder
	toucher      AccessToucher
	log          Logger
	touchTimeout time.Duration
	touches      sync.WaitGroup
}

type Option func(*Resolver)

// WithTouchTimeout bounds the detached last-accessed write.
func WithTouchTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.touchTimeout = d }
}

// NewResolver wires the lookups.  toucher and log may be nil; without a
// toucher RequireView never writes.
func NewResolver(boards BoardFinder, members MembershipFinder, toucher AccessToucher, log Logger, opts ...Option) *Resolver {
	r := &Resolver{
		boards:       boards,
		members:      members,
		toucher:      toucher,
		log:          log,
		touchTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the caller's decision.  An unknown board yields
// *BoardNotFoundError before membership is consulted.
func (r *Resolver) Resolve(ctx context.Context, boardID, userID string) (Decision, error) {
	ownerID, found, err := r.boards.FindBoardOwner(ctx, boardID)
	if err != nil {
		return Decision{}, err
	}
	if !found {
		return Decision{}, &BoardNotFoundError{BoardID: boardID}
	}
	role, err := r.members.FindMembership(ctx, boardID, userID)
	if err != nil {
		return Decision{}, err
	}
	isOwner := ownerID == userID
	return Decision{
		BoardID:  boardID,
		OwnerID:  ownerID,
		Role:     role,
		IsOwner:  isOwner,
		IsAdmin:  isOwner || (role != nil && *role == RoleAdmin),
		IsMember: role != nil,
	}, nil
}

// RequireView passes for the owner and for any member.  A member's
// last-accessed time is refreshed in the background.
func (r *Resolver) RequireView(ctx context.Context, boardID, userID string) (Decision, error) {
	d, err := r.Resolve(ctx, boardID, userID)
	if err == nil && !d.IsOwner && !d.IsMember {
		err = &AccessDeniedError{BoardID: boardID}
	}
	observe(LevelView, err)
	if err != nil {
		return Decision{}, err
	}
	if d.IsMember {
		r.touch(boardID, userID)
	}
	return d, nil
}

// RequireAdminister passes for the owner and for admins.
func (r *Resolver) RequireAdminister(ctx context.Context, boardID, userID string) (Decision, error) {
	d, err := r.Resolve(ctx, boardID, userID)
	if err == nil && !d.IsAdmin {
		err = &AdminRequiredError{BoardID: boardID}
	}
	observe(LevelAdminister, err)
	if err != nil {
		return Decision{}, err
	}
	return d, nil
}

// RequireOwner passes for the owner only.
func (r *Resolver) RequireOwner(ctx context.Context, boardID, userID string) (Decision, error) {
	d, err := r.Resolve(ctx, boardID, userID)
	if err == nil && !d.IsOwner {
		err = &OwnerOnlyError{BoardID: boardID}
	}
	observe(LevelOwner, err)
	if err != nil {
		return Decision{}, err
	}
	return d, nil
}

// Require dispatches to the guard for level.
func (r *Resolver) Require(ctx context.Context, level Level, boardID, userID string) (Decision, error) {
	switch level {
	case LevelAdminister:
		return r.RequireAdminister(ctx, boardID, userID)
	case LevelOwner:
		return r.RequireOwner(ctx, boardID, userID)
	default:
		return r.RequireView(ctx, boardID, userID)
	}
}

// Wait blocks until in-flight touches finish.  Called on shutdown.
func (r *Resolver) Wait() { r.touches.Wait() }

// touch runs detached from the request context so a finished request does
// not cancel the write.  Failures are logged and dropped.
func (r *Resolver) touch(boardID, userID string) {
	if r.toucher == nil {
		return
	}
	r.touches.Add(1)
	go func() {
		defer r.touches.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.touchTimeout)
		defer cancel()
		if err := r.toucher.TouchLastAccessed(ctx, boardID, userID); err != nil {
			obs.AccessTouchFailures.Inc()
			if r.log != nil {
				r.log.Warnf("access: touch last_accessed_at board=%s user=%s: %v", boardID, userID, err)
			}
		}
	}()
}

func observe(level Level, err error) {
	obs.AccessDecisions.WithLabelValues(level.String(), outcome(err)).Inc()
}

func outcome(err error) string {
	switch err.(type) {
	case nil:
		return "allowed"
	case *BoardNotFoundError:
		return "not_found"
	case *AccessDeniedError, *AdminRequiredError, *OwnerOnlyError:
		return "denied"
	}
	return "error"
}
