package access

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	owners  map[string]string          // board -> owner
	roles   map[string]map[string]Role // board -> user -> role
	failErr error

	mu       sync.Mutex
	touched  chan [2]string
	touchErr error
	lookups  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		owners:  map[string]string{},
		roles:   map[string]map[string]Role{},
		touched: make(chan [2]string, 8),
	}
}

func (s *fakeStore) addBoard(boardID, ownerID string) { s.owners[boardID] = ownerID }

func (s *fakeStore) addMember(boardID, userID string, role Role) {
	if s.roles[boardID] == nil {
		s.roles[boardID] = map[string]Role{}
	}
	s.roles[boardID][userID] = role
}

func (s *fakeStore) FindBoardOwner(_ context.Context, boardID string) (string, bool, error) {
	s.mu.Lock()
	s.lookups++
	s.mu.Unlock()
	if s.failErr != nil {
		return "", false, s.failErr
	}
	owner, ok := s.owners[boardID]
	return owner, ok, nil
}

func (s *fakeStore) FindMembership(_ context.Context, boardID, userID string) (*Role, error) {
	role, ok := s.roles[boardID][userID]
	if !ok {
		return nil, nil
	}
	return &role, nil
}

func (s *fakeStore) TouchLastAccessed(_ context.Context, boardID, userID string) error {
	s.touched <- [2]string{boardID, userID}
	return s.touchErr
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Warnf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func newResolver(s *fakeStore, log Logger) *Resolver {
	return NewResolver(s, s, s, log, WithTouchTimeout(time.Second))
}

func TestOwnerWithoutMembershipDominates(t *testing.T) {
	s := newFakeStore()
	s.addBoard("b1", "u1")
	r := newResolver(s, nil)
	ctx := context.Background()

	d, err := r.Resolve(ctx, "b1", "u1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !d.IsOwner || !d.IsAdmin || d.IsMember || d.Role != nil {
		t.Fatalf("unexpected decision %+v", d)
	}
	if d.OwnerID != "u1" || d.BoardID != "b1" {
		t.Fatalf("unexpected ids %+v", d)
	}
	if _, err := r.RequireView(ctx, "b1", "u1"); err != nil {
		t.Fatalf("RequireView: %v", err)
	}
	if _, err := r.RequireAdminister(ctx, "b1", "u1"); err != nil {
		t.Fatalf("RequireAdminister: %v", err)
	}
	if _, err := r.RequireOwner(ctx, "b1", "u1"); err != nil {
		t.Fatalf("RequireOwner: %v", err)
	}
	r.Wait()
	if len(s.touched) != 0 {
		t.Fatalf("owner without membership must not be touched")
	}
}

func TestRoleHierarchy(t *testing.T) {
	s := newFakeStore()
	s.addBoard("b1", "owner")
	s.addMember("b1", "m", RoleMember)
	s.addMember("b1", "a", RoleAdmin)
	s.addMember("b1", "o2", RoleOwner) // owner role row without owner_id
	r := newResolver(s, nil)
	ctx := context.Background()

	var (
		denied   *AccessDeniedError
		adminReq *AdminRequiredError
		ownerReq *OwnerOnlyError
	)
	cases := []struct {
		user    string
		viewOK  bool
		adminOK bool
		ownerOK bool
	}{
		{"m", true, false, false},
		{"a", true, true, false},
		{"o2", true, false, false},
		{"stranger", false, false, false},
	}
	for _, tc := range cases {
		_, viewErr := r.RequireView(ctx, "b1", tc.user)
		_, adminErr := r.RequireAdminister(ctx, "b1", tc.user)
		_, ownerErr := r.RequireOwner(ctx, "b1", tc.user)

		if tc.viewOK != (viewErr == nil) {
			t.Fatalf("%s: view err=%v", tc.user, viewErr)
		}
		if !tc.viewOK && !errors.As(viewErr, &denied) {
			t.Fatalf("%s: expected AccessDeniedError, got %T", tc.user, viewErr)
		}
		if tc.adminOK != (adminErr == nil) {
			t.Fatalf("%s: administer err=%v", tc.user, adminErr)
		}
		if !tc.adminOK && !errors.As(adminErr, &adminReq) {
			t.Fatalf("%s: expected AdminRequiredError, got %T", tc.user, adminErr)
		}
		if tc.ownerOK != (ownerErr == nil) {
			t.Fatalf("%s: owner err=%v", tc.user, ownerErr)
		}
		if !tc.ownerOK && !errors.As(ownerErr, &ownerReq) {
			t.Fatalf("%s: expected OwnerOnlyError, got %T", tc.user, ownerErr)
		}
		if ownerReq != nil && ownerReq.BoardID != "b1" {
			t.Fatalf("error lost board id: %+v", ownerReq)
		}
	}
	r.Wait()
}

func TestNotFoundTakesPrecedence(t *testing.T) {
	s := newFakeStore()
	s.addBoard("b1", "u1")
	s.addMember("missing", "u1", RoleAdmin) // stale membership for a deleted board
	r := newResolver(s, nil)
	ctx := context.Background()

	for _, user := range []string{"u1", "stranger", ""} {
		for _, level := range []Level{LevelView, LevelAdminister, LevelOwner} {
			_, err := r.Require(ctx, level, "missing", user)
			var nf *BoardNotFoundError
			if !errors.As(err, &nf) {
				t.Fatalf("user=%q level=%s: expected BoardNotFoundError, got %v", user, level, err)
			}
			if nf.BoardID != "missing" {
				t.Fatalf("unexpected board id %q", nf.BoardID)
			}
		}
	}
}

func TestLookupErrorsPassThrough(t *testing.T) {
	s := newFakeStore()
	s.failErr = errors.New("db down")
	r := newResolver(s, nil)
	if _, err := r.RequireView(context.Background(), "b1", "u1"); !errors.Is(err, s.failErr) {
		t.Fatalf("expected db error, got %v", err)
	}
}

func TestViewTouchesMembersInBackground(t *testing.T) {
	s := newFakeStore()
	s.addBoard("b1", "owner")
	s.addMember("b1", "m", RoleMember)
	r := newResolver(s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := r.RequireView(ctx, "b1", "m"); err != nil {
		t.Fatalf("RequireView: %v", err)
	}
	cancel() // the write must outlive the request
	select {
	case got := <-s.touched:
		if got != [2]string{"b1", "m"} {
			t.Fatalf("touched %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("touch never happened")
	}
	r.Wait()
}

func TestTouchFailureIsLoggedNotReturned(t *testing.T) {
	s := newFakeStore()
	s.addBoard("b1", "owner")
	s.addMember("b1", "m", RoleMember)
	s.touchErr = errors.New("deadlock")
	log := &recordingLogger{}
	r := newResolver(s, log)

	if _, err := r.RequireView(context.Background(), "b1", "m"); err != nil {
		t.Fatalf("touch failure leaked into guard: %v", err)
	}
	r.Wait()
	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.lines) != 1 {
		t.Fatalf("expected one warning, got %v", log.lines)
	}
}

func TestNoCachingAcrossCalls(t *testing.T) {
	s := newFakeStore()
	s.addBoard("b1", "owner")
	s.addMember("b1", "m", RoleAdmin)
	r := newResolver(s, nil)
	ctx := context.Background()

	if _, err := r.RequireAdminister(ctx, "b1", "m"); err != nil {
		t.Fatalf("RequireAdminister: %v", err)
	}
	s.addMember("b1", "m", RoleMember) // demoted
	var adminReq *AdminRequiredError
	if _, err := r.RequireAdminister(ctx, "b1", "m"); !errors.As(err, &adminReq) {
		t.Fatalf("demotion not observed: %v", err)
	}
	if s.lookups != 2 {
		t.Fatalf("lookups=%d, want 2", s.lookups)
	}
}
