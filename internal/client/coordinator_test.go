package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// refreshServer answers /v1/auth/refresh.  Each call blocks until release
// is closed so tests can pile up waiters behind it.
type refreshServer struct {
	*httptest.Server
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	status  int
}

func newRefreshServer(t *testing.T, status int) *refreshServer {
	t.Helper()
	rs := &refreshServer{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
		status:  status,
	}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != refreshPath {
			http.NotFound(w, r)
			return
		}
		n := rs.calls.Add(1)
		rs.started <- struct{}{}
		<-rs.release
		var req refreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if rs.status != http.StatusOK || req.RefreshToken == "" {
			w.WriteHeader(rs.status)
			_, _ = w.Write([]byte(`{"error":"invalid refresh"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(authResponse{
			AccessToken:  "access-" + string(rune('0'+n)),
			RefreshToken: "refresh-" + string(rune('0'+n)),
			User:         userResponse{ID: "u1", Email: "u1@example.com", Name: "U One"},
		})
	}))
	t.Cleanup(rs.Close)
	return rs
}

func pendingReached(c *Coordinator, n int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		got := len(c.pending)
		c.mu.Unlock()
		if got == n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func waitPending(t *testing.T, c *Coordinator, n int) {
	t.Helper()
	if !pendingReached(c, n) {
		t.Fatalf("never saw %d pending waiters", n)
	}
}

func loggedIn(access, refresh string) *SessionStore {
	s := NewSessionStore()
	s.SetAuth(Subject{ID: "u1", Email: "u1@example.com", DisplayName: "U One"}, access, refresh)
	return s
}

type result struct {
	token string
	err   error
}

func TestCoordinatorSingleFlight(t *testing.T) {
	rs := newRefreshServer(t, http.StatusOK)
	session := loggedIn("stale", "refresh-0")
	var logouts atomic.Int32
	c := NewCoordinator(session, rs.Client(), rs.URL+refreshPath, func() { logouts.Add(1) })

	const n = 8
	results := make(chan result, n)
	go func() {
		tok, err := c.GetValidAccessToken(context.Background())
		results <- result{tok, err}
	}()
	<-rs.started

	for i := 1; i < n; i++ {
		go func() {
			tok, err := c.GetValidAccessToken(context.Background())
			results <- result{tok, err}
		}()
	}
	waitPending(t, c, n-1)
	close(rs.release)

	for i := 0; i < n; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("caller %d: %v", i, r.err)
		}
		if r.token != "access-1" {
			t.Fatalf("caller %d got %q, want access-1", i, r.token)
		}
	}
	if got := rs.calls.Load(); got != 1 {
		t.Fatalf("refresh calls=%d, want 1", got)
	}
	c.mu.Lock()
	if c.refreshing || len(c.pending) != 0 {
		t.Fatalf("coordinator not reset: refreshing=%v pending=%d", c.refreshing, len(c.pending))
	}
	c.mu.Unlock()

	s := session.Read()
	if s.Credentials == nil || s.Credentials.AccessToken != "access-1" || s.Credentials.RefreshToken != "refresh-1" {
		t.Fatalf("session not updated: %+v", s.Credentials)
	}
	if s.Subject.DisplayName != "U One" {
		t.Fatalf("subject not updated: %+v", s.Subject)
	}
	if logouts.Load() != 0 {
		t.Fatalf("unexpected logout")
	}
}

func TestCoordinatorFailureSettlesEveryone(t *testing.T) {
	rs := newRefreshServer(t, http.StatusUnauthorized)
	session := loggedIn("stale", "refresh-0")
	var logouts atomic.Int32
	c := NewCoordinator(session, rs.Client(), rs.URL+refreshPath, func() { logouts.Add(1) })

	const n = 4
	results := make(chan result, n)
	go func() {
		tok, err := c.GetValidAccessToken(context.Background())
		results <- result{tok, err}
	}()
	<-rs.started
	for i := 1; i < n; i++ {
		go func() {
			tok, err := c.GetValidAccessToken(context.Background())
			results <- result{tok, err}
		}()
	}
	waitPending(t, c, n-1)
	close(rs.release)

	var first error
	for i := 0; i < n; i++ {
		r := <-results
		var rerr *RefreshError
		if !errors.As(r.err, &rerr) {
			t.Fatalf("caller %d: expected RefreshError, got %v", i, r.err)
		}
		if rerr.Status != http.StatusUnauthorized || rerr.Message != "invalid refresh" {
			t.Fatalf("unexpected refresh error %+v", rerr)
		}
		if first == nil {
			first = r.err
		} else if r.err != first {
			t.Fatalf("callers saw different failures")
		}
	}
	if rs.calls.Load() != 1 {
		t.Fatalf("refresh calls=%d, want 1", rs.calls.Load())
	}
	if s := session.Read(); s.Subject != nil || s.Credentials != nil {
		t.Fatalf("session not cleared: %+v", s)
	}
	if logouts.Load() != 1 {
		t.Fatalf("logout hook fired %d times, want 1", logouts.Load())
	}
}

func TestCoordinatorDrainsQueueOnce(t *testing.T) {
	rs := newRefreshServer(t, http.StatusOK)
	c := NewCoordinator(loggedIn("stale", "refresh-0"), rs.Client(), rs.URL+refreshPath, nil)

	done := make(chan result, 1)
	go func() {
		tok, err := c.GetValidAccessToken(context.Background())
		done <- result{tok, err}
	}()
	<-rs.started

	var (
		wg      sync.WaitGroup
		settled atomic.Int32
	)
	const waiters = 5
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetValidAccessToken(context.Background()); err != nil {
				t.Errorf("waiter %d: %v", i, err)
			}
			settled.Add(1)
		}()
		waitPending(t, c, i+1)
	}

	c.mu.Lock()
	queued := append([]chan renewal(nil), c.pending...)
	c.mu.Unlock()

	close(rs.release)
	wg.Wait()
	if r := <-done; r.err != nil {
		t.Fatalf("leader: %v", r.err)
	}
	if got := settled.Load(); got != waiters {
		t.Fatalf("settled %d waiters, want %d", got, waiters)
	}
	for i, ch := range queued {
		select {
		case r := <-ch:
			t.Fatalf("waiter %d settled twice: %+v", i, r)
		default:
		}
	}
}

func TestCoordinatorWithoutRefreshToken(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	session := loggedIn("stale", "")
	var logouts atomic.Int32
	c := NewCoordinator(session, srv.Client(), srv.URL+refreshPath, func() { logouts.Add(1) })

	if _, err := c.GetValidAccessToken(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("network calls=%d, want 0", hits.Load())
	}
	if s := session.Read(); s.Subject != nil || s.Credentials != nil {
		t.Fatalf("session not cleared: %+v", s)
	}
	if logouts.Load() != 1 {
		t.Fatalf("logout hook fired %d times", logouts.Load())
	}
	if c.refreshing {
		t.Fatalf("flag left set")
	}
}

func TestCoordinatorWaiterCancellation(t *testing.T) {
	rs := newRefreshServer(t, http.StatusOK)
	c := NewCoordinator(loggedIn("stale", "refresh-0"), rs.Client(), rs.URL+refreshPath, nil)

	done := make(chan result, 1)
	go func() {
		tok, err := c.GetValidAccessToken(context.Background())
		done <- result{tok, err}
	}()
	<-rs.started

	ctx, cancel := context.WithCancel(context.Background())
	waited := make(chan error, 1)
	go func() {
		_, err := c.GetValidAccessToken(ctx)
		waited <- err
	}()
	waitPending(t, c, 1)
	cancel()
	if err := <-waited; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(rs.release)
	if r := <-done; r.err != nil || r.token != "access-1" {
		t.Fatalf("leader: %+v", r)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) != 0 {
		t.Fatalf("abandoned waiter left in queue")
	}
}

func TestCoordinatorTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	session := loggedIn("stale", "refresh-0")
	c := NewCoordinator(session, &http.Client{Timeout: time.Second}, url+refreshPath, nil)
	_, err := c.GetValidAccessToken(context.Background())
	var rerr *RefreshError
	if !errors.As(err, &rerr) || rerr.Status != 0 || rerr.Err == nil {
		t.Fatalf("expected transport RefreshError, got %v", err)
	}
	if session.Read().Credentials != nil {
		t.Fatalf("session survived a failed renewal")
	}
}

func TestSettleEmptiesQueue(t *testing.T) {
	c := &Coordinator{}
	chans := []chan renewal{make(chan renewal, 1), make(chan renewal, 1), make(chan renewal, 1)}
	c.pending = append(c.pending, chans...)
	c.settle(renewal{token: "t"})
	if c.pending != nil {
		t.Fatalf("queue not cleared")
	}
	for i, ch := range chans {
		if r := <-ch; r.token != "t" {
			t.Fatalf("waiter %d got %+v", i, r)
		}
	}
}
