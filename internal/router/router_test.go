package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/access"
	"github.com/iliyamo/taskboard/internal/auth"
	"github.com/iliyamo/taskboard/internal/config"
	"github.com/iliyamo/taskboard/internal/handler"
)

type denyGuard struct{}

func (denyGuard) Require(_ context.Context, _ access.Level, boardID, _ string) (access.Decision, error) {
	return access.Decision{}, &access.BoardNotFoundError{BoardID: boardID}
}

func newTestServer(t *testing.T) (*echo.Echo, *auth.Tokens) {
	t.Helper()
	tokens, err := auth.NewTokens("a", "r", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	e := echo.New()
	RegisterRoutes(e, nil)
	RegisterAuth(e, &handler.AuthHandler{Issuer: tokens}, tokens,
		config.RateLimitConfig{Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, KeyStrategy: "ip", Prefix: "rl:test"}, nil)
	RegisterBoards(e, &handler.BoardHandler{}, tokens, denyGuard{})
	return e, tokens
}

func serve(e *echo.Echo, method, path, bearer string) int {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestPublicRoutes(t *testing.T) {
	e, _ := newTestServer(t)
	if code := serve(e, http.MethodGet, "/healthz", ""); code != http.StatusOK {
		t.Fatalf("healthz = %d", code)
	}
	if code := serve(e, http.MethodGet, "/metrics", ""); code != http.StatusOK {
		t.Fatalf("metrics = %d", code)
	}
}

func TestBoardRoutesNeedToken(t *testing.T) {
	e, tokens := newTestServer(t)
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/v1/boards"},
		{http.MethodPost, "/v1/boards"},
		{http.MethodGet, "/v1/boards/b1"},
		{http.MethodPatch, "/v1/boards/b1"},
		{http.MethodDelete, "/v1/boards/b1"},
		{http.MethodPost, "/v1/boards/b1/members"},
		{http.MethodGet, "/v1/auth/me"},
	} {
		if code := serve(e, r.method, r.path, ""); code != http.StatusUnauthorized {
			t.Fatalf("%s %s = %d, want 401", r.method, r.path, code)
		}
	}

	pair, _ := tokens.IssuePair(auth.Payload{UserID: "u1", Email: "u1@example.com"})
	if code := serve(e, http.MethodDelete, "/v1/boards/b1", pair.AccessToken); code != http.StatusNotFound {
		t.Fatalf("guarded delete = %d, want 404", code)
	}
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	e, _ := newTestServer(t)
	// Capacity 2: the third request from the same client is refused before
	// the handler runs.
	for i := 0; i < 2; i++ {
		if code := serve(e, http.MethodPost, "/v1/auth/login", ""); code == http.StatusTooManyRequests {
			t.Fatalf("request %d limited too early", i)
		}
	}
	if code := serve(e, http.MethodPost, "/v1/auth/login", ""); code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", code)
	}
}
