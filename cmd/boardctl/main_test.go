package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fakeAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a1","refresh_token":"r1","user":{"id":"u1","email":"ann@example.com","name":"Ann"}}`))
	})
	mux.HandleFunc("/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"u1","email":"ann@example.com","name":"Ann"}}`))
	})
	mux.HandleFunc("/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginPersistsSession(t *testing.T) {
	srv := fakeAuthServer(t)
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	ctx := context.Background()

	var out bytes.Buffer
	if err := run(ctx, []string{"--url", srv.URL, "--session", path, "login", "ann@example.com", "password1"}, &out); err != nil {
		t.Fatalf("login: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("session file: %v", err)
	}
	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if f.AccessToken != "a1" || f.RefreshToken != "r1" || f.UserID != "u1" {
		t.Fatalf("unexpected session %+v", f)
	}

	out.Reset()
	if err := run(ctx, []string{"--url", srv.URL, "--session", path, "me"}, &out); err != nil {
		t.Fatalf("me: %v", err)
	}
	if !strings.Contains(out.String(), "ann@example.com") {
		t.Fatalf("me output = %q", out.String())
	}

	if err := run(ctx, []string{"--url", srv.URL, "--session", path, "logout"}, &out); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("session file still present: %v", err)
	}
}

func TestLoadSessionMissingFile(t *testing.T) {
	store, err := loadSession(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("loadSession: %v", err)
	}
	if s := store.Read(); s.Subject != nil {
		t.Fatalf("expected logged-out store, got %+v", s)
	}
}

func TestUsageErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	cases := [][]string{
		{},
		{"login", "only-email"},
		{"boards"},
		{"boards", "update", "b1"},
		{"members", "remove", "b1"},
		{"frobnicate"},
	}
	for _, args := range cases {
		argv := append([]string{"--url", "http://127.0.0.1:1", "--session", path}, args...)
		if err := run(context.Background(), argv, &bytes.Buffer{}); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
}
