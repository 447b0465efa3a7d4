package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/iliyamo/taskboard/internal/client"
)

type sessionFile struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// loadSession restores the store from path.  A missing file yields an
// empty, logged-out store.
func loadSession(path string) (*client.SessionStore, error) {
	store := client.NewSessionStore()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	if f.AccessToken != "" {
		store.SetAuth(client.Subject{ID: f.UserID, Email: f.Email, DisplayName: f.DisplayName}, f.AccessToken, f.RefreshToken)
	}
	return store, nil
}

// saveSession writes the store to path, or removes the file when the
// store is logged out.
func saveSession(path string, store *client.SessionStore) error {
	s := store.Read()
	if s.Subject == nil {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove session: %w", err)
		}
		return nil
	}
	data, err := json.MarshalIndent(sessionFile{
		UserID:       s.Subject.ID,
		Email:        s.Subject.Email,
		DisplayName:  s.Subject.DisplayName,
		AccessToken:  s.Credentials.AccessToken,
		RefreshToken: s.Credentials.RefreshToken,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
