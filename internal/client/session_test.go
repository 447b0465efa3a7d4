package client

import (
	"sync"
	"testing"
)

func TestSessionSetAndClearTogether(t *testing.T) {
	s := NewSessionStore()
	if got := s.Read(); got.Subject != nil || got.Credentials != nil {
		t.Fatalf("new store not empty: %+v", got)
	}
	s.SetAuth(Subject{ID: "u1", Email: "a@example.com", DisplayName: "A"}, "acc", "ref")
	got := s.Read()
	if got.Subject == nil || got.Credentials == nil {
		t.Fatalf("half-populated session: %+v", got)
	}
	got.Credentials.AccessToken = "mutated"
	if s.Read().Credentials.AccessToken != "acc" {
		t.Fatalf("Read must return a copy")
	}
	s.Logout()
	if got := s.Read(); got.Subject != nil || got.Credentials != nil {
		t.Fatalf("logout left state behind: %+v", got)
	}
}

func TestSessionConcurrentReadersNeverSeeHalfState(t *testing.T) {
	s := NewSessionStore()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.SetAuth(Subject{ID: "u"}, "a", "r")
				s.Logout()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				got := s.Read()
				if (got.Subject == nil) != (got.Credentials == nil) {
					t.Errorf("subject and credentials out of step: %+v", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}
