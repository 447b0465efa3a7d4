package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

type renewal struct {
	token string
	err   error
}

// Coordinator serializes token renewal.  While one renewal is running every
// other caller parks on a buffered channel; when it ends all parked callers
// are settled in arrival order with the same result, under the same lock
// that clears the in-progress flag.
type Coordinator struct {
	session    *SessionStore
	httpClient *http.Client
	refreshURL string
	onLogout   func()

	mu         sync.Mutex
	refreshing bool
	pending    []chan renewal
}

// NewCoordinator renews against refreshURL with httpClient, which must not
// route through a Pipeline.  onLogout may be nil.
func NewCoordinator(session *SessionStore, httpClient *http.Client, refreshURL string, onLogout func()) *Coordinator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Coordinator{
		session:    session,
		httpClient: httpClient,
		refreshURL: refreshURL,
		onLogout:   onLogout,
	}
}

// GetValidAccessToken returns a fresh access token, starting a renewal or
// joining the one in flight.  A cancelled ctx abandons only this caller's
// wait; the renewal keeps running for the others.
func (c *Coordinator) GetValidAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan renewal, 1)
		c.pending = append(c.pending, ch)
		c.mu.Unlock()
		select {
		case r := <-ch:
			return r.token, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	refresh := c.session.refreshToken()
	if refresh == "" {
		c.session.Logout()
		c.mu.Unlock()
		c.signalLogout()
		return "", ErrNoRefreshToken
	}
	c.refreshing = true
	c.mu.Unlock()

	subject, pair, err := c.renew(context.WithoutCancel(ctx), refresh)

	c.mu.Lock()
	if err == nil {
		c.session.SetAuth(subject, pair.AccessToken, pair.RefreshToken)
		c.settle(renewal{token: pair.AccessToken})
	} else {
		c.settle(renewal{err: err})
		c.session.Logout()
	}
	c.refreshing = false
	c.mu.Unlock()

	if err != nil {
		c.signalLogout()
		return "", err
	}
	return pair.AccessToken, nil
}

// settle drains the queue in FIFO order.  Callers hold c.mu.
func (c *Coordinator) settle(r renewal) {
	for _, ch := range c.pending {
		ch <- r
	}
	c.pending = nil
}

func (c *Coordinator) signalLogout() {
	if c.onLogout != nil {
		c.onLogout()
	}
}

// renew performs the single POST to the refresh endpoint.  The request is
// marked as the renewal call so a Pipeline never tries to renew it again.
func (c *Coordinator) renew(ctx context.Context, refresh string) (Subject, Credentials, error) {
	body, err := json.Marshal(refreshRequest{RefreshToken: refresh})
	if err != nil {
		return Subject{}, Credentials{}, &RefreshError{Err: err}
	}
	req, err := http.NewRequestWithContext(withRenewal(ctx), http.MethodPost, c.refreshURL, bytes.NewReader(body))
	if err != nil {
		return Subject{}, Credentials{}, &RefreshError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Subject{}, Credentials{}, &RefreshError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return Subject{}, Credentials{}, &RefreshError{Status: resp.StatusCode, Message: errorMessage(resp)}
	}
	var out authResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Subject{}, Credentials{}, &RefreshError{Status: resp.StatusCode, Err: fmt.Errorf("decode refresh response: %w", err)}
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return Subject{}, Credentials{}, &RefreshError{Status: resp.StatusCode, Message: "refresh response without tokens"}
	}
	return out.User.subject(), Credentials{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}
