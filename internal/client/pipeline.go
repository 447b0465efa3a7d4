package client

import (
	"context"
	"errors"
	"io"
	"net/http"
)

type ctxKey int

const (
	retriedKey ctxKey = iota
	renewalKey
)

func withRenewal(ctx context.Context) context.Context { return context.WithValue(ctx, renewalKey, true) }
func withRetried(ctx context.Context) context.Context { return context.WithValue(ctx, retriedKey, true) }

func isRenewal(ctx context.Context) bool { v, _ := ctx.Value(renewalKey).(bool); return v }
func isRetried(ctx context.Context) bool { v, _ := ctx.Value(retriedKey).(bool); return v }

// Pipeline is an http.RoundTripper that attaches the session's access
// token and, on a 401, renews it through the Coordinator and resends the
// request once.  The resend's outcome is final.
type Pipeline struct {
	Base        http.RoundTripper
	Session     *SessionStore
	Coordinator *Coordinator
}

func (p *Pipeline) base() http.RoundTripper {
	if p.Base != nil {
		return p.Base
	}
	return http.DefaultTransport
}

func (p *Pipeline) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	first := req.Clone(ctx)
	if token := p.Session.accessToken(); token != "" {
		first.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := p.base().RoundTrip(first)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if isRetried(ctx) || isRenewal(ctx) {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// body already consumed and cannot be replayed
		return resp, nil
	}

	token, err := p.Coordinator.GetValidAccessToken(ctx)
	if err != nil {
		if errors.Is(err, ErrNoRefreshToken) {
			return resp, nil
		}
		discard(resp)
		return nil, err
	}
	discard(resp)

	retry := req.Clone(withRetried(ctx))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+token)
	return p.base().RoundTrip(retry)
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
