package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrNoRefreshToken is returned by the coordinator when the session has no
// refresh token.  The session has already been cleared.
var ErrNoRefreshToken = errors.New("client: no refresh token")

// RefreshError reports a failed renewal.  The session is gone once it is
// returned; Status is zero for transport failures.
type RefreshError struct {
	Status  int
	Message string
	Err     error
}

func (e *RefreshError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("client: refresh failed: %v", e.Err)
	}
	return fmt.Sprintf("client: refresh failed: %d %s", e.Status, e.Message)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// APIError is a non-2xx answer to one of the typed helpers.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %d %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// errorMessage pulls {"error": "..."} out of a failed response, falling
// back to the status text.
func errorMessage(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return http.StatusText(resp.StatusCode)
}
