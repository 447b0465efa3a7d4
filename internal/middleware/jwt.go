package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/auth"
)

// AccessVerifier is satisfied by *auth.Tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (auth.Payload, error)
}

// JWTAuth validates the Bearer access token and stores its user id and
// email in the context under "user_id" and "email".  Every failure,
// including an expired token, answers the same 401 so callers learn
// nothing about why a token was rejected.
func JWTAuth(tokens AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return unauthorized(c)
			}
			p, err := tokens.VerifyAccess(strings.TrimSpace(raw))
			if err != nil {
				return unauthorized(c)
			}
			c.Set(ctxUserID, p.UserID)
			c.Set(ctxEmail, p.Email)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}
