package middleware

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth and RequireBoard.
const (
	ctxUserID      = "user_id"
	ctxEmail       = "email"
	ctxBoardAccess = "board_access"
)

// UserID returns the authenticated user id, or "" outside JWTAuth.
func UserID(c echo.Context) string {
	s, _ := c.Get(ctxUserID).(string)
	return s
}

// Email returns the authenticated user's email, or "".
func Email(c echo.Context) string {
	s, _ := c.Get(ctxEmail).(string)
	return s
}

// currentUserID is the rate-limit key form of UserID.
func currentUserID(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
