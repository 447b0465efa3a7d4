package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/access"
)

// BoardGuard is satisfied by *access.Resolver.
type BoardGuard interface {
	Require(ctx context.Context, level access.Level, boardID, userID string) (access.Decision, error)
}

// RequireBoard runs the guard for level against the :boardId path param.
// It must sit behind JWTAuth.  On success the decision is stored under
// "board_access" for the handler.
func RequireBoard(level access.Level, guard BoardGuard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			boardID := c.Param("boardId")
			userID := UserID(c)
			if userID == "" {
				return unauthorized(c)
			}
			d, err := guard.Require(c.Request().Context(), level, boardID, userID)
			if err != nil {
				return boardError(c, err)
			}
			c.Set(ctxBoardAccess, d)
			return next(c)
		}
	}
}

// BoardAccess returns the decision stored by RequireBoard.
func BoardAccess(c echo.Context) (access.Decision, bool) {
	d, ok := c.Get(ctxBoardAccess).(access.Decision)
	return d, ok
}

func boardError(c echo.Context, err error) error {
	var (
		notFound *access.BoardNotFoundError
		denied   *access.AccessDeniedError
		admin    *access.AdminRequiredError
		owner    *access.OwnerOnlyError
	)
	switch {
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "board not found", "code": "board_not_found"})
	case errors.As(err, &denied):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no access to this board", "code": "board_access_denied"})
	case errors.As(err, &admin):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "board admin rights required", "code": "board_admin_required"})
	case errors.As(err, &owner):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the board owner can do this", "code": "board_owner_only"})
	}
	c.Logger().Errorf("board access check failed: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "access check failed"})
}
