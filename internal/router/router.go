package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/taskboard/internal/access"
	"github.com/iliyamo/taskboard/internal/config"
	"github.com/iliyamo/taskboard/internal/handler"
	"github.com/iliyamo/taskboard/internal/middleware"
	"github.com/iliyamo/taskboard/internal/obs"
)

// RegisterRoutes registers routes that do not require authentication: the
// health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(obs.Handler()))
}

// RegisterAuth registers /v1/auth.  Register, login, refresh and logout sit
// behind the token bucket; me needs a valid access token instead.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, tokens middleware.AccessVerifier, rl config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1/auth")
	limit := middleware.NewTokenBucket(rl, rdb)
	g.POST("/register", a.Register, limit)
	g.POST("/login", a.Login, limit)
	g.POST("/refresh", a.Refresh, limit)
	g.POST("/logout", a.Logout, limit)

	g.GET("/me", a.Me, middleware.JWTAuth(tokens))
}

// RegisterBoards registers /v1/boards.  Every route needs an access token;
// routes naming a board additionally run the guard for the level the
// operation requires.
func RegisterBoards(e *echo.Echo, b *handler.BoardHandler, tokens middleware.AccessVerifier, guard middleware.BoardGuard) {
	g := e.Group("/v1/boards", middleware.JWTAuth(tokens))
	g.GET("", b.List)
	g.POST("", b.Create)

	g.GET("/:boardId", b.Get, middleware.RequireBoard(access.LevelView, guard))
	g.PATCH("/:boardId", b.Update, middleware.RequireBoard(access.LevelAdminister, guard))
	g.DELETE("/:boardId", b.Delete, middleware.RequireBoard(access.LevelOwner, guard))
	g.POST("/:boardId/members", b.AddMember, middleware.RequireBoard(access.LevelAdminister, guard))
}
