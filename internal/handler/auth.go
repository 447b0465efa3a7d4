package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/auth"
	"github.com/iliyamo/taskboard/internal/middleware"
	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/obs"
	"github.com/iliyamo/taskboard/internal/repository"
)

type UserStore interface {
	Create(ctx context.Context, email, name, password string, cost int) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) (bool, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Users      UserStore
	Tokens     TokenStore
	Issuer     *auth.Tokens
	BcryptCost int
}

func NewAuthHandler(users UserStore, tokens TokenStore, issuer *auth.Tokens, bcryptCost int) *AuthHandler {
	return &AuthHandler{Users: users, Tokens: tokens, Issuer: issuer, BcryptCost: bcryptCost}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type userPart struct {
	ID     string  `json:"id"`
	Email  string  `json:"email"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar,omitempty"`
}
type authResp struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	User         userPart `json:"user"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, Name: u.Name, Avatar: u.Avatar}
}

// issue mints a pair for u and stores the refresh hash.
func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
	pair, err := h.Issuer.IssuePair(auth.Payload{UserID: u.ID, Email: u.Email})
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, auth.HashToken(pair.RefreshToken), pair.RefreshExpiresAt); err != nil {
		return authResp{}, err
	}
	return authResp{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: toUserPart(u)}, nil
}

// Register: create user and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Email == "" || req.Password == "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	case !validEmail(req.Email):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email"})
	case len(req.Password) < minPasswordLen:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	case !validName(req.Name):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name must be 1-50 characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.Create(ctx, req.Email, req.Name, req.Password, h.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		c.Logger().Errorf("register: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		c.Logger().Errorf("register: issue tokens: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !auth.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		c.Logger().Errorf("login: issue tokens: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh exchanges a live refresh token for a new pair.  The presented
// token is revoked first; if another request already revoked it the
// exchange is refused, so each refresh token is usable once.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	raw := strings.TrimSpace(req.RefreshToken)

	payload, err := h.Issuer.VerifyRefresh(raw)
	if err != nil {
		obs.TokenRefreshes.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hash := auth.HashToken(raw)
	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil || userID != payload.UserID {
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			obs.TokenRefreshes.WithLabelValues("error").Inc()
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "validate refresh failed"})
		}
		obs.TokenRefreshes.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	revoked, err := h.Tokens.RevokeByHash(ctx, hash)
	if err != nil {
		obs.TokenRefreshes.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke refresh failed"})
	}
	if !revoked {
		obs.TokenRefreshes.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			obs.TokenRefreshes.WithLabelValues("rejected").Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		obs.TokenRefreshes.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		obs.TokenRefreshes.WithLabelValues("error").Inc()
		c.Logger().Errorf("refresh: issue tokens: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	obs.TokenRefreshes.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the presented refresh token.  Access tokens stay valid
// until they expire.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hash := auth.HashToken(strings.TrimSpace(req.RefreshToken))
	if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if _, err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	u, err := h.Users.GetByID(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(u)})
}
