package handler

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/access"
	"github.com/iliyamo/taskboard/internal/middleware"
	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/queue"
	"github.com/iliyamo/taskboard/internal/repository"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

type BoardStore interface {
	Create(ctx context.Context, ownerID, title, color string) (model.Board, error)
	GetDetail(ctx context.Context, boardID string) (*repository.BoardDetail, error)
	ListForUser(ctx context.Context, userID string, page, limit int) ([]repository.BoardListItem, int, error)
	Update(ctx context.Context, boardID string, title, color *string) (model.Board, error)
	Delete(ctx context.Context, boardID string) error
}

type MemberStore interface {
	Add(ctx context.Context, boardID, userID string, role access.Role) (model.BoardMember, error)
}

// EventPublisher is satisfied by *service.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BoardEvent) error
}

// BoardHandler serves /v1/boards.  Permission checks run in
// middleware.RequireBoard before these handlers; the handlers only read
// the decision it stored.
type BoardHandler struct {
	Boards  BoardStore
	Members MemberStore
	Users   UserStore
	Events  EventPublisher
}

func NewBoardHandler(boards BoardStore, members MemberStore, users UserStore, events EventPublisher) *BoardHandler {
	return &BoardHandler{Boards: boards, Members: members, Users: users, Events: events}
}

// ----- DTOs -----

type boardReq struct {
	Title           string `json:"title"`
	BackgroundColor string `json:"background_color"`
}
type boardPatchReq struct {
	Title           *string `json:"title"`
	BackgroundColor *string `json:"background_color"`
}
type memberReq struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type boardResp struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	BackgroundColor string    `json:"background_color"`
	OwnerID         string    `json:"owner_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
type memberResp struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
	Role   string  `json:"role,omitempty"`
}
type listResp struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Position   int    `json:"position"`
	CardsCount int    `json:"cards_count"`
}
type boardSummaryResp struct {
	boardResp
	LastAccessedAt *time.Time   `json:"last_accessed_at"`
	ListsCount     int          `json:"lists_count"`
	CardsCount     int          `json:"cards_count"`
	Members        []memberResp `json:"members"`
}
type boardDetailResp struct {
	boardResp
	Members []memberResp `json:"members"`
	Lists   []listResp   `json:"lists"`
}
type paginationResp struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func toBoardResp(b model.Board) boardResp {
	return boardResp{
		ID:              b.ID,
		Title:           b.Title,
		BackgroundColor: b.BackgroundColor,
		OwnerID:         b.OwnerID,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func toMembers(in []repository.MemberInfo) []memberResp {
	out := make([]memberResp, 0, len(in))
	for _, m := range in {
		out = append(out, memberResp{ID: m.ID, Name: m.Name, Avatar: m.Avatar, Role: m.Role})
	}
	return out
}

// queryInt parses a positive integer query param, falling back to def.
func queryInt(c echo.Context, name string, def int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// publish sends ev in the background.  The broker is optional; a failure
// is logged and never reaches the client.
func (h *BoardHandler) publish(c echo.Context, ev queue.BoardEvent) {
	if h.Events == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	logger := c.Logger()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Events.Publish(ctx, ev); err != nil {
			logger.Warnf("publish %s for board %s: %v", ev.Type, ev.BoardID, err)
		}
	}()
}

// List: boards the caller owns or belongs to, newest update first.
func (h *BoardHandler) List(c echo.Context) error {
	page := queryInt(c, "page", defaultPage)
	limit := queryInt(c, "limit", defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}
	items, total, err := h.Boards.ListForUser(c.Request().Context(), middleware.UserID(c), page, limit)
	if err != nil {
		c.Logger().Errorf("list boards: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]boardSummaryResp, 0, len(items))
	for _, it := range items {
		out = append(out, boardSummaryResp{
			boardResp:      toBoardResp(it.Board),
			LastAccessedAt: it.LastAccessedAt,
			ListsCount:     it.ListsCount,
			CardsCount:     it.CardsCount,
			Members:        toMembers(it.Members),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items": out,
		"pagination": paginationResp{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

// Create: the caller becomes the owner.
func (h *BoardHandler) Create(c echo.Context) error {
	var req boardReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if !validTitle(req.Title) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title must be 1-100 characters"})
	}
	if req.BackgroundColor == "" {
		req.BackgroundColor = model.DefaultBackgroundColor
	}
	if !validColor(req.BackgroundColor) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "background_color must be #RRGGBB"})
	}
	userID := middleware.UserID(c)
	b, err := h.Boards.Create(c.Request().Context(), userID, req.Title, req.BackgroundColor)
	if err != nil {
		c.Logger().Errorf("create board: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create board failed"})
	}
	h.publish(c, queue.BoardEvent{Type: queue.BoardCreated, BoardID: b.ID, BoardTitle: b.Title, ActorID: userID})
	return c.JSON(http.StatusCreated, toBoardResp(b))
}

// Get: board detail with members and ordered lists.
func (h *BoardHandler) Get(c echo.Context) error {
	d, err := h.Boards.GetDetail(c.Request().Context(), c.Param("boardId"))
	if err != nil {
		if errors.Is(err, repository.ErrBoardNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "board not found"})
		}
		c.Logger().Errorf("get board: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	lists := make([]listResp, 0, len(d.Lists))
	for _, l := range d.Lists {
		lists = append(lists, listResp{ID: l.ID, Title: l.Title, Position: l.Position, CardsCount: l.CardsCount})
	}
	return c.JSON(http.StatusOK, boardDetailResp{
		boardResp: toBoardResp(d.Board),
		Members:   toMembers(d.Members),
		Lists:     lists,
	})
}

// Update: partial title/background_color change.
func (h *BoardHandler) Update(c echo.Context) error {
	var req boardPatchReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if !validTitle(t) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "title must be 1-100 characters"})
		}
		req.Title = &t
	}
	if req.BackgroundColor != nil && !validColor(*req.BackgroundColor) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "background_color must be #RRGGBB"})
	}
	b, err := h.Boards.Update(c.Request().Context(), c.Param("boardId"), req.Title, req.BackgroundColor)
	if err != nil {
		if errors.Is(err, repository.ErrBoardNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "board not found"})
		}
		c.Logger().Errorf("update board: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update board failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":               b.ID,
		"title":            b.Title,
		"background_color": b.BackgroundColor,
		"updated_at":       b.UpdatedAt,
	})
}

// Delete: owner only; lists, cards and memberships cascade.
func (h *BoardHandler) Delete(c echo.Context) error {
	boardID := c.Param("boardId")
	if err := h.Boards.Delete(c.Request().Context(), boardID); err != nil {
		if errors.Is(err, repository.ErrBoardNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "board not found"})
		}
		c.Logger().Errorf("delete board: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete board failed"})
	}
	h.publish(c, queue.BoardEvent{Type: queue.BoardDeleted, BoardID: boardID, ActorID: middleware.UserID(c)})
	return c.NoContent(http.StatusNoContent)
}

// AddMember grants an existing user admin or member rights.  Ownership is
// never granted this way.
func (h *BoardHandler) AddMember(c echo.Context) error {
	var req memberReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	role := access.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if role == "" {
		role = access.RoleMember
	}
	if role != access.RoleAdmin && role != access.RoleMember {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be admin or member"})
	}

	ctx := c.Request().Context()
	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	boardID := c.Param("boardId")
	if d, ok := middleware.BoardAccess(c); ok && d.OwnerID == u.ID {
		return c.JSON(http.StatusConflict, echo.Map{"error": "user is the board owner"})
	}
	m, err := h.Members.Add(ctx, boardID, u.ID, role)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyMember) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "user is already a member"})
		}
		c.Logger().Errorf("add member: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "add member failed"})
	}
	h.publish(c, queue.BoardEvent{Type: queue.MemberAdded, BoardID: boardID, ActorID: middleware.UserID(c), SubjectID: u.ID})
	return c.JSON(http.StatusCreated, memberResp{ID: u.ID, Name: u.Name, Avatar: u.Avatar, Role: m.Role})
}
