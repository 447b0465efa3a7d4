package client

import "time"

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (u userResponse) subject() Subject {
	return Subject{ID: u.ID, Email: u.Email, DisplayName: u.Name}
}

// authResponse is the body of register, login and refresh.
type authResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

type Member struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
	Role   string  `json:"role,omitempty"`
}

type Board struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	BackgroundColor string    `json:"background_color"`
	OwnerID         string    `json:"owner_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type BoardSummary struct {
	Board
	LastAccessedAt *time.Time `json:"last_accessed_at"`
	ListsCount     int        `json:"lists_count"`
	CardsCount     int        `json:"cards_count"`
	Members        []Member   `json:"members"`
}

type ListSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Position   int    `json:"position"`
	CardsCount int    `json:"cards_count"`
}

type BoardDetail struct {
	Board
	Members []Member      `json:"members"`
	Lists   []ListSummary `json:"lists"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type BoardPage struct {
	Items      []BoardSummary `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// BoardInput creates a board.  An empty BackgroundColor lets the server
// pick its default.
type BoardInput struct {
	Title           string `json:"title"`
	BackgroundColor string `json:"background_color,omitempty"`
}

// BoardPatch updates only the non-nil fields.
type BoardPatch struct {
	Title           *string `json:"title,omitempty"`
	BackgroundColor *string `json:"background_color,omitempty"`
}
