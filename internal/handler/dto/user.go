// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/userapi/userapi/internal/model"
)

// UserRequest is the body of POST /api/users and PUT /api/users/{id}.
// Active is a pointer so that an omitted flag can be told apart from false.
// Server-assigned fields (id, createdAt) are ignored if a client sends them.
type UserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Active    *bool  `json:"active,omitempty"`
}

// UserResponse is the envelope for single-user results and for plain
// success/failure messages.
type UserResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	User    *model.User `json:"user,omitempty"`
}

// UserListResponse is the envelope for user listings.
type UserListResponse struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Users   []*model.User `json:"users"`
}

// CountResponse is returned by GET /api/users/count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// UsernameExistsResponse is returned by GET /api/users/exists/username/{username}.
type UsernameExistsResponse struct {
	Username string `json:"username"`
	Exists   bool   `json:"exists"`
}

// EmailExistsResponse is returned by GET /api/users/exists/email/{email}.
type EmailExistsResponse struct {
	Email  string `json:"email"`
	Exists bool   `json:"exists"`
}

// ServiceHealthResponse is returned by GET /api/users/health.
type ServiceHealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	UserCount int64  `json:"userCount"`
}

// ErrorResponse represents an API error outside the user envelope
// (unknown routes, disallowed methods).
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Failure builds an unsuccessful envelope carrying message.
func Failure(message string) UserResponse {
	return UserResponse{Success: false, Message: message}
}

// NewUserListResponse wraps users, never emitting a JSON null list.
func NewUserListResponse(users []*model.User) UserListResponse {
	if users == nil {
		users = []*model.User{}
	}
	return UserListResponse{
		Success: true,
		Count:   len(users),
		Users:   users,
	}
}
