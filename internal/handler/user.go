package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/userapi/userapi/internal/handler/dto"
	"github.com/userapi/userapi/internal/service"
)

// ServiceName is reported by the user service health endpoint.
const ServiceName = "User Management API"

// UserHandler handles HTTP requests for user operations.
type UserHandler struct {
	svc    *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		svc:    svc,
		logger: logger,
	}
}

// Routes returns the router mounted at /api/users.
func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.Health)
	r.Get("/count", h.Count)
	r.Get("/active", h.ListActive)
	r.Get("/username/{username}", h.GetByUsername)
	r.Get("/exists/username/{username}", h.UsernameExists)
	r.Get("/exists/email/{email}", h.EmailExists)

	r.Post("/", h.Create)
	r.Get("/", h.List)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Patch("/deactivate", h.Deactivate)
		r.Patch("/activate", h.Activate)
	})

	return r
}

// Health handles GET /api/users/health.
func (h *UserHandler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.GetUserCount(r.Context())
	if err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ServiceHealthResponse{
		Status:    "UP",
		Service:   ServiceName,
		UserCount: count,
	})
}

// Create handles POST /api/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.UserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.svc.CreateUser(r.Context(), service.CreateUserInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.handleServiceError(w, err, http.StatusBadRequest)
		return
	}

	h.logger.Info("user_created",
		"user_id", user.ID,
		"username", user.Username,
	)

	writeJSON(w, http.StatusCreated, dto.UserResponse{
		Success: true,
		Message: "User created successfully",
		User:    user,
	})
}

// List handles GET /api/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.GetAllUsers(r.Context())
	if err != nil {
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserListResponse(users))
}

// ListActive handles GET /api/users/active.
func (h *UserHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.GetActiveUsers(r.Context())
	if err != nil {
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserListResponse(users))
}

// Get handles GET /api/users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	user, err := h.svc.GetUserByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, dto.UserResponse{Success: true, User: user})
}

// GetByUsername handles GET /api/users/username/{username}.
func (h *UserHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.svc.GetUserByUsername(r.Context(), username)
	if err != nil {
		h.handleServiceError(w, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, dto.UserResponse{Success: true, User: user})
}

// Update handles PUT /api/users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req dto.UserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.svc.UpdateUser(r.Context(), service.UpdateUserInput{
		ID:        id,
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Active:    req.Active,
	})
	if err != nil {
		h.handleServiceError(w, err, http.StatusBadRequest)
		return
	}

	h.logger.Info("user_updated",
		"user_id", user.ID,
		"username", user.Username,
	)

	writeJSON(w, http.StatusOK, dto.UserResponse{
		Success: true,
		Message: "User updated successfully",
		User:    user,
	})
}

// Delete handles DELETE /api/users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteUser(r.Context(), id); err != nil {
		h.handleServiceError(w, err, http.StatusBadRequest)
		return
	}

	h.logger.Info("user_deleted", "user_id", id)

	writeJSON(w, http.StatusOK, dto.UserResponse{Success: true, Message: "User deleted successfully"})
}

// Deactivate handles PATCH /api/users/{id}/deactivate.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeactivateUser(r.Context(), id); err != nil {
		h.handleServiceError(w, err, http.StatusBadRequest)
		return
	}

	h.logger.Info("user_deactivated", "user_id", id)

	writeJSON(w, http.StatusOK, dto.UserResponse{Success: true, Message: "User deactivated successfully"})
}

// Activate handles PATCH /api/users/{id}/activate.
func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.svc.ActivateUser(r.Context(), id); err != nil {
		h.handleServiceError(w, err, http.StatusBadRequest)
		return
	}

	h.logger.Info("user_activated", "user_id", id)

	writeJSON(w, http.StatusOK, dto.UserResponse{Success: true, Message: "User activated successfully"})
}

// UsernameExists handles GET /api/users/exists/username/{username}.
func (h *UserHandler) UsernameExists(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	exists, err := h.svc.UsernameExists(r.Context(), username)
	if err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UsernameExistsResponse{Username: username, Exists: exists})
}

// EmailExists handles GET /api/users/exists/email/{email}.
func (h *UserHandler) EmailExists(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	exists, err := h.svc.EmailExists(r.Context(), email)
	if err != nil {
		h.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EmailExistsResponse{Email: email, Exists: exists})
}

// Count handles GET /api/users/count.
func (h *UserHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.GetUserCount(r.Context())
	if err != nil {
		h.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CountResponse{Count: count})
}

// userID parses the {id} path parameter, writing a 400 when it is not an
// integer. Zero and negative ids parse and are simply never found.
func (h *UserHandler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.Failure("Invalid user id: "+raw))
		return 0, false
	}
	return id, true
}

// decode reads exactly one JSON value from the body. Trailing data after it
// is rejected like any other malformed body.
func (h *UserHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil || dec.More() {
		writeJSON(w, http.StatusBadRequest, dto.Failure("Invalid request body"))
		return false
	}
	return true
}

// handleServiceError maps service errors to HTTP responses. Lookups answer a
// missing user with 404 while mutations answer it with 400, so the caller
// picks the status used for ErrUserNotFound.
func (h *UserHandler) handleServiceError(w http.ResponseWriter, err error, notFoundStatus int) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeJSON(w, notFoundStatus, dto.Failure(sentence(err.Error())))
	case errors.Is(err, service.ErrDuplicateUsername),
		errors.Is(err, service.ErrDuplicateEmail),
		errors.Is(err, service.ErrValidation):
		writeJSON(w, http.StatusBadRequest, dto.Failure(sentence(err.Error())))
	default:
		h.internalError(w, err)
	}
}

func (h *UserHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("internal_error", "error", err)
	writeJSON(w, http.StatusInternalServerError, dto.Failure("An internal error occurred"))
}

// sentence upper-cases the first letter of an error message.
func sentence(msg string) string {
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
