// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/userapi/userapi/internal/events"
	"github.com/userapi/userapi/internal/metrics"
	"github.com/userapi/userapi/internal/model"
	"github.com/userapi/userapi/internal/repository"
)

// Service errors.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
	// ErrValidation is returned for malformed input, e.g. a missing username
	// or a syntactically invalid email.
	ErrValidation = model.ErrInvalidUser
)

// UserStore is the storage accessor the service persists through.
// *repository.Repository is the production implementation. Lookups report
// absence with repository.ErrUserNotFound.
type UserStore interface {
	FindUserByID(ctx context.Context, id int64) (*model.User, error)
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	ListActiveUsers(ctx context.Context) ([]*model.User, error)
	CountUsers(ctx context.Context) (int64, error)
	UserExistsByID(ctx context.Context, id int64) (bool, error)
	UserExistsByUsername(ctx context.Context, username string) (bool, error)
	UserExistsByEmail(ctx context.Context, email string) (bool, error)
	SaveUser(ctx context.Context, user *model.User) (*model.User, error)
	DeleteUserByID(ctx context.Context, id int64) error
}

// UserService enforces the username/email uniqueness rules and owns every
// mutation of a user before it reaches the store.
//
// Uniqueness is checked before writing and the check and the write are not
// atomic. Two concurrent requests for the same username can both pass the
// check; the loser then fails on the table's unique constraint, which is
// reported as the same duplicate error.
type UserService struct {
	store   UserStore
	metrics metrics.Recorder
	events  EventPublisher
	now     func() time.Time
}

// EventPublisher receives a lifecycle event after every successful mutation.
// *events.Publisher is the production implementation.
type EventPublisher interface {
	PublishAsync(event events.UserEvent)
}

// Option configures a UserService.
type Option func(*UserService)

// WithEvents publishes lifecycle events through p.
func WithEvents(p EventPublisher) Option {
	return func(s *UserService) {
		s.events = p
	}
}

// NewUserService creates a new UserService.
func NewUserService(store UserStore, recorder metrics.Recorder, opts ...Option) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	s := &UserService{
		store:   store,
		metrics: recorder,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *UserService) emit(typ events.Type, user *model.User) {
	if s.events == nil {
		return
	}
	s.events.PublishAsync(events.NewUserEvent(typ, user, s.now()))
}

// CreateUserInput defines input for creating a user.
type CreateUserInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// CreateUser validates the candidate, checks username then email uniqueness
// and persists an active user.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*model.User, error) {
	user := model.NewUser(input.Username, input.Email, input.FirstName, input.LastName)
	if err := user.Validate(); err != nil {
		s.metrics.IncUserRejected("invalid")
		return nil, err
	}

	if err := s.checkUsernameFree(ctx, user.Username); err != nil {
		return nil, err
	}
	if err := s.checkEmailFree(ctx, user.Email); err != nil {
		return nil, err
	}

	created, err := s.store.SaveUser(ctx, user)
	if err != nil {
		return nil, s.translateSaveError(err, user)
	}

	s.metrics.IncUserCreated()
	s.emit(events.UserCreated, created)

	return created, nil
}

// UpdateUserInput defines input for updating a user. Username, Email,
// FirstName and LastName always overwrite the stored values; Active is only
// applied when non-nil.
type UpdateUserInput struct {
	ID        int64
	Username  string
	Email     string
	FirstName string
	LastName  string
	Active    *bool
}

// UpdateUser overwrites a user's details.
func (s *UserService) UpdateUser(ctx context.Context, input UpdateUserInput) (*model.User, error) {
	user, err := s.findForWrite(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if user.Username != input.Username {
		if err := s.checkUsernameFree(ctx, input.Username); err != nil {
			return nil, err
		}
	}
	if user.Email != input.Email {
		if err := s.checkEmailFree(ctx, input.Email); err != nil {
			return nil, err
		}
	}

	user.Username = input.Username
	user.Email = input.Email
	user.FirstName = input.FirstName
	user.LastName = input.LastName
	if input.Active != nil {
		user.Active = *input.Active
	}

	if err := user.Validate(); err != nil {
		s.metrics.IncUserRejected("invalid")
		return nil, err
	}

	updated, err := s.store.SaveUser(ctx, user)
	if err != nil {
		return nil, s.translateSaveError(err, user)
	}

	s.metrics.IncUserUpdated()
	s.emit(events.UserUpdated, updated)

	return updated, nil
}

// DeleteUser permanently removes a user.
func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	exists, err := s.store.UserExistsByID(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		s.metrics.IncUserRejected("not_found")
		return notFound(id)
	}

	if err := s.store.DeleteUserByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.metrics.IncUserDeleted()
	s.emit(events.UserDeleted, &model.User{ID: id})

	return nil
}

// DeactivateUser clears the active flag.
func (s *UserService) DeactivateUser(ctx context.Context, id int64) error {
	user, err := s.setActive(ctx, id, false)
	if err != nil {
		return err
	}
	s.metrics.IncUserDeactivated()
	s.emit(events.UserDeactivated, user)
	return nil
}

// ActivateUser sets the active flag.
func (s *UserService) ActivateUser(ctx context.Context, id int64) error {
	user, err := s.setActive(ctx, id, true)
	if err != nil {
		return err
	}
	s.metrics.IncUserActivated()
	s.emit(events.UserActivated, user)
	return nil
}

func (s *UserService) setActive(ctx context.Context, id int64, active bool) (*model.User, error) {
	user, err := s.findForWrite(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Active = active
	saved, err := s.store.SaveUser(ctx, user)
	if err != nil {
		return nil, s.translateSaveError(err, user)
	}
	return saved, nil
}

// GetUserByID returns ErrUserNotFound when no user has the given id.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.store.FindUserByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, notFound(id)
	}
	return user, err
}

// GetUserByUsername returns ErrUserNotFound when username is unknown.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.store.FindUserByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("%w with username: %s", ErrUserNotFound, username)
	}
	return user, err
}

// GetUserByEmail returns ErrUserNotFound when email is unknown.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("%w with email: %s", ErrUserNotFound, email)
	}
	return user, err
}

// GetAllUsers lists every user, newest first.
func (s *UserService) GetAllUsers(ctx context.Context) ([]*model.User, error) {
	return s.store.ListUsers(ctx)
}

// GetActiveUsers lists active users, newest first.
func (s *UserService) GetActiveUsers(ctx context.Context) ([]*model.User, error) {
	return s.store.ListActiveUsers(ctx)
}

// GetUserCount returns the total number of users.
func (s *UserService) GetUserCount(ctx context.Context) (int64, error) {
	return s.store.CountUsers(ctx)
}

// UserExists reports whether a user with id exists.
func (s *UserService) UserExists(ctx context.Context, id int64) (bool, error) {
	return s.store.UserExistsByID(ctx, id)
}

// UsernameExists reports whether username is taken.
func (s *UserService) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.store.UserExistsByUsername(ctx, username)
}

// EmailExists reports whether email is taken.
func (s *UserService) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.store.UserExistsByEmail(ctx, email)
}

func (s *UserService) findForWrite(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.metrics.IncUserRejected("not_found")
			return nil, notFound(id)
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) checkUsernameFree(ctx context.Context, username string) error {
	taken, err := s.store.UserExistsByUsername(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		s.metrics.IncUserRejected("duplicate_username")
		return duplicateUsername(username)
	}
	return nil
}

func (s *UserService) checkEmailFree(ctx context.Context, email string) error {
	taken, err := s.store.UserExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		s.metrics.IncUserRejected("duplicate_email")
		return duplicateEmail(email)
	}
	return nil
}

// translateSaveError maps store errors raised by a write, including unique
// violations from a lost check-then-write race, to service errors.
func (s *UserService) translateSaveError(err error, user *model.User) error {
	switch {
	case errors.Is(err, repository.ErrUsernameExists):
		s.metrics.IncUserRejected("duplicate_username")
		return duplicateUsername(user.Username)
	case errors.Is(err, repository.ErrEmailExists):
		s.metrics.IncUserRejected("duplicate_email")
		return duplicateEmail(user.Email)
	case errors.Is(err, repository.ErrUserNotFound):
		s.metrics.IncUserRejected("not_found")
		return notFound(user.ID)
	default:
		return fmt.Errorf("failed to save user: %w", err)
	}
}

func notFound(id int64) error {
	return fmt.Errorf("%w with id: %d", ErrUserNotFound, id)
}

func duplicateUsername(username string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateUsername, username)
}

func duplicateEmail(email string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
}
