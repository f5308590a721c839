// Package memstore is an in-memory implementation of the user storage
// accessor. It follows the same contract as the PostgreSQL repository,
// including the unique username and email constraints, and is meant for
// tests and local experiments.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/userapi/userapi/internal/model"
	"github.com/userapi/userapi/internal/repository"
)

// Store keeps users in a map guarded by a mutex.
type Store struct {
	mu     sync.RWMutex
	users  map[int64]*model.User
	nextID int64
	now    func() time.Time

	// Err, when set, is returned by every operation to simulate an
	// unreachable database.
	Err error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:  make(map[int64]*model.User),
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for created_at.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FindUserByID returns repository.ErrUserNotFound when no user has id.
func (s *Store) FindUserByID(ctx context.Context, id int64) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return clone(u), nil
}

// FindUserByUsername looks a user up by exact username.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findBy(func(u *model.User) bool { return u.Username == username })
}

// FindUserByEmail looks a user up by exact email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findBy(func(u *model.User) bool { return u.Email == email })
}

func (s *Store) findBy(match func(*model.User) bool) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// ListUsers returns every user, newest first.
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.list(func(*model.User) bool { return true })
}

// ListActiveUsers returns active users, newest first.
func (s *Store) ListActiveUsers(ctx context.Context) ([]*model.User, error) {
	return s.list(func(u *model.User) bool { return u.Active })
}

func (s *Store) list(keep func(*model.User) bool) ([]*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		if keep(u) {
			out = append(out, clone(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// CountUsers returns the number of stored users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// UserExistsByID reports whether a user with id is stored.
func (s *Store) UserExistsByID(ctx context.Context, id int64) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[id]
	return ok, nil
}

// UserExistsByUsername reports whether username is taken.
func (s *Store) UserExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := s.FindUserByUsername(ctx, username)
	return existsResult(err)
}

// UserExistsByEmail reports whether email is taken.
func (s *Store) UserExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindUserByEmail(ctx, email)
	return existsResult(err)
}

func existsResult(err error) (bool, error) {
	switch err {
	case nil:
		return true, nil
	case repository.ErrUserNotFound:
		return false, nil
	default:
		return false, err
	}
}

// SaveUser inserts or overwrites a user, enforcing the unique constraints.
func (s *Store) SaveUser(ctx context.Context, user *model.User) (*model.User, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, other := range s.users {
		if id == user.ID {
			continue
		}
		if other.Username == user.Username {
			return nil, repository.ErrUsernameExists
		}
		if other.Email == user.Email {
			return nil, repository.ErrEmailExists
		}
	}

	saved := clone(user)
	if user.IsNew() {
		saved.ID = s.nextID
		saved.CreatedAt = s.now()
		s.nextID++
	} else {
		existing, ok := s.users[user.ID]
		if !ok {
			return nil, repository.ErrUserNotFound
		}
		saved.CreatedAt = existing.CreatedAt
	}

	s.users[saved.ID] = saved
	return clone(saved), nil
}

// DeleteUser removes user by its id.
func (s *Store) DeleteUser(ctx context.Context, user *model.User) error {
	return s.DeleteUserByID(ctx, user.ID)
}

// DeleteUserByID removes the user with id. Missing ids are a no-op.
func (s *Store) DeleteUserByID(ctx context.Context, id int64) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func clone(u *model.User) *model.User {
	c := *u
	return &c
}
