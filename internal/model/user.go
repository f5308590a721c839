// Package model defines domain entities for the application.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Field limits mirror the column sizes in migrations/00001_create_users.sql.
const (
	MaxUsernameLength = 50
	MaxEmailLength    = 255
	MaxNameLength     = 100
)

// User is a managed user account.
//
// ID and CreatedAt are assigned by the storage layer on insert and never
// change afterwards.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username" validate:"required,max=50"`
	Email     string    `json:"email" validate:"required,email,max=255"`
	FirstName string    `json:"firstName" validate:"max=100"`
	LastName  string    `json:"lastName" validate:"max=100"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUser returns an unsaved, active user.
func NewUser(username, email, firstName, lastName string) *User {
	return &User{
		Username:  username,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Active:    true,
	}
}

// IsNew reports whether the user has not been persisted yet.
func (u *User) IsNew() bool {
	return u.ID == 0
}

// FullName joins first and last name, skipping empty parts.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ErrInvalidUser wraps every validation failure returned by Validate.
var ErrInvalidUser = errors.New("invalid user")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks required fields, field lengths and email syntax.
func (u *User) Validate() error {
	err := validate.Struct(u)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}

	// Only the first failing field is reported.
	return fmt.Errorf("%w: %s", ErrInvalidUser, describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

func jsonFieldName(structField string) string {
	switch structField {
	case "FirstName":
		return "firstName"
	case "LastName":
		return "lastName"
	default:
		return strings.ToLower(structField)
	}
}
