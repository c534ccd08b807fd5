// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen      = 36
	MaxDisplayNameLen = 36
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrUserIDEmpty        = errors.New("user id empty")
	ErrUserIDTooLong      = errors.New("user id too long")
)

type UserID string

// NewUserID returns a fresh id for one process run of a participant.
func NewUserID() UserID { return UserID(uuid.NewString()) }

type User struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"displayName"`
}

// NewUser validates the client-asserted identity of a joining participant.
func NewUser(id UserID, displayName string) (*User, error) {
	if len(id) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	name, err := ValidateDisplayName(displayName)
	if err != nil {
		return nil, err
	}
	return &User{ID: id, DisplayName: name}, nil
}

func (u *User) SetDisplayName(displayName string) error {
	name, err := ValidateDisplayName(displayName)
	if err != nil {
		return err
	}
	u.DisplayName = name
	return nil
}

// ValidateDisplayName trims the name and checks its length in runes.
func ValidateDisplayName(displayName string) (string, error) {
	name := strings.TrimSpace(displayName)
	if len(name) == 0 {
		return "", ErrDisplayNameEmpty
	}
	if len([]rune(name)) > MaxDisplayNameLen {
		return "", ErrDisplayNameTooLong
	}
	return name, nil
}
