package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Password length bounds. The upper bound is bcrypt's input limit.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// User is a WhatsApp contact known to the assistant. Users are created
// implicitly on their first inbound message and may later register a
// password to use the REST API.
type User struct {
	ID             uuid.UUID      `json:"id"`
	PhoneNumber    string         `json:"phoneNumber"`
	Name           string         `json:"name,omitempty"`
	Email          string         `json:"email,omitempty"`
	Password       string         `json:"-"` // plaintext, only set during registration
	HashedPassword string         `json:"-"`
	ProfilePicture string         `json:"profilePicture,omitempty"`
	Preferences    map[string]any `json:"preferences"`
	IsActive       bool           `json:"isActive"`
	LastSeenAt     *time.Time     `json:"lastSeenAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// NewUser creates an active user for the given phone number.
func NewUser(phone string) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		ID:          uuid.New(),
		PhoneNumber: strings.TrimSpace(phone),
		Preferences: map[string]any{},
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}
	if u.PhoneNumber == "" {
		return ErrEmptyPhoneNumber
	}
	if !ValidPhoneNumber(u.PhoneNumber) {
		return ErrInvalidPhone
	}
	if u.Email != "" && !emailPattern.MatchString(u.Email) {
		return ErrInvalidEmail
	}
	if u.Password != "" {
		switch {
		case len(u.Password) < MinPasswordLength:
			return ErrPasswordTooShort
		case len(u.Password) > MaxPasswordLength:
			return ErrPasswordTooLong
		}
	}
	return nil
}

// HasPassword reports whether the user has registered API credentials.
func (u *User) HasPassword() bool {
	return u.HashedPassword != ""
}

// Touch records activity at t.
func (u *User) Touch(t time.Time) {
	t = t.UTC()
	u.LastSeenAt = &t
	u.UpdatedAt = t
}

// ValidPhoneNumber reports whether phone looks like an E.164 number, with or
// without the leading plus sign WhatsApp omits.
func ValidPhoneNumber(phone string) bool {
	return phonePattern.MatchString(phone)
}
