package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
)

const (
	MaxFullNameLength = 255
	MaxEmailLength    = 255
)

// Role is the directory role attached to an identity.
type Role string

const (
	RoleUser       Role = "user"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role answers tickets rather than filing them.
func (r Role) IsStaff() bool {
	return r == RoleTechnician || r == RoleAdmin
}

// Identity is the resolved caller supplied by the auth collaborator.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// Valid reports whether the identity can be used for an authenticated call.
func (i *Identity) Valid() bool {
	return i != nil && i.UserID != uuid.Nil && i.Role.IsValid()
}

// User is a directory entry. Technicians are the pool the load balancer draws from.
type User struct {
	ID        uuid.UUID
	FullName  string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// UserParams holds the fields needed to register a directory entry.
type UserParams struct {
	ID       uuid.UUID
	FullName string
	Email    string
	Role     Role
}

// Validate checks a directory entry before it is stored.
func (p *UserParams) Validate() error {
	errs := apperrors.NewValidationErrors()

	if strings.TrimSpace(p.FullName) == "" {
		errs.Add("fullName", "Full name is required")
	} else if len(p.FullName) > MaxFullNameLength {
		errs.Add("fullName", "Full name must be 255 characters or less")
	}

	if p.Email == "" {
		errs.Add("email", "Email is required")
	} else if len(p.Email) > MaxEmailLength {
		errs.Add("email", "Email must be 255 characters or less")
	} else if !isValidEmail(p.Email) {
		errs.Add("email", "Invalid email format")
	}

	if !p.Role.IsValid() {
		errs.Add("role", "Role must be one of: user, technician, admin")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// NewUser validates params and builds a directory entry.
func NewUser(params UserParams) (*User, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	id := params.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	return &User{
		ID:        id,
		FullName:  strings.TrimSpace(params.FullName),
		Email:     strings.ToLower(params.Email),
		Role:      params.Role,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UserInfo is the slice of a user embedded in ticket responses, e.g. the
// assigned technician.
type UserInfo struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"name"`
	Email    string    `json:"email"`
}

func (u *User) Info() *UserInfo {
	return &UserInfo{
		ID:       u.ID,
		FullName: u.FullName,
		Email:    u.Email,
	}
}

func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}
