package identity

import (
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/pos/backoffice/internal/domain/shared"
)

// UserRole is the role of a user inside their business.
type UserRole string

const (
	UserRoleOwner UserRole = "owner"
	UserRoleStaff UserRole = "staff"
)

// BusinessUser links an authenticated identity (email) to one business.
// An email belongs to at most one business.
type BusinessUser struct {
	shared.BaseEntity
	BusinessID uuid.UUID
	Email      string
	Role       UserRole
}

// NewBusinessUser creates a user; the email is stored lowercased.
func NewBusinessUser(businessID uuid.UUID, email string, role UserRole) (*BusinessUser, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	switch role {
	case UserRoleOwner, UserRoleStaff:
	default:
		return nil, shared.InvalidInput("Invalid user role")
	}

	return &BusinessUser{
		BaseEntity: shared.NewBaseEntity(),
		BusinessID: businessID,
		Email:      normalized,
		Role:       role,
	}, nil
}

// NormalizeEmail validates an address and returns it trimmed and lowercased.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", shared.InvalidInput("Email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", shared.InvalidInput("Invalid email format")
	}
	return email, nil
}
