package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/pos/backoffice/internal/domain/identity"
)

// RegisterBusinessRequest is the input of RegisterBusiness.
type RegisterBusinessRequest struct {
	Name         string `json:"name" binding:"required,min=1,max=200"`
	OwnerEmail   string `json:"owner_email" binding:"required,email"`
	CurrencyCode string `json:"currency_code" binding:"required,len=3"`
}

// AddUserRequest is the input of AddUser.
type AddUserRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required,oneof=owner staff"`
}

// UserResponse represents a business user in API responses
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// BusinessResponse represents a business in API responses
type BusinessResponse struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	TenantID     string         `json:"tenant_id"`
	CurrencyCode string         `json:"currency_code"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Users        []UserResponse `json:"users,omitempty"`
}

// RegisterBusinessResult is returned after onboarding.
type RegisterBusinessResult struct {
	Business  BusinessResponse `json:"business"`
	ElapsedMs int64            `json:"elapsed_ms"`
	Message   string           `json:"message"`
}

// CurrencyResponse represents a currency in API responses
type CurrencyResponse struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// ToBusinessResponse converts a domain Business to BusinessResponse
func ToBusinessResponse(b *identity.Business) BusinessResponse {
	return BusinessResponse{
		ID:           b.ID,
		Name:         b.Name,
		TenantID:     b.TenantID,
		CurrencyCode: b.CurrencyCode,
		Status:       string(b.Status),
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

// ToUserResponse converts a domain BusinessUser to UserResponse
func ToUserResponse(u *identity.BusinessUser) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}
