package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appidentity "github.com/pos/backoffice/internal/application/identity"
	"github.com/pos/backoffice/internal/infrastructure/auth"
	"github.com/pos/backoffice/internal/interfaces/http/dto"
	"github.com/pos/backoffice/internal/interfaces/http/middleware"
)

// BusinessHandler serves onboarding and business administration.
type BusinessHandler struct {
	BaseHandler
	businessService *appidentity.BusinessService
}

// NewBusinessHandler creates a new BusinessHandler
func NewBusinessHandler(businessService *appidentity.BusinessService) *BusinessHandler {
	return &BusinessHandler{businessService: businessService}
}

// OnboardingRequest registers a business. A superuser names the owner; for
// anyone else the owner is the caller.
type OnboardingRequest struct {
	Name         string `json:"name" binding:"required,min=1,max=200"`
	CurrencyCode string `json:"currency_code" binding:"required,len=3"`
	OwnerEmail   string `json:"owner_email" binding:"omitempty,email"`
}

// Register handles POST /onboarding/businesses.
func (h *BusinessHandler) Register(c *gin.Context) {
	var req OnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	claims := middleware.GetJWTClaims(c)
	owner := req.OwnerEmail
	if !claims.HasRole(auth.RoleSuperuser) {
		caller := claims.IdentityKey()
		if owner != "" && !strings.EqualFold(owner, caller) {
			h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, "Only a superuser can register a business for someone else")
			return
		}
		owner = caller
	} else if owner == "" {
		h.BadRequest(c, "owner_email is required")
		return
	}

	result, err := h.businessService.RegisterBusiness(c.Request.Context(), appidentity.RegisterBusinessRequest{
		Name:         req.Name,
		OwnerEmail:   owner,
		CurrencyCode: req.CurrencyCode,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Currencies handles GET /onboarding/currencies.
func (h *BusinessHandler) Currencies(c *gin.Context) {
	currencies, err := h.businessService.ListCurrencies(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, currencies)
}

// List handles GET /admin/businesses.
func (h *BusinessHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	req.Normalize()

	businesses, total, err := h.businessService.ListBusinesses(c.Request.Context(), req.Offset(), req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, businesses, total, req.Page, req.PageSize)
}

// Get handles GET /admin/businesses/:id.
func (h *BusinessHandler) Get(c *gin.Context) {
	var req dto.IDRequest
	if !bindURI(c, &req) {
		return
	}

	business, err := h.businessService.GetBusiness(c.Request.Context(), uuid.MustParse(req.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, business)
}

// AddUser handles POST /admin/businesses/:id/users.
func (h *BusinessHandler) AddUser(c *gin.Context) {
	var uri dto.IDRequest
	if !bindURI(c, &uri) {
		return
	}
	var req appidentity.AddUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	user, err := h.businessService.AddUser(c.Request.Context(), uuid.MustParse(uri.ID), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, user)
}
