// Package handler holds the gin handlers of the back office API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apptenancy "github.com/pos/backoffice/internal/application/tenancy"
	"github.com/pos/backoffice/internal/domain/shared"
	"github.com/pos/backoffice/internal/infrastructure/logger"
	"github.com/pos/backoffice/internal/infrastructure/tenancy"
	"github.com/pos/backoffice/internal/interfaces/http/dto"
	"github.com/pos/backoffice/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

const genericErrorMessage = "An unexpected error occurred"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponse(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 listing the fields that failed binding.
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// HandleError maps an error to a response. Tenancy and provisioning
// failures get a generic message; the tenant id and cause are logged
// server-side only.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, dto.GetHTTPStatus(domainErr.Code), domainErr.Code, domainErr.Message)
		return
	}

	log := logger.L(c.Request.Context())

	switch {
	case errors.Is(err, tenancy.ErrInvalidTenantIdentifier):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidTenantID, "Invalid tenant identifier")
	case errors.Is(err, tenancy.ErrIdentityMissing):
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeTenantIdentityMissing, "Cannot resolve tenant without an authenticated identity")
	case errors.Is(err, tenancy.ErrTenantNotResolved):
		h.Error(c, http.StatusForbidden, dto.ErrCodeTenantNotResolved, tenancy.ErrTenantNotResolved.Error())
	case isProvisioningError(err):
		log.Error("Tenant provisioning failed", zap.Error(err))
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeTenantProvisioning, "Tenant provisioning failed")
	case tenancy.IsConnectionError(err), errors.Is(err, tenancy.ErrRegistryClosed):
		log.Error("Tenant database unavailable", zap.Error(err))
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeTenantUnavailable, "Tenant database unavailable")
	default:
		log.Error("Request failed", zap.Error(err))
		h.InternalError(c, genericErrorMessage)
	}
}

func isProvisioningError(err error) bool {
	var perr *apptenancy.ProvisioningError
	return errors.As(err, &perr)
}

// bindURI binds path parameters or writes a validation error.
func bindURI(c *gin.Context, req any) bool {
	if err := c.ShouldBindUri(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}
