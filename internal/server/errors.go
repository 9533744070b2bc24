package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tenantdesk/internal/lock"
	paymentlegdomain "github.com/smallbiznis/tenantdesk/internal/paymentleg/domain"
	plandomain "github.com/smallbiznis/tenantdesk/internal/plan/domain"
	renewaldomain "github.com/smallbiznis/tenantdesk/internal/renewal/domain"
	tenantdomain "github.com/smallbiznis/tenantdesk/internal/tenant/domain"
	treasurydomain "github.com/smallbiznis/tenantdesk/internal/treasury/domain"
	"github.com/smallbiznis/tenantdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, renewaldomain.ErrInsufficientPayment):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "insufficient_payment",
			Message: "outstanding balance exceeds settlement tolerance",
		}
	case errors.Is(err, renewaldomain.ErrStaleTenantState):
		return http.StatusConflict, errorPayload{
			Type:    "stale_tenant_state",
			Message: "tenant subscription changed since the renewal was opened",
		}
	case errors.Is(err, renewaldomain.ErrTenantLocked),
		errors.Is(err, lock.ErrNotAcquired):
		return http.StatusConflict, errorPayload{
			Type:    "tenant_locked",
			Message: "another renewal for this tenant is committing",
		}
	case errors.Is(err, renewaldomain.ErrTransactionClosed):
		return http.StatusConflict, errorPayload{
			Type:    "renewal_closed",
			Message: "renewal is no longer open",
		}
	case errors.Is(err, treasurydomain.ErrAccountNotConfigured):
		return http.StatusConflict, errorPayload{
			Type:    "account_not_configured",
			Message: "no treasury account is configured for a payment method on this renewal",
		}
	case errors.Is(err, treasurydomain.ErrInvalidEntryAmount):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "invalid_entry_amount",
			Message: "a payment leg has no positive amount",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, tenantdomain.ErrSlugTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog reports the mapped type and the sentinel code for request logs.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	} else if payload.Type != "internal_error" {
		code = strings.TrimSpace(err.Error())
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	case isTenantValidationError(err),
		isRenewalValidationError(err),
		isTreasuryValidationError(err):
		return true
	default:
		return false
	}
}

func isTenantValidationError(err error) bool {
	switch {
	case errors.Is(err, tenantdomain.ErrInvalidName),
		errors.Is(err, tenantdomain.ErrInvalidSlug),
		errors.Is(err, tenantdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isRenewalValidationError(err error) bool {
	switch {
	case errors.Is(err, renewaldomain.ErrInvalidID),
		errors.Is(err, renewaldomain.ErrInvalidLegID),
		errors.Is(err, paymentlegdomain.ErrInvalidAmount),
		errors.Is(err, paymentlegdomain.ErrInvalidMethod),
		errors.Is(err, plandomain.ErrInvalidTier):
		return true
	default:
		return false
	}
}

func isTreasuryValidationError(err error) bool {
	return errors.Is(err, treasurydomain.ErrInvalidTenant)
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, tenantdomain.ErrTenantNotFound),
		errors.Is(err, renewaldomain.ErrTransactionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
