package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/recurflow/internal/catalog/domain"
	consentdomain "github.com/smallbiznis/recurflow/internal/consent/domain"
	gatewaydomain "github.com/smallbiznis/recurflow/internal/gateway/domain"
	orderdomain "github.com/smallbiznis/recurflow/internal/order/domain"
	pricingdomain "github.com/smallbiznis/recurflow/internal/pricing/domain"
	subscriptiondomain "github.com/smallbiznis/recurflow/internal/subscription/domain"
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
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, consentdomain.ErrConsentAlreadyApplied):
		return http.StatusConflict, errorPayload{
			Type:    "already_applied",
			Message: "consent already applied",
		}
	case errors.Is(err, orderdomain.ErrVoidProhibitedByProvider),
		errors.Is(err, consentdomain.ErrProviderActionNotAllowed):
		return http.StatusForbidden, errorPayload{
			Type:    "prohibited_by_policy",
			Message: err.Error(),
		}
	case errors.Is(err, consentdomain.ErrConsentNotRequired),
		errors.Is(err, consentdomain.ErrConsentWithoutNotification):
		return http.StatusPreconditionFailed, errorPayload{
			Type:    "precondition_not_met",
			Message: err.Error(),
		}
	case errors.Is(err, orderdomain.ErrVoidInvalidState),
		errors.Is(err, orderdomain.ErrVoidZeroRevenue),
		errors.Is(err, orderdomain.ErrVoidInvalidProvider),
		errors.Is(err, gatewaydomain.ErrVoidDeclined):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "invalid_state",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
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
		errors.Is(err, subscriptiondomain.ErrInvalidOwnerType),
		errors.Is(err, subscriptiondomain.ErrMissingSubscription),
		errors.Is(err, pricingdomain.ErrInvalidOwnerType):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, orderdomain.ErrUpsellNotFound),
		errors.Is(err, subscriptiondomain.ErrLineItemNotFound),
		errors.Is(err, subscriptiondomain.ErrBillingModelNotFound),
		errors.Is(err, pricingdomain.ErrLineItemNotFound),
		errors.Is(err, catalogdomain.ErrProductNotFound),
		errors.Is(err, gatewaydomain.ErrGatewayNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
