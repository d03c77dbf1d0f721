package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/pattamap/pattamap-vip/internal/payment/domain"
	subscriptiondomain "github.com/pattamap/pattamap-vip/internal/subscription/domain"
	"github.com/pattamap/pattamap-vip/pkg/db/pagination"
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
	Success bool         `json:"success"`
	Error   errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
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
		c.AbortWithStatusJSON(status, errorResponse{Success: false, Error: payload})
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
			Message: vErr.Errors[0].Message,
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		message := validationErrorMessage(code)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: message,
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: message,
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, subscriptiondomain.ErrUnauthenticated),
		errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "authentication required",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, subscriptiondomain.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "you are not allowed to perform this action",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: notFoundMessage(err),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many purchase attempts, try again shortly",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, paymentdomain.ErrWebhookNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: serviceUnavailableMessage(err),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code recorded on request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status == http.StatusInternalServerError && errors.Is(err, subscriptiondomain.ErrPersistence) {
		code = subscriptiondomain.ErrPersistence.Error()
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil && len(vErr.Errors) > 0 {
		return vErr
	}
	return nil
}

var validationSentinels = []error{
	ErrInvalidRequest,
	subscriptiondomain.ErrInvalidSubscriptionType,
	subscriptiondomain.ErrInvalidDuration,
	subscriptiondomain.ErrInvalidPaymentMethod,
	subscriptiondomain.ErrInvalidPaymentStatus,
	subscriptiondomain.ErrInvalidEntityID,
	subscriptiondomain.ErrInvalidSubscriptionID,
	subscriptiondomain.ErrInvalidTransactionID,
	subscriptiondomain.ErrPriceNotConfigured,
	subscriptiondomain.ErrPaymentNotConfigured,
	subscriptiondomain.ErrRejectionReasonRequired,
	subscriptiondomain.ErrNotCashPayment,
	subscriptiondomain.ErrNotTransferPayment,
	subscriptiondomain.ErrInvalidPaymentReference,
	subscriptiondomain.ErrAmountMismatch,
	paymentdomain.ErrInvalidPayload,
	paymentdomain.ErrInvalidEvent,
	pagination.ErrInvalidPageToken,
}

func isValidationError(err error) bool {
	return validationErrorCode(err) != ""
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, subscriptiondomain.ErrTransactionNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, subscriptiondomain.ErrActiveSubscriptionExists),
		errors.Is(err, subscriptiondomain.ErrAlreadyVerified),
		errors.Is(err, subscriptiondomain.ErrInvalidStatusTransition),
		errors.Is(err, subscriptiondomain.ErrPurchaseInProgress):
		return true
	default:
		return false
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound):
		return "subscription not found"
	case errors.Is(err, subscriptiondomain.ErrTransactionNotFound):
		return "transaction not found"
	default:
		return "not found"
	}
}

// conflictMessage surfaces the typed conflict text, which names the blocking
// tier, expiry or status.
func conflictMessage(err error) string {
	var active *subscriptiondomain.ActiveSubscriptionExistsError
	if errors.As(err, &active) {
		return active.Error()
	}
	var status *subscriptiondomain.StatusConflictError
	if errors.As(err, &status) {
		return status.Error()
	}
	switch {
	case errors.Is(err, subscriptiondomain.ErrAlreadyVerified):
		return "payment already verified"
	case errors.Is(err, subscriptiondomain.ErrPurchaseInProgress):
		return "another purchase for this entity is in progress"
	default:
		return "conflict"
	}
}

func serviceUnavailableMessage(err error) string {
	if errors.Is(err, paymentdomain.ErrWebhookNotConfigured) {
		return "payment webhook is not configured"
	}
	return "service unavailable"
}

func validationErrorCode(err error) string {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return ""
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case subscriptiondomain.ErrRejectionReasonRequired.Error():
		return "admin_notes"
	case subscriptiondomain.ErrNotCashPayment.Error(),
		subscriptiondomain.ErrNotTransferPayment.Error(),
		subscriptiondomain.ErrPaymentNotConfigured.Error():
		return "payment_method"
	case subscriptiondomain.ErrInvalidPaymentReference.Error():
		return "reference"
	case subscriptiondomain.ErrAmountMismatch.Error():
		return "amount"
	case paymentdomain.ErrInvalidPayload.Error(),
		paymentdomain.ErrInvalidEvent.Error():
		return "payload"
	case subscriptiondomain.ErrPriceNotConfigured.Error():
		return "duration"
	case pagination.ErrInvalidPageToken.Error():
		return "page_token"
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
	case subscriptiondomain.ErrInvalidSubscriptionType.Error():
		return "subscription_type must be employee or establishment"
	case subscriptiondomain.ErrInvalidDuration.Error():
		return "duration must be one of 7, 30, 90, 365"
	case subscriptiondomain.ErrInvalidPaymentMethod.Error():
		return "payment_method must be cash, promptpay or admin_grant"
	case subscriptiondomain.ErrPriceNotConfigured.Error():
		return "no price configured for this subscription"
	case subscriptiondomain.ErrPaymentNotConfigured.Error():
		return "promptpay payments are not configured"
	case subscriptiondomain.ErrRejectionReasonRequired.Error():
		return "admin_notes is required when rejecting a payment"
	case subscriptiondomain.ErrNotCashPayment.Error():
		return "only cash payments require manual verification"
	case subscriptiondomain.ErrNotTransferPayment.Error():
		return "only promptpay payments are confirmed by transfer"
	case subscriptiondomain.ErrAmountMismatch.Error():
		return "transferred amount does not match the subscription price"
	case paymentdomain.ErrInvalidPayload.Error(),
		paymentdomain.ErrInvalidEvent.Error():
		return "invalid webhook payload"
	default:
		return "invalid value"
	}
}
