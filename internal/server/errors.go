package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	declarationdomain "github.com/smallbiznis/clearline/internal/declaration/domain"
	levydomain "github.com/smallbiznis/clearline/internal/levy/domain"
	matchingdomain "github.com/smallbiznis/clearline/internal/matching/domain"
	prorationdomain "github.com/smallbiznis/clearline/internal/proration/domain"
	shipmentdomain "github.com/smallbiznis/clearline/internal/shipment/domain"
	tariffdomain "github.com/smallbiznis/clearline/internal/tariff/domain"
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
	ErrConflict       = errors.New("conflict")
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
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, levydomain.ErrLevyCodeTaken),
		errors.Is(err, matchingdomain.ErrConcurrentMatch),
		errors.Is(err, prorationdomain.ErrRecalculationInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, declarationdomain.ErrDeclarationUnlinked),
		errors.Is(err, matchingdomain.ErrPairMismatch):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
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
		errors.Is(err, tariffdomain.ErrInvalidCountry),
		errors.Is(err, tariffdomain.ErrInvalidCode),
		errors.Is(err, tariffdomain.ErrInvalidDutyRate),
		errors.Is(err, levydomain.ErrInvalidCountry),
		errors.Is(err, levydomain.ErrInvalidCode),
		errors.Is(err, levydomain.ErrInvalidName),
		errors.Is(err, levydomain.ErrInvalidRate),
		errors.Is(err, levydomain.ErrInvalidRateType),
		errors.Is(err, levydomain.ErrInvalidBasis),
		errors.Is(err, levydomain.ErrInvalidApplicability),
		errors.Is(err, levydomain.ErrInvalidWindow),
		errors.Is(err, shipmentdomain.ErrInvalidShipment):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, shipmentdomain.ErrShipmentNotFound),
		errors.Is(err, shipmentdomain.ErrInvoiceNotFound),
		errors.Is(err, declarationdomain.ErrDeclarationNotFound),
		errors.Is(err, matchingdomain.ErrMatchNotFound),
		errors.Is(err, levydomain.ErrLevyNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
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
