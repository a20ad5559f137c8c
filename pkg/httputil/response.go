package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/detailing-api/pkg/errors"
)

// Response is the success envelope shared by every CRUD endpoint.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data"`
	Count   *int        `json:"count,omitempty"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// Error titles used in ErrorResponse.Error.
const (
	TitleValidation       = "Validation Error"
	TitleNotFound         = "Not Found"
	TitleConflict         = "Conflict"
	TitleUnauthorized     = "Unauthorized"
	TitleForbidden        = "Forbidden"
	TitleMethodNotAllowed = "Method Not Allowed"
	TitleBadGateway       = "Bad Gateway"
	TitleTooManyRequests  = "Too Many Requests"
	TitleTooLarge         = "Payload Too Large"
	TitleUnavailable      = "Service Unavailable"
	TitleInternal         = "Internal Server Error"

	MessageInternal = "An unexpected error occurred"
)

// RespondWithSuccess sends a 200 envelope.
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// RespondWithMessage sends an envelope with an explicit status and message.
func RespondWithMessage(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// RespondWithList sends a collection together with its length.
func RespondWithList(c *gin.Context, data interface{}, count int) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Count: &count})
}

// RespondWithValidation sends a 400 listing every failed check.
func RespondWithValidation(c *gin.Context, message string, details []string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   TitleValidation,
		Message: message,
		Details: details,
	})
}

// RespondWithInternal sends the generic 500 envelope. The cause is never exposed.
func RespondWithInternal(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error:   TitleInternal,
		Message: MessageInternal,
	})
}

// RespondWithError maps typed application errors onto their status. Anything
// else is attached to the context for the error middleware to log and reported
// as a generic 500.
func RespondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code == apperrors.ErrInternal {
		_ = c.Error(err)
		RespondWithInternal(c)
		return
	}

	status := appErr.StatusCode()
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   title(status),
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

func title(status int) string {
	switch status {
	case http.StatusBadRequest:
		return TitleValidation
	case http.StatusNotFound:
		return TitleNotFound
	case http.StatusConflict:
		return TitleConflict
	case http.StatusUnauthorized:
		return TitleUnauthorized
	case http.StatusForbidden:
		return TitleForbidden
	case http.StatusBadGateway:
		return TitleBadGateway
	case http.StatusTooManyRequests:
		return TitleTooManyRequests
	case http.StatusServiceUnavailable:
		return TitleUnavailable
	default:
		return http.StatusText(status)
	}
}
