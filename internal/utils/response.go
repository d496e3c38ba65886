package utils

import (
	"errors"
	"net/http"
	"time"

	"ridedispatch/internal/apperrors"

	"github.com/gin-gonic/gin"
)

type APIResponse struct {
	Status    string      `json:"status"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func SuccessResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Status:    StatusSuccess,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func CreatedResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Status:    StatusSuccess,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func ErrorResponse(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, APIResponse{
		Status: StatusError,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now(),
	})
}

func BadRequestResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func UnauthorizedResponse(c *gin.Context) {
	ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", ErrUnauthorized)
}

func InternalServerErrorResponse(c *gin.Context) {
	ErrorResponse(c, http.StatusInternalServerError, "INTERNAL", ErrInternalServer)
}

// AppErrorResponse maps the service error taxonomy onto HTTP statuses while
// passing the stable code and message through unchanged.
func AppErrorResponse(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)

	message := ErrInternalServer
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindNotFound:
		ErrorResponse(c, http.StatusNotFound, code, message)
	case apperrors.KindInvalidArgument:
		ErrorResponse(c, http.StatusBadRequest, code, message)
	case apperrors.KindNotAuthorized:
		ErrorResponse(c, http.StatusForbidden, code, message)
	case apperrors.KindFailedPrecondition:
		ErrorResponse(c, http.StatusConflict, code, message)
	case apperrors.KindExpired:
		ErrorResponse(c, http.StatusGone, code, message)
	default:
		ErrorResponse(c, http.StatusInternalServerError, code, ErrInternalServer)
	}
}
