package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/courtnotify/pkg/errors"
)

// Envelope follows the callable-function wire shape: exactly one of Result or Error is set.
type Envelope struct {
	Result any        `json:"result,omitempty"`
	Error  *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo holds error details to send to clients.
type ErrorInfo struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Result writes a successful callable response.
func Result(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Envelope{Result: data})
}

// Error writes a callable error response derived from an AppError.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternal
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, Envelope{
		Error: &ErrorInfo{
			Status:  appErr.Code,
			Message: appErr.Message,
		},
	})
}
