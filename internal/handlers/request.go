package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/courtnotify/pkg/errors"
	"github.com/charlesng35/courtnotify/pkg/response"
)

// requestContext returns the context of the HTTP request behind c, or
// Background when the handler is invoked without one.
func requestContext(c *gin.Context) context.Context {
	if c != nil && c.Request != nil {
		return c.Request.Context()
	}
	return context.Background()
}

// bindJSON binds the JSON payload into dest. When the body cannot be decoded
// an INVALID_ARGUMENT response is written and false is returned. Field rules
// are enforced by the services so every caller gets the same messages.
func bindJSON[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewInvalidArgument("invalid JSON payload").WithInternal(err))
		return false
	}
	return true
}
