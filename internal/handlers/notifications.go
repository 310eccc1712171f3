package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/courtnotify/internal/middleware"
	"github.com/charlesng35/courtnotify/internal/services"
	appErrors "github.com/charlesng35/courtnotify/pkg/errors"
	"github.com/charlesng35/courtnotify/pkg/response"
)

// CustomNotificationSender performs an ad-hoc dispatch on behalf of a caller.
type CustomNotificationSender interface {
	Send(ctx context.Context, callerID string, req services.CustomNotificationRequest) (*services.CustomNotificationResult, error)
}

// NotificationHandler exposes the ad-hoc dispatch endpoint.
type NotificationHandler struct {
	sender CustomNotificationSender
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(sender CustomNotificationSender) (*NotificationHandler, error) {
	if sender == nil {
		return nil, errors.New("notification handler: sender is required")
	}
	return &NotificationHandler{sender: sender}, nil
}

// SendCustom multicasts caller supplied content to the listed users.
func (h *NotificationHandler) SendCustom(c *gin.Context) {
	callerID := middleware.CallerID(c)
	if callerID == "" {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	var req services.CustomNotificationRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.sender.Send(requestContext(c), callerID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Result(c, http.StatusOK, result)
}
