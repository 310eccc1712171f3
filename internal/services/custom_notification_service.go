package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/charlesng35/courtnotify/pkg/errors"
	"github.com/charlesng35/courtnotify/pkg/logger"
	"github.com/charlesng35/courtnotify/pkg/validator"
)

const (
	msgMissingFields  = "Missing required fields: recipientIds, title, body"
	msgNoValidTokens  = "No valid tokens found"
	msgDispatchFailed = "Failed to send notification"
)

// CustomNotificationRequest is the ad-hoc dispatch payload.
type CustomNotificationRequest struct {
	// An absent list is invalid; an empty one resolves to no tokens.
	RecipientIDs []string          `json:"recipientIds" validate:"required"`
	Title        string            `json:"title" validate:"required,notblank"`
	Body         string            `json:"body" validate:"required,notblank"`
	Data         map[string]string `json:"data,omitempty"`
}

// CustomNotificationResult is returned to the caller. Counts are set only on success.
type CustomNotificationResult struct {
	Success      bool   `json:"success"`
	SuccessCount *int   `json:"successCount,omitempty"`
	FailureCount *int   `json:"failureCount,omitempty"`
	Message      string `json:"message,omitempty"`
}

// CustomNotificationService serves the externally callable dispatch.
type CustomNotificationService struct {
	resolver   *RecipientResolver
	composer   *Composer
	dispatcher *Dispatcher
	log        *zap.Logger
}

// NewCustomNotificationService constructs a CustomNotificationService.
func NewCustomNotificationService(resolver *RecipientResolver, composer *Composer, dispatcher *Dispatcher) (*CustomNotificationService, error) {
	if resolver == nil || composer == nil || dispatcher == nil {
		return nil, errors.New("custom notification service: resolver, composer and dispatcher are required")
	}
	return &CustomNotificationService{
		resolver:   resolver,
		composer:   composer,
		dispatcher: dispatcher,
		log:        logger.WithModule("custom-notifications"),
	}, nil
}

// Send multicasts caller-provided content to the given users. callerID is the
// authenticated subject; empty means the caller is anonymous.
func (s *CustomNotificationService) Send(ctx context.Context, callerID string, req CustomNotificationRequest) (*CustomNotificationResult, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(callerID) == "" {
		return nil, apperrors.ErrUnauthenticated
	}
	if err := validator.ValidateStruct(req); err != nil {
		return nil, apperrors.NewInvalidArgument(msgMissingFields)
	}

	log := s.log.With(zap.String("caller_id", callerID))

	tokens, err := s.resolver.Direct(ctx, req.RecipientIDs)
	if err != nil {
		if len(tokens) == 0 {
			log.Error("resolve custom recipients", zap.Error(err))
			return nil, apperrors.Wrap(err, msgDispatchFailed)
		}
		log.Warn("partial custom recipients", zap.Int("tokens", len(tokens)), zap.Error(err))
	}
	if len(tokens) == 0 {
		return &CustomNotificationResult{Success: false, Message: msgNoValidTokens}, nil
	}

	outcome, err := s.dispatcher.SendMany(ctx, tokens, s.composer.Custom(req.Title, req.Body, req.Data))
	if err != nil {
		log.Error("send custom notification", zap.Error(err))
		return nil, apperrors.Wrap(err, msgDispatchFailed)
	}

	successCount, failureCount := outcome.SuccessCount, outcome.FailureCount
	return &CustomNotificationResult{
		Success:      true,
		SuccessCount: &successCount,
		FailureCount: &failureCount,
	}, nil
}
