package events

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/charlesng35/courtnotify/internal/models"
	"github.com/charlesng35/courtnotify/internal/monitoring"
	"github.com/charlesng35/courtnotify/internal/services"
	"github.com/charlesng35/courtnotify/pkg/logger"
)

// ErrMalformed marks an event that can never be processed.
var ErrMalformed = errors.New("events: malformed change event")

// Triggers receives the routed changes.
type Triggers interface {
	HandleMatchUpdate(ctx context.Context, matchID string, before, after *models.Match) []services.Transition
	HandleUserCreated(ctx context.Context, userID string, user *models.User)
	HandleNotificationCreated(ctx context.Context, id string)
}

const (
	resultHandled   = "handled"
	resultIgnored   = "ignored"
	resultMalformed = "malformed"
)

// Router maps change events onto trigger handlers.
type Router struct {
	triggers Triggers
	log      *zap.Logger
}

// NewRouter constructs a Router.
func NewRouter(triggers Triggers) (*Router, error) {
	if triggers == nil {
		return nil, errors.New("events: triggers are required")
	}
	return &Router{triggers: triggers, log: logger.WithModule("events")}, nil
}

// Route dispatches ev. Changes without a trigger are ignored. Only undecodable
// snapshots produce an error, wrapping ErrMalformed.
func (r *Router) Route(ctx context.Context, ev ChangeEvent) error {
	result, err := r.route(ctx, ev)
	monitoring.RecordEventConsumed(ev.Collection, result)
	if err != nil {
		return err
	}
	if result == resultIgnored {
		r.log.Debug("change event ignored",
			zap.String("collection", ev.Collection),
			zap.String("operation", ev.Operation),
			zap.String("document_id", ev.DocumentID),
		)
	}
	return nil
}

func (r *Router) route(ctx context.Context, ev ChangeEvent) (string, error) {
	switch {
	case ev.Collection == CollectionMatches && ev.Operation == OperationUpdate:
		before, err := decodeSnapshot[models.Match](ev.Before)
		if err != nil {
			return resultMalformed, fmt.Errorf("%w: match %s before: %v", ErrMalformed, ev.DocumentID, err)
		}
		after, err := decodeSnapshot[models.Match](ev.After)
		if err != nil {
			return resultMalformed, fmt.Errorf("%w: match %s after: %v", ErrMalformed, ev.DocumentID, err)
		}
		if before == nil || after == nil {
			return resultIgnored, nil
		}
		r.triggers.HandleMatchUpdate(ctx, ev.DocumentID, before, after)
		return resultHandled, nil

	case ev.Collection == CollectionUsers && ev.Operation == OperationCreate:
		user, err := decodeSnapshot[models.User](ev.After)
		if err != nil {
			return resultMalformed, fmt.Errorf("%w: user %s: %v", ErrMalformed, ev.DocumentID, err)
		}
		if user == nil {
			return resultIgnored, nil
		}
		r.triggers.HandleUserCreated(ctx, ev.DocumentID, user)
		return resultHandled, nil

	case ev.Collection == CollectionNotifications && ev.Operation == OperationCreate:
		r.triggers.HandleNotificationCreated(ctx, ev.DocumentID)
		return resultHandled, nil
	}
	return resultIgnored, nil
}
