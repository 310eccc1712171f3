// Package push delivers notification payloads to device tokens.
package push

import (
	"context"
	"errors"
	"fmt"
)

// MulticastLimit is the largest token set a single multicast call accepts.
const MulticastLimit = 500

// Message is the platform-neutral notification payload.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// TokenResult is the outcome of delivery to one token within a multicast.
type TokenResult struct {
	Token     string
	MessageID string
	Err       error
}

// MulticastResult summarises a multicast delivery.
type MulticastResult struct {
	SuccessCount int
	FailureCount int
	Responses    []TokenResult
}

// Gateway is the push-delivery backend.
type Gateway interface {
	// Send delivers to a single token and returns the gateway message id.
	Send(ctx context.Context, token string, msg Message) (string, error)
	// SendMulticast delivers to at most MulticastLimit tokens. Per-token
	// failures are reported in the result, not as an error.
	SendMulticast(ctx context.Context, tokens []string, msg Message) (*MulticastResult, error)
}

// Reason categorises a gateway rejection.
type Reason string

const (
	ReasonInvalidToken  Reason = "invalid_token"
	ReasonQuotaExceeded Reason = "quota_exceeded"
	ReasonUnavailable   Reason = "unavailable"
	ReasonUnknown       Reason = "unknown"
)

// DeliveryError reports a send the gateway did not accept.
type DeliveryError struct {
	Reason Reason
	Token  string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("push: %s delivery to %s: %v", e.Reason, redact(e.Token), e.Err)
	}
	return fmt.Sprintf("push: %s delivery: %v", e.Reason, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NewDeliveryError wraps err with the reason derived by classify. Errors that
// already are delivery errors are returned unchanged.
func NewDeliveryError(token string, err error, classify func(error) Reason) *DeliveryError {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de
	}
	reason := ReasonUnknown
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		reason = ReasonUnavailable
	case classify != nil:
		reason = classify(err)
	}
	return &DeliveryError{Reason: reason, Token: token, Err: err}
}

// ReasonOf returns the delivery reason carried by err, if any.
func ReasonOf(err error) Reason {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Reason
	}
	return ReasonUnknown
}

func redact(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
