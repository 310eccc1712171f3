package push

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMConfig selects the Firebase project and credentials.
type FCMConfig struct {
	ProjectID       string
	CredentialsFile string
}

// MessagingClient is the subset of the Firebase messaging client the gateway uses.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMGateway delivers through Firebase Cloud Messaging.
type FCMGateway struct {
	client MessagingClient
}

// NewFCMGateway initialises a Firebase app and its messaging client. When no
// credentials file is given, application default credentials are used.
func NewFCMGateway(ctx context.Context, cfg FCMConfig) (*FCMGateway, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("push: init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("push: init messaging client: %w", err)
	}
	return NewFCMGatewayWithClient(client), nil
}

// NewFCMGatewayWithClient wraps an existing messaging client.
func NewFCMGatewayWithClient(client MessagingClient) *FCMGateway {
	return &FCMGateway{client: client}
}

// Send implements Gateway.
func (g *FCMGateway) Send(ctx context.Context, token string, msg Message) (string, error) {
	id, err := g.client.Send(ctx, &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	})
	if err != nil {
		return "", NewDeliveryError(token, err, ClassifyFCMError)
	}
	return id, nil
}

// SendMulticast implements Gateway.
func (g *FCMGateway) SendMulticast(ctx context.Context, tokens []string, msg Message) (*MulticastResult, error) {
	if len(tokens) > MulticastLimit {
		return nil, &DeliveryError{
			Reason: ReasonUnknown,
			Err:    fmt.Errorf("multicast of %d tokens exceeds limit %d", len(tokens), MulticastLimit),
		}
	}

	resp, err := g.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	})
	if err != nil {
		return nil, NewDeliveryError("", err, ClassifyFCMError)
	}
	if resp == nil {
		return nil, NewDeliveryError("", errors.New("empty batch response"), nil)
	}

	result := &MulticastResult{
		SuccessCount: resp.SuccessCount,
		FailureCount: resp.FailureCount,
		Responses:    make([]TokenResult, 0, len(resp.Responses)),
	}
	for i, r := range resp.Responses {
		tr := TokenResult{}
		if i < len(tokens) {
			tr.Token = tokens[i]
		}
		if r != nil {
			tr.MessageID = r.MessageID
			if !r.Success && r.Error != nil {
				tr.Err = NewDeliveryError(tr.Token, r.Error, ClassifyFCMError)
			}
		}
		result.Responses = append(result.Responses, tr)
	}
	return result, nil
}

// ClassifyFCMError maps Firebase error codes onto delivery reasons.
func ClassifyFCMError(err error) Reason {
	switch {
	case messaging.IsUnregistered(err), messaging.IsInvalidArgument(err), messaging.IsSenderIDMismatch(err):
		return ReasonInvalidToken
	case messaging.IsQuotaExceeded(err):
		return ReasonQuotaExceeded
	case messaging.IsUnavailable(err), messaging.IsInternal(err):
		return ReasonUnavailable
	default:
		return ReasonUnknown
	}
}
