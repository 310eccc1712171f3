package push

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/courtnotify/pkg/logger"
)

// LogGateway accepts every delivery and only logs it. It backs local
// development and environments without push credentials.
type LogGateway struct {
	log  *zap.Logger
	sent atomic.Int64
}

// NewLogGateway constructs a logging gateway.
func NewLogGateway() *LogGateway {
	return &LogGateway{log: logger.WithModule("push.log")}
}

// Send implements Gateway.
func (g *LogGateway) Send(ctx context.Context, token string, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", NewDeliveryError(token, err, nil)
	}
	id := uuid.NewString()
	g.sent.Add(1)
	g.log.Info("push delivered",
		zap.String("message_id", id),
		zap.String("token", redact(token)),
		zap.String("title", msg.Title),
		zap.String("type", msg.Data["type"]),
	)
	return id, nil
}

// SendMulticast implements Gateway.
func (g *LogGateway) SendMulticast(ctx context.Context, tokens []string, msg Message) (*MulticastResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewDeliveryError("", err, nil)
	}
	result := &MulticastResult{Responses: make([]TokenResult, 0, len(tokens))}
	for _, token := range tokens {
		result.Responses = append(result.Responses, TokenResult{Token: token, MessageID: uuid.NewString()})
	}
	result.SuccessCount = len(tokens)
	g.sent.Add(int64(len(tokens)))
	g.log.Info("push multicast delivered",
		zap.Int("tokens", len(tokens)),
		zap.String("title", msg.Title),
		zap.String("type", msg.Data["type"]),
	)
	return result, nil
}

// Sent returns the number of tokens delivered so far.
func (g *LogGateway) Sent() int64 {
	return g.sent.Load()
}
