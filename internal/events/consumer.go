package events

import (
	"context"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/charlesng35/courtnotify/pkg/logger"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Config describes the change-feed subscription.
type Config struct {
	Brokers []string
	GroupID string
	Topic   string
}

// NewConsumerGroup creates the sarama consumer group for cfg.
func NewConsumerGroup(cfg Config) (sarama.ConsumerGroup, error) {
	if len(cfg.Brokers) == 0 || cfg.GroupID == "" || cfg.Topic == "" {
		return nil, errors.New("events: brokers, group and topic are required")
	}
	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_1_0_0
	saramaCfg.Consumer.Return.Errors = true
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	return sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
}

// Consumer feeds change events from a consumer group into a Router. Each
// partition claim is processed sequentially.
type Consumer struct {
	topic  string
	group  sarama.ConsumerGroup
	router *Router
	log    *zap.Logger
}

// NewConsumer constructs a Consumer.
func NewConsumer(topic string, group sarama.ConsumerGroup, router *Router) (*Consumer, error) {
	if group == nil || router == nil || topic == "" {
		return nil, errors.New("events: topic, consumer group and router are required")
	}
	return &Consumer{topic: topic, group: group, router: router, log: logger.WithModule("events")}, nil
}

// Start consumes until ctx is cancelled or the group is closed. Transient
// errors are retried with exponential backoff.
func (c *Consumer) Start(ctx context.Context) error {
	defer func() {
		if err := c.group.Close(); err != nil {
			c.log.Warn("close consumer group", zap.Error(err))
		}
	}()

	c.log.Info("change consumer started", zap.String("topic", c.topic))

	backoff := initialBackoff
	for {
		err := c.group.Consume(ctx, []string{c.topic}, c)
		if ctx.Err() != nil {
			c.log.Info("change consumer stopped")
			return nil
		}
		if err == nil {
			backoff = initialBackoff
			continue
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return err
		}

		c.log.Error("consume change events", zap.Error(err), zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// Setup logs the partitions assigned to this session.
func (c *Consumer) Setup(session sarama.ConsumerGroupSession) error {
	for topic, partitions := range session.Claims() {
		c.log.Info("partition assignment", zap.String("topic", topic), zap.Int32s("partitions", partitions))
	}
	return nil
}

// Cleanup runs when the session ends.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim routes each message and marks it. Trigger handlers never fail
// and malformed events would fail forever, so every message is marked.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			c.handle(session.Context(), message)
			session.MarkMessage(message, "")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, message *sarama.ConsumerMessage) {
	log := c.log.With(
		zap.String("topic", message.Topic),
		zap.Int32("partition", message.Partition),
		zap.Int64("offset", message.Offset),
	)

	ev, err := Decode(message.Value)
	if err != nil {
		log.Error("skip undecodable change event", zap.Error(err))
		return
	}
	if err := c.router.Route(ctx, ev); err != nil {
		log.Error("skip malformed change event", zap.String("document_id", ev.DocumentID), zap.Error(err))
	}
}
