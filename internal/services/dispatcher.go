package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/courtnotify/internal/models"
	"github.com/charlesng35/courtnotify/internal/monitoring"
	"github.com/charlesng35/courtnotify/internal/push"
	"github.com/charlesng35/courtnotify/internal/store"
	"github.com/charlesng35/courtnotify/pkg/logger"
)

const (
	modeSingle    = "single"
	modeMulticast = "multicast"

	defaultSendTimeout = 10 * time.Second
)

// Outcome describes what a dispatch did.
type Outcome struct {
	RecordID     string
	Skipped      bool
	Status       models.NotificationStatus
	MessageID    string
	SuccessCount int
	FailureCount int
	Results      []push.TokenResult
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSendTimeout bounds each gateway call.
func WithSendTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithDispatcherClock overrides the clock stamped on sent records.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(disp *Dispatcher) {
		if now != nil {
			disp.now = now
		}
	}
}

// Dispatcher delivers drafts through the push gateway and keeps the
// notification record of every attempt. It never retries and never edits
// user tokens.
type Dispatcher struct {
	gateway push.Gateway
	records store.Notifications
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(gateway push.Gateway, records store.Notifications, opts ...DispatcherOption) (*Dispatcher, error) {
	if gateway == nil {
		return nil, errors.New("dispatcher: push gateway is required")
	}
	if records == nil {
		return nil, errors.New("dispatcher: notification store is required")
	}
	d := &Dispatcher{
		gateway: gateway,
		records: records,
		timeout: defaultSendTimeout,
		now:     time.Now,
		log:     logger.WithModule("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// SendOne delivers draft to a single token. An empty token is skipped.
// A gateway rejection is recorded and returned as *push.DeliveryError.
func (d *Dispatcher) SendOne(ctx context.Context, token string, draft Draft) (*Outcome, error) {
	ctx = ensureContext(ctx)
	token = strings.TrimSpace(token)
	if token == "" {
		monitoring.RecordPushDelivery(modeSingle, "skipped", 0, 0, 0)
		return &Outcome{Skipped: true}, nil
	}

	rec, err := d.createRecord(ctx, draft, func(r *models.NotificationRecord) { r.Token = token })
	if err != nil {
		return nil, err
	}
	return d.deliverSingle(ctx, rec.ID, token, draft.Kind, draft.Message())
}

// SendMany multicasts draft to tokens. Duplicates are collapsed and an empty
// set is skipped. Token sets above the gateway limit are split and the counts
// summed. Per-token failures are counted, not returned; an error is returned
// only when no part of the multicast reached the gateway.
func (d *Dispatcher) SendMany(ctx context.Context, tokens []string, draft Draft) (*Outcome, error) {
	ctx = ensureContext(ctx)
	tokens = normaliseIDs(tokens)
	if len(tokens) == 0 {
		monitoring.RecordPushDelivery(modeMulticast, "skipped", 0, 0, 0)
		return &Outcome{Skipped: true}, nil
	}

	rec, err := d.createRecord(ctx, draft, func(r *models.NotificationRecord) { r.Tokens = tokens })
	if err != nil {
		return nil, err
	}
	return d.deliverMulticast(ctx, rec.ID, tokens, draft.Kind, draft.Message())
}

// DeliverIntent delivers a record created in pending state by another writer.
// Records that are no longer pending are left untouched.
func (d *Dispatcher) DeliverIntent(ctx context.Context, id string) (*Outcome, error) {
	ctx = ensureContext(ctx)
	rec, err := d.records.GetNotification(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: load intent %s: %w", id, err)
	}
	if rec.Status != models.NotificationStatusPending {
		return &Outcome{RecordID: rec.ID, Skipped: true, Status: rec.Status}, nil
	}

	msg := push.Message{Title: rec.Title, Body: rec.Body, Data: rec.DataMap()}
	switch {
	case strings.TrimSpace(rec.Token) != "":
		return d.deliverSingle(ctx, rec.ID, strings.TrimSpace(rec.Token), rec.Type, msg)
	case len(normaliseIDs(rec.Tokens)) > 0:
		return d.deliverMulticast(ctx, rec.ID, normaliseIDs(rec.Tokens), rec.Type, msg)
	default:
		d.finish(ctx, rec.ID, store.NotificationUpdate{
			Status: models.NotificationStatusFailed,
			Error:  "no delivery target",
		})
		monitoring.RecordPushDelivery(modeSingle, "skipped", 0, 0, 0)
		return &Outcome{RecordID: rec.ID, Skipped: true, Status: models.NotificationStatusFailed}, nil
	}
}

func (d *Dispatcher) createRecord(ctx context.Context, draft Draft, target func(*models.NotificationRecord)) (*models.NotificationRecord, error) {
	rec := &models.NotificationRecord{
		Type:    draft.Kind,
		MatchID: draft.MatchID,
		UserID:  draft.UserID,
		Title:   draft.Title,
		Body:    draft.Body,
		Status:  models.NotificationStatusPending,
	}
	target(rec)
	if err := rec.SetData(draft.Data); err != nil {
		return nil, fmt.Errorf("dispatcher: encode data: %w", err)
	}
	if err := d.records.CreateNotification(ctx, rec); err != nil {
		return nil, fmt.Errorf("dispatcher: record %s: %w", draft.Kind, err)
	}
	return rec, nil
}

func (d *Dispatcher) deliverSingle(ctx context.Context, recordID, token, kind string, msg push.Message) (*Outcome, error) {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	messageID, err := d.gateway.Send(callCtx, token, msg)
	cancel()
	elapsed := time.Since(start)

	if err != nil {
		derr := push.NewDeliveryError(token, err, nil)
		d.finish(ctx, recordID, store.NotificationUpdate{
			Status:       models.NotificationStatusFailed,
			Error:        derr.Error(),
			FailureCount: 1,
		})
		monitoring.RecordPushDelivery(modeSingle, "failed", 0, 1, elapsed)
		monitoring.RecordDeliveryFailure(kind, string(derr.Reason), derr.Error())
		d.log.Warn("push delivery failed",
			zap.String("record_id", recordID),
			zap.String("type", kind),
			zap.String("reason", string(derr.Reason)),
			zap.Error(derr),
		)
		return &Outcome{RecordID: recordID, Status: models.NotificationStatusFailed, FailureCount: 1}, derr
	}

	sentAt := d.now().UTC()
	d.finish(ctx, recordID, store.NotificationUpdate{
		Status:       models.NotificationStatusSent,
		SuccessCount: 1,
		SentAt:       &sentAt,
	})
	monitoring.RecordPushDelivery(modeSingle, "sent", 1, 0, elapsed)
	return &Outcome{
		RecordID:     recordID,
		Status:       models.NotificationStatusSent,
		MessageID:    messageID,
		SuccessCount: 1,
	}, nil
}

func (d *Dispatcher) deliverMulticast(ctx context.Context, recordID string, tokens []string, kind string, msg push.Message) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{RecordID: recordID}

	var (
		firstErr  *push.DeliveryError
		batchErrs error
		delivered bool
	)
	for _, batch := range chunk(tokens, push.MulticastLimit) {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		res, err := d.gateway.SendMulticast(callCtx, batch, msg)
		cancel()
		if err != nil {
			derr := push.NewDeliveryError("", err, nil)
			if firstErr == nil {
				firstErr = derr
			}
			batchErrs = multierr.Append(batchErrs, derr)
			out.FailureCount += len(batch)
			continue
		}
		delivered = true
		out.SuccessCount += res.SuccessCount
		out.FailureCount += res.FailureCount
		out.Results = append(out.Results, res.Responses...)
	}
	elapsed := time.Since(start)

	update := store.NotificationUpdate{
		SuccessCount: out.SuccessCount,
		FailureCount: out.FailureCount,
	}
	if batchErrs != nil {
		update.Error = batchErrs.Error()
	}

	if !delivered {
		out.Status = models.NotificationStatusFailed
		update.Status = out.Status
		d.finish(ctx, recordID, update)
		monitoring.RecordPushDelivery(modeMulticast, "failed", 0, out.FailureCount, elapsed)
		monitoring.RecordDeliveryFailure(kind, string(firstErr.Reason), firstErr.Error())
		d.log.Warn("push multicast failed",
			zap.String("record_id", recordID),
			zap.String("type", kind),
			zap.Int("tokens", len(tokens)),
			zap.Error(batchErrs),
		)
		return out, firstErr
	}

	sentAt := d.now().UTC()
	out.Status = models.NotificationStatusSent
	update.Status = out.Status
	update.SentAt = &sentAt
	d.finish(ctx, recordID, update)
	monitoring.RecordPushDelivery(modeMulticast, "sent", out.SuccessCount, out.FailureCount, elapsed)
	if out.FailureCount > 0 {
		d.log.Info("push multicast partially delivered",
			zap.String("record_id", recordID),
			zap.String("type", kind),
			zap.Int("success", out.SuccessCount),
			zap.Int("failure", out.FailureCount),
		)
	}
	return out, nil
}

// finish writes the terminal record state even if the caller's context has
// been cancelled after delivery. A failure here is logged only: the push has
// already left.
func (d *Dispatcher) finish(ctx context.Context, recordID string, update store.NotificationUpdate) {
	ok, err := d.records.FinishNotification(context.WithoutCancel(ctx), recordID, update)
	if err != nil {
		d.log.Error("record delivery outcome", zap.String("record_id", recordID), zap.Error(err))
		return
	}
	if !ok {
		d.log.Warn("notification already finalised", zap.String("record_id", recordID))
	}
}
