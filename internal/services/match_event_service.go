package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/charlesng35/courtnotify/internal/models"
	"github.com/charlesng35/courtnotify/internal/monitoring"
	"github.com/charlesng35/courtnotify/internal/store"
	"github.com/charlesng35/courtnotify/pkg/logger"
)

// MatchEventDependencies groups the collaborators of the trigger handlers.
type MatchEventDependencies struct {
	Users      store.Users
	Resolver   *RecipientResolver
	Composer   *Composer
	Dispatcher *Dispatcher
}

// MatchEventService turns record-store triggers into notifications. Triggers
// have no caller to report to, so failures end up in logs and records only.
type MatchEventService struct {
	deps MatchEventDependencies
	log  *zap.Logger
}

// NewMatchEventService constructs a MatchEventService.
func NewMatchEventService(deps MatchEventDependencies) (*MatchEventService, error) {
	if deps.Users == nil || deps.Resolver == nil || deps.Composer == nil || deps.Dispatcher == nil {
		return nil, errors.New("match event service: users, resolver, composer and dispatcher are required")
	}
	return &MatchEventService{deps: deps, log: logger.WithModule("match-events")}, nil
}

// HandleMatchUpdate classifies an update and dispatches one notification per
// transition. It returns the transitions that were detected.
func (s *MatchEventService) HandleMatchUpdate(ctx context.Context, matchID string, before, after *models.Match) []Transition {
	ctx = ensureContext(ctx)
	transitions := ClassifyMatchUpdate(before, after)
	if len(transitions) == 0 {
		return nil
	}
	match := *after
	if match.ID == "" {
		match.ID = matchID
	}

	// Players who joined in this update are told about nobody else's arrival.
	var joined []string
	for _, t := range transitions {
		if t.Kind == TransitionPlayerJoined {
			joined = append(joined, t.PlayerID)
		}
	}

	for _, t := range transitions {
		monitoring.RecordTransition(string(t.Kind))
		s.dispatchTransition(ctx, t, &match, joined)
	}
	return transitions
}

func (s *MatchEventService) dispatchTransition(ctx context.Context, t Transition, match *models.Match, joined []string) {
	log := s.log.With(zap.String("match_id", match.ID), zap.String("transition", string(t.Kind)))
	if t.PlayerID != "" {
		log = log.With(zap.String("player_id", t.PlayerID))
	}

	var (
		tokens []string
		err    error
	)
	switch t.Kind {
	case TransitionSubstituteNeeded:
		query, pred := SubstituteQuery(match)
		tokens, err = s.deps.Resolver.Filtered(ctx, query, pred)
	case TransitionPlayerJoined:
		tokens, err = s.deps.Resolver.Direct(ctx, without(match.PlayerIDs, joined...))
	default:
		tokens, err = s.deps.Resolver.Direct(ctx, match.PlayerIDs)
	}
	if err != nil {
		log.Warn("resolve recipients", zap.Int("tokens", len(tokens)), zap.Error(err))
	}
	if len(tokens) == 0 {
		log.Debug("no recipients, skipping")
		return
	}

	var actor string
	if t.Kind == TransitionPlayerJoined || t.Kind == TransitionPlayerLeft {
		actor = s.displayName(ctx, t.PlayerID)
	}

	draft := s.deps.Composer.ForTransition(t, match, actor)
	outcome, err := s.deps.Dispatcher.SendMany(ctx, tokens, draft)
	if err != nil {
		log.Warn("dispatch transition", zap.Error(err))
		return
	}
	log.Info("transition notified",
		zap.Int("success", outcome.SuccessCount),
		zap.Int("failure", outcome.FailureCount),
	)
}

func (s *MatchEventService) displayName(ctx context.Context, userID string) string {
	user, err := s.deps.Users.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("load actor", zap.String("user_id", userID), zap.Error(err))
		}
		return ""
	}
	return user.DisplayName
}

// HandleUserCreated sends the welcome notification to a new user with a token.
func (s *MatchEventService) HandleUserCreated(ctx context.Context, userID string, user *models.User) {
	ctx = ensureContext(ctx)
	if !user.Reachable() {
		return
	}
	if userID == "" {
		userID = user.ID
	}

	if _, err := s.deps.Dispatcher.SendOne(ctx, user.FCMToken, s.deps.Composer.Welcome(userID)); err != nil {
		s.log.Warn("send welcome", zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.log.Info("welcome sent", zap.String("user_id", userID))
}

// HandleNotificationCreated delivers a notification intent written by another service.
func (s *MatchEventService) HandleNotificationCreated(ctx context.Context, id string) {
	ctx = ensureContext(ctx)
	outcome, err := s.deps.Dispatcher.DeliverIntent(ctx, id)
	if err != nil {
		s.log.Warn("deliver notification intent", zap.String("notification_id", id), zap.Error(err))
		return
	}
	if outcome.Skipped {
		s.log.Debug("notification intent skipped", zap.String("notification_id", id), zap.String("status", string(outcome.Status)))
	}
}
