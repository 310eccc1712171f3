package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/courtnotify/internal/models"
	"github.com/charlesng35/courtnotify/internal/push"
)

// Notification types that do not come from a match transition.
const (
	KindReminder = "match_reminder"
	KindWelcome  = "welcome"
	KindCustom   = "custom"
)

const (
	defaultAppName   = "Tennis Connect"
	fallbackActor    = "A player"
	rescheduleLayout = "Mon, Jan 2, 3:04 PM"
)

// Draft is a composed notification ready for dispatch.
type Draft struct {
	Kind    string
	MatchID string
	UserID  string
	Title   string
	Body    string
	Data    map[string]string
}

// Message converts the draft into the gateway payload.
func (d Draft) Message() push.Message {
	return push.Message{Title: d.Title, Body: d.Body, Data: d.Data}
}

// Composer renders notification text. It has no side effects.
type Composer struct {
	location *time.Location
	appName  string
}

// NewComposer builds a composer rendering dates in loc. A nil loc means UTC.
func NewComposer(loc *time.Location, appName string) *Composer {
	if loc == nil {
		loc = time.UTC
	}
	if strings.TrimSpace(appName) == "" {
		appName = defaultAppName
	}
	return &Composer{location: loc, appName: appName}
}

// ForTransition composes the notification for a match transition. actorName is
// used by joins and leaves; empty falls back to a generic label.
func (c *Composer) ForTransition(t Transition, match *models.Match, actorName string) Draft {
	draft := Draft{
		Kind:    string(t.Kind),
		MatchID: match.ID,
		Data:    map[string]string{"type": string(t.Kind), "matchId": match.ID},
	}

	actor := strings.TrimSpace(actorName)
	if actor == "" {
		actor = fallbackActor
	}

	switch t.Kind {
	case TransitionCancelled:
		draft.Title = "Match Cancelled"
		draft.Body = fmt.Sprintf("Match at %s has been cancelled", match.CourtName)
		if reason := strings.TrimSpace(match.CancelReason); reason != "" {
			draft.Body += ": " + reason
		}
	case TransitionSubstituteNeeded:
		draft.Title = "Substitute Needed!"
		draft.Body = fmt.Sprintf("A %s match at %s needs a substitute player", match.MatchType, match.CourtName)
	case TransitionPlayerJoined:
		draft.Title = "New Player Joined"
		draft.Body = fmt.Sprintf("%s has joined your match at %s", actor, match.CourtName)
		draft.Data["playerId"] = t.PlayerID
	case TransitionPlayerLeft:
		draft.Title = "Player Left Match"
		draft.Body = fmt.Sprintf("%s has left the match. %d spot(s) now available.", actor, match.SpotsAvailable())
		draft.Data["playerId"] = t.PlayerID
	case TransitionRescheduled:
		draft.Title = "Match Rescheduled"
		draft.Body = fmt.Sprintf("Match at %s has been rescheduled to %s", match.CourtName, c.FormatStart(match))
	}
	return draft
}

// Reminder composes the pre-match reminder for a window.
func (c *Composer) Reminder(match *models.Match, window models.ReminderWindow) Draft {
	return Draft{
		Kind:    KindReminder,
		MatchID: match.ID,
		Title:   "Match Reminder",
		Body:    fmt.Sprintf("Your match at %s is in %s", match.CourtName, window),
		Data: map[string]string{
			"type":      KindReminder,
			"matchId":   match.ID,
			"timeframe": string(window),
		},
	}
}

// Welcome composes the greeting sent to a newly registered user.
func (c *Composer) Welcome(userID string) Draft {
	return Draft{
		Kind:   KindWelcome,
		UserID: userID,
		Title:  fmt.Sprintf("Welcome to %s! 🎾", c.appName),
		Body:   "Start by finding matches near you or creating your own match.",
		Data:   map[string]string{"type": KindWelcome, "userId": userID},
	}
}

// Custom wraps caller-provided content. Data is copied as given.
func (c *Composer) Custom(title, body string, data map[string]string) Draft {
	copied := make(map[string]string, len(data))
	for k, v := range data {
		copied[k] = v
	}
	return Draft{Kind: KindCustom, Title: title, Body: body, Data: copied}
}

// FormatStart renders the match start like "Sat, Mar 7, 6:30 PM".
func (c *Composer) FormatStart(match *models.Match) string {
	return match.StartsAt().In(c.location).Format(rescheduleLayout)
}
