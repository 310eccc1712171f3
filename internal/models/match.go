package models

import (
	"time"

	"gorm.io/datatypes"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchStatusOpen       MatchStatus = "open"
	MatchStatusFull       MatchStatus = "full"
	MatchStatusConfirmed  MatchStatus = "confirmed"
	MatchStatusInProgress MatchStatus = "inProgress"
	MatchStatusCompleted  MatchStatus = "completed"
	MatchStatusCancelled  MatchStatus = "cancelled"
)

// DefaultMatchDuration applies when a match carries no duration.
const DefaultMatchDuration = 60 * time.Minute

// NonTerminalMatchStatuses lists every status a match can still leave.
var NonTerminalMatchStatuses = []MatchStatus{
	MatchStatusOpen,
	MatchStatusFull,
	MatchStatusConfirmed,
	MatchStatusInProgress,
}

// Terminal reports whether no further status transition is allowed.
func (s MatchStatus) Terminal() bool {
	return s == MatchStatusCompleted || s == MatchStatusCancelled
}

// Match is a scheduled group activity and its participants.
type Match struct {
	BaseModel

	Status     MatchStatus                 `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`
	PlayerIDs  datatypes.JSONSlice[string] `gorm:"column:player_ids" json:"playerIds"`
	MatchDate  time.Time                   `gorm:"column:match_date;not null;index" json:"matchDate"`
	MatchTime  string                      `gorm:"column:match_time;type:varchar(16)" json:"matchTime"`
	Duration   int                         `gorm:"column:duration" json:"duration"`
	CourtName  string                      `gorm:"column:court_name" json:"courtName"`
	MatchType  string                      `gorm:"column:match_type;type:varchar(32)" json:"matchType"`
	MaxPlayers int                         `gorm:"column:max_players" json:"maxPlayers"`

	MinNTRPRating float64 `gorm:"column:min_ntrp_rating" json:"minNtrpRating"`
	MaxNTRPRating float64 `gorm:"column:max_ntrp_rating" json:"maxNtrpRating"`
	SubNeeded     bool    `gorm:"column:sub_needed;not null;default:false" json:"subNeeded"`

	Reminder24Sent bool `gorm:"column:reminder_24h_sent;not null;default:false" json:"reminder24Sent"`
	Reminder2Sent  bool `gorm:"column:reminder_2h_sent;not null;default:false" json:"reminder2Sent"`

	CancelReason string `gorm:"column:cancel_reason;type:text" json:"cancelReason,omitempty"`
}

// StartsAt returns the scheduled start instant.
func (m *Match) StartsAt() time.Time {
	return m.MatchDate
}

// Length returns the match duration, defaulting to one hour.
func (m *Match) Length() time.Duration {
	if m.Duration <= 0 {
		return DefaultMatchDuration
	}
	return time.Duration(m.Duration) * time.Minute
}

// EndsAt returns the scheduled end instant.
func (m *Match) EndsAt() time.Time {
	return m.MatchDate.Add(m.Length())
}

// SpotsAvailable reports open places, never negative.
func (m *Match) SpotsAvailable() int {
	spots := m.MaxPlayers - len(m.PlayerIDs)
	if spots < 0 {
		return 0
	}
	return spots
}

// ReminderWindow identifies one of the two pre-match reminder slots.
type ReminderWindow string

const (
	ReminderWindow24h ReminderWindow = "24 hours"
	ReminderWindow2h  ReminderWindow = "2 hours"
)

// ReminderWindows lists the windows in the order they are evaluated.
var ReminderWindows = []ReminderWindow{ReminderWindow24h, ReminderWindow2h}

// Column returns the flag column gating the window.
func (w ReminderWindow) Column() string {
	if w == ReminderWindow24h {
		return "reminder_24h_sent"
	}
	return "reminder_2h_sent"
}

// Bounds returns the inclusive time-until-start range in which the reminder is due.
func (w ReminderWindow) Bounds() (time.Duration, time.Duration) {
	if w == ReminderWindow24h {
		return 23 * time.Hour, 25 * time.Hour
	}
	return 90 * time.Minute, 150 * time.Minute
}

// Sent reports whether the window's flag is already set on the snapshot.
func (w ReminderWindow) Sent(m *Match) bool {
	if w == ReminderWindow24h {
		return m.Reminder24Sent
	}
	return m.Reminder2Sent
}
