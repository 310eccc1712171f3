package services

import "github.com/charlesng35/courtnotify/internal/models"

// TransitionKind names a semantic change between two match snapshots. The
// value doubles as the notification type sent to clients.
type TransitionKind string

const (
	TransitionCancelled        TransitionKind = "match_cancelled"
	TransitionSubstituteNeeded TransitionKind = "substitute_needed"
	TransitionPlayerJoined     TransitionKind = "player_joined"
	TransitionPlayerLeft       TransitionKind = "player_left"
	TransitionRescheduled      TransitionKind = "match_rescheduled"
)

// Transition is one detected change. PlayerID is set for joins and leaves.
type Transition struct {
	Kind     TransitionKind
	PlayerID string
}

// ClassifyMatchUpdate diffs two snapshots of the same match. Either snapshot
// being nil yields no transitions; creation and deletion are handled elsewhere.
// Every participant added or removed in one update gets its own event.
func ClassifyMatchUpdate(before, after *models.Match) []Transition {
	if before == nil || after == nil {
		return nil
	}

	var out []Transition

	if before.Status != models.MatchStatusCancelled && after.Status == models.MatchStatusCancelled {
		out = append(out, Transition{Kind: TransitionCancelled})
	}

	if !before.SubNeeded && after.SubNeeded {
		out = append(out, Transition{Kind: TransitionSubstituteNeeded})
	}

	if len(after.PlayerIDs) > len(before.PlayerIDs) {
		for _, id := range difference(after.PlayerIDs, before.PlayerIDs) {
			out = append(out, Transition{Kind: TransitionPlayerJoined, PlayerID: id})
		}
	}

	if len(after.PlayerIDs) < len(before.PlayerIDs) {
		for _, id := range difference(before.PlayerIDs, after.PlayerIDs) {
			out = append(out, Transition{Kind: TransitionPlayerLeft, PlayerID: id})
		}
	}

	if !before.MatchDate.Equal(after.MatchDate) || before.MatchTime != after.MatchTime {
		out = append(out, Transition{Kind: TransitionRescheduled})
	}

	return out
}
