// internal/models/lobby.go
package models

import (
	"fmt"
	"time"
)

// LobbyStatus is the state of a lobby and, mirrored, of each of its LobbyPlayers.
type LobbyStatus string

const (
	StatusSearching    LobbyStatus = "SEARCHING"
	StatusConfirmation LobbyStatus = "CONFIRMATION"
	StatusAFK          LobbyStatus = "AFK"
	StatusPlaying      LobbyStatus = "PLAYING"
)

// Open reports whether a lobby in this status still counts as the player's active lobby.
// PLAYING lobbies belong to the session-start collaborator and are not open.
func (s LobbyStatus) Open() bool {
	return s == StatusSearching || s == StatusConfirmation || s == StatusAFK
}

// LobbyMode is the kind of session searched for.
type LobbyMode string

const (
	ModeFriendlies LobbyMode = "friendlies"
	ModeRanked     LobbyMode = "ranked"
)

// ParseLobbyMode validates a user supplied mode. The empty string defaults to friendlies.
func ParseLobbyMode(s string) (LobbyMode, error) {
	switch LobbyMode(s) {
	case "", ModeFriendlies:
		return ModeFriendlies, nil
	case ModeRanked:
		return ModeRanked, nil
	}
	return "", fmt.Errorf("unknown lobby mode %q", s)
}

// Lobby represents a row in the lobby table together with its attached tiers.
type Lobby struct {
	ID      int64       `json:"id"`
	GuildID int64       `json:"guild_id"`
	Mode    LobbyMode   `json:"mode"`
	Status  LobbyStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is bumped on every status change; used to spot confirmations whose timer was lost.
	UpdatedAt time.Time `json:"updated_at"`

	// MatchedTierID is the tier the match was made on, set while in CONFIRMATION/PLAYING.
	MatchedTierID *int64 `json:"matched_tier_id,omitempty"`

	TierIDs []int64 `json:"tier_ids"`
}

// LobbyPlayer is a player's membership and confirmation state within a lobby.
type LobbyPlayer struct {
	LobbyID  int64       `json:"lobby_id"`
	PlayerID int64       `json:"player_id"`
	Status   LobbyStatus `json:"status"`

	// AcceptedAt is set exactly when the player confirms a found match.
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`

	// SearchTierIDs keeps the tiers the player searched with before a merge,
	// so an unwound match can restore each player's own search.
	SearchTierIDs []int64 `json:"search_tier_ids,omitempty"`
}

// HasAccepted reports whether the player confirmed the current match.
func (lp LobbyPlayer) HasAccepted() bool {
	return lp.AcceptedAt != nil
}
