package models

// MessageType tags why an externally posted announcement exists.
type MessageType string

const (
	// MessageLobbyTier is the "X is searching in tier Y" announcement in a tier channel.
	MessageLobbyTier MessageType = "LOBBY_TIER"
	// MessageLobbyPlayer is the direct message sent to a player about their lobby.
	MessageLobbyPlayer MessageType = "LOBBY_PLAYER"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	return t == MessageLobbyTier || t == MessageLobbyPlayer
}

// Message links a lobby, player and (optionally) tier to an announcement reference.
type Message struct {
	ID        int64       `json:"id"`
	LobbyID   int64       `json:"lobby_id"`
	PlayerID  int64       `json:"player_id"`
	TierID    *int64      `json:"tier_id,omitempty"`
	Type      MessageType `json:"type"`
	DiscordID string      `json:"discord_id"`
	ChannelID string      `json:"channel_id,omitempty"`
}
