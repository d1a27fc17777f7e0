package models

import "time"

// Player is keyed by the external (Discord) account id.
type Player struct {
	ID        int64  `json:"id"`
	DiscordID string `json:"discord_id"`
}

// Guild is a community/server scope for lobbies and tiers.
type Guild struct {
	ID              int64  `json:"id"`
	DiscordID       string `json:"discord_id"`
	SearchChannelID string `json:"search_channel_id,omitempty"`
	YuzuRoleID      string `json:"yuzu_role_id,omitempty"`
}

// Tier is a skill bracket of a guild. Lower weight means a higher bracket.
type Tier struct {
	ID        int64  `json:"id"`
	GuildID   int64  `json:"guild_id"`
	DiscordID string `json:"discord_id"`
	ChannelID string `json:"channel_id,omitempty"`
	Weight    int    `json:"weight"`
	Threshold int    `json:"threshold"`

	// Yuzu marks the guild's special-mode (emulator netplay) tier.
	Yuzu bool `json:"yuzu"`
}

// PlayerReject means "do not re-match these two before RejectedAt+TimeMargin".
type PlayerReject struct {
	RejecterID int64     `json:"rejecter_id"`
	RejectedID int64     `json:"rejected_id"`
	RejectedAt time.Time `json:"rejected_at"`
	TimeMargin int       `json:"time_margin"` // minutes
}

// ExpiresAt is the instant after which the cool-down no longer applies.
func (r PlayerReject) ExpiresAt() time.Time {
	return r.RejectedAt.Add(time.Duration(r.TimeMargin) * time.Minute)
}

// Live reports whether the cool-down still holds at now.
func (r PlayerReject) Live(now time.Time) bool {
	return now.Before(r.ExpiresAt())
}
