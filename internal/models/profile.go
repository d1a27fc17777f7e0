package models

// CharacterKind ranks how much a player uses a character.
type CharacterKind string

const (
	CharacterMain   CharacterKind = "main"
	CharacterSecond CharacterKind = "second"
	CharacterPocket CharacterKind = "pocket"
)

// PlayerCharacter is a character a player declares they play.
type PlayerCharacter struct {
	PlayerID int64         `json:"player_id"`
	Name     string        `json:"name"`
	Kind     CharacterKind `json:"kind"`
}

// PlayerRegion is a region a player declares they play from.
type PlayerRegion struct {
	PlayerID int64  `json:"player_id"`
	Name     string `json:"name"`
}

// YuzuPlayer holds a player's netplay setup in a guild.
type YuzuPlayer struct {
	PlayerID int64 `json:"player_id"`
	GuildID  int64 `json:"guild_id"`
	Yuzu     bool  `json:"yuzu"`
	Parsec   bool  `json:"parsec"`
}

// CanPlay reports whether the profile allows searching in a special-mode tier.
func (y YuzuPlayer) CanPlay() bool {
	return y.Yuzu || y.Parsec
}
