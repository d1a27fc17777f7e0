// Package store defines the persistence port used by the matchmaking engine.
//
// Two implementations exist: MemoryStore in this package, used by tests and
// single-process setups, and the PostgreSQL store in internal/database.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
)

// ErrNotFound is returned by lookups that matched no row.
var ErrNotFound = errors.New("store: record not found")

// Repository runs units of work atomically. Every mutation spanning several rows
// must happen inside a single InTx call: either all of fn's writes are committed
// or none are.
type Repository interface {
	InTx(ctx context.Context, fn func(q Queries) error) error
}

// Queries is the set of operations available inside a unit of work.
type Queries interface {
	PlayerQueries
	LobbyQueries
	RejectQueries
	MessageQueries
	ProfileQueries
}

type PlayerQueries interface {
	GetPlayer(ctx context.Context, id int64) (*models.Player, error)
	GetPlayerByDiscordID(ctx context.Context, discordID string) (*models.Player, error)
	UpsertPlayer(ctx context.Context, discordID string) (*models.Player, error)

	GetGuild(ctx context.Context, id int64) (*models.Guild, error)
	GetGuildByDiscordID(ctx context.Context, discordID string) (*models.Guild, error)
	UpsertGuild(ctx context.Context, guild *models.Guild) error

	GetTierByDiscordID(ctx context.Context, guildID int64, discordID string) (*models.Tier, error)
	GetYuzuTier(ctx context.Context, guildID int64) (*models.Tier, error)
	GetTiers(ctx context.Context, ids []int64) ([]models.Tier, error)
	UpsertTier(ctx context.Context, tier *models.Tier) error
}

type LobbyQueries interface {
	GetLobby(ctx context.Context, id int64) (*models.Lobby, error)
	// LockLobby reads the lobby and holds a write lock on it until the unit of work ends.
	LockLobby(ctx context.Context, id int64) (*models.Lobby, error)
	// GetOpenLobbyByPlayer returns the SEARCHING, CONFIRMATION or AFK lobby of a player.
	GetOpenLobbyByPlayer(ctx context.Context, playerID int64) (*models.Lobby, error)
	// ListLobbiesByStatus returns lobbies ordered by creation time, then id.
	ListLobbiesByStatus(ctx context.Context, status models.LobbyStatus) ([]models.Lobby, error)
	InsertLobby(ctx context.Context, lobby *models.Lobby) error
	UpdateLobby(ctx context.Context, lobby *models.Lobby) error
	DeleteLobby(ctx context.Context, id int64) error
	AddLobbyTiers(ctx context.Context, lobbyID int64, tierIDs []int64) error

	// GetLobbyPlayers returns the members of a lobby ordered by player id.
	GetLobbyPlayers(ctx context.Context, lobbyID int64) ([]models.LobbyPlayer, error)
	InsertLobbyPlayer(ctx context.Context, lp *models.LobbyPlayer) error
	UpdateLobbyPlayer(ctx context.Context, lp *models.LobbyPlayer) error
	DeleteLobbyPlayer(ctx context.Context, lobbyID, playerID int64) error
}

type RejectQueries interface {
	// UpsertReject records the pair, superseding any previous row for it.
	UpsertReject(ctx context.Context, r models.PlayerReject) error
	// ListLiveRejects returns rejects involving any of the players on either side
	// that are still within their time margin at now.
	ListLiveRejects(ctx context.Context, playerIDs []int64, now time.Time) ([]models.PlayerReject, error)
	CountExpiredRejects(ctx context.Context, now time.Time) (int, error)
	DeleteExpiredRejects(ctx context.Context, now time.Time) (int, error)
}

type MessageQueries interface {
	InsertMessage(ctx context.Context, m *models.Message) error
	// ListLobbyMessages returns messages of the given type owned by any player
	// currently in the lobby.
	ListLobbyMessages(ctx context.Context, lobbyID int64, typ models.MessageType) ([]models.Message, error)
	DeleteLobbyMessages(ctx context.Context, lobbyID int64, typ models.MessageType) (int, error)
	// MoveMessages re-points every message of a player to another lobby.
	MoveMessages(ctx context.Context, playerID, lobbyID int64) error
}

type ProfileQueries interface {
	ListCharacters(ctx context.Context, playerID int64) ([]models.PlayerCharacter, error)
	InsertCharacter(ctx context.Context, c models.PlayerCharacter) error
	DeleteCharacter(ctx context.Context, playerID int64, name string) error

	ListRegions(ctx context.Context, playerID int64) ([]models.PlayerRegion, error)
	InsertRegion(ctx context.Context, r models.PlayerRegion) error
	DeleteRegion(ctx context.Context, playerID int64, name string) error

	GetYuzuPlayer(ctx context.Context, playerID, guildID int64) (*models.YuzuPlayer, error)
	UpsertYuzuPlayer(ctx context.Context, y models.YuzuPlayer) error
}
