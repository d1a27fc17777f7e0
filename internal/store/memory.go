// internal/store/memory.go
package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
)

// MemoryStore keeps every table in process memory.
// A unit of work runs against a private copy of the state under a single mutex;
// the copy replaces the live state only if the callback returns nil.
type MemoryStore struct {
	mu    sync.Mutex // serializes units of work
	state *memState
}

type lobbyPlayerKey struct {
	lobbyID  int64
	playerID int64
}

type pairKey struct {
	a, b int64
}

type memState struct {
	nextID int64

	players      map[int64]models.Player
	guilds       map[int64]models.Guild
	tiers        map[int64]models.Tier
	lobbies      map[int64]models.Lobby
	lobbyPlayers map[lobbyPlayerKey]models.LobbyPlayer
	rejects      map[pairKey]models.PlayerReject
	messages     map[int64]models.Message
	characters   []models.PlayerCharacter
	regions      []models.PlayerRegion
	yuzu         map[pairKey]models.YuzuPlayer
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			players:      make(map[int64]models.Player),
			guilds:       make(map[int64]models.Guild),
			tiers:        make(map[int64]models.Tier),
			lobbies:      make(map[int64]models.Lobby),
			lobbyPlayers: make(map[lobbyPlayerKey]models.LobbyPlayer),
			rejects:      make(map[pairKey]models.PlayerReject),
			messages:     make(map[int64]models.Message),
			yuzu:         make(map[pairKey]models.YuzuPlayer),
		},
	}
}

// InTx runs fn against a snapshot of the store and commits it when fn succeeds.
func (s *MemoryStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.state.clone()
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx
	return nil
}

func (st *memState) clone() *memState {
	c := &memState{
		nextID:       st.nextID,
		players:      make(map[int64]models.Player, len(st.players)),
		guilds:       make(map[int64]models.Guild, len(st.guilds)),
		tiers:        make(map[int64]models.Tier, len(st.tiers)),
		lobbies:      make(map[int64]models.Lobby, len(st.lobbies)),
		lobbyPlayers: make(map[lobbyPlayerKey]models.LobbyPlayer, len(st.lobbyPlayers)),
		rejects:      make(map[pairKey]models.PlayerReject, len(st.rejects)),
		messages:     make(map[int64]models.Message, len(st.messages)),
		characters:   slices.Clone(st.characters),
		regions:      slices.Clone(st.regions),
		yuzu:         make(map[pairKey]models.YuzuPlayer, len(st.yuzu)),
	}
	for k, v := range st.players {
		c.players[k] = v
	}
	for k, v := range st.guilds {
		c.guilds[k] = v
	}
	for k, v := range st.tiers {
		c.tiers[k] = v
	}
	for k, v := range st.lobbies {
		c.lobbies[k] = copyLobby(v)
	}
	for k, v := range st.lobbyPlayers {
		c.lobbyPlayers[k] = copyLobbyPlayer(v)
	}
	for k, v := range st.rejects {
		c.rejects[k] = v
	}
	for k, v := range st.messages {
		c.messages[k] = copyMessage(v)
	}
	for k, v := range st.yuzu {
		c.yuzu[k] = v
	}
	return c
}

func (st *memState) newID() int64 {
	st.nextID++
	return st.nextID
}

func copyLobby(l models.Lobby) models.Lobby {
	l.TierIDs = slices.Clone(l.TierIDs)
	if l.MatchedTierID != nil {
		v := *l.MatchedTierID
		l.MatchedTierID = &v
	}
	return l
}

func copyLobbyPlayer(lp models.LobbyPlayer) models.LobbyPlayer {
	lp.SearchTierIDs = slices.Clone(lp.SearchTierIDs)
	if lp.AcceptedAt != nil {
		v := *lp.AcceptedAt
		lp.AcceptedAt = &v
	}
	return lp
}

func copyMessage(m models.Message) models.Message {
	if m.TierID != nil {
		v := *m.TierID
		m.TierID = &v
	}
	return m
}

// players, guilds, tiers

func (st *memState) GetPlayer(_ context.Context, id int64) (*models.Player, error) {
	p, ok := st.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (st *memState) GetPlayerByDiscordID(_ context.Context, discordID string) (*models.Player, error) {
	for _, p := range st.players {
		if p.DiscordID == discordID {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (st *memState) UpsertPlayer(ctx context.Context, discordID string) (*models.Player, error) {
	if p, err := st.GetPlayerByDiscordID(ctx, discordID); err == nil {
		return p, nil
	}
	p := models.Player{ID: st.newID(), DiscordID: discordID}
	st.players[p.ID] = p
	return &p, nil
}

func (st *memState) GetGuild(_ context.Context, id int64) (*models.Guild, error) {
	g, ok := st.guilds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (st *memState) GetGuildByDiscordID(_ context.Context, discordID string) (*models.Guild, error) {
	for _, g := range st.guilds {
		if g.DiscordID == discordID {
			return &g, nil
		}
	}
	return nil, ErrNotFound
}

func (st *memState) UpsertGuild(ctx context.Context, guild *models.Guild) error {
	if existing, err := st.GetGuildByDiscordID(ctx, guild.DiscordID); err == nil {
		guild.ID = existing.ID
	} else {
		guild.ID = st.newID()
	}
	st.guilds[guild.ID] = *guild
	return nil
}

func (st *memState) GetTierByDiscordID(_ context.Context, guildID int64, discordID string) (*models.Tier, error) {
	for _, t := range st.tiers {
		if t.GuildID == guildID && t.DiscordID == discordID {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

// GetYuzuTier returns the guild's yuzu tier with the lowest id, like the
// ORDER BY id LIMIT 1 of the postgres query.
func (st *memState) GetYuzuTier(_ context.Context, guildID int64) (*models.Tier, error) {
	var found *models.Tier
	for _, t := range st.tiers {
		if t.GuildID != guildID || !t.Yuzu {
			continue
		}
		if found == nil || t.ID < found.ID {
			t := t
			found = &t
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (st *memState) GetTiers(_ context.Context, ids []int64) ([]models.Tier, error) {
	out := make([]models.Tier, 0, len(ids))
	for _, id := range ids {
		if t, ok := st.tiers[id]; ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (st *memState) UpsertTier(ctx context.Context, tier *models.Tier) error {
	if existing, err := st.GetTierByDiscordID(ctx, tier.GuildID, tier.DiscordID); err == nil {
		tier.ID = existing.ID
	} else {
		tier.ID = st.newID()
	}
	st.tiers[tier.ID] = *tier
	return nil
}

// lobbies

func (st *memState) GetLobby(_ context.Context, id int64) (*models.Lobby, error) {
	l, ok := st.lobbies[id]
	if !ok {
		return nil, ErrNotFound
	}
	l = copyLobby(l)
	return &l, nil
}

// LockLobby is GetLobby: the whole unit of work already holds the store mutex.
func (st *memState) LockLobby(ctx context.Context, id int64) (*models.Lobby, error) {
	return st.GetLobby(ctx, id)
}

func (st *memState) GetOpenLobbyByPlayer(ctx context.Context, playerID int64) (*models.Lobby, error) {
	for k := range st.lobbyPlayers {
		if k.playerID != playerID {
			continue
		}
		l, ok := st.lobbies[k.lobbyID]
		if ok && l.Status.Open() {
			return st.GetLobby(ctx, l.ID)
		}
	}
	return nil, ErrNotFound
}

func (st *memState) ListLobbiesByStatus(_ context.Context, status models.LobbyStatus) ([]models.Lobby, error) {
	var out []models.Lobby
	for _, l := range st.lobbies {
		if l.Status == status {
			out = append(out, copyLobby(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (st *memState) InsertLobby(_ context.Context, lobby *models.Lobby) error {
	lobby.ID = st.newID()
	st.lobbies[lobby.ID] = copyLobby(*lobby)
	return nil
}

func (st *memState) UpdateLobby(_ context.Context, lobby *models.Lobby) error {
	existing, ok := st.lobbies[lobby.ID]
	if !ok {
		return ErrNotFound
	}
	// tiers are only changed through AddLobbyTiers
	updated := copyLobby(*lobby)
	updated.TierIDs = existing.TierIDs
	st.lobbies[lobby.ID] = updated
	return nil
}

func (st *memState) DeleteLobby(_ context.Context, id int64) error {
	if _, ok := st.lobbies[id]; !ok {
		return ErrNotFound
	}
	delete(st.lobbies, id)
	for k := range st.lobbyPlayers {
		if k.lobbyID == id {
			delete(st.lobbyPlayers, k)
		}
	}
	for k, m := range st.messages {
		if m.LobbyID == id {
			delete(st.messages, k)
		}
	}
	return nil
}

func (st *memState) AddLobbyTiers(_ context.Context, lobbyID int64, tierIDs []int64) error {
	l, ok := st.lobbies[lobbyID]
	if !ok {
		return ErrNotFound
	}
	for _, id := range tierIDs {
		if !slices.Contains(l.TierIDs, id) {
			l.TierIDs = append(l.TierIDs, id)
		}
	}
	slices.Sort(l.TierIDs)
	st.lobbies[lobbyID] = l
	return nil
}

func (st *memState) GetLobbyPlayers(_ context.Context, lobbyID int64) ([]models.LobbyPlayer, error) {
	var out []models.LobbyPlayer
	for k, lp := range st.lobbyPlayers {
		if k.lobbyID == lobbyID {
			out = append(out, copyLobbyPlayer(lp))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (st *memState) InsertLobbyPlayer(_ context.Context, lp *models.LobbyPlayer) error {
	st.lobbyPlayers[lobbyPlayerKey{lp.LobbyID, lp.PlayerID}] = copyLobbyPlayer(*lp)
	return nil
}

func (st *memState) UpdateLobbyPlayer(_ context.Context, lp *models.LobbyPlayer) error {
	k := lobbyPlayerKey{lp.LobbyID, lp.PlayerID}
	if _, ok := st.lobbyPlayers[k]; !ok {
		return ErrNotFound
	}
	st.lobbyPlayers[k] = copyLobbyPlayer(*lp)
	return nil
}

func (st *memState) DeleteLobbyPlayer(_ context.Context, lobbyID, playerID int64) error {
	k := lobbyPlayerKey{lobbyID, playerID}
	if _, ok := st.lobbyPlayers[k]; !ok {
		return ErrNotFound
	}
	delete(st.lobbyPlayers, k)
	return nil
}

// rejects

func (st *memState) UpsertReject(_ context.Context, r models.PlayerReject) error {
	st.rejects[pairKey{r.RejecterID, r.RejectedID}] = r
	return nil
}

func (st *memState) ListLiveRejects(_ context.Context, playerIDs []int64, now time.Time) ([]models.PlayerReject, error) {
	var out []models.PlayerReject
	for _, r := range st.rejects {
		if !r.Live(now) {
			continue
		}
		if slices.Contains(playerIDs, r.RejecterID) || slices.Contains(playerIDs, r.RejectedID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (st *memState) CountExpiredRejects(_ context.Context, now time.Time) (int, error) {
	n := 0
	for _, r := range st.rejects {
		if !r.Live(now) {
			n++
		}
	}
	return n, nil
}

func (st *memState) DeleteExpiredRejects(_ context.Context, now time.Time) (int, error) {
	n := 0
	for k, r := range st.rejects {
		if !r.Live(now) {
			delete(st.rejects, k)
			n++
		}
	}
	return n, nil
}

// messages

func (st *memState) InsertMessage(_ context.Context, m *models.Message) error {
	m.ID = st.newID()
	st.messages[m.ID] = copyMessage(*m)
	return nil
}

func (st *memState) lobbyMembers(lobbyID int64) []int64 {
	var ids []int64
	for k := range st.lobbyPlayers {
		if k.lobbyID == lobbyID {
			ids = append(ids, k.playerID)
		}
	}
	return ids
}

func (st *memState) ListLobbyMessages(_ context.Context, lobbyID int64, typ models.MessageType) ([]models.Message, error) {
	members := st.lobbyMembers(lobbyID)
	var out []models.Message
	for _, m := range st.messages {
		if m.Type == typ && slices.Contains(members, m.PlayerID) {
			out = append(out, copyMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (st *memState) DeleteLobbyMessages(_ context.Context, lobbyID int64, typ models.MessageType) (int, error) {
	members := st.lobbyMembers(lobbyID)
	n := 0
	for k, m := range st.messages {
		if m.Type == typ && slices.Contains(members, m.PlayerID) {
			delete(st.messages, k)
			n++
		}
	}
	return n, nil
}

func (st *memState) MoveMessages(_ context.Context, playerID, lobbyID int64) error {
	for k, m := range st.messages {
		if m.PlayerID == playerID {
			m.LobbyID = lobbyID
			st.messages[k] = m
		}
	}
	return nil
}

// profile

func (st *memState) ListCharacters(_ context.Context, playerID int64) ([]models.PlayerCharacter, error) {
	var out []models.PlayerCharacter
	for _, c := range st.characters {
		if c.PlayerID == playerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (st *memState) InsertCharacter(_ context.Context, c models.PlayerCharacter) error {
	st.characters = append(st.characters, c)
	return nil
}

func (st *memState) DeleteCharacter(_ context.Context, playerID int64, name string) error {
	for i, c := range st.characters {
		if c.PlayerID == playerID && c.Name == name {
			st.characters = slices.Delete(st.characters, i, i+1)
			return nil
		}
	}
	return ErrNotFound
}

func (st *memState) ListRegions(_ context.Context, playerID int64) ([]models.PlayerRegion, error) {
	var out []models.PlayerRegion
	for _, r := range st.regions {
		if r.PlayerID == playerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (st *memState) InsertRegion(_ context.Context, r models.PlayerRegion) error {
	st.regions = append(st.regions, r)
	return nil
}

func (st *memState) DeleteRegion(_ context.Context, playerID int64, name string) error {
	for i, r := range st.regions {
		if r.PlayerID == playerID && r.Name == name {
			st.regions = slices.Delete(st.regions, i, i+1)
			return nil
		}
	}
	return ErrNotFound
}

func (st *memState) GetYuzuPlayer(_ context.Context, playerID, guildID int64) (*models.YuzuPlayer, error) {
	y, ok := st.yuzu[pairKey{playerID, guildID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &y, nil
}

func (st *memState) UpsertYuzuPlayer(_ context.Context, y models.YuzuPlayer) error {
	st.yuzu[pairKey{y.PlayerID, y.GuildID}] = y
	return nil
}

var (
	_ Repository = (*MemoryStore)(nil)
	_ Queries    = (*memState)(nil)
)
