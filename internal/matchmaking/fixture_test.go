package matchmaking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sergioBarril/smashbotjs-sub001/internal/events"
	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
	"github.com/sergioBarril/smashbotjs-sub001/internal/store"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const guildID = "guild-1"

type scheduled struct {
	check TimeoutCheck
	at    time.Time
}

type fakeScheduler struct {
	mu     sync.Mutex
	checks []scheduled
}

func (s *fakeScheduler) ScheduleTimeoutCheck(_ context.Context, check TimeoutCheck, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, scheduled{check: check, at: at})
	return nil
}

func (s *fakeScheduler) all() []scheduled {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scheduled(nil), s.checks...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []events.LobbyEvent
	fail   map[events.Type]bool
}

func (n *fakeNotifier) Publish(_ context.Context, ev events.LobbyEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[ev.Type] {
		return errors.New("queue unavailable")
	}
	n.events = append(n.events, ev)
	return nil
}

func (n *fakeNotifier) failOn(typ events.Type, fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail == nil {
		n.fail = make(map[events.Type]bool)
	}
	n.fail[typ] = fail
}

func (n *fakeNotifier) ofType(typ events.Type) []events.LobbyEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []events.LobbyEvent
	for _, ev := range n.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	repo   *store.MemoryStore
	engine *Engine
	sched  *fakeScheduler
	notes  *fakeNotifier
	clock  *clock
}

// newFixture registers one guild with tiers t1..t3 (weights 1..3) and a yuzu tier.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		repo:  store.NewMemoryStore(),
		sched: &fakeScheduler{},
		notes: &fakeNotifier{},
		clock: &clock{now: time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)},
	}
	f.engine = NewEngine(f.repo, f.sched, f.notes, nil, logger, DefaultConfig())
	f.engine.now = f.clock.Now

	_, err := f.engine.RegisterGuild(f.ctx, models.Guild{DiscordID: guildID})
	require.NoError(t, err)
	for i, id := range []string{"t1", "t2", "t3"} {
		_, err := f.engine.RegisterTier(f.ctx, guildID, models.Tier{DiscordID: id, ChannelID: "chan-" + id, Weight: i + 1})
		require.NoError(t, err)
	}
	_, err = f.engine.RegisterTier(f.ctx, guildID, models.Tier{DiscordID: "yuzu", ChannelID: "chan-yuzu", Weight: 10, Yuzu: true})
	require.NoError(t, err)
	return f
}

func (f *fixture) search(player string, tiers ...string) *models.Lobby {
	f.t.Helper()
	lobby, err := f.engine.StartSearch(f.ctx, StartSearchRequest{
		PlayerID: player,
		GuildID:  guildID,
		TierIDs:  tiers,
	})
	require.NoError(f.t, err)
	return lobby
}

// match puts a and b in one CONFIRMATION lobby hosted by a.
func (f *fixture) match(a, b string) *SearchResult {
	f.t.Helper()
	f.search(a, "t1")
	f.search(b, "t1")
	res, err := f.engine.TryMatch(f.ctx, b)
	require.NoError(f.t, err)
	require.True(f.t, res.Matched)
	return res
}

// lobbyOf returns the open lobby and its players for a player.
func (f *fixture) lobbyOf(player string) (*models.Lobby, []models.LobbyPlayer) {
	f.t.Helper()
	var (
		lobby   *models.Lobby
		members []models.LobbyPlayer
	)
	err := f.repo.InTx(f.ctx, func(q store.Queries) error {
		p, err := q.GetPlayerByDiscordID(f.ctx, player)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		lobby, err = q.GetOpenLobbyByPlayer(f.ctx, p.ID)
		if errors.Is(err, store.ErrNotFound) {
			lobby = nil
			return nil
		}
		if err != nil {
			return err
		}
		members, err = q.GetLobbyPlayers(f.ctx, lobby.ID)
		return err
	})
	require.NoError(f.t, err)
	return lobby, members
}

func (f *fixture) statusOf(player string) models.LobbyStatus {
	f.t.Helper()
	lobby, _ := f.lobbyOf(player)
	if lobby == nil {
		return ""
	}
	return lobby.Status
}

func (f *fixture) tierID(discordID string) int64 {
	f.t.Helper()
	tier, err := f.engine.GetGuildTier(f.ctx, guildID, discordID)
	require.NoError(f.t, err)
	return tier.ID
}
