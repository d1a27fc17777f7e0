package matchmaking

import (
	"testing"
	"time"

	"github.com/sergioBarril/smashbotjs-sub001/internal/events"
	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
	"github.com/sergioBarril/smashbotjs-sub001/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) lobbiesIn(status models.LobbyStatus) []models.Lobby {
	f.t.Helper()
	var out []models.Lobby
	err := f.repo.InTx(f.ctx, func(q store.Queries) error {
		var err error
		out, err = q.ListLobbiesByStatus(f.ctx, status)
		return err
	})
	require.NoError(f.t, err)
	return out
}

func TestSearchTickPairsCompatibleLobbies(t *testing.T) {
	f := newFixture(t)
	f.search("p1", "t1")
	f.search("p2", "t1", "t2")
	_, err := f.engine.StartSearch(f.ctx, StartSearchRequest{
		PlayerID: "p3",
		GuildID:  guildID,
		Mode:     string(models.ModeRanked),
		TierIDs:  []string{"t1"},
	})
	require.NoError(t, err)

	res, err := f.engine.SearchTick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, TickResult{Searching: 3, Matched: 1}, res)

	assert.Equal(t, models.StatusConfirmation, f.statusOf("p1"))
	assert.Equal(t, models.StatusConfirmation, f.statusOf("p2"))
	assert.Equal(t, models.StatusSearching, f.statusOf("p3"), "a ranked lobby never meets a friendlies one")

	lobby, members := f.lobbyOf("p1")
	require.Len(t, members, 2)
	require.NotNil(t, lobby.MatchedTierID)
	assert.Equal(t, f.tierID("t1"), *lobby.MatchedTierID)

	found := f.notes.ofType(events.MatchFound)
	require.Len(t, found, 1)
	assert.ElementsMatch(t, []string{"p1", "p2"}, found[0].Players)
	assert.Len(t, f.sched.all(), 2, "one timeout check per matched player")
	for _, s := range f.sched.all() {
		assert.Nil(t, s.check.ExpectedAcceptedAt)
		assert.Equal(t, f.clock.Now().Add(DefaultConfig().ConfirmationGrace), s.at)
	}

	again, err := f.engine.SearchTick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Matched)
}

func TestSearchTickHostIsOlderLobby(t *testing.T) {
	f := newFixture(t)
	first := f.search("p1", "t2")
	f.clock.Advance(time.Second)
	f.search("p2", "t2")

	_, err := f.engine.SearchTick(f.ctx)
	require.NoError(t, err)

	lobby, _ := f.lobbyOf("p2")
	require.NotNil(t, lobby)
	assert.Equal(t, first.ID, lobby.ID)
	assert.Len(t, f.lobbiesIn(models.StatusSearching), 0)
}

func TestSearchTickSkipsRejectedPairs(t *testing.T) {
	f := newFixture(t)
	f.search("p1", "t1")
	f.search("p2", "t1")
	_, err := f.engine.RecordReject(f.ctx, "p2", "p1", 10*time.Minute)
	require.NoError(t, err)

	res, err := f.engine.SearchTick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matched)

	f.clock.Advance(10 * time.Minute)
	res, err = f.engine.SearchTick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
}

func TestMergeMovesMessages(t *testing.T) {
	f := newFixture(t)
	f.search("p1", "t1")
	_, err := f.engine.SaveSearchTierMessage(f.ctx, "p1", "t1", "msg-1", false)
	require.NoError(t, err)
	f.search("p2", "t1")
	_, err = f.engine.SaveSearchTierMessage(f.ctx, "p2", "t1", "msg-2", false)
	require.NoError(t, err)

	res, err := f.engine.TryMatch(f.ctx, "p2")
	require.NoError(t, err)
	require.True(t, res.Matched)

	msgs, err := f.engine.GetMessagesFromEveryone(f.ctx, res.Lobby.ID, models.MessageLobbyTier)
	require.NoError(t, err)
	var ids []string
	for _, m := range msgs {
		assert.Equal(t, res.Lobby.ID, m.LobbyID)
		ids = append(ids, m.DiscordID)
	}
	assert.ElementsMatch(t, []string{"msg-1", "msg-2"}, ids)
}

func TestSearchTickExpiresStaleConfirmations(t *testing.T) {
	f := newFixture(t)
	f.match("p1", "p2")
	_, err := f.engine.AcceptMatch(f.ctx, "p1")
	require.NoError(t, err)

	f.clock.Advance(2 * DefaultConfig().ConfirmationGrace)
	res, err := f.engine.SearchTick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Expired, "not older than twice the grace window yet")

	f.clock.Advance(time.Second)
	res, err = f.engine.SearchTick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, models.StatusSearching, f.statusOf("p1"))
	assert.Equal(t, models.StatusAFK, f.statusOf("p2"))
	assert.Len(t, f.notes.ofType(events.MatchTimedOut), 1)
}

func TestSearchTickRetriesHandoff(t *testing.T) {
	f := newFixture(t)
	f.match("p1", "p2")
	f.notes.failOn(events.MatchStarted, true)

	_, err := f.engine.AcceptMatch(f.ctx, "p1")
	require.NoError(t, err)
	res, err := f.engine.AcceptMatch(f.ctx, "p2")
	require.NoError(t, err)
	require.True(t, res.HasEveryoneAccepted)

	playing := f.lobbiesIn(models.StatusPlaying)
	require.Len(t, playing, 1, "the lobby stays PLAYING until the hand-off goes out")

	tick, err := f.engine.SearchTick(f.ctx)
	assert.Error(t, err)
	assert.Equal(t, 0, tick.HandedOff)

	f.notes.failOn(events.MatchStarted, false)
	tick, err = f.engine.SearchTick(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, tick.HandedOff)
	assert.Empty(t, f.lobbiesIn(models.StatusPlaying))

	started := f.notes.ofType(events.MatchStarted)
	require.Len(t, started, 1)
	assert.Equal(t, playing[0].ID, started[0].LobbyID)
}

func TestUnwindKeepsTiersAddedAfterEarlierMatch(t *testing.T) {
	t.Run("as host", func(t *testing.T) {
		f := newFixture(t)
		f.match("p1", "p2")
		_, err := f.engine.DeclineMatch(f.ctx, "p2", time.Minute)
		require.NoError(t, err)

		_, err = f.engine.AddTiers(f.ctx, "p1", []string{"t3"})
		require.NoError(t, err)
		f.clock.Advance(time.Second)
		f.search("p3", "t3")
		res, err := f.engine.TryMatch(f.ctx, "p3")
		require.NoError(t, err)
		require.True(t, res.Matched)

		_, err = f.engine.DeclineMatch(f.ctx, "p3", time.Minute)
		require.NoError(t, err)
		lobby, members := f.lobbyOf("p1")
		require.NotNil(t, lobby)
		assert.Equal(t, models.StatusSearching, lobby.Status)
		assert.ElementsMatch(t, []int64{f.tierID("t1"), f.tierID("t3")}, lobby.TierIDs)
		require.Len(t, members, 1)
		assert.ElementsMatch(t, []int64{f.tierID("t1"), f.tierID("t3")}, members[0].SearchTierIDs)
	})

	t.Run("as guest", func(t *testing.T) {
		f := newFixture(t)
		f.search("p3", "t3")
		f.clock.Advance(time.Second)
		f.match("p1", "p2")
		_, err := f.engine.DeclineMatch(f.ctx, "p2", time.Minute)
		require.NoError(t, err)

		_, err = f.engine.AddTiers(f.ctx, "p1", []string{"t3"})
		require.NoError(t, err)
		res, err := f.engine.TryMatch(f.ctx, "p1")
		require.NoError(t, err)
		require.True(t, res.Matched)
		p3Lobby, _ := f.lobbyOf("p3")
		require.Equal(t, p3Lobby.ID, res.Lobby.ID, "p3 searched first and hosts")

		_, err = f.engine.DeclineMatch(f.ctx, "p3", time.Minute)
		require.NoError(t, err)
		lobby, _ := f.lobbyOf("p1")
		require.NotNil(t, lobby)
		assert.Equal(t, models.StatusSearching, lobby.Status)
		assert.ElementsMatch(t, []int64{f.tierID("t1"), f.tierID("t3")}, lobby.TierIDs)
	})
}
