//go:build integration

package database

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sergioBarril/smashbotjs-sub001/internal/matchmaking"
	"github.com/sergioBarril/smashbotjs-sub001/internal/models"
	"github.com/sergioBarril/smashbotjs-sub001/internal/store"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway PostgreSQL and returns a migrated pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("smashbot"),
		postgres.WithUsername("smashbot"),
		postgres.WithPassword("smashbot"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(45*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	pool, err := Connect(ctx, url, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	require.NoError(t, Migrate(ctx, pool), "migrations are idempotent")
	return pool
}

func newEngine(t *testing.T, pool *pgxpool.Pool) *matchmaking.Engine {
	t.Helper()
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	engine := matchmaking.NewEngine(NewStore(pool), nil, nil, nil, logger, matchmaking.DefaultConfig())

	_, err := engine.RegisterGuild(ctx, models.Guild{DiscordID: "guild-1"})
	require.NoError(t, err)
	for i, id := range []string{"t1", "t2"} {
		_, err := engine.RegisterTier(ctx, "guild-1", models.Tier{DiscordID: id, ChannelID: "chan-" + id, Weight: i + 1})
		require.NoError(t, err)
	}
	return engine
}

func TestPostgresMatchLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	engine := newEngine(t, pool)

	for _, p := range []string{"p1", "p2"} {
		_, err := engine.StartSearch(ctx, matchmaking.StartSearchRequest{PlayerID: p, GuildID: "guild-1", TierIDs: []string{"t1", "t2"}})
		require.NoError(t, err)
		_, err = engine.SaveSearchTierMessage(ctx, p, "t1", "msg-"+p, false)
		require.NoError(t, err)
	}

	tick, err := engine.SearchTick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, tick.Matched)

	first, err := engine.AcceptMatch(ctx, "p1")
	require.NoError(t, err)
	require.False(t, first.HasEveryoneAccepted)

	msgs, err := engine.GetMessagesFromEveryone(ctx, first.Lobby.ID, models.MessageLobbyTier)
	require.NoError(t, err)
	assert.Len(t, msgs, 2, "the guest's messages moved with them")

	stamp := first.AcceptedAt
	timedOut, err := engine.TimeOutCheck(ctx, matchmaking.TimeoutCheck{
		PlayerDiscordID:    "p1",
		LobbyID:            first.Lobby.ID,
		ExpectedAcceptedAt: &stamp,
	})
	require.NoError(t, err)
	assert.True(t, timedOut, "acceptedAt survives the round trip unchanged")

	second, err := engine.AcceptMatch(ctx, "p2")
	require.NoError(t, err)
	assert.True(t, second.HasEveryoneAccepted)

	searching, err := engine.IsSearching(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, searching)

	var count int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM lobby").Scan(&count))
	assert.Zero(t, count, "the started lobby was handed off and removed")
}

func TestPostgresConcurrentAccept(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	engine := newEngine(t, pool)

	for _, p := range []string{"p1", "p2"} {
		_, err := engine.StartSearch(ctx, matchmaking.StartSearchRequest{PlayerID: p, GuildID: "guild-1", TierIDs: []string{"t1"}})
		require.NoError(t, err)
	}
	res, err := engine.TryMatch(ctx, "p2")
	require.NoError(t, err)
	require.True(t, res.Matched)

	var (
		wg      sync.WaitGroup
		results = make([]*matchmaking.AcceptResult, 2)
		errs    = make([]error, 2)
	)
	for i, p := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			results[i], errs[i] = engine.AcceptMatch(ctx, p)
		}(i, p)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotEqual(t, results[0].HasEveryoneAccepted, results[1].HasEveryoneAccepted,
		"the lobby lock lets exactly one accept see consensus")
}

func TestPostgresConcurrentTryMatch(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	engine := newEngine(t, pool)

	for round := 0; round < 5; round++ {
		var players []string
		for _, tier := range []string{"t1", "t2"} {
			for _, side := range []string{"a", "b"} {
				p := fmt.Sprintf("r%d-%s-%s", round, tier, side)
				_, err := engine.StartSearch(ctx, matchmaking.StartSearchRequest{PlayerID: p, GuildID: "guild-1", TierIDs: []string{tier}})
				require.NoError(t, err)
				players = append(players, p)
			}
		}

		// both sides of each pair ask for the same merge at once
		var (
			wg      sync.WaitGroup
			results = make([]*matchmaking.SearchResult, len(players))
			errs    = make([]error, len(players))
		)
		for i, p := range players {
			wg.Add(1)
			go func(i int, p string) {
				defer wg.Done()
				results[i], errs[i] = engine.TryMatch(ctx, p)
			}(i, p)
		}
		wg.Wait()

		matched := 0
		for i, err := range errs {
			if err != nil {
				var ve *matchmaking.ValidationError
				require.ErrorAs(t, err, &ve, "%s lost the race with an unexpected error", players[i])
				continue
			}
			if results[i].Matched {
				matched++
			}
		}
		assert.Equal(t, 2, matched, "round %d: one merge per pair", round)

		var searching int
		require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM lobby WHERE status = 'SEARCHING'").Scan(&searching))
		assert.Zero(t, searching, "round %d left a lobby searching", round)
	}

	var confirming int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM lobby WHERE status = 'CONFIRMATION'").Scan(&confirming))
	assert.Equal(t, 10, confirming)
}

func TestPostgresDeclineAndRejects(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	engine := newEngine(t, pool)

	for _, p := range []string{"p1", "p2"} {
		_, err := engine.StartSearch(ctx, matchmaking.StartSearchRequest{PlayerID: p, GuildID: "guild-1", TierIDs: []string{"t2"}})
		require.NoError(t, err)
	}
	_, err := engine.TryMatch(ctx, "p1")
	require.NoError(t, err)

	res, err := engine.DeclineMatch(ctx, "p1", 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, res.Afk, 1)
	require.Len(t, res.Searching, 1)

	tiers, err := engine.GetSearchingTiers(ctx, "p2")
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	assert.Equal(t, "t2", tiers[0].DiscordID)

	rejected, err := engine.IsRejected(ctx, "p2", "p1")
	require.NoError(t, err)
	assert.True(t, rejected)

	// backdate the reject past its margin
	_, err = pool.Exec(ctx, "UPDATE player_reject SET rejected_at = rejected_at - interval '11 minutes'")
	require.NoError(t, err)

	purged, err := engine.PurgeExpiredRejects(ctx)
	require.NoError(t, err)
	assert.Equal(t, matchmaking.PurgeResult{Expired: 1, Removed: 1}, purged)
}

func TestPostgresRollback(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	s := NewStore(pool)

	err := s.InTx(ctx, func(q store.Queries) error {
		if _, err := q.UpsertPlayer(ctx, "p1"); err != nil {
			return err
		}
		_, err := q.GetLobby(ctx, 12345)
		return err
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	err = s.InTx(ctx, func(q store.Queries) error {
		_, err := q.GetPlayerByDiscordID(ctx, "p1")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
