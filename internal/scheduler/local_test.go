package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sergioBarril/smashbotjs-sub001/internal/matchmaking"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	ticks  atomic.Int32
	sweeps atomic.Int32

	mu     sync.Mutex
	checks []matchmaking.TimeoutCheck
	ran    chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{ran: make(chan struct{}, 8)}
}

func (h *recordingHandler) SearchTick(context.Context) (matchmaking.TickResult, error) {
	h.ticks.Add(1)
	return matchmaking.TickResult{}, nil
}

func (h *recordingHandler) PurgeExpiredRejects(context.Context) (matchmaking.PurgeResult, error) {
	h.sweeps.Add(1)
	return matchmaking.PurgeResult{}, nil
}

func (h *recordingHandler) RunTimeoutCheck(_ context.Context, check matchmaking.TimeoutCheck) error {
	h.mu.Lock()
	h.checks = append(h.checks, check)
	h.mu.Unlock()
	h.ran <- struct{}{}
	return nil
}

func TestLocalRequiresHandler(t *testing.T) {
	logger, _ := test.NewNullLogger()
	l := NewLocal(Intervals{}, logger)
	assert.ErrorIs(t, l.Start(context.Background()), errUnbound)
	assert.ErrorIs(t, l.ScheduleTimeoutCheck(context.Background(), matchmaking.TimeoutCheck{}, time.Now()), errUnbound)
}

func TestLocalRunsPeriodicJobs(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := newRecordingHandler()
	l := NewLocal(Intervals{SearchTick: 10 * time.Millisecond, RejectSweep: time.Hour}, logger)
	l.Bind(h)
	require.NoError(t, l.Start(context.Background()))

	assert.Eventually(t, func() bool { return h.ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, l.Stop(context.Background()))
	assert.Equal(t, int32(1), h.sweeps.Load(), "jobs run once on start")

	after := h.ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, h.ticks.Load(), "no tick after Stop")
}

func TestLocalTimeoutCheck(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := newRecordingHandler()
	l := NewLocal(Intervals{}, logger)
	l.Bind(h)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop(context.Background()) })

	stamp := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	check := matchmaking.TimeoutCheck{PlayerDiscordID: "p1", LobbyID: 7, ExpectedAcceptedAt: &stamp}
	require.NoError(t, l.ScheduleTimeoutCheck(context.Background(), check, time.Now().Add(20*time.Millisecond)))

	select {
	case <-h.ran:
	case <-time.After(time.Second):
		t.Fatal("timeout check never ran")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.checks, 1)
	assert.Equal(t, check, h.checks[0])
}

func TestLocalStopCancelsPendingChecks(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := newRecordingHandler()
	l := NewLocal(Intervals{}, logger)
	l.Bind(h)
	require.NoError(t, l.Start(context.Background()))

	require.NoError(t, l.ScheduleTimeoutCheck(context.Background(), matchmaking.TimeoutCheck{PlayerDiscordID: "p1"}, time.Now().Add(50*time.Millisecond)))
	require.NoError(t, l.Stop(context.Background()))

	select {
	case <-h.ran:
		t.Fatal("a check ran after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}
