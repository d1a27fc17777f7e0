package matchmaking

import (
	"testing"
	"time"

	"github.com/sergioBarril/smashbotjs-sub001/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordReject(t *testing.T) {
	f := newFixture(t)
	f.search("p1", "t1")
	f.search("p2", "t1")

	reject, err := f.engine.RecordReject(f.ctx, "p1", "p2", 0)
	require.NoError(t, err)
	assert.Equal(t, 30, reject.TimeMargin, "zero margin falls back to the default")

	reject, err = f.engine.RecordReject(f.ctx, "p1", "p2", 20*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, reject.TimeMargin, "margins round up to a whole minute")

	reject, err = f.engine.RecordReject(f.ctx, "p1", "p2", 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, reject.TimeMargin, "a partial minute is not truncated away")

	reject, err = f.engine.RecordReject(f.ctx, "p1", "p2", 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, reject.TimeMargin)

	_, err = f.engine.RecordReject(f.ctx, "p1", "ghost", time.Minute)
	assert.True(t, IsNotFound(err, EntityPlayer), "got %v", err)
}

func TestIsRejectedEitherDirection(t *testing.T) {
	f := newFixture(t)
	f.search("p1", "t1")
	f.search("p2", "t1")
	f.search("p3", "t1")

	_, err := f.engine.RecordReject(f.ctx, "p1", "p2", 5*time.Minute)
	require.NoError(t, err)

	for _, pair := range [][2]string{{"p1", "p2"}, {"p2", "p1"}} {
		blocked, err := f.engine.IsRejected(f.ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, blocked, "%s vs %s", pair[0], pair[1])
	}
	blocked, err := f.engine.IsRejected(f.ctx, "p1", "p3")
	require.NoError(t, err)
	assert.False(t, blocked)

	f.clock.Advance(5 * time.Minute)
	blocked, err = f.engine.IsRejected(f.ctx, "p2", "p1")
	require.NoError(t, err)
	assert.False(t, blocked, "the cool-down ends exactly at its margin")
}

func TestPurgeExpiredRejects(t *testing.T) {
	f := newFixture(t)
	for _, p := range []string{"p1", "p2", "p3"} {
		f.search(p, "t1")
	}
	_, err := f.engine.RecordReject(f.ctx, "p1", "p2", 5*time.Minute)
	require.NoError(t, err)
	_, err = f.engine.RecordReject(f.ctx, "p3", "p1", time.Hour)
	require.NoError(t, err)

	res, err := f.engine.PurgeExpiredRejects(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, PurgeResult{}, res)
	assert.Empty(t, f.notes.ofType(events.RejectsPurged))

	f.clock.Advance(10 * time.Minute)
	res, err = f.engine.PurgeExpiredRejects(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, PurgeResult{Expired: 1, Removed: 1}, res)

	purged := f.notes.ofType(events.RejectsPurged)
	require.Len(t, purged, 1)
	assert.Equal(t, 1, purged[0].Count)

	blocked, err := f.engine.IsRejected(f.ctx, "p1", "p3")
	require.NoError(t, err)
	assert.True(t, blocked, "a reject with a longer margin survives the sweep")
}
