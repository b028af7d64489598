package analysis_test

import (
	"context"
	"testing"
	"time"

	"AlphaPulse/internal/analysis"
	"AlphaPulse/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_NewRequestSupersedesOld(t *testing.T) {
	tr := analysis.NewTracker()
	ctx1, tok1 := tr.Begin(context.Background(), "chat-1")
	ctx2, tok2 := tr.Begin(context.Background(), "chat-1")

	require.NotEqual(t, tok1, tok2)
	assert.ErrorIs(t, ctx1.Err(), context.Canceled, "stale request is cancelled")
	assert.NoError(t, ctx2.Err())
	assert.Equal(t, tok2, tr.Latest("chat-1"))

	// Late arrival of the stale result is dropped.
	assert.False(t, tr.Finish("chat-1", tok1, &model.AnalysisResult{Symbol: "AAPL", Status: model.StatusFound}))
	_, ok := tr.Current("chat-1")
	assert.False(t, ok)

	assert.True(t, tr.Finish("chat-1", tok2, &model.AnalysisResult{Symbol: "2330.TW", Status: model.StatusFound}))
	sym, ok := tr.Current("chat-1")
	assert.True(t, ok)
	assert.Equal(t, "2330.TW", sym)
}

func TestTracker_FailedLookupClearsCurrent(t *testing.T) {
	tr := analysis.NewTracker()
	_, tok := tr.Begin(context.Background(), "s")
	require.True(t, tr.Finish("s", tok, &model.AnalysisResult{Symbol: "AAPL", Status: model.StatusFound}))

	_, tok = tr.Begin(context.Background(), "s")
	require.True(t, tr.Finish("s", tok, &model.AnalysisResult{Symbol: "ZZZZ999.TW", Status: model.StatusNotFound}))

	_, ok := tr.Current("s")
	assert.False(t, ok)
}

func TestTracker_SessionsAreIndependent(t *testing.T) {
	tr := analysis.NewTracker()
	ctxA, tokA := tr.Begin(context.Background(), "a")
	_, tokB := tr.Begin(context.Background(), "b")

	assert.NoError(t, ctxA.Err())
	assert.True(t, tr.Finish("a", tokA, &model.AnalysisResult{Symbol: "A", Status: model.StatusFound}))
	assert.True(t, tr.Finish("b", tokB, &model.AnalysisResult{Symbol: "B", Status: model.StatusFound}))

	a, _ := tr.Current("a")
	b, _ := tr.Current("b")
	assert.Equal(t, "A", a)
	assert.Equal(t, "B", b)
}

func TestTracker_FinishTwiceWithSameToken(t *testing.T) {
	tr := analysis.NewTracker()
	ctx, tok := tr.Begin(context.Background(), "s")
	assert.True(t, tr.Finish("s", tok, &model.AnalysisResult{Symbol: "A", Status: model.StatusFound}))
	assert.ErrorIs(t, ctx.Err(), context.Canceled, "context is released on finish")
	assert.True(t, tr.Finish("s", tok, &model.AnalysisResult{Symbol: "A", Status: model.StatusFound}))
}

func TestTracker_UnknownSession(t *testing.T) {
	tr := analysis.NewTracker()
	assert.False(t, tr.Finish("nope", "tok", &model.AnalysisResult{}))
	assert.Empty(t, tr.Latest("nope"))
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTracker_IdleSessionsExpire(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
	tr := analysis.NewTracker(analysis.WithSessionTTL(time.Minute), analysis.WithTrackerClock(clock.Now))

	_, tok := tr.Begin(context.Background(), "idle")
	require.True(t, tr.Finish("idle", tok, &model.AnalysisResult{Symbol: "AAPL", Status: model.StatusFound}))

	clock.Advance(2 * time.Minute)
	_, ok := tr.Current("idle")
	assert.False(t, ok, "expired session has no current symbol")
	assert.Empty(t, tr.Latest("idle"))

	// A new session triggers the sweep.
	tr.Begin(context.Background(), "fresh")
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_InFlightSessionIsNotEvicted(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
	tr := analysis.NewTracker(analysis.WithSessionTTL(time.Minute), analysis.WithTrackerClock(clock.Now))

	ctx, tok := tr.Begin(context.Background(), "slow")
	clock.Advance(time.Hour)
	tr.Begin(context.Background(), "other")

	assert.NoError(t, ctx.Err())
	assert.Equal(t, tok, tr.Latest("slow"))
	assert.True(t, tr.Finish("slow", tok, &model.AnalysisResult{Symbol: "AAPL", Status: model.StatusFound}))
}

func TestTracker_MaxSessionsEvictsLeastRecent(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
	tr := analysis.NewTracker(analysis.WithMaxSessions(2), analysis.WithTrackerClock(clock.Now))

	for _, key := range []string{"a", "b", "c"} {
		_, tok := tr.Begin(context.Background(), key)
		require.True(t, tr.Finish(key, tok, &model.AnalysisResult{Symbol: key, Status: model.StatusFound}))
		clock.Advance(time.Second)
	}

	assert.Equal(t, 2, tr.Len())
	_, ok := tr.Current("a")
	assert.False(t, ok, "oldest session was evicted")
	c, ok := tr.Current("c")
	assert.True(t, ok)
	assert.Equal(t, "c", c)
}
