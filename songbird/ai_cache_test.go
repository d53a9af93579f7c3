package songbird

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// newTestAI returns an AI backed by a throwaway sqlite database, with
// no client set. Tests that exercise completions assign a scripted
// AIClient themselves.
func newTestAI(t testing.TB) *AI {
	t.Helper()
	db := setupTestDB(t)
	cfg := DefaultConfig().AI
	return &AI{
		config:         cfg,
		logger:         slog.Default().With("test_name", t.Name()),
		requestLimiter: rate.NewLimiter(rate.Inf, 1),
		db:             db,
		writeDB:        newTestWriteDB(t, db),
	}
}

func TestNormalizeQuestion(t *testing.T) {
	t.Parallel()

	assert.Equal(
		t,
		"whats your favorite song",
		normalizeQuestion("  What's your favorite song?!  "),
	)
	assert.Equal(t, "hello_world 42", normalizeQuestion("Hello_World, 42."))
	assert.Equal(t, "", normalizeQuestion("?!..."))
}

func TestQuestionFingerprint(t *testing.T) {
	t.Parallel()

	// punctuation and case don't change the fingerprint
	assert.Equal(
		t,
		questionFingerprint("What's your favorite song?"),
		questionFingerprint("whats your FAVORITE song"),
	)
	assert.NotEqual(
		t,
		questionFingerprint("what's your favorite song"),
		questionFingerprint("what's your favorite album"),
	)
	assert.Len(t, questionFingerprint("anything"), 64)
}

func TestTokenSetSimilarity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, float64(1), tokenSetSimilarity("hello world", "  Hello World "))
	assert.Equal(t, float64(0), tokenSetSimilarity("", ""))
	assert.Equal(t, float64(0), tokenSetSimilarity("hello", "goodbye"))

	// 3 shared tokens of 4 total distinct
	score := tokenSetSimilarity("do you like music", "you like music")
	assert.InDelta(t, 0.75, score, 0.0001)

	// word order is irrelevant
	assert.Equal(
		t,
		float64(1),
		tokenSetSimilarity("music like you do", "do you like music"),
	)
}

func TestFindCachedResponseExactHit(t *testing.T) {
	t.Parallel()

	a := newTestAI(t)
	ctx := context.Background()

	a.cacheResponse(ctx, "What's your favorite song?", "Oh, easy - Pink Moon.", "model-a")

	// exact match modulo case and punctuation
	entry, hit := a.findCachedResponse(ctx, "whats your favorite SONG")
	require.True(t, hit)
	assert.Equal(t, "Oh, easy - Pink Moon.", entry.Response)
	assert.Equal(t, "model-a", entry.Model)

	// the hit bumps the stored usage count
	var stored AICache
	require.NoError(
		t,
		a.db.Where("fingerprint = ?", entry.Fingerprint).First(&stored).Error,
	)
	assert.Equal(t, 2, stored.UsageCount)
	assert.NotZero(t, stored.LastUsedAt)
}

func TestFindCachedResponseFuzzyHit(t *testing.T) {
	t.Parallel()

	a := newTestAI(t)
	ctx := context.Background()

	a.cacheResponse(
		ctx,
		"what is your favorite song to play live",
		"Anything off the first record.",
		"model-a",
	)

	// 7 of 8 distinct tokens shared: 0.875 > 0.8
	entry, hit := a.findCachedResponse(
		ctx, "what is your favorite song to play",
	)
	require.True(t, hit)
	assert.Equal(t, "Anything off the first record.", entry.Response)
}

func TestFindCachedResponseMissAtThreshold(t *testing.T) {
	t.Parallel()

	a := newTestAI(t)
	ctx := context.Background()

	a.cacheResponse(ctx, "a b c d e", "cached", "model-a")

	// 4 of 5 distinct tokens shared scores exactly 0.8, which is a miss:
	// the threshold comparison is strictly greater-than
	require.InDelta(t, 0.8, tokenSetSimilarity("a b c d", "a b c d e"), 0.0001)

	_, hit := a.findCachedResponse(ctx, "a b c d")
	assert.False(t, hit)

	_, hit = a.findCachedResponse(ctx, "totally unrelated words here")
	assert.False(t, hit)
}

func TestCacheResponseUpsert(t *testing.T) {
	t.Parallel()

	a := newTestAI(t)
	ctx := context.Background()

	a.cacheResponse(ctx, "same question", "first answer", "model-a")
	a.cacheResponse(ctx, "same question", "second answer", "model-b")

	var entries []AICache
	require.NoError(t, a.db.Find(&entries).Error)
	require.Len(t, entries, 1)

	// the newer completion wins, but the usage count accumulates
	assert.Equal(t, "second answer", entries[0].Response)
	assert.Equal(t, "model-b", entries[0].Model)
	assert.Equal(t, 2, entries[0].UsageCount)
}

func TestPruneCache(t *testing.T) {
	t.Parallel()

	a := newTestAI(t)
	ctx := context.Background()

	a.cacheResponse(ctx, "fresh question", "fresh", "model-a")
	a.cacheResponse(ctx, "stale question", "stale", "model-a")

	staleTimestamp := time.Now().Add(-2 * a.config.CacheIdleTTL).UTC().UnixMilli()
	require.NoError(
		t,
		a.db.Model(&AICache{}).Where(
			"question = ?", "stale question",
		).UpdateColumn("last_used_at", staleTimestamp).Error,
	)

	pruned, err := a.PruneCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	var remaining []AICache
	require.NoError(t, a.db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "fresh question", remaining[0].Question)
}

func TestPruneCacheDisabled(t *testing.T) {
	t.Parallel()

	a := newTestAI(t)
	a.config = &AIConfig{CacheIdleTTL: 0}

	pruned, err := a.PruneCache(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestCacheStats(t *testing.T) {
	t.Parallel()

	a := newTestAI(t)
	ctx := context.Background()

	stats, err := a.CacheStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)

	a.cacheResponse(ctx, "question one", "answer one", "model-a")
	a.cacheResponse(ctx, "question two", "answer two", "model-a")

	// exact hit on question one increments its usage count
	_, hit := a.findCachedResponse(ctx, "question one")
	require.True(t, hit)

	stats, err = a.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Entries)
	assert.Equal(t, int64(3), stats.TotalHits)
	assert.NotZero(t, stats.OldestUsed)
}
