package songbird

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/lmittmann/tint"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	columnAICacheFingerprint = "fingerprint"
	columnAICacheUsageCount  = "usage_count"
	columnAICacheLastUsedAt  = "last_used_at"
)

// AICache is a cached persona answer, keyed by a fingerprint of the
// normalized question. At most one row per fingerprint (upsert
// semantics); a newer completion for the same fingerprint overwrites
// the original response text.
//
//nolint:lll // struct tags can't be split
type AICache struct {
	ModelUintID

	// Fingerprint is a pure function of the normalized question text
	Fingerprint string `json:"fingerprint" gorm:"uniqueIndex;type:string"`

	// Question is the original (un-normalized) question, kept for
	// similarity scoring against later queries
	Question string `json:"question" gorm:"type:string"`

	Response string `json:"response" gorm:"type:string"`

	// Model that produced the response
	Model string `json:"model" gorm:"type:string"`

	// UsageCount is incremented on every hit, exact or fuzzy
	UsageCount int `json:"usage_count" gorm:"column:usage_count;default:1"`

	// LastUsedAt is bumped on every hit; the pruner evicts entries
	// idle past the configured TTL
	LastUsedAt int64 `json:"last_used_at" gorm:"column:last_used_at"`

	ModelUnixTime
}

func (c *AICache) LogValue() slog.Value {
	if c == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.String(columnAICacheFingerprint, c.Fingerprint),
		slog.String("model", c.Model),
		slog.Int(columnAICacheUsageCount, c.UsageCount),
	)
}

// normalizeQuestion lowercases, strips punctuation and trims whitespace.
func normalizeQuestion(question string) string {
	var sb strings.Builder
	sb.Grow(len(question))
	for _, r := range strings.ToLower(question) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}

// questionFingerprint hashes the normalized question to a fixed-length
// hex fingerprint. Only determinism and collision resistance matter
// here, not the specific algorithm.
func questionFingerprint(question string) string {
	sum := sha256.Sum256([]byte(normalizeQuestion(question)))
	return hex.EncodeToString(sum[:])
}

// tokenSetSimilarity computes token-set Jaccard similarity between two
// strings: |intersection| / |union| over whitespace-split lowercase
// tokens. Equal (trimmed, lowercased) strings score 1.
func tokenSetSimilarity(a string, b string) float64 {
	s1 := strings.ToLower(strings.TrimSpace(a))
	s2 := strings.ToLower(strings.TrimSpace(b))

	if s1 == s2 {
		return 1
	}

	words1 := map[string]struct{}{}
	for _, w := range strings.Fields(s1) {
		words1[w] = struct{}{}
	}
	words2 := map[string]struct{}{}
	for _, w := range strings.Fields(s2) {
		words2[w] = struct{}{}
	}
	if len(words1) == 0 && len(words2) == 0 {
		return 0
	}

	intersection := 0
	for w := range words1 {
		if _, ok := words2[w]; ok {
			intersection++
		}
	}
	union := len(words1) + len(words2) - intersection
	return float64(intersection) / float64(union)
}

// findCachedResponse looks up a previously cached answer for the
// question. Exact fingerprint matches win; otherwise the scan is
// bounded to the most-used entries and the best token-set similarity
// strictly above the threshold is taken. Hits are touched (usage count
// incremented, last-used bumped). Persistence errors degrade to a miss.
func (a *AI) findCachedResponse(ctx context.Context, question string) (*AICache, bool) {
	log, ok := ContextLogger(ctx)
	if log == nil || !ok {
		log = a.logger
	}

	fingerprint := questionFingerprint(question)

	var exact AICache
	err := a.db.WithContext(ctx).Where(
		"fingerprint = ?", fingerprint,
	).First(&exact).Error
	switch {
	case err == nil:
		a.touchCacheEntry(ctx, &exact)
		log.InfoContext(ctx, "ai cache exact hit", "entry", &exact)
		return &exact, true
	case errorIsNotFound(err):
		//
	default:
		log.WarnContext(ctx, "ai cache lookup failed, treating as miss", tint.Err(err))
		return nil, false
	}

	var candidates []AICache
	err = a.db.WithContext(ctx).Order(
		"usage_count desc",
	).Limit(a.config.CacheScanLimit).Find(&candidates).Error
	if err != nil {
		log.WarnContext(ctx, "ai cache scan failed, treating as miss", tint.Err(err))
		return nil, false
	}

	var best *AICache
	var bestScore float64
	for i := range candidates {
		score := tokenSetSimilarity(question, candidates[i].Question)
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}

	// strictly greater-than: a score exactly at the threshold is a miss
	if best != nil && bestScore > a.config.SimilarityThreshold {
		a.touchCacheEntry(ctx, best)
		log.InfoContext(
			ctx,
			"ai cache fuzzy hit",
			"entry", best,
			"score", bestScore,
		)
		return best, true
	}

	return nil, false
}

// touchCacheEntry increments the usage counter and bumps the last-used
// timestamp. Best-effort: failures are logged, never surfaced.
func (a *AI) touchCacheEntry(ctx context.Context, entry *AICache) {
	entry.UsageCount++
	entry.LastUsedAt = time.Now().UTC().UnixMilli()

	a.writeDB.Lock()
	defer a.writeDB.Unlock()
	err := a.db.WithContext(ctx).Model(entry).UpdateColumns(
		map[string]any{
			columnAICacheUsageCount: gorm.Expr("usage_count + 1"),
			columnAICacheLastUsedAt: entry.LastUsedAt,
		},
	).Error
	if err != nil {
		a.logger.WarnContext(ctx, "error touching ai cache entry", tint.Err(err))
	}
}

// cacheResponse upserts the answer by fingerprint. An existing row for
// the same fingerprint keeps its usage count (incremented) but gets the
// newer response, model and last-used time. Best-effort: a failed write
// never blocks the reply.
func (a *AI) cacheResponse(
	ctx context.Context,
	question string,
	response string,
	model string,
) {
	entry := AICache{
		Fingerprint: questionFingerprint(question),
		Question:    question,
		Response:    response,
		Model:       model,
		UsageCount:  1,
		LastUsedAt:  time.Now().UTC().UnixMilli(),
	}

	a.writeDB.Lock()
	defer a.writeDB.Unlock()
	err := a.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: columnAICacheFingerprint}},
			DoUpdates: clause.Assignments(
				map[string]any{
					"question":              entry.Question,
					"response":              entry.Response,
					"model":                 entry.Model,
					columnAICacheLastUsedAt: entry.LastUsedAt,
					columnAICacheUsageCount: gorm.Expr("usage_count + 1"),
				},
			),
		},
	).Create(&entry).Error
	if err != nil {
		a.logger.ErrorContext(ctx, "error caching ai response", tint.Err(err))
	}
}

// PruneCache deletes entries idle past the configured TTL. The rest of
// the cache layer tolerates rows vanishing at any time, so this can run
// concurrently with lookups.
func (a *AI) PruneCache(ctx context.Context) (int64, error) {
	if a.config.CacheIdleTTL <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-a.config.CacheIdleTTL).UTC().UnixMilli()

	a.writeDB.Lock()
	defer a.writeDB.Unlock()
	rv := a.db.WithContext(ctx).Unscoped().Where(
		"last_used_at < ?", cutoff,
	).Delete(&AICache{})
	if rv.Error != nil {
		return 0, rv.Error
	}
	if rv.RowsAffected > 0 {
		a.logger.InfoContext(
			ctx,
			"pruned idle ai cache entries",
			"count", rv.RowsAffected,
		)
	}
	return rv.RowsAffected, nil
}

// AICacheStats summarizes the cache for the status API.
type AICacheStats struct {
	Entries    int64 `json:"entries"`
	TotalHits  int64 `json:"total_hits"`
	OldestUsed int64 `json:"oldest_used,omitempty"`
}

// CacheStats returns aggregate cache statistics.
func (a *AI) CacheStats(ctx context.Context) (AICacheStats, error) {
	var stats AICacheStats
	if err := a.db.WithContext(ctx).Model(&AICache{}).Count(&stats.Entries).Error; err != nil {
		return stats, err
	}
	if stats.Entries == 0 {
		return stats, nil
	}
	row := a.db.WithContext(ctx).Model(&AICache{}).Select(
		"coalesce(sum(usage_count), 0) as total_hits, coalesce(min(last_used_at), 0) as oldest_used",
	).Row()
	err := row.Scan(&stats.TotalHits, &stats.OldestUsed)
	return stats, err
}

func errorIsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
