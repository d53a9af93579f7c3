package songbird

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"gorm.io/gorm/clause"
)

const (
	columnWarningGuildID = "guild_id"
	columnWarningUserID  = "user_id"

	wordListFetchTimeout = 15 * time.Second
)

// Warning records a moderator warning against a member.
//
//nolint:lll // struct tags can't be split
type Warning struct {
	ModelUintID
	GuildID     string `json:"guild_id" gorm:"index:idx_warning_guild_user;type:string"`
	UserID      string `json:"user_id" gorm:"index:idx_warning_guild_user;type:string"`
	ModeratorID string `json:"moderator_id" gorm:"type:string"`
	Reason      string `json:"reason" gorm:"type:string"`
	ModelUnixTime
}

func (w *Warning) LogValue() slog.Value {
	if w == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.Uint64("id", uint64(w.ID)),
		slog.String(columnWarningGuildID, w.GuildID),
		slog.String(columnWarningUserID, w.UserID),
		slog.String("moderator_id", w.ModeratorID),
	)
}

// BannedWord is a per-guild addition to the banned-word list.
//
//nolint:lll // struct tags can't be split
type BannedWord struct {
	ModelUintID
	GuildID string `json:"guild_id" gorm:"uniqueIndex:idx_banned_word_guild;type:string"`
	Word    string `json:"word" gorm:"uniqueIndex:idx_banned_word_guild;type:string"`
	AddedBy string `json:"added_by" gorm:"type:string"`
	ModelUnixTime
}

// ExcludedBannedWord is a per-guild exclusion: a word from the seeded
// global list this guild does not want filtered.
//
//nolint:lll // struct tags can't be split
type ExcludedBannedWord struct {
	ModelUintID
	GuildID string `json:"guild_id" gorm:"uniqueIndex:idx_excluded_word_guild;type:string"`
	Word    string `json:"word" gorm:"uniqueIndex:idx_excluded_word_guild;type:string"`
	ModelUnixTime
}

// Moderation owns the banned-word filter and warning persistence. The
// compiled per-guild matcher is cached and invalidated whenever the
// guild's word list mutates.
type Moderation struct {
	logger     *slog.Logger
	db         DBI
	config     *ModerationConfig
	httpClient *http.Client

	// seedWords is the global list fetched at startup, lowercased
	seedMu    sync.RWMutex
	seedWords []string

	// matchers caches compiled per-guild patterns
	matcherMu sync.Mutex
	matchers  map[string]*regexp.Regexp
}

func newModeration(b *Songbird) *Moderation {
	m := &Moderation{
		db:         b.writeDB,
		config:     b.config.Moderation,
		httpClient: &http.Client{Timeout: wordListFetchTimeout},
		matchers:   map[string]*regexp.Regexp{},
	}
	m.logger = slog.New(
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     b.config.LogLevel,
				AddSource: true,
			},
		),
	).With(loggerNameKey, "moderation")
	return m
}

// FetchWordList seeds the global banned-word list from the configured
// URL, one word per line. Best-effort: any failure leaves the seed
// list empty and the filter running on guild additions only.
func (m *Moderation) FetchWordList(ctx context.Context) {
	if !m.config.FetchWordList || m.config.WordListURL == "" {
		return
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, m.config.WordListURL, nil,
	)
	if err != nil {
		m.logger.WarnContext(ctx, "error building word list request", tint.Err(err))
		return
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.WarnContext(ctx, "error fetching word list", tint.Err(err))
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		m.logger.WarnContext(
			ctx,
			"unexpected word list response",
			"status", resp.StatusCode,
		)
		return
	}

	var words []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word != "" {
			words = append(words, word)
		}
	}
	if err = scanner.Err(); err != nil {
		m.logger.WarnContext(ctx, "error reading word list", tint.Err(err))
		return
	}

	m.seedMu.Lock()
	m.seedWords = words
	m.seedMu.Unlock()

	m.invalidateAllMatchers()
	m.logger.InfoContext(ctx, "seeded banned word list", "count", len(words))
}

// guildWords returns the effective word set for a guild: seed list plus
// guild additions, minus guild exclusions, lowercased and deduplicated.
func (m *Moderation) guildWords(ctx context.Context, guildID string) ([]string, error) {
	var added []BannedWord
	err := m.db.DB().WithContext(ctx).Where(
		"guild_id = ?", guildID,
	).Find(&added).Error
	if err != nil {
		return nil, fmt.Errorf("error loading banned words: %w", err)
	}

	var excluded []ExcludedBannedWord
	err = m.db.DB().WithContext(ctx).Where(
		"guild_id = ?", guildID,
	).Find(&excluded).Error
	if err != nil {
		return nil, fmt.Errorf("error loading excluded words: %w", err)
	}

	skip := map[string]struct{}{}
	for _, e := range excluded {
		skip[strings.ToLower(e.Word)] = struct{}{}
	}

	seen := map[string]struct{}{}
	var words []string

	m.seedMu.RLock()
	seed := m.seedWords
	m.seedMu.RUnlock()

	for _, w := range seed {
		if _, excl := skip[w]; excl {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	for _, bw := range added {
		w := strings.ToLower(bw.Word)
		if _, excl := skip[w]; excl {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return words, nil
}

// guildMatcher returns the compiled whole-word, case-insensitive
// matcher for a guild, or nil when the guild's effective list is empty.
func (m *Moderation) guildMatcher(ctx context.Context, guildID string) (*regexp.Regexp, error) {
	m.matcherMu.Lock()
	defer m.matcherMu.Unlock()

	if matcher, ok := m.matchers[guildID]; ok {
		return matcher, nil
	}

	words, err := m.guildWords(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		m.matchers[guildID] = nil
		return nil, nil
	}

	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	matcher, err := regexp.Compile(
		`(?i)\b(` + strings.Join(quoted, "|") + `)\b`,
	)
	if err != nil {
		return nil, fmt.Errorf("error compiling word matcher: %w", err)
	}
	m.matchers[guildID] = matcher
	return matcher, nil
}

// ContainsBannedWord reports whether content matches the guild's
// effective banned-word list, and which word matched. Matcher errors
// degrade to no-match.
func (m *Moderation) ContainsBannedWord(
	ctx context.Context,
	guildID string,
	content string,
) (bool, string) {
	matcher, err := m.guildMatcher(ctx, guildID)
	if err != nil {
		m.logger.WarnContext(
			ctx,
			"error building word matcher, skipping filter",
			"guild_id", guildID,
			tint.Err(err),
		)
		return false, ""
	}
	if matcher == nil {
		return false, ""
	}
	match := matcher.FindString(content)
	if match == "" {
		return false, ""
	}
	return true, strings.ToLower(match)
}

// InvalidateMatcher drops the cached matcher for a guild. Called after
// any word-list mutation.
func (m *Moderation) InvalidateMatcher(guildID string) {
	m.matcherMu.Lock()
	defer m.matcherMu.Unlock()
	delete(m.matchers, guildID)
}

func (m *Moderation) invalidateAllMatchers() {
	m.matcherMu.Lock()
	defer m.matcherMu.Unlock()
	m.matchers = map[string]*regexp.Regexp{}
}

// AddBannedWord records a guild-specific banned word. Duplicate adds
// are no-ops.
func (m *Moderation) AddBannedWord(
	ctx context.Context,
	guildID string,
	word string,
	addedBy string,
) error {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return fmt.Errorf("word must not be empty")
	}
	bw := BannedWord{GuildID: guildID, Word: word, AddedBy: addedBy}

	m.db.Lock()
	err := m.db.DB().WithContext(ctx).Clauses(
		clause.OnConflict{DoNothing: true},
	).Create(&bw).Error
	m.db.Unlock()
	if err != nil {
		return fmt.Errorf("error adding banned word: %w", err)
	}
	m.InvalidateMatcher(guildID)
	return nil
}

// RemoveBannedWord deletes a guild-specific banned word.
func (m *Moderation) RemoveBannedWord(
	ctx context.Context,
	guildID string,
	word string,
) error {
	word = strings.ToLower(strings.TrimSpace(word))

	m.db.Lock()
	err := m.db.DB().WithContext(ctx).Where(
		"guild_id = ? AND word = ?", guildID, word,
	).Delete(&BannedWord{}).Error
	m.db.Unlock()
	if err != nil {
		return fmt.Errorf("error removing banned word: %w", err)
	}
	m.InvalidateMatcher(guildID)
	return nil
}

// ExcludeWord excludes a seeded word from a guild's filter.
func (m *Moderation) ExcludeWord(
	ctx context.Context,
	guildID string,
	word string,
) error {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return fmt.Errorf("word must not be empty")
	}
	excl := ExcludedBannedWord{GuildID: guildID, Word: word}

	m.db.Lock()
	err := m.db.DB().WithContext(ctx).Clauses(
		clause.OnConflict{DoNothing: true},
	).Create(&excl).Error
	m.db.Unlock()
	if err != nil {
		return fmt.Errorf("error excluding word: %w", err)
	}
	m.InvalidateMatcher(guildID)
	return nil
}

// IncludeWord removes a guild's exclusion, restoring the seeded word.
func (m *Moderation) IncludeWord(
	ctx context.Context,
	guildID string,
	word string,
) error {
	word = strings.ToLower(strings.TrimSpace(word))

	m.db.Lock()
	err := m.db.DB().WithContext(ctx).Where(
		"guild_id = ? AND word = ?", guildID, word,
	).Delete(&ExcludedBannedWord{}).Error
	m.db.Unlock()
	if err != nil {
		return fmt.Errorf("error including word: %w", err)
	}
	m.InvalidateMatcher(guildID)
	return nil
}

// ListBannedWords returns the guild's effective banned-word list.
func (m *Moderation) ListBannedWords(
	ctx context.Context,
	guildID string,
) ([]string, error) {
	return m.guildWords(ctx, guildID)
}

// AddWarning records a warning and returns the member's updated total.
func (m *Moderation) AddWarning(
	ctx context.Context,
	guildID string,
	userID string,
	moderatorID string,
	reason string,
) (*Warning, int64, error) {
	warning := &Warning{
		GuildID:     guildID,
		UserID:      userID,
		ModeratorID: moderatorID,
		Reason:      reason,
	}
	if _, err := m.db.Create(ctx, warning); err != nil {
		return nil, 0, fmt.Errorf("error recording warning: %w", err)
	}
	count, err := m.WarningCount(ctx, guildID, userID)
	if err != nil {
		return warning, 0, err
	}
	return warning, count, nil
}

// RemoveWarning deletes a warning by ID, scoped to the guild.
func (m *Moderation) RemoveWarning(
	ctx context.Context,
	guildID string,
	warningID uint,
) error {
	var warning Warning
	err := m.db.DB().WithContext(ctx).Where(
		"guild_id = ? AND id = ?", guildID, warningID,
	).First(&warning).Error
	if err != nil {
		return fmt.Errorf("error finding warning: %w", err)
	}
	if _, err = m.db.Delete(&warning); err != nil {
		return fmt.Errorf("error deleting warning: %w", err)
	}
	return nil
}

// Warnings returns a member's warnings, newest first.
func (m *Moderation) Warnings(
	ctx context.Context,
	guildID string,
	userID string,
) ([]Warning, error) {
	var warnings []Warning
	err := m.db.DB().WithContext(ctx).Where(
		"guild_id = ? AND user_id = ?", guildID, userID,
	).Order("created_at desc").Find(&warnings).Error
	if err != nil {
		return nil, fmt.Errorf("error loading warnings: %w", err)
	}
	return warnings, nil
}

// WarningCount returns a member's total warning count.
func (m *Moderation) WarningCount(
	ctx context.Context,
	guildID string,
	userID string,
) (int64, error) {
	var count int64
	err := m.db.DB().WithContext(ctx).Model(&Warning{}).Where(
		"guild_id = ? AND user_id = ?", guildID, userID,
	).Count(&count).Error
	return count, err
}
