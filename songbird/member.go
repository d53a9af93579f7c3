package songbird

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

var (
	columnMemberGuildID            = "guild_id"
	columnMemberUserID             = "user_id"
	columnMemberTotalXP            = "total_xp"
	columnMemberLevel              = "level"
	columnMemberXP                 = "xp"
	columnMemberLastXPGain         = "last_xp_gain"
	columnMemberLastDailyGame      = "last_daily_game"
	columnMemberDailyGamesPlayed   = "daily_games_played"
	columnMemberLastAIInteraction  = "last_ai_interaction"
	columnMemberAIInteractionCount = "ai_interaction_count"
)

// Member is the per-user, per-guild experience record.
//
// TotalXP is monotonically non-decreasing; Level is derived from it via
// [LevelFromTotalXP] and cached here for display and leaderboard sorting.
// [AwardXP] is the only legitimate writer of Level.
//
//nolint:lll // struct tags can't be split
type Member struct {
	ModelUintID

	GuildID string `json:"guild_id" gorm:"uniqueIndex:idx_member_guild_user;type:string"`
	UserID  string `json:"user_id" gorm:"uniqueIndex:idx_member_guild_user;type:string"`

	// Username as last seen, for leaderboard display without a discord
	// round-trip. May drift until the member next gains XP.
	Username string `json:"username" gorm:"type:string"`

	// TotalXP is cumulative lifetime experience. Never decreases.
	TotalXP int `json:"total_xp" gorm:"column:total_xp;default:0"`

	// Level derived from TotalXP, cached for display
	Level int `json:"level" gorm:"default:0"`

	// XP is experience within the current level, cached for display
	XP int `json:"xp" gorm:"default:0"`

	// LastXPGain is the unix-milli timestamp of the most recent award
	LastXPGain int64 `json:"last_xp_gain" gorm:"column:last_xp_gain"`

	LastDailyGame    int64 `json:"last_daily_game" gorm:"column:last_daily_game"`
	DailyGamesPlayed int   `json:"daily_games_played" gorm:"column:daily_games_played;default:0"`

	LastAIInteraction  int64 `json:"last_ai_interaction" gorm:"column:last_ai_interaction"`
	AIInteractionCount int   `json:"ai_interaction_count" gorm:"column:ai_interaction_count;default:0"`

	ModelUnixTime
}

func (m *Member) String() string {
	return fmt.Sprintf("%s [guild:%s]", m.UserID, m.GuildID)
}

func (m *Member) LogValue() slog.Value {
	if m == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.String(columnMemberGuildID, m.GuildID),
		slog.String(columnMemberUserID, m.UserID),
		slog.String("username", m.Username),
		slog.Int(columnMemberTotalXP, m.TotalXP),
		slog.Int(columnMemberLevel, m.Level),
	)
}

// xpUpdates returns the column map persisted after an XP award.
func (m *Member) xpUpdates() map[string]any {
	return map[string]any{
		columnMemberTotalXP:    m.TotalXP,
		columnMemberLevel:      m.Level,
		columnMemberXP:         m.XP,
		columnMemberLastXPGain: m.LastXPGain,
	}
}

// Leaderboard returns members of the guild ordered by lifetime
// experience, descending, for the given page.
func Leaderboard(
	ctx context.Context,
	db *gorm.DB,
	guildID string,
	limit int,
	offset int,
) ([]Member, error) {
	var members []Member
	err := db.WithContext(ctx).Where(
		"guild_id = ?", guildID,
	).Order("total_xp desc").Limit(limit).Offset(offset).Find(&members).Error
	return members, err
}

// MemberCount returns the number of experience records in the guild.
func MemberCount(ctx context.Context, db *gorm.DB, guildID string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&Member{}).Where(
		"guild_id = ?", guildID,
	).Count(&count).Error
	return count, err
}

// Rank returns the member's 1-based position in the guild leaderboard.
func (m *Member) Rank(ctx context.Context, db *gorm.DB) (int64, error) {
	var ahead int64
	err := db.WithContext(ctx).Model(&Member{}).Where(
		"guild_id = ? AND total_xp > ?", m.GuildID, m.TotalXP,
	).Count(&ahead).Error
	return ahead + 1, err
}

// DailyAvailable reports whether the daily-game cooldown has elapsed,
// and if not, how long remains.
func (m *Member) DailyAvailable(cooldown time.Duration) (bool, time.Duration) {
	if m.LastDailyGame == 0 {
		return true, 0
	}
	elapsed := time.Since(time.UnixMilli(m.LastDailyGame))
	if elapsed >= cooldown {
		return true, 0
	}
	return false, cooldown - elapsed
}
