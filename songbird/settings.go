package songbird

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	columnGuildSettingsGuildID = "guild_id"

	// ErrInvalidXPRange is returned when a settings update would set an
	// inclusive XP range with min > max.
	ErrInvalidXPRange = errors.New("xp range min must not exceed max")
)

// LevelRoles is the milestone table: level number to role ID. Stored as
// a JSON object keyed by decimal level strings, so configurations
// exported from other bots load cleanly. Milestones may be sparse.
type LevelRoles map[int]string

// Scan implements the sql.Scanner interface. Entries with keys that
// don't parse as positive integers are skipped rather than failing the
// whole row.
func (r *LevelRoles) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*r = LevelRoles{}
		return nil
	default:
		return fmt.Errorf("unexpected type for LevelRoles: %T", value)
	}
	if len(data) == 0 {
		*r = LevelRoles{}
		return nil
	}

	raw := map[string]string{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	roles := make(LevelRoles, len(raw))
	for k, roleID := range raw {
		level, err := strconv.Atoi(k)
		if err != nil || level <= 0 || roleID == "" {
			slog.Default().Warn(
				"skipping malformed level role entry",
				"level", k,
				"role_id", roleID,
			)
			continue
		}
		roles[level] = roleID
	}
	*r = roles
	return nil
}

// Value implements the driver.Valuer interface.
func (r LevelRoles) Value() (driver.Value, error) {
	raw := make(map[string]string, len(r))
	for level, roleID := range r {
		raw[strconv.Itoa(level)] = roleID
	}
	data, err := json.Marshal(raw)
	return string(data), err
}

// GormDataType is used by GORM to determine the default data type for a field.
func (LevelRoles) GormDataType() string {
	return "string"
}

// Levels returns the configured milestone levels in ascending order.
func (r LevelRoles) Levels() []int {
	levels := make([]int, 0, len(r))
	for level := range r {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels
}

// StringSlice is a JSON-serialized string slice column.
type StringSlice []string

// Scan implements the sql.Scanner interface.
func (s *StringSlice) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*s = nil
		return nil
	default:
		return fmt.Errorf("unexpected type for StringSlice: %T", value)
	}
	if len(data) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(data, s)
}

// Value implements the driver.Valuer interface.
func (s StringSlice) Value() (driver.Value, error) {
	data, err := json.Marshal([]string(s))
	return string(data), err
}

// GormDataType is used by GORM to determine the default data type for a field.
func (StringSlice) GormDataType() string {
	return "string"
}

// GuildSettings holds per-guild configuration: welcome messages, XP
// ranges, the milestone table, booster colors and moderation roles.
// One row per guild, created on demand with defaults.
//
//nolint:lll // struct tags can't be split
type GuildSettings struct {
	ModelUintID

	GuildID string `json:"guild_id" gorm:"uniqueIndex;type:string"`

	// Welcome
	WelcomeEnabled   bool   `json:"welcome_enabled" gorm:"default:true"`
	WelcomeChannelID string `json:"welcome_channel_id" gorm:"type:string"`
	WelcomeMessage   string `json:"welcome_message" gorm:"type:string"`
	WelcomeImageURL  string `json:"welcome_image_url" gorm:"type:string"`
	RulesChannelID   string `json:"rules_channel_id" gorm:"type:string"`
	RolesChannelID   string `json:"roles_channel_id" gorm:"type:string"`
	IntroChannelID   string `json:"intro_channel_id" gorm:"type:string"`

	// XP ranges are inclusive [min, max] bounds for the uniform draw
	MessageXPMin    int   `json:"message_xp_min" gorm:"column:message_xp_min"`
	MessageXPMax    int   `json:"message_xp_max" gorm:"column:message_xp_max"`
	AttachmentXPMin int   `json:"attachment_xp_min" gorm:"column:attachment_xp_min"`
	AttachmentXPMax int   `json:"attachment_xp_max" gorm:"column:attachment_xp_max"`
	XPCooldownMS    int64 `json:"xp_cooldown_ms" gorm:"column:xp_cooldown_ms"`

	// LevelRoles is the milestone table, read-only input to the
	// leveling engine
	LevelRoles LevelRoles `json:"level_roles" gorm:"column:level_roles"`

	// Booster color picker
	BoosterColorRoles      StringSlice `json:"booster_color_roles" gorm:"column:booster_color_roles"`
	BoosterColorsChannelID string      `json:"booster_colors_channel_id" gorm:"type:string"`
	ServerBoosterRoleID    string      `json:"server_booster_role_id" gorm:"type:string"`

	// Moderation
	ModeratorRoleID string `json:"moderator_role_id" gorm:"type:string"`
	AdminRoleID     string `json:"admin_role_id" gorm:"type:string"`
	LogChannelID    string `json:"log_channel_id" gorm:"type:string"`

	ModelUnixTime
}

// NewGuildSettings returns settings for the guild populated from the
// process-wide XP defaults.
func NewGuildSettings(guildID string, xp *XPConfig) *GuildSettings {
	s := &GuildSettings{
		GuildID:        guildID,
		WelcomeEnabled: true,
		WelcomeMessage: defaultWelcomeMessage,
		LevelRoles:     LevelRoles{},
	}
	if xp != nil {
		s.MessageXPMin = xp.MessageXPMin
		s.MessageXPMax = xp.MessageXPMax
		s.AttachmentXPMin = xp.AttachmentXPMin
		s.AttachmentXPMax = xp.AttachmentXPMax
		s.XPCooldownMS = xp.Cooldown.Milliseconds()
	}
	return s
}

func (s *GuildSettings) LogValue() slog.Value {
	if s == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.String(columnGuildSettingsGuildID, s.GuildID),
		slog.Bool("welcome_enabled", s.WelcomeEnabled),
		slog.Int("level_roles", len(s.LevelRoles)),
		slog.Int("booster_color_roles", len(s.BoosterColorRoles)),
	)
}

// validateXPRanges checks the inclusive ranges at the settings-update
// boundary. The leveling engine itself tolerates degenerate ranges; bad
// input is rejected here instead.
func (s *GuildSettings) validateXPRanges() error {
	if s.MessageXPMin > s.MessageXPMax {
		return fmt.Errorf(
			"message xp %d-%d: %w",
			s.MessageXPMin, s.MessageXPMax, ErrInvalidXPRange,
		)
	}
	if s.AttachmentXPMin > s.AttachmentXPMax {
		return fmt.Errorf(
			"attachment xp %d-%d: %w",
			s.AttachmentXPMin, s.AttachmentXPMax, ErrInvalidXPRange,
		)
	}
	return nil
}

// GetGuildSettings returns settings for the guild, from cache when
// possible, creating a default row if none exists.
func (d *database) GetGuildSettings(
	ctx context.Context,
	guildID string,
) (*GuildSettings, error) {
	d.settingsMu.Lock()
	defer d.settingsMu.Unlock()

	if settings, ok := d.settingsCache[guildID]; ok {
		return settings, nil
	}

	var settings GuildSettings
	err := d.db.WithContext(ctx).Where(
		"guild_id = ?", guildID,
	).First(&settings).Error
	switch {
	case err == nil:
		d.settingsCache[guildID] = &settings
		return &settings, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		//
	default:
		return nil, err
	}

	created := NewGuildSettings(guildID, d.xpDefaults)
	if createErr := d.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: columnGuildSettingsGuildID}},
			DoNothing: true,
		},
	).Create(created).Error; createErr != nil {
		return nil, createErr
	}
	d.logger.InfoContext(ctx, "created default guild settings", "settings", created)
	d.settingsCache[guildID] = created
	return created, nil
}

// UpdateGuildSettings validates and persists the full settings row,
// then refreshes the cache entry.
func (d *database) UpdateGuildSettings(
	ctx context.Context,
	settings *GuildSettings,
) error {
	if err := settings.validateXPRanges(); err != nil {
		return err
	}
	d.Lock()
	defer d.Unlock()
	if err := d.db.WithContext(ctx).Save(settings).Error; err != nil {
		return err
	}
	d.settingsMu.Lock()
	d.settingsCache[settings.GuildID] = settings
	d.settingsMu.Unlock()
	return nil
}

// InvalidateGuildSettings drops the cached entry for the guild, or the
// entire cache when guildID is empty. Called from the settings notifier
// when another instance updates a row.
func (d *database) InvalidateGuildSettings(guildID string) {
	d.settingsMu.Lock()
	defer d.settingsMu.Unlock()
	if guildID == "" {
		d.settingsCache = map[string]*GuildSettings{}
		return
	}
	delete(d.settingsCache, guildID)
}

// isModerator reports whether the member can use moderation commands:
// either a discord-level permission, or a configured moderator/admin role.
func isModerator(member *discordgo.Member, settings *GuildSettings) bool {
	if member == nil {
		return false
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if member.Permissions&discordgo.PermissionModerateMembers != 0 {
		return true
	}
	if settings == nil {
		return false
	}
	return memberHasRole(member, settings.ModeratorRoleID) ||
		memberHasRole(member, settings.AdminRoleID)
}

// isAdmin reports whether the member can use administrative commands.
func isAdmin(member *discordgo.Member, settings *GuildSettings) bool {
	if member == nil {
		return false
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if settings == nil {
		return false
	}
	return memberHasRole(member, settings.AdminRoleID)
}

// isBooster reports whether the member holds the configured server
// booster role.
func isBooster(member *discordgo.Member, settings *GuildSettings) bool {
	if member == nil || settings == nil {
		return false
	}
	return memberHasRole(member, settings.ServerBoosterRoleID)
}
