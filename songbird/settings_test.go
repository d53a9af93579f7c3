package songbird

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelRolesScan(t *testing.T) {
	t.Parallel()

	var roles LevelRoles
	err := roles.Scan(`{"5": "role-5", "10": "role-10"}`)
	require.NoError(t, err)
	assert.Equal(t, LevelRoles{5: "role-5", 10: "role-10"}, roles)
	assert.Equal(t, []int{5, 10}, roles.Levels())
}

func TestLevelRolesScanSkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	var roles LevelRoles
	err := roles.Scan(
		`{"5": "role-5", "banana": "role-x", "-3": "role-y", "0": "role-z", "7": ""}`,
	)
	require.NoError(t, err)

	// only the well-formed positive-level entry survives
	assert.Equal(t, LevelRoles{5: "role-5"}, roles)
}

func TestLevelRolesScanNil(t *testing.T) {
	t.Parallel()

	var roles LevelRoles
	require.NoError(t, roles.Scan(nil))
	assert.Empty(t, roles)

	require.NoError(t, roles.Scan([]byte{}))
	assert.Empty(t, roles)
}

func TestLevelRolesValueRoundTrip(t *testing.T) {
	t.Parallel()

	original := LevelRoles{5: "role-5", 25: "role-25"}
	value, err := original.Value()
	require.NoError(t, err)

	var decoded LevelRoles
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, original, decoded)
}

func TestStringSliceRoundTrip(t *testing.T) {
	t.Parallel()

	original := StringSlice{"role-a", "role-b"}
	value, err := original.Value()
	require.NoError(t, err)

	var decoded StringSlice
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, original, decoded)

	var empty StringSlice
	require.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)
}

func TestValidateXPRanges(t *testing.T) {
	t.Parallel()

	settings := NewGuildSettings("guild-1", DefaultConfig().XP)
	assert.NoError(t, settings.validateXPRanges())

	settings.MessageXPMin = 30
	settings.MessageXPMax = 20
	assert.ErrorIs(t, settings.validateXPRanges(), ErrInvalidXPRange)

	settings.MessageXPMin = 10
	settings.AttachmentXPMin = 50
	settings.AttachmentXPMax = 40
	assert.ErrorIs(t, settings.validateXPRanges(), ErrInvalidXPRange)
}

func TestNewGuildSettingsUsesXPDefaults(t *testing.T) {
	t.Parallel()

	xp := DefaultConfig().XP
	settings := NewGuildSettings("guild-1", xp)

	assert.Equal(t, "guild-1", settings.GuildID)
	assert.True(t, settings.WelcomeEnabled)
	assert.Equal(t, defaultWelcomeMessage, settings.WelcomeMessage)
	assert.Equal(t, xp.MessageXPMin, settings.MessageXPMin)
	assert.Equal(t, xp.MessageXPMax, settings.MessageXPMax)
	assert.Equal(t, xp.AttachmentXPMin, settings.AttachmentXPMin)
	assert.Equal(t, xp.AttachmentXPMax, settings.AttachmentXPMax)
	assert.Equal(t, xp.Cooldown.Milliseconds(), settings.XPCooldownMS)
	assert.NotNil(t, settings.LevelRoles)
}

func TestIsModerator(t *testing.T) {
	t.Parallel()

	settings := &GuildSettings{
		GuildID:         "guild-1",
		ModeratorRoleID: "mod-role",
		AdminRoleID:     "admin-role",
	}

	assert.False(t, isModerator(nil, settings))
	assert.False(
		t,
		isModerator(&discordgo.Member{Roles: []string{"other"}}, settings),
	)

	assert.True(
		t,
		isModerator(
			&discordgo.Member{
				Permissions: discordgo.PermissionAdministrator,
			},
			settings,
		),
	)
	assert.True(
		t,
		isModerator(
			&discordgo.Member{
				Permissions: discordgo.PermissionModerateMembers,
			},
			settings,
		),
	)
	assert.True(
		t,
		isModerator(&discordgo.Member{Roles: []string{"mod-role"}}, settings),
	)
	assert.True(
		t,
		isModerator(&discordgo.Member{Roles: []string{"admin-role"}}, settings),
	)
}

func TestIsAdmin(t *testing.T) {
	t.Parallel()

	settings := &GuildSettings{
		GuildID:         "guild-1",
		ModeratorRoleID: "mod-role",
		AdminRoleID:     "admin-role",
	}

	assert.False(t, isAdmin(nil, settings))

	// moderator role is not sufficient for admin commands
	assert.False(
		t,
		isAdmin(&discordgo.Member{Roles: []string{"mod-role"}}, settings),
	)
	assert.True(
		t,
		isAdmin(&discordgo.Member{Roles: []string{"admin-role"}}, settings),
	)
	assert.True(
		t,
		isAdmin(
			&discordgo.Member{
				Permissions: discordgo.PermissionAdministrator,
			},
			settings,
		),
	)
}
