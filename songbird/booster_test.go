package songbird

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRemoveBoosterColorRole(t *testing.T) {
	t.Parallel()

	settings := &GuildSettings{GuildID: "guild-1"}

	assert.True(t, addBoosterColorRole(settings, "role-1"))
	assert.True(t, addBoosterColorRole(settings, "role-2"))
	assert.Equal(t, StringSlice{"role-1", "role-2"}, settings.BoosterColorRoles)

	// duplicate add is a no-op
	assert.False(t, addBoosterColorRole(settings, "role-1"))
	assert.Len(t, settings.BoosterColorRoles, 2)

	assert.True(t, removeBoosterColorRole(settings, "role-1"))
	assert.Equal(t, StringSlice{"role-2"}, settings.BoosterColorRoles)

	// removing an unconfigured role is a no-op
	assert.False(t, removeBoosterColorRole(settings, "role-9"))
	assert.Equal(t, StringSlice{"role-2"}, settings.BoosterColorRoles)
}

func TestBoosterColorRolesPersist(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	writeDB := newTestWriteDB(t, db)
	ctx := context.Background()

	settings, err := writeDB.GetGuildSettings(ctx, "guild-1")
	require.NoError(t, err)
	assert.Empty(t, settings.BoosterColorRoles)

	updated := *settings
	require.True(t, addBoosterColorRole(&updated, "role-1"))
	require.True(t, addBoosterColorRole(&updated, "role-2"))
	require.NoError(t, writeDB.UpdateGuildSettings(ctx, &updated))

	writeDB.InvalidateGuildSettings("guild-1")
	reloaded, err := writeDB.GetGuildSettings(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, StringSlice{"role-1", "role-2"}, reloaded.BoosterColorRoles)
}

func TestBoosterColorComponents(t *testing.T) {
	t.Parallel()

	session := newStubDiscordSession()

	var roleIDs []string
	for i := 0; i < 7; i++ {
		roleIDs = append(roleIDs, fmt.Sprintf("role-%d", i))
	}

	rows := boosterColorComponents(session, "guild-1", roleIDs)
	require.Len(t, rows, 2)

	first, ok := rows[0].(discordgo.ActionsRow)
	require.True(t, ok)
	assert.Len(t, first.Components, 5)
	second, ok := rows[1].(discordgo.ActionsRow)
	require.True(t, ok)
	assert.Len(t, second.Components, 2)

	button, ok := first.Components[0].(discordgo.Button)
	require.True(t, ok)
	assert.Equal(t, "booster_color:role-0", button.CustomID)

	assert.Empty(t, boosterColorComponents(session, "guild-1", nil))
}
