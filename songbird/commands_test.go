package songbird

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlashCommands(t *testing.T) {
	t.Parallel()

	commands := slashCommands()
	require.NotEmpty(t, commands)

	names := map[string]*discordgo.ApplicationCommand{}
	for _, cmd := range commands {
		assert.NotEmpty(t, cmd.Description, "command %q has no description", cmd.Name)
		_, dup := names[cmd.Name]
		assert.False(t, dup, "duplicate command name %q", cmd.Name)
		names[cmd.Name] = cmd
	}

	expected := []string{
		SlashCommandLevel,
		SlashCommandLeaderboard,
		SlashCommandDaily,
		SlashCommandXPSettings,
		SlashCommandChat,
		SlashCommandWarn,
		SlashCommandUnwarn,
		SlashCommandWarnings,
		SlashCommandMute,
		SlashCommandUnmute,
		SlashCommandBan,
		SlashCommandUnban,
		SlashCommandBannedWords,
		SlashCommandSettings,
		SlashCommandWelcome,
		SlashCommandBoosterColor,
		SlashCommandIssues,
		SlashCommandHelp,
		SlashCommandPing,
		SlashCommandStats,
	}
	for _, name := range expected {
		assert.Contains(t, names, name)
	}
	assert.Len(t, commands, len(expected))

	// moderation commands must not default to everyone
	for _, name := range []string{
		SlashCommandWarn,
		SlashCommandUnwarn,
		SlashCommandMute,
		SlashCommandUnmute,
		SlashCommandBan,
		SlashCommandUnban,
		SlashCommandBannedWords,
	} {
		cmd := names[name]
		require.NotNil(t, cmd.DefaultMemberPermissions, "command %q", name)
		assert.NotZero(t, *cmd.DefaultMemberPermissions, "command %q", name)
	}

	// chat requires its question option
	chat := names[SlashCommandChat]
	require.NotEmpty(t, chat.Options)
	assert.True(t, chat.Options[0].Required)

	// booster-colors carries the add/remove/list/post subcommands
	booster := names[SlashCommandBoosterColor]
	boosterSubs := map[string]bool{}
	for _, sub := range booster.Options {
		assert.Equal(t, discordgo.ApplicationCommandOptionSubCommand, sub.Type)
		boosterSubs[sub.Name] = true
	}
	for _, sub := range []string{"add", "remove", "list", "post"} {
		assert.True(t, boosterSubs[sub], "missing booster-colors subcommand %q", sub)
	}

	// issues: report is open to everyone, list/update gate in-handler
	issues := names[SlashCommandIssues]
	assert.Nil(t, issues.DefaultMemberPermissions)
	issueSubs := map[string]*discordgo.ApplicationCommandOption{}
	for _, sub := range issues.Options {
		issueSubs[sub.Name] = sub
	}
	for _, sub := range []string{"report", "my-issues", "list", "update"} {
		assert.Contains(t, issueSubs, sub)
	}
	report := issueSubs["report"]
	require.Len(t, report.Options, 2)
	assert.True(t, report.Options[0].Required)
	assert.True(t, report.Options[1].Required)
}

func TestPaginationButtons(t *testing.T) {
	t.Parallel()

	components := paginationButtons(leaderboardCustomIDPrefix, 0, 4)
	require.Len(t, components, 1)
	row, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 2)

	prev, ok := row.Components[0].(discordgo.Button)
	require.True(t, ok)
	next, ok := row.Components[1].(discordgo.Button)
	require.True(t, ok)

	// first page: prev disabled, next targets page 1
	assert.True(t, prev.Disabled)
	assert.False(t, next.Disabled)
	assert.Equal(t, "leaderboard_page:1", next.CustomID)

	// last page: next disabled
	components = paginationButtons(leaderboardCustomIDPrefix, 4, 4)
	row = components[0].(discordgo.ActionsRow)
	prev = row.Components[0].(discordgo.Button)
	next = row.Components[1].(discordgo.Button)
	assert.False(t, prev.Disabled)
	assert.Equal(t, "leaderboard_page:3", prev.CustomID)
	assert.True(t, next.Disabled)
}
