package songbird

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderWelcomeMessage(t *testing.T) {
	t.Parallel()

	member := &discordgo.Member{
		User: &discordgo.User{ID: "user-1", Username: "wren_fan"},
	}
	guild := &discordgo.Guild{Name: "The Green Room", MemberCount: 42}

	msg := renderWelcomeMessage(
		"Hey {username}, welcome to {server}! You're member #{membercount}. {user}",
		member,
		guild,
	)
	assert.Equal(
		t,
		"Hey wren_fan, welcome to The Green Room! You're member #42. <@user-1>",
		msg,
	)

	// empty template falls back to the default
	msg = renderWelcomeMessage("", member, guild)
	assert.Contains(t, msg, "The Green Room")
	assert.Contains(t, msg, "<@user-1>")

	// nil member/guild leave placeholders untouched instead of panicking
	msg = renderWelcomeMessage("hi {username} of {server}", nil, nil)
	assert.Equal(t, "hi {username} of {server}", msg)
}

func TestWelcomeEmbed(t *testing.T) {
	t.Parallel()

	settings := &GuildSettings{
		GuildID:         "guild-1",
		WelcomeMessage:  "Welcome {username}!",
		WelcomeImageURL: "https://example.com/banner.png",
	}
	member := &discordgo.Member{
		User: &discordgo.User{ID: "user-1", Username: "wren_fan"},
	}
	guild := &discordgo.Guild{Name: "The Green Room", MemberCount: 7}

	embed := welcomeEmbed(settings, member, guild)
	assert.Equal(t, "Welcome wren_fan!", embed.Description)
	assert.Equal(t, embedColorSuccess, embed.Color)
	require.NotNil(t, embed.Thumbnail)
	require.NotNil(t, embed.Image)
	assert.Equal(t, "https://example.com/banner.png", embed.Image.URL)
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "Member #7", embed.Footer.Text)

	// no configured image means no embed image
	settings.WelcomeImageURL = ""
	embed = welcomeEmbed(settings, member, guild)
	assert.Nil(t, embed.Image)
}
