package songbird

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// defaultWelcomeMessage is used until a guild configures its own.
// Supported placeholders: {user} (mention), {username}, {server},
// {membercount}.
const defaultWelcomeMessage = "Welcome to {server}, {user}! " +
	"Grab a seat, the show's about to start."

// renderWelcomeMessage substitutes placeholders in a welcome template.
func renderWelcomeMessage(
	template string,
	member *discordgo.Member,
	guild *discordgo.Guild,
) string {
	if template == "" {
		template = defaultWelcomeMessage
	}
	msg := template
	if member != nil && member.User != nil {
		msg = strings.ReplaceAll(msg, "{user}", member.User.Mention())
		msg = strings.ReplaceAll(msg, "{username}", member.User.Username)
	}
	if guild != nil {
		msg = strings.ReplaceAll(msg, "{server}", guild.Name)
		msg = strings.ReplaceAll(
			msg, "{membercount}", strconv.Itoa(guild.MemberCount),
		)
	}
	return msg
}

// welcomeEmbed builds the embed posted when a member joins.
func welcomeEmbed(
	settings *GuildSettings,
	member *discordgo.Member,
	guild *discordgo.Guild,
) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "A new face!",
		Description: renderWelcomeMessage(settings.WelcomeMessage, member, guild),
		Color:       embedColorSuccess,
	}
	if member != nil && member.User != nil {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{
			URL: member.User.AvatarURL("256"),
		}
	}
	if settings.WelcomeImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: settings.WelcomeImageURL}
	}
	if guild != nil {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: "Member #" + strconv.Itoa(guild.MemberCount),
		}
	}
	return embed
}
