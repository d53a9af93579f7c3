package songbird

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Embed accent colors (Discord decimal RGB).
const (
	embedColorPrimary = 0x7c3aed
	embedColorSuccess = 0x22c55e
	embedColorError   = 0xef4444
	embedColorWarning = 0xf59e0b
	embedColorInfo    = 0x3b82f6
	embedColorLevelUp = 0xfacc15
)

func errorEmbed(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Something went wrong",
		Description: description,
		Color:       embedColorError,
	}
}

func successEmbed(title string, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       embedColorSuccess,
	}
}

func infoEmbed(title string, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       embedColorInfo,
	}
}

// levelUpEmbed announces a level transition, listing any milestone
// roles granted along with it.
func levelUpEmbed(
	user *discordgo.User,
	change LevelChange,
	milestones []Milestone,
) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Level up!",
		Description: fmt.Sprintf(
			"%s reached level **%d**!",
			user.Mention(),
			change.NewLevel,
		),
		Color: embedColorLevelUp,
		Thumbnail: &discordgo.MessageEmbedThumbnail{
			URL: user.AvatarURL("128"),
		},
	}
	if len(milestones) > 0 {
		roles := ""
		for i, m := range milestones {
			if i > 0 {
				roles += ", "
			}
			roles += fmt.Sprintf("<@&%s>", m.RoleID)
		}
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name:  "New roles",
				Value: roles,
			},
		)
	}
	return embed
}

// levelEmbed renders a member's rank card.
func levelEmbed(
	user *discordgo.User,
	member *Member,
	rank int64,
	maxLevel int,
) *discordgo.MessageEmbed {
	progress := Progress(member.TotalXP, maxLevel)
	bar := progressBar(progress.Percentage, 12)
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s's level", user.Username),
		Color: embedColorPrimary,
		Thumbnail: &discordgo.MessageEmbedThumbnail{
			URL: user.AvatarURL("128"),
		},
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Level",
				Value:  fmt.Sprintf("%d", member.Level),
				Inline: true,
			},
			{
				Name:   "Rank",
				Value:  fmt.Sprintf("#%d", rank),
				Inline: true,
			},
			{
				Name:   "Total XP",
				Value:  fmt.Sprintf("%d", member.TotalXP),
				Inline: true,
			},
			{
				Name: "Progress",
				Value: fmt.Sprintf(
					"%s %d/%d (%d%%)",
					bar,
					progress.Current,
					progress.Required,
					progress.Percentage,
				),
			},
		},
	}
}

// leaderboardEmbed renders one page of the guild leaderboard.
func leaderboardEmbed(
	guildName string,
	members []Member,
	page int,
	pageSize int,
	total int64,
) *discordgo.MessageEmbed {
	description := ""
	for i, m := range members {
		position := page*pageSize + i + 1
		medal := fmt.Sprintf("**%d.**", position)
		switch position {
		case 1:
			medal = "🥇"
		case 2:
			medal = "🥈"
		case 3:
			medal = "🥉"
		}
		description += fmt.Sprintf(
			"%s %s — level %d (%d XP)\n",
			medal,
			m.Username,
			m.Level,
			m.TotalXP,
		)
	}
	if description == "" {
		description = "Nobody has earned XP yet. Get talking!"
	}
	lastPage := 0
	if total > 0 {
		lastPage = int((total - 1) / int64(pageSize))
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s leaderboard", guildName),
		Description: description,
		Color:       embedColorPrimary,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d/%d", page+1, lastPage+1),
		},
	}
}

// paginationButtons builds the prev/next row for paginated embeds.
// IDs encode the target page so the component handler is stateless.
func paginationButtons(customIDPrefix string, page int, lastPage int) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Prev",
					Style:    discordgo.SecondaryButton,
					CustomID: fmt.Sprintf("%s:%d", customIDPrefix, page-1),
					Disabled: page <= 0,
				},
				discordgo.Button{
					Label:    "Next",
					Style:    discordgo.SecondaryButton,
					CustomID: fmt.Sprintf("%s:%d", customIDPrefix, page+1),
					Disabled: page >= lastPage,
				},
			},
		},
	}
}
