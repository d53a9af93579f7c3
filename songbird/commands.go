package songbird

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Slash command names.
const (
	SlashCommandLevel        = "level"
	SlashCommandLeaderboard  = "leaderboard"
	SlashCommandDaily        = "daily"
	SlashCommandXPSettings   = "xp-settings"
	SlashCommandChat         = "chat"
	SlashCommandWarn         = "warn"
	SlashCommandUnwarn       = "unwarn"
	SlashCommandWarnings     = "warnings"
	SlashCommandMute         = "mute"
	SlashCommandUnmute       = "unmute"
	SlashCommandBan          = "ban"
	SlashCommandUnban        = "unban"
	SlashCommandBannedWords  = "banned-words"
	SlashCommandSettings     = "settings"
	SlashCommandWelcome      = "welcome"
	SlashCommandBoosterColor = "booster-colors"
	SlashCommandIssues       = "issues"
	SlashCommandHelp         = "help"
	SlashCommandPing         = "ping"
	SlashCommandStats        = "stats"
)

const (
	leaderboardCustomIDPrefix = "leaderboard_page"
	warningsCustomIDPrefix    = "warnings_page"

	leaderboardPageSize = 10
	warningsPageSize    = 5
)

// slashCommands returns the full application command set, registered
// via bulk overwrite on startup.
func slashCommands() []*discordgo.ApplicationCommand {
	moderatePermission := int64(discordgo.PermissionModerateMembers)
	banPermission := int64(discordgo.PermissionBanMembers)
	adminPermission := int64(discordgo.PermissionAdministrator)

	userOption := func(description string, required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: description,
			Required:    required,
		}
	}
	reasonOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Reason, shown in the mod log",
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        SlashCommandLevel,
			Description: "Show your level and XP progress (or someone else's)",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member to look up", false),
			},
		},
		{
			Name:        SlashCommandLeaderboard,
			Description: "Show the server XP leaderboard",
		},
		{
			Name:        SlashCommandDaily,
			Description: "Play the daily game for bonus XP",
		},
		{
			Name:                     SlashCommandXPSettings,
			Description:              "Configure XP gain ranges and cooldown",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "message-min",
					Description: "Minimum XP per message",
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "message-max",
					Description: "Maximum XP per message",
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "attachment-min",
					Description: "Minimum XP per message with attachments",
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "attachment-max",
					Description: "Maximum XP per message with attachments",
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "cooldown-seconds",
					Description: "Seconds between XP gains per member",
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "level",
					Description: "Milestone level to map (with role)",
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role granted at the milestone level",
				},
			},
		},
		{
			Name:        SlashCommandChat,
			Description: "Chat with Calliope",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "What do you want to say?",
					Required:    true,
				},
			},
		},
		{
			Name:                     SlashCommandWarn,
			Description:              "Warn a member",
			DefaultMemberPermissions: &moderatePermission,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member to warn", true),
				reasonOption,
			},
		},
		{
			Name:                     SlashCommandUnwarn,
			Description:              "Remove a warning by ID",
			DefaultMemberPermissions: &moderatePermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "id",
					Description: "Warning ID to remove",
					Required:    true,
				},
			},
		},
		{
			Name:                     SlashCommandWarnings,
			Description:              "List a member's warnings",
			DefaultMemberPermissions: &moderatePermission,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member to list warnings for", true),
			},
		},
		{
			Name:                     SlashCommandMute,
			Description:              "Timeout a member",
			DefaultMemberPermissions: &moderatePermission,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member to mute", true),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "Timeout length in minutes (default 10)",
				},
				reasonOption,
			},
		},
		{
			Name:                     SlashCommandUnmute,
			Description:              "Clear a member's timeout",
			DefaultMemberPermissions: &moderatePermission,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member to unmute", true),
			},
		},
		{
			Name:                     SlashCommandBan,
			Description:              "Ban a member",
			DefaultMemberPermissions: &banPermission,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member to ban", true),
				reasonOption,
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "delete-days",
					Description: "Days of messages to delete (0-7)",
				},
			},
		},
		{
			Name:                     SlashCommandUnban,
			Description:              "Remove a ban by user ID",
			DefaultMemberPermissions: &banPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "user-id",
					Description: "User ID to unban",
					Required:    true,
				},
			},
		},
		{
			Name:                     SlashCommandBannedWords,
			Description:              "Manage the banned-word filter",
			DefaultMemberPermissions: &moderatePermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Add a word to this server's filter",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "word",
							Description: "Word to ban",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a word from this server's filter",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "word",
							Description: "Word to remove",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "exclude",
					Description: "Exclude a default-list word on this server",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "word",
							Description: "Word to exclude",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "include",
					Description: "Re-include a previously excluded word",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "word",
							Description: "Word to re-include",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List this server's effective banned words",
				},
			},
		},
		{
			Name:                     SlashCommandSettings,
			Description:              "View or update server settings",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "view",
					Description: "Show current settings",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "channels",
					Description: "Set channel assignments",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionChannel,
							Name:        "welcome",
							Description: "Welcome channel",
						},
						{
							Type:        discordgo.ApplicationCommandOptionChannel,
							Name:        "log",
							Description: "Moderation log channel",
						},
						{
							Type:        discordgo.ApplicationCommandOptionChannel,
							Name:        "booster-colors",
							Description: "Booster color picker channel",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "roles",
					Description: "Set role assignments",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "moderator",
							Description: "Moderator role",
						},
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "admin",
							Description: "Admin role",
						},
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "booster",
							Description: "Server booster role",
						},
					},
				},
			},
		},
		{
			Name:                     SlashCommandWelcome,
			Description:              "Configure or test the welcome message",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Set the welcome message template",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type: discordgo.ApplicationCommandOptionString,
							Name: "message",
							Description: "Template. Placeholders: {user} " +
								"{username} {server} {membercount}",
							Required: true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "toggle",
					Description: "Enable or disable welcome messages",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Name:        "enabled",
							Description: "Whether to send welcome messages",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "test",
					Description: "Preview the welcome message here",
				},
			},
		},
		{
			Name:                     SlashCommandBoosterColor,
			Description:              "Manage booster color roles",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Add a color role to the picker",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "role",
							Description: "Color role to add",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a color role from the picker",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "role",
							Description: "Color role to remove",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List the configured color roles",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "post",
					Description: "Post the color picker to its channel",
				},
			},
		},
		{
			Name:        SlashCommandIssues,
			Description: "Report or track bot issues",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "report",
					Description: "Report a new bot issue",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "title",
							Description: "Brief title for the issue",
							Required:    true,
							MaxLength:   issueTitleMaxLength,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "description",
							Description: "Detailed description of the issue",
							Required:    true,
							MaxLength:   issueDescriptionMaxLength,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "my-issues",
					Description: "View your reported issues",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "View all issues (moderators only)",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "status",
							Description: "Filter by status",
							Choices:     issueStatusChoices(true),
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "update",
					Description: "Update an issue's status (moderators only)",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "id",
							Description: "Issue ID",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "status",
							Description: "New status",
							Required:    true,
							Choices:     issueStatusChoices(false),
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "notes",
							Description: "Moderator notes",
							MaxLength:   issueNotesMaxLength,
						},
					},
				},
			},
		},
		{
			Name:        SlashCommandHelp,
			Description: "Show what I can do",
		},
		{
			Name:        SlashCommandPing,
			Description: "Check that I'm awake",
		},
		{
			Name:        SlashCommandStats,
			Description: "Show bot statistics",
		},
	}
}

// handleSlashCommand dispatches an application command interaction to
// its handler.
func (d *Discord) handleSlashCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	name := i.ApplicationCommandData().Name
	log, ok := ContextLogger(ctx)
	if log == nil || !ok {
		log = d.logger
	}
	log = log.With("command", name)
	ctx = WithLogger(ctx, log)

	switch name {
	case SlashCommandLevel:
		d.commandLevel(ctx, i)
	case SlashCommandLeaderboard:
		d.commandLeaderboard(ctx, i)
	case SlashCommandDaily:
		d.commandDaily(ctx, i)
	case SlashCommandXPSettings:
		d.commandXPSettings(ctx, i)
	case SlashCommandChat:
		d.commandChat(ctx, i)
	case SlashCommandWarn:
		d.commandWarn(ctx, i)
	case SlashCommandUnwarn:
		d.commandUnwarn(ctx, i)
	case SlashCommandWarnings:
		d.commandWarnings(ctx, i)
	case SlashCommandMute:
		d.commandMute(ctx, i)
	case SlashCommandUnmute:
		d.commandUnmute(ctx, i)
	case SlashCommandBan:
		d.commandBan(ctx, i)
	case SlashCommandUnban:
		d.commandUnban(ctx, i)
	case SlashCommandBannedWords:
		d.commandBannedWords(ctx, i)
	case SlashCommandSettings:
		d.commandSettings(ctx, i)
	case SlashCommandWelcome:
		d.commandWelcome(ctx, i)
	case SlashCommandBoosterColor:
		d.commandBoosterColors(ctx, i)
	case SlashCommandIssues:
		d.commandIssues(ctx, i)
	case SlashCommandHelp:
		d.commandHelp(ctx, i)
	case SlashCommandPing:
		d.commandPing(ctx, i)
	case SlashCommandStats:
		d.commandStats(ctx, i)
	default:
		log.WarnContext(ctx, "unknown command")
	}
}
