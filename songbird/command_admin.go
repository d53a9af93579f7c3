package songbird

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// requireAdmin loads settings and verifies the invoker can use admin
// commands. Returns nil settings when the check fails.
func (d *Discord) requireAdmin(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) *GuildSettings {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}
	settings, err := d.writeDB.GetGuildSettings(ctx, i.GuildID)
	if err != nil {
		log.ErrorContext(ctx, "error loading guild settings", tint.Err(err))
		d.ephemeralReply(i, "Something went wrong, try again in a bit.")
		return nil
	}
	if !isAdmin(i.Member, settings) {
		d.ephemeralReply(i, "You need admin permissions for that.")
		return nil
	}
	return settings
}

func (d *Discord) commandSettings(ctx context.Context, i *discordgo.InteractionCreate) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	settings := d.requireAdmin(ctx, i)
	if settings == nil {
		return
	}

	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]

	switch sub.Name {
	case "view":
		d.embedReply(i, guildSettingsEmbed(settings), true)
		return
	case "channels":
		updated := *settings
		for _, opt := range sub.Options {
			channel := opt.ChannelValue(nil)
			if channel == nil {
				continue
			}
			switch opt.Name {
			case "welcome":
				updated.WelcomeChannelID = channel.ID
			case "log":
				updated.LogChannelID = channel.ID
			case "booster-colors":
				updated.BoosterColorsChannelID = channel.ID
			}
		}
		if err := d.writeDB.UpdateGuildSettings(ctx, &updated); err != nil {
			log.ErrorContext(ctx, "error updating channels", tint.Err(err))
			d.ephemeralReply(i, "Something went wrong, try again in a bit.")
			return
		}
		d.notifySettingsChanged(ctx, i.GuildID)
		d.embedReply(i, guildSettingsEmbed(&updated), true)
	case "roles":
		updated := *settings
		for _, opt := range sub.Options {
			role := opt.RoleValue(nil, i.GuildID)
			if role == nil {
				continue
			}
			switch opt.Name {
			case "moderator":
				updated.ModeratorRoleID = role.ID
			case "admin":
				updated.AdminRoleID = role.ID
			case "booster":
				updated.ServerBoosterRoleID = role.ID
			}
		}
		if err := d.writeDB.UpdateGuildSettings(ctx, &updated); err != nil {
			log.ErrorContext(ctx, "error updating roles", tint.Err(err))
			d.ephemeralReply(i, "Something went wrong, try again in a bit.")
			return
		}
		d.notifySettingsChanged(ctx, i.GuildID)
		d.embedReply(i, guildSettingsEmbed(&updated), true)
	default:
		log.WarnContext(ctx, "unknown settings subcommand", "name", sub.Name)
	}
}

// notifySettingsChanged tells other instances to drop their cached
// settings for the guild.
func (d *Discord) notifySettingsChanged(ctx context.Context, guildID string) {
	if d.b.dbNotifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(ctx, dbNotifierSendTimeout)
	defer cancel()
	if !d.b.dbNotifier.GuildSettingsUpdated(notifyCtx, guildID) {
		log, ok := ContextLogger(ctx)
		if log == nil || !ok {
			log = d.logger
		}
		log.WarnContext(ctx, "settings change notification not delivered")
	}
}

func channelField(label string, channelID string) string {
	if channelID == "" {
		return label + ": not set"
	}
	return fmt.Sprintf("%s: <#%s>", label, channelID)
}

func roleField(label string, roleID string) string {
	if roleID == "" {
		return label + ": not set"
	}
	return fmt.Sprintf("%s: <@&%s>", label, roleID)
}

func guildSettingsEmbed(settings *GuildSettings) *discordgo.MessageEmbed {
	welcomeState := "disabled"
	if settings.WelcomeEnabled {
		welcomeState = "enabled"
	}
	return &discordgo.MessageEmbed{
		Title: "Server settings",
		Color: embedColorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Channels",
				Value: channelField("Welcome", settings.WelcomeChannelID) + "\n" +
					channelField("Log", settings.LogChannelID) + "\n" +
					channelField("Booster colors", settings.BoosterColorsChannelID),
			},
			{
				Name: "Roles",
				Value: roleField("Moderator", settings.ModeratorRoleID) + "\n" +
					roleField("Admin", settings.AdminRoleID) + "\n" +
					roleField("Booster", settings.ServerBoosterRoleID),
			},
			{
				Name: "Welcome",
				Value: fmt.Sprintf(
					"%s\n%s", welcomeState, settings.WelcomeMessage,
				),
			},
		},
	}
}

func (d *Discord) commandWelcome(ctx context.Context, i *discordgo.InteractionCreate) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	settings := d.requireAdmin(ctx, i)
	if settings == nil {
		return
	}

	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]

	switch sub.Name {
	case "set":
		updated := *settings
		updated.WelcomeMessage = sub.Options[0].StringValue()
		if err := d.writeDB.UpdateGuildSettings(ctx, &updated); err != nil {
			log.ErrorContext(ctx, "error updating welcome message", tint.Err(err))
			d.ephemeralReply(i, "Something went wrong, try again in a bit.")
			return
		}
		d.notifySettingsChanged(ctx, i.GuildID)
		d.ephemeralReply(i, "Welcome message updated.")
	case "toggle":
		updated := *settings
		updated.WelcomeEnabled = sub.Options[0].BoolValue()
		if err := d.writeDB.UpdateGuildSettings(ctx, &updated); err != nil {
			log.ErrorContext(ctx, "error toggling welcome", tint.Err(err))
			d.ephemeralReply(i, "Something went wrong, try again in a bit.")
			return
		}
		d.notifySettingsChanged(ctx, i.GuildID)
		state := "disabled"
		if updated.WelcomeEnabled {
			state = "enabled"
		}
		d.ephemeralReply(i, fmt.Sprintf("Welcome messages %s.", state))
	case "test":
		var guild *discordgo.Guild
		if state := d.session.State(); state != nil {
			guild, _ = state.Guild(i.GuildID)
		}
		d.embedReply(i, welcomeEmbed(settings, i.Member, guild), true)
	default:
		log.WarnContext(ctx, "unknown welcome subcommand", "name", sub.Name)
	}
}

// commandBoosterColors handles the booster-colors subcommands: the
// role list lives in guild settings, so adds and removes go through
// UpdateGuildSettings like any other settings change.
func (d *Discord) commandBoosterColors(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	settings := d.requireAdmin(ctx, i)
	if settings == nil {
		return
	}

	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]

	switch sub.Name {
	case "add", "remove":
		if len(sub.Options) == 0 {
			return
		}
		role := sub.Options[0].RoleValue(nil, i.GuildID)
		if role == nil {
			return
		}
		updated := *settings
		updated.BoosterColorRoles = append(
			StringSlice{}, settings.BoosterColorRoles...,
		)

		var changed bool
		var reply string
		if sub.Name == "add" {
			changed = addBoosterColorRole(&updated, role.ID)
			reply = fmt.Sprintf("Added <@&%s> to the color picker.", role.ID)
			if !changed {
				reply = fmt.Sprintf("<@&%s> is already a color option.", role.ID)
			}
		} else {
			changed = removeBoosterColorRole(&updated, role.ID)
			reply = fmt.Sprintf("Removed <@&%s> from the color picker.", role.ID)
			if !changed {
				reply = fmt.Sprintf("<@&%s> isn't a color option.", role.ID)
			}
		}
		if !changed {
			d.ephemeralReply(i, reply)
			return
		}
		if err := d.writeDB.UpdateGuildSettings(ctx, &updated); err != nil {
			log.ErrorContext(ctx, "error updating color roles", tint.Err(err))
			d.ephemeralReply(i, "Something went wrong, try again in a bit.")
			return
		}
		d.notifySettingsChanged(ctx, i.GuildID)
		d.ephemeralReply(i, reply)
	case "list":
		if len(settings.BoosterColorRoles) == 0 {
			d.embedReply(
				i,
				infoEmbed("Booster colors", "No color roles configured yet."),
				true,
			)
			return
		}
		list := ""
		for _, roleID := range settings.BoosterColorRoles {
			list += fmt.Sprintf("<@&%s>\n", roleID)
		}
		d.embedReply(i, infoEmbed("Booster colors", list), true)
	case "post":
		msg, err := d.PostBoosterColorPicker(ctx, settings)
		if err != nil {
			log.ErrorContext(ctx, "error posting color picker", tint.Err(err))
			d.embedReply(
				i,
				errorEmbed(fmt.Sprintf("Couldn't post the picker: %s", err)),
				true,
			)
			return
		}
		d.ephemeralReply(
			i, fmt.Sprintf("Color picker posted in <#%s>.", msg.ChannelID),
		)
	default:
		log.WarnContext(ctx, "unknown booster-colors subcommand", "name", sub.Name)
	}
}

func (d *Discord) commandHelp(_ context.Context, i *discordgo.InteractionCreate) {
	d.embedReply(
		i, &discordgo.MessageEmbed{
			Title: "Hey, I'm Calliope!",
			Description: "Mention me or use `/chat` to talk. " +
				"Here's everything else I do:",
			Color: embedColorPrimary,
			Fields: []*discordgo.MessageEmbedField{
				{
					Name: "Leveling",
					Value: "`/level` — your rank card\n" +
						"`/leaderboard` — server rankings\n" +
						"`/daily` — daily bonus XP",
				},
				{
					Name: "Moderation",
					Value: "`/warn` `/unwarn` `/warnings`\n" +
						"`/mute` `/unmute` `/ban` `/unban`\n" +
						"`/banned-words` — manage the word filter",
				},
				{
					Name: "Admin",
					Value: "`/settings` — channels and roles\n" +
						"`/xp-settings` — XP tuning and milestone roles\n" +
						"`/welcome` — welcome messages\n" +
						"`/booster-colors` — manage the color picker",
				},
				{
					Name: "Feedback",
					Value: "`/issues report` — tell us when something breaks\n" +
						"`/issues my-issues` — track your reports",
				},
			},
		}, true,
	)
}

func (d *Discord) commandPing(_ context.Context, i *discordgo.InteractionCreate) {
	d.ephemeralReply(i, "Still here, still humming. 🎶")
}

func (d *Discord) commandStats(ctx context.Context, i *discordgo.InteractionCreate) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	memberCount, err := MemberCount(ctx, d.writeDB.DB(), i.GuildID)
	if err != nil {
		log.WarnContext(ctx, "error counting members", tint.Err(err))
	}
	cacheStats, err := d.b.ai.CacheStats(ctx)
	if err != nil {
		log.WarnContext(ctx, "error loading cache stats", tint.Err(err))
	}

	d.embedReply(
		i, &discordgo.MessageEmbed{
			Title: "Bot stats",
			Color: embedColorInfo,
			Fields: []*discordgo.MessageEmbedField{
				{
					Name:   "Uptime",
					Value:  time.Since(d.b.startedAt).Round(time.Second).String(),
					Inline: true,
				},
				{
					Name:   "Tracked members",
					Value:  fmt.Sprintf("%d", memberCount),
					Inline: true,
				},
				{
					Name: "Answer cache",
					Value: fmt.Sprintf(
						"%d entries, %d hits",
						cacheStats.Entries,
						cacheStats.TotalHits,
					),
					Inline: true,
				},
				{
					Name: "Gateway",
					Value: fmt.Sprintf(
						"%d connects, %d disconnects",
						d.metricConnects.Load(),
						d.metricDisconnects.Load(),
					),
					Inline: true,
				},
			},
		}, true,
	)
}
