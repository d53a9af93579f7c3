package songbird

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// handlerMessageCreate is the main message pipeline: banned-word
// filter, then XP award (behind the per-user cooldown), then the
// persona reply when the bot is mentioned or replied to.
func (d *Discord) handlerMessageCreate(ctx context.Context) func(
	*discordgo.Session,
	*discordgo.MessageCreate,
) {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || m.GuildID == "" {
			return
		}

		log := d.logger.With(
			"guild_id", m.GuildID,
			"user_id", m.Author.ID,
			"message_id", m.ID,
		)
		ctx = WithLogger(ctx, log)

		settings, err := d.writeDB.GetGuildSettings(ctx, m.GuildID)
		if err != nil {
			log.ErrorContext(ctx, "error loading guild settings", tint.Err(err))
			return
		}

		if d.filterBannedWords(ctx, m, settings) {
			return
		}

		d.awardMessageXP(ctx, m, settings)

		botID := ""
		if s.State != nil && s.State.User != nil {
			botID = s.State.User.ID
		}
		if botID != "" && d.messageAddressesBot(m, botID) {
			d.respondToMention(ctx, m, botID)
		}
	}
}

// filterBannedWords deletes a message containing a banned word, DMs
// the author, and posts to the guild's log channel. Returns true when
// the message was removed.
func (d *Discord) filterBannedWords(
	ctx context.Context,
	m *discordgo.MessageCreate,
	settings *GuildSettings,
) bool {
	if d.b.moderation == nil {
		return false
	}
	matched, word := d.b.moderation.ContainsBannedWord(ctx, m.GuildID, m.Content)
	if !matched {
		return false
	}

	log, ok := ContextLogger(ctx)
	if log == nil || !ok {
		log = d.logger
	}

	if err := d.session.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		log.ErrorContext(ctx, "error deleting filtered message", tint.Err(err))
		return false
	}
	log.InfoContext(ctx, "removed message containing banned word", "word", word)

	if dm, err := d.session.UserChannelCreate(m.Author.ID); err == nil {
		_, _ = d.session.ChannelMessageSend(
			dm.ID,
			"Your message was removed because it contained a word "+
				"that isn't allowed on this server.",
		)
	}

	d.logToChannel(
		ctx, settings, &discordgo.MessageEmbed{
			Title: "Message filtered",
			Description: fmt.Sprintf(
				"Removed a message from %s containing a banned word.",
				m.Author.Mention(),
			),
			Color: embedColorWarning,
		},
	)
	return true
}

// awardMessageXP draws an XP amount, applies it behind the per-user
// cooldown, and announces level-ups plus any milestone roles.
func (d *Discord) awardMessageXP(
	ctx context.Context,
	m *discordgo.MessageCreate,
	settings *GuildSettings,
) {
	log, ok := ContextLogger(ctx)
	if log == nil || !ok {
		log = d.logger
	}

	cooldown := time.Duration(settings.XPCooldownMS) * time.Millisecond
	if cooldown <= 0 {
		cooldown = d.b.config.XP.Cooldown
	}
	allowed, _ := d.b.xpCooldowns.Attempt(
		cooldownKey(m.GuildID, m.Author.ID), cooldown,
	)
	if !allowed {
		return
	}

	minXP, maxXP := settings.MessageXPMin, settings.MessageXPMax
	if len(m.Attachments) > 0 {
		minXP, maxXP = settings.AttachmentXPMin, settings.AttachmentXPMax
	}
	amount := randomXP(minXP, maxXP)

	change, member, err := d.writeDB.AwardMemberXP(
		ctx,
		m.GuildID,
		m.Author.ID,
		m.Author.Username,
		amount,
		d.b.config.XP.MaxLevel,
	)
	if err != nil {
		log.ErrorContext(ctx, "error awarding xp", tint.Err(err))
		return
	}
	if !change.LeveledUp() {
		return
	}

	log.InfoContext(
		ctx,
		"member leveled up",
		"old_level", change.OldLevel,
		"new_level", change.NewLevel,
		"total_xp", member.TotalXP,
	)

	milestones := MilestonesNewlyAchieved(
		change.OldLevel, change.NewLevel, settings.LevelRoles,
	)
	d.grantMilestoneRoles(ctx, m.GuildID, m.Author.ID, milestones)

	_, err = d.session.ChannelMessageSendEmbed(
		m.ChannelID, levelUpEmbed(m.Author, change, milestones),
	)
	if err != nil {
		log.WarnContext(ctx, "error announcing level up", tint.Err(err))
	}
}

// grantMilestoneRoles assigns milestone roles, skipping any the member
// already holds so repeat grants stay idempotent.
func (d *Discord) grantMilestoneRoles(
	ctx context.Context,
	guildID string,
	userID string,
	milestones []Milestone,
) {
	if len(milestones) == 0 {
		return
	}
	log, ok := ContextLogger(ctx)
	if log == nil || !ok {
		log = d.logger
	}

	guildMember, err := d.session.GuildMember(guildID, userID)
	if err != nil {
		log.WarnContext(
			ctx,
			"error fetching member for role grant, granting blind",
			tint.Err(err),
		)
	}

	for _, milestone := range milestones {
		if guildMember != nil && memberHasRole(guildMember, milestone.RoleID) {
			continue
		}
		err = d.session.GuildMemberRoleAdd(guildID, userID, milestone.RoleID)
		if err != nil {
			log.ErrorContext(
				ctx,
				"error granting milestone role",
				"level", milestone.Level,
				"role_id", milestone.RoleID,
				tint.Err(err),
			)
		}
	}
}

// messageAddressesBot reports whether the message mentions the bot or
// replies to one of its messages.
func (d *Discord) messageAddressesBot(m *discordgo.MessageCreate, botID string) bool {
	if messageMentionsUser(m.Message, botID) {
		return true
	}
	ref := m.ReferencedMessage
	return ref != nil && ref.Author != nil && ref.Author.ID == botID
}

// respondToMention runs the persona pipeline for a message addressed
// to the bot, behind the per-user AI cooldown.
func (d *Discord) respondToMention(
	ctx context.Context,
	m *discordgo.MessageCreate,
	botID string,
) {
	log, ok := ContextLogger(ctx)
	if log == nil || !ok {
		log = d.logger
	}

	allowed, remaining := d.b.aiCooldowns.Attempt(
		cooldownKey(m.GuildID, m.Author.ID), d.b.config.AI.Cooldown,
	)
	if !allowed {
		log.DebugContext(
			ctx,
			"persona reply on cooldown",
			"remaining", remaining,
		)
		return
	}

	question := stripBotMention(m.Content, botID)
	if question == "" {
		question = "hey"
	}

	_ = d.session.ChannelTyping(m.ChannelID)

	result := d.b.ai.Respond(ctx, question)

	_, err := d.session.ChannelMessageSendReply(
		m.ChannelID, result.Content, m.Reference(),
	)
	if err != nil {
		log.ErrorContext(ctx, "error sending persona reply", tint.Err(err))
		return
	}

	if result.Success {
		d.recordAIInteraction(ctx, m.GuildID, m.Author.ID, m.Author.Username)
	}
}

// stripBotMention removes the bot's mention tokens from message
// content.
func stripBotMention(content string, botID string) string {
	content = strings.ReplaceAll(content, "<@"+botID+">", "")
	content = strings.ReplaceAll(content, "<@!"+botID+">", "")
	return strings.TrimSpace(content)
}

// recordAIInteraction bumps the member's persona-chat counters.
// Best-effort.
func (d *Discord) recordAIInteraction(
	ctx context.Context,
	guildID string,
	userID string,
	username string,
) {
	member, _, err := d.writeDB.GetOrCreateMember(ctx, guildID, userID, username)
	if err != nil {
		d.logger.WarnContext(ctx, "error loading member for ai stats", tint.Err(err))
		return
	}
	member.AIInteractionCount++
	member.LastAIInteraction = time.Now().UTC().UnixMilli()
	_, err = d.writeDB.Updates(
		ctx, member, map[string]any{
			columnMemberAIInteractionCount: member.AIInteractionCount,
			columnMemberLastAIInteraction:  member.LastAIInteraction,
		},
	)
	if err != nil {
		d.logger.WarnContext(ctx, "error updating ai stats", tint.Err(err))
	}
}

// handlerGuildMemberAdd posts the configured welcome message when a
// member joins.
func (d *Discord) handlerGuildMemberAdd(ctx context.Context) func(
	*discordgo.Session,
	*discordgo.GuildMemberAdd,
) {
	return func(s *discordgo.Session, g *discordgo.GuildMemberAdd) {
		if g.User == nil || g.User.Bot {
			return
		}
		log := d.logger.With("guild_id", g.GuildID, "user_id", g.User.ID)
		ctx = WithLogger(ctx, log)

		settings, err := d.writeDB.GetGuildSettings(ctx, g.GuildID)
		if err != nil {
			log.ErrorContext(ctx, "error loading guild settings", tint.Err(err))
			return
		}
		if !settings.WelcomeEnabled || settings.WelcomeChannelID == "" {
			return
		}

		var guild *discordgo.Guild
		if s.State != nil {
			guild, _ = s.State.Guild(g.GuildID)
		}

		_, err = d.session.ChannelMessageSendEmbed(
			settings.WelcomeChannelID,
			welcomeEmbed(settings, g.Member, guild),
		)
		if err != nil {
			log.ErrorContext(ctx, "error sending welcome message", tint.Err(err))
		}
	}
}

// handlerInteractionCreate dispatches slash commands and message
// components.
func (d *Discord) handlerInteractionCreate(ctx context.Context) func(
	*discordgo.Session,
	*discordgo.InteractionCreate,
) {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		user := getDiscordUser(i)
		log := d.logger.With("guild_id", i.GuildID)
		if user != nil {
			log = log.With("user_id", user.ID)
		}
		ctx = WithLogger(ctx, log)

		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			d.handleSlashCommand(ctx, i)
		case discordgo.InteractionMessageComponent:
			d.handleMessageComponent(ctx, i)
		default:
			log.DebugContext(
				ctx,
				"ignoring interaction",
				"type", i.Type.String(),
			)
		}
	}
}

// handleMessageComponent routes button presses by custom ID prefix.
func (d *Discord) handleMessageComponent(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	customID := i.MessageComponentData().CustomID
	switch {
	case strings.HasPrefix(customID, boosterColorCustomIDPrefix+":"):
		d.handleBoosterColorButton(ctx, i, customID)
	case strings.HasPrefix(customID, leaderboardCustomIDPrefix+":"):
		d.handleLeaderboardPageButton(ctx, i, customID)
	case strings.HasPrefix(customID, warningsCustomIDPrefix+":"):
		d.handleWarningsPageButton(ctx, i, customID)
	default:
		log, ok := ContextLogger(ctx)
		if log == nil || !ok {
			log = d.logger
		}
		log.WarnContext(ctx, "unknown component", "custom_id", customID)
	}
}
