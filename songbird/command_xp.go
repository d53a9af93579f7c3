package songbird

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// commandLevel shows a member's rank card.
func (d *Discord) commandLevel(ctx context.Context, i *discordgo.InteractionCreate) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	target := getDiscordUser(i)
	options := discordInteractionOptions(i)
	if opt, ok := options["user"]; ok {
		target = opt.UserValue(nil)
	}
	if target == nil {
		d.ephemeralReply(i, "Couldn't work out who you meant.")
		return
	}
	if target.Bot {
		d.ephemeralReply(i, "Bots don't level up. We just vibe.")
		return
	}

	member, _, err := d.writeDB.GetOrCreateMember(
		ctx, i.GuildID, target.ID, target.Username,
	)
	if err != nil {
		log.ErrorContext(ctx, "error loading member", tint.Err(err))
		d.ephemeralReply(i, "Something went wrong, try again in a bit.")
		return
	}
	rank, err := member.Rank(ctx, d.writeDB.DB())
	if err != nil {
		log.WarnContext(ctx, "error computing rank", tint.Err(err))
		rank = 0
	}
	d.embedReply(
		i, levelEmbed(target, member, rank, d.b.config.XP.MaxLevel), false,
	)
}

// commandLeaderboard shows the first page of the guild leaderboard
// with pagination buttons.
func (d *Discord) commandLeaderboard(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	embed, components, err := d.leaderboardPage(ctx, i.GuildID, 0)
	if err != nil {
		log, _ := ContextLogger(ctx)
		if log == nil {
			log = d.logger
		}
		log.ErrorContext(ctx, "error building leaderboard", tint.Err(err))
		d.ephemeralReply(i, "Something went wrong, try again in a bit.")
		return
	}
	d.embedReply(i, embed, false, components...)
}

// leaderboardPage builds one leaderboard page plus its buttons.
func (d *Discord) leaderboardPage(
	ctx context.Context,
	guildID string,
	page int,
) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	if page < 0 {
		page = 0
	}
	total, err := MemberCount(ctx, d.writeDB.DB(), guildID)
	if err != nil {
		return nil, nil, err
	}
	lastPage := 0
	if total > 0 {
		lastPage = int((total - 1) / leaderboardPageSize)
	}
	if page > lastPage {
		page = lastPage
	}

	members, err := Leaderboard(
		ctx, d.writeDB.DB(), guildID,
		leaderboardPageSize, page*leaderboardPageSize,
	)
	if err != nil {
		return nil, nil, err
	}

	guildName := "Server"
	if guild, stateErr := d.session.State().Guild(guildID); stateErr == nil {
		guildName = guild.Name
	}

	embed := leaderboardEmbed(guildName, members, page, leaderboardPageSize, total)
	components := paginationButtons(leaderboardCustomIDPrefix, page, lastPage)
	return embed, components, nil
}

// handleLeaderboardPageButton swaps the leaderboard embed to the page
// encoded in the button's custom ID.
func (d *Discord) handleLeaderboardPageButton(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	customID string,
) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	page, err := strconv.Atoi(
		strings.TrimPrefix(customID, leaderboardCustomIDPrefix+":"),
	)
	if err != nil {
		log.WarnContext(ctx, "bad leaderboard page id", "custom_id", customID)
		return
	}

	embed, components, err := d.leaderboardPage(ctx, i.GuildID, page)
	if err != nil {
		log.ErrorContext(ctx, "error building leaderboard page", tint.Err(err))
		return
	}

	err = d.session.InteractionRespond(
		i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Embeds:     []*discordgo.MessageEmbed{embed},
				Components: components,
			},
		},
	)
	if err != nil {
		log.ErrorContext(ctx, "error updating leaderboard page", tint.Err(err))
	}
}

// commandDaily awards the daily bonus XP, once per cooldown window.
func (d *Discord) commandDaily(ctx context.Context, i *discordgo.InteractionCreate) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	user := getDiscordUser(i)
	if user == nil {
		return
	}

	member, _, err := d.writeDB.GetOrCreateMember(
		ctx, i.GuildID, user.ID, user.Username,
	)
	if err != nil {
		log.ErrorContext(ctx, "error loading member", tint.Err(err))
		d.ephemeralReply(i, "Something went wrong, try again in a bit.")
		return
	}

	available, remaining := member.DailyAvailable(d.b.config.XP.DailyCooldown)
	if !available {
		d.ephemeralReply(
			i, fmt.Sprintf(
				"You've already played today! Come back in %s.",
				remaining.Round(time.Minute),
			),
		)
		return
	}

	amount := randomXP(d.b.config.XP.DailyXPMin, d.b.config.XP.DailyXPMax)
	change, updated, err := d.writeDB.AwardMemberXP(
		ctx, i.GuildID, user.ID, user.Username, amount, d.b.config.XP.MaxLevel,
	)
	if err != nil {
		log.ErrorContext(ctx, "error awarding daily xp", tint.Err(err))
		d.ephemeralReply(i, "Something went wrong, try again in a bit.")
		return
	}

	now := time.Now().UTC().UnixMilli()
	_, err = d.writeDB.Updates(
		ctx, updated, map[string]any{
			columnMemberLastDailyGame:    now,
			columnMemberDailyGamesPlayed: updated.DailyGamesPlayed + 1,
		},
	)
	if err != nil {
		log.WarnContext(ctx, "error recording daily game", tint.Err(err))
	}

	description := fmt.Sprintf("You won **%d XP**!", amount)
	if change.LeveledUp() {
		description += fmt.Sprintf(
			" And you leveled up to **%d**!", change.NewLevel,
		)
		milestones := MilestonesNewlyAchieved(
			change.OldLevel, change.NewLevel, d.settingsLevelRoles(ctx, i.GuildID),
		)
		d.grantMilestoneRoles(ctx, i.GuildID, user.ID, milestones)
	}
	d.embedReply(i, successEmbed("Daily game", description), false)
}

// settingsLevelRoles loads the guild's milestone table, empty on error.
func (d *Discord) settingsLevelRoles(ctx context.Context, guildID string) LevelRoles {
	settings, err := d.writeDB.GetGuildSettings(ctx, guildID)
	if err != nil {
		return LevelRoles{}
	}
	return settings.LevelRoles
}

// commandXPSettings updates XP ranges, cooldown, and milestone roles.
func (d *Discord) commandXPSettings(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	settings, err := d.writeDB.GetGuildSettings(ctx, i.GuildID)
	if err != nil {
		log.ErrorContext(ctx, "error loading guild settings", tint.Err(err))
		d.ephemeralReply(i, "Something went wrong, try again in a bit.")
		return
	}
	if !isAdmin(i.Member, settings) {
		d.ephemeralReply(i, "You need admin permissions for that.")
		return
	}

	options := discordInteractionOptions(i)
	updated := *settings
	updated.LevelRoles = LevelRoles{}
	for level, roleID := range settings.LevelRoles {
		updated.LevelRoles[level] = roleID
	}

	if opt, ok := options["message-min"]; ok {
		updated.MessageXPMin = int(opt.IntValue())
	}
	if opt, ok := options["message-max"]; ok {
		updated.MessageXPMax = int(opt.IntValue())
	}
	if opt, ok := options["attachment-min"]; ok {
		updated.AttachmentXPMin = int(opt.IntValue())
	}
	if opt, ok := options["attachment-max"]; ok {
		updated.AttachmentXPMax = int(opt.IntValue())
	}
	if opt, ok := options["cooldown-seconds"]; ok {
		updated.XPCooldownMS = opt.IntValue() * 1000
	}

	levelOpt, hasLevel := options["level"]
	roleOpt, hasRole := options["role"]
	switch {
	case hasLevel && hasRole:
		level := int(levelOpt.IntValue())
		if level <= 0 {
			d.ephemeralReply(i, "Milestone levels must be positive.")
			return
		}
		updated.LevelRoles[level] = roleOpt.RoleValue(nil, i.GuildID).ID
	case hasLevel != hasRole:
		d.ephemeralReply(i, "Provide both `level` and `role` to map a milestone.")
		return
	}

	if err = d.writeDB.UpdateGuildSettings(ctx, &updated); err != nil {
		if errors.Is(err, ErrInvalidXPRange) {
			d.ephemeralReply(i, "XP minimums can't be above their maximums.")
			return
		}
		log.ErrorContext(ctx, "error updating xp settings", tint.Err(err))
		d.ephemeralReply(i, "Something went wrong, try again in a bit.")
		return
	}

	d.embedReply(i, xpSettingsEmbed(&updated), true)
}

// xpSettingsEmbed summarizes the guild's XP configuration.
func xpSettingsEmbed(settings *GuildSettings) *discordgo.MessageEmbed {
	milestones := ""
	for _, level := range settings.LevelRoles.Levels() {
		milestones += fmt.Sprintf(
			"Level %d → <@&%s>\n", level, settings.LevelRoles[level],
		)
	}
	if milestones == "" {
		milestones = "None configured"
	}
	return &discordgo.MessageEmbed{
		Title: "XP settings",
		Color: embedColorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Message XP",
				Value: fmt.Sprintf(
					"%d–%d", settings.MessageXPMin, settings.MessageXPMax,
				),
				Inline: true,
			},
			{
				Name: "Attachment XP",
				Value: fmt.Sprintf(
					"%d–%d", settings.AttachmentXPMin, settings.AttachmentXPMax,
				),
				Inline: true,
			},
			{
				Name: "Cooldown",
				Value: (time.Duration(settings.XPCooldownMS) *
					time.Millisecond).String(),
				Inline: true,
			},
			{
				Name:  "Milestone roles",
				Value: milestones,
			},
		},
	}
}

// commandChat runs the persona pipeline from a slash command.
func (d *Discord) commandChat(ctx context.Context, i *discordgo.InteractionCreate) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	user := getDiscordUser(i)
	if user == nil {
		return
	}

	options := discordInteractionOptions(i)
	opt, ok := options["message"]
	if !ok || strings.TrimSpace(opt.StringValue()) == "" {
		d.ephemeralReply(i, "Say something first!")
		return
	}
	question := strings.TrimSpace(opt.StringValue())

	allowed, remaining := d.b.aiCooldowns.Attempt(
		cooldownKey(i.GuildID, user.ID), d.b.config.AI.Cooldown,
	)
	if !allowed {
		d.ephemeralReply(
			i, fmt.Sprintf(
				"Give me a second to breathe! Try again in %s.",
				remaining.Round(time.Second),
			),
		)
		return
	}

	// completions can outlast the 3s interaction window, so defer
	err := d.session.InteractionRespond(
		i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		},
	)
	if err != nil {
		log.ErrorContext(ctx, "error deferring chat response", tint.Err(err))
		return
	}

	result := d.b.ai.Respond(ctx, question)

	content := fmt.Sprintf("> %s\n%s", truncate(question, 200), result.Content)
	_, err = d.session.InteractionResponseEdit(
		i.Interaction, &discordgo.WebhookEdit{Content: &content},
	)
	if err != nil {
		log.ErrorContext(ctx, "error sending chat response", tint.Err(err))
		return
	}
	if result.Success {
		d.recordAIInteraction(ctx, i.GuildID, user.ID, user.Username)
	}
}
