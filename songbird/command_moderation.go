package songbird

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const defaultMuteDuration = 10 * time.Minute

// requireModerator loads settings and verifies the invoker can use
// moderation commands. Returns nil settings when the check fails (a
// reply has already been sent).
func (d *Discord) requireModerator(
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
	if !isModerator(i.Member, settings) {
		d.ephemeralReply(i, "You need moderator permissions for that.")
		return nil
	}
	return settings
}

func (d *Discord) commandWarn(ctx context.Context, i *discordgo.InteractionCreate) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	settings := d.requireModerator(ctx, i)
	if settings == nil {
		return
	}

	options := discordInteractionOptions(i)
	target := options["user"].UserValue(nil)
	reason := "No reason given"
	if opt, ok := options["reason"]; ok {
		reason = opt.StringValue()
	}
	moderator := getDiscordUser(i)
	if target == nil || moderator == nil {
		return
	}
	if target.Bot {
		d.ephemeralReply(i, "Bots can't be warned. Believe me, I've tried.")
		return
	}

	warning, total, err := d.b.moderation.AddWarning(
		ctx, i.GuildID, target.ID, moderator.ID, reason,
	)
	if err != nil {
		log.ErrorContext(ctx, "error recording warning", tint.Err(err))
		d.ephemeralReply(i, "Something went wrong, try again in a bit.")
		return
	}

	if dm, dmErr := d.session.UserChannelCreate(target.ID); dmErr == nil {
		_, _ = d.session.ChannelMessageSend(
			dm.ID, fmt.Sprintf(
				"You were warned in the server: %s", reason,
			),
		)
	}

	embed := &discordgo.MessageEmbed{
		Title: "Member warned",
		Description: fmt.Sprintf(
			"%s was warned by %s.\n**Reason:** %s\n**Warning #%d** (total: %d)",
			target.Mention(), moderator.Mention(), reason, warning.ID, total,
		),
		Color: embedColorWarning,
	}
	d.embedReply(i, embed, false)
	d.logToChannel(ctx, settings, embed)
}

func (d *Discord) commandUnwarn(ctx context.Context, i *discordgo.InteractionCreate) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	settings := d.requireModerator(ctx, i)
	if settings == nil {
		return
	}

	options := discordInteractionOptions(i)
	warningID := uint(options["id"].IntValue())

	if err := d.b.moderation.RemoveWarning(ctx, i.GuildID, warningID); err != nil {
		log.WarnContext(ctx, "error removing warning", tint.Err(err))
		d.ephemeralReply(
			i, fmt.Sprintf("Couldn't find warning #%d in this server.", warningID),
		)
		return
	}
	d.embedReply(
		i,
		successEmbed("Warning removed", fmt.Sprintf("Removed warning #%d.", warningID)),
		false,
	)
}

func (d *Discord) commandWarnings(ctx context.Context, i *discordgo.InteractionCreate) {
	if d.requireModerator(ctx, i) == nil {
		return
	}

	options := discordInteractionOptions(i)
	target := options["user"].UserValue(nil)
	if target == nil {
		return
	}

	embed, components, err := d.warningsPage(ctx, i.GuildID, target.ID, 0)
	if err != nil {
		log, _ := ContextLogger(ctx)
		if log == nil {
			log = d.logger
		}
		log.ErrorContext(ctx, "error listing warnings", tint.Err(err))
		d.ephemeralReply(i, "Something went wrong, try again in a bit.")
		return
	}
	d.embedReply(i, embed, true, components...)
}

// warningsPage builds one page of a member's warning list. The target
// user ID rides along in the custom ID so page flips stay stateless.
func (d *Discord) warningsPage(
	ctx context.Context,
	guildID string,
	userID string,
	page int,
) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	warnings, err := d.b.moderation.Warnings(ctx, guildID, userID)
	if err != nil {
		return nil, nil, err
	}

	lastPage := 0
	if len(warnings) > 0 {
		lastPage = (len(warnings) - 1) / warningsPageSize
	}
	if page < 0 {
		page = 0
	}
	if page > lastPage {
		page = lastPage
	}

	start := page * warningsPageSize
	end := start + warningsPageSize
	if end > len(warnings) {
		end = len(warnings)
	}

	description := ""
	for _, w := range warnings[start:end] {
		description += fmt.Sprintf(
			"**#%d** <t:%d:R> by <@%s>\n%s\n\n",
			w.ID,
			w.CreatedAt/1000,
			w.ModeratorID,
			w.Reason,
		)
	}
	if description == "" {
		description = "No warnings on record. A model citizen!"
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Warnings",
		Description: fmt.Sprintf("<@%s>\n\n%s", userID, description),
		Color:       embedColorWarning,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf(
				"%d total | Page %d/%d", len(warnings), page+1, lastPage+1,
			),
		},
	}
	components := paginationButtons(
		fmt.Sprintf("%s:%s", warningsCustomIDPrefix, userID), page, lastPage,
	)
	return embed, components, nil
}

// handleWarningsPageButton flips the warnings embed to the requested
// page. Custom ID format: warnings_page:<userID>:<page>.
func (d *Discord) handleWarningsPageButton(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	customID string,
) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	parts := strings.Split(customID, ":")
	if len(parts) != 3 {
		log.WarnContext(ctx, "bad warnings page id", "custom_id", customID)
		return
	}
	userID := parts[1]
	page, err := strconv.Atoi(parts[2])
	if err != nil {
		log.WarnContext(ctx, "bad warnings page id", "custom_id", customID)
		return
	}

	embed, components, err := d.warningsPage(ctx, i.GuildID, userID, page)
	if err != nil {
		log.ErrorContext(ctx, "error building warnings page", tint.Err(err))
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
		log.ErrorContext(ctx, "error updating warnings page", tint.Err(err))
	}
}

func (d *Discord) commandMute(ctx context.Context, i *discordgo.InteractionCreate) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	settings := d.requireModerator(ctx, i)
	if settings == nil {
		return
	}

	options := discordInteractionOptions(i)
	target := options["user"].UserValue(nil)
	if target == nil {
		return
	}

	duration := defaultMuteDuration
	if opt, ok := options["minutes"]; ok && opt.IntValue() > 0 {
		duration = time.Duration(opt.IntValue()) * time.Minute
	}
	reason := ""
	if opt, ok := options["reason"]; ok {
		reason = opt.StringValue()
	}

	until := time.Now().Add(duration)
	if err := d.session.GuildMemberTimeout(i.GuildID, target.ID, &until); err != nil {
		log.ErrorContext(ctx, "error muting member", tint.Err(err))
		d.ephemeralReply(i, "Couldn't mute that member. Check my permissions?")
		return
	}

	description := fmt.Sprintf(
		"%s is muted for %s.", target.Mention(), duration,
	)
	if reason != "" {
		description += fmt.Sprintf("\n**Reason:** %s", reason)
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Member muted",
		Description: description,
		Color:       embedColorWarning,
	}
	d.embedReply(i, embed, false)
	d.logToChannel(ctx, settings, embed)
}

func (d *Discord) commandUnmute(ctx context.Context, i *discordgo.InteractionCreate) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	settings := d.requireModerator(ctx, i)
	if settings == nil {
		return
	}

	options := discordInteractionOptions(i)
	target := options["user"].UserValue(nil)
	if target == nil {
		return
	}

	if err := d.session.GuildMemberTimeout(i.GuildID, target.ID, nil); err != nil {
		log.ErrorContext(ctx, "error unmuting member", tint.Err(err))
		d.ephemeralReply(i, "Couldn't unmute that member. Check my permissions?")
		return
	}

	embed := successEmbed(
		"Member unmuted",
		fmt.Sprintf("%s can speak again.", target.Mention()),
	)
	d.embedReply(i, embed, false)
	d.logToChannel(ctx, settings, embed)
}

func (d *Discord) commandBan(ctx context.Context, i *discordgo.InteractionCreate) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	settings := d.requireModerator(ctx, i)
	if settings == nil {
		return
	}

	options := discordInteractionOptions(i)
	target := options["user"].UserValue(nil)
	if target == nil {
		return
	}
	reason := "No reason given"
	if opt, ok := options["reason"]; ok {
		reason = opt.StringValue()
	}
	deleteDays := 0
	if opt, ok := options["delete-days"]; ok {
		deleteDays = int(opt.IntValue())
		if deleteDays < 0 {
			deleteDays = 0
		}
		if deleteDays > 7 {
			deleteDays = 7
		}
	}

	err := d.session.GuildBanCreateWithReason(
		i.GuildID, target.ID, reason, deleteDays,
	)
	if err != nil {
		log.ErrorContext(ctx, "error banning member", tint.Err(err))
		d.ephemeralReply(i, "Couldn't ban that member. Check my permissions?")
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: "Member banned",
		Description: fmt.Sprintf(
			"%s was banned.\n**Reason:** %s", target.Mention(), reason,
		),
		Color: embedColorError,
	}
	d.embedReply(i, embed, false)
	d.logToChannel(ctx, settings, embed)
}

func (d *Discord) commandUnban(ctx context.Context, i *discordgo.InteractionCreate) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	settings := d.requireModerator(ctx, i)
	if settings == nil {
		return
	}

	options := discordInteractionOptions(i)
	userID := strings.TrimSpace(options["user-id"].StringValue())
	if userID == "" {
		d.ephemeralReply(i, "Provide the user ID to unban.")
		return
	}

	if err := d.session.GuildBanDelete(i.GuildID, userID); err != nil {
		log.ErrorContext(ctx, "error removing ban", tint.Err(err))
		d.ephemeralReply(i, "Couldn't unban that user. Is the ID right?")
		return
	}

	embed := successEmbed(
		"Ban removed", fmt.Sprintf("<@%s> is unbanned.", userID),
	)
	d.embedReply(i, embed, false)
	d.logToChannel(ctx, settings, embed)
}

// commandBannedWords handles the banned-words subcommands.
func (d *Discord) commandBannedWords(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	if d.requireModerator(ctx, i) == nil {
		return
	}

	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]

	word := ""
	if len(sub.Options) > 0 {
		word = sub.Options[0].StringValue()
	}
	moderator := getDiscordUser(i)
	moderatorID := ""
	if moderator != nil {
		moderatorID = moderator.ID
	}

	var err error
	var reply string
	switch sub.Name {
	case "add":
		err = d.b.moderation.AddBannedWord(ctx, i.GuildID, word, moderatorID)
		reply = fmt.Sprintf("Added `%s` to this server's filter.", word)
	case "remove":
		err = d.b.moderation.RemoveBannedWord(ctx, i.GuildID, word)
		reply = fmt.Sprintf("Removed `%s` from this server's filter.", word)
	case "exclude":
		err = d.b.moderation.ExcludeWord(ctx, i.GuildID, word)
		reply = fmt.Sprintf("Excluded `%s` on this server.", word)
	case "include":
		err = d.b.moderation.IncludeWord(ctx, i.GuildID, word)
		reply = fmt.Sprintf("Re-included `%s` on this server.", word)
	case "list":
		words, listErr := d.b.moderation.ListBannedWords(ctx, i.GuildID)
		if listErr != nil {
			err = listErr
			break
		}
		list := strings.Join(words, ", ")
		if list == "" {
			list = "The filter is empty."
		}
		d.embedReply(
			i,
			infoEmbed("Banned words", truncate(list, 4000)),
			true,
		)
		return
	default:
		log.WarnContext(ctx, "unknown banned-words subcommand", "name", sub.Name)
		return
	}

	if err != nil {
		log.ErrorContext(ctx, "error updating banned words", tint.Err(err))
		d.ephemeralReply(i, "Something went wrong, try again in a bit.")
		return
	}
	d.ephemeralReply(i, reply)
}
