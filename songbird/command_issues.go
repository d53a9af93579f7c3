package songbird

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// commandIssues handles the issues subcommands. Reporting and viewing
// your own issues is open to everyone; list and update are moderator
// only.
func (d *Discord) commandIssues(ctx context.Context, i *discordgo.InteractionCreate) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]

	switch sub.Name {
	case "report":
		d.issueReport(ctx, i, sub)
	case "my-issues":
		d.issueMyIssues(ctx, i)
	case "list":
		d.issueList(ctx, i, sub)
	case "update":
		d.issueUpdate(ctx, i, sub)
	default:
		log.WarnContext(ctx, "unknown issues subcommand", "name", sub.Name)
	}
}

func (d *Discord) issueReport(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	sub *discordgo.ApplicationCommandInteractionDataOption,
) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	user := getDiscordUser(i)
	if user == nil {
		return
	}
	var title, description string
	for _, opt := range sub.Options {
		switch opt.Name {
		case "title":
			title = opt.StringValue()
		case "description":
			description = opt.StringValue()
		}
	}

	issue, err := d.b.moderation.ReportIssue(
		ctx, i.GuildID, user.ID, user.Username, title, description,
	)
	if err != nil {
		log.ErrorContext(ctx, "error recording issue", tint.Err(err))
		d.ephemeralReply(i, "Something went wrong, try again in a bit.")
		return
	}

	d.embedReply(
		i, &discordgo.MessageEmbed{
			Title: "Issue reported",
			Description: "Thanks! A moderator will take a look soon.\n" +
				"Use `/issues my-issues` to track your reports.",
			Color: embedColorSuccess,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "ID", Value: fmt.Sprintf("#%d", issue.ID), Inline: true},
				{Name: "Title", Value: issue.Title, Inline: true},
				{
					Name:   "Status",
					Value:  issueStatusEmoji(issue.Status) + " " + issue.Status,
					Inline: true,
				},
			},
		}, true,
	)
}

func (d *Discord) issueMyIssues(ctx context.Context, i *discordgo.InteractionCreate) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	user := getDiscordUser(i)
	if user == nil {
		return
	}

	issues, err := d.b.moderation.MemberIssues(ctx, i.GuildID, user.ID)
	if err != nil {
		log.ErrorContext(ctx, "error loading issues", tint.Err(err))
		d.ephemeralReply(i, "Something went wrong, try again in a bit.")
		return
	}
	if len(issues) == 0 {
		d.embedReply(
			i,
			infoEmbed("Your issues", "You haven't reported any issues yet."),
			true,
		)
		return
	}

	description := ""
	for _, issue := range issues {
		description += fmt.Sprintf(
			"%s **%s**\n#%d | %s\n",
			issueStatusEmoji(issue.Status), issue.Title, issue.ID, issue.Status,
		)
		if issue.ModNotes != "" {
			description += fmt.Sprintf("📝 %s\n", issue.ModNotes)
		}
		description += "\n"
	}

	d.embedReply(
		i, &discordgo.MessageEmbed{
			Title:       "Your reported issues",
			Description: truncate(description, 4000),
			Color:       embedColorPrimary,
			Footer: &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf("Showing %d most recent issues", len(issues)),
			},
		}, true,
	)
}

func (d *Discord) issueList(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	sub *discordgo.ApplicationCommandInteractionDataOption,
) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	if d.requireModerator(ctx, i) == nil {
		return
	}

	status := IssueStatusOpen
	if len(sub.Options) > 0 {
		status = sub.Options[0].StringValue()
	}

	issues, err := d.b.moderation.Issues(ctx, i.GuildID, status)
	if err != nil {
		log.ErrorContext(ctx, "error loading issues", tint.Err(err))
		d.ephemeralReply(i, "Something went wrong, try again in a bit.")
		return
	}
	if len(issues) == 0 {
		d.embedReply(
			i,
			infoEmbed("Issues", fmt.Sprintf("No %s issues found.", status)),
			true,
		)
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Issues — %s", status),
		Color: embedColorPrimary,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d total", len(issues)),
		},
	}
	for _, issue := range issues {
		if len(embed.Fields) == 25 {
			break
		}
		embed.Fields = append(
			embed.Fields, &discordgo.MessageEmbedField{
				Name: fmt.Sprintf(
					"%s #%d %s",
					issueStatusEmoji(issue.Status), issue.ID, issue.Title,
				),
				Value: fmt.Sprintf(
					"By %s | <t:%d:R>\n%s",
					issue.Username,
					issue.CreatedAt/1000,
					truncate(issue.Description, 100),
				),
			},
		)
	}
	d.embedReply(i, embed, true)
}

func (d *Discord) issueUpdate(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	sub *discordgo.ApplicationCommandInteractionDataOption,
) {
	log, _ := ContextLogger(ctx)
	if log == nil {
		log = d.logger
	}

	if d.requireModerator(ctx, i) == nil {
		return
	}
	moderator := getDiscordUser(i)
	if moderator == nil {
		return
	}

	var issueID uint
	var status, notes string
	for _, opt := range sub.Options {
		switch opt.Name {
		case "id":
			issueID = uint(opt.IntValue())
		case "status":
			status = opt.StringValue()
		case "notes":
			notes = opt.StringValue()
		}
	}

	issue, err := d.b.moderation.UpdateIssueStatus(
		ctx, i.GuildID, issueID, status, notes, moderator.ID,
	)
	if err != nil {
		log.WarnContext(ctx, "error updating issue", tint.Err(err))
		d.embedReply(
			i,
			errorEmbed(fmt.Sprintf("Couldn't find issue #%d in this server.", issueID)),
			true,
		)
		return
	}

	d.embedReply(
		i, successEmbed(
			"Issue updated",
			fmt.Sprintf(
				"**%s** is now %s %s.",
				issue.Title, issueStatusEmoji(issue.Status), issue.Status,
			),
		), true,
	)

	// let the reporter know, if their DMs are open
	if dm, dmErr := d.session.UserChannelCreate(issue.UserID); dmErr == nil {
		body := fmt.Sprintf(
			"Your issue \"%s\" is now %s.", issue.Title, issue.Status,
		)
		if issue.ModNotes != "" {
			body += fmt.Sprintf("\nModerator notes: %s", issue.ModNotes)
		}
		_, _ = d.session.ChannelMessageSend(dm.ID, body)
	}
}
