package songbird

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const boosterColorCustomIDPrefix = "booster_color"

// BoosterColorMessage tracks a posted color-picker message so button
// interactions can be matched back to the guild that posted it.
//
//nolint:lll // struct tags can't be split
type BoosterColorMessage struct {
	ModelUintID
	GuildID   string `json:"guild_id" gorm:"index;type:string"`
	ChannelID string `json:"channel_id" gorm:"type:string"`
	MessageID string `json:"message_id" gorm:"uniqueIndex;type:string"`
	ModelUnixTime
}

// addBoosterColorRole appends a role to the settings' color list.
// Returns false when the role is already configured.
func addBoosterColorRole(settings *GuildSettings, roleID string) bool {
	for _, existing := range settings.BoosterColorRoles {
		if existing == roleID {
			return false
		}
	}
	settings.BoosterColorRoles = append(settings.BoosterColorRoles, roleID)
	return true
}

// removeBoosterColorRole drops a role from the settings' color list.
// Returns false when the role wasn't configured.
func removeBoosterColorRole(settings *GuildSettings, roleID string) bool {
	for idx, existing := range settings.BoosterColorRoles {
		if existing == roleID {
			settings.BoosterColorRoles = append(
				settings.BoosterColorRoles[:idx],
				settings.BoosterColorRoles[idx+1:]...,
			)
			return true
		}
	}
	return false
}

// boosterColorComponents builds one button per configured color role.
// Role IDs are encoded in the custom ID so the component handler needs
// no lookup. Discord caps an action row at five buttons.
func boosterColorComponents(
	session DiscordSessionHandler,
	guildID string,
	roleIDs []string,
) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for _, chunk := range chunkItems(5, roleIDs...) {
		var row discordgo.ActionsRow
		for _, roleID := range chunk {
			label := roleID
			if role, err := session.State().Role(guildID, roleID); err == nil {
				label = role.Name
			}
			row.Components = append(
				row.Components, discordgo.Button{
					Label:    label,
					Style:    discordgo.SecondaryButton,
					CustomID: fmt.Sprintf("%s:%s", boosterColorCustomIDPrefix, roleID),
				},
			)
		}
		rows = append(rows, row)
	}
	return rows
}

// PostBoosterColorPicker sends the color-picker message to the guild's
// configured channel and records it for interaction routing.
func (d *Discord) PostBoosterColorPicker(
	ctx context.Context,
	settings *GuildSettings,
) (*discordgo.Message, error) {
	if len(settings.BoosterColorRoles) == 0 {
		return nil, fmt.Errorf("no booster color roles configured")
	}
	channelID := settings.BoosterColorsChannelID
	if channelID == "" {
		return nil, fmt.Errorf("no booster colors channel configured")
	}

	msg, err := d.session.ChannelMessageSendComplex(
		channelID, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title: "Booster colors",
					Description: "Server boosters: pick a name color below. " +
						"Choosing a new color replaces your current one.",
					Color: embedColorPrimary,
				},
			},
			Components: boosterColorComponents(
				d.session, settings.GuildID, settings.BoosterColorRoles,
			),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("error posting color picker: %w", err)
	}

	record := &BoosterColorMessage{
		GuildID:   settings.GuildID,
		ChannelID: channelID,
		MessageID: msg.ID,
	}
	if _, err = d.writeDB.Create(ctx, record); err != nil {
		d.logger.WarnContext(
			ctx,
			"error recording color picker message",
			tint.Err(err),
		)
	}
	return msg, nil
}

// handleBoosterColorButton processes a color-picker button press:
// verifies the member boosts the server, removes any other configured
// color role, and grants the chosen one. Re-pressing the current color
// removes it.
func (d *Discord) handleBoosterColorButton(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	customID string,
) {
	log, ok := ContextLogger(ctx)
	if log == nil || !ok {
		log = d.logger
	}

	roleID := strings.TrimPrefix(customID, boosterColorCustomIDPrefix+":")
	member := i.Member
	if member == nil {
		return
	}

	settings, err := d.writeDB.GetGuildSettings(ctx, i.GuildID)
	if err != nil {
		log.ErrorContext(ctx, "error loading guild settings", tint.Err(err))
		d.ephemeralReply(i, "Something went wrong, try again in a bit.")
		return
	}

	if !isBooster(member, settings) {
		d.ephemeralReply(
			i, "Name colors are a perk for server boosters. Boost to unlock them!",
		)
		return
	}

	configured := map[string]struct{}{}
	for _, id := range settings.BoosterColorRoles {
		configured[id] = struct{}{}
	}
	if _, valid := configured[roleID]; !valid {
		d.ephemeralReply(i, "That color isn't available anymore.")
		return
	}

	hadRole := memberHasRole(member, roleID)

	// drop every other configured color first so only one applies
	for _, existing := range member.Roles {
		if _, isColor := configured[existing]; !isColor {
			continue
		}
		err = d.session.GuildMemberRoleRemove(i.GuildID, member.User.ID, existing)
		if err != nil {
			log.WarnContext(
				ctx,
				"error removing color role",
				"role_id", existing,
				tint.Err(err),
			)
		}
	}

	if hadRole {
		d.ephemeralReply(i, "Color removed. Back to basics!")
		return
	}

	if err = d.session.GuildMemberRoleAdd(i.GuildID, member.User.ID, roleID); err != nil {
		log.ErrorContext(ctx, "error adding color role", tint.Err(err))
		d.ephemeralReply(i, "Couldn't set that color, try again in a bit.")
		return
	}
	d.ephemeralReply(i, fmt.Sprintf("You're now wearing <@&%s>. Looks good!", roleID))
}
