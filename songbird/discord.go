package songbird

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// Discord wraps the gateway session and owns event handler
// registration. All outbound calls go through the
// DiscordSessionHandler interface so tests can substitute a stub.
type Discord struct {
	session DiscordSessionHandler
	config  *DiscordConfig
	logger  *slog.Logger

	metricConnects    atomic.Int64
	metricDisconnects atomic.Int64
	connected         atomic.Bool

	discordgoRemoveHandlerFuncs []func()

	// writeDB is assigned during startup, after the database is up;
	// no handler runs before the gateway connects.
	writeDB DBI
	b       *Songbird
}

func newDiscord(b *Songbird) *Discord {
	d := &Discord{
		config:                      b.config.Discord,
		b:                           b,
		discordgoRemoveHandlerFuncs: []func(){},
	}
	d.logger = slog.New(
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     d.config.LogLevel,
				AddSource: true,
			},
		),
	).With(loggerNameKey, "discord")
	return d
}

// newSession initializes the underlying discordgo session with the
// gateway intents the bot actually consumes.
func (d *Discord) newSession() (DiscordSessionHandler, error) {
	session := DiscordSession{
		logger: d.logger.With(loggerNameKey, "discord_session_handler"),
	}
	disc, err := discordgo.New("Bot " + d.config.Token)
	if err != nil {
		return session, fmt.Errorf("error creating discord session: %w", err)
	}
	disc.SyncEvents = true
	disc.StateEnabled = true
	disc.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent
	session.session = disc
	if d.config.httpClient != nil {
		disc.Client = d.config.httpClient
	}

	err = session.SetLogLevel(d.config.DiscordGoLogLevel.Level())
	if err != nil {
		return session, err
	}

	return session, nil
}

// connect opens the gateway connection and registers event handlers.
func (d *Discord) connect(ctx context.Context) error {
	if d.session == nil {
		session, err := d.newSession()
		if err != nil {
			return err
		}
		d.session = session
	}

	d.discordgoRemoveHandlerFuncs = append(
		d.discordgoRemoveHandlerFuncs,
		d.session.AddHandler(d.handlerConnect()),
		d.session.AddHandler(d.handlerDisconnect()),
		d.session.AddHandler(d.handlerReady()),
		d.session.AddHandler(d.handlerMessageCreate(ctx)),
		d.session.AddHandler(d.handlerGuildMemberAdd(ctx)),
		d.session.AddHandler(d.handlerInteractionCreate(ctx)),
	)

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("error opening discord session: %w", err)
	}
	return nil
}

func (d *Discord) handlerConnect() func(*discordgo.Session, *discordgo.Connect) {
	return func(_ *discordgo.Session, _ *discordgo.Connect) {
		d.metricConnects.Add(1)
		d.connected.Store(true)
		d.logger.Info("discord gateway connected")
	}
}

func (d *Discord) handlerDisconnect() func(*discordgo.Session, *discordgo.Disconnect) {
	return func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		d.metricDisconnects.Add(1)
		d.connected.Store(false)
		d.logger.Warn("discord gateway disconnected")
	}
}

func (d *Discord) handlerReady() func(*discordgo.Session, *discordgo.Ready) {
	return func(_ *discordgo.Session, r *discordgo.Ready) {
		d.logger.Info(
			"discord session ready",
			"user", r.User.String(),
			"guilds", len(r.Guilds),
		)
		if d.config.CustomStatus != "" {
			if err := d.session.UpdateCustomStatus(d.config.CustomStatus); err != nil {
				d.logger.Warn("error setting custom status", tint.Err(err))
			}
		}
	}
}

// registerCommands bulk-overwrites the application's slash commands.
func (d *Discord) registerCommands(appID string) error {
	registered, err := d.session.ApplicationCommandBulkOverwrite(
		appID, d.config.GuildID, slashCommands(),
	)
	if err != nil {
		return fmt.Errorf("error registering commands: %w", err)
	}
	names := make([]string, 0, len(registered))
	for _, cmd := range registered {
		names = append(names, cmd.Name)
	}
	d.logger.Info("registered slash commands", "commands", names)
	return nil
}

func (d *Discord) close() {
	for _, removeHandler := range d.discordgoRemoveHandlerFuncs {
		removeHandler()
	}
	d.discordgoRemoveHandlerFuncs = []func(){}
	if d.session == nil {
		return
	}
	if err := d.session.Close(); err != nil {
		d.logger.Warn("error closing discord session", tint.Err(err))
	}
}

// ephemeralReply responds to an interaction with an ephemeral message.
// Errors are logged, not returned: by the time a reply fails there is
// nothing left to tell the user.
func (d *Discord) ephemeralReply(i *discordgo.InteractionCreate, content string) {
	err := d.session.InteractionRespond(
		i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		},
	)
	if err != nil {
		d.logger.Error("error sending ephemeral reply", tint.Err(err))
	}
}

// embedReply responds to an interaction with a single embed.
func (d *Discord) embedReply(
	i *discordgo.InteractionCreate,
	embed *discordgo.MessageEmbed,
	ephemeral bool,
	components ...discordgo.MessageComponent,
) {
	data := &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := d.session.InteractionRespond(
		i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: data,
		},
	)
	if err != nil {
		d.logger.Error("error sending embed reply", tint.Err(err))
	}
}

// logToChannel posts a moderation log embed to the guild's configured
// log channel, if any. Best-effort.
func (d *Discord) logToChannel(
	ctx context.Context,
	settings *GuildSettings,
	embed *discordgo.MessageEmbed,
) {
	if settings == nil || settings.LogChannelID == "" {
		return
	}
	if _, err := d.session.ChannelMessageSendEmbed(settings.LogChannelID, embed); err != nil {
		log, ok := ContextLogger(ctx)
		if log == nil || !ok {
			log = d.logger
		}
		log.WarnContext(ctx, "error posting to log channel", tint.Err(err))
	}
}

// DiscordSessionHandler is the outbound Discord surface the bot uses.
// DiscordSession implements it over a live discordgo session; tests
// implement it directly.
type DiscordSessionHandler interface {
	// Open creates a websocket connection to Discord
	Open() error

	// Close closes the websocket connection to Discord
	Close() error

	AddHandler(handler any) func()

	State() *discordgo.State

	SetLogLevel(lvl slog.Level) error

	// UpdateCustomStatus sets the bot's user status to the given string.
	UpdateCustomStatus(status string) error

	ChannelMessageSend(
		channelID string,
		message string,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ChannelMessageSendEmbed(
		channelID string,
		embed *discordgo.MessageEmbed,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ChannelMessageSendComplex(
		channelID string,
		data *discordgo.MessageSend,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ChannelMessageSendReply(
		channelID string,
		content string,
		reference *discordgo.MessageReference,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ChannelMessageDelete(
		channelID string,
		messageID string,
		options ...discordgo.RequestOption,
	) error

	ChannelTyping(
		channelID string,
		options ...discordgo.RequestOption,
	) error

	GuildMember(
		guildID string,
		userID string,
		options ...discordgo.RequestOption,
	) (*discordgo.Member, error)

	GuildMemberRoleAdd(
		guildID string,
		userID string,
		roleID string,
		options ...discordgo.RequestOption,
	) error

	GuildMemberRoleRemove(
		guildID string,
		userID string,
		roleID string,
		options ...discordgo.RequestOption,
	) error

	// GuildMemberTimeout sets or clears a member's communication
	// timeout. A nil until clears it.
	GuildMemberTimeout(
		guildID string,
		userID string,
		until *time.Time,
		options ...discordgo.RequestOption,
	) error

	GuildBanCreateWithReason(
		guildID string,
		userID string,
		reason string,
		days int,
		options ...discordgo.RequestOption,
	) error

	GuildBanDelete(
		guildID string,
		userID string,
		options ...discordgo.RequestOption,
	) error

	UserChannelCreate(
		recipientID string,
		options ...discordgo.RequestOption,
	) (*discordgo.Channel, error)

	InteractionRespond(
		interaction *discordgo.Interaction,
		resp *discordgo.InteractionResponse,
		options ...discordgo.RequestOption,
	) error

	InteractionResponseEdit(
		interaction *discordgo.Interaction,
		newresp *discordgo.WebhookEdit,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ApplicationCommandBulkOverwrite(
		appID string,
		guildID string,
		commands []*discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) ([]*discordgo.ApplicationCommand, error)
}

// DiscordSession implements DiscordSessionHandler over a live
// discordgo session, logging outbound calls.
type DiscordSession struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func (d DiscordSession) Open() error {
	return d.session.Open()
}

func (d DiscordSession) Close() error {
	return d.session.Close()
}

func (d DiscordSession) AddHandler(handler any) func() {
	return d.session.AddHandler(handler)
}

func (d DiscordSession) State() *discordgo.State {
	return d.session.State
}

// SetLogLevel maps an slog level onto discordgo's logger.
func (d DiscordSession) SetLogLevel(lvl slog.Level) error {
	switch lvl {
	case slog.LevelDebug:
		d.session.LogLevel = discordgo.LogDebug
	case slog.LevelInfo:
		d.session.LogLevel = discordgo.LogInformational
	case slog.LevelWarn:
		d.session.LogLevel = discordgo.LogWarning
	case slog.LevelError:
		d.session.LogLevel = discordgo.LogError
	default:
		return fmt.Errorf("unknown log level: %v", lvl)
	}
	return nil
}

func (d DiscordSession) UpdateCustomStatus(
	status string,
) error {
	return d.session.UpdateCustomStatus(status)
}

func (d DiscordSession) ChannelMessageSend(
	channelID string,
	message string,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	msg, err := d.session.ChannelMessageSend(channelID, message, opts...)
	if err != nil {
		d.logger.Error(
			"error sending message",
			tint.Err(err),
			"channel_id", channelID,
		)
	}
	return msg, err
}

func (d DiscordSession) ChannelMessageSendEmbed(
	channelID string,
	embed *discordgo.MessageEmbed,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	msg, err := d.session.ChannelMessageSendEmbed(channelID, embed, options...)
	if err != nil {
		d.logger.Error(
			"error sending embed",
			tint.Err(err),
			"channel_id", channelID,
		)
	}
	return msg, err
}

func (d DiscordSession) ChannelMessageSendComplex(
	channelID string,
	data *discordgo.MessageSend,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	msg, err := d.session.ChannelMessageSendComplex(channelID, data, options...)
	if err != nil {
		d.logger.Error(
			"error sending complex message",
			tint.Err(err),
			"channel_id", channelID,
		)
	}
	return msg, err
}

func (d DiscordSession) ChannelMessageSendReply(
	channelID string,
	content string,
	reference *discordgo.MessageReference,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	msg, err := d.session.ChannelMessageSendReply(
		channelID, content, reference, options...,
	)
	if err != nil {
		d.logger.Error(
			"error sending message reply",
			tint.Err(err),
			"channel_id", channelID,
		)
	}
	return msg, err
}

func (d DiscordSession) ChannelMessageDelete(
	channelID string,
	messageID string,
	options ...discordgo.RequestOption,
) error {
	err := d.session.ChannelMessageDelete(channelID, messageID, options...)
	if err != nil {
		d.logger.Error(
			"error deleting message",
			tint.Err(err),
			"channel_id", channelID,
			"message_id", messageID,
		)
	}
	return err
}

func (d DiscordSession) ChannelTyping(
	channelID string,
	options ...discordgo.RequestOption,
) error {
	return d.session.ChannelTyping(channelID, options...)
}

func (d DiscordSession) GuildMember(
	guildID string,
	userID string,
	options ...discordgo.RequestOption,
) (*discordgo.Member, error) {
	return d.session.GuildMember(guildID, userID, options...)
}

func (d DiscordSession) GuildMemberRoleAdd(
	guildID string,
	userID string,
	roleID string,
	options ...discordgo.RequestOption,
) error {
	err := d.session.GuildMemberRoleAdd(guildID, userID, roleID, options...)
	if err != nil {
		d.logger.Error(
			"error adding role",
			tint.Err(err),
			"guild_id", guildID,
			"user_id", userID,
			"role_id", roleID,
		)
	} else {
		d.logger.Info(
			"added role",
			"guild_id", guildID,
			"user_id", userID,
			"role_id", roleID,
		)
	}
	return err
}

func (d DiscordSession) GuildMemberRoleRemove(
	guildID string,
	userID string,
	roleID string,
	options ...discordgo.RequestOption,
) error {
	err := d.session.GuildMemberRoleRemove(guildID, userID, roleID, options...)
	if err != nil {
		d.logger.Error(
			"error removing role",
			tint.Err(err),
			"guild_id", guildID,
			"user_id", userID,
			"role_id", roleID,
		)
	}
	return err
}

func (d DiscordSession) GuildMemberTimeout(
	guildID string,
	userID string,
	until *time.Time,
	options ...discordgo.RequestOption,
) error {
	err := d.session.GuildMemberTimeout(guildID, userID, until, options...)
	if err != nil {
		d.logger.Error(
			"error setting member timeout",
			tint.Err(err),
			"guild_id", guildID,
			"user_id", userID,
		)
	}
	return err
}

func (d DiscordSession) GuildBanCreateWithReason(
	guildID string,
	userID string,
	reason string,
	days int,
	options ...discordgo.RequestOption,
) error {
	err := d.session.GuildBanCreateWithReason(
		guildID, userID, reason, days, options...,
	)
	if err != nil {
		d.logger.Error(
			"error banning member",
			tint.Err(err),
			"guild_id", guildID,
			"user_id", userID,
		)
	}
	return err
}

func (d DiscordSession) GuildBanDelete(
	guildID string,
	userID string,
	options ...discordgo.RequestOption,
) error {
	err := d.session.GuildBanDelete(guildID, userID, options...)
	if err != nil {
		d.logger.Error(
			"error removing ban",
			tint.Err(err),
			"guild_id", guildID,
			"user_id", userID,
		)
	}
	return err
}

func (d DiscordSession) UserChannelCreate(
	recipientID string,
	options ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	return d.session.UserChannelCreate(recipientID, options...)
}

func (d DiscordSession) InteractionRespond(
	interaction *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	options ...discordgo.RequestOption,
) error {
	err := d.session.InteractionRespond(interaction, resp, options...)
	if err != nil {
		d.logger.Error("error responding to interaction", tint.Err(err))
	}
	return err
}

func (d DiscordSession) InteractionResponseEdit(
	interaction *discordgo.Interaction,
	newresp *discordgo.WebhookEdit,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	msg, err := d.session.InteractionResponseEdit(interaction, newresp, options...)
	if err != nil {
		d.logger.Error("error editing interaction response", tint.Err(err))
	}
	return msg, err
}

func (d DiscordSession) ApplicationCommandBulkOverwrite(
	appID string,
	guildID string,
	commands []*discordgo.ApplicationCommand,
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	return d.session.ApplicationCommandBulkOverwrite(
		appID, guildID, commands, options...,
	)
}
