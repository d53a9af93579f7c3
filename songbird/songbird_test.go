package songbird

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDiscordSession implements DiscordSessionHandler without a
// gateway connection, recording outbound calls by name.
type stubDiscordSession struct {
	mu    sync.Mutex
	calls []string
	state *discordgo.State
}

func newStubDiscordSession() *stubDiscordSession {
	return &stubDiscordSession{state: discordgo.NewState()}
}

func (s *stubDiscordSession) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
}

func (s *stubDiscordSession) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.calls...)
}

func (s *stubDiscordSession) Open() error {
	s.record("Open")
	return nil
}

func (s *stubDiscordSession) Close() error {
	s.record("Close")
	return nil
}

func (s *stubDiscordSession) AddHandler(any) func() {
	s.record("AddHandler")
	return func() {}
}

func (s *stubDiscordSession) State() *discordgo.State {
	return s.state
}

func (s *stubDiscordSession) SetLogLevel(slog.Level) error {
	return nil
}

func (s *stubDiscordSession) UpdateCustomStatus(string) error {
	s.record("UpdateCustomStatus")
	return nil
}

func (s *stubDiscordSession) ChannelMessageSend(
	string, string, ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.record("ChannelMessageSend")
	return &discordgo.Message{}, nil
}

func (s *stubDiscordSession) ChannelMessageSendEmbed(
	string, *discordgo.MessageEmbed, ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.record("ChannelMessageSendEmbed")
	return &discordgo.Message{}, nil
}

func (s *stubDiscordSession) ChannelMessageSendComplex(
	string, *discordgo.MessageSend, ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.record("ChannelMessageSendComplex")
	return &discordgo.Message{}, nil
}

func (s *stubDiscordSession) ChannelMessageSendReply(
	string, string, *discordgo.MessageReference, ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.record("ChannelMessageSendReply")
	return &discordgo.Message{}, nil
}

func (s *stubDiscordSession) ChannelMessageDelete(
	string, string, ...discordgo.RequestOption,
) error {
	s.record("ChannelMessageDelete")
	return nil
}

func (s *stubDiscordSession) ChannelTyping(
	string, ...discordgo.RequestOption,
) error {
	return nil
}

func (s *stubDiscordSession) GuildMember(
	string, string, ...discordgo.RequestOption,
) (*discordgo.Member, error) {
	s.record("GuildMember")
	return &discordgo.Member{}, nil
}

func (s *stubDiscordSession) GuildMemberRoleAdd(
	string, string, string, ...discordgo.RequestOption,
) error {
	s.record("GuildMemberRoleAdd")
	return nil
}

func (s *stubDiscordSession) GuildMemberRoleRemove(
	string, string, string, ...discordgo.RequestOption,
) error {
	s.record("GuildMemberRoleRemove")
	return nil
}

func (s *stubDiscordSession) GuildMemberTimeout(
	string, string, *time.Time, ...discordgo.RequestOption,
) error {
	s.record("GuildMemberTimeout")
	return nil
}

func (s *stubDiscordSession) GuildBanCreateWithReason(
	string, string, string, int, ...discordgo.RequestOption,
) error {
	s.record("GuildBanCreateWithReason")
	return nil
}

func (s *stubDiscordSession) GuildBanDelete(
	string, string, ...discordgo.RequestOption,
) error {
	s.record("GuildBanDelete")
	return nil
}

func (s *stubDiscordSession) UserChannelCreate(
	string, ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	s.record("UserChannelCreate")
	return &discordgo.Channel{ID: "dm-channel"}, nil
}

func (s *stubDiscordSession) InteractionRespond(
	*discordgo.Interaction, *discordgo.InteractionResponse, ...discordgo.RequestOption,
) error {
	s.record("InteractionRespond")
	return nil
}

func (s *stubDiscordSession) InteractionResponseEdit(
	*discordgo.Interaction, *discordgo.WebhookEdit, ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.record("InteractionResponseEdit")
	return &discordgo.Message{}, nil
}

func (s *stubDiscordSession) ApplicationCommandBulkOverwrite(
	_ string,
	_ string,
	commands []*discordgo.ApplicationCommand,
	_ ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	s.record("ApplicationCommandBulkOverwrite")
	return commands, nil
}

func TestInitRunWiresDiscordDatabase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DatabaseType = dbTypeSQLite
	cfg.Database = filepath.Join(t.TempDir(), "songbird.sqlite3")
	cfg.API.Enabled = false
	cfg.Moderation.FetchWordList = false
	cfg.Discord.Token = "test-token"
	cfg.Discord.ApplicationID = "app-1"

	bot, err := New(cfg)
	require.NoError(t, err)

	stub := newStubDiscordSession()
	bot.discord.session = stub

	ctx := context.Background()
	require.NoError(t, bot.initRun(ctx))
	t.Cleanup(
		func() {
			if sqlDB, dbErr := bot.db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
		},
	)

	assert.Contains(t, stub.Calls(), "Open")
	assert.Contains(t, stub.Calls(), "ApplicationCommandBulkOverwrite")

	// handlers read the database through the gateway component, so its
	// handle must be the one initRun created
	require.NotNil(t, bot.discord.writeDB)
	assert.Same(t, bot.writeDB, bot.discord.writeDB)

	// a plain guild message runs the full pipeline: settings load, word
	// filter, XP award
	handler := bot.discord.handlerMessageCreate(ctx)
	handler(
		&discordgo.Session{}, &discordgo.MessageCreate{
			Message: &discordgo.Message{
				ID:        "msg-1",
				GuildID:   "guild-1",
				ChannelID: "chan-1",
				Content:   "hello there",
				Author:    &discordgo.User{ID: "user-1", Username: "songfan"},
			},
		},
	)

	member, created, err := bot.writeDB.GetOrCreateMember(
		ctx, "guild-1", "user-1", "songfan",
	)
	require.NoError(t, err)
	assert.False(t, created, "message handler should have created the member")
	assert.Positive(t, member.TotalXP)
}
