package songbird

import (
	"context"
	"log/slog"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLogger(t *testing.T) {
	t.Parallel()

	_, ok := ContextLogger(context.Background())
	assert.False(t, ok)

	logger := slog.Default().With("test_name", t.Name())
	ctx := WithLogger(context.Background(), logger)

	got, ok := ContextLogger(ctx)
	assert.True(t, ok)
	assert.Same(t, logger, got)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hel", truncate("hello", 3))
	assert.Equal(t, "", truncate("", 5))

	// counts runes, not bytes
	assert.Equal(t, "héll", truncate("héllo", 4))
}

func TestChunkItems(t *testing.T) {
	t.Parallel()

	chunks := chunkItems(2, "a", "b", "c", "d", "e")
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"a", "b"}, chunks[0])
	assert.Equal(t, []string{"c", "d"}, chunks[1])
	assert.Equal(t, []string{"e"}, chunks[2])

	assert.Nil(t, chunkItems[string](5))
}

func TestMessageMentionsUser(t *testing.T) {
	t.Parallel()

	msg := &discordgo.Message{
		Mentions: []*discordgo.User{{ID: "bot-1"}, {ID: "user-2"}},
	}
	assert.True(t, messageMentionsUser(msg, "bot-1"))
	assert.False(t, messageMentionsUser(msg, "user-9"))
	assert.False(t, messageMentionsUser(nil, "bot-1"))
}

func TestStripBotMention(t *testing.T) {
	t.Parallel()

	assert.Equal(
		t,
		"how are you?",
		stripBotMention("<@bot-1> how are you?", "bot-1"),
	)
	assert.Equal(
		t,
		"how are you?",
		stripBotMention("how are you? <@!bot-1>", "bot-1"),
	)
	assert.Equal(t, "", stripBotMention("<@bot-1>", "bot-1"))
	assert.Equal(
		t,
		"plain message",
		stripBotMention("plain message", "bot-1"),
	)
}

func TestGetDiscordUser(t *testing.T) {
	t.Parallel()

	user := &discordgo.User{ID: "user-1"}

	// DM interactions carry the user directly
	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{User: user},
	}
	assert.Same(t, user, getDiscordUser(i))

	// guild interactions carry it on the member
	i = &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{User: user},
		},
	}
	assert.Same(t, user, getDiscordUser(i))
}
