package songbird

import (
	"context"
	"errors"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedAIClient returns canned results per model, recording the
// models it was asked for.
type scriptedAIClient struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	requested []string
}

func (c *scriptedAIClient) CreateChatCompletion(
	_ context.Context,
	request openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	c.mu.Lock()
	c.requested = append(c.requested, request.Model)
	c.mu.Unlock()

	if err, ok := c.errs[request.Model]; ok {
		return openai.ChatCompletionResponse{}, err
	}
	content := c.responses[request.Model]
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}, nil
}

func (c *scriptedAIClient) requestedModels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.requested...)
}

func TestRotatedModels(t *testing.T) {
	t.Parallel()

	a := newTestAI(t)
	a.config.Models = []string{"model-a", "model-b", "model-c"}

	assert.Equal(
		t,
		[]string{"model-a", "model-b", "model-c"},
		a.rotatedModels(),
	)
	assert.Equal(
		t,
		[]string{"model-b", "model-c", "model-a"},
		a.rotatedModels(),
	)
	assert.Equal(
		t,
		[]string{"model-c", "model-a", "model-b"},
		a.rotatedModels(),
	)

	// wraps back around
	assert.Equal(
		t,
		[]string{"model-a", "model-b", "model-c"},
		a.rotatedModels(),
	)

	a.config.Models = nil
	assert.Nil(t, a.rotatedModels())
}

func TestRespond(t *testing.T) {
	t.Parallel()

	a := newTestAI(t)
	a.config.Models = []string{"model-a"}
	a.client = &scriptedAIClient{
		responses: map[string]string{"model-a": "Oh, I love that one."},
	}

	result := a.Respond(context.Background(), "do you like playing live?")
	assert.True(t, result.Success)
	assert.False(t, result.Cached)
	assert.Equal(t, "Oh, I love that one.", result.Content)
	assert.Equal(t, "model-a", result.Model)

	// the answer was cached; the same question now hits the cache
	result = a.Respond(context.Background(), "do you like playing live?")
	assert.True(t, result.Success)
	assert.True(t, result.Cached)
	assert.Equal(t, "Oh, I love that one.", result.Content)
}

func TestRespondFallsBackToNextModel(t *testing.T) {
	t.Parallel()

	a := newTestAI(t)
	a.config.Models = []string{"model-a", "model-b", "model-c"}
	client := &scriptedAIClient{
		errs: map[string]error{
			"model-a": errors.New("rate limited"),
		},
		responses: map[string]string{
			"model-b": "",
			"model-c": "Here at last.",
		},
	}
	a.client = client

	result := a.Respond(context.Background(), "what's next for you?")
	assert.True(t, result.Success)
	assert.Equal(t, "Here at last.", result.Content)
	assert.Equal(t, "model-c", result.Model)

	// failed model, empty-content model, then the winner
	assert.Equal(
		t,
		[]string{"model-a", "model-b", "model-c"},
		client.requestedModels(),
	)
}

func TestRespondNeverErrors(t *testing.T) {
	t.Parallel()

	a := newTestAI(t)
	a.config.Models = []string{"model-a", "model-b"}
	a.client = &scriptedAIClient{
		errs: map[string]error{
			"model-a": errors.New("boom"),
			"model-b": errors.New("also boom"),
		},
	}

	result := a.Respond(context.Background(), "are you there?")
	assert.False(t, result.Success)
	assert.False(t, result.Cached)
	assert.Empty(t, result.Model)
	assert.Contains(t, fallbackPhrases, result.Content)

	// a total failure must not poison the cache
	var count int64
	require.NoError(t, a.db.Model(&AICache{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRespondNoModelsConfigured(t *testing.T) {
	t.Parallel()

	a := newTestAI(t)
	a.config.Models = nil
	a.client = &scriptedAIClient{}

	result := a.Respond(context.Background(), "hello?")
	assert.False(t, result.Success)
	assert.Contains(t, fallbackPhrases, result.Content)
}

func TestFallbackPhrase(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		assert.Contains(t, fallbackPhrases, fallbackPhrase())
	}
}
