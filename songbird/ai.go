package songbird

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// personaSystemPrompt keeps Calliope in character. Sent as the system
// message on every completion request.
const personaSystemPrompt = `You are Calliope Wren, an indie singer-songwriter ` +
	`chatting with fans on a community Discord server. You are warm, a little ` +
	`wry, and you talk like a real person, not an assistant. You love late-night ` +
	`writing sessions, analog synths, thrifted jackets, and strong coffee. ` +
	`Keep replies short (a few sentences at most), conversational, and in ` +
	`character at all times. Never mention being an AI, a language model, or ` +
	`a bot. If asked something you wouldn't know, deflect playfully the way ` +
	`a touring musician would.`

// fallbackPhrases are sent, chosen at random, when every backend model
// fails. In-character so an outage reads as Calliope being Calliope.
var fallbackPhrases = []string{
	"sorry, I was humming and missed that. say it again?",
	"my head's still in the studio... run that by me once more?",
	"hold that thought, soundcheck is eating my brain right now.",
	"ask me after this coffee kicks in, promise I'll have a better answer.",
	"the tour bus wifi is doing its thing again. one more time?",
	"I drifted off mid-lyric, what were we talking about?",
}

var (
	errEmptyCompletion    = errors.New("completion returned no content")
	errNoModelsConfigured = errors.New("no candidate models configured")
)

// AIResult is the outcome of a persona query. Content is always
// non-empty: a fallback phrase when Success is false.
type AIResult struct {
	// Success is false only when every candidate model failed and
	// Content is a canned fallback
	Success bool `json:"success"`

	Content string `json:"content"`

	// Model that produced the response, empty on fallback
	Model string `json:"model,omitempty"`

	// Cached indicates the response came from the answer cache rather
	// than a live completion
	Cached bool `json:"cached"`
}

// AIClient is the completion surface of the backend client, split out
// so tests can substitute a scripted implementation.
type AIClient interface {
	CreateChatCompletion(
		ctx context.Context,
		request openai.ChatCompletionRequest,
	) (openai.ChatCompletionResponse, error)
}

// AI serves persona queries: answer cache in front, and behind it a
// rotating router over the configured candidate models.
type AI struct {
	client         AIClient
	config         *AIConfig
	logger         *slog.Logger
	requestLimiter *rate.Limiter

	// rotation drives round-robin model ordering. Incremented once per
	// backend query; each request derives its starting offset from it,
	// so concurrent requests never share mutable ordering state.
	rotation atomic.Uint64

	db      *gorm.DB
	writeDB DBI
}

func newAI(b *Songbird, httpClient *http.Client) *AI {
	config := b.config.AI
	a := &AI{
		config:  config,
		db:      b.db,
		writeDB: b.writeDB,
	}
	a.logger = slog.New(
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     config.LogLevel,
				AddSource: true,
			},
		),
	).With(loggerNameKey, "ai")

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultAIRequestsPerSecond
	}
	a.requestLimiter = rate.NewLimiter(rate.Limit(rps), rps)

	clientCfg := openai.DefaultConfig(config.Token)
	clientCfg.BaseURL = config.BaseURL
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	a.client = openai.NewClientWithConfig(clientCfg)

	return a
}

// rotatedModels returns the candidate models starting at the current
// rotation offset, wrapping around, and advances the offset. Spreads
// load across the free-tier models instead of hammering the first.
func (a *AI) rotatedModels() []string {
	models := a.config.Models
	if len(models) == 0 {
		return nil
	}
	start := int(a.rotation.Add(1)-1) % len(models)
	rotated := make([]string, 0, len(models))
	for i := range models {
		rotated = append(rotated, models[(start+i)%len(models)])
	}
	return rotated
}

func fallbackPhrase() string {
	return fallbackPhrases[rand.Intn(len(fallbackPhrases))]
}

// Respond answers a persona query. Cache first; on a miss, each
// candidate model is tried in rotated order until one returns a
// non-empty completion. Total failure yields an in-character fallback,
// never an error.
func (a *AI) Respond(ctx context.Context, question string) AIResult {
	log, ok := ContextLogger(ctx)
	if log == nil || !ok {
		log = a.logger
		ctx = WithLogger(ctx, log)
	}

	if entry, hit := a.findCachedResponse(ctx, question); hit {
		return AIResult{
			Success: true,
			Content: entry.Response,
			Model:   entry.Model,
			Cached:  true,
		}
	}

	content, model, err := a.generateResponse(ctx, question)
	if err != nil {
		log.ErrorContext(
			ctx,
			"all candidate models failed, sending fallback",
			tint.Err(err),
		)
		return AIResult{Success: false, Content: fallbackPhrase()}
	}

	a.cacheResponse(ctx, question, content, model)
	return AIResult{Success: true, Content: content, Model: model}
}

// generateResponse tries each candidate model sequentially and returns
// the first non-empty completion. The returned error wraps the last
// failure when every model was exhausted.
func (a *AI) generateResponse(
	ctx context.Context,
	question string,
) (string, string, error) {
	log, ok := ContextLogger(ctx)
	if log == nil || !ok {
		log = a.logger
	}

	var lastErr error
	for _, model := range a.rotatedModels() {
		if err := a.requestLimiter.Wait(ctx); err != nil {
			return "", "", err
		}

		started := time.Now()
		resp, err := a.client.CreateChatCompletion(
			ctx, openai.ChatCompletionRequest{
				Model: model,
				Messages: []openai.ChatCompletionMessage{
					{
						Role:    openai.ChatMessageRoleSystem,
						Content: personaSystemPrompt,
					},
					{
						Role:    openai.ChatMessageRoleUser,
						Content: question,
					},
				},
				MaxTokens:   a.config.MaxTokens,
				Temperature: a.config.Temperature,
				TopP:        a.config.TopP,
			},
		)
		duration := time.Since(started)

		if err != nil {
			log.WarnContext(
				ctx,
				"completion failed, trying next model",
				"model", model,
				"duration", duration,
				tint.Err(err),
			)
			lastErr = err
			continue
		}

		content := ""
		if len(resp.Choices) > 0 {
			content = strings.TrimSpace(resp.Choices[0].Message.Content)
		}
		if content == "" {
			log.WarnContext(
				ctx,
				"completion returned no content, trying next model",
				"model", model,
				"duration", duration,
			)
			lastErr = errEmptyCompletion
			continue
		}

		log.InfoContext(
			ctx,
			"completion succeeded",
			"model", model,
			"duration", duration,
			"content_length", len(content),
		)
		return content, model, nil
	}

	if lastErr == nil {
		lastErr = errNoModelsConfigured
	}
	return "", "", lastErr
}
