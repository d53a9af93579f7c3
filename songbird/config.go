//nolint:lll // struct tags can't be split
package songbird

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	EnvvarSetEnvPrefix = "SONGBIRD_ENV_PREFIX"
	DefaultEnvPrefix   = "SB"

	DefaultDatabaseType          = "sqlite"
	DefaultDatabase              = "songbird.sqlite3"
	DefaultLogLevel              = slog.LevelInfo
	DefaultDatabaseLogLevel      = slog.LevelInfo
	DefaultDiscordLogLevel       = slog.LevelWarn
	DefaultDiscordgoLogLevel     = slog.LevelWarn
	DefaultAILogLevel            = slog.LevelInfo
	DefaultAPILogLevel           = slog.LevelInfo
	DefaultDatabaseSlowThreshold = 200 * time.Millisecond

	DefaultStartupTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 60 * time.Second

	DefaultAPIListen         = "127.0.0.1:5000"
	defaultListenNetwork     = "tcp"
	DefaultReadTimeout       = 5 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 30 * time.Second

	// XP defaults, matching the long-standing community configuration
	DefaultMessageXPMin    = 15
	DefaultMessageXPMax    = 25
	DefaultAttachmentXPMin = 20
	DefaultAttachmentXPMax = 35
	DefaultMaxLevel        = 100
	DefaultXPCooldown      = time.Minute

	DefaultDailyGameCooldown = 24 * time.Hour
	DefaultDailyXPMin        = 50
	DefaultDailyXPMax        = 100

	DefaultAICooldown            = 30 * time.Second
	DefaultAIMaxTokens           = 300
	DefaultAITemperature         = 0.8
	DefaultAITopP                = 0.9
	DefaultAIBaseURL             = "https://openrouter.ai/api/v1"
	DefaultAIRequestsPerSecond   = 1
	DefaultAISimilarityThreshold = 0.8
	DefaultAICacheScanLimit      = 100
	DefaultAICacheIdleTTL        = 30 * 24 * time.Hour
	DefaultAICachePruneInterval  = time.Hour

	DefaultDiscordCustomStatus = "singing to myself"

	// Upstream community list; per-guild words are layered on top.
	DefaultBannedWordListURL = "https://raw.githubusercontent.com/coffee-and-fun/google-profanity-words/main/data/en.txt"

	discordMaxMessageLength = 2000
)

// DefaultAIModels is the ordered candidate list for the model router.
// All are free-tier OpenRouter models; the router rotates through them
// so no single backend takes every request.
var DefaultAIModels = []string{
	"meta-llama/llama-3.2-3b-instruct:free",
	"meta-llama/llama-3.2-1b-instruct:free",
	"qwen/qwen-2.5-7b-instruct:free",
	"google/gemma-2-9b-it:free",
	"microsoft/phi-3-mini-128k-instruct:free",
	"huggingfaceh4/zephyr-7b-beta:free",
	"mistralai/mistral-7b-instruct-v0.1:free",
}

// Config is the top-level Songbird configuration, loaded via viper
// (see cmd/root.go) from flags, environment and optional .env file.
type Config struct {
	// Database connection string, or SQLite file path
	Database string `yaml:"database" mapstructure:"database" json:"database"`

	// DatabaseType specifies the type of database, either 'sqlite' or 'postgres'
	DatabaseType string `yaml:"database_type" mapstructure:"database_type" json:"database_type" binding:"oneof=sqlite postgres"`

	// DatabaseLogLevel sets the log level for database operations
	DatabaseLogLevel *slog.LevelVar `yaml:"database_log_level" mapstructure:"database_log_level" json:"database_log_level"`

	// DatabaseSlowThreshold is the duration threshold for identifying slow database queries
	DatabaseSlowThreshold time.Duration `yaml:"database_slow_threshold" mapstructure:"database_slow_threshold" json:"database_slow_threshold"`

	// Discord configures the Discord bot itself
	Discord *DiscordConfig `yaml:"discord" mapstructure:"discord" json:"discord"`

	// AI configures the persona chat backend (cache + model router)
	AI *AIConfig `yaml:"ai" mapstructure:"ai" json:"ai"`

	// XP configures the leveling engine defaults. Per-guild settings
	// stored in GuildSettings override the ranges and cooldown.
	XP *XPConfig `yaml:"xp" mapstructure:"xp" json:"xp"`

	// API configures the admin/status API server
	API *APIConfig `yaml:"api" mapstructure:"api" json:"api"`

	// Moderation configures banned-word filtering
	Moderation *ModerationConfig `yaml:"moderation" mapstructure:"moderation" json:"moderation"`

	// LogLevel is the base log level, for the default logger
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// StartupTimeout bounds bot initialization. If exceeded, startup aborts.
	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout" json:"startup_timeout"`

	// ShutdownTimeout is the time allowed for graceful shutdown before
	// connections are force-closed.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	HTTPClient *http.Client `log:"[redacted]"`
}

func (c Config) LogValue() slog.Value {
	return structToSlogValue(c)
}

// DiscordConfig configures the discord bot itself.
//
//nolint:lll // can't break tags
type DiscordConfig struct {
	// Discord bot token (from the 'Bot' tab in the discord dev portal)
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" binding:"required"`

	// Discord application ID (from the 'General Information' tab in the discord dev portal)
	ApplicationID string `yaml:"application_id" mapstructure:"application_id" json:"application_id" binding:"required"`

	// GuildID specifies the guild ID used when registering slash commands.
	// Leave empty for commands to be registered as global.
	GuildID string `yaml:"guild_id" mapstructure:"guild_id" json:"guild_id"`

	// Base discord logging level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Log level for the `discordgo` library's logger
	DiscordGoLogLevel *slog.LevelVar `yaml:"discordgo_log_level" mapstructure:"discordgo_log_level" json:"discordgo_log_level"`

	// CustomStatus is set as the bot user's status on connect
	CustomStatus string `yaml:"custom_status" mapstructure:"custom_status" json:"custom_status"`

	httpClient *http.Client
}

// AIConfig configures the persona chat layer: the response cache,
// the model router, and the OpenRouter client.
//
//nolint:lll // can't break tags
type AIConfig struct {
	// OpenRouter API token
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" binding:"required"`

	// BaseURL is the OpenAI-compatible endpoint to send completions to
	BaseURL string `yaml:"base_url" mapstructure:"base_url" json:"base_url" binding:"required,url"`

	// Models is the ordered candidate list for the model router
	Models []string `yaml:"models" mapstructure:"models" json:"models" binding:"required,min=1"`

	// MaxTokens caps completion length
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens" json:"max_tokens" binding:"min=1"`

	Temperature float32 `yaml:"temperature" mapstructure:"temperature" json:"temperature"`
	TopP        float32 `yaml:"top_p" mapstructure:"top_p" json:"top_p"`

	// SimilarityThreshold is the minimum token-set Jaccard score for a
	// fuzzy cache hit. Scores must be strictly greater than this value.
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold" json:"similarity_threshold" binding:"min=0,max=1"`

	// CacheScanLimit bounds the fuzzy-match candidate scan to the N
	// most-used cache entries
	CacheScanLimit int `yaml:"cache_scan_limit" mapstructure:"cache_scan_limit" json:"cache_scan_limit" binding:"min=1"`

	// CacheIdleTTL is how long an unused cache entry survives before the
	// pruner removes it
	CacheIdleTTL time.Duration `yaml:"cache_idle_ttl" mapstructure:"cache_idle_ttl" json:"cache_idle_ttl"`

	// CachePruneInterval is how often the idle-TTL sweep runs
	CachePruneInterval time.Duration `yaml:"cache_prune_interval" mapstructure:"cache_prune_interval" json:"cache_prune_interval"`

	// Cooldown is the per-user minimum interval between persona replies
	Cooldown time.Duration `yaml:"cooldown" mapstructure:"cooldown" json:"cooldown"`

	// RequestsPerSecond limits outbound backend calls
	RequestsPerSecond int `yaml:"requests_per_second" mapstructure:"requests_per_second" json:"requests_per_second" binding:"min=1"`

	// AI base log level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`
}

// XPConfig holds process-wide leveling defaults. The inclusive
// [Min, Max] ranges are the uniform draw bounds for each gain.
type XPConfig struct {
	MessageXPMin    int           `yaml:"message_xp_min" mapstructure:"message_xp_min" json:"message_xp_min" binding:"min=1"`
	MessageXPMax    int           `yaml:"message_xp_max" mapstructure:"message_xp_max" json:"message_xp_max" binding:"gtefield=MessageXPMin"`
	AttachmentXPMin int           `yaml:"attachment_xp_min" mapstructure:"attachment_xp_min" json:"attachment_xp_min" binding:"min=1"`
	AttachmentXPMax int           `yaml:"attachment_xp_max" mapstructure:"attachment_xp_max" json:"attachment_xp_max" binding:"gtefield=AttachmentXPMin"`
	Cooldown        time.Duration `yaml:"cooldown" mapstructure:"cooldown" json:"cooldown"`
	MaxLevel        int           `yaml:"max_level" mapstructure:"max_level" json:"max_level" binding:"min=1"`

	DailyCooldown time.Duration `yaml:"daily_cooldown" mapstructure:"daily_cooldown" json:"daily_cooldown"`
	DailyXPMin    int           `yaml:"daily_xp_min" mapstructure:"daily_xp_min" json:"daily_xp_min" binding:"min=1"`
	DailyXPMax    int           `yaml:"daily_xp_max" mapstructure:"daily_xp_max" json:"daily_xp_max" binding:"gtefield=DailyXPMin"`
}

// APIConfig configures the admin/status API server
//
//nolint:lll // can't break tags
type APIConfig struct {
	// Enabled determines whether the API server is started at all
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`

	// The address and port on which the server should listen (e.g., "127.0.0.1:5000")
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen" binding:"required_if=Enabled true,hostname|filepath"`

	// The network type for listening (e.g., "tcp", "tcp4", "tcp6", "unix")
	ListenNetwork string `yaml:"listen_network" mapstructure:"listen_network" json:"listen_network" binding:"required_if=Enabled true,oneof=tcp tcp4 tcp6 unix"`

	// Token is the bearer token required on /api routes
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" binding:"required_if=Enabled true"`

	// The logging level for the API server
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Cross-origin configuration
	CORS CORSConfig `yaml:"cors" mapstructure:"cors" json:"cors"`

	ReadTimeout       time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout" binding:"required_if=Enabled true,min=1s"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout" json:"read_header_timeout" binding:"required_if=Enabled true,min=1s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout" binding:"required_if=Enabled true,min=1s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout" binding:"required_if=Enabled true,min=1s"`
}

// ModerationConfig configures banned-word filtering.
type ModerationConfig struct {
	// WordListURL is fetched at startup to seed the global banned-word
	// list. Fetch failures are logged and tolerated.
	WordListURL string `yaml:"word_list_url" mapstructure:"word_list_url" json:"word_list_url"`

	// FetchWordList disables the startup fetch entirely when false
	FetchWordList bool `yaml:"fetch_word_list" mapstructure:"fetch_word_list" json:"fetch_word_list"`
}

// CORSConfig specifies cross-origin resource sharing settings
type CORSConfig struct {
	AllowOrigins     []string      `yaml:"allow_origins" mapstructure:"allow_origins" json:"allow_origins"`
	AllowMethods     []string      `yaml:"allow_methods" mapstructure:"allow_methods" json:"allow_methods"`
	AllowHeaders     []string      `yaml:"allow_headers" mapstructure:"allow_headers" json:"allow_headers"`
	ExposeHeaders    []string      `yaml:"expose_headers" mapstructure:"expose_headers" json:"expose_headers"`
	AllowCredentials bool          `yaml:"allow_credentials" mapstructure:"allow_credentials" json:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age" mapstructure:"max_age" json:"max_age"`
}

var (
	DefaultCORSAllowMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodOptions,
		http.MethodHead,
	}
	DefaultCORSAllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Accept",
		"Authorization",
		"Cache-Control",
	}
	DefaultCORSExposeHeaders = []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
	}
	DefaultCORSMaxAge = 12 * time.Hour
)

func DefaultCORSConfig() CORSConfig {
	defaultMethods := make([]string, len(DefaultCORSAllowMethods))
	copy(defaultMethods, DefaultCORSAllowMethods)

	defaultHeaders := make([]string, len(DefaultCORSAllowHeaders))
	copy(defaultHeaders, DefaultCORSAllowHeaders)

	defaultExpose := make([]string, len(DefaultCORSExposeHeaders))
	copy(defaultExpose, DefaultCORSExposeHeaders)

	return CORSConfig{
		AllowOrigins:  []string{},
		AllowMethods:  defaultMethods,
		AllowHeaders:  defaultHeaders,
		ExposeHeaders: defaultExpose,
		MaxAge:        DefaultCORSMaxAge,
	}
}

// DefaultConfig returns a Config with all default settings populated
func DefaultConfig() *Config {
	mainLogLevel := &slog.LevelVar{}
	aiLogLevel := &slog.LevelVar{}
	discordLogLevel := &slog.LevelVar{}
	discordgoLogLevel := &slog.LevelVar{}
	dbLogLevel := &slog.LevelVar{}
	apiLogLevel := &slog.LevelVar{}

	mainLogLevel.Set(DefaultLogLevel)
	aiLogLevel.Set(DefaultAILogLevel)
	discordLogLevel.Set(DefaultDiscordLogLevel)
	discordgoLogLevel.Set(DefaultDiscordgoLogLevel)
	dbLogLevel.Set(DefaultDatabaseLogLevel)
	apiLogLevel.Set(DefaultAPILogLevel)

	models := make([]string, len(DefaultAIModels))
	copy(models, DefaultAIModels)

	return &Config{
		DatabaseType:          DefaultDatabaseType,
		Database:              DefaultDatabase,
		DatabaseLogLevel:      dbLogLevel,
		DatabaseSlowThreshold: DefaultDatabaseSlowThreshold,
		LogLevel:              mainLogLevel,
		StartupTimeout:        DefaultStartupTimeout,
		ShutdownTimeout:       DefaultShutdownTimeout,
		Discord: &DiscordConfig{
			LogLevel:          discordLogLevel,
			DiscordGoLogLevel: discordgoLogLevel,
			CustomStatus:      DefaultDiscordCustomStatus,
		},
		AI: &AIConfig{
			BaseURL:             DefaultAIBaseURL,
			Models:              models,
			MaxTokens:           DefaultAIMaxTokens,
			Temperature:         DefaultAITemperature,
			TopP:                DefaultAITopP,
			SimilarityThreshold: DefaultAISimilarityThreshold,
			CacheScanLimit:      DefaultAICacheScanLimit,
			CacheIdleTTL:        DefaultAICacheIdleTTL,
			CachePruneInterval:  DefaultAICachePruneInterval,
			Cooldown:            DefaultAICooldown,
			RequestsPerSecond:   DefaultAIRequestsPerSecond,
			LogLevel:            aiLogLevel,
		},
		XP: &XPConfig{
			MessageXPMin:    DefaultMessageXPMin,
			MessageXPMax:    DefaultMessageXPMax,
			AttachmentXPMin: DefaultAttachmentXPMin,
			AttachmentXPMax: DefaultAttachmentXPMax,
			Cooldown:        DefaultXPCooldown,
			MaxLevel:        DefaultMaxLevel,
			DailyCooldown:   DefaultDailyGameCooldown,
			DailyXPMin:      DefaultDailyXPMin,
			DailyXPMax:      DefaultDailyXPMax,
		},
		API: &APIConfig{
			Listen:            DefaultAPIListen,
			ListenNetwork:     defaultListenNetwork,
			LogLevel:          apiLogLevel,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ReadTimeout:       DefaultReadTimeout,
			WriteTimeout:      DefaultWriteTimeout,
			IdleTimeout:       DefaultIdleTimeout,
			CORS:              DefaultCORSConfig(),
		},
		Moderation: &ModerationConfig{
			WordListURL:   DefaultBannedWordListURL,
			FetchWordList: true,
		},
	}
}
