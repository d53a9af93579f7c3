package cmd

import (
	"context"
	"fmt"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/songbird-discord/songbird/songbird"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"testing"
)

var (
	cfg        = songbird.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use: "songbird [flags]",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := viper.Unmarshal(
			cfg,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					LevelToStringHookFunc(),
				),
			),
		)
		if err != nil {
			log.Fatalln(err)
		}
	},
}

func getLogLevel(level string) (slog.Level, error) {
	switch level {
	case slog.LevelDebug.String():
		return slog.LevelDebug, nil
	case slog.LevelInfo.String():
		return slog.LevelInfo, nil
	case slog.LevelWarn.String():
		return slog.LevelWarn, nil
	case slog.LevelError.String():
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

func LevelToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t.Kind() != reflect.Ptr {
			return data, nil
		}

		typ := t.Elem()

		if typ != reflect.TypeOf(slog.LevelVar{}) {
			return data, nil
		}
		lvl, err := getLogLevel(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s", data)
		}
		lvlVar := &slog.LevelVar{}
		lvlVar.Set(lvl)
		return lvlVar, nil
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer func() {
		signal.Stop(signals)
		cancel()
	}()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			//
		}
	}()
	err := rootCmd.ExecuteContext(ctx)
	fmt.Println(err)
	if err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	if configFile == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
	} else {
		fmt.Println("loading env from file", configFile)
		if err := godotenv.Load(configFile); err != nil {
			log.Println("No .env file found")
		}
	}

	viper.SetDefault("database", songbird.DefaultDatabase)
	viper.SetDefault("database_type", songbird.DefaultDatabaseType)
	viper.SetDefault(
		"database_slow_threshold",
		songbird.DefaultDatabaseSlowThreshold,
	)
	viper.SetDefault(
		"database_log_level",
		songbird.DefaultDatabaseLogLevel.String(),
	)

	viper.SetDefault("log_level", songbird.DefaultLogLevel.String())

	viper.SetDefault("startup_timeout", songbird.DefaultStartupTimeout)
	viper.SetDefault("shutdown_timeout", songbird.DefaultShutdownTimeout)

	// Discord config
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.application_id", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault("discord.custom_status", songbird.DefaultDiscordCustomStatus)
	viper.SetDefault(
		"discord.log_level",
		songbird.DefaultDiscordLogLevel.String(),
	)
	viper.SetDefault(
		"discord.discordgo_log_level",
		songbird.DefaultDiscordgoLogLevel.String(),
	)

	// AI config
	viper.SetDefault("ai.token", "")
	viper.SetDefault("ai.base_url", songbird.DefaultAIBaseURL)
	viper.SetDefault("ai.models", songbird.DefaultAIModels)
	viper.SetDefault("ai.max_tokens", songbird.DefaultAIMaxTokens)
	viper.SetDefault("ai.temperature", songbird.DefaultAITemperature)
	viper.SetDefault("ai.top_p", songbird.DefaultAITopP)
	viper.SetDefault(
		"ai.similarity_threshold",
		songbird.DefaultAISimilarityThreshold,
	)
	viper.SetDefault("ai.cache_scan_limit", songbird.DefaultAICacheScanLimit)
	viper.SetDefault("ai.cache_idle_ttl", songbird.DefaultAICacheIdleTTL)
	viper.SetDefault(
		"ai.cache_prune_interval",
		songbird.DefaultAICachePruneInterval,
	)
	viper.SetDefault("ai.cooldown", songbird.DefaultAICooldown)
	viper.SetDefault(
		"ai.requests_per_second",
		songbird.DefaultAIRequestsPerSecond,
	)
	viper.SetDefault("ai.log_level", songbird.DefaultAILogLevel.String())

	// XP config
	viper.SetDefault("xp.message_xp_min", songbird.DefaultMessageXPMin)
	viper.SetDefault("xp.message_xp_max", songbird.DefaultMessageXPMax)
	viper.SetDefault("xp.attachment_xp_min", songbird.DefaultAttachmentXPMin)
	viper.SetDefault("xp.attachment_xp_max", songbird.DefaultAttachmentXPMax)
	viper.SetDefault("xp.cooldown", songbird.DefaultXPCooldown)
	viper.SetDefault("xp.max_level", songbird.DefaultMaxLevel)
	viper.SetDefault("xp.daily_cooldown", songbird.DefaultDailyGameCooldown)
	viper.SetDefault("xp.daily_xp_min", songbird.DefaultDailyXPMin)
	viper.SetDefault("xp.daily_xp_max", songbird.DefaultDailyXPMax)

	// Moderation config
	viper.SetDefault(
		"moderation.word_list_url",
		songbird.DefaultBannedWordListURL,
	)
	viper.SetDefault("moderation.fetch_word_list", true)

	// API config
	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.listen", songbird.DefaultAPIListen)
	viper.SetDefault("api.listen_network", "tcp")
	viper.SetDefault("api.token", "")
	viper.SetDefault("api.log_level", songbird.DefaultAPILogLevel.String())
	viper.SetDefault("api.read_timeout", songbird.DefaultReadTimeout)
	viper.SetDefault(
		"api.read_header_timeout",
		songbird.DefaultReadHeaderTimeout,
	)
	viper.SetDefault("api.write_timeout", songbird.DefaultWriteTimeout)
	viper.SetDefault("api.idle_timeout", songbird.DefaultIdleTimeout)

	// API: CORS config
	viper.SetDefault(
		"api.cors.allow_headers",
		songbird.DefaultCORSAllowHeaders,
	)
	viper.SetDefault(
		"api.cors.allow_methods",
		songbird.DefaultCORSAllowMethods,
	)
	viper.SetDefault(
		"api.cors.expose_headers",
		songbird.DefaultCORSExposeHeaders,
	)
	viper.SetDefault(
		"api.cors.allow_origins",
		[]string{},
	)
	viper.SetDefault("api.cors.max_age", songbird.DefaultCORSMaxAge)
	viper.SetDefault("api.cors.allow_credentials", false)

	envPrefix := os.Getenv(songbird.EnvvarSetEnvPrefix)
	if envPrefix == "" {
		envPrefix = songbird.DefaultEnvPrefix
	}
	viper.SetEnvPrefix(envPrefix)

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	// Convert values to correct types
	viper.Set("ai.models", viper.GetStringSlice("ai.models"))
	viper.Set(
		"api.cors.allow_headers",
		viper.GetStringSlice("api.cors.allow_headers"),
	)
	viper.Set(
		"api.cors.allow_origins",
		viper.GetStringSlice("api.cors.allow_origins"),
	)
	viper.Set(
		"api.cors.allow_methods",
		viper.GetStringSlice("api.cors.allow_methods"),
	)
	viper.Set(
		"api.cors.expose_headers",
		viper.GetStringSlice("api.cors.expose_headers"),
	)

	logLevelVar, err := levelStringToLevelVar(viper.GetString("log_level"))
	if err != nil {
		log.Fatalf("error parsing log_level: %v", err)
	}
	viper.Set("log_level", logLevelVar)

	logLevelVar, err = levelStringToLevelVar(viper.GetString("discord.log_level"))
	if err != nil {
		log.Fatalf("error parsing discord log level: %v", err)
	}
	viper.Set("discord.log_level", logLevelVar)

	logLevelVar, err = levelStringToLevelVar(viper.GetString("ai.log_level"))
	if err != nil {
		log.Fatalf("error parsing ai log level: %v", err)
	}
	viper.Set("ai.log_level", logLevelVar)

	logLevelVar, err = levelStringToLevelVar(viper.GetString("discord.discordgo_log_level"))
	if err != nil {
		log.Fatalf("error parsing discordgo log level: %v", err)
	}
	viper.Set("discord.discordgo_log_level", logLevelVar)

	logLevelVar, err = levelStringToLevelVar(viper.GetString("database_log_level"))
	if err != nil {
		log.Fatalf("error parsing database log level: %v", err)
	}
	viper.Set("database_log_level", logLevelVar)

	logLevelVar, err = levelStringToLevelVar(viper.GetString("api.log_level"))
	if err != nil {
		log.Fatalf("error parsing api log level: %v", err)
	}
	viper.Set("api.log_level", logLevelVar)
}

func assertLogLevel(t testing.TB, expected slog.Level, v any) {
	t.Helper()

	lvl, ok := v.(*slog.LevelVar)
	require.Truef(t, ok, "could not convert %#v (%T) to *slog.LevelVar", v, v)
	assert.Equal(t, expected, lvl.Level())
}

func levelStringToLevelVar(lvl string) (*slog.LevelVar, error) {
	level := &slog.LevelVar{}
	err := level.UnmarshalText([]byte(lvl))
	return level, err
}

//goland:noinspection GoLinter,GoLinter
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Config file to use",
	)
}
