package songbird

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	// Version is the release version, set at build time
	Version = "dev"

	// CommitSHA is the git commit the binary was built from
	CommitSHA = ""

	// BuildTime is the UTC build timestamp
	BuildTime = ""
)

const cooldownSweepInterval = 10 * time.Minute

// Songbird is the top-level bot: it owns the database, the Discord
// session, the persona layer, the moderation layer, and the admin API,
// and coordinates their startup and shutdown.
type Songbird struct {
	config     *Config
	logger     *slog.Logger
	logHandler slog.Handler

	db         *gorm.DB
	writeDB    DBI
	dbNotifier DBNotifier

	discord    *Discord
	ai         *AI
	moderation *Moderation
	api        *API

	xpCooldowns CooldownStore
	aiCooldowns CooldownStore

	// sweepable holds the in-memory cooldown stores so their idle
	// entries get swept; injected CooldownStore implementations manage
	// their own lifecycle
	sweepable []*memoryCooldownStore

	// signalStop triggers a graceful shutdown (interrupt, /api/quit,
	// or a stop NOTIFY from another instance)
	signalStop chan struct{}

	// signalReady is sent on once startup completes
	signalReady chan struct{}

	// triggerSettingsRefreshCh receives guild IDs whose settings rows
	// changed elsewhere and should be dropped from the local cache
	triggerSettingsRefreshCh chan string

	startedAt time.Time
	runMu     sync.Mutex
}

// New creates a Songbird instance from the given config. Database and
// Discord connections are deferred until Run.
func New(config *Config) (*Songbird, error) {
	var errs []error

	switch config.DatabaseType {
	case dbTypeSQLite, dbTypePostgres:
		//
	default:
		errs = append(
			errs,
			errors.New("invalid database type (must be 'sqlite' or 'postgres')"),
		)
	}

	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	b := &Songbird{
		config:                   config,
		signalReady:              make(chan struct{}, 1),
		triggerSettingsRefreshCh: make(chan string, 1),
	}

	b.logHandler = tint.NewHandler(
		defaultLogWriter, &tint.Options{
			Level:     config.LogLevel,
			AddSource: true,
		},
	)
	b.logger = slog.New(b.logHandler)
	slog.SetDefault(b.logger)

	xpStore := newMemoryCooldownStore()
	aiStore := newMemoryCooldownStore()
	b.xpCooldowns = xpStore
	b.aiCooldowns = aiStore
	b.sweepable = []*memoryCooldownStore{xpStore, aiStore}

	config.Discord.httpClient = config.HTTPClient

	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     config.Discord.DiscordGoLogLevel,
				AddSource: true,
			},
		).WithAttrs([]slog.Attr{slog.String(loggerNameKey, "discordgo")}),
	)

	b.discord = newDiscord(b)

	api, err := newAPI(b, config.API)
	if err != nil {
		errs = append(errs, err)
	}
	b.api = api

	return b, errors.Join(errs...)
}

func (b *Songbird) ValidateConfig() error {
	return structValidator.Struct(b.config)
}

// Run starts the bot and blocks until the context is canceled or a
// stop signal arrives, then shuts down gracefully.
func (b *Songbird) Run(ctx context.Context) error {
	// prevents concurrent runs
	b.runMu.Lock()
	defer b.runMu.Unlock()

	b.signalStop = make(chan struct{}, 1)
	b.startedAt = time.Now()
	logger := b.logger

	if err := b.ValidateConfig(); err != nil {
		logger.Error("invalid config", tint.Err(err))
		return err
	}

	notifier, err := newDBNotifier(b)
	if err != nil {
		logger.Error("error creating db notifier", tint.Err(err))
		return err
	}
	b.dbNotifier = notifier

	ctx = WithLogger(ctx, logger)
	logger.LogAttrs(ctx, slog.LevelInfo, "starting", slog.Any("config", b.config))

	if b.signalReady == nil {
		b.signalReady = make(chan struct{}, 1)
	}

	// runtime context: canceling it triggers a graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-b.signalStop:
			logger.Warn("got stop signal, canceling")
			cancel()
		case <-ctx.Done():
			logger.Warn("context canceled, sending stop signal")
			b.signalStop <- struct{}{}
		}
	}()

	startCtx, startCancel := context.WithTimeout(ctx, b.config.StartupTimeout)
	initErr := make(chan error, 1)
	go func() {
		initErr <- b.initRun(startCtx)
	}()

	select {
	case <-startCtx.Done():
		startCancel()
		return fmt.Errorf("startup cancelled or timed out")
	case err = <-initErr:
		startCancel()
		if err != nil {
			logger.ErrorContext(ctx, "init error", tint.Err(err))
			return err
		}
	}

	runtime, runtimeCtx := errgroup.WithContext(ctx)

	if b.config.API.Enabled {
		runtime.Go(
			func() error {
				httpErr := b.api.Serve(runtimeCtx)
				if httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
					logger.ErrorContext(
						runtimeCtx, "error serving api", tint.Err(httpErr),
					)
					return httpErr
				}
				return nil
			},
		)
	}

	runtime.Go(
		func() error {
			b.watchSettingsRefresh(runtimeCtx)
			return nil
		},
	)

	runtime.Go(
		func() error {
			b.runCachePruner(runtimeCtx)
			return nil
		},
	)

	for _, store := range b.sweepable {
		store := store
		runtime.Go(
			func() error {
				store.runSweeper(runtimeCtx, cooldownSweepInterval)
				return nil
			},
		)
	}

	if channel := b.dbNotifier.GuildSettingsChannelName(); channel != "" {
		runtime.Go(
			func() error {
				if e := b.dbNotifier.Listen(runtimeCtx, channel); e != nil {
					logger.ErrorContext(
						runtimeCtx,
						"error listening to settings channel",
						tint.Err(e),
					)
				}
				return nil
			},
		)
	}
	if channel := b.dbNotifier.StopChannelName(); channel != "" {
		runtime.Go(
			func() error {
				if e := b.dbNotifier.Listen(runtimeCtx, channel); e != nil {
					logger.ErrorContext(
						runtimeCtx,
						"error listening to stop channel",
						tint.Err(e),
					)
				}
				return nil
			},
		)
	}

	b.signalReady <- struct{}{}
	logger.InfoContext(ctx, "sent ready signal")

	// block until something cancels the runtime context - generally an
	// interrupt, or the /api/quit endpoint
	<-ctx.Done()

	shutdownErr := b.shutdown()
	if waitErr := runtime.Wait(); waitErr != nil &&
		!errors.Is(waitErr, context.Canceled) {
		logger.Warn("runtime error during shutdown", tint.Err(waitErr))
	}
	return shutdownErr
}

// initRun brings up the database-backed components and the Discord
// session, bounded by the startup timeout.
func (b *Songbird) initRun(ctx context.Context) error {
	db, err := CreateDB(ctx, b.config.DatabaseType, b.config.Database)
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	b.db = db
	b.writeDB = NewDatabase(
		db,
		b.logger,
		b.config.XP,
		b.config.DatabaseType == dbTypePostgres,
	)

	b.ai = newAI(b, b.config.HTTPClient)
	b.moderation = newModeration(b)
	b.moderation.FetchWordList(ctx)

	b.discord.writeDB = b.writeDB

	if err = b.discord.connect(ctx); err != nil {
		return err
	}
	if err = b.discord.registerCommands(b.config.Discord.ApplicationID); err != nil {
		return err
	}
	return nil
}

// watchSettingsRefresh drops cached guild settings when another
// instance reports a change.
func (b *Songbird) watchSettingsRefresh(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case guildID := <-b.triggerSettingsRefreshCh:
			b.logger.Info("refreshing guild settings", "guild_id", guildID)
			b.writeDB.InvalidateGuildSettings(guildID)
		}
	}
}

// runCachePruner periodically evicts idle answer-cache entries.
func (b *Songbird) runCachePruner(ctx context.Context) {
	interval := b.config.AI.CachePruneInterval
	if interval <= 0 || b.config.AI.CacheIdleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.ai.PruneCache(ctx); err != nil {
				b.logger.WarnContext(ctx, "error pruning ai cache", tint.Err(err))
			}
		}
	}
}

// shutdown closes the Discord session, the API listener, and the
// database connection, bounded by the shutdown timeout.
func (b *Songbird) shutdown() error {
	b.logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(
		context.Background(), b.config.ShutdownTimeout,
	)
	defer cancel()

	done := make(chan struct{}, 1)
	go func() {
		b.discord.close()
		if b.api != nil {
			b.api.Shutdown(ctx)
		}
		if b.db != nil {
			if sqlDB, err := b.db.DB(); err == nil {
				if closeErr := sqlDB.Close(); closeErr != nil {
					b.logger.Warn("error closing database", tint.Err(closeErr))
				}
			}
		}
		done <- struct{}{}
	}()

	select {
	case <-done:
		b.logger.Info("shutdown complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out")
	}
}

// Uptime reports how long the bot has been running.
func (b *Songbird) Uptime() time.Duration {
	if b.startedAt.IsZero() {
		return 0
	}
	return time.Since(b.startedAt)
}
