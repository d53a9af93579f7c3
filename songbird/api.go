package songbird

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/lmittmann/tint"
)

const (
	apiPathHealth           = "/health"
	apiPathStatus           = "/api/status"
	apiPathGuildLeaderboard = "/api/guilds/:guild_id/leaderboard"
	apiPathAICacheStats     = "/api/aicache/stats"
	apiPathQuit             = "/api/quit"
)

var structValidator = validator.New()

// API is the admin/status HTTP server: health and status endpoints, a
// read-only leaderboard, cache statistics, and remote shutdown. All
// /api routes require the configured bearer token.
type API struct {
	config     *APIConfig
	httpServer *http.Server
	listener   net.Listener
	engine     *gin.Engine
	logger     *slog.Logger

	b *Songbird
}

func newAPI(b *Songbird, config *APIConfig) (*API, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	api := &API{
		config: config,
		engine: r,
		b:      b,
	}
	api.logger = slog.New(
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     config.LogLevel,
				AddSource: true,
			},
		),
	).With(loggerNameKey, "api")

	r.Use(api.requestLogger(), gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowOrigins,
		AllowMethods:     config.CORS.AllowMethods,
		AllowHeaders:     config.CORS.AllowHeaders,
		ExposeHeaders:    config.CORS.ExposeHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           config.CORS.MaxAge,
	}
	if len(corsConfig.AllowOrigins) > 0 {
		r.Use(cors.New(corsConfig))
	}

	r.GET(apiPathHealth, api.healthCheck)

	authed := r.Group("/", api.requireBearerToken())
	authed.GET(apiPathStatus, api.statusHandler)
	authed.GET(apiPathGuildLeaderboard, api.leaderboardHandler)
	authed.GET(apiPathAICacheStats, api.aiCacheStatsHandler)
	authed.POST(apiPathQuit, api.quitHandler)

	api.httpServer = &http.Server{
		Handler:           r,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	return api, nil
}

// Serve listens on the configured address and serves until the
// listener closes.
func (a *API) Serve(ctx context.Context) error {
	if a.listener == nil {
		listenCfg := &net.ListenConfig{}
		ln, err := listenCfg.Listen(ctx, a.config.ListenNetwork, a.config.Listen)
		if err != nil {
			return err
		}
		a.listener = ln
	}
	a.logger.Info("api listening", "address", a.listener.Addr().String())
	return a.httpServer.Serve(a.listener)
}

// Shutdown stops the HTTP server, waiting for in-flight requests up to
// the context deadline.
func (a *API) Shutdown(ctx context.Context) {
	if a.httpServer == nil {
		return
	}
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Warn("error shutting down api server", tint.Err(err))
	}
}

// requestLogger logs each request with its status and duration.
func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		a.logger.Info(
			"request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(started),
			"client_ip", c.ClientIP(),
		)
	}
}

// requireBearerToken rejects requests without the configured token.
func (a *API) requireBearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare(
			[]byte(token), []byte(a.config.Token),
		) != 1 {
			c.AbortWithStatusJSON(
				http.StatusUnauthorized,
				gin.H{"error": "unauthorized"},
			)
			return
		}
		c.Next()
	}
}

func (a *API) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusHandler reports uptime, build info, and gateway counters.
func (a *API) statusHandler(c *gin.Context) {
	connected := false
	var connects, disconnects int64
	if a.b.discord != nil {
		connected = a.b.discord.connected.Load()
		connects = a.b.discord.metricConnects.Load()
		disconnects = a.b.discord.metricDisconnects.Load()
	}
	c.JSON(
		http.StatusOK, gin.H{
			"version":    Version,
			"commit":     CommitSHA,
			"build_time": BuildTime,
			"uptime":     a.b.Uptime().String(),
			"started_at": a.b.startedAt,
			"discord": gin.H{
				"connected":   connected,
				"connects":    connects,
				"disconnects": disconnects,
			},
		},
	)
}

// leaderboardHandler returns one page of a guild's leaderboard.
// Query params: limit (default 10, max 100) and offset.
func (a *API) leaderboardHandler(c *gin.Context) {
	guildID := c.Param("guild_id")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	members, err := Leaderboard(
		c.Request.Context(), a.b.writeDB.DB(), guildID, limit, offset,
	)
	if err != nil {
		a.logger.Error("error loading leaderboard", tint.Err(err))
		c.JSON(
			http.StatusInternalServerError,
			gin.H{"error": "error loading leaderboard"},
		)
		return
	}
	total, err := MemberCount(c.Request.Context(), a.b.writeDB.DB(), guildID)
	if err != nil {
		a.logger.Error("error counting members", tint.Err(err))
	}
	c.JSON(
		http.StatusOK, gin.H{
			"guild_id": guildID,
			"total":    total,
			"members":  members,
		},
	)
}

func (a *API) aiCacheStatsHandler(c *gin.Context) {
	stats, err := a.b.ai.CacheStats(c.Request.Context())
	if err != nil {
		a.logger.Error("error loading cache stats", tint.Err(err))
		c.JSON(
			http.StatusInternalServerError,
			gin.H{"error": "error loading cache stats"},
		)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// quitHandler triggers a graceful shutdown of every instance sharing
// the database.
func (a *API) quitHandler(c *gin.Context) {
	a.logger.Warn("shutdown requested via api", "client_ip", c.ClientIP())
	ctx, cancel := context.WithTimeout(
		context.Background(), dbNotifierSendTimeout,
	)
	go func() {
		defer cancel()
		// notify peers sharing the database, then stop locally (the
		// postgres listener filters out its own notifications)
		a.b.dbNotifier.Stop(ctx)
		select {
		case a.b.signalStop <- struct{}{}:
		case <-ctx.Done():
		}
	}()
	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}
