package songbird

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"
)

const (
	postgresNotifyChannelGuildSettings = "songbird_reload_guild_settings"
	postgresNotifyChannelStop          = "songbird_stop"
	recordSeparator                    = string(rune(30))
)

var dbNotifierSendTimeout = 15 * time.Second

// DBNotifier propagates events between bot instances sharing a
// database: guild settings updates (so stale caches get dropped) and
// stop signals. The postgres implementation uses LISTEN/NOTIFY; the
// sqlite implementation only signals within the local process, since a
// sqlite file has exactly one writer process anyway.
type DBNotifier interface {
	GuildSettingsChannelName() string

	// GuildSettingsUpdated announces that the settings row for the
	// given guild changed and caches should be invalidated
	GuildSettingsUpdated(ctx context.Context, guildID string) bool

	StopChannelName() string

	// Stop sends a shutdown signal to all bots
	Stop(context.Context) bool

	// ID returns the identifier for this notifier. DBNotifier instances
	// should use this ID to filter out their own notifications.
	ID() string
	Listen(ctx context.Context, channel string) error
}

func newDBNotifier(b *Songbird) (DBNotifier, error) {
	notifyID, err := generateRandomHexString(16)
	if err != nil {
		return nil, err
	}
	log := b.logger.With(loggerNameKey, "db_notifier")
	var notifier DBNotifier
	switch b.config.DatabaseType {
	case dbTypeSQLite:
		notifier = &sqliteNotifier{
			logger:         log,
			b:              b,
			sqliteNotifyID: notifyID,
		}
	case dbTypePostgres:
		notifier = &postgresNotifier{
			b:          b,
			logger:     log,
			pgNotifyID: notifyID,
		}
	default:
		return nil, errors.New("invalid database type")
	}
	return notifier, nil
}

func generateRandomHexString(byteLen int) (string, error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

type sqliteNotifier struct {
	logger         *slog.Logger
	b              *Songbird
	sqliteNotifyID string
}

func (s *sqliteNotifier) Listen(_ context.Context, channel string) error {
	s.logger.Debug("listener called", "channel", channel)
	return nil
}

func (sqliteNotifier) StopChannelName() string {
	return ""
}

func (s *sqliteNotifier) Stop(ctx context.Context) bool {
	s.logger.Info("notifying stop signal")
	select {
	case s.b.signalStop <- struct{}{}:
	//
	case <-ctx.Done():
		s.logger.Warn("timeout sending stop signal")
		return false
	}
	return true
}

func (sqliteNotifier) GuildSettingsChannelName() string {
	return ""
}

func (s *sqliteNotifier) GuildSettingsUpdated(ctx context.Context, guildID string) bool {
	s.logger.Info("got guild settings update notification", "guild_id", guildID)
	select {
	case s.b.triggerSettingsRefreshCh <- guildID:
	//
	case <-ctx.Done():
		s.logger.Warn("timeout sending settings refresh", "guild_id", guildID)
		return false
	}
	return true
}

func (s *sqliteNotifier) ID() string {
	return s.sqliteNotifyID
}

type postgresNotifier struct {
	b          *Songbird
	logger     *slog.Logger
	pgNotifyID string
}

func (postgresNotifier) GuildSettingsChannelName() string {
	return postgresNotifyChannelGuildSettings
}

func (postgresNotifier) StopChannelName() string {
	return postgresNotifyChannelStop
}

func (p *postgresNotifier) ID() string {
	return p.pgNotifyID
}

func (p *postgresNotifier) Stop(ctx context.Context) bool {
	var sent bool

	notifyErr := p.b.writeDB.DB().WithContext(ctx).Exec(
		"SELECT pg_notify(?, ?)",
		p.StopChannelName(),
		p.ID(),
	).Error
	if notifyErr != nil {
		p.logger.ErrorContext(ctx, "Error sending NOTIFY to stop bot", tint.Err(notifyErr))
	} else {
		p.logger.Info("sent stop signal", "pg_notify_id", p.ID())
		sent = true
	}

	return sent
}

func (p *postgresNotifier) GuildSettingsUpdated(ctx context.Context, guildID string) bool {
	var sent bool

	msg := newGuildSettingsNotificationMessage(p.ID(), guildID)

	notifyErr := p.b.writeDB.DB().WithContext(ctx).Exec(
		"SELECT pg_notify(?, ?)",
		p.GuildSettingsChannelName(),
		msg,
	).Error
	if notifyErr != nil {
		p.logger.ErrorContext(
			ctx,
			"Error sending NOTIFY for guild settings update",
			tint.Err(notifyErr),
			"guild_id", guildID,
		)
	} else {
		p.logger.Info(
			"sent guild settings update notification",
			"pg_notify_id", p.ID(),
			"guild_id", guildID,
			"message", msg,
		)
		sent = true
	}

	return sent
}

func (p *postgresNotifier) Listen(ctx context.Context, channel string) error {
	p.logger.Info("starting db listener", "channel", channel)

	config, err := pgxpool.ParseConfig(p.b.config.Database)
	if err != nil {
		p.logger.ErrorContext(ctx, "Error parsing database config", tint.Err(err))
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		p.logger.ErrorContext(ctx, "Error creating connection pool", tint.Err(err))
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Error acquiring connection", tint.Err(err))
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, fmt.Sprintf("LISTEN %s", channel))
	if err != nil {
		p.logger.ErrorContext(ctx, "Error setting up listener", tint.Err(err))
		return err
	}
	logger := p.logger.With("channel", channel)
	logger.InfoContext(ctx, "Started listening on channel")

	for ctx.Err() == nil {
		notification, e := conn.Conn().WaitForNotification(ctx)
		if e != nil {
			logger.ErrorContext(ctx, "Error waiting for notification", tint.Err(e))
			time.Sleep(5 * time.Second) // Wait before retrying
			continue
		}

		switch channel {
		case p.GuildSettingsChannelName():
			notifierID, guildID := parseGuildSettingsNotification(notification.Payload)
			if notifierID == p.ID() {
				logger.Info("Received settings notification from self, ignoring")
				continue
			}
			select {
			case p.b.triggerSettingsRefreshCh <- guildID:
				logger.Info("sent settings refresh signal", "guild_id", guildID)
			case <-time.After(dbNotifierSendTimeout):
				logger.Warn("timed out sending settings refresh signal", "guild_id", guildID)
			}
		case p.StopChannelName():
			if notification.Payload == p.ID() {
				logger.Info("Received stop notification from self, ignoring")
				continue
			}
			logger.InfoContext(ctx, "received stop signal via NOTIFY")
			select {
			case p.b.signalStop <- struct{}{}:
				logger.Info("forwarded stop signal")
			case <-time.After(dbNotifierSendTimeout):
				logger.Warn("timed out forwarding stop signal")
			}
		default:
			logger.Warn("Received unknown notification", "channel", notification.Channel)
		}
	}

	return nil
}

func parseGuildSettingsNotification(s string) (notifierID, guildID string) {
	before, after, _ := strings.Cut(s, recordSeparator)
	return before, after
}

func newGuildSettingsNotificationMessage(notifierID string, guildID string) string {
	return strings.Join([]string{notifierID, guildID}, recordSeparator)
}
