package songbird

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	dbTypeSQLite   = "sqlite"
	dbTypePostgres = "postgres"
)

var (
	dbOperationTimeout = 30 * time.Second
)

// ModelUnixTime is an embeddable model with Unix timestamps for
// creation, update, and deletion.
type ModelUnixTime struct {
	CreatedAt int64          `gorm:"autoCreateTime:milli" json:"created_at,omitempty"`
	UpdatedAt int64          `gorm:"autoUpdateTime:milli" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type ModelUintID struct {
	ID uint `gorm:"primaryKey" json:"id"`
}

// database wraps the GORM connection. When using SQLite, write
// operations are serialized behind a mutex; postgres writes run
// concurrently. It also owns the in-memory guild settings cache.
// Implements [DBI].
type database struct {
	db                     *gorm.DB
	mu                     sync.Mutex
	logger                 *slog.Logger
	settingsCache          map[string]*GuildSettings
	settingsMu             sync.Mutex
	xpDefaults             *XPConfig
	enableConcurrentWrites bool
}

// NewDatabase initializes a new database instance. xpDefaults seeds
// newly created guild settings rows. enableConcurrentWrites should be
// false for SQLite.
func NewDatabase(
	db *gorm.DB,
	log *slog.Logger,
	xpDefaults *XPConfig,
	enableConcurrentWrites bool,
) DBI {
	if log == nil {
		log = slog.Default()
	}
	d := &database{
		db:                     db,
		settingsCache:          map[string]*GuildSettings{},
		logger:                 log.With(loggerNameKey, "writedb"),
		xpDefaults:             xpDefaults,
		enableConcurrentWrites: enableConcurrentWrites,
	}
	return d
}

func (d *database) DB() *gorm.DB {
	return d.db
}

func (d *database) Lock() {
	if d.enableConcurrentWrites {
		return
	}
	d.mu.Lock()
}

func (d *database) Unlock() {
	if d.enableConcurrentWrites {
		return
	}
	d.mu.Unlock()
}

// GetOrCreateMember returns the experience record for the user in the
// guild, creating a zeroed record if none exists. The returned bool is
// true when a new record was created.
func (d *database) GetOrCreateMember(
	ctx context.Context,
	guildID string,
	userID string,
	username string,
) (*Member, bool, error) {
	log, ok := ContextLogger(ctx)
	if log == nil || !ok {
		log = d.logger
	}

	var member Member
	err := d.db.WithContext(ctx).Where(
		"guild_id = ? AND user_id = ?", guildID, userID,
	).First(&member).Error
	if err == nil {
		return &member, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	member = Member{GuildID: guildID, UserID: userID, Username: username}
	log.InfoContext(ctx, "creating new member record", "member", &member)

	d.Lock()
	createErr := d.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{
				{Name: columnMemberGuildID},
				{Name: columnMemberUserID},
			},
			DoNothing: true,
		},
	).Create(&member).Error
	d.Unlock()
	if createErr != nil {
		return nil, false, createErr
	}

	// a concurrent creator may have won the upsert; re-read to be sure
	if member.ID == 0 {
		if err = d.db.WithContext(ctx).Where(
			"guild_id = ? AND user_id = ?", guildID, userID,
		).First(&member).Error; err != nil {
			return nil, false, err
		}
		return &member, false, nil
	}

	return &member, true, nil
}

// AwardMemberXP atomically awards experience to the member record,
// holding a row lock for the read-modify-write so rapid concurrent
// awards to the same member don't race. Returns the level transition
// and the updated record.
func (d *database) AwardMemberXP(
	ctx context.Context,
	guildID string,
	userID string,
	username string,
	amount int,
	maxLevel int,
) (LevelChange, *Member, error) {
	var change LevelChange
	var member Member

	if amount <= 0 {
		return change, nil, ErrInvalidXPAmount
	}

	if _, _, err := d.GetOrCreateMember(ctx, guildID, userID, username); err != nil {
		return change, nil, err
	}

	err := d.Transaction(
		ctx, func(tx *gorm.DB) error {
			if err := tx.Clauses(
				clause.Locking{Strength: "UPDATE"},
			).Where(
				"guild_id = ? AND user_id = ?", guildID, userID,
			).First(&member).Error; err != nil {
				return err
			}

			var awardErr error
			change, awardErr = AwardXP(&member, amount, maxLevel)
			if awardErr != nil {
				return awardErr
			}
			updates := member.xpUpdates()
			if username != "" && username != member.Username {
				member.Username = username
				updates["username"] = username
			}
			return tx.Model(&member).Updates(updates).Error
		},
	)
	if err != nil {
		return change, nil, err
	}
	return change, &member, nil
}

func (d *database) Create(ctx context.Context, value any, omit ...string) (
	rowsAffected int64,
	err error,
) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	db := d.db
	_, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dbOperationTimeout)
		defer cancel()
	}
	db = db.WithContext(ctx)

	if len(omit) > 0 {
		rv := db.Omit(omit...).Create(value)
		return rv.RowsAffected, rv.Error
	}
	rv := db.Create(value)
	return rv.RowsAffected, rv.Error
}

func (d *database) Updates(ctx context.Context, model, values any) (
	rowsAffected int64,
	err error,
) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	_, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dbOperationTimeout)
		defer cancel()
	}
	rv := d.db.WithContext(ctx).Model(model).Updates(values)
	return rv.RowsAffected, rv.Error
}

func (d *database) Transaction(
	ctx context.Context,
	fc func(tx *gorm.DB) error,
	opts ...*sql.TxOptions,
) (err error) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	_, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dbOperationTimeout)
		defer cancel()
	}
	rv := d.db.WithContext(ctx).Transaction(fc, opts...)
	return rv
}

func (d *database) Save(ctx context.Context, value any, omit ...string) (
	rowsAffected int64,
	err error,
) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	_, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dbOperationTimeout)
		defer cancel()
	}

	if len(omit) > 0 {
		rv := d.db.WithContext(ctx).Omit(omit...).Save(value)
		return rv.RowsAffected, rv.Error
	}
	rv := d.db.WithContext(ctx).Save(value)
	return rv.RowsAffected, rv.Error
}

func (d *database) Update(
	ctx context.Context,
	model any,
	column string,
	value any,
) (rowsAffected int64, err error) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	_, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dbOperationTimeout)
		defer cancel()
	}

	rv := d.db.WithContext(ctx).Model(model).Update(column, value)
	return rv.RowsAffected, rv.Error
}

func (d *database) Delete(
	value any,
	conds ...any,
) (rowsAffected int64, err error) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	rv := d.db.Delete(value, conds...)
	return rv.RowsAffected, rv.Error
}

// DBI defines the interface for database operations. This is here primarily
// to enable mocking of the database operations for testing.
// [database] implements this interface for 'real' DB operations.
type DBI interface {
	Lock()
	Unlock()

	DB() *gorm.DB

	GetOrCreateMember(
		ctx context.Context,
		guildID string,
		userID string,
		username string,
	) (*Member, bool, error)

	// AwardMemberXP atomically applies an experience award to the
	// member's record and reports the level transition
	AwardMemberXP(
		ctx context.Context,
		guildID string,
		userID string,
		username string,
		amount int,
		maxLevel int,
	) (LevelChange, *Member, error)

	GetGuildSettings(ctx context.Context, guildID string) (*GuildSettings, error)
	UpdateGuildSettings(ctx context.Context, settings *GuildSettings) error
	InvalidateGuildSettings(guildID string)

	Create(ctx context.Context, value any, omit ...string) (rowsAffected int64, err error)
	Updates(ctx context.Context, model any, values any) (rowsAffected int64, err error)
	Delete(value any, conds ...any) (rowsAffected int64, err error)
	Transaction(
		ctx context.Context,
		fc func(tx *gorm.DB) error,
		opts ...*sql.TxOptions,
	) (err error)
	Save(ctx context.Context, value any, omit ...string) (rowsAffected int64, err error)
	Update(ctx context.Context, model any, column string, value any) (
		rowsAffected int64,
		err error,
	)
}

// CreateDB initializes and returns a GORM database connection based on
// the specified database type, and auto-migrates the bot's models.
func CreateDB(ctx context.Context, databaseType string, database string) (*gorm.DB, error) {
	handler := tint.NewHandler(
		os.Stdout,
		&tint.Options{
			Level:     slog.LevelWarn,
			AddSource: true,
		},
	)

	gormLogger := newGORMLogger(handler, 500*time.Millisecond)
	dbLogger := slog.New(handler)

	dbLogger.InfoContext(
		ctx,
		"Initializing database",
		"database_type", databaseType,
		"database", database,
	)
	db, err := getDB(databaseType, database, gormLogger)
	if err != nil {
		return db, err
	}

	txn := db.WithContext(ctx).Begin()

	mg := txn.Migrator()
	err = mg.AutoMigrate(
		&Member{},
		&GuildSettings{},
		&AICache{},
		&Warning{},
		&Issue{},
		&BannedWord{},
		&ExcludedBannedWord{},
		&BoosterColorMessage{},
	)
	if err != nil {
		return db, err
	}

	commitErr := txn.Commit().Error
	if commitErr != nil {
		return db, commitErr
	}

	return db, nil
}

// getDB initializes and returns a GORM database connection based on the
// specified database type.
func getDB(
	databaseType string,
	database string,
	gormLogger *gormStructuredLogger,
) (*gorm.DB, error) {
	switch databaseType {
	case dbTypeSQLite:
		parentDir := filepath.Dir(database)
		if parentDir != "" {
			if err := os.MkdirAll(parentDir, 0755); err != nil {
				if !errors.Is(err, os.ErrExist) {
					return nil, err
				}
			}
		}
		return gorm.Open(
			sqlite.Open(database),
			&gorm.Config{
				Logger: gormLogger,
				NowFunc: func() time.Time {
					return time.Now().UTC()
				},
			},
		)
	case dbTypePostgres:
		return gorm.Open(
			postgres.Open(database), &gorm.Config{
				Logger: gormLogger,
				NowFunc: func() time.Time {
					return time.Now().UTC()
				},
			},
		)
	default:
		return nil, fmt.Errorf(
			"unsupported database type: %s (must be %q or %q)",
			databaseType, dbTypeSQLite, dbTypePostgres,
		)
	}
}
