package songbird

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	tmpdir := t.TempDir()
	dbPath := filepath.Join(tmpdir, "test.sqlite3")
	db, err := CreateDB(context.Background(), "sqlite", dbPath)
	if err != nil {
		t.Fatalf("error creating test database: %v", err)
	}
	t.Cleanup(
		func() {
			sqlDB, _ := db.DB()
			if sqlDB != nil {
				_ = sqlDB.Close()
			}
		},
	)
	return db
}

func newTestWriteDB(t testing.TB, db *gorm.DB) DBI {
	t.Helper()
	return NewDatabase(db, nil, DefaultConfig().XP, false)
}

func TestGetOrCreateMember(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	writeDB := newTestWriteDB(t, db)
	ctx := context.Background()

	member, created, err := writeDB.GetOrCreateMember(
		ctx, "guild-1", "user-1", "wren_fan",
	)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, member.ID)
	assert.Equal(t, "guild-1", member.GuildID)
	assert.Equal(t, "user-1", member.UserID)
	assert.Equal(t, "wren_fan", member.Username)
	assert.Zero(t, member.TotalXP)
	assert.Zero(t, member.Level)

	again, created, err := writeDB.GetOrCreateMember(
		ctx, "guild-1", "user-1", "wren_fan",
	)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, member.ID, again.ID)

	// same user in a different guild is a distinct record
	other, created, err := writeDB.GetOrCreateMember(
		ctx, "guild-2", "user-1", "wren_fan",
	)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, member.ID, other.ID)
}

func TestAwardMemberXP(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	writeDB := newTestWriteDB(t, db)
	ctx := context.Background()

	change, member, err := writeDB.AwardMemberXP(
		ctx, "guild-1", "user-1", "wren_fan", 155, 100,
	)
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, 0, change.OldLevel)
	assert.Equal(t, 1, change.NewLevel)
	assert.Equal(t, 155, member.TotalXP)
	assert.Equal(t, 1, member.Level)

	// persisted, not just in-memory
	var stored Member
	require.NoError(
		t,
		db.Where("guild_id = ? AND user_id = ?", "guild-1", "user-1").
			First(&stored).Error,
	)
	assert.Equal(t, 155, stored.TotalXP)
	assert.Equal(t, 1, stored.Level)
	assert.NotZero(t, stored.LastXPGain)

	_, _, err = writeDB.AwardMemberXP(
		ctx, "guild-1", "user-1", "wren_fan", 0, 100,
	)
	assert.ErrorIs(t, err, ErrInvalidXPAmount)
}

func TestLeaderboardAndRank(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	writeDB := newTestWriteDB(t, db)
	ctx := context.Background()

	awards := map[string]int{
		"user-1": 500,
		"user-2": 2000,
		"user-3": 1000,
	}
	for userID, xp := range awards {
		_, _, err := writeDB.AwardMemberXP(
			ctx, "guild-1", userID, userID, xp, 100,
		)
		require.NoError(t, err)
	}

	// noise from another guild must not leak in
	_, _, err := writeDB.AwardMemberXP(
		ctx, "guild-2", "user-9", "user-9", 9000, 100,
	)
	require.NoError(t, err)

	members, err := Leaderboard(ctx, db, "guild-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "user-2", members[0].UserID)
	assert.Equal(t, "user-3", members[1].UserID)
	assert.Equal(t, "user-1", members[2].UserID)

	count, err := MemberCount(ctx, db, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	rank, err := members[2].Rank(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rank)

	rank, err = members[0].Rank(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rank)

	// pagination
	page, err := Leaderboard(ctx, db, "guild-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "user-1", page[0].UserID)
}

func TestGetGuildSettingsCreatesDefaults(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	writeDB := newTestWriteDB(t, db)
	ctx := context.Background()

	settings, err := writeDB.GetGuildSettings(ctx, "guild-1")
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, "guild-1", settings.GuildID)
	assert.True(t, settings.WelcomeEnabled)
	assert.Equal(t, DefaultMessageXPMin, settings.MessageXPMin)
	assert.Equal(t, DefaultMessageXPMax, settings.MessageXPMax)

	// second read comes from cache and returns the same pointer
	cached, err := writeDB.GetGuildSettings(ctx, "guild-1")
	require.NoError(t, err)
	assert.Same(t, settings, cached)
}

func TestUpdateGuildSettings(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	writeDB := newTestWriteDB(t, db)
	ctx := context.Background()

	settings, err := writeDB.GetGuildSettings(ctx, "guild-1")
	require.NoError(t, err)

	settings.WelcomeChannelID = "channel-1"
	settings.LevelRoles = LevelRoles{5: "role-5"}
	require.NoError(t, writeDB.UpdateGuildSettings(ctx, settings))

	writeDB.InvalidateGuildSettings("guild-1")

	reloaded, err := writeDB.GetGuildSettings(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, "channel-1", reloaded.WelcomeChannelID)
	assert.Equal(t, LevelRoles{5: "role-5"}, reloaded.LevelRoles)
}

func TestUpdateGuildSettingsRejectsInvalidRanges(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	writeDB := newTestWriteDB(t, db)
	ctx := context.Background()

	settings, err := writeDB.GetGuildSettings(ctx, "guild-1")
	require.NoError(t, err)

	bad := *settings
	bad.MessageXPMin = 100
	bad.MessageXPMax = 10
	assert.ErrorIs(
		t,
		writeDB.UpdateGuildSettings(ctx, &bad),
		ErrInvalidXPRange,
	)
}
