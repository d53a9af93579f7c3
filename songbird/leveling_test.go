package songbird

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXPForLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100, XPForLevel(0))
	assert.Equal(t, 155, XPForLevel(1))
	assert.Equal(t, 220, XPForLevel(2))
	assert.Equal(t, 5*100*100+50*100+100, XPForLevel(100))

	// strictly increasing
	for n := 1; n < 200; n++ {
		assert.Greater(t, XPForLevel(n), XPForLevel(n-1), "level %d", n)
	}
}

func TestTotalXPForLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, TotalXPForLevel(0))
	assert.Equal(t, 155, TotalXPForLevel(1))
	assert.Equal(t, 155+220, TotalXPForLevel(2))
}

func TestLevelFromTotalXP(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, LevelFromTotalXP(0, 100))
	assert.Equal(t, 0, LevelFromTotalXP(154, 100))
	assert.Equal(t, 1, LevelFromTotalXP(155, 100))
	assert.Equal(t, 1, LevelFromTotalXP(374, 100))
	assert.Equal(t, 2, LevelFromTotalXP(375, 100))

	// level boundaries round-trip with the cumulative curve
	for level := 1; level <= 50; level++ {
		threshold := TotalXPForLevel(level)
		assert.Equal(t, level, LevelFromTotalXP(threshold, 100))
		assert.Equal(t, level-1, LevelFromTotalXP(threshold-1, 100))
	}

	// monotonic in totalXP
	prev := 0
	for xp := 0; xp < 100_000; xp += 137 {
		level := LevelFromTotalXP(xp, 100)
		assert.GreaterOrEqual(t, level, prev)
		prev = level
	}
}

func TestLevelFromTotalXPSaturatesAtMaxLevel(t *testing.T) {
	t.Parallel()

	maxLevel := 10
	hugeXP := TotalXPForLevel(500)
	assert.Equal(t, maxLevel, LevelFromTotalXP(hugeXP, maxLevel))
	assert.Equal(t, 0, LevelFromTotalXP(hugeXP, 0))
}

func TestProgress(t *testing.T) {
	t.Parallel()

	p := Progress(0, 100)
	assert.Equal(t, 0, p.Current)
	assert.Equal(t, XPForLevel(1), p.Required)
	assert.Equal(t, 0, p.Percentage)

	// halfway into level 1
	total := TotalXPForLevel(1) + XPForLevel(2)/2
	p = Progress(total, 100)
	assert.Equal(t, XPForLevel(2)/2, p.Current)
	assert.Equal(t, XPForLevel(2), p.Required)
	assert.Equal(t, 50, p.Percentage)
}

func TestAwardXP(t *testing.T) {
	t.Parallel()

	member := &Member{GuildID: "guild-1", UserID: "user-1"}

	change, err := AwardXP(member, 155, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, change.OldLevel)
	assert.Equal(t, 1, change.NewLevel)
	assert.True(t, change.LeveledUp())
	assert.Equal(t, 155, member.TotalXP)
	assert.Equal(t, 0, member.XP)
	assert.NotZero(t, member.LastXPGain)

	// level always derived from lifetime XP
	change, err = AwardXP(member, 100, 100)
	require.NoError(t, err)
	assert.False(t, change.LeveledUp())
	assert.Equal(
		t,
		LevelFromTotalXP(member.TotalXP, 100),
		member.Level,
	)
	assert.Equal(t, 100, member.XP)
}

func TestAwardXPRejectsNonPositiveAmounts(t *testing.T) {
	t.Parallel()

	member := &Member{GuildID: "guild-1", UserID: "user-1", TotalXP: 500}

	_, err := AwardXP(member, 0, 100)
	assert.ErrorIs(t, err, ErrInvalidXPAmount)

	_, err = AwardXP(member, -10, 100)
	assert.ErrorIs(t, err, ErrInvalidXPAmount)

	assert.Equal(t, 500, member.TotalXP)
}

func TestMilestonesNewlyAchieved(t *testing.T) {
	t.Parallel()

	roles := LevelRoles{
		5:  "role-5",
		10: "role-10",
		15: "role-15",
		20: "role-20",
	}

	crossed := MilestonesNewlyAchieved(9, 20, roles)
	require.Len(t, crossed, 3)
	assert.Equal(t, Milestone{Level: 10, RoleID: "role-10"}, crossed[0])
	assert.Equal(t, Milestone{Level: 15, RoleID: "role-15"}, crossed[1])
	assert.Equal(t, Milestone{Level: 20, RoleID: "role-20"}, crossed[2])

	assert.Empty(t, MilestonesNewlyAchieved(5, 9, roles))
	assert.Empty(t, MilestonesNewlyAchieved(20, 25, roles))
	assert.Empty(t, MilestonesNewlyAchieved(3, 3, roles))
	assert.Empty(t, MilestonesNewlyAchieved(0, 100, nil))
}

func TestAchievedMilestones(t *testing.T) {
	t.Parallel()

	roles := LevelRoles{5: "role-5", 10: "role-10", 15: "role-15"}

	achieved := AchievedMilestones(12, roles)
	require.Len(t, achieved, 2)
	assert.Equal(t, 5, achieved[0].Level)
	assert.Equal(t, 10, achieved[1].Level)
}

func TestRandomXP(t *testing.T) {
	t.Parallel()

	for i := 0; i < 1000; i++ {
		v := randomXP(15, 25)
		assert.GreaterOrEqual(t, v, 15)
		assert.LessOrEqual(t, v, 25)
	}

	// degenerate ranges collapse to min instead of panicking
	assert.Equal(t, 10, randomXP(10, 10))
	assert.Equal(t, 10, randomXP(10, 5))
}

func TestProgressBar(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "░░░░░░░░░░", progressBar(0, 10))
	assert.Equal(t, "▓▓▓▓▓░░░░░", progressBar(50, 10))
	assert.Equal(t, "▓▓▓▓▓▓▓▓▓▓", progressBar(100, 10))

	// out-of-range values clamp
	assert.Equal(t, "░░░░░░░░░░", progressBar(-5, 10))
	assert.Equal(t, "▓▓▓▓▓▓▓▓▓▓", progressBar(150, 10))
}
