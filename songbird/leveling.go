package songbird

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// ErrInvalidXPAmount is returned by [AwardXP] when the amount is not a
// positive integer. This is a caller contract violation, not a runtime
// condition users can trigger.
var ErrInvalidXPAmount = errors.New("xp amount must be a positive integer")

// XPForLevel returns the experience required to advance from level n-1
// to level n:
//
//	5*n^2 + 50*n + 100
//
// Strictly increasing in n, so the total-XP mapping below is monotonic.
func XPForLevel(n int) int {
	return 5*n*n + 50*n + 100
}

// TotalXPForLevel returns the cumulative experience required to reach
// the given level from zero. Level 0 requires 0 XP.
func TotalXPForLevel(level int) int {
	total := 0
	for n := 1; n <= level; n++ {
		total += XPForLevel(n)
	}
	return total
}

// LevelFromTotalXP returns the largest level, capped at maxLevel, whose
// cumulative requirement is satisfied by totalXP.
//
// The curve is walked from zero upward rather than inverted in closed
// form - the quadratic prefix sum has no inverse that's guaranteed exact
// under integer truncation.
func LevelFromTotalXP(totalXP int, maxLevel int) int {
	level := 0
	xpRequired := 0

	for level < maxLevel {
		xpRequired += XPForLevel(level + 1)
		if totalXP < xpRequired {
			break
		}
		level++
	}

	return level
}

// XPProgress describes position within the current level.
type XPProgress struct {
	// Current is experience accumulated past the current level's threshold
	Current int `json:"current"`

	// Required is the experience needed to advance to the next level
	Required int `json:"required"`

	// Percentage is floor(Current/Required*100)
	Percentage int `json:"percentage"`
}

// Progress computes [XPProgress] for the given total experience.
//
// At maxLevel the values remain numerically consistent (Required is the
// cost of the level past the cap); callers rendering a "next level"
// display are expected to special-case the cap themselves.
func Progress(totalXP int, maxLevel int) XPProgress {
	level := LevelFromTotalXP(totalXP, maxLevel)
	current := totalXP - TotalXPForLevel(level)
	required := XPForLevel(level + 1)
	return XPProgress{
		Current:    current,
		Required:   required,
		Percentage: (current * 100) / required,
	}
}

// LevelChange reports the before/after levels of an XP award, so callers
// can detect level-up transitions.
type LevelChange struct {
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`
}

// LeveledUp reports whether the award crossed at least one level boundary.
func (c LevelChange) LeveledUp() bool {
	return c.NewLevel > c.OldLevel
}

// AwardXP adds amount to the member's lifetime experience and recomputes
// the derived level and display progress. It is the only legitimate
// writer of [Member.Level]; after it returns,
// Level == LevelFromTotalXP(TotalXP, maxLevel) always holds.
//
// The member record is mutated but not persisted - callers save it,
// relying on the persistence layer's atomic single-record write for
// concurrent awards to the same member.
func AwardXP(m *Member, amount int, maxLevel int) (LevelChange, error) {
	if amount <= 0 {
		return LevelChange{}, ErrInvalidXPAmount
	}

	change := LevelChange{OldLevel: m.Level}

	m.TotalXP += amount
	m.Level = LevelFromTotalXP(m.TotalXP, maxLevel)
	m.XP = Progress(m.TotalXP, maxLevel).Current
	m.LastXPGain = time.Now().UTC().UnixMilli()

	change.NewLevel = m.Level
	return change, nil
}

// Milestone pairs a configured level with the role granted on reaching it.
type Milestone struct {
	Level  int    `json:"level"`
	RoleID string `json:"role_id"`
}

// MilestonesNewlyAchieved returns every milestone m in the table with
// oldLevel < m.Level <= newLevel, ordered ascending by level. A single
// award can cross several milestones at once; all are returned.
//
// Pure function - granting the roles (idempotently) is the caller's job.
func MilestonesNewlyAchieved(
	oldLevel int,
	newLevel int,
	roles LevelRoles,
) []Milestone {
	var crossed []Milestone
	for level, roleID := range roles {
		if level > oldLevel && level <= newLevel {
			crossed = append(crossed, Milestone{Level: level, RoleID: roleID})
		}
	}
	sort.Slice(
		crossed, func(i, j int) bool {
			return crossed[i].Level < crossed[j].Level
		},
	)
	return crossed
}

// AchievedMilestones returns every milestone at or below the given level,
// ordered ascending. Used to backfill roles for members who leveled
// before a milestone was configured.
func AchievedMilestones(level int, roles LevelRoles) []Milestone {
	return MilestonesNewlyAchieved(0, level, roles)
}

// randomXP draws uniformly from the inclusive [min, max] range. A
// degenerate range (max < min) collapses to min rather than panicking -
// range validation belongs at the settings-update boundary.
func randomXP(min int, max int) int {
	if max < min {
		max = min
	}
	return min + rand.Intn(max-min+1)
}

// progressBar renders a fixed-width bar for level embeds.
func progressBar(percentage int, length int) string {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	filled := (percentage*length + 50) / 100
	return strings.Repeat("▓", filled) + strings.Repeat("░", length-filled)
}
