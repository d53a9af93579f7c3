package songbird

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportIssue(t *testing.T) {
	t.Parallel()

	m := newTestModeration(t)
	ctx := context.Background()

	issue, err := m.ReportIssue(
		ctx, "guild-1", "user-1", "songfan",
		"Leaderboard is empty", "The /leaderboard command shows nobody.",
	)
	require.NoError(t, err)
	require.NotZero(t, issue.ID)
	assert.Equal(t, IssueStatusOpen, issue.Status)
	assert.Equal(t, "songfan", issue.Username)

	var stored Issue
	require.NoError(t, m.db.DB().First(&stored, issue.ID).Error)
	assert.Equal(t, "Leaderboard is empty", stored.Title)
	assert.Equal(t, IssueStatusOpen, stored.Status)

	// empty title or description is rejected
	_, err = m.ReportIssue(ctx, "guild-1", "user-1", "songfan", "  ", "body")
	assert.Error(t, err)
	_, err = m.ReportIssue(ctx, "guild-1", "user-1", "songfan", "title", "")
	assert.Error(t, err)

	// overlong fields are clipped rather than rejected
	issue, err = m.ReportIssue(
		ctx, "guild-1", "user-1", "songfan",
		strings.Repeat("t", issueTitleMaxLength+50),
		strings.Repeat("d", issueDescriptionMaxLength+50),
	)
	require.NoError(t, err)
	assert.Len(t, issue.Title, issueTitleMaxLength)
	assert.Len(t, issue.Description, issueDescriptionMaxLength)
}

func TestMemberIssues(t *testing.T) {
	t.Parallel()

	m := newTestModeration(t)
	ctx := context.Background()

	for i := 0; i < issueMemberListLimit+2; i++ {
		issue, err := m.ReportIssue(
			ctx, "guild-1", "user-1", "songfan",
			fmt.Sprintf("issue %d", i), "details",
		)
		require.NoError(t, err)
		// spread creation times so newest-first ordering is deterministic
		require.NoError(
			t, m.db.DB().Model(issue).UpdateColumn(
				"created_at",
				time.Now().Add(time.Duration(i-20)*time.Minute).UnixMilli(),
			).Error,
		)
	}
	_, err := m.ReportIssue(ctx, "guild-1", "user-2", "other", "not mine", "details")
	require.NoError(t, err)

	issues, err := m.MemberIssues(ctx, "guild-1", "user-1")
	require.NoError(t, err)
	assert.Len(t, issues, issueMemberListLimit)

	// newest first, and only the reporter's own issues
	assert.Equal(
		t, fmt.Sprintf("issue %d", issueMemberListLimit+1), issues[0].Title,
	)
	for _, issue := range issues {
		assert.Equal(t, "user-1", issue.UserID)
	}
}

func TestIssuesStatusFilter(t *testing.T) {
	t.Parallel()

	m := newTestModeration(t)
	ctx := context.Background()

	open, err := m.ReportIssue(ctx, "guild-1", "user-1", "songfan", "still open", "details")
	require.NoError(t, err)
	resolved, err := m.ReportIssue(ctx, "guild-1", "user-2", "other", "fixed", "details")
	require.NoError(t, err)
	_, err = m.UpdateIssueStatus(
		ctx, "guild-1", resolved.ID, IssueStatusResolved, "", "mod-1",
	)
	require.NoError(t, err)
	_, err = m.ReportIssue(ctx, "guild-2", "user-3", "elsewhere", "other guild", "details")
	require.NoError(t, err)

	issues, err := m.Issues(ctx, "guild-1", IssueStatusOpen)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, open.ID, issues[0].ID)

	issues, err = m.Issues(ctx, "guild-1", IssueStatusResolved)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, resolved.ID, issues[0].ID)

	// "all" spans every status but stays guild-scoped
	issues, err = m.Issues(ctx, "guild-1", "all")
	require.NoError(t, err)
	assert.Len(t, issues, 2)

	_, err = m.Issues(ctx, "guild-1", "banana")
	assert.Error(t, err)
}

func TestUpdateIssueStatus(t *testing.T) {
	t.Parallel()

	m := newTestModeration(t)
	ctx := context.Background()

	issue, err := m.ReportIssue(
		ctx, "guild-1", "user-1", "songfan", "broken", "details",
	)
	require.NoError(t, err)

	updated, err := m.UpdateIssueStatus(
		ctx, "guild-1", issue.ID, IssueStatusResolved, "fixed in latest deploy", "mod-1",
	)
	require.NoError(t, err)
	assert.Equal(t, IssueStatusResolved, updated.Status)
	assert.Equal(t, "fixed in latest deploy", updated.ModNotes)
	assert.Equal(t, "mod-1", updated.ResolvedBy)

	var stored Issue
	require.NoError(t, m.db.DB().First(&stored, issue.ID).Error)
	assert.Equal(t, IssueStatusResolved, stored.Status)
	assert.Equal(t, "mod-1", stored.ResolvedBy)

	// only resolved sets resolved_by; notes are kept when omitted
	updated, err = m.UpdateIssueStatus(
		ctx, "guild-1", issue.ID, IssueStatusClosed, "", "mod-2",
	)
	require.NoError(t, err)
	assert.Equal(t, IssueStatusClosed, updated.Status)
	assert.Equal(t, "fixed in latest deploy", updated.ModNotes)
	assert.Equal(t, "mod-1", updated.ResolvedBy)

	// unknown status and wrong guild both fail
	_, err = m.UpdateIssueStatus(ctx, "guild-1", issue.ID, "banana", "", "mod-1")
	assert.Error(t, err)
	_, err = m.UpdateIssueStatus(
		ctx, "guild-2", issue.ID, IssueStatusClosed, "", "mod-1",
	)
	assert.Error(t, err)
}
