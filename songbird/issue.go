package songbird

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Issue statuses.
const (
	IssueStatusOpen       = "open"
	IssueStatusInProgress = "in-progress"
	IssueStatusResolved   = "resolved"
	IssueStatusClosed     = "closed"

	issueTitleMaxLength       = 100
	issueDescriptionMaxLength = 1000
	issueNotesMaxLength       = 500

	// issueMemberListLimit caps how many of a member's own reports are
	// shown at once, newest first
	issueMemberListLimit = 10
)

// Issue is a member-reported bot problem, tracked through a small
// open/in-progress/resolved/closed lifecycle by moderators.
//
//nolint:lll // struct tags can't be split
type Issue struct {
	ModelUintID
	GuildID     string `json:"guild_id" gorm:"index:idx_issue_guild_status;index:idx_issue_guild_user;type:string"`
	UserID      string `json:"user_id" gorm:"index:idx_issue_guild_user;type:string"`
	Username    string `json:"username" gorm:"type:string"`
	Title       string `json:"title" gorm:"type:string"`
	Description string `json:"description" gorm:"type:string"`
	Status      string `json:"status" gorm:"index:idx_issue_guild_status;type:string;default:open"`
	ModNotes    string `json:"mod_notes" gorm:"type:string"`
	ResolvedBy  string `json:"resolved_by" gorm:"type:string"`
	ModelUnixTime
}

func (s *Issue) LogValue() slog.Value {
	if s == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.Uint64("id", uint64(s.ID)),
		slog.String("guild_id", s.GuildID),
		slog.String("user_id", s.UserID),
		slog.String("status", s.Status),
	)
}

// validIssueStatus reports whether s is one of the lifecycle statuses.
func validIssueStatus(s string) bool {
	switch s {
	case IssueStatusOpen, IssueStatusInProgress, IssueStatusResolved,
		IssueStatusClosed:
		return true
	}
	return false
}

// issueStatusEmoji maps a status to its list marker.
func issueStatusEmoji(status string) string {
	switch status {
	case IssueStatusOpen:
		return "🟡"
	case IssueStatusInProgress:
		return "🔵"
	case IssueStatusResolved:
		return "🟢"
	case IssueStatusClosed:
		return "⚫"
	}
	return "❔"
}

// issueStatusChoices builds the slash-command choice list for status
// options, optionally with an "All" filter entry.
func issueStatusChoices(includeAll bool) []*discordgo.ApplicationCommandOptionChoice {
	choices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Open", Value: IssueStatusOpen},
		{Name: "In Progress", Value: IssueStatusInProgress},
		{Name: "Resolved", Value: IssueStatusResolved},
		{Name: "Closed", Value: IssueStatusClosed},
	}
	if includeAll {
		choices = append(
			choices,
			&discordgo.ApplicationCommandOptionChoice{Name: "All", Value: "all"},
		)
	}
	return choices
}

// ReportIssue records a new open issue for the member.
func (m *Moderation) ReportIssue(
	ctx context.Context,
	guildID string,
	userID string,
	username string,
	title string,
	description string,
) (*Issue, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return nil, fmt.Errorf("issue title and description must not be empty")
	}

	issue := &Issue{
		GuildID:     guildID,
		UserID:      userID,
		Username:    username,
		Title:       truncate(title, issueTitleMaxLength),
		Description: truncate(description, issueDescriptionMaxLength),
		Status:      IssueStatusOpen,
	}
	if _, err := m.db.Create(ctx, issue); err != nil {
		return nil, fmt.Errorf("error recording issue: %w", err)
	}
	return issue, nil
}

// MemberIssues returns a member's most recent reports, newest first.
func (m *Moderation) MemberIssues(
	ctx context.Context,
	guildID string,
	userID string,
) ([]Issue, error) {
	var issues []Issue
	err := m.db.DB().WithContext(ctx).Where(
		"guild_id = ? AND user_id = ?", guildID, userID,
	).Order("created_at desc").Limit(issueMemberListLimit).Find(&issues).Error
	if err != nil {
		return nil, fmt.Errorf("error loading issues: %w", err)
	}
	return issues, nil
}

// Issues returns a guild's issues, newest first, filtered by status.
// Passing "all" (or an empty filter) returns every status.
func (m *Moderation) Issues(
	ctx context.Context,
	guildID string,
	status string,
) ([]Issue, error) {
	query := m.db.DB().WithContext(ctx).Where("guild_id = ?", guildID)
	if status != "" && status != "all" {
		if !validIssueStatus(status) {
			return nil, fmt.Errorf("unknown issue status: %s", status)
		}
		query = query.Where("status = ?", status)
	}
	var issues []Issue
	if err := query.Order("created_at desc").Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("error loading issues: %w", err)
	}
	return issues, nil
}

// UpdateIssueStatus moves an issue to the given status, scoped to the
// guild, recording moderator notes and who resolved it.
func (m *Moderation) UpdateIssueStatus(
	ctx context.Context,
	guildID string,
	issueID uint,
	status string,
	notes string,
	moderatorID string,
) (*Issue, error) {
	if !validIssueStatus(status) {
		return nil, fmt.Errorf("unknown issue status: %s", status)
	}

	var issue Issue
	err := m.db.DB().WithContext(ctx).Where(
		"guild_id = ? AND id = ?", guildID, issueID,
	).First(&issue).Error
	if err != nil {
		return nil, fmt.Errorf("error finding issue: %w", err)
	}

	issue.Status = status
	updates := map[string]any{"status": status}
	if notes != "" {
		issue.ModNotes = truncate(notes, issueNotesMaxLength)
		updates["mod_notes"] = issue.ModNotes
	}
	if status == IssueStatusResolved {
		issue.ResolvedBy = moderatorID
		updates["resolved_by"] = moderatorID
	}
	if _, err = m.db.Updates(ctx, &issue, updates); err != nil {
		return nil, fmt.Errorf("error updating issue: %w", err)
	}
	return &issue, nil
}
