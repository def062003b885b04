// Package application contains use-case orchestration services.
package application

import (
	"slices"
	"time"

	"github.com/ericfisherdev/gitwatch/internal/domain/model"
)

// firstRunWindow bounds how far back first-run detection reaches. Before the
// first poll there is no way to tell "old, never seen" from "new", so only
// activity within this window is surfaced on activation.
const firstRunWindow = 30 * time.Minute

// openedGap is the largest updated-created spread for which an issue update
// is still treated as the issue being opened.
const openedGap = 60 * time.Second

// NewCommits returns the commits that landed after lastSeen, oldest first.
// The input is newest first, as fetched. If lastSeen is empty or no longer in
// the window (history rewritten, or more commits landed than the window
// holds), the whole window is returned; over-reporting is accepted there.
func NewCommits(commits []model.Commit, lastSeen string) []model.Commit {
	var fresh []model.Commit
	for _, commit := range commits {
		if lastSeen != "" && commit.SHA == lastSeen {
			break
		}
		fresh = append(fresh, commit)
	}
	slices.Reverse(fresh)
	return fresh
}

// NewlyClosedBugs returns the closed bug issues that should be surfaced given
// the stored watermark, sorted by close time ascending.
//
// With no watermark (first run) only bugs closed within firstRunWindow of now
// are surfaced. With a watermark, bugs closed strictly after it are surfaced.
func NewlyClosedBugs(issues []model.Issue, lastClosed *time.Time, now time.Time) []model.Issue {
	cutoff := now.Add(-firstRunWindow)

	var closed []model.Issue
	for _, issue := range issues {
		if issue.State != model.IssueStateClosed || !issue.IsBug || issue.ClosedAt == nil {
			continue
		}

		if lastClosed == nil {
			if !issue.ClosedAt.Before(cutoff) {
				closed = append(closed, issue)
			}
		} else if issue.ClosedAt.After(*lastClosed) {
			closed = append(closed, issue)
		}
	}

	slices.SortStableFunc(closed, func(a, b model.Issue) int {
		return a.ClosedAt.Compare(*b.ClosedAt)
	})
	return closed
}

// LatestClosedAt returns the maximum close time across the given issues, or
// nil if none carry one. Used to advance the bug watermark past unchanged
// history even when nothing was surfaced.
func LatestClosedAt(issues []model.Issue) *time.Time {
	var latest *time.Time
	for _, issue := range issues {
		if issue.ClosedAt == nil {
			continue
		}
		if latest == nil || issue.ClosedAt.After(*latest) {
			t := *issue.ClosedAt
			latest = &t
		}
	}
	return latest
}

// IssueEvent pairs an issue with the activity classified for it.
type IssueEvent struct {
	Issue    model.Issue
	Activity model.IssueActivity
}

// NewIssueEvents classifies activity on non-bug issues against the stored
// watermark, sorted by update time ascending.
//
// First run surfaces only issues created within firstRunWindow, as Opened.
// Steady state surfaces issues updated strictly after the watermark: Closed
// if closed, Opened if the update sits within openedGap of creation, else
// Updated. Bug issues are skipped; the bug pipeline owns them.
func NewIssueEvents(issues []model.Issue, lastUpdated *time.Time, now time.Time) []IssueEvent {
	cutoff := now.Add(-firstRunWindow)

	var events []IssueEvent
	for _, issue := range issues {
		if issue.IsBug {
			continue
		}

		if lastUpdated == nil {
			if issue.CreatedAt != nil && !issue.CreatedAt.Before(cutoff) {
				events = append(events, IssueEvent{Issue: issue, Activity: model.IssueOpened})
			}
			continue
		}

		if issue.UpdatedAt == nil || !issue.UpdatedAt.After(*lastUpdated) {
			continue
		}

		activity := model.IssueUpdated
		switch {
		case issue.State == model.IssueStateClosed:
			activity = model.IssueClosed
		case issue.CreatedAt != nil && absDuration(issue.UpdatedAt.Sub(*issue.CreatedAt)) < openedGap:
			activity = model.IssueOpened
		}

		events = append(events, IssueEvent{Issue: issue, Activity: activity})
	}

	slices.SortStableFunc(events, func(a, b IssueEvent) int {
		return updatedOrZero(a.Issue).Compare(updatedOrZero(b.Issue))
	})
	return events
}

// LatestUpdatedAt returns the maximum update time across the given issues, or
// nil if none carry one.
func LatestUpdatedAt(issues []model.Issue) *time.Time {
	var latest *time.Time
	for _, issue := range issues {
		if issue.UpdatedAt == nil {
			continue
		}
		if latest == nil || issue.UpdatedAt.After(*latest) {
			t := *issue.UpdatedAt
			latest = &t
		}
	}
	return latest
}

func updatedOrZero(issue model.Issue) time.Time {
	if issue.UpdatedAt == nil {
		return time.Time{}
	}
	return *issue.UpdatedAt
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
