package application_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/gitwatch/internal/application"
	"github.com/ericfisherdev/gitwatch/internal/domain/model"
)

func commit(sha string) model.Commit {
	return model.Commit{
		SHA:        sha,
		Message:    "msg",
		AuthorName: "author",
		URL:        "https://example.com/" + sha,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func closedBug(number int, closedAt time.Time) model.Issue {
	return model.Issue{
		Number:   number,
		Title:    "bug",
		State:    model.IssueStateClosed,
		ClosedAt: timePtr(closedAt),
		IsBug:    true,
	}
}

func shas(commits []model.Commit) []string {
	out := make([]string, len(commits))
	for i, c := range commits {
		out[i] = c.SHA
	}
	return out
}

func TestNewCommits_StopsAtLastSeenOldestFirst(t *testing.T) {
	// Remote window newest first: c4, c3, c2, c1; last seen c2.
	window := []model.Commit{commit("c4"), commit("c3"), commit("c2"), commit("c1")}

	fresh := application.NewCommits(window, "c2")

	assert.Equal(t, []string{"c3", "c4"}, shas(fresh))
}

func TestNewCommits_LastSeenIsNewest(t *testing.T) {
	window := []model.Commit{commit("c3"), commit("c2"), commit("c1")}

	fresh := application.NewCommits(window, "c3")

	assert.Empty(t, fresh)
}

func TestNewCommits_LastSeenOutOfWindowReturnsWholeWindow(t *testing.T) {
	// History rewritten or more commits landed than the window holds: the
	// whole window counts as new, oldest first.
	window := []model.Commit{commit("c3"), commit("c2"), commit("c1")}

	fresh := application.NewCommits(window, "gone")

	assert.Equal(t, []string{"c1", "c2", "c3"}, shas(fresh))
}

func TestNewCommits_EmptyLastSeenReturnsWholeWindow(t *testing.T) {
	window := []model.Commit{commit("c2"), commit("c1")}

	fresh := application.NewCommits(window, "")

	assert.Equal(t, []string{"c1", "c2"}, shas(fresh))
}

func TestNewlyClosedBugs_FirstRunOnlyRecentClosures(t *testing.T) {
	now := time.Now()
	bugs := []model.Issue{
		closedBug(42, now.Add(-10*time.Minute)), // inside 30m window
		closedBug(7, now.Add(-2*time.Hour)),     // historical, suppressed
	}

	surfaced := application.NewlyClosedBugs(bugs, nil, now)

	require.Len(t, surfaced, 1)
	assert.Equal(t, 42, surfaced[0].Number)
}

func TestNewlyClosedBugs_SteadyStateStrictlyAfterWatermark(t *testing.T) {
	now := time.Now()
	mark := now.Add(-1 * time.Hour)
	bugs := []model.Issue{
		closedBug(1, mark),                      // equal to watermark, not new
		closedBug(2, mark.Add(5*time.Minute)),   // after watermark
		closedBug(3, mark.Add(-5*time.Minute)),  // before watermark
		closedBug(4, mark.Add(10*time.Minute)),  // after watermark
		{Number: 5, State: model.IssueStateOpen, IsBug: true}, // still open
	}

	surfaced := application.NewlyClosedBugs(bugs, &mark, now)

	require.Len(t, surfaced, 2)
	// Oldest closure first.
	assert.Equal(t, 2, surfaced[0].Number)
	assert.Equal(t, 4, surfaced[1].Number)
}

func TestNewlyClosedBugs_IgnoresNonBugsAndMissingTimestamps(t *testing.T) {
	now := time.Now()
	issues := []model.Issue{
		{Number: 1, State: model.IssueStateClosed, ClosedAt: timePtr(now), IsBug: false},
		{Number: 2, State: model.IssueStateClosed, IsBug: true}, // no closed_at
	}

	assert.Empty(t, application.NewlyClosedBugs(issues, nil, now))
}

func TestLatestClosedAt(t *testing.T) {
	now := time.Now()
	bugs := []model.Issue{
		closedBug(1, now.Add(-2*time.Hour)),
		closedBug(2, now.Add(-1*time.Hour)),
		{Number: 3, State: model.IssueStateClosed, IsBug: true},
	}

	latest := application.LatestClosedAt(bugs)

	require.NotNil(t, latest)
	assert.True(t, latest.Equal(now.Add(-1*time.Hour)))
	assert.Nil(t, application.LatestClosedAt(nil))
}

func TestNewIssueEvents_FirstRunOnlyRecentCreations(t *testing.T) {
	now := time.Now()
	issues := []model.Issue{
		{Number: 1, State: model.IssueStateOpen, CreatedAt: timePtr(now.Add(-5 * time.Minute)), UpdatedAt: timePtr(now.Add(-5 * time.Minute))},
		{Number: 2, State: model.IssueStateOpen, CreatedAt: timePtr(now.Add(-3 * time.Hour)), UpdatedAt: timePtr(now.Add(-1 * time.Minute))},
	}

	events := application.NewIssueEvents(issues, nil, now)

	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Issue.Number)
	assert.Equal(t, model.IssueOpened, events[0].Activity)
}

func TestNewIssueEvents_SteadyStateClassification(t *testing.T) {
	now := time.Now()
	mark := now.Add(-1 * time.Hour)

	issues := []model.Issue{
		// Update within 60s of creation on an open issue: still "opened",
		// even on a steady-state poll.
		{Number: 1, State: model.IssueStateOpen,
			CreatedAt: timePtr(now.Add(-10 * time.Minute)),
			UpdatedAt: timePtr(now.Add(-10*time.Minute + 30*time.Second))},
		// Larger gap: a genuine update.
		{Number: 2, State: model.IssueStateOpen,
			CreatedAt: timePtr(now.Add(-48 * time.Hour)),
			UpdatedAt: timePtr(now.Add(-5 * time.Minute))},
		// Closed wins regardless of gap.
		{Number: 3, State: model.IssueStateClosed,
			CreatedAt: timePtr(now.Add(-48 * time.Hour)),
			UpdatedAt: timePtr(now.Add(-2 * time.Minute))},
		// At or before the watermark: not surfaced.
		{Number: 4, State: model.IssueStateOpen,
			CreatedAt: timePtr(now.Add(-48 * time.Hour)),
			UpdatedAt: timePtr(mark)},
	}

	events := application.NewIssueEvents(issues, &mark, now)

	require.Len(t, events, 3)
	// Ascending by update time: #1 (-9m30s), #2 (-5m), #3 (-2m).
	assert.Equal(t, model.IssueOpened, events[0].Activity)
	assert.Equal(t, 1, events[0].Issue.Number)
	assert.Equal(t, model.IssueUpdated, events[1].Activity)
	assert.Equal(t, 2, events[1].Issue.Number)
	assert.Equal(t, model.IssueClosed, events[2].Activity)
	assert.Equal(t, 3, events[2].Issue.Number)
}

func TestNewIssueEvents_SkipsBugIssues(t *testing.T) {
	now := time.Now()
	mark := now.Add(-1 * time.Hour)
	issues := []model.Issue{
		{Number: 1, State: model.IssueStateOpen, IsBug: true,
			CreatedAt: timePtr(now.Add(-5 * time.Minute)),
			UpdatedAt: timePtr(now.Add(-5 * time.Minute))},
	}

	assert.Empty(t, application.NewIssueEvents(issues, &mark, now))
}

func TestLatestUpdatedAt(t *testing.T) {
	now := time.Now()
	issues := []model.Issue{
		{Number: 1, UpdatedAt: timePtr(now.Add(-2 * time.Hour))},
		{Number: 2, UpdatedAt: timePtr(now.Add(-30 * time.Minute))},
		{Number: 3},
	}

	latest := application.LatestUpdatedAt(issues)

	require.NotNil(t, latest)
	assert.True(t, latest.Equal(now.Add(-30*time.Minute)))
	assert.Nil(t, application.LatestUpdatedAt(nil))
}
