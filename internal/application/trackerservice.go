package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ericfisherdev/gitwatch/internal/domain/model"
	"github.com/ericfisherdev/gitwatch/internal/domain/port/driven"
)

// refreshRequest asks the polling loop to run an on-demand pass.
type refreshRequest struct {
	done chan refreshResult
}

type refreshResult struct {
	updates []model.Update
	err     error
}

// TrackerService owns the canonical tracking configuration and coordinates
// poll passes. Track/Remove/List may run concurrently with each other and
// with a poll; Poll itself must not run concurrently with another Poll, which
// Start guarantees by serializing scheduled and manual passes in one loop.
type TrackerService struct {
	client       driven.SourceClient
	store        driven.ConfigStore
	commitWindow int
	interval     time.Duration
	refreshCh    chan refreshRequest

	mu     sync.RWMutex
	config model.TrackingConfig
}

// NewTrackerService creates a TrackerService and eagerly loads the persisted
// configuration. A load failure is downgraded to an empty configuration:
// there is nothing to roll back to on first start, and refusing to boot would
// lose nothing but availability.
func NewTrackerService(
	ctx context.Context,
	client driven.SourceClient,
	store driven.ConfigStore,
	commitWindow int,
	interval time.Duration,
) *TrackerService {
	config, err := store.Load(ctx)
	if err != nil {
		slog.Warn("loading tracking config failed, starting empty", "error", err)
		config = model.NewTrackingConfig()
	}
	if config.Tenants == nil {
		config.Tenants = make(map[string][]model.TrackingEntry)
	}

	return &TrackerService{
		client:       client,
		store:        store,
		commitWindow: commitWindow,
		interval:     interval,
		refreshCh:    make(chan refreshRequest),
		config:       config,
	}
}

// Start runs an immediate poll, then polls on the configured interval,
// publishing each pass's events to the sink. It also serves manual refresh
// requests. Start blocks until the context is canceled.
func (s *TrackerService) Start(ctx context.Context, sink driven.EventSink) {
	s.runPoll(ctx, sink)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("tracker service stopped")
			return
		case <-ticker.C:
			s.runPoll(ctx, sink)
		case req := <-s.refreshCh:
			updates, err := s.Poll(ctx)
			if err == nil {
				s.publish(ctx, sink, updates)
			}
			req.done <- refreshResult{updates: updates, err: err}
		}
	}
}

// Refresh triggers an on-demand poll pass through the polling loop, bypassing
// the interval, and returns the updates it produced. It blocks until the pass
// completes or the context is canceled. Start must be running.
func (s *TrackerService) Refresh(ctx context.Context) ([]model.Update, error) {
	req := refreshRequest{done: make(chan refreshResult, 1)}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-req.done:
		return res.updates, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// List returns a deep copy of the tenant's tracked entries for display.
func (s *TrackerService) List(tenantID string) []model.TrackingEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.config.Tenants[tenantID]
	out := make([]model.TrackingEntry, len(entries))
	for i, entry := range entries {
		out[i] = entry.Clone()
	}
	return out
}

// Track starts tracking a single repository for a tenant. Re-tracking an
// already tracked repository only updates the destination channel.
func (s *TrackerService) Track(ctx context.Context, tenantID, owner, repo, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.config.Tenants[tenantID]
	if i := findEntry(entries, owner, repo, false); i >= 0 {
		entries[i].ChannelID = channelID
	} else {
		entries = append(entries, model.NewRepoEntry(owner, repo, channelID))
	}
	s.config.Tenants[tenantID] = entries

	if err := s.store.Save(ctx, s.config); err != nil {
		return fmt.Errorf("saving tracking config: %w", err)
	}
	return nil
}

// TrackOrganization starts tracking every repository of an organization,
// resolving the current repository list up front. Re-tracking replaces the
// cached list and updates the channel. Returns the resolved repositories.
func (s *TrackerService) TrackOrganization(ctx context.Context, tenantID, org, channelID string) ([]string, error) {
	repos, err := s.client.ListOrgRepos(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("resolving repositories of %s: %w", org, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.config.Tenants[tenantID]
	if i := findEntry(entries, org, "", true); i >= 0 {
		entries[i].ChannelID = channelID
		entries[i].OrgRepos = slices.Clone(repos)
	} else {
		entries = append(entries, model.NewOrgEntry(org, channelID, slices.Clone(repos)))
	}
	s.config.Tenants[tenantID] = entries

	if err := s.store.Save(ctx, s.config); err != nil {
		return nil, fmt.Errorf("saving tracking config: %w", err)
	}
	return repos, nil
}

// Remove stops tracking a single repository. It reports whether an entry was
// removed; nothing is persisted when no entry matched.
func (s *TrackerService) Remove(ctx context.Context, tenantID, owner, repo string) (bool, error) {
	return s.removeEntry(ctx, tenantID, owner, repo, false)
}

// RemoveOrganization stops tracking an organization entry. It reports whether
// an entry was removed; nothing is persisted when no entry matched.
func (s *TrackerService) RemoveOrganization(ctx context.Context, tenantID, org string) (bool, error) {
	return s.removeEntry(ctx, tenantID, org, "", true)
}

func (s *TrackerService) removeEntry(ctx context.Context, tenantID, owner, repo string, isOrg bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.config.Tenants[tenantID]
	i := findEntry(entries, owner, repo, isOrg)
	if i < 0 {
		return false, nil
	}

	s.config.Tenants[tenantID] = slices.Delete(entries, i, i+1)
	if err := s.store.Save(ctx, s.config); err != nil {
		return false, fmt.Errorf("saving tracking config: %w", err)
	}
	return true, nil
}

// watermarkChange carries one entry's advanced state out of a poll pass so it
// can be merged back under the write lock.
type watermarkChange struct {
	tenantID   string
	owner      string
	repo       string
	isOrg      bool
	orgRepos   []string // nil unless the org's repo list was resolved this pass
	watermarks map[string]model.RepoWatermark
}

// Poll runs one full pass over every tenant and tracked entry, returning all
// emitted updates in traversal order: tenants sorted by id, entries in
// configured order, per repository commits (oldest first per branch), then
// closed bugs, then issue activity.
//
// A source client error on any fetch aborts the whole pass: no events are
// returned and nothing is persisted, so a later retry re-derives the same
// events from the last saved watermarks. Persistence happens at most once,
// and only when a watermark advanced.
//
// Poll must not be invoked concurrently with itself; overlapping passes could
// announce a fast-moving branch twice before watermarks are saved.
func (s *TrackerService) Poll(ctx context.Context) ([]model.Update, error) {
	s.mu.RLock()
	snapshot := s.config.Clone()
	s.mu.RUnlock()

	tenantIDs := make([]string, 0, len(snapshot.Tenants))
	for tenantID := range snapshot.Tenants {
		tenantIDs = append(tenantIDs, tenantID)
	}
	slices.Sort(tenantIDs)

	var updates []model.Update
	var changes []watermarkChange

	for _, tenantID := range tenantIDs {
		for _, entry := range snapshot.Tenants[tenantID] {
			change, entryUpdates, err := s.pollEntry(ctx, tenantID, entry)
			if err != nil {
				return nil, err
			}
			updates = append(updates, entryUpdates...)
			if change != nil {
				changes = append(changes, *change)
			}
		}
	}

	if len(changes) > 0 {
		if err := s.mergeAndSave(ctx, changes); err != nil {
			return nil, err
		}
	}

	return updates, nil
}

// pollEntry polls a single tracking entry: every repository it covers, every
// branch of each. Returns the watermark change to merge, or nil if nothing
// advanced.
func (s *TrackerService) pollEntry(ctx context.Context, tenantID string, entry model.TrackingEntry) (*watermarkChange, []model.Update, error) {
	change := watermarkChange{
		tenantID:   tenantID,
		owner:      entry.Owner,
		repo:       entry.Repo,
		isOrg:      entry.IsOrg,
		watermarks: make(map[string]model.RepoWatermark),
	}

	repos := []string{entry.Repo}
	if entry.IsOrg {
		repos = entry.OrgRepos
		if len(repos) == 0 {
			fetched, err := s.client.ListOrgRepos(ctx, entry.Owner)
			if err != nil {
				return nil, nil, fmt.Errorf("resolving repositories of %s: %w", entry.Owner, err)
			}
			repos = fetched
			change.orgRepos = fetched
		}
	}

	var updates []model.Update
	for _, repo := range repos {
		key := model.RepoKey(entry.Owner, repo)
		wm := entry.Watermarks[key].Clone()

		repoUpdates, dirty, err := s.pollRepository(ctx, tenantID, entry.ChannelID, entry.Owner, repo, &wm)
		if err != nil {
			return nil, nil, err
		}
		updates = append(updates, repoUpdates...)

		if dirty {
			change.watermarks[key] = wm
		}
	}

	if change.orgRepos == nil && len(change.watermarks) == 0 {
		return nil, updates, nil
	}
	return &change, updates, nil
}

// pollRepository fetches a repository's branches, commits, and issues, runs
// the diffing against the given watermark, and mutates it in place. Reports
// whether any watermark field advanced.
func (s *TrackerService) pollRepository(ctx context.Context, tenantID, channelID, owner, repo string, wm *model.RepoWatermark) ([]model.Update, bool, error) {
	var updates []model.Update
	dirty := false

	if wm.LastCommitSHAs == nil {
		wm.LastCommitSHAs = make(map[string]string)
	}
	firstPoll := len(wm.LastCommitSHAs) == 0

	branches, err := s.client.ListBranches(ctx, owner, repo)
	if err != nil {
		return nil, false, fmt.Errorf("listing branches of %s/%s: %w", owner, repo, err)
	}

	for _, branch := range branches {
		commits, err := s.client.ListCommits(ctx, owner, repo, branch, s.commitWindow)
		if err != nil {
			return nil, false, fmt.Errorf("listing commits of %s/%s@%s: %w", owner, repo, branch, err)
		}
		if len(commits) == 0 {
			continue
		}
		newest := commits[0].SHA

		lastSeen, seen := wm.LastCommitSHAs[branch]
		if !seen {
			if firstPoll {
				// Quiet baseline: record where the branch is, announce nothing.
				wm.LastCommitSHAs[branch] = newest
				dirty = true
				continue
			}

			// The branch appeared after the baseline. If it was cut from a
			// tracked branch, part of its window is history we already
			// announced; only commits above the first hash known from a
			// sibling branch are new.
			firstKnown := firstTrackedSHA(commits, wm.LastCommitSHAs)
			wm.LastCommitSHAs[branch] = newest
			dirty = true

			if firstKnown == newest {
				continue
			}
			for _, commit := range NewCommits(commits, firstKnown) {
				updates = append(updates, model.Update{
					TenantID:  tenantID,
					ChannelID: channelID,
					Event:     model.CommitPushed{Owner: owner, Repo: repo, Branch: branch, Commit: commit},
				})
			}
			continue
		}

		fresh := NewCommits(commits, lastSeen)
		if len(fresh) == 0 {
			continue
		}
		for _, commit := range fresh {
			updates = append(updates, model.Update{
				TenantID:  tenantID,
				ChannelID: channelID,
				Event:     model.CommitPushed{Owner: owner, Repo: repo, Branch: branch, Commit: commit},
			})
		}
		wm.LastCommitSHAs[branch] = newest
		dirty = true
	}

	bugs, err := s.client.ListBugIssues(ctx, owner, repo, wm.LastBugClosedAt)
	if err != nil {
		return nil, false, fmt.Errorf("listing bug issues of %s/%s: %w", owner, repo, err)
	}

	newBugs := NewlyClosedBugs(bugs, wm.LastBugClosedAt, time.Now())
	bugMark := LatestClosedAt(bugs)
	if len(newBugs) > 0 {
		bugMark = newBugs[len(newBugs)-1].ClosedAt
	}
	if bugMark != nil && (wm.LastBugClosedAt == nil || bugMark.After(*wm.LastBugClosedAt)) {
		t := *bugMark
		wm.LastBugClosedAt = &t
		dirty = true
	}
	for _, issue := range newBugs {
		updates = append(updates, model.Update{
			TenantID:  tenantID,
			ChannelID: channelID,
			Event:     model.BugClosed{Owner: owner, Repo: repo, Issue: issue},
		})
	}

	issues, err := s.client.ListGeneralIssues(ctx, owner, repo, wm.LastIssueUpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("listing issues of %s/%s: %w", owner, repo, err)
	}

	issueEvents := NewIssueEvents(issues, wm.LastIssueUpdatedAt, time.Now())
	if mark := LatestUpdatedAt(issues); mark != nil && (wm.LastIssueUpdatedAt == nil || mark.After(*wm.LastIssueUpdatedAt)) {
		t := *mark
		wm.LastIssueUpdatedAt = &t
		dirty = true
	}
	for _, ev := range issueEvents {
		updates = append(updates, model.Update{
			TenantID:  tenantID,
			ChannelID: channelID,
			Event:     model.IssueChanged{Owner: owner, Repo: repo, Issue: ev.Issue, Activity: ev.Activity},
		})
	}

	return updates, dirty, nil
}

// mergeAndSave applies the pass's watermark changes to the live configuration
// and persists it in one write. Merging into the live config (rather than
// swapping in the snapshot) keeps Track/Remove mutations that ran during the
// pass.
func (s *TrackerService) mergeAndSave(ctx context.Context, changes []watermarkChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, change := range changes {
		entries := s.config.Tenants[change.tenantID]
		i := findEntry(entries, change.owner, change.repo, change.isOrg)
		if i < 0 {
			// Entry was removed mid-pass; its progress dies with it.
			continue
		}

		if change.orgRepos != nil {
			entries[i].OrgRepos = change.orgRepos
		}
		if entries[i].Watermarks == nil {
			entries[i].Watermarks = make(map[string]model.RepoWatermark)
		}
		for key, wm := range change.watermarks {
			entries[i].Watermarks[key] = wm
		}
	}

	if err := s.store.Save(ctx, s.config); err != nil {
		return fmt.Errorf("saving tracking config: %w", err)
	}
	return nil
}

func (s *TrackerService) runPoll(ctx context.Context, sink driven.EventSink) {
	start := time.Now()

	updates, err := s.Poll(ctx)
	if err != nil {
		slog.Error("poll cycle failed", "error", err)
		return
	}

	s.publish(ctx, sink, updates)

	slog.Info("poll cycle complete",
		"events", len(updates),
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

func (s *TrackerService) publish(ctx context.Context, sink driven.EventSink, updates []model.Update) {
	if len(updates) == 0 {
		return
	}
	if err := sink.Publish(ctx, updates); err != nil {
		slog.Error("event delivery failed", "events", len(updates), "error", err)
	}
}

// firstTrackedSHA returns the first hash in the window already recorded for
// any branch, or "" if none is.
func firstTrackedSHA(commits []model.Commit, tracked map[string]string) string {
	for _, commit := range commits {
		for _, sha := range tracked {
			if sha == commit.SHA {
				return commit.SHA
			}
		}
	}
	return ""
}

// findEntry returns the index of the entry tracking the given target, or -1.
func findEntry(entries []model.TrackingEntry, owner, repo string, isOrg bool) int {
	for i, entry := range entries {
		if entry.Matches(owner, repo, isOrg) {
			return i
		}
	}
	return -1
}
