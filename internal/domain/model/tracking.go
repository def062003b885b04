package model

import (
	"strings"
	"time"
)

// RepoWatermark records how far tracking has progressed for one repository.
// Each field only ever advances; the diffing logic never rolls one back.
type RepoWatermark struct {
	// LastCommitSHAs maps branch name to the newest commit hash already seen.
	LastCommitSHAs map[string]string `json:"last_commit_shas,omitempty"`
	// LastBugClosedAt is the close time of the most recent bug surfaced or
	// scanned; nil until the repository has been polled at least once.
	LastBugClosedAt *time.Time `json:"last_bug_closed_at,omitempty"`
	// LastIssueUpdatedAt is the update time of the most recent non-bug issue
	// observed; nil until the repository has been polled at least once.
	LastIssueUpdatedAt *time.Time `json:"last_issue_updated_at,omitempty"`
}

// Clone returns a deep copy of the watermark.
func (w RepoWatermark) Clone() RepoWatermark {
	out := RepoWatermark{
		LastBugClosedAt:    copyTime(w.LastBugClosedAt),
		LastIssueUpdatedAt: copyTime(w.LastIssueUpdatedAt),
	}
	if w.LastCommitSHAs != nil {
		out.LastCommitSHAs = make(map[string]string, len(w.LastCommitSHAs))
		for branch, sha := range w.LastCommitSHAs {
			out.LastCommitSHAs[branch] = sha
		}
	}
	return out
}

// TrackingEntry is one watched target inside one tenant: either a single
// repository (Repo set) or a whole organization (IsOrg set). Exactly one of
// the two holds.
type TrackingEntry struct {
	Owner     string `json:"owner"`
	Repo      string `json:"repo,omitempty"`
	ChannelID string `json:"channel_id"`
	IsOrg     bool   `json:"is_org,omitempty"`
	// OrgRepos caches the organization's repository names. Empty until the
	// first poll resolves it; refreshed when the org is re-tracked.
	OrgRepos []string `json:"org_repos,omitempty"`
	// Watermarks maps "owner/repo" keys to per-repository progress.
	Watermarks map[string]RepoWatermark `json:"watermarks,omitempty"`
}

// NewRepoEntry creates an entry tracking a single repository.
func NewRepoEntry(owner, repo, channelID string) TrackingEntry {
	return TrackingEntry{
		Owner:      owner,
		Repo:       repo,
		ChannelID:  channelID,
		Watermarks: make(map[string]RepoWatermark),
	}
}

// NewOrgEntry creates an entry tracking every repository of an organization.
func NewOrgEntry(org, channelID string, repos []string) TrackingEntry {
	return TrackingEntry{
		Owner:      org,
		ChannelID:  channelID,
		IsOrg:      true,
		OrgRepos:   repos,
		Watermarks: make(map[string]RepoWatermark),
	}
}

// Matches reports whether this entry tracks the given target. Owner and repo
// comparisons are case-insensitive, matching GitHub's naming rules.
func (e TrackingEntry) Matches(owner, repo string, isOrg bool) bool {
	if e.IsOrg != isOrg || !strings.EqualFold(e.Owner, owner) {
		return false
	}
	return isOrg || strings.EqualFold(e.Repo, repo)
}

// RepoKey builds the watermark map key for a repository.
func RepoKey(owner, repo string) string {
	return owner + "/" + repo
}

// Clone returns a deep copy of the entry.
func (e TrackingEntry) Clone() TrackingEntry {
	out := e
	if e.OrgRepos != nil {
		out.OrgRepos = append([]string(nil), e.OrgRepos...)
	}
	if e.Watermarks != nil {
		out.Watermarks = make(map[string]RepoWatermark, len(e.Watermarks))
		for key, wm := range e.Watermarks {
			out.Watermarks[key] = wm.Clone()
		}
	}
	return out
}

// TrackingConfig is the full persisted tracking state, keyed by tenant.
type TrackingConfig struct {
	Tenants map[string][]TrackingEntry `json:"tenants"`
}

// NewTrackingConfig returns an empty configuration.
func NewTrackingConfig() TrackingConfig {
	return TrackingConfig{Tenants: make(map[string][]TrackingEntry)}
}

// Clone returns a deep copy of the configuration. Poll passes snapshot the
// config with this before doing network I/O so no lock is held in between.
func (c TrackingConfig) Clone() TrackingConfig {
	out := NewTrackingConfig()
	for tenant, entries := range c.Tenants {
		cloned := make([]TrackingEntry, len(entries))
		for i, entry := range entries {
			cloned[i] = entry.Clone()
		}
		out.Tenants[tenant] = cloned
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
