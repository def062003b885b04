// Package github implements the SourceClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/gitwatch/internal/domain/model"
	"github.com/ericfisherdev/gitwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SourceClient = (*Client)(nil)

// bugLabel is the issue label that routes an issue through the bug pipeline.
const bugLabel = "bug"

// Client implements the driven.SourceClient port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// An empty token leaves the client unauthenticated, at GitHub's lower
// anonymous rate limit.
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)

	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// ListOrgRepos returns the repository names of an organization. It handles
// pagination automatically. An unknown organization yields an empty list.
func (c *Client) ListOrgRepos(ctx context.Context, org string) ([]string, error) {
	opts := &gh.RepositoryListByOrgOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var names []string

	for {
		repos, resp, err := c.gh.Repositories.ListByOrg(ctx, org, opts)
		if isNotFound(resp, err) {
			return []string{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("listing repositories of org %s (page %d): %w", org, opts.Page, err)
		}

		logRateLimit(resp, "orgs/"+org+"/repos", opts.Page, len(repos))

		for _, repo := range repos {
			names = append(names, repo.GetName())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if names == nil {
		names = []string{}
	}

	return names, nil
}

// ListBranches returns the branch names of a repository. It handles
// pagination automatically. A missing repository yields an empty list.
func (c *Client) ListBranches(ctx context.Context, owner, repo string) ([]string, error) {
	opts := &gh.BranchListOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var names []string

	for {
		branches, resp, err := c.gh.Repositories.ListBranches(ctx, owner, repo, opts)
		if isNotFound(resp, err) {
			return []string{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("listing branches of %s/%s (page %d): %w", owner, repo, opts.Page, err)
		}

		logRateLimit(resp, owner+"/"+repo+"/branches", opts.Page, len(branches))

		for _, branch := range branches {
			names = append(names, branch.GetName())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if names == nil {
		names = []string{}
	}

	return names, nil
}

// ListCommits returns up to limit commits of a branch, newest first, in a
// single page. A missing repository or branch, and GitHub's 409 for an empty
// repository, yield an empty list.
func (c *Client) ListCommits(ctx context.Context, owner, repo, branch string, limit int) ([]model.Commit, error) {
	opts := &gh.CommitsListOptions{
		SHA:         branch,
		ListOptions: gh.ListOptions{PerPage: limit},
	}

	commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, repo, opts)
	if isNotFound(resp, err) || isStatus(resp, err, http.StatusConflict) {
		return []model.Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing commits of %s/%s@%s: %w", owner, repo, branch, err)
	}

	logRateLimit(resp, owner+"/"+repo+"/commits", 0, len(commits))

	out := make([]model.Commit, 0, len(commits))
	for _, commit := range commits {
		out = append(out, mapCommit(commit))
	}

	return out, nil
}

// ListBugIssues returns bug-labeled issues in any state, most recently
// updated first, optionally restricted by since. Pull requests are excluded.
func (c *Client) ListBugIssues(ctx context.Context, owner, repo string, since *time.Time) ([]model.Issue, error) {
	issues, err := c.listIssues(ctx, owner, repo, since, []string{bugLabel})
	if err != nil {
		return nil, err
	}

	out := make([]model.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.IsPullRequest() {
			continue
		}
		out = append(out, mapIssue(issue, true))
	}

	return out, nil
}

// ListGeneralIssues returns non-bug issues in any state, most recently
// updated first, optionally restricted by since. Pull requests and
// bug-labeled issues are excluded.
func (c *Client) ListGeneralIssues(ctx context.Context, owner, repo string, since *time.Time) ([]model.Issue, error) {
	issues, err := c.listIssues(ctx, owner, repo, since, nil)
	if err != nil {
		return nil, err
	}

	out := make([]model.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.IsPullRequest() || hasLabel(issue, bugLabel) {
			continue
		}
		out = append(out, mapIssue(issue, false))
	}

	return out, nil
}

// listIssues fetches a single page of 30 issues sorted by update time
// descending. One page suffices: the diffing layer passes its watermark as
// since, so anything older has already been scanned.
func (c *Client) listIssues(ctx context.Context, owner, repo string, since *time.Time, labels []string) ([]*gh.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "all",
		Labels:      labels,
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 30},
	}
	if since != nil {
		opts.Since = *since
	}

	issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, repo, opts)
	if isNotFound(resp, err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing issues of %s/%s: %w", owner, repo, err)
	}

	logRateLimit(resp, owner+"/"+repo+"/issues", 0, len(issues))

	return issues, nil
}

// mapCommit converts a go-github RepositoryCommit to a domain model Commit.
// The display name falls back to the GitHub login when the git author name is
// absent.
func mapCommit(rc *gh.RepositoryCommit) model.Commit {
	author := rc.GetCommit().GetAuthor().GetName()
	if author == "" {
		author = rc.GetAuthor().GetLogin()
	}
	if author == "" {
		author = "Unknown author"
	}

	message := rc.GetCommit().GetMessage()
	if message == "" {
		message = "No commit message"
	}

	var committedAt *time.Time
	if date := rc.GetCommit().GetAuthor().GetDate(); !date.IsZero() {
		t := date.Time
		committedAt = &t
	}

	return model.Commit{
		SHA:         rc.GetSHA(),
		Message:     message,
		AuthorName:  author,
		URL:         rc.GetHTMLURL(),
		AvatarURL:   rc.GetAuthor().GetAvatarURL(),
		CommittedAt: committedAt,
	}
}

// mapIssue converts a go-github Issue to a domain model Issue.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapIssue(issue *gh.Issue, isBug bool) model.Issue {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}

	state := model.IssueStateOpen
	if issue.GetState() == "closed" {
		state = model.IssueStateClosed
	}

	return model.Issue{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		URL:       issue.GetHTMLURL(),
		Reporter:  issue.GetUser().GetLogin(),
		Assignee:  issue.GetAssignee().GetLogin(),
		ClosedBy:  issue.GetClosedBy().GetLogin(),
		Labels:    labels,
		State:     state,
		CreatedAt: timestampPtr(issue.CreatedAt),
		UpdatedAt: timestampPtr(issue.UpdatedAt),
		ClosedAt:  timestampPtr(issue.ClosedAt),
		IsBug:     isBug,
	}
}

// hasLabel reports whether the issue carries the given label,
// case-insensitively (GitHub labels are case-preserving but not case-unique).
func hasLabel(issue *gh.Issue, name string) bool {
	for _, l := range issue.Labels {
		if strings.EqualFold(l.GetName(), name) {
			return true
		}
	}
	return false
}

func timestampPtr(ts *gh.Timestamp) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}

// isNotFound reports whether the call failed with a 404. A deleted or renamed
// target means "nothing to report", not a fatal error.
func isNotFound(resp *gh.Response, err error) bool {
	return isStatus(resp, err, http.StatusNotFound)
}

func isStatus(resp *gh.Response, err error, status int) bool {
	return err != nil && resp != nil && resp.StatusCode == status
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
