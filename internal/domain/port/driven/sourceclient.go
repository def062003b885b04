package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/gitwatch/internal/domain/model"
)

// SourceClient defines the driven port for reading tracked state from the
// source-control host. All methods are read-only.
//
// A deleted or renamed target is reported as an empty result, not an error;
// only transport failures and non-success statuses surface as errors.
type SourceClient interface {
	// ListOrgRepos returns the repository names belonging to an organization.
	ListOrgRepos(ctx context.Context, org string) ([]string, error)
	// ListBranches returns the branch names of a repository.
	ListBranches(ctx context.Context, owner, repo string) ([]string, error)
	// ListCommits returns up to limit commits of a branch, newest first.
	ListCommits(ctx context.Context, owner, repo, branch string, limit int) ([]model.Commit, error)
	// ListBugIssues returns bug-labeled issues, optionally restricted to
	// those updated since the given time. Pull requests are excluded.
	ListBugIssues(ctx context.Context, owner, repo string, since *time.Time) ([]model.Issue, error)
	// ListGeneralIssues returns non-bug issues, optionally restricted to
	// those updated since the given time. Pull requests are excluded.
	ListGeneralIssues(ctx context.Context, owner, repo string, since *time.Time) ([]model.Issue, error)
}
