package model

// Event is one change detected by a poll pass. It is a closed union: the
// delivery layer switches exhaustively over CommitPushed, BugClosed, and
// IssueChanged.
type Event interface {
	eventKind() string
}

// CommitPushed reports a commit that landed on a tracked branch.
type CommitPushed struct {
	Owner  string
	Repo   string
	Branch string
	Commit Commit
}

// BugClosed reports a bug-labeled issue that was closed since the last poll.
type BugClosed struct {
	Owner string
	Repo  string
	Issue Issue
}

// IssueChanged reports activity on a general (non-bug) issue.
type IssueChanged struct {
	Owner    string
	Repo     string
	Issue    Issue
	Activity IssueActivity
}

func (CommitPushed) eventKind() string { return "commit_pushed" }
func (BugClosed) eventKind() string    { return "bug_closed" }
func (IssueChanged) eventKind() string { return "issue_changed" }

// Update wraps an event with the routing information the delivery layer needs.
type Update struct {
	TenantID  string
	ChannelID string
	Event     Event
}
