package model

import "time"

// IssueState is whether an issue is open or closed.
type IssueState string

const (
	IssueStateOpen   IssueState = "open"
	IssueStateClosed IssueState = "closed"
)

// IssueActivity classifies what happened to an issue in the latest poll.
type IssueActivity string

const (
	IssueOpened  IssueActivity = "opened"
	IssueUpdated IssueActivity = "updated"
	IssueClosed  IssueActivity = "closed"
)

// Issue is an issue snapshot fetched from the source API, used for both bug
// and general issue tracking.
type Issue struct {
	Number    int
	Title     string
	URL       string
	Reporter  string
	Assignee  string
	ClosedBy  string
	Labels    []string
	State     IssueState
	CreatedAt *time.Time
	UpdatedAt *time.Time
	ClosedAt  *time.Time
	IsBug     bool
}
