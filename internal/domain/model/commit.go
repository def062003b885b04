package model

import "time"

// Commit is a lightweight commit snapshot fetched from the source API.
// It carries only what event rendering needs; no VCS library types leak in.
type Commit struct {
	SHA         string
	Message     string
	AuthorName  string
	URL         string
	AvatarURL   string
	CommittedAt *time.Time
}
