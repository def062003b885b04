// Package logsink implements the EventSink port by logging events. It is the
// default sink when no webhook URL is configured.
package logsink

import (
	"context"
	"log/slog"

	"github.com/ericfisherdev/gitwatch/internal/domain/model"
	"github.com/ericfisherdev/gitwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EventSink = (*Sink)(nil)

// Sink logs each update at info level.
type Sink struct {
	logger *slog.Logger
}

// NewSink creates a Sink writing to the given logger.
func NewSink(logger *slog.Logger) *Sink {
	return &Sink{logger: logger}
}

// Publish logs every update. It never fails.
func (s *Sink) Publish(_ context.Context, updates []model.Update) error {
	for _, update := range updates {
		switch ev := update.Event.(type) {
		case model.CommitPushed:
			s.logger.Info("commit pushed",
				"tenant", update.TenantID,
				"channel", update.ChannelID,
				"repo", ev.Owner+"/"+ev.Repo,
				"branch", ev.Branch,
				"sha", ev.Commit.SHA,
				"author", ev.Commit.AuthorName,
			)
		case model.BugClosed:
			s.logger.Info("bug closed",
				"tenant", update.TenantID,
				"channel", update.ChannelID,
				"repo", ev.Owner+"/"+ev.Repo,
				"issue", ev.Issue.Number,
			)
		case model.IssueChanged:
			s.logger.Info("issue activity",
				"tenant", update.TenantID,
				"channel", update.ChannelID,
				"repo", ev.Owner+"/"+ev.Repo,
				"issue", ev.Issue.Number,
				"activity", string(ev.Activity),
			)
		}
	}
	return nil
}
