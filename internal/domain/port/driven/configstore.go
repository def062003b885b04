package driven

import (
	"context"

	"github.com/ericfisherdev/gitwatch/internal/domain/model"
)

// ConfigStore defines the driven port for persisting tracking configuration.
// The persisted copy is the source of truth across restarts.
type ConfigStore interface {
	// Load returns the persisted configuration, or an empty one if nothing
	// has been persisted yet.
	Load(ctx context.Context) (model.TrackingConfig, error)
	// Save atomically replaces the persisted configuration.
	Save(ctx context.Context, config model.TrackingConfig) error
}
