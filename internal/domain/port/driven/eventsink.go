package driven

import (
	"context"

	"github.com/ericfisherdev/gitwatch/internal/domain/model"
)

// EventSink receives the ordered updates produced by a poll pass. The engine
// makes no assumption about delivery success and does not retry on the sink's
// behalf.
type EventSink interface {
	Publish(ctx context.Context, updates []model.Update) error
}
