package catalog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wkc-labs/wkc-server/pkg/docstore"
	"github.com/wkc-labs/wkc-server/pkg/events"
)

const logPrefix = "catalog:service"

// Service holds the product and order operations.
type Service struct {
	store     docstore.Store
	publisher events.EventPublisher
	now       func() time.Time
}

// NewServiceParams holds dependencies for NewService.
type NewServiceParams struct {
	Store     docstore.Store
	Publisher events.EventPublisher
	// Clock overrides time.Now (tests).
	Clock func() time.Time
}

// NewService creates a new Service.
func NewService(params NewServiceParams) *Service {
	pub := params.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: params.Store, publisher: pub, now: clock}
}

// Ping checks the underlying store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// publish emits a change event. Failures are logged and never fail the write
// that triggered them.
func (s *Service) publish(ctx context.Context, event *events.ChangeEvent) {
	event.Timestamp = s.now().UTC().Format(time.RFC3339)
	if err := s.publisher.PublishChanged(ctx, event); err != nil {
		log.Warn().Msgf("%s - failed to publish %s event for %s/%s: %v", logPrefix, event.Action, event.Collection, event.ID, err)
	}
}
