package events

import (
	"context"
	"fmt"

	comms "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/wkc-labs/wkc-server/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Zero values use defaults.
type CommsPublisherOpts struct {
	// SubjectPrefix overrides the event subject root (EVENT_SUBJECT_PREFIX).
	SubjectPrefix string
}

// CommsPublisher publishes change events to COMMS subjects.
type CommsPublisher struct {
	nc     *comms.Conn
	prefix string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	prefix := commsutil.SubjectChangeEvent
	if opts != nil && opts.SubjectPrefix != "" {
		prefix = opts.SubjectPrefix
	}
	return &CommsPublisher{nc: nc, prefix: prefix}
}

// PublishChanged publishes the event to the granular
// "<prefix>.<collection>.<action>" subject and to the global prefix subject.
func (p *CommsPublisher) PublishChanged(_ context.Context, event *ChangeEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	granular := commsutil.BuildChangeSubject(p.prefix, event.Collection, event.Action)
	for _, subject := range []string{granular, p.prefix} {
		if err := p.nc.Publish(subject, data); err != nil {
			log.Error().Msgf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err)
			return err
		}
	}

	log.Debug().Msgf("%s - Published %s event for %s/%s", commsPublisherLogPrefix, event.Action, event.Collection, event.ID)
	return nil
}
