// Package commsutil provides COMMS (NATS) connection helpers and subjects.
package commsutil

import (
	"fmt"
	"time"

	comms "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const logPrefix = "commsutil:connect"

// Connect creates a COMMS connection to the given URL with reconnect logging.
func Connect(url, name string) (*comms.Conn, error) {
	log.Info().Msgf("%s - Connecting to COMMS at %s as %s", logPrefix, url, name)

	nc, err := comms.Connect(url,
		comms.Name(name),
		comms.Timeout(10*time.Second),
		comms.ReconnectWait(2*time.Second),
		comms.MaxReconnects(60),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			log.Warn().Msgf("%s - COMMS disconnected: %v", logPrefix, err)
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			log.Info().Msgf("%s - COMMS reconnected to %s", logPrefix, nc.ConnectedUrl())
		}),
		comms.ClosedHandler(func(*comms.Conn) {
			log.Info().Msgf("%s - COMMS connection closed", logPrefix)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}

	log.Info().Msgf("%s - Connected to COMMS at %s", logPrefix, nc.ConnectedUrl())
	return nc, nil
}
