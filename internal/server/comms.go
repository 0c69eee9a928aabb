package server

import (
	"context"
	"time"

	comms "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/wkc-labs/wkc-server/pkg/commsutil"
	"github.com/wkc-labs/wkc-server/pkg/dispatcher"
)

const commsLogPrefix = "server:comms"

// subscribeQueries answers QueryRequests on subject with the dispatcher.
// Each request runs under its own timeout derived from ctx.
func subscribeQueries(ctx context.Context, nc *comms.Conn, subject string, disp *dispatcher.Dispatcher, timeout time.Duration) (*comms.Subscription, error) {
	return nc.Subscribe(subject, func(msg *comms.Msg) {
		var req dispatcher.QueryRequest
		if err := commsutil.DecodePayload(msg.Data, &req); err != nil {
			log.Error().Msgf("%s - failed to decode request: %v", commsLogPrefix, err)
			respond(msg, &dispatcher.QueryResponse{
				Ok: false,
				Error: &dispatcher.ErrorDetail{
					Code:    "INVALID_REQUEST",
					Message: "Failed to decode request",
				},
			})
			return
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		respond(msg, disp.Serve(reqCtx, &req))
	})
}

func respond(msg *comms.Msg, resp *dispatcher.QueryResponse) {
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		log.Error().Msgf("%s - failed to encode response: %v", commsLogPrefix, err)
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Warn().Msgf("%s - failed to respond: %v", commsLogPrefix, err)
	}
}
