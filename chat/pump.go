package chat

import (
	"context"

	"rentloop/domain"
)

// readPump is the engine's inbound subscription, run under the
// supervisor. Returning an error triggers a supervised restart, which
// re-dials; returning nil ends the subscription for good.
type readPump struct {
	engine   *Engine
	identity domain.Identity
}

func (p *readPump) Run(ctx context.Context) error {
	transport := p.engine.currentTransport()
	if transport == nil {
		// The previous transport failed; this run is a reconnect attempt.
		var err error
		transport, err = p.engine.redial(ctx, p.identity)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	for {
		msg, err := transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Disconnect cancelled the subscription.
				return nil
			}
			p.engine.transportLost(transport, err)
			return err
		}
		p.engine.ingest(msg)
	}
}
