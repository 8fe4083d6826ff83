package router

import (
	"context"

	"github.com/ettaverse/etta-keychain-sub002/internal/logging"
	"github.com/google/uuid"
)

// Relay is the trusted transport between the page side and the vault holder.
// It never interprets request payloads: it retags envelopes for the next hop
// and ferries responses back. It cannot answer requests itself.
type Relay struct {
	toVault func(Envelope) error
	toPage  func(Response) error
	log     logging.Logger
}

func NewRelay(toVault func(Envelope) error, toPage func(Response) error, log logging.Logger) *Relay {
	if log == nil {
		log = logging.Nop{}
	}
	return &Relay{toVault: toVault, toPage: toPage, log: log}
}

// ForwardRequest passes a page request on to the vault holder, retagged for
// the relay→vault hop and stamped with a fresh hop id.
func (rl *Relay) ForwardRequest(env Envelope) error {
	env.Type = TypeRequest
	env.HopID = uuid.NewString()

	rl.log.Debug(context.Background(), "forwarding request",
		"event", env.Event, "hop_id", env.HopID)
	return rl.toVault(env)
}

// ForwardResponse passes a vault-holder response back to the page side
// unchanged.
func (rl *Relay) ForwardResponse(resp Response) error {
	rl.log.Debug(context.Background(), "forwarding response",
		"request_id", resp.RequestID)
	return rl.toPage(resp)
}
