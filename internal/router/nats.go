package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ettaverse/etta-keychain-sub002/internal/logging"
)

const (
	subjectRequests  = "requests"
	subjectResponses = "responses"

	natsReconnectWait = 2 * time.Second
	natsMaxReconnects = 10
)

// NATSBus carries envelopes and responses over a NATS connection. Requests
// are published on "<prefix>.requests" and responses on "<prefix>.responses".
type NATSBus struct {
	conn   *nats.Conn
	prefix string
	log    logging.Logger
	subs   []*nats.Subscription
}

// NewNATSBus connects to the given NATS server.
func NewNATSBus(url, prefix string, log logging.Logger) (*NATSBus, error) {
	opts := []nats.Option{
		nats.Name("etta-keychain"),
		nats.ReconnectWait(natsReconnectWait),
		nats.MaxReconnects(natsMaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn(context.Background(), "nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info(context.Background(), "nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	return &NATSBus{conn: conn, prefix: prefix, log: log}, nil
}

func (b *NATSBus) subject(name string) string {
	return b.prefix + "." + name
}

func (b *NATSBus) PublishEnvelope(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	return b.conn.Publish(b.subject(subjectRequests), data)
}

func (b *NATSBus) SubscribeEnvelopes(handler func(Envelope)) error {
	sub, err := b.conn.Subscribe(b.subject(subjectRequests), func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			b.log.Warn(context.Background(), "dropping malformed envelope", "error", err)
			return
		}
		handler(env)
	})
	if err != nil {
		return err
	}
	b.subs = append(b.subs, sub)
	return nil
}

func (b *NATSBus) PublishResponse(resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	return b.conn.Publish(b.subject(subjectResponses), data)
}

func (b *NATSBus) SubscribeResponses(handler func(Response)) error {
	sub, err := b.conn.Subscribe(b.subject(subjectResponses), func(msg *nats.Msg) {
		var resp Response
		if err := json.Unmarshal(msg.Data, &resp); err != nil {
			b.log.Warn(context.Background(), "dropping malformed response", "error", err)
			return
		}
		handler(resp)
	})
	if err != nil {
		return err
	}
	b.subs = append(b.subs, sub)
	return nil
}

func (b *NATSBus) Close() error {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.conn.Close()
	return nil
}
