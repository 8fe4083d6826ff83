package router

import "sync"

// Bus is a bidirectional transport link between two contexts: request
// envelopes flow one way, responses the other. Each side only uses the half
// that matches its role.
type Bus interface {
	PublishEnvelope(env Envelope) error
	SubscribeEnvelopes(handler func(Envelope)) error
	PublishResponse(resp Response) error
	SubscribeResponses(handler func(Response)) error
	Close() error
}

// loopbackLink is the shared state of an in-process bus pair.
type loopbackLink struct {
	mu sync.Mutex
	// Handlers registered per end, index 0 and 1.
	envHandlers  [2][]func(Envelope)
	respHandlers [2][]func(Response)
}

// LoopbackEnd is one side of an in-process Bus pair. Messages published on
// one end are delivered synchronously to subscribers on the other, which
// mirrors the single-threaded event-loop delivery the protocol assumes.
type LoopbackEnd struct {
	link *loopbackLink
	side int
}

// NewLoopback creates a connected pair of in-process bus ends.
func NewLoopback() (*LoopbackEnd, *LoopbackEnd) {
	link := &loopbackLink{}
	return &LoopbackEnd{link: link, side: 0}, &LoopbackEnd{link: link, side: 1}
}

func (e *LoopbackEnd) peer() int { return 1 - e.side }

func (e *LoopbackEnd) PublishEnvelope(env Envelope) error {
	e.link.mu.Lock()
	handlers := append([]func(Envelope){}, e.link.envHandlers[e.peer()]...)
	e.link.mu.Unlock()

	for _, h := range handlers {
		h(env)
	}
	return nil
}

func (e *LoopbackEnd) SubscribeEnvelopes(handler func(Envelope)) error {
	e.link.mu.Lock()
	defer e.link.mu.Unlock()
	e.link.envHandlers[e.side] = append(e.link.envHandlers[e.side], handler)
	return nil
}

func (e *LoopbackEnd) PublishResponse(resp Response) error {
	e.link.mu.Lock()
	handlers := append([]func(Response){}, e.link.respHandlers[e.peer()]...)
	e.link.mu.Unlock()

	for _, h := range handlers {
		h(resp)
	}
	return nil
}

func (e *LoopbackEnd) SubscribeResponses(handler func(Response)) error {
	e.link.mu.Lock()
	defer e.link.mu.Unlock()
	e.link.respHandlers[e.side] = append(e.link.respHandlers[e.side], handler)
	return nil
}

func (e *LoopbackEnd) Close() error { return nil }
