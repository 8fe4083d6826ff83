package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ettaverse/etta-keychain-sub002/internal/logging"
)

// DefaultTimeout is how long a dispatched request may stay unanswered before
// the router synthesizes a timeout response.
const DefaultTimeout = 30 * time.Second

// SendFunc delivers a request envelope to the next hop. A returned error
// means transport failure (e.g. no listener) and is converted into a
// synthetic communication-error response.
type SendFunc func(Envelope) error

type pending struct {
	callback func(Response)
	timer    *time.Timer
}

// Router allocates correlation ids, tracks pending requests and routes
// responses back to their originators. Callback invocation happens exactly
// once per request: whichever of {response, timeout, transport failure}
// occurs first wins and the others become no-ops.
type Router struct {
	mu        sync.Mutex
	send      SendFunc
	timeout   time.Duration
	nextID    uint64
	pending   map[uint64]*pending
	handshake func(Response)
	log       logging.Logger
}

func New(send SendFunc, log logging.Logger) *Router {
	return NewWithTimeout(send, DefaultTimeout, log)
}

func NewWithTimeout(send SendFunc, timeout time.Duration, log logging.Logger) *Router {
	if log == nil {
		log = logging.Nop{}
	}
	return &Router{
		send:    send,
		timeout: timeout,
		pending: make(map[uint64]*pending),
		log:     log,
	}
}

// Dispatch sends a request and registers callback for its response. The
// allocated correlation id is returned (ids are monotonic, starting at 1,
// process-lifetime scope). The callback is invoked exactly once, possibly
// with a synthetic timeout or communication-error response.
func (r *Router) Dispatch(event string, data map[string]any, callback func(Response)) uint64 {
	r.mu.Lock()
	r.nextID++
	id := r.nextID

	p := &pending{callback: callback}
	p.timer = time.AfterFunc(r.timeout, func() {
		r.settle(id, Response{Success: false, Error: errTimeout, RequestID: id})
	})
	r.pending[id] = p
	r.mu.Unlock()

	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["request_id"] = id

	raw, err := json.Marshal(payload)
	if err != nil {
		r.settle(id, Response{Success: false, Error: errCommunication, RequestID: id})
		return id
	}

	env := Envelope{Type: TypeRequestFromPage, Event: event, Data: raw}
	if err := r.send(env); err != nil {
		r.log.Warn(context.Background(), "request send failed", "request_id", id, "error", err)
		r.settle(id, Response{Success: false, Error: errCommunication, RequestID: id})
	}
	return id
}

// settle resolves a pending request exactly once. Late, duplicate or unknown
// ids fall through silently.
func (r *Router) settle(id uint64, resp Response) {
	r.mu.Lock()
	p, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
		p.timer.Stop()
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	p.callback(resp)
}

// HandleResponse routes an incoming response envelope. A response carrying a
// request id resolves the matching pending slot; one without an id is a
// handshake response and goes to the handshake slot.
func (r *Router) HandleResponse(resp Response) {
	if resp.RequestID == 0 {
		r.mu.Lock()
		cb := r.handshake
		r.mu.Unlock()
		if cb != nil {
			cb(resp)
		}
		return
	}
	r.settle(resp.RequestID, resp)
}

// RequestHandshake arms the single handshake slot and sends a handshake
// probe. The slot has no correlation id and no timeout; it fires on every
// handshake response until rearmed, letting the page detect that a vault
// holder is present and responsive.
func (r *Router) RequestHandshake(callback func(Response)) error {
	r.mu.Lock()
	r.handshake = callback
	r.mu.Unlock()

	env := Envelope{Type: TypeRequestFromPage, Event: EventHandshake}
	if err := r.send(env); err != nil {
		return fmt.Errorf("handshake send failed: %w", err)
	}
	return nil
}

// Call is the future-style wrapper over Dispatch: it blocks until the
// response arrives, the router times the request out, or ctx is done.
func (r *Router) Call(ctx context.Context, event string, data map[string]any) (Response, error) {
	ch := make(chan Response, 1)
	r.Dispatch(event, data, func(resp Response) { ch <- resp })

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// PendingCount reports how many requests await a response. Diagnostics only.
func (r *Router) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
