package router

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// captureSend records sent envelopes and lets tests control send errors.
type captureSend struct {
	mu   sync.Mutex
	envs []Envelope
	err  error
}

func (c *captureSend) send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.envs = append(c.envs, env)
	return nil
}

func (c *captureSend) sent() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Envelope(nil), c.envs...)
}

func decodeData(t *testing.T, env Envelope) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &m))
	return m
}

func TestDispatchAllocatesMonotonicIDs(t *testing.T) {
	sender := &captureSend{}
	r := New(sender.send, nil)

	id1 := r.Dispatch(EventRequest, map[string]any{"op": "signBuffer"}, func(Response) {})
	id2 := r.Dispatch(EventRequest, nil, func(Response) {})
	id3 := r.Dispatch(EventRequest, nil, func(Response) {})

	require.Equal(t, uint64(1), id1)
	require.Equal(t, uint64(2), id2)
	require.Equal(t, uint64(3), id3)

	envs := sender.sent()
	require.Len(t, envs, 3)
	require.Equal(t, TypeRequestFromPage, envs[0].Type)
	require.Equal(t, EventRequest, envs[0].Event)

	data := decodeData(t, envs[0])
	require.Equal(t, float64(1), data["request_id"])
	require.Equal(t, "signBuffer", data["op"])
}

func TestDispatchDoesNotMutateCallerData(t *testing.T) {
	sender := &captureSend{}
	r := New(sender.send, nil)

	data := map[string]any{"op": "encode"}
	r.Dispatch(EventRequest, data, func(Response) {})

	require.NotContains(t, data, "request_id")
}

func TestHandleResponseSettlesMatchingRequest(t *testing.T) {
	sender := &captureSend{}
	r := New(sender.send, nil)

	var got Response
	done := make(chan struct{})
	id := r.Dispatch(EventRequest, nil, func(resp Response) {
		got = resp
		close(done)
	})

	r.HandleResponse(Response{Success: true, Result: "ok", RequestID: id})

	<-done
	require.True(t, got.Success)
	require.Equal(t, "ok", got.Result)
	require.Equal(t, 0, r.PendingCount())
}

func TestHandleResponseUnknownIDIsNoop(t *testing.T) {
	sender := &captureSend{}
	r := New(sender.send, nil)

	// Must not panic or disturb anything.
	r.HandleResponse(Response{Success: true, RequestID: 42})
	require.Equal(t, 0, r.PendingCount())
}

func TestTimeoutFiresExactlyOnce(t *testing.T) {
	sender := &captureSend{}
	r := NewWithTimeout(sender.send, 20*time.Millisecond, nil)

	var mu sync.Mutex
	var calls []Response
	id := r.Dispatch(EventRequest, nil, func(resp Response) {
		mu.Lock()
		calls = append(calls, resp)
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	}, time.Second, 5*time.Millisecond)

	// A response arriving after the timeout has no further effect.
	r.HandleResponse(Response{Success: true, RequestID: id})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 1)
	require.False(t, calls[0].Success)
	require.Equal(t, "Request timeout", calls[0].Error)
	require.Equal(t, id, calls[0].RequestID)
}

func TestResponseBeforeTimeoutCancelsTimer(t *testing.T) {
	sender := &captureSend{}
	r := NewWithTimeout(sender.send, 30*time.Millisecond, nil)

	var mu sync.Mutex
	var calls []Response
	id := r.Dispatch(EventRequest, nil, func(resp Response) {
		mu.Lock()
		calls = append(calls, resp)
		mu.Unlock()
	})

	r.HandleResponse(Response{Success: true, RequestID: id})
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 1)
	require.True(t, calls[0].Success)
}

func TestSendFailureYieldsCommunicationError(t *testing.T) {
	sender := &captureSend{err: errors.New("no listener")}
	r := New(sender.send, nil)

	var got Response
	done := make(chan struct{})
	r.Dispatch(EventRequest, nil, func(resp Response) {
		got = resp
		close(done)
	})

	<-done
	require.False(t, got.Success)
	require.Equal(t, "Communication error", got.Error)
	require.Equal(t, 0, r.PendingCount())
}

func TestHandshakeSlot(t *testing.T) {
	sender := &captureSend{}
	r := New(sender.send, nil)

	var mu sync.Mutex
	var got []Response
	require.NoError(t, r.RequestHandshake(func(resp Response) {
		mu.Lock()
		got = append(got, resp)
		mu.Unlock()
	}))

	envs := sender.sent()
	require.Len(t, envs, 1)
	require.Equal(t, EventHandshake, envs[0].Event)

	// Responses without a request id go to the handshake slot, repeatedly.
	r.HandleResponse(Response{Success: true})
	r.HandleResponse(Response{Success: true})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	require.True(t, got[0].Success)
}

func TestHandshakeSendFailure(t *testing.T) {
	sender := &captureSend{err: errors.New("down")}
	r := New(sender.send, nil)

	err := r.RequestHandshake(func(Response) {})
	require.Error(t, err)
}

func TestCallReturnsResponse(t *testing.T) {
	sender := &captureSend{}
	r := New(sender.send, nil)

	go func() {
		// Wait until the request is on the wire, then answer it.
		for {
			envs := sender.sent()
			if len(envs) == 1 {
				data := decodeData(t, envs[0])
				id := uint64(data["request_id"].(float64))
				r.HandleResponse(Response{Success: true, Result: "done", RequestID: id})
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	resp, err := r.Call(context.Background(), EventRequest, map[string]any{"op": "encode"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "done", resp.Result)
}

func TestCallHonorsContext(t *testing.T) {
	sender := &captureSend{}
	r := New(sender.send, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Call(ctx, EventRequest, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRelayRetagsRequests(t *testing.T) {
	var forwarded []Envelope
	var returned []Response
	rl := NewRelay(
		func(env Envelope) error { forwarded = append(forwarded, env); return nil },
		func(resp Response) error { returned = append(returned, resp); return nil },
		nil,
	)

	raw, _ := json.Marshal(map[string]any{"request_id": 7})
	err := rl.ForwardRequest(Envelope{Type: TypeRequestFromPage, Event: EventRequest, Data: raw})
	require.NoError(t, err)

	require.Len(t, forwarded, 1)
	require.Equal(t, TypeRequest, forwarded[0].Type)
	require.NotEmpty(t, forwarded[0].HopID)
	require.JSONEq(t, string(raw), string(forwarded[0].Data))

	require.NoError(t, rl.ForwardResponse(Response{Success: true, RequestID: 7}))
	require.Len(t, returned, 1)
	require.Equal(t, uint64(7), returned[0].RequestID)
}

func TestLoopbackDeliversToPeerOnly(t *testing.T) {
	page, vault := NewLoopback()

	var pageEnvs, vaultEnvs []Envelope
	require.NoError(t, page.SubscribeEnvelopes(func(env Envelope) { pageEnvs = append(pageEnvs, env) }))
	require.NoError(t, vault.SubscribeEnvelopes(func(env Envelope) { vaultEnvs = append(vaultEnvs, env) }))

	require.NoError(t, page.PublishEnvelope(Envelope{Event: EventRequest}))

	require.Len(t, vaultEnvs, 1)
	require.Empty(t, pageEnvs)

	var pageResps []Response
	require.NoError(t, page.SubscribeResponses(func(resp Response) { pageResps = append(pageResps, resp) }))
	require.NoError(t, vault.PublishResponse(Response{Success: true, RequestID: 1}))

	require.Len(t, pageResps, 1)
	require.True(t, pageResps[0].Success)
}

func TestEndToEndOverLoopback(t *testing.T) {
	pageEnd, vaultEnd := NewLoopback()

	r := New(pageEnd.PublishEnvelope, nil)
	require.NoError(t, pageEnd.SubscribeResponses(r.HandleResponse))

	// Vault side echoes every request as a success carrying its id back.
	require.NoError(t, vaultEnd.SubscribeEnvelopes(func(env Envelope) {
		var m map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &m))
		id := uint64(m["request_id"].(float64))
		require.NoError(t, vaultEnd.PublishResponse(Response{Success: true, Result: m["op"], RequestID: id}))
	}))

	resp, err := r.Call(context.Background(), EventRequest, map[string]any{"op": "signTx"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "signTx", resp.Result)
	require.Equal(t, 0, r.PendingCount())
}
