// Package router implements the cross-context request protocol: correlation
// of asynchronous requests and responses between an untrusted page side, a
// relay, and the privileged vault holder.
//
// The router itself is pure message correlation and knows nothing about the
// vault. Transports plug in behind a small Bus interface.
package router

import "encoding/json"

// Envelope tags for each hop. The relay retags a page request before
// forwarding it to the vault holder.
const (
	TypeRequestFromPage = "keychain_request_from_page"
	TypeRequest         = "keychain_request"
)

// Events carried by request envelopes.
const (
	EventRequest   = "swRequest"
	EventHandshake = "swHandshake"
)

// Envelope is the request wire format. Data is the untyped request payload;
// a correlation id travels inside it as "request_id".
type Envelope struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	HopID string          `json:"hop_id,omitempty"`
}

// Response is the uniform reply envelope. Every reply reaching the page side
// has this shape; raw errors never cross the boundary. A response without a
// request id is a handshake response.
type Response struct {
	Success   bool   `json:"success"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	RequestID uint64 `json:"request_id,omitempty"`
}

// Synthetic failure texts produced by the router itself.
const (
	errTimeout       = "Request timeout"
	errCommunication = "Communication error"
)
