// Package broadcast is the boundary to the signing/broadcast collaborator.
// The dispatcher resolves key material and validates parameters, then hands
// everything here; what happens to the operation afterwards (signing,
// network submission) is this package's concern alone.
package broadcast

import (
	"context"

	"github.com/google/uuid"

	"github.com/ettaverse/etta-keychain-sub002/internal/keychain/vault"
)

// Call is a fully resolved, validated operation ready for signing.
type Call struct {
	Op      string
	Account string
	Role    vault.KeyRole
	// Key is the resolved private key material for Role. Never logged.
	Key    string
	Params map[string]any
}

// Broadcaster executes a resolved call and returns an opaque result for the
// response envelope. Any returned error is mapped to a failure response by
// the dispatcher; it never escapes as a raw error.
type Broadcaster interface {
	Execute(ctx context.Context, call Call) (any, error)
}

// Offline acknowledges operations without submitting them anywhere. It is
// used when the agent runs without a node connection: operations are
// validated and authorized as usual but only a local receipt is produced.
type Offline struct{}

func (Offline) Execute(ctx context.Context, call Call) (any, error) {
	return map[string]any{
		"id":       uuid.NewString(),
		"op":       call.Op,
		"account":  call.Account,
		"role":     string(call.Role),
		"accepted": true,
	}, nil
}
