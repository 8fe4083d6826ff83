// Package dispatch is the privileged-side façade for routed requests: it
// authenticates the caller against the unlocked session, resolves the acting
// account and its key material from the vault, validates the operation's
// parameters, and hands the resolved call to the broadcast collaborator.
//
// All checks run in a fixed order, cheapest first. Parameter validation
// happens before any secret is touched; authentication before any account
// lookup. Every outcome, success or failure, is a uniform response envelope.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/ettaverse/etta-keychain-sub002/internal/broadcast"
	"github.com/ettaverse/etta-keychain-sub002/internal/keychain/vault"
	"github.com/ettaverse/etta-keychain-sub002/internal/logging"
	"github.com/ettaverse/etta-keychain-sub002/internal/router"
	"github.com/ettaverse/etta-keychain-sub002/internal/storage"
)

// Default request rate: generous for interactive use, tight enough to slow
// down a misbehaving page.
const (
	defaultRate  rate.Limit = 10
	defaultBurst            = 20
)

// Vault is the account-resolution surface the dispatcher needs.
type Vault interface {
	GetAccount(ctx context.Context, name string, password []byte) (*vault.Account, error)
	GetActiveAccount(ctx context.Context, password []byte) (*vault.Account, error)
}

// Dispatcher routes authenticated requests to the broadcaster.
type Dispatcher struct {
	session storage.Store
	vault   Vault
	bc      broadcast.Broadcaster
	limiter *rate.Limiter
	log     logging.Logger
}

func New(session storage.Store, v Vault, bc broadcast.Broadcaster, log logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.Nop{}
	}
	return &Dispatcher{
		session: session,
		vault:   v,
		bc:      bc,
		limiter: rate.NewLimiter(defaultRate, defaultBurst),
		log:     log,
	}
}

func fail(id uint64, msg string) router.Response {
	return router.Response{Success: false, Error: msg, RequestID: id}
}

// Handle processes one routed request envelope and produces its response.
// It never returns an error: every failure mode maps to a failure response.
func (d *Dispatcher) Handle(ctx context.Context, env router.Envelope) router.Response {
	if env.Event == router.EventHandshake {
		return router.Response{Success: true, Message: "keychain ready"}
	}

	var params map[string]any
	if err := json.Unmarshal(env.Data, &params); err != nil {
		return fail(0, "Malformed request")
	}

	id := uint64(0)
	if v, ok := params["request_id"].(float64); ok {
		id = uint64(v)
	}

	if !d.limiter.Allow() {
		return fail(id, "Too many requests")
	}

	tag, _ := params["type"].(string)
	op, ok := ParseOp(tag)
	if !ok {
		return fail(id, "Unsupported request type")
	}
	entry := opCatalog[op]

	if missing := missingParams(entry, params); len(missing) > 0 {
		return fail(id, "Missing required parameters: "+strings.Join(missing, ", "))
	}

	// Presence of the session master key is the authentication proof; it is
	// written on unlock and cleared on lock.
	password, err := d.session.Get(ctx, storage.KeyMasterKey)
	if err != nil {
		d.log.Error(ctx, "session read failed", "error", err)
		return fail(id, "Internal error")
	}
	if password == nil {
		return fail(id, "User not authenticated")
	}

	account, resp := d.resolveAccount(ctx, id, params, password)
	if account == nil {
		return resp
	}

	role, key, resp := resolveKey(id, entry, params, account)
	if key == "" {
		return resp
	}

	if err := validateOp(op, params, account.Name); err != nil {
		return fail(id, err.Error())
	}

	result, err := d.bc.Execute(ctx, broadcast.Call{
		Op:      string(op),
		Account: account.Name,
		Role:    role,
		Key:     key,
		Params:  params,
	})
	if err != nil {
		d.log.Warn(ctx, "broadcast failed", "op", op, "account", account.Name, "error", err)
		return fail(id, err.Error())
	}

	d.log.Info(ctx, "request handled", "op", op, "account", account.Name, "request_id", id)
	return router.Response{Success: true, Result: result, RequestID: id}
}

func missingParams(entry opSpec, params map[string]any) []string {
	var missing []string
	for _, name := range entry.required {
		v, ok := params[name]
		if !ok || v == nil {
			missing = append(missing, name)
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// resolveAccount maps an explicit username to a vault account, falling back
// to the active account when the request omits one. A nil account means the
// returned response is final.
func (d *Dispatcher) resolveAccount(ctx context.Context, id uint64, params map[string]any, password []byte) (*vault.Account, router.Response) {
	if username, _ := params["username"].(string); username != "" {
		account, err := d.vault.GetAccount(ctx, username, password)
		if err != nil {
			d.log.Error(ctx, "account lookup failed", "error", err)
			return nil, fail(id, "Internal error")
		}
		if account == nil {
			// The caller named an account the vault does not hold.
			return nil, fail(id, "Username mismatch")
		}
		return account, router.Response{}
	}

	account, err := d.vault.GetActiveAccount(ctx, password)
	if err != nil {
		d.log.Error(ctx, "active account lookup failed", "error", err)
		return nil, fail(id, "Internal error")
	}
	if account == nil {
		return nil, fail(id, "No active account found")
	}
	return account, router.Response{}
}

// resolveKey picks the signing key for the request: either the fixed role
// the operation demands or the role named by its "method" field. An empty
// key means the returned response is final.
func resolveKey(id uint64, entry opSpec, params map[string]any, account *vault.Account) (vault.KeyRole, string, router.Response) {
	role := entry.role
	if entry.roleByName {
		method, _ := params["method"].(string)
		parsed, ok := vault.ParseKeyRole(method)
		if !ok {
			return "", "", fail(id, "Invalid key type")
		}
		role = parsed
	}

	key, ok := account.Keys[role]
	if !ok || key == "" {
		return "", "", fail(id, fmt.Sprintf("%s key not available for this account", role))
	}
	return role, key, router.Response{}
}

// validateOp runs the operation-specific business rules. Exhaustive over the
// op catalog: ops without extra rules pass through.
func validateOp(op Op, params map[string]any, account string) error {
	switch op {
	case OpPost:
		return validatePermlink(params)
	case OpPostWithBeneficiaries:
		if err := validatePermlink(params); err != nil {
			return err
		}
		return validateBeneficiaries(params)
	case OpWitnessVote:
		return validateWitnessVote(params)
	case OpWitnessProxy:
		return validateWitnessProxy(params, account)
	case OpEncode, OpEncodeWithKeys, OpSignBuffer, OpSignTx,
		OpAddAccountAuthority, OpRemoveAccountAuthority,
		OpAddKeyAuthority, OpRemoveKeyAuthority,
		OpBroadcast, OpPowerUp, OpPowerDown,
		OpDelegation, OpSendToken, OpCreateClaimedAccount:
		return nil
	}
	return nil
}
