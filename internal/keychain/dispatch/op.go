package dispatch

import "github.com/ettaverse/etta-keychain-sub002/internal/keychain/vault"

// Op is the closed set of operations the dispatcher accepts. Requests carry
// the op as a string tag; parsing it into an Op up front means the routing
// switch below is exhaustive and an unknown tag is rejected once, at the
// boundary.
type Op string

const (
	OpEncode                 Op = "encode"
	OpEncodeWithKeys         Op = "encodeWithKeys"
	OpSignBuffer             Op = "signBuffer"
	OpSignTx                 Op = "signTx"
	OpAddAccountAuthority    Op = "addAccountAuthority"
	OpRemoveAccountAuthority Op = "removeAccountAuthority"
	OpAddKeyAuthority        Op = "addKeyAuthority"
	OpRemoveKeyAuthority     Op = "removeKeyAuthority"
	OpPost                   Op = "post"
	OpPostWithBeneficiaries  Op = "postWithBeneficiaries"
	OpBroadcast              Op = "broadcast"
	OpWitnessVote            Op = "witnessVote"
	OpWitnessProxy           Op = "witnessProxy"
	OpPowerUp                Op = "powerUp"
	OpPowerDown              Op = "powerDown"
	OpDelegation             Op = "delegation"
	OpSendToken              Op = "sendToken"
	OpCreateClaimedAccount   Op = "createClaimedAccount"
)

// opSpec describes what an operation needs before it may run: which request
// fields are mandatory and which key role signs it. Ops whose role is chosen
// by the request carry a "method" field instead of a fixed role.
type opSpec struct {
	required   []string
	role       vault.KeyRole
	roleByName bool
}

var opCatalog = map[Op]opSpec{
	OpEncode:                 {required: []string{"receiver", "message", "method"}, roleByName: true},
	OpEncodeWithKeys:         {required: []string{"publicKeys", "message", "method"}, roleByName: true},
	OpSignBuffer:             {required: []string{"message", "method"}, roleByName: true},
	OpSignTx:                 {required: []string{"tx", "method"}, roleByName: true},
	OpAddAccountAuthority:    {required: []string{"authorizedUsername", "role", "weight"}, role: vault.RoleActive},
	OpRemoveAccountAuthority: {required: []string{"authorizedUsername", "role"}, role: vault.RoleActive},
	OpAddKeyAuthority:        {required: []string{"authorizedKey", "role", "weight"}, role: vault.RoleActive},
	OpRemoveKeyAuthority:     {required: []string{"authorizedKey", "role"}, role: vault.RoleActive},
	OpPost:                   {required: []string{"body", "permlink"}, role: vault.RolePosting},
	OpPostWithBeneficiaries:  {required: []string{"body", "permlink", "beneficiaries"}, role: vault.RolePosting},
	OpBroadcast:              {required: []string{"operations", "method"}, roleByName: true},
	OpWitnessVote:            {required: []string{"witness", "vote"}, role: vault.RoleActive},
	OpWitnessProxy:           {required: []string{"proxy"}, role: vault.RoleActive},
	OpPowerUp:                {required: []string{"to", "amount"}, role: vault.RoleActive},
	OpPowerDown:              {required: []string{"amount"}, role: vault.RoleActive},
	OpDelegation:             {required: []string{"delegatee", "amount", "unit"}, role: vault.RoleActive},
	OpSendToken:              {required: []string{"to", "amount", "currency"}, role: vault.RoleActive},
	OpCreateClaimedAccount:   {required: []string{"newAccount", "owner", "active", "posting", "memo"}, role: vault.RoleActive},
}

// ParseOp maps a request type tag to an Op.
func ParseOp(s string) (Op, bool) {
	op := Op(s)
	_, ok := opCatalog[op]
	return op, ok
}
