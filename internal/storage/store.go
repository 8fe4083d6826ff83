// Package storage provides the namespaced key-value persistence used by the
// vault and auth layers.
//
// Two scopes exist, mirroring extension storage areas: the local scope
// survives restarts (sqlite-backed), the session scope lives only as long as
// the process (in-memory) and is therefore the only legitimate home for the
// unlocked-session marker.
package storage

import "context"

// Well-known entry keys.
const (
	// KeyAuthData holds the serialized auth credential (local scope).
	KeyAuthData = "AUTH_DATA"

	// KeyAccounts holds the encrypted account-list blob (local scope).
	KeyAccounts = "ACCOUNTS"

	// KeyActiveAccount holds the plain active-account name (local scope).
	// It lives outside the encrypted blob so the UI can show whose vault
	// this is before the master password is entered.
	KeyActiveAccount = "ACTIVE_ACCOUNT"

	// KeyMasterKey holds the unlocked master password (session scope only).
	// Its presence is the authentication proof read by the dispatcher.
	KeyMasterKey = "__MK"
)

// Store is a flat key-value store. Get returns (nil, nil) when the key is
// absent; callers must treat a nil value as "no data", never as an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// TxStore is implemented by stores that can scope a group of writes to a
// single transaction.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
}
