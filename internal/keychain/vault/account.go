// Package vault owns the encrypted account list: key material for every
// stored identity, encrypted as one blob under the master password.
//
// The vault itself does not track lock state; every operation takes the
// (already validated) master password as a parameter. Gating lives in the
// auth layer.
package vault

import (
	"errors"
	"strings"
	"time"
)

// KeyRole identifies which authority a stored key carries.
type KeyRole string

const (
	RoleActive  KeyRole = "active"
	RolePosting KeyRole = "posting"
	RoleMemo    KeyRole = "memo"
	RoleOwner   KeyRole = "owner"
)

// ParseKeyRole maps a role string to a KeyRole, case-insensitively.
func ParseKeyRole(s string) (KeyRole, bool) {
	switch KeyRole(strings.ToLower(s)) {
	case RoleActive:
		return RoleActive, true
	case RolePosting:
		return RolePosting, true
	case RoleMemo:
		return RoleMemo, true
	case RoleOwner:
		return RoleOwner, true
	}
	return "", false
}

// KeySet maps key roles to opaque key material. All roles are optional but a
// stored account always carries at least one.
type KeySet map[KeyRole]string

// ImportMethod records how an account's keys entered the vault.
type ImportMethod string

const (
	ImportMasterPassword ImportMethod = "master_password"
	ImportIndividualKeys ImportMethod = "individual_keys"
	ImportOwnerKey       ImportMethod = "owner_key"
	ImportBackup         ImportMethod = "backup"
)

// Metadata carries bookkeeping about a stored account.
type Metadata struct {
	ImportMethod ImportMethod `json:"import_method"`
	ImportedAt   time.Time    `json:"imported_at"`
	LastUsed     *time.Time   `json:"last_used,omitempty"`
}

// Account is a stored identity. It never exists partially: a persisted
// account always has a name and at least one key.
type Account struct {
	Name     string   `json:"name"`
	Keys     KeySet   `json:"keys"`
	Metadata Metadata `json:"metadata"`
}

var (
	ErrEmptyAccountName = errors.New("account name is empty")
	ErrNoKeys           = errors.New("account has no keys")
	ErrUnknownKeyRole   = errors.New("unknown key role")

	// ErrInvalidBackupFormat is returned by ImportFromBackup when the
	// decrypted payload is not a versioned backup envelope.
	ErrInvalidBackupFormat = errors.New("invalid backup format")
)

// validate checks the structural invariants of an account before it is
// admitted into the list.
func validate(name string, keys KeySet) error {
	if name == "" {
		return ErrEmptyAccountName
	}
	if len(keys) == 0 {
		return ErrNoKeys
	}
	for role := range keys {
		if _, ok := ParseKeyRole(string(role)); !ok {
			return ErrUnknownKeyRole
		}
	}
	return nil
}

// accountList is the persisted envelope: the list plus an integrity digest of
// the serialized list computed at encryption time.
type accountList struct {
	List []Account `json:"list"`
	Hash string    `json:"hash,omitempty"`
}

func (l *accountList) find(name string) int {
	for i := range l.List {
		if l.List[i].Name == name {
			return i
		}
	}
	return -1
}
