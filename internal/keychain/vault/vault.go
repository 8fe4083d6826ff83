package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ettaverse/etta-keychain-sub002/internal/common"
	"github.com/ettaverse/etta-keychain-sub002/internal/cryptox"
	"github.com/ettaverse/etta-keychain-sub002/internal/logging"
	"github.com/ettaverse/etta-keychain-sub002/internal/storage"
)

// Service implements the secure vault over two storage scopes.
//
// Every mutation is a full decrypt → modify → encrypt → persist cycle; there
// is no partial update of the encrypted blob. The mutex serializes those
// cycles so that two interleaved mutations cannot silently drop each other's
// writes at the read-modify-write boundary.
type Service struct {
	mu      sync.Mutex
	local   storage.Store
	session storage.Store
	log     logging.Logger
	now     func() time.Time
}

func NewService(local, session storage.Store, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop{}
	}
	return &Service{local: local, session: session, log: log, now: time.Now}
}

// readList decrypts the stored account list. The second return value reports
// whether trusted data was found; an absent blob, a failed decryption, or a
// failed integrity check all come back as ok=false. This is the single place
// where "wrong password" collapses into "no data": a reader without the
// password must not be able to tell the two apart.
func (s *Service) readList(ctx context.Context, password []byte) (accountList, bool) {
	return s.readListFrom(ctx, s.local, password)
}

func (s *Service) readListFrom(ctx context.Context, local storage.Store, password []byte) (accountList, bool) {
	blob, err := local.Get(ctx, storage.KeyAccounts)
	if err != nil || blob == nil {
		return accountList{}, false
	}

	plaintext, err := cryptox.Decrypt(string(blob), password)
	if err != nil {
		return accountList{}, false
	}

	var list accountList
	if err := json.Unmarshal(plaintext, &list); err != nil {
		return accountList{}, false
	}

	if list.Hash != "" {
		serialized, err := json.Marshal(list.List)
		if err != nil || cryptox.Digest(serialized) != list.Hash {
			s.log.Warn(ctx, "account list integrity check failed, treating as empty")
			return accountList{}, false
		}
	}

	return list, true
}

// writeList stamps a fresh integrity digest, encrypts and persists the list.
func (s *Service) writeList(ctx context.Context, list accountList, password []byte) error {
	return s.writeListTo(ctx, s.local, list, password)
}

func (s *Service) writeListTo(ctx context.Context, local storage.Store, list accountList, password []byte) error {
	serialized, err := json.Marshal(list.List)
	if err != nil {
		return fmt.Errorf("failed to serialize account list: %w", err)
	}
	list.Hash = cryptox.Digest(serialized)

	plaintext, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to serialize envelope: %w", err)
	}

	blob, err := cryptox.Encrypt(plaintext, password)
	if err != nil {
		return fmt.Errorf("failed to encrypt account list: %w", err)
	}

	return local.Set(ctx, storage.KeyAccounts, []byte(blob))
}

// upsert replaces the account with the same name in place, or appends.
func upsert(list *accountList, acc Account) {
	if i := list.find(acc.Name); i >= 0 {
		list.List[i] = acc
		return
	}
	list.List = append(list.List, acc)
}

// SaveAccount upserts a single account. If it is the first account ever
// stored, it also becomes the active account.
func (s *Service) SaveAccount(ctx context.Context, name string, keys KeySet, password []byte, method ImportMethod) error {
	if err := validate(name, keys); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, _ := s.readList(ctx, password)
	wasEmpty := len(list.List) == 0

	acc := Account{Name: name, Keys: keys}
	if i := list.find(name); i >= 0 {
		// Keep the original import bookkeeping on replacement.
		acc.Metadata = list.List[i].Metadata
	} else {
		imported := s.now()
		acc.Metadata = Metadata{ImportMethod: method, ImportedAt: imported, LastUsed: &imported}
	}
	upsert(&list, acc)

	if err := s.writeList(ctx, list, password); err != nil {
		return err
	}

	if wasEmpty {
		if err := s.local.Set(ctx, storage.KeyActiveAccount, []byte(name)); err != nil {
			return err
		}
	}

	s.log.Info(ctx, "account saved", "account", name)
	return nil
}

// GetAccount returns the named account, or nil when it does not exist. A
// decryption failure is indistinguishable from "not found" here on purpose.
func (s *Service) GetAccount(ctx context.Context, name string, password []byte) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAccountLocked(ctx, name, password), nil
}

func (s *Service) getAccountLocked(ctx context.Context, name string, password []byte) *Account {
	list, ok := s.readList(ctx, password)
	if !ok {
		return nil
	}
	if i := list.find(name); i >= 0 {
		acc := list.List[i]
		return &acc
	}
	return nil
}

// ListAccounts returns every stored account in list order. An unreadable or
// absent vault yields an empty slice, same as GetAccount.
func (s *Service) ListAccounts(ctx context.Context, password []byte) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.readList(ctx, password)
	if !ok {
		return nil, nil
	}
	return list.List, nil
}

// GetActiveAccount resolves the active-account pointer to a full account.
func (s *Service) GetActiveAccount(ctx context.Context, password []byte) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.local.Get(ctx, storage.KeyActiveAccount)
	if err != nil {
		return nil, err
	}
	if name == nil {
		return nil, nil
	}
	return s.getAccountLocked(ctx, string(name), password), nil
}

// ActiveAccountName returns the plain pointer without touching the encrypted
// blob, so it works before the vault is unlocked.
func (s *Service) ActiveAccountName(ctx context.Context) (string, error) {
	name, err := s.local.Get(ctx, storage.KeyActiveAccount)
	if err != nil {
		return "", err
	}
	return string(name), nil
}

// SetActiveAccount unconditionally updates the pointer. When the caller
// supplies the unlocked password, the target's last-used timestamp is also
// refreshed; without a password that update is skipped, never an error.
func (s *Service) SetActiveAccount(ctx context.Context, name string, password []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.local.Set(ctx, storage.KeyActiveAccount, []byte(name)); err != nil {
		return err
	}

	if len(password) == 0 {
		return nil
	}

	list, ok := s.readList(ctx, password)
	if !ok {
		return nil
	}
	if i := list.find(name); i >= 0 {
		used := s.now()
		list.List[i].Metadata.LastUsed = &used
		if err := s.writeList(ctx, list, password); err != nil {
			s.log.Warn(ctx, "failed to refresh last-used timestamp", "account", name, "error", err)
		}
	}
	return nil
}

// DeleteAccount removes the named account. Deleting the active account moves
// the pointer to the first remaining account, or clears it when none remain.
func (s *Service) DeleteAccount(ctx context.Context, name string, password []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.readList(ctx, password)
	if !ok {
		return fmt.Errorf("account %q: %w", name, common.ErrNotFound)
	}
	i := list.find(name)
	if i < 0 {
		return fmt.Errorf("account %q: %w", name, common.ErrNotFound)
	}
	list.List = append(list.List[:i], list.List[i+1:]...)

	if err := s.writeList(ctx, list, password); err != nil {
		return err
	}

	active, err := s.local.Get(ctx, storage.KeyActiveAccount)
	if err != nil {
		return err
	}
	if string(active) == name {
		if len(list.List) > 0 {
			return s.local.Set(ctx, storage.KeyActiveAccount, []byte(list.List[0].Name))
		}
		return s.local.Delete(ctx, storage.KeyActiveAccount)
	}
	return nil
}

// UpdateAccountKeys merges newKeys into the account's key set. Existing roles
// not present in newKeys are preserved.
func (s *Service) UpdateAccountKeys(ctx context.Context, name string, newKeys KeySet, password []byte) error {
	for role := range newKeys {
		if _, ok := ParseKeyRole(string(role)); !ok {
			return ErrUnknownKeyRole
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.readList(ctx, password)
	if !ok {
		return fmt.Errorf("account %q: %w", name, common.ErrNotFound)
	}
	i := list.find(name)
	if i < 0 {
		return fmt.Errorf("account %q: %w", name, common.ErrNotFound)
	}

	for role, material := range newKeys {
		list.List[i].Keys[role] = material
	}

	return s.writeList(ctx, list, password)
}

// ImportBulkAccounts upserts every entry in a single decrypt/re-encrypt round
// trip, so a batch import cannot interleave with itself.
func (s *Service) ImportBulkAccounts(ctx context.Context, accounts []Account, password []byte, method ImportMethod) error {
	for _, acc := range accounts {
		if err := validate(acc.Name, acc.Keys); err != nil {
			return fmt.Errorf("account %q: %w", acc.Name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, _ := s.readList(ctx, password)
	wasEmpty := len(list.List) == 0

	for _, acc := range accounts {
		if i := list.find(acc.Name); i >= 0 {
			acc.Metadata = list.List[i].Metadata
		} else if acc.Metadata.ImportedAt.IsZero() {
			acc.Metadata = Metadata{ImportMethod: method, ImportedAt: s.now()}
		}
		upsert(&list, acc)
	}

	if err := s.writeList(ctx, list, password); err != nil {
		return err
	}

	if wasEmpty && len(list.List) > 0 {
		if err := s.local.Set(ctx, storage.KeyActiveAccount, []byte(list.List[0].Name)); err != nil {
			return err
		}
	}

	s.log.Info(ctx, "bulk import finished", "count", len(accounts))
	return nil
}

// ValidateStorageIntegrity reports whether the stored payload is trustworthy.
// No stored data is vacuously valid; a decrypted payload without a list is
// accepted leniently (legacy/empty state); a payload that decrypts but fails
// structural validation is not.
func (s *Service) ValidateStorageIntegrity(ctx context.Context, password []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := s.local.Get(ctx, storage.KeyAccounts)
	if err != nil {
		return false, err
	}
	if blob == nil {
		return true, nil
	}

	plaintext, err := cryptox.Decrypt(string(blob), password)
	if err != nil {
		return false, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(plaintext, &raw); err != nil {
		return false, nil
	}
	rawList, present := raw["list"]
	if !present {
		return true, nil
	}

	var list []Account
	if err := json.Unmarshal(rawList, &list); err != nil {
		return false, nil
	}
	for _, acc := range list {
		if validate(acc.Name, acc.Keys) != nil {
			return false, nil
		}
	}

	if rawHash, ok := raw["hash"]; ok {
		var hash string
		if err := json.Unmarshal(rawHash, &hash); err != nil {
			return false, nil
		}
		serialized, err := json.Marshal(list)
		if err != nil || cryptox.Digest(serialized) != hash {
			return false, nil
		}
	}

	return true, nil
}

// ReEncrypt rewrites the stored account list under a new password. Called
// after a master password change so existing accounts stay readable. A vault
// that is empty or unreadable under the old password is left untouched.
func (s *Service) ReEncrypt(ctx context.Context, oldPassword, newPassword []byte) error {
	return s.ReEncryptIn(ctx, s.local, oldPassword, newPassword)
}

// ReEncryptIn is ReEncrypt against an explicit view of the local store, so a
// password change can land the re-encrypted blob in the same transaction as
// the credential write.
func (s *Service) ReEncryptIn(ctx context.Context, local storage.Store, oldPassword, newPassword []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.readListFrom(ctx, local, oldPassword)
	if !ok || len(list.List) == 0 {
		return nil
	}
	return s.writeListTo(ctx, local, list, newPassword)
}

// multiDeleter is implemented by stores that can remove several keys
// atomically.
type multiDeleter interface {
	DeleteMany(ctx context.Context, keys ...string) error
}

// ClearAllData removes the encrypted account list, the active-account pointer
// and the session master-key marker. Idempotent.
func (s *Service) ClearAllData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if md, ok := s.local.(multiDeleter); ok {
		if err := md.DeleteMany(ctx, storage.KeyAccounts, storage.KeyActiveAccount); err != nil {
			return err
		}
	} else {
		if err := s.local.Delete(ctx, storage.KeyAccounts); err != nil {
			return err
		}
		if err := s.local.Delete(ctx, storage.KeyActiveAccount); err != nil {
			return err
		}
	}
	return s.session.Delete(ctx, storage.KeyMasterKey)
}
