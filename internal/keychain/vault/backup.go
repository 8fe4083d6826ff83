package vault

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ettaverse/etta-keychain-sub002/internal/cryptox"
)

// BackupVersion is the current export envelope version. Backups carry their
// own version so they stay importable across internal format changes.
const BackupVersion = 1

// backupEnvelope is the decrypted shape of an exported backup.
type backupEnvelope struct {
	Version  int       `json:"version"`
	Exported int64     `json:"exported"` // epoch milliseconds
	Accounts []Account `json:"accounts"`
}

// ExportAccounts serializes the full account list into a versioned envelope
// and encrypts it under password. The result is independent of the internal
// storage format.
func (s *Service) ExportAccounts(ctx context.Context, password []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, _ := s.readList(ctx, password)

	env := backupEnvelope{
		Version:  BackupVersion,
		Exported: s.now().UnixMilli(),
		Accounts: list.List,
	}
	plaintext, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to serialize backup: %w", err)
	}

	blob, err := cryptox.Encrypt(plaintext, password)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt backup: %w", err)
	}

	s.log.Info(ctx, "accounts exported", "count", len(env.Accounts))
	return blob, nil
}

// ImportFromBackup decrypts blob, validates the envelope and bulk-upserts its
// accounts. A payload without a version or accounts array fails with
// ErrInvalidBackupFormat.
func (s *Service) ImportFromBackup(ctx context.Context, blob string, password []byte) error {
	plaintext, err := cryptox.Decrypt(blob, password)
	if err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(plaintext, &raw); err != nil {
		return ErrInvalidBackupFormat
	}
	if _, ok := raw["version"]; !ok {
		return ErrInvalidBackupFormat
	}
	rawAccounts, ok := raw["accounts"]
	if !ok {
		return ErrInvalidBackupFormat
	}

	var accounts []Account
	if err := json.Unmarshal(rawAccounts, &accounts); err != nil {
		return ErrInvalidBackupFormat
	}

	return s.ImportBulkAccounts(ctx, accounts, password, ImportBackup)
}
