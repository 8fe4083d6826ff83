package vault

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ettaverse/etta-keychain-sub002/internal/cryptox"
	"github.com/ettaverse/etta-keychain-sub002/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src, _ := newVault(t)

	require.NoError(t, src.SaveAccount(ctx, "alice", KeySet{RolePosting: "p", RoleMemo: "m"}, password, ImportMasterPassword))
	require.NoError(t, src.SaveAccount(ctx, "bob", keys(RoleActive, "a"), password, ImportOwnerKey))

	blob, err := src.ExportAccounts(ctx, password)
	require.NoError(t, err)

	dst, _ := newVault(t)
	require.NoError(t, dst.ImportFromBackup(ctx, blob, password))

	want, err := src.ListAccounts(ctx, password)
	require.NoError(t, err)
	got, err := dst.ListAccounts(ctx, password)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestImportFromBackup_WrongPassword(t *testing.T) {
	ctx := context.Background()
	src, _ := newVault(t)
	require.NoError(t, src.SaveAccount(ctx, "alice", keys(RolePosting, "p"), password, ImportMasterPassword))

	blob, err := src.ExportAccounts(ctx, password)
	require.NoError(t, err)

	dst, _ := newVault(t)
	err = dst.ImportFromBackup(ctx, blob, []byte("other password"))
	require.ErrorIs(t, err, cryptox.ErrDecryptionFailed)
}

func TestImportFromBackup_InvalidFormat(t *testing.T) {
	ctx := context.Background()
	dst, _ := newVault(t)

	cases := map[string]string{
		"not json":         `"just a string"`,
		"missing version":  `{"accounts":[]}`,
		"missing accounts": `{"version":1}`,
		"accounts not arr": `{"version":1,"accounts":42}`,
	}
	for name, payload := range cases {
		blob, err := cryptox.Encrypt([]byte(payload), password)
		require.NoError(t, err, name)
		err = dst.ImportFromBackup(ctx, blob, password)
		require.ErrorIs(t, err, ErrInvalidBackupFormat, name)
	}
}

func TestExport_VersionedEnvelope(t *testing.T) {
	ctx := context.Background()
	s, _ := newVault(t)
	require.NoError(t, s.SaveAccount(ctx, "alice", keys(RolePosting, "p"), password, ImportMasterPassword))

	blob, err := s.ExportAccounts(ctx, password)
	require.NoError(t, err)

	plaintext, err := cryptox.Decrypt(blob, password)
	require.NoError(t, err)

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(plaintext, &env))
	require.Contains(t, env, "version")
	require.Contains(t, env, "exported")
	require.Contains(t, env, "accounts")
}

func TestImportFromBackup_UpsertsIntoExistingVault(t *testing.T) {
	ctx := context.Background()
	src, _ := newVault(t)
	require.NoError(t, src.SaveAccount(ctx, "alice", keys(RolePosting, "new"), password, ImportMasterPassword))
	blob, err := src.ExportAccounts(ctx, password)
	require.NoError(t, err)

	dst := NewService(storage.NewMemoryStore(), storage.NewMemoryStore(), nil)
	require.NoError(t, dst.SaveAccount(ctx, "alice", keys(RolePosting, "old"), password, ImportMasterPassword))
	require.NoError(t, dst.SaveAccount(ctx, "carol", keys(RoleMemo, "c"), password, ImportMasterPassword))

	require.NoError(t, dst.ImportFromBackup(ctx, blob, password))

	all, err := dst.ListAccounts(ctx, password)
	require.NoError(t, err)
	require.Len(t, all, 2)

	alice, err := dst.GetAccount(ctx, "alice", password)
	require.NoError(t, err)
	require.Equal(t, keys(RolePosting, "new"), alice.Keys)
}
