package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ettaverse/etta-keychain-sub002/internal/filex"
	"github.com/ettaverse/etta-keychain-sub002/internal/keychain/vault"
)

func (a *App) exportBackup(ctx context.Context) {
	if !a.requireUnlocked() {
		return
	}

	blob, err := a.agent.Vault().ExportAccounts(ctx, a.masterKey)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}

	dir, err := filex.EnsureSubDir("backups")
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}

	name := filepath.Join(dir, fmt.Sprintf("keychain-backup-%s.enc", time.Now().Format("20060102-150405")))
	if err := os.WriteFile(name, []byte(blob), 0o600); err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}
	fmt.Fprintln(a.out, "Backup written to", name)

	if a.agent.Uploader().Enabled() {
		key, err := a.agent.Uploader().Upload(ctx, blob)
		if err != nil {
			fmt.Fprintln(a.out, "Upload failed:", err)
			return
		}
		fmt.Fprintln(a.out, "Backup uploaded as", key)
	}
}

func (a *App) importBackup(ctx context.Context, args []string) {
	if !a.requireUnlocked() {
		return
	}
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: import <file>")
		return
	}

	blob, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}

	err = a.agent.Vault().ImportFromBackup(ctx, string(blob), a.masterKey)
	switch {
	case err == nil:
		fmt.Fprintln(a.out, "Backup imported.")
	case errors.Is(err, vault.ErrInvalidBackupFormat):
		fmt.Fprintln(a.out, "Not a valid backup file.")
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
}
