package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ettaverse/etta-keychain-sub002/internal/common"
	"github.com/ettaverse/etta-keychain-sub002/internal/keychain/vault"
)

// requireUnlocked gates account commands on an open session.
func (a *App) requireUnlocked() bool {
	if !a.isUnlocked() || a.masterKey == nil {
		fmt.Fprintln(a.out, "Unlock the keychain first.")
		return false
	}
	return true
}

// parseKeyLines turns "role=key" lines into a KeySet.
func parseKeyLines(lines []string) (vault.KeySet, error) {
	keys := vault.KeySet{}
	for _, line := range lines {
		name, value, found := strings.Cut(line, "=")
		if !found || strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("invalid key line %q, want role=key", line)
		}
		role, ok := vault.ParseKeyRole(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown key role %q", strings.TrimSpace(name))
		}
		keys[role] = strings.TrimSpace(value)
	}
	return keys, nil
}

func (a *App) addAccount(ctx context.Context, args []string) {
	if !a.requireUnlocked() {
		return
	}
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: add <name>")
		return
	}
	name := args[0]

	lines, err := GetKeyLines(a.reader, a.out)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}
	keys, err := parseKeyLines(lines)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}

	if err := a.agent.Vault().SaveAccount(ctx, name, keys, a.masterKey, vault.ImportIndividualKeys); err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}
	fmt.Fprintf(a.out, "Account %s saved.\n", name)
}

func (a *App) listAccounts(ctx context.Context) {
	if !a.requireUnlocked() {
		return
	}

	accounts, err := a.agent.Vault().ListAccounts(ctx, a.masterKey)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}
	if len(accounts) == 0 {
		fmt.Fprintln(a.out, "No accounts stored.")
		return
	}

	active, _ := a.agent.Vault().ActiveAccountName(ctx)
	for _, acc := range accounts {
		marker := " "
		if acc.Name == active {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s %s (%s)\n", marker, acc.Name, strings.Join(roleNames(acc.Keys), ", "))
	}
}

func roleNames(keys vault.KeySet) []string {
	// Stable order for display.
	order := []vault.KeyRole{vault.RoleOwner, vault.RoleActive, vault.RolePosting, vault.RoleMemo}
	names := make([]string, 0, len(keys))
	for _, role := range order {
		if _, ok := keys[role]; ok {
			names = append(names, string(role))
		}
	}
	return names
}

func (a *App) showAccount(ctx context.Context, args []string) {
	if !a.requireUnlocked() {
		return
	}
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: show <name>")
		return
	}

	acc, err := a.agent.Vault().GetAccount(ctx, args[0], a.masterKey)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}
	if acc == nil {
		fmt.Fprintln(a.out, "Account not found.")
		return
	}

	fmt.Fprintln(a.out, "Name:", acc.Name)
	fmt.Fprintln(a.out, "Imported:", acc.Metadata.ImportedAt.Format("2006-01-02 15:04:05"), "via", acc.Metadata.ImportMethod)
	if acc.Metadata.LastUsed != nil {
		fmt.Fprintln(a.out, "Last used:", acc.Metadata.LastUsed.Format("2006-01-02 15:04:05"))
	}
	for _, role := range roleNames(acc.Keys) {
		fmt.Fprintf(a.out, "  %s: %s\n", role, maskKey(acc.Keys[vault.KeyRole(role)]))
	}
}

// maskKey hides the middle of key material for display.
func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func (a *App) deleteAccount(ctx context.Context, args []string) {
	if !a.requireUnlocked() {
		return
	}
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: del <name>")
		return
	}

	err := a.agent.Vault().DeleteAccount(ctx, args[0], a.masterKey)
	switch {
	case err == nil:
		fmt.Fprintf(a.out, "Account %s deleted.\n", args[0])
	case errors.Is(err, common.ErrNotFound):
		fmt.Fprintln(a.out, "Account not found.")
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
}

func (a *App) updateKeys(ctx context.Context, args []string) {
	if !a.requireUnlocked() {
		return
	}
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: keys <name>")
		return
	}

	lines, err := GetKeyLines(a.reader, a.out)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}
	keys, err := parseKeyLines(lines)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}

	err = a.agent.Vault().UpdateAccountKeys(ctx, args[0], keys, a.masterKey)
	switch {
	case err == nil:
		fmt.Fprintf(a.out, "Keys updated for %s.\n", args[0])
	case errors.Is(err, common.ErrNotFound):
		fmt.Fprintln(a.out, "Account not found.")
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
}

func (a *App) activeAccount(ctx context.Context, args []string) {
	if len(args) == 0 {
		name, err := a.agent.Vault().ActiveAccountName(ctx)
		if err != nil {
			fmt.Fprintln(a.out, "Error:", err)
			return
		}
		if name == "" {
			fmt.Fprintln(a.out, "No active account.")
			return
		}
		fmt.Fprintln(a.out, "Active account:", name)
		return
	}

	if err := a.agent.Vault().SetActiveAccount(ctx, args[0], a.masterKey); err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}
	fmt.Fprintln(a.out, "Active account set to", args[0])
}
