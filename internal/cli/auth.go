package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ettaverse/etta-keychain-sub002/internal/common"
	"github.com/ettaverse/etta-keychain-sub002/internal/keychain/auth"
)

func (a *App) setup(ctx context.Context) {
	password, err := GetPassword("Choose a master password", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}
	defer common.WipeByteArray(password)

	confirm, err := GetPassword("Confirm master password", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}
	defer common.WipeByteArray(confirm)

	err = a.agent.Auth().SetupPassword(ctx, password, confirm)
	switch {
	case err == nil:
		fmt.Fprintln(a.out, "Master password set. Use 'unlock' to open the keychain.")
	case errors.Is(err, auth.ErrPasswordAlreadySet):
		fmt.Fprintln(a.out, "A master password is already set. Use 'passwd' to change it.")
	case errors.Is(err, auth.ErrPasswordMismatch):
		fmt.Fprintln(a.out, "Passwords do not match.")
	case errors.Is(err, auth.ErrWeakPassword):
		s := auth.PasswordStrength(string(password))
		fmt.Fprintln(a.out, "Password is too weak:")
		for _, f := range s.Feedback {
			fmt.Fprintln(a.out, "  -", f)
		}
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
}

func (a *App) unlock(ctx context.Context) {
	password, err := GetPassword("Master password", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}

	ok, err := a.agent.Unlock(ctx, password)
	if err != nil {
		var lockout *auth.LockoutError
		switch {
		case errors.As(err, &lockout):
			fmt.Fprintln(a.out, "Too many failed attempts:", lockout.Error())
		case errors.Is(err, auth.ErrNoPasswordSet):
			fmt.Fprintln(a.out, "No master password set. Use 'setup' first.")
		default:
			fmt.Fprintln(a.out, "Error:", err)
		}
		common.WipeByteArray(password)
		return
	}
	if !ok {
		fmt.Fprintln(a.out, "Wrong password.")
		common.WipeByteArray(password)
		return
	}

	a.forgetMasterKey()
	a.masterKey = password
	fmt.Fprintln(a.out, "Keychain unlocked.")
}

func (a *App) lock(ctx context.Context) {
	a.agent.Auth().Lock(ctx)
	a.forgetMasterKey()
	fmt.Fprintln(a.out, "Keychain locked.")
}

func (a *App) changePassword(ctx context.Context) {
	current, err := GetPassword("Current master password", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}
	defer common.WipeByteArray(current)

	newPassword, err := GetPassword("New master password", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}
	defer common.WipeByteArray(newPassword)

	confirm, err := GetPassword("Confirm new master password", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}
	defer common.WipeByteArray(confirm)

	err = a.agent.ChangePassword(ctx, current, newPassword, confirm)
	switch {
	case err == nil:
		a.forgetMasterKey()
		fmt.Fprintln(a.out, "Password changed. The keychain is now locked; unlock with the new password.")
	case errors.Is(err, common.ErrUnauthorized):
		fmt.Fprintln(a.out, "Current password is incorrect.")
	case errors.Is(err, auth.ErrPasswordMismatch):
		fmt.Fprintln(a.out, "New passwords do not match.")
	case errors.Is(err, auth.ErrWeakPassword):
		fmt.Fprintln(a.out, "New password is too weak.")
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
}

func (a *App) showStatus(ctx context.Context) {
	fmt.Fprintln(a.out, "State:", a.status())

	name, err := a.agent.Vault().ActiveAccountName(ctx)
	if err == nil && name != "" {
		fmt.Fprintln(a.out, "Active account:", name)
	}

	if a.isUnlocked() && a.masterKey != nil {
		accounts, err := a.agent.Vault().ListAccounts(ctx, a.masterKey)
		if err == nil {
			fmt.Fprintln(a.out, "Stored accounts:", len(accounts))
		}
	}
}

func (a *App) strength(ctx context.Context) {
	password, err := GetPassword("Password to check", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
		return
	}
	defer common.WipeByteArray(password)

	s := auth.PasswordStrength(string(password))
	fmt.Fprintf(a.out, "Score: %d/4, valid: %v\n", s.Score, s.IsValid)
	for _, f := range s.Feedback {
		fmt.Fprintln(a.out, "  -", f)
	}
}

func (a *App) autoLock(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: autolock <minutes> (0 cancels)")
		return
	}

	minutes, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || minutes < 0 {
		fmt.Fprintln(a.out, "Usage: autolock <minutes> (0 cancels)")
		return
	}

	if minutes == 0 {
		a.agent.Auth().ClearAutoLock()
		fmt.Fprintln(a.out, "Auto-lock cancelled.")
		return
	}

	if err := a.agent.Auth().SetupAutoLock(ctx, time.Duration(minutes)*time.Minute); err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			fmt.Fprintln(a.out, "Unlock the keychain first.")
		} else {
			fmt.Fprintln(a.out, "Error:", err)
		}
		return
	}
	fmt.Fprintf(a.out, "Auto-lock armed for %d minute(s).\n", minutes)
}
