// Package auth owns the master-password lifecycle: setup, validation and
// change, brute-force lockout, and the ephemeral unlocked session.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ettaverse/etta-keychain-sub002/internal/storage"
)

var (
	// ErrPasswordAlreadySet is returned by SetupPassword when a credential
	// already exists.
	ErrPasswordAlreadySet = errors.New("keychain password already set")

	// ErrPasswordMismatch is returned when password and confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrWeakPassword is returned when the strength gate rejects a password.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrNoPasswordSet is returned when an operation requires an existing
	// credential and none has been created yet.
	ErrNoPasswordSet = errors.New("no keychain password set")

	// ErrNoSession is returned when an operation requires an unlocked
	// session.
	ErrNoSession = errors.New("keychain is locked")
)

// LockoutError reports a temporarily locked account. Remaining is rounded up
// so the UI never promises an earlier retry than the real one.
type LockoutError struct {
	Remaining time.Duration
}

func (e *LockoutError) Error() string {
	minutes := int(e.Remaining.Minutes())
	if e.Remaining > time.Duration(minutes)*time.Minute {
		minutes++
	}
	return fmt.Sprintf("account locked, try again in %d minutes", minutes)
}

// Credential is the persisted master-password record. It is created on first
// setup, mutated on every validation attempt, and replaced wholesale by a
// password change.
type Credential struct {
	PasswordHash      []byte     `json:"password_hash"`
	Salt              []byte     `json:"salt"`
	FailedAttempts    int        `json:"failed_attempts"`
	LastFailedAttempt *time.Time `json:"last_failed_attempt,omitempty"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
}

// loadCredential reads the stored credential, or nil when none exists.
func loadCredential(ctx context.Context, local storage.Store) (*Credential, error) {
	raw, err := local.Get(ctx, storage.KeyAuthData)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("failed to parse stored credential: %w", err)
	}
	return &cred, nil
}

func saveCredential(ctx context.Context, local storage.Store, cred *Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to serialize credential: %w", err)
	}
	return local.Set(ctx, storage.KeyAuthData, raw)
}
