// Package common defines shared constants and sentinel errors used across
// the keychain agent. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Storage / lookup errors.
	ErrNotFound = errors.New("not found")

	// Generic internal flow control.
	ErrInternal = errors.New("internal error")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
)
