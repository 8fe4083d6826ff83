package auth

import (
	"context"
	"sync"
	"time"

	"github.com/ettaverse/etta-keychain-sub002/internal/common"
	"github.com/ettaverse/etta-keychain-sub002/internal/cryptox"
	"github.com/ettaverse/etta-keychain-sub002/internal/logging"
	"github.com/ettaverse/etta-keychain-sub002/internal/storage"
)

const (
	// MaxFailedAttempts is the number of consecutive failed validations
	// that triggers a lockout.
	MaxFailedAttempts = 5

	// LockoutDuration is how long a lockout lasts.
	LockoutDuration = 30 * time.Minute

	// sessionKeySize is the random session token size in bytes (256 bits,
	// rendered as hex).
	sessionKeySize = 32
)

// Service is the auth/session manager. It is a single-instance actor: one
// in-flight operation at a time, enforced by the mutex.
type Service struct {
	mu      sync.Mutex
	local   storage.Store
	session storage.Store
	log     logging.Logger
	now     func() time.Time

	sessionKey string
	unlockTime time.Time
	autoLock   *time.Timer
}

func NewService(local, session storage.Store, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop{}
	}
	return &Service{local: local, session: session, log: log, now: time.Now}
}

// SetupPassword creates the initial credential. It fails if one already
// exists, if the confirmation differs, or if the password is too weak.
func (s *Service) SetupPassword(ctx context.Context, password, confirm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := loadCredential(ctx, s.local)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrPasswordAlreadySet
	}

	if string(password) != string(confirm) {
		return ErrPasswordMismatch
	}
	if !PasswordStrength(string(password)).IsValid {
		return ErrWeakPassword
	}

	hash, salt := cryptox.HashPassword(password)
	cred := &Credential{PasswordHash: hash, Salt: salt}
	if err := saveCredential(ctx, s.local, cred); err != nil {
		return err
	}

	s.log.Info(ctx, "keychain password created")
	return nil
}

// ValidatePassword checks the candidate against the stored credential.
//
// It fails with ErrNoPasswordSet when no credential exists and with
// *LockoutError while locked out. A mismatch records a failed attempt and
// returns false; a match resets the failure counter and returns true.
func (s *Service) ValidatePassword(ctx context.Context, password []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked(ctx, password)
}

func (s *Service) validateLocked(ctx context.Context, password []byte) (bool, error) {
	cred, err := loadCredential(ctx, s.local)
	if err != nil {
		return false, err
	}
	if cred == nil {
		return false, ErrNoPasswordSet
	}

	locked, remaining, err := s.checkLockout(ctx, cred)
	if err != nil {
		return false, err
	}
	if locked {
		return false, &LockoutError{Remaining: remaining}
	}

	if !cryptox.ValidatePassword(password, cred.Salt, cred.PasswordHash) {
		if err := s.trackFailedLocked(ctx, cred); err != nil {
			return false, err
		}
		return false, nil
	}

	if cred.FailedAttempts != 0 || cred.LastFailedAttempt != nil || cred.LockedUntil != nil {
		cred.FailedAttempts = 0
		cred.LastFailedAttempt = nil
		cred.LockedUntil = nil
		if err := saveCredential(ctx, s.local, cred); err != nil {
			return false, err
		}
	}
	return true, nil
}

// checkLockout reports whether the credential is currently locked out. An
// expired lockout is cleared lazily here, resetting the failure counter as a
// side effect, so no background timer is needed.
func (s *Service) checkLockout(ctx context.Context, cred *Credential) (bool, time.Duration, error) {
	if cred.LockedUntil == nil {
		return false, 0, nil
	}
	if s.now().Before(*cred.LockedUntil) {
		return true, cred.LockedUntil.Sub(s.now()), nil
	}

	cred.FailedAttempts = 0
	cred.LastFailedAttempt = nil
	cred.LockedUntil = nil
	if err := saveCredential(ctx, s.local, cred); err != nil {
		return false, 0, err
	}
	s.log.Info(ctx, "lockout expired, failure counter reset")
	return false, 0, nil
}

// TrackFailedAttempt increments the failure counter, stamping the lockout
// deadline when the maximum is reached. No-op when no credential exists.
func (s *Service) TrackFailedAttempt(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := loadCredential(ctx, s.local)
	if err != nil || cred == nil {
		return err
	}
	return s.trackFailedLocked(ctx, cred)
}

func (s *Service) trackFailedLocked(ctx context.Context, cred *Credential) error {
	failedAt := s.now()
	cred.FailedAttempts++
	cred.LastFailedAttempt = &failedAt

	if cred.FailedAttempts >= MaxFailedAttempts {
		lockedUntil := failedAt.Add(LockoutDuration)
		cred.LockedUntil = &lockedUntil
		s.log.Warn(ctx, "too many failed attempts, keychain locked out",
			"attempts", cred.FailedAttempts, "until", lockedUntil)
	}

	return saveCredential(ctx, s.local, cred)
}

// IsLockedOut reports the current lockout state, lazily clearing an expired
// one.
func (s *Service) IsLockedOut(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := loadCredential(ctx, s.local)
	if err != nil || cred == nil {
		return false, err
	}
	locked, _, err := s.checkLockout(ctx, cred)
	return locked, err
}

// ResetFailedAttempts zeroes the counter and clears both lockout timestamps.
func (s *Service) ResetFailedAttempts(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := loadCredential(ctx, s.local)
	if err != nil || cred == nil {
		return err
	}
	cred.FailedAttempts = 0
	cred.LastFailedAttempt = nil
	cred.LockedUntil = nil
	return saveCredential(ctx, s.local, cred)
}

// ChangePassword rotates the master password. The current password is
// revalidated with full lockout semantics; the new one passes the same
// strength gate as setup. Rotation invalidates any live session.
//
// sibling, when non-nil, runs against the same local store the new
// credential is written to; when the store supports transactions both writes
// land in one, so a failed sibling write leaves the old credential in force.
// The vault uses this to re-encrypt the account list atomically with the
// rotation.
func (s *Service) ChangePassword(ctx context.Context, current, newPassword, confirm []byte, sibling func(ctx context.Context, local storage.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.validateLocked(ctx, current)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrUnauthorized
	}

	if string(newPassword) != string(confirm) {
		return ErrPasswordMismatch
	}
	if !PasswordStrength(string(newPassword)).IsValid {
		return ErrWeakPassword
	}

	hash, salt := cryptox.HashPassword(newPassword)
	cred := &Credential{PasswordHash: hash, Salt: salt}

	write := func(ctx context.Context, local storage.Store) error {
		if err := saveCredential(ctx, local, cred); err != nil {
			return err
		}
		if sibling != nil {
			return sibling(ctx, local)
		}
		return nil
	}

	if tx, ok := s.local.(storage.TxStore); ok {
		err = tx.InTx(ctx, func(local storage.Store) error {
			return write(ctx, local)
		})
	} else {
		err = write(ctx, s.local)
	}
	if err != nil {
		return err
	}

	s.lockLocked(ctx)
	s.log.Info(ctx, "keychain password changed, session locked")
	return nil
}

// Unlock validates the password and, on success, opens a session: a fresh
// random session key plus the master-key marker in session storage. A failed
// validation leaves the keychain locked and returns false; lockout and
// no-password errors propagate so callers can surface them.
func (s *Service) Unlock(ctx context.Context, password []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.validateLocked(ctx, password)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	// A timer armed for a previous session must never fire against this one.
	if s.autoLock != nil {
		s.autoLock.Stop()
		s.autoLock = nil
	}
	s.sessionKey = common.MakeRandHexString(sessionKeySize)
	s.unlockTime = s.now()
	if err := s.session.Set(ctx, storage.KeyMasterKey, password); err != nil {
		s.sessionKey = ""
		return false, err
	}

	s.log.Info(ctx, "keychain unlocked")
	return true, nil
}

// Lock discards the session and cancels any auto-lock timer. Safe to call
// when already locked.
func (s *Service) Lock(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockLocked(ctx)
}

func (s *Service) lockLocked(ctx context.Context) {
	if s.autoLock != nil {
		s.autoLock.Stop()
		s.autoLock = nil
	}
	s.sessionKey = ""
	s.unlockTime = time.Time{}
	if err := s.session.Delete(ctx, storage.KeyMasterKey); err != nil {
		s.log.Error(ctx, "failed to clear session master key", "error", err)
	}
}

// IsLocked reports whether no session is active.
func (s *Service) IsLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionKey == ""
}

// SessionKey returns the current session key, or "" when locked.
func (s *Service) SessionKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionKey
}

// SetupAutoLock (re)schedules a single-shot timer that locks the keychain
// after d. Any prior timer is replaced; at most one is ever live.
func (s *Service) SetupAutoLock(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionKey == "" {
		return ErrNoSession
	}

	if s.autoLock != nil {
		s.autoLock.Stop()
	}
	// Stop does not reach a callback that already fired and is waiting on
	// the mutex, so the callback re-checks the session it was armed for.
	armedFor := s.sessionKey
	s.autoLock = time.AfterFunc(d, func() {
		ctx := context.Background()
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.sessionKey != armedFor {
			return
		}
		s.log.Info(ctx, "auto-lock timer fired")
		s.lockLocked(ctx)
	})
	return nil
}

// ClearAutoLock cancels the scheduled timer without locking.
func (s *Service) ClearAutoLock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.autoLock != nil {
		s.autoLock.Stop()
		s.autoLock = nil
	}
}
