// Package cryptox implements the cryptographic engine shared by the vault
// and the auth layer: password-based key derivation, authenticated symmetric
// encryption, and content digests.
//
// Derivation parameters are package constants on purpose. Making them
// caller-supplied would open a downgrade path where a weaker iteration count
// sneaks in through a config file or a wire message.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/ettaverse/etta-keychain-sub002/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is the PBKDF2 round count used for every derivation.
	Iterations = 100_000

	// KeySize is the derived key length in bytes (AES-256).
	KeySize = 32

	// SaltSize is the random salt length in bytes. A fresh salt is generated
	// for every encryption and every password hash; salts are never reused.
	SaltSize = 16

	// NonceSize is the AES-GCM nonce length in bytes.
	NonceSize = 12
)

// ErrDecryptionFailed is returned when a blob cannot be authenticated or
// parsed: wrong password, truncated data, or corruption. The two cases are
// deliberately indistinguishable.
var ErrDecryptionFailed = errors.New("decryption failed")

// DeriveKey derives a KeySize-byte key from password and salt using
// PBKDF2 over SHA-256 with the fixed package parameters.
func DeriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, Iterations, KeySize, sha256.New)
}

// Encrypt seals plaintext under a key derived from password and returns the
// result as hex(salt ‖ nonce ‖ ciphertext). Salt and nonce are freshly random
// on every call, so two encryptions of the same plaintext never match.
func Encrypt(plaintext, password []byte) (string, error) {
	salt := common.GenerateRandByteArray(SaltSize)
	nonce := common.GenerateRandByteArray(NonceSize)

	key := DeriveKey(password, salt)
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	ciphertext := aesgcm.Seal(nil, nonce, plaintext, nil)

	blob := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)

	return hex.EncodeToString(blob), nil
}

// Decrypt parses a blob produced by Encrypt, re-derives the key and opens the
// ciphertext. Any authentication or structural failure yields
// ErrDecryptionFailed; garbage is never returned.
func Decrypt(blob string, password []byte) ([]byte, error) {
	raw, err := hex.DecodeString(blob)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(raw) < SaltSize+NonceSize {
		return nil, ErrDecryptionFailed
	}

	salt := raw[:SaltSize]
	nonce := raw[SaltSize : SaltSize+NonceSize]
	ciphertext := raw[SaltSize+NonceSize:]

	key := DeriveKey(password, salt)
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Digest returns the hex-encoded SHA-256 digest of data. Used for the
// account-list integrity check.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashPassword derives a verifier hash for password under a fresh random
// salt. Both values must be stored; neither is secret on its own.
func HashPassword(password []byte) (hash, salt []byte) {
	salt = common.GenerateRandByteArray(SaltSize)
	return DeriveKey(password, salt), salt
}

// ValidatePassword re-derives the hash for the candidate password and
// compares it to the stored one in constant time.
func ValidatePassword(password, salt, hash []byte) bool {
	candidate := DeriveKey(password, salt)
	defer common.WipeByteArray(candidate)
	return subtle.ConstantTimeCompare(candidate, hash) == 1
}
