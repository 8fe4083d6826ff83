package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	password := []byte("correct horse battery staple")
	plaintext := []byte(`{"list":[{"name":"alice"}]}`)

	blob, err := Encrypt(plaintext, password)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	got, err := Decrypt(blob, password)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestEncrypt_FreshRandomnessEveryCall(t *testing.T) {
	password := []byte("pw")
	plaintext := []byte("same input")

	a, err := Encrypt(plaintext, password)
	require.NoError(t, err)
	b, err := Encrypt(plaintext, password)
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestDecrypt_WrongPassword(t *testing.T) {
	blob, err := Encrypt([]byte("secret"), []byte("right"))
	require.NoError(t, err)

	_, err = Decrypt(blob, []byte("wrong"))
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_CorruptedBlob(t *testing.T) {
	blob, err := Encrypt([]byte("secret"), []byte("pw"))
	require.NoError(t, err)

	// Flip a ciphertext nibble.
	corrupted := blob[:len(blob)-1]
	if strings.HasSuffix(blob, "0") {
		corrupted += "1"
	} else {
		corrupted += "0"
	}

	_, err = Decrypt(corrupted, []byte("pw"))
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_MalformedBlob(t *testing.T) {
	for _, blob := range []string{"", "zz", "deadbeef", "not hex at all"} {
		_, err := Decrypt(blob, []byte("pw"))
		require.ErrorIs(t, err, ErrDecryptionFailed, "blob %q", blob)
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	a := DeriveKey([]byte("pw"), salt)
	b := DeriveKey([]byte("pw"), salt)
	require.Equal(t, a, b)
	require.Len(t, a, KeySize)

	c := DeriveKey([]byte("other"), salt)
	require.NotEqual(t, a, c)
}

func TestHashValidatePassword(t *testing.T) {
	hash, salt := HashPassword([]byte("pw"))
	require.Len(t, salt, SaltSize)
	require.Len(t, hash, KeySize)

	require.True(t, ValidatePassword([]byte("pw"), salt, hash))
	require.False(t, ValidatePassword([]byte("nope"), salt, hash))
}

func TestHashPassword_SaltNeverReused(t *testing.T) {
	_, s1 := HashPassword([]byte("pw"))
	_, s2 := HashPassword([]byte("pw"))
	require.NotEqual(t, s1, s2)
}

func TestDigest(t *testing.T) {
	d := Digest([]byte("abc"))
	// Well-known SHA-256 of "abc".
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", d)
}
