package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordStrength_TooShort(t *testing.T) {
	st := PasswordStrength("short")
	require.False(t, st.IsValid)
	require.Contains(t, st.Feedback, "Password must be at least 8 characters long")
}

func TestPasswordStrength_Strong(t *testing.T) {
	st := PasswordStrength("ComplexPass123!@#")
	require.True(t, st.IsValid)
	require.Empty(t, st.Feedback)
	require.Greater(t, st.Score, 2)
}

func TestPasswordStrength_CommonPassword(t *testing.T) {
	st := PasswordStrength("password123")
	require.False(t, st.IsValid)
	require.Contains(t, st.Feedback, "This is a commonly used password")
}

func TestPasswordStrength_CommonPrefixCaseInsensitive(t *testing.T) {
	for _, pw := range []string{"QwErTy12345!", "Admin123456!", "LETMEIN99$x"} {
		st := PasswordStrength(pw)
		require.False(t, st.IsValid, pw)
	}
}

func TestPasswordStrength_CommonPenaltyFloorsAtZero(t *testing.T) {
	// Two character classes minus the penalty must not go negative.
	st := PasswordStrength("admin12")
	require.Equal(t, 0, st.Score)
	require.False(t, st.IsValid)
}

func TestPasswordStrength_ThreeClassesValid(t *testing.T) {
	// lower + upper + digit, no symbol: still valid.
	st := PasswordStrength("Wandering9Fox")
	require.True(t, st.IsValid)
	require.Empty(t, st.Feedback)
}

func TestPasswordStrength_TwoClassesInvalid(t *testing.T) {
	st := PasswordStrength("onlylowercase1")
	require.False(t, st.IsValid)
	require.NotEmpty(t, st.Feedback)
}

func TestPasswordStrength_ScoreBounds(t *testing.T) {
	// Length bonus plus all four classes would be five raw points; the
	// scale caps at four.
	st := PasswordStrength("Very$Long8Password")
	require.Equal(t, 4, st.Score)

	require.GreaterOrEqual(t, PasswordStrength("").Score, 0)
}
