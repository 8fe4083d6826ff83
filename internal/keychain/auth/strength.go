package auth

import (
	"strings"
	"unicode"
)

// Strength is the result of scoring a candidate master password.
type Strength struct {
	Score    int      // 0..4
	Feedback []string // human-readable complaints; empty for a good password
	IsValid  bool
}

// commonPrefixes are well-known password openings. A candidate starting with
// any of them is rejected outright.
var commonPrefixes = []string{
	"123456",
	"password",
	"qwerty",
	"abc123",
	"letmein",
	"admin",
}

const (
	minLength   = 8
	bonusLength = 12
	minClasses  = 3
)

// PasswordStrength scores password on a 0–4 scale. Validity requires the
// minimum length, at least three of the four character classes, and no
// outstanding feedback.
func PasswordStrength(password string) Strength {
	var st Strength

	lengthOK := len(password) >= minLength
	if !lengthOK {
		st.Feedback = append(st.Feedback, "Password must be at least 8 characters long")
	}

	score := 0
	if len(password) >= bonusLength {
		score++
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	classes := 0
	missing := make([]string, 0, 4)
	for _, c := range []struct {
		present bool
		hint    string
	}{
		{hasLower, "Add lowercase letters"},
		{hasUpper, "Add uppercase letters"},
		{hasDigit, "Add numbers"},
		{hasSymbol, "Add symbols"},
	} {
		if c.present {
			classes++
			score++
		} else {
			missing = append(missing, c.hint)
		}
	}

	// Class hints are only raised while the three-of-four minimum is unmet;
	// beyond that the absent class is a choice, not a defect.
	if classes < minClasses {
		st.Feedback = append(st.Feedback, missing...)
	}

	common := false
	lowered := strings.ToLower(password)
	for _, prefix := range commonPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			common = true
			st.Feedback = append(st.Feedback, "This is a commonly used password")
			score -= 2
			break
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 4 {
		score = 4
	}
	st.Score = score

	st.IsValid = lengthOK && classes >= minClasses && !common && len(st.Feedback) == 0
	return st
}
