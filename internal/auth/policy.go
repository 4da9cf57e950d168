// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"unicode"
)

// RuleWindow is an independently enabled character-class rule. Min is
// inclusive and Max exclusive: a count below Min or at or above Max fails.
type RuleWindow struct {
	Enabled bool
	Min     int
	Max     int
}

// ok reports whether the count sits inside the half-open window.
func (w RuleWindow) ok(count int) bool {
	if !w.Enabled {
		return true
	}
	return count >= w.Min && count < w.Max
}

// PasswordRules is the configurable rule set for candidate passwords.
type PasswordRules struct {
	Uppercase RuleWindow
	Lowercase RuleWindow
	Digits    RuleWindow
	Length    RuleWindow

	// AllowReuse permits re-registering the current password.
	AllowReuse bool
}

// credentialVerifier is the slice of Hasher needed for reuse detection.
type credentialVerifier interface {
	Verify(password, digest string, alg Algorithm) (bool, error)
}

// PasswordValidator validates candidate passwords against the configured
// rule windows. Validation order is fixed and short-circuits on the first
// failure: blank, reuse, uppercase, lowercase, digits, length.
type PasswordValidator struct {
	rules  PasswordRules
	hasher credentialVerifier
}

// NewPasswordValidator creates a validator for the given rules.
func NewPasswordValidator(rules PasswordRules, hasher credentialVerifier) *PasswordValidator {
	return &PasswordValidator{rules: rules, hasher: hasher}
}

// Validate checks the candidate password. storedDigest and storedAlg
// describe the user's current credential for reuse detection; pass an empty
// digest for unregistered users. Returns ReasonNone on success.
//
// Reuse is detected by verifying the candidate against the stored digest
// under the stored algorithm. A credential stored under a different
// algorithm than the active one therefore cannot be flagged as reused,
// matching the historical behavior across algorithm migrations.
func (v *PasswordValidator) Validate(candidate, storedDigest string, storedAlg Algorithm) Reason {
	if candidate == "" {
		return ReasonPasswordBlank
	}

	if !v.rules.AllowReuse && storedDigest != "" {
		same, err := v.hasher.Verify(candidate, storedDigest, storedAlg)
		if err == nil && same {
			return ReasonPasswordReused
		}
	}

	var upper, lower, digits int
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLower(r):
			lower++
		case unicode.IsDigit(r):
			digits++
		}
	}

	if !v.rules.Uppercase.ok(upper) {
		return ReasonPasswordUppercase
	}
	if !v.rules.Lowercase.ok(lower) {
		return ReasonPasswordLowercase
	}
	if !v.rules.Digits.ok(digits) {
		return ReasonPasswordDigits
	}
	if !v.rules.Length.ok(len([]rune(candidate))) {
		return ReasonPasswordLength
	}
	return ReasonNone
}
