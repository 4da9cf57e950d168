// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("not found")

// Reason is a user-visible rejection or failure token. The core never sends
// rendered text; the host's notifier maps reasons to templates.
type Reason string

// Reason values. Empty string means no failure.
const (
	ReasonNone Reason = ""

	// Policy rejections: always resolved by disconnecting.
	ReasonDuplicateLogin      Reason = "duplicate_login"
	ReasonProxyBlocked        Reason = "proxy_blocked"
	ReasonAddressMismatch     Reason = "address_mismatch"
	ReasonPremiumNameConflict Reason = "premium_name_conflict"
	ReasonKickCooldown        Reason = "kick_cooldown"
	ReasonQuarantineFull      Reason = "quarantine_full"
	ReasonTooManyAttempts     Reason = "too_many_attempts"
	ReasonQuarantineTimeout   Reason = "quarantine_timeout"

	// Validation failures: state unchanged, the user may retry.
	ReasonPasswordBlank     Reason = "password_blank"
	ReasonPasswordReused    Reason = "password_reused"
	ReasonPasswordUppercase Reason = "password_uppercase"
	ReasonPasswordLowercase Reason = "password_lowercase"
	ReasonPasswordDigits    Reason = "password_digits"
	ReasonPasswordLength    Reason = "password_length"
	ReasonConfirmMismatch   Reason = "confirm_mismatch"
	ReasonAlreadyRegistered Reason = "already_registered"
	ReasonNotRegistered     Reason = "not_registered"
	ReasonNotQuarantined    Reason = "not_quarantined"

	// Credential mismatch: counted toward the attempt ceiling.
	ReasonWrongPassword Reason = "wrong_password"

	// ReasonCredentialFailure covers failed credential operations such
	// as an unrecognized hash algorithm; distinct from a wrong password.
	ReasonCredentialFailure Reason = "credential_failure"

	ReasonSessionExpired Reason = "session_expired"
	ReasonLoggedOut      Reason = "logged_out"
)

// Template returns the notifier template id for the reason.
func (r Reason) Template() string {
	return "warden." + string(r)
}
