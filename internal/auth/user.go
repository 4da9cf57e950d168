// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import "time"

// AccountMode distinguishes platform-verified accounts from offline ones.
type AccountMode string

// Account modes.
const (
	// AccountPremium marks identities verified by the account platform.
	AccountPremium AccountMode = "premium"
	// AccountOffline marks identities without platform verification.
	AccountOffline AccountMode = "offline"
)

// GeoInfo is the optional geolocation enrichment a completed identity
// lookup attaches to a user.
type GeoInfo struct {
	Country string
	Region  string
	City    string
	ISP     string
	Proxy   bool
}

// User is one known identity: its credential material, connection
// provenance, and the counters the policy chain reads. The in-memory
// directory owns the live copy; the repository persists it.
type User struct {
	Identifier string
	Name       string

	// CredentialHash is the encoded digest, empty until registration.
	CredentialHash string
	HashAlgorithm  Algorithm

	Address string
	Mode    AccountMode

	CreatedAt    time.Time
	RegisteredAt time.Time
	LastAuthAt   time.Time
	LastKickAt   time.Time

	FailedLogins int
	Kicks        int

	Online bool
	Geo    *GeoInfo
}

// NewUser creates an unregistered user for a fresh connection.
func NewUser(identifier, name, address string) *User {
	return &User{
		Identifier: identifier,
		Name:       name,
		Address:    address,
		Mode:       AccountOffline,
		CreatedAt:  time.Now(),
	}
}

// Registered reports whether the identity has stored credentials.
func (u *User) Registered() bool {
	return u.CredentialHash != ""
}

// Premium reports whether the identity is platform-verified.
func (u *User) Premium() bool {
	return u.Mode == AccountPremium
}

// SessionValidAt reports whether a prior authentication at LastAuthAt is
// still within the session window at the given instant.
func (u *User) SessionValidAt(now time.Time, timeout time.Duration) bool {
	if u.LastAuthAt.IsZero() || timeout <= 0 {
		return false
	}
	return now.Sub(u.LastAuthAt) < timeout
}

// InKickCooldownAt reports whether a prior kick at LastKickAt still blocks
// reconnection at the given instant.
func (u *User) InKickCooldownAt(now time.Time, cooldown time.Duration) bool {
	if u.LastKickAt.IsZero() || cooldown <= 0 {
		return false
	}
	return now.Sub(u.LastKickAt) < cooldown
}
