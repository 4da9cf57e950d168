// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package identity resolves display names and origin addresses against the
// outward account platform and caches the answers for the connect path.
package identity

import (
	"context"

	"github.com/wardenmc/warden/internal/auth"
)

// Profile is the result of one outward identity lookup.
type Profile struct {
	// Identifier is the verified platform identifier owning the name.
	// Empty when the name has no verified owner.
	Identifier string

	Name     string
	Verified bool

	// AlternatePlatform marks accounts connecting through a secondary
	// client platform.
	AlternatePlatform bool

	Geo *auth.GeoInfo
}

// Lookup performs the blocking outward queries. Implementations talk to
// the platform's account service and a proxy intelligence source.
type Lookup interface {
	// Resolve looks up the profile for a display name connecting from
	// an address.
	Resolve(ctx context.Context, name, address string) (Profile, error)

	// CheckProxy reports whether the address is a known proxy origin.
	CheckProxy(ctx context.Context, address string) (bool, error)
}

// OfflineLookup answers every name as unverified and every address as
// clean. Used when no account platform is configured.
type OfflineLookup struct{}

// Resolve reports the name as unverified.
func (OfflineLookup) Resolve(_ context.Context, name, _ string) (Profile, error) {
	return Profile{Name: name}, nil
}

// CheckProxy reports the address as clean.
func (OfflineLookup) CheckProxy(context.Context, string) (bool, error) {
	return false, nil
}
