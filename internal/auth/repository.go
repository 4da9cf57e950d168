// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import "context"

// UserRepository is the persistence gateway for registered users. The
// in-memory directory is the source of truth; the repository is written
// through on successful mutations and read in full at startup.
type UserRepository interface {
	// Save upserts the user, keyed by display name.
	Save(ctx context.Context, u *User) error

	// Delete removes the row for the display name. Deleting an unknown
	// name returns ErrNotFound.
	Delete(ctx context.Context, name string) error

	// LoadAll fetches every stored user.
	LoadAll(ctx context.Context) ([]*User, error)
}
