// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// LookupMode selects the key under which the directory stores users. The
// modes are mutually exclusive: exactly one uniqueness rule is enforced.
type LookupMode int

// Lookup modes.
const (
	// ByIdentifier keys users on their stable identifier.
	ByIdentifier LookupMode = iota

	// ByName keys users on their display name (case-insensitive).
	ByName
)

// Directory is the authoritative in-memory registry of users. It is guarded
// by a mutex so a host that delivers events from more than one thread
// cannot corrupt it, though per-identity ordering remains the host's
// responsibility.
type Directory struct {
	mu    sync.RWMutex
	mode  LookupMode
	users map[string]*User
}

// NewDirectory creates an empty directory with the given lookup mode.
func NewDirectory(mode LookupMode) *Directory {
	return &Directory{
		mode:  mode,
		users: make(map[string]*User),
	}
}

// Mode returns the directory's lookup mode.
func (d *Directory) Mode() LookupMode {
	return d.mode
}

// KeyFor returns the directory key for an identifier/name pair under the
// configured mode.
func (d *Directory) KeyFor(identifier, name string) string {
	if d.mode == ByName {
		return strings.ToLower(name)
	}
	return identifier
}

func (d *Directory) keyOf(u *User) string {
	return d.KeyFor(u.Identifier, u.Name)
}

// Resolve returns the user stored for the identifier/name pair, if any.
func (d *Directory) Resolve(identifier, name string) (*User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[d.KeyFor(identifier, name)]
	return u, ok
}

// Get returns the user stored under the given key, if any.
func (d *Directory) Get(key string) (*User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[key]
	return u, ok
}

// Put stores the user under its key, replacing any previous entry.
func (d *Directory) Put(u *User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[d.keyOf(u)] = u
}

// Remove deletes the user from the directory.
func (d *Directory) Remove(u *User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, d.keyOf(u))
}

// Len returns the number of known users.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// All returns a snapshot slice of all users.
func (d *Directory) All() []*User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	return out
}

// LoadAll populates the directory from the persistence gateway, replacing
// the current contents. Connection-active flags are reset: nobody is online
// at startup.
func (d *Directory) LoadAll(ctx context.Context, repo UserRepository) error {
	users, err := repo.LoadAll(ctx)
	if err != nil {
		return oops.Code("AUTH_DIRECTORY_LOAD_FAILED").Wrap(err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = make(map[string]*User, len(users))
	for _, u := range users {
		u.Online = false
		d.users[d.keyOf(u)] = u
	}
	return nil
}
