// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserSessionValidAt(t *testing.T) {
	now := time.Now()

	t.Run("valid inside the window", func(t *testing.T) {
		u := &User{LastAuthAt: now.Add(-5 * time.Minute)}
		assert.True(t, u.SessionValidAt(now, 10*time.Minute))
	})

	t.Run("expired at exactly the timeout", func(t *testing.T) {
		u := &User{LastAuthAt: now.Add(-10 * time.Minute)}
		assert.False(t, u.SessionValidAt(now, 10*time.Minute))
	})

	t.Run("never authenticated", func(t *testing.T) {
		u := &User{}
		assert.False(t, u.SessionValidAt(now, 10*time.Minute))
	})

	t.Run("zero timeout disables sessions", func(t *testing.T) {
		u := &User{LastAuthAt: now}
		assert.False(t, u.SessionValidAt(now, 0))
	})
}

func TestUserInKickCooldownAt(t *testing.T) {
	now := time.Now()

	t.Run("blocked inside the cooldown", func(t *testing.T) {
		u := &User{LastKickAt: now.Add(-10 * time.Second)}
		assert.True(t, u.InKickCooldownAt(now, 30*time.Second))
	})

	t.Run("clear once the cooldown elapsed", func(t *testing.T) {
		u := &User{LastKickAt: now.Add(-30 * time.Second)}
		assert.False(t, u.InKickCooldownAt(now, 30*time.Second))
	})

	t.Run("never kicked", func(t *testing.T) {
		u := &User{}
		assert.False(t, u.InKickCooldownAt(now, 30*time.Second))
	})
}

func TestNewUser(t *testing.T) {
	u := NewUser("uuid-1", "Alyx", "192.0.2.1")

	assert.Equal(t, AccountOffline, u.Mode)
	assert.False(t, u.Registered())
	assert.False(t, u.Premium())
	assert.False(t, u.CreatedAt.IsZero())
}
