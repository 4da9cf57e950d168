// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenmc/warden/internal/host"
	"github.com/wardenmc/warden/internal/host/hosttest"
)

type fakeQuarantine struct {
	inside   map[string]bool
	enterErr error

	entered  []string
	released []string
	aborted  []string
}

func newFakeQuarantine() *fakeQuarantine {
	return &fakeQuarantine{inside: make(map[string]bool)}
}

func (q *fakeQuarantine) Enter(p host.Player, _ bool) error {
	if q.enterErr != nil {
		return q.enterErr
	}
	q.inside[p.Identifier()] = true
	q.entered = append(q.entered, p.Identifier())
	return nil
}

func (q *fakeQuarantine) Release(identifier string) {
	delete(q.inside, identifier)
	q.released = append(q.released, identifier)
}

func (q *fakeQuarantine) Abort(identifier string) {
	delete(q.inside, identifier)
	q.aborted = append(q.aborted, identifier)
}

func (q *fakeQuarantine) IsQuarantined(identifier string) bool { return q.inside[identifier] }
func (q *fakeQuarantine) Population() int                      { return len(q.inside) }

type fakeSched struct {
	timeouts  []func()
	cancelled int
}

func (s *fakeSched) SetTimeout(fn func(), _ time.Duration) ulid.ULID {
	s.timeouts = append(s.timeouts, fn)
	return ulid.Make()
}

func (s *fakeSched) Cancel(ulid.ULID) { s.cancelled++ }

type fakeIdentity struct {
	owners    map[string]string // lowercase name -> identifier
	alternate map[string]bool
	proxies   map[string]bool
	refreshed []string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		owners:    make(map[string]string),
		alternate: make(map[string]bool),
		proxies:   make(map[string]bool),
	}
}

func (f *fakeIdentity) VerifiedIdentifier(name string) (string, bool) {
	id, ok := f.owners[name]
	return id, ok
}

func (f *fakeIdentity) AlternatePlatform(identifier string) bool { return f.alternate[identifier] }
func (f *fakeIdentity) ProxyAddress(address string) bool         { return f.proxies[address] }
func (f *fakeIdentity) Refresh(identifier, _, _ string) {
	f.refreshed = append(f.refreshed, identifier)
}

type serviceFixture struct {
	svc        *Service
	users      *Directory
	repo       *stubRepo
	quarantine *fakeQuarantine
	sched      *fakeSched
	identity   *fakeIdentity
	local      *host.Local
	notifier   *hosttest.Notifier
}

func newServiceFixture(t *testing.T, mutate func(*Config)) *serviceFixture {
	t.Helper()

	cfg := Config{
		Algorithm:            AlgorithmSHA256, // fast in tests
		SessionTimeout:       10 * time.Minute,
		EnableSessions:       true,
		KickCooldown:         30 * time.Second,
		MaxLoginAttempts:     3,
		PinAddress:           true,
		BlockDuplicateLogins: true,
		PremiumAutoLogin:     true,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	f := &serviceFixture{
		users:      NewDirectory(ByIdentifier),
		repo:       &stubRepo{},
		quarantine: newFakeQuarantine(),
		sched:      &fakeSched{},
		identity:   newFakeIdentity(),
		notifier:   &hosttest.Notifier{},
	}
	f.local = host.NewLocal(host.FlatWorld{Ground: 64, Floor: -64, Top: 320}, f.notifier)

	hasher := NewHasher()
	svc, err := NewService(cfg, Deps{
		Users:      f.users,
		Repository: f.repo,
		Hasher:     hasher,
		Passwords:  NewPasswordValidator(PasswordRules{}, hasher),
		Quarantine: f.quarantine,
		Scheduler:  f.sched,
		Host:       f.local,
		Identity:   f.identity,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

// join connects a fake player to the local host and runs Connect for it.
func (f *serviceFixture) join(id, name, addr string) (*hosttest.Player, ConnectOutcome) {
	p := hosttest.NewPlayer(id, name, addr)
	f.local.Connect(p)
	return p, f.svc.Connect(id, name, addr)
}

func TestNewService(t *testing.T) {
	t.Run("rejects missing dependencies", func(t *testing.T) {
		_, err := NewService(Config{Algorithm: AlgorithmSHA256}, Deps{})
		require.Error(t, err)
	})

	t.Run("rejects unknown algorithm", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		_, err := NewService(Config{Algorithm: "rot13"}, Deps{
			Users:      f.users,
			Repository: f.repo,
			Hasher:     NewHasher(),
			Passwords:  NewPasswordValidator(PasswordRules{}, NewHasher()),
			Quarantine: f.quarantine,
			Scheduler:  f.sched,
			Host:       f.local,
			Identity:   f.identity,
		})
		require.Error(t, err)
	})
}

func TestService_Connect(t *testing.T) {
	t.Run("unknown identity is quarantined as unregistered", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		_, outcome := f.join("uuid-1", "Steve", "192.0.2.1")

		assert.Equal(t, DecisionQuarantined, outcome.Decision)
		assert.Equal(t, []string{"uuid-1"}, f.quarantine.entered)
		assert.Equal(t, StateQuarantinedUnregistered, f.svc.StateOf("uuid-1"))

		user, ok := f.users.Get("uuid-1")
		require.True(t, ok)
		assert.True(t, user.Online)
	})

	t.Run("duplicate login is rejected first", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.join("uuid-1", "Steve", "192.0.2.1")

		_, outcome := f.join("uuid-1", "Steve", "192.0.2.9")
		assert.Equal(t, DecisionRejected, outcome.Decision)
		assert.Equal(t, ReasonDuplicateLogin, outcome.Reason)

		kick, ok := f.notifier.LastKick()
		require.True(t, ok)
		assert.Equal(t, ReasonDuplicateLogin.Template(), kick.Template)
	})

	t.Run("proxy origin is rejected unless allowed", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.identity.proxies["198.51.100.7"] = true

		_, outcome := f.join("uuid-1", "Steve", "198.51.100.7")
		assert.Equal(t, ReasonProxyBlocked, outcome.Reason)

		f2 := newServiceFixture(t, func(c *Config) { c.AllowProxy = true })
		f2.identity.proxies["198.51.100.7"] = true
		_, outcome = f2.join("uuid-1", "Steve", "198.51.100.7")
		assert.Equal(t, DecisionQuarantined, outcome.Decision)
	})

	t.Run("pinned address mismatch is rejected for registered users", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		u := NewUser("uuid-1", "Steve", "192.0.2.1")
		u.CredentialHash = "digest"
		u.HashAlgorithm = AlgorithmSHA256
		f.users.Put(u)

		_, outcome := f.join("uuid-1", "Steve", "203.0.113.5")
		assert.Equal(t, ReasonAddressMismatch, outcome.Reason)
	})

	t.Run("premium name owned by someone else is rejected", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.identity.owners["Steve"] = "premium-owner"

		_, outcome := f.join("uuid-1", "Steve", "192.0.2.1")
		assert.Equal(t, ReasonPremiumNameConflict, outcome.Reason)
	})

	t.Run("cached non-premium name is no conflict", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		// A completed lookup that found no premium owner.
		f.identity.owners["Steve"] = ""

		_, outcome := f.join("uuid-1", "Steve", "192.0.2.1")
		assert.Equal(t, DecisionQuarantined, outcome.Decision)
		assert.Empty(t, f.identity.refreshed, "cache hit, no refresh")
	})

	t.Run("alternate platform bypasses the premium name conflict", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.identity.owners["Steve"] = "premium-owner"
		f.identity.alternate["uuid-1"] = true

		_, outcome := f.join("uuid-1", "Steve", "192.0.2.1")
		assert.Equal(t, DecisionQuarantined, outcome.Decision)
	})

	t.Run("cracked premium name allowed when configured", func(t *testing.T) {
		f := newServiceFixture(t, func(c *Config) { c.AllowCrackedPremiumNames = true })
		f.identity.owners["Steve"] = "premium-owner"

		_, outcome := f.join("uuid-1", "Steve", "192.0.2.1")
		assert.Equal(t, DecisionQuarantined, outcome.Decision)
	})

	t.Run("verified premium owner auto-authenticates", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.identity.owners["Steve"] = "uuid-1"

		_, outcome := f.join("uuid-1", "Steve", "192.0.2.1")
		assert.Equal(t, DecisionAuthenticated, outcome.Decision)
		assert.Empty(t, f.quarantine.entered)
		assert.Equal(t, StateAuthenticated, f.svc.StateOf("uuid-1"))
	})

	t.Run("identity cache miss schedules a background refresh", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.join("uuid-1", "Steve", "192.0.2.1")
		assert.Equal(t, []string{"uuid-1"}, f.identity.refreshed)
	})

	t.Run("valid session resumes without quarantine", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		u := NewUser("uuid-1", "Steve", "192.0.2.1")
		u.CredentialHash = "digest"
		u.HashAlgorithm = AlgorithmSHA256
		u.LastAuthAt = time.Now().Add(-time.Minute)
		f.users.Put(u)

		_, outcome := f.join("uuid-1", "Steve", "192.0.2.1")
		assert.Equal(t, DecisionAuthenticated, outcome.Decision)
		assert.Empty(t, f.quarantine.entered)
	})

	t.Run("expired session goes back through quarantine", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		u := NewUser("uuid-1", "Steve", "192.0.2.1")
		u.CredentialHash = "digest"
		u.HashAlgorithm = AlgorithmSHA256
		u.LastAuthAt = time.Now().Add(-time.Hour)
		f.users.Put(u)

		_, outcome := f.join("uuid-1", "Steve", "192.0.2.1")
		assert.Equal(t, DecisionQuarantined, outcome.Decision)
	})

	t.Run("recent kick opens a cooldown window", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		u := NewUser("uuid-1", "Steve", "192.0.2.1")
		u.LastKickAt = time.Now().Add(-time.Second)
		f.users.Put(u)

		_, outcome := f.join("uuid-1", "Steve", "192.0.2.1")
		assert.Equal(t, ReasonKickCooldown, outcome.Reason)
	})

	t.Run("rejection does not stamp the kick counters", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.identity.proxies["198.51.100.7"] = true
		u := NewUser("uuid-1", "Steve", "198.51.100.7")
		f.users.Put(u)

		f.join("uuid-1", "Steve", "198.51.100.7")
		assert.Zero(t, u.Kicks)
		assert.True(t, u.LastKickAt.IsZero())
	})

	t.Run("full quarantine rejects the connect", func(t *testing.T) {
		f := newServiceFixture(t, func(c *Config) { c.QuarantineCapacity = 1 })
		f.join("uuid-1", "Steve", "192.0.2.1")

		_, outcome := f.join("uuid-2", "Alex", "192.0.2.2")
		assert.Equal(t, ReasonQuarantineFull, outcome.Reason)
	})

	t.Run("vanished connection is dropped without a kick", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		// Connect is invoked without a live player on the host.
		outcome := f.svc.Connect("uuid-1", "Steve", "192.0.2.1")
		assert.Equal(t, DecisionRejected, outcome.Decision)
		assert.Equal(t, ReasonNone, outcome.Reason)

		_, kicked := f.notifier.LastKick()
		assert.False(t, kicked)
	})

	t.Run("failed quarantine entry rolls the user back offline", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.quarantine.enterErr = errors.New("full")

		_, outcome := f.join("uuid-1", "Steve", "192.0.2.1")
		assert.Equal(t, ReasonQuarantineFull, outcome.Reason)

		user, ok := f.users.Get("uuid-1")
		require.True(t, ok)
		assert.False(t, user.Online)
	})
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("requires quarantine", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		assert.Equal(t, ReasonNotQuarantined, f.svc.Register(ctx, "uuid-1", "pw", nil))
	})

	t.Run("already registered identity cannot re-register", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		u := NewUser("uuid-1", "Steve", "192.0.2.1")
		u.CredentialHash = "digest"
		u.HashAlgorithm = AlgorithmSHA256
		f.users.Put(u)
		f.join("uuid-1", "Steve", "192.0.2.1")

		assert.Equal(t, ReasonAlreadyRegistered, f.svc.Register(ctx, "uuid-1", "pw", nil))
	})

	t.Run("confirmation mismatch", func(t *testing.T) {
		f := newServiceFixture(t, func(c *Config) { c.RequireConfirmation = true })
		f.join("uuid-1", "Steve", "192.0.2.1")

		assert.Equal(t, ReasonConfirmMismatch, f.svc.Register(ctx, "uuid-1", "pw", nil))
		other := "different"
		assert.Equal(t, ReasonConfirmMismatch, f.svc.Register(ctx, "uuid-1", "pw", &other))
	})

	t.Run("policy rejection leaves the user unregistered", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.join("uuid-1", "Steve", "192.0.2.1")

		assert.Equal(t, ReasonPasswordBlank, f.svc.Register(ctx, "uuid-1", "", nil))
		user, _ := f.users.Get("uuid-1")
		assert.False(t, user.Registered())
		assert.Empty(t, f.repo.saved)
	})

	t.Run("success with auto-login releases and authenticates", func(t *testing.T) {
		f := newServiceFixture(t, func(c *Config) { c.AutoLoginAfterRegister = true })
		f.join("uuid-1", "Steve", "192.0.2.1")

		require.Equal(t, ReasonNone, f.svc.Register(ctx, "uuid-1", "secret", nil))

		user, _ := f.users.Get("uuid-1")
		assert.True(t, user.Registered())
		assert.Equal(t, AlgorithmSHA256, user.HashAlgorithm)
		assert.False(t, user.RegisteredAt.IsZero())
		assert.Equal(t, []string{"uuid-1"}, f.quarantine.released)
		assert.Equal(t, StateAuthenticated, f.svc.StateOf("uuid-1"))

		require.Len(t, f.repo.saved, 1)
		prompt, ok := f.notifier.LastPrompt()
		require.True(t, ok)
		assert.Equal(t, "warden.registered", prompt.Template)
	})

	t.Run("success without auto-login forces a reconnect", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.join("uuid-1", "Steve", "192.0.2.1")

		require.Equal(t, ReasonNone, f.svc.Register(ctx, "uuid-1", "secret", nil))
		assert.Equal(t, []string{"uuid-1"}, f.quarantine.released)

		kick, ok := f.notifier.LastKick()
		require.True(t, ok)
		assert.Equal(t, "warden.register_reconnect", kick.Template)
	})

	t.Run("persistence failure never aborts registration", func(t *testing.T) {
		f := newServiceFixture(t, func(c *Config) { c.AutoLoginAfterRegister = true })
		f.repo.saveErr = errors.New("db down")
		f.join("uuid-1", "Steve", "192.0.2.1")

		assert.Equal(t, ReasonNone, f.svc.Register(ctx, "uuid-1", "secret", nil))
		assert.Equal(t, StateAuthenticated, f.svc.StateOf("uuid-1"))
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	register := func(t *testing.T, f *serviceFixture, password string) {
		t.Helper()
		require.Equal(t, ReasonNone, f.svc.Register(ctx, "uuid-1", password, nil))
		// The register flow kicks for a reconnect; simulate it.
		f.svc.Disconnect("uuid-1")
		f.local.Disconnect("uuid-1")
		f.join("uuid-1", "Steve", "192.0.2.1")
	}

	t.Run("correct password authenticates and resets counters", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.join("uuid-1", "Steve", "192.0.2.1")
		register(t, f, "secret")

		require.Equal(t, ReasonWrongPassword, f.svc.Login(ctx, "uuid-1", "nope"))
		require.Equal(t, ReasonNone, f.svc.Login(ctx, "uuid-1", "secret"))

		user, _ := f.users.Get("uuid-1")
		assert.Zero(t, user.FailedLogins)
		assert.False(t, user.LastAuthAt.IsZero())
		assert.Equal(t, StateAuthenticated, f.svc.StateOf("uuid-1"))

		prompt, ok := f.notifier.LastPrompt()
		require.True(t, ok)
		assert.Equal(t, "warden.logged_in", prompt.Template)
	})

	t.Run("attempt ceiling kicks regardless of the password", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.join("uuid-1", "Steve", "192.0.2.1")
		register(t, f, "secret")

		require.Equal(t, ReasonWrongPassword, f.svc.Login(ctx, "uuid-1", "a"))
		require.Equal(t, ReasonWrongPassword, f.svc.Login(ctx, "uuid-1", "b"))
		// Third attempt hits the ceiling even with the right password.
		assert.Equal(t, ReasonTooManyAttempts, f.svc.Login(ctx, "uuid-1", "secret"))

		user, _ := f.users.Get("uuid-1")
		assert.Equal(t, 1, user.Kicks)
		assert.False(t, user.LastKickAt.IsZero())

		kick, ok := f.notifier.LastKick()
		require.True(t, ok)
		assert.Equal(t, ReasonTooManyAttempts.Template(), kick.Template)
	})

	t.Run("unregistered identity cannot log in", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.join("uuid-1", "Steve", "192.0.2.1")
		assert.Equal(t, ReasonNotRegistered, f.svc.Login(ctx, "uuid-1", "pw"))
	})

	t.Run("corrupt stored algorithm is a credential failure, not a wrong password", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		u := NewUser("uuid-1", "Steve", "192.0.2.1")
		u.CredentialHash = "digest"
		u.HashAlgorithm = Algorithm("whirlpool")
		f.users.Put(u)
		f.join("uuid-1", "Steve", "192.0.2.1")

		assert.Equal(t, ReasonCredentialFailure, f.svc.Login(ctx, "uuid-1", "pw"))
	})

	t.Run("requires quarantine", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		assert.Equal(t, ReasonNotQuarantined, f.svc.Login(ctx, "uuid-1", "pw"))
	})
}

func TestService_SessionLifecycle(t *testing.T) {
	t.Run("logout clears the session and kicks", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.identity.owners["Steve"] = "uuid-1"
		f.join("uuid-1", "Steve", "192.0.2.1")
		require.Equal(t, StateAuthenticated, f.svc.StateOf("uuid-1"))

		f.svc.Logout("uuid-1", ReasonLoggedOut)

		user, _ := f.users.Get("uuid-1")
		assert.True(t, user.LastAuthAt.IsZero())
		assert.Equal(t, 1, f.sched.cancelled)

		kick, ok := f.notifier.LastKick()
		require.True(t, ok)
		assert.Equal(t, ReasonLoggedOut.Template(), kick.Template)
	})

	t.Run("disconnect keeps the session resumable until expiry", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.identity.owners["Steve"] = "uuid-1"
		f.join("uuid-1", "Steve", "192.0.2.1")

		f.svc.Disconnect("uuid-1")
		assert.Equal(t, StateOfflineSession, f.svc.StateOf("uuid-1"))
		assert.True(t, f.svc.Authenticated("uuid-1"))
	})

	t.Run("expiry task ends an offline session", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.identity.owners["Steve"] = "uuid-1"
		f.join("uuid-1", "Steve", "192.0.2.1")
		f.svc.Disconnect("uuid-1")

		require.Len(t, f.sched.timeouts, 1)
		f.sched.timeouts[0]()
		assert.Equal(t, StateDisconnected, f.svc.StateOf("uuid-1"))
		assert.False(t, f.svc.Authenticated("uuid-1"))
	})

	t.Run("expiry task is a no-op while still connected", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.identity.owners["Steve"] = "uuid-1"
		f.join("uuid-1", "Steve", "192.0.2.1")

		require.Len(t, f.sched.timeouts, 1)
		f.sched.timeouts[0]()
		assert.Equal(t, StateAuthenticated, f.svc.StateOf("uuid-1"))
	})

	t.Run("quarantined disconnect aborts without restore", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.join("uuid-1", "Steve", "192.0.2.1")

		f.svc.Disconnect("uuid-1")
		assert.Equal(t, []string{"uuid-1"}, f.quarantine.aborted)
		assert.Empty(t, f.quarantine.released)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown identity", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		err := f.svc.Delete(ctx, "ghost", ReasonLoggedOut, false)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("removes directory entry, credential row and connection", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.join("uuid-1", "Steve", "192.0.2.1")

		require.NoError(t, f.svc.Delete(ctx, "uuid-1", ReasonLoggedOut, true))

		_, ok := f.users.Get("uuid-1")
		assert.False(t, ok)
		assert.Equal(t, []string{"Steve"}, f.repo.deleted)
		assert.Equal(t, []string{"uuid-1"}, f.quarantine.released)

		_, live := f.local.Player("uuid-1")
		assert.False(t, live, "remove must drop the connection from the host")
	})
}

func TestService_ApplyLookup(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.join("uuid-1", "Steve", "192.0.2.1")

	geo := &GeoInfo{Country: "DE", City: "Berlin"}
	f.svc.ApplyLookup("uuid-1", true, geo)

	user, _ := f.users.Get("uuid-1")
	assert.Equal(t, AccountPremium, user.Mode)
	assert.Same(t, geo, user.Geo)

	// Unknown identifiers are ignored.
	f.svc.ApplyLookup("ghost", true, nil)
}
