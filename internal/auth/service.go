// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/wardenmc/warden/internal/host"
	"github.com/wardenmc/warden/pkg/errutil"
)

// Config is the flat authentication section of the configuration.
type Config struct {
	// Algorithm is the active hashing algorithm for new credentials.
	Algorithm Algorithm

	SessionTimeout time.Duration
	EnableSessions bool

	KickCooldown     time.Duration
	MaxLoginAttempts int

	// PinAddress rejects registered users connecting from an address
	// other than the one stored at registration.
	PinAddress bool

	// AllowProxy permits connections flagged as proxy origins.
	AllowProxy bool

	// AllowCrackedPremiumNames permits an identity to use a display name
	// owned by a different, externally verified account.
	AllowCrackedPremiumNames bool

	// BlockDuplicateLogins rejects a connect while the same key is
	// already connection-active.
	BlockDuplicateLogins bool

	// PremiumAutoLogin authenticates verified premium accounts without
	// credentials.
	PremiumAutoLogin bool

	// RequireConfirmation demands a matching confirmation argument on
	// registration.
	RequireConfirmation bool

	// AutoLoginAfterRegister transitions straight to authenticated after
	// a successful registration instead of forcing a reconnect.
	AutoLoginAfterRegister bool

	// QuarantineCapacity caps the sandbox population. Zero means
	// unlimited.
	QuarantineCapacity int
}

// QuarantineGate is the slice of the quarantine manager the state machine
// drives.
type QuarantineGate interface {
	// Enter places a connected player into the sandbox.
	Enter(p host.Player, registered bool) error

	// Release restores the player's snapshot and removes the record.
	Release(identifier string)

	// Abort drops the record and its tasks without restoring; used when
	// the connection is already gone.
	Abort(identifier string)

	IsQuarantined(identifier string) bool
	Population() int
}

// TaskScheduler is the slice of the tick scheduler the state machine uses
// for session expiry.
type TaskScheduler interface {
	SetTimeout(fn func(), delay time.Duration) ulid.ULID
	Cancel(id ulid.ULID)
}

// IdentityDirectory answers identity-lookup queries from cache and refreshes
// them in the background. Cached answers keep the connect path non-blocking;
// a miss reports absent and schedules a refresh whose completion re-enters
// the core as a host-serialized event.
type IdentityDirectory interface {
	// VerifiedIdentifier returns the identifier owning the display name,
	// if known.
	VerifiedIdentifier(name string) (string, bool)

	// AlternatePlatform reports whether the identifier connects through
	// an alternate client platform.
	AlternatePlatform(identifier string) bool

	// ProxyAddress reports whether the address is a known proxy origin.
	ProxyAddress(address string) bool

	// Refresh schedules a background lookup for the identity.
	Refresh(identifier, name, address string)
}

// Decision classifies the outcome of a connect.
type Decision int

// Connect decisions. Exactly one occurs per connect.
const (
	DecisionRejected Decision = iota
	DecisionAuthenticated
	DecisionQuarantined
)

func (d Decision) String() string {
	switch d {
	case DecisionRejected:
		return "rejected"
	case DecisionAuthenticated:
		return "authenticated"
	case DecisionQuarantined:
		return "quarantined"
	}
	return "unknown"
}

// ConnectOutcome is the decision taken for a connect along with the
// rejection reason, if any.
type ConnectOutcome struct {
	Decision Decision
	Reason   Reason
}

// State is the authentication state of an identity.
type State int

// Authentication states.
const (
	StateDisconnected State = iota
	StateQuarantinedUnregistered
	StateQuarantinedUnauthenticated
	StateAuthenticated
	StateOfflineSession
)

// Service orchestrates connect, register, login, logout, kick and delete
// transitions per identity. All methods must be invoked from the host's
// event thread; the service holds no internal concurrency beyond the
// directory's own guard.
type Service struct {
	cfg        Config
	users      *Directory
	repo       UserRepository
	hasher     *Hasher
	passwords  *PasswordValidator
	quarantine QuarantineGate
	sched      TaskScheduler
	host       host.Host
	identity   IdentityDirectory
	logger     *slog.Logger

	sessionTasks map[string]ulid.ULID // directory key -> pending expiry task

	now func() time.Time
}

// Deps bundles the collaborators for NewService.
type Deps struct {
	Users      *Directory
	Repository UserRepository
	Hasher     *Hasher
	Passwords  *PasswordValidator
	Quarantine QuarantineGate
	Scheduler  TaskScheduler
	Host       host.Host
	Identity   IdentityDirectory
	Logger     *slog.Logger
}

// NewService creates the authentication state machine. Returns an error if
// any required dependency is missing.
func NewService(cfg Config, deps Deps) (*Service, error) {
	switch {
	case deps.Users == nil:
		return nil, oops.Errorf("user directory is required")
	case deps.Repository == nil:
		return nil, oops.Errorf("user repository is required")
	case deps.Hasher == nil:
		return nil, oops.Errorf("hasher is required")
	case deps.Passwords == nil:
		return nil, oops.Errorf("password validator is required")
	case deps.Quarantine == nil:
		return nil, oops.Errorf("quarantine gate is required")
	case deps.Scheduler == nil:
		return nil, oops.Errorf("scheduler is required")
	case deps.Host == nil:
		return nil, oops.Errorf("host is required")
	case deps.Identity == nil:
		return nil, oops.Errorf("identity directory is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if !cfg.Algorithm.Valid() {
		return nil, oops.Code("AUTH_UNKNOWN_ALGORITHM").
			With("algorithm", string(cfg.Algorithm)).
			Errorf("configured hash algorithm is not supported")
	}
	return &Service{
		cfg:          cfg,
		users:        deps.Users,
		repo:         deps.Repository,
		hasher:       deps.Hasher,
		passwords:    deps.Passwords,
		quarantine:   deps.Quarantine,
		sched:        deps.Scheduler,
		host:         deps.Host,
		identity:     deps.Identity,
		logger:       logger,
		sessionTasks: make(map[string]ulid.ULID),
		now:          time.Now,
	}, nil
}

// Connect runs the connect policy chain for an arriving identity. Exactly
// one of reject, fast-path authenticate or quarantine occurs. A rejection
// terminates the connecting session via the notifier and never leaves a
// half-initialized user behind.
func (s *Service) Connect(identifier, name, address string) ConnectOutcome {
	key := s.users.KeyFor(identifier, name)
	existing, known := s.users.Get(key)

	if known && existing.Online && s.cfg.BlockDuplicateLogins {
		return s.reject(identifier, ReasonDuplicateLogin)
	}

	user := existing
	if !known {
		user = NewUser(identifier, name, address)
	}

	// Premium marking from the cached lookup; a miss schedules a
	// background refresh and the account stays offline until it lands.
	ownerID, looked := s.identity.VerifiedIdentifier(name)
	if !looked {
		s.identity.Refresh(identifier, name, address)
	} else if ownerID == identifier {
		user.Mode = AccountPremium
	}

	// Policy chain, first match wins.
	if !s.cfg.AllowProxy && s.identity.ProxyAddress(address) {
		return s.reject(identifier, ReasonProxyBlocked)
	}
	if known && existing.Online && s.quarantine.IsQuarantined(existing.Identifier) {
		return s.reject(identifier, ReasonDuplicateLogin)
	}
	if s.cfg.PinAddress && user.Registered() && user.Address != "" && user.Address != address {
		return s.reject(identifier, ReasonAddressMismatch)
	}
	if !s.cfg.AllowCrackedPremiumNames && looked && ownerID != "" && ownerID != identifier &&
		!s.identity.AlternatePlatform(identifier) {
		return s.reject(identifier, ReasonPremiumNameConflict)
	}

	resumable := s.cfg.EnableSessions &&
		known &&
		user.Identifier == identifier &&
		user.SessionValidAt(s.now(), s.cfg.SessionTimeout)
	if resumable || (s.cfg.PremiumAutoLogin && user.Premium()) {
		user.Online = true
		s.users.Put(user)
		s.authenticate(user, key)
		recordConnectDecision(DecisionAuthenticated, ReasonNone)
		s.logger.Info("connect fast path",
			"identifier", identifier,
			"name", name,
			"resumable", resumable,
		)
		return ConnectOutcome{Decision: DecisionAuthenticated}
	}

	if user.InKickCooldownAt(s.now(), s.cfg.KickCooldown) {
		return s.reject(identifier, ReasonKickCooldown)
	}
	if s.cfg.QuarantineCapacity > 0 && s.quarantine.Population() >= s.cfg.QuarantineCapacity {
		return s.reject(identifier, ReasonQuarantineFull)
	}

	player, ok := s.host.Player(identifier)
	if !ok {
		// The connection vanished mid-handshake; nothing to sandbox.
		s.logger.Warn("connecting player disappeared", "identifier", identifier)
		return ConnectOutcome{Decision: DecisionRejected, Reason: ReasonNone}
	}

	user.Online = true
	s.users.Put(user)
	if err := s.quarantine.Enter(player, user.Registered()); err != nil {
		errutil.LogError(s.logger, "quarantine entry failed", err)
		user.Online = false
		return s.reject(identifier, ReasonQuarantineFull)
	}

	recordConnectDecision(DecisionQuarantined, ReasonNone)
	s.logger.Info("entered quarantine",
		"identifier", identifier,
		"name", name,
		"registered", user.Registered(),
	)
	return ConnectOutcome{Decision: DecisionQuarantined}
}

// reject terminates the connecting session with a reason token. Policy
// rejections deliberately do not stamp the kick counters: the cooldown
// window is opened by explicit kicks (attempt ceiling, administrative), not
// by bounced connects, so a rejected retry cannot extend its own cooldown.
func (s *Service) reject(identifier string, reason Reason) ConnectOutcome {
	s.host.Notifier().Kick(identifier, reason.Template(), 0)
	recordConnectDecision(DecisionRejected, reason)
	s.logger.Info("connect rejected", "identifier", identifier, "reason", string(reason))
	return ConnectOutcome{Decision: DecisionRejected, Reason: reason}
}

// Register stores credentials for a quarantined, unregistered identity.
// confirm is consulted only when confirmation is configured.
func (s *Service) Register(ctx context.Context, identifier, password string, confirm *string) Reason {
	user, key, ok := s.online(identifier)
	if !ok || !s.quarantine.IsQuarantined(identifier) {
		return s.fail(identifier, ReasonNotQuarantined)
	}
	if user.Registered() {
		return s.fail(identifier, ReasonAlreadyRegistered)
	}
	if s.cfg.RequireConfirmation && (confirm == nil || *confirm != password) {
		return s.fail(identifier, ReasonConfirmMismatch)
	}
	if reason := s.passwords.Validate(password, user.CredentialHash, user.HashAlgorithm); reason != ReasonNone {
		return s.fail(identifier, reason)
	}

	digest, err := s.hasher.Hash(s.cfg.Algorithm, password)
	if err != nil {
		errutil.LogError(s.logger, "credential hashing failed", err)
		return s.fail(identifier, ReasonCredentialFailure)
	}

	now := s.now()
	user.CredentialHash = digest
	user.HashAlgorithm = s.cfg.Algorithm
	user.RegisteredAt = now
	if p, live := s.host.Player(identifier); live {
		user.Address = p.Address()
	}
	s.persist(ctx, user)
	recordRegistration()

	if s.cfg.AutoLoginAfterRegister || (s.cfg.PremiumAutoLogin && user.Premium()) {
		user.LastAuthAt = now
		user.FailedLogins = 0
		s.quarantine.Release(identifier)
		s.authenticate(user, key)
		s.host.Notifier().Prompt(identifier, "warden.registered")
		s.logger.Info("registered and authenticated", "identifier", identifier)
		return ReasonNone
	}

	// Registration complete but a fresh login is required.
	s.quarantine.Release(identifier)
	s.host.Notifier().Kick(identifier, "warden.register_reconnect", 0)
	s.logger.Info("registered, reconnect required", "identifier", identifier)
	return ReasonNone
}

// Login verifies credentials for a quarantined, registered identity. The
// failed-attempt counter is incremented before validation; reaching the
// ceiling kicks with a cooldown regardless of the password.
func (s *Service) Login(ctx context.Context, identifier, password string) Reason {
	user, key, ok := s.online(identifier)
	if !ok || !s.quarantine.IsQuarantined(identifier) {
		return s.fail(identifier, ReasonNotQuarantined)
	}

	user.FailedLogins++
	if s.cfg.MaxLoginAttempts > 0 && user.FailedLogins >= s.cfg.MaxLoginAttempts {
		recordLoginFailure("attempt_ceiling")
		s.Kick(identifier, ReasonTooManyAttempts)
		return ReasonTooManyAttempts
	}

	if !user.Registered() {
		return s.fail(identifier, ReasonNotRegistered)
	}

	match, err := s.hasher.Verify(password, user.CredentialHash, user.HashAlgorithm)
	if err != nil {
		// Unknown algorithm or corrupt digest: a failed credential
		// operation, not a wrong password.
		errutil.LogError(s.logger, "credential verification failed", err)
		return s.fail(identifier, ReasonCredentialFailure)
	}
	if !match {
		recordLoginFailure("wrong_password")
		return s.fail(identifier, ReasonWrongPassword)
	}

	user.FailedLogins = 0
	user.Kicks = 0
	user.LastAuthAt = s.now()
	if p, live := s.host.Player(identifier); live {
		user.Address = p.Address()
	}
	s.persist(ctx, user)

	s.quarantine.Release(identifier)
	s.authenticate(user, key)
	s.host.Notifier().Prompt(identifier, "warden.logged_in")
	s.logger.Info("login succeeded", "identifier", identifier)
	return ReasonNone
}

// Logout ends an authenticated session: the session timestamp is cleared,
// the pending expiry task cancelled, and the connection, if active,
// disconnected with the reason.
func (s *Service) Logout(identifier string, reason Reason) {
	user, key, ok := s.resolve(identifier)
	if !ok {
		return
	}
	user.LastAuthAt = time.Time{}
	s.cancelSessionTask(key)
	if user.Online {
		s.host.Notifier().Kick(identifier, reason.Template(), 0)
	}
	s.logger.Info("logged out", "identifier", identifier, "reason", string(reason))
}

// Kick stamps the kick counters and disconnects the identity if connected.
// It does not otherwise change authentication state.
func (s *Service) Kick(identifier string, reason Reason, args ...any) {
	user, _, ok := s.resolve(identifier)
	if ok {
		user.LastKickAt = s.now()
		user.Kicks++
	}
	s.host.Notifier().Kick(identifier, reason.Template(), 0, args...)
	s.logger.Info("kicked", "identifier", identifier, "reason", string(reason))
}

// Delete unregisters the identity entirely: quarantine is released, the
// connection kicked, and the user removed from the directory and the
// persistence gateway. removeFromWorld additionally instructs the host to
// fully remove the connection.
func (s *Service) Delete(ctx context.Context, identifier string, reason Reason, removeFromWorld bool) error {
	user, key, ok := s.resolve(identifier)
	if !ok {
		return oops.Code("AUTH_USER_NOT_FOUND").
			With("identifier", identifier).
			Wrap(ErrNotFound)
	}

	if s.quarantine.IsQuarantined(identifier) {
		s.quarantine.Release(identifier)
	}
	s.cancelSessionTask(key)
	if user.Online {
		s.host.Notifier().Kick(identifier, reason.Template(), 0)
	}

	s.users.Remove(user)
	if err := s.repo.Delete(ctx, user.Name); err != nil && !errors.Is(err, ErrNotFound) {
		errutil.LogWarn(s.logger, "user deletion persistence failed", err)
	}

	if removeFromWorld {
		s.host.Remove(identifier)
	}
	s.logger.Info("user deleted", "identifier", identifier, "name", user.Name)
	return nil
}

// Disconnect records the end of a connection. A quarantined record is
// dropped without restore (the player is gone); an authenticated session
// remains resumable until its timeout.
func (s *Service) Disconnect(identifier string) {
	user, _, ok := s.resolve(identifier)
	if !ok {
		return
	}
	if s.quarantine.IsQuarantined(identifier) {
		s.quarantine.Abort(identifier)
	}
	user.Online = false
	s.logger.Debug("disconnected", "identifier", identifier)
}

// Authenticated reports whether the identity may act in the shared world:
// connected and out of quarantine, or disconnected with a still-valid
// session.
func (s *Service) Authenticated(identifier string) bool {
	user, _, ok := s.resolve(identifier)
	if !ok {
		return false
	}
	if user.Online {
		return !s.quarantine.IsQuarantined(identifier)
	}
	return s.cfg.EnableSessions && user.SessionValidAt(s.now(), s.cfg.SessionTimeout)
}

// StateOf returns the identity's current authentication state.
func (s *Service) StateOf(identifier string) State {
	user, _, ok := s.resolve(identifier)
	if !ok {
		return StateDisconnected
	}
	if user.Online {
		if s.quarantine.IsQuarantined(identifier) {
			if user.Registered() {
				return StateQuarantinedUnauthenticated
			}
			return StateQuarantinedUnregistered
		}
		return StateAuthenticated
	}
	if s.cfg.EnableSessions && user.SessionValidAt(s.now(), s.cfg.SessionTimeout) {
		return StateOfflineSession
	}
	return StateDisconnected
}

// ApplyLookup merges a completed background identity lookup into the user.
// Invoked by the host event queue when the async resolver reports a result.
func (s *Service) ApplyLookup(identifier string, verified bool, geo *GeoInfo) {
	user, _, ok := s.resolve(identifier)
	if !ok {
		return
	}
	if verified {
		user.Mode = AccountPremium
	}
	if geo != nil {
		user.Geo = geo
	}
}

// authenticate finishes a transition into the authenticated state and arms
// the session expiry task.
func (s *Service) authenticate(user *User, key string) {
	user.LastAuthAt = s.now()
	if !s.cfg.EnableSessions {
		return
	}
	s.cancelSessionTask(key)
	identifier := user.Identifier
	s.sessionTasks[key] = s.sched.SetTimeout(func() {
		s.expireSession(identifier, key)
	}, s.cfg.SessionTimeout)
}

func (s *Service) expireSession(identifier, key string) {
	delete(s.sessionTasks, key)
	user, _, ok := s.resolve(identifier)
	if !ok || user.Online {
		return
	}
	user.LastAuthAt = time.Time{}
	s.logger.Debug("session expired", "identifier", identifier)
}

func (s *Service) cancelSessionTask(key string) {
	if id, ok := s.sessionTasks[key]; ok {
		s.sched.Cancel(id)
		delete(s.sessionTasks, key)
	}
}

// fail reports a retryable failure back to the user without changing state.
func (s *Service) fail(identifier string, reason Reason) Reason {
	s.host.Notifier().Prompt(identifier, reason.Template())
	return reason
}

// online resolves a currently connected user.
func (s *Service) online(identifier string) (*User, string, bool) {
	user, key, ok := s.resolve(identifier)
	if !ok || !user.Online {
		return nil, "", false
	}
	return user, key, true
}

// resolve finds the user for an identifier under either lookup mode.
func (s *Service) resolve(identifier string) (*User, string, bool) {
	if s.users.Mode() == ByIdentifier {
		u, ok := s.users.Get(identifier)
		return u, identifier, ok
	}
	// Name-keyed mode: the live player carries the display name; fall
	// back to scanning for offline users.
	if p, ok := s.host.Player(identifier); ok {
		key := s.users.KeyFor(identifier, p.Name())
		u, found := s.users.Get(key)
		return u, key, found
	}
	for _, u := range s.users.All() {
		if u.Identifier == identifier {
			return u, s.users.KeyFor(u.Identifier, u.Name), true
		}
	}
	return nil, "", false
}

// persist writes the user through to the gateway. Persistence failures are
// logged and abandoned; the in-memory user remains the source of truth and
// the connection is never terminated over them.
func (s *Service) persist(ctx context.Context, user *User) {
	if err := s.repo.Save(ctx, user); err != nil {
		errutil.LogWarn(s.logger, "user persistence failed", oops.Code("STORE_SAVE_FAILED").
			With("identifier", user.Identifier).
			With("name", user.Name).
			Wrap(err))
	}
}
