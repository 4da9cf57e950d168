// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package quarantine implements the restricted sandbox for connected but
// unverified players: state snapshots, safe placement, the capability
// matrix, and the timeout/reminder loop.
package quarantine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/wardenmc/warden/internal/host"
)

// LatencyTier maps a measured round-trip latency ceiling to the quarantine
// timeout granted to such connections. Higher latency earns a longer
// allowance.
type LatencyTier struct {
	MaxLatency time.Duration
	Timeout    time.Duration
}

// Config is the flat quarantine section of the configuration.
type Config struct {
	Capabilities Capabilities

	CommandMode CommandListMode
	Commands    []string

	// Capacity caps the sandbox population. Zero means unlimited.
	Capacity int

	// KickAfterTimeout disconnects players whose allowance ran out.
	KickAfterTimeout bool

	// ReminderInterval is the period of the register/login prompt loop.
	// Zero disables reminders.
	ReminderInterval time.Duration

	// Timeouts is the latency-tiered allowance table, ordered by
	// ascending MaxLatency. A connection slower than every tier gets
	// the last tier's timeout.
	Timeouts []LatencyTier

	// Anchor is the configured sandbox point. Nil quarantines players
	// in place at their current position.
	Anchor *host.Position

	Effects SandboxEffects
}

// DefaultTimeout is granted when no latency tier is configured.
const DefaultTimeout = 60 * time.Second

// timeoutFor picks the allowance for a measured latency.
func (c Config) timeoutFor(latency time.Duration) time.Duration {
	if len(c.Timeouts) == 0 {
		return DefaultTimeout
	}
	for _, tier := range c.Timeouts {
		if latency <= tier.MaxLatency {
			return tier.Timeout
		}
	}
	return c.Timeouts[len(c.Timeouts)-1].Timeout
}

// TaskScheduler is the slice of the tick scheduler the manager uses.
type TaskScheduler interface {
	SetTimeout(fn func(), delay time.Duration) ulid.ULID
	SetInterval(fn func(), interval time.Duration) ulid.ULID
	Cancel(id ulid.ULID)
}

// Record tracks one sandboxed player. A record exists for an identifier
// exactly while that identifier is in quarantine.
type Record struct {
	ID         ulid.ULID
	Player     host.Player
	Snapshot   *Snapshot
	Registered bool

	anchor host.Position

	timeoutTask  ulid.ULID
	reminderTask ulid.ULID
	hasReminder  bool
}

// Manager owns the quarantine records and answers the capability queries
// the world-interaction filters gate on.
type Manager struct {
	cfg      Config
	commands *CommandFilter

	mu      sync.RWMutex
	records map[string]*Record

	// cachedSafe is the placement computed for the configured anchor,
	// reused for subsequent entries into the same sandbox point.
	cachedSafe *host.BlockPos

	sched     TaskScheduler
	notifier  host.Notifier
	world     host.BlockWorld
	onTimeout func(identifier string)
	logger    *slog.Logger
}

// ManagerDeps bundles the collaborators for NewManager.
type ManagerDeps struct {
	Scheduler TaskScheduler
	Notifier  host.Notifier
	World     host.BlockWorld

	// OnTimeout is invoked when a sandboxed player's allowance runs out
	// and KickAfterTimeout is set; the state machine turns it into a
	// kick.
	OnTimeout func(identifier string)

	Logger *slog.Logger
}

// NewManager creates a quarantine manager. Returns an error if a required
// dependency is missing or the command list does not compile.
func NewManager(cfg Config, deps ManagerDeps) (*Manager, error) {
	switch {
	case deps.Scheduler == nil:
		return nil, oops.Errorf("scheduler is required")
	case deps.Notifier == nil:
		return nil, oops.Errorf("notifier is required")
	case deps.World == nil:
		return nil, oops.Errorf("block world is required")
	}
	if cfg.CommandMode == "" {
		cfg.CommandMode = AllowList
	}
	commands, err := NewCommandFilter(cfg.CommandMode, cfg.Commands)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		cfg:       cfg,
		commands:  commands,
		records:   make(map[string]*Record),
		sched:     deps.Scheduler,
		notifier:  deps.Notifier,
		world:     deps.World,
		onTimeout: deps.OnTimeout,
		logger:    logger,
	}, nil
}

// Enter places a connected player into the sandbox: snapshot, safe
// placement, timeout and reminder tasks.
func (m *Manager) Enter(p host.Player, registered bool) error {
	identifier := p.Identifier()

	m.mu.Lock()
	if _, exists := m.records[identifier]; exists {
		m.mu.Unlock()
		return oops.Code("QUARANTINE_ALREADY_PRESENT").
			With("identifier", identifier).
			Errorf("player is already quarantined")
	}
	if m.cfg.Capacity > 0 && len(m.records) >= m.cfg.Capacity {
		m.mu.Unlock()
		return oops.Code("QUARANTINE_FULL").
			With("capacity", m.cfg.Capacity).
			Errorf("quarantine capacity reached")
	}

	snap := Capture(p, m.cfg.Effects)
	anchor := m.placementLocked(p)
	p.Teleport(anchor)

	rec := &Record{
		ID:         ulid.Make(),
		Player:     p,
		Snapshot:   snap,
		Registered: registered,
		anchor:     anchor,
	}
	m.records[identifier] = rec
	population := len(m.records)
	m.mu.Unlock()

	timeout := m.cfg.timeoutFor(p.Latency())
	rec.timeoutTask = m.sched.SetTimeout(func() { m.timedOut(identifier) }, timeout)
	if m.cfg.ReminderInterval > 0 {
		template := "warden.remind_register"
		if registered {
			template = "warden.remind_login"
		}
		rec.reminderTask = m.sched.SetInterval(func() {
			m.notifier.Prompt(identifier, template)
		}, m.cfg.ReminderInterval)
		rec.hasReminder = true
	}

	recordEntry(population)
	m.logger.Info("quarantine entered",
		"identifier", identifier,
		"registered", registered,
		"timeout", timeout,
	)
	return nil
}

// placementLocked computes the sandbox position for a player. The safe
// search for the configured anchor runs once and is cached; in-place
// quarantine recomputes per player.
func (m *Manager) placementLocked(p host.Player) host.Position {
	if m.cfg.Anchor == nil {
		safe := SafePosition(m.world, p.Position().Block().Down(1), StanceOf(p))
		return safe.Up(1).Center()
	}
	if m.cachedSafe == nil {
		safe := SafePosition(m.world, m.cfg.Anchor.Block(), StanceOf(p))
		m.cachedSafe = &safe
	}
	return m.cachedSafe.Up(1).Center()
}

// timedOut fires when a sandboxed player's allowance ran out.
func (m *Manager) timedOut(identifier string) {
	m.mu.RLock()
	_, present := m.records[identifier]
	m.mu.RUnlock()
	if !present {
		return
	}

	recordTimeout()
	m.logger.Info("quarantine timed out", "identifier", identifier)
	if m.cfg.KickAfterTimeout && m.onTimeout != nil {
		m.onTimeout(identifier)
		return
	}
	m.notifier.Prompt(identifier, "warden.quarantine_timeout")
}

// Release restores the player's snapshot and removes the record. Only acts
// if the identifier is currently quarantined. The snapshot position is
// re-validated through the safe search, since the world may have changed.
func (m *Manager) Release(identifier string) {
	rec, ok := m.take(identifier)
	if !ok {
		return
	}

	p := rec.Player
	rec.Snapshot.Restore(p)

	origin := rec.Snapshot.Position
	safe := SafePosition(m.world, origin.Block().Down(1), StanceOf(p))
	if safe == origin.Block().Down(1) {
		// The original stand survived; keep the exact sub-block
		// position.
		p.Teleport(origin)
	} else {
		p.Teleport(safe.Up(1).Center())
	}

	recordRelease(m.Population())
	m.logger.Info("quarantine released", "identifier", identifier)
}

// Abort drops the record and its tasks without restoring state; used when
// the connection is already gone.
func (m *Manager) Abort(identifier string) {
	if _, ok := m.take(identifier); ok {
		recordAbort(m.Population())
		m.logger.Debug("quarantine aborted", "identifier", identifier)
	}
}

// take removes and returns the record, cancelling its tasks.
func (m *Manager) take(identifier string) (*Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[identifier]
	if !ok {
		return nil, false
	}
	delete(m.records, identifier)
	m.sched.Cancel(rec.timeoutTask)
	if rec.hasReminder {
		m.sched.Cancel(rec.reminderTask)
	}
	return rec, true
}

// IsQuarantined reports whether a record exists for the identifier.
func (m *Manager) IsQuarantined(identifier string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[identifier]
	return ok
}

// Population returns the number of sandboxed players.
func (m *Manager) Population() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// CheckCapability answers the capability query for an identifier. Players
// outside quarantine are always allowed. A denial re-synchronizes the
// player's inventory view, discarding client-side prediction of the
// blocked action.
func (m *Manager) CheckCapability(identifier string, action Action) bool {
	m.mu.RLock()
	rec, ok := m.records[identifier]
	m.mu.RUnlock()
	if !ok {
		return true
	}
	if m.cfg.Capabilities.Allows(action) {
		return true
	}
	rec.Player.SyncInventory()
	return false
}

// CommandAllowed reports whether the identifier may run the command. The
// command capability flag gates execution, and the configured allow or
// block list additionally constrains which commands pass.
func (m *Manager) CommandAllowed(identifier, command string) bool {
	m.mu.RLock()
	_, ok := m.records[identifier]
	m.mu.RUnlock()
	if !ok {
		return true
	}
	if !m.cfg.Capabilities.Command {
		return false
	}
	return m.commands.Allows(command)
}

// OutsideAnchor reports whether the horizontal coordinates have left the
// identifier's sandbox cell. Either differing horizontal block coordinate
// counts as outside.
func (m *Manager) OutsideAnchor(identifier string, x, z float64) bool {
	m.mu.RLock()
	rec, ok := m.records[identifier]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	anchor := rec.anchor.Block()
	probe := host.Position{World: anchor.World, X: x, Y: 0, Z: z}.Block()
	return probe.X != anchor.X || probe.Z != anchor.Z
}

// HandleMove validates a position change for a sandboxed player. When
// movement is disallowed and the change leaves the sandbox cell, the move
// is rejected and the player is teleported back to the anchor.
func (m *Manager) HandleMove(identifier string, to host.Position) bool {
	m.mu.RLock()
	rec, ok := m.records[identifier]
	m.mu.RUnlock()
	if !ok {
		return true
	}
	if m.cfg.Capabilities.Move {
		return true
	}
	if !m.OutsideAnchor(identifier, to.X, to.Z) {
		return true
	}
	rec.Player.Teleport(rec.anchor)
	return false
}
