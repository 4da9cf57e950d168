// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package host

import (
	"log/slog"
	"sync"
	"time"
)

// FlatWorld is a synthetic block world: an infinite solid plane at Ground
// with air above and solid below. Used by the standalone server mode and
// the end-to-end tests.
type FlatWorld struct {
	Ground int
	Floor  int
	Top    int
}

// SolidAt reports solid for the ground plane and everything beneath it.
func (w FlatWorld) SolidAt(p BlockPos) bool { return p.Y <= w.Ground }

// LiquidAt always reports false; the flat world is dry.
func (w FlatWorld) LiquidAt(BlockPos) bool { return false }

// AirAt reports air for everything above the ground plane.
func (w FlatWorld) AirAt(p BlockPos) bool { return p.Y > w.Ground }

// MinY returns the lower vertical search bound.
func (w FlatWorld) MinY(string) int { return w.Floor }

// MaxY returns the upper vertical search bound.
func (w FlatWorld) MaxY(string) int { return w.Top }

// LogNotifier writes prompts and kicks to the log. The standalone mode has
// no client connections to deliver them to.
type LogNotifier struct {
	Logger *slog.Logger
}

// Prompt logs the templated message.
func (n LogNotifier) Prompt(identifier, template string, args ...any) {
	n.Logger.Info("prompt", "identifier", identifier, "template", template, "args", args)
}

// Kick logs the templated disconnect.
func (n LogNotifier) Kick(identifier, template string, delay time.Duration, args ...any) {
	n.Logger.Info("kick", "identifier", identifier, "template", template, "delay", delay, "args", args)
}

// Local is an in-process host. Events are delivered synchronously to the
// registered handlers, which matches the single-threaded event delivery of
// an embedding game server.
type Local struct {
	mu       sync.Mutex
	handlers Handlers
	players  map[string]Player
	world    BlockWorld
	notifier Notifier
}

// NewLocal creates an in-process host over the given world and notifier.
func NewLocal(world BlockWorld, notifier Notifier) *Local {
	return &Local{
		players:  make(map[string]Player),
		world:    world,
		notifier: notifier,
	}
}

// Register installs the core's handlers.
func (l *Local) Register(h Handlers) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = h
}

// Player returns the connected player for an identifier.
func (l *Local) Player(identifier string) (Player, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.players[identifier]
	return p, ok
}

// Remove drops the player without a disconnect event.
func (l *Local) Remove(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.players, identifier)
}

// World returns the block world.
func (l *Local) World() BlockWorld { return l.world }

// Notifier returns the notifier.
func (l *Local) Notifier() Notifier { return l.notifier }

// Connect adds the player and delivers the connect event.
func (l *Local) Connect(p Player) {
	l.mu.Lock()
	l.players[p.Identifier()] = p
	h := l.handlers
	l.mu.Unlock()
	if h.Connect != nil {
		h.Connect(p.Identifier(), p.Name(), p.Address())
	}
}

// Disconnect drops the player and delivers the disconnect event.
func (l *Local) Disconnect(identifier string) {
	l.mu.Lock()
	delete(l.players, identifier)
	h := l.handlers
	l.mu.Unlock()
	if h.Disconnect != nil {
		h.Disconnect(identifier)
	}
}

// Tick delivers one server tick.
func (l *Local) Tick() {
	l.mu.Lock()
	h := l.handlers
	l.mu.Unlock()
	if h.Tick != nil {
		h.Tick()
	}
}

// Move delivers a position change and reports whether it was allowed.
func (l *Local) Move(identifier string, from, to Position) bool {
	l.mu.Lock()
	h := l.handlers
	l.mu.Unlock()
	if h.Move == nil {
		return true
	}
	return h.Move(identifier, from, to)
}

// Chat delivers a chat attempt and reports whether it was allowed.
func (l *Local) Chat(identifier, message string) bool {
	l.mu.Lock()
	h := l.handlers
	l.mu.Unlock()
	if h.Chat == nil {
		return true
	}
	return h.Chat(identifier, message)
}

// Command delivers a command attempt and reports whether it was allowed.
func (l *Local) Command(identifier, command string) bool {
	l.mu.Lock()
	h := l.handlers
	l.mu.Unlock()
	if h.Command == nil {
		return true
	}
	return h.Command(identifier, command)
}

// Interact delivers an interaction attempt and reports whether it was
// allowed.
func (l *Local) Interact(identifier, action string) bool {
	l.mu.Lock()
	h := l.handlers
	l.mu.Unlock()
	if h.Interact == nil {
		return true
	}
	return h.Interact(identifier, action)
}

// Damage delivers a damage event and reports whether it applies.
func (l *Local) Damage(identifier, cause string) bool {
	l.mu.Lock()
	h := l.handlers
	l.mu.Unlock()
	if h.Damage == nil {
		return true
	}
	return h.Damage(identifier, cause)
}
