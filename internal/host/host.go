// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package host defines the adapter boundary between the authentication core
// and the game server that embeds it. The engine never reaches into host
// internals; it registers handlers against the fixed callback points below
// and drives players through the Player and BlockWorld interfaces.
package host

import "time"

// Position is a player position inside a named world.
type Position struct {
	World string
	X     float64
	Y     float64
	Z     float64
}

// Block returns the block cell containing the position.
func (p Position) Block() BlockPos {
	return BlockPos{World: p.World, X: floor(p.X), Y: floor(p.Y), Z: floor(p.Z)}
}

func floor(f float64) int {
	i := int(f)
	if f < 0 && float64(i) != f {
		i--
	}
	return i
}

// BlockPos is an integer block coordinate inside a named world.
type BlockPos struct {
	World string
	X     int
	Y     int
	Z     int
}

// Up returns the block position n cells above.
func (b BlockPos) Up(n int) BlockPos {
	b.Y += n
	return b
}

// Down returns the block position n cells below.
func (b BlockPos) Down(n int) BlockPos {
	b.Y -= n
	return b
}

// Center returns the position standing centered on top of the block.
func (b BlockPos) Center() Position {
	return Position{World: b.World, X: float64(b.X) + 0.5, Y: float64(b.Y), Z: float64(b.Z) + 0.5}
}

// BlockWorld answers block queries for safe-placement searches.
type BlockWorld interface {
	// SolidAt reports whether the block at p is solid ground.
	SolidAt(p BlockPos) bool

	// LiquidAt reports whether the block at p is a liquid.
	LiquidAt(p BlockPos) bool

	// AirAt reports whether the block at p is empty air.
	AirAt(p BlockPos) bool

	// MinY and MaxY bound the vertical search range for the world.
	MinY(world string) int
	MaxY(world string) int
}

// GameMode is the host's play mode for a player.
type GameMode string

// Game modes recognized by the snapshot layer.
const (
	GameModeSurvival  GameMode = "survival"
	GameModeCreative  GameMode = "creative"
	GameModeAdventure GameMode = "adventure"
	GameModeSpectator GameMode = "spectator"
)

// ItemStack is an inventory slot snapshot. Data carries host-specific NBT or
// component payloads opaquely.
type ItemStack struct {
	Slot  int
	ID    string
	Count int
	Data  []byte
}

// Effect is an active status effect on a player.
type Effect struct {
	ID        string
	Amplifier int
	Duration  int // remaining ticks
}

// Experience captures the player's experience state.
type Experience struct {
	Level    int
	Progress float32
	Total    int
}

// Player is the live, connected representation of an identity. All methods
// are only valid while the underlying connection is active.
type Player interface {
	Identifier() string
	Name() string
	Address() string

	// Latency is the measured round-trip time for the connection.
	Latency() time.Duration

	Position() Position
	Teleport(pos Position)

	Inventory() []ItemStack
	SetInventory(items []ItemStack)
	ClearInventory()
	// SyncInventory pushes the server-side inventory view back to the
	// client, discarding any client-side prediction.
	SyncInventory()

	Effects() []Effect
	ApplyEffect(e Effect)
	ClearEffects()

	Health() float64
	SetHealth(h float64)
	Food() int
	SetFood(food int)
	Saturation() float64
	SetSaturation(s float64)

	Experience() Experience
	SetExperience(xp Experience)

	GameMode() GameMode
	SetGameMode(m GameMode)

	FireTicks() int
	SetFireTicks(t int)
	FrozenTicks() int
	SetFrozenTicks(t int)
	FallDistance() float64
	SetFallDistance(d float64)

	// Invulnerable toggles damage immunity while sandboxed.
	SetInvulnerable(v bool)

	// Stance flags consulted by safe-placement.
	Sneaking() bool
	Swimming() bool
	Submerged() bool
	Flying() bool
	Gliding() bool
	Mounted() bool
	OnGround() bool
}

// Notifier delivers templated messages to identities. Rendering is entirely
// the host's concern; the core only names templates and arguments.
type Notifier interface {
	// Prompt sends a message to the identity.
	Prompt(identifier, template string, args ...any)

	// Kick disconnects the identity with a templated reason after the
	// given delay (zero means immediately).
	Kick(identifier, template string, delay time.Duration, args ...any)
}

// Handlers is the fixed set of callback points the core registers with the
// host. Nil fields are simply not invoked. The host must deliver all
// callbacks from a single thread at a time; the core relies on that for its
// ordering guarantees.
type Handlers struct {
	Connect    func(identifier, name, address string)
	Disconnect func(identifier string)
	Tick       func()
	// Move is consulted before applying a position change; returning
	// false rejects the move.
	Move func(identifier string, from, to Position) bool
	// Chat, Command, Interact and Damage return false to cancel the
	// attempted action.
	Chat     func(identifier, message string) bool
	Command  func(identifier, command string) bool
	Interact func(identifier, action string) bool
	Damage   func(identifier, cause string) bool
}

// Host is the embedding game server as seen by the core.
type Host interface {
	// Register installs the core's callback handlers. Must be called
	// once before the host starts delivering events.
	Register(h Handlers)

	// Player returns the live player for an identifier, if connected.
	Player(identifier string) (Player, bool)

	// Remove fully removes the identity's connection from the host,
	// beyond a plain kick.
	Remove(identifier string)

	// World exposes block queries for placement searches.
	World() BlockWorld

	Notifier() Notifier
}
