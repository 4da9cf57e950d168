// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package hosttest provides in-memory host doubles for tests.
package hosttest

import (
	"sync"
	"time"

	"github.com/wardenmc/warden/internal/host"
)

// Player is a configurable in-memory host.Player.
type Player struct {
	ID       string
	Nickname string
	Addr     string
	Ping     time.Duration

	Pos  host.Position
	Mode host.GameMode

	Items []host.ItemStack
	Fx    []host.Effect

	HP     float64
	Hunger int
	Sat    float64
	XP     host.Experience

	Fire   int
	Frozen int
	Fall   float64

	Invulnerable bool

	IsSneaking  bool
	IsSwimming  bool
	IsSubmerged bool
	IsFlying    bool
	IsGliding   bool
	IsMounted   bool
	Grounded    bool

	// Teleports records every Teleport target in order.
	Teleports []host.Position
	// InventorySyncs counts SyncInventory calls.
	InventorySyncs int
}

// NewPlayer creates a grounded survival player with sane defaults.
func NewPlayer(id, name, addr string) *Player {
	return &Player{
		ID:       id,
		Nickname: name,
		Addr:     addr,
		Ping:     50 * time.Millisecond,
		Mode:     host.GameModeSurvival,
		HP:       20,
		Hunger:   20,
		Sat:      5,
		Grounded: true,
	}
}

func (p *Player) Identifier() string     { return p.ID }
func (p *Player) Name() string           { return p.Nickname }
func (p *Player) Address() string        { return p.Addr }
func (p *Player) Latency() time.Duration { return p.Ping }

func (p *Player) Position() host.Position { return p.Pos }
func (p *Player) Teleport(pos host.Position) {
	p.Pos = pos
	p.Teleports = append(p.Teleports, pos)
}

func (p *Player) Inventory() []host.ItemStack         { return p.Items }
func (p *Player) SetInventory(items []host.ItemStack) { p.Items = items }
func (p *Player) ClearInventory()                     { p.Items = nil }
func (p *Player) SyncInventory()                      { p.InventorySyncs++ }

func (p *Player) Effects() []host.Effect    { return p.Fx }
func (p *Player) ApplyEffect(e host.Effect) { p.Fx = append(p.Fx, e) }
func (p *Player) ClearEffects()             { p.Fx = nil }

func (p *Player) Health() float64         { return p.HP }
func (p *Player) SetHealth(h float64)     { p.HP = h }
func (p *Player) Food() int               { return p.Hunger }
func (p *Player) SetFood(food int)        { p.Hunger = food }
func (p *Player) Saturation() float64     { return p.Sat }
func (p *Player) SetSaturation(s float64) { p.Sat = s }

func (p *Player) Experience() host.Experience      { return p.XP }
func (p *Player) SetExperience(xp host.Experience) { p.XP = xp }

func (p *Player) GameMode() host.GameMode     { return p.Mode }
func (p *Player) SetGameMode(m host.GameMode) { p.Mode = m }

func (p *Player) FireTicks() int            { return p.Fire }
func (p *Player) SetFireTicks(t int)        { p.Fire = t }
func (p *Player) FrozenTicks() int          { return p.Frozen }
func (p *Player) SetFrozenTicks(t int)      { p.Frozen = t }
func (p *Player) FallDistance() float64     { return p.Fall }
func (p *Player) SetFallDistance(d float64) { p.Fall = d }

func (p *Player) SetInvulnerable(v bool) { p.Invulnerable = v }

func (p *Player) Sneaking() bool  { return p.IsSneaking }
func (p *Player) Swimming() bool  { return p.IsSwimming }
func (p *Player) Submerged() bool { return p.IsSubmerged }
func (p *Player) Flying() bool    { return p.IsFlying }
func (p *Player) Gliding() bool   { return p.IsGliding }
func (p *Player) Mounted() bool   { return p.IsMounted }
func (p *Player) OnGround() bool  { return p.Grounded }

// Message is one recorded notifier delivery.
type Message struct {
	Identifier string
	Template   string
	Delay      time.Duration
	Args       []any
}

// Notifier records prompts and kicks for assertions.
type Notifier struct {
	mu      sync.Mutex
	Prompts []Message
	Kicks   []Message
}

// Prompt records the delivery.
func (n *Notifier) Prompt(identifier, template string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Prompts = append(n.Prompts, Message{Identifier: identifier, Template: template, Args: args})
}

// Kick records the delivery.
func (n *Notifier) Kick(identifier, template string, delay time.Duration, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Kicks = append(n.Kicks, Message{Identifier: identifier, Template: template, Delay: delay, Args: args})
}

// LastKick returns the most recent kick, if any.
func (n *Notifier) LastKick() (Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Kicks) == 0 {
		return Message{}, false
	}
	return n.Kicks[len(n.Kicks)-1], true
}

// LastPrompt returns the most recent prompt, if any.
func (n *Notifier) LastPrompt() (Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Prompts) == 0 {
		return Message{}, false
	}
	return n.Prompts[len(n.Prompts)-1], true
}
