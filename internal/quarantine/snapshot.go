// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package quarantine

import (
	"github.com/wardenmc/warden/internal/host"
)

// Snapshot is the immutable capture of a player's transient world-state at
// quarantine entry. It is owned by its record and applied exactly once on
// release.
type Snapshot struct {
	Inventory    []host.ItemStack
	Effects      []host.Effect
	Health       float64
	Food         int
	Saturation   float64
	Experience   host.Experience
	Position     host.Position
	GameMode     host.GameMode
	FireTicks    int
	FrozenTicks  int
	FallDistance float64

	// InventoryHidden records whether the inventory was cleared on
	// capture and must be restored on release.
	InventoryHidden bool
}

// SandboxEffects configures what is applied to a player on capture.
type SandboxEffects struct {
	// HideInventory clears the inventory view while sandboxed.
	HideInventory bool

	// Invisible applies an invisibility effect.
	Invisible bool

	// Blind applies a blindness effect.
	Blind bool

	// Invulnerable toggles damage immunity.
	Invulnerable bool
}

// Effect identifiers applied while sandboxed.
const (
	effectInvisibility = "invisibility"
	effectBlindness    = "blindness"
)

// sandboxEffectDuration is effectively unbounded; release clears effects
// explicitly.
const sandboxEffectDuration = 1 << 30

// Capture snapshots the player and applies the sandbox restrictions:
// status effects are captured and cleared, the inventory optionally hidden,
// and the configured sandbox effects applied.
func Capture(p host.Player, fx SandboxEffects) *Snapshot {
	snap := &Snapshot{
		Inventory:       p.Inventory(),
		Effects:         p.Effects(),
		Health:          p.Health(),
		Food:            p.Food(),
		Saturation:      p.Saturation(),
		Experience:      p.Experience(),
		Position:        p.Position(),
		GameMode:        p.GameMode(),
		FireTicks:       p.FireTicks(),
		FrozenTicks:     p.FrozenTicks(),
		FallDistance:    p.FallDistance(),
		InventoryHidden: fx.HideInventory,
	}

	p.ClearEffects()
	if fx.HideInventory {
		p.ClearInventory()
	}
	if fx.Invisible {
		p.ApplyEffect(host.Effect{ID: effectInvisibility, Duration: sandboxEffectDuration})
	}
	if fx.Blind {
		p.ApplyEffect(host.Effect{ID: effectBlindness, Duration: sandboxEffectDuration})
	}
	if fx.Invulnerable {
		p.SetInvulnerable(true)
	}

	return snap
}

// Restore applies the snapshot back to the player. Sandbox effects are
// removed first so restored effects are not mixed with them.
func (s *Snapshot) Restore(p host.Player) {
	p.ClearEffects()
	p.SetInvulnerable(false)

	for _, e := range s.Effects {
		p.ApplyEffect(e)
	}
	if s.InventoryHidden {
		p.SetInventory(s.Inventory)
	}
	p.SetHealth(s.Health)
	p.SetFood(s.Food)
	p.SetSaturation(s.Saturation)
	p.SetExperience(s.Experience)
	p.SetGameMode(s.GameMode)
	p.SetFireTicks(s.FireTicks)
	p.SetFrozenTicks(s.FrozenTicks)
	p.SetFallDistance(s.FallDistance)
}
