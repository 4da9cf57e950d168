// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package quarantine

import (
	"github.com/wardenmc/warden/internal/host"
)

// Stance captures the occupant attributes consulted by the placement
// search.
type Stance struct {
	Crouching bool
	Swimming  bool
	Submerged bool
	Flying    bool
	Gliding   bool
	Mounted   bool
	Airborne  bool
}

// StanceOf reads the placement-relevant stance from a live player.
func StanceOf(p host.Player) Stance {
	return Stance{
		Crouching: p.Sneaking(),
		Swimming:  p.Swimming(),
		Submerged: p.Submerged(),
		Flying:    p.Flying(),
		Gliding:   p.Gliding(),
		Mounted:   p.Mounted(),
		Airborne:  !p.OnGround(),
	}
}

// SafePosition computes a standable ground block for the occupant near the
// candidate. The occupant stands one block above the returned position.
// The branch ordering is deliberate and the suffocation net overrides
// every earlier branch:
//
//  1. a crouching occupant searches upward for the nearest solid block
//     with two air cells above it;
//  2. a swimming or submerged occupant, or a candidate cell that is not
//     empty, rises to the first non-liquid cell (the water surface);
//  3. an airborne, flying, gliding or mounted occupant, or a candidate
//     that is not a safe stand, searches downward for the nearest solid
//     block with two air cells above it;
//  4. if the resulting cell would embed the occupant in solid rock, the
//     upward search is repeated from there.
func SafePosition(w host.BlockWorld, candidate host.BlockPos, st Stance) host.BlockPos {
	pos := candidate

	switch {
	case st.Crouching:
		if ground, ok := searchUp(w, pos); ok {
			pos = ground
		}
	case st.Swimming || st.Submerged || !w.AirAt(pos):
		if surface, ok := surfaceAbove(w, pos); ok {
			pos = surface
		}
	case st.Flying || st.Gliding || st.Mounted || st.Airborne || !safeStand(w, pos):
		if ground, ok := searchDown(w, pos); ok {
			pos = ground
		}
	}

	// Suffocation safety net: the occupant's body occupies the two cells
	// above the stand block.
	if w.SolidAt(pos.Up(1)) || w.SolidAt(pos.Up(2)) {
		if ground, ok := searchUp(w, pos); ok {
			pos = ground
		}
	}
	return pos
}

// safeStand reports whether pos is solid ground with two air cells of
// clearance above it.
func safeStand(w host.BlockWorld, pos host.BlockPos) bool {
	return w.SolidAt(pos) && w.AirAt(pos.Up(1)) && w.AirAt(pos.Up(2))
}

// searchUp scans upward from the candidate for the nearest solid block with
// two air cells above it.
func searchUp(w host.BlockWorld, from host.BlockPos) (host.BlockPos, bool) {
	top := w.MaxY(from.World)
	for p := from; p.Y <= top; p = p.Up(1) {
		if safeStand(w, p) {
			return p, true
		}
	}
	return host.BlockPos{}, false
}

// searchDown scans downward from the candidate for the nearest solid block
// with two air cells above it.
func searchDown(w host.BlockWorld, from host.BlockPos) (host.BlockPos, bool) {
	bottom := w.MinY(from.World)
	for p := from; p.Y >= bottom; p = p.Down(1) {
		if safeStand(w, p) {
			return p, true
		}
	}
	return host.BlockPos{}, false
}

// surfaceAbove scans upward from a liquid or occupied cell for the first
// non-liquid cell, the water surface.
func surfaceAbove(w host.BlockWorld, from host.BlockPos) (host.BlockPos, bool) {
	top := w.MaxY(from.World)
	for p := from; p.Y <= top; p = p.Up(1) {
		if !w.LiquidAt(p) {
			return p, true
		}
	}
	return host.BlockPos{}, false
}
