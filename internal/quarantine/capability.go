// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package quarantine

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Action is one entry of the capability matrix: something a sandboxed
// player may attempt and the world-interaction filters must gate.
type Action string

// Capability actions. Each is independently configurable.
const (
	ActionMove          Action = "move"
	ActionBlockInteract Action = "block_interact"
	ActionBlockBreak    Action = "block_break"

	ActionItemDrop   Action = "item_drop"
	ActionItemPickup Action = "item_pickup"
	ActionItemMove   Action = "item_move"
	ActionItemUse    Action = "item_use"

	ActionAttackPlayer   Action = "attack_player"
	ActionAttackHostile  Action = "attack_hostile"
	ActionAttackAnimal   Action = "attack_animal"
	ActionAttackFriendly Action = "attack_friendly"
	ActionAttackNeutral  Action = "attack_neutral"
	ActionAttackMount    Action = "attack_mount"
	ActionAttackOther    Action = "attack_other"

	ActionInteractPlayer   Action = "interact_player"
	ActionInteractHostile  Action = "interact_hostile"
	ActionInteractAnimal   Action = "interact_animal"
	ActionInteractFriendly Action = "interact_friendly"
	ActionInteractNeutral  Action = "interact_neutral"
	ActionInteractMount    Action = "interact_mount"
	ActionInteractOther    Action = "interact_other"

	ActionChat    Action = "chat"
	ActionCommand Action = "command"

	ActionDamageFromMob    Action = "damage_from_mob"
	ActionDamageFromPlayer Action = "damage_from_player"
	ActionDamageAny        Action = "damage_any"

	ActionReceiveEffect Action = "receive_effect"
)

// Capabilities is the configurable allow/deny matrix for sandboxed players.
// Every flag defaults to deny; the zero value is the most restrictive
// configuration.
type Capabilities struct {
	Move          bool
	BlockInteract bool
	BlockBreak    bool

	ItemDrop   bool
	ItemPickup bool
	ItemMove   bool
	ItemUse    bool

	AttackPlayer   bool
	AttackHostile  bool
	AttackAnimal   bool
	AttackFriendly bool
	AttackNeutral  bool
	AttackMount    bool
	AttackOther    bool

	InteractPlayer   bool
	InteractHostile  bool
	InteractAnimal   bool
	InteractFriendly bool
	InteractNeutral  bool
	InteractMount    bool
	InteractOther    bool

	Chat    bool
	Command bool

	DamageFromMob    bool
	DamageFromPlayer bool
	DamageAny        bool

	ReceiveEffect bool
}

// Allows reports whether the matrix permits the action. Unknown actions are
// denied.
func (c Capabilities) Allows(a Action) bool {
	switch a {
	case ActionMove:
		return c.Move
	case ActionBlockInteract:
		return c.BlockInteract
	case ActionBlockBreak:
		return c.BlockBreak
	case ActionItemDrop:
		return c.ItemDrop
	case ActionItemPickup:
		return c.ItemPickup
	case ActionItemMove:
		return c.ItemMove
	case ActionItemUse:
		return c.ItemUse
	case ActionAttackPlayer:
		return c.AttackPlayer
	case ActionAttackHostile:
		return c.AttackHostile
	case ActionAttackAnimal:
		return c.AttackAnimal
	case ActionAttackFriendly:
		return c.AttackFriendly
	case ActionAttackNeutral:
		return c.AttackNeutral
	case ActionAttackMount:
		return c.AttackMount
	case ActionAttackOther:
		return c.AttackOther
	case ActionInteractPlayer:
		return c.InteractPlayer
	case ActionInteractHostile:
		return c.InteractHostile
	case ActionInteractAnimal:
		return c.InteractAnimal
	case ActionInteractFriendly:
		return c.InteractFriendly
	case ActionInteractNeutral:
		return c.InteractNeutral
	case ActionInteractMount:
		return c.InteractMount
	case ActionInteractOther:
		return c.InteractOther
	case ActionChat:
		return c.Chat
	case ActionCommand:
		return c.Command
	case ActionDamageFromMob:
		return c.DamageFromMob
	case ActionDamageFromPlayer:
		return c.DamageFromPlayer
	case ActionDamageAny:
		return c.DamageAny
	case ActionReceiveEffect:
		return c.ReceiveEffect
	}
	return false
}

// CapabilitiesFrom builds a matrix permitting exactly the listed actions.
// An unknown action name is an error, so a configuration typo fails loudly
// instead of silently denying.
func CapabilitiesFrom(actions []Action) (Capabilities, error) {
	var c Capabilities
	fields := map[Action]*bool{
		ActionMove:             &c.Move,
		ActionBlockInteract:    &c.BlockInteract,
		ActionBlockBreak:       &c.BlockBreak,
		ActionItemDrop:         &c.ItemDrop,
		ActionItemPickup:       &c.ItemPickup,
		ActionItemMove:         &c.ItemMove,
		ActionItemUse:          &c.ItemUse,
		ActionAttackPlayer:     &c.AttackPlayer,
		ActionAttackHostile:    &c.AttackHostile,
		ActionAttackAnimal:     &c.AttackAnimal,
		ActionAttackFriendly:   &c.AttackFriendly,
		ActionAttackNeutral:    &c.AttackNeutral,
		ActionAttackMount:      &c.AttackMount,
		ActionAttackOther:      &c.AttackOther,
		ActionInteractPlayer:   &c.InteractPlayer,
		ActionInteractHostile:  &c.InteractHostile,
		ActionInteractAnimal:   &c.InteractAnimal,
		ActionInteractFriendly: &c.InteractFriendly,
		ActionInteractNeutral:  &c.InteractNeutral,
		ActionInteractMount:    &c.InteractMount,
		ActionInteractOther:    &c.InteractOther,
		ActionChat:             &c.Chat,
		ActionCommand:          &c.Command,
		ActionDamageFromMob:    &c.DamageFromMob,
		ActionDamageFromPlayer: &c.DamageFromPlayer,
		ActionDamageAny:        &c.DamageAny,
		ActionReceiveEffect:    &c.ReceiveEffect,
	}
	for _, a := range actions {
		p, ok := fields[a]
		if !ok {
			return Capabilities{}, oops.Code("QUARANTINE_UNKNOWN_ACTION").
				With("action", string(a)).
				Errorf("unknown capability action")
		}
		*p = true
	}
	return c, nil
}

// CommandListMode selects how the named command list is interpreted.
type CommandListMode string

// Command list modes.
const (
	// AllowList permits only the listed commands.
	AllowList CommandListMode = "allow"

	// BlockList forbids the listed commands and permits all others.
	BlockList CommandListMode = "block"
)

// CommandFilter applies the named command allow/block list for sandboxed
// players. Entries are glob patterns matched against the lowercased command
// name without its leading slash.
type CommandFilter struct {
	mode     CommandListMode
	patterns []glob.Glob
}

// NewCommandFilter compiles the configured command patterns.
func NewCommandFilter(mode CommandListMode, entries []string) (*CommandFilter, error) {
	if mode != AllowList && mode != BlockList {
		return nil, oops.Code("QUARANTINE_BAD_COMMAND_MODE").
			With("mode", string(mode)).
			Errorf("command list mode must be %q or %q", AllowList, BlockList)
	}
	patterns := make([]glob.Glob, 0, len(entries))
	for _, entry := range entries {
		g, err := glob.Compile(strings.ToLower(entry))
		if err != nil {
			return nil, oops.Code("QUARANTINE_BAD_COMMAND_PATTERN").
				With("pattern", entry).
				Wrap(err)
		}
		patterns = append(patterns, g)
	}
	return &CommandFilter{mode: mode, patterns: patterns}, nil
}

// Allows reports whether the command may be executed from quarantine.
func (f *CommandFilter) Allows(command string) bool {
	name := strings.ToLower(strings.TrimPrefix(command, "/"))
	// Only the command name participates in matching, not its arguments.
	if i := strings.IndexByte(name, ' '); i >= 0 {
		name = name[:i]
	}

	listed := false
	for _, g := range f.patterns {
		if g.Match(name) {
			listed = true
			break
		}
	}
	if f.mode == AllowList {
		return listed
	}
	return !listed
}
