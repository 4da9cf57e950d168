// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package core assembles the authentication state machine, quarantine
// sandbox, tick scheduler and identity resolver, and binds them to the
// host's event callbacks.
package core

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/wardenmc/warden/internal/auth"
	"github.com/wardenmc/warden/internal/config"
	"github.com/wardenmc/warden/internal/host"
	"github.com/wardenmc/warden/internal/identity"
	"github.com/wardenmc/warden/internal/quarantine"
	"github.com/wardenmc/warden/internal/scheduler"
)

// Engine owns the assembled services and routes host events to them.
type Engine struct {
	cfg    config.Config
	logger *slog.Logger

	host     host.Host
	repo     auth.UserRepository
	sched    *scheduler.Scheduler
	users    *auth.Directory
	auth     *auth.Service
	sandbox  *quarantine.Manager
	resolver *identity.Resolver

	ready atomic.Bool
}

// EngineDeps bundles the externally constructed collaborators.
type EngineDeps struct {
	Host   host.Host
	Repo   auth.UserRepository
	Lookup identity.Lookup
	Logger *slog.Logger
}

// NewEngine wires the services together. The engine is inert until Start
// loads the directory and Bind installs the host handlers.
func NewEngine(cfg config.Config, deps EngineDeps) (*Engine, error) {
	switch {
	case deps.Host == nil:
		return nil, oops.Errorf("host is required")
	case deps.Repo == nil:
		return nil, oops.Errorf("user repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	lookup := deps.Lookup
	if lookup == nil {
		lookup = identity.OfflineLookup{}
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		host:   deps.Host,
		repo:   deps.Repo,
		sched:  scheduler.New(logger),
		users:  auth.NewDirectory(cfg.LookupMode()),
	}

	qcfg, err := cfg.QuarantineConfig()
	if err != nil {
		return nil, err
	}
	e.sandbox, err = quarantine.NewManager(qcfg, quarantine.ManagerDeps{
		Scheduler: e.sched,
		Notifier:  deps.Host.Notifier(),
		World:     deps.Host.World(),
		OnTimeout: func(identifier string) {
			e.auth.Kick(identifier, auth.ReasonQuarantineTimeout)
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	e.resolver, err = identity.NewResolver(lookup, cfg.ResolverConfig(),
		func(identifier string, verified bool, geo *auth.GeoInfo) {
			// Results land on a worker goroutine; re-enter on the
			// tick thread so state mutations stay serialized.
			e.sched.SetTimeout(func() {
				e.auth.ApplyLookup(identifier, verified, geo)
			}, 0)
		}, logger)
	if err != nil {
		return nil, err
	}

	e.auth, err = auth.NewService(cfg.AuthConfig(), auth.Deps{
		Users:      e.users,
		Repository: deps.Repo,
		Hasher:     auth.NewHasher(),
		Passwords:  auth.NewPasswordValidator(cfg.PasswordRules(), auth.NewHasher()),
		Quarantine: e.sandbox,
		Scheduler:  e.sched,
		Host:       deps.Host,
		Identity:   e.resolver,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return e, nil
}

// Start loads the persisted users into the directory.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.users.LoadAll(ctx, e.repo); err != nil {
		return err
	}
	e.ready.Store(true)
	e.logger.Info("engine started", "known_users", e.users.Len())
	return nil
}

// Ready reports whether Start completed. Used as the readiness probe.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// Close stops the background lookup pool.
func (e *Engine) Close() {
	e.ready.Store(false)
	e.resolver.Close()
}

// Auth exposes the authentication state machine.
func (e *Engine) Auth() *auth.Service {
	return e.auth
}

// Sandbox exposes the quarantine manager.
func (e *Engine) Sandbox() *quarantine.Manager {
	return e.sandbox
}

// Scheduler exposes the tick scheduler.
func (e *Engine) Scheduler() *scheduler.Scheduler {
	return e.sched
}

// Bind installs the engine's handlers on the host.
func (e *Engine) Bind() {
	e.host.Register(host.Handlers{
		Connect: func(identifier, name, address string) {
			e.auth.Connect(identifier, name, address)
		},
		Disconnect: e.auth.Disconnect,
		Tick:       e.sched.Tick,
		Move: func(identifier string, _, to host.Position) bool {
			return e.sandbox.HandleMove(identifier, to)
		},
		Chat: func(identifier, _ string) bool {
			return e.sandbox.CheckCapability(identifier, quarantine.ActionChat)
		},
		Command:  e.handleCommand,
		Interact: e.handleInteract,
		Damage:   e.handleDamage,
	})
}

// handleCommand routes the authentication commands and gates everything
// else through the sandbox command filter. Returning false cancels the
// host's own dispatch.
func (e *Engine) handleCommand(identifier, command string) bool {
	name, args := splitCommand(command)
	ctx := context.Background()

	switch name {
	case "register", "reg":
		if len(args) == 0 {
			e.host.Notifier().Prompt(identifier, "warden.usage_register")
			return false
		}
		var confirm *string
		if len(args) > 1 {
			confirm = &args[1]
		}
		e.auth.Register(ctx, identifier, args[0], confirm)
		return false
	case "login", "l":
		if len(args) == 0 {
			e.host.Notifier().Prompt(identifier, "warden.usage_login")
			return false
		}
		e.auth.Login(ctx, identifier, args[0])
		return false
	case "logout":
		e.auth.Logout(identifier, auth.ReasonLoggedOut)
		return false
	case "unregister":
		if err := e.auth.Delete(ctx, identifier, auth.ReasonLoggedOut, false); err != nil {
			e.host.Notifier().Prompt(identifier, "warden.unregister_failed")
		}
		return false
	}

	return e.sandbox.CommandAllowed(identifier, command)
}

func (e *Engine) handleInteract(identifier, action string) bool {
	return e.sandbox.CheckCapability(identifier, quarantine.Action(action))
}

func (e *Engine) handleDamage(identifier, cause string) bool {
	switch cause {
	case "mob":
		return e.sandbox.CheckCapability(identifier, quarantine.ActionDamageFromMob)
	case "player":
		return e.sandbox.CheckCapability(identifier, quarantine.ActionDamageFromPlayer)
	default:
		return e.sandbox.CheckCapability(identifier, quarantine.ActionDamageAny)
	}
}

// splitCommand strips a leading slash and splits the command word from
// its arguments.
func splitCommand(command string) (string, []string) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(command), "/")
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}
