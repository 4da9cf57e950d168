// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

//go:build integration

package auth_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/wardenmc/warden/internal/config"
	"github.com/wardenmc/warden/internal/core"
	"github.com/wardenmc/warden/internal/host"
	"github.com/wardenmc/warden/internal/host/hosttest"
)

// hasTemplate reports whether any recorded message used the template.
func hasTemplate(msgs []hosttest.Message, template string) bool {
	for _, m := range msgs {
		if m.Template == template {
			return true
		}
	}
	return false
}

var _ = Describe("Authentication flow", func() {
	var (
		ctx      context.Context
		engine   *core.Engine
		local    *host.Local
		notifier *hosttest.Notifier
	)

	startEngine := func(mutate func(*config.Config)) {
		notifier = &hosttest.Notifier{}
		local = host.NewLocal(host.FlatWorld{Ground: 64, Floor: -64, Top: 320}, notifier)

		cfg := config.Default()
		cfg.Auth.Algorithm = "sha256" // keep hashing cheap in specs
		if mutate != nil {
			mutate(&cfg)
		}

		var err error
		engine, err = core.NewEngine(cfg, core.EngineDeps{Host: local, Repo: env.repo})
		Expect(err).NotTo(HaveOccurred())
		engine.Bind()
		Expect(engine.Start(ctx)).To(Succeed())
	}

	join := func(id, name string) *hosttest.Player {
		p := hosttest.NewPlayer(id, name, "192.0.2.1")
		p.Pos = host.Position{World: "overworld", X: 0.5, Y: 65, Z: 0.5}
		local.Connect(p)
		return p
	}

	BeforeEach(func() {
		ctx = context.Background()
		truncateUsers(ctx, env.pool)
		startEngine(nil)
	})

	AfterEach(func() {
		engine.Close()
	})

	It("quarantines fresh connections and reminds them to register", func() {
		engine.Close()
		startEngine(func(cfg *config.Config) {
			cfg.Quarantine.HideInventory = true
		})

		p := hosttest.NewPlayer("uuid-1", "Alyx", "192.0.2.1")
		p.Pos = host.Position{World: "overworld", X: 0.5, Y: 65, Z: 0.5}
		p.Items = []host.ItemStack{{Slot: 0, ID: "torch", Count: 12}}
		local.Connect(p)

		Expect(engine.Sandbox().IsQuarantined("uuid-1")).To(BeTrue())
		Expect(engine.Auth().Authenticated("uuid-1")).To(BeFalse())

		// Quarantine hid the sandboxed player's inventory.
		Expect(p.Items).To(BeEmpty())

		// The reminder task fires after interval many ticks.
		for i := 0; i < 250; i++ {
			local.Tick()
		}
		Expect(hasTemplate(notifier.Prompts, "warden.remind_register")).To(BeTrue())
	})

	It("walks a player through register, reconnect and login", func() {
		p := join("uuid-1", "Alyx")

		By("registering from quarantine")
		Expect(local.Command("uuid-1", "/register hunter2")).To(BeFalse())
		kick, ok := notifier.LastKick()
		Expect(ok).To(BeTrue())
		Expect(kick.Template).To(Equal("warden.register_reconnect"))
		Expect(engine.Sandbox().IsQuarantined("uuid-1")).To(BeFalse())

		By("persisting the credential")
		users, err := env.repo.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(users).To(HaveLen(1))
		Expect(users[0].CredentialHash).NotTo(BeEmpty())

		By("reconnecting into quarantine as a registered user")
		local.Disconnect("uuid-1")
		local.Connect(p)
		Expect(engine.Sandbox().IsQuarantined("uuid-1")).To(BeTrue())

		By("rejecting a wrong password")
		Expect(local.Command("uuid-1", "/login nope")).To(BeFalse())
		Expect(engine.Sandbox().IsQuarantined("uuid-1")).To(BeTrue())
		Expect(engine.Auth().Authenticated("uuid-1")).To(BeFalse())

		By("authenticating with the right password")
		Expect(local.Command("uuid-1", "/login hunter2")).To(BeFalse())
		Expect(engine.Sandbox().IsQuarantined("uuid-1")).To(BeFalse())
		Expect(engine.Auth().Authenticated("uuid-1")).To(BeTrue())
		Expect(hasTemplate(notifier.Prompts, "warden.logged_in")).To(BeTrue())

		By("letting authenticated commands through")
		Expect(local.Command("uuid-1", "/help")).To(BeTrue())
	})

	It("resumes a valid session across an engine restart", func() {
		p := join("uuid-1", "Alyx")
		Expect(local.Command("uuid-1", "/register hunter2")).To(BeFalse())
		local.Disconnect("uuid-1")
		local.Connect(p)
		Expect(local.Command("uuid-1", "/login hunter2")).To(BeFalse())
		Expect(engine.Auth().Authenticated("uuid-1")).To(BeTrue())
		local.Disconnect("uuid-1")

		By("restarting the engine against the same database")
		engine.Close()
		startEngine(nil)

		By("resuming the session without quarantine")
		local.Connect(p)
		Expect(engine.Sandbox().IsQuarantined("uuid-1")).To(BeFalse())
		Expect(engine.Auth().Authenticated("uuid-1")).To(BeTrue())
	})

	It("requires a fresh login once the persisted session is stale", func() {
		p := join("uuid-1", "Alyx")
		Expect(local.Command("uuid-1", "/register hunter2")).To(BeFalse())
		local.Disconnect("uuid-1")
		local.Connect(p)
		Expect(local.Command("uuid-1", "/login hunter2")).To(BeFalse())
		local.Disconnect("uuid-1")
		engine.Close()

		By("aging the stored session beyond the timeout")
		_, err := env.pool.Exec(ctx,
			`UPDATE users SET last_auth_at = last_auth_at - INTERVAL '1 hour'`)
		Expect(err).NotTo(HaveOccurred())

		startEngine(nil)
		local.Connect(p)
		Expect(engine.Sandbox().IsQuarantined("uuid-1")).To(BeTrue())
		Expect(engine.Auth().Authenticated("uuid-1")).To(BeFalse())

		for i := 0; i < 250; i++ {
			local.Tick()
		}
		Expect(hasTemplate(notifier.Prompts, "warden.remind_login")).To(BeTrue())
	})

	It("unregisters an account end to end", func() {
		p := join("uuid-1", "Alyx")
		Expect(local.Command("uuid-1", "/register hunter2")).To(BeFalse())
		local.Disconnect("uuid-1")
		local.Connect(p)
		Expect(local.Command("uuid-1", "/login hunter2")).To(BeFalse())

		Expect(local.Command("uuid-1", "/unregister")).To(BeFalse())

		users, err := env.repo.LoadAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(users).To(BeEmpty())
	})
})
