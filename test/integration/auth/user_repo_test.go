// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

//go:build integration

package auth_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/wardenmc/warden/internal/auth"
)

var _ = Describe("UserRepository", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		truncateUsers(ctx, env.pool)
	})

	registeredUser := func(name string) *auth.User {
		now := time.Now().UTC().Truncate(time.Microsecond)
		return &auth.User{
			Identifier:     "id-" + name,
			Name:           name,
			CredentialHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
			HashAlgorithm:  auth.AlgorithmArgon2id,
			Address:        "192.0.2.10",
			Mode:           auth.AccountOffline,
			CreatedAt:      now.Add(-time.Hour),
			RegisteredAt:   now.Add(-30 * time.Minute),
			LastAuthAt:     now,
		}
	}

	Describe("Save", func() {
		It("round-trips a registered user", func() {
			u := registeredUser("Alyx")
			Expect(env.repo.Save(ctx, u)).To(Succeed())

			loaded, err := env.repo.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveLen(1))

			got := loaded[0]
			Expect(got.Name).To(Equal("Alyx"))
			Expect(got.Identifier).To(Equal("id-Alyx"))
			Expect(got.CredentialHash).To(Equal(u.CredentialHash))
			Expect(got.HashAlgorithm).To(Equal(auth.AlgorithmArgon2id))
			Expect(got.Mode).To(Equal(auth.AccountOffline))
			Expect(got.Address).To(Equal("192.0.2.10"))
			Expect(got.RegisteredAt).To(BeTemporally("~", u.RegisteredAt, time.Millisecond))
			Expect(got.LastAuthAt).To(BeTemporally("~", u.LastAuthAt, time.Millisecond))
		})

		It("stores blank auth timestamps as NULL and reads them back zero", func() {
			u := registeredUser("Barney")
			u.RegisteredAt = time.Time{}
			u.LastAuthAt = time.Time{}
			Expect(env.repo.Save(ctx, u)).To(Succeed())

			loaded, err := env.repo.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveLen(1))
			Expect(loaded[0].RegisteredAt.IsZero()).To(BeTrue())
			Expect(loaded[0].LastAuthAt.IsZero()).To(BeTrue())
		})

		It("updates in place when the display name matches case-insensitively", func() {
			Expect(env.repo.Save(ctx, registeredUser("Gordon"))).To(Succeed())

			replacement := registeredUser("gordon")
			replacement.Identifier = "id-replacement"
			replacement.Mode = auth.AccountPremium
			Expect(env.repo.Save(ctx, replacement)).To(Succeed())

			loaded, err := env.repo.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveLen(1))
			Expect(loaded[0].Identifier).To(Equal("id-replacement"))
			Expect(loaded[0].Mode).To(Equal(auth.AccountPremium))
		})
	})

	Describe("Delete", func() {
		It("removes the row regardless of name case", func() {
			Expect(env.repo.Save(ctx, registeredUser("Eli"))).To(Succeed())
			Expect(env.repo.Delete(ctx, "ELI")).To(Succeed())

			loaded, err := env.repo.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeEmpty())
		})

		It("reports missing users", func() {
			err := env.repo.Delete(ctx, "nobody")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("LoadAll", func() {
		It("returns every stored user", func() {
			for _, name := range []string{"Alyx", "Barney", "Gordon"} {
				Expect(env.repo.Save(ctx, registeredUser(name))).To(Succeed())
			}

			loaded, err := env.repo.LoadAll(ctx)
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, 0, len(loaded))
			for _, u := range loaded {
				names = append(names, u.Name)
			}
			Expect(names).To(ConsistOf("Alyx", "Barney", "Gordon"))
		})
	})
})
