// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

//go:build integration

package auth_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/authcore/authcore/internal/auth"
)

var _ = Describe("Refresh rotation", func() {
	It("issues a new pair and rejects the redeemed refresh token", func() {
		ctx := context.Background()
		email := uniqueEmail("rotate")

		identity, err := env.service.Register(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())
		Expect(identity.Active).To(BeTrue())

		pair, err := env.service.Login(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())
		Expect(pair.AccessToken).NotTo(BeEmpty())
		Expect(pair.RefreshToken).NotTo(BeEmpty())
		Expect(pair.TokenType).To(Equal(auth.BearerTokenType))

		rotated, err := env.service.Refresh(ctx, pair.RefreshToken)
		Expect(err).NotTo(HaveOccurred())
		Expect(rotated.RefreshToken).NotTo(Equal(pair.RefreshToken))

		_, err = env.service.Refresh(ctx, pair.RefreshToken)
		Expect(err).To(MatchError(auth.ErrInvalidToken))

		who, err := env.service.RequireActiveBearer(ctx, rotated.AccessToken, auth.TokenTypeAccess)
		Expect(err).NotTo(HaveOccurred())
		Expect(who.ID).To(Equal(identity.ID))
	})

	It("lets exactly one of two concurrent redemptions win", func() {
		ctx := context.Background()
		email := uniqueEmail("race")
		_, err := env.service.Register(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())
		pair, err := env.service.Login(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer GinkgoRecover()
				_, errs[i] = env.service.Refresh(ctx, pair.RefreshToken)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			Expect(err).To(MatchError(auth.ErrInvalidToken))
		}
		Expect(succeeded).To(Equal(1))
	})

	It("treats email case-insensitively", func() {
		ctx := context.Background()
		email := uniqueEmail("Case")

		_, err := env.service.Register(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())

		_, err = env.service.Register(ctx, upper(email), "other-pw")
		Expect(err).To(MatchError(auth.ErrAlreadyExists))

		_, err = env.service.Login(ctx, upper(email), "pw12345")
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("Password reset", func() {
	It("replaces the password and revokes existing sessions", func() {
		ctx := context.Background()
		email := uniqueEmail("reset")

		_, err := env.service.Register(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())
		session, err := env.service.Login(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.resets.RequestReset(ctx, email)).To(Succeed())
		raw := awaitResetToken(email)
		Expect(raw).NotTo(BeEmpty())

		Expect(env.resets.ConfirmReset(ctx, raw, "newpw123")).To(Succeed())

		_, err = env.service.Login(ctx, email, "pw12345")
		Expect(err).To(MatchError(auth.ErrUnauthorized))

		_, err = env.service.Login(ctx, email, "newpw123")
		Expect(err).NotTo(HaveOccurred())

		_, err = env.service.Refresh(ctx, session.RefreshToken)
		Expect(err).To(MatchError(auth.ErrInvalidToken))

		Expect(env.resets.ConfirmReset(ctx, raw, "another1")).To(MatchError(auth.ErrInvalidToken))
	})

	It("reports success for unknown addresses without delivering anything", func() {
		ctx := context.Background()

		Expect(env.resets.RequestReset(ctx, uniqueEmail("ghost"))).To(Succeed())
		Consistently(env.delivered, "200ms").ShouldNot(Receive())
	})

	It("revokes every session on change password", func() {
		ctx := context.Background()
		email := uniqueEmail("change")

		identity, err := env.service.Register(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())
		a, err := env.service.Login(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())
		b, err := env.service.Login(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.service.ChangePassword(ctx, identity.ID, "wrong", "newpw123")).To(MatchError(auth.ErrIncorrectCredential))
		Expect(env.service.ChangePassword(ctx, identity.ID, "pw12345", "newpw123")).To(Succeed())

		_, err = env.service.Refresh(ctx, a.RefreshToken)
		Expect(err).To(MatchError(auth.ErrInvalidToken))
		_, err = env.service.Refresh(ctx, b.RefreshToken)
		Expect(err).To(MatchError(auth.ErrInvalidToken))
	})
})

var _ = Describe("Logout", func() {
	It("ends only the named session", func() {
		ctx := context.Background()
		email := uniqueEmail("logout")

		identity, err := env.service.Register(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())
		sessionA, err := env.service.Login(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())
		sessionB, err := env.service.Login(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.service.Logout(ctx, identity.ID, sessionA.RefreshToken)).To(Succeed())

		_, err = env.service.Refresh(ctx, sessionA.RefreshToken)
		Expect(err).To(MatchError(auth.ErrInvalidToken))

		_, err = env.service.Refresh(ctx, sessionB.RefreshToken)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects an access token in place of a refresh token", func() {
		ctx := context.Background()
		email := uniqueEmail("wrongtype")

		identity, err := env.service.Register(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())
		pair, err := env.service.Login(ctx, email, "pw12345")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.service.Logout(ctx, identity.ID, pair.AccessToken)).To(MatchError(auth.ErrInvalidToken))
	})
})

var _ = Describe("Sweeper", func() {
	It("runs against a live schema", func() {
		_, err := env.sweeper.Sweep(context.Background())
		Expect(err).NotTo(HaveOccurred())
	})
})
