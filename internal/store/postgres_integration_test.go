// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/authcore/authcore/internal/store"
)

var _ = Describe("Open", func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		pool      *pgxpool.Pool
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("authcore_test"),
			postgres.WithUsername("authcore"),
			postgres.WithPassword("authcore"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err = store.Open(ctx, connStr, store.PoolConfig{MaxConns: 4})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if pool != nil {
			pool.Close()
		}
		_ = container.Terminate(ctx)
	})

	It("applies the pool configuration", func() {
		Expect(pool.Config().MaxConns).To(Equal(int32(4)))
	})

	It("enforces case-insensitive email uniqueness", func() {
		insert := `INSERT INTO identities (id, email, password_hash) VALUES ($1, $2, 'x')`
		_, err := pool.Exec(ctx, insert, ulid.Make().String(), "Alice@Example.com")
		Expect(err).NotTo(HaveOccurred())

		_, err = pool.Exec(ctx, insert, ulid.Make().String(), "alice@example.com")
		Expect(err).To(HaveOccurred())
	})

	It("cascades identity deletion to tokens and resets", func() {
		id := ulid.Make().String()
		_, err := pool.Exec(ctx, `INSERT INTO identities (id, email, password_hash) VALUES ($1, 'bob@example.com', 'x')`, id)
		Expect(err).NotTo(HaveOccurred())
		_, err = pool.Exec(ctx, `INSERT INTO refresh_tokens (id, identity_id, jti, expires_at) VALUES ($1, $2, 'jti', NOW())`, ulid.Make().String(), id)
		Expect(err).NotTo(HaveOccurred())
		_, err = pool.Exec(ctx, `INSERT INTO password_resets (id, identity_id, lookup_hash, credential_hash, expires_at) VALUES ($1, $2, 'l', 'c', NOW())`, ulid.Make().String(), id)
		Expect(err).NotTo(HaveOccurred())

		_, err = pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
		Expect(err).NotTo(HaveOccurred())

		var n int
		Expect(pool.QueryRow(ctx, `SELECT COUNT(*) FROM refresh_tokens`).Scan(&n)).To(Succeed())
		Expect(n).To(Equal(0))
		Expect(pool.QueryRow(ctx, `SELECT COUNT(*) FROM password_resets`).Scan(&n)).To(Succeed())
		Expect(n).To(Equal(0))
	})

	It("fails to connect to an unreachable server", func() {
		_, err := store.Open(ctx, "postgres://u:p@127.0.0.1:1/db?connect_timeout=1", store.PoolConfig{})
		Expect(err).To(HaveOccurred())
	})
})
