// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cinebook/authcore/internal/auth"
	"github.com/cinebook/authcore/internal/auth/postgres"
)

var (
	pool      *pgxpool.Pool
	terminate func()
)

var _ = BeforeSuite(func() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("authcore_test"),
		tcpostgres.WithUsername("authcore"),
		tcpostgres.WithPassword("authcore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := postgres.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	pool, err = postgres.Connect(ctx, connStr, 8, nil)
	Expect(err).NotTo(HaveOccurred())

	terminate = func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
})

var _ = AfterSuite(func() {
	if terminate != nil {
		terminate()
	}
})

func insertPasswordAccount(ctx context.Context, email, hash string, role auth.Role) int64 {
	var id int64
	err := pool.QueryRow(ctx, `
		INSERT INTO accounts (email, first_name, last_name, password_hash, role)
		VALUES ($1, 'Test', 'User', $2, $3)
		RETURNING id
	`, email, hash, string(role)).Scan(&id)
	Expect(err).NotTo(HaveOccurred())
	return id
}

var _ = Describe("AccountDirectory", func() {
	var (
		ctx       context.Context
		directory *postgres.AccountDirectory
	)

	BeforeEach(func() {
		ctx = context.Background()
		directory = postgres.NewAccountDirectory(pool)
		_, err := pool.Exec(ctx, `TRUNCATE accounts RESTART IDENTITY CASCADE`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("finds accounts by email regardless of case", func() {
		id := insertPasswordAccount(ctx, "ada@example.com", "hash", auth.RoleWorker)

		account, err := directory.FindByEmail(ctx, "ADA@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(account.ID).To(Equal(id))
		Expect(account.Role).To(Equal(auth.RoleWorker))
		Expect(account.HasPassword()).To(BeTrue())
	})

	It("reports missing accounts as not found", func() {
		_, err := directory.FindByID(ctx, 999)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("rejects a second federated account with the same email", func() {
		in := auth.FederatedAccountInput{Email: "grace@example.com", FirstName: "Grace", LastName: "Hopper", ProviderSubjectID: "g-1"}
		created, err := directory.CreateFederatedAccount(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		Expect(created.HasPassword()).To(BeFalse())
		Expect(created.Role).To(Equal(auth.RoleCustomer))

		in.ProviderSubjectID = "g-2"
		in.Email = "GRACE@example.com"
		_, err = directory.CreateFederatedAccount(ctx, in)
		Expect(err).To(MatchError(auth.ErrAccountExists))
	})

	It("links a subject once", func() {
		id := insertPasswordAccount(ctx, "ada@example.com", "hash", auth.RoleCustomer)

		Expect(directory.LinkFederatedID(ctx, id, "g-ada")).To(Succeed())
		Expect(directory.LinkFederatedID(ctx, id, "g-ada")).To(Succeed())
		Expect(directory.LinkFederatedID(ctx, id, "g-other")).To(MatchError(auth.ErrAccountExists))

		account, err := directory.FindByFederatedID(ctx, "g-ada")
		Expect(err).NotTo(HaveOccurred())
		Expect(account.ID).To(Equal(id))
	})
})

var _ = Describe("Password reset against PostgreSQL", func() {
	var (
		ctx    context.Context
		hasher *auth.Argon2idHasher
		flow   *auth.PasswordResetFlow
		store  *postgres.ResetTokenStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		_, err := pool.Exec(ctx, `TRUNCATE accounts RESTART IDENTITY CASCADE`)
		Expect(err).NotTo(HaveOccurred())

		hasher, err = auth.NewArgon2idHasherWithParams(auth.Argon2Params{Iterations: 1, MemoryKiB: 1024, Parallelism: 1})
		Expect(err).NotTo(HaveOccurred())

		store = postgres.NewResetTokenStore(pool)
		flow, err = auth.NewPasswordResetFlow(postgres.NewAccountDirectory(pool), store, hasher, 0)
		Expect(err).NotTo(HaveOccurred())
	})

	It("lets exactly one concurrent reset win", func() {
		oldHash, err := hasher.Hash("old-password")
		Expect(err).NotTo(HaveOccurred())
		insertPasswordAccount(ctx, "ada@example.com", oldHash, auth.RoleCustomer)

		ticket, err := flow.CreateResetToken(ctx, "ada@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(ticket.Deliverable).To(BeTrue())

		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				if flow.ResetPassword(ctx, ticket.Token, "new-password-"+string(rune('a'+i))) == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		Expect(successes).To(Equal(1))
		Expect(flow.ValidateResetToken(ctx, ticket.Token)).To(BeFalse())
	})

	It("purges expired records", func() {
		id := insertPasswordAccount(ctx, "ada@example.com", "hash", auth.RoleCustomer)
		now := time.Now().UTC().Truncate(time.Microsecond)

		for i, expires := range []time.Time{now.Add(-time.Hour), now.Add(time.Hour)} {
			Expect(store.Put(ctx, &auth.ResetRecord{
				ID:        ulid.Make(),
				TokenHash: auth.HashResetToken(string(rune('a' + i))),
				AccountID: id,
				ExpiresAt: expires,
				CreatedAt: now,
			})).To(Succeed())
		}

		n, err := store.DeleteExpired(ctx, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))
	})
})
