package e2e

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/glizzus/cobot/internal/datalayer"
	"github.com/glizzus/cobot/internal/generator"
	"github.com/glizzus/cobot/internal/repository"
)

var seedOnce sync.Once

type RandomSnowFlakeGenerator struct {
	counter uint64
}

func (g *RandomSnowFlakeGenerator) Next() (string, error) {
	const min = 1e17
	if g.counter < min {
		g.counter = min
	}
	id := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%d", id), nil
}

var _ generator.Generator[string] = (*RandomSnowFlakeGenerator)(nil)

// SeedGlobalNoise fills other guilds with play history so that queries
// scoped to a single guild are exercised against a non-empty table.
func SeedGlobalNoise(t *testing.T, repo repository.PlayRepository) {
	t.Helper()
	seedOnce.Do(func() {
		uuidGen := generator.UUIDV4Generator{}
		guildIDGen := RandomSnowFlakeGenerator{}
		requesterIDGen := RandomSnowFlakeGenerator{}
		for i := range 100 {
			id, _ := uuidGen.Next()
			guildID, _ := guildIDGen.Next()
			requesterID, _ := requesterIDGen.Next()

			record := repository.PlayRecord{
				ID:          id,
				GuildID:     guildID,
				RequesterID: requesterID,
				Query:       fmt.Sprintf("noise-%d", i),
				Sound:       "Bandit Call",
				Outcome:     repository.OutcomePlayed,
				CreatedAt:   time.Now().UTC(),
			}

			if err := repo.Save(t.Context(), record); err != nil {
				t.Fatalf("failed to save play record: %v", err)
			}
		}
	})
}

var (
	once              sync.Once
	postgresContainer *postgres.PostgresContainer
	connStr           string
	startErr          error
	pool              *pgxpool.Pool
	wg                sync.WaitGroup
)

// UsePostgres signals that the test is using Postgres as its database.
// This will either provision or reuse a Postgres container for the test.
// Do not expect a clean state in the database; it is shared across tests
// to simulate real-world usage.
func UsePostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres e2e test in short mode")
	}

	once.Do(func() {
		ctx := context.Background()
		postgresContainer, startErr = postgres.Run(
			ctx,
			"postgres",
			postgres.WithDatabase("cobot"),
			postgres.WithUsername("user"),
			postgres.WithPassword("password"),
			postgres.BasicWaitStrategies(),
		)
		if startErr != nil {
			return
		}
		connStr, startErr = postgresContainer.ConnectionString(ctx, "sslmode=disable")
		if startErr != nil {
			return
		}

		pool, startErr = pgxpool.New(ctx, connStr)
		if startErr != nil {
			return
		}
		defer pool.Close()

		startErr = datalayer.MigratePostgres(pool)
	})

	if startErr != nil {
		t.Fatalf("failed to start postgres container: %v", startErr)
	}
	wg.Add(1)
	t.Cleanup(wg.Done)

	return connStr
}

// GetRepository creates a new PostgresPlayRepository for testing.
// It uses the provided connection string to connect to the database.
// It performs no modifications or migrations on the database schema.
func GetRepository(t *testing.T, connStr string) *repository.PostgresPlayRepository {
	t.Helper()
	pool, err := pgxpool.New(t.Context(), connStr)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}

	t.Cleanup(pool.Close)
	return repository.NewPostgresPlayRepository(pool)
}

func TerminatePostgresForE2E() {
	wg.Wait()
	if postgresContainer != nil {
		err := postgresContainer.Terminate(context.Background())
		if err != nil {
			fmt.Printf("failed to terminate postgres container: %v", err)
		}
	}
}
