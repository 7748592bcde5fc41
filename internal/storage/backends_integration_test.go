package storage_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nikhilbhutani/promptlibrary/internal/cache"
	"github.com/nikhilbhutani/promptlibrary/internal/config"
	"github.com/nikhilbhutani/promptlibrary/internal/database"
	"github.com/nikhilbhutani/promptlibrary/internal/storage"
	"github.com/nikhilbhutani/promptlibrary/migrations"
)

// BackendSuite runs the shared store contract against real Postgres and
// Redis containers.
type BackendSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	rdContainer *tcredis.RedisContainer
	pg          *storage.PostgresStore
	pgOther     *storage.PostgresStore
	pgCounter   *storage.PostgresStore
	rd          *storage.RedisStore
	redisClient *redis.Client
	closePool   func()
}

func TestBackendSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("container backed tests skipped in short mode")
	}
	suite.Run(t, new(BackendSuite))
}

func (s *BackendSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("prompts"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(s.T(), err, "start postgres container")

	dsn, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	pool, err := database.NewPool(s.ctx, config.DatabaseConfig{URL: dsn, MaxConns: 4})
	require.NoError(s.T(), err)
	s.closePool = pool.Close

	applied, err := database.RunMigrations(s.ctx, pool, migrations.FS)
	require.NoError(s.T(), err)
	require.Equal(s.T(), []string{"001_prompt_collections.sql"}, applied)

	again, err := database.RunMigrations(s.ctx, pool, migrations.FS)
	require.NoError(s.T(), err)
	require.Empty(s.T(), again, "migrations are applied once")

	s.pg = storage.NewPostgresStore(pool, "")
	s.pgOther = storage.NewPostgresStore(pool, "team-b")
	s.pgCounter = storage.NewPostgresStore(pool, "counter")

	s.rdContainer, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(s.T(), err, "start redis container")

	host, err := s.rdContainer.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := s.rdContainer.MappedPort(s.ctx, "6379/tcp")
	require.NoError(s.T(), err)

	s.redisClient = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(s.T(), s.redisClient.Ping(s.ctx).Err())
	s.rd = storage.NewRedisStore(s.redisClient, "test:collection")
}

func (s *BackendSuite) TearDownSuite() {
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	if s.closePool != nil {
		s.closePool()
	}
	if s.rdContainer != nil {
		s.NoError(s.rdContainer.Terminate(s.ctx))
	}
	if s.pgContainer != nil {
		s.NoError(s.pgContainer.Terminate(s.ctx))
	}
}

func (s *BackendSuite) TestPostgresRoundTrip() {
	s.assertContract(s.pg)

	_, err := s.pgOther.Load(s.ctx)
	s.ErrorIs(err, storage.ErrNoCollection, "collections are isolated by name")
}

func (s *BackendSuite) TestRedisRoundTrip() {
	s.assertContract(s.rd)
}

func (s *BackendSuite) TestCacheExpiry() {
	c := cache.NewCache(s.redisClient, "test:cache:")
	key := cache.Key("rank", "cats")

	var got []string
	s.Require().ErrorIs(c.Get(s.ctx, key, &got), cache.ErrMiss)

	s.Require().NoError(c.Set(s.ctx, key, []string{"3", "1"}, time.Second))
	s.Require().NoError(c.Get(s.ctx, key, &got))
	s.Equal([]string{"3", "1"}, got)

	s.Eventually(func() bool {
		return c.Get(s.ctx, key, &got) == cache.ErrMiss
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *BackendSuite) TestConcurrentUpdates() {
	for name, store := range map[string]storage.Store{
		"postgres": s.pgCounter,
		"redis":    storage.NewRedisStore(s.redisClient, "test:counter"),
	} {
		s.Run(name, func() {
			const writers = 16
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					s.NoError(store.Update(s.ctx, func(data []byte) ([]byte, error) {
						var n int
						if data != nil {
							if err := json.Unmarshal(data, &n); err != nil {
								return nil, err
							}
						}
						return json.Marshal(n + 1)
					}))
				}()
			}
			wg.Wait()

			data, err := store.Load(s.ctx)
			s.Require().NoError(err)
			s.JSONEq(strconv.Itoa(writers), string(data))
		})
	}
}

func (s *BackendSuite) assertContract(store storage.Store) {
	_, err := store.Load(s.ctx)
	s.Require().ErrorIs(err, storage.ErrNoCollection)

	s.Require().NoError(store.Save(s.ctx, []byte(`[{"id":"1"}]`)))
	s.Require().NoError(store.Save(s.ctx, []byte(`[{"id":"2"}]`)))

	data, err := store.Load(s.ctx)
	s.Require().NoError(err)
	s.JSONEq(`[{"id":"2"}]`, string(data))
}
