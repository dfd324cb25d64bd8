//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"modelgov/internal/catalog"
	"modelgov/internal/catalog/cache"
	"modelgov/pkg/testutil/containers"
)

type CacheSuite struct {
	suite.Suite
	redis     *containers.RedisContainer
	directory *catalog.InMemoryDirectory
	cached    *cache.Directory
}

func TestCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *CacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.directory = catalog.NewInMemoryDirectory()
	s.cached = cache.New(s.directory, s.redis.Client, time.Minute, nil)
}

func (s *CacheSuite) TestReadThrough() {
	ctx := context.Background()
	modelID := uuid.New()
	s.directory.SeedModel(modelID, "pd-scorecard")

	names, err := s.cached.Names(ctx, []uuid.UUID{modelID})
	s.Require().NoError(err)
	s.Equal("pd-scorecard", names[modelID])

	// Second read is served from Redis: renaming in the backing directory is
	// not visible until the key expires.
	s.directory.SeedModel(modelID, "renamed")
	names, err = s.cached.Names(ctx, []uuid.UUID{modelID})
	s.Require().NoError(err)
	s.Equal("pd-scorecard", names[modelID])
}

func (s *CacheSuite) TestPartialHitFetchesOnlyMisses() {
	ctx := context.Background()
	hit, miss := uuid.New(), uuid.New()
	s.directory.SeedModel(hit, "var-engine")
	s.directory.SeedModel(miss, "stress-projector")

	_, err := s.cached.Names(ctx, []uuid.UUID{hit})
	s.Require().NoError(err)

	names, err := s.cached.Names(ctx, []uuid.UUID{hit, miss})
	s.Require().NoError(err)
	s.Len(names, 2)
	s.Equal("var-engine", names[hit])
	s.Equal("stress-projector", names[miss])
}

func (s *CacheSuite) TestUnknownModelStaysUncached() {
	ctx := context.Background()
	ghost := uuid.New()

	names, err := s.cached.Names(ctx, []uuid.UUID{ghost})
	s.Require().NoError(err)
	s.Empty(names)

	// Once the model appears it is picked up; absence was not cached.
	s.directory.SeedModel(ghost, "late-arrival")
	names, err = s.cached.Names(ctx, []uuid.UUID{ghost})
	s.Require().NoError(err)
	s.Equal("late-arrival", names[ghost])
}
