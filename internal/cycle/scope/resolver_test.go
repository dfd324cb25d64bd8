package scope

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"modelgov/internal/catalog"
	"modelgov/internal/cycle/models"
	cyclestore "modelgov/internal/cycle/store/cycle"
	scopestore "modelgov/internal/cycle/store/scope"
	memmodels "modelgov/internal/membership/models"
	membershipstore "modelgov/internal/membership/store"
	"modelgov/internal/snapshot"
)

// =============================================================================
// Scope Resolver Test Suite
// =============================================================================
// The fallback chain's priority order is the contract here: each test stacks
// sources and asserts that the highest-priority non-empty one wins.

type ResolverSuite struct {
	suite.Suite
	scopes     *scopestore.InMemory
	snapshots  *snapshot.InMemoryStore
	cycles     *cyclestore.InMemory
	membership *membershipstore.InMemory
	directory  *catalog.InMemoryDirectory
	resolver   *Resolver

	planID uuid.UUID
	m1     uuid.UUID
	m2     uuid.UUID
	m3     uuid.UUID
	m4     uuid.UUID
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.scopes = scopestore.NewInMemory()
	s.snapshots = snapshot.NewInMemoryStore()
	s.cycles = cyclestore.NewInMemory()
	s.membership = membershipstore.NewInMemory()
	s.directory = catalog.NewInMemoryDirectory()
	s.resolver = NewResolver(s.scopes, s.snapshots, s.cycles, s.membership, s.directory)

	s.planID = uuid.New()
	s.m1 = uuid.New()
	s.m2 = uuid.New()
	s.m3 = uuid.New()
	s.m4 = uuid.New()

	s.directory.SeedModel(s.m1, "pd-scorecard")
	s.directory.SeedModel(s.m2, "lgd-regression")
	s.directory.SeedModel(s.m3, "var-engine")
	s.directory.SeedModel(s.m4, "stress-projector")
}

func (s *ResolverSuite) newCycle() *models.Cycle {
	return &models.Cycle{
		ID:          uuid.New(),
		PlanID:      s.planID,
		Status:      models.CycleStatusCollecting,
		PeriodStart: time.Now().AddDate(0, -3, 0),
		PeriodEnd:   time.Now(),
	}
}

func (s *ResolverSuite) bindVersion(cycle *models.Cycle, frozen ...snapshot.FrozenModel) {
	versionID := uuid.New()
	s.snapshots.SeedVersion(&snapshot.PlanVersion{
		ID:            versionID,
		PlanID:        s.planID,
		EffectiveDate: cycle.PeriodStart,
		Models:        frozen,
	})
	cycle.PlanVersionID = &versionID
}

func (s *ResolverSuite) seedLive(modelIDs ...uuid.UUID) {
	for _, id := range modelIDs {
		err := s.membership.InsertProjection(context.Background(), &memmodels.ProjectionRow{
			PlanID:     s.planID,
			ModelID:    id,
			AssignedAt: time.Now(),
		})
		s.Require().NoError(err)
	}
}

func (s *ResolverSuite) modelIDs(res *Resolution) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(res.Models))
	for _, m := range res.Models {
		ids = append(ids, m.ModelID)
	}
	return ids
}

func (s *ResolverSuite) TestMaterializedScopeWins() {
	ctx := context.Background()
	cycle := s.newCycle()

	// Every lower-priority source is populated with a different answer.
	s.bindVersion(cycle, snapshot.FrozenModel{ModelID: s.m2, Name: "lgd-regression"})
	s.cycles.SeedResult(cycle.ID, s.m3)
	s.seedLive(s.m4)
	s.Require().NoError(s.scopes.InsertBatch(ctx, []*models.ScopeEntry{{
		CycleID:   cycle.ID,
		ModelID:   s.m1,
		ModelName: "pd-scorecard",
		LockedAt:  time.Now(),
		Source:    models.ScopeSourceLive,
	}}))

	res, err := s.resolver.Resolve(ctx, cycle)
	s.Require().NoError(err)
	s.Equal(models.ScopeSourceMaterialized, res.Source)
	s.Equal([]uuid.UUID{s.m1}, s.modelIDs(res))
	s.Equal("pd-scorecard", res.Models[0].Name)
}

func (s *ResolverSuite) TestBoundVersionBeatsResultsAndLive() {
	ctx := context.Background()
	cycle := s.newCycle()

	s.bindVersion(cycle,
		snapshot.FrozenModel{ModelID: s.m1, Name: "pd-scorecard"},
		snapshot.FrozenModel{ModelID: s.m2, Name: "lgd-regression"},
	)
	s.cycles.SeedResult(cycle.ID, s.m3)
	s.seedLive(s.m4)

	res, err := s.resolver.Resolve(ctx, cycle)
	s.Require().NoError(err)
	s.Equal(models.ScopeSourcePlanVersion, res.Source)
	s.ElementsMatch([]uuid.UUID{s.m1, s.m2}, s.modelIDs(res))
}

func (s *ResolverSuite) TestResultsInferenceBeatsLive() {
	ctx := context.Background()
	cycle := s.newCycle()

	// A historical cycle with no frozen scope and no bound version, but with
	// submitted results: the results define the scope, not today's membership.
	s.cycles.SeedResult(cycle.ID, s.m3)
	s.cycles.SeedResult(cycle.ID, s.m4)
	s.seedLive(s.m1, s.m2)

	res, err := s.resolver.Resolve(ctx, cycle)
	s.Require().NoError(err)
	s.Equal(models.ScopeSourceResults, res.Source)
	s.ElementsMatch([]uuid.UUID{s.m3, s.m4}, s.modelIDs(res))

	// Names come from the directory since results rows carry none.
	for _, m := range res.Models {
		s.NotEmpty(m.Name)
	}
}

func (s *ResolverSuite) TestLiveMembershipIsTheLastResort() {
	ctx := context.Background()
	cycle := s.newCycle()

	s.seedLive(s.m1, s.m2)

	res, err := s.resolver.Resolve(ctx, cycle)
	s.Require().NoError(err)
	s.Equal(models.ScopeSourceLive, res.Source)
	s.ElementsMatch([]uuid.UUID{s.m1, s.m2}, s.modelIDs(res))
}

func (s *ResolverSuite) TestDanglingVersionFallsThrough() {
	ctx := context.Background()
	cycle := s.newCycle()

	missing := uuid.New()
	cycle.PlanVersionID = &missing
	s.cycles.SeedResult(cycle.ID, s.m3)

	res, err := s.resolver.Resolve(ctx, cycle)
	s.Require().NoError(err)
	s.Equal(models.ScopeSourceResults, res.Source)
}

func (s *ResolverSuite) TestEmptyEverywhereYieldsEmptyLiveResolution() {
	ctx := context.Background()
	cycle := s.newCycle()

	res, err := s.resolver.Resolve(ctx, cycle)
	s.Require().NoError(err)
	s.Empty(res.Models)
	s.Equal(models.ScopeSourceLive, res.Source)
}

func (s *ResolverSuite) TestUnknownModelKeepsEmptyName() {
	ctx := context.Background()
	cycle := s.newCycle()

	ghost := uuid.New()
	s.seedLive(ghost)

	res, err := s.resolver.Resolve(ctx, cycle)
	s.Require().NoError(err)
	s.Require().Len(res.Models, 1)
	s.Empty(res.Models[0].Name)
}
