package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collateralcombat/domain/entities"
	"collateralcombat/domain/events"
	"collateralcombat/domain/testhelpers"
)

type roundServiceMocks struct {
	contestRepo    *testhelpers.MockContestRepository
	stakeRepo      *testhelpers.MockStakeRepository
	settlementRepo *testhelpers.MockSettlementRepository
	gameStateRepo  *testhelpers.MockGameStateRepository
	priceAuditRepo *testhelpers.MockPriceAuditRepository
	priceProvider  *testhelpers.MockPriceProvider
	publisher      *testhelpers.MockEventPublisher
	elimination    *testhelpers.MockEliminationService
}

func newRoundServiceMocks() *roundServiceMocks {
	return &roundServiceMocks{
		contestRepo:    new(testhelpers.MockContestRepository),
		stakeRepo:      new(testhelpers.MockStakeRepository),
		settlementRepo: new(testhelpers.MockSettlementRepository),
		gameStateRepo:  new(testhelpers.MockGameStateRepository),
		priceAuditRepo: new(testhelpers.MockPriceAuditRepository),
		priceProvider:  new(testhelpers.MockPriceProvider),
		publisher:      new(testhelpers.MockEventPublisher),
		elimination:    new(testhelpers.MockEliminationService),
	}
}

func (m *roundServiceMocks) service(gracePeriod time.Duration) *roundService {
	return NewRoundService(
		m.contestRepo, m.stakeRepo, m.settlementRepo, m.gameStateRepo,
		m.priceAuditRepo, m.priceProvider, m.publisher, m.elimination,
		gracePeriod,
	).(*roundService)
}

func verifiedPrice(symbol string, price int64) *entities.PriceSnapshot {
	return &entities.PriceSnapshot{
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now().UTC(),
		Verified:  true,
		Source:    "binance",
	}
}

func TestRoundService_ScheduledOpensAtOpenTime(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	contest := &entities.Contest{
		ID:       uuid.New(),
		GameType: entities.GameTypeBinaryRound,
		Phase:    entities.ContestPhaseScheduled,
		OpenAt:   now.Add(-time.Second),
		LockAt:   now.Add(25 * time.Second),
		SettleAt: now.Add(30 * time.Second),
		Config:   entities.ContestConfig{Symbols: []string{"SOLUSDT"}},
	}

	m := newRoundServiceMocks()
	m.contestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	m.contestRepo.On("Update", ctx, contest).Return(nil)
	m.publisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		pc, ok := e.(events.ContestPhaseChangedEvent)
		return ok && pc.NewPhase == entities.ContestPhaseOpen
	})).Return(nil)

	require.NoError(t, m.service(time.Minute).EvaluateContest(ctx, contest.ID))
	assert.Equal(t, entities.ContestPhaseOpen, contest.Phase)
	m.publisher.AssertExpectations(t)
}

func TestRoundService_ScheduledStaysBeforeOpenTime(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	contest := &entities.Contest{
		ID:       uuid.New(),
		GameType: entities.GameTypeBinaryRound,
		Phase:    entities.ContestPhaseScheduled,
		OpenAt:   now.Add(time.Minute),
		LockAt:   now.Add(2 * time.Minute),
		SettleAt: now.Add(3 * time.Minute),
	}

	m := newRoundServiceMocks()
	m.contestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)

	require.NoError(t, m.service(time.Minute).EvaluateContest(ctx, contest.ID))
	assert.Equal(t, entities.ContestPhaseScheduled, contest.Phase)
	m.contestRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestRoundService_OpenLocksWithCapturedPrice(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	contest := &entities.Contest{
		ID:       uuid.New(),
		GameType: entities.GameTypeBinaryRound,
		Phase:    entities.ContestPhaseOpen,
		OpenAt:   now.Add(-time.Minute),
		LockAt:   now.Add(-time.Second),
		SettleAt: now.Add(30 * time.Second),
		Config:   entities.ContestConfig{Symbols: []string{"SOLUSDT"}},
	}

	m := newRoundServiceMocks()
	m.contestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	m.priceProvider.On("GetPrice", ctx, "SOLUSDT").Return(verifiedPrice("SOLUSDT", 150_00000000), nil)
	m.priceAuditRepo.On("Record", ctx, mock.MatchedBy(func(a *entities.PriceAudit) bool {
		return a.ContestID == contest.ID && a.Stage == entities.PriceStageLock && a.Price == 150_00000000
	})).Return(nil)
	m.contestRepo.On("Update", ctx, contest).Return(nil)
	m.publisher.On("Publish", mock.Anything).Return(nil)

	require.NoError(t, m.service(time.Minute).EvaluateContest(ctx, contest.ID))
	assert.Equal(t, entities.ContestPhaseLocked, contest.Phase)
	assert.Equal(t, int64(150_00000000), contest.LockPrices["SOLUSDT"])
	m.priceAuditRepo.AssertExpectations(t)
}

func TestRoundService_OpenRetriesWithinGraceWhenPriceUnavailable(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	contest := &entities.Contest{
		ID:       uuid.New(),
		GameType: entities.GameTypeBinaryRound,
		Phase:    entities.ContestPhaseOpen,
		OpenAt:   now.Add(-time.Minute),
		LockAt:   now.Add(-time.Second),
		SettleAt: now.Add(30 * time.Second),
		Config:   entities.ContestConfig{Symbols: []string{"SOLUSDT"}},
	}

	m := newRoundServiceMocks()
	m.contestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	unverified := &entities.PriceSnapshot{Symbol: "SOLUSDT", Price: 1, Verified: false}
	m.priceProvider.On("GetPrice", ctx, "SOLUSDT").Return(unverified, nil)

	require.NoError(t, m.service(time.Minute).EvaluateContest(ctx, contest.ID))
	assert.Equal(t, entities.ContestPhaseOpen, contest.Phase)
	m.contestRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestRoundService_OpenVoidsPastGraceWithRefund(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	contest := &entities.Contest{
		ID:       uuid.New(),
		GameType: entities.GameTypeBinaryRound,
		Phase:    entities.ContestPhaseOpen,
		OpenAt:   now.Add(-10 * time.Minute),
		LockAt:   now.Add(-5 * time.Minute),
		SettleAt: now.Add(-4 * time.Minute),
		Config:   entities.ContestConfig{Symbols: []string{"SOLUSDT"}},
	}

	m := newRoundServiceMocks()
	m.contestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	m.priceProvider.On("GetPrice", ctx, "SOLUSDT").Return(nil, assert.AnError)
	m.stakeRepo.On("Snapshot", ctx, contest.ID).Return(&entities.PoolSnapshot{
		ContestID:    contest.ID,
		TotalsBySide: map[entities.Side]int64{entities.SideUp: 100},
		Count:        1,
		Stakes: []*entities.Stake{
			{ParticipantID: "wallet-1", Side: entities.SideUp, Amount: 100},
		},
	}, nil)
	m.settlementRepo.On("Create", ctx, mock.MatchedBy(func(r *entities.SettlementRecord) bool {
		return r.Outcome == entities.OutcomeVoid && r.FeeAmount == 0 && r.PayoutTotal() == 100
	})).Return(nil)
	m.contestRepo.On("Update", ctx, contest).Return(nil)
	m.publisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		_, ok := e.(events.ContestVoidedEvent)
		return ok
	})).Return(nil)
	m.publisher.On("Publish", mock.Anything).Return(nil)

	require.NoError(t, m.service(time.Minute).EvaluateContest(ctx, contest.ID))
	assert.Equal(t, entities.ContestPhaseVoided, contest.Phase)
	require.NotNil(t, contest.VoidReason)
	m.settlementRepo.AssertExpectations(t)
}

func TestRoundService_LockedWaitsForSettleTime(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	contest := &entities.Contest{
		ID:       uuid.New(),
		GameType: entities.GameTypeBinaryRound,
		Phase:    entities.ContestPhaseLocked,
		OpenAt:   now.Add(-time.Minute),
		LockAt:   now.Add(-30 * time.Second),
		SettleAt: now.Add(30 * time.Second),
		Config:   entities.ContestConfig{Symbols: []string{"SOLUSDT"}},
	}

	m := newRoundServiceMocks()
	m.contestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)

	require.NoError(t, m.service(time.Minute).EvaluateContest(ctx, contest.ID))
	assert.Equal(t, entities.ContestPhaseLocked, contest.Phase)
}

func TestRoundService_SettlingWritesSettlementAndCounters(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	contest := &entities.Contest{
		ID:       uuid.New(),
		GameType: entities.GameTypeBinaryRound,
		Phase:    entities.ContestPhaseSettling,
		OpenAt:   now.Add(-2 * time.Minute),
		LockAt:   now.Add(-time.Minute),
		SettleAt: now.Add(-time.Second),
		Config: entities.ContestConfig{
			Symbols: []string{"SOLUSDT"},
			FeeBps:  500,
		},
	}
	contest.SetLockPrice("SOLUSDT", 100_00000000)
	contest.SetSettlePrice("SOLUSDT", 110_00000000)

	snapshot := &entities.PoolSnapshot{
		ContestID: contest.ID,
		TotalsBySide: map[entities.Side]int64{
			entities.SideUp:   300,
			entities.SideDown: 100,
		},
		Count: 2,
		Stakes: []*entities.Stake{
			{ID: 1, ParticipantID: "alice", Side: entities.SideUp, Amount: 300, PlacedAt: now.Add(-90 * time.Second)},
			{ID: 2, ParticipantID: "bob", Side: entities.SideDown, Amount: 100, PlacedAt: now.Add(-80 * time.Second)},
		},
	}

	m := newRoundServiceMocks()
	m.contestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	m.settlementRepo.On("GetByContest", ctx, contest.ID).Return(nil, nil)
	m.stakeRepo.On("Snapshot", ctx, contest.ID).Return(snapshot, nil)
	m.settlementRepo.On("Create", ctx, mock.MatchedBy(func(r *entities.SettlementRecord) bool {
		return r.Outcome == entities.Outcome(entities.SideUp) &&
			r.FeeAmount == 20 &&
			r.PayoutTotal() == 380
	})).Return(nil)
	m.gameStateRepo.On("RecordSettlement", ctx, entities.GameTypeBinaryRound, int64(400), int64(20)).Return(nil)
	m.contestRepo.On("Update", ctx, contest).Return(nil)
	m.publisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		settled, ok := e.(events.ContestSettledEvent)
		return ok && settled.Payouts["alice"] == 380
	})).Return(nil)
	m.publisher.On("Publish", mock.Anything).Return(nil)

	require.NoError(t, m.service(time.Minute).EvaluateContest(ctx, contest.ID))
	assert.Equal(t, entities.ContestPhaseSettled, contest.Phase)
	require.NotNil(t, contest.SettledAt)
	m.settlementRepo.AssertExpectations(t)
	m.gameStateRepo.AssertExpectations(t)
}

func TestRoundService_SettlingResumesFromExistingRecord(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	contest := &entities.Contest{
		ID:       uuid.New(),
		GameType: entities.GameTypeBinaryRound,
		Phase:    entities.ContestPhaseSettling,
		OpenAt:   now.Add(-2 * time.Minute),
		LockAt:   now.Add(-time.Minute),
		SettleAt: now.Add(-time.Second),
	}
	existing := &entities.SettlementRecord{
		ContestID: contest.ID,
		Outcome:   entities.Outcome(entities.SideUp),
		FeeAmount: 20,
		TotalPool: 400,
		Payouts: []*entities.Payout{
			{ParticipantID: "alice", Amount: 380},
		},
	}

	m := newRoundServiceMocks()
	m.contestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	m.settlementRepo.On("GetByContest", ctx, contest.ID).Return(existing, nil)
	m.contestRepo.On("Update", ctx, contest).Return(nil)
	m.publisher.On("Publish", mock.Anything).Return(nil)

	require.NoError(t, m.service(time.Minute).EvaluateContest(ctx, contest.ID))
	assert.Equal(t, entities.ContestPhaseSettled, contest.Phase)
	// No second settlement and no double counting.
	m.settlementRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.gameStateRepo.AssertNotCalled(t, "RecordSettlement", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRoundService_TerminalPhasesAreNoOps(t *testing.T) {
	ctx := context.Background()
	for _, phase := range []entities.ContestPhase{
		entities.ContestPhaseSettled,
		entities.ContestPhaseVoided,
		entities.ContestPhaseArchived,
	} {
		contest := &entities.Contest{
			ID:       uuid.New(),
			GameType: entities.GameTypeBinaryRound,
			Phase:    phase,
		}
		m := newRoundServiceMocks()
		m.contestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)

		require.NoError(t, m.service(time.Minute).EvaluateContest(ctx, contest.ID))
		m.contestRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	}
}

func TestRoundService_LobbyVoidsBelowEntryFloor(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	contest := &entities.Contest{
		ID:       uuid.New(),
		GameType: entities.GameTypeEliminationLobby,
		Phase:    entities.ContestPhaseOpen,
		OpenAt:   now.Add(-10 * time.Minute),
		LockAt:   now.Add(-time.Second),
		SettleAt: now.Add(time.Hour),
		Config: entities.ContestConfig{
			Symbols:         []string{"SOLUSDT"},
			MinParticipants: 3,
		},
	}

	snapshot := &entities.PoolSnapshot{
		ContestID:    contest.ID,
		TotalsBySide: map[entities.Side]int64{entities.SideAlive: 200},
		Count:        2,
		Stakes: []*entities.Stake{
			{ParticipantID: "alice", Side: entities.SideAlive, Amount: 100},
			{ParticipantID: "bob", Side: entities.SideAlive, Amount: 100},
		},
	}

	m := newRoundServiceMocks()
	m.contestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	m.stakeRepo.On("Snapshot", ctx, contest.ID).Return(snapshot, nil)
	m.settlementRepo.On("Create", ctx, mock.MatchedBy(func(r *entities.SettlementRecord) bool {
		return r.Outcome == entities.OutcomeVoid && r.PayoutTotal() == 200
	})).Return(nil)
	m.contestRepo.On("Update", ctx, contest).Return(nil)
	m.publisher.On("Publish", mock.Anything).Return(nil)

	require.NoError(t, m.service(time.Minute).EvaluateContest(ctx, contest.ID))
	assert.Equal(t, entities.ContestPhaseVoided, contest.Phase)
}

func TestRoundService_LobbyLocksAndFreezesTiers(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	contest := &entities.Contest{
		ID:       uuid.New(),
		GameType: entities.GameTypeEliminationLobby,
		Phase:    entities.ContestPhaseOpen,
		OpenAt:   now.Add(-10 * time.Minute),
		LockAt:   now.Add(-time.Second),
		SettleAt: now.Add(time.Hour),
		Config: entities.ContestConfig{
			Symbols:         []string{"SOLUSDT"},
			MinParticipants: 3,
		},
	}

	stakes := make([]*entities.Stake, 0, 6)
	totals := map[entities.Side]int64{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		stakes = append(stakes, &entities.Stake{ParticipantID: name, Side: entities.SideAlive, Amount: 100})
		totals[entities.SideAlive] += 100
	}
	snapshot := &entities.PoolSnapshot{ContestID: contest.ID, TotalsBySide: totals, Count: 6, Stakes: stakes}

	m := newRoundServiceMocks()
	m.contestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	m.stakeRepo.On("Snapshot", ctx, contest.ID).Return(snapshot, nil)
	m.contestRepo.On("Update", ctx, contest).Return(nil)
	m.publisher.On("Publish", mock.Anything).Return(nil)

	require.NoError(t, m.service(time.Minute).EvaluateContest(ctx, contest.ID))
	assert.Equal(t, entities.ContestPhaseLocked, contest.Phase)
	// six entrants fall in the 5+ band
	assert.Equal(t, []int64{7000, 3000}, contest.Config.PayoutTiersBps)
}

func TestRoundService_LockedLobbyDelegatesAndSettlesWhenDone(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	contest := &entities.Contest{
		ID:       uuid.New(),
		GameType: entities.GameTypeEliminationLobby,
		Phase:    entities.ContestPhaseLocked,
		OpenAt:   now.Add(-time.Hour),
		LockAt:   now.Add(-30 * time.Minute),
		SettleAt: now.Add(time.Hour),
		Config:   entities.ContestConfig{Symbols: []string{"SOLUSDT"}},
	}

	m := newRoundServiceMocks()
	m.contestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	m.elimination.On("AdvanceLobby", ctx, contest).Return(true, nil)
	m.contestRepo.On("Update", ctx, contest).Return(nil)
	m.publisher.On("Publish", mock.Anything).Return(nil)

	require.NoError(t, m.service(time.Minute).EvaluateContest(ctx, contest.ID))
	assert.Equal(t, entities.ContestPhaseSettling, contest.Phase)
	m.elimination.AssertExpectations(t)
}
