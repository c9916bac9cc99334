package testutil

import (
	"time"

	"github.com/google/uuid"

	"collateralcombat/domain/entities"
)

// CreateTestContest creates an open binary round contest with default values
func CreateTestContest(gameType entities.GameType) *entities.Contest {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &entities.Contest{
		ID:       uuid.New(),
		GameType: gameType,
		Phase:    entities.ContestPhaseOpen,
		OpenAt:   now.Add(-time.Minute),
		LockAt:   now.Add(time.Minute),
		SettleAt: now.Add(2 * time.Minute),
		Config: entities.ContestConfig{
			Symbols:          []string{"SOLUSDT"},
			FeeBps:           500,
			MinStake:         1_000,
			MaxStake:         1_000_000_000,
			DrawThresholdBps: 10,
		},
	}
}

// CreateTestLobbyContest creates an elimination lobby in its locked phase
func CreateTestLobbyContest() *entities.Contest {
	contest := CreateTestContest(entities.GameTypeEliminationLobby)
	contest.Phase = entities.ContestPhaseLocked
	contest.Config.MinParticipants = 3
	contest.Config.MaxParticipants = 100
	contest.Config.MaxRounds = 10
	contest.Config.RoundDuration = time.Minute
	return contest
}

// CreateTestStake creates a stake on the given contest
func CreateTestStake(contestID uuid.UUID, participantID string, side entities.Side, amount int64) *entities.Stake {
	return &entities.Stake{
		ContestID:     contestID,
		ParticipantID: participantID,
		Side:          side,
		Amount:        amount,
		PlacedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}
}

// CreateTestSettlement creates a decisive settlement with one payout per entry
func CreateTestSettlement(contestID uuid.UUID, outcome entities.Outcome, payouts map[string]int64) *entities.SettlementRecord {
	record := &entities.SettlementRecord{
		ContestID: contestID,
		Outcome:   outcome,
		FeeBps:    500,
	}
	for participantID, amount := range payouts {
		record.Payouts = append(record.Payouts, &entities.Payout{
			ContestID:      contestID,
			ParticipantID:  participantID,
			Amount:         amount,
			IdempotencyKey: entities.PayoutIdempotencyKey(contestID, participantID),
		})
	}
	record.TotalPool = record.PayoutTotal() + record.FeeAmount
	return record
}
