package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"collateralcombat/domain/entities"
	"collateralcombat/domain/interfaces"
)

type contestQueryService struct {
	contestRepo interfaces.ContestRepository
	stakeRepo   interfaces.StakeRepository
}

// NewContestQueryService creates the read-only contest view service
func NewContestQueryService(
	contestRepo interfaces.ContestRepository,
	stakeRepo interfaces.StakeRepository,
) interfaces.ContestQueryService {
	return &contestQueryService{
		contestRepo: contestRepo,
		stakeRepo:   stakeRepo,
	}
}

// GetContest returns the contest with pool totals computed from the
// committed stake rows
func (s *contestQueryService) GetContest(ctx context.Context, contestID uuid.UUID) (*interfaces.ContestView, error) {
	contest, err := s.contestRepo.GetByID(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contest: %w", err)
	}
	if contest == nil {
		return nil, entities.NewValidationError("contest %s not found", contestID)
	}
	return s.buildView(ctx, contest)
}

// GetCurrentContest returns the view of the game type's running contest
func (s *contestQueryService) GetCurrentContest(ctx context.Context, gameType entities.GameType) (*interfaces.ContestView, error) {
	contest, err := s.contestRepo.GetCurrentByGameType(ctx, gameType)
	if err != nil {
		return nil, fmt.Errorf("failed to load current contest: %w", err)
	}
	if contest == nil {
		return nil, entities.NewValidationError("no running contest for %s", gameType)
	}
	return s.buildView(ctx, contest)
}

func (s *contestQueryService) buildView(ctx context.Context, contest *entities.Contest) (*interfaces.ContestView, error) {
	snapshot, err := s.stakeRepo.Snapshot(ctx, contest.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot pool: %w", err)
	}
	return &interfaces.ContestView{
		Contest:      contest,
		TotalsBySide: snapshot.TotalsBySide,
		StakeCount:   snapshot.Count,
		TotalPool:    snapshot.TotalPool(),
	}, nil
}
