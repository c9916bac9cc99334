package infrastructure

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collateralcombat/domain/entities"
	"collateralcombat/domain/interfaces"
)

type mockParticipantGateway struct {
	mock.Mock
}

func (m *mockParticipantGateway) SubmitStake(ctx context.Context, contestID uuid.UUID, participantID string, side entities.Side, amount int64) (*entities.StakeReceipt, error) {
	args := m.Called(ctx, contestID, participantID, side, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeReceipt), args.Error(1)
}

func (m *mockParticipantGateway) RegisterEntry(ctx context.Context, contestID uuid.UUID, participantID string, entryFee int64) (*entities.StakeReceipt, error) {
	args := m.Called(ctx, contestID, participantID, entryFee)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeReceipt), args.Error(1)
}

func (m *mockParticipantGateway) SubmitPrediction(ctx context.Context, contestID uuid.UUID, participantID string, side entities.Side) error {
	args := m.Called(ctx, contestID, participantID, side)
	return args.Error(0)
}

type mockContestQueries struct {
	mock.Mock
}

func (m *mockContestQueries) GetContest(ctx context.Context, contestID uuid.UUID) (*interfaces.ContestView, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.ContestView), args.Error(1)
}

func (m *mockContestQueries) GetCurrentContest(ctx context.Context, gameType entities.GameType) (*interfaces.ContestView, error) {
	args := m.Called(ctx, gameType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.ContestView), args.Error(1)
}

func decodeResponse(t *testing.T, data []byte) gameResponse {
	t.Helper()
	var resp gameResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestGameConsumer_StakeSubmit_ReturnsReceipt(t *testing.T) {
	ctx := context.Background()
	contestID := uuid.New()

	gateway := new(mockParticipantGateway)
	gateway.On("SubmitStake", ctx, contestID, "wallet-1", entities.SideUp, int64(500)).Return(&entities.StakeReceipt{
		StakeID:       42,
		ContestID:     contestID,
		ParticipantID: "wallet-1",
		Side:          entities.SideUp,
		Amount:        500,
		PlacedAt:      time.Now().UTC(),
	}, nil)

	consumer := NewGameConsumer(nil, gateway, new(mockContestQueries))
	req, _ := json.Marshal(stakeSubmitRequest{
		ContestID:     contestID.String(),
		ParticipantID: "wallet-1",
		Side:          "up",
		Amount:        500,
	})

	resp := decodeResponse(t, consumer.handleStakeSubmit(ctx, req))
	require.True(t, resp.OK)

	var payload stakeReceiptPayload
	require.NoError(t, json.Unmarshal(resp.Payload, &payload))
	assert.Equal(t, int64(42), payload.StakeID)
	assert.Equal(t, contestID.String(), payload.ContestID)
	assert.Equal(t, "up", payload.Side)
	gateway.AssertExpectations(t)
}

func TestGameConsumer_StakeSubmit_MapsErrorTaxonomy(t *testing.T) {
	ctx := context.Background()
	contestID := uuid.New()

	gateway := new(mockParticipantGateway)
	gateway.On("SubmitStake", ctx, contestID, "wallet-1", entities.SideUp, int64(500)).
		Return(nil, entities.NewConflictError("participant wallet-1 already staked")).Once()
	gateway.On("SubmitStake", ctx, contestID, "wallet-1", entities.SideUp, int64(500)).
		Return(nil, entities.NewValidationError("stake below minimum")).Once()

	consumer := NewGameConsumer(nil, gateway, new(mockContestQueries))
	req, _ := json.Marshal(stakeSubmitRequest{
		ContestID:     contestID.String(),
		ParticipantID: "wallet-1",
		Side:          "up",
		Amount:        500,
	})

	resp := decodeResponse(t, consumer.handleStakeSubmit(ctx, req))
	assert.False(t, resp.OK)
	assert.Equal(t, "conflict", resp.ErrorCode)

	resp = decodeResponse(t, consumer.handleStakeSubmit(ctx, req))
	assert.False(t, resp.OK)
	assert.Equal(t, "validation", resp.ErrorCode)
}

func TestGameConsumer_StakeSubmit_RejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	gateway := new(mockParticipantGateway)
	consumer := NewGameConsumer(nil, gateway, new(mockContestQueries))

	resp := decodeResponse(t, consumer.handleStakeSubmit(ctx, []byte("{not json")))
	assert.False(t, resp.OK)
	assert.Equal(t, "validation", resp.ErrorCode)

	req, _ := json.Marshal(stakeSubmitRequest{ContestID: "not-a-uuid", ParticipantID: "wallet-1", Side: "up", Amount: 500})
	resp = decodeResponse(t, consumer.handleStakeSubmit(ctx, req))
	assert.False(t, resp.OK)
	assert.Equal(t, "validation", resp.ErrorCode)

	gateway.AssertNotCalled(t, "SubmitStake", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGameConsumer_LobbyHandlers(t *testing.T) {
	ctx := context.Background()
	contestID := uuid.New()

	gateway := new(mockParticipantGateway)
	gateway.On("RegisterEntry", ctx, contestID, "wallet-2", int64(500)).Return(&entities.StakeReceipt{
		StakeID:       7,
		ContestID:     contestID,
		ParticipantID: "wallet-2",
		Side:          entities.SideAlive,
		Amount:        500,
	}, nil)
	gateway.On("SubmitPrediction", ctx, contestID, "wallet-2", entities.SideDown).Return(nil)

	consumer := NewGameConsumer(nil, gateway, new(mockContestQueries))

	enterReq, _ := json.Marshal(lobbyEnterRequest{ContestID: contestID.String(), ParticipantID: "wallet-2", EntryFee: 500})
	resp := decodeResponse(t, consumer.handleLobbyEnter(ctx, enterReq))
	require.True(t, resp.OK)

	var payload stakeReceiptPayload
	require.NoError(t, json.Unmarshal(resp.Payload, &payload))
	assert.Equal(t, "alive", payload.Side)

	predictReq, _ := json.Marshal(lobbyPredictRequest{ContestID: contestID.String(), ParticipantID: "wallet-2", Side: "down"})
	resp = decodeResponse(t, consumer.handleLobbyPredict(ctx, predictReq))
	assert.True(t, resp.OK)
	gateway.AssertExpectations(t)
}

func TestGameConsumer_ContestCurrent_ReturnsView(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	contest := &entities.Contest{
		ID:       uuid.New(),
		GameType: entities.GameTypeBinaryRound,
		Phase:    entities.ContestPhaseOpen,
		OpenAt:   now,
		LockAt:   now.Add(25 * time.Second),
		SettleAt: now.Add(30 * time.Second),
	}

	queries := new(mockContestQueries)
	queries.On("GetCurrentContest", ctx, entities.GameTypeBinaryRound).Return(&interfaces.ContestView{
		Contest: contest,
		TotalsBySide: map[entities.Side]int64{
			entities.SideUp:   300,
			entities.SideDown: 150,
		},
		StakeCount: 3,
		TotalPool:  450,
	}, nil)

	consumer := NewGameConsumer(nil, new(mockParticipantGateway), queries)
	req, _ := json.Marshal(contestCurrentRequest{GameType: "binary_round"})

	resp := decodeResponse(t, consumer.handleContestCurrent(ctx, req))
	require.True(t, resp.OK)

	var payload contestViewPayload
	require.NoError(t, json.Unmarshal(resp.Payload, &payload))
	assert.Equal(t, contest.ID.String(), payload.ContestID)
	assert.Equal(t, "open", payload.Phase)
	assert.Equal(t, int64(300), payload.TotalsBySide["up"])
	assert.Equal(t, 3, payload.StakeCount)
	assert.Equal(t, int64(450), payload.TotalPool)
}

func TestGameConsumer_ContestGet_NotFoundIsValidation(t *testing.T) {
	ctx := context.Background()
	contestID := uuid.New()

	queries := new(mockContestQueries)
	queries.On("GetContest", ctx, contestID).Return(nil, entities.NewValidationError("contest %s not found", contestID))

	consumer := NewGameConsumer(nil, new(mockParticipantGateway), queries)
	req, _ := json.Marshal(contestGetRequest{ContestID: contestID.String()})

	resp := decodeResponse(t, consumer.handleContestGet(ctx, req))
	assert.False(t, resp.OK)
	assert.Equal(t, "validation", resp.ErrorCode)
}
