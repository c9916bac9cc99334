package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"collateralcombat/domain/entities"
	"collateralcombat/domain/interfaces"
)

// Request-reply subjects of the participant-facing surface. Stake placement
// and lobby operations mutate state; the contest subjects serve reads.
const (
	StakeSubmitSubject    = "contests.rpc.stake.submit"
	LobbyEnterSubject     = "contests.rpc.lobby.enter"
	LobbyPredictSubject   = "contests.rpc.lobby.predict"
	ContestGetSubject     = "contests.rpc.contest.get"
	ContestCurrentSubject = "contests.rpc.contest.current"
)

// Error codes carried in failure responses, mirroring the engine's error
// taxonomy so callers can tell a bad request from lost-the-race from outage.
const (
	errCodeValidation  = "validation"
	errCodeConflict    = "conflict"
	errCodeUnavailable = "unavailable"
	errCodeInternal    = "internal"
)

type stakeSubmitRequest struct {
	ContestID     string `json:"contest_id"`
	ParticipantID string `json:"participant_id"`
	Side          string `json:"side"`
	Amount        int64  `json:"amount"`
}

type lobbyEnterRequest struct {
	ContestID     string `json:"contest_id"`
	ParticipantID string `json:"participant_id"`
	EntryFee      int64  `json:"entry_fee"`
}

type lobbyPredictRequest struct {
	ContestID     string `json:"contest_id"`
	ParticipantID string `json:"participant_id"`
	Side          string `json:"side"`
}

type contestGetRequest struct {
	ContestID string `json:"contest_id"`
}

type contestCurrentRequest struct {
	GameType string `json:"game_type"`
}

// gameResponse is the wire format of every reply on the rpc subjects
type gameResponse struct {
	OK        bool            `json:"ok"`
	ErrorCode string          `json:"error_code,omitempty"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type stakeReceiptPayload struct {
	StakeID       int64     `json:"stake_id"`
	ContestID     string    `json:"contest_id"`
	ParticipantID string    `json:"participant_id"`
	Side          string    `json:"side"`
	Amount        int64     `json:"amount"`
	PlacedAt      time.Time `json:"placed_at"`
}

type contestViewPayload struct {
	ContestID    string           `json:"contest_id"`
	GameType     string           `json:"game_type"`
	Phase        string           `json:"phase"`
	OpenAt       time.Time        `json:"open_at"`
	LockAt       time.Time        `json:"lock_at"`
	SettleAt     time.Time        `json:"settle_at"`
	CurrentRound int              `json:"current_round,omitempty"`
	TotalsBySide map[string]int64 `json:"totals_by_side"`
	StakeCount   int              `json:"stake_count"`
	TotalPool    int64            `json:"total_pool"`
}

// GameConsumer serves the participant boundary over NATS request-reply:
// stake placement, lobby entry and predictions, and contest views.
type GameConsumer struct {
	natsClient *NATSClient
	gateway    interfaces.ParticipantGateway
	queries    interfaces.ContestQueryService
}

// NewGameConsumer creates the participant request consumer
func NewGameConsumer(natsClient *NATSClient, gateway interfaces.ParticipantGateway, queries interfaces.ContestQueryService) *GameConsumer {
	return &GameConsumer{
		natsClient: natsClient,
		gateway:    gateway,
		queries:    queries,
	}
}

// Start subscribes every rpc subject on the shared queue group
func (c *GameConsumer) Start() error {
	handlers := map[string]func(context.Context, []byte) []byte{
		StakeSubmitSubject:    c.handleStakeSubmit,
		LobbyEnterSubject:     c.handleLobbyEnter,
		LobbyPredictSubject:   c.handleLobbyPredict,
		ContestGetSubject:     c.handleContestGet,
		ContestCurrentSubject: c.handleContestCurrent,
	}
	for subject, handler := range handlers {
		if err := c.natsClient.SubscribeRequests(subject, handler); err != nil {
			return err
		}
	}
	return nil
}

func (c *GameConsumer) handleStakeSubmit(ctx context.Context, data []byte) []byte {
	var req stakeSubmitRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse(errCodeValidation, fmt.Sprintf("malformed stake request: %v", err))
	}
	contestID, err := uuid.Parse(req.ContestID)
	if err != nil {
		return errorResponse(errCodeValidation, fmt.Sprintf("invalid contest id %q", req.ContestID))
	}

	receipt, err := c.gateway.SubmitStake(ctx, contestID, req.ParticipantID, entities.Side(req.Side), req.Amount)
	if err != nil {
		return failureResponse(err)
	}
	return okResponse(receiptPayload(receipt))
}

func (c *GameConsumer) handleLobbyEnter(ctx context.Context, data []byte) []byte {
	var req lobbyEnterRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse(errCodeValidation, fmt.Sprintf("malformed entry request: %v", err))
	}
	contestID, err := uuid.Parse(req.ContestID)
	if err != nil {
		return errorResponse(errCodeValidation, fmt.Sprintf("invalid contest id %q", req.ContestID))
	}

	receipt, err := c.gateway.RegisterEntry(ctx, contestID, req.ParticipantID, req.EntryFee)
	if err != nil {
		return failureResponse(err)
	}
	return okResponse(receiptPayload(receipt))
}

func (c *GameConsumer) handleLobbyPredict(ctx context.Context, data []byte) []byte {
	var req lobbyPredictRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse(errCodeValidation, fmt.Sprintf("malformed prediction request: %v", err))
	}
	contestID, err := uuid.Parse(req.ContestID)
	if err != nil {
		return errorResponse(errCodeValidation, fmt.Sprintf("invalid contest id %q", req.ContestID))
	}

	if err := c.gateway.SubmitPrediction(ctx, contestID, req.ParticipantID, entities.Side(req.Side)); err != nil {
		return failureResponse(err)
	}
	return okResponse(struct{}{})
}

func (c *GameConsumer) handleContestGet(ctx context.Context, data []byte) []byte {
	var req contestGetRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse(errCodeValidation, fmt.Sprintf("malformed contest request: %v", err))
	}
	contestID, err := uuid.Parse(req.ContestID)
	if err != nil {
		return errorResponse(errCodeValidation, fmt.Sprintf("invalid contest id %q", req.ContestID))
	}

	view, err := c.queries.GetContest(ctx, contestID)
	if err != nil {
		return failureResponse(err)
	}
	return okResponse(viewPayload(view))
}

func (c *GameConsumer) handleContestCurrent(ctx context.Context, data []byte) []byte {
	var req contestCurrentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse(errCodeValidation, fmt.Sprintf("malformed contest request: %v", err))
	}

	view, err := c.queries.GetCurrentContest(ctx, entities.GameType(req.GameType))
	if err != nil {
		return failureResponse(err)
	}
	return okResponse(viewPayload(view))
}

func receiptPayload(receipt *entities.StakeReceipt) stakeReceiptPayload {
	return stakeReceiptPayload{
		StakeID:       receipt.StakeID,
		ContestID:     receipt.ContestID.String(),
		ParticipantID: receipt.ParticipantID,
		Side:          string(receipt.Side),
		Amount:        receipt.Amount,
		PlacedAt:      receipt.PlacedAt,
	}
}

func viewPayload(view *interfaces.ContestView) contestViewPayload {
	totals := make(map[string]int64, len(view.TotalsBySide))
	for side, total := range view.TotalsBySide {
		totals[string(side)] = total
	}
	return contestViewPayload{
		ContestID:    view.Contest.ID.String(),
		GameType:     string(view.Contest.GameType),
		Phase:        string(view.Contest.Phase),
		OpenAt:       view.Contest.OpenAt,
		LockAt:       view.Contest.LockAt,
		SettleAt:     view.Contest.SettleAt,
		CurrentRound: view.Contest.CurrentRound,
		TotalsBySide: totals,
		StakeCount:   view.StakeCount,
		TotalPool:    view.TotalPool,
	}
}

func failureResponse(err error) []byte {
	code := errCodeInternal
	switch {
	case entities.IsValidation(err):
		code = errCodeValidation
	case entities.IsConflict(err):
		code = errCodeConflict
	case entities.IsDependencyUnavailable(err):
		code = errCodeUnavailable
	}
	if code == errCodeInternal {
		log.WithError(err).Error("Request failed")
	}
	return errorResponse(code, err.Error())
}

func okResponse(payload any) []byte {
	body, err := json.Marshal(payload)
	if err != nil {
		return errorResponse(errCodeInternal, "failed to encode response")
	}
	out, _ := json.Marshal(gameResponse{OK: true, Payload: body})
	return out
}

func errorResponse(code, message string) []byte {
	out, _ := json.Marshal(gameResponse{OK: false, ErrorCode: code, Error: message})
	return out
}
