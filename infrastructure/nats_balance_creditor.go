package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// creditRequest is the wire format for a balance credit call
type creditRequest struct {
	ParticipantID  string `json:"participant_id"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// creditResponse is the balance service's reply. A duplicate idempotency
// key returns ok with duplicate set; only an explicit error fails the call.
type creditResponse struct {
	OK        bool   `json:"ok"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NATSBalanceCreditor credits participant balances over NATS request-reply.
// The balance service owns account state and dedupes on the idempotency key,
// so retrying a delivered credit is safe.
type NATSBalanceCreditor struct {
	natsClient *NATSClient
	subject    string
	timeout    time.Duration
}

// NewNATSBalanceCreditor creates a creditor calling the given subject
func NewNATSBalanceCreditor(natsClient *NATSClient, subject string) *NATSBalanceCreditor {
	return &NATSBalanceCreditor{
		natsClient: natsClient,
		subject:    subject,
		timeout:    10 * time.Second,
	}
}

// Credit requests a balance credit and waits for acknowledgment
func (c *NATSBalanceCreditor) Credit(ctx context.Context, participantID string, amount int64, idempotencyKey string) error {
	request := creditRequest{
		ParticipantID:  participantID,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
	}
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal credit request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	replyData, err := c.natsClient.Request(reqCtx, c.subject, data)
	if err != nil {
		return fmt.Errorf("credit request failed: %w", err)
	}

	var reply creditResponse
	if err := json.Unmarshal(replyData, &reply); err != nil {
		return fmt.Errorf("failed to unmarshal credit response: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("balance service rejected credit for %s: %s", participantID, reply.Error)
	}

	log.WithFields(log.Fields{
		"participantId":  participantID,
		"amount":         amount,
		"idempotencyKey": idempotencyKey,
		"duplicate":      reply.Duplicate,
	}).Debug("Balance credit acknowledged")
	return nil
}
