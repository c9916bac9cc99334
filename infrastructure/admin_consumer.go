package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"collateralcombat/application"
	"collateralcombat/domain/entities"
)

// AdminPauseSubject carries operator pause/resume commands
const AdminPauseSubject = "contests.admin.pause"

// pauseCommand is the wire format of a pause/resume command
type pauseCommand struct {
	GameType string `json:"game_type"`
	Paused   bool   `json:"paused"`
}

// AdminConsumer applies operator commands arriving over NATS
type AdminConsumer struct {
	natsClient *NATSClient
	control    *application.GameControl
}

// NewAdminConsumer creates the admin command consumer
func NewAdminConsumer(natsClient *NATSClient, control *application.GameControl) *AdminConsumer {
	return &AdminConsumer{
		natsClient: natsClient,
		control:    control,
	}
}

// Start ensures the admin stream exists and subscribes to its subjects
func (c *AdminConsumer) Start() error {
	if err := c.natsClient.ensureStream("contest_admin", []string{"contests.admin.*"}); err != nil {
		return err
	}
	return c.natsClient.Subscribe(AdminPauseSubject, c.handlePause)
}

func (c *AdminConsumer) handlePause(data []byte) error {
	var cmd pauseCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal pause command: %w", err)
	}

	gameType := entities.GameType(cmd.GameType)
	valid := false
	for _, known := range entities.AllGameTypes {
		if gameType == known {
			valid = true
			break
		}
	}
	if !valid {
		log.WithField("gameType", cmd.GameType).Warn("Ignoring pause command for unknown game type")
		return nil
	}

	return c.control.SetPaused(context.Background(), gameType, cmd.Paused)
}
