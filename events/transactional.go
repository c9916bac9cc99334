package events

import (
	"context"

	log "github.com/sirupsen/logrus"

	"collateralcombat/domain/events"
	"collateralcombat/domain/interfaces"
)

// TransactionalPublisher holds pending events coupled to a unit of work and
// flushes them to the real publisher after the database commit. Events
// buffered for a rolled-back transaction are discarded, so subscribers never
// see state that did not land.
type TransactionalPublisher struct {
	real    interfaces.EventPublisher
	pending []events.Event
}

// NewTransactionalPublisher wraps the real publisher for one transaction
func NewTransactionalPublisher(real interfaces.EventPublisher) *TransactionalPublisher {
	return &TransactionalPublisher{real: real}
}

// Publish stashes the event until Flush
func (p *TransactionalPublisher) Publish(e events.Event) error {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(p.pending),
	}).Debug("Adding event to transactional publisher pending queue")
	p.pending = append(p.pending, e)
	return nil
}

// Flush forwards pending events to the real publisher. Called after a
// successful commit. Publish failures are logged and do not fail the
// already-committed transaction.
func (p *TransactionalPublisher) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(p.pending),
	}).Debug("Flushing pending events from transactional publisher")

	for _, ev := range p.pending {
		if err := p.real.Publish(ev); err != nil {
			log.WithError(err).WithField("eventType", ev.Type()).
				Error("Failed to publish event after commit")
		}
	}
	p.pending = nil
	return nil
}

// Discard clears pending events. Called after a rollback.
func (p *TransactionalPublisher) Discard() {
	p.pending = nil
}
