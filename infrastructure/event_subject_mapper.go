package infrastructure

import (
	"fmt"

	"collateralcombat/domain/events"
)

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeStakeAccepted:
		return "contests.stakes.accepted"
	case events.EventTypeContestPhaseChanged:
		return "contests.phase_changed"
	case events.EventTypeContestSettled:
		return "contests.settled"
	case events.EventTypeContestVoided:
		return "contests.voided"
	case events.EventTypeEntrantEliminated:
		return "contests.entrants.eliminated"
	default:
		return fmt.Sprintf("unknown.%s", event.Type())
	}
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	switch subject {
	case "contests.stakes.accepted":
		return events.EventTypeStakeAccepted
	case "contests.phase_changed":
		return events.EventTypeContestPhaseChanged
	case "contests.settled":
		return events.EventTypeContestSettled
	case "contests.voided":
		return events.EventTypeContestVoided
	case "contests.entrants.eliminated":
		return events.EventTypeEntrantEliminated
	default:
		return events.EventType(subject)
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"contests.stakes.accepted",
		"contests.phase_changed",
		"contests.settled",
		"contests.voided",
		"contests.entrants.eliminated",
	}
}
