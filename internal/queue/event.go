// Package queue defines the saved-vulnerability events exchanged over the
// message broker and the consumer that records them.
package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QueueName is the durable queue all vulnerability events are routed to.
const QueueName = "vulnerability.events"

type EventType string

const (
	EventSaved   EventType = "vulnerability.saved"
	EventRemoved EventType = "vulnerability.removed"
)

// VulnerabilityEvent is published when a user saves or removes a
// vulnerability from their list.
type VulnerabilityEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	UserID     uint64    `json:"user_id"`
	Email      string    `json:"email"`
	SavedID    uint64    `json:"saved_id"`
	CVEID      string    `json:"cve_id,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewVulnerabilityEvent(typ EventType, userID uint64, email string, savedID uint64, cveID, notes string) VulnerabilityEvent {
	return VulnerabilityEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		Email:      email,
		SavedID:    savedID,
		CVEID:      cveID,
		Notes:      notes,
		OccurredAt: time.Now().UTC(),
	}
}

// Validate rejects payloads the consumer cannot record.
func (e VulnerabilityEvent) Validate() error {
	switch e.Type {
	case EventSaved, EventRemoved:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.UserID == 0 || e.SavedID == 0 {
		return fmt.Errorf("event %s: missing user or saved id", e.ID)
	}
	return nil
}

// LogLine renders the event as a single line of logs/saved.log.
func (e VulnerabilityEvent) LogLine() string {
	action := "saved"
	if e.Type == EventRemoved {
		action = "removed"
	}
	cve := e.CVEID
	if cve == "" {
		cve = "-"
	}
	return fmt.Sprintf("[%s] Vulnerability %s | event_id=%s | saved_id=%d | user_id=%d | email=%q | cve=%s | notes=%q\n",
		e.OccurredAt.UTC().Format(time.RFC3339), action, e.ID, e.SavedID, e.UserID, e.Email, cve, e.Notes)
}
