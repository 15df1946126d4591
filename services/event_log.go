// services/event_log.go
package services

import (
	"log"
	"time"

	"challenge-platform-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventLog is the append-only audit trail. Appends are fire-and-forget:
// a failed append is logged and never fails the operation that produced it.
type EventLog struct {
	DB *gorm.DB
}

func NewEventLog(db *gorm.DB) *EventLog {
	return &EventLog{DB: db}
}

// Append records one audit event. Call after the owning transaction commits.
func (l *EventLog) Append(event models.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := l.DB.Create(&event).Error; err != nil {
		log.Printf("❌ [AUDIT] failed to append %s event for challenge %q: %v", event.Type, event.ChallengeID, err)
	}
}

// ForChallenge returns the audit trail of one challenge, oldest first.
func (l *EventLog) ForChallenge(challengeID string) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	if err := l.DB.Where("challenge_id = ?", challengeID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// AppendedSince returns events created after the cursor time, oldest first.
// Used by the archive worker to export in batches.
func (l *EventLog) AppendedSince(since time.Time, limit int) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	query := l.DB.Where("created_at > ?", since).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
