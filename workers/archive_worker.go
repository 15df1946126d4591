package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"challenge-platform-service/services"
	"challenge-platform-service/utils"
)

const archiveBatchLimit = 500

// ArchiveClient exports newly appended audit events to R2 so the audit
// trail survives outside the database. Export only advances the cursor
// after a successful upload — a failed batch is retried on the next tick.
type ArchiveClient struct {
	Events *services.EventLog
	Prefix string
}

func NewArchiveClient(events *services.EventLog, prefix string) *ArchiveClient {
	return &ArchiveClient{Events: events, Prefix: prefix}
}

// PollAuditEvents ships event batches on a fixed interval until ctx ends.
func PollAuditEvents(ctx context.Context, client *ArchiveClient, pollInterval time.Duration) {
	log.Println("Starting audit event archiving...")
	cursor := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Audit event archiving stopped.")
			return
		case <-ticker.C:
			events, err := client.Events.AppendedSince(cursor, archiveBatchLimit)
			if err != nil {
				log.Printf("❌ [ARCHIVE] DB error fetching events: %v", err)
				continue
			}
			if len(events) == 0 {
				continue
			}

			body, err := json.Marshal(events)
			if err != nil {
				log.Printf("❌ [ARCHIVE] failed to encode %d event(s): %v", len(events), err)
				continue
			}

			batchID := fmt.Sprintf("%s-%d", time.Now().UTC().Format("20060102T150405Z"), len(events))
			key := utils.DeriveArchiveKey(client.Prefix, batchID)
			if err := utils.UploadBytesToR2(ctx, key, body, "application/json"); err != nil {
				// Do NOT advance the cursor on failure — retry same window next tick
				log.Printf("❌ [ARCHIVE] upload failed for %s: %v", key, err)
				continue
			}

			cursor = events[len(events)-1].CreatedAt
			log.Printf("✅ [ARCHIVE] exported %d audit event(s) to %s", len(events), key)
		}
	}
}
