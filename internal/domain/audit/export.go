package audit

import (
	"encoding/csv"
	"io"
	"time"
)

var csvHeader = []string{"id", "actor_user_id", "action", "entity_type", "entity_id", "request_id", "ip", "created_at"}

// WriteCSV renders events in the export column order.
func WriteCSV(w io.Writer, events []Event) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, evt := range events {
		record := []string{evt.ID, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID, evt.RequestID, evt.IP, evt.CreatedAt.UTC().Format(time.RFC3339)}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
