package analytics

import (
	"encoding/json"
	"time"

	"calliope/models"

	"github.com/jinzhu/gorm"
)

// Track grava um evento no log append-only. É o único caminho de escrita das
// métricas: os rollups são recalculados na leitura, nunca mantidos à parte.
func Track(db *gorm.DB, eventType string, userID int64, metadata map[string]any, sessionID string) error {
	var meta string
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		meta = string(b)
	}

	ev := models.AnalyticsEvent{
		EventType: eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Metadata:  meta,
		SessionID: sessionID,
	}
	return db.Create(&ev).Error
}
