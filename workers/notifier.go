package workers

import (
	"context"
	"log"
	"time"

	"calliope/models"
	"calliope/notify"

	"github.com/jinzhu/gorm"
)

// StartNotificationRetrier starts a loop that re-sends failed hot lead
// notifications. O unique index em (lead_id, channel_id) garante que um
// reenvio atualiza a linha existente em vez de duplicar.
func StartNotificationRetrier(db *gorm.DB, dispatcher *notify.Dispatcher, interval time.Duration) {
	if dispatcher == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			retryFailedNotifications(db, dispatcher)
		}
	}()
}

func retryFailedNotifications(db *gorm.DB, dispatcher *notify.Dispatcher) {
	var rows []models.HotLeadNotification
	if err := db.
		Where("status = ?", models.NOTIFICATION_STATUS_FAILED).
		Order("updated_at asc").
		Limit(20).
		Find(&rows).Error; err != nil {
		log.Printf("notifier worker: query error: %v", err)
		return
	}

	for _, row := range rows {
		var lead models.Lead
		if err := db.Where("id = ?", row.LeadID).First(&lead).Error; err != nil {
			log.Printf("notifier worker: lead %s gone: %v", row.LeadID, err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := dispatcher.Dispatch(ctx, db, lead); err != nil {
			log.Printf("notifier worker: retry lead %s: %v", row.LeadID, err)
		}
		cancel()
	}
}
