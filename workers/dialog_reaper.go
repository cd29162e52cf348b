package workers

import (
	"log"
	"time"

	"calliope/dialogs"

	"github.com/jinzhu/gorm"
)

// StartDialogReaper starts a loop that abandons idle dialog sessions.
// Sessões abandonadas não viram lead e não consomem cota.
func StartDialogReaper(db *gorm.DB, engine *dialogs.Engine, interval time.Duration) {
	if engine == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			if n := engine.AbandonIdle(db); n > 0 {
				log.Printf("reaper: %d sessões abandonadas por inatividade", n)
			}
		}
	}()
}
