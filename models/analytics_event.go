package models

import (
	"encoding/json"
	"time"
)

/************************************************
/**** MARK: ANALYTICS EVENT TYPES ****/
/************************************************/
const EVENT_USER_ONBOARDED = "user_onboarded"
const EVENT_SCRIPT_GENERATED = "script_generated"
const EVENT_SCRIPT_APPLIED = "script_applied"
const EVENT_DIALOG_STARTED = "dialog_started"
const EVENT_DIALOG_COMPLETED = "dialog_completed"
const EVENT_DIALOG_ABANDONED = "dialog_abandoned"
const EVENT_LEAD_CREATED = "lead_created"
const EVENT_LEAD_SCORED = "lead_scored"
const EVENT_LEAD_BOOKED = "lead_booked"
const EVENT_LEAD_HOT_PUSH = "lead_hot_push"
const EVENT_SUBSCRIPTION_STARTED = "subscription_started"
const EVENT_SUBSCRIPTION_CANCELLED = "subscription_cancelled"

// AnalyticsEvent é uma linha append-only do log de eventos. É o único caminho
// de escrita das métricas; os rollups são sempre recalculados na leitura.
type AnalyticsEvent struct {
	ID        int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	EventType string     `gorm:"not null;index" json:"event_type"`
	UserID    int64      `gorm:"not null;index" json:"user_id"`
	Timestamp time.Time  `gorm:"not null;index" json:"timestamp"`
	Metadata  string     `gorm:"type:text" json:"metadata"`
	SessionID string     `gorm:"default:'';index" json:"session_id"`
	CreatedAt *time.Time `json:"created_at"`
}

// MetadataMap desserializa o metadata livre do evento.
func (e AnalyticsEvent) MetadataMap() map[string]any {
	if e.Metadata == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(e.Metadata), &m); err != nil {
		return map[string]any{}
	}
	return m
}
