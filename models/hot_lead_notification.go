package models

import "time"

/************************************************
/**** MARK: NOTIFICATION STATUS ****/
/************************************************/
const NOTIFICATION_STATUS_SENT = "sent"
const NOTIFICATION_STATUS_FAILED = "failed"

// HotLeadNotification registra o push de lead quente para o canal dos
// gestores. No máximo uma linha por (lead_id, channel_id): um reenvio depois
// de falha atualiza a linha existente, nunca duplica.
type HotLeadNotification struct {
	ID        int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	LeadID    string     `gorm:"not null;unique_index:idx_notifications_lead_channel" json:"lead_id"`
	UserID    int64      `gorm:"not null;index" json:"user_id"`
	ChannelID string     `gorm:"not null;unique_index:idx_notifications_lead_channel" json:"channel_id"`
	SentAt    *time.Time `json:"sent_at"`
	Status    string     `gorm:"not null;index" json:"status"`
	LastError string     `gorm:"type:text" json:"last_error"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
