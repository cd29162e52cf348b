package models

import "time"

/************************************************
/**** MARK: ALERT LEVELS ****/
/************************************************/
const ALERT_LEVEL_INFO = "info"
const ALERT_LEVEL_WARNING = "warning"
const ALERT_LEVEL_ERROR = "error"
const ALERT_LEVEL_CRITICAL = "critical"

// SystemAlert é um alerta operacional (vem do monitoramento, não do pipeline
// de diálogos).
type SystemAlert struct {
	ID         int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Level      string     `gorm:"not null;index" json:"level" form:"level"`
	Title      string     `gorm:"not null" json:"title" form:"title"`
	Message    string     `gorm:"type:text" json:"message" form:"message"`
	Metadata   string     `gorm:"type:text" json:"metadata" form:"metadata"`
	Resolved   bool       `gorm:"not null;default:false;index" json:"resolved"`
	CreatedAt  *time.Time `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

func ValidAlertLevel(level string) bool {
	switch level {
	case ALERT_LEVEL_INFO, ALERT_LEVEL_WARNING, ALERT_LEVEL_ERROR, ALERT_LEVEL_CRITICAL:
		return true
	}
	return false
}
