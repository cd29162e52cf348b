package models

import "time"

/************************************************
/**** MARK: SUBSCRIPTION TIERS ****/
/************************************************/
const SUBSCRIPTION_TIER_TRIAL = "trial"
const SUBSCRIPTION_TIER_BASIC = "basic"
const SUBSCRIPTION_TIER_PRO = "pro"
const SUBSCRIPTION_TIER_ENTERPRISE = "enterprise"

/************************************************
/**** MARK: SUBSCRIPTION STATUS ****/
/************************************************/
const SUBSCRIPTION_STATUS_TRIAL = "trial"
const SUBSCRIPTION_STATUS_ACTIVE = "active"
const SUBSCRIPTION_STATUS_EXPIRED = "expired"
const SUBSCRIPTION_STATUS_CANCELLED = "cancelled"
const SUBSCRIPTION_STATUS_PENDING = "pending"

// Subscription é a assinatura de um usuário: tier, janela de trial e o
// contador de diálogos consumidos contra o limite do plano.
// DialogsLimit = 0 significa sem limite.
type Subscription struct {
	ID            int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	UserID        int64      `gorm:"not null;unique_index" json:"user_id"`
	Tier          string     `gorm:"not null;default:'trial'" json:"tier" form:"tier"`
	Status        string     `gorm:"not null;default:'trial';index" json:"status" form:"status"`
	TrialStart    *time.Time `json:"trial_start"`
	TrialEnd      *time.Time `json:"trial_end"`
	DialogsUsed   int64      `gorm:"not null;default:0" json:"dialogs_used"`
	DialogsLimit  int64      `gorm:"not null;default:50" json:"dialogs_limit"`
	ExpiresAt     *time.Time `json:"expires_at"`
	IsReadOnly    bool       `gorm:"not null;default:false" json:"is_read_only"`
	CustomBotName string     `gorm:"default:''" json:"custom_bot_name" form:"custom_bot_name"`
	CustomLogoURL string     `gorm:"default:''" json:"custom_logo_url" form:"custom_logo_url"`
	CreatedAt     *time.Time `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
}

// Unlimited reporta se a assinatura não conta diálogos.
func (s Subscription) Unlimited() bool {
	return s.DialogsLimit <= 0
}
