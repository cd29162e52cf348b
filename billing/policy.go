package billing

import (
	"errors"
	"fmt"
	"time"

	"calliope/analytics"
	"calliope/models"

	"github.com/jinzhu/gorm"
)

var (
	// ErrQuotaExceeded: contador de diálogos chegou no limite do plano.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrReadOnly: assinatura em modo somente leitura, nada de diálogo novo.
	ErrReadOnly = errors.New("subscription is read-only")
	// ErrTrialExpired: janela de trial acabou (ou assinatura expirou).
	ErrTrialExpired = errors.New("trial expired")
)

// Limite de diálogos por tier (vem do comercial, não mexer sem alinhar preço).
var TierLimits = map[string]int64{
	models.SUBSCRIPTION_TIER_TRIAL:      50,
	models.SUBSCRIPTION_TIER_BASIC:      100,
	models.SUBSCRIPTION_TIER_PRO:        300,
	models.SUBSCRIPTION_TIER_ENTERPRISE: 1000,
}

// Preço mensal por tier, em rublos.
var TierPrices = map[string]int64{
	models.SUBSCRIPTION_TIER_BASIC:      9900,
	models.SUBSCRIPTION_TIER_PRO:        19900,
	models.SUBSCRIPTION_TIER_ENTERPRISE: 39900,
}

// Policy decide se um usuário pode iniciar um diálogo e registra o consumo.
type Policy struct {
	TrialDays         int
	TrialDialogsLimit int64

	// Now é injetável para os testes de expiração de trial.
	Now func() time.Time
}

func NewPolicy(trialDays int, trialDialogsLimit int64) Policy {
	return Policy{
		TrialDays:         trialDays,
		TrialDialogsLimit: trialDialogsLimit,
		Now:               time.Now,
	}
}

func (p Policy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// EnsureSubscription devolve a assinatura do usuário, criando um trial
// implícito quando não existe registro (fail-open para usuário novo).
func (p Policy) EnsureSubscription(db *gorm.DB, userID int64) (models.Subscription, error) {
	var sub models.Subscription
	err := db.Where("user_id = ?", userID).First(&sub).Error
	if err == nil {
		return sub, nil
	}
	if !gorm.IsRecordNotFoundError(err) {
		return sub, err
	}

	now := p.now()
	trialEnd := now.AddDate(0, 0, p.TrialDays)
	sub = models.Subscription{
		UserID:       userID,
		Tier:         models.SUBSCRIPTION_TIER_TRIAL,
		Status:       models.SUBSCRIPTION_STATUS_TRIAL,
		TrialStart:   &now,
		TrialEnd:     &trialEnd,
		DialogsUsed:  0,
		DialogsLimit: p.TrialDialogsLimit,
		ExpiresAt:    &trialEnd,
	}
	if err := db.Create(&sub).Error; err != nil {
		return sub, err
	}
	return sub, nil
}

// CanStart é o portão de entrada do Dialog Engine: nil quando o diálogo pode
// começar, senão um dos erros sentinela com o motivo da recusa.
func (p Policy) CanStart(db *gorm.DB, userID int64) error {
	sub, err := p.EnsureSubscription(db, userID)
	if err != nil {
		return err
	}

	if sub.IsReadOnly {
		return ErrReadOnly
	}

	if expired, err := p.expireTrialIfDue(db, &sub); err != nil {
		return err
	} else if expired {
		return ErrTrialExpired
	}

	if sub.Status == models.SUBSCRIPTION_STATUS_EXPIRED {
		return ErrTrialExpired
	}
	if sub.Status == models.SUBSCRIPTION_STATUS_CANCELLED {
		return ErrQuotaExceeded
	}

	if !sub.Unlimited() && sub.DialogsUsed >= sub.DialogsLimit {
		return ErrQuotaExceeded
	}

	return nil
}

// expireTrialIfDue marca trial vencido como expirado + somente leitura.
func (p Policy) expireTrialIfDue(db *gorm.DB, sub *models.Subscription) (bool, error) {
	if sub.Status != models.SUBSCRIPTION_STATUS_TRIAL || sub.TrialEnd == nil {
		return false, nil
	}
	if !p.now().After(*sub.TrialEnd) {
		return false, nil
	}

	err := db.Model(&models.Subscription{}).
		Where("user_id = ?", sub.UserID).
		Updates(map[string]any{
			"status":       models.SUBSCRIPTION_STATUS_EXPIRED,
			"is_read_only": true,
		}).Error
	if err != nil {
		return false, err
	}
	sub.Status = models.SUBSCRIPTION_STATUS_EXPIRED
	sub.IsReadOnly = true
	return true, nil
}

// RecordUsage incrementa o contador de diálogos com um único UPDATE no banco
// (nada de read-modify-write: completions concorrentes do mesmo usuário não
// perdem update).
func (p Policy) RecordUsage(db *gorm.DB, userID int64) error {
	res := db.Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Update("dialogs_used", gorm.Expr("dialogs_used + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := p.EnsureSubscription(db, userID); err != nil {
			return err
		}
		return db.Model(&models.Subscription{}).
			Where("user_id = ?", userID).
			Update("dialogs_used", gorm.Expr("dialogs_used + 1")).Error
	}
	return nil
}

// Remaining devolve quantos diálogos o usuário ainda tem (-1 = sem limite).
func (p Policy) Remaining(db *gorm.DB, userID int64) (int64, error) {
	sub, err := p.EnsureSubscription(db, userID)
	if err != nil {
		return 0, err
	}
	if sub.Unlimited() {
		return -1, nil
	}
	remaining := sub.DialogsLimit - sub.DialogsUsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// RequestSubscription registra o pedido de um tier pago (ativação manual).
func (p Policy) RequestSubscription(db *gorm.DB, userID int64, tier string) (models.Subscription, error) {
	limit, ok := TierLimits[tier]
	if !ok || tier == models.SUBSCRIPTION_TIER_TRIAL {
		return models.Subscription{}, fmt.Errorf("tier inválido: %s", tier)
	}

	sub, err := p.EnsureSubscription(db, userID)
	if err != nil {
		return sub, err
	}

	expires := p.now().AddDate(0, 0, 30)
	err = db.Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"tier":          tier,
			"status":        models.SUBSCRIPTION_STATUS_PENDING,
			"dialogs_limit": limit,
			"expires_at":    &expires,
		}).Error
	if err != nil {
		return sub, err
	}
	return p.EnsureSubscription(db, userID)
}

// ActivateSubscription ativa um tier pago (fluxo manual do admin), zera o
// read-only e emite o evento de assinatura.
func (p Policy) ActivateSubscription(db *gorm.DB, userID int64, tier string) error {
	limit, ok := TierLimits[tier]
	if !ok || tier == models.SUBSCRIPTION_TIER_TRIAL {
		return fmt.Errorf("tier inválido: %s", tier)
	}

	if _, err := p.EnsureSubscription(db, userID); err != nil {
		return err
	}

	expires := p.now().AddDate(0, 0, 30)
	err := db.Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"tier":          tier,
			"status":        models.SUBSCRIPTION_STATUS_ACTIVE,
			"dialogs_limit": limit,
			"expires_at":    &expires,
			"is_read_only":  false,
		}).Error
	if err != nil {
		return err
	}

	return analytics.Track(db, models.EVENT_SUBSCRIPTION_STARTED, userID,
		map[string]any{"tier": tier}, "")
}

// CancelSubscription marca a assinatura como cancelada e emite o evento.
func (p Policy) CancelSubscription(db *gorm.DB, userID int64) error {
	sub, err := p.EnsureSubscription(db, userID)
	if err != nil {
		return err
	}

	err = db.Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Update("status", models.SUBSCRIPTION_STATUS_CANCELLED).Error
	if err != nil {
		return err
	}

	return analytics.Track(db, models.EVENT_SUBSCRIPTION_CANCELLED, userID,
		map[string]any{"tier": sub.Tier}, "")
}
