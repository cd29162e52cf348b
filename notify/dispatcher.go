package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"calliope/analytics"
	"calliope/models"

	"github.com/jinzhu/gorm"
)

// Channel é o canal externo de entrega (Telegram em produção).
type Channel interface {
	SendText(ctx context.Context, chatID string, text string) error
}

// Dispatcher empurra leads quentes para o canal dos gestores, gravando uma
// HotLeadNotification por (lead, canal). Falha de entrega nunca desfaz o lead
// nem o score: a linha fica como "failed" e o worker tenta de novo.
type Dispatcher struct {
	Channel   Channel
	ChannelID string
}

func NewDispatcher(channel Channel, channelID string) *Dispatcher {
	return &Dispatcher{Channel: channel, ChannelID: channelID}
}

// Dispatch envia a notificação de lead quente. Dedup: se já existe uma linha
// "sent" para (lead, canal), não envia de novo; se existe "failed", a mesma
// linha é atualizada (nunca inserimos duplicata para o mesmo canal).
func (d *Dispatcher) Dispatch(ctx context.Context, db *gorm.DB, lead models.Lead) error {
	if d.ChannelID == "" {
		log.Printf("notify: managers channel not configured, skipping lead %s", lead.ID)
		return nil
	}

	var existing models.HotLeadNotification
	err := db.Where("lead_id = ? AND channel_id = ?", lead.ID, d.ChannelID).
		First(&existing).Error
	if err == nil && existing.Status == models.NOTIFICATION_STATUS_SENT {
		return nil
	}
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return err
	}

	sendErr := d.send(ctx, lead)

	now := time.Now().UTC()
	status := models.NOTIFICATION_STATUS_SENT
	lastError := ""
	var sentAt *time.Time
	if sendErr != nil {
		status = models.NOTIFICATION_STATUS_FAILED
		lastError = sendErr.Error()
	} else {
		sentAt = &now
	}

	if existing.ID > 0 {
		err = db.Model(&models.HotLeadNotification{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"status":     status,
				"sent_at":    sentAt,
				"last_error": lastError,
			}).Error
	} else {
		record := models.HotLeadNotification{
			LeadID:    lead.ID,
			UserID:    lead.UserID,
			ChannelID: d.ChannelID,
			SentAt:    sentAt,
			Status:    status,
			LastError: lastError,
		}
		err = db.Create(&record).Error
	}
	if err != nil {
		return err
	}

	if sendErr != nil {
		log.Printf("notify: hot lead %s delivery failed: %v", lead.ID, sendErr)
		return sendErr
	}

	if err := analytics.Track(db, models.EVENT_LEAD_HOT_PUSH, lead.UserID,
		map[string]any{"lead_id": lead.ID, "channel_id": d.ChannelID}, ""); err != nil {
		log.Printf("notify: track lead_hot_push error: %v", err)
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, lead models.Lead) error {
	if d.Channel == nil {
		return fmt.Errorf("notification channel not configured")
	}
	answers, err := lead.AnswerList()
	if err != nil {
		return err
	}
	return d.Channel.SendText(ctx, d.ChannelID, FormatHotLeadMessage(lead, answers))
}

// FormatHotLeadMessage monta a mensagem do canal dos gestores.
func FormatHotLeadMessage(lead models.Lead, answers []models.LeadAnswer) string {
	name := "Unknown"
	if len(answers) > 0 && strings.TrimSpace(answers[0].Value) != "" {
		name = answers[0].Value
	}

	var b strings.Builder
	b.WriteString("🔥 *ГОРЯЧИЙ ЛИД!*\n\n")
	fmt.Fprintf(&b, "*Контакт:* %s\n", name)
	fmt.Fprintf(&b, "*Телефон:* %s\n", extractByKeyword(answers, "phone", "телефон"))
	fmt.Fprintf(&b, "*Email:* %s\n", extractByKeyword(answers, "email", "почта"))
	fmt.Fprintf(&b, "*Score:* %d/100\n", lead.LeadScore)
	fmt.Fprintf(&b, "*Источник:* %s\n", lead.Source)
	if lead.CreatedAt != nil {
		fmt.Fprintf(&b, "*Время:* %s\n", lead.CreatedAt.Format("15:04"))
	}
	return b.String()
}

// extractByKeyword acha a resposta cujo question_id contém uma das palavras
// chave (ex: "phone"/"телефон").
func extractByKeyword(answers []models.LeadAnswer, keywords ...string) string {
	for _, a := range answers {
		id := strings.ToLower(a.QuestionID)
		for _, kw := range keywords {
			if strings.Contains(id, kw) {
				return a.Value
			}
		}
	}
	return "Не указан"
}
