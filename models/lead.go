package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

/************************************************
/**** MARK: LEAD SOURCE ****/
/************************************************/
const LEAD_SOURCE_TELEGRAM = "telegram"
const LEAD_SOURCE_SITE = "site"
const LEAD_SOURCE_UPLOADED = "uploaded"

/************************************************
/**** MARK: LEAD STATUS ****/
/************************************************/
const LEAD_STATUS_NEW = "new"
const LEAD_STATUS_QUALIFIED = "qualified"
const LEAD_STATUS_HOT = "hot"
const LEAD_STATUS_FOLLOWUP = "followup"
const LEAD_STATUS_BOOKED = "booked"

// LeadAnswer é a resposta dada a uma pergunta do script.
type LeadAnswer struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
}

// Lead é o resultado persistido de um diálogo completo. As respostas são
// imutáveis depois da criação; status/score/assigned_to podem mudar.
// CalendarEventID e CRMID são preenchidos pelas integrações, não pelo core.
type Lead struct {
	ID              string     `gorm:"primary_key" json:"id"`
	Source          string     `gorm:"not null;default:'telegram'" json:"source"`
	ScriptID        string     `gorm:"not null;index" json:"script_id"`
	Answers         string     `gorm:"type:text" json:"-"`
	LeadScore       int        `gorm:"not null;default:0" json:"lead_score"`
	Status          string     `gorm:"not null;default:'new';index" json:"status"`
	AssignedTo      string     `gorm:"default:''" json:"assigned_to"`
	CalendarEventID string     `gorm:"default:''" json:"calendar_event_id"`
	CRMID           string     `gorm:"column:crm_id;default:''" json:"crm_id"`
	UserID          int64      `gorm:"not null;index" json:"user_id"`
	CreatedAt       *time.Time `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

func ValidLeadStatus(status string) bool {
	switch status {
	case LEAD_STATUS_NEW, LEAD_STATUS_QUALIFIED, LEAD_STATUS_HOT,
		LEAD_STATUS_FOLLOWUP, LEAD_STATUS_BOOKED:
		return true
	}
	return false
}

// SetAnswers serializa o conjunto ordenado de respostas. Só é chamado na
// criação do lead; depois disso as respostas não mudam.
func (l *Lead) SetAnswers(answers []LeadAnswer) error {
	for i, a := range answers {
		if strings.TrimSpace(a.QuestionID) == "" {
			return fmt.Errorf("resposta %d sem question_id", i)
		}
	}
	b, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	l.Answers = string(b)
	return nil
}

// AnswerList desserializa as respostas na ordem do script.
func (l Lead) AnswerList() ([]LeadAnswer, error) {
	if strings.TrimSpace(l.Answers) == "" {
		return nil, nil
	}
	var answers []LeadAnswer
	if err := json.Unmarshal([]byte(l.Answers), &answers); err != nil {
		return nil, fmt.Errorf("lead %s: answers corrompidas: %w", l.ID, err)
	}
	return answers, nil
}
