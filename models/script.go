package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

/************************************************
/**** MARK: QUESTION TYPES ****/
/************************************************/
const QUESTION_TYPE_TEXT = "text"
const QUESTION_TYPE_NUMBER = "number"
const QUESTION_TYPE_CHOICE = "choice"
const QUESTION_TYPE_DATE = "date"

const QUESTION_WEIGHT_DEFAULT = 10
const QUESTION_WEIGHT_MAX = 50

// Question é uma pergunta tipada de um script de qualificação.
// HotValues são as respostas que pontuam Weight no score do lead.
type Question struct {
	ID        string   `json:"id"`
	Order     int      `json:"order"`
	Text      string   `json:"text"`
	Type      string   `json:"type"`
	Choices   []string `json:"choices,omitempty"`
	Mandatory bool     `json:"mandatory"`
	Weight    int      `json:"weight"`
	HotValues []string `json:"hot_values,omitempty"`
}

// Script é um roteiro ordenado de perguntas. As perguntas ficam serializadas
// na coluna questions; use SetQuestions/QuestionList para validar a forma na
// fronteira do banco (nada de blob sem tipo passa por aqui).
type Script struct {
	ID        string     `gorm:"primary_key" json:"id"`
	Name      string     `gorm:"not null" json:"name" form:"name"`
	CreatedBy int64      `gorm:"not null;index" json:"created_by"`
	Questions string     `gorm:"type:text" json:"-"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// ValidateQuestions checa a forma de uma lista de perguntas.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("script precisa de ao menos uma pergunta")
	}
	seen := map[string]bool{}
	for i, q := range questions {
		if strings.TrimSpace(q.ID) == "" {
			return fmt.Errorf("pergunta %d: id é obrigatório", i)
		}
		if seen[q.ID] {
			return fmt.Errorf("pergunta %d: id duplicado (%s)", i, q.ID)
		}
		seen[q.ID] = true
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("pergunta %s: text é obrigatório", q.ID)
		}
		switch q.Type {
		case QUESTION_TYPE_TEXT, QUESTION_TYPE_NUMBER, QUESTION_TYPE_DATE:
		case QUESTION_TYPE_CHOICE:
			if len(q.Choices) == 0 {
				return fmt.Errorf("pergunta %s: choice sem opções", q.ID)
			}
		default:
			return fmt.Errorf("pergunta %s: type inválido (%s)", q.ID, q.Type)
		}
		if q.Weight < 0 || q.Weight > QUESTION_WEIGHT_MAX {
			return fmt.Errorf("pergunta %s: weight fora do intervalo 0..%d", q.ID, QUESTION_WEIGHT_MAX)
		}
	}
	return nil
}

// SetQuestions valida e serializa a lista de perguntas.
func (s *Script) SetQuestions(questions []Question) error {
	if err := ValidateQuestions(questions); err != nil {
		return err
	}
	for i := range questions {
		if questions[i].Weight == 0 {
			questions[i].Weight = QUESTION_WEIGHT_DEFAULT
		}
		questions[i].Order = i
	}
	b, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	s.Questions = string(b)
	return nil
}

// QuestionList desserializa e revalida as perguntas gravadas.
func (s Script) QuestionList() ([]Question, error) {
	if strings.TrimSpace(s.Questions) == "" {
		return nil, fmt.Errorf("script %s sem perguntas", s.ID)
	}
	var questions []Question
	if err := json.Unmarshal([]byte(s.Questions), &questions); err != nil {
		return nil, fmt.Errorf("script %s: questions corrompidas: %w", s.ID, err)
	}
	if err := ValidateQuestions(questions); err != nil {
		return nil, fmt.Errorf("script %s: %w", s.ID, err)
	}
	return questions, nil
}
