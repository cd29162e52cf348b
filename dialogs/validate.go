package dialogs

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"calliope/models"
)

// ValidationError é um erro recuperável de resposta: o engine devolve a mesma
// pergunta e nada de estado muda (retry idempotente). Nunca vira erro de
// sistema.
type ValidationError struct {
	QuestionID string `json:"question_id"`
	Reason     string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("resposta inválida para %s: %s", e.QuestionID, e.Reason)
}

var dateLayouts = []string{"2006-01-02", "02.01.2006", "02/01/2006"}

// validateAnswer checa a resposta crua contra o tipo da pergunta e devolve o
// valor normalizado (para choice, a opção canônica do script).
func validateAnswer(q models.Question, raw string) (string, *ValidationError) {
	value := strings.TrimSpace(raw)

	if value == "" {
		if q.Mandatory {
			return "", &ValidationError{QuestionID: q.ID, Reason: "resposta obrigatória"}
		}
		return "", nil
	}

	switch q.Type {
	case models.QUESTION_TYPE_TEXT:
		return value, nil

	case models.QUESTION_TYPE_NUMBER:
		normalized := strings.ReplaceAll(value, ",", ".")
		if _, err := strconv.ParseFloat(normalized, 64); err != nil {
			return "", &ValidationError{QuestionID: q.ID, Reason: "esperava um número"}
		}
		return normalized, nil

	case models.QUESTION_TYPE_DATE:
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, value); err == nil {
				return value, nil
			}
		}
		return "", &ValidationError{QuestionID: q.ID, Reason: "esperava uma data (YYYY-MM-DD ou DD.MM.YYYY)"}

	case models.QUESTION_TYPE_CHOICE:
		for _, choice := range q.Choices {
			if strings.EqualFold(strings.TrimSpace(choice), value) {
				return choice, nil
			}
		}
		return "", &ValidationError{
			QuestionID: q.ID,
			Reason:     "opção inválida, escolha uma: " + strings.Join(q.Choices, " | "),
		}
	}

	return "", &ValidationError{QuestionID: q.ID, Reason: "tipo de pergunta desconhecido"}
}
