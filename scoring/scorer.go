package scoring

import (
	"strings"

	"calliope/models"
)

// Defaults dos cortes de score. Os valores efetivos vêm da configuração.
const DEFAULT_HOT_THRESHOLD = 70
const DEFAULT_WARM_LOW = 40
const DEFAULT_WARM_HIGH = 69

// Config carrega os cortes de classificação. Score >= HotThreshold vira
// "hot"; dentro de [WarmLow, WarmHigh] vira "qualified"; o resto fica "new".
type Config struct {
	HotThreshold int
	WarmLow      int
	WarmHigh     int
}

func DefaultConfig() Config {
	return Config{
		HotThreshold: DEFAULT_HOT_THRESHOLD,
		WarmLow:      DEFAULT_WARM_LOW,
		WarmHigh:     DEFAULT_WARM_HIGH,
	}
}

// Score soma o peso de cada pergunta cuja resposta bate com um dos
// hot_values. Função pura: mesmo (perguntas, respostas) dá sempre o mesmo
// score, sem aleatoriedade escondida.
func Score(questions []models.Question, answers []models.LeadAnswer) int {
	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	total := 0
	for _, ans := range answers {
		q, ok := byID[ans.QuestionID]
		if !ok || len(q.HotValues) == 0 {
			continue
		}
		value := strings.ToLower(strings.TrimSpace(ans.Value))
		for _, hv := range q.HotValues {
			if value == strings.ToLower(strings.TrimSpace(hv)) {
				if q.Weight > 0 {
					total += q.Weight
				}
				break
			}
		}
	}
	return total
}

// Bucket classifica o score num status de lead.
func (c Config) Bucket(score int) string {
	if score >= c.HotThreshold {
		return models.LEAD_STATUS_HOT
	}
	if score >= c.WarmLow && score <= c.WarmHigh {
		return models.LEAD_STATUS_QUALIFIED
	}
	return models.LEAD_STATUS_NEW
}
