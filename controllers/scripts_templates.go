package controllers

import "calliope/models"

// ScriptTemplate é um roteiro pronto de qualificação.
type ScriptTemplate struct {
	Name      string
	Questions []models.Question
}

// ScriptTemplates são os roteiros padrão do produto (imóveis: lançamento e
// revenda), condensados dos roteiros comerciais originais.
var ScriptTemplates = map[string]ScriptTemplate{
	"new_building": {
		Name: "Квартиры в новостройках",
		Questions: []models.Question{
			{
				ID:        "name",
				Text:      "Как к вам обращаться?",
				Type:      models.QUESTION_TYPE_TEXT,
				Mandatory: true,
				Weight:    0,
			},
			{
				ID:        "district",
				Text:      "Какой район вас интересует?",
				Type:      models.QUESTION_TYPE_CHOICE,
				Choices:   []string{"Центр", "СЗАО", "САО", "Другой"},
				Mandatory: true,
				Weight:    25,
				HotValues: []string{"Центр", "СЗАО", "САО"},
			},
			{
				ID:        "budget",
				Text:      "Какой у вас бюджет?",
				Type:      models.QUESTION_TYPE_CHOICE,
				Choices:   []string{"До 8 млн", "8-12 млн", "12-20 млн", "Свыше 20 млн"},
				Mandatory: true,
				Weight:    30,
				HotValues: []string{"8-12 млн", "12-20 млн", "Свыше 20 млн"},
			},
			{
				ID:        "timing",
				Text:      "Когда планируете покупку?",
				Type:      models.QUESTION_TYPE_CHOICE,
				Choices:   []string{"В течение месяца", "1-3 месяца", "3-6 месяцев", "Пока присматриваюсь"},
				Mandatory: true,
				Weight:    20,
				HotValues: []string{"В течение месяца", "1-3 месяца"},
			},
			{
				ID:        "mortgage",
				Text:      "Ипотека одобрена?",
				Type:      models.QUESTION_TYPE_CHOICE,
				Choices:   []string{"Да, уже одобрена", "Да, планирую оформить", "Нет, покупаю за наличные"},
				Mandatory: true,
				Weight:    15,
				HotValues: []string{"Да, уже одобрена", "Да, планирую оформить"},
			},
			{
				ID:        "phone",
				Text:      "Оставьте телефон для связи",
				Type:      models.QUESTION_TYPE_TEXT,
				Mandatory: true,
				Weight:    0,
			},
		},
	},
	"resale": {
		Name: "Вторичная недвижимость",
		Questions: []models.Question{
			{
				ID:        "name",
				Text:      "Как к вам обращаться?",
				Type:      models.QUESTION_TYPE_TEXT,
				Mandatory: true,
				Weight:    0,
			},
			{
				ID:        "district",
				Text:      "Какой район вас интересует?",
				Type:      models.QUESTION_TYPE_CHOICE,
				Choices:   []string{"Центр", "СЗАО", "САО", "Другой"},
				Mandatory: true,
				Weight:    20,
				HotValues: []string{"Центр", "СЗАО", "САО"},
			},
			{
				ID:        "budget",
				Text:      "Какой у вас бюджет?",
				Type:      models.QUESTION_TYPE_CHOICE,
				Choices:   []string{"До 12 млн", "12-18 млн", "18-25 млн", "Свыше 25 млн"},
				Mandatory: true,
				Weight:    25,
				HotValues: []string{"12-18 млн", "18-25 млн", "Свыше 25 млн"},
			},
			{
				ID:        "urgency",
				Text:      "Насколько срочно нужна квартира?",
				Type:      models.QUESTION_TYPE_CHOICE,
				Choices:   []string{"Очень срочно (до месяца)", "Срочно (1-2 месяца)", "Не срочно"},
				Mandatory: true,
				Weight:    20,
				HotValues: []string{"Очень срочно (до месяца)", "Срочно (1-2 месяца)"},
			},
			{
				ID:        "payment",
				Text:      "Какая форма оплаты?",
				Type:      models.QUESTION_TYPE_CHOICE,
				Choices:   []string{"Наличными", "Ипотека", "Обмен"},
				Mandatory: true,
				Weight:    10,
				HotValues: []string{"Наличными", "Ипотека"},
			},
			{
				ID:        "phone",
				Text:      "Оставьте телефон для связи",
				Type:      models.QUESTION_TYPE_TEXT,
				Mandatory: true,
				Weight:    0,
			},
		},
	},
}
