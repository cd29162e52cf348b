package models

import (
	"strings"
	"testing"
)

func validQuestions() []Question {
	return []Question{
		{ID: "name", Text: "Как вас зовут?", Type: QUESTION_TYPE_TEXT, Mandatory: true},
		{ID: "budget", Text: "Бюджет?", Type: QUESTION_TYPE_CHOICE,
			Choices: []string{"До 5 млн", "Более 10 млн"}, Weight: 30},
	}
}

func TestValidateQuestionsRejectsBadShapes(t *testing.T) {
	cases := []struct {
		name      string
		questions []Question
		wantErr   string
	}{
		{"vazio", nil, "ao menos uma"},
		{"sem id", []Question{{Text: "x", Type: QUESTION_TYPE_TEXT}}, "id é obrigatório"},
		{"id duplicado", []Question{
			{ID: "a", Text: "x", Type: QUESTION_TYPE_TEXT},
			{ID: "a", Text: "y", Type: QUESTION_TYPE_TEXT},
		}, "duplicado"},
		{"sem texto", []Question{{ID: "a", Type: QUESTION_TYPE_TEXT}}, "text é obrigatório"},
		{"tipo inválido", []Question{{ID: "a", Text: "x", Type: "slider"}}, "type inválido"},
		{"choice sem opções", []Question{{ID: "a", Text: "x", Type: QUESTION_TYPE_CHOICE}}, "sem opções"},
		{"weight negativo", []Question{{ID: "a", Text: "x", Type: QUESTION_TYPE_TEXT, Weight: -1}}, "weight"},
		{"weight acima do teto", []Question{{ID: "a", Text: "x", Type: QUESTION_TYPE_TEXT, Weight: 51}}, "weight"},
	}

	for _, tc := range cases {
		err := ValidateQuestions(tc.questions)
		if err == nil {
			t.Errorf("%s: esperava erro", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: erro %q não contém %q", tc.name, err, tc.wantErr)
		}
	}

	if err := ValidateQuestions(validQuestions()); err != nil {
		t.Fatalf("perguntas válidas rejeitadas: %v", err)
	}
}

func TestSetQuestionsAppliesDefaults(t *testing.T) {
	var s Script
	if err := s.SetQuestions(validQuestions()); err != nil {
		t.Fatalf("SetQuestions: %v", err)
	}

	questions, err := s.QuestionList()
	if err != nil {
		t.Fatalf("QuestionList: %v", err)
	}
	if questions[0].Weight != QUESTION_WEIGHT_DEFAULT {
		t.Fatalf("weight default = %d, esperava %d", questions[0].Weight, QUESTION_WEIGHT_DEFAULT)
	}
	if questions[1].Weight != 30 {
		t.Fatalf("weight explícito mudou: %d", questions[1].Weight)
	}
	for i, q := range questions {
		if q.Order != i {
			t.Fatalf("order[%d] = %d", i, q.Order)
		}
	}
}

func TestQuestionListRejectsCorruptedData(t *testing.T) {
	s := Script{ID: "s1", Questions: "{nope"}
	if _, err := s.QuestionList(); err == nil {
		t.Fatal("JSON corrompido deveria falhar")
	}

	empty := Script{ID: "s2"}
	if _, err := empty.QuestionList(); err == nil {
		t.Fatal("script sem perguntas deveria falhar")
	}
}

func TestLeadAnswersRoundTrip(t *testing.T) {
	var lead Lead
	if err := lead.SetAnswers([]LeadAnswer{
		{QuestionID: "name", Value: "Анна"},
		{QuestionID: "", Value: "x"},
	}); err == nil {
		t.Fatal("resposta sem question_id deveria falhar")
	}

	if err := lead.SetAnswers([]LeadAnswer{
		{QuestionID: "name", Value: "Анна"},
		{QuestionID: "budget", Value: "До 5 млн"},
	}); err != nil {
		t.Fatalf("SetAnswers: %v", err)
	}
	answers, err := lead.AnswerList()
	if err != nil {
		t.Fatalf("AnswerList: %v", err)
	}
	if len(answers) != 2 || answers[1].Value != "До 5 млн" {
		t.Fatalf("answers = %+v", answers)
	}
}
