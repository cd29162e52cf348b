package dialogs

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"calliope/billing"
	dbpkg "calliope/db"
	"calliope/models"
	"calliope/notify"
	"calliope/scoring"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := gorm.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	// uma conexão só: evita SQLITE_BUSY nos testes com escrita concorrente
	conn.DB().SetMaxOpenConns(1)
	dbpkg.Migrate(conn)
	return conn
}

func newTestEngine() *Engine {
	policy := billing.NewPolicy(14, 50)
	return NewEngine(policy, scoring.DefaultConfig(), nil, 30*time.Minute)
}

func createScript(t *testing.T, conn *gorm.DB, questions []models.Question) string {
	t.Helper()
	script := models.Script{ID: uuid.NewString(), Name: "roteiro de teste", CreatedBy: 1}
	if err := script.SetQuestions(questions); err != nil {
		t.Fatalf("SetQuestions: %v", err)
	}
	if err := conn.Create(&script).Error; err != nil {
		t.Fatalf("create script: %v", err)
	}
	return script.ID
}

func threeQuestions() []models.Question {
	return []models.Question{
		{ID: "name", Text: "Как вас зовут?", Type: models.QUESTION_TYPE_TEXT, Mandatory: true},
		{ID: "budget", Text: "Какой бюджет?", Type: models.QUESTION_TYPE_CHOICE,
			Choices: []string{"До 5 млн", "Более 10 млн"}, Mandatory: true,
			Weight: 30, HotValues: []string{"Более 10 млн"}},
		{ID: "phone", Text: "Телефон?", Type: models.QUESTION_TYPE_TEXT, Mandatory: true},
	}
}

func countEvents(t *testing.T, conn *gorm.DB, eventType string, userID int64) int {
	t.Helper()
	var n int
	if err := conn.Model(&models.AnalyticsEvent{}).
		Where("event_type = ? AND user_id = ?", eventType, userID).
		Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", eventType, err)
	}
	return n
}

func TestDialogHappyPath(t *testing.T) {
	conn := openTestDB(t)
	e := newTestEngine()
	scriptID := createScript(t, conn, threeQuestions())

	start, err := e.Start(conn, 1, scriptID, models.LEAD_SOURCE_SITE, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if start.Total != 3 || start.Prompt.ID != "name" {
		t.Fatalf("start = %+v", start)
	}

	r1, err := e.AcceptAnswer(conn, start.SessionID, "Анна")
	if err != nil {
		t.Fatalf("turno 1: %v", err)
	}
	if r1.Completed || r1.NextPrompt.ID != "budget" || r1.Answered != 1 {
		t.Fatalf("turno 1 = %+v", r1)
	}

	r2, err := e.AcceptAnswer(conn, start.SessionID, "До 5 млн")
	if err != nil {
		t.Fatalf("turno 2: %v", err)
	}
	if r2.Completed || r2.NextPrompt.ID != "phone" {
		t.Fatalf("turno 2 = %+v", r2)
	}

	r3, err := e.AcceptAnswer(conn, start.SessionID, "+79990001122")
	if err != nil {
		t.Fatalf("turno 3: %v", err)
	}
	if !r3.Completed || r3.LeadID == "" {
		t.Fatalf("turno 3 = %+v", r3)
	}
	if r3.Score != 0 || r3.Bucket != models.LEAD_STATUS_NEW {
		t.Fatalf("score/bucket = %d/%s", r3.Score, r3.Bucket)
	}

	var lead models.Lead
	if err := conn.Where("id = ?", r3.LeadID).First(&lead).Error; err != nil {
		t.Fatalf("lead não persistido: %v", err)
	}
	answers, err := lead.AnswerList()
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if len(answers) != 3 || answers[0].QuestionID != "name" ||
		answers[1].QuestionID != "budget" || answers[2].QuestionID != "phone" {
		t.Fatalf("answers fora de ordem: %+v", answers)
	}
	if answers[1].Value != "До 5 млн" {
		t.Fatalf("choice não canonicalizada: %q", answers[1].Value)
	}

	for _, eventType := range []string{
		models.EVENT_DIALOG_STARTED,
		models.EVENT_DIALOG_COMPLETED,
		models.EVENT_LEAD_CREATED,
		models.EVENT_LEAD_SCORED,
	} {
		if n := countEvents(t, conn, eventType, 1); n != 1 {
			t.Fatalf("%s = %d eventos, esperava 1", eventType, n)
		}
	}

	var sub models.Subscription
	if err := conn.Where("user_id = ?", 1).First(&sub).Error; err != nil {
		t.Fatalf("sub: %v", err)
	}
	if sub.DialogsUsed != 1 {
		t.Fatalf("dialogs_used = %d, esperava 1", sub.DialogsUsed)
	}

	if e.ActiveSessions() != 0 {
		t.Fatalf("sessão terminal ainda registrada")
	}

	// diálogo fechado não aceita mais respostas
	if _, err := e.AcceptAnswer(conn, start.SessionID, "de novo"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("esperava ErrSessionNotFound, veio %v", err)
	}
}

func TestValidationDoesNotAdvance(t *testing.T) {
	conn := openTestDB(t)
	e := newTestEngine()
	scriptID := createScript(t, conn, []models.Question{
		{ID: "age", Text: "Idade?", Type: models.QUESTION_TYPE_NUMBER, Mandatory: true},
		{ID: "name", Text: "Nome?", Type: models.QUESTION_TYPE_TEXT, Mandatory: true},
	})

	start, err := e.Start(conn, 2, scriptID, models.LEAD_SOURCE_SITE, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	r, err := e.AcceptAnswer(conn, start.SessionID, "trinta e dois")
	if err != nil {
		t.Fatalf("turno inválido: %v", err)
	}
	if r.Validation == nil || r.Validation.QuestionID != "age" {
		t.Fatalf("esperava erro de validação, veio %+v", r)
	}
	if r.Answered != 0 || r.NextPrompt.ID != "age" {
		t.Fatalf("ponteiro avançou com resposta inválida: %+v", r)
	}

	// retry com resposta válida segue em frente
	r, err = e.AcceptAnswer(conn, start.SessionID, "32")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if r.Validation != nil || r.Answered != 1 || r.NextPrompt.ID != "name" {
		t.Fatalf("retry = %+v", r)
	}
}

func TestStartDeniedByQuotaLeavesNoTrace(t *testing.T) {
	conn := openTestDB(t)
	policy := billing.NewPolicy(14, 1)
	e := NewEngine(policy, scoring.DefaultConfig(), nil, 30*time.Minute)
	scriptID := createScript(t, conn, threeQuestions())

	// consome o único diálogo do limite
	start, err := e.Start(conn, 4, scriptID, models.LEAD_SOURCE_SITE, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, answer := range []string{"Анна", "До 5 млн", "+79990001122"} {
		if _, err := e.AcceptAnswer(conn, start.SessionID, answer); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}

	startedBefore := countEvents(t, conn, models.EVENT_DIALOG_STARTED, 4)

	_, err = e.Start(conn, 4, scriptID, models.LEAD_SOURCE_SITE, "")
	if !errors.Is(err, billing.ErrQuotaExceeded) {
		t.Fatalf("esperava ErrQuotaExceeded, veio %v", err)
	}
	if e.ActiveSessions() != 0 {
		t.Fatalf("start negado registrou sessão")
	}
	if n := countEvents(t, conn, models.EVENT_DIALOG_STARTED, 4); n != startedBefore {
		t.Fatalf("start negado emitiu evento")
	}
}

func TestStartMissingScript(t *testing.T) {
	conn := openTestDB(t)
	e := newTestEngine()

	if _, err := e.Start(conn, 6, "no-such-script", models.LEAD_SOURCE_SITE, ""); err == nil {
		t.Fatal("script inexistente deveria falhar")
	}
	if e.ActiveSessions() != 0 {
		t.Fatalf("sessão registrada para script inexistente")
	}
}

func TestCancelEmitsAbandonedAndSkipsLead(t *testing.T) {
	conn := openTestDB(t)
	e := newTestEngine()
	scriptID := createScript(t, conn, threeQuestions())

	start, err := e.Start(conn, 8, scriptID, models.LEAD_SOURCE_SITE, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.AcceptAnswer(conn, start.SessionID, "Анна"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if err := e.Cancel(conn, start.SessionID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if n := countEvents(t, conn, models.EVENT_DIALOG_ABANDONED, 8); n != 1 {
		t.Fatalf("dialog_abandoned = %d, esperava 1", n)
	}
	var leads int
	if err := conn.Model(&models.Lead{}).Where("user_id = ?", 8).Count(&leads).Error; err != nil {
		t.Fatalf("count leads: %v", err)
	}
	if leads != 0 {
		t.Fatalf("cancelamento criou lead")
	}
	var sub models.Subscription
	if err := conn.Where("user_id = ?", 8).First(&sub).Error; err != nil {
		t.Fatalf("sub: %v", err)
	}
	if sub.DialogsUsed != 0 {
		t.Fatalf("cancelamento consumiu quota: %d", sub.DialogsUsed)
	}
}

func TestCompletionCancelRaceSettlesOnce(t *testing.T) {
	conn := openTestDB(t)
	e := newTestEngine()
	scriptID := createScript(t, conn, []models.Question{
		{ID: "q1", Text: "Pergunta única", Type: models.QUESTION_TYPE_TEXT, Mandatory: true},
	})

	for i := 0; i < 10; i++ {
		start, err := e.Start(conn, 10, scriptID, models.LEAD_SOURCE_SITE, "")
		if err != nil {
			t.Fatalf("start: %v", err)
		}

		var wg sync.WaitGroup
		var completed, cancelled bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			r, err := e.AcceptAnswer(conn, start.SessionID, "resposta final")
			if err == nil && r.Completed {
				completed = true
			}
		}()
		go func() {
			defer wg.Done()
			if err := e.Cancel(conn, start.SessionID); err == nil {
				cancelled = true
			}
		}()
		wg.Wait()

		if completed == cancelled {
			t.Fatalf("rodada %d: completed=%v cancelled=%v, esperava exatamente um", i, completed, cancelled)
		}
	}

	var leads int
	if err := conn.Model(&models.Lead{}).Where("user_id = ?", 10).Count(&leads).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	completedEvents := countEvents(t, conn, models.EVENT_DIALOG_COMPLETED, 10)
	abandonedEvents := countEvents(t, conn, models.EVENT_DIALOG_ABANDONED, 10)
	if leads != completedEvents {
		t.Fatalf("leads=%d != completed=%d", leads, completedEvents)
	}
	if completedEvents+abandonedEvents != 10 {
		t.Fatalf("desfechos = %d, esperava 10", completedEvents+abandonedEvents)
	}
}

func TestUsersDoNotShareSessions(t *testing.T) {
	conn := openTestDB(t)
	e := newTestEngine()
	scriptID := createScript(t, conn, threeQuestions())

	a, err := e.Start(conn, 21, scriptID, models.LEAD_SOURCE_TELEGRAM, "chat-a")
	if err != nil {
		t.Fatalf("start a: %v", err)
	}
	b, err := e.Start(conn, 22, scriptID, models.LEAD_SOURCE_TELEGRAM, "chat-a")
	if err != nil {
		t.Fatalf("start b: %v", err)
	}
	if a.SessionID == b.SessionID {
		t.Fatal("sessões compartilhadas entre usuários")
	}

	// o índice de chat é por usuário
	if id, ok := e.FindByChat(21, "chat-a"); !ok || id != a.SessionID {
		t.Fatalf("FindByChat(21) = %s/%v", id, ok)
	}
	if id, ok := e.FindByChat(22, "chat-a"); !ok || id != b.SessionID {
		t.Fatalf("FindByChat(22) = %s/%v", id, ok)
	}
}

func TestAbandonIdleReapsOnlyStale(t *testing.T) {
	conn := openTestDB(t)
	e := newTestEngine()
	scriptID := createScript(t, conn, threeQuestions())

	stale, err := e.Start(conn, 30, scriptID, models.LEAD_SOURCE_SITE, "")
	if err != nil {
		t.Fatalf("start stale: %v", err)
	}

	// relógio injetado: a segunda sessão nasce "agora", a primeira ficou para trás
	base := time.Now()
	e.now = func() time.Time { return base.Add(time.Hour) }

	fresh, err := e.Start(conn, 31, scriptID, models.LEAD_SOURCE_SITE, "")
	if err != nil {
		t.Fatalf("start fresh: %v", err)
	}

	if n := e.AbandonIdle(conn); n != 1 {
		t.Fatalf("reaper encerrou %d sessões, esperava 1", n)
	}
	if _, err := e.AcceptAnswer(conn, stale.SessionID, "oi"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("sessão idle ainda viva: %v", err)
	}
	if _, err := e.AcceptAnswer(conn, fresh.SessionID, "Анна"); err != nil {
		t.Fatalf("sessão fresca morreu: %v", err)
	}
	if n := countEvents(t, conn, models.EVENT_DIALOG_ABANDONED, 30); n != 1 {
		t.Fatalf("dialog_abandoned = %d", n)
	}
}

type recordingChannel struct {
	mu    sync.Mutex
	sends []string
	fail  bool
}

func (r *recordingChannel) SendText(ctx context.Context, chatID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("channel down")
	}
	r.sends = append(r.sends, text)
	return nil
}

func TestHotLeadDispatchedExactlyOnce(t *testing.T) {
	conn := openTestDB(t)
	channel := &recordingChannel{}
	dispatcher := notify.NewDispatcher(channel, "-100500")
	policy := billing.NewPolicy(14, 50)
	e := NewEngine(policy, scoring.DefaultConfig(), dispatcher, 30*time.Minute)

	scriptID := createScript(t, conn, []models.Question{
		{ID: "budget", Text: "Бюджет?", Type: models.QUESTION_TYPE_TEXT, Mandatory: true,
			Weight: 40, HotValues: []string{"Более 10 млн"}},
		{ID: "timing", Text: "Когда?", Type: models.QUESTION_TYPE_TEXT, Mandatory: true,
			Weight: 35, HotValues: []string{"В этом месяце"}},
	})

	start, err := e.Start(conn, 40, scriptID, models.LEAD_SOURCE_TELEGRAM, "chat-40")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.AcceptAnswer(conn, start.SessionID, "Более 10 млн"); err != nil {
		t.Fatalf("turno 1: %v", err)
	}
	r, err := e.AcceptAnswer(conn, start.SessionID, "В этом месяце")
	if err != nil {
		t.Fatalf("turno 2: %v", err)
	}
	if !r.Completed || r.Bucket != models.LEAD_STATUS_HOT || r.Score != 75 {
		t.Fatalf("resultado = %+v", r)
	}

	channel.mu.Lock()
	sends := len(channel.sends)
	channel.mu.Unlock()
	if sends != 1 {
		t.Fatalf("envios = %d, esperava 1", sends)
	}

	var rows []models.HotLeadNotification
	if err := conn.Where("lead_id = ?", r.LeadID).Find(&rows).Error; err != nil {
		t.Fatalf("notificações: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != models.NOTIFICATION_STATUS_SENT {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestCustomHotThreshold(t *testing.T) {
	conn := openTestDB(t)
	channel := &recordingChannel{}
	dispatcher := notify.NewDispatcher(channel, "-100500")
	policy := billing.NewPolicy(14, 50)
	scorer := scoring.Config{HotThreshold: 80, WarmLow: 50, WarmHigh: 79}
	e := NewEngine(policy, scorer, dispatcher, 30*time.Minute)

	scriptID := createScript(t, conn, []models.Question{
		{ID: "budget", Text: "Бюджет?", Type: models.QUESTION_TYPE_TEXT, Mandatory: true,
			Weight: 45, HotValues: []string{"Свыше 20 млн"}},
		{ID: "timing", Text: "Когда?", Type: models.QUESTION_TYPE_TEXT, Mandatory: true,
			Weight: 40, HotValues: []string{"В этом месяце"}},
	})

	start, err := e.Start(conn, 41, scriptID, models.LEAD_SOURCE_SITE, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.AcceptAnswer(conn, start.SessionID, "Свыше 20 млн"); err != nil {
		t.Fatalf("turno 1: %v", err)
	}
	r, err := e.AcceptAnswer(conn, start.SessionID, "В этом месяце")
	if err != nil {
		t.Fatalf("turno 2: %v", err)
	}
	if r.Score != 85 || r.Bucket != models.LEAD_STATUS_HOT {
		t.Fatalf("score/bucket = %d/%s, esperava 85/hot", r.Score, r.Bucket)
	}

	channel.mu.Lock()
	defer channel.mu.Unlock()
	if len(channel.sends) != 1 {
		t.Fatalf("envios = %d, esperava exatamente 1", len(channel.sends))
	}
}
