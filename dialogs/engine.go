package dialogs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"calliope/analytics"
	"calliope/billing"
	"calliope/models"
	"calliope/notify"
	"calliope/scoring"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

var (
	ErrSessionNotFound = errors.New("dialog session not found")
	ErrDialogFinished  = errors.New("dialog already finished")
)

/************************************************
/**** MARK: SESSION STATES ****/
/************************************************/
const (
	stateInProgress = iota + 1
	stateCompleted
	stateAbandoned
)

// session é uma instância de diálogo em andamento. O mutex serializa as
// respostas da instância: nunca duas respostas do mesmo diálogo em paralelo.
// questions é um snapshot do script no momento do start: edição posterior do
// script não afeta diálogos já iniciados.
type session struct {
	mu sync.Mutex

	id        string
	userID    int64
	scriptID  string
	source    string
	chatKey   string
	questions []models.Question
	answers   []models.LeadAnswer
	index     int
	state     int
	updatedAt time.Time
}

// Engine executa os diálogos de qualificação: uma máquina de estados por
// sessão, com paralelismo total entre sessões de usuários diferentes.
type Engine struct {
	mu       sync.RWMutex
	sessions map[string]*session
	byChat   map[string]string // "userID:chatKey" -> sessionID ativo

	policy     billing.Policy
	scorer     scoring.Config
	dispatcher *notify.Dispatcher

	idleTimeout                 time.Duration
	blockCompletionWhenReadOnly bool

	now func() time.Time
}

func NewEngine(policy billing.Policy, scorer scoring.Config, dispatcher *notify.Dispatcher, idleTimeout time.Duration) *Engine {
	return &Engine{
		sessions:    map[string]*session{},
		byChat:      map[string]string{},
		policy:      policy,
		scorer:      scorer,
		dispatcher:  dispatcher,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// SetBlockCompletionWhenReadOnly liga a política opcional de também travar a
// conclusão de diálogos já iniciados quando a assinatura fica read-only
// (padrão: só bloqueia starts novos).
func (e *Engine) SetBlockCompletionWhenReadOnly(v bool) {
	e.blockCompletionWhenReadOnly = v
}

// StartResult é a resposta de um start aceito.
type StartResult struct {
	SessionID string          `json:"session_id"`
	Prompt    models.Question `json:"prompt"`
	Total     int             `json:"total"`
}

// TurnResult é a resposta de um turno: ou a próxima pergunta, ou o sinal de
// conclusão, ou um erro de validação (re-prompt da mesma pergunta).
type TurnResult struct {
	SessionID  string           `json:"session_id"`
	Completed  bool             `json:"completed"`
	LeadID     string           `json:"lead_id,omitempty"`
	Score      int              `json:"score,omitempty"`
	Bucket     string           `json:"bucket,omitempty"`
	NextPrompt *models.Question `json:"next_prompt,omitempty"`
	Answered   int              `json:"answered"`
	Total      int              `json:"total"`
	Validation *ValidationError `json:"validation,omitempty"`
}

// Start cria uma instância de diálogo para o script. A recusa de quota
// acontece antes de existir qualquer registro: diálogo negado não deixa
// rastro. Script ausente/corrompido falha só este start.
func (e *Engine) Start(db *gorm.DB, userID int64, scriptID, source, chatKey string) (*StartResult, error) {
	var script models.Script
	if err := db.Where("id = ?", scriptID).First(&script).Error; err != nil {
		return nil, fmt.Errorf("script %s: %w", scriptID, err)
	}
	questions, err := script.QuestionList()
	if err != nil {
		return nil, err
	}

	if err := e.policy.CanStart(db, userID); err != nil {
		return nil, err
	}

	s := &session{
		id:        uuid.NewString(),
		userID:    userID,
		scriptID:  scriptID,
		source:    source,
		chatKey:   chatKey,
		questions: questions,
		state:     stateInProgress,
		updatedAt: e.now(),
	}

	e.mu.Lock()
	e.sessions[s.id] = s
	if chatKey != "" {
		e.byChat[chatIndexKey(userID, chatKey)] = s.id
	}
	e.mu.Unlock()

	if err := analytics.Track(db, models.EVENT_DIALOG_STARTED, userID,
		map[string]any{"script_id": scriptID, "source": source}, s.id); err != nil {
		log.Printf("dialogs: track dialog_started error: %v", err)
	}

	return &StartResult{
		SessionID: s.id,
		Prompt:    questions[0],
		Total:     len(questions),
	}, nil
}

// AcceptAnswer processa um turno do diálogo. Validação que falha devolve a
// mesma pergunta sem avançar o ponteiro; a última resposta válida fecha o
// diálogo e dispara, nessa ordem: criação do lead, eventos de conclusão,
// consumo de quota e o scorer. Falha de persistência deixa o turno onde
// estava (retry seguro, sem mutação parcial).
func (e *Engine) AcceptAnswer(db *gorm.DB, sessionID, rawInput string) (*TurnResult, error) {
	s, err := e.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	result, lead, err := e.acceptTurn(db, s, rawInput)
	if err != nil {
		return nil, err
	}

	// O push de lead quente roda fora do mutex da sessão: ela já é terminal
	// nesse ponto e um Cancel concorrente não deve esperar a rede.
	if lead != nil {
		e.dispatchIfHot(db, *lead)
	}
	return result, nil
}

// acceptTurn segura o mutex da sessão do começo ao fim do turno. Devolve o
// lead quando o turno fechou o diálogo.
func (e *Engine) acceptTurn(db *gorm.DB, s *session, rawInput string) (*TurnResult, *models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateInProgress {
		return nil, nil, ErrDialogFinished
	}

	total := len(s.questions)
	q := s.questions[s.index]

	value, verr := validateAnswer(q, rawInput)
	s.updatedAt = e.now()
	if verr != nil {
		prompt := q
		return &TurnResult{
			SessionID:  s.id,
			NextPrompt: &prompt,
			Answered:   s.index,
			Total:      total,
			Validation: verr,
		}, nil, nil
	}

	answer := models.LeadAnswer{QuestionID: q.ID, Value: value}

	if s.index+1 < total {
		s.answers = append(s.answers, answer)
		s.index++
		prompt := s.questions[s.index]
		return &TurnResult{
			SessionID:  s.id,
			NextPrompt: &prompt,
			Answered:   s.index,
			Total:      total,
		}, nil, nil
	}

	// Última resposta: tudo ou nada. O estado em memória só avança depois que
	// o banco confirmou, então um erro aqui deixa a mesma pergunta pendente.
	answers := append(append([]models.LeadAnswer{}, s.answers...), answer)
	lead, err := e.complete(db, s, answers)
	if err != nil {
		return nil, nil, err
	}

	s.answers = answers
	s.index = total
	s.state = stateCompleted
	e.forget(s)

	return &TurnResult{
		SessionID: s.id,
		Completed: true,
		LeadID:    lead.ID,
		Score:     lead.LeadScore,
		Bucket:    lead.Status,
		Answered:  total,
		Total:     total,
	}, lead, nil
}

// complete persiste o desfecho do diálogo numa transação só: lead + eventos +
// incremento de uso.
func (e *Engine) complete(db *gorm.DB, s *session, answers []models.LeadAnswer) (*models.Lead, error) {
	if e.blockCompletionWhenReadOnly {
		sub, err := e.policy.EnsureSubscription(db, s.userID)
		if err != nil {
			return nil, err
		}
		if sub.IsReadOnly {
			return nil, billing.ErrReadOnly
		}
	}

	score := scoring.Score(s.questions, answers)
	bucket := e.scorer.Bucket(score)

	lead := models.Lead{
		ID:        uuid.NewString(),
		Source:    s.source,
		ScriptID:  s.scriptID,
		LeadScore: score,
		Status:    bucket,
		UserID:    s.userID,
	}
	if err := lead.SetAnswers(answers); err != nil {
		return nil, err
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	if err := tx.Create(&lead).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := analytics.Track(tx, models.EVENT_DIALOG_COMPLETED, s.userID,
		map[string]any{"script_id": s.scriptID, "lead_id": lead.ID}, s.id); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := analytics.Track(tx, models.EVENT_LEAD_CREATED, s.userID,
		map[string]any{"lead_id": lead.ID, "source": s.source}, s.id); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := e.policy.RecordUsage(tx, s.userID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := analytics.Track(tx, models.EVENT_LEAD_SCORED, s.userID,
		map[string]any{"lead_id": lead.ID, "score": score, "bucket": bucket}, s.id); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return &lead, nil
}

// dispatchIfHot empurra o lead quente para o canal dos gestores. Falha aqui é
// isolada: fica logada e o worker de retry cuida do reenvio.
func (e *Engine) dispatchIfHot(db *gorm.DB, lead models.Lead) {
	if lead.Status != models.LEAD_STATUS_HOT || e.dispatcher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.dispatcher.Dispatch(ctx, db, lead); err != nil {
		log.Printf("dialogs: hot lead %s dispatch error: %v", lead.ID, err)
	}
}

// Cancel abandona o diálogo explicitamente. Emite dialog_abandoned e não cria
// lead. Corrida com a última resposta: quem pegar o mutex primeiro com o
// estado ainda InProgress ganha; o perdedor é um no-op.
func (e *Engine) Cancel(db *gorm.DB, sessionID string) error {
	s, err := e.lookup(sessionID)
	if err != nil {
		return err
	}
	return e.abandon(db, s, "cancelled")
}

func (e *Engine) abandon(db *gorm.DB, s *session, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateInProgress {
		return ErrDialogFinished
	}

	s.state = stateAbandoned
	e.forget(s)

	if err := analytics.Track(db, models.EVENT_DIALOG_ABANDONED, s.userID,
		map[string]any{"script_id": s.scriptID, "reason": reason, "answered": s.index}, s.id); err != nil {
		log.Printf("dialogs: track dialog_abandoned error: %v", err)
	}
	return nil
}

// AbandonIdle abandona sessões paradas há mais que o idle timeout. Chamado
// pelo reaper; devolve quantas sessões foram encerradas.
func (e *Engine) AbandonIdle(db *gorm.DB) int {
	cutoff := e.now().Add(-e.idleTimeout)

	e.mu.RLock()
	candidates := make([]*session, 0)
	for _, s := range e.sessions {
		candidates = append(candidates, s)
	}
	e.mu.RUnlock()

	n := 0
	for _, s := range candidates {
		s.mu.Lock()
		idle := s.state == stateInProgress && s.updatedAt.Before(cutoff)
		s.mu.Unlock()
		if !idle {
			continue
		}
		if err := e.abandon(db, s, "timeout"); err == nil {
			n++
		}
	}
	return n
}

// FindByChat resolve a sessão ativa de um chat (transporte inbound).
func (e *Engine) FindByChat(userID int64, chatKey string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.byChat[chatIndexKey(userID, chatKey)]
	return id, ok
}

// ActiveSessions conta sessões em andamento (health/debug).
func (e *Engine) ActiveSessions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

func (e *Engine) lookup(sessionID string) (*session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// forget tira a sessão terminal dos índices. Chamar com s.mu já travado.
func (e *Engine) forget(s *session) {
	e.mu.Lock()
	delete(e.sessions, s.id)
	if s.chatKey != "" {
		delete(e.byChat, chatIndexKey(s.userID, s.chatKey))
	}
	e.mu.Unlock()
}

func chatIndexKey(userID int64, chatKey string) string {
	return fmt.Sprintf("%d:%s", userID, chatKey)
}
