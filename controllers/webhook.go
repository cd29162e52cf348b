package controllers

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	dbpkg "calliope/db"
	"calliope/models"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

// InboundUpdate é o payload mínimo do transporte de chat (formato de update
// do Telegram): só precisamos do chat e do texto.
type InboundUpdate struct {
	Message struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

func resolveWebhookUserID(c *gin.Context) (int64, error) {
	// /webhook/:userId
	param := strings.TrimSpace(c.Param("userId"))
	if param != "" {
		return strconv.ParseInt(param, 10, 64)
	}

	// fallback para dev (mantém /webhook funcionando localmente)
	def := strings.TrimSpace(os.Getenv("WEBHOOK_DEFAULT_USER_ID"))
	if def == "" {
		return 0, fmt.Errorf("missing userId param and WEBHOOK_DEFAULT_USER_ID not set")
	}
	return strconv.ParseInt(def, 10, 64)
}

func requireActiveUserByID(c *gin.Context, db *gorm.DB, userID int64) (*models.User, bool) {
	if userID <= 0 {
		RespondError(c, "user_id inválido", http.StatusBadRequest)
		return nil, false
	}

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		RespondError(c, "usuário não encontrado", http.StatusNotFound)
		return nil, false
	}

	if user.Status != models.USER_STATUS_AVAILABLE {
		RespondError(c, "usuário não está ativo", http.StatusForbidden)
		return nil, false
	}

	return &user, true
}

// GET /webhook e GET /webhook/:userId
func WebhookVerify(c *gin.Context) {
	verifyToken := os.Getenv("WEBHOOK_VERIFY_TOKEN")
	if verifyToken == "" {
		RespondError(c, "WEBHOOK_VERIFY_TOKEN not set", http.StatusInternalServerError)
		return
	}

	token := c.Query("verify_token")
	challenge := c.Query("challenge")

	if token == verifyToken && challenge != "" {
		c.String(http.StatusOK, "%s", challenge)
		return
	}

	RespondError(c, "forbidden", http.StatusForbidden)
}

// POST /webhook e POST /webhook/:userId
//
// Turno inbound do chat: "/start <scriptId>" abre um diálogo novo para esse
// chat; qualquer outro texto é a resposta da pergunta corrente. A resposta
// HTTP carrega o próximo prompt (ou o sinal de conclusão) para o transporte
// renderizar.
func WebhookUpdate(c *gin.Context) {
	userID, err := resolveWebhookUserID(c)
	if err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}
	if engine == nil {
		RespondError(c, "dialog engine não configurado", http.StatusInternalServerError)
		return
	}

	if _, ok := requireActiveUserByID(c, db, userID); !ok {
		return
	}

	var update InboundUpdate
	if err := c.BindJSON(&update); err != nil {
		RespondError(c, "invalid json", http.StatusBadRequest)
		return
	}

	chatKey := strconv.FormatInt(update.Message.Chat.ID, 10)
	text := strings.TrimSpace(update.Message.Text)
	if chatKey == "0" || text == "" {
		RespondError(c, "mensagem vazia", http.StatusBadRequest)
		return
	}

	if strings.HasPrefix(text, "/start") {
		scriptID := strings.TrimSpace(strings.TrimPrefix(text, "/start"))
		if scriptID == "" {
			RespondSuccess(c, gin.H{"reply": "Использование: /start <id скрипта>"})
			return
		}

		result, err := engine.Start(db, userID, scriptID, models.LEAD_SOURCE_TELEGRAM, chatKey)
		if err != nil {
			if respondQuotaError(c, err) {
				return
			}
			RespondError(c, err.Error(), http.StatusBadRequest)
			return
		}

		RespondSuccess(c, gin.H{
			"session_id": result.SessionID,
			"reply":      promptText(result.Prompt),
		})
		return
	}

	sessionID, ok := engine.FindByChat(userID, chatKey)
	if !ok {
		RespondSuccess(c, gin.H{"reply": "Нет активного диалога. Отправьте /start <id скрипта>."})
		return
	}

	result, err := engine.AcceptAnswer(db, sessionID, text)
	if err != nil {
		if respondQuotaError(c, err) {
			return
		}
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	if result.Completed {
		RespondSuccess(c, gin.H{
			"session_id": sessionID,
			"completed":  true,
			"reply":      "Спасибо! Мы свяжемся с вами в ближайшее время.",
		})
		return
	}

	reply := promptText(*result.NextPrompt)
	if result.Validation != nil {
		reply = result.Validation.Reason + "\n\n" + reply
	}
	RespondSuccess(c, gin.H{"session_id": sessionID, "reply": reply})
}

// promptText formata a pergunta para o transporte (choices viram opções
// numeradas).
func promptText(q models.Question) string {
	if len(q.Choices) == 0 {
		return q.Text
	}
	var b strings.Builder
	b.WriteString(q.Text)
	for i, choice := range q.Choices {
		fmt.Fprintf(&b, "\n%d. %s", i+1, choice)
	}
	return b.String()
}
