package controllers

import (
	"errors"
	"net/http"
	"strings"

	"calliope/billing"
	dbpkg "calliope/db"
	"calliope/dialogs"
	"calliope/models"

	"github.com/gin-gonic/gin"
)

type StartDialogRequest struct {
	ScriptID string `json:"script_id"`
	Source   string `json:"source"`
}

type AnswerDialogRequest struct {
	Text string `json:"text"`
}

// respondQuotaError traduz as recusas de quota para o cliente, com reason
// code suficiente pra UI montar a mensagem.
func respondQuotaError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, billing.ErrQuotaExceeded):
		c.JSON(http.StatusForbidden, gin.H{"error": "limite de diálogos atingido", "reason": "quota_exceeded"})
	case errors.Is(err, billing.ErrReadOnly):
		c.JSON(http.StatusForbidden, gin.H{"error": "assinatura em modo somente leitura", "reason": "read_only"})
	case errors.Is(err, billing.ErrTrialExpired):
		c.JSON(http.StatusForbidden, gin.H{"error": "período de teste encerrado", "reason": "trial_expired"})
	default:
		return false
	}
	return true
}

// POST /api/dialogs
func StartDialog(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}
	if engine == nil {
		RespondError(c, "dialog engine não configurado", http.StatusInternalServerError)
		return
	}

	var req StartDialogRequest
	if err := c.BindJSON(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ScriptID) == "" {
		RespondError(c, "script_id é obrigatório", http.StatusBadRequest)
		return
	}
	source := req.Source
	if source == "" {
		source = models.LEAD_SOURCE_SITE
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	result, err := engine.Start(db, user.ID, req.ScriptID, source, "")
	if err != nil {
		if respondQuotaError(c, err) {
			return
		}
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, result)
}

// POST /api/dialogs/:id/answer
func AnswerDialog(c *gin.Context) {
	if _, ok := GetUserLogged(c); !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}
	if engine == nil {
		RespondError(c, "dialog engine não configurado", http.StatusInternalServerError)
		return
	}

	var req AnswerDialogRequest
	if err := c.BindJSON(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	result, err := engine.AcceptAnswer(db, c.Param("id"), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, dialogs.ErrSessionNotFound):
			RespondError(c, "sessão não encontrada", http.StatusNotFound)
		case errors.Is(err, dialogs.ErrDialogFinished):
			RespondError(c, "diálogo já encerrado", http.StatusConflict)
		case respondQuotaError(c, err):
		default:
			// Falha de persistência: o turno não avançou, retry é seguro.
			RespondError(c, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	RespondSuccess(c, result)
}

// DELETE /api/dialogs/:id
func CancelDialog(c *gin.Context) {
	if _, ok := GetUserLogged(c); !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}
	if engine == nil {
		RespondError(c, "dialog engine não configurado", http.StatusInternalServerError)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	err := engine.Cancel(db, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, dialogs.ErrSessionNotFound):
			RespondError(c, "sessão não encontrada", http.StatusNotFound)
		case errors.Is(err, dialogs.ErrDialogFinished):
			RespondError(c, "diálogo já encerrado", http.StatusConflict)
		default:
			RespondError(c, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	RespondSuccess(c, gin.H{"cancelled": c.Param("id")})
}
