package controllers

import (
	"net/http"
	"strings"

	"calliope/analytics"
	dbpkg "calliope/db"
	"calliope/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ScriptRequest struct {
	Name      string            `json:"name"`
	Questions []models.Question `json:"questions"`
}

type ScriptResponse struct {
	Script    models.Script     `json:"script"`
	Questions []models.Question `json:"questions"`
}

func scriptResponse(c *gin.Context, script models.Script) {
	questions, err := script.QuestionList()
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	RespondSuccess(c, ScriptResponse{Script: script, Questions: questions})
}

// GET /api/scripts
func GetScripts(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	var scripts []models.Script
	if err := db.Where("created_by = ?", user.ID).Order("created_at desc").Find(&scripts).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{"scripts": scripts})
}

// GET /api/scripts/:id
func GetScriptByID(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	var script models.Script
	if err := db.Where("id = ? AND created_by = ?", c.Param("id"), user.ID).First(&script).Error; err != nil {
		RespondError(c, "script não encontrado", http.StatusNotFound)
		return
	}

	scriptResponse(c, script)
}

// POST /api/scripts
func CreateScript(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req ScriptRequest
	if err := c.BindJSON(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		RespondError(c, "name é obrigatório", http.StatusBadRequest)
		return
	}

	script := models.Script{
		ID:        uuid.NewString(),
		Name:      req.Name,
		CreatedBy: user.ID,
	}
	if err := script.SetQuestions(req.Questions); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	if err := db.Create(&script).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	if err := analytics.Track(db, models.EVENT_SCRIPT_GENERATED, user.ID,
		map[string]any{"script_id": script.ID, "method": "manual"}, ""); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	scriptResponse(c, script)
}

// PUT /api/scripts/:id
// Editar um script não tem efeito retroativo: diálogos em andamento seguem o
// snapshot de perguntas que tiraram no start.
func UpdateScript(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req ScriptRequest
	if err := c.BindJSON(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	var script models.Script
	if err := db.Where("id = ? AND created_by = ?", c.Param("id"), user.ID).First(&script).Error; err != nil {
		RespondError(c, "script não encontrado", http.StatusNotFound)
		return
	}

	if strings.TrimSpace(req.Name) != "" {
		script.Name = req.Name
	}
	if len(req.Questions) > 0 {
		if err := script.SetQuestions(req.Questions); err != nil {
			RespondError(c, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := db.Save(&script).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	scriptResponse(c, script)
}

// DELETE /api/scripts/:id
func DeleteScript(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	var script models.Script
	if err := db.Where("id = ? AND created_by = ?", c.Param("id"), user.ID).First(&script).Error; err != nil {
		RespondError(c, "script não encontrado", http.StatusNotFound)
		return
	}

	if err := db.Delete(&script).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{"deleted": script.ID})
}

// POST /api/scripts/templates/:key
// Instancia um dos roteiros prontos (novostroyka/resale) para o usuário.
func CreateScriptFromTemplate(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	tpl, ok := ScriptTemplates[c.Param("key")]
	if !ok {
		RespondError(c, "template não encontrado", http.StatusNotFound)
		return
	}

	script := models.Script{
		ID:        uuid.NewString(),
		Name:      tpl.Name,
		CreatedBy: user.ID,
	}
	if err := script.SetQuestions(tpl.Questions); err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	if err := db.Create(&script).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	if err := analytics.Track(db, models.EVENT_SCRIPT_APPLIED, user.ID,
		map[string]any{"script_id": script.ID, "template": c.Param("key")}, ""); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	scriptResponse(c, script)
}
