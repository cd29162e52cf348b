package controllers

import (
	"net/http"
	"strings"
	"time"

	dbpkg "calliope/db"
	"calliope/models"

	"github.com/gin-gonic/gin"
)

type AlertRequest struct {
	Level    string `json:"level"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Metadata string `json:"metadata"`
}

// POST /admin/alerts  (admin)
func CreateAlert(c *gin.Context) {
	db := dbpkg.DBInstance(c)

	var req AlertRequest
	if err := c.BindJSON(&req); err != nil {
		RespondError(c, "invalid json", http.StatusBadRequest)
		return
	}

	if !models.ValidAlertLevel(req.Level) {
		RespondError(c, "level inválido: "+req.Level, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		RespondError(c, "title é obrigatório", http.StatusBadRequest)
		return
	}

	alert := models.SystemAlert{
		Level:    req.Level,
		Title:    strings.TrimSpace(req.Title),
		Message:  strings.TrimSpace(req.Message),
		Metadata: req.Metadata,
	}
	if err := db.Create(&alert).Error; err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, alert)
}

// GET /admin/alerts?resolved=false  (admin)
func GetAlerts(c *gin.Context) {
	db := dbpkg.DBInstance(c)

	limit := clampInt(queryInt(c, "limit", 50), 1, 200)
	query := db.Model(&models.SystemAlert{}).Order("created_at desc").Limit(limit)

	switch strings.TrimSpace(c.Query("resolved")) {
	case "true":
		query = query.Where("resolved = ?", true)
	case "false":
		query = query.Where("resolved = ?", false)
	}

	var alerts []models.SystemAlert
	if err := query.Find(&alerts).Error; err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, alerts)
}

// PUT /admin/alerts/:id/resolve  (admin)
func ResolveAlert(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	db := dbpkg.DBInstance(c)

	var alert models.SystemAlert
	if err := db.First(&alert, id).Error; err != nil {
		RespondError(c, "alerta não encontrado", http.StatusNotFound)
		return
	}

	now := time.Now().UTC()
	if err := db.Model(&alert).Updates(map[string]any{
		"resolved":    true,
		"resolved_at": &now,
	}).Error; err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, alert)
}
