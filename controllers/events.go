package controllers

import (
	"net/http"
	"strings"

	dbpkg "calliope/db"
	"calliope/models"

	"github.com/gin-gonic/gin"
)

// GET /admin/events?type=lead_created&user_id=3&limit=100  (admin)
//
// Lista crua do log de eventos, para inspeção. O log é append-only; não
// existe update nem delete por aqui.
func GetEvents(c *gin.Context) {
	db := dbpkg.DBInstance(c)

	limit := clampInt(queryInt(c, "limit", 100), 1, 500)
	offset := clampInt(queryInt(c, "offset", 0), 0, 1<<30)

	query := db.Model(&models.AnalyticsEvent{}).Order("timestamp desc")

	if t := strings.TrimSpace(c.Query("type")); t != "" {
		query = query.Where("event_type = ?", t)
	}
	if userID := queryInt(c, "user_id", 0); userID > 0 {
		query = query.Where("user_id = ?", userID)
	}

	var events []models.AnalyticsEvent
	if err := query.Limit(limit).Offset(offset).Find(&events).Error; err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, events)
}
