package controllers

import (
	"net/http"
	"strings"
	"time"

	"calliope/analytics"
	dbpkg "calliope/db"

	"github.com/gin-gonic/gin"
)

// parseDateRange lê from/to (YYYY-MM-DD) da query; default são os últimos
// 30 dias.
func parseDateRange(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -29)
	to := now

	if v := strings.TrimSpace(c.Query("from")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, err
		}
		from = parsed
	}
	if v := strings.TrimSpace(c.Query("to")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, err
		}
		to = parsed
	}
	return from, to, nil
}

// GET /dashboard/metrics
func GetDashboardMetrics(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "usuário não autenticado", http.StatusUnauthorized)
		return
	}
	db := dbpkg.DBInstance(c)

	metrics, err := analytics.GetUserMetrics(db, user.ID)
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, metrics)
}

// GET /dashboard/leads-per-day?from=2026-08-01&to=2026-08-26
func GetLeadsPerDay(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "usuário não autenticado", http.StatusUnauthorized)
		return
	}
	db := dbpkg.DBInstance(c)

	from, to, err := parseDateRange(c)
	if err != nil {
		RespondError(c, "datas inválidas, use YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if to.Before(from) {
		RespondError(c, "to anterior a from", http.StatusBadRequest)
		return
	}

	series, err := analytics.LeadsPerDay(db, user.ID, from, to)
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, series)
}

// GET /admin/metrics  (admin)
func GetGlobalMetrics(c *gin.Context) {
	db := dbpkg.DBInstance(c)

	metrics, err := analytics.GetGlobalMetrics(db)
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, metrics)
}
