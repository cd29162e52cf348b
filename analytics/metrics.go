package analytics

import (
	"time"

	"calliope/models"

	"github.com/jinzhu/gorm"
)

// UserMetrics são os rollups por usuário do dashboard. Todos derivados do log
// de eventos e da tabela de leads no momento da consulta.
type UserMetrics struct {
	DialogsToday      int64   `json:"dialogs_today"`
	DialogsWeek       int64   `json:"dialogs_week"`
	LeadsCreated      int64   `json:"leads_created"`
	HotLeads          int64   `json:"hot_leads"`
	MeetingsScheduled int64   `json:"meetings_scheduled"`
	ConversionRate    float64 `json:"conversion_rate"`
	AvgLeadScore      float64 `json:"avg_lead_score"`
}

// GlobalMetrics são os rollups agregados de todos os usuários (admin).
type GlobalMetrics struct {
	TotalUsers        int64   `json:"total_users"`
	ActiveUsers       int64   `json:"active_users"`
	DialogsToday      int64   `json:"dialogs_today"`
	LeadsToday        int64   `json:"leads_today"`
	HotLeadsToday     int64   `json:"hot_leads_today"`
	AvgConversionRate float64 `json:"avg_conversion_rate"`
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func countEvents(db *gorm.DB, eventType string, userID int64, since *time.Time) (int64, error) {
	q := db.Model(&models.AnalyticsEvent{}).Where("event_type = ?", eventType)
	if userID > 0 {
		q = q.Where("user_id = ?", userID)
	}
	if since != nil {
		q = q.Where("timestamp >= ?", *since)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// countHotScored conta eventos lead_scored cujo bucket ficou "hot". O match é
// feito por LIKE no metadata JSON, que funciona igual em sqlite e postgres.
func countHotScored(db *gorm.DB, userID int64, since *time.Time) (int64, error) {
	q := db.Model(&models.AnalyticsEvent{}).
		Where("event_type = ?", models.EVENT_LEAD_SCORED).
		Where("metadata LIKE ?", `%"bucket":"hot"%`)
	if userID > 0 {
		q = q.Where("user_id = ?", userID)
	}
	if since != nil {
		q = q.Where("timestamp >= ?", *since)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// GetUserMetrics recomputa os rollups do usuário direto do log de eventos.
// Taxa de conversão = leads criados / diálogos na semana; 0 quando o
// denominador é 0 (nunca divide por zero).
func GetUserMetrics(db *gorm.DB, userID int64) (UserMetrics, error) {
	now := time.Now().UTC()
	today := startOfDay(now)
	weekAgo := now.AddDate(0, 0, -7)

	var m UserMetrics
	var err error

	if m.DialogsToday, err = countEvents(db, models.EVENT_DIALOG_COMPLETED, userID, &today); err != nil {
		return m, err
	}
	if m.DialogsWeek, err = countEvents(db, models.EVENT_DIALOG_COMPLETED, userID, &weekAgo); err != nil {
		return m, err
	}
	if m.LeadsCreated, err = countEvents(db, models.EVENT_LEAD_CREATED, userID, nil); err != nil {
		return m, err
	}
	if m.HotLeads, err = countHotScored(db, userID, nil); err != nil {
		return m, err
	}
	if m.MeetingsScheduled, err = countEvents(db, models.EVENT_LEAD_BOOKED, userID, nil); err != nil {
		return m, err
	}

	if m.DialogsWeek > 0 {
		m.ConversionRate = float64(m.LeadsCreated) / float64(m.DialogsWeek)
	}

	// Score médio vem da tabela de leads (registros write-once na criação).
	row := db.Model(&models.Lead{}).
		Where("user_id = ?", userID).
		Select("COALESCE(AVG(lead_score), 0)").Row()
	if err := row.Scan(&m.AvgLeadScore); err != nil {
		return m, err
	}

	return m, nil
}

// GetGlobalMetrics agrega os rollups de todos os usuários. A média de
// conversão exclui usuários com taxa zero (convenção herdada do produto;
// ver DESIGN.md).
func GetGlobalMetrics(db *gorm.DB) (GlobalMetrics, error) {
	now := time.Now().UTC()
	today := startOfDay(now)
	weekAgo := now.AddDate(0, 0, -7)

	var g GlobalMetrics
	var err error

	if err = db.Model(&models.User{}).Count(&g.TotalUsers).Error; err != nil {
		return g, err
	}
	if err = db.Model(&models.AnalyticsEvent{}).
		Where("timestamp >= ?", weekAgo).
		Select("COUNT(DISTINCT user_id)").Row().Scan(&g.ActiveUsers); err != nil {
		return g, err
	}

	if g.DialogsToday, err = countEvents(db, models.EVENT_DIALOG_COMPLETED, 0, &today); err != nil {
		return g, err
	}
	if g.LeadsToday, err = countEvents(db, models.EVENT_LEAD_CREATED, 0, &today); err != nil {
		return g, err
	}
	if g.HotLeadsToday, err = countHotScored(db, 0, &today); err != nil {
		return g, err
	}

	var userIDs []int64
	if err = db.Model(&models.AnalyticsEvent{}).
		Pluck("DISTINCT user_id", &userIDs).Error; err != nil {
		return g, err
	}

	var sum float64
	var n int64
	for _, uid := range userIDs {
		m, err := GetUserMetrics(db, uid)
		if err != nil {
			return g, err
		}
		if m.ConversionRate > 0 {
			sum += m.ConversionRate
			n++
		}
	}
	if n > 0 {
		g.AvgConversionRate = sum / float64(n)
	}

	return g, nil
}

// DailyCount é um ponto da série diária do dashboard.
type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// LeadsPerDay devolve a série diária de leads criados, com os dias sem lead
// preenchidos com zero.
func LeadsPerDay(db *gorm.DB, userID int64, from, to time.Time) ([]DailyCount, error) {
	from = startOfDay(from)
	toExclusive := startOfDay(to).AddDate(0, 0, 1)

	var leads []models.Lead
	if err := db.
		Where("user_id = ?", userID).
		Where("created_at >= ? AND created_at < ?", from, toExclusive).
		Find(&leads).Error; err != nil {
		return nil, err
	}

	counts := map[string]int64{}
	for _, l := range leads {
		if l.CreatedAt == nil {
			continue
		}
		counts[l.CreatedAt.Format("2006-01-02")]++
	}

	return fillDailySeries(from, startOfDay(to), counts), nil
}

// fillDailySeries preenche dias faltantes com 0 (inclusive nas pontas).
func fillDailySeries(from, to time.Time, counts map[string]int64) []DailyCount {
	var out []DailyCount
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, 1) {
		key := cur.Format("2006-01-02")
		out = append(out, DailyCount{Day: key, Count: counts[key]})
	}
	return out
}
