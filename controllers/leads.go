package controllers

import (
	"log"
	"net/http"
	"strings"

	"calliope/analytics"
	dbpkg "calliope/db"
	"calliope/models"

	"github.com/gin-gonic/gin"
)

// LeadResponse expõe o lead com as respostas já desserializadas.
type LeadResponse struct {
	models.Lead
	Answers []models.LeadAnswer `json:"answers"`
}

func leadResponse(lead models.Lead) LeadResponse {
	answers, err := lead.AnswerList()
	if err != nil {
		log.Printf("lead %s: %v", lead.ID, err)
	}
	return LeadResponse{Lead: lead, Answers: answers}
}

// GET /leads?status=hot&q=texto&sort=score&limit=20&offset=0
func GetLeads(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "usuário não autenticado", http.StatusUnauthorized)
		return
	}
	db := dbpkg.DBInstance(c)

	limit := clampInt(queryInt(c, "limit", 20), 1, 100)
	offset := clampInt(queryInt(c, "offset", 0), 0, 1<<30)

	query := db.Model(&models.Lead{}).Where("user_id = ?", user.ID)

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		if !models.ValidLeadStatus(status) {
			RespondError(c, "status inválido: "+status, http.StatusBadRequest)
			return
		}
		query = query.Where("status = ?", status)
	}

	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + q + "%"
		query = query.Where("answers LIKE ? OR assigned_to LIKE ?", like, like)
	}

	switch c.DefaultQuery("sort", "recent") {
	case "score":
		query = query.Order("lead_score desc")
	case "oldest":
		query = query.Order("created_at asc")
	default:
		query = query.Order("created_at desc")
	}

	var total int
	if err := query.Count(&total).Error; err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	var leads []models.Lead
	if err := query.Limit(limit).Offset(offset).Find(&leads).Error; err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]LeadResponse, 0, len(leads))
	for _, lead := range leads {
		items = append(items, leadResponse(lead))
	}

	RespondSuccess(c, gin.H{"total": total, "items": items})
}

// GET /leads/:id
func GetLeadByID(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "usuário não autenticado", http.StatusUnauthorized)
		return
	}
	db := dbpkg.DBInstance(c)

	var lead models.Lead
	if err := db.Where("id = ? AND user_id = ?", c.Param("id"), user.ID).First(&lead).Error; err != nil {
		RespondError(c, "lead não encontrado", http.StatusNotFound)
		return
	}

	RespondSuccess(c, leadResponse(lead))
}

type LeadStatusRequest struct {
	Status     string `json:"status"`
	AssignedTo string `json:"assigned_to"`
}

// PUT /leads/:id/status
//
// Muda status e/ou responsável. As respostas do lead nunca mudam por aqui.
func UpdateLeadStatus(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "usuário não autenticado", http.StatusUnauthorized)
		return
	}
	db := dbpkg.DBInstance(c)

	var req LeadStatusRequest
	if err := c.BindJSON(&req); err != nil {
		RespondError(c, "invalid json", http.StatusBadRequest)
		return
	}

	var lead models.Lead
	if err := db.Where("id = ? AND user_id = ?", c.Param("id"), user.ID).First(&lead).Error; err != nil {
		RespondError(c, "lead não encontrado", http.StatusNotFound)
		return
	}

	updates := map[string]any{}
	if req.Status != "" {
		if !models.ValidLeadStatus(req.Status) {
			RespondError(c, "status inválido: "+req.Status, http.StatusBadRequest)
			return
		}
		updates["status"] = req.Status
	}
	if strings.TrimSpace(req.AssignedTo) != "" {
		updates["assigned_to"] = strings.TrimSpace(req.AssignedTo)
	}
	if len(updates) == 0 {
		RespondError(c, "nada para atualizar", http.StatusBadRequest)
		return
	}

	if err := db.Model(&lead).Updates(updates).Error; err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, leadResponse(lead))
}

type LeadRefsRequest struct {
	CalendarEventID string `json:"calendar_event_id"`
	CRMID           string `json:"crm_id"`
}

// PUT /leads/:id/refs
//
// Preenche referências externas (agenda, CRM). Marcar calendar_event_id pela
// primeira vez conta como agendamento: vira status booked e gera evento.
func UpdateLeadRefs(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "usuário não autenticado", http.StatusUnauthorized)
		return
	}
	db := dbpkg.DBInstance(c)

	var req LeadRefsRequest
	if err := c.BindJSON(&req); err != nil {
		RespondError(c, "invalid json", http.StatusBadRequest)
		return
	}

	var lead models.Lead
	if err := db.Where("id = ? AND user_id = ?", c.Param("id"), user.ID).First(&lead).Error; err != nil {
		RespondError(c, "lead não encontrado", http.StatusNotFound)
		return
	}

	updates := map[string]any{}
	booked := false
	if id := strings.TrimSpace(req.CalendarEventID); id != "" {
		booked = lead.CalendarEventID == ""
		updates["calendar_event_id"] = id
	}
	if id := strings.TrimSpace(req.CRMID); id != "" {
		updates["crm_id"] = id
	}
	if len(updates) == 0 {
		RespondError(c, "nada para atualizar", http.StatusBadRequest)
		return
	}
	if booked {
		updates["status"] = models.LEAD_STATUS_BOOKED
	}

	if err := db.Model(&lead).Updates(updates).Error; err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	if booked {
		if err := analytics.Track(db, models.EVENT_LEAD_BOOKED, user.ID, map[string]any{
			"lead_id":           lead.ID,
			"calendar_event_id": lead.CalendarEventID,
		}, ""); err != nil {
			log.Printf("track lead_booked: %v", err)
		}
	}

	RespondSuccess(c, leadResponse(lead))
}
