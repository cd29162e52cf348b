package controllers

import (
	"net/http"
	"strings"

	"calliope/billing"
	dbpkg "calliope/db"

	"github.com/gin-gonic/gin"
)

// GET /billing/subscription
func GetSubscription(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "usuário não autenticado", http.StatusUnauthorized)
		return
	}
	db := dbpkg.DBInstance(c)

	sub, err := policy.EnsureSubscription(db, user.ID)
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	remaining, err := policy.Remaining(db, user.ID)
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, gin.H{
		"subscription": sub,
		"remaining":    remaining,
	})
}

// GET /billing/tiers
func GetTiers(c *gin.Context) {
	tiers := make([]gin.H, 0, len(billing.TierLimits))
	for tier, limit := range billing.TierLimits {
		tiers = append(tiers, gin.H{
			"tier":          tier,
			"dialogs_limit": limit,
			"price_cents":   billing.TierPrices[tier],
		})
	}
	RespondSuccess(c, tiers)
}

type SubscriptionRequest struct {
	Tier string `json:"tier"`
}

// POST /billing/subscription/request
//
// Pedido de upgrade: fica pendente até um admin ativar (pagamento é manual).
func RequestSubscription(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "usuário não autenticado", http.StatusUnauthorized)
		return
	}
	db := dbpkg.DBInstance(c)

	var req SubscriptionRequest
	if err := c.BindJSON(&req); err != nil {
		RespondError(c, "invalid json", http.StatusBadRequest)
		return
	}

	sub, err := policy.RequestSubscription(db, user.ID, strings.TrimSpace(req.Tier))
	if err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, sub)
}

// POST /admin/subscriptions/:userId/activate  (admin)
func ActivateSubscription(c *gin.Context) {
	userID, ok := ParamID(c, "userId")
	if !ok {
		return
	}
	db := dbpkg.DBInstance(c)

	var req SubscriptionRequest
	if err := c.BindJSON(&req); err != nil {
		RespondError(c, "invalid json", http.StatusBadRequest)
		return
	}

	if err := policy.ActivateSubscription(db, userID, strings.TrimSpace(req.Tier)); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{"activated": true})
}

// DELETE /billing/subscription
func CancelSubscription(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "usuário não autenticado", http.StatusUnauthorized)
		return
	}
	db := dbpkg.DBInstance(c)

	if err := policy.CancelSubscription(db, user.ID); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{"cancelled": true})
}
