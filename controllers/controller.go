package controllers

import (
	"calliope/billing"
	"calliope/dialogs"

	"github.com/gin-gonic/gin"
)

// Injetados pelo main na subida (mesmo espírito do db no contexto do gin).
var engine *dialogs.Engine
var policy billing.Policy

func SetDialogEngine(e *dialogs.Engine) {
	engine = e
}

func SetBillingPolicy(p billing.Policy) {
	policy = p
}

func RespondError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"error": msg})
}

func RespondSuccess(c *gin.Context, payload any) {
	c.JSON(200, payload)
}
