package controllers

import (
	"net/http"
	"time"

	"calliope/analytics"
	dbpkg "calliope/db"
	"calliope/models"
	"calliope/tools"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		RespondError(c, "email e password são obrigatórios", http.StatusBadRequest)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	var user models.User
	if err := db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		RespondError(c, "usuário ou senha inválidos", http.StatusUnauthorized)
		return
	}

	// valida senha (mesma regra usada no CreateUser)
	if user.Password != encodePassword(user.Email, req.Password) {
		RespondError(c, "usuário ou senha inválidos", http.StatusUnauthorized)
		return
	}

	if user.Status == models.USER_STATUS_BLOCKED {
		RespondError(c, "usuário bloqueado", http.StatusForbidden)
		return
	}

	signed, err := signHS256JWT(getJWTSecret(), map[string]any{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
	})
	if err != nil {
		RespondError(c, "erro ao assinar token", http.StatusInternalServerError)
		return
	}

	user.Password = ""
	RespondSuccess(c, LoginResponse{Token: signed, User: user})
}

func encodePassword(email, password string) string {
	encoded := tools.EncryptTextSHA512(password)
	encoded = email + ":" + encoded
	return tools.EncryptTextSHA512(encoded)
}

func CreateUser(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	user := models.User{}
	if err := c.Bind(&user); err != nil {
		RespondError(c, err.Error(), 400)
		return
	}

	missing := user.MissingFields()
	if missing != "" {
		RespondError(c, "Faltando campo "+missing, 400)
		return
	}

	if !tools.ValidateEmail(user.Email) {
		RespondError(c, "E-mail inválido!", 400)
		return
	}

	var existing models.User
	if err := db.Where("email = ?", user.Email).First(&existing).Error; err == nil {
		RespondError(c, "Usuário já existe", 400)
		return
	}

	user.Password = encodePassword(user.Email, user.Password)
	user.Admin = false
	user.Status = models.USER_STATUS_AVAILABLE

	tx := db.Begin()
	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		RespondError(c, err.Error(), 400)
		return
	}

	// Usuário novo já nasce com trial implícito.
	if _, err := policy.EnsureSubscription(tx, user.ID); err != nil {
		tx.Rollback()
		RespondError(c, err.Error(), 400)
		return
	}

	if err := analytics.Track(tx, models.EVENT_USER_ONBOARDED, user.ID,
		map[string]any{"method": "signup"}, ""); err != nil {
		tx.Rollback()
		RespondError(c, err.Error(), 400)
		return
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		RespondError(c, err.Error(), 400)
		return
	}

	user.Password = ""
	RespondSuccess(c, user)
}

func Me(c *gin.Context) {
	user, ok := GetUserLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}
	user.Password = ""
	RespondSuccess(c, gin.H{"user": user})
}
