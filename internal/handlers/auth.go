package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"gestion-immeubles/auth"
	"gestion-immeubles/httpx"
	"gestion-immeubles/internal/models"
	"gestion-immeubles/internal/policy"
	"gestion-immeubles/validation"
)

type AuthHandler struct {
	DB     *gorm.DB
	Tokens *auth.Service
	Log    *zap.Logger
}

func NewAuthHandler(db *gorm.DB, tokens *auth.Service, log *zap.Logger) *AuthHandler {
	return &AuthHandler{DB: db, Tokens: tokens, Log: log}
}

// Register creates a syndic account: user (role=syndic) plus syndic profile
// in one transaction, and returns a fresh token. Owner accounts are only
// ever created through POST /api/proprietaires.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	input.Email = strings.TrimSpace(input.Email)

	v := validation.Violations{}
	validation.Required("name", input.Name, v)
	validation.Email("email", input.Email, v)
	validation.MinLen("password", input.Password, 8, v)
	validation.Required("phone", input.Phone, v)
	if v.Empty() {
		var count int64
		if err := h.DB.Model(&models.User{}).Where("email = ?", input.Email).Count(&count).Error; err != nil {
			h.serverError(w, "check email uniqueness", err)
			return
		}
		if count > 0 {
			v["email"] = "already_taken"
		}
		if err := h.DB.Model(&models.Syndic{}).Where("phone = ?", input.Phone).Count(&count).Error; err != nil {
			h.serverError(w, "check phone uniqueness", err)
			return
		}
		if count > 0 {
			v["phone"] = "already_taken"
		}
	}
	if !v.Empty() {
		httpx.JSONValidation(w, v)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		h.serverError(w, "hash password", err)
		return
	}
	user := models.User{Name: input.Name, Email: input.Email, Password: string(hash), Role: models.RoleSyndic}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&models.Syndic{UserID: user.ID, Phone: input.Phone}).Error
	})
	switch {
	case err != nil && isUniqueViolation(err):
		// a concurrent signup slipped past the pre-check; the index caught it
		httpx.JSONValidation(w, h.takenViolations(input.Email, input.Phone))
		return
	case err != nil:
		h.serverError(w, "register syndic", err)
		return
	}

	if err := h.DB.Preload("Syndic").First(&user, user.ID).Error; err != nil {
		h.serverError(w, "reload user", err)
		return
	}
	token, err := h.Tokens.Issue(user.ID)
	if err != nil {
		h.serverError(w, "issue token", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "Compte syndic créé avec succès",
		"user":    user,
		"token":   token,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}

	var user models.User
	if err := h.DB.Preload("Syndic").Where("email = ?", strings.TrimSpace(input.Email)).First(&user).Error; err != nil {
		httpx.JSONValidation(w, validation.Violations{"email": "identifiants invalides"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)) != nil {
		httpx.JSONValidation(w, validation.Violations{"email": "identifiants invalides"})
		return
	}

	token, err := h.Tokens.Issue(user.ID)
	if err != nil {
		h.serverError(w, "issue token", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

// Logout revokes the token the request was authenticated with.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := auth.TokenIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "Non authentifié", nil)
		return
	}
	if err := h.Tokens.Revoke(tokenID); err != nil {
		h.serverError(w, "revoke token", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "Déconnecté avec succès"})
}

// Me returns the authenticated principal (GET /api/user).
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := policy.PrincipalFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "Non authentifié", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

// takenViolations re-reads which unique column a rejected insert collided
// with, so a duplicate caught by the index reports the same field-keyed 422
// as the pre-check.
func (h *AuthHandler) takenViolations(email, phone string) validation.Violations {
	v := validation.Violations{}
	var count int64
	if err := h.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err == nil && count > 0 {
		v["email"] = "already_taken"
	}
	if err := h.DB.Model(&models.Syndic{}).Where("phone = ?", phone).Count(&count).Error; err == nil && count > 0 {
		v["phone"] = "already_taken"
	}
	if v.Empty() {
		v["email"] = "already_taken"
	}
	return v
}

func (h *AuthHandler) serverError(w http.ResponseWriter, op string, err error) {
	h.Log.Error(op, zap.Error(err))
	httpx.JSONError(w, http.StatusInternalServerError, "Une erreur serveur est survenue", nil)
}
