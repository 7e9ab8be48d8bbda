package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
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

type UserHandler struct {
	DB     *gorm.DB
	Tokens *auth.Service
	Log    *zap.Logger
}

func NewUserHandler(db *gorm.DB, tokens *auth.Service, log *zap.Logger) *UserHandler {
	return &UserHandler{DB: db, Tokens: tokens, Log: log}
}

// Show fetches a user with its syndic profile.
func (h *UserHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "Utilisateur non trouvé", nil)
		return
	}
	var user models.User
	if err := h.DB.Preload("Syndic").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "Utilisateur non trouvé", nil)
		} else {
			h.serverError(w, "load user", err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

// Update edits the caller's own profile; the syndic phone moves with it when
// a syndic profile exists.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.self(w, r)
	if !ok {
		return
	}

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
	if input.Password != "" {
		validation.MinLen("password", input.Password, 8, v)
	}
	validation.Required("phone", input.Phone, v)
	if v.Empty() {
		var count int64
		if err := h.DB.Model(&models.User{}).
			Where("email = ? AND id <> ?", input.Email, caller.ID).Count(&count).Error; err != nil {
			h.serverError(w, "check email uniqueness", err)
			return
		}
		if count > 0 {
			v["email"] = "already_taken"
		}
		if caller.Syndic != nil {
			if err := h.DB.Model(&models.Syndic{}).
				Where("phone = ? AND id <> ?", input.Phone, caller.Syndic.ID).Count(&count).Error; err != nil {
				h.serverError(w, "check phone uniqueness", err)
				return
			}
			if count > 0 {
				v["phone"] = "already_taken"
			}
		}
	}
	if !v.Empty() {
		httpx.JSONValidation(w, v)
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"name": input.Name, "email": input.Email}
		if input.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			updates["password"] = string(hash)
		}
		if err := tx.Model(&models.User{}).Where("id = ?", caller.ID).Updates(updates).Error; err != nil {
			return err
		}
		if caller.Syndic != nil {
			return tx.Model(&models.Syndic{}).Where("id = ?", caller.Syndic.ID).
				Update("phone", input.Phone).Error
		}
		return nil
	})
	if err != nil {
		h.serverError(w, "update user", err)
		return
	}

	var fresh models.User
	if err := h.DB.Preload("Syndic").First(&fresh, caller.ID).Error; err != nil {
		h.serverError(w, "reload user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message": "Utilisateur mis à jour avec succès.",
		"user":    fresh,
	})
}

// Destroy removes the caller's own account together with its dependent
// syndic or proprietaire row, and revokes every outstanding token.
func (h *UserHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.self(w, r)
	if !ok {
		return
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		// a syndic's buildings reference the syndics row; they go first,
		// together with their owners
		if caller.Syndic != nil {
			var immeubles []models.Immeuble
			if err := tx.Where("syndic_id = ?", caller.Syndic.ID).Find(&immeubles).Error; err != nil {
				return err
			}
			for _, immeuble := range immeubles {
				if err := removeImmeuble(tx, immeuble.ID); err != nil {
					return err
				}
			}
		}
		if err := tx.Where("user_id = ?", caller.ID).Delete(&models.Syndic{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", caller.ID).Delete(&models.Proprietaire{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, caller.ID).Error
	})
	if err != nil {
		h.serverError(w, "delete user", err)
		return
	}
	if err := h.Tokens.RevokeAllForUser(caller.ID); err != nil {
		h.Log.Warn("revoke tokens", zap.Error(err))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "Utilisateur supprimé avec succès."})
}

// self enforces that the path id is the authenticated principal.
func (h *UserHandler) self(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	caller, _ := policy.PrincipalFromContext(r.Context())
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || caller == nil || caller.ID != uint(id) {
		httpx.JSONError(w, http.StatusForbidden, "Unauthorized", nil)
		return nil, false
	}
	return caller, true
}

func (h *UserHandler) serverError(w http.ResponseWriter, op string, err error) {
	h.Log.Error(op, zap.Error(err))
	httpx.JSONError(w, http.StatusInternalServerError, "Une erreur serveur est survenue", nil)
}
