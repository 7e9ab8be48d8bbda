package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gestion-immeubles/httpx"
	"gestion-immeubles/internal/models"
	"gestion-immeubles/internal/policy"
	"gestion-immeubles/validation"
)

type ImmeubleHandler struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewImmeubleHandler(db *gorm.DB, log *zap.Logger) *ImmeubleHandler {
	return &ImmeubleHandler{DB: db, Log: log}
}

// List returns the caller's building as a zero-or-one element list.
func (h *ImmeubleHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := policy.PrincipalFromContext(r.Context())
	immeuble, err := policy.ImmeubleOf(h.DB, user.Syndic.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSON(w, http.StatusOK, []models.Immeuble{})
			return
		}
		h.serverError(w, "list immeubles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, []models.Immeuble{*immeuble})
}

// AuthSyndic is the non-empty-checked variant of List: 404 when the syndic
// has no building yet.
func (h *ImmeubleHandler) AuthSyndic(w http.ResponseWriter, r *http.Request) {
	user, _ := policy.PrincipalFromContext(r.Context())
	var immeubles []models.Immeuble
	if err := h.DB.Where("syndic_id = ?", user.Syndic.ID).Find(&immeubles).Error; err != nil {
		h.serverError(w, "list immeubles", err)
		return
	}
	if len(immeubles) == 0 {
		httpx.JSONError(w, http.StatusNotFound, "Immeuble non trouvé", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, immeubles)
}

func (h *ImmeubleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	validation.Required("name", input.Name, v)
	validation.Required("address", input.Address, v)
	if !v.Empty() {
		httpx.JSONValidation(w, v)
		return
	}

	user, _ := policy.PrincipalFromContext(r.Context())
	immeuble := models.Immeuble{ImmeubleName: input.Name, Address: input.Address, SyndicID: user.Syndic.ID}
	if err := h.DB.Create(&immeuble).Error; err != nil {
		h.serverError(w, "create immeuble", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message":  "Immeuble créé avec succès",
		"immeuble": immeuble,
	})
}

func (h *ImmeubleHandler) Update(w http.ResponseWriter, r *http.Request) {
	immeuble, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var input struct {
		ImmeubleName string `json:"immeuble_name"`
		Address      string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	validation.Required("immeuble_name", input.ImmeubleName, v)
	validation.Required("address", input.Address, v)
	if !v.Empty() {
		httpx.JSONValidation(w, v)
		return
	}

	if err := h.DB.Model(immeuble).Updates(map[string]any{
		"immeuble_name": input.ImmeubleName,
		"address":       input.Address,
	}).Error; err != nil {
		h.serverError(w, "update immeuble", err)
		return
	}
	if err := h.DB.First(immeuble, immeuble.ID).Error; err != nil {
		h.serverError(w, "reload immeuble", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":  "Immeuble mis à jour avec succès",
		"immeuble": immeuble,
	})
}

func (h *ImmeubleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	immeuble, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		return removeImmeuble(tx, immeuble.ID)
	})
	if err != nil {
		h.serverError(w, "delete immeuble", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "Immeuble supprimé avec succès"})
}

// removeImmeuble deletes a building with its owners and their backing user
// accounts. FK order: proprietaires, their users, then the immeuble.
func removeImmeuble(tx *gorm.DB, immeubleID uint) error {
	var userIDs []uint
	if err := tx.Model(&models.Proprietaire{}).Where("immeuble_id = ?", immeubleID).
		Pluck("user_id", &userIDs).Error; err != nil {
		return err
	}
	if err := tx.Where("immeuble_id = ?", immeubleID).Delete(&models.Proprietaire{}).Error; err != nil {
		return err
	}
	if len(userIDs) > 0 {
		if err := tx.Delete(&models.User{}, userIDs).Error; err != nil {
			return err
		}
	}
	return tx.Delete(&models.Immeuble{}, immeubleID).Error
}

// loadOwned fetches the path id and enforces ownership: 404 when the
// building does not exist, 403 when it belongs to another syndic.
func (h *ImmeubleHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*models.Immeuble, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "Immeuble non trouvé", nil)
		return nil, false
	}
	var immeuble models.Immeuble
	if err := h.DB.First(&immeuble, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "Immeuble non trouvé", nil)
		} else {
			h.serverError(w, "load immeuble", err)
		}
		return nil, false
	}
	user, _ := policy.PrincipalFromContext(r.Context())
	if immeuble.SyndicID != user.Syndic.ID {
		httpx.JSONError(w, http.StatusForbidden, "Vous n'êtes pas autorisé à modifier cet immeuble", nil)
		return nil, false
	}
	return &immeuble, true
}

func (h *ImmeubleHandler) serverError(w http.ResponseWriter, op string, err error) {
	h.Log.Error(op, zap.Error(err))
	httpx.JSONError(w, http.StatusInternalServerError, "Une erreur serveur est survenue", nil)
}
