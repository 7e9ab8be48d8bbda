package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"gestion-immeubles/httpx"
	"gestion-immeubles/internal/models"
	"gestion-immeubles/internal/policy"
	"gestion-immeubles/validation"
)

type ProprietaireHandler struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewProprietaireHandler(db *gorm.DB, log *zap.Logger) *ProprietaireHandler {
	return &ProprietaireHandler{DB: db, Log: log}
}

// ProprietaireRow is the flat users⋈proprietaires row returned by List.
type ProprietaireRow struct {
	ID                uint   `json:"id"`
	UserID            uint   `json:"user_id"`
	ImmeubleID        uint   `json:"immeuble_id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Etage             int    `json:"etage"`
	NumeroAppartement int    `json:"numero_appartement"`
}

var (
	errImmeubleManquant  = errors.New("immeuble not found")
	errAppartementOccupe = errors.New("appartement occupé")
)

// isUniqueViolation covers postgres and sqlite duplicate-key wording; the
// composite index fires here when two requests race past the pre-check.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

func (h *ProprietaireHandler) rows(immeubleID uint) ([]ProprietaireRow, error) {
	var rows []ProprietaireRow
	err := h.DB.Raw(`
		select p.id, p.user_id, p.immeuble_id, u.name, u.email,
		       p.phone, p.etage, p.numero_appartement
		from users u
		inner join proprietaires p on p.user_id = u.id
		where p.immeuble_id = ?
		order by p.etage, p.numero_appartement`, immeubleID).Scan(&rows).Error
	return rows, err
}

// List returns the owners of the caller's building as flat rows.
func (h *ProprietaireHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := policy.PrincipalFromContext(r.Context())
	immeuble, err := policy.ImmeubleOf(h.DB, user.Syndic.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "Immeuble non trouvé", nil)
			return
		}
		h.serverError(w, "resolve immeuble", err)
		return
	}
	rows, err := h.rows(immeuble.ID)
	if err != nil {
		h.serverError(w, "list proprietaires", err)
		return
	}
	if rows == nil {
		rows = []ProprietaireRow{}
	}
	httpx.JSON(w, http.StatusOK, rows)
}

// Show fetches one owner, scoped to the caller's building.
func (h *ProprietaireHandler) Show(w http.ResponseWriter, r *http.Request) {
	proprietaire, ok := h.loadScoped(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, proprietaire)
}

func (h *ProprietaireHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name              string `json:"name"`
		Email             string `json:"email"`
		Password          string `json:"password"`
		Phone             string `json:"phone"`
		Etage             *int   `json:"etage"`
		NumeroAppartement *int   `json:"numero_appartement"`
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
	validation.IntMin("etage", input.Etage, 0, v)
	validation.RequiredInt("numero_appartement", input.NumeroAppartement, v)
	if v.Empty() {
		var count int64
		if err := h.DB.Model(&models.User{}).Where("email = ?", input.Email).Count(&count).Error; err != nil {
			h.serverError(w, "check email uniqueness", err)
			return
		}
		if count > 0 {
			v["email"] = "already_taken"
		}
		if err := h.DB.Model(&models.Proprietaire{}).Where("phone = ?", input.Phone).Count(&count).Error; err != nil {
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

	caller, _ := policy.PrincipalFromContext(r.Context())
	var proprietaire models.Proprietaire
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		// re-resolve inside the transaction: the building must still exist
		// at write time
		var immeuble models.Immeuble
		if err := tx.Where("syndic_id = ?", caller.Syndic.ID).First(&immeuble).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errImmeubleManquant
			}
			return err
		}

		var taken int64
		if err := tx.Model(&models.Proprietaire{}).
			Where("immeuble_id = ? AND etage = ? AND numero_appartement = ?",
				immeuble.ID, *input.Etage, *input.NumeroAppartement).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return errAppartementOccupe
		}

		user := models.User{Name: input.Name, Email: input.Email, Password: string(hash), Role: models.RoleProprietaire}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		proprietaire = models.Proprietaire{
			UserID:            user.ID,
			ImmeubleID:        immeuble.ID,
			Phone:             input.Phone,
			Etage:             *input.Etage,
			NumeroAppartement: *input.NumeroAppartement,
		}
		if err := tx.Create(&proprietaire).Error; err != nil {
			if isUniqueViolation(err) {
				return errAppartementOccupe
			}
			return err
		}
		proprietaire.User = &user
		return nil
	})
	switch {
	case errors.Is(err, errImmeubleManquant):
		httpx.JSONError(w, http.StatusNotFound, "Immeuble non trouvé", nil)
		return
	case errors.Is(err, errAppartementOccupe):
		httpx.JSONValidation(w, validation.Violations{
			"numero_appartement": fmt.Sprintf("Cet appartement est déjà occupé à l'étage: %d", *input.Etage),
		})
		return
	case err != nil:
		h.serverError(w, "create proprietaire", err)
		return
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message":      "Propriétaire créé avec succès",
		"proprietaire": proprietaire,
	})
}

// Update replaces both the owner row and its backing user in one
// transaction. The apartment re-check excludes the row being updated.
func (h *ProprietaireHandler) Update(w http.ResponseWriter, r *http.Request) {
	proprietaire, ok := h.loadScoped(w, r)
	if !ok {
		return
	}

	var input struct {
		Name              string `json:"name"`
		Email             string `json:"email"`
		Password          string `json:"password"`
		Phone             string `json:"phone"`
		Etage             *int   `json:"etage"`
		NumeroAppartement *int   `json:"numero_appartement"`
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
	validation.IntMin("etage", input.Etage, -10, v)
	validation.RequiredInt("numero_appartement", input.NumeroAppartement, v)
	if v.Empty() {
		var count int64
		if err := h.DB.Model(&models.User{}).
			Where("email = ? AND id <> ?", input.Email, proprietaire.UserID).Count(&count).Error; err != nil {
			h.serverError(w, "check email uniqueness", err)
			return
		}
		if count > 0 {
			v["email"] = "already_taken"
		}
		if err := h.DB.Model(&models.Proprietaire{}).
			Where("phone = ? AND id <> ?", input.Phone, proprietaire.ID).Count(&count).Error; err != nil {
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

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Proprietaire{}).
			Where("immeuble_id = ? AND etage = ? AND numero_appartement = ? AND id <> ?",
				proprietaire.ImmeubleID, *input.Etage, *input.NumeroAppartement, proprietaire.ID).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return errAppartementOccupe
		}

		userUpdates := map[string]any{"name": input.Name, "email": input.Email}
		if input.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			userUpdates["password"] = string(hash)
		}
		if err := tx.Model(&models.User{}).Where("id = ?", proprietaire.UserID).
			Updates(userUpdates).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Proprietaire{}).Where("id = ?", proprietaire.ID).
			Updates(map[string]any{
				"phone":              input.Phone,
				"etage":              *input.Etage,
				"numero_appartement": *input.NumeroAppartement,
			}).Error; err != nil {
			if isUniqueViolation(err) {
				return errAppartementOccupe
			}
			return err
		}
		return nil
	})
	switch {
	case errors.Is(err, errAppartementOccupe):
		httpx.JSONValidation(w, validation.Violations{
			"numero_appartement": fmt.Sprintf("Cet appartement est déjà occupé à l'étage: %d", *input.Etage),
		})
		return
	case err != nil:
		h.serverError(w, "update proprietaire", err)
		return
	}

	var fresh models.Proprietaire
	if err := h.DB.Preload("User").First(&fresh, proprietaire.ID).Error; err != nil {
		h.serverError(w, "reload proprietaire", err)
		return
	}
	httpx.JSON(w, http.StatusOK, fresh)
}

// Destroy removes the owner and its backing user. The owner row goes first;
// deleting the user first would leave the FK ordering to the database.
func (h *ProprietaireHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	proprietaire, ok := h.loadScoped(w, r)
	if !ok {
		return
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Proprietaire{}, proprietaire.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, proprietaire.UserID).Error
	})
	if err != nil {
		h.serverError(w, "delete proprietaire", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadScoped fetches the path id within the caller's building. Owners of
// other buildings are reported absent rather than forbidden, so their
// existence does not leak.
func (h *ProprietaireHandler) loadScoped(w http.ResponseWriter, r *http.Request) (*models.Proprietaire, bool) {
	user, _ := policy.PrincipalFromContext(r.Context())
	immeuble, err := policy.ImmeubleOf(h.DB, user.Syndic.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "Immeuble non trouvé", nil)
		} else {
			h.serverError(w, "resolve immeuble", err)
		}
		return nil, false
	}
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "Propriétaire non trouvé", nil)
		return nil, false
	}
	var proprietaire models.Proprietaire
	if err := h.DB.Preload("User").
		Where("id = ? AND immeuble_id = ?", id, immeuble.ID).
		First(&proprietaire).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "Propriétaire non trouvé", nil)
		} else {
			h.serverError(w, "load proprietaire", err)
		}
		return nil, false
	}
	return &proprietaire, true
}

func (h *ProprietaireHandler) serverError(w http.ResponseWriter, op string, err error) {
	h.Log.Error(op, zap.Error(err))
	httpx.JSONError(w, http.StatusInternalServerError, "Une erreur serveur est survenue", nil)
}
