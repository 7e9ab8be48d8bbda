// Package policy carries the request-time authorization checks: principal
// resolution and the syndic-only guard that scopes building and owner routes.
package policy

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gestion-immeubles/auth"
	"gestion-immeubles/httpx"
	"gestion-immeubles/internal/models"
)

type ctxKey string

const principalCtxKey = ctxKey("principal")

// Guard resolves the authenticated principal and enforces the syndic role.
type Guard struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewGuard(db *gorm.DB, log *zap.Logger) *Guard {
	return &Guard{db: db, log: log}
}

// WithPrincipal stores the resolved user in context. Exported for tests.
func WithPrincipal(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, principalCtxKey, user)
}

// PrincipalFromContext extracts the authenticated user placed there by
// LoadPrincipal. Handlers fail closed when it is absent.
func PrincipalFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(principalCtxKey).(*models.User)
	return user, ok
}

// LoadPrincipal reloads the user (with syndic profile) for the user id the
// auth middleware put in context, and passes it on explicitly. A stale token
// whose user no longer exists gets 401.
func (g *Guard) LoadPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok || uid == 0 {
			httpx.JSONError(w, http.StatusUnauthorized, "Non authentifié", nil)
			return
		}
		var user models.User
		if err := g.db.Preload("Syndic").First(&user, uid).Error; err != nil {
			httpx.JSONError(w, http.StatusUnauthorized, "Non authentifié", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), &user)))
	})
}

// RequireSyndic rejects principals without a syndic profile (role mismatch
// or missing syndics row) with 403.
func (g *Guard) RequireSyndic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := PrincipalFromContext(r.Context())
		if !ok || !user.IsSyndic() {
			httpx.JSONError(w, http.StatusForbidden, "Accès réservé au syndic", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ImmeubleOf returns the building managed by the syndic, or
// gorm.ErrRecordNotFound when none exists yet.
func ImmeubleOf(db *gorm.DB, syndicID uint) (*models.Immeuble, error) {
	var immeuble models.Immeuble
	if err := db.Where("syndic_id = ?", syndicID).First(&immeuble).Error; err != nil {
		return nil, err
	}
	return &immeuble, nil
}
