package policy

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"gestion-immeubles/auth"
	"gestion-immeubles/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Syndic{}, &models.Immeuble{}, &models.Proprietaire{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func okHandler(hit *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hit = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestLoadPrincipal(t *testing.T) {
	db := testDB(t)
	user := models.User{Name: "S", Email: "s@test", Password: "x", Role: models.RoleSyndic}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	if err := db.Create(&models.Syndic{UserID: user.ID, Phone: "0601"}).Error; err != nil {
		t.Fatalf("syndic: %v", err)
	}
	guard := NewGuard(db, zap.NewNop())

	var hit bool
	handler := guard.LoadPrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok || principal.ID != user.ID {
			t.Fatalf("principal missing from context")
		}
		if principal.Syndic == nil {
			t.Fatalf("syndic profile not preloaded")
		}
		hit = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), user.ID))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !hit {
		t.Fatal("handler not reached")
	}
}

func TestLoadPrincipalStaleToken(t *testing.T) {
	db := testDB(t)
	guard := NewGuard(db, zap.NewNop())

	var hit bool
	handler := guard.LoadPrincipal(okHandler(&hit))

	// token for a user that no longer exists
	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), 999))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if hit || w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale token, got %d (hit=%v)", w.Code, hit)
	}
}

func TestRequireSyndicRejectsProprietaire(t *testing.T) {
	db := testDB(t)
	guard := NewGuard(db, zap.NewNop())

	var hit bool
	handler := guard.RequireSyndic(okHandler(&hit))

	owner := models.User{ID: 5, Name: "P", Email: "p@test", Password: "x", Role: models.RoleProprietaire}
	req := httptest.NewRequest(http.MethodGet, "/api/immeubles", nil)
	req = req.WithContext(WithPrincipal(req.Context(), &owner))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if hit || w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for proprietaire, got %d (hit=%v)", w.Code, hit)
	}
}

func TestRequireSyndicRejectsMissingProfile(t *testing.T) {
	db := testDB(t)
	guard := NewGuard(db, zap.NewNop())

	var hit bool
	handler := guard.RequireSyndic(okHandler(&hit))

	// role says syndic but the syndics row is gone
	user := models.User{ID: 6, Name: "S", Email: "s@test", Password: "x", Role: models.RoleSyndic}
	req := httptest.NewRequest(http.MethodGet, "/api/immeubles", nil)
	req = req.WithContext(WithPrincipal(req.Context(), &user))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if hit || w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without syndic profile, got %d (hit=%v)", w.Code, hit)
	}
}

func TestRequireSyndicAllows(t *testing.T) {
	db := testDB(t)
	guard := NewGuard(db, zap.NewNop())

	var hit bool
	handler := guard.RequireSyndic(okHandler(&hit))

	user := models.User{ID: 7, Name: "S", Email: "s@test", Password: "x", Role: models.RoleSyndic,
		Syndic: &models.Syndic{ID: 3, UserID: 7, Phone: "0601"}}
	req := httptest.NewRequest(http.MethodGet, "/api/immeubles", nil)
	req = req.WithContext(WithPrincipal(req.Context(), &user))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if !hit || w.Code != http.StatusOK {
		t.Fatalf("expected pass-through for syndic, got %d (hit=%v)", w.Code, hit)
	}
}
