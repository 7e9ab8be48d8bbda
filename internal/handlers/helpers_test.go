package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"gestion-immeubles/auth"
	"gestion-immeubles/internal/models"
	"gestion-immeubles/internal/policy"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// FK enforcement on, as in the real schema
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Syndic{}, &models.Immeuble{}, &models.Proprietaire{}, &auth.AccessToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// seedSyndic creates a syndic account (user + profile) and returns the user
// with its Syndic association loaded, the way LoadPrincipal delivers it.
func seedSyndic(t *testing.T, db *gorm.DB, email, phone string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("motdepasse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := models.User{Name: "Syndic " + phone, Email: email, Password: string(hash), Role: models.RoleSyndic}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	if err := db.Create(&models.Syndic{UserID: user.ID, Phone: phone}).Error; err != nil {
		t.Fatalf("syndic: %v", err)
	}
	var loaded models.User
	if err := db.Preload("Syndic").First(&loaded, user.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	return &loaded
}

func seedImmeuble(t *testing.T, db *gorm.DB, syndicID uint, name string) *models.Immeuble {
	t.Helper()
	immeuble := models.Immeuble{ImmeubleName: name, Address: "1 rue de la Paix", SyndicID: syndicID}
	if err := db.Create(&immeuble).Error; err != nil {
		t.Fatalf("immeuble: %v", err)
	}
	return &immeuble
}

func seedProprietaire(t *testing.T, db *gorm.DB, immeubleID uint, email, phone string, etage, numero int) *models.Proprietaire {
	t.Helper()
	user := models.User{Name: "Proprio " + phone, Email: email, Password: "x", Role: models.RoleProprietaire}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	proprietaire := models.Proprietaire{
		UserID: user.ID, ImmeubleID: immeubleID, Phone: phone,
		Etage: etage, NumeroAppartement: numero,
	}
	if err := db.Create(&proprietaire).Error; err != nil {
		t.Fatalf("proprietaire: %v", err)
	}
	return &proprietaire
}

// asPrincipal attaches the principal the way the policy middleware does.
func asPrincipal(r *http.Request, user *models.User) *http.Request {
	return r.WithContext(policy.WithPrincipal(r.Context(), user))
}

func testLogger() *zap.Logger { return zap.NewNop() }
