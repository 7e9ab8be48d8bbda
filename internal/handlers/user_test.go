package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"gestion-immeubles/auth"
	"gestion-immeubles/internal/models"
)

func TestUserShowWithSyndic(t *testing.T) {
	db := setupTestDB(t)
	syndic := seedSyndic(t, db, "s@test", "0601")
	h := NewUserHandler(db, auth.NewService(db, "testsecret", time.Hour), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/users/"+strconv.Itoa(int(syndic.ID)), nil)
	req.SetPathValue("id", strconv.Itoa(int(syndic.ID)))
	req = asPrincipal(req, syndic)
	w := httptest.NewRecorder()
	h.Show(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var user models.User
	if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if user.Syndic == nil || user.Syndic.Phone != "0601" {
		t.Fatalf("expected nested syndic, got %+v", user.Syndic)
	}
}

func TestUserUpdateSelf(t *testing.T) {
	db := setupTestDB(t)
	syndic := seedSyndic(t, db, "s@test", "0601")
	h := NewUserHandler(db, auth.NewService(db, "testsecret", time.Hour), testLogger())

	body := `{"name":"Nouveau Nom","email":"nouveau@test","phone":"0699"}`
	req := httptest.NewRequest(http.MethodPut, "/api/users/"+strconv.Itoa(int(syndic.ID)), strings.NewReader(body))
	req.SetPathValue("id", strconv.Itoa(int(syndic.ID)))
	req = asPrincipal(req, syndic)
	w := httptest.NewRecorder()
	h.Update(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var fresh models.User
	if err := db.Preload("Syndic").First(&fresh, syndic.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh.Name != "Nouveau Nom" || fresh.Email != "nouveau@test" {
		t.Fatalf("user not updated: %+v", fresh)
	}
	if fresh.Syndic.Phone != "0699" {
		t.Fatalf("syndic phone not updated: %+v", fresh.Syndic)
	}
}

func TestUserUpdateOtherForbidden(t *testing.T) {
	db := setupTestDB(t)
	syndic := seedSyndic(t, db, "s@test", "0601")
	victim := seedSyndic(t, db, "v@test", "0602")
	h := NewUserHandler(db, auth.NewService(db, "testsecret", time.Hour), testLogger())

	body := `{"name":"Pirate","email":"pirate@test","phone":"0666"}`
	req := httptest.NewRequest(http.MethodPut, "/api/users/"+strconv.Itoa(int(victim.ID)), strings.NewReader(body))
	req.SetPathValue("id", strconv.Itoa(int(victim.ID)))
	req = asPrincipal(req, syndic)
	w := httptest.NewRecorder()
	h.Update(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", w.Code)
	}
	var fresh models.User
	if err := db.First(&fresh, victim.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh.Email != "v@test" {
		t.Fatalf("victim was modified: %+v", fresh)
	}
}

func TestUserUpdatePhoneTakenBySyndic(t *testing.T) {
	db := setupTestDB(t)
	syndic := seedSyndic(t, db, "s@test", "0601")
	seedSyndic(t, db, "v@test", "0602")
	h := NewUserHandler(db, auth.NewService(db, "testsecret", time.Hour), testLogger())

	body := `{"name":"Nom","email":"s@test","phone":"0602"}`
	req := httptest.NewRequest(http.MethodPut, "/api/users/"+strconv.Itoa(int(syndic.ID)), strings.NewReader(body))
	req.SetPathValue("id", strconv.Itoa(int(syndic.ID)))
	req = asPrincipal(req, syndic)
	w := httptest.NewRecorder()
	h.Update(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestUserDestroySelf(t *testing.T) {
	db := setupTestDB(t)
	syndic := seedSyndic(t, db, "s@test", "0601")
	other := seedSyndic(t, db, "o@test", "0602")
	h := NewUserHandler(db, auth.NewService(db, "testsecret", time.Hour), testLogger())

	// deleting someone else is forbidden
	req := httptest.NewRequest(http.MethodDelete, "/api/users/"+strconv.Itoa(int(other.ID)), nil)
	req.SetPathValue("id", strconv.Itoa(int(other.ID)))
	req = asPrincipal(req, syndic)
	w := httptest.NewRecorder()
	h.Destroy(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/users/"+strconv.Itoa(int(syndic.ID)), nil)
	req.SetPathValue("id", strconv.Itoa(int(syndic.ID)))
	req = asPrincipal(req, syndic)
	w = httptest.NewRecorder()
	h.Destroy(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}

	var count int64
	db.Model(&models.User{}).Where("id = ?", syndic.ID).Count(&count)
	if count != 0 {
		t.Fatal("user still present")
	}
	db.Model(&models.Syndic{}).Where("user_id = ?", syndic.ID).Count(&count)
	if count != 0 {
		t.Fatal("dependent syndic row still present")
	}
}

func TestUserDestroySyndicWithImmeuble(t *testing.T) {
	db := setupTestDB(t)
	syndic := seedSyndic(t, db, "s@test", "0601")
	immeuble := seedImmeuble(t, db, syndic.Syndic.ID, "Les Jardins")
	owner := seedProprietaire(t, db, immeuble.ID, "a@test", "0611", 1, 1)
	h := NewUserHandler(db, auth.NewService(db, "testsecret", time.Hour), testLogger())

	req := httptest.NewRequest(http.MethodDelete, "/api/users/"+strconv.Itoa(int(syndic.ID)), nil)
	req.SetPathValue("id", strconv.Itoa(int(syndic.ID)))
	req = asPrincipal(req, syndic)
	w := httptest.NewRecorder()
	h.Destroy(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	// the building and its owners go with the account
	var count int64
	db.Model(&models.Immeuble{}).Where("id = ?", immeuble.ID).Count(&count)
	if count != 0 {
		t.Fatal("immeuble still present")
	}
	db.Model(&models.Proprietaire{}).Where("id = ?", owner.ID).Count(&count)
	if count != 0 {
		t.Fatal("proprietaire still present")
	}
	db.Model(&models.User{}).Where("id = ?", owner.UserID).Count(&count)
	if count != 0 {
		t.Fatal("owner user still present")
	}
	db.Model(&models.Syndic{}).Where("user_id = ?", syndic.ID).Count(&count)
	if count != 0 {
		t.Fatal("syndic row still present")
	}
}
