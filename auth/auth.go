// Package auth implements bearer-token authentication: HS256 JWTs whose
// jti is persisted in the access_tokens table, so that logout revokes a
// token server-side instead of waiting for its expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ctxKey string

const (
	userIDCtxKey  = ctxKey("userID")
	tokenIDCtxKey = ctxKey("tokenID")
)

var ErrInvalidToken = errors.New("invalid token")

// AccessToken is one issued (and not yet revoked) bearer token.
type AccessToken struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    uint      `gorm:"not null;index"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}

// Service issues, verifies and revokes access tokens.
type Service struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
}

func NewService(db *gorm.DB, secret string, ttl time.Duration) *Service {
	return &Service{db: db, secret: []byte(secret), ttl: ttl}
}

// Issue creates a token row for the user and returns the signed JWT.
func (s *Service) Issue(userID uint) (string, error) {
	now := time.Now()
	record := AccessToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return "", fmt.Errorf("create access token: %w", err)
	}
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ID:        record.ID,
		ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse validates the signature and expiry, then checks that the token has
// not been revoked. Returns the user id and the token id.
func (s *Service) Parse(raw string) (uint, string, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.ID == "" || claims.Subject == "" {
		return 0, "", ErrInvalidToken
	}
	uid64, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, "", ErrInvalidToken
	}
	var record AccessToken
	if err := s.db.Where("id = ?", claims.ID).First(&record).Error; err != nil {
		// revoked (or never issued)
		return 0, "", ErrInvalidToken
	}
	if time.Now().After(record.ExpiresAt) {
		return 0, "", ErrInvalidToken
	}
	return uint(uid64), claims.ID, nil
}

// Revoke deletes the token row; subsequent Parse calls fail.
func (s *Service) Revoke(tokenID string) error {
	return s.db.Where("id = ?", tokenID).Delete(&AccessToken{}).Error
}

// RevokeAllForUser removes every token of a user (account deletion).
func (s *Service) RevokeAllForUser(userID uint) error {
	return s.db.Where("user_id = ?", userID).Delete(&AccessToken{}).Error
}

// BearerFromRequest extracts the raw token from the Authorization header.
func BearerFromRequest(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" || !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(h, "Bearer "), true
}

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDCtxKey).(uint)
	return id, ok
}

// WithTokenID stores the current token id in context (used by logout).
func WithTokenID(ctx context.Context, tokenID string) context.Context {
	return context.WithValue(ctx, tokenIDCtxKey, tokenID)
}

// TokenIDFromContext extracts the current token id.
func TokenIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(tokenIDCtxKey).(string)
	return id, ok
}

// Middleware attaches user and token ids to the request context when a valid
// bearer token is present. It never rejects; RequireAuth does.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw, ok := BearerFromRequest(r); ok {
			if uid, tokenID, err := s.Parse(raw); err == nil {
				ctx := WithUserID(r.Context(), uid)
				ctx = WithTokenID(ctx, tokenID)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects unauthenticated requests with a 401 JSON body.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := UserIDFromContext(r.Context()); !ok || uid == 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Non authentifié"}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}
