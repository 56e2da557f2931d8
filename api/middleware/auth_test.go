package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/auth"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/config"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "nux-loyalty",
	ExpirationMinutes: 15,
}

func TestAuthSeedsContext(t *testing.T) {
	userID := uuid.New()
	restaurantID := uuid.New()
	token, err := pkgauth.MintAccessToken(testJWTConfig, time.Now(), pkgauth.AccessTokenPayload{
		UserID:       userID,
		RestaurantID: &restaurantID,
		Role:         enums.UserRoleOwner,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var gotUser, gotRole, gotRestaurant string
	handler := Auth(testJWTConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		gotRestaurant = RestaurantIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 but got %d", rec.Code)
	}
	if gotUser != userID.String() {
		t.Fatalf("unexpected user id %q", gotUser)
	}
	if gotRole != string(enums.UserRoleOwner) {
		t.Fatalf("unexpected role %q", gotRole)
	}
	if gotRestaurant != restaurantID.String() {
		t.Fatalf("unexpected restaurant id %q", gotRestaurant)
	}
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWTConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 but got %d", rec.Code)
	}
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	handler := Auth(testJWTConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 but got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(string(enums.UserRoleAdmin), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), uuid.NewString()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 but got %d", rec.Code)
	}
}
