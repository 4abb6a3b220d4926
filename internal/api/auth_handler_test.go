package api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/whatsapp-assistant/internal/api"
	"github.com/phrazzld/whatsapp-assistant/internal/domain"
	"github.com/phrazzld/whatsapp-assistant/internal/mocks"
	"github.com/phrazzld/whatsapp-assistant/internal/service"
	"github.com/phrazzld/whatsapp-assistant/internal/service/auth"
	"github.com/phrazzld/whatsapp-assistant/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mountAuth(h *api.AuthHandler) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/api/auth/register", h.Register)
		r.Post("/api/auth/login", h.Login)
		r.Post("/api/auth/refresh", h.RefreshToken)
		r.Get("/api/auth/profile", h.GetProfile)
		r.Put("/api/auth/profile", h.UpdateProfile)
	}
}

func TestAuthHandler_Register(t *testing.T) {
	user := newTestUser(t)

	t.Run("success", func(t *testing.T) {
		var got service.RegisterParams
		users := &fakeUserService{
			RegisterFn: func(ctx context.Context, params service.RegisterParams) (*domain.User, error) {
				got = params
				return user, nil
			},
		}
		h := api.NewAuthHandler(users, &mocks.MockJWTService{}, time.Hour)

		rec := do(t, mountAuth(h), http.MethodPost, "/api/auth/register",
			`{"phoneNumber":"+15551234567","name":"Ada","email":"ada@example.com","password":"correct-horse"}`, nil)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, service.RegisterParams{
			PhoneNumber: "+15551234567",
			Name:        "Ada",
			Email:       "ada@example.com",
			Password:    "correct-horse",
		}, got)

		body := decodeBody(t, rec)
		assert.Equal(t, auth.TokenTypeAccess+":"+user.ID.String(), body["token"])
		assert.Equal(t, auth.TokenTypeRefresh+":"+user.ID.String(), body["refresh_token"])
		assert.NotEmpty(t, body["expires_at"])
		userBody := body["user"].(map[string]any)
		assert.Equal(t, user.ID.String(), userBody["id"])
		assert.Equal(t, "+15551234567", userBody["phoneNumber"])
		assert.Equal(t, "Ada", userBody["name"])
	})

	t.Run("duplicate phone", func(t *testing.T) {
		users := &fakeUserService{
			RegisterFn: func(ctx context.Context, params service.RegisterParams) (*domain.User, error) {
				return nil, service.ErrUserExists
			},
		}
		h := api.NewAuthHandler(users, &mocks.MockJWTService{}, time.Hour)

		rec := do(t, mountAuth(h), http.MethodPost, "/api/auth/register", `{"phoneNumber":"+15551234567"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"User already exists"}`, rec.Body.String())
	})

	t.Run("validation failure", func(t *testing.T) {
		h := api.NewAuthHandler(&fakeUserService{}, &mocks.MockJWTService{}, time.Hour)

		rec := do(t, mountAuth(h), http.MethodPost, "/api/auth/register",
			`{"phoneNumber":"call me","password":"short"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{
			"error": "Validation failed",
			"details": [
				{"field": "phoneNumber", "message": "must be a valid phone number"},
				{"field": "password", "message": "must be at least 8 characters"}
			]
		}`, rec.Body.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		h := api.NewAuthHandler(&fakeUserService{}, &mocks.MockJWTService{}, time.Hour)

		rec := do(t, mountAuth(h), http.MethodPost, "/api/auth/register", `{`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid request format"}`, rec.Body.String())
	})

	t.Run("token failure", func(t *testing.T) {
		users := &fakeUserService{
			RegisterFn: func(ctx context.Context, params service.RegisterParams) (*domain.User, error) {
				return user, nil
			},
		}
		jwt := &mocks.MockJWTService{
			GenerateTokenFn: func(ctx context.Context, userID uuid.UUID) (string, error) {
				return "", errors.New("signing failed")
			},
		}
		h := api.NewAuthHandler(users, jwt, time.Hour)

		rec := do(t, mountAuth(h), http.MethodPost, "/api/auth/register", `{"phoneNumber":"+15551234567"}`, nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Failed to generate authentication token"}`, rec.Body.String())
	})
}

func TestAuthHandler_Login(t *testing.T) {
	user := newTestUser(t)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "success", wantStatus: http.StatusOK},
		{
			name:       "invalid credentials",
			err:        service.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid credentials",
		},
		{
			name:       "inactive account",
			err:        service.ErrAccountInactive,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Account is inactive",
		},
		{
			name:       "store failure",
			err:        errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Login failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &fakeUserService{
				LoginFn: func(ctx context.Context, phone, password string) (*domain.User, error) {
					assert.Equal(t, "+15551234567", phone)
					assert.Equal(t, "secret-pass", password)
					if tt.err != nil {
						return nil, tt.err
					}
					return user, nil
				},
			}
			h := api.NewAuthHandler(users, &mocks.MockJWTService{}, time.Hour)

			rec := do(t, mountAuth(h), http.MethodPost, "/api/auth/login",
				`{"phoneNumber":"+15551234567","password":"secret-pass"}`, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
				return
			}
			assert.Equal(t, auth.TokenTypeAccess+":"+user.ID.String(), body["token"])
		})
	}
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	user := newTestUser(t)
	users := &fakeUserService{
		GetProfileFn: func(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
			if userID == user.ID {
				return user, nil
			}
			return nil, store.ErrUserNotFound
		},
	}
	h := api.NewAuthHandler(users, &mocks.MockJWTService{}, time.Hour)

	t.Run("success", func(t *testing.T) {
		rec := do(t, mountAuth(h), http.MethodPost, "/api/auth/refresh",
			`{"refresh_token":"refresh:`+user.ID.String()+`"}`, nil)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, "access:"+user.ID.String(), body["token"])
		assert.Equal(t, "refresh:"+user.ID.String(), body["refresh_token"])
	})

	t.Run("access token rejected", func(t *testing.T) {
		rec := do(t, mountAuth(h), http.MethodPost, "/api/auth/refresh",
			`{"refresh_token":"access:`+user.ID.String()+`"}`, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid token"}`, rec.Body.String())
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := do(t, mountAuth(h), http.MethodPost, "/api/auth/refresh", `{"refresh_token":"nope"}`, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid refresh token"}`, rec.Body.String())
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := do(t, mountAuth(h), http.MethodPost, "/api/auth/refresh",
			`{"refresh_token":"refresh:`+uuid.NewString()+`"}`, nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"User not found"}`, rec.Body.String())
	})

	t.Run("missing token", func(t *testing.T) {
		rec := do(t, mountAuth(h), http.MethodPost, "/api/auth/refresh", `{}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthHandler_Profile(t *testing.T) {
	user := newTestUser(t)
	seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	user.LastSeenAt = &seen
	user.Preferences = map[string]any{"language": "en"}

	t.Run("get", func(t *testing.T) {
		users := &fakeUserService{
			GetProfileFn: func(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
				assert.Equal(t, user.ID, userID)
				return user, nil
			},
		}
		h := api.NewAuthHandler(users, &mocks.MockJWTService{}, time.Hour)

		rec := do(t, mountAuth(h), http.MethodGet, "/api/auth/profile", "", user)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, user.ID.String(), body["id"])
		assert.Equal(t, "2024-05-01T12:00:00Z", body["lastSeenAt"])
		assert.Equal(t, map[string]any{"language": "en"}, body["preferences"])
		assert.NotContains(t, body, "isActive")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		h := api.NewAuthHandler(&fakeUserService{}, &mocks.MockJWTService{}, time.Hour)

		rec := do(t, mountAuth(h), http.MethodGet, "/api/auth/profile", "", nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("update", func(t *testing.T) {
		var got service.ProfileUpdate
		users := &fakeUserService{
			UpdateProfileFn: func(ctx context.Context, userID uuid.UUID, update service.ProfileUpdate) (*domain.User, error) {
				got = update
				updated := *user
				updated.Name = update.Name
				return &updated, nil
			},
		}
		h := api.NewAuthHandler(users, &mocks.MockJWTService{}, time.Hour)

		rec := do(t, mountAuth(h), http.MethodPut, "/api/auth/profile",
			`{"name":"Grace","preferences":{"tone":"brief"}}`, user)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Grace", got.Name)
		assert.Equal(t, map[string]any{"tone": "brief"}, got.Preferences)
		assert.Equal(t, "Grace", decodeBody(t, rec)["name"])
	})

	t.Run("update with invalid email", func(t *testing.T) {
		h := api.NewAuthHandler(&fakeUserService{}, &mocks.MockJWTService{}, time.Hour)

		rec := do(t, mountAuth(h), http.MethodPut, "/api/auth/profile", `{"email":"not-an-email"}`, user)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Validation failed", decodeBody(t, rec)["error"])
	})
}
