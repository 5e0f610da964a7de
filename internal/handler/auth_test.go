package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/appforge/internal/auth"
	"github.com/sakif/appforge/internal/handler"
	"github.com/sakif/appforge/internal/model"
	"github.com/sakif/appforge/internal/repository/memory"
	"github.com/sakif/appforge/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newAuthHandler wires a real AuthService over the in-memory store, with the
// cheapest bcrypt cost so the tests stay fast.
func newAuthHandler(t *testing.T) (*handler.AuthHandler, *memory.Store) {
	t.Helper()
	store := memory.New()
	tokens, err := auth.NewTokenService("test-secret-long-enough-for-hs256")
	if err != nil {
		t.Fatal(err)
	}
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)
	svc := service.NewAuthService(store, tokens, passwords, testLogger())
	github := auth.NewGitHubProvider("", "", "")
	return handler.NewAuthHandler(svc, github, testLogger()), store
}

func sessionCookie(res *http.Response) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Register(t *testing.T) {
	t.Run("creates account and sets session cookie", func(t *testing.T) {
		h, _ := newAuthHandler(t)

		body := `{"email":"new@example.com","password":"hunter2hunter2","firstName":"New","lastName":"User"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var user model.User
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
		assert.Equal(t, "new@example.com", user.Email)
		assert.Equal(t, model.DefaultCredits, user.Credits)

		cookie := sessionCookie(rr.Result())
		assert.NotNil(t, cookie)
		assert.NotEmpty(t, cookie.Value)
		assert.True(t, cookie.HttpOnly)
	})

	t.Run("password hash never leaves the server", func(t *testing.T) {
		h, _ := newAuthHandler(t)

		body := `{"email":"leak@example.com","password":"hunter2hunter2"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.NotContains(t, rr.Body.String(), "$2")
		assert.NotContains(t, rr.Body.String(), "passwordHash")
	})

	t.Run("duplicate email", func(t *testing.T) {
		h, _ := newAuthHandler(t)

		body := `{"email":"dup@example.com","password":"hunter2hunter2"}`
		first := httptest.NewRecorder()
		h.HandleRegister(first, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body)))
		assert.Equal(t, http.StatusCreated, first.Code)

		second := httptest.NewRecorder()
		h.HandleRegister(second, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body)))
		assert.Equal(t, http.StatusConflict, second.Code)
	})

	t.Run("short password", func(t *testing.T) {
		h, _ := newAuthHandler(t)

		body := `{"email":"a@example.com","password":"short"}`
		rr := httptest.NewRecorder()
		h.HandleRegister(rr, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body)))

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var errRes handler.ErrorResponse
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&errRes))
		assert.Equal(t, "validation_error", errRes.Error)
	})

	t.Run("malformed body", func(t *testing.T) {
		h, _ := newAuthHandler(t)

		rr := httptest.NewRecorder()
		h.HandleRegister(rr, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(`{"email":`)))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	register := func(t *testing.T, h *handler.AuthHandler, email, password string) {
		t.Helper()
		body, _ := json.Marshal(map[string]string{"email": email, "password": password})
		rr := httptest.NewRecorder()
		h.HandleRegister(rr, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBuffer(body)))
		assert.Equal(t, http.StatusCreated, rr.Code)
	}

	t.Run("valid credentials", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		register(t, h, "user@example.com", "hunter2hunter2")

		body := `{"email":"USER@example.com","password":"hunter2hunter2"}`
		rr := httptest.NewRecorder()
		h.HandleLogin(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body)))

		// Email matching is case-insensitive.
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotNil(t, sessionCookie(rr.Result()))
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		register(t, h, "user@example.com", "hunter2hunter2")

		responses := make([]string, 0, 2)
		for _, body := range []string{
			`{"email":"user@example.com","password":"wrongwrong"}`,
			`{"email":"nobody@example.com","password":"wrongwrong"}`,
		} {
			rr := httptest.NewRecorder()
			h.HandleLogin(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body)))
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			responses = append(responses, rr.Body.String())
		}
		assert.Equal(t, responses[0], responses[1])
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	h, _ := newAuthHandler(t)

	rr := httptest.NewRecorder()
	h.HandleLogout(rr, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	cookie := sessionCookie(rr.Result())
	assert.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.Empty(t, cookie.Value)
}

func TestAuthHandler_Me(t *testing.T) {
	h, store := newAuthHandler(t)

	u := &model.User{Email: "me@example.com"}
	assert.NoError(t, store.CreateUser(context.Background(), u))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = req.WithContext(auth.ContextWithUserID(req.Context(), u.ID))
	rr := httptest.NewRecorder()

	h.HandleMe(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var got model.User
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, u.ID, got.ID)
}

func TestAuthHandler_GitHubConnectUnconfigured(t *testing.T) {
	h, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/github/connect", nil)
	req = req.WithContext(auth.ContextWithUserID(req.Context(), "u1"))
	rr := httptest.NewRecorder()

	h.HandleGitHubConnect(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
