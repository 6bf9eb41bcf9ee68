package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gamevault/apiserver/config"
	"github.com/gamevault/apiserver/internal/auth"
	"github.com/gamevault/apiserver/internal/logging"
	"github.com/gamevault/apiserver/internal/services"
	"github.com/gamevault/apiserver/internal/tests/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mem := memstore.New()
	tokens, err := auth.NewTokenIssuer("server-test-secret", time.Hour)
	require.NoError(t, err)

	return NewRouter(Dependencies{
		Users:   services.NewUserService(mem.Users()),
		Games:   services.NewGameService(mem.Games()),
		Library: services.NewLibraryService(mem.Library(), mem.Users(), mem.Games(), nil, nil),
		Tokens:  tokens,
		Logger:  logging.Nop(),
	})
}

func call(t *testing.T, h http.Handler, method, path, token string, body any, out any) int {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestExampleFlow(t *testing.T) {
	router := newTestRouter(t)

	var registered struct {
		Token string `json:"token"`
		User  struct {
			ID      int   `json:"id"`
			Library []int `json:"library"`
		} `json:"user"`
	}
	status := call(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "ann",
		"email":    "a@x.com",
		"password": "p12345",
	}, &registered)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, registered.Token)

	var game struct {
		ID    int     `json:"id"`
		Title string  `json:"title"`
		Price float64 `json:"price"`
	}
	status = call(t, router, http.MethodPost, "/api/games", registered.Token, map[string]string{"title": "Chess"}, &game)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Chess", game.Title)
	assert.Zero(t, game.Price)

	var library struct {
		Library []int `json:"library"`
	}
	status = call(t, router, http.MethodPost, "/api/library/add", registered.Token, map[string]int{"gameId": game.ID}, &library)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []int{game.ID}, library.Library)

	var deleted struct {
		Message string `json:"message"`
	}
	status = call(t, router, http.MethodDelete, "/api/games/1", registered.Token, nil, &deleted)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Game deleted", deleted.Message)

	var me struct {
		Library []int `json:"library"`
	}
	status = call(t, router, http.MethodGet, "/api/auth/me", registered.Token, nil, &me)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, me.Library, game.ID)
	assert.Empty(t, me.Library)
}

func TestRouter_Healthz(t *testing.T) {
	router := newTestRouter(t)

	var body map[string]string
	status := call(t, router, http.MethodGet, "/healthz", "", nil, &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_RequestIDHeaderIsAccepted(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestNew_RequiresJWTSecret(t *testing.T) {
	_, err := New(context.Background(), config.Config{}, logging.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrMissingSecret)
}
