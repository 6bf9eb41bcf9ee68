package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gamevault/apiserver/internal/auth"
	"github.com/gamevault/apiserver/internal/logging"
	"github.com/gamevault/apiserver/internal/services"
	"github.com/gamevault/apiserver/internal/tests/memstore"
	"github.com/gamevault/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

type testEnv struct {
	router *chi.Mux
	mem    *memstore.Store
	tokens *auth.TokenIssuer
}

func newTestEnv(t *testing.T, policy auth.Policy, gameOpts ...services.GameOption) *testEnv {
	t.Helper()

	mem := memstore.New()
	tokens, err := auth.NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	users := services.NewUserService(mem.Users())
	games := services.NewGameService(mem.Games(), gameOpts...)
	library := services.NewLibraryService(mem.Library(), mem.Users(), mem.Games(), nil, logging.Nop())
	requireAuth := RequireAuth(tokens)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, users, tokens, logging.Nop())
	})
	router.Route("/games", func(r chi.Router) {
		GameRouter(r, games, policy, requireAuth, logging.Nop())
	})
	router.Route("/library", func(r chi.Router) {
		LibraryRouter(r, library, policy, requireAuth, logging.Nop())
	})

	return &testEnv{router: router, mem: mem, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, username, email string) (string, types.User) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "p12345",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AuthResponse
	decode(t, rec, &resp)
	return resp.Token, resp.User
}

func (e *testEnv) createGame(t *testing.T, token, title string) types.Game {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/games", token, map[string]any{"title": title})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var game types.Game
	decode(t, rec, &game)
	return game
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, rec, &resp)
	return resp.Message
}
