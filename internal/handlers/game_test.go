package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gamevault/apiserver/internal/auth"
	"github.com/gamevault/apiserver/internal/services"
	"github.com/gamevault/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListGames(t *testing.T) {
	env := newTestEnv(t, auth.Policy{})

	rec := env.do(t, http.MethodGet, "/games", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	token, _ := env.register(t, "ann", "a@x.com")
	env.createGame(t, token, "Chess")
	env.createGame(t, token, "Chess 2")
	env.createGame(t, token, "Go")

	rec = env.do(t, http.MethodGet, "/games?q=CHESS", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var games []types.Game
	decode(t, rec, &games)
	require.Len(t, games, 2)
	assert.Equal(t, "Chess 2", games[0].Title)
	assert.Equal(t, "Chess", games[1].Title)
}

func TestCreateGame(t *testing.T) {
	env := newTestEnv(t, auth.Policy{})
	token, user := env.register(t, "ann", "a@x.com")

	rec := env.do(t, http.MethodPost, "/games", "", map[string]any{"title": "Chess"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/games", token, map[string]any{
		"title":       "Chess",
		"genre":       "board",
		"price":       4.5,
		"releaseDate": "1990-05-17",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var game types.Game
	decode(t, rec, &game)
	assert.Equal(t, "Chess", game.Title)
	assert.Equal(t, 4.5, game.Price)
	require.NotNil(t, game.ReleaseDate)
	assert.Equal(t, "1990-05-17", game.ReleaseDate.Format("2006-01-02"))
	require.NotNil(t, game.CreatedBy)
	assert.Equal(t, user.ID, *game.CreatedBy)

	rec = env.do(t, http.MethodPost, "/games", token, map[string]any{"title": "Go"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price":0`)
}

func TestCreateGame_Validation(t *testing.T) {
	env := newTestEnv(t, auth.Policy{})
	token, _ := env.register(t, "ann", "a@x.com")

	cases := map[string]any{
		"missing title":  map[string]any{"genre": "board"},
		"negative price": map[string]any{"title": "Chess", "price": -1},
		"bad date":       map[string]any{"title": "Chess", "releaseDate": "17/05/1990"},
		"bad json":       "{",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/games", token, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, errorMessage(t, rec))
		})
	}
}

func TestGetGame(t *testing.T) {
	env := newTestEnv(t, auth.Policy{})
	token, _ := env.register(t, "ann", "a@x.com")
	game := env.createGame(t, token, "Chess")

	rec := env.do(t, http.MethodGet, "/games/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got types.Game
	decode(t, rec, &got)
	assert.Equal(t, game.ID, got.ID)

	rec = env.do(t, http.MethodGet, "/games/99", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "game not found", errorMessage(t, rec))

	rec = env.do(t, http.MethodGet, "/games/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid game id", errorMessage(t, rec))
}

func TestUpdateGame(t *testing.T) {
	env := newTestEnv(t, auth.Policy{})
	token, _ := env.register(t, "ann", "a@x.com")
	env.do(t, http.MethodPost, "/games", token, map[string]any{
		"title":       "Chess",
		"genre":       "board",
		"releaseDate": "1990-05-17T10:00:00Z",
	})

	rec := env.do(t, http.MethodPut, "/games/1", token, map[string]any{"price": 9.99})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var game types.Game
	decode(t, rec, &game)
	assert.Equal(t, "Chess", game.Title)
	assert.Equal(t, "board", game.Genre)
	assert.Equal(t, 9.99, game.Price)
	require.NotNil(t, game.ReleaseDate)

	rec = env.do(t, http.MethodPut, "/games/1", token, `{"releaseDate": null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &game)
	assert.Nil(t, game.ReleaseDate)

	rec = env.do(t, http.MethodPut, "/games/42", token, map[string]any{"price": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/games/1", "", map[string]any{"price": 1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteGame_CascadesLibraries(t *testing.T) {
	env := newTestEnv(t, auth.Policy{})
	annToken, ann := env.register(t, "ann", "a@x.com")
	bobToken, bob := env.register(t, "bob", "b@x.com")
	game := env.createGame(t, annToken, "Chess")
	keep := env.createGame(t, annToken, "Go")

	for _, token := range []string{annToken, bobToken} {
		rec := env.do(t, http.MethodPost, "/library/add", token, map[string]int{"gameId": game.ID})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/library/add", bobToken, map[string]int{"gameId": keep.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/games/1", annToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Game deleted"}`, rec.Body.String())

	annIDs, err := env.mem.Library().IDs(context.Background(), ann.ID)
	require.NoError(t, err)
	assert.Empty(t, annIDs)
	bobIDs, err := env.mem.Library().IDs(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{keep.ID}, bobIDs)

	rec = env.do(t, http.MethodDelete, "/games/1", annToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalogAdminOnlyPolicy(t *testing.T) {
	env := newTestEnv(t, auth.Policy{CatalogAdminOnly: true})
	userToken, _ := env.register(t, "ann", "a@x.com")
	_, admin := env.register(t, "root", "root@x.com")
	env.mem.SetAdmin(admin.ID, true)

	rec := env.do(t, http.MethodPost, "/games", userToken, map[string]any{"title": "Chess"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "you are not allowed to perform this action", errorMessage(t, rec))

	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"emailOrUsername": "root", "password": "p12345"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login AuthResponse
	decode(t, rec, &login)
	require.True(t, login.User.IsAdmin)

	game := env.createGame(t, login.Token, "Chess")

	rec = env.do(t, http.MethodPut, "/games/1", userToken, map[string]any{"price": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodDelete, "/games/1", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/library/add", userToken, map[string]int{"gameId": game.ID})
	assert.Equal(t, http.StatusOK, rec.Code)
}

type memoryObjects struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func (m *memoryObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.contentTypes[key] = contentType
	return nil
}

func (m *memoryObjects) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func coverRequest(t *testing.T, path, token, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="cover"; filename="cover.png"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadCover(t *testing.T) {
	objects := &memoryObjects{objects: map[string][]byte{}, contentTypes: map[string]string{}}
	env := newTestEnv(t, auth.Policy{}, services.WithCoverStorage(objects, "http://cdn.local"))
	token, _ := env.register(t, "ann", "a@x.com")
	env.createGame(t, token, "Chess")

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, coverRequest(t, "/games/1/cover", token, "", png))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var game types.Game
	decode(t, rec, &game)
	require.True(t, strings.HasPrefix(game.CoverURL, "http://cdn.local/covers/1/"), game.CoverURL)
	key := strings.TrimPrefix(game.CoverURL, "http://cdn.local/")
	assert.Equal(t, png, objects.objects[key])
	assert.Equal(t, "image/png", objects.contentTypes[key])

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, coverRequest(t, "/games/1/cover", token, "text/plain", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, coverRequest(t, "/games/7/cover", token, "image/png", png))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadCover_DisabledWithoutStorage(t *testing.T) {
	env := newTestEnv(t, auth.Policy{})
	token, _ := env.register(t, "ann", "a@x.com")
	env.createGame(t, token, "Chess")

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, coverRequest(t, "/games/1/cover", token, "image/png", []byte("x")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGameRequestReleaseDate(t *testing.T) {
	cases := []struct {
		raw     string
		set     bool
		want    string
		wantErr bool
	}{
		{raw: "", set: false},
		{raw: "null", set: true},
		{raw: `""`, set: true},
		{raw: `"2020-02-29"`, set: true, want: "2020-02-29"},
		{raw: `"2020-02-29T23:30:00+02:00"`, set: true, want: "2020-02-29"},
		{raw: `"yesterday"`, wantErr: true},
		{raw: `20200229`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			date, set, err := GameRequest{ReleaseDate: []byte(tc.raw)}.releaseDate()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.set, set)
			if tc.want == "" {
				assert.Nil(t, date)
				return
			}
			require.NotNil(t, date)
			assert.Equal(t, tc.want, date.Format("2006-01-02"))
		})
	}
}
