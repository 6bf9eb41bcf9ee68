package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gamevault/apiserver/internal/auth"
	"github.com/gamevault/apiserver/internal/logging"
	"github.com/gamevault/apiserver/internal/services"
	"github.com/gamevault/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	maxCoverBytes    = 10 << 20
	formFieldCover   = "cover"
	sniffLength      = 512
	releaseDayLayout = "2006-01-02"
)

// GameHandler provides HTTP handlers for the catalog.
type GameHandler struct {
	gameService *services.GameService
	policy      auth.Policy
	logger      logging.Logger
}

// NewGameHandler constructs a GameHandler with the provided dependencies.
func NewGameHandler(gameService *services.GameService, policy auth.Policy, logger logging.Logger) *GameHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &GameHandler{
		gameService: gameService,
		policy:      policy,
		logger:      logger,
	}
}

// GameRouter registers catalog routes on the given router. Reads are public;
// writes require authMiddleware and pass through the policy.
func GameRouter(
	r chi.Router,
	gameService *services.GameService,
	policy auth.Policy,
	authMiddleware func(http.Handler) http.Handler,
	logger logging.Logger,
) {
	handler := NewGameHandler(gameService, policy, logger)

	r.Get("/", handler.ListGames)
	r.With(authMiddleware).Post("/", handler.CreateGame)
	r.Route("/{gameID}", func(r chi.Router) {
		r.Get("/", handler.GetGame)
		r.With(authMiddleware).Put("/", handler.UpdateGame)
		r.With(authMiddleware).Delete("/", handler.DeleteGame)
		if gameService.CoversEnabled() {
			r.With(authMiddleware).Post("/cover", handler.UploadCover)
		}
	})
}

// ListGames returns the catalog, filtered by the optional q parameter.
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.gameService.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// GetGame returns a single game.
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, err := parseGameID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	game, err := h.gameService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// CreateGame adds a game owned by the caller.
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, h.policy, auth.ActionGameCreate)
	if !ok {
		return
	}

	var req GameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	releaseDate, _, err := req.releaseDate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	game, err := h.gameService.Create(r.Context(), services.NewGame{
		Title:       deref(req.Title),
		Description: deref(req.Description),
		Price:       req.Price,
		CoverURL:    deref(req.CoverURL),
		Genre:       deref(req.Genre),
		ReleaseDate: releaseDate,
	}, claims.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// UpdateGame applies a partial update to a game.
func (h *GameHandler) UpdateGame(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, h.policy, auth.ActionGameUpdate); !ok {
		return
	}
	id, err := parseGameID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req GameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	releaseDate, setReleaseDate, err := req.releaseDate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	game, err := h.gameService.Update(r.Context(), id, types.GamePatch{
		Title:          req.Title,
		Description:    req.Description,
		Price:          req.Price,
		CoverURL:       req.CoverURL,
		Genre:          req.Genre,
		ReleaseDate:    releaseDate,
		SetReleaseDate: setReleaseDate,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// DeleteGame removes a game from the catalog and every library.
func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, h.policy, auth.ActionGameDelete); !ok {
		return
	}
	id, err := parseGameID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.gameService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Game deleted"})
}

// UploadCover accepts a multipart image under the "cover" field.
func (h *GameHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, h.policy, auth.ActionGameCover); !ok {
		return
	}
	id, err := parseGameID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCoverBytes+sniffLength)
	if err := r.ParseMultipartForm(maxCoverBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile(formFieldCover)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cover file is required")
		return
	}
	defer file.Close()

	if header.Size > maxCoverBytes {
		writeError(w, http.StatusBadRequest, "cover file too large")
		return
	}

	body, contentType, err := sniffContentType(file, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read cover file")
		return
	}

	game, err := h.gameService.SetCover(r.Context(), id, services.CoverUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        body,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// GameRequest is the JSON body for create and update. Absent fields are nil.
type GameRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Price       *float64        `json:"price"`
	CoverURL    *string         `json:"coverUrl"`
	Genre       *string         `json:"genre"`
	ReleaseDate json.RawMessage `json:"releaseDate"`
}

// releaseDate parses the optional releaseDate field. set is true when the
// field was present; null or "" clears it.
func (req GameRequest) releaseDate() (date *time.Time, set bool, err error) {
	raw := bytes.TrimSpace(req.ReleaseDate)
	if len(raw) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(raw, []byte("null")) {
		return nil, true, nil
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, errors.New("invalid releaseDate")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, true, nil
	}

	for _, layout := range []string{releaseDayLayout, time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			day := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
			return &day, true, nil
		}
	}
	return nil, false, errors.New("invalid releaseDate")
}

func parseGameID(r *http.Request) (int, error) {
	return parseID(chi.URLParam(r, "gameID"), "game id")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// sniffContentType falls back to content sniffing when the part header does
// not carry a usable type.
func sniffContentType(file io.Reader, declared string) (io.Reader, string, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return file, declared, nil
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", err
	}
	head = head[:n]
	return io.MultiReader(bytes.NewReader(head), file), http.DetectContentType(head), nil
}
