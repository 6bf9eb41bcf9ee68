package handlers

import (
	"net/http"

	"github.com/gamevault/apiserver/internal/auth"
	"github.com/gamevault/apiserver/internal/logging"
	"github.com/gamevault/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// LibraryHandler serves the authenticated caller's game library.
type LibraryHandler struct {
	libraryService *services.LibraryService
	policy         auth.Policy
	logger         logging.Logger
}

// NewLibraryHandler constructs a LibraryHandler with the provided dependencies.
func NewLibraryHandler(libraryService *services.LibraryService, policy auth.Policy, logger logging.Logger) *LibraryHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LibraryHandler{
		libraryService: libraryService,
		policy:         policy,
		logger:         logger,
	}
}

// LibraryRouter registers library routes. Every route requires authMiddleware.
func LibraryRouter(
	r chi.Router,
	libraryService *services.LibraryService,
	policy auth.Policy,
	authMiddleware func(http.Handler) http.Handler,
	logger logging.Logger,
) {
	handler := NewLibraryHandler(libraryService, policy, logger)

	r.Use(authMiddleware)
	r.Get("/", handler.ListLibrary)
	r.Post("/add", handler.AddGame)
	r.Post("/remove", handler.RemoveGame)
}

// ListLibrary returns the caller's games in the order they were added.
func (h *LibraryHandler) ListLibrary(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, auth.ErrMissingToken.Error())
		return
	}

	games, err := h.libraryService.ListForUser(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// AddGame adds a game to the caller's library.
func (h *LibraryHandler) AddGame(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, h.policy, auth.ActionLibraryAdd)
	if !ok {
		return
	}
	gameID, ok := decodeLibraryRequest(w, r)
	if !ok {
		return
	}

	ids, err := h.libraryService.Add(r.Context(), claims.UserID, gameID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, LibraryResponse{Library: ids})
}

// RemoveGame drops a game from the caller's library.
func (h *LibraryHandler) RemoveGame(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, h.policy, auth.ActionLibraryRemove)
	if !ok {
		return
	}
	gameID, ok := decodeLibraryRequest(w, r)
	if !ok {
		return
	}

	ids, err := h.libraryService.Remove(r.Context(), claims.UserID, gameID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, LibraryResponse{Library: ids})
}

// LibraryRequest accepts gameId as a number or a numeric string.
type LibraryRequest struct {
	GameID *flexibleID `json:"gameId"`
}

type LibraryResponse struct {
	Library []int `json:"library"`
}

func decodeLibraryRequest(w http.ResponseWriter, r *http.Request) (int, bool) {
	var req LibraryRequest
	if !decodeJSON(w, r, &req) {
		return 0, false
	}
	if req.GameID == nil {
		writeError(w, http.StatusBadRequest, "gameId is required")
		return 0, false
	}
	return int(*req.GameID), true
}
