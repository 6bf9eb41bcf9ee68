package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gamevault/apiserver/internal/events"
	"github.com/gamevault/apiserver/internal/logging"
	"github.com/gamevault/apiserver/types"
	"github.com/google/uuid"
)

const coverKeyPrefix = "covers"

var coverExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// GameRepository defines persistence operations for the catalog.
type GameRepository interface {
	List(ctx context.Context, search string) ([]types.Game, error)
	Get(ctx context.Context, id int) (types.Game, error)
	Create(ctx context.Context, game types.Game) (types.Game, error)
	Update(ctx context.Context, game types.Game) (types.Game, error)
	Delete(ctx context.Context, id int) (int64, error)
}

// GameCache is a best-effort lookup cache keyed by game id.
type GameCache interface {
	Get(ctx context.Context, id int) (types.Game, bool, error)
	Set(ctx context.Context, game types.Game) error
	Delete(ctx context.Context, id int) error
}

// ObjectStore receives uploaded cover images.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// EventEmitter publishes domain events. Implementations never fail the caller.
type EventEmitter interface {
	Emit(ctx context.Context, channel string, ev events.Event)
}

// NewGame is the input to GameService.Create.
type NewGame struct {
	Title       string
	Description string
	Price       *float64
	CoverURL    string
	Genre       string
	ReleaseDate *time.Time
}

// CoverUpload is an image submitted for a game's cover.
type CoverUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// GameService encapsulates catalog use-cases.
type GameService struct {
	repo      GameRepository
	cache     GameCache
	objects   ObjectStore
	publicURL string
	events    EventEmitter
	logger    logging.Logger

	// invalidations counts evictions. Get drops its cache fill when the count moved.
	invalidations atomic.Uint64
}

// GameOption configures optional collaborators of a GameService.
type GameOption func(*GameService)

// WithGameCache enables read-through caching of single game lookups.
func WithGameCache(cache GameCache) GameOption {
	return func(s *GameService) { s.cache = cache }
}

// WithCoverStorage enables cover uploads. publicURL prefixes stored object keys.
func WithCoverStorage(objects ObjectStore, publicURL string) GameOption {
	return func(s *GameService) {
		s.objects = objects
		s.publicURL = strings.TrimRight(publicURL, "/")
	}
}

// WithGameEvents publishes catalog changes through emitter.
func WithGameEvents(emitter EventEmitter) GameOption {
	return func(s *GameService) { s.events = emitter }
}

// WithGameLogger sets the logger used for cache and storage warnings.
func WithGameLogger(logger logging.Logger) GameOption {
	return func(s *GameService) { s.logger = logger }
}

// NewGameService constructs a GameService backed by repo.
func NewGameService(repo GameRepository, opts ...GameOption) *GameService {
	s := &GameService{repo: repo, logger: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CoversEnabled reports whether an object store is configured.
func (s *GameService) CoversEnabled() bool {
	return s.objects != nil
}

// List returns every game, newest first, optionally filtered by a title substring.
func (s *GameService) List(ctx context.Context, search string) ([]types.Game, error) {
	games, err := s.repo.List(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}
	if games == nil {
		games = []types.Game{}
	}
	return games, nil
}

// Get returns a game by id, consulting the cache first when one is configured.
func (s *GameService) Get(ctx context.Context, id int) (types.Game, error) {
	generation := s.invalidations.Load()
	if s.cache != nil {
		game, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn(ctx, "game cache read failed", "game_id", id, "error", err)
		} else if ok {
			return game, nil
		}
	}

	game, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Game{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, game); err != nil {
			s.logger.Warn(ctx, "game cache write failed", "game_id", id, "error", err)
		}
		if s.invalidations.Load() != generation {
			s.evict(ctx, id)
		}
	}
	return game, nil
}

// Create stores a new game owned by ownerID.
func (s *GameService) Create(ctx context.Context, input NewGame, ownerID int) (types.Game, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return types.Game{}, invalid("title is required")
	}

	game := types.Game{
		Title:       title,
		Description: input.Description,
		CoverURL:    input.CoverURL,
		Genre:       input.Genre,
		ReleaseDate: input.ReleaseDate,
	}
	if input.Price != nil {
		if *input.Price < 0 {
			return types.Game{}, invalid("price must not be negative")
		}
		game.Price = *input.Price
	}
	if ownerID > 0 {
		owner := ownerID
		game.CreatedBy = &owner
	}

	created, err := s.repo.Create(ctx, game)
	if err != nil {
		return types.Game{}, err
	}

	s.logger.Info(ctx, "game created", "game_id", created.ID, "user_id", ownerID)
	s.emit(ctx, events.Event{Type: events.GameCreated, GameID: created.ID, UserID: ownerID})
	return created, nil
}

// Update applies patch to an existing game.
func (s *GameService) Update(ctx context.Context, id int, patch types.GamePatch) (types.Game, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return types.Game{}, invalid("title must not be empty")
		}
		patch.Title = &title
	}
	if patch.Price != nil && *patch.Price < 0 {
		return types.Game{}, invalid("price must not be negative")
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Game{}, err
	}
	patch.Apply(&current)

	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return types.Game{}, err
	}

	s.invalidate(ctx, id)
	s.emit(ctx, events.Event{Type: events.GameUpdated, GameID: id})
	return updated, nil
}

// Delete removes the game and every library reference to it.
func (s *GameService) Delete(ctx context.Context, id int) error {
	s.invalidate(ctx, id)
	detached, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.logger.Info(ctx, "game deleted", "game_id", id, "libraries_detached", detached)
	s.emit(ctx, events.Event{Type: events.GameDeleted, GameID: id})
	return nil
}

// SetCover uploads an image and points the game's coverUrl at it.
func (s *GameService) SetCover(ctx context.Context, id int, upload CoverUpload) (types.Game, error) {
	if s.objects == nil {
		return types.Game{}, ErrStorageDisabled
	}

	contentType := normalizeContentType(upload.ContentType)
	ext, ok := coverExtensions[contentType]
	if !ok {
		return types.Game{}, invalid("cover must be a png, jpeg, webp or gif image")
	}
	if upload.Body == nil {
		return types.Game{}, invalid("cover file is required")
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Game{}, err
	}

	key := path.Join(coverKeyPrefix, fmt.Sprint(id), uuid.NewString()+ext)
	if err := s.objects.Put(ctx, key, upload.Body, upload.Size, contentType); err != nil {
		return types.Game{}, fmt.Errorf("upload cover: %w", err)
	}

	previous := s.objectKey(current.CoverURL)
	current.CoverURL = s.objectURL(key)

	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			s.logger.Warn(ctx, "failed to remove orphaned cover", "key", key, "error", delErr)
		}
		return types.Game{}, err
	}

	if previous != "" {
		if err := s.objects.Delete(ctx, previous); err != nil {
			s.logger.Warn(ctx, "failed to remove previous cover", "key", previous, "error", err)
		}
	}

	s.invalidate(ctx, id)
	s.logger.Info(ctx, "game cover updated", "game_id", id, "key", key, "filename", upload.Filename)
	s.emit(ctx, events.Event{Type: events.GameUpdated, GameID: id})
	return updated, nil
}

func (s *GameService) objectURL(key string) string {
	if s.publicURL == "" {
		return "/" + key
	}
	return s.publicURL + "/" + key
}

// objectKey returns the storage key behind a cover URL this service produced,
// or "" for external URLs.
func (s *GameService) objectKey(coverURL string) string {
	prefix := s.objectURL(coverKeyPrefix + "/")
	if coverURL == "" || !strings.HasPrefix(coverURL, prefix) {
		return ""
	}
	return strings.TrimPrefix(coverURL, s.objectURL(""))
}

func (s *GameService) invalidate(ctx context.Context, id int) {
	if s.cache == nil {
		return
	}
	s.invalidations.Add(1)
	s.evict(ctx, id)
}

func (s *GameService) evict(ctx context.Context, id int) {
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn(ctx, "game cache invalidation failed", "game_id", id, "error", err)
	}
}

func (s *GameService) emit(ctx context.Context, ev events.Event) {
	if s.events != nil {
		s.events.Emit(ctx, events.CatalogChannel, ev)
	}
}

func normalizeContentType(value string) string {
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(value))
	}
	return mediaType
}
