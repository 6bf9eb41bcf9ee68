package services

import (
	"context"
	"errors"

	"github.com/gamevault/apiserver/internal/events"
	"github.com/gamevault/apiserver/internal/logging"
	"github.com/gamevault/apiserver/internal/store"
	"github.com/gamevault/apiserver/types"
)

// LibraryRepository defines persistence operations for the user/game relation.
type LibraryRepository interface {
	IDs(ctx context.Context, userID int) ([]int, error)
	Games(ctx context.Context, userID int) ([]types.Game, error)
	Add(ctx context.Context, userID, gameID int) error
	Remove(ctx context.Context, userID, gameID int) error
}

// UserLookup reports whether a user exists.
type UserLookup interface {
	Exists(ctx context.Context, id int) (bool, error)
}

// GameLookup resolves a game by id.
type GameLookup interface {
	Get(ctx context.Context, id int) (types.Game, error)
}

// LibraryService manages the set of games each user owns.
type LibraryService struct {
	repo   LibraryRepository
	users  UserLookup
	games  GameLookup
	events EventEmitter
	logger logging.Logger
}

// NewLibraryService constructs a LibraryService with the provided dependencies.
func NewLibraryService(repo LibraryRepository, users UserLookup, games GameLookup, emitter EventEmitter, logger logging.Logger) *LibraryService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LibraryService{
		repo:   repo,
		users:  users,
		games:  games,
		events: emitter,
		logger: logger,
	}
}

// ListForUser returns the user's games in the order they were added.
func (s *LibraryService) ListForUser(ctx context.Context, userID int) ([]types.Game, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	games, err := s.repo.Games(ctx, userID)
	if err != nil {
		return nil, err
	}
	if games == nil {
		games = []types.Game{}
	}
	return games, nil
}

// Add appends gameID to the user's library and returns the updated id list.
func (s *LibraryService) Add(ctx context.Context, userID, gameID int) ([]int, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.games.Get(ctx, gameID); err != nil {
		return nil, err
	}

	if err := s.repo.Add(ctx, userID, gameID); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrAlreadyPresent
		}
		return nil, err
	}

	s.logger.Debug(ctx, "game added to library", "user_id", userID, "game_id", gameID)
	s.emit(ctx, events.Event{Type: events.LibraryAdded, GameID: gameID, UserID: userID})
	return s.ids(ctx, userID)
}

// Remove drops gameID from the user's library. Removing an absent id succeeds.
func (s *LibraryService) Remove(ctx context.Context, userID, gameID int) ([]int, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.repo.Remove(ctx, userID, gameID); err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "game removed from library", "user_id", userID, "game_id", gameID)
	s.emit(ctx, events.Event{Type: events.LibraryRemoved, GameID: gameID, UserID: userID})
	return s.ids(ctx, userID)
}

func (s *LibraryService) ids(ctx context.Context, userID int) ([]int, error) {
	ids, err := s.repo.IDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int{}
	}
	return ids, nil
}

func (s *LibraryService) requireUser(ctx context.Context, userID int) error {
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

func (s *LibraryService) emit(ctx context.Context, ev events.Event) {
	if s.events != nil {
		s.events.Emit(ctx, events.LibraryChannel, ev)
	}
}
