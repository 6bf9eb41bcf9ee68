// Package memstore is an in-memory implementation of the repositories used by
// service and handler tests. It follows the same contracts as internal/store:
// unique usernames and emails, set semantics for libraries and cascading game
// deletes.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gamevault/apiserver/internal/store"
	"github.com/gamevault/apiserver/types"
)

// Store keeps users, games and libraries in memory with the same contracts as the postgres repositories.
type Store struct {
	mu        sync.Mutex
	users     map[int]types.User
	games     map[int]types.Game
	libraries map[int][]int
	nextUser  int
	nextGame  int
	now       func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:     make(map[int]types.User),
		games:     make(map[int]types.Game),
		libraries: make(map[int][]int),
		now:       time.Now,
	}
}

func (s *Store) Users() *UserRepo { return &UserRepo{s} }
func (s *Store) Games() *GameRepo { return &GameRepo{s} }
func (s *Store) Library() *LibraryRepo { return &LibraryRepo{s} }

// SetAdmin flips the admin flag of an existing user.
func (s *Store) SetAdmin(id int, admin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsAdmin = admin
		s.users[id] = u
	}
}

type UserRepo struct{ s *Store }

func (r *UserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return r.s.withLibrary(u), nil
}

func (r *UserRepo) FindByIdentity(ctx context.Context, identity string) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	lowered := strings.ToLower(identity)
	var byUsername *types.User
	for _, id := range r.s.sortedUserIDs() {
		u := r.s.users[id]
		if u.Email == lowered {
			return r.s.withLibrary(u), nil
		}
		if u.Username == identity && byUsername == nil {
			match := u
			byUsername = &match
		}
	}
	if byUsername == nil {
		return types.User{}, store.ErrNotFound
	}
	return r.s.withLibrary(*byUsername), nil
}

func (r *UserRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.identityTaken(username, email), nil
}

func (r *UserRepo) Exists(ctx context.Context, id int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.users[id]
	return ok, nil
}

func (r *UserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.identityTaken(user.Username, user.Email) {
		return types.User{}, store.ErrDuplicate
	}
	r.s.nextUser++
	now := r.s.now()
	user.ID = r.s.nextUser
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Library = nil
	r.s.users[user.ID] = user
	return r.s.withLibrary(user), nil
}

type GameRepo struct{ s *Store }

func (r *GameRepo) List(ctx context.Context, search string) ([]types.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	needle := strings.ToLower(search)
	games := make([]types.Game, 0, len(r.s.games))
	for _, g := range r.s.games {
		if needle == "" || strings.Contains(strings.ToLower(g.Title), needle) {
			games = append(games, g)
		}
	}
	sort.Slice(games, func(i, j int) bool {
		if !games[i].CreatedAt.Equal(games[j].CreatedAt) {
			return games[i].CreatedAt.After(games[j].CreatedAt)
		}
		return games[i].ID > games[j].ID
	})
	return games, nil
}

func (r *GameRepo) Get(ctx context.Context, id int) (types.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.games[id]
	if !ok {
		return types.Game{}, store.ErrNotFound
	}
	return g, nil
}

func (r *GameRepo) Create(ctx context.Context, game types.Game) (types.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextGame++
	now := r.s.now()
	game.ID = r.s.nextGame
	game.CreatedAt = now
	game.UpdatedAt = now
	r.s.games[game.ID] = game
	return game, nil
}

func (r *GameRepo) Update(ctx context.Context, game types.Game) (types.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.games[game.ID]
	if !ok {
		return types.Game{}, store.ErrNotFound
	}
	game.CreatedAt = current.CreatedAt
	game.CreatedBy = current.CreatedBy
	game.UpdatedAt = r.s.now()
	r.s.games[game.ID] = game
	return game, nil
}

func (r *GameRepo) Delete(ctx context.Context, id int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.games[id]; !ok {
		return 0, store.ErrNotFound
	}
	var detached int64
	for userID, ids := range r.s.libraries {
		if idx := indexOf(ids, id); idx >= 0 {
			r.s.libraries[userID] = append(ids[:idx:idx], ids[idx+1:]...)
			detached++
		}
	}
	delete(r.s.games, id)
	return detached, nil
}

type LibraryRepo struct{ s *Store }

func (r *LibraryRepo) IDs(ctx context.Context, userID int) ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]int{}, r.s.libraries[userID]...), nil
}

func (r *LibraryRepo) Games(ctx context.Context, userID int) ([]types.Game, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	games := make([]types.Game, 0, len(r.s.libraries[userID]))
	for _, id := range r.s.libraries[userID] {
		games = append(games, r.s.games[id])
	}
	return games, nil
}

func (r *LibraryRepo) Add(ctx context.Context, userID, gameID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[userID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := r.s.games[gameID]; !ok {
		return store.ErrNotFound
	}
	if indexOf(r.s.libraries[userID], gameID) >= 0 {
		return store.ErrDuplicate
	}
	r.s.libraries[userID] = append(r.s.libraries[userID], gameID)
	return nil
}

func (r *LibraryRepo) Remove(ctx context.Context, userID, gameID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := r.s.libraries[userID]
	if idx := indexOf(ids, gameID); idx >= 0 {
		r.s.libraries[userID] = append(ids[:idx:idx], ids[idx+1:]...)
	}
	return nil
}

func (s *Store) identityTaken(username, email string) bool {
	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return true
		}
	}
	return false
}

func (s *Store) withLibrary(u types.User) types.User {
	u.Library = append([]int{}, s.libraries[u.ID]...)
	return u
}

func (s *Store) sortedUserIDs() []int {
	ids := make([]int, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func indexOf(ids []int, id int) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
