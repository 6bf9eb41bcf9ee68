package services

import (
	"context"
	"sync"
	"testing"

	"github.com/gamevault/apiserver/internal/events"
	"github.com/gamevault/apiserver/internal/logging"
	"github.com/gamevault/apiserver/internal/store"
	"github.com/gamevault/apiserver/internal/tests/memstore"
	"github.com/gamevault/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type libraryFixture struct {
	mem     *memstore.Store
	games   *GameService
	library *LibraryService
	emitter *fakeEmitter
	user    types.User
}

func newLibraryFixture(t *testing.T) libraryFixture {
	t.Helper()
	mem := memstore.New()
	emitter := &fakeEmitter{}
	user, err := NewUserService(mem.Users()).Register(context.Background(), "alice", "a@x.io", "pw")
	require.NoError(t, err)
	return libraryFixture{
		mem:     mem,
		games:   NewGameService(mem.Games()),
		library: NewLibraryService(mem.Library(), mem.Users(), mem.Games(), emitter, logging.Nop()),
		emitter: emitter,
		user:    user,
	}
}

func (f libraryFixture) createGame(t *testing.T, title string) types.Game {
	t.Helper()
	game, err := f.games.Create(context.Background(), NewGame{Title: title}, f.user.ID)
	require.NoError(t, err)
	return game
}

func TestLibraryService_AddListRemove(t *testing.T) {
	f := newLibraryFixture(t)
	ctx := context.Background()
	g1 := f.createGame(t, "Zelda")
	g2 := f.createGame(t, "Mario")

	ids, err := f.library.Add(ctx, f.user.ID, g2.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{g2.ID}, ids)

	ids, err = f.library.Add(ctx, f.user.ID, g1.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{g2.ID, g1.ID}, ids)

	games, err := f.library.ListForUser(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "Mario", games[0].Title)
	assert.Equal(t, "Zelda", games[1].Title)

	ids, err = f.library.Remove(ctx, f.user.ID, g2.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{g1.ID}, ids)

	assert.Equal(t, []events.Type{events.LibraryAdded, events.LibraryAdded, events.LibraryRemoved}, f.emitter.kinds())
	for _, r := range f.emitter.events {
		assert.Equal(t, events.LibraryChannel, r.channel)
		assert.Equal(t, f.user.ID, r.event.UserID)
	}
}

func TestLibraryService_AddDuplicate(t *testing.T) {
	f := newLibraryFixture(t)
	g := f.createGame(t, "Zelda")

	_, err := f.library.Add(context.Background(), f.user.ID, g.ID)
	require.NoError(t, err)

	_, err = f.library.Add(context.Background(), f.user.ID, g.ID)
	assert.ErrorIs(t, err, ErrAlreadyPresent)

	ids, err := f.mem.Library().IDs(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{g.ID}, ids)
}

func TestLibraryService_ConcurrentAddsKeepOne(t *testing.T) {
	f := newLibraryFixture(t)
	g := f.createGame(t, "Zelda")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.library.Add(context.Background(), f.user.ID, g.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, ErrAlreadyPresent):
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, dupes)
}

func TestLibraryService_RemoveAbsentIsNoop(t *testing.T) {
	f := newLibraryFixture(t)
	g := f.createGame(t, "Zelda")
	_, err := f.library.Add(context.Background(), f.user.ID, g.ID)
	require.NoError(t, err)

	ids, err := f.library.Remove(context.Background(), f.user.ID, 999)
	require.NoError(t, err)
	assert.Equal(t, []int{g.ID}, ids)
}

func TestLibraryService_NotFound(t *testing.T) {
	f := newLibraryFixture(t)
	g := f.createGame(t, "Zelda")
	ctx := context.Background()

	_, err := f.library.Add(ctx, f.user.ID, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.NotErrorIs(t, err, ErrUserNotFound)

	_, err = f.library.Add(ctx, 999, g.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.library.Remove(ctx, 999, g.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.library.ListForUser(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLibraryService_EmptyLibrary(t *testing.T) {
	f := newLibraryFixture(t)

	games, err := f.library.ListForUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.NotNil(t, games)
	assert.Empty(t, games)
}
