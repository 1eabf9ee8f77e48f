package resolver

import (
	"context"
	"sync"
	"time"

	"games-api-go/services/igdb"

	"github.com/stretchr/testify/mock"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) GetGameBySlug(ctx context.Context, slug string) (*igdb.Game, error) {
	args := m.Called(slug)
	game, _ := args.Get(0).(*igdb.Game)
	return game, args.Error(1)
}

func (m *MockSource) GetGameDetails(ctx context.Context, id int) (*igdb.Game, error) {
	args := m.Called(id)
	game, _ := args.Get(0).(*igdb.Game)
	return game, args.Error(1)
}

func (m *MockSource) SearchGames(ctx context.Context, query string, limit int) ([]igdb.Game, error) {
	args := m.Called(query, limit)
	games, _ := args.Get(0).([]igdb.Game)
	return games, args.Error(1)
}

type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) FindBySlug(slug string) (*igdb.Game, error) {
	args := m.Called(slug)
	game, _ := args.Get(0).(*igdb.Game)
	return game, args.Error(1)
}

// recordingStrategy returns a fixed answer and logs the order it was called in
type recordingStrategy struct {
	name   string
	game   *igdb.Game
	err    error
	panics bool
	calls  *[]string
	mu     *sync.Mutex
}

func (s *recordingStrategy) Name() string { return s.name }

func (s *recordingStrategy) Search(ctx context.Context, identifier string) (*igdb.Game, error) {
	s.mu.Lock()
	*s.calls = append(*s.calls, s.name)
	s.mu.Unlock()
	if s.panics {
		panic("boom")
	}
	return s.game, s.err
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
