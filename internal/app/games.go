package app

import (
	"errors"
	"sync"

	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrNoActiveGame = errors.New("no active game")

// Games holds the active-game descriptor of each room. game-data frames are
// relayed without ever touching it.
type Games struct {
	mu     sync.RWMutex
	active map[domain.RoomCode]*domain.GameDescriptor
}

func NewGames() *Games {
	return &Games{active: make(map[domain.RoomCode]*domain.GameDescriptor)}
}

// Start replaces any running game with a fresh descriptor scored zero for
// members.
func (g *Games) Start(room domain.RoomCode, id domain.GameID, members []domain.Identity) domain.GameDescriptor {
	d := domain.NewGameDescriptor(id, members)
	g.mu.Lock()
	g.active[room] = d
	g.mu.Unlock()
	log.Info().Str("module", "app.games").Str("room", string(room)).Str("game", string(id)).Msg("game started")
	return d.Clone()
}

// Score adds one point for who.
func (g *Games) Score(room domain.RoomCode, who domain.Identity) (domain.GameDescriptor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.active[room]
	if !ok {
		return domain.GameDescriptor{}, ErrNoActiveGame
	}
	d.Increment(who)
	return d.Clone(), nil
}

// Reset zeroes the scores of members and keeps the game id, for rematches.
func (g *Games) Reset(room domain.RoomCode, members []domain.Identity) (domain.GameDescriptor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.active[room]
	if !ok {
		return domain.GameDescriptor{}, ErrNoActiveGame
	}
	d.Reset(members)
	return d.Clone(), nil
}

// Close clears the descriptor. It reports whether a game was running.
func (g *Games) Close(room domain.RoomCode) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.active[room]
	delete(g.active, room)
	if ok {
		log.Info().Str("module", "app.games").Str("room", string(room)).Msg("game closed")
	}
	return ok
}

func (g *Games) Active(room domain.RoomCode) (domain.GameDescriptor, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	d, ok := g.active[room]
	if !ok {
		return domain.GameDescriptor{}, false
	}
	return d.Clone(), true
}
