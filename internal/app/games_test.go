package app

import (
	"testing"

	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGames_ScoreAndReset(t *testing.T) {
	g := NewGames()

	_, err := g.Score("AB12", "Alice")
	assert.ErrorIs(t, err, ErrNoActiveGame)
	_, err = g.Reset("AB12", nil)
	assert.ErrorIs(t, err, ErrNoActiveGame)

	d := g.Start("AB12", "Pong", []domain.Identity{"Alice", "Bob"})
	assert.Equal(t, domain.Scores{"Alice": 0, "Bob": 0}, d.Scores)

	g.Score("AB12", "Alice")
	d, err = g.Score("AB12", "Alice")
	require.NoError(t, err)
	assert.Equal(t, domain.Scores{"Alice": 2, "Bob": 0}, d.Scores)

	// Copies do not alias the stored scores.
	d.Scores["Alice"] = 99
	active, ok := g.Active("AB12")
	require.True(t, ok)
	assert.Equal(t, 2, active.Scores["Alice"])

	d, err = g.Reset("AB12", []domain.Identity{"Alice", "Carol"})
	require.NoError(t, err)
	assert.Equal(t, domain.GameID("Pong"), d.GameID)
	assert.Equal(t, domain.Scores{"Alice": 0, "Carol": 0}, d.Scores)

	assert.True(t, g.Close("AB12"))
	assert.False(t, g.Close("AB12"))
	_, ok = g.Active("AB12")
	assert.False(t, ok)
}

func TestGames_StartReplaces(t *testing.T) {
	g := NewGames()
	g.Start("AB12", "Pong", []domain.Identity{"Alice"})
	g.Score("AB12", "Alice")

	d := g.Start("AB12", "Chess", []domain.Identity{"Alice"})
	assert.Equal(t, domain.GameID("Chess"), d.GameID)
	assert.Equal(t, 0, d.Scores["Alice"])
}
