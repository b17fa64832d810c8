package domain

import "maps"

type GameID string

type Scores map[Identity]int

// GameDescriptor is the active mini-game of a room. It is always built whole
// by NewGameDescriptor; a room either has one or it does not.
type GameDescriptor struct {
	GameID GameID `json:"gameId"`
	Scores Scores `json:"scores"`
}

func NewGameDescriptor(id GameID, members []Identity) *GameDescriptor {
	scores := make(Scores, len(members))
	for _, m := range members {
		scores[m] = 0
	}
	return &GameDescriptor{GameID: id, Scores: scores}
}

func (g *GameDescriptor) Increment(who Identity) int {
	g.Scores[who]++
	return g.Scores[who]
}

// Reset zeroes the scores of the given members and drops everyone else.
func (g *GameDescriptor) Reset(members []Identity) {
	g.Scores = make(Scores, len(members))
	for _, m := range members {
		g.Scores[m] = 0
	}
}

func (g *GameDescriptor) Clone() GameDescriptor {
	return GameDescriptor{GameID: g.GameID, Scores: maps.Clone(g.Scores)}
}
