package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PlayerType string

const (
	PlayerHuman  PlayerType = "human"
	PlayerEngine PlayerType = "engine"
)

// HistoryEntry records one applied move plus the engine diagnostics that
// produced it, when the mover was the engine.
type HistoryEntry struct {
	Move      Move
	Player    PlayerColor
	Ply       int
	ElapsedMs int64
	IsEngine  bool
	Depth     int
	Score     float64
	Nodes     int64
}

// Game owns one position and its move history. hashCounts tracks how many
// times each position hash has occurred, which feeds repetition detection
// both for adjudication and for search.
type Game struct {
	ID         uuid.UUID
	White      PlayerType
	Black      PlayerType
	position   *Position
	history    []HistoryEntry
	hashCounts map[uint64]int
	result     Outcome
	engine     *AIPlayer
	created    time.Time
}

func NewGame(size, halfKomi int, white, black PlayerType, engine *AIPlayer) (*Game, error) {
	pos, err := NewPosition(size, halfKomi)
	if err != nil {
		return nil, err
	}
	g := &Game{
		ID:         uuid.New(),
		White:      white,
		Black:      black,
		position:   pos,
		hashCounts: map[uint64]int{pos.hash: 1},
		engine:     engine,
		created:    time.Now(),
	}
	return g, nil
}

func (g *Game) Position() *Position {
	return g.position
}

func (g *Game) Result() Outcome {
	return g.result
}

func (g *Game) History() []HistoryEntry {
	return append([]HistoryEntry(nil), g.history...)
}

func (g *Game) playerType(c PlayerColor) PlayerType {
	if c == PlayerWhite {
		return g.White
	}
	return g.Black
}

// HistoryHashes returns a copy of the occurrence counts, safe to hand to a
// concurrent search.
func (g *Game) HistoryHashes() map[uint64]int {
	counts := make(map[uint64]int, len(g.hashCounts))
	for k, v := range g.hashCounts {
		counts[k] = v
	}
	return counts
}

// ApplyMove validates and applies a move from the side to move, then
// adjudicates: terminal outcomes and threefold repetition end the game.
func (g *Game) ApplyMove(m Move, entry HistoryEntry) error {
	if g.result.Decided() {
		return fmt.Errorf("%w: game is over (%s)", ErrIllegalMove, g.result)
	}
	entry.Player = g.position.ToMove()
	entry.Ply = g.position.ply
	entry.Move = m
	if _, err := g.position.Apply(m); err != nil {
		return err
	}
	g.history = append(g.history, entry)
	g.hashCounts[g.position.hash]++
	if res := g.position.Result(); res.Decided() {
		g.result = res
	} else if g.hashCounts[g.position.hash] >= GetConfig().AiRepetitionThreshold {
		g.result = OutcomeDraw
	}
	return nil
}

// EngineMove asks the engine for a move and applies it. The caller must have
// checked that the side to move is engine-controlled.
func (g *Game) EngineMove(ctx context.Context) (HistoryEntry, error) {
	if g.engine == nil {
		return HistoryEntry{}, fmt.Errorf("%w: no engine attached", ErrInvalidConfig)
	}
	start := time.Now()
	result, err := g.engine.ChooseMove(ctx, g.position, g.HistoryHashes())
	if err != nil {
		return HistoryEntry{}, err
	}
	if !result.BestMove.IsValid(g.position.size) {
		return HistoryEntry{}, fmt.Errorf("%w: search returned no move", ErrIllegalPosition)
	}
	entry := HistoryEntry{
		IsEngine:  true,
		ElapsedMs: time.Since(start).Milliseconds(),
		Depth:     result.Depth,
		Score:     result.Score,
		Nodes:     result.Nodes,
	}
	if err := g.ApplyMove(result.BestMove, entry); err != nil {
		return HistoryEntry{}, err
	}
	return g.history[len(g.history)-1], nil
}
