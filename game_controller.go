package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// GameController serializes access to the live games. Each game carries its
// own engine so transposition tables stay per-game.
type GameController struct {
	mu    sync.Mutex
	games map[uuid.UUID]*Game
}

func NewGameController() *GameController {
	return &GameController{games: make(map[uuid.UUID]*Game)}
}

func (gc *GameController) CreateGame(size, halfKomi int, white, black PlayerType) (*Game, error) {
	var engine *AIPlayer
	if white == PlayerEngine || black == PlayerEngine {
		var err error
		engine, err = NewAIPlayer(GetConfig())
		if err != nil {
			return nil, err
		}
	}
	game, err := NewGame(size, halfKomi, white, black, engine)
	if err != nil {
		if engine != nil {
			engine.Close()
		}
		return nil, err
	}
	gc.mu.Lock()
	gc.games[game.ID] = game
	gc.mu.Unlock()
	return game, nil
}

func (gc *GameController) Game(id uuid.UUID) (*Game, bool) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	game, ok := gc.games[id]
	return game, ok
}

func (gc *GameController) DeleteGame(id uuid.UUID) bool {
	gc.mu.Lock()
	game, ok := gc.games[id]
	delete(gc.games, id)
	gc.mu.Unlock()
	if ok && game.engine != nil {
		game.engine.Close()
	}
	return ok
}

// SubmitMove applies a human move and, when the opponent is the engine and
// the game is still live, the engine's reply. Both mutations happen under
// the controller lock so WS snapshots never observe a half-turn.
func (gc *GameController) SubmitMove(ctx context.Context, id uuid.UUID, m Move) ([]HistoryEntry, error) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	game, ok := gc.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown game %s", ErrIllegalPosition, id)
	}
	if game.playerType(game.Position().ToMove()) != PlayerHuman {
		return nil, fmt.Errorf("%w: not a human turn", ErrIllegalMove)
	}
	if err := game.ApplyMove(m, HistoryEntry{}); err != nil {
		return nil, err
	}
	applied := []HistoryEntry{game.history[len(game.history)-1]}
	if !game.Result().Decided() && game.playerType(game.Position().ToMove()) == PlayerEngine {
		entry, err := game.EngineMove(ctx)
		if err != nil {
			return applied, err
		}
		applied = append(applied, entry)
	}
	return applied, nil
}

// AdvanceEngine plays one engine move if it is an engine turn; for
// engine-vs-engine games the caller loops.
func (gc *GameController) AdvanceEngine(ctx context.Context, id uuid.UUID) (HistoryEntry, bool, error) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	game, ok := gc.games[id]
	if !ok {
		return HistoryEntry{}, false, fmt.Errorf("%w: unknown game %s", ErrIllegalPosition, id)
	}
	if game.Result().Decided() || game.playerType(game.Position().ToMove()) != PlayerEngine {
		return HistoryEntry{}, false, nil
	}
	entry, err := game.EngineMove(ctx)
	if err != nil {
		return HistoryEntry{}, false, err
	}
	return entry, true, nil
}

// Snapshot builds a consistent DTO of a game for the API and WS layers.
func (gc *GameController) Snapshot(id uuid.UUID) (GameStateDTO, bool) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	game, ok := gc.games[id]
	if !ok {
		return GameStateDTO{}, false
	}
	return gameToDTO(game), true
}
