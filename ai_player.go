package main

import (
	"context"
	"sync"
)

// AIPlayer wraps the search with long-lived state: the transposition table
// survives across moves of the same game, so later searches reuse earlier
// work. One AIPlayer serves one game at a time; ChooseMove is serialized.
type AIPlayer struct {
	mu   sync.Mutex
	tt   *TranspositionTable
	eval *Evaluator
}

func NewAIPlayer(config Config) (*AIPlayer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	eval, err := NewEvaluator(config)
	if err != nil {
		return nil, err
	}
	return &AIPlayer{
		tt:   NewTranspositionTable(uint64(config.AiTtSize), config.AiTtBuckets),
		eval: eval,
	}, nil
}

// ChooseMove searches the position under the current configuration.
// historyHashes counts position occurrences in the game so far, including
// the position being searched; it drives repetition-draw detection.
func (a *AIPlayer) ChooseMove(ctx context.Context, pos *Position, historyHashes map[uint64]int) (SearchResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	settings := SettingsFromConfig(GetConfig())
	settings.TT = a.tt
	settings.Evaluator = a.eval
	settings.HistoryHashes = historyHashes
	return Search(ctx, pos, settings)
}

// ResetTable discards accumulated search state, for a fresh game.
func (a *AIPlayer) ResetTable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tt.Clear()
}

func (a *AIPlayer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.eval != nil && a.eval.Scorer != nil {
		return a.eval.Scorer.Close()
	}
	return nil
}
