package main

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

// plainNegamax is the unpruned reference the searcher must agree with at a
// fixed depth: no transposition table, no ordering, no windows.
func plainNegamax(pos *Position, eval *Evaluator, depth, ply int) float64 {
	if res := pos.Result(); res.Decided() {
		return terminalScore(res, pos, ply)
	}
	if depth == 0 {
		return eval.Evaluate(pos)
	}
	moves := GenerateMoves(pos)
	if len(moves) == 0 {
		return terminalScore(pos.FlatResult(), pos, ply)
	}
	best := math.Inf(-1)
	for _, m := range moves {
		delta, err := pos.Apply(m)
		if err != nil {
			panic(err)
		}
		value := -plainNegamax(pos, eval, depth-1, ply+1)
		if err := pos.Undo(delta); err != nil {
			panic(err)
		}
		if value > best {
			best = value
		}
	}
	return best
}

func fixedDepthSettings(depth int) SearchSettings {
	return SearchSettings{
		MaxDepth:            depth,
		RepetitionThreshold: 3,
		TT:                  NewTranspositionTable(1<<14, 2),
		Evaluator:           &Evaluator{Weights: DefaultConfig().Weights},
		Stats:               &SearchStats{},
		KillerBoost:         8000,
		HistoryBoost:        16,
		StopCheckNodes:      1024,
	}
}

func TestSearchMatchesPlainNegamax(t *testing.T) {
	pos := testPosition(t, 3, 0, 2, map[[2]int]Stack{
		{0, 0}: {black(Flat)},
		{2, 2}: {white(Flat)},
	})
	eval := &Evaluator{Weights: DefaultConfig().Weights}
	want := plainNegamax(pos.Clone(), eval, 3, 0)

	settings := fixedDepthSettings(3)
	settings.Evaluator = eval
	result, err := Search(context.Background(), pos, settings)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Depth != 3 {
		t.Fatalf("expected depth 3, got %d", result.Depth)
	}
	if result.Score != want {
		t.Fatalf("alpha-beta score %f differs from exhaustive %f", result.Score, want)
	}
	if result.Nodes == 0 {
		t.Fatalf("expected node count")
	}
}

func TestSearchBestMoveValueIsExact(t *testing.T) {
	pos := testPosition(t, 3, 0, 2, map[[2]int]Stack{
		{1, 0}: {black(Flat)},
		{1, 2}: {white(Flat)},
	})
	eval := &Evaluator{Weights: DefaultConfig().Weights}
	settings := fixedDepthSettings(2)
	settings.Evaluator = eval
	result, err := Search(context.Background(), pos.Clone(), settings)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	delta, err := pos.Apply(result.BestMove)
	if err != nil {
		t.Fatalf("best move %s illegal: %v", result.BestMove, err)
	}
	got := -plainNegamax(pos, eval, 1, 1)
	if err := pos.Undo(delta); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if got != result.Score {
		t.Fatalf("best move value %f does not match reported score %f", got, result.Score)
	}
}

func winInOnePosition(t *testing.T) *Position {
	t.Helper()
	return testPosition(t, 5, 0, 8, map[[2]int]Stack{
		{0, 2}: {white(Flat)},
		{1, 2}: {white(Flat)},
		{2, 2}: {white(Flat)},
		{3, 2}: {white(Flat)},
		{0, 0}: {black(Flat)},
		{1, 0}: {black(Flat)},
		{2, 0}: {black(Flat)},
	})
}

func TestSearchFindsWinInOne(t *testing.T) {
	pos := winInOnePosition(t)
	settings := fixedDepthSettings(2)
	result, err := Search(context.Background(), pos, settings)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Score < winThreshold {
		t.Fatalf("expected a proven win, got score %f", result.Score)
	}

	check := pos.Clone()
	if _, err := check.Apply(result.BestMove); err != nil {
		t.Fatalf("winning move %s illegal: %v", result.BestMove, err)
	}
	res := check.Result()
	winner, ok := res.Winner()
	if !ok || winner != PlayerWhite {
		t.Fatalf("move %s does not finish the game: %s", result.BestMove, res)
	}
}

func TestSearchBestMoveIndependentOfTableSize(t *testing.T) {
	large := fixedDepthSettings(2)
	small := fixedDepthSettings(2)
	small.TT = NewTranspositionTable(1, 1)

	first, err := Search(context.Background(), winInOnePosition(t), large)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	second, err := Search(context.Background(), winInOnePosition(t), small)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if first.BestMove != second.BestMove {
		t.Fatalf("table size changed the best move: %s vs %s", first.BestMove, second.BestMove)
	}
	if first.Score != second.Score {
		t.Fatalf("table size changed the score: %f vs %f", first.Score, second.Score)
	}
}

func TestSearchScoresRepeatedPositionsAsDraws(t *testing.T) {
	pos := testPosition(t, 5, 0, 4, map[[2]int]Stack{
		{2, 2}: {white(Flat)},
		{0, 0}: {black(Flat)},
	})

	// Mark every successor as already seen twice; with threshold 3 each
	// child is an immediate draw, so the root value must be exactly zero.
	history := make(map[uint64]int)
	for _, m := range GenerateMoves(pos) {
		delta, err := pos.Apply(m)
		if err != nil {
			t.Fatalf("Apply(%s): %v", m, err)
		}
		history[pos.Hash()] = 2
		if err := pos.Undo(delta); err != nil {
			t.Fatalf("Undo: %v", err)
		}
	}

	settings := fixedDepthSettings(3)
	settings.HistoryHashes = history
	result, err := Search(context.Background(), pos, settings)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Score != 0 {
		t.Fatalf("expected draw score, got %f", result.Score)
	}
}

func TestSearchHonorsTimeBudget(t *testing.T) {
	pos := testPosition(t, 5, 0, 6, map[[2]int]Stack{
		{2, 2}: {white(Flat)},
		{1, 1}: {black(Flat)},
		{3, 3}: {white(Flat)},
		{0, 0}: {black(Flat)},
	})
	settings := fixedDepthSettings(64)
	settings.TimeBudget = 50 * time.Millisecond

	start := time.Now()
	result, err := Search(context.Background(), pos, settings)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("search overran its budget: %s", elapsed)
	}
	if result.Depth < 1 {
		t.Fatalf("expected at least one completed iteration")
	}
	if !result.BestMove.IsValid(5) {
		t.Fatalf("expected a playable move, got %s", result.BestMove)
	}
}

func TestSearchStopsOnCancelledContext(t *testing.T) {
	pos := testPosition(t, 5, 0, 6, map[[2]int]Stack{
		{2, 2}: {white(Flat)},
		{0, 0}: {black(Flat)},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	settings := fixedDepthSettings(64)
	if _, err := Search(ctx, pos, settings); err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}
}

func TestSearchParallelRootMatchesSerialScore(t *testing.T) {
	pos := testPosition(t, 3, 0, 2, map[[2]int]Stack{
		{0, 0}: {black(Flat)},
		{2, 2}: {white(Flat)},
	})

	serial := fixedDepthSettings(3)
	serialResult, err := Search(context.Background(), pos.Clone(), serial)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	parallel := fixedDepthSettings(3)
	parallel.Workers = 4
	parallelResult, err := Search(context.Background(), pos.Clone(), parallel)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if serialResult.Score != parallelResult.Score {
		t.Fatalf("parallel score %f differs from serial %f", parallelResult.Score, serialResult.Score)
	}
}

func TestSearchSharedTableAcrossBoardSizes(t *testing.T) {
	// One table serves positions from different board sizes; entries from
	// one configuration must never be grafted onto the other.
	shared := NewTranspositionTable(1<<14, 2)

	warm := fixedDepthSettings(3)
	warm.TT = shared
	if _, err := Search(context.Background(), testPosition(t, 3, 0, 2, nil), warm); err != nil {
		t.Fatalf("Search: %v", err)
	}

	after := fixedDepthSettings(3)
	after.TT = shared
	withWarmTable, err := Search(context.Background(), testPosition(t, 4, 0, 2, nil), after)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	fresh, err := Search(context.Background(), testPosition(t, 4, 0, 2, nil), fixedDepthSettings(3))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if withWarmTable.BestMove != fresh.BestMove {
		t.Fatalf("foreign table entries changed the best move: %s vs %s", withWarmTable.BestMove, fresh.BestMove)
	}
	if withWarmTable.Score != fresh.Score {
		t.Fatalf("foreign table entries changed the score: %f vs %f", withWarmTable.Score, fresh.Score)
	}
}

func TestSearchRejectsUnboundedSettings(t *testing.T) {
	pos := testPosition(t, 5, 0, 4, map[[2]int]Stack{
		{2, 2}: {white(Flat)},
		{0, 0}: {black(Flat)},
	})
	_, err := Search(context.Background(), pos, SearchSettings{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSearchOnDecidedPosition(t *testing.T) {
	stacks := map[[2]int]Stack{}
	for x := 0; x < 5; x++ {
		stacks[[2]int{x, 2}] = Stack{white(Flat)}
	}
	stacks[[2]int{0, 0}] = Stack{black(Flat)}
	pos := testPosition(t, 5, 0, 9, stacks)

	result, err := Search(context.Background(), pos, fixedDepthSettings(3))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.BestMove.IsValid(5) {
		t.Fatalf("finished game should yield no move, got %s", result.BestMove)
	}
	if result.Score > -winThreshold {
		t.Fatalf("black to move in a lost position should score a loss, got %f", result.Score)
	}
}
