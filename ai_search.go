package main

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// SearchSettings configures one Search invocation. MaxDepth and TimeBudget
// may both be set; whichever exhausts first stops deepening.
type SearchSettings struct {
	MaxDepth            int
	TimeBudget          time.Duration
	Workers             int
	RepetitionThreshold int

	TT        *TranspositionTable
	Evaluator *Evaluator

	// HistoryHashes counts how often each position hash occurred in the
	// game so far, including the root position itself. A hash whose total
	// occurrences reach RepetitionThreshold is a draw for search purposes.
	HistoryHashes map[uint64]int

	ShouldStop      func() bool
	Stats           *SearchStats
	OnDepthComplete func(SearchResult)

	KillerBoost      int
	HistoryBoost     int
	StopCheckNodes   int
	DisableKillers   bool
	DisableHistoryHx bool
}

type SearchResult struct {
	BestMove Move
	Score    float64
	Depth    int
	PV       []Move
	Nodes    int64
	Elapsed  time.Duration
}

type SearchStats struct {
	Nodes           int64
	Evaluated       int64
	TTProbes        int64
	TTHits          int64
	TTStores        int64
	TTOverwrites    int64
	Cutoffs         int64
	Start           time.Time
	DepthDurations  []time.Duration
	CompletedDepths int
}

// SettingsFromConfig builds search settings from the server configuration.
func SettingsFromConfig(config Config) SearchSettings {
	return SearchSettings{
		MaxDepth:            config.AiMaxDepth,
		TimeBudget:          time.Duration(config.AiTimeBudgetMs) * time.Millisecond,
		Workers:             config.AiWorkers,
		RepetitionThreshold: config.AiRepetitionThreshold,
		KillerBoost:         config.AiKillerBoost,
		HistoryBoost:        config.AiHistoryBoost,
		StopCheckNodes:      config.AiStopCheckNodes,
		DisableKillers:      !config.AiEnableKillerMoves,
		DisableHistoryHx:    !config.AiEnableHistoryMoves,
	}
}

// Search runs iterative-deepening negamax alpha-beta on the position and
// returns the best move found. Cancellation through ctx, ShouldStop, or the
// time budget is not an error: the best result from the deepest completed
// (or partially completed) iteration is returned.
func Search(ctx context.Context, pos *Position, settings SearchSettings) (SearchResult, error) {
	if settings.MaxDepth < 1 && settings.TimeBudget <= 0 {
		return SearchResult{}, fmt.Errorf("%w: zero depth and no time budget", ErrInvalidConfig)
	}
	if settings.MaxDepth < 1 {
		settings.MaxDepth = maxSearchPly
	}
	if settings.RepetitionThreshold == 0 {
		settings.RepetitionThreshold = 3
	}
	if settings.RepetitionThreshold < 2 {
		return SearchResult{}, fmt.Errorf("%w: repetition threshold %d below 2", ErrInvalidConfig, settings.RepetitionThreshold)
	}
	if settings.StopCheckNodes <= 0 {
		settings.StopCheckNodes = 1024
	}
	if err := pos.Validate(); err != nil {
		return SearchResult{}, err
	}
	if settings.TT == nil {
		config := GetConfig()
		settings.TT = NewTranspositionTable(uint64(config.AiTtSize), config.AiTtBuckets)
	}
	if settings.Evaluator == nil {
		settings.Evaluator = &Evaluator{Weights: DefaultConfig().Weights}
	}
	if settings.Stats == nil {
		settings.Stats = &SearchStats{}
	}
	if settings.Stats.Start.IsZero() {
		settings.Stats.Start = time.Now()
	}

	start := time.Now()
	settings.TT.NextGeneration()

	root := pos.Clone()
	if res := root.Result(); res.Decided() {
		return SearchResult{BestMove: NoMove, Score: terminalScore(res, root, 0), Elapsed: time.Since(start)}, nil
	}
	rootMoves := GenerateMoves(root)
	if len(rootMoves) == 0 {
		return SearchResult{BestMove: NoMove, Score: terminalScore(root.FlatResult(), root, 0), Elapsed: time.Since(start)}, nil
	}

	var stop atomic.Bool
	sc := newSearchContext(ctx, root.size, settings, &stop)
	if settings.TimeBudget > 0 {
		sc.deadline = start.Add(settings.TimeBudget)
		sc.hasDeadline = true
	}

	result := SearchResult{BestMove: NoMove}
	haveResult := false
	for depth := 1; depth <= settings.MaxDepth; depth++ {
		depthStart := time.Now()
		prevBest := result.BestMove
		score, best, pv, completed := sc.searchRoot(root, rootMoves, depth, prevBest, haveResult)
		nodes := atomic.LoadInt64(&settings.Stats.Nodes)
		if !completed {
			// Keep a partial result only if no full iteration finished.
			if !haveResult && best.IsValid(root.size) {
				result = SearchResult{BestMove: best, Score: score, Depth: depth, PV: pv, Nodes: nodes, Elapsed: time.Since(start)}
				haveResult = true
			}
			break
		}
		result = SearchResult{BestMove: best, Score: score, Depth: depth, PV: pv, Nodes: nodes, Elapsed: time.Since(start)}
		haveResult = true
		settings.Stats.CompletedDepths = depth
		settings.Stats.DepthDurations = append(settings.Stats.DepthDurations, time.Since(depthStart))
		if settings.OnDepthComplete != nil {
			settings.OnDepthComplete(result)
		}
		if score >= winThreshold || score <= -winThreshold {
			break
		}
		if sc.stopped() {
			break
		}
	}
	result.Nodes = atomic.LoadInt64(&settings.Stats.Nodes)
	result.Elapsed = time.Since(start)
	if GetConfig().AiLogSearchStats {
		log.Info().
			Int("depth", result.Depth).
			Float64("score", result.Score).
			Int64("nodes", result.Nodes).
			Dur("elapsed", result.Elapsed).
			Str("best", result.BestMove.String()).
			Msg("search finished")
	}
	return result, nil
}

const maxSearchPly = 128

type searchContext struct {
	ctx         context.Context
	settings    SearchSettings
	tt          *TranspositionTable
	eval        *Evaluator
	deadline    time.Time
	hasDeadline bool
	stop        *atomic.Bool

	killers    [maxSearchPly][2]Move
	history    []int
	lineHashes map[uint64]int
	localNodes int64
}

func newSearchContext(ctx context.Context, boardSize int, settings SearchSettings, stop *atomic.Bool) *searchContext {
	if ctx == nil {
		ctx = context.Background()
	}
	sc := &searchContext{
		ctx:        ctx,
		settings:   settings,
		tt:         settings.TT,
		eval:       settings.Evaluator,
		stop:       stop,
		history:    make([]int, boardSize*boardSize),
		lineHashes: make(map[uint64]int),
	}
	// The zero Move is a real placement; killer slots must start invalid.
	for i := range sc.killers {
		sc.killers[i] = [2]Move{NoMove, NoMove}
	}
	return sc
}

// fork makes an independent context for a parallel root worker: own killer,
// history, and line-hash state, shared table and stop flag.
func (sc *searchContext) fork(boardSize int) *searchContext {
	clone := newSearchContext(sc.ctx, boardSize, sc.settings, sc.stop)
	clone.deadline = sc.deadline
	clone.hasDeadline = sc.hasDeadline
	return clone
}

func (sc *searchContext) stopped() bool {
	return sc.stop.Load()
}

// checkStop polls the cancellation sources at a node-count granularity so a
// time-limited caller never waits long past its budget.
func (sc *searchContext) checkStop() bool {
	if sc.stop.Load() {
		return true
	}
	if sc.localNodes%int64(sc.settings.StopCheckNodes) != 0 {
		return false
	}
	if sc.hasDeadline && time.Now().After(sc.deadline) {
		sc.stop.Store(true)
		return true
	}
	if sc.settings.ShouldStop != nil && sc.settings.ShouldStop() {
		sc.stop.Store(true)
		return true
	}
	if sc.ctx.Err() != nil {
		sc.stop.Store(true)
		return true
	}
	return false
}

// searchRoot runs one full-depth iteration over the root moves. prevBest
// seeds the ordering so the previous iteration's principal variation is
// examined first.
func (sc *searchContext) searchRoot(pos *Position, moves []Move, depth int, prevBest Move, havePrev bool) (float64, Move, []Move, bool) {
	ordered := make([]Move, len(moves))
	copy(ordered, moves)
	sc.orderMoves(pos, ordered, prevBest, havePrev, 0)

	if sc.settings.Workers > 1 && depth >= 3 && len(ordered) > 1 {
		return sc.searchRootParallel(pos, ordered, depth)
	}

	best := math.Inf(-1)
	alpha, beta := math.Inf(-1), math.Inf(1)
	bestMove := NoMove
	var bestPV []Move
	childPV := make([]Move, 0, depth)
	for _, move := range ordered {
		value, pv, ok := sc.searchRootMove(pos, move, depth, alpha, beta, &childPV)
		if !ok {
			return best, bestMove, bestPV, false
		}
		if value > best {
			best = value
			bestMove = move
			bestPV = append(append(bestPV[:0], move), pv...)
		}
		if best > alpha {
			alpha = best
		}
	}
	sc.tt.Store(pos.hash, depth, scoreForTT(best, 0), TTExact, bestMove)
	return best, bestMove, bestPV, true
}

func (sc *searchContext) searchRootMove(pos *Position, move Move, depth int, alpha, beta float64, childPV *[]Move) (float64, []Move, bool) {
	delta, err := pos.Apply(move)
	if err != nil {
		// The generator is the only producer of root moves; an illegal one
		// is a programming invariant violation.
		panic(fmt.Sprintf("generated illegal move %s: %v", move, err))
	}
	sc.lineHashes[pos.hash]++
	*childPV = (*childPV)[:0]
	value := -sc.negamax(pos, depth-1, 1, -beta, -alpha, childPV)
	sc.lineHashes[pos.hash]--
	if err := pos.Undo(delta); err != nil {
		panic(fmt.Sprintf("undo of %s failed: %v", move, err))
	}
	if sc.stopped() {
		return value, nil, false
	}
	return value, *childPV, true
}

// searchRootParallel searches the first root move on the caller's position
// to establish a window, then splits the remaining moves across workers,
// each owning an independent clone. The shared table serializes stores
// behind its striped locks.
func (sc *searchContext) searchRootParallel(pos *Position, ordered []Move, depth int) (float64, Move, []Move, bool) {
	childPV := make([]Move, 0, depth)
	best, pv, ok := sc.searchRootMove(pos, ordered[0], depth, math.Inf(-1), math.Inf(1), &childPV)
	if !ok {
		return best, ordered[0], nil, false
	}
	bestMove := ordered[0]
	bestPV := append([]Move{ordered[0]}, pv...)

	var mu sync.Mutex
	alpha := best

	g := errgroup.Group{}
	g.SetLimit(sc.settings.Workers)
	for _, move := range ordered[1:] {
		move := move
		g.Go(func() error {
			if sc.stopped() {
				return nil
			}
			worker := sc.fork(pos.size)
			clone := pos.Clone()
			mu.Lock()
			windowAlpha := alpha
			mu.Unlock()
			workerPV := make([]Move, 0, depth)
			value, pv, ok := worker.searchRootMove(clone, move, depth, windowAlpha, math.Inf(1), &workerPV)
			if !ok {
				return nil
			}
			mu.Lock()
			if value > best {
				best = value
				bestMove = move
				bestPV = append(append(bestPV[:0], move), pv...)
			}
			if best > alpha {
				alpha = best
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if sc.stopped() {
		return best, bestMove, bestPV, false
	}
	sc.tt.Store(pos.hash, depth, scoreForTT(best, 0), TTExact, bestMove)
	return best, bestMove, bestPV, true
}

func (sc *searchContext) negamax(pos *Position, depth, ply int, alpha, beta float64, pv *[]Move) float64 {
	sc.localNodes++
	atomic.AddInt64(&sc.settings.Stats.Nodes, 1)
	if sc.checkStop() {
		return alpha
	}

	// Draw by repetition: occurrences in the game history plus the current
	// search line.
	if seen := sc.lineHashes[pos.hash] + sc.settings.HistoryHashes[pos.hash]; seen >= sc.settings.RepetitionThreshold {
		return 0
	}

	if res := pos.Result(); res.Decided() {
		return terminalScore(res, pos, ply)
	}
	if depth <= 0 {
		atomic.AddInt64(&sc.settings.Stats.Evaluated, 1)
		return sc.eval.Evaluate(pos)
	}

	alphaOrig := alpha
	key := pos.hash
	var pvMove Move
	havePV := false
	atomic.AddInt64(&sc.settings.Stats.TTProbes, 1)
	if entry, ok := sc.tt.Probe(key); ok {
		atomic.AddInt64(&sc.settings.Stats.TTHits, 1)
		if entry.BestMove.IsValid(pos.size) {
			pvMove = entry.BestMove
			havePV = true
		}
		if entry.Depth >= depth {
			value := scoreFromTT(entry.ScoreFloat(), ply)
			switch entry.Flag {
			case TTExact:
				if pv != nil && havePV {
					*pv = append((*pv)[:0], pvMove)
				}
				return value
			case TTLower:
				if value > alpha {
					alpha = value
				}
			case TTUpper:
				if value < beta {
					beta = value
				}
			}
			if alpha >= beta {
				atomic.AddInt64(&sc.settings.Stats.Cutoffs, 1)
				return value
			}
		}
	}

	moves := GenerateMoves(pos)
	if len(moves) == 0 {
		return terminalScore(pos.FlatResult(), pos, ply)
	}
	sc.orderMoves(pos, moves, pvMove, havePV, ply)

	best := math.Inf(-1)
	bestMove := NoMove
	var childPV []Move
	for _, move := range moves {
		delta, err := pos.Apply(move)
		if err != nil {
			panic(fmt.Sprintf("generated illegal move %s: %v", move, err))
		}
		sc.lineHashes[pos.hash]++
		childPV = childPV[:0]
		value := -sc.negamax(pos, depth-1, ply+1, -beta, -alpha, &childPV)
		sc.lineHashes[pos.hash]--
		if err := pos.Undo(delta); err != nil {
			panic(fmt.Sprintf("undo of %s failed: %v", move, err))
		}
		if sc.stopped() {
			return best
		}
		if value > best {
			best = value
			bestMove = move
			if pv != nil {
				*pv = append(append((*pv)[:0], move), childPV...)
			}
		}
		if best > alpha {
			alpha = best
		}
		if alpha >= beta {
			atomic.AddInt64(&sc.settings.Stats.Cutoffs, 1)
			if !sc.settings.DisableKillers && ply < maxSearchPly {
				sc.recordKiller(ply, move)
			}
			if !sc.settings.DisableHistoryHx {
				sc.history[pos.index(int(move.X), int(move.Y))] += depth * depth
			}
			break
		}
	}

	flag := TTExact
	if best <= alphaOrig {
		flag = TTUpper
	} else if best >= beta {
		flag = TTLower
	}
	replaced, overwrote := sc.tt.Store(key, depth, scoreForTT(best, ply), flag, bestMove)
	atomic.AddInt64(&sc.settings.Stats.TTStores, 1)
	if replaced || overwrote {
		atomic.AddInt64(&sc.settings.Stats.TTOverwrites, 1)
	}
	return best
}

func (sc *searchContext) recordKiller(ply int, move Move) {
	if sc.killers[ply][0] == move {
		return
	}
	sc.killers[ply][1] = sc.killers[ply][0]
	sc.killers[ply][0] = move
}

// terminalScore converts a decided outcome into a mover-perspective sentinel
// scaled by distance from the root, so nearer wins outrank farther ones.
func terminalScore(res Outcome, pos *Position, ply int) float64 {
	winner, ok := res.Winner()
	if !ok {
		return 0
	}
	if winner == pos.ToMove() {
		return winScore - float64(ply)
	}
	return -(winScore - float64(ply))
}

// Win scores stored in the table are made relative to the storing node so a
// probe at a different distance from the root rescales them correctly.
func scoreForTT(score float64, ply int) float64 {
	if score >= winThreshold {
		return score + float64(ply)
	}
	if score <= -winThreshold {
		return score - float64(ply)
	}
	return score
}

func scoreFromTT(score float64, ply int) float64 {
	if score >= winThreshold {
		return score - float64(ply)
	}
	if score <= -winThreshold {
		return score + float64(ply)
	}
	return score
}

// orderMoves sorts candidates for cutoff rate: the table/PV move first, then
// killers, then statically promising moves (crushes, captures, central
// placements) weighted by the history table.
func (sc *searchContext) orderMoves(pos *Position, moves []Move, pvMove Move, havePV bool, ply int) {
	type rankedMove struct {
		move  Move
		score int
	}
	ranked := make([]rankedMove, len(moves))
	for i, move := range moves {
		score := sc.staticMoveScore(pos, move)
		if havePV && move == pvMove {
			score += 1 << 30
		}
		if !sc.settings.DisableKillers && ply < maxSearchPly {
			if move == sc.killers[ply][0] || move == sc.killers[ply][1] {
				score += sc.settings.KillerBoost
			}
		}
		if !sc.settings.DisableHistoryHx {
			score += sc.settings.HistoryBoost * sc.history[pos.index(int(move.X), int(move.Y))]
		}
		ranked[i] = rankedMove{move: move, score: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	for i := range ranked {
		moves[i] = ranked[i].move
	}
}

func (sc *searchContext) staticMoveScore(pos *Position, move Move) int {
	n := pos.size
	if move.Kind == MovePlace {
		x, y := int(move.X), int(move.Y)
		score := 10 * min(min(x, n-1-x), min(y, n-1-y))
		switch move.Piece {
		case Capstone:
			score += 90
		case Standing:
			score += 10
		default:
			score += 40
		}
		return score
	}
	mover := pos.ToMove()
	dx, dy := move.Dir.Offset()
	score := 0
	for i := 0; i < move.DropCount(); i++ {
		x := int(move.X) + dx*(i+1)
		y := int(move.Y) + dy*(i+1)
		if top, ok := pos.TopAt(x, y); ok {
			if top.Color != mover {
				score += 60
				if top.Kind == Standing {
					score += 140 // crush
				}
			} else {
				score -= 10
			}
		}
	}
	return score
}
