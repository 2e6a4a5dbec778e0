package main

import (
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	// winScore is the forced-win sentinel. Heuristic scores are clamped to
	// evalMax, far below it, so search never confuses an evaluation with a
	// proven result.
	winScore     = 100000000.0
	winThreshold = winScore - 100000.0
	evalMax      = 1000000.0
)

// Evaluator scores non-terminal positions from the side to move's
// perspective. The heuristic combines the hand-crafted features below; when
// a Scorer is attached, its output is blended in per the configured factor.
type Evaluator struct {
	Weights EvalWeights
	Scorer  Scorer
	Blend   float64

	warnOnce sync.Once
}

func NewEvaluator(config Config) (*Evaluator, error) {
	e := &Evaluator{Weights: config.Weights, Blend: config.AiModelBlend}
	if config.AiUseModel {
		scorer, err := NewOnnxScorer(config.AiModelPath)
		if err != nil {
			return nil, err
		}
		e.Scorer = scorer
	}
	return e, nil
}

func (e *Evaluator) Evaluate(p *Position) float64 {
	score := e.heuristic(p)
	if e.Scorer == nil {
		return score
	}
	model, err := e.Scorer.Score(FeatureVector(p))
	if err != nil {
		e.warnOnce.Do(func() {
			log.Warn().Err(err).Msg("model scorer failed, falling back to heuristic")
		})
		return score
	}
	// The model emits a value in [-1, 1] from the mover's perspective.
	blended := e.Blend*float64(model)*evalMax + (1-e.Blend)*score
	return clampEval(blended)
}

// heuristic returns a white-positive score negated for Black to move.
func (e *Evaluator) heuristic(p *Position) float64 {
	w := &e.Weights
	f := gatherFeatures(p)

	score := w.FlatCount * f.flatDiff
	score += w.Reserve * float64(f.reserveFlats[PlayerWhite]-f.reserveFlats[PlayerBlack])
	score += w.CapturedFlat * float64(f.capturedFlat[PlayerWhite]-f.capturedFlat[PlayerBlack])
	score += w.CapturedBlocking * float64(f.capturedBlocking[PlayerWhite]-f.capturedBlocking[PlayerBlack])
	score += w.FriendlyFlat * float64(f.friendlyFlat[PlayerWhite]-f.friendlyFlat[PlayerBlack])
	score += w.FriendlyBlocking * float64(f.friendlyBlocking[PlayerWhite]-f.friendlyBlocking[PlayerBlack])
	score += w.RoadGroup * float64(f.roadGroups[PlayerWhite]-f.roadGroups[PlayerBlack])
	score += w.LineOccupied * float64(f.linesOccupied[PlayerWhite]-f.linesOccupied[PlayerBlack])
	score += w.Center * float64(f.center[PlayerWhite]-f.center[PlayerBlack])
	score += w.BlockerContact * float64(f.blockerContact[PlayerWhite]-f.blockerContact[PlayerBlack])
	score += w.Mobility * float64(f.mobility[PlayerWhite]-f.mobility[PlayerBlack])
	score += w.PlacementThreat * float64(f.placementThreats[PlayerWhite]-f.placementThreats[PlayerBlack])

	if p.ToMove() == PlayerBlack {
		score = -score
	}
	return clampEval(score)
}

func clampEval(score float64) float64 {
	if score > evalMax {
		return evalMax
	}
	if score < -evalMax {
		return -evalMax
	}
	return score
}

type features struct {
	flatDiff         float64
	reserveFlats     [2]int
	capturedFlat     [2]int
	capturedBlocking [2]int
	friendlyFlat     [2]int
	friendlyBlocking [2]int
	roadGroups       [2]int
	linesOccupied    [2]int
	center           [2]int
	blockerContact   [2]int
	mobility         [2]int
	placementThreats [2]int
}

func gatherFeatures(p *Position) features {
	var f features
	n := p.size

	whiteFlats, blackFlats := p.FlatCounts()
	f.flatDiff = float64(whiteFlats-blackFlats) - float64(p.halfKomi)/2.0

	f.reserveFlats[PlayerWhite] = p.reserves[PlayerWhite].Flats
	f.reserveFlats[PlayerBlack] = p.reserves[PlayerBlack].Flats

	road := [2][]bool{make([]bool, n*n), make([]bool, n*n)}
	var rowHit, colHit [2][]bool
	for c := 0; c < 2; c++ {
		rowHit[c] = make([]bool, n)
		colHit[c] = make([]bool, n)
	}

	for i, stack := range p.stacks {
		top, ok := stack.Top()
		if !ok {
			continue
		}
		owner := top.Color
		f.mobility[owner]++

		// Pieces buried under a controlled top are either reinforcements
		// (friendlies) or prisoners (captives); both favor the controller,
		// more so under a standing stone or capstone.
		for _, piece := range stack[:len(stack)-1] {
			captive := piece.Color != owner
			blocking := top.Kind != Flat
			switch {
			case captive && blocking:
				f.capturedBlocking[owner]++
			case captive:
				f.capturedFlat[owner]++
			case blocking:
				f.friendlyBlocking[owner]++
			default:
				f.friendlyFlat[owner]++
			}
		}

		x, y := i%n, i/n
		if top.Kind != Standing {
			road[owner][i] = true
			rowHit[owner][y] = true
			colHit[owner][x] = true
			f.center[owner] += min(min(x, n-1-x), min(y, n-1-y))
		}
		if top.Kind != Flat {
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if !p.InBounds(nx, ny) {
					continue
				}
				if adj, occ := p.TopAt(nx, ny); occ && adj.Color != owner && adj.Kind == Flat {
					f.blockerContact[owner]++
				}
			}
		}
	}

	for c := 0; c < 2; c++ {
		f.roadGroups[c] = countGroups(road[c], n)
		f.placementThreats[c] = placementThreatCount(p, road[c])
		for i := 0; i < n; i++ {
			if rowHit[c][i] {
				f.linesOccupied[c]++
			}
			if colHit[c][i] {
				f.linesOccupied[c]++
			}
		}
	}
	return f
}

// placementThreatCount counts the empty squares where a single friendly
// placement completes a road: the square's own edges plus the edge contacts
// of its adjacent road components span an opposite pair. Edge contacts are
// indexed west, east, south, north.
func placementThreatCount(p *Position, road []bool) int {
	n := p.size
	comp := make([]int, len(road))
	for i := range comp {
		comp[i] = -1
	}
	var touches [][4]bool
	var queue []int
	for start := range road {
		if !road[start] || comp[start] != -1 {
			continue
		}
		id := len(touches)
		var t [4]bool
		comp[start] = id
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			square := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := square%n, square/n
			t[0] = t[0] || x == 0
			t[1] = t[1] || x == n-1
			t[2] = t[2] || y == 0
			t[3] = t[3] || y == n-1
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= n || ny >= n {
					continue
				}
				next := ny*n + nx
				if road[next] && comp[next] == -1 {
					comp[next] = id
					queue = append(queue, next)
				}
			}
		}
		touches = append(touches, t)
	}

	count := 0
	for square := range road {
		if len(p.stacks[square]) != 0 {
			continue
		}
		x, y := square%n, square/n
		t := [4]bool{x == 0, x == n-1, y == 0, y == n-1}
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || ny < 0 || nx >= n || ny >= n {
				continue
			}
			next := ny*n + nx
			if road[next] {
				ct := touches[comp[next]]
				t[0] = t[0] || ct[0]
				t[1] = t[1] || ct[1]
				t[2] = t[2] || ct[2]
				t[3] = t[3] || ct[3]
			}
		}
		if (t[0] && t[1]) || (t[2] && t[3]) {
			count++
		}
	}
	return count
}

// countGroups counts 4-connected components in a square mask.
func countGroups(mask []bool, n int) int {
	visited := make([]bool, len(mask))
	groups := 0
	var queue []int
	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		groups++
		visited[start] = true
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			square := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := square%n, square/n
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= n || ny >= n {
					continue
				}
				next := ny*n + nx
				if mask[next] && !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
	}
	return groups
}

// FeatureCount is the fixed width of the vector handed to a learned scorer.
const FeatureCount = 18

// FeatureVector flattens the evaluation features into the fixed-width input
// a learned scorer expects, normalized to roughly [-1, 1] and expressed from
// the mover's perspective.
func FeatureVector(p *Position) []float32 {
	f := gatherFeatures(p)
	n := float32(p.size)
	cells := n * n

	mover := p.ToMove()
	opp := otherPlayer(mover)
	sign := float32(1)
	if mover == PlayerBlack {
		sign = -1
	}
	allot := float32(startingReserves[p.size].Flats)

	diff := func(a [2]int) float32 {
		return float32(a[mover]-a[opp]) / cells
	}

	v := make([]float32, FeatureCount)
	v[0] = sign * float32(f.flatDiff) / cells
	v[1] = float32(f.reserveFlats[mover]) / allot
	v[2] = float32(f.reserveFlats[opp]) / allot
	v[3] = diff(f.capturedFlat)
	v[4] = diff(f.capturedBlocking)
	v[5] = diff(f.friendlyFlat)
	v[6] = diff(f.friendlyBlocking)
	v[7] = float32(f.roadGroups[mover]) / n
	v[8] = float32(f.roadGroups[opp]) / n
	v[9] = float32(f.linesOccupied[mover]) / (2 * n)
	v[10] = float32(f.linesOccupied[opp]) / (2 * n)
	v[11] = diff(f.center)
	v[12] = diff(f.blockerContact)
	v[13] = float32(f.mobility[mover]) / cells
	v[14] = float32(f.mobility[opp]) / cells
	v[15] = float32(f.placementThreats[mover]) / n
	v[16] = float32(f.placementThreats[opp]) / n
	v[17] = float32(p.ply % 2) // tempo plane
	return v
}
