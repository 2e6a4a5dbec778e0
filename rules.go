package main

import (
	"errors"
	"fmt"
)

var (
	ErrIllegalMove     = errors.New("illegal move")
	ErrIllegalPosition = errors.New("illegal position")
)

// MoveDelta is the reversible record Apply returns. Undo needs only the move
// itself, whether the final drop crushed a standing stone, and the hash to
// restore; everything else is reconstructed by walking the move backwards.
type MoveDelta struct {
	Move     Move
	Crush    bool
	prevHash uint64
}

// Apply executes a move on the position in place, updating stacks, reserves,
// the ply counter, and the Zobrist hash incrementally. The returned delta
// reverses it exactly via Undo.
func (p *Position) Apply(m Move) (MoveDelta, error) {
	if err := p.checkLegal(m); err != nil {
		return MoveDelta{}, err
	}
	delta := MoveDelta{Move: m, prevHash: p.hash}

	hash := p.hash ^ sideKey(p.seed)
	if p.ply < 2 {
		hash ^= swapKey(p.seed, p.ply)
	}

	switch m.Kind {
	case MovePlace:
		owner := p.ToMove()
		if p.ply < 2 {
			owner = otherPlayer(owner)
		}
		if m.Piece == Capstone {
			p.reserves[owner].Capstones--
		} else {
			p.reserves[owner].Flats--
		}
		square := p.index(int(m.X), int(m.Y))
		hash ^= hashSquare(p, square)
		p.stacks[square] = append(p.stacks[square], Piece{Color: owner, Kind: m.Piece})
		hash ^= hashSquare(p, square)

	case MoveSpread:
		origin := p.index(int(m.X), int(m.Y))
		carryTotal := m.CarryTotal()
		stack := p.stacks[origin]

		hash ^= hashSquare(p, origin)
		carry := append(Stack(nil), stack[len(stack)-carryTotal:]...)
		p.stacks[origin] = stack[:len(stack)-carryTotal]
		hash ^= hashSquare(p, origin)

		dx, dy := m.Dir.Offset()
		x, y := int(m.X), int(m.Y)
		dropped := 0
		for i := 0; i < m.DropCount(); i++ {
			x += dx
			y += dy
			square := p.index(x, y)
			hash ^= hashSquare(p, square)
			if top, ok := p.stacks[square].Top(); ok && top.Kind == Standing {
				// Lone capstone flattens the standing stone.
				p.stacks[square][len(p.stacks[square])-1].Kind = Flat
				delta.Crush = true
			}
			n := int(m.Drops[i])
			p.stacks[square] = append(p.stacks[square], carry[dropped:dropped+n]...)
			dropped += n
			hash ^= hashSquare(p, square)
		}
	}

	p.ply++
	if p.ply < 2 {
		hash ^= swapKey(p.seed, p.ply)
	}
	p.hash = hash
	return delta, nil
}

// Undo reverses a move previously applied to this position. Deltas must be
// undone in reverse application order.
func (p *Position) Undo(delta MoveDelta) error {
	if p.ply == 0 {
		return fmt.Errorf("%w: no moves to undo", ErrIllegalMove)
	}
	m := delta.Move

	switch m.Kind {
	case MovePlace:
		square := p.index(int(m.X), int(m.Y))
		stack := p.stacks[square]
		if len(stack) != 1 || stack[0].Kind != m.Piece {
			return fmt.Errorf("%w: placement undo mismatch at %s", ErrIllegalMove, m)
		}
		owner := stack[0].Color
		p.stacks[square] = stack[:0]
		if m.Piece == Capstone {
			p.reserves[owner].Capstones++
		} else {
			p.reserves[owner].Flats++
		}

	case MoveSpread:
		dropCount := m.DropCount()
		dx, dy := m.Dir.Offset()
		carry := make(Stack, 0, m.CarryTotal())
		for i := dropCount - 1; i >= 0; i-- {
			x := int(m.X) + dx*(i+1)
			y := int(m.Y) + dy*(i+1)
			square := p.index(x, y)
			stack := p.stacks[square]
			n := int(m.Drops[i])
			if len(stack) < n {
				return fmt.Errorf("%w: spread undo mismatch at %s", ErrIllegalMove, m)
			}
			carry = append(append(Stack(nil), stack[len(stack)-n:]...), carry...)
			p.stacks[square] = stack[:len(stack)-n]
			if i == dropCount-1 && delta.Crush {
				rest := p.stacks[square]
				rest[len(rest)-1].Kind = Standing
			}
		}
		origin := p.index(int(m.X), int(m.Y))
		p.stacks[origin] = append(p.stacks[origin], carry...)
	}

	p.ply--
	p.hash = delta.prevHash
	return nil
}

// checkLegal verifies reserve, stacking, and geometry invariants. The move
// generator only produces legal moves, so during search this rejects nothing;
// it guards externally supplied moves.
func (p *Position) checkLegal(m Move) error {
	if !m.IsValid(p.size) {
		return fmt.Errorf("%w: %s out of bounds", ErrIllegalMove, m)
	}
	switch m.Kind {
	case MovePlace:
		if !p.IsEmpty(int(m.X), int(m.Y)) {
			return fmt.Errorf("%w: %s square occupied", ErrIllegalMove, m)
		}
		owner := p.ToMove()
		if p.ply < 2 {
			if m.Piece != Flat {
				return fmt.Errorf("%w: %s opening placements must be flat", ErrIllegalMove, m)
			}
			owner = otherPlayer(owner)
		}
		reserve := p.reserves[owner]
		if m.Piece == Capstone {
			if reserve.Capstones == 0 {
				return fmt.Errorf("%w: %s no capstones in reserve", ErrIllegalMove, m)
			}
		} else if reserve.Flats == 0 {
			return fmt.Errorf("%w: %s no flats in reserve", ErrIllegalMove, m)
		}
		return nil

	case MoveSpread:
		if p.ply < 2 {
			return fmt.Errorf("%w: %s cannot spread on an opening ply", ErrIllegalMove, m)
		}
		stack := p.stacks[p.index(int(m.X), int(m.Y))]
		top, ok := stack.Top()
		if !ok {
			return fmt.Errorf("%w: %s square empty", ErrIllegalMove, m)
		}
		if top.Color != p.ToMove() {
			return fmt.Errorf("%w: %s opponent's stack", ErrIllegalMove, m)
		}
		carryTotal := m.CarryTotal()
		if carryTotal > len(stack) || carryTotal > p.size {
			return fmt.Errorf("%w: %s carry limit exceeded", ErrIllegalMove, m)
		}
		dropCount := m.DropCount()
		dx, dy := m.Dir.Offset()
		remaining := carryTotal
		for i := 0; i < dropCount; i++ {
			x := int(m.X) + dx*(i+1)
			y := int(m.Y) + dy*(i+1)
			if !p.InBounds(x, y) {
				return fmt.Errorf("%w: %s spread leaves the board", ErrIllegalMove, m)
			}
			if target, occupied := p.TopAt(x, y); occupied {
				switch target.Kind {
				case Capstone:
					return fmt.Errorf("%w: %s cannot drop onto a capstone", ErrIllegalMove, m)
				case Standing:
					crush := i == dropCount-1 && remaining == 1 && top.Kind == Capstone
					if !crush {
						return fmt.Errorf("%w: %s cannot drop onto a standing stone", ErrIllegalMove, m)
					}
				}
			}
			remaining -= int(m.Drops[i])
		}
		// A zero before the last non-zero drop would leave lifted pieces
		// unplaced; the drop counts must consume the carry exactly.
		if remaining != 0 {
			return fmt.Errorf("%w: %s drop counts do not consume the carry", ErrIllegalMove, m)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown move kind", ErrIllegalMove)
}

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeWhiteRoad
	OutcomeBlackRoad
	OutcomeWhiteFlats
	OutcomeBlackFlats
	OutcomeDraw
)

func (o Outcome) Decided() bool {
	return o != OutcomeNone
}

func (o Outcome) Winner() (PlayerColor, bool) {
	switch o {
	case OutcomeWhiteRoad, OutcomeWhiteFlats:
		return PlayerWhite, true
	case OutcomeBlackRoad, OutcomeBlackFlats:
		return PlayerBlack, true
	default:
		return PlayerWhite, false
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeWhiteRoad:
		return "R-0"
	case OutcomeBlackRoad:
		return "0-R"
	case OutcomeWhiteFlats:
		return "F-0"
	case OutcomeBlackFlats:
		return "0-F"
	case OutcomeDraw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

// HasRoad reports whether the player's road-eligible top pieces connect a
// pair of opposite edges, by flood fill over the friendly top-piece subgraph.
func (p *Position) HasRoad(c PlayerColor) bool {
	road := make([]bool, len(p.stacks))
	any := false
	for i, stack := range p.stacks {
		if top, ok := stack.Top(); ok && top.Color == c && top.Kind != Standing {
			road[i] = true
			any = true
		}
	}
	if !any {
		return false
	}
	return p.spans(road, false) || p.spans(road, true)
}

// spans flood fills from one edge of the road mask and reports whether the
// opposite edge is reached. vertical selects the south-to-north pair.
func (p *Position) spans(road []bool, vertical bool) bool {
	n := p.size
	visited := make([]bool, len(road))
	queue := make([]int, 0, len(road))
	for i := 0; i < n; i++ {
		start := i * n // west edge, column 0
		if vertical {
			start = i // south edge, row 0
		}
		if road[start] && !visited[start] {
			visited[start] = true
			queue = append(queue, start)
		}
	}
	for len(queue) > 0 {
		square := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		x, y := square%n, square/n
		if vertical && y == n-1 {
			return true
		}
		if !vertical && x == n-1 {
			return true
		}
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || ny < 0 || nx >= n || ny >= n {
				continue
			}
			next := ny*n + nx
			if road[next] && !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// Result resolves the position: road wins first (a double road goes to the
// player who just moved), then flat counting when either player's reserves
// are exhausted or the board is full. OutcomeNone means play continues.
func (p *Position) Result() Outcome {
	whiteRoad := p.HasRoad(PlayerWhite)
	blackRoad := p.HasRoad(PlayerBlack)
	switch {
	case whiteRoad && blackRoad:
		if p.LastMover() == PlayerWhite {
			return OutcomeWhiteRoad
		}
		return OutcomeBlackRoad
	case whiteRoad:
		return OutcomeWhiteRoad
	case blackRoad:
		return OutcomeBlackRoad
	}
	whiteOut := p.reserves[PlayerWhite].Flats+p.reserves[PlayerWhite].Capstones == 0
	blackOut := p.reserves[PlayerBlack].Flats+p.reserves[PlayerBlack].Capstones == 0
	if whiteOut || blackOut || p.CountEmpty() == 0 {
		return p.FlatResult()
	}
	return OutcomeNone
}

// FlatResult counts flat-topped stacks, with Black's score adjusted by the
// half-komi. It is also the resolution when the side to move has no legal
// moves.
func (p *Position) FlatResult() Outcome {
	var flats [2]int
	for _, stack := range p.stacks {
		if top, ok := stack.Top(); ok && top.Kind == Flat {
			flats[top.Color]++
		}
	}
	whiteScore := 2 * flats[PlayerWhite]
	blackScore := 2*flats[PlayerBlack] + p.halfKomi
	switch {
	case whiteScore > blackScore:
		return OutcomeWhiteFlats
	case blackScore > whiteScore:
		return OutcomeBlackFlats
	default:
		return OutcomeDraw
	}
}

// FlatCounts returns the number of flat-topped stacks per player.
func (p *Position) FlatCounts() (white, black int) {
	for _, stack := range p.stacks {
		if top, ok := stack.Top(); ok && top.Kind == Flat {
			if top.Color == PlayerWhite {
				white++
			} else {
				black++
			}
		}
	}
	return white, black
}
