package main

import "fmt"

type PlayerColor int

const (
	PlayerWhite PlayerColor = iota
	PlayerBlack
)

type PieceKind int

const (
	Flat PieceKind = iota
	Standing
	Capstone
)

type Piece struct {
	Color PlayerColor
	Kind  PieceKind
}

// Stack is the ordered pile of pieces on one square, bottom to top.
type Stack []Piece

func (s Stack) Top() (Piece, bool) {
	if len(s) == 0 {
		return Piece{}, false
	}
	return s[len(s)-1], true
}

func (s Stack) Height() int {
	return len(s)
}

type Reserves struct {
	Flats     int
	Capstones int
}

// startingReserves indexes the per-player allotment by board size.
var startingReserves = map[int]Reserves{
	3: {Flats: 10, Capstones: 0},
	4: {Flats: 15, Capstones: 0},
	5: {Flats: 21, Capstones: 1},
	6: {Flats: 30, Capstones: 1},
	7: {Flats: 40, Capstones: 2},
	8: {Flats: 50, Capstones: 2},
}

// Position is the full game state at one ply: the grid of stacks, both
// players' remaining reserves, and whose turn it is. Search mutates a single
// Position in place via Apply/Undo rather than cloning per node.
type Position struct {
	size     int
	stacks   []Stack
	reserves [2]Reserves
	ply      int
	halfKomi int
	seed     uint64
	hash     uint64
}

func NewPosition(size, halfKomi int) (*Position, error) {
	allotment, ok := startingReserves[size]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported board size %d", ErrIllegalPosition, size)
	}
	p := &Position{
		size:     size,
		stacks:   make([]Stack, size*size),
		reserves: [2]Reserves{allotment, allotment},
		halfKomi: halfKomi,
		seed:     positionSeed(size, halfKomi),
	}
	p.hash = ComputeHash(p)
	return p, nil
}

func (p *Position) Size() int {
	return p.size
}

func (p *Position) Ply() int {
	return p.ply
}

func (p *Position) HalfKomi() int {
	return p.halfKomi
}

func (p *Position) Hash() uint64 {
	return p.hash
}

// ToMove returns the player whose turn it is. White moves on even plies.
func (p *Position) ToMove() PlayerColor {
	if p.ply%2 == 0 {
		return PlayerWhite
	}
	return PlayerBlack
}

// LastMover returns the player who made the most recent move.
func (p *Position) LastMover() PlayerColor {
	return otherPlayer(p.ToMove())
}

func (p *Position) Reserves(c PlayerColor) Reserves {
	return p.reserves[c]
}

func (p *Position) At(x, y int) Stack {
	return p.stacks[p.index(x, y)]
}

func (p *Position) TopAt(x, y int) (Piece, bool) {
	return p.stacks[p.index(x, y)].Top()
}

func (p *Position) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < p.size && y < p.size
}

func (p *Position) IsEmpty(x, y int) bool {
	return len(p.stacks[p.index(x, y)]) == 0
}

func (p *Position) CountEmpty() int {
	count := 0
	for _, stack := range p.stacks {
		if len(stack) == 0 {
			count++
		}
	}
	return count
}

func (p *Position) index(x, y int) int {
	return y*p.size + x
}

func (p *Position) Clone() *Position {
	clone := &Position{
		size:     p.size,
		stacks:   make([]Stack, len(p.stacks)),
		reserves: p.reserves,
		ply:      p.ply,
		halfKomi: p.halfKomi,
		seed:     p.seed,
		hash:     p.hash,
	}
	for i, stack := range p.stacks {
		if len(stack) > 0 {
			clone.stacks[i] = append(Stack(nil), stack...)
		}
	}
	return clone
}

// SetStack overwrites the stack on a square and refreshes the position hash.
// It is intended for building test positions and loading externally supplied
// states; Validate should be run before searching them.
func (p *Position) SetStack(x, y int, stack Stack) {
	p.stacks[p.index(x, y)] = append(Stack(nil), stack...)
	p.hash = ComputeHash(p)
}

// RecountReserves rederives both players' reserves from what is on the
// board, for positions assembled with SetStack.
func (p *Position) RecountReserves() error {
	allotment := startingReserves[p.size]
	reserves := [2]Reserves{allotment, allotment}
	for _, stack := range p.stacks {
		for _, piece := range stack {
			if piece.Kind == Capstone {
				reserves[piece.Color].Capstones--
			} else {
				reserves[piece.Color].Flats--
			}
		}
	}
	for _, c := range []PlayerColor{PlayerWhite, PlayerBlack} {
		if reserves[c].Flats < 0 || reserves[c].Capstones < 0 {
			return fmt.Errorf("%w: %s pieces on board exceed allotment", ErrIllegalPosition, c)
		}
	}
	p.reserves = reserves
	return nil
}

// SetPly sets the ply counter directly, for externally supplied positions.
func (p *Position) SetPly(ply int) {
	if ply < 0 {
		ply = 0
	}
	p.ply = ply
	p.hash = ComputeHash(p)
}

// Validate checks the invariants an externally supplied position must hold:
// piece totals on the board plus reserves equal the starting allotment, and
// blocking pieces appear only on stack tops.
func (p *Position) Validate() error {
	allotment, ok := startingReserves[p.size]
	if !ok {
		return fmt.Errorf("%w: unsupported board size %d", ErrIllegalPosition, p.size)
	}
	var flats, caps [2]int
	placed := 0
	for i, stack := range p.stacks {
		placed += len(stack)
		for level, piece := range stack {
			if piece.Kind != Flat && level != len(stack)-1 {
				x, y := i%p.size, i/p.size
				return fmt.Errorf("%w: buried non-flat piece at %c%d", ErrIllegalPosition, 'a'+x, y+1)
			}
			if piece.Kind == Capstone {
				caps[piece.Color]++
			} else {
				flats[piece.Color]++
			}
		}
	}
	for _, c := range []PlayerColor{PlayerWhite, PlayerBlack} {
		if p.reserves[c].Flats < 0 || p.reserves[c].Capstones < 0 {
			return fmt.Errorf("%w: negative %s reserves", ErrIllegalPosition, c)
		}
		if flats[c]+p.reserves[c].Flats != allotment.Flats {
			return fmt.Errorf("%w: %s flat count %d+%d does not match allotment %d",
				ErrIllegalPosition, c, flats[c], p.reserves[c].Flats, allotment.Flats)
		}
		if caps[c]+p.reserves[c].Capstones != allotment.Capstones {
			return fmt.Errorf("%w: %s capstone count %d+%d does not match allotment %d",
				ErrIllegalPosition, c, caps[c], p.reserves[c].Capstones, allotment.Capstones)
		}
	}
	if p.ply < placed-2 {
		return fmt.Errorf("%w: ply count %d below piece count %d", ErrIllegalPosition, p.ply, placed)
	}
	return nil
}

func otherPlayer(player PlayerColor) PlayerColor {
	if player == PlayerWhite {
		return PlayerBlack
	}
	return PlayerWhite
}

func (c PlayerColor) String() string {
	switch c {
	case PlayerWhite:
		return "White"
	default:
		return "Black"
	}
}

func (k PieceKind) String() string {
	switch k {
	case Flat:
		return "Flat"
	case Standing:
		return "Standing"
	default:
		return "Capstone"
	}
}
