package main

import (
	"fmt"
	"strings"
)

type MoveKind int

const (
	MovePlace MoveKind = iota
	MoveSpread
)

type Direction int

const (
	North Direction = iota
	East
	South
	West
)

func (d Direction) Offset() (int, int) {
	switch d {
	case North:
		return 0, 1
	case East:
		return 1, 0
	case South:
		return 0, -1
	default:
		return -1, 0
	}
}

func (d Direction) String() string {
	switch d {
	case North:
		return "+"
	case East:
		return ">"
	case South:
		return "-"
	default:
		return "<"
	}
}

// maxCarry bounds the drops array; no board size above 8 is supported.
const maxCarry = 8

// Move is either a placement or a spread. Drops is zero-terminated: for a
// spread, the leading non-zero entries are the per-square drop counts in
// travel order. The struct is comparable, which the killer and history
// tables rely on.
type Move struct {
	Kind  MoveKind
	X, Y  int8
	Piece PieceKind // placements only
	Dir   Direction // spreads only
	Drops [maxCarry]uint8
}

// NoMove is the sentinel for "no move available", e.g. searching a finished
// game. It fails IsValid for every board size.
var NoMove = Move{X: -1, Y: -1}

func PlaceMove(x, y int, piece PieceKind) Move {
	return Move{Kind: MovePlace, X: int8(x), Y: int8(y), Piece: piece}
}

func SpreadMove(x, y int, dir Direction, drops []int) Move {
	m := Move{Kind: MoveSpread, X: int8(x), Y: int8(y), Dir: dir}
	for i, d := range drops {
		if i >= maxCarry {
			break
		}
		m.Drops[i] = uint8(d)
	}
	return m
}

// DropCount reports how many squares a spread drops onto.
func (m Move) DropCount() int {
	count := 0
	for _, d := range m.Drops {
		if d == 0 {
			break
		}
		count++
	}
	return count
}

// CarryTotal reports how many pieces a spread lifts from the origin.
func (m Move) CarryTotal() int {
	total := 0
	for _, d := range m.Drops {
		total += int(d)
	}
	return total
}

func (m Move) IsValid(boardSize int) bool {
	if m.X < 0 || m.Y < 0 || int(m.X) >= boardSize || int(m.Y) >= boardSize {
		return false
	}
	if m.Kind == MoveSpread && m.DropCount() == 0 {
		return false
	}
	return true
}

// String renders the move in PTN-like notation: "c3" flat placement,
// "Sc3"/"Cc3" standing/capstone, "3c3>12" a spread of three pieces east
// dropping one then two.
func (m Move) String() string {
	square := fmt.Sprintf("%c%d", 'a'+byte(m.X), m.Y+1)
	if m.Kind == MovePlace {
		switch m.Piece {
		case Standing:
			return "S" + square
		case Capstone:
			return "C" + square
		default:
			return square
		}
	}
	var sb strings.Builder
	carry := m.CarryTotal()
	if carry > 1 {
		fmt.Fprintf(&sb, "%d", carry)
	}
	sb.WriteString(square)
	sb.WriteString(m.Dir.String())
	if m.DropCount() > 1 {
		for _, d := range m.Drops {
			if d == 0 {
				break
			}
			fmt.Fprintf(&sb, "%d", d)
		}
	}
	return sb.String()
}
