package main

// GenerateMoves enumerates every legal move for the side to move, placements
// first, then spreads in square order. The order is deterministic; the search
// layers its own ordering heuristics on top.
func GenerateMoves(p *Position) []Move {
	moves := make([]Move, 0, 64)
	moves = appendPlacements(p, moves)
	if p.ply >= 2 {
		moves = appendSpreads(p, moves)
	}
	return moves
}

func appendPlacements(p *Position, moves []Move) []Move {
	owner := p.ToMove()
	if p.ply < 2 {
		// Opening swap: the first placement of each player is a flat
		// belonging to the opponent, spent from the opponent's reserve.
		owner = otherPlayer(owner)
	}
	reserve := p.reserves[owner]
	for y := 0; y < p.size; y++ {
		for x := 0; x < p.size; x++ {
			if !p.IsEmpty(x, y) {
				continue
			}
			if p.ply < 2 {
				moves = append(moves, PlaceMove(x, y, Flat))
				continue
			}
			if reserve.Flats > 0 {
				moves = append(moves, PlaceMove(x, y, Flat))
				moves = append(moves, PlaceMove(x, y, Standing))
			}
			if reserve.Capstones > 0 {
				moves = append(moves, PlaceMove(x, y, Capstone))
			}
		}
	}
	return moves
}

func appendSpreads(p *Position, moves []Move) []Move {
	mover := p.ToMove()
	for y := 0; y < p.size; y++ {
		for x := 0; x < p.size; x++ {
			stack := p.stacks[p.index(x, y)]
			top, ok := stack.Top()
			if !ok || top.Color != mover {
				continue
			}
			limit := len(stack)
			if limit > p.size {
				limit = p.size
			}
			for _, dir := range []Direction{North, East, South, West} {
				for carry := 1; carry <= limit; carry++ {
					moves = appendDropPartitions(p, moves, x, y, dir, carry, top.Kind == Capstone)
				}
			}
		}
	}
	return moves
}

// appendDropPartitions enumerates every way to distribute a carried pile
// along one direction. A standing stone stops the spread unless the carried
// capstone arrives alone as the final drop, which crushes it.
func appendDropPartitions(p *Position, moves []Move, x, y int, dir Direction, carry int, capstoneOnTop bool) []Move {
	dx, dy := dir.Offset()
	var drops [maxCarry]uint8

	var rec func(step, remaining int) []Move
	rec = func(step, remaining int) []Move {
		tx, ty := x+dx*(step+1), y+dy*(step+1)
		if !p.InBounds(tx, ty) {
			return moves
		}
		if target, occupied := p.TopAt(tx, ty); occupied {
			switch target.Kind {
			case Capstone:
				return moves
			case Standing:
				if capstoneOnTop && remaining == 1 {
					drops[step] = 1
					m := Move{Kind: MoveSpread, X: int8(x), Y: int8(y), Dir: dir}
					copy(m.Drops[:], drops[:step+1])
					moves = append(moves, m)
				}
				return moves
			}
		}
		for n := 1; n <= remaining; n++ {
			drops[step] = uint8(n)
			if n == remaining {
				m := Move{Kind: MoveSpread, X: int8(x), Y: int8(y), Dir: dir}
				copy(m.Drops[:], drops[:step+1])
				moves = append(moves, m)
			} else {
				moves = rec(step+1, remaining-n)
			}
		}
		drops[step] = 0
		return moves
	}
	return rec(0, carry)
}
