package main

// Zobrist keys are derived on demand from a splitmix64 stream seeded by the
// (square, stack level, piece) triple, so no per-size tables need to be
// allocated and hashing stays deterministic across processes. The stream is
// seeded per (board size, half-komi) configuration, so positions from
// different configurations never share a hash even when their boards are
// empty or identical square by square. The position hash is a configuration
// base key XORed with one key per piece on the board, plus a side-to-move
// key when Black is to move, plus keys for the opening swap plies so that
// the same stones reached through a different reserve history hash apart.

const zobristSeed = 0x9e3779b97f4a7c15

type splitmix64 struct {
	state uint64
}

func (s *splitmix64) next() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func mixKey(v uint64) uint64 {
	rng := splitmix64{state: v}
	return rng.next()
}

// positionSeed folds the board size and half-komi into the key stream.
// Komi changes which flat counts win, so komi-variant positions are as
// distinct as different board sizes.
func positionSeed(size, halfKomi int) uint64 {
	return mixKey(zobristSeed ^ uint64(size)<<32 ^ uint64(uint32(int32(halfKomi))))
}

func pieceKey(seed uint64, square, level int, piece Piece) uint64 {
	s := seed ^
		uint64(square)<<40 ^
		uint64(level)<<16 ^
		uint64(piece.Kind)<<2 ^
		uint64(piece.Color)<<1
	rng := splitmix64{state: s}
	rng.next()
	return rng.next()
}

func sideKey(seed uint64) uint64 {
	return mixKey(seed ^ 0xf00df00df00d)
}

// baseKey is the hash of an empty board. It is constant per configuration,
// so incremental updates never touch it.
func baseKey(seed uint64) uint64 {
	return mixKey(seed ^ 0xba5e)
}

// swapKey distinguishes the two opening plies, where a placement spends the
// opponent's reserve instead of the mover's.
func swapKey(seed uint64, ply int) uint64 {
	return mixKey(seed ^ 0xbead ^ uint64(ply))
}

func hashSquare(p *Position, square int) uint64 {
	var h uint64
	for level, piece := range p.stacks[square] {
		h ^= pieceKey(p.seed, square, level, piece)
	}
	return h
}

// ComputeHash rebuilds the hash of a position from scratch. Apply and Undo
// keep the hash current incrementally; this is the reference they must agree
// with.
func ComputeHash(p *Position) uint64 {
	hash := baseKey(p.seed)
	for square := range p.stacks {
		hash ^= hashSquare(p, square)
	}
	if p.ToMove() == PlayerBlack {
		hash ^= sideKey(p.seed)
	}
	if p.ply < 2 {
		hash ^= swapKey(p.seed, p.ply)
	}
	return hash
}
