package main

import "testing"

// testPosition builds a position from stacks given bottom to top, then
// rebuilds reserves so the allotment invariant holds.
func testPosition(t *testing.T, size, halfKomi, ply int, stacks map[[2]int]Stack) *Position {
	t.Helper()
	pos, err := NewPosition(size, halfKomi)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	for sq, stack := range stacks {
		pos.SetStack(sq[0], sq[1], stack)
	}
	if err := pos.RecountReserves(); err != nil {
		t.Fatalf("RecountReserves: %v", err)
	}
	pos.SetPly(ply)
	return pos
}

func white(kind PieceKind) Piece { return Piece{Color: PlayerWhite, Kind: kind} }
func black(kind PieceKind) Piece { return Piece{Color: PlayerBlack, Kind: kind} }

func TestApplyUndoRoundTrip(t *testing.T) {
	pos, err := NewPosition(5, 0)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	reference := pos.Clone()

	moves := []Move{
		PlaceMove(0, 0, Flat), // opening, becomes black
		PlaceMove(4, 4, Flat), // opening, becomes white
		PlaceMove(2, 2, Flat),
		PlaceMove(2, 3, Flat),
		PlaceMove(1, 2, Standing),
		SpreadMove(2, 3, South, []int{1}),
	}
	deltas := make([]MoveDelta, 0, len(moves))
	for _, m := range moves {
		delta, err := pos.Apply(m)
		if err != nil {
			t.Fatalf("Apply(%s): %v", m, err)
		}
		deltas = append(deltas, delta)
	}

	for i := len(deltas) - 1; i >= 0; i-- {
		if err := pos.Undo(deltas[i]); err != nil {
			t.Fatalf("Undo(%s): %v", deltas[i].Move, err)
		}
	}

	if pos.ply != reference.ply {
		t.Fatalf("ply not restored: got %d want %d", pos.ply, reference.ply)
	}
	if pos.hash != reference.hash {
		t.Fatalf("hash not restored: got %#x want %#x", pos.hash, reference.hash)
	}
	if pos.reserves != reference.reserves {
		t.Fatalf("reserves not restored: got %+v want %+v", pos.reserves, reference.reserves)
	}
	for i := range pos.stacks {
		if len(pos.stacks[i]) != len(reference.stacks[i]) {
			t.Fatalf("stack %d not restored", i)
		}
	}
}

func TestSpreadPreservesStackOrder(t *testing.T) {
	pos := testPosition(t, 5, 0, 6, map[[2]int]Stack{
		{2, 2}: {white(Flat), black(Flat), white(Capstone)},
		{0, 0}: {black(Flat)},
	})

	move := SpreadMove(2, 2, East, []int{1, 2})
	if _, err := pos.Apply(move); err != nil {
		t.Fatalf("Apply(%s): %v", move, err)
	}

	if !pos.IsEmpty(2, 2) {
		t.Fatalf("origin square should be empty after full spread")
	}
	d3 := pos.At(3, 2)
	if len(d3) != 1 || d3[0] != white(Flat) {
		t.Fatalf("first drop square wrong: %v", d3)
	}
	e3 := pos.At(4, 2)
	if len(e3) != 2 || e3[0] != black(Flat) || e3[1] != white(Capstone) {
		t.Fatalf("second drop square wrong: %v", e3)
	}
}

func TestCrushFlattensAndUndoRestores(t *testing.T) {
	pos := testPosition(t, 5, 0, 4, map[[2]int]Stack{
		{2, 2}: {white(Capstone)},
		{3, 2}: {black(Standing)},
	})
	before := pos.Clone()

	move := SpreadMove(2, 2, East, []int{1})
	delta, err := pos.Apply(move)
	if err != nil {
		t.Fatalf("Apply(%s): %v", move, err)
	}
	if !delta.Crush {
		t.Fatalf("expected crush delta")
	}
	target := pos.At(3, 2)
	if len(target) != 2 || target[0] != black(Flat) || target[1] != white(Capstone) {
		t.Fatalf("crush result wrong: %v", target)
	}

	if err := pos.Undo(delta); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	restored := pos.At(3, 2)
	if len(restored) != 1 || restored[0] != black(Standing) {
		t.Fatalf("standing stone not restored: %v", restored)
	}
	if pos.hash != before.hash {
		t.Fatalf("hash not restored after crush undo")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	pos := testPosition(t, 5, 0, 4, map[[2]int]Stack{
		{1, 1}: {white(Flat)},
		{3, 3}: {black(Flat)},
	})
	clone := pos.Clone()
	if _, err := pos.Apply(PlaceMove(0, 0, Flat)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !clone.IsEmpty(0, 0) {
		t.Fatalf("mutation leaked into clone")
	}
	if clone.hash == pos.hash {
		t.Fatalf("clone hash should differ after mutation")
	}
}

func TestValidateRejectsBuriedBlockingPiece(t *testing.T) {
	pos, err := NewPosition(5, 0)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	pos.SetStack(2, 2, Stack{white(Standing), black(Flat)})
	if err := pos.RecountReserves(); err != nil {
		t.Fatalf("RecountReserves: %v", err)
	}
	pos.SetPly(4)
	if err := pos.Validate(); err == nil {
		t.Fatalf("expected buried standing stone to fail validation")
	}
}

func TestNewPositionRejectsBadSize(t *testing.T) {
	if _, err := NewPosition(9, 0); err == nil {
		t.Fatalf("expected size 9 to be rejected")
	}
	if _, err := NewPosition(2, 0); err == nil {
		t.Fatalf("expected size 2 to be rejected")
	}
}
