package main

import "testing"

func TestIncrementalHashMatchesRecompute(t *testing.T) {
	pos, err := NewPosition(5, 0)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}

	moves := []Move{
		PlaceMove(0, 0, Flat),
		PlaceMove(4, 4, Flat),
		PlaceMove(2, 2, Flat),
		PlaceMove(3, 2, Standing),
		PlaceMove(2, 1, Capstone),
		PlaceMove(1, 1, Flat),
		SpreadMove(2, 1, North, []int{1}),
		PlaceMove(0, 1, Flat),
		SpreadMove(2, 2, East, []int{1}), // lone capstone crushes the standing stone
	}
	deltas := make([]MoveDelta, 0, len(moves))
	for _, m := range moves {
		delta, err := pos.Apply(m)
		if err != nil {
			t.Fatalf("Apply(%s): %v", m, err)
		}
		deltas = append(deltas, delta)
		if pos.hash != ComputeHash(pos) {
			t.Fatalf("incremental hash diverged after %s", m)
		}
	}
	for i := len(deltas) - 1; i >= 0; i-- {
		if err := pos.Undo(deltas[i]); err != nil {
			t.Fatalf("Undo(%s): %v", deltas[i].Move, err)
		}
		if pos.hash != ComputeHash(pos) {
			t.Fatalf("hash diverged after undoing %s", deltas[i].Move)
		}
	}
}

func TestHashIncludesSideToMove(t *testing.T) {
	stacks := map[[2]int]Stack{
		{0, 0}: {black(Flat)},
		{2, 2}: {white(Flat)},
	}
	even := testPosition(t, 5, 0, 2, stacks)
	odd := testPosition(t, 5, 0, 3, stacks)
	if even.hash == odd.hash {
		t.Fatalf("hash must distinguish side to move")
	}
}

func TestHashDistinguishesOpeningPlies(t *testing.T) {
	empty0, err := NewPosition(5, 0)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	empty2, err := NewPosition(5, 0)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	empty2.SetPly(2)
	if empty0.hash == empty2.hash {
		t.Fatalf("opening ply must hash differently from the regular phase")
	}
}

func TestHashDistinguishesPieceKinds(t *testing.T) {
	flat := testPosition(t, 5, 0, 4, map[[2]int]Stack{{2, 2}: {white(Flat)}})
	standing := testPosition(t, 5, 0, 4, map[[2]int]Stack{{2, 2}: {white(Standing)}})
	capstone := testPosition(t, 5, 0, 4, map[[2]int]Stack{{2, 2}: {white(Capstone)}})
	if flat.hash == standing.hash || flat.hash == capstone.hash || standing.hash == capstone.hash {
		t.Fatalf("piece kinds must hash apart")
	}
}

func TestHashDependsOnBoardSize(t *testing.T) {
	small, err := NewPosition(5, 0)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	large, err := NewPosition(6, 0)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	small.SetPly(2)
	large.SetPly(2)
	if small.hash == large.hash {
		t.Fatalf("empty boards of different sizes must hash apart")
	}
	if small.hash == 0 || large.hash == 0 {
		t.Fatalf("empty board hash must not be zero")
	}
}

func TestHashDependsOnHalfKomi(t *testing.T) {
	stacks := map[[2]int]Stack{
		{0, 0}: {white(Flat)},
		{1, 0}: {black(Flat)},
	}
	plain := testPosition(t, 5, 0, 10, stacks)
	komi := testPosition(t, 5, 1, 10, stacks)
	if plain.hash == komi.hash {
		t.Fatalf("komi variants resolve differently and must hash apart")
	}
}

func TestHashDistinguishesStackOrder(t *testing.T) {
	a := testPosition(t, 5, 0, 4, map[[2]int]Stack{{2, 2}: {white(Flat), black(Flat)}})
	b := testPosition(t, 5, 0, 4, map[[2]int]Stack{{2, 2}: {black(Flat), white(Flat)}})
	if a.hash == b.hash {
		t.Fatalf("stack order must hash apart")
	}
}
