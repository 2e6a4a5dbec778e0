package main

import "testing"

func TestPositionDTORoundTrip(t *testing.T) {
	pos := testPosition(t, 5, 2, 6, map[[2]int]Stack{
		{0, 0}: {black(Flat)},
		{2, 2}: {white(Flat), black(Flat), white(Capstone)},
		{3, 2}: {black(Standing)},
		{4, 4}: {white(Flat)},
	})

	dto := PositionDTO{
		Size:     pos.Size(),
		HalfKomi: pos.HalfKomi(),
		Ply:      pos.Ply(),
		Stacks:   positionStacks(pos),
	}
	decoded, err := positionFromDTO(dto)
	if err != nil {
		t.Fatalf("positionFromDTO: %v", err)
	}
	if decoded.Hash() != pos.Hash() {
		t.Fatalf("round trip changed the position: %#x vs %#x", decoded.Hash(), pos.Hash())
	}
	if decoded.Reserves(PlayerWhite) != pos.Reserves(PlayerWhite) {
		t.Fatalf("white reserves mismatch")
	}
	if decoded.Reserves(PlayerBlack) != pos.Reserves(PlayerBlack) {
		t.Fatalf("black reserves mismatch")
	}
}

func TestPositionDTORejectsGarbage(t *testing.T) {
	cases := []PositionDTO{
		{Size: 9, Stacks: nil},
		{Size: 5, Ply: 4, Stacks: make([]string, 24)},
		{Size: 5, Ply: 4, Stacks: append(append(make([]string, 0, 25), "X"), make([]string, 24)...)},
		{Size: 5, Ply: 4, Stacks: append(append(make([]string, 0, 25), "SF"), make([]string, 24)...)}, // buried standing stone
	}
	for i, dto := range cases {
		if _, err := positionFromDTO(dto); err == nil {
			t.Fatalf("case %d should be rejected", i)
		}
	}
}

func TestMoveDTOParsing(t *testing.T) {
	place, err := moveFromDTO(MoveDTO{Type: "place", X: 2, Y: 3, Piece: "capstone"})
	if err != nil {
		t.Fatalf("moveFromDTO: %v", err)
	}
	if place != PlaceMove(2, 3, Capstone) {
		t.Fatalf("placement parsed wrong: %s", place)
	}

	spread, err := moveFromDTO(MoveDTO{Type: "spread", X: 1, Y: 1, Dir: ">", Drops: []int{2, 1}})
	if err != nil {
		t.Fatalf("moveFromDTO: %v", err)
	}
	if spread != SpreadMove(1, 1, East, []int{2, 1}) {
		t.Fatalf("spread parsed wrong: %s", spread)
	}

	bad := []MoveDTO{
		{Type: "teleport"},
		{Type: "place", Piece: "obelisk"},
		{Type: "spread", Dir: "x", Drops: []int{1}},
		{Type: "spread", Dir: ">", Drops: nil},
		{Type: "spread", Dir: ">", Drops: []int{0}},
	}
	for i, dto := range bad {
		if _, err := moveFromDTO(dto); err == nil {
			t.Fatalf("bad move %d should be rejected", i)
		}
	}
}

func TestMoveNotation(t *testing.T) {
	cases := []struct {
		move Move
		want string
	}{
		{PlaceMove(2, 2, Flat), "c3"},
		{PlaceMove(0, 4, Standing), "Sa5"},
		{PlaceMove(4, 0, Capstone), "Ce1"},
		{SpreadMove(2, 2, East, []int{1}), "c3>"},
		{SpreadMove(2, 2, North, []int{1, 2}), "3c3+12"},
	}
	for _, tc := range cases {
		if got := tc.move.String(); got != tc.want {
			t.Fatalf("notation for %+v: got %q want %q", tc.move, got, tc.want)
		}
	}
}
