package main

import (
	"context"
	"testing"
)

func TestGameOpeningSwapFlow(t *testing.T) {
	game, err := NewGame(5, 0, PlayerHuman, PlayerHuman, nil)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if err := game.ApplyMove(PlaceMove(0, 0, Flat), HistoryEntry{}); err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	top, ok := game.Position().TopAt(0, 0)
	if !ok || top.Color != PlayerBlack {
		t.Fatalf("opening placement should be the opponent's flat, got %v", top)
	}
	history := game.History()
	if len(history) != 1 || history[0].Player != PlayerWhite || history[0].Ply != 0 {
		t.Fatalf("history entry wrong: %+v", history)
	}
}

func TestGameRejectsMovesAfterResult(t *testing.T) {
	game, err := NewGame(5, 0, PlayerHuman, PlayerHuman, nil)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	// Both players cooperate on a white road along row 1.
	moves := []Move{
		PlaceMove(0, 0, Flat), // black, via swap
		PlaceMove(4, 4, Flat), // white, via swap
		PlaceMove(0, 1, Flat),
		PlaceMove(0, 4, Flat),
		PlaceMove(1, 1, Flat),
		PlaceMove(1, 4, Flat),
		PlaceMove(2, 1, Flat),
		PlaceMove(2, 4, Flat),
		PlaceMove(3, 1, Flat),
		PlaceMove(3, 4, Flat),
		PlaceMove(4, 1, Flat),
	}
	for _, m := range moves {
		if err := game.ApplyMove(m, HistoryEntry{}); err != nil {
			t.Fatalf("ApplyMove(%s): %v", m, err)
		}
	}
	if game.Result() != OutcomeWhiteRoad {
		t.Fatalf("expected white road, got %s", game.Result())
	}
	if err := game.ApplyMove(PlaceMove(4, 0, Flat), HistoryEntry{}); err == nil {
		t.Fatalf("moves after the game is decided must be rejected")
	}
}

func TestGameDrawsOnThreefoldRepetition(t *testing.T) {
	game, err := NewGame(5, 0, PlayerHuman, PlayerHuman, nil)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	opening := []Move{
		PlaceMove(0, 0, Flat), // black flat via swap
		PlaceMove(2, 2, Flat), // white flat via swap
	}
	for _, m := range opening {
		if err := game.ApplyMove(m, HistoryEntry{}); err != nil {
			t.Fatalf("ApplyMove(%s): %v", m, err)
		}
	}

	// Both players shuttle a lone flat between two empty squares; every
	// four plies the position repeats.
	cycle := []Move{
		SpreadMove(2, 2, East, []int{1}),
		SpreadMove(0, 0, North, []int{1}),
		SpreadMove(3, 2, West, []int{1}),
		SpreadMove(0, 1, South, []int{1}),
	}
	for round := 0; round < 2; round++ {
		for _, m := range cycle {
			if game.Result().Decided() {
				t.Fatalf("game ended early in round %d at %s: %s", round, m, game.Result())
			}
			if err := game.ApplyMove(m, HistoryEntry{}); err != nil {
				t.Fatalf("ApplyMove(%s): %v", m, err)
			}
		}
	}
	if game.Result() != OutcomeDraw {
		t.Fatalf("threefold repetition should draw, got %s", game.Result())
	}
}

// useFastEngineConfig shrinks the global search settings so engine-backed
// tests stay quick, restoring the previous configuration afterwards.
func useFastEngineConfig(t *testing.T) Config {
	t.Helper()
	old := GetConfig()
	config := old
	config.AiMaxDepth = 2
	config.AiTimeBudgetMs = 0
	config.AiTtSize = 1 << 12
	config.AiTtBuckets = 2
	if err := configStore.Update(config); err != nil {
		t.Fatalf("config update: %v", err)
	}
	t.Cleanup(func() {
		if err := configStore.Update(old); err != nil {
			t.Fatalf("config restore: %v", err)
		}
	})
	return config
}

func TestGameEngineMovePlaysALegalMove(t *testing.T) {
	config := useFastEngineConfig(t)
	engine, err := NewAIPlayer(config)
	if err != nil {
		t.Fatalf("NewAIPlayer: %v", err)
	}
	defer engine.Close()

	game, err := NewGame(5, 0, PlayerEngine, PlayerHuman, engine)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	entry, err := game.EngineMove(context.Background())
	if err != nil {
		t.Fatalf("EngineMove: %v", err)
	}
	if !entry.IsEngine || entry.Ply != 0 {
		t.Fatalf("engine entry wrong: %+v", entry)
	}
	if game.Position().Ply() != 1 {
		t.Fatalf("engine move was not applied")
	}
}

func TestControllerSubmitMoveTriggersEngineReply(t *testing.T) {
	useFastEngineConfig(t)
	gc := NewGameController()
	game, err := gc.CreateGame(5, 0, PlayerHuman, PlayerEngine)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	applied, err := gc.SubmitMove(context.Background(), game.ID, PlaceMove(0, 0, Flat))
	if err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("expected human move plus engine reply, got %d entries", len(applied))
	}
	if !applied[1].IsEngine {
		t.Fatalf("second entry should be the engine's")
	}
	snapshot, ok := gc.Snapshot(game.ID)
	if !ok {
		t.Fatalf("missing snapshot")
	}
	if snapshot.Ply != 2 {
		t.Fatalf("expected two plies applied, got %d", snapshot.Ply)
	}
}

func TestControllerKeepsHumanMoveWhenEngineFails(t *testing.T) {
	gc := NewGameController()
	// A nil engine makes the reply fail after the human move is in.
	game, err := NewGame(5, 0, PlayerHuman, PlayerEngine, nil)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	gc.games[game.ID] = game

	applied, err := gc.SubmitMove(context.Background(), game.ID, PlaceMove(0, 0, Flat))
	if err == nil {
		t.Fatalf("expected the engine reply to fail")
	}
	if len(applied) != 1 {
		t.Fatalf("human move should survive the failed reply, got %d entries", len(applied))
	}
	snapshot, ok := gc.Snapshot(game.ID)
	if !ok {
		t.Fatalf("missing snapshot")
	}
	if snapshot.Ply != 1 {
		t.Fatalf("expected the human ply on the board, got %d", snapshot.Ply)
	}
}

func TestControllerRejectsHumanMoveOnEngineTurn(t *testing.T) {
	useFastEngineConfig(t)
	gc := NewGameController()
	game, err := gc.CreateGame(5, 0, PlayerEngine, PlayerHuman)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if _, err := gc.SubmitMove(context.Background(), game.ID, PlaceMove(0, 0, Flat)); err == nil {
		t.Fatalf("human move on engine turn must be rejected")
	}
}
