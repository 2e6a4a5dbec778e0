package main

import (
	"fmt"
	"strings"
)

// Wire format: a stack is a string of piece letters bottom to top, uppercase
// white and lowercase black, with S/s standing and C/c capstone suffix kinds
// folded into the letter ("Fs" would be ambiguous otherwise). So "FfS" is a
// white flat, a black flat, and a white standing stone on top.

type GameStateDTO struct {
	ID        string            `json:"id"`
	Size      int               `json:"size"`
	HalfKomi  int               `json:"half_komi"`
	Ply       int               `json:"ply"`
	ToMove    string            `json:"to_move"`
	White     PlayerType        `json:"white"`
	Black     PlayerType        `json:"black"`
	Stacks    []string          `json:"stacks"`
	Reserves  [2]Reserves       `json:"reserves"`
	Result    string            `json:"result"`
	History   []HistoryEntryDTO `json:"history"`
	CreatedMs int64             `json:"created_ms"`
}

type HistoryEntryDTO struct {
	Move      string  `json:"move"`
	Player    string  `json:"player"`
	Ply       int     `json:"ply"`
	ElapsedMs int64   `json:"elapsed_ms"`
	IsEngine  bool    `json:"is_engine"`
	Depth     int     `json:"depth,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Nodes     int64   `json:"nodes,omitempty"`
}

type MoveDTO struct {
	Type  string `json:"type"` // "place" or "spread"
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Piece string `json:"piece,omitempty"` // "flat", "standing", "capstone"
	Dir   string `json:"dir,omitempty"`   // "+", ">", "-", "<"
	Drops []int  `json:"drops,omitempty"`
}

type PositionDTO struct {
	Size     int      `json:"size"`
	HalfKomi int      `json:"half_komi"`
	Ply      int      `json:"ply"`
	Stacks   []string `json:"stacks"`
}

type SearchResultDTO struct {
	Move      string   `json:"move"`
	Score     float64  `json:"score"`
	Depth     int      `json:"depth"`
	PV        []string `json:"pv"`
	Nodes     int64    `json:"nodes"`
	ElapsedMs int64    `json:"elapsed_ms"`
}

func playerName(c PlayerColor) string {
	if c == PlayerWhite {
		return "white"
	}
	return "black"
}

func pieceLetter(piece Piece) byte {
	var letter byte
	switch piece.Kind {
	case Standing:
		letter = 'S'
	case Capstone:
		letter = 'C'
	default:
		letter = 'F'
	}
	if piece.Color == PlayerBlack {
		letter += 'a' - 'A'
	}
	return letter
}

func pieceFromLetter(letter byte) (Piece, error) {
	color := PlayerWhite
	if letter >= 'a' && letter <= 'z' {
		color = PlayerBlack
		letter -= 'a' - 'A'
	}
	switch letter {
	case 'F':
		return Piece{Color: color, Kind: Flat}, nil
	case 'S':
		return Piece{Color: color, Kind: Standing}, nil
	case 'C':
		return Piece{Color: color, Kind: Capstone}, nil
	}
	return Piece{}, fmt.Errorf("%w: unknown piece letter %q", ErrIllegalPosition, letter)
}

func stackString(stack Stack) string {
	var sb strings.Builder
	for _, piece := range stack {
		sb.WriteByte(pieceLetter(piece))
	}
	return sb.String()
}

func positionStacks(p *Position) []string {
	stacks := make([]string, len(p.stacks))
	for i, stack := range p.stacks {
		stacks[i] = stackString(stack)
	}
	return stacks
}

func gameToDTO(g *Game) GameStateDTO {
	pos := g.Position()
	history := make([]HistoryEntryDTO, 0, len(g.history))
	for _, entry := range g.history {
		history = append(history, historyEntryToDTO(entry))
	}
	result := ""
	if g.Result().Decided() {
		result = g.Result().String()
	}
	return GameStateDTO{
		ID:        g.ID.String(),
		Size:      pos.size,
		HalfKomi:  pos.halfKomi,
		Ply:       pos.ply,
		ToMove:    playerName(pos.ToMove()),
		White:     g.White,
		Black:     g.Black,
		Stacks:    positionStacks(pos),
		Reserves:  pos.reserves,
		Result:    result,
		History:   history,
		CreatedMs: g.created.UnixMilli(),
	}
}

func historyEntryToDTO(entry HistoryEntry) HistoryEntryDTO {
	return HistoryEntryDTO{
		Move:      entry.Move.String(),
		Player:    playerName(entry.Player),
		Ply:       entry.Ply,
		ElapsedMs: entry.ElapsedMs,
		IsEngine:  entry.IsEngine,
		Depth:     entry.Depth,
		Score:     entry.Score,
		Nodes:     entry.Nodes,
	}
}

func moveFromDTO(dto MoveDTO) (Move, error) {
	switch dto.Type {
	case "place":
		var kind PieceKind
		switch dto.Piece {
		case "", "flat":
			kind = Flat
		case "standing":
			kind = Standing
		case "capstone":
			kind = Capstone
		default:
			return Move{}, fmt.Errorf("%w: unknown piece %q", ErrIllegalMove, dto.Piece)
		}
		return PlaceMove(dto.X, dto.Y, kind), nil
	case "spread":
		var dir Direction
		switch dto.Dir {
		case "+":
			dir = North
		case ">":
			dir = East
		case "-":
			dir = South
		case "<":
			dir = West
		default:
			return Move{}, fmt.Errorf("%w: unknown direction %q", ErrIllegalMove, dto.Dir)
		}
		if len(dto.Drops) == 0 || len(dto.Drops) > maxCarry {
			return Move{}, fmt.Errorf("%w: spread needs 1..%d drop counts", ErrIllegalMove, maxCarry)
		}
		for _, d := range dto.Drops {
			if d < 1 {
				return Move{}, fmt.Errorf("%w: drop counts must be positive", ErrIllegalMove)
			}
		}
		return SpreadMove(dto.X, dto.Y, dir, dto.Drops), nil
	}
	return Move{}, fmt.Errorf("%w: unknown move type %q", ErrIllegalMove, dto.Type)
}

// positionFromDTO rebuilds a position from the wire form and validates it,
// so malformed analysis requests are rejected before any search runs.
func positionFromDTO(dto PositionDTO) (*Position, error) {
	pos, err := NewPosition(dto.Size, dto.HalfKomi)
	if err != nil {
		return nil, err
	}
	if len(dto.Stacks) != dto.Size*dto.Size {
		return nil, fmt.Errorf("%w: want %d stacks, got %d", ErrIllegalPosition, dto.Size*dto.Size, len(dto.Stacks))
	}
	for i, encoded := range dto.Stacks {
		if encoded == "" {
			continue
		}
		stack := make(Stack, 0, len(encoded))
		for j := 0; j < len(encoded); j++ {
			piece, err := pieceFromLetter(encoded[j])
			if err != nil {
				return nil, err
			}
			if piece.Kind != Flat && j != len(encoded)-1 {
				return nil, fmt.Errorf("%w: buried %s in stack %d", ErrIllegalPosition, piece.Kind, i)
			}
			stack = append(stack, piece)
		}
		pos.SetStack(i%dto.Size, i/dto.Size, stack)
	}
	if err := pos.RecountReserves(); err != nil {
		return nil, err
	}
	pos.SetPly(dto.Ply)
	if err := pos.Validate(); err != nil {
		return nil, err
	}
	return pos, nil
}

func searchResultToDTO(result SearchResult, boardSize int) SearchResultDTO {
	pv := make([]string, 0, len(result.PV))
	for _, m := range result.PV {
		pv = append(pv, m.String())
	}
	move := ""
	if result.BestMove.IsValid(boardSize) {
		move = result.BestMove.String()
	}
	return SearchResultDTO{
		Move:      move,
		Score:     result.Score,
		Depth:     result.Depth,
		PV:        pv,
		Nodes:     result.Nodes,
		ElapsedMs: result.Elapsed.Milliseconds(),
	}
}
