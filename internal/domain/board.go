package domain

import "fmt"

// BoardSize is the number of rows and columns of the grid.
const BoardSize = 8

// Position is a 0-indexed (row, column) cell. Row 0 is displayed as rank 8.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func Pos(row, col int) Position { return Position{Row: row, Col: col} }

func (p Position) Valid() bool {
	return p.Row >= 0 && p.Row < BoardSize && p.Col >= 0 && p.Col < BoardSize
}

// FileLabel returns the column letter, A for column 0.
func (p Position) FileLabel() string {
	if p.Col < 0 || p.Col >= BoardSize {
		return "?"
	}
	return string(rune('A' + p.Col))
}

// RankNumber is the displayed rank, 8 - row.
func (p Position) RankNumber() int { return BoardSize - p.Row }

// Label renders the algebraic-style coordinate, e.g. "E2".
func (p Position) Label() string {
	return fmt.Sprintf("%s%d", p.FileLabel(), p.RankNumber())
}

func (p Position) String() string { return p.Label() }

// Move is an ordered (start, destination) pair.
type Move struct {
	From Position `json:"from"`
	To   Position `json:"to"`
}

func (m Move) String() string { return m.From.Label() + "-" + m.To.Label() }

// Side identifies a player.
type Side int

const (
	White Side = iota
	Black
)

func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

func (s Side) String() string {
	if s == Black {
		return "Black"
	}
	return "White"
}

// ParseSide accepts white/black and their first letters; anything else is White.
func ParseSide(v string) Side {
	switch v {
	case "black", "Black", "BLACK", "b", "B":
		return Black
	default:
		return White
	}
}

// PieceType enumerates the chess piece kinds.
type PieceType int

const (
	NoPieceType PieceType = iota
	King
	Queen
	Rook
	Bishop
	Knight
	Pawn
)

// PromotionChoices is the finite set offered on promotion, in prompt order.
var PromotionChoices = []PieceType{Queen, Knight, Rook, Bishop}

func (t PieceType) String() string {
	switch t {
	case King:
		return "King"
	case Queen:
		return "Queen"
	case Rook:
		return "Rook"
	case Bishop:
		return "Bishop"
	case Knight:
		return "Knight"
	case Pawn:
		return "Pawn"
	default:
		return ""
	}
}

// ParsePromotion maps a prompt answer to a promotion piece type.
func ParsePromotion(v string) (PieceType, bool) {
	switch v {
	case "Queen", "queen", "q", "Q":
		return Queen, true
	case "Knight", "knight", "n", "N":
		return Knight, true
	case "Rook", "rook", "r", "R":
		return Rook, true
	case "Bishop", "bishop", "b", "B":
		return Bishop, true
	default:
		return NoPieceType, false
	}
}

var symbols = map[Side]map[PieceType]string{
	White: {King: "♔", Queen: "♕", Rook: "♖", Bishop: "♗", Knight: "♘", Pawn: "♙"},
	Black: {King: "♚", Queen: "♛", Rook: "♜", Bishop: "♝", Knight: "♞", Pawn: "♟"},
}

// Piece is a typed, sided piece. The core only displays it.
type Piece struct {
	Type PieceType `json:"type"`
	Side Side      `json:"side"`
}

// Symbol is the display glyph of the piece.
func (p Piece) Symbol() string { return symbols[p.Side][p.Type] }

// PlacedPiece is one entry of the authority's piece/position mapping.
type PlacedPiece struct {
	Piece    Piece
	Position Position
}

// PairingKind tags how the current game is paired.
type PairingKind int

const (
	PairingPlayer PairingKind = iota
	PairingComputer
	PairingNetwork
)

func (k PairingKind) String() string {
	switch k {
	case PairingComputer:
		return "Computer"
	case PairingNetwork:
		return "Network"
	default:
		return "Player"
	}
}

// ParsePairingKind accepts player/computer/network; unknown values map to Player.
func ParsePairingKind(v string) PairingKind {
	switch v {
	case "computer", "Computer", "ai":
		return PairingComputer
	case "network", "Network":
		return PairingNetwork
	default:
		return PairingPlayer
	}
}
