package authority

import (
	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-board/internal/domain"
)

// Row 0 is rank 8 and column 0 is file A.
func toSquare(p domain.Position) nchess.Square {
	return nchess.NewSquare(nchess.File(p.Col), nchess.Rank(domain.BoardSize-1-p.Row))
}

func fromSquare(sq nchess.Square) domain.Position {
	return domain.Position{Row: domain.BoardSize - 1 - int(sq.Rank()), Col: int(sq.File())}
}

func sideOf(c nchess.Color) domain.Side {
	if c == nchess.Black {
		return domain.Black
	}
	return domain.White
}

var pieceTypes = map[nchess.PieceType]domain.PieceType{
	nchess.King:   domain.King,
	nchess.Queen:  domain.Queen,
	nchess.Rook:   domain.Rook,
	nchess.Bishop: domain.Bishop,
	nchess.Knight: domain.Knight,
	nchess.Pawn:   domain.Pawn,
}

func pieceOf(p nchess.Piece) (domain.Piece, bool) {
	if p == nchess.NoPiece {
		return domain.Piece{}, false
	}
	t, ok := pieceTypes[p.Type()]
	if !ok {
		return domain.Piece{}, false
	}
	return domain.Piece{Type: t, Side: sideOf(p.Color())}, true
}

func promoType(t domain.PieceType) nchess.PieceType {
	switch t {
	case domain.Knight:
		return nchess.Knight
	case domain.Rook:
		return nchess.Rook
	case domain.Bishop:
		return nchess.Bishop
	default:
		return nchess.Queen
	}
}

func promoPiece(t nchess.PieceType) domain.PieceType {
	if v, ok := pieceTypes[t]; ok {
		return v
	}
	return domain.NoPieceType
}

// uciOf renders a move in UCI long algebraic form, e.g. "e7e8q".
func uciOf(mv domain.Move, promo domain.PieceType) string {
	s := toSquare(mv.From).String() + toSquare(mv.To).String()
	switch promo {
	case domain.Queen:
		s += "q"
	case domain.Knight:
		s += "n"
	case domain.Rook:
		s += "r"
	case domain.Bishop:
		s += "b"
	}
	return s
}
