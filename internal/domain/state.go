package domain

import (
	"context"
	"errors"
)

var (
	// ErrInvalidMove is returned by an authority that refuses a submitted move.
	ErrInvalidMove = errors.New("invalid move")
	// ErrNetworkUnavailable covers host/join failures during pairing setup.
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrNoAuthority        = errors.New("no rule authority")
	ErrLoopClosed         = errors.New("update loop closed")
)

// Status classifies a GameState.
type Status int

const (
	StatusOngoing Status = iota
	StatusCheck
	StatusCheckmate
	StatusStalemate
	StatusDraw
	StatusDisconnected
)

// GameState is the status token reported by a rule authority.
type GameState struct {
	Status Status
	Winner *Side
	Text   string
}

// IsGameOver reports whether the state is terminal.
func (s GameState) IsGameOver() bool {
	switch s.Status {
	case StatusCheckmate, StatusStalemate, StatusDraw, StatusDisconnected:
		return true
	default:
		return false
	}
}

func (s GameState) String() string {
	if s.Text != "" {
		return s.Text
	}
	switch s.Status {
	case StatusCheck:
		return "Check"
	case StatusCheckmate:
		if s.Winner != nil {
			return s.Winner.String() + " wins by checkmate"
		}
		return "Checkmate"
	case StatusStalemate:
		return "Stalemate"
	case StatusDraw:
		return "Draw"
	case StatusDisconnected:
		return "Opponent disconnected"
	default:
		return "Ongoing"
	}
}

// Equal compares status, winner and text.
func (s GameState) Equal(o GameState) bool {
	if s.Status != o.Status || s.Text != o.Text {
		return false
	}
	if (s.Winner == nil) != (o.Winner == nil) {
		return false
	}
	return s.Winner == nil || *s.Winner == *o.Winner
}

// Listener receives an authority's notifications. Calls may arrive on any goroutine.
type Listener interface {
	MoveCompleted(mv Move, captured []Position)
	SideChanged(side Side)
	GameStateChanged(state GameState)
}

// PromotionPort is the request/response port an authority uses when a move
// needs the operator to pick the promoted piece. It blocks until answered.
type PromotionPort interface {
	RequestPromotion(ctx context.Context) PieceType
}

// Authority is a rule authority for one pairing: local rules, engine-assisted
// or a networked peer proxy.
type Authority interface {
	Kind() PairingKind
	// LocalIdentity returns the side the operator is restricted to, if any.
	LocalIdentity() (Side, bool)

	LegalMovesFrom(pos Position) []Move
	SubmitMove(ctx context.Context, mv Move) error
	PieceLabelAt(pos Position) string
	PiecePositions() []PlacedPiece
	SideToMove() Side
	GameState() GameState

	StartGame()
	BeginTurn()
	EndTurn()

	Subscribe(l Listener) (unsubscribe func())
	SetPromotionPort(p PromotionPort)

	Close() error
}
