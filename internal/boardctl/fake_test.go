package boardctl

import (
	"context"
	"sync"

	"github.com/park285/cheese-board/internal/domain"
)

// fakeAuth is a scripted rule authority. Moves listed in moves are legal,
// moves in reject fail with ErrInvalidMove, moves in promote ask the port.
type fakeAuth struct {
	mu         sync.Mutex
	kind       domain.PairingKind
	identity   domain.Side
	restricted bool

	pieces  map[domain.Position]domain.Piece
	moves   []domain.Move
	reject  map[domain.Move]bool
	promote map[domain.Move]bool
	endWith map[domain.Move]domain.GameState
	// enPassant removes the listed square as a side effect of the move
	enPassant map[domain.Move]domain.Position

	toMove  domain.Side
	state   domain.GameState
	pending *domain.GameState

	listeners []domain.Listener
	port      domain.PromotionPort
	promoted  []domain.PieceType

	started int
	began   int
	closed  int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		pieces:  map[domain.Position]domain.Piece{},
		reject:  map[domain.Move]bool{},
		promote: map[domain.Move]bool{},
		endWith: map[domain.Move]domain.GameState{},

		enPassant: map[domain.Move]domain.Position{},
	}
}

func (f *fakeAuth) place(pos domain.Position, t domain.PieceType, side domain.Side) *fakeAuth {
	f.pieces[pos] = domain.Piece{Type: t, Side: side}
	return f
}

func (f *fakeAuth) legal(from, to domain.Position) *fakeAuth {
	f.moves = append(f.moves, domain.Move{From: from, To: to})
	return f
}

func (f *fakeAuth) Kind() domain.PairingKind { return f.kind }

func (f *fakeAuth) LocalIdentity() (domain.Side, bool) { return f.identity, f.restricted }

func (f *fakeAuth) LegalMovesFrom(pos domain.Position) []domain.Move {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Move
	for _, mv := range f.moves {
		if mv.From == pos {
			out = append(out, mv)
		}
	}
	return out
}

func (f *fakeAuth) SubmitMove(ctx context.Context, mv domain.Move) error {
	f.mu.Lock()
	if f.reject[mv] || !f.isLegal(mv) {
		f.mu.Unlock()
		return domain.ErrInvalidMove
	}
	port := f.port
	promote := f.promote[mv]
	f.mu.Unlock()

	if promote && port != nil {
		choice := port.RequestPromotion(ctx)
		f.mu.Lock()
		f.promoted = append(f.promoted, choice)
		f.mu.Unlock()
	}

	f.mu.Lock()
	var captured []domain.Position
	if _, ok := f.pieces[mv.To]; ok {
		captured = append(captured, mv.To)
	}
	if at, ok := f.enPassant[mv]; ok {
		delete(f.pieces, at)
		captured = append(captured, at)
	}
	f.pieces[mv.To] = f.pieces[mv.From]
	delete(f.pieces, mv.From)
	f.moves = nil
	if gs, ok := f.endWith[mv]; ok {
		f.pending = &gs
	}
	ls := append([]domain.Listener(nil), f.listeners...)
	f.mu.Unlock()

	for _, l := range ls {
		l.MoveCompleted(mv, captured)
	}
	return nil
}

func (f *fakeAuth) isLegal(mv domain.Move) bool {
	for _, m := range f.moves {
		if m == mv {
			return true
		}
	}
	return false
}

func (f *fakeAuth) PieceLabelAt(pos domain.Position) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pieces[pos]; ok {
		return p.Symbol()
	}
	return ""
}

func (f *fakeAuth) PiecePositions() []domain.PlacedPiece {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.PlacedPiece, 0, len(f.pieces))
	for pos, p := range f.pieces {
		out = append(out, domain.PlacedPiece{Piece: p, Position: pos})
	}
	return out
}

func (f *fakeAuth) SideToMove() domain.Side {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.toMove
}

func (f *fakeAuth) GameState() domain.GameState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeAuth) StartGame() {
	f.mu.Lock()
	f.started++
	f.mu.Unlock()
}

func (f *fakeAuth) BeginTurn() {
	f.mu.Lock()
	f.began++
	f.mu.Unlock()
}

func (f *fakeAuth) EndTurn() {
	f.mu.Lock()
	f.toMove = f.toMove.Opponent()
	side := f.toMove
	var gs *domain.GameState
	if f.pending != nil {
		f.state = *f.pending
		gs = f.pending
		f.pending = nil
	}
	ls := append([]domain.Listener(nil), f.listeners...)
	f.mu.Unlock()

	for _, l := range ls {
		l.SideChanged(side)
		if gs != nil {
			l.GameStateChanged(*gs)
		}
	}
}

// emit raises a game-state notification the way a background thread would.
func (f *fakeAuth) emit(gs domain.GameState) {
	f.mu.Lock()
	f.state = gs
	ls := append([]domain.Listener(nil), f.listeners...)
	f.mu.Unlock()
	for _, l := range ls {
		l.GameStateChanged(gs)
	}
}

func (f *fakeAuth) Subscribe(l domain.Listener) func() {
	f.mu.Lock()
	f.listeners = append(f.listeners, l)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, x := range f.listeners {
			if x == l {
				f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
				return
			}
		}
	}
}

func (f *fakeAuth) SetPromotionPort(p domain.PromotionPort) {
	f.mu.Lock()
	f.port = p
	f.mu.Unlock()
}

func (f *fakeAuth) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func (f *fakeAuth) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// listenersSnapshot lets a test keep a stale listener after a reset.
func (f *fakeAuth) listenersSnapshot() []domain.Listener {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Listener(nil), f.listeners...)
}
