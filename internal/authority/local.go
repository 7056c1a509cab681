// Package authority implements the rule authorities a board controller can
// drive: hot-seat rules, an engine opponent and a networked peer.
package authority

import (
	"context"
	"fmt"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-board/internal/domain"
)

type config struct {
	fen string
}

type Option func(*config)

// FromFEN starts the game from fen instead of the standard position.
func FromFEN(fen string) Option {
	return func(c *config) { c.fen = strings.TrimSpace(fen) }
}

// Local is the hot-seat rule authority backed by corentings/chess. The
// side-to-move it reports flips on EndTurn, not when the move is applied.
type Local struct {
	hub

	mu       sync.Mutex
	game     *nchess.Game
	startFEN string
	turn     domain.Side
	reported domain.GameState
	port     domain.PromotionPort
	closed   bool
}

func NewLocal(opts ...Option) (*Local, error) {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	var game *nchess.Game
	if cfg.fen != "" {
		fenOpt, err := nchess.FEN(cfg.fen)
		if err != nil {
			return nil, fmt.Errorf("parse fen: %w", err)
		}
		game = nchess.NewGame(fenOpt)
	} else {
		game = nchess.NewGame()
	}
	l := &Local{game: game, startFEN: cfg.fen}
	l.turn = sideOf(game.Position().Turn())
	l.reported = stateOf(game)
	return l, nil
}

func (l *Local) Kind() domain.PairingKind { return domain.PairingPlayer }

func (l *Local) LocalIdentity() (domain.Side, bool) { return domain.White, false }

func (l *Local) LegalMovesFrom(pos domain.Position) []domain.Move {
	if !pos.Valid() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.game.Outcome() != nchess.NoOutcome {
		return nil
	}
	sq := toSquare(pos)
	seen := make(map[domain.Position]bool)
	var out []domain.Move
	moves := l.game.ValidMoves()
	for i := range moves {
		if moves[i].S1() != sq {
			continue
		}
		to := fromSquare(moves[i].S2())
		if seen[to] {
			continue
		}
		seen[to] = true
		out = append(out, domain.Move{From: pos, To: to})
	}
	return out
}

// applied is the outcome of a move accepted by the rules.
type applied struct {
	move     domain.Move
	promo    domain.PieceType
	captured []domain.Position
	uci      string
}

func (l *Local) SubmitMove(ctx context.Context, mv domain.Move) error {
	a, err := l.submit(ctx, mv)
	if err != nil {
		return err
	}
	l.hub.moveCompleted(a.move, a.captured)
	return nil
}

// submit validates mv, asks the promotion port when the move promotes and
// applies it. The port is called without holding the lock.
func (l *Local) submit(ctx context.Context, mv domain.Move) (applied, error) {
	if !mv.From.Valid() || !mv.To.Valid() {
		return applied{}, fmt.Errorf("%s off board: %w", mv, domain.ErrInvalidMove)
	}
	l.mu.Lock()
	if l.closed || l.game.Outcome() != nchess.NoOutcome {
		l.mu.Unlock()
		return applied{}, fmt.Errorf("game finished: %w", domain.ErrInvalidMove)
	}
	ply := len(l.game.Moves())
	promotes, legal := false, false
	moves := l.game.ValidMoves()
	for i := range moves {
		if moves[i].S1() == toSquare(mv.From) && moves[i].S2() == toSquare(mv.To) {
			legal = true
			promotes = promotes || moves[i].Promo() != nchess.NoPieceType
		}
	}
	port := l.port
	l.mu.Unlock()
	if !legal {
		return applied{}, fmt.Errorf("%s: %w", mv, domain.ErrInvalidMove)
	}

	promo := domain.NoPieceType
	if promotes {
		promo = domain.Queen
		if port != nil {
			promo = port.RequestPromotion(ctx)
		}
		if promo == domain.NoPieceType || promo == domain.King || promo == domain.Pawn {
			promo = domain.Queen
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.game.Moves()) != ply {
		return applied{}, fmt.Errorf("position changed during %s: %w", mv, domain.ErrInvalidMove)
	}
	return l.applyLocked(mv, promo)
}

// applyUCI applies a move that arrived from an engine or a peer and emits
// the completion and end-of-turn notifications.
func (l *Local) applyUCI(s string) (applied, error) {
	l.mu.Lock()
	if l.closed || l.game.Outcome() != nchess.NoOutcome {
		l.mu.Unlock()
		return applied{}, fmt.Errorf("game finished: %w", domain.ErrInvalidMove)
	}
	dec, err := nchess.UCINotation{}.Decode(l.game.Position(), strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		l.mu.Unlock()
		return applied{}, fmt.Errorf("decode %q: %v: %w", s, err, domain.ErrInvalidMove)
	}
	mv := domain.Move{From: fromSquare(dec.S1()), To: fromSquare(dec.S2())}
	a, err := l.applyLocked(mv, promoPiece(dec.Promo()))
	l.mu.Unlock()
	if err != nil {
		return applied{}, err
	}
	l.hub.moveCompleted(a.move, a.captured)
	l.EndTurn()
	return a, nil
}

func (l *Local) applyLocked(mv domain.Move, promo domain.PieceType) (applied, error) {
	want := nchess.NoPieceType
	if promo != domain.NoPieceType {
		want = promoType(promo)
	}
	from, to := toSquare(mv.From), toSquare(mv.To)
	moves := l.game.ValidMoves()
	for i := range moves {
		cand := &moves[i]
		if cand.S1() != from || cand.S2() != to || cand.Promo() != want {
			continue
		}
		var captured []domain.Position
		if l.game.Position().Board().Piece(to) != nchess.NoPiece {
			captured = append(captured, mv.To)
		} else if cand.HasTag(nchess.EnPassant) {
			captured = append(captured, domain.Position{Row: mv.From.Row, Col: mv.To.Col})
		}
		if err := l.game.Move(cand, nil); err != nil {
			return applied{}, fmt.Errorf("%s: %v: %w", mv, err, domain.ErrInvalidMove)
		}
		return applied{move: mv, promo: promo, captured: captured, uci: uciOf(mv, promo)}, nil
	}
	return applied{}, fmt.Errorf("%s: %w", mv, domain.ErrInvalidMove)
}

func (l *Local) PieceLabelAt(pos domain.Position) string {
	if !pos.Valid() {
		return ""
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := pieceOf(l.game.Position().Board().Piece(toSquare(pos))); ok {
		return p.Symbol()
	}
	return ""
}

func (l *Local) PiecePositions() []domain.PlacedPiece {
	l.mu.Lock()
	defer l.mu.Unlock()
	board := l.game.Position().Board()
	out := make([]domain.PlacedPiece, 0, 32)
	for row := 0; row < domain.BoardSize; row++ {
		for col := 0; col < domain.BoardSize; col++ {
			pos := domain.Pos(row, col)
			if p, ok := pieceOf(board.Piece(toSquare(pos))); ok {
				out = append(out, domain.PlacedPiece{Piece: p, Position: pos})
			}
		}
	}
	return out
}

func (l *Local) SideToMove() domain.Side {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.turn
}

func (l *Local) GameState() domain.GameState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return stateOf(l.game)
}

func (l *Local) StartGame() {
	l.mu.Lock()
	l.turn = sideOf(l.game.Position().Turn())
	l.reported = stateOf(l.game)
	l.mu.Unlock()
}

func (l *Local) BeginTurn() {}

// EndTurn publishes the side change and, when it differs from the last one
// reported, the new game state.
func (l *Local) EndTurn() {
	l.mu.Lock()
	l.turn = sideOf(l.game.Position().Turn())
	side := l.turn
	gs := stateOf(l.game)
	changed := !gs.Equal(l.reported)
	l.reported = gs
	l.mu.Unlock()

	l.hub.sideChanged(side)
	if changed {
		l.hub.gameStateChanged(gs)
	}
}

func (l *Local) SetPromotionPort(p domain.PromotionPort) {
	l.mu.Lock()
	l.port = p
	l.mu.Unlock()
}

func (l *Local) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

// FEN is the current position.
func (l *Local) FEN() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.game.FEN()
}

// StartFEN is the position the game began from; empty for the standard start.
func (l *Local) StartFEN() string { return l.startFEN }

// History returns the moves played so far in UCI form.
func (l *Local) History() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	moves := l.game.Moves()
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, m.String())
	}
	return out
}

// LegalUCI lists every legal move of the side to move in UCI form.
func (l *Local) LegalUCI() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.game.Outcome() != nchess.NoOutcome {
		return nil
	}
	moves := l.game.ValidMoves()
	out := make([]string, 0, len(moves))
	for i := range moves {
		out = append(out, moves[i].String())
	}
	return out
}

func stateOf(g *nchess.Game) domain.GameState {
	switch g.Outcome() {
	case nchess.WhiteWon:
		return won(domain.White, g.Method())
	case nchess.BlackWon:
		return won(domain.Black, g.Method())
	case nchess.Draw:
		if g.Method() == nchess.Stalemate {
			return domain.GameState{Status: domain.StatusStalemate}
		}
		return domain.GameState{Status: domain.StatusDraw, Text: "Draw by " + methodText(g.Method())}
	}
	moves := g.Moves()
	if n := len(moves); n > 0 && moves[n-1].HasTag(nchess.Check) {
		return domain.GameState{Status: domain.StatusCheck}
	}
	return domain.GameState{Status: domain.StatusOngoing}
}

func won(side domain.Side, m nchess.Method) domain.GameState {
	gs := domain.GameState{Status: domain.StatusCheckmate, Winner: &side}
	if m != nchess.Checkmate {
		gs.Text = side.String() + " wins by " + methodText(m)
	}
	return gs
}

func methodText(m nchess.Method) string {
	return strings.ToLower(m.String())
}
