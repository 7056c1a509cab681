package boardctl

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/park285/cheese-board/internal/domain"
	"github.com/park285/cheese-board/internal/msgcat"
	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
)

// state is the controller's single state container. Only loop tasks touch it.
type state struct {
	auth      domain.Authority
	gen       uint64
	unsub     func()
	pairingID string
	kind      domain.PairingKind

	sel  Selection
	held string

	last         *domain.Move
	lastCaptured []domain.Position
	board        [domain.BoardSize][domain.BoardSize]domain.Piece

	ledger Ledger
	promo  promotionSlot

	status      string
	game        domain.GameState
	toMove      domain.Side
	orientation int
	inProgress  bool
}

// Start adopts the first authority. It is Reset under another name.
func (c *Controller) Start(ctx context.Context, auth domain.Authority) error {
	return c.Reset(ctx, auth)
}

func (c *Controller) reset(ctx context.Context, auth domain.Authority) error {
	if auth == nil {
		return domain.ErrNoAuthority
	}
	st := c.st
	prev := st.auth
	if st.unsub != nil {
		st.unsub()
		st.unsub = nil
	}
	if prev != nil && prev != auth {
		if err := prev.Close(); err != nil {
			obslog.L().Warn("board_close_authority", zap.String("pairing_id", st.pairingID), zap.Error(err))
		}
	}

	st.gen++
	gen := st.gen
	*st = state{
		auth:      auth,
		gen:       gen,
		pairingID: uuid.NewString(),
		kind:      auth.Kind(),
	}
	st.toMove = auth.SideToMove()
	identity, restricted := auth.LocalIdentity()
	st.orientation = OrientationFor(identity, restricted, st.toMove)

	st.unsub = auth.Subscribe(&genListener{c: c, gen: gen})
	auth.SetPromotionPort(promotionPort{c: c, gen: gen})
	c.syncBoard()
	auth.StartGame()
	st.game = auth.GameState()
	st.status = c.texts.Text("status.ready", nil, "Ready")

	obslog.L().Info("board_reset",
		zap.String("pairing_id", st.pairingID),
		zap.String("kind", st.kind.String()),
		zap.Int("orientation", st.orientation),
	)
	return nil
}

func (c *Controller) syncBoard() {
	st := c.st
	st.board = [domain.BoardSize][domain.BoardSize]domain.Piece{}
	for _, pp := range st.auth.PiecePositions() {
		if pp.Position.Valid() {
			st.board[pp.Position.Row][pp.Position.Col] = pp.Piece
		}
	}
}

// genListener forwards authority notifications onto the loop. Events from an
// authority that has since been replaced are dropped.
type genListener struct {
	c   *Controller
	gen uint64
}

func (l *genListener) post(fn func(ctx context.Context)) {
	err := l.c.loop.Post(func(ctx context.Context) {
		if l.c.st.gen != l.gen {
			return
		}
		fn(ctx)
	})
	if err != nil {
		obslog.L().Debug("board_event_dropped", zap.Error(err))
	}
}

func (l *genListener) MoveCompleted(mv domain.Move, captured []domain.Position) {
	captured = append([]domain.Position(nil), captured...)
	l.post(func(context.Context) { l.c.onMoveCompleted(mv, captured) })
}

func (l *genListener) SideChanged(side domain.Side) {
	l.post(func(context.Context) { l.c.onSideChanged(side) })
}

func (l *genListener) GameStateChanged(gs domain.GameState) {
	l.post(func(ctx context.Context) { l.c.onGameStateChanged(ctx, gs) })
}

func (c *Controller) onMoveCompleted(mv domain.Move, captured []domain.Position) {
	st := c.st
	st.last = &mv
	st.lastCaptured = captured
	st.game = st.auth.GameState()
	if !st.game.IsGameOver() {
		st.status = st.game.String()
	}
	c.syncBoard()
}

func (c *Controller) onSideChanged(side domain.Side) {
	st := c.st
	st.toMove = side
	identity, restricted := st.auth.LocalIdentity()
	st.orientation = OrientationFor(identity, restricted, side)
}

func (c *Controller) onGameStateChanged(ctx context.Context, gs domain.GameState) {
	st := c.st
	st.game = gs
	if !gs.IsGameOver() {
		st.status = gs.String()
		return
	}

	final := gs.String()
	st.status = strings.ToUpper(final)
	st.sel = Idle()
	st.held = ""
	st.ledger.Append(MoveRecord{Kind: RecordTerminal, Text: final})
	obslog.L().Info("board_game_over",
		zap.String("pairing_id", st.pairingID),
		zap.String("state", final),
		zap.Int("records", st.ledger.Len()),
	)

	state := gs
	c.notifier.Notice(Notice{
		Kind:    NoticeGameOver,
		Title:   c.texts.Text("notice.game_over.title", nil, "Game Over"),
		Body:    c.texts.Text("notice.game_over.body", map[string]string{"State": final}, final+"!"),
		State:   &state,
		Records: st.ledger.Records(),
	})
	if err := c.policy.AfterGameOver(ctx, c, gs); err != nil {
		obslog.L().Error("board_game_over_policy", zap.String("pairing_id", st.pairingID), zap.Error(err))
	}
}

// Resetter is the slice of the controller a GameOverPolicy may drive.
type Resetter interface {
	Reset(ctx context.Context, auth domain.Authority) error
	DefaultAuthority() (domain.Authority, error)
	Notify(n Notice)
}

// GameOverPolicy decides what happens after the game-over notice is shown.
type GameOverPolicy interface {
	AfterGameOver(ctx context.Context, r Resetter, final domain.GameState) error
}

// ResetToDefault replaces the finished pairing with a fresh local one.
type ResetToDefault struct {
	Title string
	Body  string
}

func (p ResetToDefault) AfterGameOver(ctx context.Context, r Resetter, _ domain.GameState) error {
	auth, err := r.DefaultAuthority()
	if err != nil {
		return err
	}
	if err := r.Reset(ctx, auth); err != nil {
		_ = auth.Close()
		return err
	}
	title, body := p.Title, p.Body
	if title == "" {
		title = "New game"
	}
	if body == "" {
		body = "New default game mode (Player Game) will now start."
	}
	r.Notify(Notice{Kind: NoticeNewDefaultGame, Title: title, Body: body})
	return nil
}

// StayOnBoard leaves the final position on screen until the operator starts a new game.
type StayOnBoard struct{}

func (StayOnBoard) AfterGameOver(context.Context, Resetter, domain.GameState) error { return nil }

// PolicyFromName maps the configured policy name; unknown names fall back to reset.
func PolicyFromName(name string, texts *msgcat.Catalog) GameOverPolicy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "stay":
		return StayOnBoard{}
	default:
		return ResetToDefault{
			Title: texts.Text("notice.new_default_game.title", nil, ""),
			Body:  texts.Text("notice.new_default_game.body", nil, ""),
		}
	}
}
