package authority

import (
	"context"
	"errors"
	"sync"

	"github.com/park285/cheese-board/internal/domain"
	"github.com/park285/cheese-board/internal/engine"
	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
)

// Computer pits the operator against a Chooser. Engine replies are applied
// from a background goroutine and reported through the usual notifications.
// The operator's side is reported as the local identity, so clicks during the
// engine's turn are gated.
type Computer struct {
	*Local

	human   domain.Side
	chooser engine.Chooser

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	thinking bool
}

func NewComputer(human domain.Side, chooser engine.Chooser, opts ...Option) (*Computer, error) {
	if chooser == nil {
		return nil, errors.New("computer pairing needs a move chooser")
	}
	local, err := NewLocal(opts...)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Computer{Local: local, human: human, chooser: chooser, ctx: ctx, cancel: cancel}, nil
}

func (c *Computer) Kind() domain.PairingKind { return domain.PairingComputer }

func (c *Computer) LocalIdentity() (domain.Side, bool) { return c.human, true }

// StartGame lets the engine open when it plays White.
func (c *Computer) StartGame() {
	c.Local.StartGame()
	c.BeginTurn()
}

// BeginTurn starts a search when the engine is to move.
func (c *Computer) BeginTurn() {
	if c.SideToMove() == c.human || c.GameState().IsGameOver() {
		return
	}
	c.mu.Lock()
	if c.thinking || c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.thinking = true
	c.wg.Add(1)
	ctx := c.ctx
	c.mu.Unlock()

	go c.think(ctx)
}

func (c *Computer) think(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		c.thinking = false
		c.mu.Unlock()
	}()

	req := engine.Request{
		StartFEN: c.StartFEN(),
		FEN:      c.FEN(),
		Moves:    c.History(),
		Legal:    c.LegalUCI(),
	}
	mv, err := c.chooser.Choose(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			obslog.L().Error("engine_choose_failed", zap.String("fen", req.FEN), zap.Error(err))
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	a, err := c.applyUCI(mv)
	if err != nil {
		obslog.L().Error("engine_move_rejected", zap.String("move", mv), zap.Error(err))
		return
	}
	obslog.L().Info("engine_move", zap.String("move", a.uci), zap.String("side", c.human.Opponent().String()))
}

// SubmitMove refuses operator moves while the engine is to move.
func (c *Computer) SubmitMove(ctx context.Context, mv domain.Move) error {
	if c.SideToMove() != c.human {
		return domain.ErrInvalidMove
	}
	return c.Local.SubmitMove(ctx, mv)
}

// Close cancels a running search and waits for it. The chooser is shared
// between pairings and stays open.
func (c *Computer) Close() error {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
	return c.Local.Close()
}
