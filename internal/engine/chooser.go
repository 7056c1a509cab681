// Package engine picks moves for the computer side of a pairing.
package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/park285/cheese-board/internal/engine/uci"
	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
)

var ErrNoLegalMoves = errors.New("no legal moves")

// Request describes the position to move from. Moves are UCI strings played
// since StartFEN; Legal lists every legal reply in UCI form.
type Request struct {
	StartFEN string
	FEN      string
	Moves    []string
	Legal    []string
}

// Chooser returns one UCI move from req.Legal.
type Chooser interface {
	Choose(ctx context.Context, req Request) (string, error)
	Close() error
}

// RandomChooser plays a uniformly random legal move.
type RandomChooser struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRandomChooser(seed int64) *RandomChooser {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomChooser{r: rand.New(rand.NewSource(seed))}
}

func (c *RandomChooser) Choose(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(req.Legal) == 0 {
		return "", ErrNoLegalMoves
	}
	c.mu.Lock()
	i := c.r.Intn(len(req.Legal))
	c.mu.Unlock()
	return req.Legal[i], nil
}

func (c *RandomChooser) Close() error { return nil }

// UCIChooser asks an external UCI engine and falls back to a random legal
// move when the engine fails or answers with something illegal.
type UCIChooser struct {
	pool     *uci.Pool
	limits   uci.Limits
	fallback *RandomChooser
}

func NewUCIChooser(binaryPath string, moveTimeMS int) (*UCIChooser, error) {
	pool, err := uci.NewPool(uci.PoolConfig{BinaryPath: binaryPath, Capacity: 1})
	if err != nil {
		return nil, err
	}
	if moveTimeMS <= 0 {
		moveTimeMS = 300
	}
	return &UCIChooser{
		pool:     pool,
		limits:   uci.Limits{MoveTimeMillis: moveTimeMS},
		fallback: NewRandomChooser(0),
	}, nil
}

func (c *UCIChooser) Choose(ctx context.Context, req Request) (string, error) {
	if len(req.Legal) == 0 {
		return "", ErrNoLegalMoves
	}
	start := time.Now()
	mv, err := c.search(ctx, req)
	if err == nil && contains(req.Legal, mv) {
		obslog.L().Debug("engine_move", zap.String("move", mv), zap.Duration("took", time.Since(start)))
		return mv, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	obslog.L().Warn("engine_fallback", zap.String("move", mv), zap.Error(err))
	return c.fallback.Choose(ctx, req)
}

func (c *UCIChooser) search(ctx context.Context, req Request) (string, error) {
	s, err := c.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	res, err := s.Search(ctx, uci.Search{FEN: req.StartFEN, Moves: req.Moves, Limits: c.limits})
	c.pool.Release(s, err)
	if err != nil {
		return "", err
	}
	return res.BestMove, nil
}

func (c *UCIChooser) Close() error { return c.pool.Close() }

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
