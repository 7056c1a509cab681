package boardctl

import (
	"context"

	"github.com/park285/cheese-board/internal/domain"
	"github.com/park285/cheese-board/internal/msgcat"
	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
)

// ClickResult reports what a click did.
type ClickResult int

const (
	ClickIgnored ClickResult = iota
	ClickNoMoves
	ClickSelected
	ClickCancelled
	ClickMoved
	ClickRejected
)

func (r ClickResult) String() string {
	switch r {
	case ClickNoMoves:
		return "no_moves"
	case ClickSelected:
		return "selected"
	case ClickCancelled:
		return "cancelled"
	case ClickMoved:
		return "moved"
	case ClickRejected:
		return "rejected"
	default:
		return "ignored"
	}
}

// Options wires the controller's external collaborators. Every field is optional.
type Options struct {
	Texts    *msgcat.Catalog
	Prompter Prompter
	Notifier Notifier
	Policy   GameOverPolicy
	// DefaultAuthority builds the fresh local pairing used after game over.
	DefaultAuthority func() (domain.Authority, error)
}

// Controller is the move interaction controller. All of its state lives in
// st and is only read or written by tasks running on loop.
type Controller struct {
	loop       *Loop
	texts      *msgcat.Catalog
	prompter   Prompter
	notifier   Notifier
	policy     GameOverPolicy
	newDefault func() (domain.Authority, error)

	st *state
}

func New(opts Options) *Controller {
	c := &Controller{
		loop:       NewLoop(),
		texts:      opts.Texts,
		prompter:   opts.Prompter,
		notifier:   opts.Notifier,
		policy:     opts.Policy,
		newDefault: opts.DefaultAuthority,
		st:         &state{},
	}
	if c.texts == nil {
		c.texts = msgcat.Default()
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.policy == nil {
		c.policy = PolicyFromName("reset", c.texts)
	}
	return c
}

// Loop exposes the update loop so adapters can marshal their own work onto it.
func (c *Controller) Loop() *Loop { return c.loop }

// Click feeds one pointer click on pos through the turn gate and the
// selection machine.
func (c *Controller) Click(ctx context.Context, pos domain.Position) (ClickResult, error) {
	res := ClickIgnored
	err := c.loop.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = c.click(ctx, pos)
		return err
	})
	return res, err
}

func (c *Controller) click(ctx context.Context, pos domain.Position) (ClickResult, error) {
	st := c.st
	if st.auth == nil {
		return ClickIgnored, domain.ErrNoAuthority
	}
	if !gateOpen(st.auth) || !pos.Valid() {
		return ClickIgnored, nil
	}
	if !st.sel.Active {
		return c.firstClick(pos), nil
	}
	return c.secondClick(ctx, pos)
}

func (c *Controller) firstClick(pos domain.Position) ClickResult {
	st := c.st
	sel := Selected(pos, st.auth.LegalMovesFrom(pos))
	if !sel.Active {
		return ClickNoMoves
	}
	st.sel = sel
	st.held = st.auth.PieceLabelAt(pos)
	return ClickSelected
}

// secondClick always leaves the machine IDLE. Clicking the origin again
// cancels the selection instead of submitting a null move.
func (c *Controller) secondClick(ctx context.Context, pos domain.Position) (ClickResult, error) {
	st := c.st
	start, label := st.sel.Start, st.held
	st.sel = Idle()
	st.held = ""
	if pos == start {
		return ClickCancelled, nil
	}
	return c.submit(ctx, domain.Move{From: start, To: pos}, label)
}

// Reset adopts auth as the active authority, releasing the previous one first.
func (c *Controller) Reset(ctx context.Context, auth domain.Authority) error {
	return c.loop.Do(ctx, func(ctx context.Context) error { return c.reset(ctx, auth) })
}

// DefaultAuthority builds the fallback local pairing.
func (c *Controller) DefaultAuthority() (domain.Authority, error) {
	if c.newDefault == nil {
		return nil, domain.ErrNoAuthority
	}
	return c.newDefault()
}

// Notify forwards n to the configured notifier.
func (c *Controller) Notify(n Notice) { c.notifier.Notice(n) }

// Snapshot returns a read-only copy of everything the rendering layer shows.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.loop.Do(ctx, func(context.Context) error {
		snap = c.snapshot()
		return nil
	})
	return snap, err
}

// InProgress reports whether a move has been made since the last reset.
func (c *Controller) InProgress(ctx context.Context) (bool, error) {
	var v bool
	err := c.loop.Do(ctx, func(context.Context) error {
		v = c.st.inProgress
		return nil
	})
	return v, err
}

// Sync waits for every notification already raised to be applied.
func (c *Controller) Sync(ctx context.Context) error { return c.loop.Sync(ctx) }

// Close releases the active authority and stops the update loop.
func (c *Controller) Close() error {
	var closeErr error
	_ = c.loop.Do(context.Background(), func(context.Context) error {
		st := c.st
		if st.unsub != nil {
			st.unsub()
			st.unsub = nil
		}
		if st.auth != nil {
			closeErr = st.auth.Close()
			st.auth = nil
		}
		st.gen++
		return nil
	})
	c.loop.Close()
	if closeErr != nil {
		obslog.L().Warn("board_close_authority", zap.Error(closeErr))
	}
	return closeErr
}
