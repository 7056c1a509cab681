package boardctl

import (
	"context"
	"errors"
	"sync"

	"github.com/park285/cheese-board/internal/domain"
	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
)

// Prompter asks the operator for a promotion piece. ok is false when the
// operator dismissed the prompt.
type Prompter interface {
	AskPromotion(ctx context.Context, choices []domain.PieceType) (piece domain.PieceType, ok bool)
}

// promotionSlot is the one-shot record consumed by the next ledger append.
type promotionSlot struct {
	happened bool
	label    string
}

// promotionPort is registered with the authority for one reset generation.
type promotionPort struct {
	c   *Controller
	gen uint64
}

// RequestPromotion blocks until a piece is chosen. On the update loop the
// prompt runs inline; from any other goroutine it is marshalled onto the loop
// and the caller waits for the answer.
func (p promotionPort) RequestPromotion(ctx context.Context) domain.PieceType {
	choice := domain.Queen
	err := p.c.loop.Do(ctx, func(ctx context.Context) error {
		if p.c.st.gen != p.gen {
			return nil
		}
		choice = p.c.resolvePromotion(ctx)
		return nil
	})
	if err != nil {
		obslog.L().Warn("board_promotion_unresolved", zap.Error(err))
	}
	return choice
}

func (c *Controller) resolvePromotion(ctx context.Context) domain.PieceType {
	piece, ok := domain.NoPieceType, false
	if c.prompter != nil {
		piece, ok = c.prompter.AskPromotion(ctx, append([]domain.PieceType(nil), domain.PromotionChoices...))
	}
	if !ok || !validPromotion(piece) {
		piece = domain.Queen
		c.notifier.Notice(Notice{
			Kind:  NoticePromotionDefault,
			Title: c.texts.Text("notice.promotion_default.title", nil, "You did not make a choice"),
			Body:  c.texts.Text("notice.promotion_default.body", map[string]string{"Piece": "QUEEN"}, "The default choice QUEEN will be used"),
		})
	}
	c.st.promo = promotionSlot{happened: true, label: piece.String()}
	obslog.L().Info("board_promotion", zap.String("piece", piece.String()), zap.Bool("defaulted", !ok))
	return piece
}

func validPromotion(t domain.PieceType) bool {
	for _, c := range domain.PromotionChoices {
		if c == t {
			return true
		}
	}
	return false
}

var ErrNoPendingPrompt = errors.New("no promotion prompt pending")

type promptAnswer struct {
	piece domain.PieceType
	ok    bool
}

type pendingPrompt struct {
	choices []domain.PieceType
	answer  chan promptAnswer
}

// RendezvousPrompter is a single-slot prompt: AskPromotion parks until
// Answer or Decline is called from another goroutine.
type RendezvousPrompter struct {
	mu      sync.Mutex
	pending *pendingPrompt
	asked   chan struct{}
}

func NewRendezvousPrompter() *RendezvousPrompter {
	return &RendezvousPrompter{asked: make(chan struct{}, 1)}
}

func (p *RendezvousPrompter) AskPromotion(ctx context.Context, choices []domain.PieceType) (domain.PieceType, bool) {
	req := &pendingPrompt{choices: choices, answer: make(chan promptAnswer, 1)}
	p.mu.Lock()
	p.pending = req
	p.mu.Unlock()
	select {
	case p.asked <- struct{}{}:
	default:
	}
	defer func() {
		p.mu.Lock()
		if p.pending == req {
			p.pending = nil
		}
		p.mu.Unlock()
	}()
	select {
	case a := <-req.answer:
		return a.piece, a.ok
	case <-ctx.Done():
		return domain.NoPieceType, false
	}
}

// Asked receives a value each time a prompt opens.
func (p *RendezvousPrompter) Asked() <-chan struct{} { return p.asked }

// Pending returns the offered choices while a prompt is open.
func (p *RendezvousPrompter) Pending() ([]domain.PieceType, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return nil, false
	}
	return append([]domain.PieceType(nil), p.pending.choices...), true
}

func (p *RendezvousPrompter) Answer(piece domain.PieceType) error {
	return p.reply(promptAnswer{piece: piece, ok: true})
}

func (p *RendezvousPrompter) Decline() error {
	return p.reply(promptAnswer{})
}

func (p *RendezvousPrompter) reply(a promptAnswer) error {
	p.mu.Lock()
	req := p.pending
	p.pending = nil
	p.mu.Unlock()
	if req == nil {
		return ErrNoPendingPrompt
	}
	req.answer <- a
	return nil
}
