package boardctl

import (
	"context"
	"errors"
	"fmt"

	"github.com/park285/cheese-board/internal/domain"
	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
)

// submit runs the move submission pipeline for a completed selection.
// label is the piece label captured when the origin was selected.
func (c *Controller) submit(ctx context.Context, mv domain.Move, label string) (ClickResult, error) {
	st := c.st
	auth := st.auth
	prior := auth.PieceLabelAt(mv.To)
	mover := auth.SideToMove()
	// a diagonal step onto an empty square can still take the piece beside
	// the origin (en passant)
	var aside domain.Position
	var asideLabel string
	if prior == "" && mv.From.Row != mv.To.Row && mv.From.Col != mv.To.Col {
		aside = domain.Pos(mv.From.Row, mv.To.Col)
		asideLabel = auth.PieceLabelAt(aside)
	}

	st.promo = promotionSlot{}
	if err := auth.SubmitMove(ctx, mv); err != nil {
		st.promo = promotionSlot{}
		if errors.Is(err, domain.ErrInvalidMove) {
			obslog.L().Debug("board_move_rejected", zap.String("pairing_id", st.pairingID), zap.String("move", mv.String()))
			return ClickRejected, nil
		}
		obslog.L().Warn("board_move_failed", zap.String("pairing_id", st.pairingID), zap.String("move", mv.String()), zap.Error(err))
		return ClickRejected, fmt.Errorf("submit %s: %w", mv, err)
	}

	if asideLabel != "" && auth.PieceLabelAt(aside) == "" {
		prior = asideLabel
	}
	if prior != "" {
		st.ledger.AddCapture(mover, prior)
	}
	st.ledger.Append(c.moveRecord(label, mv, prior))
	if st.promo.happened {
		st.ledger.Append(c.promotionRecord(label, mv.To, st.promo.label))
		st.promo = promotionSlot{}
	}
	st.inProgress = true
	obslog.L().Info("board_move_accepted",
		zap.String("pairing_id", st.pairingID),
		zap.String("side", mover.String()),
		zap.String("move", mv.String()),
		zap.String("captured", prior),
	)

	auth.EndTurn()
	if !auth.GameState().IsGameOver() {
		auth.BeginTurn()
	}
	return ClickMoved, nil
}

func (c *Controller) moveRecord(label string, mv domain.Move, captured string) MoveRecord {
	from, to := mv.From.Label(), mv.To.Label()
	text := c.texts.Text("ledger.move", map[string]string{"Piece": label, "From": from, "To": to},
		fmt.Sprintf("%s %s → %s", label, from, to))
	if captured != "" {
		text += c.texts.Text("ledger.capture", map[string]string{"Captured": captured}, " | Killed "+captured)
	}
	return MoveRecord{
		Kind:        RecordMove,
		Piece:       label,
		Origin:      from,
		Destination: to,
		Captured:    captured,
		Text:        text,
	}
}

func (c *Controller) promotionRecord(label string, at domain.Position, promoted string) MoveRecord {
	text := c.texts.Text("ledger.promotion", map[string]string{"Piece": label, "At": at.Label(), "Promotion": promoted},
		fmt.Sprintf("%s %s > %s", label, at.Label(), promoted))
	return MoveRecord{
		Kind:        RecordPromotion,
		Piece:       label,
		Destination: at.Label(),
		Promotion:   promoted,
		Text:        text,
	}
}
