package boardimage

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/park285/cheese-board/internal/boardctl"
	"github.com/park285/cheese-board/internal/domain"
)

func sampleSnapshot(orientation int) boardctl.Snapshot {
	var snap boardctl.Snapshot
	snap.Board[6][4] = domain.Piece{Side: domain.White, Type: domain.Pawn}
	snap.Board[0][4] = domain.Piece{Side: domain.Black, Type: domain.King}
	snap.Orientation = orientation
	snap.PairingLabel = "Player Match"
	snap.Status = "Ready"
	snap.SideText = "White to move"
	last := domain.Move{From: domain.Pos(7, 6), To: domain.Pos(5, 5)}
	sel := boardctl.Selected(domain.Pos(6, 4), []domain.Move{
		{From: domain.Pos(6, 4), To: domain.Pos(5, 4)},
		{From: domain.Pos(6, 4), To: domain.Pos(4, 4)},
	})
	snap.Selection = sel
	snap.Markers = boardctl.Highlights(sel, &last)
	return snap
}

func TestRenderProducesPNG(t *testing.T) {
	for _, o := range []int{0, 180} {
		raw, err := Render(context.Background(), sampleSnapshot(o))
		if err != nil {
			t.Fatalf("Render(%d): %v", o, err)
		}
		img, err := png.Decode(bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got := img.Bounds().Size(); got != Size() {
			t.Fatalf("size = %v, want %v", got, Size())
		}
	}
}

func TestRenderRotationMovesSelectedTile(t *testing.T) {
	raw0, _ := Render(context.Background(), sampleSnapshot(0))
	raw180, _ := Render(context.Background(), sampleSnapshot(180))
	a, _ := png.Decode(bytes.NewReader(raw0))
	b, _ := png.Decode(bytes.NewReader(raw180))

	// corner pixel of the selected tile e2 in each orientation
	up := cellRect(domain.Pos(6, 4), 0).Min.Add(cornerOffset)
	down := cellRect(domain.Pos(6, 4), 180).Min.Add(cornerOffset)
	if a.At(up.X, up.Y) != b.At(down.X, down.Y) {
		t.Fatalf("selected tile colour differs after rotation")
	}
	if a.At(down.X, down.Y) == a.At(up.X, up.Y) {
		t.Fatalf("rotation had no visible effect")
	}
}

var cornerOffset = image.Pt(2, 2)

func TestPositionAtInvertsCells(t *testing.T) {
	for _, o := range []int{0, 180} {
		for row := 0; row < domain.BoardSize; row++ {
			for col := 0; col < domain.BoardSize; col++ {
				p := domain.Pos(row, col)
				r := cellRect(p, o)
				got, ok := PositionAt(r.Min.X+5, r.Min.Y+5, o)
				if !ok || got != p {
					t.Fatalf("orientation %d: PositionAt(%v) = %v %v", o, p, got, ok)
				}
			}
		}
	}
	if _, ok := PositionAt(0, 0, 0); ok {
		t.Fatalf("margin pixel mapped to a tile")
	}
}

func TestRenderHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Render(ctx, sampleSnapshot(0)); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestPieceTokensRasterise(t *testing.T) {
	for _, side := range []domain.Side{domain.White, domain.Black} {
		for _, typ := range []domain.PieceType{domain.King, domain.Queen, domain.Rook, domain.Bishop, domain.Knight, domain.Pawn} {
			img, err := renderPiece(domain.Piece{Side: side, Type: typ}, 48)
			if err != nil {
				t.Fatalf("%s %s: %v", side, typ, err)
			}
			if _, _, _, a := img.At(24, 24).RGBA(); a == 0 {
				t.Fatalf("%s %s token is transparent at its centre", side, typ)
			}
		}
	}
}
