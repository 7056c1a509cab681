// Package boardimage rasterises a controller snapshot into a PNG.
package boardimage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"github.com/park285/cheese-board/internal/boardctl"
	"github.com/park285/cheese-board/internal/domain"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	squareSize = 64
	margin     = 28
	hudHeight  = 44
	boardPx    = squareSize * domain.BoardSize
)

var (
	lightSquare    = color.RGBA{233, 207, 163, 255}
	darkSquare     = color.RGBA{187, 136, 96, 255}
	backdrop       = color.RGBA{24, 26, 38, 255}
	trailFill      = color.NRGBA{R: 255, G: 228, B: 120, A: 120}
	selectedFill   = color.NRGBA{R: 120, G: 200, B: 255, A: 150}
	candidateDot   = color.NRGBA{R: 40, G: 160, B: 90, A: 190}
	coordinateInk  = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
	hudInk         = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	hudSecondInk   = color.NRGBA{R: 170, G: 176, B: 200, A: 255}
	boardShadowInk = color.NRGBA{0, 0, 0, 70}
)

// Size is the pixel size of every rendered image.
func Size() image.Point {
	return image.Pt(boardPx+2*margin, boardPx+hudHeight+2*margin)
}

// boardOrigin is the top-left pixel of the board.
func boardOrigin() image.Point { return image.Pt(margin, margin+hudHeight) }

// displayCell maps a board position to its on-screen row and column for the
// given rotation.
func displayCell(p domain.Position, orientation int) (row, col int) {
	if orientation == 180 {
		return domain.BoardSize - 1 - p.Row, domain.BoardSize - 1 - p.Col
	}
	return p.Row, p.Col
}

// PositionAt maps a pixel inside a rendered image back to a board position.
func PositionAt(x, y, orientation int) (domain.Position, bool) {
	o := boardOrigin()
	if x < o.X || y < o.Y || x >= o.X+boardPx || y >= o.Y+boardPx {
		return domain.Position{}, false
	}
	row, col := (y-o.Y)/squareSize, (x-o.X)/squareSize
	if orientation == 180 {
		row, col = domain.BoardSize-1-row, domain.BoardSize-1-col
	}
	return domain.Pos(row, col), true
}

func cellRect(p domain.Position, orientation int) image.Rectangle {
	row, col := displayCell(p, orientation)
	o := boardOrigin()
	x, y := o.X+col*squareSize, o.Y+row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

// Render draws snap and encodes it as PNG.
func Render(ctx context.Context, snap boardctl.Snapshot) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := Size()
	img := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.Draw(img, img.Bounds(), image.NewUniform(backdrop), image.Point{}, draw.Src)

	drawHUD(img, snap)
	shadow := image.Rectangle{Min: boardOrigin(), Max: boardOrigin().Add(image.Pt(boardPx, boardPx))}.Add(image.Pt(4, 6))
	draw.Draw(img, shadow, image.NewUniform(boardShadowInk), image.Point{}, draw.Over)
	drawSquares(img, snap.Orientation)
	drawMarkers(img, snap)
	if err := drawPieces(img, snap); err != nil {
		return nil, err
	}
	drawCoordinates(img, snap.Orientation)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawSquares(dst *image.RGBA, orientation int) {
	for row := 0; row < domain.BoardSize; row++ {
		for col := 0; col < domain.BoardSize; col++ {
			clr := lightSquare
			if (row+col)%2 == 1 {
				clr = darkSquare
			}
			draw.Draw(dst, cellRect(domain.Pos(row, col), orientation), image.NewUniform(clr), image.Point{}, draw.Src)
		}
	}
}

func drawMarkers(dst *image.RGBA, snap boardctl.Snapshot) {
	for pos, m := range snap.Markers {
		rect := cellRect(pos, snap.Orientation)
		switch m {
		case boardctl.MarkerTrail:
			draw.Draw(dst, rect, image.NewUniform(trailFill), image.Point{}, draw.Over)
		case boardctl.MarkerSelected:
			draw.Draw(dst, rect, image.NewUniform(selectedFill), image.Point{}, draw.Over)
		case boardctl.MarkerCandidate:
			c := rect.Min.Add(image.Pt(squareSize/2, squareSize/2))
			drawDisc(dst, c, squareSize/7, candidateDot)
		}
	}
}

func drawPieces(dst *image.RGBA, snap boardctl.Snapshot) error {
	inset := squareSize / 10
	for row := 0; row < domain.BoardSize; row++ {
		for col := 0; col < domain.BoardSize; col++ {
			pos := domain.Pos(row, col)
			p, ok := snap.PieceAt(pos)
			if !ok {
				continue
			}
			tile, err := renderPiece(p, squareSize-2*inset)
			if err != nil {
				return err
			}
			r := cellRect(pos, snap.Orientation).Inset(inset)
			draw.Draw(dst, r, tile, image.Point{}, draw.Over)
		}
	}
	return nil
}

func drawCoordinates(dst *image.RGBA, orientation int) {
	d := &font.Drawer{Dst: dst, Face: basicfont.Face7x13, Src: image.NewUniform(coordinateInk)}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	o := boardOrigin()
	for i := 0; i < domain.BoardSize; i++ {
		rankPos := domain.Pos(i, 0)
		r := cellRect(rankPos, orientation)
		centerText(d, fmt.Sprint(rankPos.RankNumber()), o.X-margin/2, r.Min.Y+squareSize/2+ascent/2)

		filePos := domain.Pos(0, i)
		f := cellRect(filePos, orientation)
		centerText(d, filePos.FileLabel(), f.Min.X+squareSize/2, o.Y+boardPx+ascent+4)
	}
}

func drawHUD(dst *image.RGBA, snap boardctl.Snapshot) {
	d := &font.Drawer{Dst: dst, Face: basicfont.Face7x13}
	title := strings.TrimSpace(snap.PairingLabel)
	if title == "" {
		title = "No game"
	}
	line := title
	if s := strings.TrimSpace(snap.Status); s != "" {
		line += "  " + s
	}
	d.Src = image.NewUniform(hudInk)
	d.Dot = fixed.P(margin, margin+13)
	d.DrawString(line)

	second := snap.SideText
	if w := strings.Join(snap.CapturedWhite, ""); w != "" {
		second += "  W+" + fmt.Sprint(len(snap.CapturedWhite))
	}
	if b := strings.Join(snap.CapturedBlack, ""); b != "" {
		second += "  B+" + fmt.Sprint(len(snap.CapturedBlack))
	}
	d.Src = image.NewUniform(hudSecondInk)
	d.Dot = fixed.P(margin, margin+13+18)
	d.DrawString(strings.TrimSpace(second))
}

func centerText(d *font.Drawer, text string, centerX, baseline int) {
	w := d.MeasureString(text).Round()
	d.Dot = fixed.P(centerX-w/2, baseline)
	d.DrawString(text)
}

func drawDisc(img *image.RGBA, center image.Point, radius int, clr color.Color) {
	rr := radius * radius
	src := image.NewUniform(clr)
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > rr {
				continue
			}
			p := center.Add(image.Pt(x, y))
			draw.Draw(img, image.Rect(p.X, p.Y, p.X+1, p.Y+1), src, image.Point{}, draw.Over)
		}
	}
}
