package boardimage

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/park285/cheese-board/internal/domain"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

type pieceKey struct {
	piece domain.Piece
	size  int
}

var (
	pieceCache   = map[pieceKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

// token outlines per piece type, drawn on a 100x100 viewbox over the base disc.
var tokenMarks = map[domain.PieceType]string{
	domain.King:   `<path d="M50 22 L50 44 M40 32 L60 32" stroke-width="6"/>`,
	domain.Queen:  `<path d="M28 60 L34 34 L44 52 L50 28 L56 52 L66 34 L72 60 Z" stroke-width="4"/>`,
	domain.Rook:   `<path d="M32 66 L32 36 L40 36 L40 42 L46 42 L46 36 L54 36 L54 42 L60 42 L60 36 L68 36 L68 66 Z" stroke-width="4"/>`,
	domain.Bishop: `<path d="M50 26 C62 38 64 52 56 62 L44 62 C36 52 38 38 50 26 Z" stroke-width="4"/>`,
	domain.Knight: `<path d="M36 68 L38 48 L52 30 L60 34 L66 46 L58 48 L54 44 L50 68 Z" stroke-width="4"/>`,
	domain.Pawn:   `<circle cx="50" cy="42" r="10" stroke-width="4"/><path d="M38 66 L44 52 L56 52 L62 66 Z" stroke-width="4"/>`,
}

// pieceSVG builds the token for p: a disc in the side's colour with a mark
// in the contrasting colour.
func pieceSVG(p domain.Piece) []byte {
	fill, ink := "#f6f1e7", "#1f1f24"
	if p.Side == domain.Black {
		fill, ink = "#2b2b33", "#f6f1e7"
	}
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">`)
	fmt.Fprintf(&b, `<circle cx="50" cy="50" r="40" fill="%s" stroke="%s" stroke-width="4"/>`, fill, ink)
	fmt.Fprintf(&b, `<g fill="%s" stroke="%s">%s</g>`, ink, ink, tokenMarks[p.Type])
	b.WriteString(`</svg>`)
	return []byte(b.String())
}

func renderPiece(p domain.Piece, size int) (image.Image, error) {
	key := pieceKey{piece: p, size: size}
	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	icon, err := oksvg.ReadIconStream(strings.NewReader(string(pieceSVG(p))))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg %s %s: %w", p.Side, p.Type, err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}
