package engine

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
)

const defaultBookPlies = 16

// BookChooser answers from a Polyglot opening book for the first plies and
// defers to next once the game leaves the book.
type BookChooser struct {
	book     *nchess.PolyglotBook
	next     Chooser
	maxPlies int

	mu sync.Mutex
	r  *rand.Rand
}

// LoadBook opens a Polyglot .bin file.
func LoadBook(path string) (*nchess.PolyglotBook, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("polyglot book path required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open polyglot book %q: %w", path, err)
	}
	defer f.Close()
	return ReadBook(f)
}

func ReadBook(r io.Reader) (*nchess.PolyglotBook, error) {
	book, err := nchess.LoadFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("load polyglot book: %w", err)
	}
	return book, nil
}

func NewBookChooser(book *nchess.PolyglotBook, next Chooser, maxPlies int, seed int64) *BookChooser {
	if maxPlies <= 0 {
		maxPlies = defaultBookPlies
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &BookChooser{book: book, next: next, maxPlies: maxPlies, r: rand.New(rand.NewSource(seed))}
}

type bookMove struct {
	move   string
	weight int
}

func (c *BookChooser) Choose(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(req.Moves) < c.maxPlies && c.book != nil && req.FEN != "" {
		cands, err := c.lookup(req)
		if err != nil {
			obslog.L().Debug("book_lookup_failed", zap.Error(err))
		}
		if mv := c.pick(cands); mv != "" {
			obslog.L().Debug("engine_move", zap.String("move", mv), zap.String("source", "book"))
			return mv, nil
		}
	}
	return c.next.Choose(ctx, req)
}

// lookup returns the book moves for req.FEN that are legal in the position.
func (c *BookChooser) lookup(req Request) ([]bookMove, error) {
	hash, err := nchess.NewZobristHasher().HashPosition(req.FEN)
	if err != nil {
		return nil, fmt.Errorf("compute polyglot hash: %w", err)
	}
	var out []bookMove
	for _, e := range c.book.FindMoves(nchess.ZobristHashToUint64(hash)) {
		move := nchess.DecodeMove(e.Move).ToMove()
		if mv := move.String(); contains(req.Legal, mv) {
			out = append(out, bookMove{move: mv, weight: int(e.Weight)})
		}
	}
	return out, nil
}

// pick draws a move with probability proportional to its book weight.
func (c *BookChooser) pick(cands []bookMove) string {
	if len(cands) == 0 {
		return ""
	}
	total := 0
	for _, b := range cands {
		total += b.weight
	}
	if total <= 0 {
		return cands[0].move
	}
	c.mu.Lock()
	roll := c.r.Intn(total)
	c.mu.Unlock()
	for _, b := range cands {
		roll -= b.weight
		if roll < 0 {
			return b.move
		}
	}
	return cands[len(cands)-1].move
}

func (c *BookChooser) Close() error { return c.next.Close() }
