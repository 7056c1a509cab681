package uci

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestPositionCommand(t *testing.T) {
	if got := positionCommand("", nil); got != "position startpos" {
		t.Fatalf("empty fen = %q", got)
	}
	got := positionCommand("startpos", []string{"e2e4", "e7e5"})
	if got != "position startpos moves e2e4 e7e5" {
		t.Fatalf("startpos moves = %q", got)
	}
	fen := "8/P7/8/8/8/8/8/k6K w - - 0 1"
	if got := positionCommand(fen, nil); got != "position fen "+fen {
		t.Fatalf("fen = %q", got)
	}
}

func TestGoCommand(t *testing.T) {
	if _, err := goCommand(Limits{}); err == nil {
		t.Fatalf("expected error without limits")
	}
	got, err := goCommand(Limits{Depth: 8, MoveTimeMillis: 250})
	if err != nil || got != "go depth 8 movetime 250" {
		t.Fatalf("go = %q, %v", got, err)
	}
}

func TestParseInfo(t *testing.T) {
	depth, score, ok := parseInfo("info depth 12 seldepth 18 multipv 1 score cp -34 nodes 1000 pv e7e5 g1f3")
	if !ok || depth != 12 || score != -34 {
		t.Fatalf("cp line = %d %d %v", depth, score, ok)
	}
	_, score, ok = parseInfo("info depth 20 score mate -3 pv h7h8")
	if !ok || score != -mateScore {
		t.Fatalf("mate line = %d %v", score, ok)
	}
	if _, _, ok := parseInfo("info string NNUE enabled"); ok {
		t.Fatalf("string line parsed as score")
	}
}

func TestSearchTimeoutBounds(t *testing.T) {
	if d := searchTimeout(Limits{Depth: 1}); d != 6*time.Second {
		t.Fatalf("min = %v", d)
	}
	if d := searchTimeout(Limits{Depth: 200}); d != 20*time.Second {
		t.Fatalf("max = %v", d)
	}
	if d := searchTimeout(Limits{MoveTimeMillis: 100}); d <= 100*time.Millisecond {
		t.Fatalf("movetime = %v", d)
	}
}

const fakeEngine = `#!/bin/sh
while read line; do
  case "$line" in
    uci) echo "id name fake"; echo "uciok" ;;
    isready) echo "readyok" ;;
    go*) echo "info depth 5 score cp 31 pv e7e5"; echo "bestmove e7e5" ;;
    quit) exit 0 ;;
  esac
done
`

func fakeEnginePath(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell engine stub needs /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "fake-engine")
	if err := os.WriteFile(path, []byte(fakeEngine), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestPoolSearchRoundTrip(t *testing.T) {
	pool, err := NewPool(PoolConfig{BinaryPath: fakeEnginePath(t), Capacity: 1})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := 0; i < 2; i++ {
		s, err := pool.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		res, err := s.Search(ctx, Search{Moves: []string{"e2e4"}, Limits: Limits{MoveTimeMillis: 10}})
		pool.Release(s, err)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if res.BestMove != "e7e5" || res.ScoreCP != 31 || res.Depth != 5 {
			t.Fatalf("result = %+v", res)
		}
	}
}

func TestNewPoolRequiresBinary(t *testing.T) {
	if _, err := NewPool(PoolConfig{}); err == nil {
		t.Fatalf("expected error without path")
	}
	if _, err := NewPool(PoolConfig{BinaryPath: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatalf("expected error for missing binary")
	}
}
