package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
)

const (
	readyTimeout    = 4 * time.Second
	newGameAttempts = 3
	newGameBackoff  = 150 * time.Millisecond
	mateScore       = 30000
)

var ErrNoBestMove = errors.New("engine returned no move")

// Options are applied once per process with setoption.
type Options struct {
	Threads    int
	HashMB     int
	SkillLevel int
	// Elo limits strength when positive.
	Elo int
}

func (o Options) withDefaults() Options {
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.HashMB <= 0 {
		o.HashMB = 16
	}
	if o.SkillLevel <= 0 || o.SkillLevel > 20 {
		o.SkillLevel = 20
	}
	return o
}

type Limits struct {
	Depth          int
	MoveTimeMillis int
}

// Search is one "position ... / go ..." exchange.
type Search struct {
	FEN    string
	Moves  []string
	Limits Limits
}

type Result struct {
	BestMove string
	ScoreCP  int
	Depth    int
}

// Session owns one engine process speaking UCI over stdin/stdout.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	writeMu  sync.Mutex
	searchMu sync.Mutex
	lines    chan lineResult
}

type lineResult struct {
	line string
	err  error
}

func Start(ctx context.Context, binaryPath string, opt Options) (*Session, error) {
	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		lines:  make(chan lineResult, 64),
	}
	go s.pump()

	if err := s.handshake(ctx, opt.withDefaults()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// pump is the only reader of stdout; lines are consumed in order by readLine.
func (s *Session) pump() {
	defer close(s.lines)
	for {
		line, err := s.stdout.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			s.lines <- lineResult{line: line}
		}
		if err != nil {
			s.lines <- lineResult{err: err}
			return
		}
	}
}

func (s *Session) handshake(ctx context.Context, opt Options) error {
	hctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := s.send("uci"); err != nil {
		return err
	}
	if err := s.await(hctx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	cmds := []string{
		"setoption name Threads value " + strconv.Itoa(opt.Threads),
		"setoption name Hash value " + strconv.Itoa(opt.HashMB),
		"setoption name Skill Level value " + strconv.Itoa(opt.SkillLevel),
	}
	if opt.Elo > 0 {
		cmds = append(cmds,
			"setoption name UCI_LimitStrength value true",
			"setoption name UCI_Elo value "+strconv.Itoa(opt.Elo),
		)
	}
	for _, c := range cmds {
		if err := s.send(c); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return s.ready(hctx)
}

func (s *Session) ready(ctx context.Context) error {
	if err := s.send("isready"); err != nil {
		return err
	}
	if err := s.await(ctx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// EnsureReady pings the engine with isready.
func (s *Session) EnsureReady(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	return s.ready(rctx)
}

// NewGame resets engine state between pairings.
func (s *Session) NewGame(ctx context.Context) error {
	if err := s.send("ucinewgame"); err != nil {
		return err
	}
	var err error
	for attempt := 1; attempt <= newGameAttempts; attempt++ {
		if err = s.EnsureReady(ctx); err == nil {
			return nil
		}
		obslog.L().Debug("engine_ready_retry", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameBackoff):
		}
	}
	return err
}

// Search sends the position and waits for bestmove. A cancelled ctx sends
// "stop" and still drains the reply so the session stays usable.
func (s *Session) Search(ctx context.Context, req Search) (Result, error) {
	s.searchMu.Lock()
	defer s.searchMu.Unlock()

	goCmd, err := goCommand(req.Limits)
	if err != nil {
		return Result{}, err
	}
	if err := s.send(positionCommand(req.FEN, req.Moves)); err != nil {
		return Result{}, err
	}
	if err := s.send(goCmd); err != nil {
		return Result{}, err
	}

	deadline, cancel := context.WithTimeout(context.Background(), searchTimeout(req.Limits))
	defer cancel()
	var (
		res     Result
		stopped bool
	)
	for {
		if !stopped && ctx.Err() != nil {
			stopped = true
			_ = s.send("stop")
		}
		line, err := s.readLine(deadline, ctx.Done())
		if err == errInterrupted {
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("read search: %w", err)
		}
		switch {
		case strings.HasPrefix(line, "info "):
			if depth, score, ok := parseInfo(line); ok {
				res.Depth, res.ScoreCP = depth, score
			}
		case strings.HasPrefix(line, "bestmove"):
			fields := strings.Fields(line)
			if stopped {
				return Result{}, ctx.Err()
			}
			if len(fields) < 2 || fields[1] == "(none)" {
				return Result{}, ErrNoBestMove
			}
			res.BestMove = fields[1]
			return res, nil
		}
	}
}

func (s *Session) Close() error {
	s.writeMu.Lock()
	if s.stdin != nil {
		_, _ = io.WriteString(s.stdin, "quit\n")
		_ = s.stdin.Close()
	}
	s.writeMu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		_ = s.cmd.Process.Kill()
		return <-done
	}
}

func (s *Session) send(msg string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := io.WriteString(s.stdin, msg+"\n"); err != nil {
		return fmt.Errorf("send %q: %w", msg, err)
	}
	return nil
}

func (s *Session) await(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx, nil)
		if err != nil {
			return err
		}
		if strings.HasPrefix(line, token) {
			return nil
		}
	}
}

var errInterrupted = errors.New("interrupted")

func (s *Session) readLine(ctx context.Context, interrupt <-chan struct{}) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-interrupt:
		return "", errInterrupted
	case r, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return r.line, r.err
	}
}

func positionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if f := strings.TrimSpace(fen); f == "" || f == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(f)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	return sb.String()
}

func goCommand(l Limits) (string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMillis > 0 {
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMillis))
	}
	if len(args) == 1 {
		return "", errors.New("no search limits specified")
	}
	return strings.Join(args, " "), nil
}

func searchTimeout(l Limits) time.Duration {
	if l.MoveTimeMillis > 0 {
		return time.Duration(l.MoveTimeMillis)*time.Millisecond + 5*time.Second
	}
	d := time.Duration(l.Depth) * 300 * time.Millisecond
	if d < 6*time.Second {
		d = 6 * time.Second
	}
	if d > 20*time.Second {
		d = 20 * time.Second
	}
	return d
}

// parseInfo pulls depth and score out of an info line. Mate scores saturate.
func parseInfo(line string) (depth, score int, ok bool) {
	f := strings.Fields(line)
	for i := 0; i < len(f); i++ {
		switch f[i] {
		case "depth":
			if i+1 < len(f) {
				depth, _ = strconv.Atoi(f[i+1])
				i++
			}
		case "score":
			if i+2 >= len(f) {
				continue
			}
			v, err := strconv.Atoi(f[i+2])
			if err != nil {
				continue
			}
			switch f[i+1] {
			case "cp":
				score, ok = v, true
			case "mate":
				score, ok = mateScore, true
				if v < 0 {
					score = -mateScore
				}
			}
			i += 2
		}
	}
	return depth, score, ok
}
