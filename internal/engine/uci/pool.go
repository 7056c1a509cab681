package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"
)

var ErrPoolClosed = errors.New("engine pool closed")

type PoolConfig struct {
	BinaryPath string
	Options    Options
	Capacity   int
}

// Pool keeps up to Capacity engine processes alive. Sessions that fail are
// discarded and replaced lazily.
type Pool struct {
	path string
	opt  Options

	idle chan *Session
	slot chan struct{}

	mu     sync.Mutex
	live   map[*Session]struct{}
	closed bool
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, errors.New("engine binary path required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 2
	}
	return &Pool{
		path: cfg.BinaryPath,
		opt:  cfg.Options,
		idle: make(chan *Session, capacity),
		slot: make(chan struct{}, capacity),
		live: make(map[*Session]struct{}),
	}, nil
}

// Acquire returns an idle session, starts a new one while under capacity,
// or waits for a release.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		if p.isClosed() {
			return nil, ErrPoolClosed
		}
		select {
		case s := <-p.idle:
			if err := s.EnsureReady(ctx); err != nil {
				p.discard(s)
				continue
			}
			return s, nil
		default:
		}

		select {
		case s := <-p.idle:
			if err := s.EnsureReady(ctx); err != nil {
				p.discard(s)
				continue
			}
			return s, nil
		case p.slot <- struct{}{}:
			s, err := Start(ctx, p.path, p.opt)
			if err != nil {
				<-p.slot
				return nil, err
			}
			p.mu.Lock()
			p.live[s] = struct{}{}
			p.mu.Unlock()
			return s, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release hands s back. A non-nil err discards the session.
func (p *Pool) Release(s *Session, err error) {
	if s == nil {
		return
	}
	if err != nil || p.isClosed() {
		p.discard(s)
		return
	}
	select {
	case p.idle <- s:
	default:
		p.discard(s)
	}
}

func (p *Pool) discard(s *Session) {
	p.mu.Lock()
	_, ok := p.live[s]
	delete(p.live, s)
	p.mu.Unlock()
	_ = s.Close()
	if ok {
		<-p.slot
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var result *multierror.Error
	for {
		select {
		case s := <-p.idle:
			p.mu.Lock()
			delete(p.live, s)
			p.mu.Unlock()
			if err := s.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		default:
			return result.ErrorOrNil()
		}
	}
}
