package pairing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/park285/cheese-board/internal/authority"
	"github.com/park285/cheese-board/internal/domain"
	"github.com/park285/cheese-board/internal/engine"
	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
)

type FactoryConfig struct {
	PeerListenAddr string
	PeerPublicURL  string
	AcceptTimeout  time.Duration
	HumanSide      domain.Side
}

// Factory builds authorities for each pairing kind. Lobby may be nil, in
// which case joins need a ws:// URL.
type Factory struct {
	cfg     FactoryConfig
	chooser engine.Chooser
	lobby   *Lobby
}

func NewFactory(cfg FactoryConfig, chooser engine.Chooser, lobby *Lobby) *Factory {
	if cfg.AcceptTimeout <= 0 {
		cfg.AcceptTimeout = 2 * time.Minute
	}
	if chooser == nil {
		chooser = engine.NewRandomChooser(0)
	}
	return &Factory{cfg: cfg, chooser: chooser, lobby: lobby}
}

func (f *Factory) Lobby() *Lobby { return f.lobby }

// Player is the default hot-seat pairing.
func (f *Factory) Player() (domain.Authority, error) {
	return authority.NewLocal()
}

func (f *Factory) Computer() (domain.Authority, error) {
	return authority.NewComputer(f.cfg.HumanSide, f.chooser)
}

// Local builds a non-networked pairing of kind.
func (f *Factory) Local(kind domain.PairingKind) (domain.Authority, error) {
	switch kind {
	case domain.PairingComputer:
		return f.Computer()
	case domain.PairingPlayer:
		return f.Player()
	default:
		return nil, fmt.Errorf("pairing %s needs host or join", kind)
	}
}

// PendingHost is a host waiting for its peer.
type PendingHost struct {
	Code string
	URL  string

	host    *authority.Host
	lobby   *Lobby
	timeout time.Duration
}

// Host starts listening and, with a lobby, publishes a join code.
func (f *Factory) Host(ctx context.Context) (*PendingHost, error) {
	h, err := authority.Listen(f.cfg.PeerListenAddr, f.cfg.PeerPublicURL)
	if err != nil {
		return nil, err
	}
	p := &PendingHost{URL: h.URL(), host: h, lobby: f.lobby, timeout: f.cfg.AcceptTimeout}
	if f.lobby != nil {
		e, err := f.lobby.Register(ctx, h.URL(), h.Session())
		if err != nil {
			_ = h.Close()
			return nil, fmt.Errorf("%v: %w", err, domain.ErrNetworkUnavailable)
		}
		p.Code = e.Code
	}
	return p, nil
}

// Wait blocks until the peer joins or the accept timeout passes. The lobby
// code is withdrawn either way.
func (p *PendingHost) Wait(ctx context.Context) (*authority.Network, error) {
	wctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	defer p.withdraw()
	return p.host.Accept(wctx)
}

func (p *PendingHost) Cancel() error {
	p.withdraw()
	return p.host.Close()
}

func (p *PendingHost) withdraw() {
	if p.lobby == nil || p.Code == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.lobby.Withdraw(ctx, p.Code); err != nil {
		obslog.L().Warn("lobby_withdraw_failed", zap.String("code", p.Code), zap.Error(err))
	}
}

// Join dials target, either a ws:// URL or a lobby code.
func (f *Factory) Join(ctx context.Context, target string) (*authority.Network, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("empty join target: %w", domain.ErrNetworkUnavailable)
	}
	url := target
	if !strings.HasPrefix(target, "ws://") && !strings.HasPrefix(target, "wss://") {
		if f.lobby == nil {
			return nil, fmt.Errorf("no lobby configured for code %s: %w", target, domain.ErrNetworkUnavailable)
		}
		e, err := f.lobby.Resolve(ctx, target)
		if err != nil {
			return nil, err
		}
		url = e.URL
	}
	return authority.Dial(ctx, url)
}

// Close releases the shared chooser and the lobby connection.
func (f *Factory) Close() error {
	var result *multierror.Error
	if err := f.chooser.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("chooser: %w", err))
	}
	if f.lobby != nil {
		if err := f.lobby.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("lobby: %w", err))
		}
	}
	return result.ErrorOrNil()
}
