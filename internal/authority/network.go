package authority

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-board/internal/domain"
	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	PeerPath         = "/peer"
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	pingInterval     = 30 * time.Second
)

// frame is the JSON message exchanged between peers.
type frame struct {
	Type    string `json:"type"`
	Session string `json:"session,omitempty"`
	Side    string `json:"side,omitempty"`
	Move    string `json:"move,omitempty"`
	Ply     int    `json:"ply,omitempty"`
}

const (
	frameHello = "hello"
	frameMove  = "move"
	frameBye   = "bye"
)

// Network proxies a remote peer. The host plays White and the joiner Black;
// moves from the peer are re-validated against the local rules.
type Network struct {
	*Local

	side    domain.Side
	session string
	conn    *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	sendMu  sync.Mutex
	closing bool
	gone    bool
	once    sync.Once
}

func newNetwork(conn *websocket.Conn, side domain.Side, session string) (*Network, error) {
	local, err := NewLocal()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &Network{Local: local, side: side, session: session, conn: conn, ctx: ctx, cancel: cancel}
	n.wg.Add(2)
	go n.readLoop()
	go n.pingLoop()
	obslog.L().Info("peer_connected", zap.String("session", session), zap.String("side", side.String()))
	return n, nil
}

func (n *Network) Kind() domain.PairingKind { return domain.PairingNetwork }

func (n *Network) LocalIdentity() (domain.Side, bool) { return n.side, true }

// Session identifies the connection in logs and in the lobby.
func (n *Network) Session() string { return n.session }

func (n *Network) LegalMovesFrom(pos domain.Position) []domain.Move {
	if n.peerGone() {
		return nil
	}
	return n.Local.LegalMovesFrom(pos)
}

func (n *Network) GameState() domain.GameState {
	if n.peerGone() {
		return disconnected()
	}
	return n.Local.GameState()
}

// SubmitMove applies a local move and forwards it to the peer.
func (n *Network) SubmitMove(ctx context.Context, mv domain.Move) error {
	if n.SideToMove() != n.side {
		return fmt.Errorf("not %s's turn: %w", n.side, domain.ErrInvalidMove)
	}
	if n.peerGone() {
		return fmt.Errorf("peer left: %w", domain.ErrNetworkUnavailable)
	}
	a, err := n.submit(ctx, mv)
	if err != nil {
		return err
	}
	if err := n.send(frame{Type: frameMove, Move: a.uci, Ply: len(n.History())}); err != nil {
		obslog.L().Warn("peer_send_failed", zap.String("session", n.session), zap.Error(err))
		defer n.lose("send failed")
	}
	n.hub.moveCompleted(a.move, a.captured)
	return nil
}

// readLoop owns the connection once the peer goes away: every exit drops the
// socket without a close handshake so neither side waits on the other.
func (n *Network) readLoop() {
	defer n.wg.Done()
	defer func() { _ = n.conn.CloseNow() }()
	for {
		var f frame
		if err := wsjson.Read(n.ctx, n.conn, &f); err != nil {
			if !n.isClosing() {
				n.lose(err.Error())
			}
			return
		}
		switch f.Type {
		case frameMove:
			if n.SideToMove() == n.side {
				obslog.L().Warn("peer_move_out_of_turn", zap.String("session", n.session), zap.String("move", f.Move))
				n.lose("move out of turn")
				return
			}
			if _, err := n.applyUCI(f.Move); err != nil {
				obslog.L().Warn("peer_move_rejected", zap.String("session", n.session), zap.String("move", f.Move), zap.Error(err))
				n.lose("illegal move")
				return
			}
		case frameBye:
			n.lose("peer left")
			return
		}
	}
}

func (n *Network) pingLoop() {
	defer n.wg.Done()
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(n.ctx, 3*time.Second)
			err := n.conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 && !n.isClosing() {
				n.lose("ping failure")
				return
			}
		}
	}
}

// lose marks the peer as gone and raises the terminal state once.
func (n *Network) lose(reason string) {
	n.mu.Lock()
	if n.gone || n.closing {
		n.mu.Unlock()
		return
	}
	n.gone = true
	n.mu.Unlock()

	obslog.L().Info("peer_disconnected", zap.String("session", n.session), zap.String("reason", reason))
	n.hub.gameStateChanged(disconnected())
}

func (n *Network) peerGone() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gone
}

func (n *Network) isClosing() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closing
}

func (n *Network) send(f frame) error {
	n.sendMu.Lock()
	defer n.sendMu.Unlock()
	ctx, cancel := context.WithTimeout(n.ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, n.conn, f)
}

// Close says goodbye, drops the socket and waits for the reader. The bye
// frame replaces the websocket close handshake, which would block until the
// peer's reader echoed it.
func (n *Network) Close() error {
	var err error
	n.once.Do(func() {
		n.mu.Lock()
		n.closing = true
		gone := n.gone
		n.mu.Unlock()
		if !gone {
			if serr := n.send(frame{Type: frameBye, Session: n.session}); serr != nil {
				obslog.L().Debug("peer_bye_failed", zap.String("session", n.session), zap.Error(serr))
			}
		}
		err = n.conn.CloseNow()
		n.cancel()
		n.wg.Wait()
		_ = n.Local.Close()
		// the reader may already have dropped the socket
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return err
}

func disconnected() domain.GameState {
	return domain.GameState{Status: domain.StatusDisconnected}
}

// Host listens for exactly one peer.
type Host struct {
	ln      net.Listener
	srv     *http.Server
	conns   chan *websocket.Conn
	url     string
	session string
	once    sync.Once
}

// Listen opens addr for a peer. publicURL is what joiners dial; when empty it
// is derived from the bound address.
func Listen(addr, publicURL string) (*Host, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %v: %w", addr, err, domain.ErrNetworkUnavailable)
	}
	h := &Host{
		ln:      ln,
		conns:   make(chan *websocket.Conn, 1),
		url:     publicURL,
		session: uuid.NewString(),
	}
	if h.url == "" {
		h.url = urlFor(ln.Addr())
	}
	mux := http.NewServeMux()
	mux.HandleFunc(PeerPath, h.accept)
	h.srv = &http.Server{Handler: mux, ReadHeaderTimeout: handshakeTimeout}
	go func() {
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Warn("peer_listener_error", zap.Error(err))
		}
	}()
	return h, nil
}

func urlFor(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return "ws://" + addr.String() + PeerPath
	}
	host := tcp.IP.String()
	if tcp.IP == nil || tcp.IP.IsUnspecified() {
		host = "127.0.0.1"
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(tcp.Port)) + PeerPath
}

func (h *Host) URL() string { return h.url }

func (h *Host) Session() string { return h.session }

func (h *Host) accept(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		obslog.L().Warn("peer_accept_failed", zap.Error(err))
		return
	}
	select {
	case h.conns <- conn:
	default:
		_ = conn.Close(websocket.StatusTryAgainLater, "host already paired")
	}
}

// Accept blocks until a peer connects and completes the handshake. The
// listener is closed either way.
func (h *Host) Accept(ctx context.Context) (*Network, error) {
	defer h.Close()
	var conn *websocket.Conn
	select {
	case conn = <-h.conns:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for peer: %v: %w", ctx.Err(), domain.ErrNetworkUnavailable)
	}

	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	if err := wsjson.Write(hctx, conn, frame{Type: frameHello, Session: h.session, Side: "white"}); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "handshake")
		return nil, fmt.Errorf("hello: %v: %w", err, domain.ErrNetworkUnavailable)
	}
	var reply frame
	if err := wsjson.Read(hctx, conn, &reply); err != nil || reply.Type != frameHello {
		_ = conn.Close(websocket.StatusProtocolError, "handshake")
		return nil, fmt.Errorf("hello reply %q: %v: %w", reply.Type, err, domain.ErrNetworkUnavailable)
	}
	return newNetwork(conn, domain.White, h.session)
}

// Close stops listening. Already accepted peers are unaffected.
func (h *Host) Close() error {
	var err error
	h.once.Do(func() {
		err = h.srv.Close()
		select {
		case conn := <-h.conns:
			_ = conn.Close(websocket.StatusGoingAway, "host closed")
		default:
		}
	})
	return err
}

// Dial joins the host at url and plays Black.
func Dial(ctx context.Context, url string) (*Network, error) {
	dctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dctx, url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %v: %w", url, err, domain.ErrNetworkUnavailable)
	}
	var hello frame
	if err := wsjson.Read(dctx, conn, &hello); err != nil || hello.Type != frameHello {
		_ = conn.Close(websocket.StatusProtocolError, "handshake")
		return nil, fmt.Errorf("hello from %s: %v: %w", url, err, domain.ErrNetworkUnavailable)
	}
	if err := wsjson.Write(dctx, conn, frame{Type: frameHello, Session: hello.Session, Side: "black"}); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "handshake")
		return nil, fmt.Errorf("hello reply: %v: %w", err, domain.ErrNetworkUnavailable)
	}
	return newNetwork(conn, domain.Black, hello.Session)
}
