package viewhttp

import (
	"strings"
	"time"

	"github.com/park285/cheese-board/internal/adapter/boardpresenter"
	"github.com/park285/cheese-board/internal/boardctl"
	"github.com/park285/cheese-board/internal/boardimage"
	"github.com/park285/cheese-board/internal/domain"
	"github.com/park285/cheese-board/internal/obslog"
	"github.com/park285/cheese-board/internal/pairing"
	"github.com/park285/cheese-board/pkg/boarddto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// promotionBusy answers requests that need the loop while a promotion prompt
// holds it. The prompter is the source of truth: a click whose request timed
// out before the prompt opened leaves no pending outcome behind.
func (s *Server) promotionBusy(rc *fasthttp.RequestCtx) bool {
	s.mu.Lock()
	busy := s.pending != nil
	s.mu.Unlock()
	if !busy && s.deps.Prompter != nil {
		_, busy = s.deps.Prompter.Pending()
	}
	if busy {
		writeJSON(rc, fasthttp.StatusConflict, boarddto.DomainError{Code: "promotion_pending", Message: "answer the promotion prompt first"})
	}
	return busy
}

func (s *Server) snapshotDTO(rc *fasthttp.RequestCtx) (*boarddto.Snapshot, bool) {
	ctx, cancel := s.requestCtx()
	defer cancel()
	snap, err := s.deps.Controller.Snapshot(ctx)
	if err != nil {
		writeError(rc, err)
		return nil, false
	}
	return boardpresenter.ToDTOSnapshot(snap), true
}

func (s *Server) handleSnapshot(rc *fasthttp.RequestCtx) {
	if s.promotionBusy(rc) {
		return
	}
	if dto, ok := s.snapshotDTO(rc); ok {
		writeJSON(rc, fasthttp.StatusOK, dto)
	}
}

func (s *Server) handleBoardImage(rc *fasthttp.RequestCtx) {
	if s.promotionBusy(rc) {
		return
	}
	ctx, cancel := s.requestCtx()
	defer cancel()
	snap, err := s.deps.Controller.Snapshot(ctx)
	if err != nil {
		writeError(rc, err)
		return
	}
	png, err := boardimage.Render(ctx, snap)
	if err != nil {
		writeError(rc, err)
		return
	}
	rc.SetStatusCode(fasthttp.StatusOK)
	rc.SetContentType("image/png")
	rc.Response.Header.Set("Cache-Control", "no-store")
	rc.SetBody(png)
}

func (s *Server) clickTarget(rc *fasthttp.RequestCtx, req boarddto.ClickRequest) (domain.Position, bool) {
	switch {
	case req.Row != nil && req.Col != nil:
		return domain.Pos(*req.Row, *req.Col), true
	case req.X != nil && req.Y != nil:
		ctx, cancel := s.requestCtx()
		defer cancel()
		snap, err := s.deps.Controller.Snapshot(ctx)
		if err != nil {
			writeError(rc, err)
			return domain.Position{}, false
		}
		pos, ok := boardimage.PositionAt(*req.X, *req.Y, snap.Orientation)
		if !ok {
			writeJSON(rc, fasthttp.StatusOK, boarddto.ClickResponse{Result: boardctl.ClickIgnored.String()})
		}
		return pos, ok
	default:
		writeJSON(rc, fasthttp.StatusBadRequest, boarddto.DomainError{Code: "bad_request", Message: "row/col or x/y required"})
		return domain.Position{}, false
	}
}

// handleClick runs the click off the request goroutine. If it opens a
// promotion prompt the response returns early and the outcome is delivered by
// the promotion answer instead.
func (s *Server) handleClick(rc *fasthttp.RequestCtx) {
	var req boarddto.ClickRequest
	if !decodeBody(rc, &req) || s.promotionBusy(rc) {
		return
	}
	pos, ok := s.clickTarget(rc, req)
	if !ok {
		return
	}

	drainAsked(s.deps.Prompter)
	done := make(chan clickOutcome, 1)
	go func() {
		res, err := s.deps.Controller.Click(s.baseCtx, pos)
		done <- clickOutcome{result: res, err: err}
	}()

	var asked <-chan struct{}
	if s.deps.Prompter != nil {
		asked = s.deps.Prompter.Asked()
	}
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case out := <-done:
		s.writeClick(rc, out)
	case <-asked:
		s.mu.Lock()
		s.pending = done
		s.mu.Unlock()
		choices, _ := s.deps.Prompter.Pending()
		writeJSON(rc, fasthttp.StatusAccepted, boarddto.ClickResponse{
			Result:           "promotion",
			PromotionPending: true,
			Choices:          boardpresenter.ToDTOChoices(choices),
		})
	case <-timer.C:
		writeJSON(rc, fasthttp.StatusGatewayTimeout, boarddto.DomainError{Code: "timeout", Message: "click still running", Retryable: true})
	}
}

func drainAsked(p *boardctl.RendezvousPrompter) {
	if p == nil {
		return
	}
	select {
	case <-p.Asked():
	default:
	}
}

func (s *Server) writeClick(rc *fasthttp.RequestCtx, out clickOutcome) {
	if out.err != nil {
		writeError(rc, out.err)
		return
	}
	resp := boarddto.ClickResponse{Result: out.result.String()}
	if dto, ok := s.snapshotDTO(rc); ok {
		resp.Snapshot = dto
		writeJSON(rc, fasthttp.StatusOK, resp)
	}
}

func (s *Server) handlePromotionPrompt(rc *fasthttp.RequestCtx) {
	if s.deps.Prompter == nil {
		writeJSON(rc, fasthttp.StatusOK, boarddto.PromotionPrompt{})
		return
	}
	choices, ok := s.deps.Prompter.Pending()
	writeJSON(rc, fasthttp.StatusOK, boarddto.PromotionPrompt{Pending: ok, Choices: boardpresenter.ToDTOChoices(choices)})
}

// handlePromotionAnswer answers or declines the open prompt and then reports
// the click that opened it.
func (s *Server) handlePromotionAnswer(rc *fasthttp.RequestCtx) {
	var req boarddto.PromotionRequest
	if !decodeBody(rc, &req) {
		return
	}
	if s.deps.Prompter == nil {
		writeJSON(rc, fasthttp.StatusConflict, boarddto.DomainError{Code: "no_prompt", Message: boardctl.ErrNoPendingPrompt.Error()})
		return
	}
	var err error
	if strings.TrimSpace(req.Piece) == "" {
		err = s.deps.Prompter.Decline()
	} else {
		piece, ok := domain.ParsePromotion(strings.TrimSpace(req.Piece))
		if !ok {
			writeJSON(rc, fasthttp.StatusBadRequest, boarddto.DomainError{Code: "bad_piece", Message: "unknown promotion piece " + req.Piece})
			return
		}
		err = s.deps.Prompter.Answer(piece)
	}
	if err != nil {
		writeJSON(rc, fasthttp.StatusConflict, boarddto.DomainError{Code: "no_prompt", Message: err.Error()})
		return
	}

	s.mu.Lock()
	done := s.pending
	s.pending = nil
	s.mu.Unlock()
	if done == nil {
		if dto, ok := s.snapshotDTO(rc); ok {
			writeJSON(rc, fasthttp.StatusOK, boarddto.ClickResponse{Result: "answered", Snapshot: dto})
		}
		return
	}
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case out := <-done:
		s.writeClick(rc, out)
	case <-timer.C:
		writeJSON(rc, fasthttp.StatusGatewayTimeout, boarddto.DomainError{Code: "timeout", Message: "move still running", Retryable: true})
	}
}

// handleNewGame replaces the current pairing. An in-progress game is only
// replaced with force set.
func (s *Server) handleNewGame(rc *fasthttp.RequestCtx) {
	var req boarddto.NewGameRequest
	if !decodeBody(rc, &req) || s.promotionBusy(rc) {
		return
	}
	ctx, cancel := s.requestCtx()
	defer cancel()

	if !req.Force {
		inProgress, err := s.deps.Controller.InProgress(ctx)
		if err != nil {
			writeError(rc, err)
			return
		}
		if inProgress {
			writeJSON(rc, fasthttp.StatusConflict, boarddto.DomainError{Code: "in_progress", Message: "a game is in progress; resend with force to abandon it"})
			return
		}
	}

	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	switch kind {
	case "", "player", "computer":
		if kind == "" {
			kind = "player"
		}
		auth, err := s.deps.Factory.Local(domain.ParsePairingKind(kind))
		if err != nil {
			writeError(rc, err)
			return
		}
		s.adopt(rc, kind, auth)
	case "host":
		s.cancelHost()
		ph, err := s.deps.Factory.Host(ctx)
		if err != nil {
			writeError(rc, err)
			return
		}
		s.mu.Lock()
		s.host = ph
		s.mu.Unlock()
		go s.awaitPeer(ph)
		writeJSON(rc, fasthttp.StatusAccepted, boarddto.NewGameResponse{Kind: kind, Waiting: true, Code: ph.Code, URL: ph.URL})
	case "join":
		n, err := s.deps.Factory.Join(ctx, req.Target)
		if err != nil {
			writeError(rc, err)
			return
		}
		s.adopt(rc, kind, n)
	default:
		writeJSON(rc, fasthttp.StatusBadRequest, boarddto.DomainError{Code: "bad_kind", Message: "kind must be player, computer, host or join"})
	}
}

func (s *Server) adopt(rc *fasthttp.RequestCtx, kind string, auth domain.Authority) {
	ctx, cancel := s.requestCtx()
	defer cancel()
	if err := s.deps.Controller.Reset(ctx, auth); err != nil {
		_ = auth.Close()
		writeError(rc, err)
		return
	}
	resp := boarddto.NewGameResponse{Kind: kind}
	if dto, ok := s.snapshotDTO(rc); ok {
		resp.Snapshot = dto
		writeJSON(rc, fasthttp.StatusOK, resp)
	}
}

// awaitPeer adopts the hosted pairing once the peer joins. A newer host
// request or shutdown supersedes it.
func (s *Server) awaitPeer(ph *pairing.PendingHost) {
	n, err := ph.Wait(s.baseCtx)
	s.mu.Lock()
	current := s.host == ph
	if current {
		s.host = nil
	}
	s.mu.Unlock()
	if err != nil {
		obslog.L().Warn("peer_host_failed", zap.String("code", ph.Code), zap.Error(err))
		return
	}
	if !current {
		_ = n.Close()
		return
	}
	ctx, cancel := s.requestCtx()
	defer cancel()
	if err := s.deps.Controller.Reset(ctx, n); err != nil {
		_ = n.Close()
		obslog.L().Warn("peer_adopt_failed", zap.Error(err))
		return
	}
	obslog.L().Info("peer_connected", zap.String("code", ph.Code), zap.String("session", n.Session()))
}

func (s *Server) cancelHost() {
	s.mu.Lock()
	prev := s.host
	s.host = nil
	s.mu.Unlock()
	if prev != nil {
		_ = prev.Cancel()
	}
}

// handleReset restarts the current pairing kind with a fresh authority.
func (s *Server) handleReset(rc *fasthttp.RequestCtx) {
	if s.promotionBusy(rc) {
		return
	}
	ctx, cancel := s.requestCtx()
	defer cancel()
	snap, err := s.deps.Controller.Snapshot(ctx)
	if err != nil {
		writeError(rc, err)
		return
	}
	if snap.Kind == domain.PairingNetwork {
		writeJSON(rc, fasthttp.StatusConflict, boarddto.DomainError{Code: "network_reset", Message: "network games restart through host or join"})
		return
	}
	auth, err := s.deps.Factory.Local(snap.Kind)
	if err != nil {
		writeError(rc, err)
		return
	}
	s.adopt(rc, strings.ToLower(snap.Kind.String()), auth)
}

func (s *Server) handleNotices(rc *fasthttp.RequestCtx) {
	out := []boarddto.Notice{}
	if s.deps.Notices != nil {
		for _, n := range s.deps.Notices.Drain() {
			out = append(out, boardpresenter.ToDTONotice(n))
		}
	}
	writeJSON(rc, fasthttp.StatusOK, out)
}

func (s *Server) handleLobby(rc *fasthttp.RequestCtx) {
	lobby := s.deps.Factory.Lobby()
	if lobby == nil {
		writeJSON(rc, fasthttp.StatusNotFound, boarddto.DomainError{Code: "lobby_disabled", Message: "REDIS_URL is not configured"})
		return
	}
	ctx, cancel := s.requestCtx()
	defer cancel()
	entries, err := lobby.List(ctx)
	if err != nil {
		writeError(rc, err)
		return
	}
	writeJSON(rc, fasthttp.StatusOK, boardpresenter.ToDTOLobby(entries))
}
