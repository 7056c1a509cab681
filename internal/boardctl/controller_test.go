package boardctl

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-board/internal/domain"
)

func startController(t *testing.T, auth domain.Authority, opts Options) *Controller {
	t.Helper()
	c := New(opts)
	if err := c.Start(context.Background(), auth); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func click(t *testing.T, c *Controller, row, col int) ClickResult {
	t.Helper()
	res, err := c.Click(context.Background(), domain.Pos(row, col))
	if err != nil {
		t.Fatalf("Click(%d,%d): %v", row, col, err)
	}
	return res
}

func snap(t *testing.T, c *Controller) Snapshot {
	t.Helper()
	if err := c.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	s, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return s
}

func TestClickWithoutLegalMovesStaysIdle(t *testing.T) {
	auth := newFakeAuth().place(domain.Pos(7, 0), domain.Rook, domain.White)
	c := startController(t, auth, Options{})
	before := snap(t, c)

	for row := 0; row < domain.BoardSize; row++ {
		for col := 0; col < domain.BoardSize; col++ {
			if res := click(t, c, row, col); res != ClickNoMoves {
				t.Fatalf("click (%d,%d) = %v, want no_moves", row, col, res)
			}
		}
	}
	after := snap(t, c)
	if after.Selection.Active || len(after.Markers) != 0 || after.Held != "" {
		t.Fatalf("expected idle without highlights, got %+v", after.Selection)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("snapshot changed on empty clicks")
	}
}

func TestPawnForwardScenario(t *testing.T) {
	auth := newFakeAuth().
		place(domain.Pos(1, 4), domain.Pawn, domain.White).
		legal(domain.Pos(1, 4), domain.Pos(2, 4))
	c := startController(t, auth, Options{})

	if res := click(t, c, 1, 4); res != ClickSelected {
		t.Fatalf("first click = %v", res)
	}
	s := snap(t, c)
	if !s.Selection.Active || s.Selection.Start != domain.Pos(1, 4) {
		t.Fatalf("selection = %+v", s.Selection)
	}
	if len(s.Selection.Destinations) != 1 || s.Selection.Destinations[0] != domain.Pos(2, 4) {
		t.Fatalf("destinations = %v", s.Selection.Destinations)
	}
	if s.Markers[domain.Pos(1, 4)] != MarkerSelected || s.Markers[domain.Pos(2, 4)] != MarkerCandidate {
		t.Fatalf("markers = %v", s.Markers)
	}
	if s.Held != "♙" {
		t.Fatalf("held = %q", s.Held)
	}

	if res := click(t, c, 2, 4); res != ClickMoved {
		t.Fatalf("second click = %v", res)
	}
	s = snap(t, c)
	if len(s.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(s.Records))
	}
	if got := s.Records[0].Text; got != "♙ E7 → E6" {
		t.Fatalf("record text = %q", got)
	}
	if s.Selection.Active || s.Held != "" {
		t.Fatalf("expected idle after move")
	}
	if s.SideToMove != domain.Black {
		t.Fatalf("side to move = %v", s.SideToMove)
	}
	if s.Markers[domain.Pos(1, 4)] != MarkerTrail || s.Markers[domain.Pos(2, 4)] != MarkerTrail {
		t.Fatalf("trail markers = %v", s.Markers)
	}
	if p, ok := s.PieceAt(domain.Pos(2, 4)); !ok || p.Type != domain.Pawn {
		t.Fatalf("pawn not at destination")
	}
	if !s.InProgress {
		t.Fatalf("expected in progress after first move")
	}
	if auth.began != 1 {
		t.Fatalf("BeginTurn calls = %d", auth.began)
	}
}

func TestInvalidMoveLeavesLedgerUnchanged(t *testing.T) {
	from, to := domain.Pos(6, 4), domain.Pos(4, 4)
	auth := newFakeAuth().place(from, domain.Pawn, domain.White).legal(from, to)
	auth.reject[domain.Move{From: from, To: to}] = true
	c := startController(t, auth, Options{})

	click(t, c, 6, 4)
	res, err := c.Click(context.Background(), to)
	if err != nil {
		t.Fatalf("invalid move surfaced as error: %v", err)
	}
	if res != ClickRejected {
		t.Fatalf("result = %v", res)
	}
	s := snap(t, c)
	if s.Selection.Active || len(s.Markers) != 0 {
		t.Fatalf("selection not cleared: %+v %v", s.Selection, s.Markers)
	}
	if len(s.Records) != 0 || s.SideToMove != domain.White || s.InProgress {
		t.Fatalf("rejected move changed state: %+v", s)
	}
}

func TestClickingOriginCancelsSelection(t *testing.T) {
	from := domain.Pos(6, 0)
	auth := newFakeAuth().place(from, domain.Pawn, domain.White).legal(from, domain.Pos(5, 0))
	c := startController(t, auth, Options{})

	click(t, c, 6, 0)
	if res := click(t, c, 6, 0); res != ClickCancelled {
		t.Fatalf("result = %v", res)
	}
	s := snap(t, c)
	if s.Selection.Active || len(s.Records) != 0 {
		t.Fatalf("cancel left state behind")
	}
}

func TestCaptureTally(t *testing.T) {
	from, to := domain.Pos(4, 0), domain.Pos(4, 7)
	auth := newFakeAuth().
		place(from, domain.Rook, domain.White).
		place(to, domain.Knight, domain.Black).
		legal(from, to)
	c := startController(t, auth, Options{})

	click(t, c, 4, 0)
	click(t, c, 4, 7)
	s := snap(t, c)
	if !reflect.DeepEqual(s.CapturedWhite, []string{"♞"}) || len(s.CapturedBlack) != 0 {
		t.Fatalf("tallies = %v / %v", s.CapturedWhite, s.CapturedBlack)
	}
	if s.Records[0].Captured != "♞" || !strings.HasSuffix(s.Records[0].Text, " | Killed ♞") {
		t.Fatalf("record = %+v", s.Records[0])
	}
	for row := 0; row < domain.BoardSize; row++ {
		for col := 0; col < domain.BoardSize; col++ {
			p, ok := s.PieceAt(domain.Pos(row, col))
			if ok && p.Type == domain.Knight && p.Side == domain.Black {
				t.Fatalf("captured knight reappeared at (%d,%d)", row, col)
			}
		}
	}
	if p, _ := s.PieceAt(to); p.Type != domain.Rook {
		t.Fatalf("destination holds %v", p)
	}
}

func TestEnPassantCaptureTallied(t *testing.T) {
	from, to, taken := domain.Pos(3, 4), domain.Pos(2, 3), domain.Pos(3, 3)
	auth := newFakeAuth().
		place(from, domain.Pawn, domain.White).
		place(taken, domain.Pawn, domain.Black).
		legal(from, to)
	auth.enPassant[domain.Move{From: from, To: to}] = taken
	c := startController(t, auth, Options{})

	click(t, c, 3, 4)
	if res := click(t, c, 2, 3); res != ClickMoved {
		t.Fatalf("result = %v", res)
	}
	s := snap(t, c)
	if !reflect.DeepEqual(s.CapturedWhite, []string{"♟"}) {
		t.Fatalf("white tally = %v", s.CapturedWhite)
	}
	if s.Records[0].Captured != "♟" {
		t.Fatalf("record = %+v", s.Records[0])
	}
}

func TestDiagonalMoveBesidePieceIsNoCapture(t *testing.T) {
	from, to, beside := domain.Pos(4, 2), domain.Pos(2, 4), domain.Pos(4, 4)
	auth := newFakeAuth().
		place(from, domain.Bishop, domain.White).
		place(beside, domain.Pawn, domain.Black).
		legal(from, to)
	c := startController(t, auth, Options{})

	click(t, c, 4, 2)
	click(t, c, 2, 4)
	s := snap(t, c)
	if len(s.CapturedWhite) != 0 || s.Records[0].Captured != "" {
		t.Fatalf("phantom capture: %v %+v", s.CapturedWhite, s.Records[0])
	}
}

func TestPromotionChoiceRecorded(t *testing.T) {
	from, to := domain.Pos(1, 0), domain.Pos(0, 0)
	auth := newFakeAuth().place(from, domain.Pawn, domain.White).legal(from, to)
	auth.promote[domain.Move{From: from, To: to}] = true
	prompter := NewRendezvousPrompter()
	c := startController(t, auth, Options{Prompter: prompter})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-prompter.Asked():
		case <-time.After(5 * time.Second):
			return
		}
		if choices, ok := prompter.Pending(); !ok || len(choices) != 4 {
			t.Errorf("pending choices = %v", choices)
		}
		if err := prompter.Answer(domain.Knight); err != nil {
			t.Errorf("Answer: %v", err)
		}
	}()

	click(t, c, 1, 0)
	if res := click(t, c, 0, 0); res != ClickMoved {
		t.Fatalf("result = %v", res)
	}
	wg.Wait()

	s := snap(t, c)
	if len(s.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(s.Records))
	}
	if s.Records[1].Kind != RecordPromotion || s.Records[1].Promotion != "Knight" {
		t.Fatalf("promotion record = %+v", s.Records[1])
	}
	if s.Records[1].Text != "♙ A8 > Knight" {
		t.Fatalf("promotion text = %q", s.Records[1].Text)
	}
	var happened bool
	_ = c.Loop().Do(context.Background(), func(context.Context) error {
		happened = c.st.promo.happened
		return nil
	})
	if happened {
		t.Fatalf("promotion flag not consumed")
	}
	if !reflect.DeepEqual(auth.promoted, []domain.PieceType{domain.Knight}) {
		t.Fatalf("authority received %v", auth.promoted)
	}
}

func TestDeclinedPromotionDefaultsToQueen(t *testing.T) {
	from, to := domain.Pos(6, 7), domain.Pos(7, 7)
	auth := newFakeAuth().place(from, domain.Pawn, domain.Black).legal(from, to)
	auth.toMove = domain.Black
	auth.promote[domain.Move{From: from, To: to}] = true
	prompter := NewRendezvousPrompter()
	notices := NewNoticeQueue(0)
	c := startController(t, auth, Options{Prompter: prompter, Notifier: notices})

	go func() {
		<-prompter.Asked()
		_ = prompter.Decline()
	}()
	click(t, c, 6, 7)
	click(t, c, 7, 7)

	s := snap(t, c)
	if len(s.Records) != 2 || s.Records[1].Promotion != "Queen" {
		t.Fatalf("records = %+v", s.Records)
	}
	got := notices.Drain()
	if len(got) != 1 || got[0].Kind != NoticePromotionDefault {
		t.Fatalf("notices = %+v", got)
	}
	if !strings.Contains(got[0].Body, "QUEEN") {
		t.Fatalf("notice body = %q", got[0].Body)
	}
}

func TestPromotionWithoutPrompterDefaults(t *testing.T) {
	from, to := domain.Pos(1, 3), domain.Pos(0, 3)
	auth := newFakeAuth().place(from, domain.Pawn, domain.White).legal(from, to)
	auth.promote[domain.Move{From: from, To: to}] = true
	c := startController(t, auth, Options{})

	click(t, c, 1, 3)
	click(t, c, 0, 3)
	if s := snap(t, c); len(s.Records) != 2 || s.Records[1].Promotion != "Queen" {
		t.Fatalf("records = %+v", s.Records)
	}
}

func promotionPortOf(t *testing.T, auth *fakeAuth) domain.PromotionPort {
	t.Helper()
	auth.mu.Lock()
	defer auth.mu.Unlock()
	if auth.port == nil {
		t.Fatalf("no promotion port registered")
	}
	return auth.port
}

func TestPromotionRequestedFromBackgroundGoroutine(t *testing.T) {
	auth := newFakeAuth()
	prompter := NewRendezvousPrompter()
	c := startController(t, auth, Options{Prompter: prompter})
	port := promotionPortOf(t, auth)

	got := make(chan domain.PieceType, 1)
	go func() { got <- port.RequestPromotion(context.Background()) }()

	select {
	case <-prompter.Asked():
	case <-time.After(5 * time.Second):
		t.Fatalf("prompt never opened")
	}
	if err := prompter.Answer(domain.Rook); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	select {
	case piece := <-got:
		if piece != domain.Rook {
			t.Fatalf("piece = %v, want Rook", piece)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("RequestPromotion did not return")
	}

	var slot promotionSlot
	_ = c.Loop().Do(context.Background(), func(context.Context) error {
		slot = c.st.promo
		return nil
	})
	if !slot.happened || slot.label != "Rook" {
		t.Fatalf("promotion slot = %+v", slot)
	}
}

func TestStalePromotionPortDefaultsWithoutPrompt(t *testing.T) {
	first := newFakeAuth()
	prompter := NewRendezvousPrompter()
	c := startController(t, first, Options{Prompter: prompter})
	stale := promotionPortOf(t, first)
	if err := c.Reset(context.Background(), newFakeAuth()); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if piece := stale.RequestPromotion(context.Background()); piece != domain.Queen {
		t.Fatalf("stale port piece = %v", piece)
	}
	if _, ok := prompter.Pending(); ok {
		t.Fatalf("stale port opened a prompt")
	}
}

func TestTurnGateBlocksSpectatorClicks(t *testing.T) {
	auth := newFakeAuth().
		place(domain.Pos(6, 4), domain.Pawn, domain.White).
		place(domain.Pos(1, 4), domain.Pawn, domain.Black).
		legal(domain.Pos(6, 4), domain.Pos(5, 4)).
		legal(domain.Pos(1, 4), domain.Pos(2, 4))
	auth.kind = domain.PairingNetwork
	auth.identity, auth.restricted = domain.Black, true
	c := startController(t, auth, Options{})

	before := snap(t, c)
	for i := 0; i < 5; i++ {
		for _, p := range []domain.Position{domain.Pos(6, 4), domain.Pos(5, 4), domain.Pos(1, 4), domain.Pos(2, 4)} {
			res, err := c.Click(context.Background(), p)
			if err != nil || res != ClickIgnored {
				t.Fatalf("click %v = %v, %v", p, res, err)
			}
		}
	}
	if after := snap(t, c); !reflect.DeepEqual(before, after) {
		t.Fatalf("gated clicks changed state")
	}
}

func TestUnrestrictedPairingNeverGated(t *testing.T) {
	auth := newFakeAuth().
		place(domain.Pos(1, 4), domain.Pawn, domain.Black).
		legal(domain.Pos(1, 4), domain.Pos(2, 4))
	auth.toMove = domain.Black
	c := startController(t, auth, Options{})
	if res := click(t, c, 1, 4); res != ClickSelected {
		t.Fatalf("result = %v", res)
	}
}

func TestOrientationRule(t *testing.T) {
	cases := []struct {
		identity   domain.Side
		restricted bool
		toMove     domain.Side
		want       int
	}{
		{domain.White, true, domain.White, 0},
		{domain.White, true, domain.Black, 0},
		{domain.Black, true, domain.White, 180},
		{domain.Black, true, domain.Black, 180},
		{domain.White, false, domain.White, 0},
		{domain.White, false, domain.Black, 180},
	}
	for _, tc := range cases {
		if got := OrientationFor(tc.identity, tc.restricted, tc.toMove); got != tc.want {
			t.Fatalf("OrientationFor(%v,%v,%v) = %d, want %d", tc.identity, tc.restricted, tc.toMove, got, tc.want)
		}
	}
}

func TestResetOrientsForLocalIdentity(t *testing.T) {
	auth := newFakeAuth()
	auth.kind = domain.PairingNetwork
	auth.identity, auth.restricted = domain.Black, true
	c := startController(t, auth, Options{})
	if s := snap(t, c); s.Orientation != 180 || !s.Restricted || s.LocalSide != domain.Black {
		t.Fatalf("orientation = %d restricted=%v", s.Orientation, s.Restricted)
	}

	next := newFakeAuth()
	next.kind = domain.PairingNetwork
	next.identity, next.restricted = domain.White, true
	if err := c.Reset(context.Background(), next); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s := snap(t, c); s.Orientation != 0 {
		t.Fatalf("orientation after reset = %d", s.Orientation)
	}
	if auth.closedCount() != 1 {
		t.Fatalf("previous authority closed %d times", auth.closedCount())
	}
}

func TestSideChangeRotatesHotSeat(t *testing.T) {
	auth := newFakeAuth().
		place(domain.Pos(6, 0), domain.Pawn, domain.White).
		legal(domain.Pos(6, 0), domain.Pos(5, 0))
	c := startController(t, auth, Options{})
	click(t, c, 6, 0)
	click(t, c, 5, 0)
	if s := snap(t, c); s.Orientation != 180 || s.SideText != "Black to move" {
		t.Fatalf("orientation = %d side text = %q", s.Orientation, s.SideText)
	}
}

func TestGameOverResetsToDefaultPairing(t *testing.T) {
	from, to := domain.Pos(1, 1), domain.Pos(0, 1)
	auth := newFakeAuth().place(from, domain.Queen, domain.White).legal(from, to)
	winner := domain.White
	auth.endWith[domain.Move{From: from, To: to}] = domain.GameState{Status: domain.StatusCheckmate, Winner: &winner}

	fresh := newFakeAuth()
	notices := NewNoticeQueue(0)
	c := startController(t, auth, Options{
		Notifier:         notices,
		DefaultAuthority: func() (domain.Authority, error) { return fresh, nil },
	})
	first := snap(t, c).PairingID

	click(t, c, 1, 1)
	click(t, c, 0, 1)
	s := snap(t, c)

	got := notices.Drain()
	if len(got) != 2 || got[0].Kind != NoticeGameOver || got[1].Kind != NoticeNewDefaultGame {
		t.Fatalf("notices = %+v", got)
	}
	final := got[0].Records
	if len(final) != 2 || final[1].Kind != RecordTerminal || final[1].Text != "White wins by checkmate" {
		t.Fatalf("final ledger = %+v", final)
	}
	if got[0].State == nil || !got[0].State.IsGameOver() {
		t.Fatalf("game-over notice without state")
	}

	if len(s.Records) != 0 || s.Selection.Active || s.InProgress {
		t.Fatalf("reset left state: %+v", s)
	}
	if s.PairingID == first || s.Status != "Ready" {
		t.Fatalf("pairing not replaced: %q status %q", s.PairingID, s.Status)
	}
	if auth.closedCount() != 1 || fresh.started != 1 {
		t.Fatalf("closed=%d started=%d", auth.closedCount(), fresh.started)
	}
	if auth.began != 0 {
		t.Fatalf("BeginTurn called after game over")
	}
}

func TestStayOnBoardKeepsTerminalEntry(t *testing.T) {
	from, to := domain.Pos(1, 1), domain.Pos(0, 1)
	auth := newFakeAuth().place(from, domain.Queen, domain.White).legal(from, to)
	auth.endWith[domain.Move{From: from, To: to}] = domain.GameState{Status: domain.StatusStalemate}
	c := startController(t, auth, Options{Policy: StayOnBoard{}})

	click(t, c, 1, 1)
	click(t, c, 0, 1)
	s := snap(t, c)
	if len(s.Records) != 2 || s.Records[1].Kind != RecordTerminal {
		t.Fatalf("records = %+v", s.Records)
	}
	if s.Status != "STALEMATE" || !s.GameState.IsGameOver() {
		t.Fatalf("status = %q", s.Status)
	}
	if auth.closedCount() != 0 {
		t.Fatalf("authority closed under stay policy")
	}
}

func TestBackgroundNotificationsApplyInOrder(t *testing.T) {
	auth := newFakeAuth()
	c := startController(t, auth, Options{Policy: StayOnBoard{}})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		auth.emit(domain.GameState{Status: domain.StatusCheck})
		auth.emit(domain.GameState{Status: domain.StatusDisconnected})
	}()
	wg.Wait()

	s := snap(t, c)
	if s.Status != "OPPONENT DISCONNECTED" {
		t.Fatalf("status = %q", s.Status)
	}
	if len(s.Records) != 1 || s.Records[0].Text != "Opponent disconnected" {
		t.Fatalf("records = %+v", s.Records)
	}
}

func TestStaleAuthorityEventsIgnored(t *testing.T) {
	old := newFakeAuth()
	c := startController(t, old, Options{})
	stale := old.listenersSnapshot()
	if len(stale) != 1 {
		t.Fatalf("listeners = %d", len(stale))
	}
	if err := c.Reset(context.Background(), newFakeAuth()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	stale[0].MoveCompleted(domain.Move{From: domain.Pos(6, 0), To: domain.Pos(5, 0)}, nil)
	stale[0].GameStateChanged(domain.GameState{Status: domain.StatusDraw})

	s := snap(t, c)
	if s.LastMove != nil || len(s.Records) != 0 || s.Status != "Ready" {
		t.Fatalf("stale event applied: %+v", s)
	}
	if n := len(old.listenersSnapshot()); n != 0 {
		t.Fatalf("old authority still has %d listeners", n)
	}
}

func TestClickWithoutAuthority(t *testing.T) {
	c := New(Options{})
	defer c.Close()
	if _, err := c.Click(context.Background(), domain.Pos(0, 0)); err != domain.ErrNoAuthority {
		t.Fatalf("err = %v", err)
	}
}

func TestPolicyFromName(t *testing.T) {
	if _, ok := PolicyFromName("stay", nil).(StayOnBoard); !ok {
		t.Fatalf("stay not mapped")
	}
	if _, ok := PolicyFromName("whatever", nil).(ResetToDefault); !ok {
		t.Fatalf("default not reset")
	}
}
