package boardctl

import (
	"github.com/park285/cheese-board/internal/domain"
)

// Snapshot is a read-only copy of everything the rendering layer shows.
type Snapshot struct {
	PairingID    string
	Kind         domain.PairingKind
	PairingLabel string

	Selection Selection
	Held      string
	Markers   map[domain.Position]Marker
	LastMove  *domain.Move
	Board     [domain.BoardSize][domain.BoardSize]domain.Piece

	Records       []MoveRecord
	CapturedWhite []string
	CapturedBlack []string

	Status      string
	SideText    string
	SideToMove  domain.Side
	GameState   domain.GameState
	Orientation int
	InProgress  bool

	LocalSide  domain.Side
	Restricted bool
}

func (c *Controller) snapshot() Snapshot {
	st := c.st
	snap := Snapshot{
		PairingID:     st.pairingID,
		Kind:          st.kind,
		Selection:     st.sel.clone(),
		Held:          st.held,
		Markers:       Highlights(st.sel, st.last),
		Board:         st.board,
		Records:       st.ledger.Records(),
		CapturedWhite: st.ledger.Captured(domain.White),
		CapturedBlack: st.ledger.Captured(domain.Black),
		Status:        st.status,
		SideToMove:    st.toMove,
		GameState:     st.game,
		Orientation:   st.orientation,
		InProgress:    st.inProgress,
	}
	if st.last != nil {
		mv := *st.last
		snap.LastMove = &mv
	}
	if st.auth != nil {
		snap.LocalSide, snap.Restricted = st.auth.LocalIdentity()
		snap.PairingLabel = c.texts.Text("pairing.match", map[string]string{"Kind": st.kind.String()}, st.kind.String()+" Match")
		snap.SideText = c.texts.Text("status.side", map[string]string{"Side": st.toMove.String()}, st.toMove.String()+" to move")
	}
	return snap
}

// PieceAt returns the piece on pos, or ok=false for an empty tile.
func (s Snapshot) PieceAt(pos domain.Position) (domain.Piece, bool) {
	if !pos.Valid() {
		return domain.Piece{}, false
	}
	p := s.Board[pos.Row][pos.Col]
	return p, p.Type != domain.NoPieceType
}
