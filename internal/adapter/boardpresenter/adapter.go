// Package boardpresenter converts controller values into the JSON DTOs the
// view API serves.
package boardpresenter

import (
	"sort"
	"time"

	"github.com/park285/cheese-board/internal/boardctl"
	"github.com/park285/cheese-board/internal/domain"
	"github.com/park285/cheese-board/internal/pairing"
	"github.com/park285/cheese-board/pkg/boarddto"
)

func ToDTOPosition(p domain.Position) boarddto.Position {
	return boarddto.Position{Row: p.Row, Col: p.Col, Label: p.Label()}
}

func ToDTOSnapshot(s boardctl.Snapshot) *boarddto.Snapshot {
	out := &boarddto.Snapshot{
		PairingID:    s.PairingID,
		Kind:         s.Kind.String(),
		PairingLabel: s.PairingLabel,
		Held:         s.Held,
		Records:      ToDTORecords(s.Records),
		Captured: boarddto.CapturedPieces{
			White: nonNil(s.CapturedWhite),
			Black: nonNil(s.CapturedBlack),
		},
		Status:      s.Status,
		SideText:    s.SideText,
		SideToMove:  s.SideToMove.String(),
		GameState:   ToDTOGameState(s.GameState),
		Orientation: s.Orientation,
		InProgress:  s.InProgress,
	}
	if s.Restricted {
		out.LocalSide = s.LocalSide.String()
	}

	out.Selection.Active = s.Selection.Active
	if s.Selection.Active {
		start := ToDTOPosition(s.Selection.Start)
		out.Selection.Start = &start
		for _, d := range s.Selection.Destinations {
			out.Selection.Destinations = append(out.Selection.Destinations, ToDTOPosition(d))
		}
	}

	out.Markers = make([]boarddto.Marker, 0, len(s.Markers))
	for pos, m := range s.Markers {
		out.Markers = append(out.Markers, boarddto.Marker{Position: ToDTOPosition(pos), Kind: m.String()})
	}
	sort.Slice(out.Markers, func(i, j int) bool {
		a, b := out.Markers[i].Position, out.Markers[j].Position
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})

	if s.LastMove != nil {
		out.LastMove = &boarddto.Move{From: ToDTOPosition(s.LastMove.From), To: ToDTOPosition(s.LastMove.To)}
	}

	out.Pieces = make([]boarddto.Piece, 0, 32)
	for row := 0; row < domain.BoardSize; row++ {
		for col := 0; col < domain.BoardSize; col++ {
			pos := domain.Pos(row, col)
			p, ok := s.PieceAt(pos)
			if !ok {
				continue
			}
			out.Pieces = append(out.Pieces, boarddto.Piece{
				Position: ToDTOPosition(pos),
				Side:     p.Side.String(),
				Type:     p.Type.String(),
				Symbol:   p.Symbol(),
			})
		}
	}
	return out
}

func ToDTORecords(records []boardctl.MoveRecord) []boarddto.Record {
	out := make([]boarddto.Record, 0, len(records))
	for _, r := range records {
		out = append(out, boarddto.Record{
			Kind:        r.Kind.String(),
			Piece:       r.Piece,
			Origin:      r.Origin,
			Destination: r.Destination,
			Captured:    r.Captured,
			Promotion:   r.Promotion,
			Text:        r.Text,
		})
	}
	return out
}

func ToDTOGameState(gs domain.GameState) boarddto.GameState {
	out := boarddto.GameState{
		Status:   statusName(gs.Status),
		GameOver: gs.IsGameOver(),
		Text:     gs.String(),
	}
	if gs.Winner != nil {
		out.Winner = gs.Winner.String()
	}
	return out
}

func ToDTONotice(n boardctl.Notice) boarddto.Notice {
	out := boarddto.Notice{Kind: n.Kind.String(), Title: n.Title, Body: n.Body}
	if n.State != nil {
		gs := ToDTOGameState(*n.State)
		out.State = &gs
	}
	if len(n.Records) > 0 {
		out.Records = ToDTORecords(n.Records)
	}
	return out
}

func ToDTOLobby(entries []pairing.HostEntry) []boarddto.LobbyEntry {
	out := make([]boarddto.LobbyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, boarddto.LobbyEntry{Code: e.Code, URL: e.URL, CreatedAt: e.CreatedAt.Format(time.RFC3339)})
	}
	return out
}

func ToDTOChoices(choices []domain.PieceType) []string {
	out := make([]string, 0, len(choices))
	for _, c := range choices {
		out = append(out, c.String())
	}
	return out
}

func statusName(s domain.Status) string {
	switch s {
	case domain.StatusCheck:
		return "check"
	case domain.StatusCheckmate:
		return "checkmate"
	case domain.StatusStalemate:
		return "stalemate"
	case domain.StatusDraw:
		return "draw"
	case domain.StatusDisconnected:
		return "disconnected"
	default:
		return "ongoing"
	}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
