package boardctl

import (
	"sort"

	"github.com/park285/cheese-board/internal/domain"
)

// Selection is IDLE when Active is false, SELECTED(Start, Destinations) otherwise.
type Selection struct {
	Active       bool
	Start        domain.Position
	Destinations []domain.Position
}

// Idle is the zero selection.
func Idle() Selection { return Selection{} }

// Selected builds SELECTED from the legal moves of start. It returns IDLE when
// none of the moves originate at start.
func Selected(start domain.Position, moves []domain.Move) Selection {
	seen := make(map[domain.Position]struct{}, len(moves))
	dests := make([]domain.Position, 0, len(moves))
	for _, mv := range moves {
		if mv.From != start {
			continue
		}
		if _, ok := seen[mv.To]; ok {
			continue
		}
		seen[mv.To] = struct{}{}
		dests = append(dests, mv.To)
	}
	if len(dests) == 0 {
		return Idle()
	}
	sort.Slice(dests, func(i, j int) bool {
		if dests[i].Row != dests[j].Row {
			return dests[i].Row < dests[j].Row
		}
		return dests[i].Col < dests[j].Col
	})
	return Selection{Active: true, Start: start, Destinations: dests}
}

func (s Selection) IsCandidate(p domain.Position) bool {
	for _, d := range s.Destinations {
		if d == p {
			return true
		}
	}
	return false
}

func (s Selection) clone() Selection {
	s.Destinations = append([]domain.Position(nil), s.Destinations...)
	return s
}

// Marker is the highlight kind of a tile.
type Marker int

const (
	MarkerNone Marker = iota
	MarkerTrail
	MarkerSelected
	MarkerCandidate
)

func (m Marker) String() string {
	switch m {
	case MarkerTrail:
		return "trail"
	case MarkerSelected:
		return "selected"
	case MarkerCandidate:
		return "candidate"
	default:
		return ""
	}
}

// Highlights derives every tile marker from the selection and the most
// recent move. It is recomputed from scratch on each call.
func Highlights(sel Selection, last *domain.Move) map[domain.Position]Marker {
	out := make(map[domain.Position]Marker)
	if last != nil {
		out[last.From] = MarkerTrail
		out[last.To] = MarkerTrail
	}
	if sel.Active {
		out[sel.Start] = MarkerSelected
		for _, d := range sel.Destinations {
			out[d] = MarkerCandidate
		}
	}
	return out
}
