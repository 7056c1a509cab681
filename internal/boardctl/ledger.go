package boardctl

import (
	"strings"

	"github.com/park285/cheese-board/internal/domain"
)

type RecordKind int

const (
	RecordMove RecordKind = iota
	RecordPromotion
	RecordTerminal
)

func (k RecordKind) String() string {
	switch k {
	case RecordPromotion:
		return "promotion"
	case RecordTerminal:
		return "terminal"
	default:
		return "move"
	}
}

// MoveRecord is one ledger entry. Text is the rendered line shown to the operator.
type MoveRecord struct {
	Kind        RecordKind
	Piece       string
	Origin      string
	Destination string
	Captured    string
	Promotion   string
	Text        string
}

// Ledger is the append-only move history plus captured-piece tallies keyed by
// the capturing side. Only Clear removes entries.
type Ledger struct {
	records  []MoveRecord
	captured map[domain.Side][]string
}

func (l *Ledger) Append(r MoveRecord) { l.records = append(l.records, r) }

func (l *Ledger) Len() int { return len(l.records) }

// Records returns a copy in chronological order.
func (l *Ledger) Records() []MoveRecord {
	return append([]MoveRecord(nil), l.records...)
}

// AddCapture appends symbol to the tally of the side that captured it.
func (l *Ledger) AddCapture(by domain.Side, symbol string) {
	if symbol == "" {
		return
	}
	if l.captured == nil {
		l.captured = make(map[domain.Side][]string, 2)
	}
	l.captured[by] = append(l.captured[by], symbol)
}

// Captured returns the symbols captured by side, oldest first.
func (l *Ledger) Captured(by domain.Side) []string {
	return append([]string(nil), l.captured[by]...)
}

// CapturedText joins the tally the way the side panel shows it.
func (l *Ledger) CapturedText(by domain.Side) string {
	return strings.Join(l.captured[by], "")
}

func (l *Ledger) Clear() {
	l.records = nil
	l.captured = nil
}
