package boardctl

import (
	"sync"

	"github.com/park285/cheese-board/internal/domain"
)

type NoticeKind int

const (
	NoticePromotionDefault NoticeKind = iota
	NoticeGameOver
	NoticeNewDefaultGame
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeGameOver:
		return "game_over"
	case NoticeNewDefaultGame:
		return "new_default_game"
	default:
		return "promotion_default"
	}
}

// Notice is an informational message for the operator. GameOver notices
// carry the final state and the ledger as it stood before any reset.
type Notice struct {
	Kind    NoticeKind
	Title   string
	Body    string
	State   *domain.GameState
	Records []MoveRecord
}

// Notifier presents notices. It is called on the update loop and must not block.
type Notifier interface {
	Notice(n Notice)
}

type nopNotifier struct{}

func (nopNotifier) Notice(Notice) {}

// NoticeQueue buffers notices until a reader drains them. The oldest notice
// is dropped once Limit is reached.
type NoticeQueue struct {
	mu    sync.Mutex
	items []Notice
	Limit int
}

func NewNoticeQueue(limit int) *NoticeQueue {
	if limit <= 0 {
		limit = 32
	}
	return &NoticeQueue{Limit: limit}
}

func (q *NoticeQueue) Notice(n Notice) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.Limit {
		q.items = q.items[1:]
	}
	q.items = append(q.items, n)
}

// Drain returns and forgets every buffered notice.
func (q *NoticeQueue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}
