package authority

import (
	"sync"

	"github.com/park285/cheese-board/internal/domain"
)

// hub fans notifications out to subscribers. Callers must not hold their own
// lock while emitting.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]domain.Listener
	ids  []int
}

func (h *hub) Subscribe(l domain.Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]domain.Listener)
	}
	h.next++
	id := h.next
	h.subs[id] = l
	h.ids = append(h.ids, id)
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			for i, v := range h.ids {
				if v == id {
					h.ids = append(h.ids[:i], h.ids[i+1:]...)
					break
				}
			}
		})
	}
}

// listeners returns subscribers in subscription order.
func (h *hub) listeners() []domain.Listener {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Listener, 0, len(h.ids))
	for _, id := range h.ids {
		out = append(out, h.subs[id])
	}
	return out
}

func (h *hub) moveCompleted(mv domain.Move, captured []domain.Position) {
	for _, l := range h.listeners() {
		l.MoveCompleted(mv, captured)
	}
}

func (h *hub) sideChanged(side domain.Side) {
	for _, l := range h.listeners() {
		l.SideChanged(side)
	}
}

func (h *hub) gameStateChanged(gs domain.GameState) {
	for _, l := range h.listeners() {
		l.GameStateChanged(gs)
	}
}
