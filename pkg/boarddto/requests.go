package boarddto

// ClickRequest addresses a tile either by board coordinates or by a pixel of
// the rendered board image.
type ClickRequest struct {
	Row *int `json:"row,omitempty"`
	Col *int `json:"col,omitempty"`
	X   *int `json:"x,omitempty"`
	Y   *int `json:"y,omitempty"`
}

type ClickResponse struct {
	Result           string    `json:"result"`
	PromotionPending bool      `json:"promotion_pending,omitempty"`
	Choices          []string  `json:"choices,omitempty"`
	Snapshot         *Snapshot `json:"snapshot,omitempty"`
}

// PromotionRequest answers an open prompt. An empty Piece declines it.
type PromotionRequest struct {
	Piece string `json:"piece"`
}

type PromotionPrompt struct {
	Pending bool     `json:"pending"`
	Choices []string `json:"choices,omitempty"`
}

// NewGameRequest kinds: player, computer, host, join. Target is a ws:// URL
// or lobby code for join.
type NewGameRequest struct {
	Kind   string `json:"kind"`
	Target string `json:"target,omitempty"`
	Force  bool   `json:"force,omitempty"`
}

type NewGameResponse struct {
	Kind     string    `json:"kind"`
	Waiting  bool      `json:"waiting,omitempty"`
	Code     string    `json:"code,omitempty"`
	URL      string    `json:"url,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

type Notice struct {
	Kind    string     `json:"kind"`
	Title   string     `json:"title"`
	Body    string     `json:"body"`
	State   *GameState `json:"state,omitempty"`
	Records []Record   `json:"records,omitempty"`
}

type LobbyEntry struct {
	Code      string `json:"code"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}
