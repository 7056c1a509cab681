package boarddto

type Position struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Label string `json:"label,omitempty"`
}

type Move struct {
	From Position `json:"from"`
	To   Position `json:"to"`
}

type Piece struct {
	Position Position `json:"position"`
	Side     string   `json:"side"`
	Type     string   `json:"type"`
	Symbol   string   `json:"symbol"`
}

type Selection struct {
	Active       bool       `json:"active"`
	Start        *Position  `json:"start,omitempty"`
	Destinations []Position `json:"destinations,omitempty"`
}

// Marker is one highlighted tile: trail, selected or candidate.
type Marker struct {
	Position Position `json:"position"`
	Kind     string   `json:"kind"`
}

type Record struct {
	Kind        string `json:"kind"`
	Piece       string `json:"piece,omitempty"`
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	Captured    string `json:"captured,omitempty"`
	Promotion   string `json:"promotion,omitempty"`
	Text        string `json:"text"`
}

type CapturedPieces struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

type GameState struct {
	Status   string `json:"status"`
	Winner   string `json:"winner,omitempty"`
	GameOver bool   `json:"game_over"`
	Text     string `json:"text"`
}

// Snapshot is everything a view needs to draw the board and side panels.
type Snapshot struct {
	PairingID    string         `json:"pairing_id"`
	Kind         string         `json:"kind"`
	PairingLabel string         `json:"pairing_label"`
	Selection    Selection      `json:"selection"`
	Held         string         `json:"held,omitempty"`
	Markers      []Marker       `json:"markers"`
	LastMove     *Move          `json:"last_move,omitempty"`
	Pieces       []Piece        `json:"pieces"`
	Records      []Record       `json:"records"`
	Captured     CapturedPieces `json:"captured"`
	Status       string         `json:"status"`
	SideText     string         `json:"side_text"`
	SideToMove   string         `json:"side_to_move"`
	GameState    GameState      `json:"game_state"`
	Orientation  int            `json:"orientation"`
	InProgress   bool           `json:"in_progress"`
	LocalSide    string         `json:"local_side,omitempty"`
}
