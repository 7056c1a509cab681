package boardctl

import "github.com/park285/cheese-board/internal/domain"

// allowClick is the turn gate. A click is rejected only when the pairing
// restricts the operator to one side and the other side is to move.
func allowClick(identity domain.Side, restricted bool, toMove domain.Side) bool {
	return !restricted || identity == toMove
}

func gateOpen(auth domain.Authority) bool {
	identity, restricted := auth.LocalIdentity()
	if !restricted {
		return true
	}
	return allowClick(identity, restricted, auth.SideToMove())
}

// OrientationFor returns the board rotation in degrees. With a local identity
// the operator's side stays at the bottom; otherwise the side to move does.
func OrientationFor(identity domain.Side, restricted bool, toMove domain.Side) int {
	side := toMove
	if restricted {
		side = identity
	}
	if side == domain.Black {
		return 180
	}
	return 0
}
