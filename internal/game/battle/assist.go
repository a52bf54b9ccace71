package battle

import (
	"github.com/magefree/ep3-server-go/internal/game/cards"
)

// AssistServer resolves which assist effects apply to a client or team. It
// only reads the synchronized hand records of the players, never their live
// state, so its answers match what clients were last told.
type AssistServer struct {
	effects [MaxClients]cards.AssistEffect
	defs    [MaxClients]*cards.Definition
}

func (as *AssistServer) handState(b *Battle, clientID int) *HandAndEquipState {
	if p := b.players[clientID]; p != nil {
		return &p.handEquip
	}
	return nil
}

func (as *AssistServer) deckTeam(b *Battle, clientID int) (uint8, bool) {
	if d := b.decks[clientID]; d != nil {
		return d.TeamID, true
	}
	return 0, false
}

// populate refreshes the assist card of every client.
func (as *AssistServer) populate(b *Battle) {
	for z := 0; z < MaxClients; z++ {
		as.defs[z] = nil
		as.effects[z] = cards.AssistNone
		hes := as.handState(b, z)
		if hes == nil {
			continue
		}
		cardID := hes.AssistCardID
		if cardID == 0xFFFF {
			cardID = b.cardIDForRef(hes.AssistRef)
		}
		as.effects[z] = cards.AssistEffectForCardID(cardID)
		if as.effects[z] != cards.AssistNone {
			as.defs[z] = b.definitionForID(cardID)
		}
	}
}

func (as *AssistServer) affects(b *Battle, owner int, target int) bool {
	def := as.defs[owner]
	switch def.TargetMode {
	case cards.TargetTeam:
		ot, ok1 := as.deckTeam(b, owner)
		tt, ok2 := as.deckTeam(b, target)
		return ok1 && ok2 && ot == tt
	case cards.TargetSelf:
		return owner == target
	case cards.TargetEveryone:
		return true
	}
	return false
}

func (as *AssistServer) isActive(b *Battle, owner int) bool {
	if as.defs[owner] == nil {
		return false
	}
	hes := as.handState(b, owner)
	return hes == nil || hes.AssistDelayTurns < 1
}

// ForClient returns the assist effects currently affecting a client, ordered
// by when their cards were set. When a Resistance or Independent assist is
// among them, every entry is AssistNone but the length is kept.
func (as *AssistServer) ForClient(b *Battle, clientID uint8) []cards.AssistEffect {
	as.populate(b)
	if as.ShouldBlock(b, clientID) {
		return nil
	}
	var owners []int
	for z := 0; z < MaxClients; z++ {
		if as.isActive(b, z) && as.affects(b, z, int(clientID)) {
			owners = append(owners, z)
		}
	}
	return as.recompute(b, owners)
}

// ForTeam returns the team-wide and global assist effects affecting a team.
func (as *AssistServer) ForTeam(b *Battle, teamID uint8) []cards.AssistEffect {
	as.populate(b)
	var owners []int
	for z := 0; z < MaxClients; z++ {
		if !as.isActive(b, z) {
			continue
		}
		switch as.defs[z].TargetMode {
		case cards.TargetTeam:
			if t, ok := as.deckTeam(b, z); ok && t == teamID {
				owners = append(owners, z)
			}
		case cards.TargetEveryone:
			owners = append(owners, z)
		}
	}
	return as.recompute(b, owners)
}

// ShouldBlock reports whether a Resistance or Independent assist shields the
// client from all assist effects.
func (as *AssistServer) ShouldBlock(b *Battle, clientID uint8) bool {
	for z := 0; z < MaxClients; z++ {
		eff := as.effects[z]
		if (eff == cards.AssistResistance || eff == cards.AssistIndependent) && as.defs[z] != nil {
			if as.affects(b, z, int(clientID)) {
				return true
			}
		}
	}
	return false
}

// Has reports whether eff is among the effects affecting the client.
func (as *AssistServer) Has(b *Battle, clientID uint8, eff cards.AssistEffect) bool {
	for _, e := range as.ForClient(b, clientID) {
		if e == eff {
			return true
		}
	}
	return false
}

func (as *AssistServer) recompute(b *Battle, owners []int) []cards.AssistEffect {
	ret := make([]cards.AssistEffect, len(owners))
	if len(owners) == 0 {
		return ret
	}
	for _, z := range owners {
		if eff := as.effects[z]; eff == cards.AssistResistance || eff == cards.AssistIndependent {
			return ret
		}
	}
	// Pairwise exchange sort on the set number, which is not stable.
	for z := 0; z < len(owners)-1; z++ {
		for w := z + 1; w < len(owners); w++ {
			if as.handState(b, owners[w]).AssistCardSetNumber < as.handState(b, owners[z]).AssistCardSetNumber {
				owners[z], owners[w] = owners[w], owners[z]
			}
		}
	}
	for z, owner := range owners {
		ret[z] = as.effects[owner]
	}
	return ret
}
