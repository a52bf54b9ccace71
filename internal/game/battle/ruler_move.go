package battle

import (
	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/field"
)

const (
	maxMoveDistance = 9
	maxPathSteps    = 11
)

// MovePath is the cheapest path found to a destination tile. Steps run from
// the destination back to the first tile after the start.
type MovePath struct {
	End              field.Location
	Steps            []field.Location
	RemainingDist    int
	NumOccupiedTiles int
	Cost             int
}

func newMovePath(end field.Location) *MovePath {
	return &MovePath{End: end}
}

// IsValid reports whether any path reached the destination.
func (mp *MovePath) IsValid() bool {
	return len(mp.Steps) > 0
}

func (mp *MovePath) reset() {
	mp.Steps = mp.Steps[:0]
	mp.RemainingDist = 0
	mp.NumOccupiedTiles = 0
	mp.Cost = 99
}

func (mp *MovePath) addStep(loc field.Location) {
	if len(mp.Steps) < maxPathSteps {
		mp.Steps = append(mp.Steps, loc)
	}
}

// cardRefCanMove reports whether a client's SC or creature may move this
// turn. Unless ignoreATK is set, the client also needs at least one ATK
// point.
func (b *Battle) cardRefCanMove(clientID uint8, ref CardRef, ignoreATK bool) bool {
	if clientID == 0xFF || ref.ClientID() != clientID {
		return false
	}
	if b.syncedChainForRef(ref) == nil {
		return false
	}
	def := b.definitionForRef(ref)
	t := b.statusTable(clientID)
	hes := b.handState(clientID)
	if def == nil || t == nil || hes == nil {
		return false
	}

	var status *CardShortStatus
	if t[ShortStatusSC].CardRef == ref {
		status = &t[ShortStatusSC]
		if def.Type == cards.TypeHuntersSC {
			// Items pinned by Guom or Immobile hold their SC in place too.
			for z := ShortStatusSetBase; z < ShortStatusAssist; z++ {
				item := &t[z]
				if item.CardRef != NoRef && b.cardExistsByStatus(item) &&
					b.refHasAnyCondition(item.CardRef, cards.CondGuom, cards.CondImmobile) {
					return false
				}
			}
		}
	} else if def.Type == cards.TypeCreature {
		for z := ShortStatusSetBase; z < ShortStatusAssist; z++ {
			if t[z].CardRef == ref {
				status = &t[z]
			}
		}
	}
	if status == nil || !b.cardExistsByStatus(status) || status.Flags.Has(CardFlagMoved) {
		return false
	}
	if hes.AssistFlags.Has(AssistFlagIsSkippingTurn) {
		return false
	}
	if b.refHasAnyCondition(ref, cards.CondHold, cards.CondGuom, cards.CondFreeze, cards.CondImmobile) {
		return false
	}

	dist := b.maxMoveDistanceForRef(ref)
	if dist == 0 {
		return false
	}
	if ignoreATK {
		return true
	}
	return min(dist, int(hes.ATKPoints)) != 0
}

func (b *Battle) refHasFreeManeuver(ref CardRef) bool {
	return b.refHasCondition(ref, cards.CondFreeManeuver)
}

// refIsAerial reports whether ref flies over occupied tiles, from a Fly
// assist or the Aerial condition.
func (b *Battle) refIsAerial(ref CardRef) bool {
	s := b.shortStatusForRef(ref)
	if s == nil || !b.cardExistsByStatus(s) {
		return false
	}
	if b.clientHasAssist(ref.ClientID(), cards.AssistFly) {
		return true
	}
	return b.refHasCondition(ref, cards.CondAerial)
}

// maxMoveDistanceForRef is the card's MV after bonuses, capped at 9. Snail
// Pace forces 1 and Stamina forces 9.
func (b *Battle) maxMoveDistanceForRef(ref CardRef) int {
	if b.cardIDForRef(ref) == cards.CardIDNone {
		return 0
	}
	def := b.definitionForRef(ref)
	if def == nil {
		return 0
	}
	ret := int(def.MV.Value)
	if cond, ok := b.conditionOnRef(ref, cards.CondMVBonus, true); ok {
		ret += int(cond.Value)
	}
	if cond, ok := b.conditionOnRef(ref, cards.CondSetMV, true); ok {
		ret = int(cond.Value)
	}
	ret = max(0, ret)

	hasStamina := false
	for _, eff := range b.assistEffects(ref.ClientID()) {
		switch eff {
		case cards.AssistSnailPace:
			return 1
		case cards.AssistStamina:
			hasStamina = true
		}
	}
	if hasStamina {
		return maxMoveDistance
	}
	return min(maxMoveDistance, ret)
}

// pathCost applies the mover's MV cost conditions to a path length, in
// condition slot order.
func pathCost(chain *ActionChain, length, penalty int) int {
	for z := range chain.Conditions {
		cond := &chain.Conditions[z]
		switch cond.Type {
		case cards.CondSetMVCostTo0:
			length = 0
		case cards.CondAdd1ToMVCost:
			length++
		case cards.CondScaleMVCost:
			length *= int(cond.Value)
		}
	}
	return max(0, min(99, length+penalty))
}

type moveSearch struct {
	chain          *ActionChain
	maxATK         int
	freeOrAerial   bool
	aerial         bool
	path           *MovePath
	width, height  int
	tileIsVacantAt func(x, y int) bool
}

// fill walks every route of at most maxDist tiles that never turns back,
// recording the cheapest route that ends on the path's destination.
// Occupied tiles can only be crossed with Free Maneuver or Aerial, and
// Aerial pays one extra point per occupied tile crossed.
func (s *moveSearch) fill(x, y int, dir field.Direction, maxDist, numOccupied, numVacant int) bool {
	if x < 1 || x >= s.width-1 || y < 1 || y >= s.height-1 {
		return false
	}

	ret := false
	occupied := !s.tileIsVacantAt(x, y)
	if occupied {
		if !s.freeOrAerial {
			return false
		}
	} else {
		penalty := 0
		if s.aerial {
			penalty = numOccupied
		}
		cost := pathCost(s.chain, numVacant+numOccupied+1, penalty)
		if s.maxATK < cost {
			return false
		}
		if s.path != nil && int(s.path.End.X) == x && int(s.path.End.Y) == y &&
			(!s.path.IsValid() || cost < s.path.Cost) {
			ret = true
			s.path.reset()
			s.path.RemainingDist = maxDist
			s.path.Cost = cost
			s.path.addStep(field.Location{X: uint8(x), Y: uint8(y), Direction: dir})
		}
	}

	if occupied {
		numOccupied++
	} else {
		numVacant++
	}

	if next := maxDist - 1; next > 0 {
		for _, d := range [3]field.Direction{dir, dir.TurnLeft(), dir.TurnRight()} {
			dx, dy := d.Delta()
			if s.fill(x+dx, y+dy, d, next, numOccupied, numVacant) {
				ret = true
			}
		}
	}

	if s.path != nil && ret {
		s.path.addStep(field.Location{X: uint8(x), Y: uint8(y), Direction: dir})
		if occupied {
			s.path.NumOccupiedTiles++
		}
	}
	return ret
}

// findMovePath searches outward from ref's tile in all four directions. It
// returns false only when the card cannot be searched from at all.
func (b *Battle) findMovePath(clientID uint8, ref CardRef, path *MovePath) bool {
	if clientID == 0xFF {
		return false
	}
	chain := b.syncedChainForRef(ref)
	hes := b.handState(clientID)
	if chain == nil || hes == nil {
		return false
	}
	dist := b.maxMoveDistanceForRef(ref)
	if dist < 1 {
		return false
	}
	dist = min(dist, maxMoveDistance)
	status := b.shortStatusForRef(ref)
	if status == nil {
		return false
	}

	s := &moveSearch{
		chain:          chain,
		maxATK:         int(hes.ATKPoints),
		freeOrAerial:   b.refHasFreeManeuver(ref) || b.refIsAerial(ref),
		aerial:         b.refIsAerial(ref),
		path:           path,
		width:          int(b.mapAndRules.Map.Width),
		height:         int(b.mapAndRules.Map.Height),
		tileIsVacantAt: b.mapAndRules.TileIsVacant,
	}
	x, y := int(status.Loc.X), int(status.Loc.Y)
	for _, d := range [4]field.Direction{field.DirRight, field.DirUp, field.DirLeft, field.DirDown} {
		dx, dy := d.Delta()
		s.fill(x+dx, y+dy, d, dist, 0, 0)
	}
	return true
}

// MovePathTo returns the cheapest path for ref to reach loc, or nil when
// the card cannot get there this turn.
func (b *Battle) MovePathTo(clientID uint8, ref CardRef, loc field.Location) *MovePath {
	path := newMovePath(loc)
	if !b.findMovePath(clientID, ref, path) || !path.IsValid() || len(path.Steps) < 2 {
		return nil
	}
	return path
}

// movePathLengthAndCost returns the number of tiles moved and the ATK cost
// of the cheapest route to loc. The length counts the tiles entered after
// the first, and is 99 when no route exists.
func (b *Battle) movePathLengthAndCost(clientID uint8, ref CardRef, loc field.Location) (length, cost int, ok bool) {
	path := newMovePath(loc)
	if !b.findMovePath(clientID, ref, path) {
		return 99, 99, false
	}
	if !path.IsValid() || len(path.Steps) < 2 {
		return 99, 99, false
	}
	return len(path.Steps) - 1, path.Cost, true
}
