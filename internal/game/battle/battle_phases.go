package battle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/field"
)

// timeLimitUnit is the granularity of Rules.OverallTimeLimit.
const timeLimitUnit = 5 * time.Minute

// setupAndStartBattle builds the player states from the registered decks,
// places the story characters, picks the first team and sends the opening
// state to every client.
func (b *Battle) setupAndStartBattle() error {
	if b.rng == nil {
		return fmt.Errorf("start battle: no random source")
	}
	b.setupPhase = SetupStarterRolls

	for z := uint8(0); z < MaxClients; z++ {
		if b.decks[z] == nil {
			b.names[z] = ""
			continue
		}
		b.players[z] = newPlayer(z)
	}
	for _, p := range b.players {
		if p == nil {
			continue
		}
		if err := p.init(b); err != nil {
			return fmt.Errorf("start battle: %w", err)
		}
	}

	if b.mapAndRules.Rules.HPType == field.HPCommon {
		teamHP := [2]int16{99, 99}
		b.forEachPlayer(func(p *Player) {
			if p.SC != nil {
				teamHP[p.TeamID&1] = min(teamHP[p.TeamID&1], p.SC.HP)
			}
		})
		b.forEachPlayer(func(p *Player) {
			if hp := teamHP[p.TeamID&1]; p.SC != nil && hp < 99 {
				p.SC.setCurrentAndMaxHP(hp)
			}
		})
	}

	b.mapAndRules.StartFacingDirections = 0
	for _, p := range b.players {
		if p == nil {
			continue
		}
		if err := p.setInitialLocation(b); err != nil {
			return fmt.Errorf("start battle: %w", err)
		}
	}

	if err := b.determineFirstTeamTurn(); err != nil {
		return fmt.Errorf("start battle: %w", err)
	}
	b.computeAllOccupiedBits()
	b.normalizeTerrain()
	b.chooseTrapTiles()

	b.sendHandUpdates(true)
	b.sendMapUpdate()
	b.forEachPlayer(func(p *Player) { p.sendSetCardUpdates(b, true) })
	b.sendAllStateUpdates()
	b.sendNames()

	b.registrationPhase = RegistrationBattleStarted
	b.updateStateFlags(true)

	b.sendTrapTileLocations()
	b.send(&MapUpdateEvent{Map: b.mapAndRules.Map, Overlay: b.mapAndRules.Overlay, StartBattle: true})
	b.battleStart = b.now()
	b.send(&LoadEnvironmentEvent{})

	b.logger.Info("battle started",
		zap.Uint8("first_team", b.firstTeamTurn),
		zap.Uint8("num_players", b.mapAndRules.NumPlayers))
	return nil
}

// normalizeTerrain turns start tiles into plain vacant tiles, blocks the
// tiles covered by blocking overlays and records the warp tile pairs.
func (b *Battle) normalizeTerrain() {
	m := &b.mapAndRules.Map
	for y := 0; y < field.GridSize; y++ {
		for x := 0; x < field.GridSize; x++ {
			if m.Tiles[y][x] > field.TileVacant {
				m.Tiles[y][x] = field.TileVacant
			}
		}
	}
	for t := range b.warpPositions {
		b.warpPositions[t] = [2][2]uint8{{0xFF, 0xFF}, {0xFF, 0xFF}}
	}
	for y := 0; y < field.GridSize; y++ {
		for x := 0; x < field.GridSize; x++ {
			spec := b.mapAndRules.Overlay[y][x]
			kind, subtype := spec&0xF0, spec&0x0F
			switch kind {
			case field.OverlayWarpBase:
				if int(subtype) >= NumTrapTypes {
					continue
				}
				warp := &b.warpPositions[subtype]
				if warp[0][0] == 0xFF {
					warp[0] = [2]uint8{uint8(x), uint8(y)}
				} else if warp[1][0] == 0xFF {
					warp[1] = [2]uint8{uint8(x), uint8(y)}
				}
			case field.OverlayBlock1, field.OverlayBlock2, field.OverlayBlock3:
				m.Tiles[y][x] = field.TileBlocked
			}
		}
	}
}

// chooseTrapTiles collects up to eight trap tiles per color and arms one of
// each color at random.
func (b *Battle) chooseTrapTiles() {
	for t := 0; t < NumTrapTypes; t++ {
		b.chosenTrapTile[t] = 0xFF
		n := uint8(0)
		for y := 0; y < field.GridSize; y++ {
			for x := 0; x < field.GridSize; x++ {
				if b.mapAndRules.Overlay[y][x] == field.OverlayTrapBase|uint8(t) && n < maxTrapTilesPerType {
					b.trapTiles[t][n] = [2]uint8{uint8(x), uint8(y)}
					n++
				}
			}
		}
		b.numTrapTiles[t] = n
		if n > 0 {
			b.chosenTrapTile[t] = uint8(b.random(int(n)))
		}
	}
}

func (b *Battle) sendAllStateUpdates() {
	b.sendDecks()
	b.send(&MapUpdateEvent{Map: b.mapAndRules.Map, Overlay: b.mapAndRules.Overlay})
	b.sendHandUpdates(false)
}

// determineFirstTeamTurn rolls one die per player until the weighted team
// sums differ. Each sum is weighted by the size of the other team so that a
// lone player is not at a disadvantage; the team with the lower sum opens.
func (b *Battle) determineFirstTeamTurn() error {
	b.teamClientCount[0] = b.mapAndRules.NumTeam0Players
	b.teamClientCount[1] = b.mapAndRules.NumPlayers - b.teamClientCount[0]
	if b.teamClientCount[0] == 0 || b.teamClientCount[1] == 0 {
		return fmt.Errorf("one or both teams have no players")
	}
	b.firstTeamTurn = 0xFF
	for b.firstTeamTurn == 0xFF {
		var results [2]int
		b.forEachPlayer(func(p *Player) {
			results[p.TeamID&1] += int(p.rollDice(b, 1))
		})
		results[0] *= int(b.teamClientCount[1])
		results[1] *= int(b.teamClientCount[0])
		switch {
		case results[0] < results[1]:
			b.firstTeamTurn = 0
		case results[1] < results[0]:
			b.firstTeamTurn = 1
		}
	}
	b.currentTeamTurn1 = b.firstTeamTurn
	b.currentTeamTurn2 = b.firstTeamTurn
	return nil
}

// updateRegistrationPhase moves registration forward and reports whether the
// battle can begin.
func (b *Battle) updateRegistrationPhase() bool {
	if b.setupPhase != SetupRegistration {
		return false
	}
	defer b.updateStateFlags(false)

	mr := b.mapAndRules
	if mr.NumPlayers == 0 {
		b.registrationPhase = RegistrationAwaitingNumPlayers
		return false
	}
	present, team0 := 0, 0
	for _, d := range b.decks {
		if d == nil {
			continue
		}
		present++
		if d.TeamID == 0 {
			team0++
		}
	}
	if int(mr.NumPlayers) != present {
		b.registrationPhase = RegistrationAwaitingPlayers
		return false
	}
	if team0 != int(mr.NumTeam0Players) {
		b.registrationPhase = RegistrationAwaitingDecks
		return false
	}
	b.registrationPhase = RegistrationRegistered
	b.logger.Debug("registration complete", zap.Int("players", present))
	return true
}

func (b *Battle) setBattleStarted() {
	b.setupPhase = SetupMainBattle
	b.roundNum = 1
	b.cycle.Reset()
	if err := b.cycle.Start(context.Background()); err != nil {
		b.logger.Error("cannot start round cycle", zap.Error(err))
	}
	b.updateStateFlags(false)
	b.sendHandUpdates(false)
	b.sendMapUpdate()
}

func (b *Battle) setBattleEnded() {
	b.setupPhase = SetupBattleEnded
	b.sendPlayerStats()
	b.updateStateFlags(false)
	team, err := b.WinnerTeam()
	b.logger.Info("battle ended",
		zap.Uint16("round", b.roundNum),
		zap.Int("winner_team", team),
		zap.NamedError("winner_error", err))
}

func (b *Battle) dicePhaseBefore() {
	for z, p := range b.players {
		if p != nil {
			p.dicePhaseBefore(b)
		}
		b.doneEnqueuing[z] = false
	}
	b.destroyCardsWithZeroHP()
	b.checkForDestroyedCards()
	b.checkForBattleEnd()
	b.sendHandUpdates(false)
	b.actionSubphase = cards.SubphaseAttack
	b.currentTeamTurn2 = b.currentTeamTurn1
	b.numPendingAttacks = 0
	b.numAttacks = 0
	b.nextAttack = 0
	b.updateStateFlags(false)
}

// dicePhaseAfter pays out Charity: each die of 5 or more rolled by the team
// in turn moves one experience point to or from the assist owner's team.
func (b *Battle) dicePhaseAfter() {
	for _, p := range b.players {
		if p == nil {
			continue
		}
		for _, eff := range b.assists.ForClient(b, p.ClientID) {
			if eff != cards.AssistCharity && eff != cards.AssistCharityPlus {
				continue
			}
			delta := int32(1)
			if eff == cards.AssistCharityPlus {
				delta = -1
			}
			for _, other := range b.players {
				if other == nil || other.TeamID != b.currentTeamTurn2 {
					continue
				}
				for _, die := range other.DiceResults {
					if die >= 5 {
						b.addTeamEXP(p.TeamID, delta)
					}
				}
			}
			b.updateStateFlags(false)
		}
	}
}

func (b *Battle) setPhaseBefore() {
	b.forEachPlayer(func(p *Player) { p.handleBeforeTurnAssistEffects(b) })
	b.checkForDestroyedCards()
}

func (b *Battle) setPhaseAfter() {
	for _, p := range b.players {
		if p == nil {
			continue
		}
		if p.SC != nil {
			b.applyActionConditions(cards.WhenAfterSetPhase, nil, p.SC, PermitPersistentStats, nil)
		}
		for _, card := range p.SetCards {
			if card != nil {
				b.applyActionConditions(cards.WhenAfterSetPhase, nil, card, PermitPersistentStats, nil)
			}
		}
	}
	b.sendHandUpdates(false)

	rules := &b.mapAndRules.Rules
	var vanish [MaxClients]bool
	for z, p := range b.players {
		if p == nil {
			continue
		}
		for _, eff := range b.assists.ForClient(b, p.ClientID) {
			switch eff {
			case cards.AssistShuffleAll, cards.AssistShuffleGroup:
				if !rules.DisableDeckShuffle && !rules.DisableDeckLoop {
					p.discardAndRedrawHand(b)
				}
			case cards.AssistTrash1:
				p.discardRandomHandCard(b)
			case cards.AssistEmptyHand:
				p.discardAllAttackActionCardsFromHand(b)
			case cards.AssistHitman:
				p.discardAllItemAndCreatureCardsFromHand(b)
			case cards.AssistAssistTrash:
				p.discardAllAssistCardsFromHand(b)
			case cards.AssistAssistVanish:
				vanish[z] = true
			}
		}
	}
	for z, p := range b.players {
		if p != nil && vanish[z] {
			p.discardSetAssistCard(b)
		}
	}
	// One-shot assists leave play once their effect has run.
	for _, p := range b.players {
		if p != nil && p.AssistTurnsRemaining() == int(cards.AssistTurnsOnce) && p.AssistDelayTurns < 1 {
			p.discardSetAssistCard(b)
			p.updateHandAndEquipState(b, false)
		}
	}
}

func (b *Battle) movePhaseBefore() {
	b.forEachPlayer(func(p *Player) { p.movePhaseBefore(b) })
}

// movePhaseAfter springs the armed trap of each color that a story
// character moved onto. Every story character next to the trap gets a
// random assist from the color's list, and the trap moves to another tile
// of the same color.
func (b *Battle) movePhaseAfter() {
	for t := 0; t < NumTrapTypes; t++ {
		index := b.chosenTrapTile[t]
		if index == 0xFF {
			continue
		}
		trapX := int(b.trapTiles[t][index][0])
		trapY := int(b.trapTiles[t][index][1])

		triggered := false
		for _, p := range b.players {
			if p != nil && p.SC != nil && p.SC.Flags.Has(CardFlagMoved) &&
				int(p.SC.Loc.X) == trapX && int(p.SC.Loc.Y) == trapY {
				triggered = true
				break
			}
		}
		if !triggered {
			continue
		}

		cardIDs := b.options.TrapCardIDs[t]
		if len(cardIDs) == 0 {
			cardIDs = DefaultTrapCardIDs[t]
		}
		trapCardID := uint16(0xFFFF)
		switch {
		case len(cardIDs) == 1:
			trapCardID = cardIDs[0]
		case len(cardIDs) > 1:
			trapCardID = cardIDs[b.random(len(cardIDs))]
		}

		if trapCardID != 0xFFFF {
			for _, p := range b.players {
				if p == nil || p.SC == nil {
					continue
				}
				dx, dy := int(p.SC.Loc.X)-trapX, int(p.SC.Loc.Y)-trapY
				if dx > -2 && dx < 2 && dy > -2 && dy < 2 && p.replaceAssistCardByID(b, trapCardID) {
					b.send(&AnimationEvent{
						ChangeType: 1,
						ClientID:   p.ClientID,
						CardRefs:   [3]CardRef{NoRef, NoRef, NoRef},
						Loc:        field.Location{X: uint8(trapX), Y: uint8(trapY), Direction: field.Direction(t)},
						TrapCardID: trapCardID,
					})
					b.logger.Debug("trap sprung",
						zap.Int("trap_type", t),
						zap.Uint8("client_id", p.ClientID),
						zap.Uint16("card_id", trapCardID))
				}
			}
		}

		// Each pass consumes at most one random draw.
		switch n := b.numTrapTiles[t]; {
		case n == 2:
			b.chosenTrapTile[t] ^= 1
			b.sendTrapTileLocations()
		case n > 2:
			next := uint8(b.random(int(n) - 1))
			if next >= b.chosenTrapTile[t] {
				next++
			}
			b.chosenTrapTile[t] = next
			b.sendTrapTileLocations()
		}
	}
}

func (b *Battle) actionPhaseBefore() {
	b.defenseStarted = false
	b.currentTeamTurn2 = b.currentTeamTurn1
	for z, p := range b.players {
		if p != nil {
			p.actionPhaseBefore(b)
		}
		b.hasDonePB[z] = false
	}
}

func (b *Battle) actionPhaseAfter() {
	b.sendHandUpdates(false)
}

func (b *Battle) drawPhaseBefore() {
	b.forEachPlayer(func(p *Player) { p.drawPhaseBefore(b) })
}

// drawPhaseAfter refills hands, hands the turn to the other team and, when
// the turn comes back to the first team, checks the overall time and round
// limits.
func (b *Battle) drawPhaseAfter() {
	b.forEachPlayer(func(p *Player) {
		if p.drawCardsAllowed(b) {
			p.drawHand(b, 0)
		}
		if p.isTeamTurn(b) {
			p.computeTeamDiceBonusAfterDrawPhase(b)
		}
	})
	b.checkForDestroyedCards()
	b.currentTeamTurn1 ^= 1
	b.roundNum++

	if b.currentTeamTurn1 != b.firstTeamTurn {
		return
	}
	if limit := b.mapAndRules.Rules.OverallTimeLimit; limit > 0 && !b.options.DisableTimeLimits {
		if !b.now().Before(b.battleStart.Add(time.Duration(limit) * timeLimitUnit)) {
			b.overallTimeExpired = true
		}
	}
	if !b.overallTimeExpired && b.roundNum < roundLimit {
		return
	}
	b.logger.Info("battle limit reached",
		zap.Bool("time_expired", b.overallTimeExpired),
		zap.Uint16("round", b.roundNum))
	anyWinner := false
	b.forEachPlayer(func(p *Player) {
		if p.AssistFlags.Has(AssistFlagHasWon) {
			anyWinner = true
		}
	})
	if !anyWinner {
		b.rankTeamsAndSetWinners(0)
	}
	b.roundNum--
	b.setBattleEnded()
}

// readyToAdvance marks a player of the team in turn as done with the
// current phase. In the dice phase this also rolls the player's dice. Once
// every living player of the team is done, the battle advances one phase.
func (b *Battle) readyToAdvance(clientID uint8) {
	p := b.player(clientID)
	if p == nil || p.TeamID != b.currentTeamTurn1 || b.setupPhase != SetupMainBattle {
		return
	}
	p.AssistFlags.Set(AssistFlagReadyToEndPhase)
	p.updateHandAndEquipState(b, false)

	if b.battlePhase == PhaseDice {
		if !p.AssistFlags.Has(AssistFlagEligibleForDiceBoost) ||
			b.mapAndRules.Rules.DisableDiceBoost ||
			!b.canReceiveDiceBoost(p) {
			p.AssistFlags.Clear(AssistFlagEligibleForDiceBoost)
			p.rollMainDice(b)
			if p.ATKPoints < 3 && p.DEFPoints < 3 {
				p.AssistFlags.Set(AssistFlagEligibleForDiceBoost)
			}
		} else {
			// A player who rolled low twice in a row rerolls until one die
			// shows at least 3.
			for z := 0; z < diceBoostAttempts; z++ {
				p.rollMainDice(b)
				if p.ATKPoints >= 3 || p.DEFPoints >= 3 {
					break
				}
			}
			p.AssistFlags.Clear(AssistFlagEligibleForDiceBoost)
		}
		p.updateHandAndEquipState(b, false)
	}
	b.readyToEndPhase[clientID] = true

	for z, other := range b.players {
		if other != nil && other.IsAlive() && other.TeamID == b.currentTeamTurn1 && !b.readyToEndPhase[z] {
			return
		}
	}
	b.advancePhase()
}

func (b *Battle) canReceiveDiceBoost(p *Player) bool {
	team := p.TeamID & 1
	solo := b.teamClientCount[team] < b.teamClientCount[team^1]
	rules := &b.mapAndRules.Rules
	_, atkHi := rules.AttackDiceRange(solo)
	_, defHi := rules.DefenseDiceRange(solo)
	return atkHi >= 3 || defHi >= 3
}

func (b *Battle) advancePhase() {
	b.copyPrevStates()
	from := b.battlePhase
	if err := b.cycle.Advance(context.Background()); err != nil {
		b.logger.Error("cannot advance phase", zap.Stringer("phase", from), zap.Error(err))
		return
	}
	b.checkForBattleEnd()
	b.sendSetCardUpdatesAndStatuses()
	b.clearPlayerFlagsAfterPhase()
	b.updateStateFlags(false)
	b.sendPlayerStats()
	b.logger.Debug("phase advanced",
		zap.Stringer("from", from),
		zap.Stringer("to", b.battlePhase),
		zap.Uint16("round", b.roundNum),
		zap.Uint8("team", b.currentTeamTurn1))
}

func (b *Battle) clearPlayerFlagsAfterPhase() {
	b.readyToEndPhase = [MaxClients]bool{}
	b.forEachPlayer(func(p *Player) {
		p.AssistFlags.Clear(AssistFlagReadyToEndPhase | AssistFlagReadyToEndActionPhase)
		p.updateHandAndEquipState(b, false)
	})
}

// endAttackListForClient records that a player of the attacking team has
// declared all its attacks. When the whole team is done the declared
// attacks start resolving.
func (b *Battle) endAttackListForClient(clientID uint8) {
	p := b.player(clientID)
	if p == nil {
		return
	}
	if p.TeamID == b.currentTeamTurn2 {
		b.doneEnqueuing[clientID] = true
	}
	for z, other := range b.players {
		if other != nil && other.IsAlive() && other.TeamID == b.currentTeamTurn2 && !b.doneEnqueuing[z] {
			p.AssistFlags.Set(AssistFlagReadyToEndActionPhase)
			p.updateHandAndEquipState(b, false)
			return
		}
	}
	b.forEachPlayer(func(other *Player) {
		other.AssistFlags.Clear(AssistFlagReadyToEndActionPhase)
		other.updateHandAndEquipState(b, false)
	})
	b.endActionPhase()
	b.doneEnqueuing = [MaxClients]bool{}
}

func (b *Battle) endActionPhase() {
	b.numPendingAttacks = 0
	b.resolving = true
	// The subphase only ever moves from attack to defense.
	b.actionSubphase += 2
	b.copyPrevStates()
	b.advanceToNextResolvableAttack()
	b.sendSetCardUpdatesAndStatuses()
}

// advanceToNextResolvableAttack skips queued attacks that belong to the other
// team or no longer have a living target, then announces the next one so
// the defending team can respond. With nothing left to resolve the
// attacking team is marked ready to leave the action phase.
func (b *Battle) advanceToNextResolvableAttack() {
	if b.nextAttack >= MaxQueued {
		b.logger.Warn("attack cursor out of range", zap.Int("cursor", b.nextAttack))
		return
	}
	for ; b.nextAttack < b.numAttacks; b.nextAttack++ {
		card := b.cardForRef(b.attackRefs[b.nextAttack])
		if card == nil || card.TeamID != b.currentTeamTurn() {
			continue
		}
		as := b.attackStates[b.nextAttack]
		b.replaceTargetsDueToDestructionOrConditions(&as)
		if b.anyTargetExistsForAttack(&as) {
			break
		}
		b.logger.Debug("queued attack has no target", zap.Int("index", b.nextAttack), zap.Stringer("card", card.Ref))
	}

	if b.nextAttack < b.numAttacks {
		b.defenseListEnded = [MaxClients]bool{}
		as := b.attackStates[b.nextAttack]
		b.replaceTargetsDueToDestructionOrConditions(&as)
		b.send(&AttackTargetsEvent{AttackNumber: uint16(b.nextAttack), State: as})
		b.applyEffectsAfterAttackTargetResolution(&as)

		card := b.cardForRef(b.attackRefs[b.nextAttack])
		card.computeActionChainResults(b, true, false)
		card.computeAttackBonusesForAll(b, &as)
		if !card.Chain.Flags.Has(ChainFlagEffectsDisabled) {
			b.applyEffectsOnAttackDeclared(card, &as)
		}
		card.computeActionChainResults(b, true, false)
		card.computeAttackBonusesForAll(b, &as)
		if !card.Chain.Flags.Has(ChainFlagEffectsDisabled) {
			b.applyAttackStatAdjustments(card, &as)
		}
		card.computeActionChainResults(b, true, false)
		card.computeAttackBonusesForAll(b, &as)
		card.sendUpdatesIfNeeded(b, false)
		b.forEachPlayer(func(p *Player) { p.sendSetCardUpdates(b, false) })
	} else {
		b.resolving = false
		for z, p := range b.players {
			if p != nil && p.TeamID == b.currentTeamTurn1 {
				b.readyToAdvance(uint8(z))
			}
		}
		b.updateStateFlags(false)
		b.sendHandUpdates(false)
	}
	b.updateStateFlags(false)
	b.sendHandUpdates(false)
}

// computeTurnTeamChains recomputes every chain of the team in turn once all
// defenses are in.
func (b *Battle) computeTurnTeamChains() {
	b.forEachPlayer(func(p *Player) {
		if p.TeamID != b.currentTeamTurn2 {
			return
		}
		p.forEachCard(func(card *Card) { card.computeActionChainResults(b, true, false) })
	})
	b.sendHandUpdates(false)
}

// resolveCurrentAttack applies the attack under the cursor and moves on to
// the next one.
func (b *Battle) resolveCurrentAttack() {
	if b.nextAttack < b.numAttacks {
		if card := b.cardForRef(b.attackRefs[b.nextAttack]); card != nil {
			card.applyAttackResult(b)
		}
		b.nextAttack++
	}
	b.checkForBattleEnd()
	b.copyPrevStates()
	b.advanceToNextResolvableAttack()
	b.sendSetCardUpdatesAndStatuses()
}

// checkForBattleEnd ends the battle once a team is beaten. Under team
// defeat rules a team is beaten when all of its story characters are
// destroyed; otherwise losing any one story character is enough. When both
// teams are beaten at once the winner is ranked.
func (b *Battle) checkForBattleEnd() bool {
	if b.setupPhase == SetupBattleEnded {
		return true
	}
	beaten := [2]bool{}
	if b.mapAndRules.Rules.HPType == field.HPDefeatTeam {
		beaten = [2]bool{true, true}
		b.forEachPlayer(func(p *Player) {
			if p.SC != nil && !p.SC.Flags.IsDestroyed() {
				beaten[p.TeamID&1] = false
			}
		})
	} else {
		b.forEachPlayer(func(p *Player) {
			if p.SC != nil && p.SC.Flags.IsDestroyed() {
				beaten[p.TeamID&1] = true
			}
		})
	}

	switch {
	case !beaten[0] && !beaten[1]:
		return false
	case beaten[0] && beaten[1]:
		b.rankTeamsAndSetWinners(AssistFlagNotTimeLimit)
	default:
		b.forEachPlayer(func(p *Player) {
			p.AssistFlags.Clear(AssistFlagHasWon | AssistFlagWinnerByDefeat | AssistFlagNotTimeLimit)
			if !beaten[p.TeamID&1] {
				p.AssistFlags.Set(AssistFlagHasWon)
			}
		})
	}
	b.setBattleEnded()
	return true
}

// rankTeamsAndSetWinners picks a losing team when no team was beaten
// outright and flags every player of the other team as a winner.
func (b *Battle) rankTeamsAndSetWinners(flags AssistFlags) {
	b.forEachPlayer(func(p *Player) {
		p.AssistFlags.Clear(AssistFlagHasWon | AssistFlagWinnerByDefeat | AssistFlagNotTimeLimit)
	})
	winnerFlags := flags | AssistFlagHasWon | AssistFlagWinnerByDefeat

	loser := b.losingTeamByTally(func(p *Player) int {
		if p.SC != nil && p.SC.Flags.IsDestroyed() {
			return -1
		}
		return 0
	})
	if loser < 0 {
		loser = b.losingTeamByTally(func(p *Player) int {
			if p.SC != nil {
				return int(p.SC.HP)
			}
			return 0
		})
	}
	if loser < 0 {
		loser = b.losingTeamByTally(func(p *Player) int { return int(p.Stats.NumOpponentCardsDestroyed) })
	}
	if loser < 0 {
		loser = b.losingTeamByTally(func(p *Player) int { return int(p.Stats.DamageGiven) })
	}
	if loser < 0 {
		for loser < 0 {
			var rolls [2]int
			b.forEachPlayer(func(p *Player) { rolls[p.TeamID&1] += int(p.rollDice(b, 1)) })
			rolls[0] *= int(b.teamClientCount[1])
			rolls[1] *= int(b.teamClientCount[0])
			switch {
			case rolls[0] < rolls[1]:
				loser = 0
			case rolls[1] < rolls[0]:
				loser = 1
			}
		}
		winnerFlags = flags | AssistFlagHasWon | AssistFlagWinnerByRandom
	}

	b.logger.Debug("teams ranked", zap.Int("losing_team", loser), zap.Stringer("winner_flags", winnerFlags))
	b.forEachPlayer(func(p *Player) {
		if int(p.TeamID) != loser {
			p.AssistFlags.Set(winnerFlags)
		}
		p.updateHandAndEquipState(b, false)
	})
}

// losingTeamByTally sums score per team and returns the team with the lower
// total, or -1 on a tie.
func (b *Battle) losingTeamByTally(score func(p *Player) int) int {
	var totals [2]int
	b.forEachPlayer(func(p *Player) { totals[p.TeamID&1] += score(p) })
	switch {
	case totals[0] < totals[1]:
		return 0
	case totals[1] < totals[0]:
		return 1
	}
	return -1
}
