package battle

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/field"
)

// SetMapAndRules installs the map and rules chosen during setup. It is
// ignored once the player count is known or the battle has started.
func (b *Battle) SetMapAndRules(mr field.MapAndRules) bool {
	if b.inProgress || b.setupPhase != SetupRegistration || b.mapAndRules.NumPlayers != 0 ||
		b.registrationPhase == RegistrationRegistered || b.registrationPhase == RegistrationBattleStarted {
		return false
	}
	*b.mapAndRules = mr
	rules := &b.mapAndRules.Rules
	if b.options.DisableTimeLimits {
		rules.OverallTimeLimit = 0
		rules.PhaseTimeLimit = 0
	}
	if rules.CheckAndResetInvalidFields() {
		b.logger.Warn("invalid rules were reset", zap.String("map", mr.Name))
	}
	if b.mapAndRules.NumPlayersPerTeam == 0 {
		b.mapAndRules.NumPlayersPerTeam = b.mapAndRules.NumPlayers >> 1
	}
	b.updateRegistrationPhase()
	return true
}

// SetOwnedCards records how many copies of each card a client owns; deck
// verification checks registered decks against it.
func (b *Battle) SetOwnedCards(clientID uint8, counts []uint8) {
	if clientID < MaxClients {
		b.ownedCards[clientID] = append([]uint8(nil), counts...)
	}
}

// RegisterDeck verifies and registers a client's deck. Registration closes
// once every seat is filled.
func (b *Battle) RegisterDeck(clientID uint8, entry DeckEntry) error {
	if b.inProgress {
		return nil
	}
	if b.setupPhase == SetupRegistration &&
		b.registrationPhase != RegistrationRegistered &&
		b.registrationPhase != RegistrationBattleStarted {
		if clientID >= MaxClients {
			return nil
		}
		if !b.options.SkipDeckVerify {
			if code := b.VerifyDeck(entry.CardIDs, b.ownedCards[clientID]); code != ErrNone {
				return fmt.Errorf("register deck for client %d: %w", clientID, code)
			}
		}
		if !b.options.SkipD1D2Replace {
			b.replaceD1D2RankCardsWithAttack(&entry.CardIDs)
		}
		entry.ClientID = clientID
		b.decks[clientID] = &entry
		b.logger.Debug("deck registered",
			zap.Uint8("client_id", clientID),
			zap.Uint8("team_id", entry.TeamID),
			zap.String("deck", entry.Name))
	}
	b.sendAllStateUpdates()
	b.updateRegistrationPhase()
	return nil
}

// SetPlayerName records a player's display name before registration
// completes and republishes all names.
func (b *Battle) SetPlayerName(clientID uint8, name string) {
	if clientID < MaxClients && b.registrationPhase < RegistrationRegistered {
		b.names[clientID] = name
	}
	b.sendNames()
}

// ReplaceWithCPU hands a disconnected player's seat to the computer, which
// makes it eligible for ally interference.
func (b *Battle) ReplaceWithCPU(clientID uint8) {
	if clientID >= MaxClients {
		return
	}
	if d := b.decks[clientID]; d != nil && !d.IsCPUPlayer {
		d.IsCPUPlayer = true
		b.logger.Info("seat taken over by cpu", zap.Uint8("client_id", clientID))
		b.sendHandUpdates(false)
	}
}

// StartBattle starts the battle if registration is complete. Otherwise
// every registration is discarded and a rejection is broadcast.
func (b *Battle) StartBattle() (bool, error) {
	if b.inProgress {
		return false, nil
	}
	if !b.updateRegistrationPhase() {
		b.send(&RejectBattleStartEvent{Setup: b.setupPhase, Registration: b.registrationPhase})
		b.decks = [MaxClients]*DeckEntry{}
		b.logger.Info("battle start rejected", zap.Stringer("registration", b.registrationPhase))
		return false, nil
	}
	if err := b.setupAndStartBattle(); err != nil {
		return false, err
	}
	b.inProgress = true
	return true, nil
}

// EndStarterRoll marks a client as done viewing the first-turn roll. When
// everyone is, the hand redraw option opens.
func (b *Battle) EndStarterRoll(clientID uint8) {
	if p := b.player(clientID); p != nil {
		p.AssistFlags.Set(AssistFlagReadyToEndStarterRoll)
		p.updateHandAndEquipState(b, false)
	}
	if b.setupPhase != SetupStarterRolls {
		return
	}
	for _, p := range b.players {
		if p != nil && !p.AssistFlags.Has(AssistFlagReadyToEndStarterRoll) {
			return
		}
	}
	b.setupPhase = SetupHandRedrawOption
	b.updateStateFlags(false)
}

// RedrawInitialHand is the one-time mulligan of the opening hand.
func (b *Battle) RedrawInitialHand(clientID uint8) ErrorCode {
	if b.setupPhase != SetupHandRedrawOption {
		return ErrWrongPhase
	}
	p := b.player(clientID)
	if clientID >= MaxClients {
		return ErrInvalidCardIndex
	}
	if p == nil {
		return ErrNoSuchPlayer
	}
	p.DoMulligan(b)
	return ErrNone
}

// EndRedrawPhase marks a client as happy with its opening hand. The battle
// proper starts when every client is.
func (b *Battle) EndRedrawPhase(clientID uint8) ErrorCode {
	if b.setupPhase != SetupHandRedrawOption && b.setupPhase != SetupStarterRolls {
		return ErrWrongPhase
	}
	p := b.player(clientID)
	if p == nil {
		return ErrNoSuchPlayer
	}
	b.doneRedraw[clientID] = true
	p.AssistFlags.Set(AssistFlagReadyToEndPhase)
	p.updateHandAndEquipState(b, false)
	for z, other := range b.players {
		if other != nil && !b.doneRedraw[z] {
			return ErrNone
		}
	}
	b.setBattleStarted()
	return ErrNone
}

// EndPhase signals that a client of the team in turn is done with a
// non-action phase.
func (b *Battle) EndPhase(clientID uint8) {
	b.readyToAdvance(clientID)
}

// DiscardFromHand discards a hand card during the draw phase.
func (b *Battle) DiscardFromHand(clientID uint8, ref CardRef) ErrorCode {
	if b.setupPhase != SetupMainBattle || b.battlePhase != PhaseDraw {
		return ErrWrongPhase
	}
	if clientID >= MaxClients {
		return ErrInvalidCardIndex
	}
	p := b.player(clientID)
	if p == nil {
		return ErrNoSuchPlayer
	}
	if p.AssistFlags.Has(AssistFlagIsSkippingTurn) {
		return ErrAttackerSkipping
	}
	code := ErrNone
	if !p.DiscardRefFromHand(b, ref) {
		// A card that is not in the hand is reported with a positive code.
		code = 1
	}
	p.updateHandAndEquipState(b, false)
	return code
}

// SetCardFromHand sets a hand card into a field slot during the set phase.
func (b *Battle) SetCardFromHand(clientID uint8, ref CardRef, slot uint8, loc field.Location, assistTarget uint8) ErrorCode {
	if b.setupPhase != SetupMainBattle || b.battlePhase != PhaseSet {
		return ErrWrongPhase
	}
	if ref == NoRef || clientID >= MaxClients {
		return ErrInvalidCardIndex
	}
	p := b.player(clientID)
	if p == nil {
		return ErrNoSuchPlayer
	}
	b.setCardError = ErrNone
	p.SetCardFromHand(b, ref, slot, &loc, assistTarget, false)
	return b.setCardError
}

// MoveCard moves the SC (index 0) or a set card during the move phase.
func (b *Battle) MoveCard(clientID uint8, index uint8, loc field.Location) ErrorCode {
	if b.setupPhase != SetupMainBattle || b.battlePhase != PhaseMove {
		return ErrWrongPhase
	}
	if clientID >= MaxClients {
		return ErrInvalidCardIndex
	}
	p := b.player(clientID)
	if p == nil {
		return ErrNoSuchPlayer
	}
	b.moveError = ErrNone
	p.MoveCardToLocation(b, index, loc)
	return b.moveError
}

// DeclareAction queues an attack or a defense during the action phase. An
// action that needs an ally's attack points is parked until the ally
// answers; it is reported as accepted.
func (b *Battle) DeclareAction(clientID uint8, pa ActionState) ErrorCode {
	if b.setupPhase != SetupMainBattle || b.battlePhase != PhaseAction {
		return ErrWrongPhase
	}
	code := b.enqueueAttackOrDefense(clientID, &pa)
	if code.ok {
		b.send(&ActionStateEvent{ClientID: clientID, State: pa})
	}
	return code.code
}

type enqueueResult struct {
	ok   bool
	code ErrorCode
}

func (b *Battle) enqueueAttackOrDefense(clientID uint8, pa *ActionState) enqueueResult {
	if clientID >= MaxClients {
		return enqueueResult{code: ErrInvalidCardIndex}
	}
	p := b.player(clientID)
	if p == nil {
		return enqueueResult{code: ErrNoSuchPlayer}
	}

	if pa.Actions.At(0) == NoRef {
		if pa.DefenseRef != NoRef {
			if pa.Actions.Len() == 0 {
				pa.Actions.Add(pa.DefenseRef)
			} else {
				pa.Actions.Set(0, pa.DefenseRef)
			}
		}
	} else {
		pa.DefenseRef = pa.Actions.At(0)
	}

	if ok, code := b.IsActionLegal(pa); !ok {
		b.logger.Debug("action rejected", zap.Uint8("client_id", clientID), zap.Error(code))
		return enqueueResult{code: code}
	}

	var code ErrorCode
	switch pending, allyCode := b.requestAllyATKIfNeeded(pa); {
	case pending:
		return enqueueResult{ok: true}
	case allyCode == ErrAllyInsufficientATK:
		return enqueueResult{code: allyCode}
	default:
		// A missing setter is reported but the action still goes through.
		code = allyCode
	}

	if b.numPendingAttacks >= MaxQueued {
		return enqueueResult{code: ErrActionQueueFull}
	}
	b.pendingAttacks[b.numPendingAttacks] = *pa
	b.numPendingAttacks++
	p.setActionCardsForActionState(b, pa)
	b.markDeclaredCards(pa)
	return enqueueResult{ok: true, code: code}
}

// markDeclaredCards flags the attacker of an attack, or the defended card of
// a defense.
func (b *Battle) markDeclaredCards(pa *ActionState) {
	if card := b.cardForRef(b.validRefOrNone(pa.AttackerRef, 1)); card != nil {
		card.Flags.Set(CardFlagAttacking)
		card.player(b).sendShortStatusesIfNeeded(b, false)
	}
	if b.cardForRef(b.validRefOrNone(pa.OriginalAttackerRef, 2)) != nil {
		if target := b.cardForRef(pa.Targets.At(0)); target != nil {
			target.Flags.Set(CardFlagDefending)
			target.player(b).sendShortStatusesIfNeeded(b, false)
		}
	}
}

// requestAllyATKIfNeeded asks the allies of the setter to pay for an action
// card with an ally cost, such as a photon blast. It reports whether the
// action now waits for the ally's answer.
func (b *Battle) requestAllyATKIfNeeded(pa *ActionState) (bool, ErrorCode) {
	var def *cards.Definition
	ref := NoRef
	for z := 0; z < MaxActionCards; z++ {
		r := pa.Actions.At(z)
		if r == NoRef {
			break
		}
		if d := b.definitionForRef(r); d != nil && d.AllyCost > 0 {
			def, ref = d, r
			break
		}
	}
	if def == nil {
		return false, ErrNone
	}
	setterID := ref.ClientID()
	setter := b.player(setterID)
	if setter == nil {
		return false, ErrAllySetterMissing
	}
	sufficient := false
	for z, ally := range b.players {
		if uint8(z) != setterID && ally != nil && ally.TeamID == setter.TeamID && ally.ATKPoints >= def.AllyCost {
			sufficient = true
		}
	}
	if !sufficient {
		return false, ErrAllyInsufficientATK
	}
	b.pbActionStates[setterID] = *pa
	b.hasDonePB[setterID] = true
	b.hasDonePBWithClient[setterID] = [MaxClients]bool{}
	b.send(&SubtractAllyATKEvent{ClientID: setterID, AllyCost: def.AllyCost, CardRef: ref})
	return true, ErrNone
}

// AnswerPhotonBlast handles an ally's answer to a request for attack
// points. A zero reason only records that the ally saw the request.
func (b *Battle) AnswerPhotonBlast(ref CardRef, allyClientID uint8, reason uint8) {
	clientID := ref.ClientID()
	if clientID >= MaxClients {
		return
	}
	p := b.player(clientID)
	ally := b.player(allyClientID)
	if p == nil || ally == nil || !b.hasDonePB[clientID] {
		return
	}

	if reason == 0 {
		b.hasDonePBWithClient[clientID][allyClientID] = true
		accepted := true
		// Only the first ally found is consulted.
		for z, other := range b.players {
			if uint8(z) != clientID && other != nil && other.TeamID == p.TeamID {
				if !b.hasDonePBWithClient[clientID][z] {
					accepted = false
				}
				break
			}
		}
		if accepted {
			b.send(&PhotonBlastStatusEvent{ClientID: clientID, Accepted: false, CardRef: ref})
		}
		return
	}

	def := b.definitionForRef(ref)
	if def == nil || def.AllyCost > ally.ATKPoints {
		return
	}
	pa := b.pbActionStates[clientID]
	if b.numPendingAttacks >= MaxQueued {
		return
	}
	// The slot written is one past the count, so the first pending slot
	// is skipped.
	b.numPendingAttacks++
	if b.numPendingAttacks < MaxQueued {
		b.pendingAttacks[b.numPendingAttacks] = pa
	}
	p.setActionCardsForActionState(b, &pa)
	ally.subtractATKPoints(def.AllyCost)
	if def.AllyCost > 0 {
		ally.updateHandAndEquipState(b, false)
	}
	if attacker := b.cardForRef(pa.AttackerRef); attacker != nil {
		attacker.Flags.Set(CardFlagAttacking)
		attacker.player(b).sendShortStatusesIfNeeded(b, false)
	}
	orig := b.cardForRef(b.validRefOrNone(pa.OriginalAttackerRef, 9))
	if target := b.cardForRef(pa.Targets.At(0)); orig != nil && target != nil {
		target.Flags.Set(CardFlagDefending)
		target.player(b).sendShortStatusesIfNeeded(b, false)
	}
	b.hasDonePB[clientID] = false
	b.send(&PhotonBlastStatusEvent{ClientID: clientID, Accepted: true, CardRef: ref})
}

// EndAttackList signals that a client has declared all of its attacks.
func (b *Battle) EndAttackList(clientID uint8) ErrorCode {
	if b.setupPhase != SetupMainBattle {
		return ErrWrongPhase
	}
	b.endAttackListForClient(clientID)
	return ErrNone
}

// EndDefenseList signals that a defending client has declared its defenses
// against the attack being resolved. Once every living defender is done,
// the attack is applied and the next one is announced.
func (b *Battle) EndDefenseList(clientID uint8) {
	if clientID >= MaxClients {
		return
	}
	b.defenseListEnded[clientID] = true

	allEnded := true
	for z, p := range b.players {
		if p != nil && p.TeamID != b.currentTeamTurn1 && p.IsAlive() && !b.defenseListEnded[z] {
			allEnded = false
			break
		}
	}
	if allEnded && !b.defenseStarted {
		b.forEachPlayer(func(p *Player) {
			p.AssistFlags.Clear(AssistFlagReadyToEndActionPhase)
			p.updateHandAndEquipState(b, false)
		})
		b.computeTurnTeamChains()
		b.defenseStarted = true
	} else if p := b.player(clientID); p != nil {
		p.AssistFlags.Set(AssistFlagReadyToEndActionPhase)
		p.updateHandAndEquipState(b, false)
	}
	if b.defenseStarted {
		b.resolveCurrentAttack()
		b.defenseStarted = false
	}
}

// EndTurn refills a client's hand when drawing is allowed.
func (b *Battle) EndTurn(clientID uint8) {
	if p := b.player(clientID); p != nil && p.drawCardsAllowed(b) {
		p.drawHand(b, 0)
	}
}

// EndBattle acknowledges the end of the battle.
func (b *Battle) EndBattle() {
	if b.setupPhase == SetupBattleEnded {
		b.finished = true
	}
}

// ForceReplaceAssist sets an assist card for a client, or discards the set
// one when cardID is 0xFFFF.
func (b *Battle) ForceReplaceAssist(clientID uint8, cardID uint16) error {
	p := b.player(clientID)
	if p == nil {
		return fmt.Errorf("replace assist: client %d is not in the battle", clientID)
	}
	if cardID == 0xFFFF {
		p.discardSetAssistCard(b)
		b.checkForDestroyedCards()
		b.checkForBattleEnd()
		return nil
	}
	if !p.replaceAssistCardByID(b, cardID) {
		return fmt.Errorf("replace assist: card %04X cannot be set for client %d", cardID, clientID)
	}
	return nil
}

// ForceDestroyFieldCharacter destroys the visibleIndex-th set card of a
// client, counting only occupied slots.
func (b *Battle) ForceDestroyFieldCharacter(clientID uint8, visibleIndex int) error {
	p := b.player(clientID)
	if p == nil {
		return fmt.Errorf("destroy field character: client %d is not in the battle", clientID)
	}
	for _, card := range p.SetCards {
		if card == nil {
			continue
		}
		if visibleIndex > 0 {
			visibleIndex--
			continue
		}
		card.Flags.Set(CardFlagDestroyed)
		b.checkForDestroyedCards()
		b.checkForBattleEnd()
		return nil
	}
	return fmt.Errorf("destroy field character: client %d has no such card", clientID)
}

// ForceBattleResult ends the battle with the given client's team as the
// winner, or as the loser when setWinner is false.
func (b *Battle) ForceBattleResult(clientID uint8, setWinner bool) error {
	specified := b.player(clientID)
	if specified == nil {
		return fmt.Errorf("force result: client %d is not in the battle", clientID)
	}
	b.forEachPlayer(func(p *Player) {
		p.AssistFlags.Clear(AssistFlagHasWon | AssistFlagWinnerByDefeat | AssistFlagNotTimeLimit)
		if (p.TeamID == specified.TeamID) == setWinner {
			p.AssistFlags.Set(AssistFlagHasWon)
		}
		p.updateHandAndEquipState(b, true)
	})
	b.setBattleEnded()
	return nil
}
