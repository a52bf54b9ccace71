package battle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Digest returns a SHA-256 hex digest of the rules-relevant battle state.
// Two battles that received the same commands and random values have the
// same digest; ids and wall clock times are not part of it.
func (b *Battle) Digest() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "BATTLE:%d|%d|%d|%d|%d|%d|%d|%d\n",
		b.setupPhase, b.registrationPhase, b.battlePhase, b.actionSubphase,
		b.roundNum, b.firstTeamTurn, b.currentTeamTurn1, b.currentTeamTurn2)
	fmt.Fprintf(&buf, "TEAMS:%v|%v|%v|%v\n",
		b.teamEXP, b.teamDiceBonus, b.teamNumCardsDestroyed, b.teamNumAllyFCsDestroyed)
	fmt.Fprintf(&buf, "ATTACKS:%d|%d|%d\n", b.numPendingAttacks, b.numAttacks, b.nextAttack)

	for _, p := range b.players {
		if p == nil {
			continue
		}
		fmt.Fprintf(&buf, "PLAYER:%d|%d|%04X|%d|%d|%v|%08X|%d\n",
			p.ClientID, p.TeamID, p.SCCardID, p.ATKPoints, p.DEFPoints,
			p.DiceResults, uint32(p.AssistFlags), p.AssistDelayTurns)
		fmt.Fprintf(&buf, "  STATS:%+v\n", p.Stats)
		for z := 0; z < p.HandSize(); z++ {
			fmt.Fprintf(&buf, "  HAND:%04X\n", uint16(p.HandRef(z)))
		}
		fmt.Fprintf(&buf, "  ASSIST:%04X\n", uint16(p.AssistRef()))
		writeCardDigest(&buf, "SC", p.SC)
		for _, c := range p.SetCards {
			writeCardDigest(&buf, "SET", c)
		}
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

func writeCardDigest(buf *bytes.Buffer, kind string, c *Card) {
	if c == nil {
		return
	}
	fmt.Fprintf(buf, "  %s:%04X|%d|%08X|%d,%d,%d\n",
		kind, uint16(c.Ref), c.HP, uint32(c.Flags), c.Loc.X, c.Loc.Y, c.Loc.Direction)
}
