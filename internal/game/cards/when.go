package cards

import "fmt"

// EffectWhen is the trigger timing of a card effect.
type EffectWhen uint8

const (
	WhenNone                                 EffectWhen = 0x00
	WhenCardSet                              EffectWhen = 0x01
	WhenAfterAnyCardAttack                   EffectWhen = 0x02
	WhenBeforeAnyCardAttack                  EffectWhen = 0x03
	WhenBeforeDicePhaseThisTeamTurn          EffectWhen = 0x04
	WhenCardDestroyed                        EffectWhen = 0x05
	WhenAfterSetPhase                        EffectWhen = 0x06
	WhenBeforeMovePhase                      EffectWhen = 0x09
	WhenUnknown0A                            EffectWhen = 0x0A
	WhenAfterAttackTargetResolution          EffectWhen = 0x0B
	WhenAfterThisCardAttack                  EffectWhen = 0x0C
	WhenBeforeThisCardAttack                 EffectWhen = 0x0D
	WhenBeforeActPhase                       EffectWhen = 0x0E
	WhenBeforeDrawPhase                      EffectWhen = 0x0F
	WhenAfterCardMove                        EffectWhen = 0x13
	WhenUnknown15                            EffectWhen = 0x15
	WhenAfterThisCardAttacked                EffectWhen = 0x16
	WhenBeforeThisCardAttacked               EffectWhen = 0x17
	WhenAfterCreatureOrHunterSCAttack        EffectWhen = 0x20
	WhenBeforeCreatureOrHunterSCAttack       EffectWhen = 0x21
	WhenUnknown22                            EffectWhen = 0x22
	WhenBeforeMovePhaseAndAfterCardMoveFinal EffectWhen = 0x27
	WhenUnknown29                            EffectWhen = 0x29
	WhenUnknown2A                            EffectWhen = 0x2A
	WhenUnknown2B                            EffectWhen = 0x2B
	WhenUnknown33                            EffectWhen = 0x33
	WhenUnknown34                            EffectWhen = 0x34
	WhenUnknown35                            EffectWhen = 0x35
	WhenAttackStatOverrides                  EffectWhen = 0x3D
	WhenAttackDamageAdjustment               EffectWhen = 0x3E
	WhenDefenseDamageAdjustment              EffectWhen = 0x3F
	WhenBeforeDicePhaseAllTurnsFinal         EffectWhen = 0x46
)

var effectWhenNames = map[EffectWhen]string{
	WhenNone:                                 "NONE",
	WhenCardSet:                              "CARD_SET",
	WhenAfterAnyCardAttack:                   "AFTER_ANY_CARD_ATTACK",
	WhenBeforeAnyCardAttack:                  "BEFORE_ANY_CARD_ATTACK",
	WhenBeforeDicePhaseThisTeamTurn:          "BEFORE_DICE_PHASE_THIS_TEAM_TURN",
	WhenCardDestroyed:                        "CARD_DESTROYED",
	WhenAfterSetPhase:                        "AFTER_SET_PHASE",
	WhenBeforeMovePhase:                      "BEFORE_MOVE_PHASE",
	WhenUnknown0A:                            "UNKNOWN_0A",
	WhenAfterAttackTargetResolution:          "AFTER_ATTACK_TARGET_RESOLUTION",
	WhenAfterThisCardAttack:                  "AFTER_THIS_CARD_ATTACK",
	WhenBeforeThisCardAttack:                 "BEFORE_THIS_CARD_ATTACK",
	WhenBeforeActPhase:                       "BEFORE_ACT_PHASE",
	WhenBeforeDrawPhase:                      "BEFORE_DRAW_PHASE",
	WhenAfterCardMove:                        "AFTER_CARD_MOVE",
	WhenUnknown15:                            "UNKNOWN_15",
	WhenAfterThisCardAttacked:                "AFTER_THIS_CARD_ATTACKED",
	WhenBeforeThisCardAttacked:               "BEFORE_THIS_CARD_ATTACKED",
	WhenAfterCreatureOrHunterSCAttack:        "AFTER_CREATURE_OR_HUNTER_SC_ATTACK",
	WhenBeforeCreatureOrHunterSCAttack:       "BEFORE_CREATURE_OR_HUNTER_SC_ATTACK",
	WhenUnknown22:                            "UNKNOWN_22",
	WhenBeforeMovePhaseAndAfterCardMoveFinal: "BEFORE_MOVE_PHASE_AND_AFTER_CARD_MOVE_FINAL",
	WhenUnknown29:                            "UNKNOWN_29",
	WhenUnknown2A:                            "UNKNOWN_2A",
	WhenUnknown2B:                            "UNKNOWN_2B",
	WhenUnknown33:                            "UNKNOWN_33",
	WhenUnknown34:                            "UNKNOWN_34",
	WhenUnknown35:                            "UNKNOWN_35",
	WhenAttackStatOverrides:                  "ATTACK_STAT_OVERRIDES",
	WhenAttackDamageAdjustment:               "ATTACK_DAMAGE_ADJUSTMENT",
	WhenDefenseDamageAdjustment:              "DEFENSE_DAMAGE_ADJUSTMENT",
	WhenBeforeDicePhaseAllTurnsFinal:         "BEFORE_DICE_PHASE_ALL_TURNS_FINAL",
}

func (v EffectWhen) String() string {
	if name, ok := effectWhenNames[v]; ok {
		return name
	}
	return fmt.Sprintf("WHEN_%02X", uint8(v))
}

var effectWhenByName = func() map[string]EffectWhen {
	ret := make(map[string]EffectWhen, len(effectWhenNames))
	for v, name := range effectWhenNames {
		ret[name] = v
	}
	return ret
}()

// ParseEffectWhen returns the EffectWhen with the given name.
func ParseEffectWhen(name string) (EffectWhen, error) {
	if name == "" {
		return 0, nil
	}
	if v, ok := effectWhenByName[name]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown EffectWhen %q", name)
}
