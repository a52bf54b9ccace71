package battle

import (
	"github.com/magefree/ep3-server-go/internal/game/field"
)

// EventCode identifies the kind of a state delta sent to clients.
type EventCode uint8

const (
	EventHandUpdate         EventCode = 0x02
	EventStateFlags         EventCode = 0x03
	EventShortStatuses      EventCode = 0x04
	EventMapUpdate          EventCode = 0x05
	EventEffect             EventCode = 0x06
	EventDecks              EventCode = 0x07
	EventActionState        EventCode = 0x09
	EventPlayerNames        EventCode = 0x1C
	EventActionResult       EventCode = 0x1E
	EventAttackTargets      EventCode = 0x29
	EventAnimation          EventCode = 0x2C
	EventSubtractAllyATK    EventCode = 0x33
	EventPhotonBlastStatus  EventCode = 0x35
	EventPlayerStats        EventCode = 0x39
	EventLoadEnvironment    EventCode = 0x3B
	EventSetCardLog         EventCode = 0x4A
	EventChainUpdate        EventCode = 0x4C
	EventMetadataUpdate     EventCode = 0x4D
	EventConditionsUpdate   EventCode = 0x4E
	EventClearSetConditions EventCode = 0x4F
	EventTrapTileLocations  EventCode = 0x50
	EventRejectBattleStart  EventCode = 0x53
)

// Event is one state delta published by a battle.
type Event interface {
	Code() EventCode
}

// Broadcaster receives every event a battle publishes, in order. Delivery is
// fire-and-forget; implementations must not call back into the battle.
type Broadcaster interface {
	Broadcast(ev Event)
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(ev Event)

// Broadcast calls f(ev).
func (f BroadcasterFunc) Broadcast(ev Event) { f(ev) }

// EventLog is a Broadcaster that keeps every event, for tests and replays.
type EventLog struct {
	Events []Event
}

// Broadcast appends ev.
func (l *EventLog) Broadcast(ev Event) { l.Events = append(l.Events, ev) }

// OfCode returns the logged events with the given code.
func (l *EventLog) OfCode(code EventCode) []Event {
	var ret []Event
	for _, ev := range l.Events {
		if ev.Code() == code {
			ret = append(ret, ev)
		}
	}
	return ret
}

// Reset forgets all logged events.
func (l *EventLog) Reset() { l.Events = nil }

type HandUpdateEvent struct {
	ClientID uint8
	State    HandAndEquipState
}

func (HandUpdateEvent) Code() EventCode { return EventHandUpdate }

type StateFlagsEvent struct {
	Flags StateFlags
}

func (StateFlagsEvent) Code() EventCode { return EventStateFlags }

type ShortStatusesEvent struct {
	ClientID uint8
	Statuses [NumShortStatuses]CardShortStatus
}

func (ShortStatusesEvent) Code() EventCode { return EventShortStatuses }

type MapUpdateEvent struct {
	Map         field.Map
	Overlay     [field.GridSize][field.GridSize]uint8
	StartBattle bool
}

func (MapUpdateEvent) Code() EventCode { return EventMapUpdate }

type EffectEvent struct {
	Effect EffectResult
}

func (EffectEvent) Code() EventCode { return EventEffect }

// DecksEvent lists the registered decks. Absent entries have team 0xFF.
type DecksEvent struct {
	Present [MaxClients]bool
	Entries [MaxClients]DeckEntry
}

func (DecksEvent) Code() EventCode { return EventDecks }

type ActionStateEvent struct {
	ClientID uint8
	State    ActionState
}

func (ActionStateEvent) Code() EventCode { return EventActionState }

type PlayerNamesEvent struct {
	Names [MaxClients]string
}

func (PlayerNamesEvent) Code() EventCode { return EventPlayerNames }

// ActionResultEvent answers one client command.
type ActionResultEvent struct {
	Sequence      uint32
	ErrorCode     int32
	ResponsePhase uint8
}

func (ActionResultEvent) Code() EventCode { return EventActionResult }

type AttackTargetsEvent struct {
	AttackNumber uint16
	State        ActionState
}

func (AttackTargetsEvent) Code() EventCode { return EventAttackTargets }

// AnimationEvent asks clients to play a field animation such as a warp.
type AnimationEvent struct {
	ChangeType uint8
	ClientID   uint8
	CardRefs   [3]CardRef
	Loc        field.Location
	TrapCardID uint16
}

func (AnimationEvent) Code() EventCode { return EventAnimation }

type SubtractAllyATKEvent struct {
	ClientID uint8
	AllyCost uint8
	CardRef  CardRef
}

func (SubtractAllyATKEvent) Code() EventCode { return EventSubtractAllyATK }

type PhotonBlastStatusEvent struct {
	ClientID uint8
	Accepted bool
	CardRef  CardRef
}

func (PhotonBlastStatusEvent) Code() EventCode { return EventPhotonBlastStatus }

type PlayerStatsEvent struct {
	Stats [MaxClients]PlayerBattleStats
}

func (PlayerStatsEvent) Code() EventCode { return EventPlayerStats }

type LoadEnvironmentEvent struct{}

func (LoadEnvironmentEvent) Code() EventCode { return EventLoadEnvironment }

type SetCardLogEvent struct {
	ClientID uint8
	RoundNum uint16
	CardRefs []CardRef
}

func (SetCardLogEvent) Code() EventCode { return EventSetCardLog }

// ChainUpdateEvent carries the action chain of one card slot. Index 0 is the
// SC and 1..8 the set cards.
type ChainUpdateEvent struct {
	ClientID uint8
	Index    uint8
	Chain    ActionChain
}

func (ChainUpdateEvent) Code() EventCode { return EventChainUpdate }

type MetadataUpdateEvent struct {
	ClientID uint8
	Index    uint8
	Metadata ActionMetadata
}

func (MetadataUpdateEvent) Code() EventCode { return EventMetadataUpdate }

type ConditionsUpdateEvent struct {
	ClientID   uint8
	Index      uint8
	Conditions Conditions
}

func (ConditionsUpdateEvent) Code() EventCode { return EventConditionsUpdate }

// ClearSetConditionsEvent clears conditions on the slots set in Mask; bit 0 is
// the SC and bit n the set card n-1.
type ClearSetConditionsEvent struct {
	ClientID uint8
	Mask     uint16
}

func (ClearSetConditionsEvent) Code() EventCode { return EventClearSetConditions }

// TrapTileLocationsEvent lists the active trap tile of each trap type, or
// 0xFF coordinates when the type is absent.
type TrapTileLocationsEvent struct {
	Locations [NumTrapTypes][2]uint8
}

func (TrapTileLocationsEvent) Code() EventCode { return EventTrapTileLocations }

type RejectBattleStartEvent struct {
	Setup        SetupPhase
	Registration RegistrationPhase
}

func (RejectBattleStartEvent) Code() EventCode { return EventRejectBattleStart }
