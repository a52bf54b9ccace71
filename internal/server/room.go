package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magefree/ep3-server-go/internal/game/battle"
	"github.com/magefree/ep3-server-go/internal/game/record"
	"github.com/magefree/ep3-server-go/internal/storage"
)

// Watchers join with this seat and cannot send commands.
const watcherSeat = 0xFF

const peerBufferSize = 256

// peer is one connection attached to a room.
type peer struct {
	seat uint8
	send chan []byte
}

// TournamentLink ties a battle to a pending tournament match. Teams maps the
// battle's team 0 and team 1 to tournament team indices.
type TournamentLink struct {
	TournamentID uuid.UUID
	Teams        [2]int
}

// RoomInfo is the listing view of a room.
type RoomInfo struct {
	ID         uuid.UUID       `json:"id"`
	MapNumber  uint32          `json:"map_number"`
	CreatedAt  time.Time       `json:"created_at"`
	Seats      [4]bool         `json:"seats"`
	Watchers   int             `json:"watchers"`
	Setup      string          `json:"setup_phase"`
	Round      uint16          `json:"round"`
	Ended      bool            `json:"ended"`
	Tournament *TournamentLink `json:"tournament,omitempty"`
}

// Room is one battle and the connections attached to it. Every command goes
// through the room's recorder, so the finished record replays the battle.
type Room struct {
	ID        uuid.UUID
	MapNumber uint32
	CreatedAt time.Time
	Link      *TournamentLink

	recorder *record.Recorder
	logger   *zap.Logger
	onEnd    func(*Room, *record.Record, storage.BattleSummary)

	mu       sync.Mutex
	seats    [battle.MaxClients]*peer
	watchers map[*peer]struct{}
	ended    bool
}

// Broadcast fans an event out to every attached peer. A peer whose buffer
// is full is disconnected, and a dropped player is replaced by a CPU.
func (r *Room) Broadcast(ev battle.Event) {
	data, err := encodeEvent(ev)
	if err != nil {
		r.logger.Error("failed to encode event", zap.Uint8("code", uint8(ev.Code())), zap.Error(err))
		return
	}
	var dropped []uint8
	r.mu.Lock()
	for seat, p := range r.seats {
		if p != nil && !trySend(p, data) {
			r.logger.Warn("dropping slow peer", zap.Int("seat", seat))
			r.removeLocked(p)
			dropped = append(dropped, uint8(seat))
		}
	}
	for p := range r.watchers {
		if !trySend(p, data) {
			r.removeLocked(p)
		}
	}
	r.mu.Unlock()

	// Broadcast runs inside the recorder, so the replacement is submitted
	// once the current command has finished.
	for _, seat := range dropped {
		go r.replaceWithCPU(seat)
	}
}

func trySend(p *peer, data []byte) bool {
	select {
	case p.send <- data:
		return true
	default:
		return false
	}
}

// attach connects a peer to a seat, or as a watcher.
func (r *Room) attach(seat uint8) (*peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &peer{seat: seat, send: make(chan []byte, peerBufferSize)}
	if seat == watcherSeat {
		r.watchers[p] = struct{}{}
	} else {
		if seat >= battle.MaxClients {
			return nil, errBadSeat
		}
		if r.seats[seat] != nil {
			return nil, errSeatTaken
		}
		r.seats[seat] = p
	}
	joined, _ := json.Marshal(outboundFrame{Type: frameJoined, Data: map[string]any{
		"battle_id": r.ID,
		"seat":      seat,
	}})
	p.send <- joined
	return p, nil
}

// detach removes a peer. A seated player that leaves mid-battle is replaced
// by a CPU.
func (r *Room) detach(p *peer) {
	r.mu.Lock()
	attached := r.removeLocked(p)
	r.mu.Unlock()
	if attached && p.seat != watcherSeat {
		r.replaceWithCPU(p.seat)
	}
}

// removeLocked unhooks p and closes its channel. It reports whether p was
// still attached. r.mu must be held.
func (r *Room) removeLocked(p *peer) bool {
	if p.seat == watcherSeat {
		if _, ok := r.watchers[p]; !ok {
			return false
		}
		delete(r.watchers, p)
	} else {
		if p.seat >= battle.MaxClients || r.seats[p.seat] != p {
			return false
		}
		r.seats[p.seat] = nil
	}
	close(p.send)
	return true
}

// replaceWithCPU marks an empty seat's player as disconnected. A seat that
// was taken again in the meantime is left alone.
func (r *Room) replaceWithCPU(seat uint8) {
	r.mu.Lock()
	skip := r.ended || r.seats[seat] != nil
	r.mu.Unlock()
	if skip {
		return
	}
	var name string
	var seated bool
	r.recorder.Do(func(b *battle.Battle) {
		name = b.PlayerName(seat)
		seated = b.InProgress() && b.Player(seat) != nil
	})
	if seated {
		_, _ = r.Submit(context.Background(), 0, battle.SetNameCommand{ClientID: seat, PlayerName: name, Disconnected: true})
	}
}

// sendToPeer delivers a frame to p if it is still attached.
func (r *Room) sendToPeer(p *peer, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.seat == watcherSeat {
		if _, ok := r.watchers[p]; ok {
			trySend(p, data)
		}
		return
	}
	if p.seat < battle.MaxClients && r.seats[p.seat] == p {
		trySend(p, data)
	}
}

// sendTo delivers a frame to one seat, if connected.
func (r *Room) sendTo(seat uint8, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seat < battle.MaxClients && r.seats[seat] != nil {
		trySend(r.seats[seat], data)
	}
}

// Submit runs one command. A rejected command is reported to its sender as
// an error frame carrying a google.rpc.Status.
func (r *Room) Submit(ctx context.Context, seq uint32, cmd battle.Command) (battle.ErrorCode, error) {
	if err := ctx.Err(); err != nil {
		return battle.ErrMalformedCommand, err
	}
	code, err := r.recorder.Dispatch(seq, cmd)
	if code != battle.ErrNone || err != nil {
		st := commandStatus(code, cmd.Name())
		if err != nil && code == battle.ErrMalformedCommand {
			st = errorStatus(err)
		}
		data, _ := json.Marshal(outboundFrame{Type: frameError, Seq: seq, Status: statusJSON(st)})
		r.sendTo(cmd.Client(), data)
	}
	r.checkEnded()
	return code, err
}

// checkEnded hands the finished record to the room's owner once.
func (r *Room) checkEnded() {
	var ended bool
	r.recorder.Do(func(b *battle.Battle) {
		ended = b.SetupPhase() == battle.SetupBattleEnded
		if ended {
			if _, err := b.WinnerTeam(); err != nil {
				r.logger.Warn("battle ended without a clear winner", zap.Error(err))
			}
		}
	})
	if !ended {
		return
	}

	r.mu.Lock()
	already := r.ended
	r.ended = true
	r.mu.Unlock()
	if already {
		return
	}

	rec := r.recorder.Snapshot()
	var summary storage.BattleSummary
	r.recorder.Do(func(b *battle.Battle) {
		summary = storage.Summarize(rec, b)
	})
	r.logger.Info("battle ended",
		zap.Int("winner_team", summary.WinnerTeam),
		zap.Int("rounds", summary.Rounds),
		zap.Int("commands", len(rec.Entries)))
	if r.onEnd != nil {
		r.onEnd(r, rec, summary)
	}
}

// Ended reports whether the battle has reached its result.
func (r *Room) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

// Info returns the listing view of the room.
func (r *Room) Info() RoomInfo {
	info := RoomInfo{ID: r.ID, MapNumber: r.MapNumber, CreatedAt: r.CreatedAt, Tournament: r.Link}
	r.mu.Lock()
	for seat, p := range r.seats {
		info.Seats[seat] = p != nil
	}
	info.Watchers = len(r.watchers)
	info.Ended = r.ended
	r.mu.Unlock()
	r.recorder.Do(func(b *battle.Battle) {
		info.Setup = b.SetupPhase().String()
		info.Round = b.RoundNum()
	})
	return info
}

// close disconnects every peer.
func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, _ := json.Marshal(outboundFrame{Type: frameClosed})
	for seat, p := range r.seats {
		if p != nil {
			trySend(p, data)
			close(p.send)
			r.seats[seat] = nil
		}
	}
	for p := range r.watchers {
		trySend(p, data)
		close(p.send)
		delete(r.watchers, p)
	}
}
