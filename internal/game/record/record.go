// Package record captures the command log of a battle so that it can be
// stored and replayed. A record holds every command a battle received, the
// clock reading at each command, and every random value it consumed.
package record

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magefree/ep3-server-go/internal/game/battle"
	"github.com/magefree/ep3-server-go/internal/game/cards"
	"github.com/magefree/ep3-server-go/internal/game/dice"
)

const formatVersion = 1

// Settings are the battle options that change rules outcomes. They are
// stored with the record so a replay runs under the same rules.
type Settings struct {
	DisableInterference     bool
	AllowNonCPUInterference bool
	SkipDeckVerify          bool
	SkipD1D2Replace         bool
	DisableTimeLimits       bool
	Tournament              bool
	TrapCardIDs             [battle.NumTrapTypes][]uint16
}

func (s Settings) apply(opts *battle.Options) {
	opts.DisableInterference = s.DisableInterference
	opts.AllowNonCPUInterference = s.AllowNonCPUInterference
	opts.SkipDeckVerify = s.SkipDeckVerify
	opts.SkipD1D2Replace = s.SkipD1D2Replace
	opts.DisableTimeLimits = s.DisableTimeLimits
	opts.Tournament = s.Tournament
	opts.TrapCardIDs = s.TrapCardIDs
}

// Entry is one dispatched command.
type Entry struct {
	Sequence uint32
	At       time.Time
	Command  battle.Command
	Result   battle.ErrorCode
}

// Record is the complete input of one battle.
type Record struct {
	BattleID     uuid.UUID
	Seed         int64
	Settings     Settings
	StartedAt    time.Time
	Entries      []Entry
	RandomValues []uint32
	// FinalDigest is the battle digest after the last entry.
	FinalDigest string
}

// Recorder runs a battle and records everything it is given. It serializes
// commands, so one recorder may be shared by several connections.
type Recorder struct {
	mu     sync.Mutex
	logger *zap.Logger
	clock  func() time.Time
	now    time.Time
	rec    *Record
	rng    *dice.Recorder
	battle *battle.Battle
}

// NewRecorder creates a battle seeded with seed. opts supplies the logger,
// broadcaster and clock; its random source and rules settings are replaced.
func NewRecorder(index cards.Lookup, seed int64, settings Settings, opts battle.Options) *Recorder {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}
	r := &Recorder{
		logger: opts.Logger,
		clock:  clock,
		now:    clock(),
	}
	r.rec = &Record{Seed: seed, Settings: settings, StartedAt: r.now}
	r.rng = dice.NewRecorder(dice.NewGenerator(seed), func(v uint32) {
		r.rec.RandomValues = append(r.rec.RandomValues, v)
	})

	settings.apply(&opts)
	opts.Random = r.rng
	opts.Now = func() time.Time { return r.now }
	r.battle = battle.New(index, opts)
	r.rec.BattleID = r.battle.ID
	return r
}

// Battle returns the recorded battle. Callers must not send it commands
// directly or the record will be incomplete.
func (r *Recorder) Battle() *battle.Battle {
	return r.battle
}

// Dispatch runs a command against the battle and appends it to the record.
func (r *Recorder) Dispatch(seq uint32, cmd battle.Command) (battle.ErrorCode, error) {
	if cmd == nil {
		return battle.ErrMalformedCommand, fmt.Errorf("record: nil command")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.now = r.clock()
	code, err := r.battle.Dispatch(seq, cmd)
	r.rec.Entries = append(r.rec.Entries, Entry{Sequence: seq, At: r.now, Command: cmd, Result: code})
	return code, err
}

// Do runs fn with exclusive access to the battle, for calls outside the
// command protocol such as reading state.
func (r *Recorder) Do(fn func(b *battle.Battle)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.battle)
}

// Snapshot returns a copy of the record so far, including the current
// battle digest.
func (r *Recorder) Snapshot() *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := *r.rec
	out.Entries = append([]Entry(nil), r.rec.Entries...)
	out.RandomValues = append([]uint32(nil), r.rec.RandomValues...)
	out.FinalDigest = r.battle.Digest()
	return &out
}

// Replay rebuilds a battle by feeding it the recorded commands with the
// recorded random values and clock readings. It fails if any command gives
// a different result or the final digest does not match.
func Replay(index cards.Lookup, rec *Record, opts battle.Options) (*battle.Battle, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	now := rec.StartedAt
	rec.Settings.apply(&opts)
	opts.Random = dice.NewRecorder(dice.NewStream(rec.RandomValues, dice.NewGenerator(rec.Seed)), nil)
	opts.Now = func() time.Time { return now }

	b := battle.New(index, opts)
	b.ID = rec.BattleID
	for i, e := range rec.Entries {
		now = e.At
		code, _ := b.Dispatch(e.Sequence, e.Command)
		if code != e.Result {
			return b, fmt.Errorf("replay entry %d (%s): result %d, recorded %d", i, e.Command.Name(), code, e.Result)
		}
	}
	if rec.FinalDigest != "" {
		if digest := b.Digest(); digest != rec.FinalDigest {
			return b, fmt.Errorf("replay of %s diverged: digest %s, recorded %s", rec.BattleID, digest, rec.FinalDigest)
		}
	}
	opts.Logger.Debug("battle replayed",
		zap.String("battle_id", rec.BattleID.String()),
		zap.Int("entries", len(rec.Entries)))
	return b, nil
}

type header struct {
	Version    int
	BattleID   uuid.UUID
	EntryCount int
	// Checksum is the SHA-256 of the gob-encoded record body.
	Checksum string
}

// Encode writes rec as gzip-compressed gob: a header followed by the body.
func Encode(w io.Writer, rec *Record) error {
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(rec); err != nil {
		return fmt.Errorf("encode record body: %w", err)
	}
	sum := sha256.Sum256(body.Bytes())

	zw := gzip.NewWriter(w)
	enc := gob.NewEncoder(zw)
	h := header{
		Version:    formatVersion,
		BattleID:   rec.BattleID,
		EntryCount: len(rec.Entries),
		Checksum:   hex.EncodeToString(sum[:]),
	}
	if err := enc.Encode(&h); err != nil {
		return fmt.Errorf("encode record header: %w", err)
	}
	if err := enc.Encode(body.Bytes()); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}
	return nil
}

// Decode reads a record written by Encode and verifies its checksum.
func Decode(r io.Reader) (*Record, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open record: %w", err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var h header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("decode record header: %w", err)
	}
	if h.Version != formatVersion {
		return nil, fmt.Errorf("unsupported record version: %d", h.Version)
	}
	var body []byte
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	sum := sha256.Sum256(body)
	if hex.EncodeToString(sum[:]) != h.Checksum {
		return nil, fmt.Errorf("record %s: checksum mismatch", h.BattleID)
	}
	var rec Record
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record body: %w", err)
	}
	if len(rec.Entries) != h.EntryCount {
		return nil, fmt.Errorf("record %s: %d entries, header says %d", h.BattleID, len(rec.Entries), h.EntryCount)
	}
	return &rec, nil
}

// Marshal encodes rec into a byte slice.
func Marshal(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a byte slice produced by Marshal.
func Unmarshal(data []byte) (*Record, error) {
	return Decode(bytes.NewReader(data))
}

func fileName(dir string, id uuid.UUID) string {
	return filepath.Join(dir, id.String()+".ep3rec")
}

// SaveToFile writes rec into dir, creating the directory if needed.
func SaveToFile(dir string, rec *Record) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create record directory: %w", err)
	}
	f, err := os.Create(fileName(dir, rec.BattleID))
	if err != nil {
		return fmt.Errorf("create record file: %w", err)
	}
	if err := Encode(f, rec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFromFile reads the record of battle id from dir.
func LoadFromFile(dir string, id uuid.UUID) (*Record, error) {
	f, err := os.Open(fileName(dir, id))
	if err != nil {
		return nil, fmt.Errorf("open record file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
