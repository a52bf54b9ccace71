package cards

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Lookup resolves card ids to definitions. Missing ids return nil.
type Lookup interface {
	DefinitionForID(cardID uint16) *Definition
}

// Index is an in-memory card definition table.
type Index struct {
	byID   map[uint16]*Definition
	logger *zap.Logger
}

// NewIndex builds an index from already-decoded definitions.
func NewIndex(defs []*Definition, logger *zap.Logger) *Index {
	idx := &Index{byID: make(map[uint16]*Definition, len(defs)), logger: logger}
	for _, def := range defs {
		idx.byID[def.CardID] = def
	}
	return idx
}

// DefinitionForID returns the definition for the card id, or nil.
func (i *Index) DefinitionForID(cardID uint16) *Definition {
	if i == nil {
		return nil
	}
	return i.byID[cardID]
}

// All returns every definition ordered by card id.
func (i *Index) All() []*Definition {
	ret := make([]*Definition, 0, len(i.byID))
	for _, def := range i.byID {
		ret = append(ret, def)
	}
	sort.Slice(ret, func(a, b int) bool { return ret[a].CardID < ret[b].CardID })
	return ret
}

// Len returns the number of definitions.
func (i *Index) Len() int {
	return len(i.byID)
}

type yamlEffect struct {
	Type      string `yaml:"type"`
	Expr      string `yaml:"expr"`
	When      string `yaml:"when"`
	Arg1      string `yaml:"arg1"`
	Arg2      string `yaml:"arg2"`
	Arg3      string `yaml:"arg3"`
	Criterion string `yaml:"criterion"`
	NameIndex uint8  `yaml:"name_index"`
}

type yamlCard struct {
	ID              uint16       `yaml:"id"`
	Name            string       `yaml:"name"`
	Type            string       `yaml:"type"`
	Class           string       `yaml:"class"`
	Rank            uint8        `yaml:"rank"`
	SelfCost        uint8        `yaml:"cost"`
	AllyCost        uint8        `yaml:"ally_cost"`
	HP              string       `yaml:"hp"`
	AP              string       `yaml:"ap"`
	TP              string       `yaml:"tp"`
	MV              string       `yaml:"mv"`
	LeftColors      []uint8      `yaml:"left_colors"`
	RightColors     []uint8      `yaml:"right_colors"`
	TopColors       []uint8      `yaml:"top_colors"`
	Range           []uint32     `yaml:"range"`
	FixedRange      uint32       `yaml:"fixed_range"`
	TargetMode      string       `yaml:"target_mode"`
	AssistTurns     uint8        `yaml:"assist_turns"`
	CannotMove      bool         `yaml:"cannot_move"`
	CannotAttack    bool         `yaml:"cannot_attack"`
	CannotDrop      bool         `yaml:"cannot_drop"`
	UsableCriterion string       `yaml:"usable_criterion"`
	Effects         []yamlEffect `yaml:"effects"`
}

type yamlCardFile struct {
	Cards []yamlCard `yaml:"cards"`
}

// LoadIndex decodes a YAML card list.
func LoadIndex(r io.Reader, logger *zap.Logger) (*Index, error) {
	var file yamlCardFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode card file: %w", err)
	}

	defs := make([]*Definition, 0, len(file.Cards))
	seen := make(map[uint16]bool, len(file.Cards))
	for _, yc := range file.Cards {
		def, err := yc.definition()
		if err != nil {
			return nil, fmt.Errorf("card %04X: %w", yc.ID, err)
		}
		if seen[def.CardID] {
			return nil, fmt.Errorf("card %04X: duplicate definition", def.CardID)
		}
		seen[def.CardID] = true
		defs = append(defs, def)
	}

	if logger != nil {
		logger.Info("loaded card definitions", zap.Int("count", len(defs)))
	}
	return NewIndex(defs, logger), nil
}

// LoadIndexFile loads a YAML card list from disk.
func LoadIndexFile(path string, logger *zap.Logger) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open card file: %w", err)
	}
	defer f.Close()
	return LoadIndex(f, logger)
}

func (yc yamlCard) definition() (*Definition, error) {
	def := &Definition{
		CardID:       yc.ID,
		Name:         yc.Name,
		Rank:         Rank(yc.Rank),
		SelfCost:     yc.SelfCost,
		AllyCost:     yc.AllyCost,
		AssistTurns:  yc.AssistTurns,
		CannotMove:   yc.CannotMove,
		CannotAttack: yc.CannotAttack,
		CannotDrop:   yc.CannotDrop,
	}

	var err error
	if def.Type, err = parseNamed(yc.Type, cardTypeNames, TypeInvalid); err != nil {
		return nil, err
	}
	if def.Class, err = parseNamed(yc.Class, cardClassNames, ClassHUSC); err != nil {
		return nil, err
	}
	if def.TargetMode, err = parseTargetMode(yc.TargetMode); err != nil {
		return nil, err
	}
	if def.UsableCriterion, err = parseCriterion(yc.UsableCriterion); err != nil {
		return nil, err
	}
	for _, pair := range []struct {
		text string
		dst  *Stat
	}{{yc.HP, &def.HP}, {yc.AP, &def.AP}, {yc.TP, &def.TP}, {yc.MV, &def.MV}} {
		if *pair.dst, err = ParseStat(pair.text); err != nil {
			return nil, err
		}
	}
	if err := copyColors(def.LeftColors[:], yc.LeftColors, "left_colors"); err != nil {
		return nil, err
	}
	if err := copyColors(def.RightColors[:], yc.RightColors, "right_colors"); err != nil {
		return nil, err
	}
	if err := copyColors(def.TopColors[:], yc.TopColors, "top_colors"); err != nil {
		return nil, err
	}
	if len(yc.Range) > len(def.Range) {
		return nil, fmt.Errorf("range has %d rows, at most %d allowed", len(yc.Range), len(def.Range))
	}
	copy(def.Range[:], yc.Range)
	if yc.FixedRange != 0 {
		def.Range[4] = (def.Range[4] &^ 0xF00) | ((yc.FixedRange & 0xF) << 8)
	}
	if err := def.DecodeRange(); err != nil {
		return nil, err
	}

	if len(yc.Effects) > len(def.Effects) {
		return nil, fmt.Errorf("%d effects, at most %d allowed", len(yc.Effects), len(def.Effects))
	}
	for z, ye := range yc.Effects {
		eff := Effect{
			EffectNum: uint8(z + 1),
			Expr:      ye.Expr,
			Arg1:      ye.Arg1,
			Arg2:      ye.Arg2,
			Arg3:      ye.Arg3,
			NameIndex: ye.NameIndex,
		}
		if len(eff.Expr) > 15 {
			return nil, fmt.Errorf("effect %d: expression %q longer than 15 characters", z+1, eff.Expr)
		}
		if eff.Type, err = ParseConditionType(ye.Type); err != nil {
			return nil, fmt.Errorf("effect %d: %w", z+1, err)
		}
		if eff.When, err = ParseEffectWhen(ye.When); err != nil {
			return nil, fmt.Errorf("effect %d: %w", z+1, err)
		}
		if eff.ApplyCriterion, err = parseCriterion(ye.Criterion); err != nil {
			return nil, fmt.Errorf("effect %d: %w", z+1, err)
		}
		def.Effects[z] = eff
	}
	return def, nil
}

func copyColors(dst []uint8, src []uint8, field string) error {
	if len(src) > len(dst) {
		return fmt.Errorf("%s has %d entries, at most %d allowed", field, len(src), len(dst))
	}
	copy(dst, src)
	return nil
}

func parseNamed[T comparable](s string, names map[T]string, def T) (T, error) {
	if s == "" {
		return def, nil
	}
	for v, name := range names {
		if name == s {
			return v, nil
		}
	}
	return def, fmt.Errorf("unknown name %q", s)
}

func parseTargetMode(s string) (TargetMode, error) {
	if s == "" {
		return TargetNone, nil
	}
	for z, name := range targetModeNames {
		if name == s {
			return TargetMode(z), nil
		}
	}
	return TargetNone, fmt.Errorf("unknown target mode %q", s)
}

// parseCriterion accepts a numeric criterion code.
func parseCriterion(s string) (CriterionCode, error) {
	if s == "" {
		return CriterionNone, nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil || n > uint64(CriterionNonPhysicalNonTechNonUnknownMediumNonSC) {
		return CriterionNone, fmt.Errorf("invalid criterion %q", s)
	}
	return CriterionCode(n), nil
}
