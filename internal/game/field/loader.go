package field

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type yamlMap struct {
	MapNumber  uint32    `yaml:"map_number"`
	Name       string    `yaml:"name"`
	Width      uint8     `yaml:"width"`
	Height     uint8     `yaml:"height"`
	Tiles      []string  `yaml:"tiles"`
	Overlay    []string  `yaml:"overlay"`
	StartTiles [][]uint8 `yaml:"start_tiles"`
	Rules      *Rules    `yaml:"rules"`
}

// LoadMap decodes a YAML map definition. Tile rows are written as
// space-separated hex bytes, one string per row.
func LoadMap(r io.Reader, logger *zap.Logger) (*MapAndRules, error) {
	var ym yamlMap
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ym); err != nil {
		return nil, fmt.Errorf("decode map file: %w", err)
	}
	if ym.Width == 0 || ym.Height == 0 || ym.Width > GridSize || ym.Height > GridSize {
		return nil, fmt.Errorf("map %d: invalid size %dx%d", ym.MapNumber, ym.Width, ym.Height)
	}

	ret := &MapAndRules{MapNumber: ym.MapNumber, Name: ym.Name, Rules: DefaultRules()}
	ret.Map.Width = ym.Width
	ret.Map.Height = ym.Height
	if err := decodeTileRows(&ret.Map.Tiles, ym.Tiles, int(ym.Width), int(ym.Height)); err != nil {
		return nil, fmt.Errorf("map %d tiles: %w", ym.MapNumber, err)
	}
	if len(ym.Overlay) > 0 {
		if err := decodeTileRows(&ret.Overlay, ym.Overlay, int(ym.Width), int(ym.Height)); err != nil {
			return nil, fmt.Errorf("map %d overlay: %w", ym.MapNumber, err)
		}
	}
	if len(ym.StartTiles) > 2 {
		return nil, fmt.Errorf("map %d: %d start tile groups, at most 2 allowed", ym.MapNumber, len(ym.StartTiles))
	}
	for team, group := range ym.StartTiles {
		if len(group) > 6 {
			return nil, fmt.Errorf("map %d: team %d has %d start tiles, at most 6 allowed", ym.MapNumber, team, len(group))
		}
		copy(ret.Map.StartTiles[team][:], group)
	}
	if ym.Rules != nil {
		ret.Rules = *ym.Rules
		if ret.Rules.CheckAndResetInvalidFields() && logger != nil {
			logger.Warn("map rules contained invalid fields",
				zap.Uint32("map_number", ym.MapNumber))
		}
	}

	if logger != nil {
		logger.Info("loaded map",
			zap.Uint32("map_number", ret.MapNumber),
			zap.String("name", ret.Name),
			zap.Uint8("width", ret.Map.Width),
			zap.Uint8("height", ret.Map.Height))
	}
	return ret, nil
}

// LoadMapFile loads a YAML map definition from disk.
func LoadMapFile(path string, logger *zap.Logger) (*MapAndRules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map file: %w", err)
	}
	defer f.Close()
	return LoadMap(f, logger)
}

func decodeTileRows(dst *[GridSize][GridSize]uint8, rows []string, width, height int) error {
	if len(rows) != height {
		return fmt.Errorf("expected %d rows, got %d", height, len(rows))
	}
	for y, row := range rows {
		fields := strings.Fields(row)
		if len(fields) != width {
			return fmt.Errorf("row %d: expected %d tiles, got %d", y, width, len(fields))
		}
		for x, f := range fields {
			v, err := strconv.ParseUint(f, 16, 8)
			if err != nil {
				return fmt.Errorf("row %d column %d: %w", y, x, err)
			}
			dst[y][x] = uint8(v)
		}
	}
	return nil
}
