package util

import (
	"fmt"

	"github.com/elijahnyp/station_controller/state"
)

const (
	defaultHFRadios   = 4
	defaultHFAntennas = 4
	defaultVUHFRadios = 3
)

// DefaultMatrix is the layout used when the config file has no matrix
// section: an HF radio x antenna grid and a V/UHF grid where only the
// diagonal is routable.
func DefaultMatrix() []state.MatrixCell {
	var cells []state.MatrixCell
	for radio := 1; radio <= defaultHFRadios; radio++ {
		for antenna := 1; antenna <= defaultHFAntennas; antenna++ {
			cells = append(cells, state.MatrixCell{
				Label:           fmt.Sprintf("HF %d / ANT %d", radio, antenna),
				RadioSelector:   state.HF,
				RadioValue:      radio,
				AntennaSelector: state.Antenna,
				AntennaValue:    antenna,
			})
		}
	}
	for radio := 1; radio <= defaultVUHFRadios; radio++ {
		for antenna := 1; antenna <= defaultVUHFRadios; antenna++ {
			cells = append(cells, state.MatrixCell{
				Label:           fmt.Sprintf("V/UHF %d / ANT %d", radio, antenna),
				RadioSelector:   state.VUHF,
				RadioValue:      radio,
				AntennaSelector: state.VUHF,
				AntennaValue:    antenna,
				Disabled:        radio != antenna,
			})
		}
	}
	return normalizeCells(cells)
}

// BuildMatrix loads the cell layout from the "matrix" config key. Cells
// that fail validation or repeat an id are logged and dropped.
func BuildMatrix() ([]state.MatrixCell, error) {
	var cells []state.MatrixCell
	err := Config.UnmarshalKey("matrix", &cells)
	if err != nil {
		Logger.Error().Msgf("error unmarshaling matrix: %v", err)
		return nil, fmt.Errorf("unmarshal matrix: %w", err)
	}
	if len(cells) == 0 {
		Logger.Info().Msg("no matrix configured, using default layout")
		return DefaultMatrix(), nil
	}
	return normalizeCells(cells), nil
}

func normalizeCells(cells []state.MatrixCell) []state.MatrixCell {
	seen := make(map[string]bool, len(cells))
	out := make([]state.MatrixCell, 0, len(cells))
	for _, cell := range cells {
		if cell.ID == "" {
			cell.ID = cell.DefaultID()
		}
		if cell.Label == "" {
			cell.Label = cell.ID
		}
		if err := cell.Validate(); err != nil {
			Logger.Warn().Msgf("skipping matrix cell: %v", err)
			continue
		}
		if seen[cell.ID] {
			Logger.Warn().Msgf("skipping duplicate matrix cell %s", cell.ID)
			continue
		}
		seen[cell.ID] = true
		out = append(out, cell)
	}
	return out
}
