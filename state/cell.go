package state

import "fmt"

// MatrixCell pairs a radio routing condition with an antenna routing
// condition. Cells are static layout, loaded from configuration.
type MatrixCell struct {
	ID              string   `mapstructure:"id" json:"id"`
	Label           string   `mapstructure:"label" json:"label,omitempty"`
	RadioSelector   Selector `mapstructure:"radio" json:"radio"`
	RadioValue      int      `mapstructure:"radio_val" json:"radio_val"`
	AntennaSelector Selector `mapstructure:"antenna" json:"antenna"`
	AntennaValue    int      `mapstructure:"antenna_val" json:"antenna_val"`
	Disabled        bool     `mapstructure:"disabled" json:"disabled"`
}

// DefaultID is the identifier used when the layout does not name a cell.
func (c MatrixCell) DefaultID() string {
	return fmt.Sprintf("%s%d-%s%d", c.RadioSelector, c.RadioValue, c.AntennaSelector, c.AntennaValue)
}

// Validate checks that the selectors are ones a cell can route on.
func (c MatrixCell) Validate() error {
	if c.RadioSelector != HF && c.RadioSelector != VUHF {
		return fmt.Errorf("cell %s: radio selector %q must be hf or vuhf", c.ID, c.RadioSelector)
	}
	if c.AntennaSelector != Antenna && c.AntennaSelector != VUHF {
		return fmt.Errorf("cell %s: antenna selector %q must be antenna or vuhf", c.ID, c.AntennaSelector)
	}
	return nil
}

// Active reports whether the cell is the live connection in s. Disabled
// cells are never active.
func (c MatrixCell) Active(s DeviceState) bool {
	if c.Disabled {
		return false
	}
	radio, ok := s.Value(c.RadioSelector)
	if !ok || radio != c.RadioValue {
		return false
	}
	antenna, ok := s.Value(c.AntennaSelector)
	return ok && antenna == c.AntennaValue
}

// Commands returns what selecting the cell sends, in order: the radio
// command, then the antenna command unless both share a parameter name.
// On the V/UHF matrix "vuhf" is both the radio and the antenna control, so
// a second send would be redundant.
func (c MatrixCell) Commands() []Command {
	cmds := []Command{NewCommand(c.RadioSelector, c.RadioValue)}
	if c.AntennaSelector != c.RadioSelector {
		cmds = append(cmds, NewCommand(c.AntennaSelector, c.AntennaValue))
	}
	return cmds
}
