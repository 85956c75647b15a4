package state

import "fmt"

// Selector names a routing parameter of the device. The same names are
// used as command names on the control endpoint.
type Selector string

const (
	Antenna Selector = "antenna"
	HF      Selector = "hf"
	VUHF    Selector = "vuhf"
)

// DeviceState is a snapshot of the three selector positions reported by the
// control service. It is always replaced wholesale, never edited in place.
type DeviceState struct {
	Antenna int `json:"antenna"`
	HF      int `json:"hf"`
	VUHF    int `json:"vuhf"`
}

// Value returns the position of the given selector. Unknown selectors report
// ok=false.
func (s DeviceState) Value(sel Selector) (value int, ok bool) {
	switch sel {
	case Antenna:
		return s.Antenna, true
	case HF:
		return s.HF, true
	case VUHF:
		return s.VUHF, true
	}
	return 0, false
}

func (s DeviceState) Equal(other DeviceState) bool {
	return s == other
}

func (s DeviceState) String() string {
	return fmt.Sprintf("antenna=%d hf=%d vuhf=%d", s.Antenna, s.HF, s.VUHF)
}
