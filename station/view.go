package station

import (
	"sync"

	"github.com/elijahnyp/station_controller/state"
)

// CellStatus is one rendered cell of a projection.
type CellStatus struct {
	state.MatrixCell
	Active bool `json:"active"`
}

// Projection is the full matrix for one device state. Consumers re-apply it
// whole on every change since one selector can move several cells at once.
type Projection struct {
	State  state.DeviceState `json:"state"`
	Active []string          `json:"active"`
	Cells  []CellStatus      `json:"cells"`
}

// IsActive reports whether the cell with the given id is active.
func (p Projection) IsActive(id string) bool {
	for _, a := range p.Active {
		if a == id {
			return true
		}
	}
	return false
}

// ActiveCells returns the ids of the cells active in s, in layout order.
func ActiveCells(s state.DeviceState, cells []state.MatrixCell) []string {
	active := make([]string, 0, 2)
	for _, cell := range cells {
		if cell.Active(s) {
			active = append(active, cell.ID)
		}
	}
	return active
}

// View holds the static cell layout and projects device states onto it.
type View struct {
	mu    sync.RWMutex
	cells []state.MatrixCell
	byID  map[string]state.MatrixCell
}

func NewView(cells []state.MatrixCell) *View {
	v := &View{}
	v.SetCells(cells)
	return v
}

// SetCells swaps the layout, e.g. after a config reload.
func (v *View) SetCells(cells []state.MatrixCell) {
	byID := make(map[string]state.MatrixCell, len(cells))
	copied := make([]state.MatrixCell, len(cells))
	copy(copied, cells)
	for _, cell := range copied {
		byID[cell.ID] = cell
	}
	v.mu.Lock()
	v.cells, v.byID = copied, byID
	v.mu.Unlock()
}

func (v *View) Cells() []state.MatrixCell {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]state.MatrixCell, len(v.cells))
	copy(out, v.cells)
	return out
}

func (v *View) Cell(id string) (state.MatrixCell, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	cell, ok := v.byID[id]
	return cell, ok
}

func (v *View) Project(s state.DeviceState) Projection {
	cells := v.Cells()
	p := Projection{
		State:  s,
		Active: ActiveCells(s, cells),
		Cells:  make([]CellStatus, len(cells)),
	}
	for i, cell := range cells {
		p.Cells[i] = CellStatus{MatrixCell: cell, Active: cell.Active(s)}
	}
	return p
}
