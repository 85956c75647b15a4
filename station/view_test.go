package station

import (
	"reflect"
	"testing"

	"github.com/elijahnyp/station_controller/state"
)

func testCells() []state.MatrixCell {
	cells := []state.MatrixCell{
		{RadioSelector: state.HF, RadioValue: 1, AntennaSelector: state.Antenna, AntennaValue: 1},
		{RadioSelector: state.HF, RadioValue: 3, AntennaSelector: state.Antenna, AntennaValue: 2},
		{RadioSelector: state.VUHF, RadioValue: 5, AntennaSelector: state.VUHF, AntennaValue: 5},
		{RadioSelector: state.VUHF, RadioValue: 5, AntennaSelector: state.Antenna, AntennaValue: 2},
		{RadioSelector: state.VUHF, RadioValue: 6, AntennaSelector: state.VUHF, AntennaValue: 5, Disabled: true},
	}
	for i := range cells {
		cells[i].ID = cells[i].DefaultID()
	}
	return cells
}

func TestActiveCells(t *testing.T) {
	cells := testCells()
	tests := []struct {
		name string
		s    state.DeviceState
		want []string
	}{
		{"none", state.DeviceState{}, []string{}},
		{"hf", state.DeviceState{HF: 3, Antenna: 2}, []string{"hf3-antenna2"}},
		{"vuhf shared", state.DeviceState{VUHF: 5, Antenna: 2}, []string{"vuhf5-vuhf5", "vuhf5-antenna2"}},
		{"disabled", state.DeviceState{VUHF: 6}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ActiveCells(tt.s, cells)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ActiveCells(%v) = %v, want %v", tt.s, got, tt.want)
			}
		})
	}
}

func TestView_Deterministic(t *testing.T) {
	v := NewView(testCells())
	s := state.DeviceState{HF: 1, Antenna: 1, VUHF: 5}
	first := v.Project(s)
	for i := 0; i < 10; i++ {
		if got := v.Project(s); !reflect.DeepEqual(got, first) {
			t.Fatalf("Projection changed between calls: %v vs %v", got, first)
		}
	}
}

func TestView_ProjectAllCells(t *testing.T) {
	v := NewView(testCells())
	p := v.Project(state.DeviceState{VUHF: 5, Antenna: 2})

	if len(p.Cells) != 5 {
		t.Fatalf("Expected every cell in the projection, got %d", len(p.Cells))
	}
	active := 0
	for _, c := range p.Cells {
		if c.Active {
			active++
			if !p.IsActive(c.ID) {
				t.Errorf("Cell %s active but not listed", c.ID)
			}
		}
	}
	// one vuhf selector lights two cells
	if active != 2 {
		t.Errorf("Expected 2 active cells, got %d", active)
	}
	if !p.Cells[4].Disabled || p.Cells[4].Active {
		t.Errorf("Disabled cell rendered wrong: %+v", p.Cells[4])
	}
}

func TestView_SetCells(t *testing.T) {
	v := NewView(testCells())
	if _, ok := v.Cell("hf3-antenna2"); !ok {
		t.Fatal("Expected hf3-antenna2 in layout")
	}
	v.SetCells(testCells()[:1])
	if _, ok := v.Cell("hf3-antenna2"); ok {
		t.Error("Old cell still present after SetCells")
	}
	if len(v.Cells()) != 1 {
		t.Errorf("Expected 1 cell, got %d", len(v.Cells()))
	}
}
