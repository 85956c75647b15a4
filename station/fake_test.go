package station

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elijahnyp/station_controller/state"
)

var errDeviceDown = errors.New("device down")

// fakeDevice behaves like the control service: commands update its state
// and every response is the full state.
type fakeDevice struct {
	mu       sync.Mutex
	current  state.DeviceState
	sent     []state.Command
	fetches  int
	failNext map[string]bool

	delay    time.Duration
	inFlight atomic.Int32
	overlap  atomic.Bool
	fetchErr error

	// fetch number -> gate the fetch waits on before answering
	holds map[int]chan struct{}
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{failNext: map[string]bool{}, holds: map[int]chan struct{}{}}
}

// FetchState answers with the state as it was when the request arrived, even
// if the answer is held back.
func (f *fakeDevice) FetchState(ctx context.Context) (state.DeviceState, error) {
	f.mu.Lock()
	f.fetches++
	snapshot, err, hold := f.current, f.fetchErr, f.holds[f.fetches]
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return state.DeviceState{}, ctx.Err()
		}
	}
	if err != nil {
		return state.DeviceState{}, err
	}
	return snapshot, nil
}

// holdFetch makes the n-th fetch (counting from 1) wait until the returned
// function is called.
func (f *fakeDevice) holdFetch(n int) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.holds[n] = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeDevice) Control(ctx context.Context, cmd state.Command) (state.DeviceState, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if err := ctx.Err(); err != nil {
		return state.DeviceState{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)
	if f.failNext[cmd.Name] {
		delete(f.failNext, cmd.Name)
		return state.DeviceState{}, errDeviceDown
	}
	switch cmd.Name {
	case string(state.Antenna):
		f.current.Antenna = cmd.Value
	case string(state.HF):
		f.current.HF = cmd.Value
	case string(state.VUHF):
		f.current.VUHF = cmd.Value
	case state.MasterOff:
		f.current = state.DeviceState{}
	}
	return f.current, nil
}

func (f *fakeDevice) set(s state.DeviceState) {
	f.mu.Lock()
	f.current = s
	f.mu.Unlock()
}

func (f *fakeDevice) fail(name string) {
	f.mu.Lock()
	f.failNext[name] = true
	f.mu.Unlock()
}

func (f *fakeDevice) commands() []state.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]state.Command, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeDevice) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
