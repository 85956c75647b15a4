package station

import (
	"context"
	"sync"

	"github.com/elijahnyp/station_controller/state"
	"github.com/elijahnyp/station_controller/telemetry"
	"github.com/elijahnyp/station_controller/util"
)

const dispatchQueueSize = 16

// Result is the outcome of one command of a sequence.
type Result struct {
	Command state.Command
	State   state.DeviceState
	Err     error
}

type sequence struct {
	ctx      context.Context
	commands []state.Command
	done     chan []Result
}

// Dispatcher sends operator commands to the device. A single worker drains
// the queue, so each command is confirmed (or has failed) before the next one
// is sent and sequences from different callers never interleave.
//
// Only confirmed responses reach the store; a failed command leaves it as it
// was and does not abort the rest of its sequence.
type Dispatcher struct {
	commander Commander
	store     *state.Store
	metrics   telemetry.Collector

	queue    chan sequence
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  sync.Once

	mu      sync.RWMutex // held by Submit while enqueueing
	stopped bool
}

func NewDispatcher(commander Commander, store *state.Store, metrics telemetry.Collector) *Dispatcher {
	if metrics == nil {
		metrics = telemetry.Noop()
	}
	return &Dispatcher{
		commander: commander,
		store:     store,
		metrics:   metrics,
		queue:     make(chan sequence, dispatchQueueSize),
		quit:      make(chan struct{}),
	}
}

// Start launches the worker. Sequences submitted earlier wait in the queue.
func (d *Dispatcher) Start() {
	d.started.Do(func() {
		d.wg.Add(1)
		go d.work()
	})
}

// Stop ends the worker after the sequence in progress. Queued and later
// submissions resolve with ErrStopped.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.quit) })
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.wg.Wait()
	d.drain()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for {
		select {
		case <-d.quit:
			return
		case seq := <-d.queue:
			seq.done <- d.run(seq)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case seq := <-d.queue:
			seq.done <- stoppedResults(seq.commands)
		default:
			return
		}
	}
}

func (d *Dispatcher) run(seq sequence) []Result {
	results := make([]Result, 0, len(seq.commands))
	for _, cmd := range seq.commands {
		results = append(results, d.send(seq.ctx, cmd))
	}
	return results
}

func (d *Dispatcher) send(ctx context.Context, cmd state.Command) Result {
	next, err := d.commander.Control(ctx, cmd)
	d.metrics.IncCommand(cmd.Name, telemetry.Result(err))
	if err != nil {
		util.Logger.Error().Err(err).Msgf("command %s failed", cmd)
		return Result{Command: cmd, State: d.store.Get(), Err: err}
	}
	if d.store.Replace(next) {
		util.Logger.Debug().Msgf("command %s: state changed to %v", cmd, next)
	}
	return Result{Command: cmd, State: next}
}

// Submit queues commands as one sequence and returns a channel that receives
// one Result per command once the whole sequence has been processed.
func (d *Dispatcher) Submit(ctx context.Context, commands ...state.Command) <-chan []Result {
	done := make(chan []Result, 1)
	if len(commands) == 0 {
		done <- nil
		return done
	}
	seq := sequence{ctx: ctx, commands: commands, done: done}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		done <- stoppedResults(commands)
		return done
	}

	select {
	case d.queue <- seq:
	case <-d.quit:
		done <- stoppedResults(commands)
	case <-ctx.Done():
		done <- errorResults(commands, ctx.Err())
	}
	return done
}

// SendSequence sends commands strictly in order and waits for all of them.
// If ctx ends first the queued sequence still runs, failing fast.
func (d *Dispatcher) SendSequence(ctx context.Context, commands []state.Command) []Result {
	select {
	case results := <-d.Submit(ctx, commands...):
		return results
	case <-ctx.Done():
		return errorResults(commands, ctx.Err())
	}
}

// SendCommand sends a single command and waits for its result.
func (d *Dispatcher) SendCommand(ctx context.Context, name string, value int) Result {
	results := d.SendSequence(ctx, []state.Command{{Name: name, Value: value}})
	return results[0]
}

func stoppedResults(commands []state.Command) []Result {
	return errorResults(commands, ErrStopped)
}

func errorResults(commands []state.Command, err error) []Result {
	results := make([]Result, len(commands))
	for i, cmd := range commands {
		results[i] = Result{Command: cmd, Err: err}
	}
	return results
}
