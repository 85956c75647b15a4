package station

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elijahnyp/station_controller/state"
	"github.com/elijahnyp/station_controller/telemetry"
	"github.com/elijahnyp/station_controller/util"
)

// MasterOffPrompt is shown to the operator before everything is switched off.
const MasterOffPrompt = "Are you sure you want to switch off all systems?"

// Confirmer asks the operator to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Options configures a Controller. Device is required.
type Options struct {
	Device   Device
	Interval time.Duration
	Metrics  telemetry.Collector
	Cells    []state.MatrixCell
}

// Controller owns the store, the sync loop, the dispatcher and the matrix
// view of one device.
type Controller struct {
	store      *state.Store
	syncer     *Syncer
	dispatcher *Dispatcher
	view       *View
	metrics    telemetry.Collector

	stopOnce    sync.Once
	cancelCount func()
}

func NewController(opts Options) *Controller {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.Noop()
	}
	store := state.NewStore()
	c := &Controller{
		store:      store,
		syncer:     NewSyncer(opts.Device, store, opts.Interval, metrics),
		dispatcher: NewDispatcher(opts.Device, store, metrics),
		view:       NewView(opts.Cells),
		metrics:    metrics,
	}
	c.cancelCount = store.OnChange(func(prev, next state.DeviceState) {
		metrics.IncStateChange()
	})
	return c
}

// Start launches the dispatcher and the sync loop. It blocks for the initial
// fetch; its error is informational since polling continues either way.
func (c *Controller) Start(ctx context.Context) error {
	c.dispatcher.Start()
	if err := c.syncer.Start(ctx); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	return nil
}

// Stop halts polling and the dispatcher. Safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.syncer.Stop()
		c.dispatcher.Stop()
		c.cancelCount()
	})
}

// Click selects a matrix cell: the radio command first, then the antenna
// command when it targets a different selector.
func (c *Controller) Click(ctx context.Context, id string) ([]Result, error) {
	cell, ok := c.view.Cell(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCell, id)
	}
	if cell.Disabled {
		return nil, fmt.Errorf("%w: %q", ErrCellDisabled, id)
	}
	util.Logger.Info().Msgf("cell %s selected", cell.ID)
	return c.dispatcher.SendSequence(ctx, cell.Commands()), nil
}

// MasterOff switches everything off once confirmer agrees. It reports
// whether the command was sent; a decline sends nothing.
func (c *Controller) MasterOff(ctx context.Context, confirmer Confirmer) (bool, error) {
	ok, err := confirmer.Confirm(ctx, MasterOffPrompt)
	if err != nil {
		return false, fmt.Errorf("master off confirmation: %w", err)
	}
	if !ok {
		util.Logger.Info().Msg("master off declined")
		return false, nil
	}
	cmd := state.MasterOffCommand()
	res := c.dispatcher.SendCommand(ctx, cmd.Name, cmd.Value)
	return true, res.Err
}

func (c *Controller) Ready() <-chan struct{} { return c.syncer.Ready() }

func (c *Controller) State() state.DeviceState { return c.store.Get() }

func (c *Controller) Store() *state.Store { return c.store }

func (c *Controller) Projection() Projection {
	return c.view.Project(c.store.Get())
}

// SetCells replaces the matrix layout.
func (c *Controller) SetCells(cells []state.MatrixCell) {
	c.view.SetCells(cells)
}

// OnChange registers fn to receive a fresh projection after every state
// change.
func (c *Controller) OnChange(fn func(Projection)) (cancel func()) {
	return c.store.OnChange(func(prev, next state.DeviceState) {
		fn(c.view.Project(next))
	})
}
