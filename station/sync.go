package station

import (
	"context"
	"sync"
	"time"

	"github.com/elijahnyp/station_controller/state"
	"github.com/elijahnyp/station_controller/telemetry"
	"github.com/elijahnyp/station_controller/util"
)

// DefaultSyncInterval is the poll period when none is configured.
const DefaultSyncInterval = 2 * time.Second

// Syncer keeps the store eventually consistent with the device by polling.
//
// Every tick polls on its own goroutine, so a slow request delays only its
// own cycle. Results are applied in completion order; a stale one is fixed
// by the next tick because states are snapshots, not deltas.
type Syncer struct {
	fetcher  StateFetcher
	store    *state.Store
	interval time.Duration
	metrics  telemetry.Collector

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	ready    chan struct{}
	readyOne sync.Once
}

func NewSyncer(fetcher StateFetcher, store *state.Store, interval time.Duration, metrics telemetry.Collector) *Syncer {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	if metrics == nil {
		metrics = telemetry.Noop()
	}
	return &Syncer{
		fetcher:  fetcher,
		store:    store,
		interval: interval,
		metrics:  metrics,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the initial fetch has finished, successfully or not.
func (s *Syncer) Ready() <-chan struct{} {
	return s.ready
}

// Start performs the initial fetch, then polls every interval until Stop or
// until ctx is cancelled. The initial fetch error is returned for the
// caller to report; the loop runs regardless.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	err := s.Poll(ctx)
	s.readyOne.Do(func() { close(s.ready) })

	s.wg.Add(1)
	go s.run(ctx)
	return err
}

func (s *Syncer) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				_ = s.Poll(ctx) //nolint:errcheck // logged in Poll
			}()
		}
	}
}

// Poll runs one sync tick: fetch, then reconcile into the store.
func (s *Syncer) Poll(ctx context.Context) error {
	next, err := s.fetcher.FetchState(ctx)
	s.metrics.IncPoll(telemetry.Result(err))
	if err != nil {
		if ctx.Err() == nil {
			util.Logger.Warn().Err(err).Msg("sync poll failed")
		}
		return err
	}
	if s.store.Replace(next) {
		util.Logger.Debug().Msgf("sync: state changed to %v", next)
	}
	return nil
}

// Stop cancels in-flight polls and waits for the loop to exit.
func (s *Syncer) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}
