package trader

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rustyeddy/igtrader/market"
)

// fatalError is implemented by broker errors the engine cannot recover
// from, such as an expired session.
type fatalError interface {
	Fatal() bool
}

// Run drives the live loop: one analysis cycle on every resolution
// boundary until ctx is cancelled. Cycles never overlap; a tick that
// arrives while the previous cycle is still in flight is dropped.
// Transient cycle errors are logged and the loop keeps going; fatal
// broker errors end the run.
func (t *Trader) Run(ctx context.Context) error {
	if err := t.store.SaveMarket(ctx, t.market); err != nil {
		t.log.Warn("save market", zap.Error(err))
	}

	first := nextBoundary(t.strategy.Resolution, time.Now().UTC())
	t.log.Info("live loop starting",
		zap.String("resolution", t.strategy.Resolution.String()),
		zap.Time("first_cycle", first))

	timer := time.NewTimer(time.Until(first))
	defer timer.Stop()

	var (
		wg    sync.WaitGroup
		fatal = make(chan error, 1)
	)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case err := <-fatal:
			wg.Wait()
			return err
		case <-timer.C:
			t.cycle(ctx, &wg, fatal)
			// Re-arm against the clock rather than a fixed period so
			// fires stay on resolution boundaries regardless of drift.
			timer.Reset(time.Until(nextBoundary(t.strategy.Resolution, time.Now().UTC())))
		}
	}
}

// nextBoundary returns the first resolution boundary strictly after now.
func nextBoundary(res market.Resolution, now time.Time) time.Time {
	return res.Truncate(now).Add(res.Step())
}

func (t *Trader) cycle(ctx context.Context, wg *sync.WaitGroup, fatal chan<- error) {
	utm := time.Now().UTC().Truncate(time.Minute)
	if !market.IsOpen(utm) {
		t.log.Debug("market closed", zap.Time("utm", utm))
		return
	}
	if !t.busy.CompareAndSwap(false, true) {
		t.log.Warn("previous cycle still running, tick dropped", zap.Time("utm", utm))
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer t.busy.Store(false)
		if _, err := t.Analyse(ctx, utm); err != nil {
			var f fatalError
			if errors.As(err, &f) && f.Fatal() {
				select {
				case fatal <- err:
				default:
				}
				return
			}
			t.log.Error("cycle failed", zap.Time("utm", utm), zap.Error(err))
		}
	}()
}
