// Package dispatch runs transfer sessions for a set of files, several at a time,
// and restarts rejected or interrupted files from the beginning after a pause.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"file_dump/client/registry"
	"file_dump/client/worker"
	"file_dump/config"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrInFlight means a file with the same name is already being sent
	ErrInFlight = errors.New("file with same name already in flight")
	// ErrGaveUp means every allowed attempt was rejected or interrupted
	ErrGaveUp = errors.New("giving up on file")
)

type runner interface {
	Run() (worker.Outcome, error)
}

// Dispatcher sends files to one ingestion service
type Dispatcher struct {
	address  string
	settings config.Settings
	registry *registry.Set
	logger   *slog.Logger

	newSession func(file worker.File) runner
	wait       func(ctx context.Context, d time.Duration) error
}

// New returns a dispatcher pushing to address
func New(address string, settings config.Settings, reg *registry.Set, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		address:  address,
		settings: settings,
		registry: reg,
		logger:   logger,
		wait:     sleepContext,
	}
	d.newSession = func(file worker.File) runner {
		return worker.NewSession(file, d.address, d.settings, d.registry, d.logger)
	}
	return d
}

// Send transfers every path and returns the joined errors of the files that did not make it.
func (d *Dispatcher) Send(ctx context.Context, paths []string) error {
	var (
		group errgroup.Group
		mu    sync.Mutex
		errs  []error
	)
	group.SetLimit(max(d.settings.Parallel, 1))
	for _, path := range paths {
		path := path
		group.Go(func() error {
			if err := d.sendFile(ctx, path); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	group.Wait()
	return errors.Join(errs...)
}

// sendFile runs sessions for path until one completes, fails for good, or attempts run out
func (d *Dispatcher) sendFile(ctx context.Context, path string) error {
	name := filepath.Base(path)
	logger := d.logger.With(slog.String("file", name))
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		// Every attempt starts from byte 0, so pick up the current size.
		file, err := worker.Stat(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if !d.registry.Add(name) {
			logger.Warn("skipping file, a transfer with the same name is running")
			return fmt.Errorf("%s: %w", path, ErrInFlight)
		}

		outcome, err := d.newSession(file).Run()
		switch {
		case outcome == worker.Completed:
			return err
		case outcome == worker.Rejected, worker.KindOf(err) == worker.TransportFailure:
		default:
			return fmt.Errorf("%s: %w", path, err)
		}

		if d.settings.MaxAttempts > 0 && attempt >= d.settings.MaxAttempts {
			if err == nil {
				err = fmt.Errorf("rejected %d times", attempt)
			}
			return fmt.Errorf("%s: %w: %w", path, ErrGaveUp, err)
		}
		logger.Info("will retry transfer",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", d.settings.RetryInterval))
		if err := d.wait(ctx, d.settings.RetryInterval); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
