// Package watch re-runs an action whenever files under a directory change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rjeczalik/notify"
	"github.com/steinarvk/recquery/lib/logging"
	"go.uber.org/zap"
)

var alwaysExcludedSuffixes = []string{
	"~",
	".swp",
	".swx",
	".tmp",
}

const DefaultDebounce = 500 * time.Millisecond

// Action is called once at startup and then after each burst of changes.
type Action func(ctx context.Context, reason string) error

type Options struct {
	// Debounce is the quiet period after a change before the action runs.
	Debounce time.Duration
	// Suffixes restricts which files trigger the action; empty means all.
	Suffixes []string
}

func excluded(path string, suffixes []string) bool {
	basename := filepath.Base(path)
	for _, suffix := range alwaysExcludedSuffixes {
		if strings.HasSuffix(basename, suffix) {
			return true
		}
	}
	if len(suffixes) == 0 {
		return false
	}
	for _, suffix := range suffixes {
		if strings.HasSuffix(basename, suffix) {
			return false
		}
	}
	return true
}

// Dir watches dir recursively and calls action until ctx is done or the
// action fails.
func Dir(ctx context.Context, dir string, opts Options, action Action) error {
	if dir == "" {
		return errors.New("no directory to watch")
	}
	if action == nil {
		return errors.New("no action")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := logging.FromContext(ctx)

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	recwatch := filepath.Join(dir, "...")
	logger.Info("watching directory", zap.String("dir", dir), zap.Duration("debounce", debounce))

	watcherEventCh := make(chan notify.EventInfo, 10)
	if err := notify.Watch(recwatch, watcherEventCh, notify.All); err != nil {
		return fmt.Errorf("error watching %q: %w", dir, err)
	}
	defer notify.Stop(watcherEventCh)

	if err := action(ctx, "startup"); err != nil {
		return err
	}

	var timer *time.Timer
	var timerCh <-chan time.Time
	var pendingReason string

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt := <-watcherEventCh:
			path := evt.Path()
			if excluded(path, opts.Suffixes) {
				continue
			}

			logger.Debug("file event", zap.String("path", path), zap.String("event", evt.Event().String()))

			pendingReason = fmt.Sprintf("%s %q", evt.Event(), path)
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			logger.Info("change detected", zap.String("reason", pendingReason))
			if err := action(ctx, pendingReason); err != nil {
				return err
			}
		}
	}
}
