package watcher

import (
	"context"
)

// ReloadFunc is called after the watched file changes.
type ReloadFunc func(ctx context.Context, event Event) error

// Run watches path and calls reload for every debounced change until ctx
// is done. Reload errors are logged and watching continues.
func Run(ctx context.Context, path string, reload ReloadFunc, opts ...Option) error {
	w, err := New(path, opts...)
	if err != nil {
		return err
	}
	defer w.Close()

	w.logger.Info().Str("path", w.Path()).Msg("watching for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events():
			if !ok {
				return ErrWatcherClosed
			}
			w.logger.Debug().Str("path", event.Path).Stringer("op", event.Op).Msg("file changed")
			if err := reload(ctx, event); err != nil {
				w.logger.Error().Err(err).Str("path", event.Path).Msg("reload failed")
			}

		case err, ok := <-w.Errors():
			if !ok {
				return ErrWatcherClosed
			}
			w.logger.Warn().Err(err).Msg("watcher error")
		}
	}
}
