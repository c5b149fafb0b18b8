package plan

import (
	"context"

	"github.com/dshills/safehook/internal/config"
	"github.com/dshills/safehook/internal/watcher"
)

// Reload loads the plan at path and applies it. If the file can't be
// loaded the current attachments stay in place.
func (a *Applier) Reload(loader *config.Loader, path string) (*Report, error) {
	p, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	return a.Apply(p)
}

// Watch re-applies the plan at path every time it changes, until ctx is done.
func (a *Applier) Watch(ctx context.Context, loader *config.Loader, path string, opts ...watcher.Option) error {
	opts = append([]watcher.Option{watcher.WithLogger(a.logger)}, opts...)
	return watcher.Run(ctx, path, func(ctx context.Context, ev watcher.Event) error {
		a.logger.Info().Str("path", ev.Path).Stringer("op", ev.Op).Msg("plan changed, reloading")
		_, err := a.Reload(loader, path)
		return err
	}, opts...)
}
