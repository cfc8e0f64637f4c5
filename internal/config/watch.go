package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file at path whenever it is written or replaced
// and hands the validated result to onChange. Load failures go to onErr and
// the previous config stays in effect. The parent directory is watched
// rather than the file itself so editors that save via rename are seen.
// Events arriving within reloadDelay of each other collapse into one
// reload. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(Config), onErr func(error)) error {
	return watch(ctx, path, reloadDelay, onChange, onErr)
}

// reloadDelay is how long the file must stay quiet before it is reloaded.
// One editor save usually produces several Write events.
const reloadDelay = 300 * time.Millisecond

func watch(ctx context.Context, path string, delay time.Duration, onChange func(Config), onErr func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-pending:
			pending = nil
			cfg, err := Load(abs)
			if err != nil {
				onErr(err)
				continue
			}
			onChange(cfg)

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				timer.Reset(delay)
			}
			pending = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onErr(err)
		}
	}
}
