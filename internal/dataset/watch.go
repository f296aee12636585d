package dataset

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/joeblew999/greenery-map/internal/metrics"
)

// Watcher reloads the dataset when one of its files changes on disk.
type Watcher struct {
	dir      string
	files    Files
	debounce time.Duration
	log      *zap.Logger
	onLoad   func(*Dataset)
}

// NewWatcher creates a watcher for the files in dir. onLoad receives each
// successfully reloaded dataset; failed reloads are logged and skipped.
func NewWatcher(dir string, files Files, log *zap.Logger, onLoad func(*Dataset)) *Watcher {
	return &Watcher{
		dir:      dir,
		files:    files,
		debounce: 250 * time.Millisecond,
		log:      log,
		onLoad:   onLoad,
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// editors replace files, so watch the directory rather than the files
	if err := fw.Add(w.dir); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("dataset file changed", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("dataset watcher error", zap.Error(err))

		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(ev.Name)
	return name == w.files.Trees || name == w.files.Grid
}

func (w *Watcher) reload() {
	ds, err := Load(w.dir, w.files)
	if err != nil {
		metrics.DatasetReloadsTotal.WithLabelValues("error").Inc()
		w.log.Warn("dataset reload failed", zap.Error(err))
		return
	}
	w.log.Debug("dataset files loaded",
		zap.Int("trees", len(ds.Trees.Features)),
		zap.Int("grid_cells", len(ds.Grid.Features)),
	)
	w.onLoad(ds)
}
