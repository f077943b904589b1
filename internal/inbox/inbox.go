// Package inbox imports images dropped into a shared directory, typically by a
// phone shortcut, as new memos.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"memoflux/internal/imageproc"
	"memoflux/internal/jobs"
	"memoflux/internal/memo"
)

var ErrNotImage = errors.New("inbox file is not an image")

var imagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "memoflux",
	Subsystem: "inbox",
	Name:      "images_total",
	Help:      "Inbox images by outcome.",
}, []string{"outcome"})

type Inbox struct {
	Dir      string
	File     string
	Memos    *memo.Service
	Jobs     *jobs.Repo
	Debounce time.Duration
	Log      zerolog.Logger

	mu sync.Mutex
}

func (i *Inbox) Path() string { return filepath.Join(i.Dir, i.File) }

// Check imports the inbox file if it exists and holds an image not seen before.
// It returns the new memo, or nil when there was nothing to import. The file is left in place.
func (i *Inbox) Check(ctx context.Context) (*memo.Memo, error) {
	data, err := os.ReadFile(i.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	m, err := i.Ingest(ctx, data, memo.SourceShortcut)
	if errors.Is(err, memo.ErrDuplicateImage) {
		return nil, nil
	}
	return m, err
}

// Ingest stores data as an image memo tagged with tagNames and queues text
// recognition and analysis.
func (i *Inbox) Ingest(ctx context.Context, data []byte, source memo.Source, tagNames ...string) (*memo.Memo, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := imageproc.Validate(data); err != nil {
		imagesTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	m, err := i.Memos.CreateFromImage(ctx, memo.CreateImageInput{Image: data, Tags: tagNames, Source: source})
	if errors.Is(err, memo.ErrDuplicateImage) {
		imagesTotal.WithLabelValues("duplicate").Inc()
		i.Log.Debug().Int("bytes", len(data)).Msg("inbox image already imported")
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	imagesTotal.WithLabelValues("ingested").Inc()

	if _, err := i.Jobs.Enqueue(ctx, jobs.TypeRecognizeText, m.ID, time.Now()); err != nil {
		i.Log.Error().Err(err).Str("memo_id", m.ID.String()).Msg("queue text recognition")
	}
	if _, err := i.Memos.Enqueue(ctx, m.ID); err != nil {
		i.Log.Error().Err(err).Str("memo_id", m.ID.String()).Msg("queue analysis")
	}

	i.Log.Info().Str("memo_id", m.ID.String()).Str("source", string(source)).Msg("inbox image imported")
	return m, nil
}

// Watch checks the inbox whenever the file is created or rewritten, after
// writes have been quiet for the debounce period. It returns when ctx is done.
func (i *Inbox) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := os.MkdirAll(i.Dir, 0o755); err != nil {
		return fmt.Errorf("create inbox dir: %w", err)
	}
	if err := w.Add(i.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", i.Dir, err)
	}

	debounce := i.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	target := filepath.Clean(i.Path())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			i.Log.Warn().Err(err).Msg("inbox watcher error")
		case <-timer.C:
			if _, err := i.Check(ctx); err != nil {
				i.Log.Warn().Err(err).Msg("inbox check")
			}
		}
	}
}
