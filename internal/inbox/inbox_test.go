package inbox_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memoflux/internal/db/dbtest"
	"memoflux/internal/inbox"
	"memoflux/internal/jobs"
	"memoflux/internal/memo"
	"memoflux/internal/schedule"
	"memoflux/internal/tags"
)

func newInbox(t *testing.T) *inbox.Inbox {
	t.Helper()
	gdb := dbtest.Open(t)
	repo := &jobs.Repo{DB: gdb}
	svc := memo.NewService(gdb, schedule.NewStore(gdb, zerolog.Nop()), tags.NewRegistry(gdb, zerolog.Nop()), repo, zerolog.Nop())
	return &inbox.Inbox{
		Dir:      t.TempDir(),
		File:     "imageFromShortcut.png",
		Memos:    svc,
		Jobs:     repo,
		Debounce: 20 * time.Millisecond,
		Log:      zerolog.Nop(),
	}
}

func pngWith(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, c)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCheck_MissingFile(t *testing.T) {
	in := newInbox(t)
	m, err := in.Check(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, m)
}

func TestCheck_ImportsOnceAndQueuesJobs(t *testing.T) {
	ctx := context.Background()
	in := newInbox(t)
	require.NoError(t, os.WriteFile(in.Path(), pngWith(t, color.White), 0o644))

	m, err := in.Check(ctx)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, memo.SourceShortcut, m.Source)

	stored, err := in.Memos.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsProcessing)

	list, err := in.Jobs.ForMemo(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, jobs.TypeRecognizeText, list[0].Type)
	assert.Equal(t, jobs.TypeAnalyzeMemo, list[1].Type)

	again, err := in.Check(ctx)
	require.NoError(t, err)
	assert.Nil(t, again)

	_, err = os.Stat(in.Path())
	assert.NoError(t, err, "inbox file is kept")
}

func TestIngest_RejectsNonImages(t *testing.T) {
	in := newInbox(t)
	_, err := in.Ingest(context.Background(), []byte("plain text"), memo.SourceManual)
	assert.ErrorIs(t, err, inbox.ErrNotImage)
}

func TestIngest_TagsCommitWithMemo(t *testing.T) {
	ctx := context.Background()
	in := newInbox(t)

	m, err := in.Ingest(ctx, pngWith(t, color.White), memo.SourceManual, "photo", "receipt", "photo")
	require.NoError(t, err)
	assert.Equal(t, []string{"photo", "receipt"}, []string(m.Tags))

	stored, err := in.Memos.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"photo", "receipt"}, []string(stored.Tags))
	assert.True(t, stored.IsProcessing)

	e, err := in.Memos.Tags.Get(ctx, "receipt")
	require.NoError(t, err)
	assert.EqualValues(t, 1, e.UsageCount)
}

func TestIngest_Duplicate(t *testing.T) {
	ctx := context.Background()
	in := newInbox(t)
	data := pngWith(t, color.Black)

	_, err := in.Ingest(ctx, data, memo.SourceManual)
	require.NoError(t, err)
	_, err = in.Ingest(ctx, data, memo.SourceManual)
	assert.ErrorIs(t, err, memo.ErrDuplicateImage)
}

func TestWatch_ImportsWrittenFile(t *testing.T) {
	in := newInbox(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- in.Watch(ctx) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(in.Dir, "other.png"), pngWith(t, color.White), 0o644))
	require.NoError(t, os.WriteFile(in.Path(), pngWith(t, color.Black), 0o644))

	assert.Eventually(t, func() bool {
		list, err := in.Memos.List(context.Background(), memo.ListFilter{})
		return err == nil && len(list) == 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-errc)
}
