package ocr

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeTesseract(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a unix shell")
	}
	path := filepath.Join(t.TempDir(), "tesseract")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestRecognize_TrimsOutput(t *testing.T) {
	bin := fakeTesseract(t, "cat >/dev/null\necho \"  $3 $4 会议纪要  \"\n")
	tess := NewTesseract(Config{TesseractPath: bin, Languages: "chi_sim+eng"}, zerolog.Nop())

	text, err := tess.Recognize(context.Background(), []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, "-l chi_sim+eng 会议纪要", text)
	assert.True(t, tess.Available(context.Background()))
}

func TestRecognize_CommandFailure(t *testing.T) {
	bin := fakeTesseract(t, "echo boom >&2\nexit 3\n")
	tess := NewTesseract(Config{TesseractPath: bin}, zerolog.Nop())

	_, err := tess.Recognize(context.Background(), []byte{1})
	assert.Error(t, err)
}

func TestRecognize_EmptyImage(t *testing.T) {
	_, err := NewTesseract(DefaultConfig(), zerolog.Nop()).Recognize(context.Background(), nil)
	assert.Error(t, err)
}

func TestAvailable_MissingBinary(t *testing.T) {
	tess := NewTesseract(Config{TesseractPath: filepath.Join(t.TempDir(), "missing")}, zerolog.Nop())
	assert.False(t, tess.Available(context.Background()))
}
