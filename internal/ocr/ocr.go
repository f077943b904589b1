// Package ocr extracts text from memo photos with the tesseract CLI.
package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Recognizer turns image bytes into text. An empty result with a nil error means no text was found.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

type Config struct {
	// TesseractPath is the executable, looked up on PATH when not absolute.
	TesseractPath string
	// Languages is passed to -l, e.g. "chi_sim+eng".
	Languages string
	// DataPath is an optional --tessdata-dir.
	DataPath string
}

func DefaultConfig() Config {
	return Config{TesseractPath: "tesseract", Languages: "chi_sim+eng"}
}

type Tesseract struct {
	cfg Config
	log zerolog.Logger
}

func NewTesseract(cfg Config, log zerolog.Logger) *Tesseract {
	if cfg.TesseractPath == "" {
		cfg.TesseractPath = "tesseract"
	}
	return &Tesseract{cfg: cfg, log: log}
}

// Recognize pipes the image through tesseract's stdin and reads the text from stdout.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}

	args := []string{"stdin", "stdout"}
	if t.cfg.Languages != "" {
		args = append(args, "-l", t.cfg.Languages)
	}
	if t.cfg.DataPath != "" {
		args = append(args, "--tessdata-dir", t.cfg.DataPath)
	}

	cmd := exec.CommandContext(ctx, t.cfg.TesseractPath, args...)
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.log.Warn().Err(err).Str("stderr", strings.TrimSpace(stderr.String())).Msg("tesseract command failed")
		return "", errors.Wrap(err, "tesseract command failed")
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Available reports whether the executable runs.
func (t *Tesseract) Available(ctx context.Context) bool {
	return exec.CommandContext(ctx, t.cfg.TesseractPath, "--version").Run() == nil
}
