package main

import (
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"memoflux/internal/analysis"
	"memoflux/internal/auth"
	"memoflux/internal/config"
	"memoflux/internal/db"
	"memoflux/internal/imageproc"
	"memoflux/internal/inbox"
	"memoflux/internal/jobs"
	"memoflux/internal/memo"
	"memoflux/internal/ocr"
	"memoflux/internal/pipeline"
	"memoflux/internal/schedule"
	"memoflux/internal/tags"
)

// app holds the services shared by every subcommand.
type app struct {
	db       *gorm.DB
	memos    *memo.Service
	tasks    *schedule.Store
	tags     *tags.Registry
	jobs     *jobs.Repo
	analyzer *pipeline.Analyzer
	inbox    *inbox.Inbox
	jwt      *auth.JWT
}

func newApp(cfg config.Config, log zerolog.Logger) (*app, error) {
	gdb, err := db.Connect(cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		return nil, err
	}

	a := &app{db: gdb}
	a.tasks = schedule.NewStore(gdb, log.With().Str("component", "schedule").Logger())
	a.tags = tags.NewRegistry(gdb, log.With().Str("component", "tags").Logger())
	a.jobs = &jobs.Repo{DB: gdb}
	a.memos = memo.NewService(gdb, a.tasks, a.tags, a.jobs, log.With().Str("component", "memo").Logger())

	client := analysis.New(cfg.AIGenBaseURL,
		analysis.WithToken(cfg.AIGenToken),
		analysis.WithTimeouts(cfg.AIGenRequestTimeout, cfg.AIGenResourceTimeout),
		analysis.WithLogger(log.With().Str("component", "analysis").Logger()),
	)
	a.analyzer = &pipeline.Analyzer{
		Memos:  a.memos,
		Client: client,
		Tags:   a.tags,
		OCR: ocr.NewTesseract(ocr.Config{
			TesseractPath: cfg.TesseractPath,
			Languages:     cfg.OCRLanguages,
		}, log.With().Str("component", "ocr").Logger()),
		Preset: imageproc.PresetByName(cfg.ImageQuality),
		Log:    log.With().Str("component", "pipeline").Logger(),
	}
	a.inbox = &inbox.Inbox{
		Dir:   cfg.InboxDir,
		File:  cfg.InboxFile,
		Memos: a.memos,
		Jobs:  a.jobs,
		Log:   log.With().Str("component", "inbox").Logger(),
	}
	if cfg.APITokenSecret != "" {
		a.jwt = auth.NewJWT(cfg.APITokenSecret)
	}
	return a, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
