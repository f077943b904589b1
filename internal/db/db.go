package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"memoflux/internal/jobs"
	"memoflux/internal/logging"
	"memoflux/internal/memo"
	"memoflux/internal/schedule"
	"memoflux/internal/tags"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Connect opens Postgres for postgres URLs and key=value DSNs, SQLite otherwise.
func Connect(dsn string, log zerolog.Logger) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logging.Gorm(log)}

	if isPostgres(dsn) {
		gdb, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return gdb, nil
	}

	if dsn == "" {
		dsn = "memoflux.db"
	}
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; in-memory databases are per connection.
	sqlDB.SetMaxOpenConns(1)
	return gdb, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&memo.Memo{},
		&schedule.TaskRecord{},
		&tags.Entry{},
		&jobs.Job{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	stmts := []string{
		`create unique index if not exists uq_tag_entries_name on tag_entries(name);`,
		`create index if not exists idx_memos_created on memos(created_at desc);`,
		`create index if not exists idx_tasks_memo_pos on schedule_tasks(memo_id, position);`,
		`create index if not exists idx_tasks_start on schedule_tasks(start_at);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
		`create index if not exists idx_jobs_memo on jobs(memo_id, status);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}
	return nil
}
