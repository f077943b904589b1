// Package dbtest opens migrated in-memory databases for store tests.
package dbtest

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"memoflux/internal/db"
)

func Open(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.Connect(":memory:", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrateAndIndexes(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}
