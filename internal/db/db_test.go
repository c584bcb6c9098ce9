package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedule-bridge-backend/config"
)

func TestDialectorFor(t *testing.T) {
	testCases := []struct {
		backend  string
		expected string
		wantErr  bool
	}{
		{backend: config.DatabasePostgres, expected: "postgres"},
		{backend: config.DatabaseMySQL, expected: "mysql"},
		{backend: config.DatabaseSQLite, expected: "sqlite"},
		{backend: "oracle", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.backend, func(t *testing.T) {
			d, err := dialectorFor(&config.DatabaseConfig{Backend: tc.backend, DSN: "x"})
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, d.Name())
		})
	}
}

func TestInit_SQLiteMigratesTables(t *testing.T) {
	gdb, err := Init(&config.DatabaseConfig{
		Backend:      config.DatabaseSQLite,
		DSN:          "file::memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, "production")
	require.NoError(t, err)
	sqlDB, _ := gdb.DB()
	defer sqlDB.Close()

	for _, table := range []string{"auditory", "auditory_journal", "subjects", "push_subscriptions"} {
		assert.True(t, gdb.Migrator().HasTable(table), "missing table %s", table)
	}
}
