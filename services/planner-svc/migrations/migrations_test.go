package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(FS, Dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	tables := []string{"plan_runs", "disconnected_districts", "seeding_log", "assignments"}
	var all strings.Builder

	for _, e := range entries {
		data, err := fs.ReadFile(FS, Dir+"/"+e.Name())
		require.NoError(t, err)

		body := string(data)
		assert.Contains(t, body, "-- +goose Up", e.Name())
		assert.Contains(t, body, "-- +goose Down", e.Name())
		all.WriteString(body)
	}

	for _, table := range tables {
		assert.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table)
	}
}
