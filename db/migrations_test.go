package db

import (
	"io/fs"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// User.ID is an int64 and GetUser accepts any int64, so the key column must
// hold the full range on every dialect.
func TestMigrations_UsersIDIs64Bit(t *testing.T) {
	tests := map[string]*regexp.Regexp{
		"migrations/postgres/000001_create_users_table.up.sql": regexp.MustCompile(`(?m)^\s*id\s+BIGSERIAL\s+PRIMARY KEY`),
		"migrations/sqlite/000001_create_users_table.up.sql":   regexp.MustCompile(`(?m)^\s*id\s+INTEGER\s+PRIMARY KEY`),
	}

	for path, want := range tests {
		t.Run(path, func(t *testing.T) {
			sql, err := fs.ReadFile(migrationsFS, path)
			require.NoError(t, err)
			assert.Regexp(t, want, string(sql))
		})
	}
}
