package migrate

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/signflow/migrations"
)

func TestFiles_GooseAnnotated(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)
	require.Equal(t, []string{"00001_kv_records.sql", "00002_auth_limiter.sql"}, files)

	for _, f := range files {
		b, err := fs.ReadFile(migrations.FS, f)
		require.NoError(t, err)
		src := string(b)
		require.True(t, strings.Contains(src, "-- +goose Up"), f)
		require.True(t, strings.Contains(src, "-- +goose Down"), f)
	}
}

func TestFiles_MatchQueries(t *testing.T) {
	b, err := fs.ReadFile(migrations.FS, "00002_auth_limiter.sql")
	require.NoError(t, err)
	require.Contains(t, string(b), "PRIMARY KEY (account, ip_hash)")
}
