package sqlbase_test

import (
	"testing"
	"time"

	"github.com/dukex/flowprobe/pkg/persistence/sqlbase"
	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect sqlbase.Dialect
		query   string
		want    string
	}{
		{"postgres", sqlbase.Postgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"postgres literal", sqlbase.Postgres, "SELECT '?' FROM t WHERE a = ?", "SELECT '?' FROM t WHERE a = $1"},
		{"sqlite untouched", sqlbase.SQLite, "SELECT * FROM t WHERE a = ?", "SELECT * FROM t WHERE a = ?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.Rebind(tt.query))
		})
	}
}

func TestUpsert(t *testing.T) {
	got := sqlbase.Postgres.Upsert("runs", "id", []string{"id", "project_id", "data"})

	assert.Equal(t,
		"INSERT INTO runs (id, project_id, data) VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET "+
			"project_id = excluded.project_id, data = excluded.data",
		got)
}

func TestDriverName(t *testing.T) {
	assert.Equal(t, "postgres", sqlbase.Postgres.DriverName())
	assert.Equal(t, "sqlite", sqlbase.SQLite.DriverName())
}

func TestUnixNano(t *testing.T) {
	assert.Equal(t, int64(0), sqlbase.ToUnixNano(time.Time{}))
	assert.True(t, sqlbase.FromUnixNano(0).IsZero())

	now := time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)
	assert.True(t, now.Equal(sqlbase.FromUnixNano(sqlbase.ToUnixNano(now))))
}
