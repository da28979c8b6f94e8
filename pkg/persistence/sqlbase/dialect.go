package sqlbase

import (
	"strconv"
	"strings"
)

// Dialect captures the differences between the supported SQL engines.
type Dialect int

const (
	// Postgres uses numbered placeholders ($1, $2, ...).
	Postgres Dialect = iota
	// SQLite uses question mark placeholders.
	SQLite
)

// DriverName returns the database/sql driver registered for d.
func (d Dialect) DriverName() string {
	if d == SQLite {
		return "sqlite"
	}

	return "postgres"
}

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}

	return "postgresql"
}

// Rebind rewrites "?" placeholders for d. Question marks inside single-quoted
// literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var (
		b      strings.Builder
		n      int
		quoted bool
	)

	b.Grow(len(query) + 8)

	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == '?' && !quoted:
			n++

			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// Upsert returns an INSERT that replaces the row sharing the same key column.
func (d Dialect) Upsert(table string, key string, columns []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	updates := make([]string, 0, len(columns))

	for _, c := range columns {
		if c != key {
			updates = append(updates, c+" = excluded."+c)
		}
	}

	return d.Rebind("INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES (" + placeholders +
		") ON CONFLICT (" + key + ") DO UPDATE SET " + strings.Join(updates, ", "))
}
