package sqlstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// scanDocuments decodes the single data column of every row into a new T.
func scanDocuments[T any](rows *sql.Rows) ([]*T, error) {
	defer func() { _ = rows.Close() }()

	out := []*T{}

	for rows.Next() {
		var data string

		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var doc T
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}

		out = append(out, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return out, nil
}

// scanDocument decodes the data column of row. It reports false on sql.ErrNoRows.
func scanDocument[T any](row *sql.Row) (*T, bool, error) {
	var data string

	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to scan row: %w", err)
	}

	var doc T
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, false, fmt.Errorf("failed to decode document: %w", err)
	}

	return &doc, true, nil
}
