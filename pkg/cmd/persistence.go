// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/dukex/flowprobe/pkg/persistence/file"
	"github.com/dukex/flowprobe/pkg/persistence/memory"
	"github.com/dukex/flowprobe/pkg/persistence/sqlbase"
	"github.com/dukex/flowprobe/pkg/persistence/sqlstore"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql", "sqlite", "memory"}

// NewPersistence opens the backend named by the scheme of databaseURL. A URL
// without a known scheme is a directory for the file backend.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)

	logger.InfoContext(ctx, "Opening persistence", "provider", provider)

	switch provider {
	case "postgres", "postgresql":
		p, err := sqlstore.NewPersistence(ctx, logger, sqlbase.Postgres, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres persistence: %w", err)
		}

		return p, nil
	case "sqlite":
		p, err := sqlstore.NewPersistence(ctx, logger, sqlbase.SQLite, strings.TrimPrefix(databaseURL, "sqlite://"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite persistence: %w", err)
		}

		return p, nil
	case "memory":
		return memory.NewPersistence(), nil
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
