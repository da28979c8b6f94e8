package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dukex/flowprobe/pkg/persistence"
)

// Progress stream defaults.
const (
	DefaultStreamInterval = 500 * time.Millisecond
	DefaultStreamTimeout  = 5 * time.Minute
)

// StreamEvent is the SSE event name of every snapshot frame.
const StreamEvent = "update"

// Stream writes the run snapshot to w as an SSE "update" frame right away and
// then on every tick. It returns once the run is terminal, the run is gone,
// the stream timeout elapses or ctx is done. flush is called after each frame
// and may be nil.
func (m *Manager) Stream(ctx context.Context, id string, w io.Writer, flush func() error) error {
	ctx, cancel := context.WithTimeout(ctx, m.streamTimeout)
	defer cancel()

	ticker := time.NewTicker(m.streamInterval)
	defer ticker.Stop()

	for {
		done, err := m.emit(ctx, id, w, flush)
		if err != nil || done {
			return err
		}

		select {
		case <-ctx.Done():
			m.logger.DebugContext(ctx, "Closing run stream", "run_id", id, "reason", ctx.Err())

			return nil
		case <-ticker.C:
		}
	}
}

func (m *Manager) emit(ctx context.Context, id string, w io.Writer, flush func() error) (bool, error) {
	run, err := m.runs.RunByID(ctx, id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return true, nil
		}

		return true, err
	}

	payload, err := json.Marshal(run)
	if err != nil {
		return true, fmt.Errorf("failed to encode run: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", StreamEvent, payload); err != nil {
		return true, err
	}

	if flush != nil {
		if err := flush(); err != nil {
			return true, err
		}
	}

	return run.Status.Terminal(), nil
}
