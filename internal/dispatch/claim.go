package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sungwon/mail-dispatch/internal/metrics"
	"github.com/sungwon/mail-dispatch/internal/storage"
)

// Config selects which requests a worker run dispatches and how ownership
// is recorded.
type Config struct {
	// Multiprocess enables ownership-based claiming. When false the claim
	// step is a no-op and every matching UNSENT row is eligible.
	Multiprocess bool
	// ProcessID identifies this worker process. Required when
	// Multiprocess is set.
	ProcessID string
	// PatternID optionally restricts the run to requests carrying this
	// routing tag. Empty matches all.
	PatternID string
}

// Coordinator assigns unclaimed work to one worker process. The claim is a
// single conditional UPDATE against the shared store; no two processes can
// claim overlapping row sets because each row's owner column is written
// exactly once.
type Coordinator struct {
	queries storage.Querier
	log     zerolog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(queries storage.Querier, log zerolog.Logger) *Coordinator {
	return &Coordinator{queries: queries, log: log}
}

// Pending reports how many matching unclaimed UNSENT requests exist right
// now. Used for the "N requests selected" report before claiming; the
// subsequent claim may pick up fewer or more rows.
func (c *Coordinator) Pending(ctx context.Context, patternID string) (int64, error) {
	count, err := c.queries.CountUnclaimed(ctx, patternID)
	if err != nil {
		return 0, fmt.Errorf("count unclaimed requests: %w", err)
	}
	metrics.UnclaimedRequests.Set(float64(count))
	return count, nil
}

// Claim marks all matching unclaimed UNSENT rows as owned by cfg.ProcessID
// and returns how many rows this process now owns to dispatch. In
// single-process mode no ownership is written and the count of matching
// rows is returned instead.
func (c *Coordinator) Claim(ctx context.Context, cfg Config) (int64, error) {
	if !cfg.Multiprocess {
		return c.Pending(ctx, cfg.PatternID)
	}

	if cfg.ProcessID == "" {
		return 0, ErrProcessIDRequired
	}

	claimed, err := c.queries.ClaimRequests(ctx, storage.ClaimRequestsParams{
		ProcessID: cfg.ProcessID,
		PatternID: cfg.PatternID,
	})
	if err != nil {
		return 0, fmt.Errorf("claim requests: %w", err)
	}

	metrics.RequestsClaimedTotal.Add(float64(claimed))
	c.log.Info().
		Int64("claimed", claimed).
		Str("process_id", cfg.ProcessID).
		Str("pattern_id", cfg.PatternID).
		Msg("requests claimed")

	return claimed, nil
}
