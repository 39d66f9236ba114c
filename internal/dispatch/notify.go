package dispatch

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier receives per-request dispatch outcomes. Implementations must not
// block the batch; a slow sink delays every later request.
type Notifier interface {
	Sent(ctx context.Context, requestID string)
	Failed(ctx context.Context, requestID string, err error)
}

// LogNotifier reports outcomes through the structured log.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Sent(_ context.Context, requestID string) {
	n.log.Info().Str("request_id", requestID).Msg("mail request sent")
}

func (n *LogNotifier) Failed(_ context.Context, requestID string, err error) {
	n.log.Error().Err(err).Str("request_id", requestID).Msg("mail request failed")
}
