// Package dispatch contains the worker-side control loop of the queue:
// claiming unsent requests for one process and driving each claimed request
// through assembly, transport and the status state machine.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/mail-dispatch/internal/assemble"
	"github.com/sungwon/mail-dispatch/internal/mailer"
	"github.com/sungwon/mail-dispatch/internal/metrics"
	"github.com/sungwon/mail-dispatch/internal/storage"
)

// Report summarizes one batch run.
type Report struct {
	// Selected is how many requests this run set out to dispatch.
	Selected int
	// Sent and Failed count per-request outcomes.
	Sent   int
	Failed int
	// Skipped counts rows another process had already moved on by the
	// time this run reached them.
	Skipped int
}

// Engine runs one dispatch batch: claim, then per-request
// fetch/assemble/send/transition in ascending request-id order.
type Engine struct {
	queries   storage.Querier
	coord     *Coordinator
	assembler *assemble.Assembler
	mailer    mailer.Mailer
	notifier  Notifier
	cfg       Config
	log       zerolog.Logger
}

// NewEngine creates an Engine. All collaborators are required except the
// notifier, which defaults to log-only reporting.
func NewEngine(
	queries storage.Querier,
	assembler *assemble.Assembler,
	m mailer.Mailer,
	notifier Notifier,
	cfg Config,
	log zerolog.Logger,
) *Engine {
	if notifier == nil {
		notifier = NewLogNotifier(log)
	}
	return &Engine{
		queries:   queries,
		coord:     NewCoordinator(queries, log),
		assembler: assembler,
		mailer:    m,
		notifier:  notifier,
		cfg:       cfg,
		log:       log,
	}
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeSkipped
)

// Run claims matching unsent requests for this process and dispatches them
// one by one. A per-request failure marks that request FAILED and the run
// continues; a failed compensation update aborts the run with a
// *ConsistencyError, and store errors outside the send path abort it with
// an ordinary error.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	var report Report

	claimed, err := e.coord.Claim(ctx, e.cfg)
	if err != nil {
		return report, err
	}

	ids, err := e.listEligible(ctx)
	if err != nil {
		return report, err
	}
	report.Selected = len(ids)

	// Selected can exceed claimed: an owned row left behind by an earlier
	// aborted run of the same process id is picked up again here.
	e.log.Info().
		Int("selected", report.Selected).
		Int64("claimed", claimed).
		Msg("requests selected")

	for _, id := range ids {
		result, err := e.dispatchOne(ctx, id)
		if err != nil {
			return report, err
		}
		switch result {
		case outcomeSent:
			report.Sent++
		case outcomeFailed:
			report.Failed++
		case outcomeSkipped:
			report.Skipped++
		}
	}

	e.log.Info().
		Int("selected", report.Selected).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Msg("dispatch batch completed")

	return report, nil
}

// listEligible returns the ids this run dispatches, ascending. The queries
// order by request_id, which the sequence service keeps aligned with
// allocation order.
func (e *Engine) listEligible(ctx context.Context) ([]string, error) {
	if e.cfg.Multiprocess {
		ids, err := e.queries.ListOwned(ctx, storage.ListOwnedParams{
			ProcessID: e.cfg.ProcessID,
			PatternID: e.cfg.PatternID,
		})
		if err != nil {
			return nil, fmt.Errorf("list owned requests: %w", err)
		}
		return ids, nil
	}

	ids, err := e.queries.ListUnsent(ctx, e.cfg.PatternID)
	if err != nil {
		return nil, fmt.Errorf("list unsent requests: %w", err)
	}
	return ids, nil
}

// dispatchOne drives a single request through the state machine.
//
// The request is marked SENT before the transport send. The send is the
// one step that can hang or partially succeed, and a crash in the middle
// of it must not leave the row reprocessable: a retry would duplicate the
// message to recipients that already received it. The price is a narrow
// window where a crash between the pre-mark and the compensating update
// leaves a row marked SENT that was never delivered. Do not reorder these
// steps.
func (e *Engine) dispatchOne(ctx context.Context, requestID string) (outcome, error) {
	start := time.Now()
	defer func() {
		metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := e.queries.GetMailRequest(ctx, requestID)
	if err != nil {
		return 0, fmt.Errorf("get request %s: %w", requestID, err)
	}
	recipients, err := e.queries.ListRecipients(ctx, requestID)
	if err != nil {
		return 0, fmt.Errorf("list recipients of %s: %w", requestID, err)
	}
	attachments, err := e.queries.ListAttachments(ctx, requestID)
	if err != nil {
		return 0, fmt.Errorf("list attachments of %s: %w", requestID, err)
	}

	rows, err := e.queries.MarkSent(ctx, storage.MarkSentParams{
		RequestID: requestID,
		SentAt:    time.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("mark request %s sent: %w", requestID, err)
	}
	if rows == 0 {
		// Row no longer UNSENT: a concurrent or earlier run got here
		// first.
		e.log.Warn().Str("request_id", requestID).Msg("request already transitioned, skipping")
		return outcomeSkipped, nil
	}

	msg, sendErr := e.assembler.Assemble(&req, recipients, attachments)
	if sendErr == nil {
		sendErr = e.mailer.Send(ctx, msg)
	}

	if sendErr != nil {
		if _, cerr := e.queries.MarkFailed(ctx, requestID); cerr != nil {
			return 0, &ConsistencyError{RequestID: requestID, SendErr: sendErr, Err: cerr}
		}
		metrics.RequestsDispatchedTotal.WithLabelValues("failed").Inc()
		e.notifier.Failed(ctx, requestID, sendErr)
		return outcomeFailed, nil
	}

	metrics.RequestsDispatchedTotal.WithLabelValues("sent").Inc()
	e.notifier.Sent(ctx, requestID)
	return outcomeSent, nil
}
