package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sungwon/mail-dispatch/internal/assemble"
	"github.com/sungwon/mail-dispatch/internal/config"
	"github.com/sungwon/mail-dispatch/internal/dispatch"
	"github.com/sungwon/mail-dispatch/internal/logger"
	"github.com/sungwon/mail-dispatch/internal/mailer"
	"github.com/sungwon/mail-dispatch/internal/metrics"
	"github.com/sungwon/mail-dispatch/internal/storage"
)

// Exit codes: 0 normal completion (some requests may individually be
// FAILED), 1 configuration or store error, 2 consistency emergency (a
// compensation update failed and a row needs manual correction).
const (
	exitOK          = 0
	exitFatal       = 1
	exitConsistency = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config", "path to the config directory")
	patternID := flag.String("pattern", "", "override worker.pattern_id")
	processID := flag.String("process-id", "", "override worker.process_id")
	initSchema := flag.Bool("init-schema", false, "create the queue tables and exit")
	stdout := flag.Bool("stdout", false, "print messages instead of sending via SMTP")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitFatal
	}
	if *patternID != "" {
		cfg.Worker.PatternID = *patternID
	}
	if *processID != "" {
		cfg.Worker.ProcessID = *processID
	}

	log := logger.New(cfg.Logging.Level)
	if cfg.Logging.File != "" {
		log = logger.NewFile(cfg.Logging.Level, cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxFiles)
	}
	log.Info().Msg("starting dispatch worker")

	ctx := logger.WithLogger(context.Background(), log)
	ctx = logger.WithCorrelationID(ctx, logger.NewCorrelationID())

	// Expose the prometheus counters for the duration of the batch so a
	// scrape during the run observes them.
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			log.Info().Str("addr", cfg.Metrics.Listen).Msg("metrics endpoint listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("metrics endpoint shutdown failed")
			}
		}()
	}

	db, err := storage.NewDB(ctx, cfg.Database.URL, cfg.Database.PoolMin, cfg.Database.PoolMax, cfg.Database.ConnectTimeout)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to database")
		return exitFatal
	}
	defer db.Close()

	if *initSchema {
		if err := storage.ApplySchema(ctx, db.Pool); err != nil {
			log.Error().Err(err).Msg("failed to initialize schema")
			return exitFatal
		}
		log.Info().Msg("schema initialized")
		return exitOK
	}

	queries := storage.New(db.Pool)

	var m mailer.Mailer
	if *stdout {
		m = mailer.NewStdoutMailer()
	} else {
		m = mailer.NewSMTPMailer(mailer.Config{
			Host:           cfg.Mailer.Host,
			Port:           cfg.Mailer.Port,
			ConnectTimeout: cfg.Mailer.ConnectTimeout,
			SendTimeout:    cfg.Mailer.SendTimeout,
			LocalName:      cfg.Mailer.LocalName,
			Username:       cfg.Mailer.Username,
			Password:       cfg.Mailer.Password,
		}, log)
	}

	engine := dispatch.NewEngine(
		queries,
		assemble.New(nil, log),
		m,
		dispatch.NewLogNotifier(log),
		dispatch.Config{
			Multiprocess: cfg.Worker.Multiprocess,
			ProcessID:    cfg.Worker.ProcessID,
			PatternID:    cfg.Worker.PatternID,
		},
		log,
	)

	report, err := engine.Run(ctx)
	if err != nil {
		var consistency *dispatch.ConsistencyError
		if errors.As(err, &consistency) {
			log.Error().Err(err).
				Str("request_id", consistency.RequestID).
				Msg("consistency emergency, aborting batch")
			return exitConsistency
		}
		log.Error().Err(err).Msg("dispatch batch aborted")
		return exitFatal
	}

	log.Info().
		Int("selected", report.Selected).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("dispatch worker finished")

	return exitOK
}
