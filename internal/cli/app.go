package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"example.com/liftcoach/internal/config"
	"example.com/liftcoach/internal/connectivity"
	"example.com/liftcoach/internal/kvstore"
	"example.com/liftcoach/internal/observability"
	"example.com/liftcoach/internal/outbox"
	"example.com/liftcoach/internal/progress"
	"example.com/liftcoach/internal/remotelog"
	"example.com/liftcoach/internal/session"
)

const (
	notifyBuffer       = 256
	notifyDrainTimeout = 5 * time.Second
)

// app is the wired object graph shared by every command.
type app struct {
	cfg        config.Config
	store      kvstore.Store
	client     *remotelog.Client
	monitor    *connectivity.Monitor
	prober     *connectivity.Prober
	queue      *outbox.Queue
	dispatcher *outbox.Dispatcher
	progress   *progress.Cache
	sessions   *session.Store
	closers    []io.Closer
}

// openApp builds the app. When probe is set the remote log is probed once so
// one-shot commands start with a real connectivity state.
func openApp(ctx context.Context, opts *RootOptions, probe bool) (*app, error) {
	cfg := opts.config()
	a := &app{cfg: cfg}

	if closer := configureLogging(cfg); closer != nil {
		a.closers = append(a.closers, closer)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store)

	a.client = remotelog.NewClient(cfg.APIURL, cfg.Origin, cfg.HTTPTimeout)
	a.monitor = connectivity.NewMonitor(false)
	a.prober, err = connectivity.NewProber(cfg.APIURL, a.monitor, cfg.ProbeInterval, cfg.HTTPTimeout)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.queue = outbox.NewQueue(store, outbox.WithObserver(observability.RecordPending))

	dispatcherOpts := []outbox.Option{
		outbox.WithConnectivity(a.monitor),
		outbox.WithInterval(cfg.SyncInterval),
	}
	if len(cfg.KafkaBrokers) > 0 {
		notifier := outbox.NewAsyncNotifier(
			outbox.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic),
			notifyBuffer, cfg.HTTPTimeout, notifyDrainTimeout,
		)
		a.closers = append(a.closers, notifier)
		dispatcherOpts = append(dispatcherOpts, outbox.WithNotifier(notifier))
	}
	a.dispatcher = outbox.NewDispatcher(a.queue, a.client, dispatcherOpts...)
	a.progress = progress.NewCache(a.client, progress.WithLimit(cfg.PrefillLimit))
	a.sessions = session.NewStore(store, cfg.UserID, cfg.WorkoutID)

	if probe && !opts.Offline {
		a.prober.Probe(ctx)
	}
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config) (kvstore.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return kvstore.OpenSQLite(ctx, cfg.DBPath)
	case config.StorePostgres:
		return kvstore.OpenPostgres(ctx, cfg.PostgresURL, cfg.ClientID)
	case config.StoreMemory:
		return kvstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store %q: must be %s, %s or %s", cfg.Store, config.StoreSQLite, config.StorePostgres, config.StoreMemory)
	}
}

// configureLogging routes the standard logger to a rotating file when LOG_FILE is
// set. It must run before any package logger is constructed.
func configureLogging(cfg config.Config) io.Closer {
	if cfg.LogFile == "" {
		return nil
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
	}
	log.SetOutput(rotator)
	return rotator
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
