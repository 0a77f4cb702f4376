package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/internal/notify"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/config"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/coredb"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/currency"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/distribution"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/history"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/metrics"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/payment"
	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/stellar"
	"github.com/Stellar-Pool/stellar-pool-service/stats/pkg/handlers"
	statsmetrics "github.com/Stellar-Pool/stellar-pool-service/stats/pkg/metrics"
	"github.com/Stellar-Pool/stellar-pool-service/stats/pkg/server"
	"github.com/Stellar-Pool/stellar-pool-service/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const notifyTimeout = 30 * time.Second

var errMissingPrize = errors.New("prize is required")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	executeFlag := flag.Bool("execute", false, "submit the payments; without it the run is a dry run")
	serveStatsFlag := flag.Bool("serve-stats", false, "serve the network statistics API until interrupted")
	historyMigrateFlag := flag.Bool("history-migrate", false, "apply run history database migrations and exit")
	configFlag := flag.String("config", config.DefaultPath, "path to the configuration file")
	poolFlag := flag.String("pool", "", "distribute for this pool address instead of the configured one")
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	metricsAddrFlag := flag.String("metrics-addr", "", "address to listen on for prometheus metrics")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: stellarpool [flags] <prize>\n\nprize is the amount to distribute in XLM, e.g. 1500.25\n\nFlags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	log := logger.New(*verboseFlag)

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	if *poolFlag != "" {
		cfg.Pool = *poolFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, mux); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *historyMigrateFlag {
		if cfg.History.DatabaseURL == "" {
			return errors.New("history.databaseURL (or HISTORY_DATABASE_URL) is required for --history-migrate")
		}
		return history.Migrate(ctx, log, cfg.History.DatabaseURL)
	}

	if *serveStatsFlag {
		return serveStats(ctx, log, cfg)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		return errMissingPrize
	}
	prize, err := currency.ParseLumens(flag.Arg(0))
	if err != nil {
		return err
	}

	notifier, flush, err := newNotifier(log, cfg)
	if err != nil {
		return err
	}
	defer flush()

	res, runErr := distribute(ctx, log, cfg, prize, *executeFlag)

	notifyCtx, notifyCancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer notifyCancel()
	if err := notifier.Notify(notifyCtx, res, runErr); err != nil {
		log.Warn("failed to send run notification", "error", err)
	}
	return runErr
}

func distribute(ctx context.Context, log *slog.Logger, cfg *config.Config, prize currency.Amount, execute bool) (*distribution.Result, error) {
	pool, err := cfg.PoolAccount()
	if err != nil {
		return nil, err
	}
	collector, err := cfg.FeeCollectorAccount()
	if err != nil {
		return nil, err
	}
	schedule, err := cfg.Schedule()
	if err != nil {
		return nil, err
	}
	thresholds, err := cfg.Thresholds()
	if err != nil {
		return nil, err
	}

	var submitter payment.Submitter = payment.NewDryRun(log)
	if execute {
		submitter, err = newSubmitter(ctx, log, cfg)
		if err != nil {
			return nil, err
		}
	}

	db, err := coredb.New(ctx, coredb.Config{Logger: log, ConnString: cfg.Core.ConnString(), Pool: pool})
	if err != nil {
		return nil, err
	}
	defer db.Close()

	snapshot, err := db.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer snapshot.Close(context.WithoutCancel(ctx))

	d, err := distribution.New(distribution.Config{
		Logger:       log,
		DataSource:   snapshot,
		Submitter:    submitter,
		Schedule:     schedule,
		Thresholds:   thresholds,
		FeeCollector: collector,
		Memo:         cfg.Messages.Distribution,
		Report:       os.Stdout,
	})
	if err != nil {
		return nil, err
	}

	res, err := d.Distribute(ctx, prize)
	if err != nil {
		return nil, err
	}

	if cfg.History.DatabaseURL != "" {
		if err := recordRun(context.WithoutCancel(ctx), log, cfg.History.DatabaseURL, res); err != nil {
			log.Warn("failed to record run history", "run_id", res.RunID, "error", err)
		}
	}
	return res, nil
}

func newSubmitter(ctx context.Context, log *slog.Logger, cfg *config.Config) (*stellar.Submitter, error) {
	seed, err := cfg.BankSeed()
	if err != nil {
		return nil, err
	}

	horizon, err := stellar.NewHorizonNetwork(stellar.HorizonConfig{
		Logger:     log,
		URL:        cfg.Network.HorizonURL,
		Passphrase: cfg.Passphrase(),
	})
	if err != nil {
		return nil, err
	}

	var network stellar.Network = horizon
	if cfg.Network.Mode == config.NetworkModeCore {
		network, err = stellar.NewCoreNetwork(stellar.CoreConfig{
			Logger:     log,
			URL:        cfg.Network.CoreURL,
			Passphrase: cfg.Passphrase(),
			Accounts:   horizon,
		})
		if err != nil {
			return nil, err
		}
	}

	return stellar.NewSubmitter(ctx, stellar.SubmitterConfig{
		Logger:  log,
		Network: network,
		Seed:    seed,
		BaseFee: cfg.Network.BaseFee,
	})
}

func recordRun(ctx context.Context, log *slog.Logger, connString string, res *distribution.Result) error {
	store, err := history.NewStore(ctx, history.StoreConfig{Logger: log, ConnString: connString})
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Record(ctx, res)
}

// newNotifier builds the configured notification channels. The returned
// function flushes buffered events and must run before exit.
func newNotifier(log *slog.Logger, cfg *config.Config) (notify.Notifier, func(), error) {
	var notifiers notify.Multi
	flush := func() {}

	if url := cfg.Notifications.SlackWebhookURL; url != "" {
		s, err := notify.NewSlack(notify.SlackConfig{Logger: log, WebhookURL: url})
		if err != nil {
			return nil, nil, err
		}
		notifiers = append(notifiers, s)
	}
	if dsn := cfg.Notifications.SentryDSN; dsn != "" {
		s, err := notify.NewSentry(notify.SentryConfig{
			Logger:      log,
			DSN:         dsn,
			Environment: cfg.Notifications.Environment,
			Release:     version,
		})
		if err != nil {
			return nil, nil, err
		}
		notifiers = append(notifiers, s)
		flush = func() { s.Flush(0) }
	}
	return notifiers, flush, nil
}

func serveStats(ctx context.Context, log *slog.Logger, cfg *config.Config) error {
	pool, err := cfg.PoolAccount()
	if err != nil {
		return err
	}
	db, err := coredb.New(ctx, coredb.Config{Logger: log, ConnString: cfg.Core.ConnString(), Pool: pool})
	if err != nil {
		return err
	}
	defer db.Close()

	network, err := handlers.NewNetworkInfo(handlers.NetworkInfoConfig{
		Logger: log,
		Source: db,
		TTL:    cfg.Stats.CacheTTL.Duration,
	})
	if err != nil {
		return err
	}

	handlersCfg := handlers.Config{Logger: log, Network: network}
	if cfg.History.DatabaseURL != "" {
		store, err := history.NewStore(ctx, history.StoreConfig{Logger: log, ConnString: cfg.History.DatabaseURL})
		if err != nil {
			return err
		}
		defer store.Close()
		handlersCfg.History = store
	}

	statsmetrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
	srv, err := server.New(server.Config{
		Logger:             log,
		ListenAddr:         cfg.Stats.ListenAddr,
		VersionInfo:        server.VersionInfo{Version: version, Commit: commit, Date: date},
		Password:           cfg.Stats.Password,
		RateLimitPerMinute: cfg.Stats.RateLimitPerMinute,
		RateLimitBurst:     cfg.Stats.RateLimitBurst,
		HandlersConfig:     handlersCfg,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
