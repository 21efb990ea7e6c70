package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ckreport/config"
	"ckreport/convertkit_v3"
	"ckreport/dailysync"
	"ckreport/database"
	"ckreport/report"
	"ckreport/snapshot"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const lockKey = "ckreport:daily-sync"

func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)

	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithError(err).Warn("unknown log level, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func main() {
	env := flag.String("env", os.Getenv("APP_ENV"), "config environment (dev, prod, ...)")
	configDir := flag.String("config-dir", "config", "directory holding <name>_<env>.json files")
	once := flag.Bool("once", false, "run the daily sync once and exit")
	initTables := flag.Bool("init", false, "write header rows into empty tables and exit")
	logLevel := flag.String("log-level", "", "log level (default LOG_LEVEL or info)")
	flag.Parse()

	//secrets may come from a local .env file; it is fine if there is none
	_ = godotenv.Load()
	setupLogger(*logLevel)

	cfg, err := config.Load(*configDir, *env)
	if err != nil {
		log.WithError(err).Fatal("could not load config")
	}
	creds, err := config.LoadCredentials(config.EnvCredentials{})
	if err != nil {
		log.WithError(err).Fatal("missing credentials")
	}
	logger := log.WithFields(log.Fields{"env": cfg.Env, "api_key": creds.Masked(), "store": cfg.Store.Backend})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbs, err := database.InitDB(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("could not open report store")
	}
	defer dbs.Close()

	if *initTables {
		if err := dbs.Store.EnsureHeaders(ctx); err != nil {
			logger.WithError(err).Fatal("could not write header rows")
		}
		logger.Info("tables initialised")
		return
	}

	runner, cleanup, err := buildRunner(ctx, cfg, creds, dbs.Store)
	if err != nil {
		logger.WithError(err).Fatal("could not set up daily sync")
	}
	defer cleanup()

	if *once {
		_, err := runner.Run(ctx)
		if err != nil {
			cleanup()
			dbs.Close()
			logger.WithError(err).Fatal("daily sync failed")
		}
		return
	}

	serve(ctx, cfg.Service, runner, logger)
}

func buildRunner(ctx context.Context, cfg *config.Config, creds config.Credentials, store *database.ReportStore) (*dailysync.Runner, func(), error) {
	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.WithError(err).Warn("cleanup failed")
			}
		}
		closers = nil
	}

	client, err := convertkit_v3.NewClient(cfg.CK, creds)
	if err != nil {
		return nil, cleanup, err
	}
	builder := snapshot.NewBuilder(client, store,
		snapshot.WithLocation(cfg.CK.Location()),
		snapshot.WithDailyDeltas(cfg.CK.Track_Daily_Deltas),
	)

	opts := []dailysync.Option{dailysync.WithMetrics(dailysync.NewMetrics())}

	if cfg.Service.Redis_URL != "" {
		locker, err := dailysync.NewRedisLockerFromURL(cfg.Service.Redis_URL, lockKey, cfg.Service.LockTTL())
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, locker.Close)
		opts = append(opts, dailysync.WithLocker(locker))
	}

	if cfg.Report.Enabled {
		exporter, err := report.FromConfig(ctx, cfg, store)
		if err != nil {
			cleanup()
			return nil, cleanup, err
		}
		closers = append(closers, exporter.Close)
		opts = append(opts, dailysync.WithExporter(exporter))
	}

	return dailysync.NewRunner(builder, store, opts...), cleanup, nil
}

func serve(ctx context.Context, conf config.ServiceConfig, runner *dailysync.Runner, logger *log.Entry) {
	runTimeout := 30 * time.Minute

	c := cron.New()
	_, err := c.AddFunc(conf.Schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()
		//errors are logged and counted by the runner
		_, _ = runner.Run(runCtx)
	})
	if err != nil {
		logger.WithError(err).Fatal("invalid schedule")
	}
	c.Start()

	srv := &http.Server{Addr: conf.HTTP_Addr, Handler: dailysync.NewRouter(runner, runTimeout)}
	go func() {
		logger.WithFields(log.Fields{"addr": conf.HTTP_Addr, "schedule": conf.Schedule}).Info("daily sync service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	<-c.Stop().Done()
}
