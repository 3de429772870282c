package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"pickupcal/internal/calendar"
	"pickupcal/internal/config"
	"pickupcal/internal/export"
	"pickupcal/internal/ics"
	appLog "pickupcal/internal/log"
	"pickupcal/internal/pickup"
	"pickupcal/internal/source"
	"pickupcal/internal/store"
	"pickupcal/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	once       bool
	format     string
}

func main() {
	flags := parseFlags()

	// A missing .env file is fine; the environment may already be set.
	if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		appLog.Error("failed to load env file", err, "path", flags.envFile)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv(os.Getenv)
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("pickupcal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"source", conf.Source.Kind,
		"holidays", conf.Holidays.Enabled,
		"regional", conf.Holidays.IncludeRegional,
		"years", fmt.Sprintf("%d-%d", conf.Holidays.StartYear, conf.Holidays.EndYear),
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, closeSrc, err := openSource(conf)
	if err != nil {
		appLog.Error("failed to open order source", err, "kind", conf.Source.Kind)
		os.Exit(1)
	}
	defer closeSrc()

	cal := calendar.New(src, pickup.Options{
		IncludeHolidays: conf.Holidays.Enabled,
		IncludeRegional: conf.Holidays.IncludeRegional,
		StartYear:       conf.Holidays.StartYear,
		EndYear:         conf.Holidays.EndYear,
		Location:        conf.Location(),
	})

	if flags.once {
		if err := runOnce(ctx, cal, conf, flags.format, os.Stdout); err != nil {
			appLog.Error("single run failed", err, "format", flags.format)
			os.Exit(1)
		}
		return
	}

	if _, err := cal.Refresh(ctx); err != nil {
		// Keep serving; the next scheduled refresh may succeed.
		appLog.Error("initial refresh failed", err)
	}

	if err := serve(ctx, cal, conf); err != nil {
		appLog.Error("server failed", err)
		os.Exit(1)
	}
	appLog.Info("pickupcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env", ".env", "Path to an optional .env file with secrets")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Derive the calendar once, write it to stdout and exit")
	flag.StringVar(&cfg.format, "format", "ics", "Output format for -once: ics, csv, txt or json")

	flag.Parse()

	return cfg
}

// openSource builds the configured order source. The returned func releases
// its resources.
func openSource(conf *config.Config) (source.Source, func(), error) {
	noop := func() {}

	switch conf.Source.Kind {
	case config.SourceFile:
		return source.FileSource{Path: conf.Source.Path, Location: conf.Location()}, noop, nil

	case config.SourceREST:
		src, err := source.NewRESTSource(conf.Source.URL, conf.Source.APIKey, conf.Source.CacheDir, conf.Location())
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil

	case config.SourcePostgres:
		db, err := store.Open(conf.Source.DSN, conf.Source.Migrate)
		if err != nil {
			return nil, noop, err
		}
		return store.NewOrderStore(db), func() { db.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unknown source kind %q", conf.Source.Kind)
}

// runOnce refreshes the calendar and writes it in the requested format.
func runOnce(ctx context.Context, cal *calendar.Calendar, conf *config.Config, format string, w io.Writer) error {
	if _, err := cal.Refresh(ctx); err != nil {
		return err
	}
	snap := cal.Snapshot()

	switch format {
	case "ics":
		return ics.Encode(w, snap.Events, ics.FeedOptions{
			Name:              conf.Feed.Name,
			TTL:               conf.Feed.TTL,
			RecurringHolidays: conf.Feed.RecurringHolidays,
			Stamp:             snap.RefreshedAt,
		})
	case "csv":
		return export.WriteCSV(w, snap.Events)
	case "txt":
		return export.WriteTXT(w, snap.Events)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Events)
	}
	return fmt.Errorf("unknown format %q", format)
}

// serve runs the HTTP server and the cron refresh until ctx is canceled.
func serve(ctx context.Context, cal *calendar.Calendar, conf *config.Config) error {
	sched := cron.New()
	_, err := sched.AddFunc(conf.RefreshCron, func() {
		rctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if _, err := cal.Refresh(rctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("refresh schedule %q: %w", conf.RefreshCron, err)
	}
	sched.Start()
	defer func() {
		<-sched.Stop().Done()
	}()

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, cal).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
