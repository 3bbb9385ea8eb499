// Package main is the tablekit demo server: it wires the data-access
// layer to SQLite and exposes the registered tables over a JSON API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/tablekit/adapters/hasher"
	"github.com/artpar/tablekit/adapters/idgen"
	"github.com/artpar/tablekit/adapters/metrics"
	"github.com/artpar/tablekit/adapters/sqlite"
	"github.com/artpar/tablekit/config"
	"github.com/artpar/tablekit/session"
	"github.com/artpar/tablekit/web"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "tablekit.yaml", "Path to configuration file")
	initDB := flag.Bool("init", false, "Create tables and load static datasets before serving")
	showVersion := flag.Bool("version", false, "Show version and exit")
	hotReload := flag.Bool("hot-reload", true, "Enable hot reload of configuration")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tablekit %s\n", version)
		os.Exit(0)
	}

	if err := run(*configPath, *initDB, *hotReload); err != nil {
		fmt.Fprintf(os.Stderr, "tablekit: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, initDB, hotReload bool) error {
	bootLog := newLogger(config.Default().Logging)

	var cfg *config.Config
	var holder *config.Holder
	if _, err := os.Stat(configPath); err == nil {
		holder, err = config.NewHolder(configPath, bootLog)
		if err != nil {
			return err
		}
		defer holder.Stop()
		cfg = holder.Get()
	} else {
		bootLog.Warn().Str("path", configPath).Msg("no config file, using defaults")
		cfg = config.Default()
	}

	logger := newLogger(cfg.Logging)
	if holder != nil && hotReload {
		if err := holder.WatchFile(); err != nil {
			return err
		}
		holder.WatchSignals()
		holder.OnChange(func(c *config.Config) {
			level, err := zerolog.ParseLevel(c.Logging.Level)
			if err == nil {
				zerolog.SetGlobalLevel(level)
			}
		})
	}

	collector := metrics.New()
	db, err := sqlite.Open(cfg.Database.Path,
		sqlite.WithLogger(logger.With().Str("component", "sqlite").Logger()),
		sqlite.WithMetrics(collector),
	)
	if err != nil {
		return err
	}
	defer db.Close()

	members, err := defineTables(cfg)
	if err != nil {
		return err
	}

	base := session.New(db.Conn(), members,
		session.WithLogger(logger.With().Str("component", "session").Logger()))
	sys := session.NewSystem(base, []session.ServiceMember{
		{Name: web.UsersService, Blueprint: web.NewUserService(hasher.NewBcrypt(0), idgen.UUID{})},
	})

	if initDB {
		if err := migrate(base, logger); err != nil {
			return err
		}
	}

	handler := web.New(base, sys, logger.With().Str("component", "web").Logger())
	root := chi.NewRouter()
	root.Mount("/", handler.Router())
	if cfg.Metrics.Enabled {
		root.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}
