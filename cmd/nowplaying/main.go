// ABOUTME: Main entry point for the now-playing monitor service
// ABOUTME: Loads config, opens the catalog store, runs the HTTP server until signalled
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/harper/radio-nowplaying/internal/application/config"
	"github.com/harper/radio-nowplaying/internal/application/registry"
	"github.com/harper/radio-nowplaying/internal/infrastructure/http"
	"github.com/harper/radio-nowplaying/internal/infrastructure/logging"
	"github.com/harper/radio-nowplaying/internal/infrastructure/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		logrus.Fatalf("fatal: %v", err)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("nowplaying", pflag.ContinueOnError)
	cfgPath := flags.StringP("config", "c", "config.yaml", "path to the YAML config file")
	port := flags.IntP("port", "p", 0, "listen port (overrides config)")
	logLevel := flags.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath, flags.Changed("config"))
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Listen.Port = *port
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	log, err := logging.New(logging.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON})
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if err := db.SeedStations(context.Background(), stationsFromConfig(cfg)); err != nil {
		return fmt.Errorf("seed stations: %w", err)
	}

	reg, err := registry.NewFromConfig(cfg, db, log)
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}

	handler := http.NewRouter(http.RouterConfig{
		Monitors:       reg,
		Stations:       db,
		AllowedOrigins: cfg.Listen.AllowedOrigins,
		Log:            log,
	})

	addr := cfg.Addr()
	srv := &nethttp.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Websocket watchers
		IdleTimeout:  60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return context.Background()
		},
	}

	// Graceful shutdown
	shutdown := make(chan error, 1)
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		shutdown <- srv.Shutdown(ctx)
	}()

	log.WithFields(logrus.Fields{"addr": addr, "stations": len(cfg.Stations)}).Info("listening (try /healthz)")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	if err := <-shutdown; err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := reg.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown monitors: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

// loadConfig falls back to defaults when the default config file is absent.
// An explicitly named file must exist.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("load config: %w", err)
}

func stationsFromConfig(cfg *config.Config) []store.Station {
	stations := make([]store.Station, 0, len(cfg.Stations))
	for _, st := range cfg.Stations {
		var img *string
		if st.Img != "" {
			img = &st.Img
		}
		stations = append(stations, store.Station{Name: st.Name, Stream: st.Stream, Img: img})
	}
	return stations
}
