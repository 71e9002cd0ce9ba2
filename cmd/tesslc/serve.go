package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tesslc/internal/logging"
	"tesslc/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve page views over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer a.close()

	srv, err := server.New(a.pipeline, server.Options{
		Sessions:        cfg.Server.Sessions,
		SessionTTL:      cfg.Session.TTLDur,
		SessionCapacity: cfg.Session.Capacity,
		Coordinator:     a.coord,
		Timelines:       a.timelines,
		TimelineRefresh: cfg.Timeline.RefreshEveryDur,
		LogStatsEvery:   cfg.Logging.LogStatsEveryDur,
		Stats:           a.stats,
		Store:           a.store,
		Gatherer:        a.registry,
		Logger:          logging.New("server", cfg.Logging.Debug),
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	defer srv.Close()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("tesslc listening on %s, gateway=%s", addr, cfg.Archive.Gateway)
		err := hs.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}
