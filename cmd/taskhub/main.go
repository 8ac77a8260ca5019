package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/affanhamid/editor/taskhub/internal/api"
	"github.com/affanhamid/editor/taskhub/internal/broadcast"
	"github.com/affanhamid/editor/taskhub/internal/config"
	"github.com/affanhamid/editor/taskhub/internal/db"
	"github.com/affanhamid/editor/taskhub/internal/depgraph"
	"github.com/affanhamid/editor/taskhub/internal/logging"
	"github.com/affanhamid/editor/taskhub/internal/mcpserver"
	"github.com/affanhamid/editor/taskhub/internal/tools"
	"github.com/affanhamid/editor/taskhub/internal/wsconn"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "taskhub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.EnsureDatabase(ctx, cfg.DBURL, log); err != nil {
		return fmt.Errorf("ensure database: %w", err)
	}
	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	if err := db.RunMigrations(ctx, pool, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	queries := &db.Queries{Pool: pool}

	hub := broadcast.NewHub(broadcast.Options{SendTimeout: cfg.SendTimeout, Logger: log})
	dispatcher := broadcast.NewDispatcher(hub, cfg.DispatchWorkers, cfg.DispatchQueue, log)

	graph := depgraph.NewService(queries,
		&db.Journal{Queries: queries, Log: log},
		&db.ActivityLog{Queries: queries, Log: log},
		&api.DependencyEvents{Publisher: dispatcher, Notifier: queries, Log: log},
	)
	edges, err := queries.LoadEdges(ctx)
	if err != nil {
		return fmt.Errorf("load dependencies: %w", err)
	}
	if err := graph.Load(edges); err != nil {
		return fmt.Errorf("load dependencies: %w", err)
	}
	log.Info("dependency graph loaded", "edges", graph.Len())

	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		db.StartListener(ctx, cfg.DBURL, dispatcher, log)
	}()

	var mcpHandler http.Handler
	if cfg.MCPUserID > 0 {
		mcp := mcpserver.New(&tools.Config{UserID: depgraph.UserID(cfg.MCPUserID), Graph: graph, Tasks: queries})
		mcpHandler = server.NewStreamableHTTPServer(mcp)
	}

	srv := api.NewServer(api.Config{
		Graph: graph,
		Tasks: queries,
		Hub:   hub,
		WS: wsconn.Config{
			Heartbeat:   cfg.HeartbeatInterval,
			SendTimeout: cfg.SendTimeout,
			Logger:      log,
		},
		MCP:    mcpHandler,
		Logger: log,
	})
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Handler()}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exit:
		log.Info("signal caught", "sig", sig)
	case err = <-serveErr:
		log.Error("server listen failed", "err", err)
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		log.Warn("http shutdown", "err", serr)
	}
	wg.Wait()
	dispatcher.Close()
	// Websocket connections are hijacked, so Shutdown does not wait for them.
	hub.Close()
	log.Info("shutdown complete")
	return err
}
