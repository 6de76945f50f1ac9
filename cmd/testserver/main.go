// Command testserver serves the hrunner test API for trying out testcases
// and load tests locally.
//
// Usage:
//
//	testserver [flags]
//
// Flags:
//
//	-port       Port to listen on (default: 8080)
//	-host       Host to bind to (default: localhost)
//	-log-level  Request logging level (default: info)
//	-log-format Log encoding, console or json (default: console)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hrunner/internal/logger"
	"hrunner/testserver"
)

func main() {
	port := flag.Int("port", 8080, "port to listen on")
	host := flag.String("host", "localhost", "host to bind to")
	level := flag.String("log-level", "info", "log level: debug logs every request")
	format := flag.String("log-format", "console", "log encoding: console, json")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: *level, Format: *format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           testserver.NewServer(testserver.WithLogger(log)).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	fmt.Printf("hrunner test server on http://%s\n\nEndpoints:\n", addr)
	for _, r := range testserver.Routes {
		fmt.Printf("  %-22s - %s\n", r.Pattern, r.Help)
	}
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
}
