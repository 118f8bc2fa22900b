// Command example runs serverwatch against an in-process mock upstream.
//
//	go run ./example
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/serverwatch"
	"github.com/jpalmerr/serverwatch/example/mock"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/data/", mock.NewHandler(logger, "meow", "meow2"))
		if err := http.ListenAndServe(":8000", mux); err != nil {
			logger.Error("mock server error", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	w, err := serverwatch.New(
		serverwatch.WithSource("http://localhost:8000"),
		serverwatch.WithServers("meow", "meow2", "ghost"),
		serverwatch.WithTitle("CS2 Servers"),
		serverwatch.WithStaticDir("example/static"),
		serverwatch.WithPort(8080),
		serverwatch.WithLogger(logger),
		serverwatch.WithStatusCallback(func(ev serverwatch.StatusEvent) {
			if ev.Status == serverwatch.StatusDown {
				logger.Info("callback saw a down server", "server", ev.ServerID)
			}
		}),
	)
	if err != nil {
		logger.Error("failed to create watch", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  serverwatch demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println("  meow and meow2 flip between up and down every 20-60s")
	fmt.Println("  ghost is unknown upstream and stays on \"waiting for data\"")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		logger.Error("serverwatch error", "error", err)
		os.Exit(1)
	}
}
