// Standalone mock upstream for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/serverwatch serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jpalmerr/serverwatch/example/mock"
)

func main() {
	fmt.Println("Mock status server starting on :8000")
	fmt.Println("Servers meow and meow2 flip between ServerUp and ServerDown")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	mux := http.NewServeMux()
	mux.Handle("/data/", mock.NewHandler(logger, "meow", "meow2"))

	if err := http.ListenAndServe(":8000", mux); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
