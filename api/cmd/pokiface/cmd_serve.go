package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pokiface/api/internal/httpserver"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy HTTP API",
	Long: `Serves POST /api/getPokemonTwin with the provider credential held server-side, plus
GET /api/artwork, POST /api/credential/validate, GET /api/matches and GET /healthz.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Listen port (default $PORT or 8000)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, "")
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	port := a.cfg.Port
	if servePort != "" {
		port = servePort
	}

	mux := http.NewServeMux()
	a.handler().Register(mux)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpserver.Run(gctx, ":"+port, mux, a.log) })
	g.Go(func() error { return a.purgeHistory(gctx) })
	return g.Wait()
}

// cmdContext is cmd.Context with a fallback for tests that call Run functions directly.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
