package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/julestools/julesmcp/internal/config"
	"github.com/julestools/julesmcp/internal/logging"
)

// runStdio serves MCP on stdin/stdout until the process is signalled or the
// client closes the stream.
func runStdio() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	startMonitor()

	err := app.Server.Run(ctx)
	shutdown()

	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

// ServeCmd creates the serve command (HTTP transport).
func ServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over HTTP instead of stdio",
		Long:  `Serve the MCP tools over streamable HTTP at /mcp, with a JSON health check at /health.`,
		Run: func(cmd *cobra.Command, args []string) {
			runServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8811", "listen address")
	return cmd
}

func runServe(addr string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	startMonitor()

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	if app.Config.Debug {
		r.Use(chimw.Logger)
	}

	handler := app.Server.Handler()
	r.Handle("/mcp", handler)
	r.Handle("/mcp/*", handler)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logging.Infof("MCP server listening at http://%s/mcp", displayAddr(addr))
	err := srv.ListenAndServe()
	shutdown()

	if err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func startMonitor() {
	if app.Monitor == nil {
		return
	}
	if err := app.Monitor.Start(); err != nil {
		logging.Warnf("%v", err)
	}
}

// shutdown tears the stack down in dependency order: monitor first so no
// refresh races the teardown, then cookies while the browser still exists,
// then the browser and the store.
func shutdown() {
	if app.Monitor != nil {
		app.Monitor.Stop()
	}

	cfg := app.Config
	if cfg.Mode == config.ModeCookies && cfg.CookieFile != "" && app.Manager.Active() {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := app.Manager.SaveCookies(saveCtx, cfg.CookieFile); err != nil {
			logging.Warnf("saving cookies on shutdown: %v", err)
		} else {
			logging.Infof("session cookies saved to %s", cfg.CookieFile)
		}
		cancel()
	}

	if err := app.Manager.Close(); err != nil {
		logging.Warnf("closing browser: %v", err)
	}
	if err := app.Store.Close(); err != nil {
		logging.Warnf("closing store: %v", err)
	}
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
