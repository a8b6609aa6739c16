// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teradata-labs/switchboard/internal/version"
	"github.com/teradata-labs/switchboard/pkg/mcp/gateway"
)

const serverName = "switchboard"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP Streamable HTTP gateway",
	Long: heredoc.Doc(`
		Run the HTTP gateway. Clients POST JSON-RPC messages to the gateway path
		and may open one server-sent-event stream per session with GET.

		The Mcp-Session-Id response header names the session; send it back on
		every later request. DELETE ends a session.

		Requests with an Origin header must match server.allowed_origins.
		Set server.shared_secret (or MCP_SHARED_SECRET) before listening on a
		public interface.
	`),
	Example: heredoc.Doc(`
		switchboard serve
		switchboard serve --addr 0.0.0.0:8080 --path /mcp
		SWITCHBOARD_AUDIT_ENABLED=true switchboard serve
	`),
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	serveCmd.Flags().String("path", "/mcp", "gateway path")
	serveCmd.Flags().String("workbook", "", "local .xlsx file for customer records when Sheets is not configured")
	serveCmd.Flags().Bool("audit", false, "journal every invocation to SQLite")
	serveCmd.Flags().String("audit-db", "", "journal database path")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := buildLogger(config.Logging.File, config.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStack(ctx, config, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	gw, err := gateway.New(gateway.Config{
		Name:           serverName,
		Version:        version.Get(),
		Catalog:        st.Registry,
		Provider:       st.Provider,
		AllowedOrigins: config.Server.AllowedOrigins,
		SharedSecret:   config.Server.SharedSecret,
		SecretHeader:   config.Server.SecretHeader,
		MaxBodyBytes:   config.Server.MaxBodyBytes,
		Instructions:   config.Server.Instructions,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	srv := &http.Server{
		Addr:              config.Server.Addr,
		Handler:           newMux(config.Server.Path, gw, st),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	gateway.WarnIfExposed(logger, ln.Addr().String(), config.Server.SharedSecret != "")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gateway listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("path", config.Server.Path),
			zap.Int("tools", st.Registry.Len()),
			zap.String("version", version.Get()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.Int("sessions", gw.SessionCount()))
		// Streams hold connections open; end them before draining.
		gw.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newMux mounts the gateway on path plus a liveness endpoint.
func newMux(path string, gw *gateway.Gateway, st *stack) *http.ServeMux {
	if path == "" {
		path = "/mcp"
	}
	mux := http.NewServeMux()
	mux.Handle(path, gw)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "ok",
			"version":  version.Get(),
			"sessions": gw.SessionCount(),
			"tools":    st.Registry.Len(),
		})
	})
	return mux
}
