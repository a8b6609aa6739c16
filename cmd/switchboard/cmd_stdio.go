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
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/internal/version"
	"github.com/teradata-labs/switchboard/pkg/mcp/server"
	"github.com/teradata-labs/switchboard/pkg/mcp/session"
	"github.com/teradata-labs/switchboard/pkg/mcp/transport"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve MCP over stdin/stdout",
	Long: heredoc.Doc(`
		Serve one MCP session over newline-delimited JSON-RPC on stdin and
		stdout, the way desktop clients launch local servers. Logs go to
		stderr or --log-file, never stdout.
	`),
	Example: heredoc.Doc(`
		{
		  "mcpServers": {
		    "switchboard": {"command": "switchboard", "args": ["stdio", "--log-file", "/tmp/switchboard.log"]}
		  }
		}
	`),
	Args: cobra.NoArgs,
	RunE: runStdio,
}

func init() {
	stdioCmd.Flags().String("workbook", "", "local .xlsx file for customer records when Sheets is not configured")
	stdioCmd.Flags().Bool("audit", false, "journal every invocation to SQLite")
	stdioCmd.Flags().String("audit-db", "", "journal database path")
}

func runStdio(cmd *cobra.Command, _ []string) error {
	logger, err := buildLogger(config.Logging.File, config.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serveLines(ctx, os.Stdin, os.Stdout, logger)
}

// serveLines runs one implicit session over r and w until EOF or ctx ends.
func serveLines(ctx context.Context, r io.Reader, w io.Writer, logger *zap.Logger) error {
	st, err := buildStack(ctx, config, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	srv := server.NewMCPServer(serverName, version.Get(), logger,
		server.WithToolProvider(st.Provider),
		server.WithInstructions(config.Server.Instructions),
	)
	defer func() { _ = srv.Close() }()

	id := uuid.NewString()
	logger.Info("MCP server ready on stdio",
		zap.String("session_id", id),
		zap.Int("tools", st.Registry.Len()))

	if err := srv.Serve(session.NewContext(ctx, id), transport.NewLineTransport(r, w)); err != nil {
		if ctx.Err() != nil {
			logger.Info("server stopped gracefully")
			return nil
		}
		return err
	}
	return nil
}
