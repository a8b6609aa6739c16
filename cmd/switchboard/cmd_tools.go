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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/internal/sqlitedriver"
	"github.com/teradata-labs/switchboard/pkg/audit"
	"github.com/teradata-labs/switchboard/pkg/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect capabilities and the invocation journal",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tools the current configuration exposes",
	Args:  cobra.NoArgs,
	RunE:  runToolsList,
}

var toolsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent invocations from the audit journal",
	Args:  cobra.NoArgs,
	RunE:  runToolsHistory,
}

func init() {
	toolsListCmd.Flags().Bool("json", false, "print tool definitions as JSON")
	toolsListCmd.Flags().String("workbook", "", "local .xlsx file for customer records")
	toolsHistoryCmd.Flags().IntP("limit", "n", 20, "number of entries")
	toolsHistoryCmd.Flags().String("audit-db", "", "journal database path")

	toolsCmd.AddCommand(toolsListCmd, toolsHistoryCmd)
}

func runToolsList(cmd *cobra.Command, _ []string) error {
	logger, err := buildLogger(config.Logging.File, "error")
	if err != nil {
		return err
	}
	cfg := *config
	cfg.Audit.Enabled = false
	st, err := buildStack(cmd.Context(), &cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st.Registry.Tools())
	}
	return printTools(cmd.OutOrStdout(), st.Registry.List())
}

func printTools(w io.Writer, descriptors []tools.Descriptor) error {
	if len(descriptors) == 0 {
		_, err := fmt.Fprintln(w, "No backends are configured. Set credentials for records, calendly or email.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tREQUIRED\tDESCRIPTION")
	for _, d := range descriptors {
		var required []string
		if d.InputSchema != nil {
			required = d.InputSchema.Required
		}
		fmt.Fprintf(tw, "%s\t%v\t%s\n", d.Name, required, d.Description)
	}
	return tw.Flush()
}

func runToolsHistory(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if _, err := os.Stat(config.Audit.Path); err != nil {
		return fmt.Errorf("no audit journal at %s (enable with audit.enabled): %w", config.Audit.Path, err)
	}

	j, err := audit.Open(cmd.Context(), sqlitedriver.Config{
		Path:          config.Audit.Path,
		EncryptionKey: config.Audit.EncryptionKey,
	}, zap.NewNop())
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	entries, err := j.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return printHistory(cmd.OutOrStdout(), entries)
}

func printHistory(w io.Writer, entries []audit.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSESSION\tTOOL\tOUTCOME\tDURATION\tERROR")
	for _, e := range entries {
		session := e.SessionID
		if len(session) > 8 {
			session = session[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.Local().Format(time.DateTime),
			session,
			e.Capability,
			e.Outcome,
			e.Duration,
			truncate(e.Error, 60))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
