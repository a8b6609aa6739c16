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
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/switchboard/internal/version"
)

var (
	cfgFile  string
	envFiles []string
	config   *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "MCP gateway for customer records, scheduling and email",
	Long: heredoc.Doc(`
		switchboard exposes customer records (Google Sheets or a local workbook),
		Calendly scheduling and transactional email as MCP tools.

		Desktop clients launch it over stdio:
		  switchboard stdio

		Cloud agent platforms connect to the HTTP gateway:
		  switchboard serve --addr 0.0.0.0:8080

		Backends without credentials are left out of the tool list. Secrets are
		read from the environment, a .env file, or the system keyring.
	`),
	Version:       version.Get(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := LoadConfig(cfgFile, envFiles, cmd.Flags())
		if err != nil {
			return err
		}
		config = c
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.switchboard/switchboard.yaml or ./switchboard.yaml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load; variables already set win")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "Log file (default: stderr)")

	rootCmd.AddCommand(serveCmd, stdioCmd, toolsCmd, secretsCmd, versionCmd)
}
