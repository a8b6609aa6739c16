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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage secrets in the system keyring",
	Long: heredoc.Doc(`
		Store backend credentials in the system keyring (Keychain on macOS,
		Credential Manager on Windows, Secret Service on Linux). Keyring values
		are used only when the same setting is absent from flags, environment
		and config file.
	`),
}

var secretsSetCmd = &cobra.Command{
	Use:   "set [key-name]",
	Short: "Save a secret to the system keyring",
	Long: heredoc.Doc(`
		Save a secret to the system keyring. The value is read from the
		terminal without echo, or from stdin when it is not a terminal.

		Run 'switchboard secrets list' to see available key names.
	`),
	Example: heredoc.Doc(`
		switchboard secrets set calendly_api_token
		printf '%s' "$KEY" | switchboard secrets set resend_api_key
	`),
	Args: cobra.ExactArgs(1),
	RunE: runSecretsSet,
}

var secretsDeleteCmd = &cobra.Command{
	Use:   "delete [key-name]",
	Short: "Delete a secret from the system keyring",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretsDelete,
}

var secretsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List secret key names and whether each is stored",
	Args:  cobra.NoArgs,
	RunE:  runSecretsList,
}

func init() {
	secretsCmd.AddCommand(secretsSetCmd, secretsDeleteCmd, secretsListCmd)
}

func validSecretKey(name string) error {
	keys := ListAvailableSecretKeys()
	if slices.Contains(keys, name) {
		return nil
	}
	return fmt.Errorf("invalid key name %q; available keys: %s", name, strings.Join(keys, ", "))
}

func runSecretsSet(cmd *cobra.Command, args []string) error {
	keyName := args[0]
	if err := validSecretKey(keyName); err != nil {
		return err
	}

	secret, err := readSecret(cmd, keyName)
	if err != nil {
		return err
	}
	if secret == "" {
		return errors.New("secret cannot be empty")
	}

	if err := SaveSecretToKeyring(keyName, secret); err != nil {
		return fmt.Errorf("save to keyring: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %s to system keyring\n", keyName)
	return nil
}

// readSecret prompts without echo on a terminal and reads one line otherwise.
func readSecret(cmd *cobra.Command, keyName string) (string, error) {
	fd := int(os.Stdin.Fd())
	if cmd.InOrStdin() == os.Stdin && term.IsTerminal(fd) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Enter %s (input hidden): ", keyName)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runSecretsDelete(cmd *cobra.Command, args []string) error {
	keyName := args[0]
	if err := validSecretKey(keyName); err != nil {
		return err
	}
	if err := DeleteSecretFromKeyring(keyName); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%s is not stored in the keyring", keyName)
		}
		return fmt.Errorf("delete from keyring: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s from system keyring\n", keyName)
	return nil
}

func runSecretsList(cmd *cobra.Command, _ []string) error {
	for _, k := range ListAvailableSecretKeys() {
		state := "not set"
		if v, err := GetSecretFromKeyring(k); err == nil && v != "" {
			state = "stored"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %-22s %s\n", k, state)
	}
	return nil
}
