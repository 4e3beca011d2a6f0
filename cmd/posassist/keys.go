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

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage secrets in the system keyring",
	Long: heredoc.Doc(`
		Store secrets such as the Anthropic API key in the system keyring
		(Keychain on macOS, Credential Manager on Windows, Secret Service on Linux).

		A secret in the keyring is used only when the flag, environment and
		config file leave it empty.`),
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List secret names the keyring may hold",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, key := range ListAvailableSecretKeys() {
			state := "not set"
			if _, err := keyring.Get(ServiceName, key); err == nil {
				state = "set"
			}
			fmt.Fprintf(out, "%-20s %s\n", key, state)
		}
		return nil
	},
}

var keysSetCmd = &cobra.Command{
	Use:   "set <key-name>",
	Short: "Save a secret to the system keyring",
	Long: heredoc.Doc(`
		Save a secret to the system keyring. The value is read from the
		terminal without echo, or from the first line of stdin when piped.

		Run 'posassist keys list' to see the key names.`),
	Args: cobra.ExactArgs(1),
	RunE: runKeysSet,
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <key-name>",
	Short: "Remove a secret from the system keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkSecretKey(args[0]); err != nil {
			return err
		}
		if err := keyring.Delete(ServiceName, args[0]); err != nil {
			return fmt.Errorf("failed to delete %s from keyring: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s from system keyring\n", args[0])
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysListCmd, keysSetCmd, keysDeleteCmd)
}

func runKeysSet(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := checkSecretKey(name); err != nil {
		return err
	}

	var secret string
	if fd, ok := terminalFd(cmd.InOrStdin()); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "Enter %s (input hidden): ", name)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("error reading input: %w", err)
		}
		secret = string(b)
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("error reading input: %w", err)
		}
		secret = line
	}

	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("secret cannot be empty")
	}
	if err := keyring.Set(ServiceName, name, secret); err != nil {
		return fmt.Errorf("error saving to keyring: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to system keyring\n", name)
	return nil
}

// terminalFd returns the descriptor of r when it is an interactive terminal.
func terminalFd(r io.Reader) (int, bool) {
	f, ok := r.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

func checkSecretKey(name string) error {
	keys := ListAvailableSecretKeys()
	if !slices.Contains(keys, name) {
		return fmt.Errorf("invalid key name %q, available: %s", name, strings.Join(keys, ", "))
	}
	return nil
}
