// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/drover-dev/drover/internal/secrets"
	droverr "github.com/drover-dev/drover/pkg/errors"
	"github.com/spf13/cobra"
)

// storeAPIKey is a package-level variable so tests can substitute the real
// keyring write.
var storeAPIKey = secrets.StoreAPIKey

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the API credential in the OS keyring",
	}

	cmd.AddCommand(newSecretSetCmd())

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set",
		Short: "Store the Anthropic API key in the OS keyring",
		Long:  "Read an API key from stdin and store it in the OS keyring so future runs need no environment variable.",
		RunE:  runSecretSet,
	}
}

func runSecretSet(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, "API key: ")

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return droverr.Errorf(droverr.CodeCLIInputInvalid, "reading API key: %w", err)
	}

	key := strings.TrimSpace(line)
	if err := storeAPIKey(key); err != nil {
		return err
	}

	fmt.Fprintf(out, "Stored API key in OS keyring (%s/%s)\n", secrets.KeyringService, secrets.KeyringKey)
	return nil
}
