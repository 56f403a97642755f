// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// ServerEnvVar supplies the default for --server.
const ServerEnvVar = "TENANTVAULT_SERVER"

const defaultServer = "http://127.0.0.1:8650"

type rootOptions struct {
	server  string
	timeout time.Duration
	json    bool
	out     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{out: stdout}

	server := os.Getenv(ServerEnvVar)
	if server == "" {
		server = defaultServer
	}

	cmd := &cobra.Command{
		Use:          "tenantvaultctl",
		Short:        "Control a Tenantvault daemon",
		SilenceUsage: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&opts.server, "server", server, "Daemon base URL (env "+ServerEnvVar+")")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Request timeout")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Output JSON")

	cmd.AddCommand(
		newBackupCmd(opts),
		newListCmd(opts),
		newDueCmd(opts),
		newRestoreCmd(opts),
		newPruneCmd(opts),
		newStatusCmd(opts),
		newSweepCmd(opts),
	)
	return cmd
}

func (o *rootOptions) client() (*client, error) {
	return newClient(o.server, o.timeout)
}

func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, o.timeout)
}

func (o *rootOptions) printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = o.out.Write(append(data, '\n'))
	return err
}
