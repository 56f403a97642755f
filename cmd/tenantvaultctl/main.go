// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Command tenantvaultctl drives a running Tenantvault daemon over its control
// plane API.
//
//	tenantvaultctl backup tenant_a
//	tenantvaultctl list tenant_a
//	tenantvaultctl restore tenant_a 01HV5Z3Q4K8M2N6P7R9S0T1V2W --yes
//
// The daemon address comes from --server or TENANTVAULT_SERVER.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
