// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

// Package main is the entry point for the authcore command.
package main

import (
	"fmt"
	"os"

	"github.com/cinebook/authcore/pkg/errutil"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errutil.PublicMessage(err, err.Error()))
		os.Exit(1)
	}
}
