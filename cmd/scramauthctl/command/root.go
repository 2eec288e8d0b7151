// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package command provides the root and sub-commands for scramauthctl,
// organized using the cobra library the way the teacher repository's
// own cmd/caweb/command package is. scramauthctl is a small operator
// tool around this module's core packages, not a service: "hash"
// derives a PBKDF2-v2 verifier from a password, "selftest" runs the
// RFC 7677 end-to-end vector, and "registry" reports which SCRAM
// mechanism a given configuration file would activate.
//
//	./scramauthctl hash [-c /path/of/config.yaml] <password>
//	./scramauthctl selftest
//	./scramauthctl registry -c /path/of/config.yaml
package command

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "scramauthctl",
	Short: "Operator tooling for the SCRAM-SHA-1 / SCRAM-SHA-256 credential core",
	Long: `scramauthctl is an operator tool around this module's digest,
verifier, and SASL mechanism packages. It does not run a server; it
hashes passwords into the PBKDF2-v2 verifier format, self-tests the
SCRAM session state machine against the RFC 7677 test vector, and
reports which SCRAM mechanism a given pbkdf2 configuration block
would register.`,
}

// Execute runs rootCmd, which parses CLI arguments and flags and runs
// the most specific cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(fixConfigPath)
	rootCmd.PersistentFlags().StringVarP(
		&cfgPath, "config", "c", "", "config file path",
	)
}

// fixConfigPath ensures that cfgPath is set respectively by either the
// CLI args, the SCRAMAUTHCTL_CONFIG environment variable, or its
// default value.
func fixConfigPath() {
	if cfgPath != "" {
		return
	}
	var found bool
	if cfgPath, found = os.LookupEnv("SCRAMAUTHCTL_CONFIG"); !found {
		cfgPath = "configs/sample-config.yaml"
	}
}
