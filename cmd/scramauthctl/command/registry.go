// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ircd-services/scramcore/pkg/adapter/config"
	"github.com/ircd-services/scramcore/pkg/core/registry"
	"github.com/ircd-services/scramcore/pkg/core/scram"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Report which SCRAM mechanism a config file would register",
	Long: `registry loads the pbkdf2 configuration block and drives it
through pkg/core/registry exactly as a long-running service would on
startup or reload, then prints which mechanism ended up active.`,
	RunE: runRegistry,
}

func init() {
	rootCmd.AddCommand(registryCmd)
}

// logTable is a Registrar that just records what was (un)registered,
// for the CLI to print; a real service wires its own SASL mechanism
// table here instead.
type logTable struct {
	active map[string]scram.Mechanism
}

func newLogTable() *logTable { return &logTable{active: make(map[string]scram.Mechanism)} }

func (t *logTable) Register(name string, mech scram.Mechanism) error {
	t.active[name] = mech
	return nil
}

func (t *logTable) Unregister(name string) error {
	delete(t.active, name)
	return nil
}

func runRegistry(_ *cobra.Command, _ []string) error {
	c, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config.Load(%q): %w", cfgPath, err)
	}

	table := newLogTable()
	r := registry.New(table)
	if err := c.PBKDF2.OnConfigChange(r); err != nil {
		return fmt.Errorf("registry.OnConfigChange: %w", err)
	}

	fmt.Printf("active mechanism: %s\n", r.Current())
	return nil
}
