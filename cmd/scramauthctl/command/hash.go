// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package command

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ircd-services/scramcore/pkg/adapter/config"
	"github.com/ircd-services/scramcore/pkg/adapter/digest/stdcrypto"
	"github.com/ircd-services/scramcore/pkg/core/digest"
	"github.com/ircd-services/scramcore/pkg/core/verifier"
)

var hashCmd = &cobra.Command{
	Use:   "hash <password>",
	Short: "Derive a PBKDF2-v2 verifier string from a password",
	Long: `hash reads the pbkdf2 settings (PRF, iteration count, salt
length) from the config file, draws a fresh random salt, and prints
the resulting verifier string in the two-blob SCRAM form that
pkg/core/verifier and pkg/core/scram expect to find in a user record's
password field.`,
	Args: cobra.ExactArgs(1),
	RunE: runHash,
}

func init() {
	rootCmd.AddCommand(hashCmd)
}

func runHash(_ *cobra.Command, args []string) error {
	c, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config.Load(%q): %w", cfgPath, err)
	}
	alg, err := c.PBKDF2.Algorithm()
	if err != nil {
		return err
	}

	salt := make([]byte, c.PBKDF2.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("drawing salt: %w", err)
	}

	prov := stdcrypto.Provider{}
	saltedPassword, err := digest.PBKDF2(prov, alg, []byte(args[0]), salt, c.PBKDF2.Rounds, alg.OutLen())
	if err != nil {
		return fmt.Errorf("deriving PBKDF2 key: %w", err)
	}

	legacy := fmt.Sprintf("$%d$%d$%s$%s",
		int(alg), c.PBKDF2.Rounds,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(saltedPassword))

	rec, err := verifier.Decode(prov, legacy)
	if err != nil {
		return fmt.Errorf("expanding derived record: %w", err)
	}
	out, err := verifier.Encode(rec)
	if err != nil {
		return fmt.Errorf("encoding verifier: %w", err)
	}
	fmt.Println(out)
	return nil
}
