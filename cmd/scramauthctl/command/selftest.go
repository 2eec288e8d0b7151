// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package command

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ircd-services/scramcore/pkg/adapter/authstore/memstore"
	"github.com/ircd-services/scramcore/pkg/adapter/digest/stdcrypto"
	"github.com/ircd-services/scramcore/pkg/core/authstore"
	"github.com/ircd-services/scramcore/pkg/core/digest"
	"github.com/ircd-services/scramcore/pkg/core/scram"
	"github.com/ircd-services/scramcore/pkg/core/verifier"
)

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run the SCRAM-SHA-256 session state machine against the RFC 7677 test vector",
	Long: `selftest drives pkg/core/scram through the exact client-first,
client-final, and server-message byte strings given as a worked
example in RFC 7677 Section 3, with the server nonce pinned via
WithNonceSource so the output can be compared byte-for-byte.`,
	RunE: runSelftest,
}

func init() {
	rootCmd.AddCommand(selftestCmd)
}

const (
	rfc7677Salt           = "W22ZaJ0SNY7soEsUEjb6gQ=="
	rfc7677Iterations     = 4096
	rfc7677ServerNonce    = "%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0"
	rfc7677ClientFirst    = "n,,n=user,r=rOprNGfwEbeRWgbNEkqO"
	rfc7677ServerFirstFmt = "r=rOprNGfwEbeRWgbNEkqO%s,s=%s,i=%d"
	rfc7677ClientFinalFmt = "c=biws,r=rOprNGfwEbeRWgbNEkqO%s,p=dHzbZapWIk4jUhN+Ute9ytag9zjfMHgsqmmiz7AndVQ="
	rfc7677ServerFinal    = "v=6rriTRBi23WpRR/wtup+mMhUZUn/dB5nLTJRsjl95G4="
)

func runSelftest(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	prov := stdcrypto.Provider{}

	salt, err := base64.StdEncoding.DecodeString(rfc7677Salt)
	if err != nil {
		return fmt.Errorf("decoding reference salt: %w", err)
	}
	saltedPassword, err := digest.PBKDF2(prov, digest.SHA256, []byte("pencil"), salt, rfc7677Iterations, digest.SHA256.OutLen())
	if err != nil {
		return fmt.Errorf("deriving reference SaltedPassword: %w", err)
	}
	legacy := fmt.Sprintf("$%d$%d$%s$%s",
		int(digest.SHA256), rfc7677Iterations, rfc7677Salt,
		base64.StdEncoding.EncodeToString(saltedPassword))
	rec, err := verifier.Decode(prov, legacy)
	if err != nil {
		return fmt.Errorf("expanding reference record: %w", err)
	}
	encoded, err := verifier.Encode(rec)
	if err != nil {
		return fmt.Errorf("encoding reference verifier: %w", err)
	}

	store := memstore.New()
	store.Put(memstore.Record{Authcid: "user", Verifier: encoded, Flags: authstore.CryptPass})

	sess, err := scram.NewSession(prov, scram.SHA256(), store, scram.WithNonceSource(func() (string, error) {
		return rfc7677ServerNonce, nil
	}))
	if err != nil {
		return fmt.Errorf("scram.NewSession: %w", err)
	}

	wantFirst := fmt.Sprintf(rfc7677ServerFirstFmt, rfc7677ServerNonce, rfc7677Salt, rfc7677Iterations)
	out, status, err := sess.Step(ctx, []byte(rfc7677ClientFirst))
	if err != nil {
		return fmt.Errorf("client-first step: %w", err)
	}
	if status != scram.StatusMore || string(out) != wantFirst {
		return fmt.Errorf("FAIL: server-first-message mismatch\n got:  %s\n want: %s", out, wantFirst)
	}

	clientFinal := fmt.Sprintf(rfc7677ClientFinalFmt, rfc7677ServerNonce)
	out, status, err = sess.Step(ctx, []byte(clientFinal))
	if err != nil {
		return fmt.Errorf("client-final step: %w", err)
	}
	if status != scram.StatusMore || string(out) != rfc7677ServerFinal {
		return fmt.Errorf("FAIL: server-final-message mismatch\n got:  %s\n want: %s", out, rfc7677ServerFinal)
	}

	_, status, err = sess.Step(ctx, nil)
	if err != nil {
		return fmt.Errorf("upgrade step: %w", err)
	}
	if status != scram.StatusDone {
		return fmt.Errorf("FAIL: expected StatusDone, got %v", status)
	}

	fmt.Println("PASS: RFC 7677 SCRAM-SHA-256 vector reproduced exactly")
	return nil
}
