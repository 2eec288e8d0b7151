// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scram

import (
	"crypto/rand"
	"fmt"
)

// nonceAlphabet is the set of RFC 5802 §5 value-safe-char bytes this
// package draws server nonces from: printable ASCII excluding ',' and
// '=', which would otherwise corrupt the attribute-list grammar the
// nonce is embedded in.
const nonceAlphabet = "!\"#$%&'()*+-./0123456789:;<>?@" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ[\\]^_`" +
	"abcdefghijklmnopqrstuvwxyz{|}~"

// randomNonce returns a random string of n characters drawn from
// nonceAlphabet, suitable as a server SCRAM nonce.
func randomNonce(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("scram: reading random nonce: %w", err)
	}
	out := make([]byte, n)
	for i, b := range raw {
		out[i] = nonceAlphabet[int(b)%len(nonceAlphabet)]
	}
	return string(out), nil
}
