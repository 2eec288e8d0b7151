// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package verifier implements the PBKDF2-v2 textual credential record
// format described by spec.md §4.2/§6:
//
//	$<prf>$<iter>$<salt_b64>$<sk_or_sp_b64>[$<hk_b64>]
//
// prf is the stable digest.Algorithm tag of the PRF used to derive the
// record. For the two SCRAM-capable PRFs (SHA1 and SHA256), a record
// may either carry a legacy raw SaltedPassword (one blob after the
// salt) or the upgraded SCRAM pair (two further '$'-delimited blobs,
// ServerKey then StoredKey, matching mech_step_success in the original
// scram-sha.c). Decode expands a legacy SCRAM-PRF record to the
// ServerKey/StoredKey pair immediately, using the digest core's HMAC
// mode, so that callers never have to special-case the two storage
// forms except to decide whether a rewrite is owed after a successful
// login.
package verifier

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ircd-services/scramcore/pkg/core/digest"
)

// Salt length bounds per spec.md §3/§6 (PBKDF2_SALTLEN_MIN and the
// suggested upper bound; the daemon this specification was distilled
// from enforces the same 8-64 byte range on PBKDF2_SALTLEN).
const (
	SaltLenMin = 8
	SaltLenMax = 64
)

// Errors returned by Decode and Encode.
var (
	ErrMalformedVerifier = errors.New("verifier: malformed record")
	ErrUnknownPRF        = errors.New("verifier: unknown PRF tag")
	ErrLengthMismatch    = errors.New("verifier: decoded length does not match PRF output length")
	ErrSaltLength        = errors.New("verifier: salt length out of range")
)

// scramCapable reports whether alg may be used as a SCRAM PRF. Per
// spec.md Non-goals, only SHA-1 and SHA-256 are supported as SCRAM
// PRFs; MD5 and SHA-512 records may still be decoded (they back the
// legacy, non-SCRAM rawmd5/ircservices plugins that are out of scope
// for this module), but a single-blob record under them is not expanded
// to a ServerKey/StoredKey pair. A two-blob record gets Record.Scram set
// whatever its PRF.
func scramCapable(alg digest.Algorithm) bool {
	return alg == digest.SHA1 || alg == digest.SHA256
}

// Record is the decoded form of a PBKDF2-v2 verifier string.
type Record struct {
	PRF        digest.Algorithm
	Iterations int
	Salt       []byte

	// Scram is true iff the on-disk record already stored the SCRAM
	// pair (ServerKey, StoredKey) rather than a legacy raw
	// SaltedPassword. This flag drives the credential-upgrade
	// decision in the SCRAM session FSM.
	Scram bool

	// SaltedPassword is set from the legacy single-blob form. For a
	// SCRAM-capable PRF, Decode computes ServerKey and StoredKey from it
	// before returning, and the scram package's credential-upgrade path
	// encodes those keys rather than this field.
	SaltedPassword []byte

	// StoredKey and ServerKey are always populated for a SCRAM-PRF
	// record, whether it was already in SCRAM form on disk or was
	// just expanded from a legacy SaltedPassword by Decode.
	StoredKey []byte
	ServerKey []byte
}

// Decode parses s as a PBKDF2-v2 verifier string, either the legacy
// single-blob form ($prf$iter$salt$sp) or the SCRAM two-blob form
// ($prf$iter$salt$ssk$shk, ServerKey then StoredKey). prov supplies
// the digest.Provider used to expand a legacy SaltedPassword-only
// record into the SCRAM ServerKey/StoredKey pair, per spec.md §4.4a.
func Decode(prov digest.Provider, s string) (*Record, error) {
	parts := strings.Split(s, "$")
	if (len(parts) != 5 && len(parts) != 6) || parts[0] != "" {
		return nil, fmt.Errorf("%w: expected 4 or 5 '$'-separated fields, got %d", ErrMalformedVerifier, len(parts)-1)
	}
	tag, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: prf tag %q: %v", ErrMalformedVerifier, parts[1], err)
	}
	alg := digest.Algorithm(tag)
	if !alg.Known() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPRF, tag)
	}

	iter, err := strconv.Atoi(parts[2])
	if err != nil || iter < 1 {
		return nil, fmt.Errorf("%w: iteration count %q", ErrMalformedVerifier, parts[2])
	}

	salt, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrMalformedVerifier, err)
	}
	if len(salt) < SaltLenMin || len(salt) > SaltLenMax {
		return nil, fmt.Errorf("%w: salt is %d bytes, want [%d, %d]", ErrSaltLength, len(salt), SaltLenMin, SaltLenMax)
	}

	l := alg.OutLen()
	r := &Record{PRF: alg, Iterations: iter, Salt: salt}

	first, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: first key blob: %v", ErrMalformedVerifier, err)
	}
	if len(first) != l {
		return nil, fmt.Errorf("%w: first blob is %d bytes, want %d", ErrLengthMismatch, len(first), l)
	}

	if len(parts) == 5 {
		r.Scram = false
		r.SaltedPassword = first
		if scramCapable(alg) {
			if err := expandLegacy(prov, r); err != nil {
				return nil, fmt.Errorf("verifier: expanding legacy record: %w", err)
			}
		}
		return r, nil
	}

	second, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, fmt.Errorf("%w: second key blob: %v", ErrMalformedVerifier, err)
	}
	if len(second) != l {
		return nil, fmt.Errorf("%w: second blob is %d bytes, want %d", ErrLengthMismatch, len(second), l)
	}

	r.Scram = true
	r.ServerKey = first
	r.StoredKey = second
	return r, nil
}

// expandLegacy computes ServerKey = HMAC(SaltedPassword, "Server Key")
// and StoredKey = H(HMAC(SaltedPassword, "Client Key")) from r's
// SaltedPassword, following RFC 5802 §3.
func expandLegacy(prov digest.Provider, r *Record) error {
	clientKey, err := digest.OneshotHMAC(prov, r.PRF, r.SaltedPassword, []byte("Client Key"))
	if err != nil {
		return fmt.Errorf("computing ClientKey: %w", err)
	}
	storedKey, err := digest.Oneshot(prov, r.PRF, clientKey)
	if err != nil {
		return fmt.Errorf("computing StoredKey: %w", err)
	}
	serverKey, err := digest.OneshotHMAC(prov, r.PRF, r.SaltedPassword, []byte("Server Key"))
	if err != nil {
		return fmt.Errorf("computing ServerKey: %w", err)
	}
	r.StoredKey = storedKey
	r.ServerKey = serverKey
	return nil
}

// Encode renders r in the SCRAM two-blob form exclusively, as required
// by spec.md §4.2 ("Emits the SCRAM form exclusively"), with ServerKey
// as the first blob and StoredKey as the second, matching
// mech_step_success in the original scram-sha.c. r.StoredKey and
// r.ServerKey must already be populated (true for any Record returned
// by Decode when PRF is SCRAM-capable).
func Encode(r *Record) (string, error) {
	if len(r.StoredKey) == 0 || len(r.ServerKey) == 0 {
		return "", fmt.Errorf("%w: record has no SCRAM key pair to encode", ErrMalformedVerifier)
	}
	return fmt.Sprintf(
		"$%d$%d$%s$%s$%s",
		int(r.PRF), r.Iterations,
		base64.StdEncoding.EncodeToString(r.Salt),
		base64.StdEncoding.EncodeToString(r.ServerKey),
		base64.StdEncoding.EncodeToString(r.StoredKey),
	), nil
}
