// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package authstore defines the ports (interfaces) through which the
// SCRAM session FSM and the AUTHCOOKIE mechanism reach the user-record
// store. Per spec.md §1, the store itself — its schema, its durability,
// its concurrency control — is an external collaborator and out of
// scope for this module; only the shape of the contract lives here,
// following the same core/adapter split the teacher repository uses
// for its repo.Cars and repo.Pool interfaces.
//
// A reference, in-memory implementation is provided in
// pkg/adapter/authstore/memstore for tests and the demo CLI; production
// deployments are expected to supply their own implementation backed
// by whatever store already holds user records.
package authstore

import "context"

// Flags mirrors the subset of user-record capability flags that the
// SCRAM session FSM consults, per spec.md §4.5.
type Flags uint8

// Flag bits. CryptPass must be set and NoPassword must be clear for a
// SCRAM login to proceed past authcid resolution (spec.md §4.4 step 3).
const (
	CryptPass Flags = 1 << iota
	NoPassword
)

// Has reports whether all bits in want are set in f.
func (f Flags) Has(want Flags) bool { return f&want == want }

// UserRef is an opaque handle to a resolved user record. Adapters
// define its concrete representation (e.g. a primary key or a pointer
// into their own record type); core code never inspects it beyond
// passing it back to the same UserRecords implementation.
type UserRef any

// UserRecords is the port through which the SCRAM and AUTHCOOKIE
// mechanisms resolve identities and read/write verifier strings.
type UserRecords interface {
	// ResolveAuthzid reports whether name is permitted to log in as
	// the authorization identity ("act as"), independent of which
	// identity is authenticating. A false result with a nil error
	// means the identity is simply not permitted to log in, not that
	// a failure occurred.
	ResolveAuthzid(ctx context.Context, name string) (bool, error)

	// ResolveAuthcid locates the user record for the authentication
	// identity name. ok is false when no such user exists or the user
	// may not log in; in that case ref is the zero UserRef.
	ResolveAuthcid(ctx context.Context, name string) (ref UserRef, ok bool, err error)

	// VerifierOf returns the verifier string stored in ref's password
	// field, in PBKDF2-v2 format (see pkg/core/verifier).
	VerifierOf(ctx context.Context, ref UserRef) (string, error)

	// FlagsOf returns ref's capability flags.
	FlagsOf(ctx context.Context, ref UserRef) (Flags, error)

	// SetVerifier persistently rewrites ref's verifier string. This
	// is a write-through; an asynchronous or best-effort
	// implementation is acceptable, since spec.md §4.4a treats a
	// failed rewrite as non-fatal to an already-succeeded login.
	SetVerifier(ctx context.Context, ref UserRef, newVerifier string) error
}

// CookieStore is the port the AUTHCOOKIE mechanism uses to validate a
// one-time cookie against a previously issued value for a user.
type CookieStore interface {
	// Validate reports whether cookie is the current, unexpired
	// AUTHCOOKIE value issued to ref.
	Validate(ctx context.Context, ref UserRef, cookie string) (bool, error)
}
