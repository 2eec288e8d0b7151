// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package authcookie implements the legacy AUTHCOOKIE SASL mechanism: a
// single-step exchange that authenticates a client against a
// previously issued, out-of-band one-time cookie instead of a
// password. It is grounded on modules/saslserv/authcookie.c from the
// atheme IRC services daemon, a feature the distilled specification's
// SCRAM-only description dropped but which the original system
// supports as an alternative to password-based SASL entirely.
package authcookie

import (
	"bytes"
	"context"

	"github.com/ircd-services/scramcore/pkg/core/authstore"
	"github.com/ircd-services/scramcore/pkg/core/scram"
)

// Name is the SASL mechanism name AUTHCOOKIE registers under.
const Name = "AUTHCOOKIE"

// Mechanism authenticates a single AUTHCOOKIE exchange against store
// and cookies. Unlike scram.Session, it carries no FSM state between
// calls: the entire exchange is one message in, one verdict out.
type Mechanism struct {
	store   authstore.UserRecords
	cookies authstore.CookieStore
}

// New creates an AUTHCOOKIE mechanism backed by store and cookies.
func New(store authstore.UserRecords, cookies authstore.CookieStore) *Mechanism {
	return &Mechanism{store: store, cookies: cookies}
}

// Step consumes the single AUTHCOOKIE message, a NUL-separated triple
// of authzid, authcid, and cookie, and reports whether it authenticates
// the client. It returns scram.StatusDone on success or
// scram.StatusFail on any rejection — a malformed message, an
// unresolvable identity, or a cookie that does not match — deliberately
// collapsing all of those into one generic failure, since AUTHCOOKIE
// does not distinguish a protocol error from a wrong cookie any more
// than the original mechanism did.
func (m *Mechanism) Step(ctx context.Context, in []byte) scram.Status {
	if len(in) == 0 {
		return scram.StatusFail
	}

	fields := bytes.SplitN(in, []byte{0x00}, 3)
	if len(fields) != 3 {
		return scram.StatusFail
	}
	authzid, authcid, cookie := fields[0], fields[1], fields[2]
	if len(authzid) == 0 || len(authcid) == 0 || len(cookie) == 0 {
		return scram.StatusFail
	}

	ok, err := m.store.ResolveAuthzid(ctx, string(authzid))
	if err != nil || !ok {
		return scram.StatusFail
	}

	ref, found, err := m.store.ResolveAuthcid(ctx, string(authcid))
	if err != nil || !found {
		return scram.StatusFail
	}

	valid, err := m.cookies.Validate(ctx, ref, string(cookie))
	if err != nil || !valid {
		return scram.StatusFail
	}

	return scram.StatusDone
}
