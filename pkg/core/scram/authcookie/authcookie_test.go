// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package authcookie_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ircd-services/scramcore/pkg/adapter/authstore/memstore"
	"github.com/ircd-services/scramcore/pkg/core/authstore"
	"github.com/ircd-services/scramcore/pkg/core/scram"
	"github.com/ircd-services/scramcore/pkg/core/scram/authcookie"
)

func newStore(t *testing.T) *memstore.Store {
	t.Helper()
	store := memstore.New()
	store.Put(memstore.Record{Authcid: "user", Flags: authstore.CryptPass})
	require.NoError(t, store.IssueCookie("user", "s3cr3t-cookie"))
	return store
}

func msg(authzid, authcid, cookie string) []byte {
	return []byte(authzid + "\x00" + authcid + "\x00" + cookie)
}

func TestAuthcookieSucceeds(t *testing.T) {
	store := newStore(t)
	mech := authcookie.New(store, store)
	status := mech.Step(context.Background(), msg("user", "user", "s3cr3t-cookie"))
	assert.Equal(t, scram.StatusDone, status)
}

func TestAuthcookieWrongCookieFails(t *testing.T) {
	store := newStore(t)
	mech := authcookie.New(store, store)
	status := mech.Step(context.Background(), msg("user", "user", "not-the-cookie"))
	assert.Equal(t, scram.StatusFail, status)
}

func TestAuthcookieUnknownUserFails(t *testing.T) {
	store := newStore(t)
	mech := authcookie.New(store, store)
	status := mech.Step(context.Background(), msg("ghost", "ghost", "s3cr3t-cookie"))
	assert.Equal(t, scram.StatusFail, status)
}

func TestAuthcookieMalformedMessageFails(t *testing.T) {
	store := newStore(t)
	mech := authcookie.New(store, store)
	status := mech.Step(context.Background(), []byte("no-nul-bytes-here"))
	assert.Equal(t, scram.StatusFail, status)
}

func TestAuthcookieEmptyMessageFails(t *testing.T) {
	store := newStore(t)
	mech := authcookie.New(store, store)
	status := mech.Step(context.Background(), nil)
	assert.Equal(t, scram.StatusFail, status)
}
