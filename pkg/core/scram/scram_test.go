// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scram_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ircd-services/scramcore/pkg/adapter/authstore/memstore"
	"github.com/ircd-services/scramcore/pkg/adapter/digest/stdcrypto"
	"github.com/ircd-services/scramcore/pkg/core/authstore"
	"github.com/ircd-services/scramcore/pkg/core/digest"
	"github.com/ircd-services/scramcore/pkg/core/scram"
	"github.com/ircd-services/scramcore/pkg/core/verifier"
)

const (
	rfcSalt        = "W22ZaJ0SNY7soEsUEjb6gQ=="
	rfcIterations  = 4096
	rfcServerNonce = "%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0"
	rfcServerFinal = "v=6rriTRBi23WpRR/wtup+mMhUZUn/dB5nLTJRsjl95G4="
)

func newTestStore(t *testing.T, prov digest.Provider, password string) *memstore.Store {
	t.Helper()
	salt, err := base64.StdEncoding.DecodeString(rfcSalt)
	require.NoError(t, err)
	saltedPassword, err := digest.PBKDF2(prov, digest.SHA256, []byte(password), salt, rfcIterations, digest.SHA256.OutLen())
	require.NoError(t, err)
	legacy := "$" + itoa(int(digest.SHA256)) + "$" + itoa(rfcIterations) + "$" + rfcSalt + "$" +
		base64.StdEncoding.EncodeToString(saltedPassword)
	rec, err := verifier.Decode(prov, legacy)
	require.NoError(t, err)
	encoded, err := verifier.Encode(rec)
	require.NoError(t, err)

	store := memstore.New()
	store.Put(memstore.Record{Authcid: "user", Verifier: encoded, Flags: authstore.CryptPass})
	return store
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func fixedNonce(n string) scram.Option {
	return scram.WithNonceSource(func() (string, error) { return n, nil })
}

func TestSessionRFC7677Vector(t *testing.T) {
	prov := stdcrypto.Provider{}
	store := newTestStore(t, prov, "pencil")

	sess, err := scram.NewSession(prov, scram.SHA256(), store, fixedNonce(rfcServerNonce))
	require.NoError(t, err)
	ctx := context.Background()

	out, status, err := sess.Step(ctx, []byte("n,,n=user,r=rOprNGfwEbeRWgbNEkqO"))
	require.NoError(t, err)
	assert.Equal(t, scram.StatusMore, status)
	assert.Equal(t, "r=rOprNGfwEbeRWgbNEkqO"+rfcServerNonce+",s="+rfcSalt+",i=4096", string(out))

	clientFinal := "c=biws,r=rOprNGfwEbeRWgbNEkqO" + rfcServerNonce +
		",p=dHzbZapWIk4jUhN+Ute9ytag9zjfMHgsqmmiz7AndVQ="
	out, status, err = sess.Step(ctx, []byte(clientFinal))
	require.NoError(t, err)
	assert.Equal(t, scram.StatusMore, status)
	assert.Equal(t, rfcServerFinal, string(out))

	out, status, err = sess.Step(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, scram.StatusDone, status)
	assert.Nil(t, out)
}

func TestSessionWrongPasswordFails(t *testing.T) {
	prov := stdcrypto.Provider{}
	store := newTestStore(t, prov, "pencil")

	sess, err := scram.NewSession(prov, scram.SHA256(), store, fixedNonce(rfcServerNonce))
	require.NoError(t, err)
	ctx := context.Background()

	_, status, err := sess.Step(ctx, []byte("n,,n=user,r=rOprNGfwEbeRWgbNEkqO"))
	require.NoError(t, err)
	require.Equal(t, scram.StatusMore, status)

	// An all-zero proof sent with the right nonce. It is not derived from
	// any password, so hashing ClientProof XOR ClientSignature does not
	// reproduce the StoredKey the server derived.
	badProof := base64.StdEncoding.EncodeToString(make([]byte, digest.SHA256.OutLen()))
	clientFinal := "c=biws,r=rOprNGfwEbeRWgbNEkqO" + rfcServerNonce + ",p=" + badProof
	_, status, err = sess.Step(ctx, []byte(clientFinal))
	require.Error(t, err)
	assert.Equal(t, scram.StatusFail, status)

	// Failed is absorbing.
	_, status, err = sess.Step(ctx, []byte("anything"))
	require.NoError(t, err)
	assert.Equal(t, scram.StatusFail, status)
}

func TestSessionNonceMismatchErrors(t *testing.T) {
	prov := stdcrypto.Provider{}
	store := newTestStore(t, prov, "pencil")

	sess, err := scram.NewSession(prov, scram.SHA256(), store, fixedNonce(rfcServerNonce))
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = sess.Step(ctx, []byte("n,,n=user,r=rOprNGfwEbeRWgbNEkqO"))
	require.NoError(t, err)

	_, status, err := sess.Step(ctx, []byte("c=biws,r=not-the-right-nonce,p=AAAA"))
	require.Error(t, err)
	assert.Equal(t, scram.StatusError, status)

	// Errored is absorbing.
	_, status, err = sess.Step(ctx, []byte("anything"))
	require.NoError(t, err)
	assert.Equal(t, scram.StatusError, status)
}

func TestSessionUpgradesLegacyVerifier(t *testing.T) {
	prov := stdcrypto.Provider{}
	store := memstore.New()

	salt := []byte("somesalt")
	saltedPassword, err := digest.PBKDF2(prov, digest.SHA256, []byte("pencil"), salt, 4096, digest.SHA256.OutLen())
	require.NoError(t, err)
	legacy := "$" + itoa(int(digest.SHA256)) + "$4096$" +
		base64.StdEncoding.EncodeToString(salt) + "$" +
		base64.StdEncoding.EncodeToString(saltedPassword)
	store.Put(memstore.Record{Authcid: "legacyuser", Verifier: legacy, Flags: authstore.CryptPass})

	sess, err := scram.NewSession(prov, scram.SHA256(), store, fixedNonce("serverfixednonce"))
	require.NoError(t, err)
	ctx := context.Background()

	clientFirst := "n,,n=legacyuser,r=clientnonce123"
	cMsg := "n=legacyuser,r=clientnonce123"
	serverFirst, status, err := sess.Step(ctx, []byte(clientFirst))
	require.NoError(t, err)
	require.Equal(t, scram.StatusMore, status)

	clientKey, err := digest.OneshotHMAC(prov, digest.SHA256, saltedPassword, []byte("Client Key"))
	require.NoError(t, err)
	storedKey, err := digest.Oneshot(prov, digest.SHA256, clientKey)
	require.NoError(t, err)

	c := "biws"
	r := "clientnonce123serverfixednonce"
	authMessage := cMsg + "," + string(serverFirst) + ",c=" + c + ",r=" + r
	clientSignature, err := digest.OneshotHMAC(prov, digest.SHA256, storedKey, []byte(authMessage))
	require.NoError(t, err)
	proof := make([]byte, len(clientKey))
	for i := range proof {
		proof[i] = clientKey[i] ^ clientSignature[i]
	}

	clientFinal := "c=" + c + ",r=" + r + ",p=" + base64.StdEncoding.EncodeToString(proof)
	_, status, err = sess.Step(ctx, []byte(clientFinal))
	require.NoError(t, err)
	require.Equal(t, scram.StatusMore, status)

	_, status, err = sess.Step(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, scram.StatusDone, status)

	upgraded, err := store.VerifierOf(ctx, mustRef(t, store, "legacyuser"))
	require.NoError(t, err)
	rec, err := verifier.Decode(prov, upgraded)
	require.NoError(t, err)
	assert.True(t, rec.Scram, "verifier should have been rewritten in SCRAM form")
}

func mustRef(t *testing.T, store *memstore.Store, name string) authstore.UserRef {
	t.Helper()
	ref, ok, err := store.ResolveAuthcid(context.Background(), name)
	require.NoError(t, err)
	require.True(t, ok)
	return ref
}

// Running finishUpgrade twice (simulating a duplicated Step call after
// Passed) must not error and must report StatusDone both times.
func TestSessionUpgradeIdempotent(t *testing.T) {
	prov := stdcrypto.Provider{}
	store := newTestStore(t, prov, "pencil")

	sess, err := scram.NewSession(prov, scram.SHA256(), store, fixedNonce(rfcServerNonce))
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = sess.Step(ctx, []byte("n,,n=user,r=rOprNGfwEbeRWgbNEkqO"))
	require.NoError(t, err)
	clientFinal := "c=biws,r=rOprNGfwEbeRWgbNEkqO" + rfcServerNonce +
		",p=dHzbZapWIk4jUhN+Ute9ytag9zjfMHgsqmmiz7AndVQ="
	_, status, err := sess.Step(ctx, []byte(clientFinal))
	require.NoError(t, err)
	require.Equal(t, scram.StatusMore, status)

	_, status, err = sess.Step(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, scram.StatusDone, status)

	// newTestStore's record was already in SCRAM form, so this was a
	// no-op upgrade; calling it again must still report Done.
	_, status, err = sess.Step(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, scram.StatusDone, status)
}
