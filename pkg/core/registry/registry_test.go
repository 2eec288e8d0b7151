// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ircd-services/scramcore/pkg/core/digest"
	"github.com/ircd-services/scramcore/pkg/core/registry"
	"github.com/ircd-services/scramcore/pkg/core/scram"
)

type fakeRegistrar struct {
	registered  map[string]scram.Mechanism
	registerErr error
	unregisterN int
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{registered: make(map[string]scram.Mechanism)}
}

func (f *fakeRegistrar) Register(name string, mech scram.Mechanism) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered[name] = mech
	return nil
}

func (f *fakeRegistrar) Unregister(name string) error {
	f.unregisterN++
	delete(f.registered, name)
	return nil
}

func TestOnConfigChangeRegistersSHA256(t *testing.T) {
	reg := newFakeRegistrar()
	r := registry.New(reg)
	err := r.OnConfigChange(context.Background(), digest.SHA256, 10000)
	require.NoError(t, err)
	assert.Equal(t, "SCRAM-SHA-256", r.Current())
	assert.Contains(t, reg.registered, "SCRAM-SHA-256")
}

func TestOnConfigChangeSwitchesMechanism(t *testing.T) {
	reg := newFakeRegistrar()
	r := registry.New(reg)
	require.NoError(t, r.OnConfigChange(context.Background(), digest.SHA1, 10000))
	require.Equal(t, "SCRAM-SHA-1", r.Current())

	require.NoError(t, r.OnConfigChange(context.Background(), digest.SHA256, 10000))
	assert.Equal(t, "SCRAM-SHA-256", r.Current())
	assert.Equal(t, 1, reg.unregisterN)
	assert.NotContains(t, reg.registered, "SCRAM-SHA-1")
}

func TestOnConfigChangeRejectsUnsupportedPRF(t *testing.T) {
	reg := newFakeRegistrar()
	r := registry.New(reg)
	err := r.OnConfigChange(context.Background(), digest.MD5, 10000)
	assert.Error(t, err)
	assert.Empty(t, r.Current())
}
