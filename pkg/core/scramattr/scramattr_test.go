// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scramattr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ircd-services/scramcore/pkg/core/scramattr"
)

func TestParseBasic(t *testing.T) {
	attrs, err := scramattr.Parse("n=user,r=abcd1234")
	require.NoError(t, err)
	assert.Equal(t, "user", attrs['n'])
	assert.Equal(t, "abcd1234", attrs['r'])
}

func TestParseEmptyValue(t *testing.T) {
	attrs, err := scramattr.Parse("m=,n=user")
	require.NoError(t, err)
	assert.Equal(t, "", attrs['m'])
}

func TestParseRejectsEmptyList(t *testing.T) {
	_, err := scramattr.Parse("")
	assert.ErrorIs(t, err, scramattr.ErrEmptyList)
}

func TestParseRejectsInvalidName(t *testing.T) {
	_, err := scramattr.Parse("1=x")
	assert.ErrorIs(t, err, scramattr.ErrInvalidName)
}

func TestParseRejectsMissingEquals(t *testing.T) {
	_, err := scramattr.Parse("n")
	assert.ErrorIs(t, err, scramattr.ErrMissingEquals)
}

func TestParseRejectsDuplicateName(t *testing.T) {
	_, err := scramattr.Parse("n=a,n=b")
	assert.ErrorIs(t, err, scramattr.ErrDuplicateName)
}

func TestEmitRoundTrip(t *testing.T) {
	cases := []string{
		"n=user,r=abcd1234",
		"c=biws,r=xyz,p=proof",
		"v=signature",
	}
	for _, s := range cases {
		parsed, err := scramattr.Parse(s)
		require.NoError(t, err)
		reparsed, err := scramattr.Parse(scramattr.Emit(parsed))
		require.NoError(t, err)
		assert.Equal(t, parsed, reparsed)
	}
}
