// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package stdcrypto implements digest.Provider on top of the Go
// standard library's crypto/md5, crypto/sha1, crypto/sha256, and
// crypto/sha512 packages.
//
// This is the only Provider wired into this repository, matching
// spec.md's Design Notes: "choose exactly one implementation at build
// time". A build wanting a different backend (a FIPS module, a
// hardware-backed implementation) would supply an alternative
// implementation of digest.Provider here without touching the core
// digest, verifier, attribute-parser, or SCRAM session code, none of
// which import this package directly.
package stdcrypto

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/ircd-services/scramcore/pkg/core/digest"
)

// Provider is the zero-value, stateless digest.Provider backed by the
// standard library's crypto implementations.
type Provider struct{}

// New returns a fresh hash.Hash for alg, or digest.ErrUnknownAlgorithm
// if alg is not one of MD5, SHA1, SHA256, or SHA512.
func (Provider) New(alg digest.Algorithm) (hash.Hash, error) {
	switch alg {
	case digest.MD5:
		return md5.New(), nil
	case digest.SHA1:
		return sha1.New(), nil
	case digest.SHA256:
		return sha256.New(), nil
	case digest.SHA512:
		return sha512.New(), nil
	default:
		return nil, digest.ErrUnknownAlgorithm
	}
}
