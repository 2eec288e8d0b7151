// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package memstore is an in-memory reference implementation of
// authstore.UserRecords and authstore.CookieStore, for tests and the
// scramauthctl demo CLI. Production deployments supply their own
// adapter backed by whatever store already holds user records;
// spec.md §1 treats the store's durability and schema as an external
// collaborator.
//
// Its locking follows the same pattern as the teacher repository's
// adapter/db layer: a single sync.RWMutex guards the whole table,
// since spec.md §5 expects at most one writer (the credential-upgrade
// path) racing many readers (concurrent login attempts), not a
// high-contention workload that would justify per-row locks.
package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/ircd-services/scramcore/pkg/core/authstore"
)

// Record is one user's stored credential state.
type Record struct {
	Authcid  string
	Verifier string
	Flags    authstore.Flags
	Cookie   string // current AUTHCOOKIE value, "" if none issued
}

// Store is an in-memory, concurrency-safe authstore.UserRecords and
// authstore.CookieStore implementation.
type Store struct {
	mu      sync.RWMutex
	byName  map[string]*Record
	allowed map[string]bool // authzid -> permitted to act as itself
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		byName:  make(map[string]*Record),
		allowed: make(map[string]bool),
	}
}

// Put inserts or replaces the record for authcid, and permits authcid
// to use itself as an authzid.
func (s *Store) Put(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec
	s.byName[rec.Authcid] = &cp
	s.allowed[rec.Authcid] = true
}

// ref is the concrete authstore.UserRef this package hands back: the
// authcid a record was stored under. Core code never inspects it.
type ref string

// ErrNotFound is returned by lookups that find no matching record.
var ErrNotFound = errors.New("memstore: no such user")

// ResolveAuthzid implements authstore.UserRecords.
func (s *Store) ResolveAuthzid(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowed[name], nil
}

// ResolveAuthcid implements authstore.UserRecords.
func (s *Store) ResolveAuthcid(_ context.Context, name string) (authstore.UserRef, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.byName[name]; !ok {
		return nil, false, nil
	}
	return ref(name), true, nil
}

// VerifierOf implements authstore.UserRecords.
func (s *Store) VerifierOf(_ context.Context, r authstore.UserRef) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byName[string(r.(ref))]
	if !ok {
		return "", ErrNotFound
	}
	return rec.Verifier, nil
}

// FlagsOf implements authstore.UserRecords.
func (s *Store) FlagsOf(_ context.Context, r authstore.UserRef) (authstore.Flags, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byName[string(r.(ref))]
	if !ok {
		return 0, ErrNotFound
	}
	return rec.Flags, nil
}

// SetVerifier implements authstore.UserRecords.
func (s *Store) SetVerifier(_ context.Context, r authstore.UserRef, newVerifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byName[string(r.(ref))]
	if !ok {
		return ErrNotFound
	}
	rec.Verifier = newVerifier
	return nil
}

// IssueCookie sets the current AUTHCOOKIE value for the named user, for
// test setup.
func (s *Store) IssueCookie(authcid, cookie string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byName[authcid]
	if !ok {
		return ErrNotFound
	}
	rec.Cookie = cookie
	return nil
}

// Validate implements authstore.CookieStore.
func (s *Store) Validate(_ context.Context, r authstore.UserRef, cookie string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byName[string(r.(ref))]
	if !ok {
		return false, nil
	}
	return rec.Cookie != "" && rec.Cookie == cookie, nil
}
