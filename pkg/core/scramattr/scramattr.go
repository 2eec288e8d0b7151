// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package scramattr tokenises and emits the SCRAM attribute-list
// grammar of RFC 5802 §5:
//
//	attr-val = ALPHA "=" value
//	value    = *(value-char)
//	list     = attr-val *("," attr-val)
//
// All attribute names are single US-ASCII letters; unknown attributes
// are retained (not dropped), since the SCRAM session FSM, not this
// parser, decides which attributes matter at each step.
package scramattr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errors returned by Parse.
var (
	ErrEmptyList     = errors.New("scramattr: empty attribute list")
	ErrInvalidName   = errors.New("scramattr: attribute name is not a single ASCII letter")
	ErrMissingEquals = errors.New("scramattr: attribute missing '=' separator")
	ErrDuplicateName = errors.New("scramattr: duplicate attribute name")
)

// List is a finite mapping from single-letter attribute names to their
// string values.
type List map[byte]string

func isAttrLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// Parse tokenises s as an RFC 5802 §5 attribute list. It rejects a
// name that is not a single ASCII letter, a missing '=' separator, an
// empty list, and a repeated attribute name — the last of these is a
// deliberate deviation from "last write wins" semantics, to prevent a
// second, attacker-controlled occurrence of an already-validated
// attribute (e.g. "n" or "r") from silently overriding the first.
func Parse(s string) (List, error) {
	if s == "" {
		return nil, ErrEmptyList
	}
	attrs := make(List)
	for _, field := range strings.Split(s, ",") {
		if len(field) < 2 {
			return nil, fmt.Errorf("%w: %q", ErrMissingEquals, field)
		}
		name := field[0]
		if !isAttrLetter(name) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, field)
		}
		if field[1] != '=' {
			return nil, fmt.Errorf("%w: %q", ErrMissingEquals, field)
		}
		if _, exists := attrs[name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, string(name))
		}
		attrs[name] = field[2:]
	}
	return attrs, nil
}

// Emit renders l back into RFC 5802 §5 grammar, with attributes
// ordered by ascending name for deterministic output. For a non-empty l
// whose names are ASCII letters and whose values contain no ',',
// re-parsing the result with Parse yields a List equal to l; an empty l
// emits "", which Parse rejects with ErrEmptyList.
func Emit(l List) string {
	names := make([]byte, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	fields := make([]string, 0, len(names))
	for _, name := range names {
		fields = append(fields, string(name)+"="+l[name])
	}
	return strings.Join(fields, ",")
}
