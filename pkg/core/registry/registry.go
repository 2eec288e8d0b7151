// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package registry tracks which SCRAM mechanism is currently advertised
// to SASL clients, driven by the PBKDF2 configuration in force at
// runtime. It is grounded on
// modules/saslserv/scram-sha.c's sasl_scramsha_pbkdf2v2_confhook from
// the atheme IRC services daemon this module's specification was
// distilled from: that function is invoked once at module load and
// again on every configuration reload, unregisters whichever mechanism
// was previously active, and registers the one matching the configured
// PRF — emitting a warning when the configured iteration count exceeds
// what the Cyrus SASL client library will accept.
package registry

import (
	"context"
	"fmt"

	"github.com/ircd-services/scramcore/pkg/core/cerr"
	"github.com/ircd-services/scramcore/pkg/core/digest"
	"github.com/ircd-services/scramcore/pkg/core/log"
	"github.com/ircd-services/scramcore/pkg/core/scram"
)

// Registrar is the hook surface a SASL mechanism table offers, so this
// package can add and remove mechanisms by name without depending on
// the concrete transport that owns the table.
type Registrar interface {
	Register(name string, mech scram.Mechanism) error
	Unregister(name string) error
}

// Registry holds the single SCRAM mechanism currently active, and
// reacts to configuration changes via OnConfigChange, mirroring the
// atheme pbkdf2v2 module's confhook callback contract.
type Registry struct {
	reg     Registrar
	current string // name of the currently registered mechanism, or ""
}

// New creates a Registry that adds and removes mechanisms through reg.
func New(reg Registrar) *Registry {
	return &Registry{reg: reg}
}

// OnConfigChange is the confhook: it is called once with the PRF in
// force at startup and again on every later configuration reload. It
// unregisters whichever mechanism was previously active and registers
// the one matching prf, logging an error if the PRF isn't one of the
// two SCRAM-capable algorithms and a warning if iterations exceeds
// scram.CyrusSASLIterMax.
func (r *Registry) OnConfigChange(ctx context.Context, prf digest.Algorithm, iterations int) error {
	if r.current != "" {
		if err := r.reg.Unregister(r.current); err != nil {
			return cerr.Transient("registry.unregister", err)
		}
		r.current = ""
	}

	var mech scram.Mechanism
	switch prf {
	case digest.SHA1:
		mech = scram.SHA1()
	case digest.SHA256:
		mech = scram.SHA256()
	default:
		log.Error(ctx, "registry: configured PRF is not a supported SCRAM PRF, no mechanism will be registered",
			log.Tag("registry.confhook.badprf"))
		return cerr.Programmer("registry.confhook.badprf", fmt.Errorf("unsupported PRF %v", prf))
	}

	if err := r.reg.Register(mech.Name, mech); err != nil {
		return cerr.Transient("registry.register", err)
	}
	r.current = mech.Name

	if iterations > scram.CyrusSASLIterMax {
		log.Warn(ctx, "registry: configured PBKDF2 iteration count exceeds Cyrus SASL client maximum, client logins may fail",
			log.Tag("registry.confhook.itermax"))
	}

	log.Info(ctx, "registry: mechanism registered", log.Tag("registry.confhook.ok"))
	return nil
}

// Current returns the name of the mechanism currently registered, or
// "" if none is.
func (r *Registry) Current() string { return r.current }
