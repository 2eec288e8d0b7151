// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config is an adapter which allows scramauthctl to be driven
// by a yaml configuration file instead of only flags, the same role
// the teacher repository's config package plays for caweb. Settings
// are parsed and validated here, then handed to their components as
// individual params and functional options rather than being passed
// around as a raw Config, so the rest of the module stays free of a
// dependency on this package's shape.
package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ircd-services/scramcore/pkg/core/digest"
	"github.com/ircd-services/scramcore/pkg/core/registry"
)

// Config holds the settings scramauthctl needs to stand up a
// Registry and hash new verifiers.
type Config struct {
	PBKDF2 PBKDF2 `yaml:"pbkdf2"`
}

// PBKDF2 mirrors the pbkdf2v2 module's configuration block in the
// original atheme daemon: which PRF new verifiers are derived with,
// how many rounds, and how much salt.
type PBKDF2 struct {
	// PRF names the digest algorithm: "sha1" or "sha256".
	PRF string `yaml:"digest"`
	// Rounds is the PBKDF2 iteration count for newly created verifiers.
	Rounds int `yaml:"rounds"`
	// SaltLen is the number of random bytes of salt for newly created
	// verifiers.
	SaltLen int `yaml:"saltlen"`
}

// Algorithm resolves p.PRF to a digest.Algorithm.
func (p PBKDF2) Algorithm() (digest.Algorithm, error) {
	switch p.PRF {
	case "sha1":
		return digest.SHA1, nil
	case "sha256":
		return digest.SHA256, nil
	default:
		return 0, fmt.Errorf("config: unknown pbkdf2.digest %q (want sha1 or sha256)", p.PRF)
	}
}

// OnConfigChange invokes r's confhook with this configuration's PRF and
// iteration count, mirroring the original daemon calling back into
// sasl_scramsha_pbkdf2v2_confhook on every reload.
func (p PBKDF2) OnConfigChange(r *registry.Registry) error {
	alg, err := p.Algorithm()
	if err != nil {
		return err
	}
	return r.OnConfigChange(context.Background(), alg, p.Rounds)
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("unmarshalling yaml: %w", err)
	}
	if err := c.ValidateAndNormalize(); err != nil {
		return nil, fmt.Errorf("validating configs: %w", err)
	}
	return c, nil
}

// ValidateAndNormalize validates the configuration settings and fills
// in defaults for any zero-valued optional fields.
func (c *Config) ValidateAndNormalize() error {
	if c.PBKDF2.PRF == "" {
		c.PBKDF2.PRF = "sha256"
	}
	if _, err := c.PBKDF2.Algorithm(); err != nil {
		return err
	}
	if c.PBKDF2.Rounds <= 0 {
		c.PBKDF2.Rounds = 10000
	}
	if c.PBKDF2.SaltLen <= 0 {
		c.PBKDF2.SaltLen = 16
	}
	return nil
}
