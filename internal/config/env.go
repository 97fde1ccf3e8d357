// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package config reads the environment variables rbac-lookup honours in
// addition to its command line flags.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds settings that may come from the environment. Flags set explicitly
// on the command line always take precedence.
type Env struct {
	// GCPProject is the project used for the GKE IAM lookup when neither the
	// kubeconfig nor the default credentials name one.
	GCPProject string `env:"CLOUDSDK_CORE_PROJECT"`

	// TracingEndpoint is the default OTLP collector endpoint.
	TracingEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Output is the default output format.
	Output string `env:"RBAC_LOOKUP_OUTPUT" envDefault:"normal"`
}

// Load parses the process environment.
func Load() (Env, error) {
	return load(env.Options{})
}

func load(opts env.Options) (Env, error) {
	var cfg Env
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Env{}, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}
