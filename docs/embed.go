// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package docs ships the rbac-lookup documentation and its sidebar
// configuration inside the binary.
package docs

import "embed"

// ConfigFile is the name of the sidebar configuration within FS.
const ConfigFile = "sidebar.yaml"

// FS holds the sidebar configuration and every document it references.
//
//go:embed sidebar.yaml README.md usage.md gke.md contributing/*.md
var FS embed.FS
