// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package docsite

import (
	"fmt"
	"os"

	"k8s.io/utils/ptr"
	"sigs.k8s.io/yaml"
)

// DefaultSidebarDepth is the heading depth shown under each sidebar entry
// when a node does not set one.
const DefaultSidebarDepth = 0

// SiteConfig is the top level documentation site configuration.
type SiteConfig struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	ThemeConfig ThemeConfig `json:"themeConfig"`
}

// ThemeConfig carries the theme settings, most importantly the sidebar.
type ThemeConfig struct {
	// DocsRepo identifies the repository holding the documents, for example
	// "telekom/rbac-lookup".
	DocsRepo string        `json:"docsRepo,omitempty"`
	Sidebar  []SidebarNode `json:"sidebar"`
}

// SidebarNode is one sidebar entry. Exactly one of Path and Children is set.
type SidebarNode struct {
	Title        string        `json:"title"`
	Path         string        `json:"path,omitempty"`
	Children     []SidebarNode `json:"children,omitempty"`
	SidebarDepth *int          `json:"sidebarDepth,omitempty"`
}

// IsBranch reports whether the node groups children rather than linking to a
// document.
func (n SidebarNode) IsBranch() bool {
	return n.Children != nil
}

// Depth returns the configured sidebar depth or DefaultSidebarDepth.
func (n SidebarNode) Depth() int {
	return ptr.Deref(n.SidebarDepth, DefaultSidebarDepth)
}

// DefaultSiteConfig returns an empty configuration with defaults applied.
func DefaultSiteConfig() *SiteConfig {
	return &SiteConfig{
		ThemeConfig: ThemeConfig{Sidebar: []SidebarNode{}},
	}
}

// Parse decodes a YAML or JSON site configuration. Unknown fields are
// rejected so typos such as "chidren" surface early.
func Parse(data []byte) (*SiteConfig, error) {
	cfg := DefaultSiteConfig()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing site config: %w", err)
	}
	return cfg, nil
}

// Load reads and parses the site configuration at path.
func Load(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading site config: %w", err)
	}
	return Parse(data)
}
