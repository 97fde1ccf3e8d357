// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package docsite

import (
	"fmt"
	"io"
	"strings"
)

// NavEntry is one entry of the rendered navigation. Leaves carry a Route,
// sections carry Children in configuration order.
type NavEntry struct {
	Label    string
	Route    string
	Depth    int
	Children []NavEntry
}

// Render turns the sidebar of cfg into navigation entries. It does not
// validate cfg and never modifies it.
func Render(cfg *SiteConfig) []NavEntry {
	if cfg == nil {
		return nil
	}
	return renderNodes(cfg.ThemeConfig.Sidebar)
}

func renderNodes(nodes []SidebarNode) []NavEntry {
	entries := make([]NavEntry, 0, len(nodes))
	for _, node := range nodes {
		entry := NavEntry{Label: node.Title, Depth: node.Depth()}
		if node.IsBranch() {
			entry.Children = renderNodes(node.Children)
		} else {
			entry.Route = NormalizeRoute(node.Path)
		}
		entries = append(entries, entry)
	}
	return entries
}

// Tree writes entries as an indented outline, one entry per line. Leaves are
// followed by their route.
func Tree(w io.Writer, entries []NavEntry) error {
	return writeTree(w, entries, 0)
}

func writeTree(w io.Writer, entries []NavEntry, level int) error {
	indent := strings.Repeat("  ", level)
	for _, entry := range entries {
		var err error
		if entry.Children != nil {
			_, err = fmt.Fprintf(w, "%s%s/\n", indent, entry.Label)
		} else {
			_, err = fmt.Fprintf(w, "%s%s -> %s\n", indent, entry.Label, entry.Route)
		}
		if err != nil {
			return err
		}
		if err := writeTree(w, entry.Children, level+1); err != nil {
			return err
		}
	}
	return nil
}
