// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package docsite

import (
	"errors"
	"io/fs"
	"path"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// ErrDocumentNotFound is returned by ResolveRoute when no document backs a
// route.
var ErrDocumentNotFound = errors.New("document not found")

// NormalizeRoute turns a sidebar path into a route with a leading slash and
// no trailing slash, except for the root route "/".
func NormalizeRoute(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = path.Clean("/" + p)
	return p
}

// ResolveRoute returns the document in docs that backs route. "/" resolves
// to README.md or index.md; "/x" resolves to x.md, x/README.md or x/index.md,
// checked in that order.
func ResolveRoute(docs fs.FS, route string) (string, error) {
	route = NormalizeRoute(route)
	if route == "" {
		return "", ErrDocumentNotFound
	}

	name := strings.TrimPrefix(route, "/")
	var candidates []string
	if name == "" {
		candidates = []string{"README.md", "index.md"}
	} else {
		name = strings.TrimSuffix(name, ".md")
		candidates = []string{name + ".md", name + "/README.md", name + "/index.md"}
	}

	for _, candidate := range candidates {
		info, err := fs.Stat(docs, candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", ErrDocumentNotFound
}

// Validate checks cfg against the documents in docs and returns every problem
// found as a single aggregate error, or nil. Every sidebar path must resolve
// to a document in docs, so a nil docs is an error.
func Validate(cfg *SiteConfig, docs fs.FS) error {
	return ValidateSiteConfig(cfg, docs).ToAggregate()
}

// ValidateSiteConfig returns the individual validation errors for cfg.
func ValidateSiteConfig(cfg *SiteConfig, docs fs.FS) field.ErrorList {
	var allErrs field.ErrorList
	if cfg == nil {
		return append(allErrs, field.Required(field.NewPath("config"), "site config is required"))
	}

	if docs == nil {
		allErrs = append(allErrs, field.Required(field.NewPath("docs"), "a document tree is required to resolve sidebar paths"))
	}

	if strings.TrimSpace(cfg.Title) == "" {
		allErrs = append(allErrs, field.Required(field.NewPath("title"), "site title is required"))
	}

	sidebarPath := field.NewPath("themeConfig", "sidebar")
	if len(cfg.ThemeConfig.Sidebar) == 0 {
		allErrs = append(allErrs, field.Required(sidebarPath, "sidebar must contain at least one entry"))
	}
	for i, node := range cfg.ThemeConfig.Sidebar {
		allErrs = append(allErrs, validateNode(node, sidebarPath.Index(i), docs)...)
	}
	return allErrs
}

func validateNode(node SidebarNode, fldPath *field.Path, docs fs.FS) field.ErrorList {
	var allErrs field.ErrorList

	if strings.TrimSpace(node.Title) == "" {
		allErrs = append(allErrs, field.Required(fldPath.Child("title"), "every sidebar entry needs a title"))
	}
	if node.SidebarDepth != nil && *node.SidebarDepth < 0 {
		allErrs = append(allErrs, field.Invalid(fldPath.Child("sidebarDepth"), *node.SidebarDepth, "must not be negative"))
	}

	if node.IsBranch() {
		if node.Path != "" {
			allErrs = append(allErrs, field.Forbidden(fldPath.Child("path"), "an entry with children must not have a path"))
		}
		if len(node.Children) == 0 {
			allErrs = append(allErrs, field.Required(fldPath.Child("children"), "children must not be empty"))
		}
		for i, child := range node.Children {
			allErrs = append(allErrs, validateNode(child, fldPath.Child("children").Index(i), docs)...)
		}
		return allErrs
	}

	if strings.TrimSpace(node.Path) == "" {
		allErrs = append(allErrs, field.Required(fldPath.Child("path"), "an entry without children needs a path"))
		return allErrs
	}
	if docs != nil {
		if _, err := ResolveRoute(docs, node.Path); err != nil {
			allErrs = append(allErrs, field.NotFound(fldPath.Child("path"), node.Path))
		}
	}
	return allErrs
}
