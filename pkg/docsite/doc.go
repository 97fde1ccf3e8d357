// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package docsite loads, validates and renders the sidebar configuration of
// the rbac-lookup documentation site.
//
// A sidebar is an ordered tree of nodes. Leaves link to a document through
// their path, branches group children under a title:
//
//	themeConfig:
//	  sidebar:
//	    - title: Usage
//	      path: /usage
//	    - title: Contributing
//	      children:
//	        - title: Guide
//	          path: contributing/guide
//
// Paths are routes relative to the documentation root. A route resolves to a
// Markdown document as described by ResolveRoute.
package docsite
