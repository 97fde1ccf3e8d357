// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package docsite

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"k8s.io/utils/ptr"
)

const testConfig = `
title: Rbac Lookup Documentation
description: Reverse lookup for Kubernetes RBAC
themeConfig:
  docsRepo: telekom/rbac-lookup
  sidebar:
    - title: Rbac Lookup
      path: /
    - title: GKE
      path: /gke
      sidebarDepth: 2
    - title: Contributing
      children:
        - title: Guide
          path: contributing/guide
        - title: Code of Conduct
          path: contributing/code-of-conduct
`

func testDocs() fstest.MapFS {
	return fstest.MapFS{
		"README.md":                       {Data: []byte("# Rbac Lookup\n")},
		"gke.md":                          {Data: []byte("# GKE\n")},
		"contributing/guide.md":           {Data: []byte("# Guide\n")},
		"contributing/code-of-conduct.md": {Data: []byte("# Code of Conduct\n")},
		"nested/index.md":                 {Data: []byte("# Nested\n")},
	}
}

func mustParse(t *testing.T, data string) *SiteConfig {
	t.Helper()
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)
	return cfg
}

func TestParse(t *testing.T) {
	cfg := mustParse(t, testConfig)

	assert.Equal(t, "Rbac Lookup Documentation", cfg.Title)
	assert.Equal(t, "telekom/rbac-lookup", cfg.ThemeConfig.DocsRepo)
	require.Len(t, cfg.ThemeConfig.Sidebar, 3)
	assert.Equal(t, 2, cfg.ThemeConfig.Sidebar[1].Depth())
	assert.Equal(t, DefaultSidebarDepth, cfg.ThemeConfig.Sidebar[0].Depth())
	assert.True(t, cfg.ThemeConfig.Sidebar[2].IsBranch())
	assert.False(t, cfg.ThemeConfig.Sidebar[1].IsBranch())
}

func TestParseJSON(t *testing.T) {
	cfg := mustParse(t, `{"title":"Docs","themeConfig":{"sidebar":[{"title":"GKE","path":"/gke"}]}}`)
	require.Len(t, cfg.ThemeConfig.Sidebar, 1)
	assert.Equal(t, "/gke", cfg.ThemeConfig.Sidebar[0].Path)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("title: Docs\nthemeConfig:\n  sidebar:\n    - title: A\n      chidren: []\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sidebar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Rbac Lookup Documentation", cfg.Title)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNormalizeRoute(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		"/":                  "/",
		"/gke":               "/gke",
		"gke":                "/gke",
		"contributing/guide": "/contributing/guide",
		"/usage/":            "/usage",
		" /gke ":             "/gke",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeRoute(in), "NormalizeRoute(%q)", in)
	}
}

func TestResolveRoute(t *testing.T) {
	docs := testDocs()
	tests := []struct {
		route   string
		want    string
		wantErr bool
	}{
		{route: "/", want: "README.md"},
		{route: "/gke", want: "gke.md"},
		{route: "gke.md", want: "gke.md"},
		{route: "contributing/guide", want: "contributing/guide.md"},
		{route: "/nested", want: "nested/index.md"},
		{route: "/contributing", wantErr: true},
		{route: "/missing", wantErr: true},
		{route: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			got, err := ResolveRoute(docs, tt.route)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDocumentNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRouteIndexFallback(t *testing.T) {
	docs := fstest.MapFS{"index.md": {Data: []byte("# Home\n")}}
	got, err := ResolveRoute(docs, "/")
	require.NoError(t, err)
	assert.Equal(t, "index.md", got)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(mustParse(t, testConfig), testDocs()))
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *SiteConfig
		wantErrs field.ErrorList
	}{
		{
			name:     "nil config",
			cfg:      nil,
			wantErrs: field.ErrorList{field.Required(field.NewPath("config"), "")},
		},
		{
			name: "missing title and empty sidebar",
			cfg:  &SiteConfig{},
			wantErrs: field.ErrorList{
				field.Required(field.NewPath("title"), ""),
				field.Required(field.NewPath("themeConfig", "sidebar"), ""),
			},
		},
		{
			name: "leaf without path",
			cfg: &SiteConfig{Title: "Docs", ThemeConfig: ThemeConfig{Sidebar: []SidebarNode{
				{Title: "Usage"},
			}}},
			wantErrs: field.ErrorList{
				field.Required(field.NewPath("themeConfig", "sidebar").Index(0).Child("path"), ""),
			},
		},
		{
			name: "dangling path",
			cfg: &SiteConfig{Title: "Docs", ThemeConfig: ThemeConfig{Sidebar: []SidebarNode{
				{Title: "Usage", Path: "/usage"},
			}}},
			wantErrs: field.ErrorList{
				field.NotFound(field.NewPath("themeConfig", "sidebar").Index(0).Child("path"), "/usage"),
			},
		},
		{
			name: "empty children",
			cfg: &SiteConfig{Title: "Docs", ThemeConfig: ThemeConfig{Sidebar: []SidebarNode{
				{Title: "Contributing", Children: []SidebarNode{}},
			}}},
			wantErrs: field.ErrorList{
				field.Required(field.NewPath("themeConfig", "sidebar").Index(0).Child("children"), ""),
			},
		},
		{
			name: "path and children",
			cfg: &SiteConfig{Title: "Docs", ThemeConfig: ThemeConfig{Sidebar: []SidebarNode{
				{Title: "Contributing", Path: "/gke", Children: []SidebarNode{{Title: "Guide", Path: "contributing/guide"}}},
			}}},
			wantErrs: field.ErrorList{
				field.Forbidden(field.NewPath("themeConfig", "sidebar").Index(0).Child("path"), ""),
			},
		},
		{
			name: "nested child without title and negative depth",
			cfg: &SiteConfig{Title: "Docs", ThemeConfig: ThemeConfig{Sidebar: []SidebarNode{
				{Title: "Contributing", Children: []SidebarNode{
					{Path: "contributing/guide", SidebarDepth: ptr.To(-1)},
				}},
			}}},
			wantErrs: field.ErrorList{
				field.Required(field.NewPath("themeConfig", "sidebar").Index(0).Child("children").Index(0).Child("title"), ""),
				field.Invalid(field.NewPath("themeConfig", "sidebar").Index(0).Child("children").Index(0).Child("sidebarDepth"), -1, ""),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateSiteConfig(tt.cfg, testDocs())
			require.Len(t, errs, len(tt.wantErrs), "errors: %v", errs)
			for i := range errs {
				assert.Equal(t, tt.wantErrs[i].Type, errs[i].Type)
				assert.Equal(t, tt.wantErrs[i].Field, errs[i].Field)
			}
			assert.Error(t, Validate(tt.cfg, testDocs()))
		})
	}
}

func TestValidateRequiresDocs(t *testing.T) {
	cfg := &SiteConfig{Title: "Docs", ThemeConfig: ThemeConfig{Sidebar: []SidebarNode{
		{Title: "Usage", Path: "/usage"},
	}}}

	errs := ValidateSiteConfig(cfg, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, field.ErrorTypeRequired, errs[0].Type)
	assert.Equal(t, "docs", errs[0].Field)
	assert.Error(t, Validate(cfg, nil))

	// Structural problems are still reported alongside the missing tree.
	cfg.ThemeConfig.Sidebar[0].Title = ""
	assert.Len(t, ValidateSiteConfig(cfg, nil), 2)
}

func TestRenderLeaf(t *testing.T) {
	cfg := &SiteConfig{Title: "Docs", ThemeConfig: ThemeConfig{Sidebar: []SidebarNode{
		{Title: "GKE", Path: "/gke"},
	}}}

	entries := Render(cfg)
	require.Len(t, entries, 1)
	assert.Equal(t, "GKE", entries[0].Label)
	assert.Equal(t, "/gke", entries[0].Route)
	assert.Nil(t, entries[0].Children)

	doc, err := ResolveRoute(testDocs(), entries[0].Route)
	require.NoError(t, err)
	assert.Equal(t, "gke.md", doc)
}

func TestRenderSectionPreservesOrder(t *testing.T) {
	entries := Render(mustParse(t, testConfig))
	require.Len(t, entries, 3)

	contributing := entries[2]
	assert.Equal(t, "Contributing", contributing.Label)
	assert.Empty(t, contributing.Route)
	assert.Equal(t, []NavEntry{
		{Label: "Guide", Route: "/contributing/guide"},
		{Label: "Code of Conduct", Route: "/contributing/code-of-conduct"},
	}, contributing.Children)
}

func TestRenderIsDeterministic(t *testing.T) {
	cfg := mustParse(t, testConfig)
	first := Render(cfg)
	second := Render(cfg)
	assert.Equal(t, first, second)
	assert.Equal(t, mustParse(t, testConfig), cfg, "Render must not modify the config")
	assert.Nil(t, Render(nil))
}

func TestTree(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Tree(&buf, Render(mustParse(t, testConfig))))

	want := "Rbac Lookup -> /\n" +
		"GKE -> /gke\n" +
		"Contributing/\n" +
		"  Guide -> /contributing/guide\n" +
		"  Code of Conduct -> /contributing/code-of-conduct\n"
	assert.Equal(t, want, buf.String())
}
