// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package lookup

import (
	"cmp"
	"slices"

	rbacv1 "k8s.io/api/rbac/v1"

	"github.com/telekom/rbac-lookup/pkg/helpers"
)

const (
	// ScopeClusterWide is the scope of roles granted by ClusterRoleBindings.
	ScopeClusterWide = "cluster-wide"
	// ScopeProjectWide is the scope of roles granted by GCP IAM policies.
	ScopeProjectWide = "project-wide"

	// SourceKindRoleBinding marks roles granted by a RoleBinding.
	SourceKindRoleBinding = "RoleBinding"
	// SourceKindClusterRoleBinding marks roles granted by a ClusterRoleBinding.
	SourceKindClusterRoleBinding = "ClusterRoleBinding"
	// SourceKindIAMRole marks roles granted by a GCP IAM role.
	SourceKindIAMRole = "IAMRole"
)

// RoleSource identifies what granted a role.
type RoleSource struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// SimpleRole is a role held by a subject together with its source.
type SimpleRole struct {
	Kind   string     `json:"kind"`
	Name   string     `json:"name"`
	Source RoleSource `json:"source"`
}

func compareRoles(a, b SimpleRole) int {
	return cmp.Or(
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.Name, b.Name),
		cmp.Compare(a.Source.Kind, b.Source.Kind),
		cmp.Compare(a.Source.Name, b.Source.Name),
	)
}

// Subject is an RBAC subject and every role it holds, grouped by scope.
type Subject struct {
	Kind         string                  `json:"kind"`
	Name         string                  `json:"name"`
	Namespace    string                  `json:"namespace,omitempty"`
	RolesByScope map[string][]SimpleRole `json:"rolesByScope"`

	key string
}

func newSubject(key, kind, name, namespace string) *Subject {
	return &Subject{
		key:          key,
		Kind:         kind,
		Name:         name,
		Namespace:    namespace,
		RolesByScope: make(map[string][]SimpleRole),
	}
}

// Key returns the key the subject is tracked under: helpers.SubjectKey for
// Kubernetes subjects, the member name for GCP IAM members.
func (s *Subject) Key() string {
	if s.key == "" {
		return helpers.SubjectKey(rbacv1.Subject{Kind: s.Kind, Name: s.Name, Namespace: s.Namespace})
	}
	return s.key
}

// Scopes returns the subject's scopes in sorted order.
func (s *Subject) Scopes() []string {
	scopes := make([]string, 0, len(s.RolesByScope))
	for scope := range s.RolesByScope {
		scopes = append(scopes, scope)
	}
	slices.Sort(scopes)
	return scopes
}

// addRole records role under scope. A role already present in the scope is
// not added twice, which happens when a binding lists a subject repeatedly.
func (s *Subject) addRole(scope string, role SimpleRole) {
	roles := s.RolesByScope[scope]
	if slices.Contains(roles, role) {
		return
	}
	s.RolesByScope[scope] = append(roles, role)
}

func (s *Subject) sortRoles() {
	for scope := range s.RolesByScope {
		slices.SortFunc(s.RolesByScope[scope], compareRoles)
	}
}

// Grant is a single (subject, role, scope) triple.
type Grant struct {
	SubjectKind string `json:"subjectKind"`
	Subject     string `json:"subject"`
	Scope       string `json:"scope"`
	RoleKind    string `json:"roleKind"`
	RoleName    string `json:"roleName"`
	SourceKind  string `json:"sourceKind"`
	SourceName  string `json:"sourceName"`
}

func compareGrants(a, b Grant) int {
	return cmp.Or(
		cmp.Compare(a.Subject, b.Subject),
		cmp.Compare(a.SubjectKind, b.SubjectKind),
		cmp.Compare(a.Scope, b.Scope),
		cmp.Compare(a.RoleKind, b.RoleKind),
		cmp.Compare(a.RoleName, b.RoleName),
		cmp.Compare(a.SourceKind, b.SourceKind),
		cmp.Compare(a.SourceName, b.SourceName),
	)
}
