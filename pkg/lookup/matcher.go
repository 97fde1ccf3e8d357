// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package lookup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/telekom/rbac-lookup/pkg/helpers"
)

// Matcher decides which subjects and scopes a lookup keeps.
// The zero value matches everything.
type Matcher struct {
	pattern   string
	re        *regexp.Regexp
	kind      string
	namespace string
}

// NewMatcher builds a Matcher. pattern is matched as a substring of the
// subject name, or as a regular expression when useRegex is set. kind is a
// subject kind filter (see helpers.NormalizeSubjectKind) and namespace
// restricts the scopes that are reported.
func NewMatcher(pattern string, useRegex bool, kind, namespace string) (*Matcher, error) {
	normalizedKind, err := helpers.NormalizeSubjectKind(kind)
	if err != nil {
		return nil, err
	}

	m := &Matcher{
		pattern:   pattern,
		kind:      normalizedKind,
		namespace: strings.TrimSpace(namespace),
	}

	if useRegex && pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid subject pattern %q: %w", pattern, err)
		}
		m.re = re
	}

	return m, nil
}

// Pattern returns the subject query.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Kind returns the normalized subject kind filter, empty for any kind.
func (m *Matcher) Kind() string {
	return m.kind
}

// Namespace returns the namespace scope filter, empty for all scopes.
func (m *Matcher) Namespace() string {
	return m.namespace
}

// MatchName reports whether a subject name satisfies the query.
func (m *Matcher) MatchName(name string) bool {
	if m.re != nil {
		return m.re.MatchString(name)
	}
	return m.pattern == "" || strings.Contains(name, m.pattern)
}

// MatchKind reports whether a subject kind satisfies the kind filter.
func (m *Matcher) MatchKind(kind string) bool {
	return m.kind == "" || strings.ToLower(kind) == m.kind
}

// MatchScope reports whether grants in scope are visible under the namespace
// filter. Cluster-wide and project-wide grants apply in every namespace.
func (m *Matcher) MatchScope(scope string) bool {
	if m.namespace == "" {
		return true
	}
	return scope == m.namespace || scope == ScopeClusterWide || scope == ScopeProjectWide
}
