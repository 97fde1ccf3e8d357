// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package helpers

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	rbacv1 "k8s.io/api/rbac/v1"
)

const (
	// KindUser is the normalized form of rbacv1.UserKind.
	KindUser = "user"
	// KindGroup is the normalized form of rbacv1.GroupKind.
	KindGroup = "group"
	// KindServiceAccount is the normalized form of rbacv1.ServiceAccountKind.
	KindServiceAccount = "serviceaccount"
)

// SubjectKinds lists the normalized subject kinds accepted as a filter.
var SubjectKinds = []string{KindUser, KindGroup, KindServiceAccount}

var kindAliases = map[string]string{
	"sa":              KindServiceAccount,
	"serviceaccounts": KindServiceAccount,
	"users":           KindUser,
	"groups":          KindGroup,
}

// SubjectKey returns the key a subject is tracked under. ServiceAccounts are
// namespaced, so two accounts with the same name in different namespaces get
// distinct "namespace:name" keys. All other subjects are keyed by name.
func SubjectKey(subject rbacv1.Subject) string {
	if subject.Kind == rbacv1.ServiceAccountKind {
		return fmt.Sprintf("%s:%s", subject.Namespace, subject.Name)
	}
	return subject.Name
}

// NormalizeSubjectKind lowercases a subject kind filter and resolves aliases.
// The empty string is valid and means "any kind".
func NormalizeSubjectKind(kind string) (string, error) {
	k := strings.ToLower(strings.TrimSpace(kind))
	if k == "" {
		return "", nil
	}
	if alias, ok := kindAliases[k]; ok {
		k = alias
	}
	for _, known := range SubjectKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown subject kind %q, must be one of %s", kind, strings.Join(SubjectKinds, ", "))
}

// ParseIAMMember splits a GCP IAM policy member such as
// "serviceAccount:ci@example.iam.gserviceaccount.com" into a title-cased kind
// ("ServiceAccount") and a name. Members that do not identify a single
// principal (allUsers, deleted:...) report ok=false.
func ParseIAMMember(member string) (kind, name string, ok bool) {
	prefix, rest, found := strings.Cut(member, ":")
	if !found || prefix == "" || rest == "" || prefix == "deleted" {
		return "", "", false
	}
	return cases.Title(language.Und, cases.NoLower).String(prefix), rest, true
}
