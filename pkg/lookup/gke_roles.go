// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package lookup

import "strings"

// iamRoleKind is the role kind reported for GCP IAM grants.
const iamRoleKind = "IAM"

// gkeIAMRoles maps the GCP IAM roles that grant Kubernetes access on GKE to
// the names rbac-lookup reports them under.
var gkeIAMRoles = map[string]string{
	"roles/container.clusterAdmin": "gke-cluster-admin",
	"roles/container.admin":        "gke-admin",
	"roles/container.developer":    "gke-developer",
	"roles/container.viewer":       "gke-viewer",
	"roles/owner":                  "gcp-owner",
	"roles/admin":                  "gcp-admin",
	"roles/editor":                 "gcp-editor",
	"roles/viewer":                 "gcp-viewer",
}

// gkeIAMRole returns the SimpleRole for an IAM role, ok=false when the role
// does not grant Kubernetes access.
func gkeIAMRole(iamRole string) (SimpleRole, bool) {
	name, ok := gkeIAMRoles[iamRole]
	if !ok {
		return SimpleRole{}, false
	}
	return SimpleRole{
		Kind: iamRoleKind,
		Name: name,
		Source: RoleSource{
			Kind: SourceKindIAMRole,
			Name: strings.TrimPrefix(iamRole, "roles/"),
		},
	}, true
}
