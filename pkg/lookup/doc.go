// Package lookup inverts Kubernetes RBAC bindings into a per-subject view.
//
// A Lister reads RoleBindings and ClusterRoleBindings from a BindingSource,
// optionally merges GKE IAM project roles, filters the result with a Matcher
// and exposes it as Subjects or as flattened Grants for printing.
package lookup
