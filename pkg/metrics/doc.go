// Package metrics defines and registers Prometheus metrics for rbac-lookup,
// covering lookup counts/durations, binding scans, API list errors, GKE IAM
// policy loads and HTTP request tracking for the lookup server.
package metrics
