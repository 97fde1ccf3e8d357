/*
Copyright © 2026 Deutsche Telekom AG
*/

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	// Namespace is the Prometheus metrics namespace for rbac-lookup
	Namespace = "rbac_lookup"
)

var (
	// LookupsTotal counts the total number of lookups by result
	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "lookups_total",
			Help:      "Total number of RBAC subject lookups by result",
		},
		[]string{"result"},
	)

	// LookupDuration measures the duration of lookups in seconds
	LookupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Duration of RBAC subject lookups in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// BindingsScanned counts the bindings inspected per resource type
	BindingsScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bindings_scanned_total",
			Help:      "Total number of bindings inspected per resource type",
		},
		[]string{"resource_type"},
	)

	// SubjectsMatched observes how many subjects a lookup returned
	SubjectsMatched = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "subjects_matched",
			Help:      "Number of subjects matched per lookup",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// APIListErrors counts failed list calls against the Kubernetes API
	APIListErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "api_list_errors_total",
			Help:      "Total number of failed binding list calls per resource type",
		},
		[]string{"resource_type"},
	)

	// IAMPolicyLoads counts GKE IAM policy retrievals by result
	IAMPolicyLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "iam_policy_loads_total",
			Help:      "Total number of GCP IAM policy retrievals by result",
		},
		[]string{"result"},
	)

	// HTTPRequestsTotal counts lookup server requests by handler and status code
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of lookup server requests by handler and status code",
		},
		[]string{"handler", "code"},
	)
)

func init() {
	// Register all metrics with controller-runtime's registry
	metrics.Registry.MustRegister(
		LookupsTotal,
		LookupDuration,
		BindingsScanned,
		SubjectsMatched,
		APIListErrors,
		IAMPolicyLoads,
		HTTPRequestsTotal,
	)
}

// Result constants for labeling lookup and policy load outcomes
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// ResourceType constants
const (
	ResourceRoleBinding        = "RoleBinding"
	ResourceClusterRoleBinding = "ClusterRoleBinding"
	ResourceIAMBinding         = "IAMBinding"
)
