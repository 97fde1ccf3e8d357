// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/option"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"github.com/telekom/rbac-lookup/pkg/metrics"
)

// ErrNoGCPProject is returned when no candidate project yields an IAM policy.
var ErrNoGCPProject = errors.New("unable to load IAM policies for GKE, try setting the CLOUDSDK_CORE_PROJECT environment variable")

// GKEClusterInfo is parsed from a kubeconfig cluster name of the form
// gke_<project>_<location>_<cluster>, the format gcloud writes.
type GKEClusterInfo struct {
	ClusterName string
	Location    string
	ProjectName string
}

// ParseGKEClusterInfo returns the GKE cluster information of kubeContext, or
// of the current context when kubeContext is empty. Clusters not created by
// gcloud yield an empty GKEClusterInfo.
func ParseGKEClusterInfo(cfg *clientcmdapi.Config, kubeContext string) GKEClusterInfo {
	if cfg == nil {
		return GKEClusterInfo{}
	}
	contextName := cfg.CurrentContext
	if kubeContext != "" {
		contextName = kubeContext
	}

	kctx, ok := cfg.Contexts[contextName]
	if !ok || kctx == nil || kctx.Cluster == "" {
		return GKEClusterInfo{}
	}

	parts := strings.SplitN(kctx.Cluster, "_", 4)
	if len(parts) != 4 || parts[0] != "gke" || parts[1] == "" {
		return GKEClusterInfo{}
	}
	return GKEClusterInfo{
		ProjectName: parts[1],
		Location:    parts[2],
		ClusterName: parts[3],
	}
}

// IAMPolicyGetter fetches the IAM policy of a GCP project.
type IAMPolicyGetter interface {
	GetIAMPolicy(ctx context.Context, project string) (*cloudresourcemanager.Policy, error)
}

type resourceManagerGetter struct {
	service *cloudresourcemanager.Service
}

func (g *resourceManagerGetter) GetIAMPolicy(ctx context.Context, project string) (*cloudresourcemanager.Policy, error) {
	return g.service.Projects.GetIamPolicy(project, &cloudresourcemanager.GetIamPolicyRequest{}).Context(ctx).Do()
}

// GKEPolicyLoader resolves the GCP project of a GKE cluster and loads its IAM
// policy. Candidate projects are tried in order: the project parsed from the
// kubeconfig, the project of the application default credentials, then
// EnvProject.
type GKEPolicyLoader struct {
	Getter IAMPolicyGetter

	// Project is the project parsed from the kubeconfig.
	Project string

	// EnvProject is the value of CLOUDSDK_CORE_PROJECT.
	EnvProject string

	// DefaultProject returns the project of the application default
	// credentials. May be nil.
	DefaultProject func(ctx context.Context) (string, error)

	Log logr.Logger
}

// NewGKEPolicyLoader builds a loader backed by the Cloud Resource Manager API
// using application default credentials.
func NewGKEPolicyLoader(ctx context.Context, project, envProject string, log logr.Logger) (*GKEPolicyLoader, error) {
	service, err := cloudresourcemanager.NewService(ctx, option.WithScopes(cloudresourcemanager.CloudPlatformReadOnlyScope))
	if err != nil {
		return nil, fmt.Errorf("initializing Google Cloud Resource Manager client: %w", err)
	}

	return &GKEPolicyLoader{
		Getter:         &resourceManagerGetter{service: service},
		Project:        project,
		EnvProject:     envProject,
		DefaultProject: defaultCredentialsProject,
		Log:            log.WithName("gke"),
	}, nil
}

func defaultCredentialsProject(ctx context.Context) (string, error) {
	credentials, err := google.FindDefaultCredentials(ctx, cloudresourcemanager.CloudPlatformReadOnlyScope)
	if err != nil {
		return "", err
	}
	return credentials.ProjectID, nil
}

// LoadPolicy returns the IAM policy of the first candidate project that can
// be read, along with that project.
func (g *GKEPolicyLoader) LoadPolicy(ctx context.Context) (*cloudresourcemanager.Policy, string, error) {
	var errs []error
	tried := map[string]bool{}

	try := func(project, origin string) *cloudresourcemanager.Policy {
		if project == "" || tried[project] {
			return nil
		}
		tried[project] = true

		policy, err := g.Getter.GetIAMPolicy(ctx, project)
		if err != nil {
			g.Log.V(1).Info("could not load IAM policy", "project", project, "origin", origin, "error", err.Error())
			errs = append(errs, fmt.Errorf("project %s from %s: %w", project, origin, err))
			return nil
		}
		g.Log.V(1).Info("IAM policy loaded", "project", project, "origin", origin, "bindings", len(policy.Bindings))
		return policy
	}

	if policy := try(g.Project, "kubeconfig"); policy != nil {
		metrics.IAMPolicyLoads.WithLabelValues(metrics.ResultSuccess).Inc()
		return policy, g.Project, nil
	}

	if g.DefaultProject != nil {
		project, err := g.DefaultProject(ctx)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("finding default credentials: %w", err))
		case project == "":
			g.Log.V(1).Info("no project ID found in default GCP credentials")
		default:
			if policy := try(project, "default credentials"); policy != nil {
				metrics.IAMPolicyLoads.WithLabelValues(metrics.ResultSuccess).Inc()
				return policy, project, nil
			}
		}
	}

	if policy := try(g.EnvProject, "CLOUDSDK_CORE_PROJECT"); policy != nil {
		metrics.IAMPolicyLoads.WithLabelValues(metrics.ResultSuccess).Inc()
		return policy, g.EnvProject, nil
	}

	metrics.IAMPolicyLoads.WithLabelValues(metrics.ResultError).Inc()
	return nil, "", errors.Join(append([]error{ErrNoGCPProject}, errs...)...)
}
